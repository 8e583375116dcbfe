package hub

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/baihao/MedTest-Backend-sub000/internal/model"
)

type fakeVerifier struct {
	userID int64
	err    error
}

func (f fakeVerifier) Verify(token string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.userID, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func wsURLFor(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws?token=anything"
}

func TestAcceptSendsAuthSuccessThenReportCreated(t *testing.T) {
	h := New(time.Hour, quietLogger())
	srv := httptest.NewServer(NewServer(h, fakeVerifier{userID: 7}, quietLogger()))
	defer srv.Close()

	conn := dial(t, wsURLFor(srv.URL))
	defer conn.Close()

	var first Frame
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("reading auth_success: %v", err)
	}
	if first.Type != FrameAuthSuccess {
		t.Fatalf("expected auth_success, got %q", first.Type)
	}

	waitForSessionCount(t, h, 7, 1)

	h.NotifyReportCreated(context.Background(), 7, &model.LabReport{ID: 99, Patient: "alice"})

	var second Frame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("reading labReportCreated: %v", err)
	}
	if second.Type != FrameReportCreated {
		t.Fatalf("expected labReportCreated, got %q", second.Type)
	}
}

func TestEchoRoundTrip(t *testing.T) {
	h := New(time.Hour, quietLogger())
	srv := httptest.NewServer(NewServer(h, fakeVerifier{userID: 1}, quietLogger()))
	defer srv.Close()

	conn := dial(t, wsURLFor(srv.URL))
	defer conn.Close()

	var authFrame Frame
	_ = conn.ReadJSON(&authFrame)

	if err := conn.WriteJSON(Frame{Type: FrameEcho, Payload: "hello"}); err != nil {
		t.Fatalf("write echo: %v", err)
	}

	var resp Frame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("reading echo response: %v", err)
	}
	if resp.Type != FrameEchoResponse || resp.Payload != "hello" {
		t.Fatalf("expected echo_response with payload 'hello', got %+v", resp)
	}
}

func TestSendFansOutToMultipleSessionsForSameUser(t *testing.T) {
	h := New(time.Hour, quietLogger())
	srv := httptest.NewServer(NewServer(h, fakeVerifier{userID: 3}, quietLogger()))
	defer srv.Close()

	connA := dial(t, wsURLFor(srv.URL))
	defer connA.Close()
	connB := dial(t, wsURLFor(srv.URL))
	defer connB.Close()

	var f Frame
	_ = connA.ReadJSON(&f)
	_ = connB.ReadJSON(&f)

	waitForSessionCount(t, h, 3, 2)

	h.Send(3, Frame{Type: FrameReportCreated, Payload: "x"})

	for _, c := range []*websocket.Conn{connA, connB} {
		var got Frame
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := c.ReadJSON(&got); err != nil {
			t.Fatalf("reading fan-out frame: %v", err)
		}
		if got.Type != FrameReportCreated {
			t.Fatalf("expected labReportCreated, got %q", got.Type)
		}
	}
}

func TestAuthFailureSendsAuthFailureFrameThenCloses(t *testing.T) {
	h := New(time.Hour, quietLogger())
	srv := httptest.NewServer(NewServer(h, fakeVerifier{err: errAuth}, quietLogger()))
	defer srv.Close()

	conn := dial(t, wsURLFor(srv.URL))
	defer conn.Close()

	var f Frame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("reading auth_failure: %v", err)
	}
	if f.Type != FrameAuthFailure {
		t.Fatalf("expected auth_failure, got %q", f.Type)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the connection to close after auth_failure")
	}
}

func waitForSessionCount(t *testing.T, h *Hub, userID int64, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(h.Sessions(userID)) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sessions for user %d, got %d", want, userID, len(h.Sessions(userID)))
}

var errAuth = authErr{}

type authErr struct{}

func (authErr) Error() string { return "unauthenticated" }
