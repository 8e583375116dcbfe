package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
	"github.com/baihao/MedTest-Backend-sub000/internal/model"
)

type fakeAuth struct {
	userID  int64
	verrErr error
}

func (f fakeAuth) Verify(token string) (int64, error) {
	if f.verrErr != nil {
		return 0, f.verrErr
	}
	return f.userID, nil
}

func (f fakeAuth) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	return "tok", &model.User{ID: f.userID, Username: username}, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestSegments(t *testing.T) {
	cases := []struct {
		path string
		want []string
	}{
		{"/ocrdata/batch/12", []string{"ocrdata", "batch", "12"}},
		{"/ocrdata/", []string{"ocrdata"}},
		{"/", nil},
	}
	for _, tc := range cases {
		got := segments(tc.path)
		if len(got) != len(tc.want) {
			t.Fatalf("segments(%q) = %v, want %v", tc.path, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("segments(%q) = %v, want %v", tc.path, got, tc.want)
			}
		}
	}
}

func TestParseID(t *testing.T) {
	if id, ok := parseID("42"); !ok || id != 42 {
		t.Fatalf("expected 42, true; got %d, %v", id, ok)
	}
	if _, ok := parseID("abc"); ok {
		t.Fatalf("expected ok=false for non-numeric id")
	}
}

func TestRequireAuthRejectsMissingBearer(t *testing.T) {
	api := &API{Auth: fakeAuth{userID: 1}, Log: quietLogger()}
	handler := api.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be reached")
	})

	req := httptest.NewRequest(http.MethodGet, "/ocrdata/1", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthPassesUserIDThrough(t *testing.T) {
	api := &API{Auth: fakeAuth{userID: 99}, Log: quietLogger()}
	var seen int64
	handler := api.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		seen = userIDFrom(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ocrdata/1", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen != 99 {
		t.Fatalf("expected userID 99 in context, got %d", seen)
	}
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	api := &API{Auth: fakeAuth{verrErr: apperr.New(apperr.Unauthenticated, "bad token")}, Log: quietLogger()}
	handler := api.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be reached")
	})

	req := httptest.NewRequest(http.MethodGet, "/ocrdata/1", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRenderErrorMapsKindToStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	renderError(rec, apperr.New(apperr.Conflict, "duplicate"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestPageParamsDefaultsToZero(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/labreport/search?workspaceId=1&limit=10&offset=20", nil)
	limit, offset := pageParams(req)
	if limit != 10 || offset != 20 {
		t.Fatalf("expected limit=10 offset=20, got %d %d", limit, offset)
	}

	bare := httptest.NewRequest(http.MethodGet, "/labreport/search?workspaceId=1", nil)
	limit, offset = pageParams(bare)
	if limit != 0 || offset != 0 {
		t.Fatalf("expected defaults of 0, got %d %d", limit, offset)
	}
}

func TestRenderErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	renderError(rec, apperr.Wrap(apperr.Internal, errBoom, "failed"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

var errBoom = boomErr{}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }
