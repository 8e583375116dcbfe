package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// writeWait bounds how long a single frame write may take.
const writeWait = 10 * time.Second

// Session is one live websocket connection for an authenticated user.
type Session struct {
	id        string
	userID    int64
	conn      *websocket.Conn
	heartbeat time.Duration
	log       *logrus.Logger

	writeMu sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}

	mu           sync.Mutex
	createdAt    time.Time
	lastActivity time.Time
}

func newSession(userID int64, conn *websocket.Conn, heartbeat time.Duration, log *logrus.Logger) *Session {
	now := time.Now()
	return &Session{
		id:           uuid.NewString(),
		userID:       userID,
		conn:         conn,
		heartbeat:    heartbeat,
		log:          log,
		closed:       make(chan struct{}),
		createdAt:    now,
		lastActivity: now,
	}
}

// touch records that the peer was heard from just now; writes to the
// session do not update it.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// info snapshots the session for the hub's sessions()/status() surface.
func (s *Session) info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:           s.id,
		UserID:       s.userID,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
	}
}

// writeFrame serializes and sends one frame. Concurrent sends are
// serialized, since gorilla/websocket forbids concurrent writers.
func (s *Session) writeFrame(f Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(f)
}

// close terminates the underlying connection. Safe to call multiple times.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}

// run drives the session's read loop and heartbeat ticker until the
// connection closes, the context is cancelled, or a read fails.
// Accept blocks on this call for the life of the connection.
func (s *Session) run(ctx context.Context) {
	defer s.close()

	readErrs := make(chan error, 1)
	go s.readPump(readErrs)

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		case err := <-readErrs:
			if err != nil {
				s.log.WithError(err).WithField("userId", s.userID).Debug("hub: session read ended")
			}
			return
		case <-ticker.C:
			if err := s.writeFrame(Frame{Type: FramePing}); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the client and handles ping/echo
// requests inline; any other error (including a client-initiated
// close) ends the session.
func (s *Session) readPump(done chan<- error) {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			done <- err
			return
		}

		s.touch()

		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			_ = s.writeFrame(Frame{Type: FrameError, Payload: "malformed frame"})
			continue
		}

		switch f.Type {
		case FramePing:
			_ = s.writeFrame(Frame{Type: FramePong})
		case FrameEcho:
			_ = s.writeFrame(Frame{Type: FrameEchoResponse, Payload: f.Payload})
		default:
			_ = s.writeFrame(Frame{Type: FrameError, Payload: "unknown frame type"})
		}
	}
}
