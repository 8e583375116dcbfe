// Package hub is the Notification Hub: it keeps every live websocket
// session per user and fans out push notifications to all of them
// best-effort (spec.md §4.E). Sessions speak a tiny JSON frame
// protocol: auth_success/auth_failure on connect, labReportCreated on
// push, ping/pong for liveness, echo for a debug round-trip, and error
// for protocol violations.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/baihao/MedTest-Backend-sub000/internal/metrics"
	"github.com/baihao/MedTest-Backend-sub000/internal/model"
)

// Frame is the wire envelope for every message the hub sends or
// receives over a session.
type Frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

const (
	FrameAuthSuccess   = "auth_success"
	FrameAuthFailure   = "auth_failure"
	FrameReportCreated = "labReportCreated"
	FramePing          = "ping"
	FramePong          = "pong"
	FrameEcho          = "echo"
	FrameEchoResponse  = "echo_response"
	FrameError         = "error"
)

// authSuccessPayload is the auth_success frame's payload (spec.md §6 wire table).
type authSuccessPayload struct {
	UserID    int64  `json:"userId"`
	SessionID string `json:"sessionId"`
}

// authFailurePayload is the auth_failure frame's payload.
type authFailurePayload struct {
	Message string `json:"message"`
}

// Hub tracks every live Session, keyed by the user id it authenticated as.
type Hub struct {
	mu       sync.RWMutex
	sessions map[int64]map[*Session]struct{}
	log      *logrus.Logger

	heartbeat time.Duration
	dedupe    *dedupeWindow
}

// dedupeWindowTTL is how long a (user, report) pair is remembered
// before a repeat NotifyReportCreated is allowed through again.
const dedupeWindowTTL = 5 * time.Minute

// New builds an empty Hub. heartbeat is the interval at which each
// session is sent a ping frame (spec.md §6 HEARTBEAT_INTERVAL); a
// session whose ping write fails is closed. A peer that stays silent
// is not closed on that account: missed replies are not counted.
func New(heartbeat time.Duration, log *logrus.Logger) *Hub {
	return &Hub{
		sessions:  make(map[int64]map[*Session]struct{}),
		log:       log,
		heartbeat: heartbeat,
		dedupe:    newDedupeWindow(dedupeWindowTTL, log),
	}
}

// Accept registers a new authenticated connection and starts its
// read/write pumps. It blocks until the session closes.
func (h *Hub) Accept(ctx context.Context, userID int64, conn *websocket.Conn) {
	s := newSession(userID, conn, h.heartbeat, h.log)

	h.mu.Lock()
	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[*Session]struct{})
	}
	h.sessions[userID][s] = struct{}{}
	h.mu.Unlock()
	h.refreshGauges()

	s.writeFrame(Frame{Type: FrameAuthSuccess, Payload: authSuccessPayload{UserID: userID, SessionID: s.id}})
	h.log.WithFields(logrus.Fields{"userId": userID, "sessionId": s.id, "sessions": h.sessionCountLocked(userID)}).Info("hub: session accepted")

	s.run(ctx)

	h.mu.Lock()
	delete(h.sessions[userID], s)
	if len(h.sessions[userID]) == 0 {
		delete(h.sessions, userID)
	}
	h.mu.Unlock()
	h.refreshGauges()
	h.log.WithField("userId", userID).Info("hub: session closed")
}

func (h *Hub) sessionCountLocked(userID int64) int {
	return len(h.sessions[userID])
}

func (h *Hub) refreshGauges() {
	status := h.Status()
	metrics.HubSessions.Set(float64(status.ActiveSessions))
	metrics.HubUsers.Set(float64(status.TotalUsers))
}

// NotifyReportCreated implements orchestrator.Notifier: it fans the
// report out to every live session for ownerID, best-effort. A report
// already pushed for this owner within the dedupe window is skipped.
func (h *Hub) NotifyReportCreated(_ context.Context, ownerID int64, report *model.LabReport) {
	if h.dedupe.seen(ownerID, report.ID) {
		h.log.WithFields(logrus.Fields{"userId": ownerID, "reportId": report.ID}).Debug("hub: skipping duplicate notification")
		return
	}
	h.Send(ownerID, Frame{Type: FrameReportCreated, Payload: report})
}

// Send pushes frame to every live session for userID. A session whose
// write fails is closed and dropped; Send never returns an error,
// matching the "best-effort fan-out" invariant in spec.md §4.E.
func (h *Hub) Send(userID int64, frame Frame) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions[userID]))
	for s := range h.sessions[userID] {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if err := s.writeFrame(frame); err != nil {
			h.log.WithError(err).WithField("userId", userID).Warn("hub: dropping session after write failure")
			s.close()
		}
	}
}

// CloseUser forcibly disconnects every session for userID, e.g. on
// account deletion or forced logout.
func (h *Hub) CloseUser(userID int64) {
	h.mu.Lock()
	sessions := h.sessions[userID]
	delete(h.sessions, userID)
	h.mu.Unlock()

	for s := range sessions {
		s.close()
	}
	h.refreshGauges()
}

// SessionInfo is a point-in-time snapshot of one live session
// (spec.md §4.E `sessions(userId) -> [SessionInfo]`).
type SessionInfo struct {
	ID           string
	UserID       int64
	CreatedAt    time.Time
	LastActivity time.Time
}

// Sessions returns a snapshot of every live session for userID.
func (h *Hub) Sessions(userID int64) []SessionInfo {
	h.mu.RLock()
	set := h.sessions[userID]
	sessions := make([]*Session, 0, len(set))
	for s := range set {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	infos := make([]SessionInfo, len(sessions))
	for i, s := range sessions {
		infos[i] = s.info()
	}
	return infos
}

// Status is a snapshot of hub occupancy for the metrics/debug surface
// (spec.md §4.E `status() -> {totalConnections, totalUsers,
// activeSessions, userSessions}`).
type Status struct {
	TotalConnections int
	TotalUsers       int
	ActiveSessions   int
	UserSessions     map[int64]int
}

// Status summarizes the hub's current occupancy.
func (h *Hub) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userSessions := make(map[int64]int, len(h.sessions))
	total := 0
	for userID, set := range h.sessions {
		userSessions[userID] = len(set)
		total += len(set)
	}
	return Status{
		TotalConnections: total,
		TotalUsers:       len(h.sessions),
		ActiveSessions:   total,
		UserSessions:     userSessions,
	}
}
