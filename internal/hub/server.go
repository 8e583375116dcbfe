package hub

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
)

// Verifier authenticates the bearer token on a websocket upgrade
// request. *auth.Service implements this.
type Verifier interface {
	Verify(token string) (int64, error)
}

// upgrader is shared across requests; gorilla recommends a package
// level instance since it holds no per-connection state.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the dedicated net/http listener for the /ws endpoint. It
// runs on its own port rather than sharing the REST API's mux because
// gorilla/websocket's Upgrade wants sole control of the connection's
// CheckOrigin and handshake path (spec.md §9 design note, config.WSAddr).
type Server struct {
	hub      *Hub
	verifier Verifier
	log      *logrus.Logger
}

// NewServer builds a Server backed by hub, authenticating connections
// against verifier.
func NewServer(hub *Hub, verifier Verifier, log *logrus.Logger) *Server {
	return &Server{hub: hub, verifier: verifier, log: log}
}

// ServeHTTP upgrades the connection, then authenticates it over the
// websocket transport itself: a failed token sends a single
// auth_failure frame and closes (spec.md §6, testable property 7),
// rather than rejecting the HTTP upgrade outright.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
			token = auth[7:]
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("hub: websocket upgrade failed")
		return
	}

	userID, err := s.verifier.Verify(token)
	if err != nil {
		_ = conn.WriteJSON(Frame{Type: FrameAuthFailure, Payload: authFailurePayload{Message: apperr.New(apperr.Unauthenticated, "invalid token").Error()}})
		_ = conn.Close()
		return
	}

	s.hub.Accept(r.Context(), userID, conn)
}

// Addr-agnostic convenience so callers don't need to import net/http
// just to start the listener.
func ListenAndServe(ctx context.Context, addr string, handler *Server) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	return srv.ListenAndServe()
}
