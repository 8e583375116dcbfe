// Package httpapi is the REST surface from spec.md §6, built the way
// ais/prxs3.go builds aistore's S3-compatible endpoint: a net/http
// handler that splits the path into segments and switches on
// r.Method, rather than a router library. It runs on its own
// net/http.Server (config.HTTPAddr); the websocket push transport
// listens separately (internal/hub, config.WSAddr) since
// gorilla/websocket's Upgrade wants the handshake on a dedicated mux.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/baihao/MedTest-Backend-sub000/internal/imagestore"
	"github.com/baihao/MedTest-Backend-sub000/internal/model"
	"github.com/baihao/MedTest-Backend-sub000/internal/store"
)

// AuthService is the slice of *auth.Service the REST layer needs.
// Narrowing to an interface lets tests substitute a fake verifier
// without standing up Postgres.
type AuthService interface {
	Verify(token string) (int64, error)
	Login(ctx context.Context, username, password string) (string, *model.User, error)
}

// API holds every dependency the REST handlers need.
type API struct {
	Jobs       *store.JobStore
	Reports    *store.ReportStore
	Workspaces *store.WorkspaceStore
	Auth       AuthService
	Images     imagestore.Store
	Log        *logrus.Logger
}

// Handler builds the top-level http.Handler for the REST API.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", a.withLog(a.handleLogin))
	mux.HandleFunc("/ocrdata/", a.withLog(a.requireAuth(a.handleOcrData)))
	mux.HandleFunc("/labreport/", a.withLog(a.requireAuth(a.handleLabReport)))
	mux.HandleFunc("/labreportitem/", a.withLog(a.requireAuth(a.handleLabReportItem)))
	mux.HandleFunc("/workspace", a.withLog(a.requireAuth(a.handleWorkspaceCollection)))
	mux.HandleFunc("/workspace/create", a.withLog(a.requireAuth(a.handleWorkspaceCreate)))
	mux.HandleFunc("/workspace/delete/", a.withLog(a.requireAuth(a.handleWorkspaceDelete)))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (a *API) withLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.Log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Debug("httpapi: request")
		next(w, r)
	}
}

// segments splits a path like "/ocrdata/batch/12" into ["ocrdata", "batch", "12"].
func segments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}
