package httpapi

import (
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errorBody is the JSON envelope every error response carries
// (spec.md §7): {"error": {kind, message, statusCode, timestamp}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
}

func renderJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// renderError maps any error to its taxonomy status code and a JSON
// body; errors that don't wrap *apperr.Error are treated as Internal
// so no raw error text ever reaches a client.
func renderError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	msg := "internal error"
	if e, ok := apperr.As(err); ok {
		msg = e.Message
	}
	renderJSON(w, kind.Status(), errorBody{Error: errorDetail{
		Kind:       kind.String(),
		Message:    msg,
		StatusCode: kind.Status(),
		Timestamp:  time.Now().UTC(),
	}})
}

func unauthenticated(msg string) error {
	return apperr.New(apperr.Unauthenticated, msg)
}

func validationf(format string, args ...interface{}) error {
	return apperr.Validationf(format, args...)
}

func notFound(msg string) error {
	return apperr.New(apperr.NotFound, msg)
}
