package httpapi

import (
	"net/http"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// handleLogin is POST /login (spec.md §5): validates credentials,
// auto-creating the account on first login, and returns a bearer token.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		renderError(w, validationf("method not allowed"))
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, validationf("malformed request body"))
		return
	}

	token, user, err := a.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		renderError(w, err)
		return
	}

	renderJSON(w, http.StatusOK, loginResponse{Token: token, UserID: user.ID, Username: user.Username})
}
