package httpapi

import "net/http"

type createWorkspaceRequest struct {
	Name string `json:"name"`
}

// handleWorkspaceCreate is POST /workspace/create.
func (a *API) handleWorkspaceCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		renderError(w, validationf("method not allowed"))
		return
	}
	var req createWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, validationf("malformed request body"))
		return
	}

	ws, err := a.Workspaces.Create(r.Context(), userIDFrom(r), req.Name)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusCreated, ws)
}

// handleWorkspaceCollection is GET /workspace: list every workspace
// owned by the caller.
func (a *API) handleWorkspaceCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		renderError(w, validationf("method not allowed"))
		return
	}
	list, err := a.Workspaces.ListByOwner(r.Context(), userIDFrom(r))
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, list)
}

// handleWorkspaceDelete is DELETE /workspace/delete/:id.
func (a *API) handleWorkspaceDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		renderError(w, validationf("method not allowed"))
		return
	}
	parts := segments(r.URL.Path)
	// parts = ["workspace", "delete", ":id"]
	if len(parts) != 3 {
		renderError(w, notFound("workspace not found"))
		return
	}
	id, ok := parseID(parts[2])
	if !ok {
		renderError(w, validationf("invalid workspace id"))
		return
	}

	if err := a.Workspaces.Delete(r.Context(), id, userIDFrom(r)); err != nil {
		renderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
