package httpapi

import (
	"net/http"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
	"github.com/baihao/MedTest-Backend-sub000/internal/model"
)

type ocrItemRequest struct {
	Image   string `json:"reportImage"`
	OCRText string `json:"ocrPrimitive"`
}

type insertBatchRequest struct {
	Items []ocrItemRequest `json:"items"`
}

type deleteBatchRequest struct {
	IDs []int64 `json:"ids"`
}

// handleOcrData dispatches every /ocrdata/... route:
//
//	POST   /ocrdata/batch/:workspaceId
//	GET    /ocrdata/workspace/:workspaceId
//	DELETE /ocrdata/batch
//	GET    /ocrdata/:id
func (a *API) handleOcrData(w http.ResponseWriter, r *http.Request) {
	parts := segments(r.URL.Path) // ["ocrdata", ...]
	rest := parts[1:]

	switch {
	case r.Method == http.MethodPost && len(rest) == 2 && rest[0] == "batch":
		a.insertOcrBatch(w, r, rest[1])
	case r.Method == http.MethodGet && len(rest) == 2 && rest[0] == "workspace":
		a.listOcrByWorkspace(w, r, rest[1])
	case r.Method == http.MethodDelete && len(rest) == 1 && rest[0] == "batch":
		a.deleteOcrBatch(w, r)
	case r.Method == http.MethodGet && len(rest) == 2 && rest[1] == "image":
		a.getOcrImage(w, r, rest[0])
	case r.Method == http.MethodGet && len(rest) == 1:
		a.getOcrJob(w, r, rest[0])
	default:
		renderError(w, notFound("no such ocrdata route"))
	}
}

func (a *API) insertOcrBatch(w http.ResponseWriter, r *http.Request, workspaceIDStr string) {
	workspaceID, ok := parseID(workspaceIDStr)
	if !ok {
		renderError(w, validationf("invalid workspace id"))
		return
	}
	var req insertBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, validationf("malformed request body"))
		return
	}

	jobs, err := a.Jobs.InsertBatch(r.Context(), workspaceID, userIDFrom(r), toNewItems(req.Items))
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusCreated, jobs)
}

func (a *API) listOcrByWorkspace(w http.ResponseWriter, r *http.Request, workspaceIDStr string) {
	workspaceID, ok := parseID(workspaceIDStr)
	if !ok {
		renderError(w, validationf("invalid workspace id"))
		return
	}
	ws, err := a.Workspaces.Get(r.Context(), workspaceID)
	if err != nil {
		renderError(w, err)
		return
	}
	if ws.OwnerID != userIDFrom(r) {
		renderError(w, apperr.New(apperr.Forbidden, "workspace not owned by caller"))
		return
	}

	limit, offset := pageParams(r)
	jobs, err := a.Jobs.ListByWorkspace(r.Context(), workspaceID, limit, offset)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, jobs)
}

// deleteOcrBatch is the client-side cancellation primitive: a hard
// delete that wins any race with an in-flight orchestrator reservation
// (spec.md §4.C "reconciliation"). A batch of more than
// model.MaxBatchDelete ids is rejected (400), as is the whole batch if
// any id is missing (404) or not owned by the caller (403); only once
// every id passes both checks is the batch hard-deleted (spec.md §6).
func (a *API) deleteOcrBatch(w http.ResponseWriter, r *http.Request) {
	var req deleteBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, validationf("malformed request body"))
		return
	}
	if len(req.IDs) > model.MaxBatchDelete {
		renderError(w, validationf("delete batch exceeds max of %d", model.MaxBatchDelete))
		return
	}

	callerID := userIDFrom(r)
	for _, id := range req.IDs {
		owner, err := a.Jobs.OwnerOf(r.Context(), id)
		if err != nil {
			renderError(w, err)
			return
		}
		if owner != callerID {
			renderError(w, apperr.New(apperr.Forbidden, "job not owned by caller"))
			return
		}
	}

	n, err := a.Jobs.HardDelete(r.Context(), req.IDs)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (a *API) getOcrJob(w http.ResponseWriter, r *http.Request, idStr string) {
	id, ok := parseID(idStr)
	if !ok {
		renderError(w, validationf("invalid job id"))
		return
	}
	owner, err := a.Jobs.OwnerOf(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}
	if owner != userIDFrom(r) {
		renderError(w, apperr.New(apperr.Forbidden, "job not owned by caller"))
		return
	}

	job, err := a.Jobs.Get(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, job)
}

// getOcrImage is the debug path that fetches the original scan bytes
// from the configured image store, keyed by the job's report_image.
// It is a no-op 404 when no backend is configured (imagestore.New
// returns a disabled stub in that case).
func (a *API) getOcrImage(w http.ResponseWriter, r *http.Request, idStr string) {
	id, ok := parseID(idStr)
	if !ok {
		renderError(w, validationf("invalid job id"))
		return
	}
	owner, err := a.Jobs.OwnerOf(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}
	if owner != userIDFrom(r) {
		renderError(w, apperr.New(apperr.Forbidden, "job not owned by caller"))
		return
	}

	job, err := a.Jobs.Get(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}

	bytes, err := a.Images.Fetch(r.Context(), job.Image)
	if err != nil {
		renderError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(bytes)
}
