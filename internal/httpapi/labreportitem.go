package httpapi

import (
	"net/http"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
)

type updateItemRequest struct {
	ItemName       *string `json:"itemName,omitempty"`
	Result         *string `json:"result,omitempty"`
	Unit           *string `json:"unit,omitempty"`
	ReferenceValue *string `json:"referenceValue,omitempty"`
}

// handleLabReportItem is PUT /labreportitem/:id, the human-correction
// path from spec.md §4.E.
func (a *API) handleLabReportItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		renderError(w, validationf("method not allowed"))
		return
	}
	parts := segments(r.URL.Path)
	rest := parts[1:]
	if len(rest) != 1 {
		renderError(w, notFound("no such labreportitem route"))
		return
	}
	id, ok := parseID(rest[0])
	if !ok {
		renderError(w, validationf("invalid item id"))
		return
	}

	owner, err := a.Reports.OwnerOfItem(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}
	if owner != userIDFrom(r) {
		renderError(w, apperr.New(apperr.Forbidden, "item not owned by caller"))
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, validationf("malformed request body"))
		return
	}

	item, err := a.Reports.UpdateItem(r.Context(), id, req.ItemName, req.Result, req.Unit, req.ReferenceValue)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, item)
}
