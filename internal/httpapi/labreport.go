package httpapi

import (
	"net/http"
	"time"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
	"github.com/baihao/MedTest-Backend-sub000/internal/model"
	"github.com/baihao/MedTest-Backend-sub000/internal/store"
)

// minPageSize/maxPageSize/defaultPageSize bound the §4.F pagination
// contract: pageSize in [1, 100], page >= 1.
const (
	minPageSize     = 1
	maxPageSize     = 100
	defaultPageSize = 20
)

// handleLabReport dispatches:
//
//	POST /labreport/search
//	GET  /labreport/:id
func (a *API) handleLabReport(w http.ResponseWriter, r *http.Request) {
	parts := segments(r.URL.Path)
	rest := parts[1:]

	if r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "search" {
		a.searchLabReports(w, r)
		return
	}
	if r.Method == http.MethodGet && len(rest) == 1 {
		a.getLabReport(w, r, rest[0])
		return
	}
	renderError(w, notFound("no such labreport route"))
}

func (a *API) getLabReport(w http.ResponseWriter, r *http.Request, idStr string) {
	id, ok := parseID(idStr)
	if !ok {
		renderError(w, validationf("invalid report id"))
		return
	}
	owner, err := a.Reports.OwnerOfReport(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}
	if owner != userIDFrom(r) {
		renderError(w, apperr.New(apperr.Forbidden, "report not owned by caller"))
		return
	}

	report, err := a.Reports.FindWithItems(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, report)
}

// searchRequest is the POST /labreport/search body (spec.md §4.F/§6).
type searchRequest struct {
	WorkspaceID int64     `json:"workspaceId"`
	Patients    []string  `json:"patients,omitempty"`
	ItemNames   []string  `json:"itemNames,omitempty"`
	From        time.Time `json:"from,omitempty"`
	To          time.Time `json:"to,omitempty"`
	Page        int       `json:"page,omitempty"`
	PageSize    int       `json:"pageSize,omitempty"`
}

// pagination is the §4.F search response envelope.
type pagination struct {
	CurrentPage int  `json:"currentPage"`
	PageSize    int  `json:"pageSize"`
	TotalCount  int  `json:"totalCount"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

type searchResponse struct {
	Reports    []*model.LabReport `json:"reports"`
	Pagination pagination         `json:"pagination"`
}

func (a *API) searchLabReports(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, validationf("malformed request body"))
		return
	}
	if req.WorkspaceID == 0 {
		renderError(w, validationf("workspaceId is required"))
		return
	}

	ws, err := a.Workspaces.Get(r.Context(), req.WorkspaceID)
	if err != nil {
		renderError(w, err)
		return
	}
	if ws.OwnerID != userIDFrom(r) {
		renderError(w, apperr.New(apperr.Forbidden, "workspace not owned by caller"))
		return
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize < minPageSize || pageSize > maxPageSize {
		renderError(w, validationf("pageSize must be between %d and %d", minPageSize, maxPageSize))
		return
	}

	filter := store.SearchFilter{
		WorkspaceID: req.WorkspaceID,
		Patients:    req.Patients,
		ItemNames:   req.ItemNames,
		From:        req.From,
		To:          req.To,
		Limit:       pageSize,
		Offset:      (page - 1) * pageSize,
	}

	reports, total, err := a.Reports.SearchByPatientsItemsAndDateRange(r.Context(), filter)
	if err != nil {
		renderError(w, err)
		return
	}
	if reports == nil {
		reports = []*model.LabReport{}
	}

	totalPages := (total + pageSize - 1) / pageSize
	renderJSON(w, http.StatusOK, searchResponse{
		Reports: reports,
		Pagination: pagination{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalCount:  total,
			TotalPages:  totalPages,
			HasNext:     page < totalPages,
			HasPrev:     page > 1,
		},
	})
}
