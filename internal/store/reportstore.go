package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
	"github.com/baihao/MedTest-Backend-sub000/internal/model"
)

// ReportStore persists committed LabReport rows and their items
// (spec.md §4.D).
type ReportStore struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewReportStore constructs a ReportStore over pool.
func NewReportStore(pool *pgxpool.Pool, log *logrus.Logger) *ReportStore {
	return &ReportStore{pool: pool, log: log}
}

// NewReportItem is one line of a report draft passed to Create.
type NewReportItem struct {
	ItemName       string
	Result         string
	Unit           *string
	ReferenceValue *string
}

// Create persists a report and its items in one transaction. It is
// the sole write path used by the Batch Orchestrator's commit step.
func (s *ReportStore) Create(ctx context.Context, workspaceID int64, patient string, reportTime time.Time, doctor, hospital *string, reportImage string, items []NewReportItem) (*model.LabReport, error) {
	if patient == "" {
		return nil, apperr.Validationf("patient must not be empty")
	}
	for i, it := range items {
		if it.ItemName == "" || len(it.ItemName) > model.MaxItemNameLen {
			return nil, apperr.Validationf("item %d: itemName must be 1..%d chars", i, model.MaxItemNameLen)
		}
		if len(it.Result) > model.MaxResultLen {
			return nil, apperr.Validationf("item %d: result exceeds %d chars", i, model.MaxResultLen)
		}
		if it.Unit != nil && len(*it.Unit) > model.MaxUnitLen {
			return nil, apperr.Validationf("item %d: unit exceeds %d chars", i, model.MaxUnitLen)
		}
		if it.ReferenceValue != nil && len(*it.ReferenceValue) > model.MaxReferenceValueLen {
			return nil, apperr.Validationf("item %d: referenceValue exceeds %d chars", i, model.MaxReferenceValueLen)
		}
	}

	report := &model.LabReport{
		WorkspaceID: workspaceID,
		Patient:     patient,
		ReportTime:  reportTime,
		Doctor:      doctor,
		Hospital:    hospital,
		ReportImage: reportImage,
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO lab_reports (workspace_id, patient, report_time, doctor, hospital, report_image)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			workspaceID, patient, reportTime, doctor, hospital, reportImage,
		).Scan(&report.ID, &report.CreatedAt); err != nil {
			return apperr.Wrap(apperr.Internal, err, "inserting lab report")
		}

		report.Items = make([]*model.LabReportItem, 0, len(items))
		for _, it := range items {
			item := &model.LabReportItem{
				ReportID:       report.ID,
				ItemName:       it.ItemName,
				Result:         it.Result,
				Unit:           it.Unit,
				ReferenceValue: it.ReferenceValue,
			}
			if err := tx.QueryRow(ctx,
				`INSERT INTO lab_report_items (report_id, item_name, result, unit, reference_value)
				 VALUES ($1, $2, $3, $4, $5)
				 RETURNING id`,
				report.ID, it.ItemName, it.Result, it.Unit, it.ReferenceValue,
			).Scan(&item.ID); err != nil {
				return apperr.Wrap(apperr.Internal, err, "inserting lab report item")
			}
			report.Items = append(report.Items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// FindWithItems loads one report plus its ordered items.
func (s *ReportStore) FindWithItems(ctx context.Context, id int64) (*model.LabReport, error) {
	r := &model.LabReport{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, patient, report_time, doctor, hospital, report_image, created_at
		 FROM lab_reports WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.WorkspaceID, &r.Patient, &r.ReportTime, &r.Doctor, &r.Hospital, &r.ReportImage, &r.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "lab report not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "fetching lab report")
	}

	items, err := s.itemsFor(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	r.Items = items
	return r, nil
}

func (s *ReportStore) itemsFor(ctx context.Context, reportID int64) ([]*model.LabReportItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, report_id, item_name, result, unit, reference_value
		 FROM lab_report_items WHERE report_id = $1 ORDER BY id ASC`,
		reportID,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "fetching lab report items")
	}
	defer rows.Close()

	var items []*model.LabReportItem
	for rows.Next() {
		it := &model.LabReportItem{}
		if err := rows.Scan(&it.ID, &it.ReportID, &it.ItemName, &it.Result, &it.Unit, &it.ReferenceValue); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "scanning lab report item")
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// FindByWorkspace lists reports for a workspace, newest first, without
// items (the list endpoint; items are fetched per-report on demand).
func (s *ReportStore) FindByWorkspace(ctx context.Context, workspaceID int64, limit, offset int) ([]*model.LabReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, patient, report_time, doctor, hospital, report_image, created_at
		 FROM lab_reports
		 WHERE workspace_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "listing workspace reports")
	}
	defer rows.Close()

	var reports []*model.LabReport
	for rows.Next() {
		r := &model.LabReport{}
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Patient, &r.ReportTime, &r.Doctor, &r.Hospital, &r.ReportImage, &r.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "scanning lab report")
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// AllSentinel is the "no filter, select everything in scope" value
// accepted by SearchFilter.Patients and SearchFilter.ItemNames
// (spec.md §4.F).
const AllSentinel = "all"

// SearchFilter narrows SearchByPatientsItemsAndDateRange; zero values
// are treated as "no constraint" on that field.
type SearchFilter struct {
	WorkspaceID int64
	Patients    []string
	ItemNames   []string
	From, To    time.Time
	Limit       int
	Offset      int
}

// isAllSentinel reports whether set is exactly ["all"].
func isAllSentinel(set []string) bool {
	return len(set) == 1 && set[0] == AllSentinel
}

// SearchByPatientsItemsAndDateRange implements the §4.F/§6 search
// endpoint: reports in one workspace, optionally narrowed by patient
// name, by item name (via a join against lab_report_items), and by
// reportTime range. It returns the matching page plus the total
// matching count (ignoring Limit/Offset) for the caller's pagination
// envelope.
//
// Patients/ItemNames: empty/nil or ["all"] means no filter on that
// dimension; any other non-empty set is an exact-match filter. The
// returned reports' Items collection is populated according to
// ItemNames: omitted when empty/nil, every item when ["all"], and
// only the matching items otherwise.
func (s *ReportStore) SearchByPatientsItemsAndDateRange(ctx context.Context, f SearchFilter) ([]*model.LabReport, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	patientsFiltered := len(f.Patients) > 0 && !isAllSentinel(f.Patients)
	itemsFiltered := len(f.ItemNames) > 0 && !isAllSentinel(f.ItemNames)

	buildWhere := func() (string, []any, bool) {
		args := []any{f.WorkspaceID}
		where := []string{"r.workspace_id = $1"}
		argN := 2
		needsJoin := itemsFiltered

		if itemsFiltered {
			where = append(where, placeholder("i.item_name = ANY(", argN, ")"))
			args = append(args, f.ItemNames)
			argN++
		}
		if patientsFiltered {
			where = append(where, placeholder("r.patient = ANY(", argN, ")"))
			args = append(args, f.Patients)
			argN++
		}
		if !f.From.IsZero() {
			where = append(where, placeholder("r.report_time >= ", argN, ""))
			args = append(args, f.From)
			argN++
		}
		if !f.To.IsZero() {
			where = append(where, placeholder("r.report_time <= ", argN, ""))
			args = append(args, f.To)
			argN++
		}
		return joinAnd(where), args, needsJoin
	}

	where, args, needsJoin := buildWhere()
	countQuery := "SELECT COUNT(DISTINCT r.id) FROM lab_reports r"
	if needsJoin {
		countQuery += " JOIN lab_report_items i ON i.report_id = r.id"
	}
	countQuery += " WHERE " + where

	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.Internal, err, "counting searched lab reports")
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := `SELECT DISTINCT r.id, r.workspace_id, r.patient, r.report_time, r.doctor, r.hospital, r.report_image, r.created_at
		FROM lab_reports r`
	if needsJoin {
		query += ` JOIN lab_report_items i ON i.report_id = r.id`
	}
	argN := len(args) + 1
	query += " WHERE " + where
	query += " ORDER BY r.report_time DESC"
	query += placeholder(" LIMIT ", argN, "")
	args = append(args, limit)
	argN++
	query += placeholder(" OFFSET ", argN, "")
	args = append(args, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Internal, err, "searching lab reports")
	}
	defer rows.Close()

	var reports []*model.LabReport
	for rows.Next() {
		r := &model.LabReport{}
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Patient, &r.ReportTime, &r.Doctor, &r.Hospital, &r.ReportImage, &r.CreatedAt); err != nil {
			return nil, 0, apperr.Wrap(apperr.Internal, err, "scanning searched lab report")
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	switch {
	case len(f.ItemNames) == 0:
		// omit the items collection
	case isAllSentinel(f.ItemNames):
		for _, r := range reports {
			items, err := s.itemsFor(ctx, r.ID)
			if err != nil {
				return nil, 0, err
			}
			r.Items = items
		}
	default:
		for _, r := range reports {
			items, err := s.itemsForNames(ctx, r.ID, f.ItemNames)
			if err != nil {
				return nil, 0, err
			}
			r.Items = items
		}
	}

	return reports, total, nil
}

func (s *ReportStore) itemsForNames(ctx context.Context, reportID int64, names []string) ([]*model.LabReportItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, report_id, item_name, result, unit, reference_value
		 FROM lab_report_items WHERE report_id = $1 AND item_name = ANY($2) ORDER BY id ASC`,
		reportID, names,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "fetching filtered lab report items")
	}
	defer rows.Close()

	var items []*model.LabReportItem
	for rows.Next() {
		it := &model.LabReportItem{}
		if err := rows.Scan(&it.ID, &it.ReportID, &it.ItemName, &it.Result, &it.Unit, &it.ReferenceValue); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "scanning filtered lab report item")
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func placeholder(prefix string, n int, suffix string) string {
	return prefix + "$" + itoa(n) + suffix
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func joinAnd(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " AND "
		}
		out += p
	}
	return out
}

// UpdateItem edits the editable fields of one lab report item
// (spec.md §4.F "at least one field must be present"). A nil pointer
// field leaves that column untouched; a patch with every field nil is
// rejected rather than silently no-op'd.
func (s *ReportStore) UpdateItem(ctx context.Context, id int64, itemName *string, result *string, unit *string, referenceValue *string) (*model.LabReportItem, error) {
	if itemName == nil && result == nil && unit == nil && referenceValue == nil {
		return nil, apperr.Validationf("at least one field must be present")
	}
	if itemName != nil && (*itemName == "" || len(*itemName) > model.MaxItemNameLen) {
		return nil, apperr.Validationf("itemName must be 1..%d chars", model.MaxItemNameLen)
	}
	if result != nil && len(*result) > model.MaxResultLen {
		return nil, apperr.Validationf("result exceeds %d chars", model.MaxResultLen)
	}
	if unit != nil && len(*unit) > model.MaxUnitLen {
		return nil, apperr.Validationf("unit exceeds %d chars", model.MaxUnitLen)
	}
	if referenceValue != nil && len(*referenceValue) > model.MaxReferenceValueLen {
		return nil, apperr.Validationf("referenceValue exceeds %d chars", model.MaxReferenceValueLen)
	}

	item := &model.LabReportItem{}
	err := s.pool.QueryRow(ctx,
		`UPDATE lab_report_items SET
			item_name = COALESCE($2, item_name),
			result = COALESCE($3, result),
			unit = COALESCE($4, unit),
			reference_value = COALESCE($5, reference_value)
		 WHERE id = $1
		 RETURNING id, report_id, item_name, result, unit, reference_value`,
		id, itemName, result, unit, referenceValue,
	).Scan(&item.ID, &item.ReportID, &item.ItemName, &item.Result, &item.Unit, &item.ReferenceValue)
	if err == pgx.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "lab report item not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "updating lab report item")
	}
	return item, nil
}

// OwnerOfReport returns the owning user id for a report's workspace.
func (s *ReportStore) OwnerOfReport(ctx context.Context, reportID int64) (int64, error) {
	var ownerID int64
	err := s.pool.QueryRow(ctx,
		`SELECT w.owner_id FROM lab_reports r JOIN workspaces w ON w.id = r.workspace_id WHERE r.id = $1`,
		reportID,
	).Scan(&ownerID)
	if err == pgx.ErrNoRows {
		return 0, apperr.New(apperr.NotFound, "lab report not found")
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "fetching report owner")
	}
	return ownerID, nil
}

// OwnerOfItem returns the owning user id for an item's report's workspace.
func (s *ReportStore) OwnerOfItem(ctx context.Context, itemID int64) (int64, error) {
	var ownerID int64
	err := s.pool.QueryRow(ctx,
		`SELECT w.owner_id
		 FROM lab_report_items i
		 JOIN lab_reports r ON r.id = i.report_id
		 JOIN workspaces w ON w.id = r.workspace_id
		 WHERE i.id = $1`,
		itemID,
	).Scan(&ownerID)
	if err == pgx.ErrNoRows {
		return 0, apperr.New(apperr.NotFound, "lab report item not found")
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "fetching item owner")
	}
	return ownerID, nil
}
