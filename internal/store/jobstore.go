// Package store is the single facade onto the relational schema
// (internal/dbschema): JobStore, ReportStore, WorkspaceStore and
// UserStore each expose typed methods and are the only callers that
// know table names, per spec.md §9's "one store facade" design note.
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

// maxReserveRetries bounds the contention-retry loop in ReserveAndTake
// (spec.md §4.A "Contention policy").
const maxReserveRetries = 5

// ErrContention is returned by ReserveAndTake when the retry budget is
// exhausted; callers surface it as apperr.Internal per spec.md §7.
var ErrContention = apperr.New(apperr.Internal, "job store: reservation contention, retries exhausted")

// JobStore is the reservation-based queue for OcrJob rows (spec.md §4.A).
type JobStore struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewJobStore constructs a JobStore over pool.
func NewJobStore(pool *pgxpool.Pool, log *logrus.Logger) *JobStore {
	return &JobStore{pool: pool, log: log}
}

// NewItem is one element of an InsertBatch request.
type NewItem struct {
	Image   string
	OCRText string
}

// InsertBatch validates and inserts up to model.MaxBatchInsert jobs
// atomically: the caller must own workspaceID, and every item must
// carry non-empty fields, or nothing is inserted.
func (s *JobStore) InsertBatch(ctx context.Context, workspaceID, ownerID int64, items []NewItem) ([]*model.OcrJob, error) {
	if len(items) == 0 {
		return nil, apperr.Validationf("ocr batch must not be empty")
	}
	if len(items) > model.MaxBatchInsert {
		return nil, apperr.Validationf("ocr batch exceeds max of %d", model.MaxBatchInsert)
	}
	for i, it := range items {
		if it.Image == "" || it.OCRText == "" {
			return nil, apperr.Validationf("item %d: image and ocrPrimitive must be non-empty", i)
		}
	}

	var jobs []*model.OcrJob
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var owns bool
		if err := tx.QueryRow(ctx,
			`SELECT true FROM workspaces WHERE id = $1 AND owner_id = $2`,
			workspaceID, ownerID,
		).Scan(&owns); err != nil {
			if err == pgx.ErrNoRows {
				return apperr.New(apperr.Forbidden, "workspace not owned by caller")
			}
			return apperr.Wrap(apperr.Internal, err, "checking workspace ownership")
		}

		jobs = make([]*model.OcrJob, 0, len(items))
		for _, it := range items {
			job := &model.OcrJob{WorkspaceID: workspaceID, Image: it.Image, OCRText: it.OCRText}
			if err := tx.QueryRow(ctx,
				`INSERT INTO ocr_data (workspace_id, report_image, ocr_primitive)
				 VALUES ($1, $2, $3)
				 RETURNING id, created_at`,
				workspaceID, it.Image, it.OCRText,
			).Scan(&job.ID, &job.CreatedAt); err != nil {
				return apperr.Wrap(apperr.Internal, err, "inserting ocr job")
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ReserveAndTake atomically reserves up to n available jobs in
// ascending createdAt order and returns their snapshots. It retries a
// bounded number of times on contention (a concurrent reserver or a
// client hardDelete racing the same rows) before surfacing
// ErrContention.
func (s *JobStore) ReserveAndTake(ctx context.Context, n int) ([]*model.OcrJob, error) {
	if n <= 0 {
		return nil, nil
	}
	var lastErr error
	for attempt := 0; attempt < maxReserveRetries; attempt++ {
		jobs, ok, err := s.tryReserve(ctx, n)
		if err != nil {
			return nil, err
		}
		if ok {
			return jobs, nil
		}
		lastErr = ErrContention
		s.log.WithField("attempt", attempt+1).Debug("job store: reservation contention, retrying")
	}
	if lastErr == nil {
		lastErr = ErrContention
	}
	return nil, lastErr
}

// tryReserve performs one select-then-update-where-still-available
// pass. ok is false when the update touched fewer rows than selected,
// meaning a concurrent reserver or hard-delete won the race.
func (s *JobStore) tryReserve(ctx context.Context, n int) ([]*model.OcrJob, bool, error) {
	var jobs []*model.OcrJob
	ok := true

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id FROM ocr_data
			 WHERE reserved_at IS NULL
			 ORDER BY created_at ASC
			 LIMIT $1
			 FOR UPDATE SKIP LOCKED`,
			n,
		)
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "selecting available jobs")
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return apperr.Wrap(apperr.Internal, err, "scanning available job id")
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return apperr.Wrap(apperr.Internal, err, "iterating available jobs")
		}
		if len(ids) == 0 {
			jobs = nil
			return nil
		}

		updRows, err := tx.Query(ctx,
			`UPDATE ocr_data SET reserved_at = now()
			 WHERE id = ANY($1) AND reserved_at IS NULL
			 RETURNING id, workspace_id, report_image, ocr_primitive, created_at, reserved_at`,
			ids,
		)
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "reserving jobs")
		}
		defer updRows.Close()
		for updRows.Next() {
			j := &model.OcrJob{}
			if err := updRows.Scan(&j.ID, &j.WorkspaceID, &j.Image, &j.OCRText, &j.CreatedAt, &j.ReservedAt); err != nil {
				return apperr.Wrap(apperr.Internal, err, "scanning reserved job")
			}
			jobs = append(jobs, j)
		}
		if err := updRows.Err(); err != nil {
			return apperr.Wrap(apperr.Internal, err, "iterating reserved jobs")
		}

		if len(jobs) != len(ids) {
			// Contention: roll back by returning an error, retry at a higher level.
			ok = false
			return errContentionRollback
		}
		return nil
	})
	if err == errContentionRollback {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return jobs, ok, nil
}

// errContentionRollback is a sentinel used only to abort the
// transaction from within tryReserve; it never escapes this file.
var errContentionRollback = apperr.New(apperr.Internal, "job store: contention rollback")

// Exists reports whether the job row is still present, reserved or not.
func (s *JobStore) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ocr_data WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, apperr.Wrap(apperr.Internal, err, "checking job existence")
	}
	return exists, nil
}

// Restore clears the reservation marker. It is a no-op, not an error,
// if the row no longer exists (idempotent, per spec.md §8).
func (s *JobStore) Restore(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE ocr_data SET reserved_at = NULL WHERE id = $1`, id)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "restoring job")
	}
	return nil
}

// RestoreStale clears the reservation marker on every job reserved
// longer than olderThan ago with no commit. It backstops an
// orchestrator crash mid-extraction, which leaves a reservation
// standing forever since the in-process restore-on-error path never
// runs; cmd/server schedules this via cron/v3 (spec.md §8
// invariant 1, crash case).
func (s *JobStore) RestoreStale(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ocr_data SET reserved_at = NULL
		 WHERE reserved_at IS NOT NULL AND reserved_at < now() - make_interval(secs => $1)`,
		olderThan.Seconds(),
	)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "restoring stale reservations")
	}
	return int(tag.RowsAffected()), nil
}

// HardDelete removes rows regardless of reservation state and returns
// the count actually removed. This is the client-facing cancellation
// primitive: it makes any in-flight extraction's commit a no-op.
func (s *JobStore) HardDelete(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM ocr_data WHERE id = ANY($1)`, dedupe(ids))
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "hard-deleting jobs")
	}
	return int(tag.RowsAffected()), nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Stats is the queue depth summary from spec.md §4.A.
type Stats struct {
	Available int64
	InFlight  int64
}

// Stats reports the count of available vs. reserved jobs.
func (s *JobStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE reserved_at IS NULL),
			COUNT(*) FILTER (WHERE reserved_at IS NOT NULL)
		 FROM ocr_data`,
	).Scan(&st.Available, &st.InFlight)
	if err != nil {
		return Stats{}, apperr.Wrap(apperr.Internal, err, "computing job store stats")
	}
	return st, nil
}

// ListByWorkspace lists jobs still visible to the client (available,
// not reserved) for one workspace, newest-last, honoring limit/offset
// from the §6 GET /ocrdata/workspace/:workspaceId endpoint.
func (s *JobStore) ListByWorkspace(ctx context.Context, workspaceID int64, limit, offset int) ([]*model.OcrJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, report_image, ocr_primitive, created_at, reserved_at
		 FROM ocr_data
		 WHERE workspace_id = $1 AND reserved_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "listing workspace jobs")
	}
	defer rows.Close()

	var jobs []*model.OcrJob
	for rows.Next() {
		j := &model.OcrJob{}
		if err := rows.Scan(&j.ID, &j.WorkspaceID, &j.Image, &j.OCRText, &j.CreatedAt, &j.ReservedAt); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "scanning workspace job")
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Get fetches one job by id regardless of reservation state, used by
// GET /ocrdata/:id.
func (s *JobStore) Get(ctx context.Context, id int64) (*model.OcrJob, error) {
	j := &model.OcrJob{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, report_image, ocr_primitive, created_at, reserved_at FROM ocr_data WHERE id = $1`,
		id,
	).Scan(&j.ID, &j.WorkspaceID, &j.Image, &j.OCRText, &j.CreatedAt, &j.ReservedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "ocr job not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "fetching job")
	}
	return j, nil
}

// OwnerOf returns the owning user id for the workspace a job belongs
// to, used by HTTP handlers to enforce ownership on delete.
func (s *JobStore) OwnerOf(ctx context.Context, jobID int64) (int64, error) {
	var ownerID int64
	err := s.pool.QueryRow(ctx,
		`SELECT w.owner_id FROM ocr_data o JOIN workspaces w ON w.id = o.workspace_id WHERE o.id = $1`,
		jobID,
	).Scan(&ownerID)
	if err == pgx.ErrNoRows {
		return 0, apperr.New(apperr.NotFound, "ocr job not found")
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "fetching job owner")
	}
	return ownerID, nil
}
