package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
	"github.com/baihao/MedTest-Backend-sub000/internal/model"
)

// WorkspaceStore persists Workspace rows (spec.md §4.F).
type WorkspaceStore struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewWorkspaceStore constructs a WorkspaceStore over pool.
func NewWorkspaceStore(pool *pgxpool.Pool, log *logrus.Logger) *WorkspaceStore {
	return &WorkspaceStore{pool: pool, log: log}
}

// Create makes a new workspace owned by ownerID. Names must be unique
// per owner (enforced by the schema's UNIQUE (name, owner_id)).
func (s *WorkspaceStore) Create(ctx context.Context, ownerID int64, name string) (*model.Workspace, error) {
	if name == "" {
		return nil, apperr.Validationf("workspace name must not be empty")
	}
	w := &model.Workspace{OwnerID: ownerID, Name: name}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO workspaces (name, owner_id) VALUES ($1, $2) RETURNING id, created_at`,
		name, ownerID,
	).Scan(&w.ID, &w.CreatedAt)
	if isUniqueViolation(err) {
		return nil, apperr.New(apperr.Conflict, "workspace name already in use")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "creating workspace")
	}
	return w, nil
}

// ListByOwner lists every workspace owned by ownerID.
func (s *WorkspaceStore) ListByOwner(ctx context.Context, ownerID int64) ([]*model.Workspace, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, owner_id, created_at FROM workspaces WHERE owner_id = $1 ORDER BY created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "listing workspaces")
	}
	defer rows.Close()

	var out []*model.Workspace
	for rows.Next() {
		w := &model.Workspace{}
		if err := rows.Scan(&w.ID, &w.Name, &w.OwnerID, &w.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "scanning workspace")
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Get fetches one workspace by id.
func (s *WorkspaceStore) Get(ctx context.Context, id int64) (*model.Workspace, error) {
	w := &model.Workspace{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at FROM workspaces WHERE id = $1`, id,
	).Scan(&w.ID, &w.Name, &w.OwnerID, &w.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "workspace not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "fetching workspace")
	}
	return w, nil
}

// Delete removes a workspace owned by ownerID, cascading to its
// ocr_data and lab_reports rows. It is a no-op error (NotFound) if the
// workspace does not exist or is not owned by ownerID, so callers
// cannot distinguish "missing" from "not yours" (spec.md §7).
func (s *WorkspaceStore) Delete(ctx context.Context, id, ownerID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM workspaces WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "deleting workspace")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "workspace not found")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && pgx.ErrNoRows != err && containsSQLState(err, "23505")
}

func containsSQLState(err error, code string) bool {
	type sqlStater interface{ SQLState() string }
	for err != nil {
		if se, ok := err.(sqlStater); ok {
			return se.SQLState() == code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return false
}
