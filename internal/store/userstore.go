package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
	"github.com/baihao/MedTest-Backend-sub000/internal/model"
)

// UserStore persists User rows. Password hashing lives in
// internal/auth; this store only moves the hash in and out.
type UserStore struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewUserStore constructs a UserStore over pool.
func NewUserStore(pool *pgxpool.Pool, log *logrus.Logger) *UserStore {
	return &UserStore{pool: pool, log: log}
}

// Create inserts a new user with a pre-hashed password.
func (s *UserStore) Create(ctx context.Context, username, passwordHash string) (*model.User, error) {
	if len(username) < model.MinUsernameLen || len(username) > model.MaxUsernameLen {
		return nil, apperr.Validationf("username must be %d..%d chars", model.MinUsernameLen, model.MaxUsernameLen)
	}
	u := &model.User{Username: username, PasswordHash: passwordHash}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id, created_at`,
		username, passwordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return nil, apperr.New(apperr.Conflict, "username already taken")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "creating user")
	}
	return u, nil
}

// FindByUsername fetches a user by username, for the login flow.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "fetching user")
	}
	return u, nil
}

// Get fetches a user by id.
func (s *UserStore) Get(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "fetching user")
	}
	return u, nil
}
