// Package auth issues and verifies the bearer tokens that gate every
// REST and websocket endpoint (spec.md §5), and hashes passwords for
// the user store.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
	"github.com/baihao/MedTest-Backend-sub000/internal/model"
	"github.com/baihao/MedTest-Backend-sub000/internal/store"
)

// TokenTTL is how long an issued bearer token remains valid.
const TokenTTL = 24 * time.Hour

// claims is the JWT payload: subject is the user id.
type claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Service issues and verifies tokens and authenticates login requests.
type Service struct {
	secretKey []byte
	users     *store.UserStore
}

// New builds a Service. secretKey signs and verifies every token; it
// must stay stable across process restarts or all outstanding tokens
// are invalidated.
func New(secretKey string, users *store.UserStore) *Service {
	return &Service{secretKey: []byte(secretKey), users: users}
}

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(plaintext string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "hashing password")
	}
	return string(h), nil
}

// Issue mints a signed bearer token for user.
func (s *Service) Issue(user *model.User) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
		Username: user.Username,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(s.secretKey)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "signing token")
	}
	return signed, nil
}

// Verify parses and validates a bearer token, returning the user id it
// was issued for.
func (s *Service) Verify(tokenString string) (int64, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.New(apperr.Unauthenticated, "unexpected signing method")
		}
		return s.secretKey, nil
	})
	if err != nil || !tok.Valid {
		return 0, apperr.New(apperr.Unauthenticated, "invalid or expired token")
	}
	id, ok := atoi(c.Subject)
	if !ok {
		return 0, apperr.New(apperr.Unauthenticated, "malformed token subject")
	}
	return id, nil
}

// Login validates a username/password pair against the user store,
// auto-creating the account on first login per spec.md §5's
// "register-on-first-login" note, and returns a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	if len(username) < model.MinUsernameLen {
		return "", nil, apperr.Validationf("username must be at least %d chars", model.MinUsernameLen)
	}
	if password == "" {
		return "", nil, apperr.Validationf("password must not be empty")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if apperr.KindOf(err) == apperr.NotFound {
		hash, herr := HashPassword(password)
		if herr != nil {
			return "", nil, herr
		}
		user, err = s.users.Create(ctx, username, hash)
		if err != nil {
			return "", nil, err
		}
	} else if err != nil {
		return "", nil, err
	} else if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, apperr.New(apperr.Unauthenticated, "invalid credentials")
	}

	tok, err := s.Issue(user)
	if err != nil {
		return "", nil, err
	}
	return tok, user, nil
}

func itoa(id int64) string {
	if id == 0 {
		return "0"
	}
	neg := id < 0
	if neg {
		id = -id
	}
	var buf [20]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = byte('0' + id%10)
		id /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func atoi(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}
