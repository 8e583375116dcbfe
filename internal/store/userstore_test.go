package store

import (
	"context"
	"strings"
	"testing"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
)

func TestUserCreateValidation(t *testing.T) {
	s := NewUserStore(nil, nil)

	cases := []struct {
		name     string
		username string
	}{
		{"too short", "ab"},
		{"too long", strings.Repeat("a", 51)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Create(context.Background(), tc.username, "hash")
			if err == nil || apperr.KindOf(err) != apperr.Validation {
				t.Fatalf("expected Validation kind, got %v", err)
			}
		})
	}
}
