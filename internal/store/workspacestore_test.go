package store

import (
	"context"
	"testing"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
)

func TestWorkspaceCreateValidation(t *testing.T) {
	s := NewWorkspaceStore(nil, nil)
	_, err := s.Create(context.Background(), 1, "")
	if err == nil || apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("expected Validation kind for empty name, got %v", err)
	}
}
