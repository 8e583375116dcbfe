package store

import (
	"context"
	"strings"
	"testing"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
)

// newTestJobStore returns a JobStore with a nil pool: safe only for
// exercising validation paths that return before touching Postgres.
func newTestJobStore() *JobStore {
	return NewJobStore(nil, nil)
}

func TestInsertBatchValidation(t *testing.T) {
	cases := []struct {
		name  string
		items []NewItem
	}{
		{"empty batch", nil},
		{"oversized batch", make([]NewItem, 101)},
		{"blank image", []NewItem{{Image: "", OCRText: "x"}}},
		{"blank ocr text", []NewItem{{Image: "x", OCRText: ""}}},
	}

	s := newTestJobStore()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.InsertBatch(context.Background(), 1, 1, tc.items)
			if err == nil {
				t.Fatalf("expected validation error, got nil")
			}
			if apperr.KindOf(err) != apperr.Validation {
				t.Fatalf("expected Validation kind, got %v", apperr.KindOf(err))
			}
		})
	}
}

func TestReserveAndTakeNonPositive(t *testing.T) {
	s := newTestJobStore()
	jobs, err := s.ReserveAndTake(context.Background(), 0)
	if err != nil || jobs != nil {
		t.Fatalf("expected nil, nil for n<=0, got %v, %v", jobs, err)
	}
}

func TestHardDeleteEmpty(t *testing.T) {
	s := newTestJobStore()
	n, err := s.HardDelete(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("expected 0, nil for empty ids, got %d, %v", n, err)
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]int64{1, 2, 2, 3, 1})
	if len(got) != 3 {
		t.Fatalf("expected 3 unique ids, got %v", got)
	}
	seen := map[int64]bool{}
	for _, id := range got {
		seen[id] = true
	}
	for _, want := range []int64{1, 2, 3} {
		if !seen[want] {
			t.Fatalf("expected %d in deduped output %v", want, got)
		}
	}
}

func TestInsertBatchMaxSizeMessage(t *testing.T) {
	s := newTestJobStore()
	_, err := s.InsertBatch(context.Background(), 1, 1, make([]NewItem, 101))
	if err == nil || !strings.Contains(err.Error(), "exceeds max") {
		t.Fatalf("expected 'exceeds max' message, got %v", err)
	}
}
