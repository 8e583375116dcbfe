package auth

import (
	"testing"

	"github.com/baihao/MedTest-Backend-sub000/internal/model"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	s := New("test-secret", nil)
	user := &model.User{ID: 42, Username: "alice"}

	tok, err := s.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	id, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id != user.ID {
		t.Fatalf("expected id %d, got %d", user.ID, id)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := New("secret-a", nil)
	verifier := New("secret-b", nil)

	tok, err := issuer.Issue(&model.User{ID: 1, Username: "bob"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(tok); err == nil {
		t.Fatalf("expected verification to fail with mismatched secret")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	s := New("secret", nil)
	if _, err := s.Verify("not-a-jwt"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2" || hash == "" {
		t.Fatalf("expected a real bcrypt hash, got %q", hash)
	}
}

func TestAtoiItoaRoundTrip(t *testing.T) {
	for _, id := range []int64{0, 1, 42, 123456789} {
		s := itoa(id)
		got, ok := atoi(s)
		if !ok || got != id {
			t.Fatalf("round trip failed for %d: got %d, ok=%v", id, got, ok)
		}
	}
}
