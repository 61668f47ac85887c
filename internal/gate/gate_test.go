package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/auth"
)

const gateSecret = "gate-test-secret"

type stubBlocked struct {
	blocked map[string]bool
	err     error
	calls   int
}

func (s *stubBlocked) IsBlocked(_ context.Context, userID string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.blocked[userID], nil
}

func accessToken(t *testing.T, userID, role string, perms []string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":     userID,
		"type":        auth.TokenTypeAccess,
		"role":        role,
		"permissions": perms,
		"exp":         time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(gateSecret))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

func newTestGate(blocked *stubBlocked) *Gate {
	return New(auth.NewValidator(gateSecret), blocked, zerolog.Nop())
}

func TestAuthorizeSuccess(t *testing.T) {
	g := newTestGate(&stubBlocked{})
	tok := accessToken(t, "u1", "Teacher", []string{"course:add"})

	cred, denied := g.Authorize(context.Background(), "u1", tok, "course:add")
	if denied != nil {
		t.Fatalf("expected success, denied: %v", denied)
	}
	if cred.SubjectID != "u1" {
		t.Errorf("subject = %q, want u1", cred.SubjectID)
	}
}

func TestAuthorizeBadToken(t *testing.T) {
	g := newTestGate(&stubBlocked{})

	cred, denied := g.Authorize(context.Background(), "u1", "not-a-token", "")
	if cred != nil || denied == nil {
		t.Fatal("expected denial")
	}
	if denied.Reason != DenyUnauthenticated {
		t.Errorf("reason = %d, want DenyUnauthenticated", denied.Reason)
	}
}

func TestAuthorizeBlockedBeatsCapability(t *testing.T) {
	// A blocked caller is refused even with a valid token and the
	// required capability.
	store := &stubBlocked{blocked: map[string]bool{"u1": true}}
	g := newTestGate(store)
	tok := accessToken(t, "u1", "Teacher", []string{"course:add"})

	cred, denied := g.Authorize(context.Background(), "u1", tok, "course:add")
	if cred != nil || denied == nil {
		t.Fatal("expected denial")
	}
	if denied.Reason != DenyBlocked {
		t.Errorf("reason = %d, want DenyBlocked", denied.Reason)
	}
}

func TestAuthorizeBlockedLookupFailureDenies(t *testing.T) {
	store := &stubBlocked{err: errors.New("storage down")}
	g := newTestGate(store)
	tok := accessToken(t, "u1", "Teacher", nil)

	cred, denied := g.Authorize(context.Background(), "u1", tok, "")
	if cred != nil || denied == nil {
		t.Fatal("expected denial when the flag is unreadable")
	}
	// Still a refusal, but distinguishable from an actually blocked
	// account.
	if denied.Reason != DenyStorageUnavailable {
		t.Errorf("reason = %d, want DenyStorageUnavailable", denied.Reason)
	}
	if denied.Cause == nil {
		t.Error("expected the lookup error as cause")
	}
}

func TestAuthorizeMissingCapability(t *testing.T) {
	g := newTestGate(&stubBlocked{})
	tok := accessToken(t, "u1", "Student", []string{"attempt:create:self"})

	_, denied := g.Authorize(context.Background(), "u1", tok, "course:add")
	if denied == nil || denied.Reason != DenyForbidden {
		t.Fatalf("expected DenyForbidden, got %v", denied)
	}
}

func TestAuthorizeEmptyCapabilitySkipsCheck(t *testing.T) {
	g := newTestGate(&stubBlocked{})
	tok := accessToken(t, "u1", "Student", nil)

	cred, denied := g.Authorize(context.Background(), "u1", tok, "")
	if denied != nil {
		t.Fatalf("expected success, denied: %v", denied)
	}
	if cred == nil {
		t.Fatal("expected credential")
	}
}

func TestAuthorizeAdminBypassesCapability(t *testing.T) {
	g := newTestGate(&stubBlocked{})
	tok := accessToken(t, "root", auth.RoleAdmin, nil)

	_, denied := g.Authorize(context.Background(), "root", tok, "quest:del:self")
	if denied != nil {
		t.Fatalf("Admin must pass any capability check, denied: %v", denied)
	}
}

func TestAuthorizeSkipsBlockedLookupOnBadToken(t *testing.T) {
	store := &stubBlocked{}
	g := newTestGate(store)

	g.Authorize(context.Background(), "u1", "", "")
	if store.calls != 0 {
		t.Errorf("blocked store consulted %d times for an unauthenticated caller", store.calls)
	}
}
