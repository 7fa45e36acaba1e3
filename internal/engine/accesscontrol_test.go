package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/oiiaimeow/Reclaim/internal/domain"
	"github.com/oiiaimeow/Reclaim/internal/store"
)

func newTestAccessControl(t *testing.T, admin string) (*AccessControl, *recordingPublisher) {
	t.Helper()
	events := &recordingPublisher{}
	ac, err := NewAccessControl(context.Background(), store.NewMemory(), events, testLogger(), admin)
	if err != nil {
		t.Fatalf("failed to create access control: %v", err)
	}
	return ac, events
}

func TestAccessControl_SeedsInitialAdmin(t *testing.T) {
	ac, _ := newTestAccessControl(t, "alice")

	isAdmin, err := ac.IsAdmin(context.Background(), "alice")
	if err != nil {
		t.Fatalf("IsAdmin failed: %v", err)
	}
	if !isAdmin {
		t.Fatal("expected initial admin to hold the admin role")
	}

	isAdmin, err = ac.IsAdmin(context.Background(), "bob")
	if err != nil {
		t.Fatalf("IsAdmin failed: %v", err)
	}
	if isAdmin {
		t.Fatal("expected non-admin account to not hold the admin role")
	}
}

func TestAccessControl_AdminGrantsAndRevokesRoles(t *testing.T) {
	ac, events := newTestAccessControl(t, "alice")
	ctx := context.Background()

	if err := ac.GrantManagerRole(ctx, "alice", "bob"); err != nil {
		t.Fatalf("grant manager failed: %v", err)
	}
	isManager, err := ac.IsManager(ctx, "bob")
	if err != nil {
		t.Fatalf("IsManager failed: %v", err)
	}
	if !isManager {
		t.Fatal("expected bob to hold the manager role after grant")
	}

	if err := ac.RevokeManagerRole(ctx, "alice", "bob"); err != nil {
		t.Fatalf("revoke manager failed: %v", err)
	}
	isManager, err = ac.IsManager(ctx, "bob")
	if err != nil {
		t.Fatalf("IsManager failed: %v", err)
	}
	if isManager {
		t.Fatal("expected bob to lose the manager role after revoke")
	}

	if got := events.count(domain.EventRoleGranted); got != 1 {
		t.Fatalf("expected 1 role_granted event, got %d", got)
	}
	if got := events.count(domain.EventRoleRevoked); got != 1 {
		t.Fatalf("expected 1 role_revoked event, got %d", got)
	}
}

func TestAccessControl_NonAdminCannotGrant(t *testing.T) {
	ac, _ := newTestAccessControl(t, "alice")
	ctx := context.Background()

	err := ac.GrantOperatorRole(ctx, "mallory", "mallory")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	isOperator, err := ac.IsOperator(ctx, "mallory")
	if err != nil {
		t.Fatalf("IsOperator failed: %v", err)
	}
	if isOperator {
		t.Fatal("expected failed grant to leave no role behind")
	}
}

func TestAccessControl_GrantedAdminCanGrantFurther(t *testing.T) {
	ac, _ := newTestAccessControl(t, "alice")
	ctx := context.Background()

	if err := ac.GrantAdminRole(ctx, "alice", "bob"); err != nil {
		t.Fatalf("grant admin failed: %v", err)
	}
	if err := ac.GrantPauserRole(ctx, "bob", "carol"); err != nil {
		t.Fatalf("expected new admin to grant roles, got %v", err)
	}

	isPauser, err := ac.IsPauser(ctx, "carol")
	if err != nil {
		t.Fatalf("IsPauser failed: %v", err)
	}
	if !isPauser {
		t.Fatal("expected carol to hold the pauser role")
	}
}

func TestAccessControl_RepeatedGrantIsIdempotent(t *testing.T) {
	ac, _ := newTestAccessControl(t, "alice")
	ctx := context.Background()

	if err := ac.GrantOperatorRole(ctx, "alice", "bob"); err != nil {
		t.Fatalf("first grant failed: %v", err)
	}
	if err := ac.GrantOperatorRole(ctx, "alice", "bob"); err != nil {
		t.Fatalf("repeated grant failed: %v", err)
	}
	if err := ac.RevokeOperatorRole(ctx, "alice", "bob"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if err := ac.RevokeOperatorRole(ctx, "alice", "bob"); err != nil {
		t.Fatalf("repeated revoke failed: %v", err)
	}

	isOperator, err := ac.IsOperator(ctx, "bob")
	if err != nil {
		t.Fatalf("IsOperator failed: %v", err)
	}
	if isOperator {
		t.Fatal("expected single revoke to fully clear a twice-granted role")
	}
}
