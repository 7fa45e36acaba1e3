/**
 * @description
 * Role registry consumed by the other engine components for authorization
 * checks. A single admin is designated at construction; only admins may
 * grant or revoke the manager, operator and pauser roles. Grants and
 * revocations are idempotent.
 */
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oiiaimeow/Reclaim/internal/domain"
)

// RoleStore is the persistence slice AccessControl depends on.
type RoleStore interface {
	HasRole(ctx context.Context, account string, role domain.Role) (bool, error)
	SetRole(ctx context.Context, account string, role domain.Role, granted bool) error
}

// AccessControl owns the role table. All mutations are serialized so each
// grant or revoke is a single atomic unit.
type AccessControl struct {
	mu     sync.Mutex
	store  RoleStore
	events Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewAccessControl creates the registry and designates the initial admin.
func NewAccessControl(ctx context.Context, store RoleStore, events Publisher, logger *slog.Logger, admin string) (*AccessControl, error) {
	if admin == "" {
		return nil, errors.New("admin account required")
	}
	if err := store.SetRole(ctx, admin, domain.RoleAdmin, true); err != nil {
		return nil, fmt.Errorf("failed to seed admin role: %w", err)
	}
	return &AccessControl{
		store:  store,
		events: events,
		logger: logger,
		now:    time.Now,
	}, nil
}

// GrantManagerRole grants the manager role. Caller must be an admin.
func (a *AccessControl) GrantManagerRole(ctx context.Context, caller, account string) error {
	return a.setRole(ctx, caller, account, domain.RoleManager, true)
}

// RevokeManagerRole revokes the manager role. Caller must be an admin.
func (a *AccessControl) RevokeManagerRole(ctx context.Context, caller, account string) error {
	return a.setRole(ctx, caller, account, domain.RoleManager, false)
}

// GrantOperatorRole grants the operator role. Caller must be an admin.
func (a *AccessControl) GrantOperatorRole(ctx context.Context, caller, account string) error {
	return a.setRole(ctx, caller, account, domain.RoleOperator, true)
}

// RevokeOperatorRole revokes the operator role. Caller must be an admin.
func (a *AccessControl) RevokeOperatorRole(ctx context.Context, caller, account string) error {
	return a.setRole(ctx, caller, account, domain.RoleOperator, false)
}

// GrantPauserRole grants the pauser role. Caller must be an admin.
func (a *AccessControl) GrantPauserRole(ctx context.Context, caller, account string) error {
	return a.setRole(ctx, caller, account, domain.RolePauser, true)
}

// RevokePauserRole revokes the pauser role. Caller must be an admin.
func (a *AccessControl) RevokePauserRole(ctx context.Context, caller, account string) error {
	return a.setRole(ctx, caller, account, domain.RolePauser, false)
}

// GrantAdminRole extends the admin set. Caller must already be an admin.
func (a *AccessControl) GrantAdminRole(ctx context.Context, caller, account string) error {
	return a.setRole(ctx, caller, account, domain.RoleAdmin, true)
}

func (a *AccessControl) setRole(ctx context.Context, caller, account string, role domain.Role, granted bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	isAdmin, err := a.store.HasRole(ctx, caller, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to check admin role: %w", err)
	}
	if !isAdmin {
		return ErrUnauthorized
	}

	if err := a.store.SetRole(ctx, account, role, granted); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	if granted {
		emit(ctx, a.events, a.logger, domain.EventRoleGranted, domain.RoleGrantedEvent{
			Account:   account,
			Role:      role,
			Timestamp: a.now(),
		})
	} else {
		emit(ctx, a.events, a.logger, domain.EventRoleRevoked, domain.RoleRevokedEvent{
			Account:   account,
			Role:      role,
			Timestamp: a.now(),
		})
	}
	return nil
}

// IsAdmin reports whether the account is an admin.
func (a *AccessControl) IsAdmin(ctx context.Context, account string) (bool, error) {
	return a.store.HasRole(ctx, account, domain.RoleAdmin)
}

// IsManager reports whether the account holds the manager role.
func (a *AccessControl) IsManager(ctx context.Context, account string) (bool, error) {
	return a.store.HasRole(ctx, account, domain.RoleManager)
}

// IsOperator reports whether the account holds the operator role.
func (a *AccessControl) IsOperator(ctx context.Context, account string) (bool, error) {
	return a.store.HasRole(ctx, account, domain.RoleOperator)
}

// IsPauser reports whether the account holds the pauser role.
func (a *AccessControl) IsPauser(ctx context.Context, account string) (bool, error) {
	return a.store.HasRole(ctx, account, domain.RolePauser)
}
