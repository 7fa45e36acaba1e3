/**
 * @description
 * Handlers for role administration. Grants and revocations go through
 * AccessControl, which enforces that only admins may change the role table.
 */
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oiiaimeow/Reclaim/internal/domain"
)

type roleRequest struct {
	Account string `json:"account"`
	Role    string `json:"role"`
}

// GrantRoleHandler grants a role to an account. Caller must be an admin.
func (h *Handlers) GrantRoleHandler(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, true)
}

// RevokeRoleHandler revokes a role from an account. Caller must be an admin.
func (h *Handlers) RevokeRoleHandler(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, false)
}

func (h *Handlers) changeRole(w http.ResponseWriter, r *http.Request, grant bool) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !h.decode(w, r, &req) {
		return
	}

	var err error
	switch domain.Role(req.Role) {
	case domain.RoleAdmin:
		if !grant {
			h.writeError(w, http.StatusBadRequest, "Admin role cannot be revoked")
			return
		}
		err = h.access.GrantAdminRole(r.Context(), caller, req.Account)
	case domain.RoleManager:
		if grant {
			err = h.access.GrantManagerRole(r.Context(), caller, req.Account)
		} else {
			err = h.access.RevokeManagerRole(r.Context(), caller, req.Account)
		}
	case domain.RoleOperator:
		if grant {
			err = h.access.GrantOperatorRole(r.Context(), caller, req.Account)
		} else {
			err = h.access.RevokeOperatorRole(r.Context(), caller, req.Account)
		}
	case domain.RolePauser:
		if grant {
			err = h.access.GrantPauserRole(r.Context(), caller, req.Account)
		} else {
			err = h.access.RevokePauserRole(r.Context(), caller, req.Account)
		}
	default:
		h.writeError(w, http.StatusBadRequest, "Unknown role")
		return
	}
	if err != nil {
		h.writeEngineError(w, "role_change", err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// GetRolesHandler returns the role flags for an account.
func (h *Handlers) GetRolesHandler(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	ctx := r.Context()

	isAdmin, err := h.access.IsAdmin(ctx, account)
	if err != nil {
		h.writeEngineError(w, "roles_get", err)
		return
	}
	isManager, err := h.access.IsManager(ctx, account)
	if err != nil {
		h.writeEngineError(w, "roles_get", err)
		return
	}
	isOperator, err := h.access.IsOperator(ctx, account)
	if err != nil {
		h.writeEngineError(w, "roles_get", err)
		return
	}
	isPauser, err := h.access.IsPauser(ctx, account)
	if err != nil {
		h.writeEngineError(w, "roles_get", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{
		"admin":    isAdmin,
		"manager":  isManager,
		"operator": isOperator,
		"pauser":   isPauser,
	})
}
