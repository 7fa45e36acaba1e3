/**
 * @description
 * Handlers for the vault endpoints: deposits, withdrawals, manager
 * authorization and the lock/unlock operations managers use to earmark
 * subscriber funds.
 */
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type vaultMovementRequest struct {
	Token  string `json:"token"`
	Amount int64  `json:"amount"`
}

type vaultLockRequest struct {
	Owner  string `json:"owner"`
	Token  string `json:"token"`
	Amount int64  `json:"amount"`
}

type setManagerRequest struct {
	Manager    string `json:"manager"`
	Authorized bool   `json:"authorized"`
}

// DepositHandler moves tokens from the caller's wallet into vault custody.
func (h *Handlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req vaultMovementRequest
	if !h.decode(w, r, &req) {
		return
	}

	acct, err := h.vault.Deposit(r.Context(), caller, req.Token, req.Amount)
	if err != nil {
		h.writeEngineError(w, "vault_deposit", err)
		return
	}
	h.writeJSON(w, http.StatusOK, acct)
}

// WithdrawHandler returns available funds from custody to the caller.
func (h *Handlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req vaultMovementRequest
	if !h.decode(w, r, &req) {
		return
	}

	acct, err := h.vault.Withdraw(r.Context(), caller, req.Token, req.Amount)
	if err != nil {
		h.writeEngineError(w, "vault_withdraw", err)
		return
	}
	h.writeJSON(w, http.StatusOK, acct)
}

// SetManagerHandler toggles a manager's lock/unlock permission. Owner-only.
func (h *Handlers) SetManagerHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req setManagerRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.vault.SetAuthorizedManager(r.Context(), caller, req.Manager, req.Authorized); err != nil {
		h.writeEngineError(w, "vault_set_manager", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"authorized": req.Authorized})
}

// LockFundsHandler earmarks part of an owner's available balance.
func (h *Handlers) LockFundsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req vaultLockRequest
	if !h.decode(w, r, &req) {
		return
	}

	acct, err := h.vault.LockFunds(r.Context(), caller, req.Owner, req.Token, req.Amount)
	if err != nil {
		h.writeEngineError(w, "vault_lock", err)
		return
	}
	h.writeJSON(w, http.StatusOK, acct)
}

// UnlockFundsHandler releases previously locked funds.
func (h *Handlers) UnlockFundsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req vaultLockRequest
	if !h.decode(w, r, &req) {
		return
	}

	acct, err := h.vault.UnlockFunds(r.Context(), caller, req.Owner, req.Token, req.Amount)
	if err != nil {
		h.writeEngineError(w, "vault_unlock", err)
		return
	}
	h.writeJSON(w, http.StatusOK, acct)
}

// GetVaultAccountHandler returns the balance record for (owner, token).
func (h *Handlers) GetVaultAccountHandler(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	token := chi.URLParam(r, "token")

	acct, err := h.vault.GetAccount(r.Context(), owner, token)
	if err != nil {
		h.writeEngineError(w, "vault_account", err)
		return
	}
	h.writeJSON(w, http.StatusOK, acct)
}
