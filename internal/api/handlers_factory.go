/**
 * @description
 * Handlers for the factory endpoints: provisioning payment-manager
 * instances and the owner's fee administration.
 */
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type deployManagerRequest struct {
	Value int64 `json:"value"`
}

type setFeeRequest struct {
	Fee int64 `json:"fee"`
}

type setProtocolFeeRequest struct {
	Bps int64 `json:"bps"`
}

// DeployManagerHandler provisions a payment-manager instance for the caller.
func (h *Handlers) DeployManagerHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req deployManagerRequest
	if !h.decode(w, r, &req) {
		return
	}

	dep, err := h.factory.DeployPaymentManager(r.Context(), caller, req.Value)
	if err != nil {
		h.writeEngineError(w, "factory_deploy", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, dep)
}

// SetDeploymentFeeHandler changes the provisioning fee. Owner-only.
func (h *Handlers) SetDeploymentFeeHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req setFeeRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.factory.SetDeploymentFee(r.Context(), caller, req.Fee); err != nil {
		h.writeEngineError(w, "factory_set_fee", err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// SetProtocolFeeHandler changes the protocol fee in basis points. Owner-only.
func (h *Handlers) SetProtocolFeeHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req setProtocolFeeRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.factory.SetProtocolFeePercentage(r.Context(), caller, req.Bps); err != nil {
		h.writeEngineError(w, "factory_set_protocol_fee", err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// WithdrawFeesHandler pays accrued fees out to the owner. Owner-only.
func (h *Handlers) WithdrawFeesHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	amount, err := h.factory.WithdrawFees(r.Context(), caller)
	if err != nil {
		h.writeEngineError(w, "factory_withdraw_fees", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"amount": amount})
}

// GetFactoryStateHandler returns fee settings and the manager count.
func (h *Handlers) GetFactoryStateHandler(w http.ResponseWriter, r *http.Request) {
	state, err := h.factory.GetState(r.Context())
	if err != nil {
		h.writeEngineError(w, "factory_state", err)
		return
	}
	count, err := h.factory.GetManagerCount(r.Context())
	if err != nil {
		h.writeEngineError(w, "factory_state", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"deployment_fee":   state.DeploymentFee,
		"protocol_fee_bps": state.ProtocolFeeBps,
		"collected_fees":   state.CollectedFees,
		"manager_count":    count,
	})
}

// ListManagersHandler returns every manager deployment.
func (h *Handlers) ListManagersHandler(w http.ResponseWriter, r *http.Request) {
	managers, err := h.factory.GetAllManagers(r.Context())
	if err != nil {
		h.writeEngineError(w, "factory_list", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"managers": managers})
}

// ListCreatorManagersHandler returns one creator's deployments.
func (h *Handlers) ListCreatorManagersHandler(w http.ResponseWriter, r *http.Request) {
	creator := chi.URLParam(r, "creator")

	managers, err := h.factory.GetCreatorManagers(r.Context(), creator)
	if err != nil {
		h.writeEngineError(w, "factory_list_creator", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"managers": managers})
}
