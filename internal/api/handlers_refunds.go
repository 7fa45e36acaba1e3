/**
 * @description
 * Handlers for refund policies and the refund-request lifecycle. A refund
 * request is opened against a subscription; the handler resolves the
 * subscription so the engine receives the charge details it disputes.
 */
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type refundPolicyRequest struct {
	RefundWindowDays uint32 `json:"refund_window_days"`
	RefundPercentage uint32 `json:"refund_percentage"`
}

type requestRefundRequest struct {
	SubscriptionID uint64 `json:"subscription_id"`
}

type processRefundRequest struct {
	Approve bool `json:"approve"`
}

// SetDefaultRefundPolicyHandler replaces the platform-wide policy.
func (h *Handlers) SetDefaultRefundPolicyHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req refundPolicyRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.refunds.SetDefaultRefundPolicy(r.Context(), caller, req.RefundWindowDays, req.RefundPercentage); err != nil {
		h.writeEngineError(w, "refund_policy_default", err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// SetCreatorRefundPolicyHandler registers the caller's own policy override.
func (h *Handlers) SetCreatorRefundPolicyHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req refundPolicyRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.refunds.SetCreatorRefundPolicy(r.Context(), caller, req.RefundWindowDays, req.RefundPercentage); err != nil {
		h.writeEngineError(w, "refund_policy_creator", err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// GetRefundPolicyHandler returns the policy in effect for a creator.
func (h *Handlers) GetRefundPolicyHandler(w http.ResponseWriter, r *http.Request) {
	creator := chi.URLParam(r, "creator")

	policy, err := h.refunds.GetRefundPolicy(r.Context(), creator)
	if err != nil {
		h.writeEngineError(w, "refund_policy_get", err)
		return
	}
	h.writeJSON(w, http.StatusOK, policy)
}

// RequestRefundHandler opens a refund request against a subscription. The
// policy window is measured from the subscription's start time.
func (h *Handlers) RequestRefundHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req requestRefundRequest
	if !h.decode(w, r, &req) {
		return
	}

	sub, err := h.payments.GetSubscription(r.Context(), req.SubscriptionID)
	if err != nil {
		h.writeEngineError(w, "refund_request", err)
		return
	}

	refund, err := h.refunds.RequestRefund(r.Context(), caller, sub.ID,
		sub.Subscriber, sub.Creator, sub.PaymentToken, sub.Amount, sub.StartTime)
	if err != nil {
		h.writeEngineError(w, "refund_request", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, refund)
}

// ProcessRefundHandler approves or rejects a pending refund request.
func (h *Handlers) ProcessRefundHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid refund ID")
		return
	}
	var req processRefundRequest
	if !h.decode(w, r, &req) {
		return
	}

	refund, err := h.refunds.ProcessRefund(r.Context(), caller, id, req.Approve)
	if err != nil {
		h.writeEngineError(w, "refund_process", err)
		return
	}
	h.writeJSON(w, http.StatusOK, refund)
}

// GetRefundRequestHandler returns one refund request by id.
func (h *Handlers) GetRefundRequestHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid refund ID")
		return
	}

	refund, err := h.refunds.GetRefundRequest(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, "refund_get", err)
		return
	}
	h.writeJSON(w, http.StatusOK, refund)
}
