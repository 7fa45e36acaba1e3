/**
 * @description
 * Handlers for the subscription lifecycle endpoints. The authenticated
 * caller is always the subscriber on creation; processing a due payment is
 * open to any caller since it only ever executes the agreed charge.
 */
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type createSubscriptionRequest struct {
	Creator         string `json:"creator"`
	PaymentToken    string `json:"payment_token"`
	Amount          int64  `json:"amount"`
	IntervalSeconds int64  `json:"interval_seconds"`
}

func (h *Handlers) subscriptionID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid subscription ID")
		return 0, false
	}
	return id, true
}

// CreateSubscriptionHandler opens a subscription and charges the first cycle.
func (h *Handlers) CreateSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req createSubscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}

	sub, err := h.payments.CreateSubscription(r.Context(), caller, req.Creator, req.PaymentToken, req.Amount, req.IntervalSeconds)
	if err != nil {
		h.writeEngineError(w, "subscription_create", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, sub)
}

// ProcessPaymentHandler charges one elapsed cycle of a subscription.
func (h *Handlers) ProcessPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.subscriptionID(w, r)
	if !ok {
		return
	}

	sub, err := h.payments.ProcessPayment(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, "subscription_process", err)
		return
	}
	h.writeJSON(w, http.StatusOK, sub)
}

// CancelSubscriptionHandler deactivates a subscription.
func (h *Handlers) CancelSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.subscriptionID(w, r)
	if !ok {
		return
	}

	if err := h.payments.CancelSubscription(r.Context(), caller, id); err != nil {
		h.writeEngineError(w, "subscription_cancel", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// GetSubscriptionHandler returns one subscription by id.
func (h *Handlers) GetSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.subscriptionID(w, r)
	if !ok {
		return
	}

	sub, err := h.payments.GetSubscription(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, "subscription_get", err)
		return
	}
	h.writeJSON(w, http.StatusOK, sub)
}

// ListCreatorSubscriptionsHandler returns the ids of subscriptions paying a
// creator.
func (h *Handlers) ListCreatorSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	creator := chi.URLParam(r, "creator")

	ids, err := h.payments.GetCreatorSubscriptions(r.Context(), creator)
	if err != nil {
		h.writeEngineError(w, "subscription_list_creator", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"subscription_ids": ids})
}

// ListSubscriberSubscriptionsHandler returns the ids of the caller's
// subscriptions.
func (h *Handlers) ListSubscriberSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	subscriber := chi.URLParam(r, "subscriber")

	ids, err := h.payments.GetSubscriberSubscriptions(r.Context(), subscriber)
	if err != nil {
		h.writeEngineError(w, "subscription_list_subscriber", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"subscription_ids": ids})
}
