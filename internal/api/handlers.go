/**
 * @description
 * HTTP handlers for the subscription engine's API. Handlers parse requests,
 * resolve the authenticated caller, call into the engine components and map
 * engine sentinel errors onto HTTP statuses. Handlers for each component
 * live in their own file next to this one.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/engine, internal/store: engine components and sentinel errors.
 */
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/oiiaimeow/Reclaim/internal/engine"
	"github.com/oiiaimeow/Reclaim/internal/store"
)

// Handlers holds the engine components the API fronts.
type Handlers struct {
	access   *engine.AccessControl
	oracle   *engine.PriceOracle
	vault    *engine.SubscriptionVault
	refunds  *engine.RefundHandler
	payments *engine.PaymentManager
	factory  *engine.SubscriptionFactory
}

// NewHandlers creates the handler set over the engine components.
func NewHandlers(
	access *engine.AccessControl,
	oracle *engine.PriceOracle,
	vault *engine.SubscriptionVault,
	refunds *engine.RefundHandler,
	payments *engine.PaymentManager,
	factory *engine.SubscriptionFactory,
) *Handlers {
	return &Handlers{
		access:   access,
		oracle:   oracle,
		vault:    vault,
		refunds:  refunds,
		payments: payments,
		factory:  factory,
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// caller resolves the authenticated account, writing a 500 if the auth
// middleware did not run.
func (h *Handlers) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := GetCaller(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get account from context")
		return "", false
	}
	return caller, true
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeEngineError maps engine and store sentinel errors onto HTTP statuses.
func (h *Handlers) writeEngineError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, engine.ErrUnauthorized),
		errors.Is(err, engine.ErrNotAuthorized),
		errors.Is(err, engine.ErrOnlySubscriberCanRequest),
		errors.Is(err, engine.ErrOnlySubscriberOrCreatorCanCancel):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrInvalidToken),
		errors.Is(err, engine.ErrInvalidPrice),
		errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidCreator),
		errors.Is(err, engine.ErrInvalidInterval),
		errors.Is(err, engine.ErrPercentageExceeds100),
		errors.Is(err, engine.ErrFeeExceeds10Percent):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrInsufficientFunds),
		errors.Is(err, store.ErrInsufficientAvailableBalance),
		errors.Is(err, store.ErrInsufficientBalance),
		errors.Is(err, store.ErrInsufficientLocked),
		errors.Is(err, engine.ErrInsufficientDeploymentFee):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, store.ErrSubscriptionNotFound),
		errors.Is(err, store.ErrRefundRequestNotFound),
		errors.Is(err, store.ErrPolicyNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrPriceExpired),
		errors.Is(err, engine.ErrPaymentNotDueYet),
		errors.Is(err, engine.ErrSubscriptionNotActive),
		errors.Is(err, engine.ErrRefundWindowExpired),
		errors.Is(err, engine.ErrRefundAlreadyRequested),
		errors.Is(err, engine.ErrAlreadyProcessed),
		errors.Is(err, engine.ErrNoFeesToWithdraw):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"unhandled error\" err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
