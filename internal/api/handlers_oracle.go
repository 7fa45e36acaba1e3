/**
 * @description
 * Handlers for the price oracle endpoints: writing rates and reading or
 * converting through them.
 */
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type updatePriceRequest struct {
	TokenA string `json:"token_a"`
	TokenB string `json:"token_b"`
	Rate   int64  `json:"rate"`
}

// UpdatePriceHandler stores a fresh rate for a directional pair.
func (h *Handlers) UpdatePriceHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req updatePriceRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.oracle.UpdatePrice(r.Context(), caller, req.TokenA, req.TokenB, req.Rate); err != nil {
		h.writeEngineError(w, "price_update", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"rate": req.Rate})
}

// GetPriceHandler returns the stored rate for (tokenA, tokenB).
func (h *Handlers) GetPriceHandler(w http.ResponseWriter, r *http.Request) {
	tokenA := chi.URLParam(r, "tokenA")
	tokenB := chi.URLParam(r, "tokenB")

	rate, err := h.oracle.GetPrice(r.Context(), tokenA, tokenB)
	if err != nil {
		h.writeEngineError(w, "price_get", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"token_a": tokenA,
		"token_b": tokenB,
		"rate":    rate,
	})
}

// GetPriceValidityHandler reports whether a fresh rate exists for the pair.
func (h *Handlers) GetPriceValidityHandler(w http.ResponseWriter, r *http.Request) {
	tokenA := chi.URLParam(r, "tokenA")
	tokenB := chi.URLParam(r, "tokenB")

	valid, err := h.oracle.IsPriceValid(r.Context(), tokenA, tokenB)
	if err != nil {
		h.writeEngineError(w, "price_valid", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// ConvertAmountHandler converts ?amount= from tokenA units to tokenB units.
func (h *Handlers) ConvertAmountHandler(w http.ResponseWriter, r *http.Request) {
	tokenA := chi.URLParam(r, "tokenA")
	tokenB := chi.URLParam(r, "tokenB")

	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	converted, err := h.oracle.ConvertAmount(r.Context(), tokenA, tokenB, amount)
	if err != nil {
		h.writeEngineError(w, "price_convert", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{
		"amount":    amount,
		"converted": converted,
	})
}
