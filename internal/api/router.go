/**
 * @description
 * This file sets up the HTTP router for the subscription engine. It defines
 * the API endpoints, associates them with their handlers, and applies the
 * middleware stack: logging, panic recovery, timeouts, CORS, JWT
 * authentication and per-caller rate limiting.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for the dashboard frontend.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates and returns the engine's router.
func NewRouter(h *Handlers, jwtSecret string, limiter *RedisRateLimiter, rateLimitPerMinute int) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))
		r.Use(RateLimitMiddleware(limiter, rateLimitPerMinute))

		// Vault
		r.Post("/vault/deposit", h.DepositHandler)
		r.Post("/vault/withdraw", h.WithdrawHandler)
		r.Post("/vault/lock", h.LockFundsHandler)
		r.Post("/vault/unlock", h.UnlockFundsHandler)
		r.Put("/vault/managers", h.SetManagerHandler)
		r.Get("/vault/accounts/{owner}/{token}", h.GetVaultAccountHandler)

		// Price oracle
		r.Put("/prices", h.UpdatePriceHandler)
		r.Get("/prices/{tokenA}/{tokenB}", h.GetPriceHandler)
		r.Get("/prices/{tokenA}/{tokenB}/valid", h.GetPriceValidityHandler)
		r.Get("/prices/{tokenA}/{tokenB}/convert", h.ConvertAmountHandler)

		// Subscriptions
		r.Post("/subscriptions", h.CreateSubscriptionHandler)
		r.Get("/subscriptions/{id}", h.GetSubscriptionHandler)
		r.Post("/subscriptions/{id}/payments", h.ProcessPaymentHandler)
		r.Post("/subscriptions/{id}/cancel", h.CancelSubscriptionHandler)
		r.Get("/creators/{creator}/subscriptions", h.ListCreatorSubscriptionsHandler)
		r.Get("/subscribers/{subscriber}/subscriptions", h.ListSubscriberSubscriptionsHandler)

		// Refunds
		r.Put("/refund-policies/default", h.SetDefaultRefundPolicyHandler)
		r.Put("/refund-policies/mine", h.SetCreatorRefundPolicyHandler)
		r.Get("/creators/{creator}/refund-policy", h.GetRefundPolicyHandler)
		r.Post("/refunds", h.RequestRefundHandler)
		r.Get("/refunds/{id}", h.GetRefundRequestHandler)
		r.Post("/refunds/{id}/process", h.ProcessRefundHandler)

		// Factory
		r.Post("/factory/managers", h.DeployManagerHandler)
		r.Get("/factory/managers", h.ListManagersHandler)
		r.Get("/factory/state", h.GetFactoryStateHandler)
		r.Put("/factory/deployment-fee", h.SetDeploymentFeeHandler)
		r.Put("/factory/protocol-fee", h.SetProtocolFeeHandler)
		r.Post("/factory/withdraw-fees", h.WithdrawFeesHandler)
		r.Get("/creators/{creator}/managers", h.ListCreatorManagersHandler)

		// Access control
		r.Post("/roles/grant", h.GrantRoleHandler)
		r.Post("/roles/revoke", h.RevokeRoleHandler)
		r.Get("/roles/{account}", h.GetRolesHandler)
	})

	return r
}
