package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oiiaimeow/Reclaim/internal/engine"
	"github.com/oiiaimeow/Reclaim/internal/store"
)

const testJWTSecret = "test-secret"

func newTestServer(t *testing.T, mem *store.Memory) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := engine.NopPublisher{}
	ctx := context.Background()

	access, err := engine.NewAccessControl(ctx, mem, events, logger, "platform")
	if err != nil {
		t.Fatalf("access control init failed: %v", err)
	}
	oracle := engine.NewPriceOracle(mem, access, events, logger, "platform")
	vault := engine.NewSubscriptionVault(mem, events, logger, "platform")
	refunds, err := engine.NewRefundHandler(ctx, mem, events, logger, "platform")
	if err != nil {
		t.Fatalf("refund handler init failed: %v", err)
	}
	payments := engine.NewPaymentManager(mem, events, logger)
	factory, err := engine.NewSubscriptionFactory(ctx, mem, events, logger, "platform", "RCLM", 0, 250)
	if err != nil {
		t.Fatalf("factory init failed: %v", err)
	}

	handlers := NewHandlers(access, oracle, vault, refunds, payments, factory)
	return NewRouter(handlers, testJWTSecret, nil, 0)
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, handler http.Handler, method, path, subject string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, subject))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_HealthIsPublic(t *testing.T) {
	server := newTestServer(t, store.NewMemory())

	rec := doRequest(t, server, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for health, got %d", rec.Code)
	}
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	server := newTestServer(t, store.NewMemory())

	rec := doRequest(t, server, http.MethodPost, "/vault/deposit", "", map[string]interface{}{
		"token": "USDC", "amount": 100,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestAPI_DepositAndReadBalance(t *testing.T) {
	mem := store.NewMemory()
	mem.Mint("alice", "USDC", 1000)
	server := newTestServer(t, mem)

	rec := doRequest(t, server, http.MethodPost, "/vault/deposit", "alice", map[string]interface{}{
		"token": "USDC", "amount": 600,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for deposit, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, server, http.MethodGet, "/vault/accounts/alice/USDC", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for account read, got %d", rec.Code)
	}
	var acct struct {
		TotalBalance int64 `json:"total_balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &acct); err != nil {
		t.Fatalf("failed to decode account: %v", err)
	}
	if acct.TotalBalance != 600 {
		t.Fatalf("expected total 600, got %d", acct.TotalBalance)
	}
}

func TestAPI_InsufficientFundsMapsTo402(t *testing.T) {
	mem := store.NewMemory()
	mem.Mint("alice", "USDC", 50)
	server := newTestServer(t, mem)

	rec := doRequest(t, server, http.MethodPost, "/subscriptions", "alice", map[string]interface{}{
		"creator":          "creator",
		"payment_token":    "USDC",
		"amount":           100,
		"interval_seconds": 3600,
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for underfunded create, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAPI_SubscriptionLifecycle(t *testing.T) {
	mem := store.NewMemory()
	mem.Mint("alice", "USDC", 1000)
	server := newTestServer(t, mem)

	rec := doRequest(t, server, http.MethodPost, "/subscriptions", "alice", map[string]interface{}{
		"creator":          "creator",
		"payment_token":    "USDC",
		"amount":           100,
		"interval_seconds": 3600,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for create, got %d body=%s", rec.Code, rec.Body.String())
	}
	var sub struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
		t.Fatalf("failed to decode subscription: %v", err)
	}

	// Charging before the due date conflicts.
	rec = doRequest(t, server, http.MethodPost, "/subscriptions/1/payments", "anyone", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before due date, got %d", rec.Code)
	}

	// A stranger cannot cancel.
	rec = doRequest(t, server, http.MethodPost, "/subscriptions/1/cancel", "mallory", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger cancel, got %d", rec.Code)
	}
	rec = doRequest(t, server, http.MethodPost, "/subscriptions/1/cancel", "creator", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for creator cancel, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAPI_RefundRequestFlow(t *testing.T) {
	mem := store.NewMemory()
	mem.Mint("alice", "USDC", 1000)
	server := newTestServer(t, mem)

	rec := doRequest(t, server, http.MethodPost, "/subscriptions", "alice", map[string]interface{}{
		"creator":          "creator",
		"payment_token":    "USDC",
		"amount":           100,
		"interval_seconds": 3600,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for create, got %d", rec.Code)
	}

	// Only the subscriber may open a refund request.
	rec = doRequest(t, server, http.MethodPost, "/refunds", "mallory", map[string]interface{}{
		"subscription_id": 1,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger refund, got %d", rec.Code)
	}

	rec = doRequest(t, server, http.MethodPost, "/refunds", "alice", map[string]interface{}{
		"subscription_id": 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for refund request, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, server, http.MethodPost, "/refunds/1/process", "creator", map[string]interface{}{
		"approve": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for refund approval, got %d body=%s", rec.Code, rec.Body.String())
	}

	// Settling twice conflicts.
	rec = doRequest(t, server, http.MethodPost, "/refunds/1/process", "creator", map[string]interface{}{
		"approve": true,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for double settle, got %d", rec.Code)
	}
}

func TestAPI_RoleAdministration(t *testing.T) {
	server := newTestServer(t, store.NewMemory())

	// Non-admin grant is forbidden.
	rec := doRequest(t, server, http.MethodPost, "/roles/grant", "mallory", map[string]interface{}{
		"account": "bob", "role": "manager",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin grant, got %d", rec.Code)
	}

	rec = doRequest(t, server, http.MethodPost, "/roles/grant", "platform", map[string]interface{}{
		"account": "bob", "role": "manager",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin grant, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, server, http.MethodGet, "/roles/bob", "platform", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for role read, got %d", rec.Code)
	}
	var roles map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &roles); err != nil {
		t.Fatalf("failed to decode roles: %v", err)
	}
	if !roles["manager"] || roles["admin"] {
		t.Fatalf("expected manager-only roles, got %v", roles)
	}
}
