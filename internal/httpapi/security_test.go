package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cookiecraze/backend/internal/domain"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		api.Handler().ServeHTTP(res, req)

		if i < 5 && res.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, res.Code)
		}
		if i == 5 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", res.Code)
		}
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", res.Code)
	}
}

func TestMutationWithoutCSRFTokenRejected(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	body, _ := json.Marshal(domain.CategoryCreateRequest{Name: "Holiday"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/categories", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/catalog/categories", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, api))
	res = httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 with csrf token, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestRegistrationIsCSRFExempt(t *testing.T) {
	api := newTestAPI(t)
	body, _ := json.Marshal(domain.CustomerRegisterRequest{
		Username: "ana.reyes",
		Password: "cookies-4-ever",
		Name:     "Ana Reyes",
		Email:    "ana@example.com",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/customers/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestVoidOverrideRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsStaff(t, api)
	csrf := fetchCSRFToken(t, api)

	body, _ := json.Marshal(domain.VoidOrderRequest{
		Reason:        "test",
		AdminUsername: "admin",
		AdminPassword: "not-the-password",
	})

	for i := 0; i < 9; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/order-nonexistent/void", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-CSRF-Token", csrf)
		req.RemoteAddr = "127.0.0.1:5001"
		res := httptest.NewRecorder()

		api.Handler().ServeHTTP(res, req)

		if i < 8 && res.Code != http.StatusForbidden {
			t.Fatalf("attempt %d expected 403 before override limit, got %d", i+1, res.Code)
		}
		if i == 8 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 9 expected 429, got %d", res.Code)
		}
	}
}

func TestRevokedAccountTokenRejected(t *testing.T) {
	api, repo := newTestAPIWithStore(t)
	token := loginAsStaff(t, api)

	res := call(t, api, http.MethodGet, "/api/v1/me", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 before revocation, got %d", res.Code)
	}

	if err := repo.DeleteUser(context.Background(), "staff"); err != nil {
		t.Fatalf("delete user failed: %v", err)
	}
	res = call(t, api, http.MethodGet, "/api/v1/me", token, nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after revocation, got %d", res.Code)
	}
}

func TestReRegisteredUsernameDoesNotInheritOldToken(t *testing.T) {
	api, repo := newTestAPIWithStore(t)
	oldToken := loginAsStaff(t, api)

	ctx := context.Background()
	if err := repo.DeleteUser(ctx, "staff"); err != nil {
		t.Fatalf("delete user failed: %v", err)
	}
	if err := repo.CreateUser(ctx, domain.UserAccount{
		Username:  "staff",
		Password:  mustHashPassword(t, "newowner123"),
		Kind:      domain.AccountStaff,
		Active:    true,
		CreatedAt: time.Now().UTC().Add(2 * time.Second),
	}); err != nil {
		t.Fatalf("re-create user failed: %v", err)
	}

	res := call(t, api, http.MethodGet, "/api/v1/me", oldToken, nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a token issued to the previous account, got %d", res.Code)
	}
}

func TestParsePositiveLimitCaps(t *testing.T) {
	if got := parsePositiveLimit("9999", 50, 200); got != 200 {
		t.Fatalf("expected capped limit 200, got %d", got)
	}
	if got := parsePositiveLimit("", 50, 200); got != 50 {
		t.Fatalf("expected fallback limit 50, got %d", got)
	}
	if got := parsePositiveLimit("invalid", 50, 200); got != 50 {
		t.Fatalf("expected fallback on invalid input, got %d", got)
	}
}

// fetchCSRFToken calls the CSRF token endpoint and returns the token string.
func fetchCSRFToken(t *testing.T, api *API) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("csrf-token endpoint returned status %d", res.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode csrf-token response failed: %v", err)
	}
	tok := payload["csrf_token"]
	if strings.TrimSpace(tok) == "" {
		t.Fatalf("expected non-empty csrf_token in response")
	}
	return tok
}

func loginAsAdmin(t *testing.T, api *API) string {
	t.Helper()
	return login(t, api, "admin", "admin123").AccessToken
}

func loginAsStaff(t *testing.T, api *API) string {
	t.Helper()
	return login(t, api, "staff", "staff123").AccessToken
}
