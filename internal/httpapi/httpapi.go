package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/service"
	"cookiecraze/backend/internal/store"
)

const maxBodyBytes = 1 << 20

type API struct {
	service         *service.Service
	auth            *AuthManager
	allowedOrigin   string
	loginLimiter    *attemptLimiter
	overrideLimiter *attemptLimiter
	resendLimiter   *attemptLimiter
	csrfSecret      []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:         svc,
		auth:            auth,
		allowedOrigin:   allowedOrigin,
		loginLimiter:    newAttemptLimiter(5, time.Minute),
		overrideLimiter: newAttemptLimiter(8, time.Minute),
		resendLimiter:   newAttemptLimiter(3, 10*time.Minute),
		csrfSecret:      csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (Unix time truncated to the hour), hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current or previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	staff := func(h http.HandlerFunc) http.HandlerFunc { return a.requireAuth(h, RequireApprovedStaff) }
	admin := func(h http.HandlerFunc) http.HandlerFunc { return a.requireAuth(h, RequireAdmin) }
	customer := func(h http.HandlerFunc) http.HandlerFunc { return a.requireAuth(h, RequireCustomer) }

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("GET /api/v1/healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/csrf-token", a.handleCSRFToken)
	mux.HandleFunc("GET /api/v1/settings", a.handleSettings)
	mux.HandleFunc("POST /api/v1/customers/register", a.handleRegisterCustomer)
	mux.HandleFunc("POST /api/v1/staff/register", a.handleRegisterStaff)
	mux.HandleFunc("GET /api/v1/customers/verify-email", a.handleVerifyEmail)
	mux.HandleFunc("GET /api/v1/me", a.requireAuth(a.handleMe, RequireAuthenticated))
	mux.HandleFunc("GET /api/v1/dashboard", a.requireAuth(a.handleDashboard, RequireAuthenticated))

	mux.HandleFunc("GET /api/v1/catalog/categories", a.optionalAuth(a.handleListCategories))
	mux.HandleFunc("POST /api/v1/catalog/categories", admin(a.handleCreateCategory))
	mux.HandleFunc("PATCH /api/v1/catalog/categories/{id}", admin(a.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/v1/catalog/categories/{id}", admin(a.handleDeleteCategory))
	mux.HandleFunc("GET /api/v1/catalog/cookies", a.optionalAuth(a.handleListCookies))
	mux.HandleFunc("GET /api/v1/catalog/cookies/{id}", a.optionalAuth(a.handleGetCookie))
	mux.HandleFunc("POST /api/v1/catalog/cookies", admin(a.handleCreateCookie))
	mux.HandleFunc("PATCH /api/v1/catalog/cookies/{id}", admin(a.handleUpdateCookie))
	mux.HandleFunc("DELETE /api/v1/catalog/cookies/{id}", admin(a.handleDeleteCookie))
	mux.HandleFunc("POST /api/v1/catalog/cookies/{id}/stock", admin(a.handleAdjustStock))

	mux.HandleFunc("POST /api/v1/kiosk/orders", a.optionalAuth(a.handleCreateKioskOrder))
	mux.HandleFunc("GET /api/v1/kiosk/orders/{id}", a.optionalAuth(a.handleGetKioskOrder))
	mux.HandleFunc("POST /api/v1/kiosk/orders/{id}/pay", a.optionalAuth(a.handlePayKioskOrder))

	mux.HandleFunc("GET /api/v1/cart", customer(a.handleViewCart))
	mux.HandleFunc("DELETE /api/v1/cart", customer(a.handleClearCart))
	mux.HandleFunc("POST /api/v1/cart/items", customer(a.handleAddCartItem))
	mux.HandleFunc("PATCH /api/v1/cart/items/{cookie}", customer(a.handleUpdateCartItem))
	mux.HandleFunc("DELETE /api/v1/cart/items/{cookie}", customer(a.handleRemoveCartItem))
	mux.HandleFunc("POST /api/v1/cart/checkout", customer(a.handleCheckoutCart))

	mux.HandleFunc("GET /api/v1/customers/me", customer(a.handleCustomerProfile))
	mux.HandleFunc("PATCH /api/v1/customers/me", customer(a.handleUpdateCustomerProfile))
	mux.HandleFunc("DELETE /api/v1/customers/me", customer(a.handleDeleteMyAccount))
	mux.HandleFunc("POST /api/v1/customers/me/resend-verification", customer(a.handleResendVerification))
	mux.HandleFunc("GET /api/v1/customers/me/orders", customer(a.handleMyOrders))
	mux.HandleFunc("POST /api/v1/customers/me/orders/{id}/cancel", customer(a.handleCancelMyOrder))
	mux.HandleFunc("GET /api/v1/customers", staff(a.handleListCustomers))
	mux.HandleFunc("GET /api/v1/customers/{id}/orders", admin(a.handleCustomerOrders))
	mux.HandleFunc("POST /api/v1/customers/{id}/activate", admin(a.handleSetCustomerActive(true)))
	mux.HandleFunc("POST /api/v1/customers/{id}/deactivate", admin(a.handleSetCustomerActive(false)))

	mux.HandleFunc("POST /api/v1/orders/walk-in", staff(a.handleCreateWalkInOrder))
	mux.HandleFunc("GET /api/v1/orders", staff(a.handleSearchOrders))
	mux.HandleFunc("GET /api/v1/orders/new", staff(a.handleNewOrders))
	mux.HandleFunc("GET /api/v1/orders/{id}", staff(a.handleGetOrder))
	mux.HandleFunc("GET /api/v1/orders/{id}/receipt", a.requireAuth(a.handleReceipt, RequireAuthenticated))
	mux.HandleFunc("POST /api/v1/orders/{id}/status", staff(a.handleUpdateStatus))
	mux.HandleFunc("POST /api/v1/orders/{id}/complete", staff(a.handleCompleteKioskOrder))
	mux.HandleFunc("POST /api/v1/orders/{id}/verify-gcash", staff(a.handleVerifyGCash))
	mux.HandleFunc("POST /api/v1/orders/{id}/confirm-cash", staff(a.handleConfirmCash))
	mux.HandleFunc("POST /api/v1/orders/{id}/void", staff(a.handleVoidOrder))

	mux.HandleFunc("GET /api/v1/cash/reconciliation", staff(a.handleCashReconciliation))
	mux.HandleFunc("POST /api/v1/cash/reconciliation/manual", admin(a.handleManualReconciliation))
	mux.HandleFunc("POST /api/v1/cash/floats", staff(a.handleRecordCashFloat))
	mux.HandleFunc("DELETE /api/v1/cash/floats/{id}", admin(a.handleDeleteAdjustment))

	mux.HandleFunc("GET /api/v1/reports/sales", admin(a.handleSalesReport))
	mux.HandleFunc("GET /api/v1/reports/sales/export", admin(a.handleSalesExport))

	mux.HandleFunc("GET /api/v1/staff", admin(a.handleListStaff))
	mux.HandleFunc("PATCH /api/v1/staff/{id}", admin(a.handleUpdateStaff))
	mux.HandleFunc("POST /api/v1/staff/{id}/approve", admin(a.handleApproveStaff))
	mux.HandleFunc("POST /api/v1/staff/{id}/reject", admin(a.handleRejectStaff))

	mux.HandleFunc("GET /api/v1/audit/activity", admin(a.handleActivityLogs))
	mux.HandleFunc("GET /api/v1/audit/voids", admin(a.handleVoidLogs))

	return a.withMiddleware(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	principal, err := a.authenticatePrincipal(r, req.Username, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	resp, err := a.auth.Issue(principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.service.RecordLogin(r.Context(), principal)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) authenticatePrincipal(r *http.Request, username string, password string) (domain.Principal, error) {
	canonical, err := a.auth.Authenticate(r.Context(), username, password)
	if err != nil {
		return domain.Principal{}, err
	}
	principal, err := a.service.ResolvePrincipal(r.Context(), canonical)
	if err != nil {
		if errors.Is(err, store.ErrForbidden) {
			return domain.Principal{}, errInactiveAccount
		}
		return domain.Principal{}, err
	}
	return principal, nil
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errInvalidCredentials), errors.Is(err, errInactiveAccount):
		writeError(w, http.StatusUnauthorized, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// handleCSRFToken returns a stateless token for the current hour bucket.
// Clients send it in X-CSRF-Token on every mutating request.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

var csrfExemptPaths = []string{
	"/api/v1/auth/login",
	"/api/v1/customers/register",
	"/api/v1/staff/register",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"settings": a.service.Settings()})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.Me(r.Context()))
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := a.service.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (a *API) handleRegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.RegisterCustomer(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleRegisterStaff(w http.ResponseWriter, r *http.Request) {
	var req domain.StaffRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.RegisterStaff(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer, "verified": true})
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.service.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (a *API) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	category, err := a.service.CreateCategory(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"category": category})
}

func (a *API) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	category, err := a.service.UpdateCategory(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": category})
}

func (a *API) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListCookies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeUnavailable, _ := strconv.ParseBool(q.Get("include_unavailable"))
	cookies, err := a.service.ListCookies(r.Context(), strings.TrimSpace(q.Get("category")), includeUnavailable)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cookies": cookies})
}

func (a *API) handleGetCookie(w http.ResponseWriter, r *http.Request) {
	cookie, err := a.service.GetCookie(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cookie": cookie})
}

func (a *API) handleCreateCookie(w http.ResponseWriter, r *http.Request) {
	var req domain.CookieCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cookie, err := a.service.CreateCookie(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cookie": cookie})
}

func (a *API) handleUpdateCookie(w http.ResponseWriter, r *http.Request) {
	var req domain.CookieUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cookie, err := a.service.UpdateCookie(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cookie": cookie})
}

func (a *API) handleDeleteCookie(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteCookie(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cookie, err := a.service.AdjustStock(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cookie": cookie})
}

func (a *API) handleCreateKioskOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.KioskOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.CreateKioskOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (a *API) handleGetKioskOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.GetKioskOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *API) handlePayKioskOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.KioskPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.PayKioskOrder(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *API) handleViewCart(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.ViewCart(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": view})
}

func (a *API) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ClearCart(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req domain.CartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.AddToCart(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": view})
}

func (a *API) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req domain.CartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.CookieID = r.PathValue("cookie")
	view, err := a.service.UpdateCartItem(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": view})
}

func (a *API) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.RemoveCartItem(r.Context(), r.PathValue("cookie"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": view})
}

func (a *API) handleCheckoutCart(w http.ResponseWriter, r *http.Request) {
	var req domain.CartCheckoutRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.CheckoutCart(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (a *API) handleCustomerProfile(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.CustomerProfile(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleUpdateCustomerProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.UpdateCustomerProfile(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	principal := service.PrincipalFromContext(r.Context())
	if !a.resendLimiter.Allow("resend:" + principal.Username) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many verification emails requested"))
		return
	}
	if err := a.service.ResendVerification(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": true})
}

func (a *API) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
	orders, err := a.service.MyOrders(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OrderListResponse{Orders: orders, Count: len(orders)})
}

func (a *API) handleCancelMyOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.CancelCustomerOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *API) handleDeleteMyAccount(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteMyAccount(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	customers, err := a.service.ListCustomers(r.Context(), q.Get("q"), q.Get("status"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers, "count": len(customers)})
}

func (a *API) handleCustomerOrders(w http.ResponseWriter, r *http.Request) {
	history, err := a.service.CustomerOrders(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) handleSetCustomerActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := a.service.SetCustomerActive(r.Context(), r.PathValue("id"), active)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": account})
	}
}

func (a *API) handleCreateWalkInOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.WalkInOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.CreateWalkInOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (a *API) handleSearchOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.OrderFilter{
		Query:         q.Get("q"),
		Status:        strings.TrimSpace(q.Get("status")),
		PaymentMethod: strings.TrimSpace(q.Get("payment_method")),
		Type:          strings.TrimSpace(q.Get("type")),
		StaffID:       strings.TrimSpace(q.Get("staff_id")),
		Limit:         parsePositiveLimit(q.Get("limit"), 100, 500),
	}
	if raw := strings.TrimSpace(q.Get("paid")); raw != "" {
		paid, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("paid must be true or false"))
			return
		}
		filter.Paid = &paid
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		day, err := a.service.LocalDay(raw)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		from := day.UTC()
		filter.From = &from
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		day, err := a.service.LocalDay(raw)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		to := day.AddDate(0, 0, 1).UTC()
		filter.To = &to
	}

	orders, err := a.service.SearchOrders(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OrderListResponse{Orders: orders, Count: len(orders)})
}

func (a *API) handleNewOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var since time.Time
	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("since must be an RFC3339 timestamp"))
			return
		}
		since = parsed
	}
	version, _ := strconv.ParseInt(strings.TrimSpace(q.Get("version")), 10, 64)

	resp, err := a.service.NewOrdersCheck(r.Context(), since, version)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := a.service.GetReceipt(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipt": receipt})
}

func (a *API) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.StatusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.UpdateOrderStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *API) handleCompleteKioskOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.CompleteKioskOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *API) handleVerifyGCash(w http.ResponseWriter, r *http.Request) {
	var req domain.GCashVerifyRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.VerifyGCash(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *API) handleConfirmCash(w http.ResponseWriter, r *http.Request) {
	var req domain.CashConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.ConfirmCashPayment(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

// handleVoidOrder accepts optional admin credentials so a staff member can
// void an order recorded by someone else.
func (a *API) handleVoidOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.VoidOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var approver *domain.Principal
	if strings.TrimSpace(req.AdminUsername) != "" || req.AdminPassword != "" {
		if !a.overrideLimiter.Allow("override:void:" + clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errors.New("too many admin override attempts"))
			return
		}
		principal, err := a.authenticatePrincipal(r, req.AdminUsername, req.AdminPassword)
		if err != nil {
			if errors.Is(err, errInvalidCredentials) || errors.Is(err, errInactiveAccount) {
				writeError(w, http.StatusForbidden, errors.New("invalid admin credentials"))
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		approver = &principal
	}

	resp, err := a.service.VoidOrder(r.Context(), r.PathValue("id"), req.Reason, approver)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCashReconciliation(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.CashReconciliation(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleManualReconciliation(w http.ResponseWriter, r *http.Request) {
	var req domain.ManualReconciliationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := a.service.ManualReconciliation(r.Context(), r.URL.Query().Get("date"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleRecordCashFloat(w http.ResponseWriter, r *http.Request) {
	var req domain.CashFloatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := a.service.RecordCashFloat(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

func (a *API) handleDeleteAdjustment(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteAdjustment(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := a.service.SalesReport(r.Context(), q.Get("from"), q.Get("to"), q.Get("staff_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(q.Get("format")), "html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, salesReportToPrintableHTML(a.service.Settings(), report))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleSalesExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	export, err := a.service.SalesExport(r.Context(), q.Get("date"), q.Get("staff_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	body, err := salesExportToCSV(export)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *API) handleListStaff(w http.ResponseWriter, r *http.Request) {
	pendingOnly, _ := strconv.ParseBool(r.URL.Query().Get("pending"))
	staff, err := a.service.ListStaff(r.Context(), pendingOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": staff})
}

func (a *API) handleUpdateStaff(w http.ResponseWriter, r *http.Request) {
	var req domain.StaffUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	staff, err := a.service.UpdateStaff(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": staff})
}

func (a *API) handleApproveStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := a.service.ApproveStaff(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": staff})
}

func (a *API) handleRejectStaff(w http.ResponseWriter, r *http.Request) {
	if err := a.service.RejectStaff(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleActivityLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	logs, err := a.service.ListActivityLogs(r.Context(), q.Get("date"), parsePositiveLimit(q.Get("limit"), 200, 1000))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleVoidLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := a.service.ListVoidLogs(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"void_logs": logs})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		switch r.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut:
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r.WithContext(service.WithClientIP(r.Context(), clientKey(r))))
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(r *http.Request, dest any) error {
	if err := decodeJSON(r, dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrInsufficientPayment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrAlreadyVoided), errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the cause only goes to the log.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
