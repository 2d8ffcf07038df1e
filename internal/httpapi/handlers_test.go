package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/service"
	"cookiecraze/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()
	api, _ := newTestAPIWithStore(t)
	return api
}

func newTestAPIWithStore(t *testing.T) (*API, *memory.Store) {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, service.Options{
		Settings: domain.StoreSettings{StoreName: "Cookie Craze", GCashAccountName: "Cookie Craze PH", GCashNumber: "09170000000"},
	})
	auth := NewAuthManager("test-secret-key-test-secret-key!", time.Hour, repo)

	return New(svc, auth, "*"), repo
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func login(t *testing.T, api *API, username string, password string) domain.LoginResponse {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login %s failed, status %d (body: %s)", username, res.Code, res.Body.String())
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	return payload
}

// call sends a JSON request with a fresh CSRF token attached to mutating
// methods. An empty token means an anonymous request.
func call(t *testing.T, api *API, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", api.generateCSRFToken())
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func decodeOrder(t *testing.T, res *httptest.ResponseRecorder) domain.Order {
	t.Helper()
	var payload struct {
		Order domain.Order `json:"order"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode order response: %v", err)
	}
	return payload.Order
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	for _, path := range []string{"/healthz", "/api/v1/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		var body map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["ok"] != true {
			t.Fatalf("expected ok:true, got %v", body["ok"])
		}
	}
}

func TestHandleLogin_RoutesEachKind(t *testing.T) {
	api := newTestAPI(t)

	cases := []struct {
		username string
		password string
		kind     domain.PrincipalKind
		route    string
	}{
		{"admin", "admin123", domain.PrincipalAdmin, domain.RouteAdminDashboard},
		{"staff", "staff123", domain.PrincipalStaff, domain.RouteStaffDashboard},
		{"Customer", "customer123", domain.PrincipalCustomer, domain.RouteCustomerDashboard},
	}
	for _, tc := range cases {
		resp := login(t, api, tc.username, tc.password)
		if resp.AccessToken == "" {
			t.Fatalf("%s: expected access token", tc.username)
		}
		if resp.Kind != string(tc.kind) || resp.Route != tc.route {
			t.Fatalf("%s: expected kind=%s route=%s, got kind=%s route=%s", tc.username, tc.kind, tc.route, resp.Kind, resp.Route)
		}
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleOrders_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	res := call(t, api, http.MethodGet, "/api/v1/orders", "", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestHandleOrders_CustomerIsForbidden(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "customer", "customer123").AccessToken

	res := call(t, api, http.MethodGet, "/api/v1/orders", token, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestHandleMe_ReturnsPrincipal(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "customer", "customer123").AccessToken

	res := call(t, api, http.MethodGet, "/api/v1/me", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var me domain.MeResponse
	if err := json.NewDecoder(res.Body).Decode(&me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Principal.CustomerID != memory.SeedCustomerID || me.Route != domain.RouteCustomerDashboard {
		t.Fatalf("unexpected me response %+v", me)
	}
}

func TestCatalogIsPublic(t *testing.T) {
	api := newTestAPI(t)

	res := call(t, api, http.MethodGet, "/api/v1/catalog/cookies", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		Cookies []domain.Cookie `json:"cookies"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode cookies: %v", err)
	}
	if len(body.Cookies) == 0 {
		t.Fatalf("expected seeded cookies")
	}

	res = call(t, api, http.MethodPost, "/api/v1/catalog/cookies", "", map[string]any{"name": "x"})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous create, got %d", res.Code)
	}
}

func TestKioskCashOrderFlow(t *testing.T) {
	api := newTestAPI(t)

	res := call(t, api, http.MethodPost, "/api/v1/kiosk/orders", "", domain.KioskOrderRequest{
		Items:         []domain.OrderLine{{CookieID: "cookie-choco-chip", Quantity: 2}},
		PaymentMethod: domain.PaymentCash,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	order := decodeOrder(t, res)
	if order.TotalCents != 5000 || order.Status != domain.StatusPending {
		t.Fatalf("unexpected kiosk order %+v", order)
	}

	res = call(t, api, http.MethodPost, "/api/v1/kiosk/orders/"+order.ID+"/pay", "", domain.KioskPaymentRequest{AmountPaid: 4000})
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for short payment, got %d", res.Code)
	}

	res = call(t, api, http.MethodPost, "/api/v1/kiosk/orders/"+order.ID+"/pay", "", domain.KioskPaymentRequest{AmountPaid: 10000})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	paid := decodeOrder(t, res)
	if paid.Status != domain.StatusCompleted || paid.ChangeCents != 5000 {
		t.Fatalf("expected completed order with 50.00 change, got %+v", paid)
	}

	res = call(t, api, http.MethodGet, "/api/v1/kiosk/orders/"+strings.ToLower(paid.HexCode), "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected lookup by hex code, got %d", res.Code)
	}
}

func TestWalkInOrderAndVoid(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123").AccessToken

	res := call(t, api, http.MethodPost, "/api/v1/orders/walk-in", token, domain.WalkInOrderRequest{
		Items:         []domain.OrderLine{{CookieID: "cookie-ube-crinkle", Quantity: 1}},
		PaymentMethod: domain.PaymentCash,
		AmountPaid:    5000,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	order := decodeOrder(t, res)

	res = call(t, api, http.MethodPost, "/api/v1/orders/"+order.ID+"/void", token, domain.VoidOrderRequest{})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without reason, got %d", res.Code)
	}

	res = call(t, api, http.MethodPost, "/api/v1/orders/"+order.ID+"/void", token, domain.VoidOrderRequest{Reason: "wrong flavor"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	var voided domain.VoidOrderResponse
	if err := json.NewDecoder(res.Body).Decode(&voided); err != nil {
		t.Fatalf("decode void: %v", err)
	}
	if voided.Order.Status != domain.StatusVoided || voided.VoidLog.AdminUser != "admin" {
		t.Fatalf("unexpected void response %+v", voided)
	}

	res = call(t, api, http.MethodPost, "/api/v1/orders/"+order.ID+"/void", token, domain.VoidOrderRequest{Reason: "again"})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second void, got %d", res.Code)
	}
}

func TestStaffVoidNeedsAdminOverride(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "staff", "staff123").AccessToken

	res := call(t, api, http.MethodPost, "/api/v1/kiosk/orders", "", domain.KioskOrderRequest{
		Items: []domain.OrderLine{{CookieID: "cookie-oatmeal-raisin", Quantity: 1}},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("kiosk create failed: %d", res.Code)
	}
	order := decodeOrder(t, res)

	res = call(t, api, http.MethodPost, "/api/v1/orders/"+order.ID+"/void", token, domain.VoidOrderRequest{Reason: "duplicate"})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without override, got %d (body: %s)", res.Code, res.Body.String())
	}

	res = call(t, api, http.MethodPost, "/api/v1/orders/"+order.ID+"/void", token, domain.VoidOrderRequest{
		Reason:        "duplicate",
		AdminUsername: "admin",
		AdminPassword: "admin123",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with override, got %d (body: %s)", res.Code, res.Body.String())
	}
	var voided domain.VoidOrderResponse
	if err := json.NewDecoder(res.Body).Decode(&voided); err != nil {
		t.Fatalf("decode void: %v", err)
	}
	if voided.VoidLog.AdminUser != "admin" || voided.VoidLog.StaffMember != "staff" {
		t.Fatalf("expected override recorded in void log, got %+v", voided.VoidLog)
	}
}

func TestPendingStaffIsRoutedToApproval(t *testing.T) {
	api := newTestAPI(t)

	res := call(t, api, http.MethodPost, "/api/v1/staff/register", "", domain.StaffRegisterRequest{
		Username: "newbaker",
		Password: "bakery-pass-1",
		Name:     "New Baker",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}

	resp := login(t, api, "newbaker", "bakery-pass-1")
	if resp.Route != domain.RoutePendingApproval {
		t.Fatalf("expected pending approval route, got %s", resp.Route)
	}
	res = call(t, api, http.MethodGet, "/api/v1/orders", resp.AccessToken, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for pending staff, got %d", res.Code)
	}
}

func TestSalesExportIsCSV(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123").AccessToken

	res := call(t, api, http.MethodPost, "/api/v1/orders/walk-in", token, domain.WalkInOrderRequest{
		Items:      []domain.OrderLine{{CookieID: "cookie-choco-chip", Quantity: 1}},
		AmountPaid: 2500,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("walk-in failed: %d (body: %s)", res.Code, res.Body.String())
	}

	res = call(t, api, http.MethodGet, "/api/v1/reports/sales/export", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	if got := res.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Fatalf("expected text/csv, got %q", got)
	}
	if got := res.Header().Get("Content-Disposition"); !strings.Contains(got, "attachment; filename=") {
		t.Fatalf("expected attachment disposition, got %q", got)
	}
	lines := strings.Split(strings.TrimSpace(res.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "Date,Order ID,Staff") {
		t.Fatalf("unexpected csv body %q", res.Body.String())
	}
	if !strings.Contains(lines[1], "25.00") {
		t.Fatalf("expected total 25.00 in row, got %q", lines[1])
	}
}

func TestSalesReportPrintableHTML(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123").AccessToken

	res := call(t, api, http.MethodGet, "/api/v1/reports/sales?format=html", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Fatalf("expected html, got %q", got)
	}
	if !strings.Contains(res.Body.String(), "Cookie Craze Sales Report") {
		t.Fatalf("expected report heading in body")
	}
}

func TestStatusForErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123").AccessToken

	res := call(t, api, http.MethodGet, "/api/v1/orders/does-not-exist", token, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}

	res = call(t, api, http.MethodPost, "/api/v1/orders/walk-in", token, domain.WalkInOrderRequest{
		Items:      []domain.OrderLine{{CookieID: "cookie-ube-crinkle", Quantity: 51}},
		AmountPaid: 1_000_000,
	})
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for oversell, got %d (body: %s)", res.Code, res.Body.String())
	}
}

// TestMustHashPassword verifies that the test helper produces valid bcrypt hashes
// (used to confirm test infrastructure is sound).
func TestMustHashPassword(t *testing.T) {
	hash := mustHashPassword(t, "secret")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Fatalf("hash verification failed: %v", err)
	}
}
