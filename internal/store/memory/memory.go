package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
	"cookiecraze/backend/internal/xid"
)

type Store struct {
	mu           sync.RWMutex
	categories   map[string]domain.Category
	cookies      map[string]domain.Cookie
	orders       map[string]*domain.Order
	orderSeq     map[string]int
	hexCodes     map[string]string
	customers    map[string]domain.Customer
	staff        map[string]domain.Staff
	users        map[string]domain.UserAccount
	cashFloats   map[string]domain.CashFloat
	activityLogs []domain.ActivityLog
	voidLogs     []domain.VoidLog
}

func New() *Store {
	return &Store{
		categories:   make(map[string]domain.Category),
		cookies:      make(map[string]domain.Cookie),
		orders:       make(map[string]*domain.Order),
		orderSeq:     make(map[string]int),
		hexCodes:     make(map[string]string),
		customers:    make(map[string]domain.Customer),
		staff:        make(map[string]domain.Staff),
		users:        make(map[string]domain.UserAccount),
		cashFloats:   make(map[string]domain.CashFloat),
		activityLogs: make([]domain.ActivityLog, 0, 128),
		voidLogs:     make([]domain.VoidLog, 0, 16),
	}
}

const (
	SeedAdminStaffID = "STAFF1001"
	SeedStaffID      = "STAFF1002"
	SeedCustomerID   = "CUST000001"
)

// seedUsers builds the dev/demo accounts. Passwords are read from
// SEED_ADMIN_PASSWORD, SEED_STAFF_PASSWORD and SEED_CUSTOMER_PASSWORD; the
// hardcoded defaults are only for local runs without DATABASE_URL.
func seedUsers(now time.Time) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	customerPwd := envOr("SEED_CUSTOMER_PASSWORD", "customer123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD, SEED_STAFF_PASSWORD and SEED_CUSTOMER_PASSWORD to override.")
	}

	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username  string
		password  string
		kind      string
		superuser bool
		email     string
	}{
		{"admin", adminPwd, domain.AccountAdmin, true, "admin@cookiecraze.com"},
		{"staff", staffPwd, domain.AccountStaff, false, "staff@cookiecraze.com"},
		{"customer", customerPwd, domain.AccountCustomer, false, "customer@cookiecraze.com"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Kind:      u.kind,
			Superuser: u.superuser,
			Active:    true,
			Email:     u.email,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	for _, c := range []domain.Category{
		{ID: "cat-classic", Name: "Classic", Description: "Everyday favorites", Color: "#8B4513", Icon: "cookie"},
		{ID: "cat-specialty", Name: "Specialty", Description: "Local and premium flavors", Color: "#6A0DAD", Icon: "star"},
		{ID: "cat-seasonal", Name: "Seasonal", Description: "Limited runs", Color: "#007bff", Icon: "leaf"},
	} {
		c.Active = true
		c.CreatedAt = now
		s.categories[c.ID] = c
	}

	for _, c := range []domain.Cookie{
		{ID: "cookie-choco-chip", CategoryID: "cat-classic", Name: "Chocolate Chip", Flavor: "chocolate", PriceCents: 2500, Stock: 120},
		{ID: "cookie-oatmeal-raisin", CategoryID: "cat-classic", Name: "Oatmeal Raisin", Flavor: "oatmeal", PriceCents: 2200, Stock: 80},
		{ID: "cookie-peanut-butter", CategoryID: "cat-classic", Name: "Peanut Butter", Flavor: "peanut_butter", PriceCents: 2400, Stock: 60},
		{ID: "cookie-ube-crinkle", CategoryID: "cat-specialty", Name: "Ube Crinkle", Flavor: "ube", PriceCents: 4000, Stock: 50},
		{ID: "cookie-matcha-white", CategoryID: "cat-specialty", Name: "Matcha White Chocolate", Flavor: "matcha", PriceCents: 4500, Stock: 40},
		{ID: "cookie-salted-caramel", CategoryID: "cat-specialty", Name: "Salted Caramel", Flavor: "caramel", PriceCents: 3800, Stock: 45},
		{ID: "cookie-spiced-ginger", CategoryID: "cat-seasonal", Name: "Spiced Ginger", Flavor: "spice", PriceCents: 3000, Stock: 0},
	} {
		c.Available = true
		c.CreatedAt = now
		c.UpdatedAt = now
		s.cookies[c.ID] = c
	}

	s.users = seedUsers(now)
	s.staff[SeedAdminStaffID] = domain.Staff{ID: SeedAdminStaffID, Username: "admin", Name: "Store Admin", Role: domain.StaffRoleAdmin, Active: true, CreatedAt: now}
	s.staff[SeedStaffID] = domain.Staff{ID: SeedStaffID, Username: "staff", Name: "Counter Staff", Phone: "09170000002", Role: domain.StaffRoleStaff, Active: true, CreatedAt: now}
	verifiedAt := now
	s.customers[SeedCustomerID] = domain.Customer{
		ID:              SeedCustomerID,
		Username:        "customer",
		Name:            "Maria Santos",
		Phone:           "09171234567",
		Email:           "customer@cookiecraze.com",
		EmailVerified:   true,
		EmailVerifiedAt: &verifiedAt,
		CreatedAt:       now,
	}
	return s
}

func (s *Store) ListCategories(_ context.Context, includeInactive bool) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if !includeInactive && !c.Active {
			continue
		}
		result = append(result, c)
	}
	slices.SortFunc(result, func(a, b domain.Category) int {
		return cmpString(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return result, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrInvalidRequest
	}
	if s.categoryNameTaken(category.Name, "") {
		return nil, fmt.Errorf("%w: category %q already exists", store.ErrConflict, category.Name)
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	s.categories[category.ID] = category
	return &category, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.categoryNameTaken(category.Name, category.ID) {
		return nil, fmt.Errorf("%w: category %q already exists", store.ErrConflict, category.Name)
	}
	category.CreatedAt = existing.CreatedAt
	s.categories[category.ID] = category
	return &category, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	for _, c := range s.cookies {
		if c.CategoryID == id {
			return fmt.Errorf("%w: category still has cookies", store.ErrConflict)
		}
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) categoryNameTaken(name string, exceptID string) bool {
	for _, c := range s.categories {
		if c.ID != exceptID && strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

func (s *Store) ListCookies(_ context.Context, filter domain.CookieFilter) ([]domain.Cookie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Cookie, 0, len(s.cookies))
	for _, c := range s.cookies {
		if filter.CategoryID != "" && c.CategoryID != filter.CategoryID {
			continue
		}
		if !filter.IncludeUnavailable && !c.Available {
			continue
		}
		result = append(result, cloneCookie(c))
	}
	slices.SortFunc(result, func(a, b domain.Cookie) int {
		if a.CategoryID == b.CategoryID {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.CategoryID, b.CategoryID)
	})
	return result, nil
}

func (s *Store) GetCookie(_ context.Context, id string) (*domain.Cookie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cookies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneCookie(c)
	return &dup, nil
}

func (s *Store) GetCookiesByIDs(_ context.Context, ids []string) (map[string]domain.Cookie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Cookie, len(ids))
	for _, id := range ids {
		if c, ok := s.cookies[id]; ok {
			result[id] = cloneCookie(c)
		}
	}
	return result, nil
}

func (s *Store) CreateCookie(_ context.Context, cookie domain.Cookie) (*domain.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[cookie.CategoryID]; !ok {
		return nil, fmt.Errorf("%w: unknown category %s", store.ErrInvalidRequest, cookie.CategoryID)
	}
	if cookie.ID == "" {
		cookie.ID = xid.New("cookie")
	}
	now := time.Now().UTC()
	cookie.CreatedAt = now
	cookie.UpdatedAt = now
	s.cookies[cookie.ID] = cloneCookie(cookie)
	return &cookie, nil
}

func (s *Store) UpdateCookie(_ context.Context, cookie domain.Cookie) (*domain.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.cookies[cookie.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if _, ok := s.categories[cookie.CategoryID]; !ok {
		return nil, fmt.Errorf("%w: unknown category %s", store.ErrInvalidRequest, cookie.CategoryID)
	}
	cookie.CreatedAt = existing.CreatedAt
	cookie.UpdatedAt = time.Now().UTC()
	s.cookies[cookie.ID] = cloneCookie(cookie)
	return &cookie, nil
}

func (s *Store) DeleteCookie(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cookies[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.cookies, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int) (*domain.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cookies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.Stock += delta
	if c.Stock < 0 {
		c.Stock = 0
	}
	c.UpdatedAt = time.Now().UTC()
	s.cookies[id] = c
	dup := cloneCookie(c)
	return &dup, nil
}

func (s *Store) CreateOrder(_ context.Context, req store.NewOrder) (*domain.Order, error) {
	lines := store.NormalizeLines(req.Lines)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order has no items", store.ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order := req.Order
	order.Items = make([]domain.OrderItem, 0, len(lines))
	order.TotalCents = 0
	for _, line := range lines {
		cookie, ok := s.cookies[line.CookieID]
		if !ok || !cookie.Available {
			return nil, fmt.Errorf("%w: cookie %s is not available", store.ErrInvalidRequest, line.CookieID)
		}
		if cookie.Stock < line.Quantity {
			return nil, fmt.Errorf("%w: only %d %s left", store.ErrInsufficientStock, cookie.Stock, cookie.Name)
		}
		lineTotal := cookie.PriceCents * int64(line.Quantity)
		order.Items = append(order.Items, domain.OrderItem{
			CookieID:       cookie.ID,
			CookieName:     cookie.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: cookie.PriceCents,
			LineTotalCents: lineTotal,
		})
		order.TotalCents += lineTotal
	}

	now := time.Now().UTC()
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	if order.Status == "" {
		order.Status = domain.StatusPending
	}
	if req.Finalize != nil {
		if err := req.Finalize(&order); err != nil {
			return nil, err
		}
	}
	if err := store.CheckBuyer(order); err != nil {
		return nil, err
	}
	if order.CustomerID != "" {
		if _, ok := s.customers[order.CustomerID]; !ok {
			return nil, fmt.Errorf("%w: unknown customer %s", store.ErrInvalidRequest, order.CustomerID)
		}
	}

	seqKey := req.Prefix + "|" + req.Day
	s.orderSeq[seqKey]++
	order.Code = store.FormatOrderCode(req.Prefix, req.Day, s.orderSeq[seqKey])
	for {
		order.HexCode = xid.HexCode()
		if _, taken := s.hexCodes[order.HexCode]; !taken {
			break
		}
	}

	for _, item := range order.Items {
		c := s.cookies[item.CookieID]
		c.Stock -= item.Quantity
		c.UpdatedAt = now
		s.cookies[item.CookieID] = c
	}
	s.awardLoyaltyLocked(&order)

	s.hexCodes[order.HexCode] = order.ID
	s.orders[order.ID] = cloneOrder(&order)
	return cloneOrder(&order), nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		if ownerID, byHex := s.hexCodes[strings.ToUpper(id)]; byHex {
			order = s.orders[ownerID]
			ok = order != nil
		}
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) ListOrders(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	result := make([]domain.Order, 0, 64)
	for _, order := range s.orders {
		if !matchesFilter(order, filter, query) {
			continue
		}
		result = append(result, *cloneOrder(order))
	}
	slices.SortFunc(result, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.Code, a.Code)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func matchesFilter(order *domain.Order, filter domain.OrderFilter, query string) bool {
	if filter.Status != "" && string(order.Status) != filter.Status {
		return false
	}
	if filter.PaymentMethod != "" && order.PaymentMethod != filter.PaymentMethod {
		return false
	}
	if filter.Type != "" && order.Type != filter.Type {
		return false
	}
	if filter.StaffID != "" && order.StaffID != filter.StaffID {
		return false
	}
	if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
		return false
	}
	if filter.Paid != nil && order.Paid != *filter.Paid {
		return false
	}
	if filter.From != nil && order.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && !order.CreatedAt.Before(*filter.To) {
		return false
	}
	if filter.VisibleToStaffID != "" {
		unassignedKiosk := order.Type == domain.OrderTypeKiosk && order.StaffID == ""
		if order.StaffID != filter.VisibleToStaffID && !unassignedKiosk {
			return false
		}
	}
	if query == "" {
		return true
	}
	for _, field := range []string{order.Code, order.CustomerName, order.StaffID, order.HexCode, order.GCashReference} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (s *Store) UpdateOrder(_ context.Context, id string, mutate store.OrderMutation) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := cloneOrder(existing)
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	s.awardLoyaltyLocked(next)
	s.orders[id] = next
	return cloneOrder(next), nil
}

func (s *Store) VoidOrder(_ context.Context, id string, entry domain.VoidLog, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	switch existing.Status {
	case domain.StatusVoided:
		return nil, store.ErrAlreadyVoided
	case domain.StatusCancelled:
		return nil, fmt.Errorf("%w: cancelled orders cannot be voided", store.ErrInvalidTransition)
	}

	next := cloneOrder(existing)
	s.restoreStockLocked(next.Items, at)
	next.Status = domain.StatusVoided
	next.UpdatedAt = at

	if entry.ID == "" {
		entry.ID = xid.VoidCode()
	}
	entry.OrderID = next.ID
	entry.OrderCode = next.Code
	entry.OriginalTotalCents = next.TotalCents
	entry.OriginalPaymentMethod = next.PaymentMethod
	entry.CreatedAt = at
	s.voidLogs = append(s.voidLogs, entry)

	s.orders[id] = next
	return cloneOrder(next), nil
}

func (s *Store) CancelOrder(_ context.Context, id string, check store.OrderMutation, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := cloneOrder(existing)
	if check != nil {
		if err := check(next); err != nil {
			return nil, err
		}
	}
	if existing.Status.Terminal() {
		return nil, fmt.Errorf("%w: order is %s", store.ErrInvalidTransition, existing.Status)
	}
	s.restoreStockLocked(next.Items, at)
	next.Status = domain.StatusCancelled
	next.UpdatedAt = at
	s.orders[id] = next
	return cloneOrder(next), nil
}

func (s *Store) CountOrdersSince(_ context.Context, since time.Time) (int, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	latestCode := ""
	var latestAt time.Time
	for _, order := range s.orders {
		if !order.CreatedAt.After(since) {
			continue
		}
		count++
		if order.CreatedAt.After(latestAt) {
			latestAt = order.CreatedAt
			latestCode = order.Code
		}
	}
	return count, latestCode, nil
}

// restoreStockLocked returns line quantities to stock. Cookies that were
// deleted since the order was placed are skipped.
func (s *Store) restoreStockLocked(items []domain.OrderItem, at time.Time) {
	for _, item := range items {
		c, ok := s.cookies[item.CookieID]
		if !ok {
			continue
		}
		c.Stock += item.Quantity
		c.UpdatedAt = at
		s.cookies[item.CookieID] = c
	}
}

func (s *Store) awardLoyaltyLocked(order *domain.Order) {
	points := store.PendingLoyalty(order)
	if points == 0 {
		return
	}
	customer, ok := s.customers[order.CustomerID]
	if !ok {
		return
	}
	customer.LoyaltyPoints += points
	s.customers[order.CustomerID] = customer
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidRequest
	}
	if customer.Username != "" {
		for _, c := range s.customers {
			if c.Username == customer.Username {
				return nil, fmt.Errorf("%w: customer profile exists for %s", store.ErrConflict, customer.Username)
			}
		}
	}
	for customer.ID == "" {
		candidate := xid.CustomerCode()
		if _, taken := s.customers[candidate]; !taken {
			customer.ID = candidate
		}
	}
	if _, taken := s.customers[customer.ID]; taken {
		return nil, fmt.Errorf("%w: customer %s exists", store.ErrConflict, customer.ID)
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = cloneCustomer(customer)
	return &customer, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneCustomer(c)
	return &dup, nil
}

func (s *Store) GetCustomerByUsername(_ context.Context, username string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username = strings.ToLower(strings.TrimSpace(username))
	for _, c := range s.customers {
		if username != "" && c.Username == username {
			dup := cloneCustomer(c)
			return &dup, nil
		}
	}
	return nil, store.ErrNotFound
}

// FindCustomer matches by name and phone, then name only, then phone only.
func (s *Store) FindCustomer(_ context.Context, name string, phone string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	candidates := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		candidates = append(candidates, c)
	}
	slices.SortFunc(candidates, func(a, b domain.Customer) int {
		return cmpString(a.ID, b.ID)
	})

	matchers := []func(domain.Customer) bool{
		func(c domain.Customer) bool {
			return name != "" && phone != "" && strings.EqualFold(c.Name, name) && c.Phone == phone
		},
		func(c domain.Customer) bool { return name != "" && strings.EqualFold(c.Name, name) },
		func(c domain.Customer) bool { return phone != "" && c.Phone == phone },
	}
	for _, match := range matchers {
		for _, c := range candidates {
			if match(c) {
				dup := cloneCustomer(c)
				return &dup, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	customer.CreatedAt = existing.CreatedAt
	customer.LoyaltyPoints = existing.LoyaltyPoints
	s.customers[customer.ID] = cloneCustomer(customer)
	return &customer, nil
}

func (s *Store) AddLoyaltyPoints(_ context.Context, id string, points int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return store.ErrNotFound
	}
	c.LoyaltyPoints += points
	s.customers[id] = c
	return nil
}

func (s *Store) GetCustomerByVerificationToken(_ context.Context, token string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if token == "" {
		return nil, store.ErrNotFound
	}
	for _, c := range s.customers {
		if c.VerificationToken == token {
			dup := cloneCustomer(c)
			return &dup, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListCustomers(_ context.Context, query string, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	result := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if query != "" && !customerMatches(c, query) {
			continue
		}
		result = append(result, cloneCustomer(c))
	}
	slices.SortFunc(result, func(a, b domain.Customer) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
		return cmpString(a.ID, b.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func customerMatches(c domain.Customer, query string) bool {
	for _, field := range []string{c.ID, c.Username, c.Name, c.Phone, c.Email} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	for _, order := range s.orders {
		if order.CustomerID == id {
			store.DetachCustomer(order)
			order.UpdatedAt = now
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CreateStaff(_ context.Context, staff domain.Staff) (*domain.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.staff {
		if staff.Username != "" && existing.Username == staff.Username {
			return nil, fmt.Errorf("%w: staff profile exists for %s", store.ErrConflict, staff.Username)
		}
	}
	for staff.ID == "" {
		candidate := xid.StaffCode()
		if _, taken := s.staff[candidate]; !taken {
			staff.ID = candidate
		}
	}
	if _, taken := s.staff[staff.ID]; taken {
		return nil, fmt.Errorf("%w: staff %s exists", store.ErrConflict, staff.ID)
	}
	if staff.Role == "" {
		staff.Role = domain.StaffRolePending
	}
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = time.Now().UTC()
	}
	s.staff[staff.ID] = staff
	return &staff, nil
}

func (s *Store) GetStaff(_ context.Context, id string) (*domain.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.staff[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func (s *Store) GetStaffByUsername(_ context.Context, username string) (*domain.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username = strings.ToLower(strings.TrimSpace(username))
	for _, st := range s.staff {
		if username != "" && st.Username == username {
			dup := st
			return &dup, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListStaff(_ context.Context, pendingOnly bool) ([]domain.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Staff, 0, len(s.staff))
	for _, st := range s.staff {
		if pendingOnly && st.Role != domain.StaffRolePending {
			continue
		}
		result = append(result, st)
	}
	slices.SortFunc(result, func(a, b domain.Staff) int {
		return cmpString(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) UpdateStaff(_ context.Context, staff domain.Staff) (*domain.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.staff[staff.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	staff.CreatedAt = existing.CreatedAt
	staff.Username = existing.Username
	s.staff[staff.ID] = staff
	return &staff, nil
}

func (s *Store) DeleteStaff(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.staff[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.staff, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRequest
	}
	if _, exists := s.users[username]; exists {
		return fmt.Errorf("%w: username %s is taken", store.ErrConflict, username)
	}
	user.Username = username
	if user.Kind == "" {
		user.Kind = domain.AccountCustomer
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[username] = cloneUser(user)
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneUser(user)
	return &dup, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, cloneUser(user))
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRequest
	}
	user, exists := s.users[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func (s *Store) SetUserActive(_ context.Context, username string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, exists := s.users[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Active = active
	s.users[username] = user
	return nil
}

func (s *Store) DeleteUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if _, exists := s.users[username]; !exists {
		return store.ErrNotFound
	}
	delete(s.users, username)
	return nil
}

func (s *Store) CreateCashFloat(_ context.Context, entry domain.CashFloat) (*domain.CashFloat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !domain.IsFloatType(entry.Type) || entry.AmountCents < 0 {
		return nil, store.ErrInvalidRequest
	}
	if entry.ID == "" {
		entry.ID = xid.New("float")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Day = store.DayStart(entry.Day)
	s.cashFloats[entry.ID] = entry
	return &entry, nil
}

func (s *Store) UpsertClosingFloat(ctx context.Context, entry domain.CashFloat) (*domain.CashFloat, error) {
	s.mu.Lock()
	day := store.DayStart(entry.Day)
	for id, existing := range s.cashFloats {
		if existing.Type != domain.FloatClosing || !existing.Day.Equal(day) {
			continue
		}
		existing.AmountCents = entry.AmountCents
		existing.Notes = entry.Notes
		existing.StaffID = entry.StaffID
		s.cashFloats[id] = existing
		s.mu.Unlock()
		return &existing, nil
	}
	s.mu.Unlock()

	entry.Type = domain.FloatClosing
	entry.AdjustmentType = ""
	return s.CreateCashFloat(ctx, entry)
}

func (s *Store) ListCashFloats(_ context.Context, day time.Time) ([]domain.CashFloat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day = store.DayStart(day)
	result := make([]domain.CashFloat, 0, 8)
	for _, entry := range s.cashFloats {
		if entry.Day.Equal(day) {
			result = append(result, entry)
		}
	}
	slices.SortFunc(result, func(a, b domain.CashFloat) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) GetCashFloat(_ context.Context, id string) (*domain.CashFloat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cashFloats[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &entry, nil
}

func (s *Store) DeleteCashFloat(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cashFloats[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.cashFloats, id)
	return nil
}

func (s *Store) CreateActivityLog(_ context.Context, entry domain.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("act")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.activityLogs = append(s.activityLogs, entry)
	return nil
}

func (s *Store) ListActivityLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ActivityLog, 0, 64)
	for _, entry := range s.activityLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.ActivityLog) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListVoidLogs(_ context.Context, from time.Time, to time.Time) ([]domain.VoidLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.VoidLog, 0, len(s.voidLogs))
	for _, entry := range s.voidLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.VoidLog) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return result, nil
}

func newestFirst(a, b time.Time, aID, bID string) int {
	if a.Equal(b) {
		return cmpString(bID, aID)
	}
	if a.After(b) {
		return -1
	}
	return 1
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneOrder(src *domain.Order) *domain.Order {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Items = make([]domain.OrderItem, len(src.Items))
	copy(dup.Items, src.Items)
	dup.CashReceivedCents = cloneInt64(src.CashReceivedCents)
	dup.GCashAmountCents = cloneInt64(src.GCashAmountCents)
	dup.GCashVerifiedAt = cloneTime(src.GCashVerifiedAt)
	dup.PaidAt = cloneTime(src.PaidAt)
	dup.CompletedAt = cloneTime(src.CompletedAt)
	return &dup
}

func cloneCookie(src domain.Cookie) domain.Cookie {
	dup := src
	dup.ExpirationDate = cloneTime(src.ExpirationDate)
	return dup
}

func cloneCustomer(src domain.Customer) domain.Customer {
	dup := src
	dup.VerificationSentAt = cloneTime(src.VerificationSentAt)
	dup.EmailVerifiedAt = cloneTime(src.EmailVerifiedAt)
	return dup
}

func cloneUser(src domain.UserAccount) domain.UserAccount {
	dup := src
	dup.Permissions = append([]string(nil), src.Permissions...)
	return dup
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	dup := *v
	return &dup
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	dup := *v
	return &dup
}
