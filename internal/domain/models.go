package domain

import "time"

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type CategoryCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

type CategoryUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type Cookie struct {
	ID             string     `json:"id"`
	CategoryID     string     `json:"category_id"`
	Name           string     `json:"name"`
	Flavor         string     `json:"flavor"`
	Description    string     `json:"description"`
	PriceCents     int64      `json:"price_cents"`
	Stock          int        `json:"stock"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	Available      bool       `json:"available"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Orderable reports whether the cookie can be put into a cart or order.
func (c Cookie) Orderable() bool {
	return c.Available && c.Stock > 0
}

type CookieCreateRequest struct {
	CategoryID     string  `json:"category_id"`
	Name           string  `json:"name"`
	Flavor         string  `json:"flavor"`
	Description    string  `json:"description"`
	PriceCents     int64   `json:"price_cents"`
	Stock          int     `json:"stock"`
	ExpirationDate *string `json:"expiration_date,omitempty"`
}

type CookieUpdateRequest struct {
	CategoryID     *string `json:"category_id,omitempty"`
	Name           *string `json:"name,omitempty"`
	Flavor         *string `json:"flavor,omitempty"`
	Description    *string `json:"description,omitempty"`
	PriceCents     *int64  `json:"price_cents,omitempty"`
	Available      *bool   `json:"available,omitempty"`
	ExpirationDate *string `json:"expiration_date,omitempty"`
}

type StockAdjustRequest struct {
	Delta int    `json:"delta"`
	Notes string `json:"notes"`
}

type CookieFilter struct {
	CategoryID         string
	IncludeUnavailable bool
}

var Flavors = []string{
	"chocolate", "vanilla", "strawberry", "oatmeal", "peanut_butter", "butter",
	"white_chocolate", "almond", "pistachio", "caramel", "mint_chocolate",
	"cream_cheese", "spice", "ube", "matcha", "chocolate_hazelnut",
	"chocolate_marshmallow", "almond_oat",
}

func IsFlavor(value string) bool {
	for _, f := range Flavors {
		if f == value {
			return true
		}
	}
	return false
}

const (
	AccountCustomer = "customer"
	AccountStaff    = "staff"
	AccountAdmin    = "admin"
)

const PermissionVoidAnyOrder = "void_any_order"

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username    string
	Password    string
	Kind        string
	Superuser   bool
	Active      bool
	Email       string
	Permissions []string
	CreatedAt   time.Time
}

func (u UserAccount) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

type Customer struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username,omitempty"`
	Name               string     `json:"name"`
	Phone              string     `json:"phone"`
	Email              string     `json:"email"`
	LoyaltyPoints      int64      `json:"loyalty_points"`
	EmailVerified      bool       `json:"email_verified"`
	VerificationToken  string     `json:"-"`
	VerificationSentAt *time.Time `json:"-"`
	EmailVerifiedAt    *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

type CustomerRegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

type CustomerUpdateRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
}

// CustomerAccount is a customer profile with the state of its login.
// Profiles created for walk-in buyers have no account.
type CustomerAccount struct {
	Customer
	HasAccount    bool `json:"has_account"`
	AccountActive bool `json:"account_active"`
}

type CustomerOrders struct {
	Customer        CustomerAccount `json:"customer"`
	Orders          []Order         `json:"orders"`
	Count           int             `json:"count"`
	TotalSpentCents int64           `json:"total_spent_cents"`
}

const (
	StaffRolePending = "pending"
	StaffRoleStaff   = "staff"
	StaffRoleManager = "manager"
	StaffRoleAdmin   = "admin"
)

func IsStaffRole(role string) bool {
	switch role {
	case StaffRolePending, StaffRoleStaff, StaffRoleManager, StaffRoleAdmin:
		return true
	default:
		return false
	}
}

type Staff struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type StaffRegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type StaffUpdateRequest struct {
	Role   *string `json:"role,omitempty"`
	Active *bool   `json:"active,omitempty"`
	Name   *string `json:"name,omitempty"`
	Phone  *string `json:"phone,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Kind        string `json:"kind"`
	Route       string `json:"route"`
	ExpiresAt   string `json:"expires_at"`
}

type RegisterResponse struct {
	Username         string    `json:"username"`
	Customer         *Customer `json:"customer,omitempty"`
	Staff            *Staff    `json:"staff,omitempty"`
	VerificationSent bool      `json:"verification_sent,omitempty"`
}

const (
	OrderTypeKiosk = "kiosk"
	OrderTypeStaff = "staff"
)

const (
	PaymentCash  = "cash"
	PaymentGCash = "gcash"
)

func IsPaymentMethod(method string) bool {
	return method == PaymentCash || method == PaymentGCash
}

type Order struct {
	ID                string      `json:"id"`
	Code              string      `json:"code"`
	HexCode           string      `json:"hex_code"`
	CustomerID        string      `json:"customer_id,omitempty"`
	CustomerName      string      `json:"customer_name"`
	WalkInName        string      `json:"walk_in_name,omitempty"`
	WalkInPhone       string      `json:"walk_in_phone,omitempty"`
	StaffID           string      `json:"staff_id,omitempty"`
	Type              string      `json:"type"`
	PaymentMethod     string      `json:"payment_method"`
	Status            OrderStatus `json:"status"`
	Notes             string      `json:"notes,omitempty"`
	TotalCents        int64       `json:"total_cents"`
	Paid              bool        `json:"paid"`
	CashReceivedCents *int64      `json:"cash_received_cents,omitempty"`
	ChangeCents       int64       `json:"change_cents"`
	GCashNumber       string      `json:"gcash_number,omitempty"`
	GCashReference    string      `json:"gcash_reference,omitempty"`
	GCashAmountCents  *int64      `json:"gcash_amount_cents,omitempty"`
	GCashVerifiedBy   string      `json:"gcash_verified_by,omitempty"`
	GCashVerifiedAt   *time.Time  `json:"gcash_verified_at,omitempty"`
	LoyaltyAwarded    bool        `json:"loyalty_awarded"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	PaidAt            *time.Time  `json:"paid_at,omitempty"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty"`
	Items             []OrderItem `json:"items"`
}

type OrderItem struct {
	CookieID       string `json:"cookie_id"`
	CookieName     string `json:"cookie_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

// OrderLine is a requested (cookie, quantity) pair before prices are snapshotted.
type OrderLine struct {
	CookieID string `json:"cookie_id"`
	Quantity int    `json:"quantity"`
}

// RecordCash stores the tendered amount and derives change as max(0, received - total).
func (o *Order) RecordCash(receivedCents int64) {
	received := receivedCents
	o.CashReceivedCents = &received
	o.ChangeCents = receivedCents - o.TotalCents
	if o.ChangeCents < 0 {
		o.ChangeCents = 0
	}
}

// MarkCompleted moves the order to completed and stamps paid/completed times.
func (o *Order) MarkCompleted(at time.Time) {
	o.Status = StatusCompleted
	o.Paid = true
	if o.PaidAt == nil {
		paidAt := at
		o.PaidAt = &paidAt
	}
	completedAt := at
	o.CompletedAt = &completedAt
	o.UpdatedAt = at
}

// LoyaltyPoints is floor(total in pesos).
func (o Order) LoyaltyPoints() int64 {
	if o.TotalCents <= 0 {
		return 0
	}
	return o.TotalCents / 100
}

func (o Order) ItemCount() int {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

type KioskOrderRequest struct {
	Items         []OrderLine `json:"items"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
	PaymentMethod string      `json:"payment_method"`
	Notes         string      `json:"notes"`
}

type KioskPaymentRequest struct {
	PaymentMethod  string `json:"payment_method"`
	AmountPaid     int64  `json:"amount_paid_cents"`
	GCashNumber    string `json:"gcash_number"`
	GCashReference string `json:"gcash_reference"`
}

type WalkInOrderRequest struct {
	Items          []OrderLine `json:"items"`
	CustomerName   string      `json:"customer_name"`
	CustomerPhone  string      `json:"customer_phone"`
	PaymentMethod  string      `json:"payment_method"`
	AmountPaid     int64       `json:"amount_paid_cents"`
	GCashNumber    string      `json:"gcash_number"`
	GCashReference string      `json:"gcash_reference"`
	Notes          string      `json:"notes"`
}

type GCashVerifyRequest struct {
	Reference   string `json:"gcash_reference"`
	AmountCents int64  `json:"amount_cents"`
}

type CashConfirmRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type VoidOrderRequest struct {
	Reason        string `json:"reason"`
	AdminUsername string `json:"admin_username,omitempty"`
	AdminPassword string `json:"admin_password,omitempty"`
}

type VoidOrderResponse struct {
	Order   Order   `json:"order"`
	VoidLog VoidLog `json:"void_log"`
}

type CartCheckoutRequest struct {
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes"`
}

type OrderFilter struct {
	Query         string
	Status        string
	PaymentMethod string
	Type          string
	StaffID       string
	CustomerID    string
	Paid          *bool
	From          *time.Time
	To            *time.Time
	// VisibleToStaffID restricts results to orders recorded by this staff
	// member plus unassigned kiosk orders.
	VisibleToStaffID string
	Limit            int
}

type OrderListResponse struct {
	Orders []Order `json:"orders"`
	Count  int     `json:"count"`
}

type NewOrdersResponse struct {
	Changed    bool   `json:"changed"`
	Version    int64  `json:"version"`
	NewCount   int    `json:"new_count"`
	LatestCode string `json:"latest_code,omitempty"`
	CheckedAt  string `json:"checked_at"`
}

type Receipt struct {
	StoreName         string      `json:"store_name"`
	OrderCode         string      `json:"order_code"`
	HexCode           string      `json:"hex_code"`
	Date              string      `json:"date"`
	Customer          string      `json:"customer"`
	Staff             string      `json:"staff,omitempty"`
	Items             []OrderItem `json:"items"`
	Total             string      `json:"total"`
	TotalCents        int64       `json:"total_cents"`
	PaymentMethod     string      `json:"payment_method"`
	Status            OrderStatus `json:"status"`
	CashReceived      string      `json:"cash_received,omitempty"`
	Change            string      `json:"change,omitempty"`
	GCashReference    string      `json:"gcash_reference,omitempty"`
	GCashAccountName  string      `json:"gcash_account_name,omitempty"`
	GCashAccountPhone string      `json:"gcash_number,omitempty"`
}

const (
	FloatOpening    = "opening"
	FloatAdditional = "additional"
	FloatClosing    = "closing"
	FloatAdjustment = "adjustment"
)

const (
	AdjustmentShortage     = "shortage"
	AdjustmentExcess       = "excess"
	AdjustmentChangeAdd    = "change_add"
	AdjustmentChangeRemove = "change_remove"
)

func IsFloatType(value string) bool {
	switch value {
	case FloatOpening, FloatAdditional, FloatClosing, FloatAdjustment:
		return true
	default:
		return false
	}
}

func IsAdjustmentType(value string) bool {
	switch value {
	case AdjustmentShortage, AdjustmentExcess, AdjustmentChangeAdd, AdjustmentChangeRemove:
		return true
	default:
		return false
	}
}

type CashFloat struct {
	ID             string    `json:"id"`
	Day            time.Time `json:"day"`
	Type           string    `json:"type"`
	AdjustmentType string    `json:"adjustment_type,omitempty"`
	AmountCents    int64     `json:"amount_cents"`
	Notes          string    `json:"notes,omitempty"`
	StaffID        string    `json:"staff_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type CashFloatRequest struct {
	Type           string `json:"type"`
	AdjustmentType string `json:"adjustment_type"`
	AmountCents    int64  `json:"amount_cents"`
	Notes          string `json:"notes"`
	Date           string `json:"date"`
}

type ManualReconciliationRequest struct {
	OpeningCents    int64 `json:"opening_cents"`
	CashSalesCents  int64 `json:"cash_sales_cents"`
	ChangeUsedCents int64 `json:"change_used_cents"`
	ReturnedCents   int64 `json:"returned_cents"`
}

type ReconciliationEvent struct {
	At          time.Time `json:"at"`
	Kind        string    `json:"kind"`
	Reference   string    `json:"reference"`
	AmountCents int64     `json:"amount_cents"`
	Detail      string    `json:"detail,omitempty"`
}

type ReconciliationReport struct {
	Date                 string                `json:"date"`
	OpeningCents         int64                 `json:"opening_cents"`
	AdditionalCents      int64                 `json:"additional_cents"`
	ChangeAddedCents     int64                 `json:"change_added_cents"`
	ChangeRemovedCents   int64                 `json:"change_removed_cents"`
	ShortageAdjustCents  int64                 `json:"shortage_adjustment_cents"`
	ExcessAdjustCents    int64                 `json:"excess_adjustment_cents"`
	CashSalesCents       int64                 `json:"cash_sales_cents"`
	CashOrders           int                   `json:"cash_orders"`
	CashReceivedCents    int64                 `json:"cash_received_cents"`
	ChangeGivenCents     int64                 `json:"change_given_cents"`
	ChangeUsedCents      int64                 `json:"change_used_cents"`
	ExpectedReturnCents  int64                 `json:"expected_return_cents"`
	ReturnedCents        int64                 `json:"returned_cents"`
	VarianceCents        int64                 `json:"variance_cents"`
	ShortageCents        int64                 `json:"shortage_cents"`
	OverageCents         int64                 `json:"overage_cents"`
	Status               string                `json:"status"`
	Entries              []CashFloat           `json:"entries"`
	Timeline             []ReconciliationEvent `json:"timeline"`
	ManualOverrideResult bool                  `json:"manual_override"`
}

type VoidLog struct {
	ID                    string    `json:"id"`
	OrderID               string    `json:"order_id"`
	OrderCode             string    `json:"order_code"`
	Reason                string    `json:"reason"`
	OriginalTotalCents    int64     `json:"original_total_cents"`
	OriginalPaymentMethod string    `json:"original_payment_method"`
	StaffMember           string    `json:"staff_member,omitempty"`
	AdminUser             string    `json:"admin_user,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

type ActivityLog struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Action        string    `json:"action"`
	Description   string    `json:"description"`
	IPAddress     string    `json:"ip_address,omitempty"`
	AffectedModel string    `json:"affected_model,omitempty"`
	AffectedID    string    `json:"affected_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type SalesQuery struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	StaffID string    `json:"staff_id,omitempty"`
}

type TypeStats struct {
	Orders       int   `json:"orders"`
	RevenueCents int64 `json:"revenue_cents"`
	AverageCents int64 `json:"average_cents"`
}

type PaymentStats struct {
	Method        string  `json:"method"`
	Orders        int     `json:"orders"`
	AmountCents   int64   `json:"amount_cents"`
	ReceivedCents int64   `json:"received_cents,omitempty"`
	ChangeCents   int64   `json:"change_cents,omitempty"`
	SharePercent  float64 `json:"share_percent"`
	AverageCents  int64   `json:"average_cents"`
}

type DailySales struct {
	Date         string `json:"date"`
	Orders       int    `json:"orders"`
	RevenueCents int64  `json:"revenue_cents"`
}

type TopCookie struct {
	CookieID     string `json:"cookie_id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	RevenueCents int64  `json:"revenue_cents"`
}

type StaffSales struct {
	StaffID      string `json:"staff_id"`
	Name         string `json:"name"`
	Orders       int    `json:"orders"`
	RevenueCents int64  `json:"revenue_cents"`
	AverageCents int64  `json:"average_cents"`
}

type SalesReport struct {
	From              string         `json:"from"`
	To                string         `json:"to"`
	StaffID           string         `json:"staff_id,omitempty"`
	Orders            int            `json:"orders"`
	RevenueCents      int64          `json:"revenue_cents"`
	AverageOrderCents int64          `json:"average_order_cents"`
	AllOrders         int            `json:"all_orders"`
	CompletionRate    float64        `json:"completion_rate"`
	VoidedOrders      int            `json:"voided_orders"`
	WalkIn            TypeStats      `json:"walk_in"`
	Kiosk             TypeStats      `json:"kiosk"`
	Cash              PaymentStats   `json:"cash"`
	Digital           PaymentStats   `json:"digital"`
	ByPayment         []PaymentStats `json:"by_payment"`
	Daily             []DailySales   `json:"daily"`
	TopCookies        []TopCookie    `json:"top_cookies"`
	StaffPerformance  []StaffSales   `json:"staff_performance"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

type StoreSettings struct {
	StoreName        string  `json:"store_name" yaml:"store_name"`
	TaxRate          float64 `json:"tax_rate" yaml:"tax_rate"`
	GCashAccountName string  `json:"gcash_account_name" yaml:"gcash_account_name"`
	GCashNumber      string  `json:"gcash_number" yaml:"gcash_number"`
	CurrencySymbol   string  `json:"currency_symbol" yaml:"currency_symbol"`
	TopItemsLimit    int     `json:"top_items_limit" yaml:"top_items_limit"`
}

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderVoided        = "order.voided"
	EventOrderCancelled     = "order.cancelled"
)

type OrderEvent struct {
	Type          string      `json:"type"`
	OrderID       string      `json:"order_id"`
	Code          string      `json:"code"`
	OrderType     string      `json:"order_type"`
	Status        OrderStatus `json:"status"`
	PaymentMethod string      `json:"payment_method"`
	TotalCents    int64       `json:"total_cents"`
	Actor         string      `json:"actor"`
	At            time.Time   `json:"at"`
}

type CartItemRequest struct {
	CookieID string `json:"cookie_id"`
	Quantity int    `json:"quantity"`
}

type CartLine struct {
	CookieID       string `json:"cookie_id"`
	Name           string `json:"name"`
	PriceCents     int64  `json:"price_cents"`
	Quantity       int    `json:"quantity"`
	Stock          int    `json:"stock"`
	LineTotalCents int64  `json:"line_total_cents"`
}

type CartView struct {
	Items      []CartLine `json:"items"`
	ItemCount  int        `json:"item_count"`
	TotalCents int64      `json:"total_cents"`
	Messages   []string   `json:"messages,omitempty"`
}

type AdminDashboard struct {
	Date              string        `json:"date"`
	OrdersToday       int           `json:"orders_today"`
	CompletedToday    int           `json:"completed_today"`
	PendingToday      int           `json:"pending_today"`
	CompletionRate    float64       `json:"completion_rate"`
	RevenueTodayCents int64         `json:"revenue_today_cents"`
	KioskOrdersToday  int           `json:"kiosk_orders_today"`
	WalkInOrdersToday int           `json:"walk_in_orders_today"`
	Kiosk             TypeStats     `json:"kiosk"`
	WalkIn            TypeStats     `json:"walk_in"`
	Cash              PaymentStats  `json:"cash"`
	GCash             PaymentStats  `json:"gcash"`
	Last7Days         []DailySales  `json:"last_7_days"`
	LowStock          []Cookie      `json:"low_stock"`
	LowStockCount     int           `json:"low_stock_count"`
	OutOfStockCount   int           `json:"out_of_stock_count"`
	PendingStaffCount int           `json:"pending_staff_count"`
	PendingGCashCount int           `json:"pending_gcash_count"`
	TopSeller         *TopCookie    `json:"top_seller,omitempty"`
	RecentActivity    []ActivityLog `json:"recent_activity"`
	StaffPerformance  []StaffSales  `json:"staff_performance"`
	RecentOrders      []Order       `json:"recent_orders"`
}

type StaffDashboard struct {
	Date              string  `json:"date"`
	OrdersToday       int     `json:"orders_today"`
	CompletedToday    int     `json:"completed_today"`
	PendingToday      int     `json:"pending_today"`
	SalesTodayCents   int64   `json:"sales_today_cents"`
	MonthOrders       int     `json:"month_orders"`
	MonthSalesCents   int64   `json:"month_sales_cents"`
	KioskQueue        int     `json:"kiosk_queue"`
	PendingGCashCount int     `json:"pending_gcash_count"`
	LowStockCount     int     `json:"low_stock_count"`
	RecentCompleted   []Order `json:"recent_completed"`
}

type CustomerDashboard struct {
	Customer        Customer `json:"customer"`
	LoyaltyPoints   int64    `json:"loyalty_points"`
	TotalOrders     int      `json:"total_orders"`
	TotalSpentCents int64    `json:"total_spent_cents"`
	ActiveOrder     *Order   `json:"active_order,omitempty"`
	RecentOrders    []Order  `json:"recent_orders"`
}

// Dashboard carries the landing page content for the caller's route. Only
// the section matching the route is set.
type Dashboard struct {
	Route    string             `json:"route"`
	Admin    *AdminDashboard    `json:"admin,omitempty"`
	Staff    *StaffDashboard    `json:"staff,omitempty"`
	Customer *CustomerDashboard `json:"customer,omitempty"`
}

type MeResponse struct {
	Principal Principal `json:"principal"`
	Route     string    `json:"route"`
}

type SalesExportRow struct {
	Date          time.Time
	OrderCode     string
	Staff         string
	Customer      string
	PaymentMethod string
	OrderType     string
	TotalCents    int64
	Status        OrderStatus
}

type SalesExport struct {
	FileName string
	Rows     []SalesExportRow
}
