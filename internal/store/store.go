package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cookiecraze/backend/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrAlreadyVoided       = errors.New("order already voided")
	ErrConflict            = errors.New("conflict")
	ErrForbidden           = errors.New("forbidden")
)

// OrderMutation is applied to a locked copy of an order. Returning an error
// aborts the update and leaves the stored order untouched.
type OrderMutation func(order *domain.Order) error

// NewOrder carries everything the store needs to create an order atomically.
// Prices and the total are snapshotted from the locked cookie rows; Finalize
// runs after the total is known and before the order is written.
//
// The order code is Prefix-Day-NNN where NNN comes from a per (Prefix, Day)
// counter advanced in the same transaction.
type NewOrder struct {
	Order    domain.Order
	Lines    []domain.OrderLine
	Prefix   string
	Day      string
	Finalize OrderMutation
}

// FormatOrderCode renders KIO-20260314-007 style codes.
func FormatOrderCode(prefix string, day string, seq int) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, day, seq)
}

// CheckBuyer enforces that exactly one of customer link or walk-in name
// identifies the buyer.
func CheckBuyer(order domain.Order) error {
	hasCustomer := order.CustomerID != ""
	hasWalkIn := order.WalkInName != ""
	if hasCustomer == hasWalkIn {
		return fmt.Errorf("%w: order needs either a customer or a walk-in name", ErrInvalidRequest)
	}
	return nil
}

// NormalizeLines merges duplicate cookies and drops non-positive quantities.
func NormalizeLines(lines []domain.OrderLine) []domain.OrderLine {
	agg := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.CookieID)
		if id == "" || line.Quantity < 1 {
			continue
		}
		if _, seen := agg[id]; !seen {
			order = append(order, id)
		}
		agg[id] += line.Quantity
	}
	normalized := make([]domain.OrderLine, 0, len(agg))
	for _, id := range order {
		normalized = append(normalized, domain.OrderLine{CookieID: id, Quantity: agg[id]})
	}
	return normalized
}

type Repository interface {
	ListCategories(ctx context.Context, includeInactive bool) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListCookies(ctx context.Context, filter domain.CookieFilter) ([]domain.Cookie, error)
	GetCookie(ctx context.Context, id string) (*domain.Cookie, error)
	GetCookiesByIDs(ctx context.Context, ids []string) (map[string]domain.Cookie, error)
	CreateCookie(ctx context.Context, cookie domain.Cookie) (*domain.Cookie, error)
	UpdateCookie(ctx context.Context, cookie domain.Cookie) (*domain.Cookie, error)
	DeleteCookie(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Cookie, error)

	CreateOrder(ctx context.Context, req NewOrder) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	UpdateOrder(ctx context.Context, id string, mutate OrderMutation) (*domain.Order, error)
	VoidOrder(ctx context.Context, id string, entry domain.VoidLog, at time.Time) (*domain.Order, error)
	CancelOrder(ctx context.Context, id string, check OrderMutation, at time.Time) (*domain.Order, error)
	CountOrdersSince(ctx context.Context, since time.Time) (int, string, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	GetCustomerByUsername(ctx context.Context, username string) (*domain.Customer, error)
	FindCustomer(ctx context.Context, name string, phone string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	AddLoyaltyPoints(ctx context.Context, id string, points int64) error
	GetCustomerByVerificationToken(ctx context.Context, token string) (*domain.Customer, error)
	// ListCustomers matches query against id, username, name, phone and
	// email. An empty query lists everyone, newest first.
	ListCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error)
	// DeleteCustomer removes the profile. Its orders keep the buyer's name as
	// a walk-in name so sales history stays intact.
	DeleteCustomer(ctx context.Context, id string) error

	CreateStaff(ctx context.Context, staff domain.Staff) (*domain.Staff, error)
	GetStaff(ctx context.Context, id string) (*domain.Staff, error)
	GetStaffByUsername(ctx context.Context, username string) (*domain.Staff, error)
	ListStaff(ctx context.Context, pendingOnly bool) ([]domain.Staff, error)
	UpdateStaff(ctx context.Context, staff domain.Staff) (*domain.Staff, error)
	DeleteStaff(ctx context.Context, id string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
	SetUserActive(ctx context.Context, username string, active bool) error
	DeleteUser(ctx context.Context, username string) error

	CreateCashFloat(ctx context.Context, entry domain.CashFloat) (*domain.CashFloat, error)
	UpsertClosingFloat(ctx context.Context, entry domain.CashFloat) (*domain.CashFloat, error)
	ListCashFloats(ctx context.Context, day time.Time) ([]domain.CashFloat, error)
	GetCashFloat(ctx context.Context, id string) (*domain.CashFloat, error)
	DeleteCashFloat(ctx context.Context, id string) error

	CreateActivityLog(ctx context.Context, entry domain.ActivityLog) error
	ListActivityLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.ActivityLog, error)
	ListVoidLogs(ctx context.Context, from time.Time, to time.Time) ([]domain.VoidLog, error)
}

// PendingLoyalty marks a completed, customer-linked order as awarded and
// returns the points owed. It returns 0 when nothing is due.
func PendingLoyalty(order *domain.Order) int64 {
	if order == nil || order.Status != domain.StatusCompleted || order.CustomerID == "" || order.LoyaltyAwarded {
		return 0
	}
	order.LoyaltyAwarded = true
	return order.LoyaltyPoints()
}

// DeletedCustomerName labels orders of a deleted customer that carried no
// buyer name.
const DeletedCustomerName = "Deleted customer"

// DetachCustomer turns a customer-linked order into a walk-in order under
// the name recorded at checkout.
func DetachCustomer(order *domain.Order) {
	if order.CustomerID == "" {
		return
	}
	order.CustomerID = ""
	if strings.TrimSpace(order.WalkInName) == "" {
		order.WalkInName = order.CustomerName
	}
	if strings.TrimSpace(order.WalkInName) == "" {
		order.WalkInName = DeletedCustomerName
		order.CustomerName = DeletedCustomerName
	}
}

// DayStart truncates t to midnight UTC. Ledger days are stored this way.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
