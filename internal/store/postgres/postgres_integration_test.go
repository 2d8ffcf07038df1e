package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("COOKIECRAZE_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set COOKIECRAZE_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func seedCookie(t *testing.T, s *Store, stamp int64, stock int) domain.Cookie {
	t.Helper()
	ctx := context.Background()
	category, err := s.CreateCategory(ctx, domain.Category{
		ID:     fmt.Sprintf("cat-it-%d", stamp),
		Name:   fmt.Sprintf("IT Category %d", stamp),
		Color:  "#007bff",
		Active: true,
	})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	cookie, err := s.CreateCookie(ctx, domain.Cookie{
		ID:         fmt.Sprintf("cookie-it-%d", stamp),
		CategoryID: category.ID,
		Name:       "Integration Chip",
		Flavor:     "chocolate",
		PriceCents: 4500,
		Stock:      stock,
		Available:  true,
	})
	if err != nil {
		t.Fatalf("create cookie: %v", err)
	}
	return *cookie
}

func cleanupOrder(t *testing.T, s *Store, orderID string, cookie domain.Cookie) {
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = s.db.ExecContext(ctx, `DELETE FROM void_logs WHERE order_id = $1`, orderID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cookies WHERE id = $1`, cookie.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, cookie.CategoryID)
	})
}

func TestCreateAndVoidOrderRestocksCookie(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()
	cookie := seedCookie(t, s, stamp, 10)
	orderID := fmt.Sprintf("ord-it-%d", stamp)
	cleanupOrder(t, s, orderID, cookie)

	day := fmt.Sprintf("IT%d", stamp%1_000_000)
	order, err := s.CreateOrder(ctx, store.NewOrder{
		Order: domain.Order{
			ID:            orderID,
			Type:          domain.OrderTypeStaff,
			PaymentMethod: domain.PaymentCash,
			WalkInName:    "Integration Buyer",
			CustomerName:  "Integration Buyer",
		},
		Lines:  []domain.OrderLine{{CookieID: cookie.ID, Quantity: 2}},
		Prefix: "STA",
		Day:    day,
		Finalize: func(o *domain.Order) error {
			o.RecordCash(10000)
			o.MarkCompleted(time.Now().UTC())
			return nil
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.TotalCents != 9000 || order.ChangeCents != 1000 {
		t.Fatalf("expected total 9000 change 1000, got %d/%d", order.TotalCents, order.ChangeCents)
	}
	if order.Code != store.FormatOrderCode("STA", day, 1) {
		t.Fatalf("unexpected order code %s", order.Code)
	}
	if len(order.HexCode) != 8 {
		t.Fatalf("expected 8 char hex code, got %q", order.HexCode)
	}

	after, err := s.GetCookie(ctx, cookie.ID)
	if err != nil {
		t.Fatalf("get cookie: %v", err)
	}
	if after.Stock != 8 {
		t.Fatalf("expected stock 8 after sale, got %d", after.Stock)
	}

	byHex, err := s.GetOrder(ctx, order.HexCode)
	if err != nil {
		t.Fatalf("get order by hex: %v", err)
	}
	if byHex.ID != orderID || len(byHex.Items) != 1 || byHex.Items[0].Quantity != 2 {
		t.Fatalf("unexpected order from hex lookup: %+v", byHex)
	}

	at := time.Now().UTC()
	voided, err := s.VoidOrder(ctx, orderID, domain.VoidLog{Reason: "integration test void", StaffMember: "staff"}, at)
	if err != nil {
		t.Fatalf("void order: %v", err)
	}
	if voided.Status != domain.StatusVoided {
		t.Fatalf("expected voided status, got %s", voided.Status)
	}
	if _, err := s.VoidOrder(ctx, orderID, domain.VoidLog{Reason: "again"}, at); !errors.Is(err, store.ErrAlreadyVoided) {
		t.Fatalf("expected ErrAlreadyVoided on second void, got %v", err)
	}

	restocked, err := s.GetCookie(ctx, cookie.ID)
	if err != nil {
		t.Fatalf("get cookie: %v", err)
	}
	if restocked.Stock != 10 {
		t.Fatalf("expected stock 10 after void restock, got %d", restocked.Stock)
	}

	logs, err := s.ListVoidLogs(ctx, at.Add(-time.Minute), at.Add(time.Minute))
	if err != nil {
		t.Fatalf("list void logs: %v", err)
	}
	found := false
	for _, entry := range logs {
		if entry.OrderID == orderID {
			found = entry.OriginalTotalCents == 9000 && entry.OriginalPaymentMethod == domain.PaymentCash
		}
	}
	if !found {
		t.Fatalf("expected void log for %s with original total", orderID)
	}
}

func TestCreateOrderRejectsOversell(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()
	cookie := seedCookie(t, s, stamp, 1)
	orderID := fmt.Sprintf("ord-it-%d", stamp)
	cleanupOrder(t, s, orderID, cookie)

	_, err := s.CreateOrder(ctx, store.NewOrder{
		Order: domain.Order{
			ID:            orderID,
			Type:          domain.OrderTypeKiosk,
			PaymentMethod: domain.PaymentGCash,
			WalkInName:    "Kiosk Customer",
			CustomerName:  "Kiosk Customer",
		},
		Lines:  []domain.OrderLine{{CookieID: cookie.ID, Quantity: 3}},
		Prefix: "KIO",
		Day:    fmt.Sprintf("IT%d", stamp%1_000_000),
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	after, err := s.GetCookie(ctx, cookie.ID)
	if err != nil {
		t.Fatalf("get cookie: %v", err)
	}
	if after.Stock != 1 {
		t.Fatalf("expected stock untouched at 1, got %d", after.Stock)
	}
}

func TestUpsertClosingFloatKeepsOneEntryPerDay(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2001, time.January, 1+int(time.Now().UnixNano()%300), 0, 0, 0, 0, time.UTC)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), `DELETE FROM cash_floats WHERE day = $1`, day)
	})

	first, err := s.UpsertClosingFloat(ctx, domain.CashFloat{Day: day, AmountCents: 50000, Notes: "first count"})
	if err != nil {
		t.Fatalf("first closing: %v", err)
	}
	second, err := s.UpsertClosingFloat(ctx, domain.CashFloat{Day: day, AmountCents: 48500, Notes: "recount"})
	if err != nil {
		t.Fatalf("second closing: %v", err)
	}
	if second.ID != first.ID || second.AmountCents != 48500 {
		t.Fatalf("expected closing %s replaced with 48500, got %s/%d", first.ID, second.ID, second.AmountCents)
	}

	entries, err := s.ListCashFloats(ctx, day)
	if err != nil {
		t.Fatalf("list floats: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != domain.FloatClosing {
		t.Fatalf("expected one closing entry, got %+v", entries)
	}
}
