package reporting

import (
	"context"
	"testing"
	"time"

	"cookiecraze/backend/internal/cache"
	"cookiecraze/backend/internal/domain"
)

func sampleOrders(base time.Time) []domain.Order {
	received := int64(10000)
	return []domain.Order{
		{
			Code: "STA-1", Type: domain.OrderTypeStaff, PaymentMethod: domain.PaymentCash, Status: domain.StatusCompleted,
			TotalCents: 9000, CashReceivedCents: &received, ChangeCents: 1000, StaffID: "STAFF1002", CreatedAt: base,
			Items: []domain.OrderItem{
				{CookieID: "choco", CookieName: "Chocolate Chip", Quantity: 2, LineTotalCents: 5000},
				{CookieID: "ube", CookieName: "Ube Crinkle", Quantity: 1, LineTotalCents: 4000},
			},
		},
		{
			Code: "KIO-1", Type: domain.OrderTypeKiosk, PaymentMethod: domain.PaymentGCash, Status: domain.StatusCompleted,
			TotalCents: 4000, CreatedAt: base.Add(time.Hour),
			Items: []domain.OrderItem{{CookieID: "ube", CookieName: "Ube Crinkle", Quantity: 1, LineTotalCents: 4000}},
		},
		{Code: "KIO-2", Type: domain.OrderTypeKiosk, Status: domain.StatusPending, TotalCents: 2500, CreatedAt: base.Add(2 * time.Hour)},
		{Code: "STA-2", Type: domain.OrderTypeStaff, Status: domain.StatusVoided, TotalCents: 2500, StaffID: "STAFF1002", CreatedAt: base.Add(3 * time.Hour)},
		{Code: "KIO-3", Type: domain.OrderTypeKiosk, Status: domain.StatusCancelled, TotalCents: 2500, CreatedAt: base.Add(4 * time.Hour)},
		{Code: "OLD", Type: domain.OrderTypeKiosk, Status: domain.StatusCompleted, TotalCents: 99900, CreatedAt: base.AddDate(0, 0, -3)},
	}
}

func TestAggregate(t *testing.T) {
	base := time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)
	query := domain.SalesQuery{From: base.Truncate(24 * time.Hour), To: base.Truncate(24 * time.Hour).AddDate(0, 0, 1)}

	report := Aggregate(query, sampleOrders(base), map[string]string{"STAFF1002": "Counter Staff"}, time.UTC, 10)
	if report.Orders != 2 || report.RevenueCents != 13000 || report.AverageOrderCents != 6500 {
		t.Fatalf("unexpected totals %+v", report)
	}
	if report.AllOrders != 4 || report.VoidedOrders != 1 || report.CompletionRate != 50 {
		t.Fatalf("unexpected completion stats all=%d voided=%d rate=%v", report.AllOrders, report.VoidedOrders, report.CompletionRate)
	}
	if report.WalkIn.Orders != 1 || report.Kiosk.RevenueCents != 4000 {
		t.Fatalf("unexpected type stats %+v %+v", report.WalkIn, report.Kiosk)
	}
	if report.Cash.ReceivedCents != 10000 || report.Cash.ChangeCents != 1000 || report.Digital.AmountCents != 4000 {
		t.Fatalf("unexpected payment stats %+v %+v", report.Cash, report.Digital)
	}
	if len(report.TopCookies) != 2 || report.TopCookies[0].Name != "Chocolate Chip" || report.TopCookies[0].Quantity != 2 {
		t.Fatalf("unexpected top cookies %+v", report.TopCookies)
	}
	if len(report.StaffPerformance) != 1 || report.StaffPerformance[0].Name != "Counter Staff" {
		t.Fatalf("unexpected staff performance %+v", report.StaffPerformance)
	}
	if len(report.Daily) != 1 || report.Daily[0].Date != "2026-03-14" {
		t.Fatalf("unexpected daily %+v", report.Daily)
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	base := time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)
	query := domain.SalesQuery{From: base.Add(-time.Hour), To: base.Add(24 * time.Hour)}
	orders := sampleOrders(base)
	first := Aggregate(query, orders, nil, time.UTC, 10)
	second := Aggregate(query, orders, nil, time.UTC, 10)
	if first.RevenueCents != second.RevenueCents || len(first.TopCookies) != len(second.TopCookies) {
		t.Fatalf("aggregation must be repeatable")
	}
}

type countingCache struct {
	cache.NoopReportCache
	stored *domain.SalesReport
}

func (c *countingCache) GetReport(_ context.Context, _ string) (*domain.SalesReport, bool, error) {
	if c.stored == nil {
		return nil, false, nil
	}
	return c.stored, true, nil
}

func (c *countingCache) SetReport(_ context.Context, _ string, value *domain.SalesReport, _ time.Duration) error {
	c.stored = value
	return nil
}

func TestEngineUsesCache(t *testing.T) {
	store := &countingCache{}
	engine := NewEngine(store, time.Minute, time.UTC, 5)
	loads := 0
	load := func(context.Context) ([]domain.Order, map[string]string, error) {
		loads++
		return sampleOrders(time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)), nil, nil
	}
	query := domain.SalesQuery{From: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), To: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)}

	for i := 0; i < 2; i++ {
		if _, err := engine.SalesReport(context.Background(), query, load); err != nil {
			t.Fatalf("report failed: %v", err)
		}
	}
	if loads != 1 {
		t.Fatalf("expected one load, got %d", loads)
	}
}
