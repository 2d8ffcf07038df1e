package service

import (
	"context"
	"errors"
	"testing"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
	"cookiecraze/backend/internal/store/memory"
)

func TestAdminDashboardSummarisesToday(t *testing.T) {
	env := newTestEnv(t)
	staffCtx := env.as(t, "staff")

	if _, err := env.svc.CreateWalkInOrder(staffCtx, domain.WalkInOrderRequest{Items: ninetyPesoItems, AmountPaid: 10000}); err != nil {
		t.Fatalf("walk-in failed: %v", err)
	}
	if _, err := env.svc.CreateKioskOrder(context.Background(), domain.KioskOrderRequest{Items: ninetyPesoItems}); err != nil {
		t.Fatalf("kiosk order failed: %v", err)
	}
	if _, err := env.svc.RegisterStaff(context.Background(), domain.StaffRegisterRequest{Username: "baker", Password: "password1", Name: "New Baker"}); err != nil {
		t.Fatalf("register staff failed: %v", err)
	}

	dashboard, err := env.svc.Dashboard(env.as(t, "admin"))
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if dashboard.Route != domain.RouteAdminDashboard || dashboard.Admin == nil || dashboard.Staff != nil {
		t.Fatalf("expected admin section only, got %+v", dashboard)
	}
	d := dashboard.Admin
	if d.OrdersToday != 2 || d.CompletedToday != 1 || d.PendingToday != 1 || d.RevenueTodayCents != 9000 {
		t.Fatalf("unexpected order counts %+v", d)
	}
	if d.KioskOrdersToday != 1 || d.WalkInOrdersToday != 1 || d.Cash.AmountCents != 9000 {
		t.Fatalf("unexpected channel split kiosk=%d walk_in=%d cash=%d", d.KioskOrdersToday, d.WalkInOrdersToday, d.Cash.AmountCents)
	}
	if d.PendingStaffCount != 1 || d.PendingGCashCount != 1 {
		t.Fatalf("expected one staff approval and one gcash verification pending, got %d/%d", d.PendingStaffCount, d.PendingGCashCount)
	}
	if d.OutOfStockCount != 1 || d.LowStockCount != 0 || len(d.LowStock) != 0 {
		t.Fatalf("expected spiced ginger as the only stock alert, got low=%d out=%d", d.LowStockCount, d.OutOfStockCount)
	}
	if d.TopSeller == nil || d.TopSeller.CookieID != "cookie-choco-chip" || d.TopSeller.Quantity != 2 {
		t.Fatalf("expected chocolate chip as top seller, got %+v", d.TopSeller)
	}
	if len(d.Last7Days) != 7 || d.Last7Days[6].Date != d.Date || d.Last7Days[6].RevenueCents != 9000 || d.Last7Days[0].Orders != 0 {
		t.Fatalf("expected a zero-filled week ending today, got %+v", d.Last7Days)
	}
	if len(d.RecentOrders) != 2 || len(d.RecentActivity) == 0 {
		t.Fatalf("expected recent orders and activity, got %d/%d", len(d.RecentOrders), len(d.RecentActivity))
	}
	if len(d.StaffPerformance) != 1 || d.StaffPerformance[0].StaffID != memory.SeedStaffID {
		t.Fatalf("expected counter staff in the leaderboard, got %+v", d.StaffPerformance)
	}
}

func TestStaffDashboardCountsOwnSales(t *testing.T) {
	env := newTestEnv(t)
	staffCtx := env.as(t, "staff")

	if _, err := env.svc.CreateWalkInOrder(staffCtx, domain.WalkInOrderRequest{Items: ninetyPesoItems, AmountPaid: 9000}); err != nil {
		t.Fatalf("walk-in failed: %v", err)
	}
	if _, err := env.svc.CreateWalkInOrder(env.as(t, "admin"), domain.WalkInOrderRequest{Items: ninetyPesoItems, AmountPaid: 9000}); err != nil {
		t.Fatalf("admin walk-in failed: %v", err)
	}
	if _, err := env.svc.CreateKioskOrder(context.Background(), domain.KioskOrderRequest{Items: ninetyPesoItems}); err != nil {
		t.Fatalf("kiosk order failed: %v", err)
	}

	dashboard, err := env.svc.Dashboard(staffCtx)
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if dashboard.Route != domain.RouteStaffDashboard || dashboard.Staff == nil || dashboard.Admin != nil {
		t.Fatalf("expected staff section only, got %+v", dashboard)
	}
	d := dashboard.Staff
	if d.OrdersToday != 1 || d.CompletedToday != 1 || d.SalesTodayCents != 9000 {
		t.Fatalf("expected only own sales counted, got %+v", d)
	}
	if d.MonthOrders != 1 || d.MonthSalesCents != 9000 || len(d.RecentCompleted) != 1 {
		t.Fatalf("unexpected month totals %+v", d)
	}
	if d.KioskQueue != 1 || d.PendingGCashCount != 1 || d.LowStockCount != 0 {
		t.Fatalf("expected one unassigned kiosk order waiting, got queue=%d gcash=%d", d.KioskQueue, d.PendingGCashCount)
	}
}

func TestCustomerDashboardTracksActiveOrder(t *testing.T) {
	env := newTestEnv(t)
	customerCtx := env.as(t, "customer")

	order, err := env.svc.CreateKioskOrder(customerCtx, domain.KioskOrderRequest{Items: ninetyPesoItems})
	if err != nil {
		t.Fatalf("kiosk order failed: %v", err)
	}
	dashboard, err := env.svc.Dashboard(customerCtx)
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	d := dashboard.Customer
	if dashboard.Route != domain.RouteCustomerDashboard || d == nil {
		t.Fatalf("expected customer section, got %+v", dashboard)
	}
	if d.TotalOrders != 1 || d.ActiveOrder == nil || d.ActiveOrder.ID != order.ID || d.TotalSpentCents != 0 {
		t.Fatalf("expected the pending order as active, got %+v", d)
	}

	if _, err := env.svc.CompleteKioskOrder(env.as(t, "staff"), order.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	dashboard, err = env.svc.Dashboard(customerCtx)
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	d = dashboard.Customer
	if d.ActiveOrder != nil || d.TotalSpentCents != 9000 || d.LoyaltyPoints != 90 || len(d.RecentOrders) != 1 {
		t.Fatalf("expected completed history with loyalty, got %+v", d)
	}
}

func TestDashboardForPendingAndAnonymousCallers(t *testing.T) {
	env := newTestEnv(t)

	pending := WithPrincipal(context.Background(), domain.Principal{Kind: domain.PrincipalStaff, Username: "baker"})
	dashboard, err := env.svc.Dashboard(pending)
	if err != nil {
		t.Fatalf("pending dashboard failed: %v", err)
	}
	if dashboard.Route != domain.RoutePendingApproval || dashboard.Admin != nil || dashboard.Staff != nil || dashboard.Customer != nil {
		t.Fatalf("pending staff should only get a route, got %+v", dashboard)
	}
	if _, err := env.svc.Dashboard(context.Background()); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected anonymous dashboard to be forbidden, got %v", err)
	}
}

func TestDailySeriesFillsGaps(t *testing.T) {
	env := newTestEnv(t)
	today, err := env.svc.LocalDay("2026-03-14")
	if err != nil {
		t.Fatalf("local day failed: %v", err)
	}
	series := dailySeries([]domain.DailySales{{Date: "2026-03-12", Orders: 3, RevenueCents: 27000}}, today, 3)
	if len(series) != 3 || series[0].Date != "2026-03-12" || series[2].Date != "2026-03-14" {
		t.Fatalf("unexpected series %+v", series)
	}
	if series[0].RevenueCents != 27000 || series[1].Orders != 0 {
		t.Fatalf("expected gaps zero-filled, got %+v", series)
	}
}
