package service

import (
	"context"
	"fmt"
	"time"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/reporting"
	"cookiecraze/backend/internal/store"
)

const (
	lowStockThreshold   = 10
	topSellerWindowDays = 30
	salesTrendDays      = 7
	dashboardListLimit  = 5
	recentActivityLimit = 8
)

// Dashboard builds the landing page for the caller's route. Staff still
// waiting for approval get the route with no content.
func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	principal := PrincipalFromContext(ctx)
	dashboard := domain.Dashboard{Route: domain.Route(principal)}

	var err error
	switch dashboard.Route {
	case domain.RouteAdminDashboard:
		dashboard.Admin, err = s.adminDashboard(ctx)
	case domain.RouteStaffDashboard:
		dashboard.Staff, err = s.staffDashboard(ctx, principal)
	case domain.RouteCustomerDashboard:
		dashboard.Customer, err = s.customerDashboard(ctx, principal)
	case domain.RoutePendingApproval:
	default:
		return domain.Dashboard{}, fmt.Errorf("%w: sign in to view a dashboard", store.ErrForbidden)
	}
	if err != nil {
		return domain.Dashboard{}, err
	}
	return dashboard, nil
}

func (s *Service) adminDashboard(ctx context.Context) (*domain.AdminDashboard, error) {
	today, err := s.LocalDay("")
	if err != nil {
		return nil, err
	}
	todayFrom, todayTo := s.dayRange(today)
	windowFrom, _ := s.dayRange(today.AddDate(0, 0, -(topSellerWindowDays - 1)))
	trendFrom, _ := s.dayRange(today.AddDate(0, 0, -(salesTrendDays - 1)))

	orders, err := s.repo.ListOrders(ctx, domain.OrderFilter{From: &windowFrom, To: &todayTo})
	if err != nil {
		return nil, err
	}
	names, err := s.staffNames(ctx)
	if err != nil {
		return nil, err
	}

	todayReport := reporting.Aggregate(domain.SalesQuery{From: todayFrom, To: todayTo}, orders, names, s.loc, 3)
	trend := reporting.Aggregate(domain.SalesQuery{From: trendFrom, To: todayTo}, orders, names, s.loc, 1)
	window := reporting.Aggregate(domain.SalesQuery{From: windowFrom, To: todayTo}, orders, names, s.loc, 1)

	d := &domain.AdminDashboard{
		Date:              today.Format(time.DateOnly),
		CompletedToday:    todayReport.Orders,
		CompletionRate:    todayReport.CompletionRate,
		RevenueTodayCents: todayReport.RevenueCents,
		Kiosk:             todayReport.Kiosk,
		WalkIn:            todayReport.WalkIn,
		Cash:              todayReport.Cash,
		GCash:             todayReport.Digital,
		Last7Days:         dailySeries(trend.Daily, today, salesTrendDays),
		StaffPerformance:  todayReport.StaffPerformance,
		RecentOrders:      make([]domain.Order, 0, dashboardListLimit),
	}
	if len(window.TopCookies) > 0 {
		top := window.TopCookies[0]
		d.TopSeller = &top
	}
	for _, o := range orders {
		if o.CreatedAt.Before(todayFrom) {
			continue
		}
		d.OrdersToday++
		if o.Status == domain.StatusPending {
			d.PendingToday++
		}
		if o.Type == domain.OrderTypeKiosk {
			d.KioskOrdersToday++
		} else {
			d.WalkInOrdersToday++
		}
		if len(d.RecentOrders) < dashboardListLimit {
			d.RecentOrders = append(d.RecentOrders, o)
		}
	}

	if d.LowStock, d.LowStockCount, d.OutOfStockCount, err = s.stockAlerts(ctx); err != nil {
		return nil, err
	}
	pending, err := s.repo.ListStaff(ctx, true)
	if err != nil {
		return nil, err
	}
	d.PendingStaffCount = len(pending)
	if d.PendingGCashCount, err = s.pendingGCashCount(ctx, ""); err != nil {
		return nil, err
	}
	if d.RecentActivity, err = s.repo.ListActivityLogs(ctx, trendFrom, todayTo, recentActivityLimit); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) staffDashboard(ctx context.Context, principal domain.Principal) (*domain.StaffDashboard, error) {
	today, err := s.LocalDay("")
	if err != nil {
		return nil, err
	}
	todayFrom, todayTo := s.dayRange(today)
	monthFrom, _ := s.dayRange(time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, s.loc))

	own, err := s.repo.ListOrders(ctx, domain.OrderFilter{StaffID: principal.StaffID, From: &monthFrom, To: &todayTo})
	if err != nil {
		return nil, err
	}
	todayReport := reporting.Aggregate(domain.SalesQuery{From: todayFrom, To: todayTo, StaffID: principal.StaffID}, own, nil, s.loc, 1)
	month := reporting.Aggregate(domain.SalesQuery{From: monthFrom, To: todayTo, StaffID: principal.StaffID}, own, nil, s.loc, 1)

	d := &domain.StaffDashboard{
		Date:            today.Format(time.DateOnly),
		CompletedToday:  todayReport.Orders,
		SalesTodayCents: todayReport.RevenueCents,
		MonthOrders:     month.Orders,
		MonthSalesCents: month.RevenueCents,
		RecentCompleted: make([]domain.Order, 0, dashboardListLimit),
	}
	for _, o := range own {
		if !o.CreatedAt.Before(todayFrom) {
			d.OrdersToday++
			if o.Status == domain.StatusPending {
				d.PendingToday++
			}
		}
		if o.Status == domain.StatusCompleted && len(d.RecentCompleted) < dashboardListLimit {
			d.RecentCompleted = append(d.RecentCompleted, o)
		}
	}

	queue, err := s.repo.ListOrders(ctx, domain.OrderFilter{
		Type:             domain.OrderTypeKiosk,
		Status:           string(domain.StatusPending),
		VisibleToStaffID: principal.StaffID,
	})
	if err != nil {
		return nil, err
	}
	for _, o := range queue {
		if o.StaffID == "" {
			d.KioskQueue++
		}
	}
	if d.PendingGCashCount, err = s.pendingGCashCount(ctx, principal.StaffID); err != nil {
		return nil, err
	}
	if _, d.LowStockCount, _, err = s.stockAlerts(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) customerDashboard(ctx context.Context, principal domain.Principal) (*domain.CustomerDashboard, error) {
	if principal.CustomerID == "" {
		return nil, fmt.Errorf("%w: customer profile missing", store.ErrNotFound)
	}
	customer, err := s.repo.GetCustomer(ctx, principal.CustomerID)
	if err != nil {
		return nil, err
	}
	orders, err := s.repo.ListOrders(ctx, domain.OrderFilter{CustomerID: customer.ID})
	if err != nil {
		return nil, err
	}

	d := &domain.CustomerDashboard{
		Customer:      *customer,
		LoyaltyPoints: customer.LoyaltyPoints,
		TotalOrders:   len(orders),
		RecentOrders:  make([]domain.Order, 0, dashboardListLimit),
	}
	for i, o := range orders {
		if o.Status == domain.StatusCompleted {
			d.TotalSpentCents += o.TotalCents
		}
		if d.ActiveOrder == nil && !o.Status.Terminal() {
			d.ActiveOrder = &orders[i]
		}
		if len(d.RecentOrders) < dashboardListLimit {
			d.RecentOrders = append(d.RecentOrders, o)
		}
	}
	return d, nil
}

// stockAlerts returns orderable cookies running low plus the low and
// out-of-stock counts across the whole catalog.
func (s *Service) stockAlerts(ctx context.Context) ([]domain.Cookie, int, int, error) {
	cookies, err := s.repo.ListCookies(ctx, domain.CookieFilter{IncludeUnavailable: true})
	if err != nil {
		return nil, 0, 0, err
	}
	low := make([]domain.Cookie, 0, 4)
	out := 0
	for _, c := range cookies {
		switch {
		case c.Stock <= 0:
			out++
		case c.Stock < lowStockThreshold:
			low = append(low, c)
		}
	}
	return low, len(low), out, nil
}

// pendingGCashCount counts open GCash orders that nobody has verified yet.
// A non-empty staffID limits the count to orders that staff member can see.
func (s *Service) pendingGCashCount(ctx context.Context, staffID string) (int, error) {
	unpaid := false
	orders, err := s.repo.ListOrders(ctx, domain.OrderFilter{
		PaymentMethod:    domain.PaymentGCash,
		Paid:             &unpaid,
		VisibleToStaffID: staffID,
	})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, o := range orders {
		if !o.Status.Terminal() {
			count++
		}
	}
	return count, nil
}

// dailySeries lays out the last n local days, oldest first, filling days
// without sales with zeros.
func dailySeries(daily []domain.DailySales, today time.Time, n int) []domain.DailySales {
	byDate := make(map[string]domain.DailySales, len(daily))
	for _, d := range daily {
		byDate[d.Date] = d
	}
	series := make([]domain.DailySales, 0, n)
	for offset := n - 1; offset >= 0; offset-- {
		date := today.AddDate(0, 0, -offset).Format(time.DateOnly)
		day, ok := byDate[date]
		if !ok {
			day = domain.DailySales{Date: date}
		}
		series = append(series, day)
	}
	return series
}
