package reporting

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"cookiecraze/backend/internal/cache"
	"cookiecraze/backend/internal/domain"
)

const defaultTopN = 10

type Engine struct {
	cache    cache.ReportCache
	cacheTTL time.Duration
	loc      *time.Location
	topN     int
}

func NewEngine(cacheStore cache.ReportCache, cacheTTL time.Duration, loc *time.Location, topN int) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 20 * time.Second
	}
	if loc == nil {
		loc = time.UTC
	}
	if topN < 1 {
		topN = defaultTopN
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		loc:      loc,
		topN:     topN,
	}
}

// SalesReport returns the cached report for the query or aggregates the
// given orders. load is only called on a cache miss.
func (e *Engine) SalesReport(
	ctx context.Context,
	query domain.SalesQuery,
	load func(ctx context.Context) ([]domain.Order, map[string]string, error),
) (domain.SalesReport, error) {
	cacheKey := buildCacheKey(query, e.topN)
	if cached, ok, err := e.cache.GetReport(ctx, cacheKey); err == nil && ok {
		return *cached, nil
	}

	orders, staffNames, err := load(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}
	report := Aggregate(query, orders, staffNames, e.loc, e.topN)
	report.GeneratedAt = time.Now().UTC()
	_ = e.cache.SetReport(ctx, cacheKey, &report, e.cacheTTL)
	return report, nil
}

// Aggregate is the pure read-side computation. Orders outside the query's
// range or staff filter are ignored; only completed orders contribute to
// revenue figures.
func Aggregate(query domain.SalesQuery, orders []domain.Order, staffNames map[string]string, loc *time.Location, topN int) domain.SalesReport {
	if loc == nil {
		loc = time.UTC
	}
	if topN < 1 {
		topN = defaultTopN
	}

	report := domain.SalesReport{
		From:             query.From.In(loc).Format(time.DateOnly),
		To:               query.To.Add(-time.Nanosecond).In(loc).Format(time.DateOnly),
		StaffID:          query.StaffID,
		ByPayment:        make([]domain.PaymentStats, 0, 2),
		Daily:            make([]domain.DailySales, 0, 8),
		TopCookies:       make([]domain.TopCookie, 0, topN),
		StaffPerformance: make([]domain.StaffSales, 0, 4),
	}
	cash := domain.PaymentStats{Method: domain.PaymentCash}
	gcash := domain.PaymentStats{Method: domain.PaymentGCash}
	daily := map[string]*domain.DailySales{}
	cookies := map[string]*domain.TopCookie{}
	staff := map[string]*domain.StaffSales{}

	for _, o := range orders {
		if o.CreatedAt.Before(query.From) || !o.CreatedAt.Before(query.To) {
			continue
		}
		if query.StaffID != "" && o.StaffID != query.StaffID {
			continue
		}
		switch o.Status {
		case domain.StatusCancelled:
			continue
		case domain.StatusVoided:
			report.VoidedOrders++
		}
		report.AllOrders++
		if o.Status != domain.StatusCompleted {
			continue
		}

		report.Orders++
		report.RevenueCents += o.TotalCents

		byType := &report.Kiosk
		if o.Type == domain.OrderTypeStaff {
			byType = &report.WalkIn
		}
		byType.Orders++
		byType.RevenueCents += o.TotalCents

		if o.PaymentMethod == domain.PaymentCash {
			cash.Orders++
			cash.AmountCents += o.TotalCents
			if o.CashReceivedCents != nil {
				cash.ReceivedCents += *o.CashReceivedCents
			}
			cash.ChangeCents += o.ChangeCents
		} else {
			gcash.Orders++
			gcash.AmountCents += o.TotalCents
		}

		at := o.CreatedAt
		if o.CompletedAt != nil {
			at = *o.CompletedAt
		}
		day := at.In(loc).Format(time.DateOnly)
		d := daily[day]
		if d == nil {
			d = &domain.DailySales{Date: day}
			daily[day] = d
		}
		d.Orders++
		d.RevenueCents += o.TotalCents

		for _, item := range o.Items {
			c := cookies[item.CookieID]
			if c == nil {
				c = &domain.TopCookie{CookieID: item.CookieID, Name: item.CookieName}
				cookies[item.CookieID] = c
			}
			c.Quantity += item.Quantity
			c.RevenueCents += item.LineTotalCents
		}

		if o.StaffID != "" {
			s := staff[o.StaffID]
			if s == nil {
				s = &domain.StaffSales{StaffID: o.StaffID, Name: defaultString(staffNames[o.StaffID], o.StaffID)}
				staff[o.StaffID] = s
			}
			s.Orders++
			s.RevenueCents += o.TotalCents
		}
	}

	report.AverageOrderCents = average(report.RevenueCents, report.Orders)
	report.CompletionRate = domain.Percent(int64(report.Orders), int64(report.AllOrders))
	report.WalkIn.AverageCents = average(report.WalkIn.RevenueCents, report.WalkIn.Orders)
	report.Kiosk.AverageCents = average(report.Kiosk.RevenueCents, report.Kiosk.Orders)
	for _, p := range []*domain.PaymentStats{&cash, &gcash} {
		p.AverageCents = average(p.AmountCents, p.Orders)
		p.SharePercent = domain.Percent(p.AmountCents, report.RevenueCents)
	}
	report.Cash = cash
	report.Digital = gcash
	report.ByPayment = append(report.ByPayment, cash, gcash)

	for _, d := range daily {
		report.Daily = append(report.Daily, *d)
	}
	slices.SortFunc(report.Daily, func(a, b domain.DailySales) int {
		return strings.Compare(b.Date, a.Date)
	})

	for _, c := range cookies {
		report.TopCookies = append(report.TopCookies, *c)
	}
	slices.SortFunc(report.TopCookies, func(a, b domain.TopCookie) int {
		if a.Quantity != b.Quantity {
			return b.Quantity - a.Quantity
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(report.TopCookies) > topN {
		report.TopCookies = report.TopCookies[:topN]
	}

	for _, s := range staff {
		s.AverageCents = average(s.RevenueCents, s.Orders)
		report.StaffPerformance = append(report.StaffPerformance, *s)
	}
	slices.SortFunc(report.StaffPerformance, func(a, b domain.StaffSales) int {
		if a.RevenueCents != b.RevenueCents {
			if a.RevenueCents > b.RevenueCents {
				return -1
			}
			return 1
		}
		return strings.Compare(a.StaffID, b.StaffID)
	})

	return report
}

func buildCacheKey(query domain.SalesQuery, topN int) string {
	parts := []string{
		query.From.UTC().Format(time.RFC3339),
		query.To.UTC().Format(time.RFC3339),
		"s:" + query.StaffID,
		fmt.Sprintf("n:%d", topN),
	}
	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "cookiecraze:report:" + hex.EncodeToString(hash[:])
}

func average(total int64, count int) int64 {
	if count < 1 {
		return 0
	}
	return total / int64(count)
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
