package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"cookiecraze/backend/internal/domain"
)

var orderTypeLabels = map[string]string{
	domain.OrderTypeStaff: "Walk-in",
	domain.OrderTypeKiosk: "Kiosk",
}

// SalesReport aggregates orders created between two local dates, both
// inclusive. Empty dates default to today.
func (s *Service) SalesReport(ctx context.Context, fromDate string, toDate string, staffID string) (domain.SalesReport, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.SalesReport{}, err
	}
	fromDay, err := s.LocalDay(fromDate)
	if err != nil {
		return domain.SalesReport{}, err
	}
	toDay, err := s.LocalDay(toDate)
	if err != nil {
		return domain.SalesReport{}, err
	}
	if toDay.Before(fromDay) {
		return domain.SalesReport{}, invalid("end date must not be before start date")
	}

	from, _ := s.dayRange(fromDay)
	_, to := s.dayRange(toDay)
	query := domain.SalesQuery{From: from, To: to, StaffID: strings.TrimSpace(staffID)}

	return s.reports.SalesReport(ctx, query, func(ctx context.Context) ([]domain.Order, map[string]string, error) {
		orders, err := s.repo.ListOrders(ctx, domain.OrderFilter{
			StaffID: query.StaffID,
			From:    &query.From,
			To:      &query.To,
		})
		if err != nil {
			return nil, nil, err
		}
		names, err := s.staffNames(ctx)
		if err != nil {
			return nil, nil, err
		}
		return orders, names, nil
	})
}

// SalesExport lists the orders completed on a local day, oldest first.
func (s *Service) SalesExport(ctx context.Context, date string, staffID string) (domain.SalesExport, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.SalesExport{}, err
	}
	day, err := s.LocalDay(date)
	if err != nil {
		return domain.SalesExport{}, err
	}
	staffID = strings.TrimSpace(staffID)
	from, to := s.dayRange(day)

	orders, err := s.repo.ListOrders(ctx, domain.OrderFilter{
		Status:  string(domain.StatusCompleted),
		StaffID: staffID,
		To:      &to,
	})
	if err != nil {
		return domain.SalesExport{}, err
	}

	usernames := map[string]string{}
	if staff, err := s.repo.ListStaff(ctx, false); err == nil {
		for _, member := range staff {
			usernames[member.ID] = member.Username
		}
	}

	rows := make([]domain.SalesExportRow, 0, len(orders))
	for _, o := range orders {
		if o.CompletedAt == nil || o.CompletedAt.Before(from) || !o.CompletedAt.Before(to) {
			continue
		}
		rows = append(rows, domain.SalesExportRow{
			Date:          o.CompletedAt.In(s.loc),
			OrderCode:     o.Code,
			Staff:         usernames[o.StaffID],
			Customer:      o.CustomerName,
			PaymentMethod: o.PaymentMethod,
			OrderType:     defaultString(orderTypeLabels[o.Type], o.Type),
			TotalCents:    o.TotalCents,
			Status:        o.Status,
		})
	}
	slices.SortStableFunc(rows, func(a, b domain.SalesExportRow) int {
		return a.Date.Compare(b.Date)
	})

	name := "sales_" + day.Format(time.DateOnly)
	if staffID != "" {
		name += "_staff_" + staffID
	}
	return domain.SalesExport{FileName: name + ".csv", Rows: rows}, nil
}

func (s *Service) staffNames(ctx context.Context) (map[string]string, error) {
	staff, err := s.repo.ListStaff(ctx, false)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(staff))
	for _, member := range staff {
		names[member.ID] = defaultString(member.Name, member.Username)
	}
	return names, nil
}
