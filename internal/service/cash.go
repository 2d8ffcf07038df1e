package service

import (
	"context"
	"fmt"
	"strings"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/reconciliation"
	"cookiecraze/backend/internal/store"
)

// CashReconciliation builds the drawer report for a local day (YYYY-MM-DD,
// empty for today) from the float ledger and the day's paid cash orders.
func (s *Service) CashReconciliation(ctx context.Context, date string) (domain.ReconciliationReport, error) {
	if _, err := requireApprovedStaff(ctx); err != nil {
		return domain.ReconciliationReport{}, err
	}
	day, err := s.LocalDay(date)
	if err != nil {
		return domain.ReconciliationReport{}, err
	}

	entries, err := s.repo.ListCashFloats(ctx, ledgerDay(day))
	if err != nil {
		return domain.ReconciliationReport{}, err
	}
	from, to := s.dayRange(day)
	orders, err := s.repo.ListOrders(ctx, domain.OrderFilter{
		Status:        string(domain.StatusCompleted),
		PaymentMethod: domain.PaymentCash,
		From:          &from,
		To:            &to,
	})
	if err != nil {
		return domain.ReconciliationReport{}, err
	}

	paid := orders[:0]
	for _, o := range orders {
		if o.Paid {
			paid = append(paid, o)
		}
	}
	return reconciliation.Build(day.Format("2006-01-02"), entries, paid), nil
}

func (s *Service) ManualReconciliation(ctx context.Context, date string, req domain.ManualReconciliationRequest) (domain.ReconciliationReport, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.ReconciliationReport{}, err
	}
	day, err := s.LocalDay(date)
	if err != nil {
		return domain.ReconciliationReport{}, err
	}
	if req.OpeningCents < 0 || req.CashSalesCents < 0 || req.ReturnedCents < 0 {
		return domain.ReconciliationReport{}, invalid("amounts must not be negative")
	}

	report := reconciliation.Manual(day.Format("2006-01-02"), req)
	s.logAudit(ctx, "cash_manual_reconciliation", "cash_float", report.Date, fmt.Sprintf("manual reconciliation expected=%s returned=%s variance=%s", s.money(report.ExpectedReturnCents), s.money(report.ReturnedCents), s.money(report.VarianceCents)))
	return report, nil
}

// RecordCashFloat appends a ledger entry. Closing counts replace the day's
// existing closing entry.
func (s *Service) RecordCashFloat(ctx context.Context, req domain.CashFloatRequest) (domain.CashFloat, error) {
	principal, err := requireApprovedStaff(ctx)
	if err != nil {
		return domain.CashFloat{}, err
	}

	floatType := strings.ToLower(strings.TrimSpace(req.Type))
	if !domain.IsFloatType(floatType) {
		return domain.CashFloat{}, invalid("unknown float type %q", req.Type)
	}
	adjustment := strings.ToLower(strings.TrimSpace(req.AdjustmentType))
	if floatType == domain.FloatAdjustment {
		if !domain.IsAdjustmentType(adjustment) {
			return domain.CashFloat{}, invalid("adjustment entries need an adjustment type")
		}
	} else {
		adjustment = ""
	}
	if req.AmountCents < 0 {
		return domain.CashFloat{}, invalid("amount must not be negative")
	}
	day, err := s.LocalDay(req.Date)
	if err != nil {
		return domain.CashFloat{}, err
	}

	entry := domain.CashFloat{
		Day:            ledgerDay(day),
		Type:           floatType,
		AdjustmentType: adjustment,
		AmountCents:    req.AmountCents,
		Notes:          strings.TrimSpace(req.Notes),
		StaffID:        principal.StaffID,
		CreatedAt:      s.now(),
	}

	var saved *domain.CashFloat
	if floatType == domain.FloatClosing {
		saved, err = s.repo.UpsertClosingFloat(ctx, entry)
	} else {
		saved, err = s.repo.CreateCashFloat(ctx, entry)
	}
	if err != nil {
		return domain.CashFloat{}, err
	}

	kind := saved.Type
	if saved.AdjustmentType != "" {
		kind += "/" + saved.AdjustmentType
	}
	s.logAudit(ctx, "cash_float", "cash_float", saved.ID, fmt.Sprintf("%s %s for %s", kind, s.money(saved.AmountCents), day.Format("2006-01-02")))
	return *saved, nil
}

func (s *Service) DeleteAdjustment(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	entry, err := s.repo.GetCashFloat(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if entry.Type != domain.FloatAdjustment {
		return fmt.Errorf("%w: only adjustment entries can be deleted", store.ErrForbidden)
	}
	if err := s.repo.DeleteCashFloat(ctx, entry.ID); err != nil {
		return err
	}
	s.logAudit(ctx, "cash_float_delete", "cash_float", entry.ID, fmt.Sprintf("deleted %s adjustment of %s", entry.AdjustmentType, s.money(entry.AmountCents)))
	return nil
}
