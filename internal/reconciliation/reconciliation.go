// Package reconciliation computes the daily cash-drawer variance.
package reconciliation

import (
	"slices"
	"time"

	"cookiecraze/backend/internal/domain"
)

const (
	StatusBalanced = "balanced"
	StatusShort    = "short"
	StatusOver     = "over"
	StatusPending  = "pending"
)

type Inputs struct {
	OpeningCents    int64
	CashSalesCents  int64
	ChangeUsedCents int64
	ReturnedCents   int64
	// Closed is set once a closing amount has been counted. Without it the
	// variance is not meaningful and is reported as zero.
	Closed bool
}

type Result struct {
	ExpectedReturnCents int64
	VarianceCents       int64
	ShortageCents       int64
	OverageCents        int64
	Status              string
}

func Compute(in Inputs) Result {
	res := Result{ExpectedReturnCents: in.OpeningCents + in.CashSalesCents - in.ChangeUsedCents}
	if !in.Closed {
		res.Status = StatusPending
		return res
	}
	res.VarianceCents = in.ReturnedCents - res.ExpectedReturnCents
	switch {
	case res.VarianceCents < 0:
		res.ShortageCents = -res.VarianceCents
		res.Status = StatusShort
	case res.VarianceCents > 0:
		res.OverageCents = res.VarianceCents
		res.Status = StatusOver
	default:
		res.Status = StatusBalanced
	}
	return res
}

func ChangeUsed(additionalCents, changeAddedCents, changeRemovedCents int64) int64 {
	return additionalCents + changeAddedCents - changeRemovedCents
}

// Build sums a day's ledger entries and completed cash orders into a report.
// The first opening entry is the starting float; the closing entry, when
// present and non-zero, is the counted return.
func Build(date string, entries []domain.CashFloat, cashOrders []domain.Order) domain.ReconciliationReport {
	report := domain.ReconciliationReport{
		Date:     date,
		Entries:  append([]domain.CashFloat{}, entries...),
		Timeline: make([]domain.ReconciliationEvent, 0, len(entries)+len(cashOrders)),
	}

	haveOpening := false
	haveClosing := false
	for _, e := range entries {
		kind := e.Type
		switch e.Type {
		case domain.FloatOpening:
			if !haveOpening {
				report.OpeningCents = e.AmountCents
				haveOpening = true
			}
		case domain.FloatAdditional:
			report.AdditionalCents += e.AmountCents
		case domain.FloatClosing:
			if !haveClosing {
				report.ReturnedCents = e.AmountCents
				haveClosing = true
			}
		case domain.FloatAdjustment:
			kind = e.Type + ":" + e.AdjustmentType
			switch e.AdjustmentType {
			case domain.AdjustmentChangeAdd:
				report.ChangeAddedCents += e.AmountCents
			case domain.AdjustmentChangeRemove:
				report.ChangeRemovedCents += e.AmountCents
			case domain.AdjustmentShortage:
				report.ShortageAdjustCents += e.AmountCents
			case domain.AdjustmentExcess:
				report.ExcessAdjustCents += e.AmountCents
			}
		}
		report.Timeline = append(report.Timeline, domain.ReconciliationEvent{
			At:          e.CreatedAt,
			Kind:        kind,
			Reference:   e.ID,
			AmountCents: e.AmountCents,
			Detail:      e.Notes,
		})
	}

	for _, o := range cashOrders {
		report.CashOrders++
		report.CashSalesCents += o.TotalCents
		if o.CashReceivedCents != nil {
			report.CashReceivedCents += *o.CashReceivedCents
		}
		report.ChangeGivenCents += o.ChangeCents
		at := o.CreatedAt
		if o.PaidAt != nil {
			at = *o.PaidAt
		}
		report.Timeline = append(report.Timeline, domain.ReconciliationEvent{
			At:          at,
			Kind:        "cash_sale",
			Reference:   o.Code,
			AmountCents: o.TotalCents,
			Detail:      o.CustomerName,
		})
	}
	slices.SortStableFunc(report.Timeline, func(a, b domain.ReconciliationEvent) int {
		return a.At.Compare(b.At)
	})

	report.ChangeUsedCents = ChangeUsed(report.AdditionalCents, report.ChangeAddedCents, report.ChangeRemovedCents)
	apply(&report, Compute(Inputs{
		OpeningCents:    report.OpeningCents,
		CashSalesCents:  report.CashSalesCents,
		ChangeUsedCents: report.ChangeUsedCents,
		ReturnedCents:   report.ReturnedCents,
		Closed:          haveClosing && report.ReturnedCents != 0,
	}))
	return report
}

// Manual recomputes from admin-supplied figures. The variance is always
// computed, even for a zero return.
func Manual(date string, req domain.ManualReconciliationRequest) domain.ReconciliationReport {
	report := domain.ReconciliationReport{
		Date:                 date,
		OpeningCents:         req.OpeningCents,
		CashSalesCents:       req.CashSalesCents,
		ChangeUsedCents:      req.ChangeUsedCents,
		ReturnedCents:        req.ReturnedCents,
		Entries:              []domain.CashFloat{},
		Timeline:             []domain.ReconciliationEvent{},
		ManualOverrideResult: true,
	}
	apply(&report, Compute(Inputs{
		OpeningCents:    req.OpeningCents,
		CashSalesCents:  req.CashSalesCents,
		ChangeUsedCents: req.ChangeUsedCents,
		ReturnedCents:   req.ReturnedCents,
		Closed:          true,
	}))
	return report
}

func apply(report *domain.ReconciliationReport, res Result) {
	report.ExpectedReturnCents = res.ExpectedReturnCents
	report.VarianceCents = res.VarianceCents
	report.ShortageCents = res.ShortageCents
	report.OverageCents = res.OverageCents
	report.Status = res.Status
}

// DayBounds returns the UTC instants delimiting a local calendar day.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}
