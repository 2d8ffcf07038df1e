package postgres

import (
	"context"
	"fmt"
	"time"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
	"cookiecraze/backend/internal/xid"
)

const cashFloatColumns = `id, day, type, adjustment_type, amount_cents, notes, staff_id, created_at`

func scanCashFloat(row rowScanner) (*domain.CashFloat, error) {
	var entry domain.CashFloat
	if err := row.Scan(
		&entry.ID, &entry.Day, &entry.Type, &entry.AdjustmentType, &entry.AmountCents,
		&entry.Notes, &entry.StaffID, &entry.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	entry.Day = store.DayStart(entry.Day)
	entry.CreatedAt = entry.CreatedAt.UTC()
	return &entry, nil
}

func (s *Store) CreateCashFloat(ctx context.Context, entry domain.CashFloat) (*domain.CashFloat, error) {
	if !domain.IsFloatType(entry.Type) || entry.AmountCents < 0 {
		return nil, store.ErrInvalidRequest
	}
	if entry.ID == "" {
		entry.ID = xid.New("float")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Day = store.DayStart(entry.Day)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_floats (id, day, type, adjustment_type, amount_cents, notes, staff_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.Day, entry.Type, entry.AdjustmentType, entry.AmountCents, entry.Notes, entry.StaffID, entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: closing float already recorded for %s", store.ErrConflict, entry.Day.Format(time.DateOnly))
		}
		return nil, err
	}
	return &entry, nil
}

// UpsertClosingFloat keeps at most one closing entry per day. A second
// closing count replaces the amount, notes and staff of the first.
func (s *Store) UpsertClosingFloat(ctx context.Context, entry domain.CashFloat) (*domain.CashFloat, error) {
	if entry.AmountCents < 0 {
		return nil, store.ErrInvalidRequest
	}
	if entry.ID == "" {
		entry.ID = xid.New("float")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	return scanCashFloat(s.db.QueryRowContext(ctx, `
		INSERT INTO cash_floats (id, day, type, adjustment_type, amount_cents, notes, staff_id, created_at)
		VALUES ($1,$2,$3,'',$4,$5,$6,$7)
		ON CONFLICT (day) WHERE type = 'closing'
		DO UPDATE SET amount_cents = EXCLUDED.amount_cents, notes = EXCLUDED.notes, staff_id = EXCLUDED.staff_id
		RETURNING `+cashFloatColumns,
		entry.ID, store.DayStart(entry.Day), domain.FloatClosing, entry.AmountCents, entry.Notes, entry.StaffID, entry.CreatedAt))
}

func (s *Store) ListCashFloats(ctx context.Context, day time.Time) ([]domain.CashFloat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cashFloatColumns+`
		FROM cash_floats
		WHERE day = $1
		ORDER BY created_at ASC, id ASC
	`, store.DayStart(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CashFloat, 0, 8)
	for rows.Next() {
		entry, err := scanCashFloat(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) GetCashFloat(ctx context.Context, id string) (*domain.CashFloat, error) {
	return scanCashFloat(s.db.QueryRowContext(ctx, `
		SELECT `+cashFloatColumns+`
		FROM cash_floats
		WHERE id = $1
	`, id))
}

func (s *Store) DeleteCashFloat(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cash_floats WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) CreateActivityLog(ctx context.Context, entry domain.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("act")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, username, action, description, ip_address, affected_model, affected_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.Username, entry.Action, entry.Description, entry.IPAddress, entry.AffectedModel, entry.AffectedID, entry.CreatedAt)
	return err
}

func (s *Store) ListActivityLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.ActivityLog, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, action, description, ip_address, affected_model, affected_id, created_at
		FROM activity_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.ActivityLog, 0, 64)
	for rows.Next() {
		var entry domain.ActivityLog
		if err := rows.Scan(
			&entry.ID, &entry.Username, &entry.Action, &entry.Description, &entry.IPAddress,
			&entry.AffectedModel, &entry.AffectedID, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) ListVoidLogs(ctx context.Context, from time.Time, to time.Time) ([]domain.VoidLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, order_code, reason, original_total_cents, original_payment_method,
			staff_member, admin_user, created_at
		FROM void_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.VoidLog, 0, 16)
	for rows.Next() {
		var entry domain.VoidLog
		if err := rows.Scan(
			&entry.ID, &entry.OrderID, &entry.OrderCode, &entry.Reason, &entry.OriginalTotalCents,
			&entry.OriginalPaymentMethod, &entry.StaffMember, &entry.AdminUser, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
