package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
	"cookiecraze/backend/internal/xid"
)

const hexCodeAttempts = 8

const orderColumns = `
	id, code, hex_code, customer_id, customer_name, walk_in_name, walk_in_phone, staff_id,
	type, payment_method, status, notes, total_cents, paid, cash_received_cents, change_cents,
	gcash_number, gcash_reference, gcash_amount_cents, gcash_verified_by, gcash_verified_at,
	loyalty_awarded, created_at, updated_at, paid_at, completed_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o            domain.Order
		customerID   sql.NullString
		status       string
		cashReceived sql.NullInt64
		gcashAmount  sql.NullInt64
		verifiedAt   sql.NullTime
		paidAt       sql.NullTime
		completedAt  sql.NullTime
	)
	if err := row.Scan(
		&o.ID, &o.Code, &o.HexCode, &customerID, &o.CustomerName, &o.WalkInName, &o.WalkInPhone, &o.StaffID,
		&o.Type, &o.PaymentMethod, &status, &o.Notes, &o.TotalCents, &o.Paid, &cashReceived, &o.ChangeCents,
		&o.GCashNumber, &o.GCashReference, &gcashAmount, &o.GCashVerifiedBy, &verifiedAt,
		&o.LoyaltyAwarded, &o.CreatedAt, &o.UpdatedAt, &paidAt, &completedAt,
	); err != nil {
		return nil, err
	}
	o.CustomerID = customerID.String
	o.Status = domain.OrderStatus(status)
	o.CashReceivedCents = int64Ptr(cashReceived)
	o.GCashAmountCents = int64Ptr(gcashAmount)
	o.GCashVerifiedAt = timePtr(verifiedAt)
	o.PaidAt = timePtr(paidAt)
	o.CompletedAt = timePtr(completedAt)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}

// loadItems attaches line items to orders in place.
func loadItems(ctx context.Context, q queryer, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		o.Items = make([]domain.OrderItem, 0, 4)
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT order_id, cookie_id, cookie_name, quantity, unit_price_cents, line_total_cents
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_no
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.CookieID, &item.CookieName, &item.Quantity, &item.UnitPriceCents, &item.LineTotalCents); err != nil {
			return err
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func (s *Store) CreateOrder(ctx context.Context, req store.NewOrder) (*domain.Order, error) {
	return retrySerializable(ctx, func() (*domain.Order, error) {
		return s.createOrder(ctx, req)
	})
}

func (s *Store) createOrder(ctx context.Context, req store.NewOrder) (*domain.Order, error) {
	lines := store.NormalizeLines(req.Lines)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order has no items", store.ErrInvalidRequest)
	}
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.CookieID)
	}

	pgTx, err := s.beginSerializable(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = pgTx.Rollback()
	}()

	cookies, err := lockCookies(ctx, pgTx, ids)
	if err != nil {
		return nil, err
	}

	order := req.Order
	order.Items = make([]domain.OrderItem, 0, len(lines))
	order.TotalCents = 0
	for _, line := range lines {
		cookie, ok := cookies[line.CookieID]
		if !ok || !cookie.Available {
			return nil, fmt.Errorf("%w: cookie %s is not available", store.ErrInvalidRequest, line.CookieID)
		}
		if cookie.Stock < line.Quantity {
			return nil, fmt.Errorf("%w: only %d %s left", store.ErrInsufficientStock, cookie.Stock, cookie.Name)
		}
		lineTotal := cookie.PriceCents * int64(line.Quantity)
		order.Items = append(order.Items, domain.OrderItem{
			CookieID:       cookie.ID,
			CookieName:     cookie.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: cookie.PriceCents,
			LineTotalCents: lineTotal,
		})
		order.TotalCents += lineTotal
	}

	now := time.Now().UTC()
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	if order.Status == "" {
		order.Status = domain.StatusPending
	}
	if req.Finalize != nil {
		if err := req.Finalize(&order); err != nil {
			return nil, err
		}
	}
	if err := store.CheckBuyer(order); err != nil {
		return nil, err
	}
	if order.CustomerID != "" {
		var exists bool
		if err := pgTx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)
		`, order.CustomerID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: unknown customer %s", store.ErrInvalidRequest, order.CustomerID)
		}
	}

	var seq int
	if err := pgTx.QueryRowContext(ctx, `
		INSERT INTO order_sequences (prefix, day, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, day)
		DO UPDATE SET last_value = order_sequences.last_value + 1
		RETURNING last_value
	`, req.Prefix, req.Day).Scan(&seq); err != nil {
		return nil, err
	}
	order.Code = store.FormatOrderCode(req.Prefix, req.Day, seq)

	order.HexCode, err = freeHexCode(ctx, pgTx)
	if err != nil {
		return nil, err
	}
	points := store.PendingLoyalty(&order)

	if err := insertOrder(ctx, pgTx, &order); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: order code %s already issued", store.ErrConflict, order.Code)
		}
		return nil, err
	}
	for i, item := range order.Items {
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, cookie_id, cookie_name, quantity, unit_price_cents, line_total_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, order.ID, i+1, item.CookieID, item.CookieName, item.Quantity, item.UnitPriceCents, item.LineTotalCents); err != nil {
			return nil, err
		}
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE cookies
			SET stock = stock - $2, updated_at = $3
			WHERE id = $1
		`, item.CookieID, item.Quantity, now); err != nil {
			return nil, err
		}
	}
	if err := addLoyalty(ctx, pgTx, order.CustomerID, points); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

type lockedCookie struct {
	ID         string
	Name       string
	PriceCents int64
	Stock      int
	Available  bool
}

func lockCookies(ctx context.Context, pgTx *sql.Tx, ids []string) (map[string]lockedCookie, error) {
	rows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, price_cents, stock, available
		FROM cookies
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	cookies := make(map[string]lockedCookie, len(ids))
	for rows.Next() {
		var c lockedCookie
		if err := rows.Scan(&c.ID, &c.Name, &c.PriceCents, &c.Stock, &c.Available); err != nil {
			rows.Close()
			return nil, err
		}
		cookies[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	return cookies, nil
}

func freeHexCode(ctx context.Context, pgTx *sql.Tx) (string, error) {
	for range hexCodeAttempts {
		candidate := xid.HexCode()
		var taken bool
		if err := pgTx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM orders WHERE hex_code = $1)
		`, candidate).Scan(&taken); err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free hex code after %d attempts", store.ErrConflict, hexCodeAttempts)
}

func insertOrder(ctx context.Context, pgTx *sql.Tx, o *domain.Order) error {
	_, err := pgTx.ExecContext(ctx, `
		INSERT INTO orders (
			id, code, hex_code, customer_id, customer_name, walk_in_name, walk_in_phone, staff_id,
			type, payment_method, status, notes, total_cents, paid, cash_received_cents, change_cents,
			gcash_number, gcash_reference, gcash_amount_cents, gcash_verified_by, gcash_verified_at,
			loyalty_awarded, created_at, updated_at, paid_at, completed_at
		)
		VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,
			$9,$10,$11,$12,$13,$14,$15,$16,
			$17,$18,$19,$20,$21,
			$22,$23,$24,$25,$26
		)
	`, o.ID, o.Code, o.HexCode, nullIfEmpty(o.CustomerID), o.CustomerName, o.WalkInName, o.WalkInPhone, o.StaffID,
		o.Type, o.PaymentMethod, string(o.Status), o.Notes, o.TotalCents, o.Paid, nullInt64(o.CashReceivedCents), o.ChangeCents,
		o.GCashNumber, o.GCashReference, nullInt64(o.GCashAmountCents), o.GCashVerifiedBy, nullTime(o.GCashVerifiedAt),
		o.LoyaltyAwarded, o.CreatedAt, o.UpdatedAt, nullTime(o.PaidAt), nullTime(o.CompletedAt))
	return err
}

// writeOrder persists every mutable order column. Items are immutable.
func writeOrder(ctx context.Context, pgTx *sql.Tx, o *domain.Order) error {
	_, err := pgTx.ExecContext(ctx, `
		UPDATE orders
		SET customer_id = $2, customer_name = $3, walk_in_name = $4, walk_in_phone = $5, staff_id = $6,
			payment_method = $7, status = $8, notes = $9, paid = $10, cash_received_cents = $11,
			change_cents = $12, gcash_number = $13, gcash_reference = $14, gcash_amount_cents = $15,
			gcash_verified_by = $16, gcash_verified_at = $17, loyalty_awarded = $18, updated_at = $19,
			paid_at = $20, completed_at = $21
		WHERE id = $1
	`, o.ID, nullIfEmpty(o.CustomerID), o.CustomerName, o.WalkInName, o.WalkInPhone, o.StaffID,
		o.PaymentMethod, string(o.Status), o.Notes, o.Paid, nullInt64(o.CashReceivedCents),
		o.ChangeCents, o.GCashNumber, o.GCashReference, nullInt64(o.GCashAmountCents),
		o.GCashVerifiedBy, nullTime(o.GCashVerifiedAt), o.LoyaltyAwarded, o.UpdatedAt,
		nullTime(o.PaidAt), nullTime(o.CompletedAt))
	return err
}

func lockOrder(ctx context.Context, pgTx *sql.Tx, id string) (*domain.Order, error) {
	o, err := scanOrder(pgTx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, notFound(err)
	}
	if err := loadItems(ctx, pgTx, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func addLoyalty(ctx context.Context, pgTx *sql.Tx, customerID string, points int64) error {
	if points == 0 || customerID == "" {
		return nil
	}
	_, err := pgTx.ExecContext(ctx, `
		UPDATE customers
		SET loyalty_points = loyalty_points + $2
		WHERE id = $1
	`, customerID, points)
	return err
}

// restoreStock returns line quantities to stock. Cookies deleted since the
// order was placed match no row and are skipped.
func restoreStock(ctx context.Context, pgTx *sql.Tx, items []domain.OrderItem, at time.Time) error {
	for _, item := range items {
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE cookies
			SET stock = stock + $2, updated_at = $3
			WHERE id = $1
		`, item.CookieID, item.Quantity, at); err != nil {
			return err
		}
	}
	return nil
}

// GetOrder accepts an order id or a hex code.
func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 OR hex_code = upper($1)
		ORDER BY (id = $1) DESC
		LIMIT 1
	`, id))
	if err != nil {
		return nil, notFound(err)
	}
	if err := loadItems(ctx, s.db, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	where := make([]string, 0, 8)
	args := make([]any, 0, 8)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if filter.PaymentMethod != "" {
		where = append(where, "payment_method = "+arg(filter.PaymentMethod))
	}
	if filter.Type != "" {
		where = append(where, "type = "+arg(filter.Type))
	}
	if filter.StaffID != "" {
		where = append(where, "staff_id = "+arg(filter.StaffID))
	}
	if filter.CustomerID != "" {
		where = append(where, "customer_id = "+arg(filter.CustomerID))
	}
	if filter.Paid != nil {
		where = append(where, "paid = "+arg(*filter.Paid))
	}
	if filter.From != nil {
		where = append(where, "created_at >= "+arg(filter.From.UTC()))
	}
	if filter.To != nil {
		where = append(where, "created_at < "+arg(filter.To.UTC()))
	}
	if filter.VisibleToStaffID != "" {
		p := arg(filter.VisibleToStaffID)
		where = append(where, fmt.Sprintf("(staff_id = %s OR (type = '%s' AND staff_id = ''))", p, domain.OrderTypeKiosk))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		p := arg("%" + escapeLike(q) + "%")
		where = append(where, fmt.Sprintf(
			"(code ILIKE %[1]s OR customer_name ILIKE %[1]s OR staff_id ILIKE %[1]s OR hex_code ILIKE %[1]s OR gcash_reference ILIKE %[1]s)", p))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, code DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loaded := make([]*domain.Order, 0, 64)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadItems(ctx, s.db, loaded); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(loaded))
	for _, o := range loaded {
		orders = append(orders, *o)
	}
	return orders, nil
}

func escapeLike(val string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(val)
}

func (s *Store) UpdateOrder(ctx context.Context, id string, mutate store.OrderMutation) (*domain.Order, error) {
	return retrySerializable(ctx, func() (*domain.Order, error) {
		return s.updateOrder(ctx, id, mutate)
	})
}

func (s *Store) updateOrder(ctx context.Context, id string, mutate store.OrderMutation) (*domain.Order, error) {
	pgTx, err := s.beginSerializable(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = pgTx.Rollback()
	}()

	order, err := lockOrder(ctx, pgTx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(order); err != nil {
		return nil, err
	}
	order.UpdatedAt = time.Now().UTC()
	points := store.PendingLoyalty(order)

	if err := writeOrder(ctx, pgTx, order); err != nil {
		return nil, err
	}
	if err := addLoyalty(ctx, pgTx, order.CustomerID, points); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) VoidOrder(ctx context.Context, id string, entry domain.VoidLog, at time.Time) (*domain.Order, error) {
	return retrySerializable(ctx, func() (*domain.Order, error) {
		return s.voidOrder(ctx, id, entry, at)
	})
}

func (s *Store) voidOrder(ctx context.Context, id string, entry domain.VoidLog, at time.Time) (*domain.Order, error) {
	pgTx, err := s.beginSerializable(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = pgTx.Rollback()
	}()

	order, err := lockOrder(ctx, pgTx, id)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case domain.StatusVoided:
		return nil, store.ErrAlreadyVoided
	case domain.StatusCancelled:
		return nil, fmt.Errorf("%w: cancelled orders cannot be voided", store.ErrInvalidTransition)
	}

	at = at.UTC()
	if err := restoreStock(ctx, pgTx, order.Items, at); err != nil {
		return nil, err
	}
	order.Status = domain.StatusVoided
	order.UpdatedAt = at
	if err := writeOrder(ctx, pgTx, order); err != nil {
		return nil, err
	}

	if entry.ID == "" {
		entry.ID = xid.VoidCode()
	}
	entry.OrderID = order.ID
	entry.OrderCode = order.Code
	entry.OriginalTotalCents = order.TotalCents
	entry.OriginalPaymentMethod = order.PaymentMethod
	entry.CreatedAt = at
	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO void_logs (
			id, order_id, order_code, reason, original_total_cents, original_payment_method,
			staff_member, admin_user, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.OrderID, entry.OrderCode, entry.Reason, entry.OriginalTotalCents, entry.OriginalPaymentMethod,
		entry.StaffMember, entry.AdminUser, entry.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: void code %s already used", store.ErrConflict, entry.ID)
		}
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) CancelOrder(ctx context.Context, id string, check store.OrderMutation, at time.Time) (*domain.Order, error) {
	return retrySerializable(ctx, func() (*domain.Order, error) {
		return s.cancelOrder(ctx, id, check, at)
	})
}

func (s *Store) cancelOrder(ctx context.Context, id string, check store.OrderMutation, at time.Time) (*domain.Order, error) {
	pgTx, err := s.beginSerializable(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = pgTx.Rollback()
	}()

	order, err := lockOrder(ctx, pgTx, id)
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(order); err != nil {
			return nil, err
		}
	}
	if order.Status.Terminal() {
		return nil, fmt.Errorf("%w: order is %s", store.ErrInvalidTransition, order.Status)
	}

	at = at.UTC()
	if err := restoreStock(ctx, pgTx, order.Items, at); err != nil {
		return nil, err
	}
	order.Status = domain.StatusCancelled
	order.UpdatedAt = at
	if err := writeOrder(ctx, pgTx, order); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) CountOrdersSince(ctx context.Context, since time.Time) (int, string, error) {
	var (
		count  int
		latest string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*),
			COALESCE((
				SELECT code FROM orders
				WHERE created_at > $1
				ORDER BY created_at DESC, code DESC
				LIMIT 1
			), '')
		FROM orders
		WHERE created_at > $1
	`, since.UTC()).Scan(&count, &latest)
	if err != nil {
		return 0, "", err
	}
	return count, latest, nil
}
