package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
	"cookiecraze/backend/internal/xid"
)

const idAttempts = 8

const customerColumns = `
	id, username, name, phone, email, loyalty_points, email_verified,
	verification_token, verification_sent_at, email_verified_at, created_at`

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var (
		c          domain.Customer
		username   sql.NullString
		token      sql.NullString
		sentAt     sql.NullTime
		verifiedAt sql.NullTime
	)
	if err := row.Scan(
		&c.ID, &username, &c.Name, &c.Phone, &c.Email, &c.LoyaltyPoints, &c.EmailVerified,
		&token, &sentAt, &verifiedAt, &c.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	c.Username = username.String
	c.VerificationToken = token.String
	c.VerificationSentAt = timePtr(sentAt)
	c.EmailVerifiedAt = timePtr(verifiedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidRequest
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	generated := customer.ID == ""

	for attempt := 0; attempt < idAttempts; attempt++ {
		if generated {
			customer.ID = xid.CustomerCode()
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO customers (
				id, username, name, phone, email, loyalty_points, email_verified,
				verification_token, verification_sent_at, email_verified_at, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, customer.ID, nullIfEmpty(customer.Username), customer.Name, customer.Phone, customer.Email,
			customer.LoyaltyPoints, customer.EmailVerified, nullIfEmpty(customer.VerificationToken),
			nullTime(customer.VerificationSentAt), nullTime(customer.EmailVerifiedAt), customer.CreatedAt)
		if err == nil {
			return &customer, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		if !generated || s.customerUsernameTaken(ctx, customer.Username) {
			return nil, fmt.Errorf("%w: customer profile exists for %s", store.ErrConflict, defaultLabel(customer.Username, customer.ID))
		}
	}
	return nil, fmt.Errorf("%w: no free customer id after %d attempts", store.ErrConflict, idAttempts)
}

func (s *Store) customerUsernameTaken(ctx context.Context, username string) bool {
	if username == "" {
		return false
	}
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM customers WHERE username = $1)
	`, username).Scan(&taken)
	return err == nil && taken
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1
	`, id))
}

func (s *Store) GetCustomerByUsername(ctx context.Context, username string) (*domain.Customer, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, store.ErrNotFound
	}
	return scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE username = $1
	`, username))
}

// FindCustomer matches by name and phone, then name only, then phone only.
func (s *Store) FindCustomer(ctx context.Context, name string, phone string) (*domain.Customer, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)

	lookups := make([]struct {
		where string
		args  []any
	}, 0, 3)
	if name != "" && phone != "" {
		lookups = append(lookups, struct {
			where string
			args  []any
		}{`lower(name) = lower($1) AND phone = $2`, []any{name, phone}})
	}
	if name != "" {
		lookups = append(lookups, struct {
			where string
			args  []any
		}{`lower(name) = lower($1)`, []any{name}})
	}
	if phone != "" {
		lookups = append(lookups, struct {
			where string
			args  []any
		}{`phone = $1`, []any{phone}})
	}

	for _, lookup := range lookups {
		c, err := scanCustomer(s.db.QueryRowContext(ctx, `
			SELECT `+customerColumns+`
			FROM customers
			WHERE `+lookup.where+`
			ORDER BY id
			LIMIT 1
		`, lookup.args...))
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return nil, store.ErrNotFound
}

// UpdateCustomer leaves loyalty points alone; they only move through
// AddLoyaltyPoints and order completion.
func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET username = $2, name = $3, phone = $4, email = $5, email_verified = $6,
			verification_token = $7, verification_sent_at = $8, email_verified_at = $9
		WHERE id = $1
		RETURNING loyalty_points, created_at
	`, customer.ID, nullIfEmpty(customer.Username), customer.Name, customer.Phone, customer.Email, customer.EmailVerified,
		nullIfEmpty(customer.VerificationToken), nullTime(customer.VerificationSentAt), nullTime(customer.EmailVerifiedAt),
	).Scan(&customer.LoyaltyPoints, &customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: customer profile exists for %s", store.ErrConflict, customer.Username)
		}
		return nil, notFound(err)
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) AddLoyaltyPoints(ctx context.Context, id string, points int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET loyalty_points = loyalty_points + $2
		WHERE id = $1
	`, id, points)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) GetCustomerByVerificationToken(ctx context.Context, token string) (*domain.Customer, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	return scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE verification_token = $1
	`, token))
}

const staffColumns = `id, username, name, phone, role, active, created_at`

func (s *Store) ListCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error) {
	sqlQuery := `SELECT ` + customerColumns + ` FROM customers`
	args := make([]any, 0, 2)
	if q := strings.TrimSpace(query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		sqlQuery += ` WHERE id ILIKE $1 OR username ILIKE $1 OR name ILIKE $1 OR phone ILIKE $1 OR email ILIKE $1`
	}
	sqlQuery += ` ORDER BY created_at DESC, id ASC`
	if limit > 0 {
		args = append(args, limit)
		sqlQuery += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 16)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = pgTx.Rollback()
	}()

	if _, err := pgTx.ExecContext(ctx, `
		UPDATE orders
		SET customer_id = NULL,
			walk_in_name = CASE
				WHEN walk_in_name <> '' THEN walk_in_name
				WHEN customer_name <> '' THEN customer_name
				ELSE $2
			END,
			customer_name = CASE WHEN customer_name <> '' THEN customer_name ELSE $2 END,
			updated_at = now()
		WHERE customer_id = $1
	`, id, store.DeletedCustomerName); err != nil {
		return err
	}
	res, err := pgTx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return pgTx.Commit()
}

func scanStaff(row rowScanner) (*domain.Staff, error) {
	var st domain.Staff
	if err := row.Scan(&st.ID, &st.Username, &st.Name, &st.Phone, &st.Role, &st.Active, &st.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	st.CreatedAt = st.CreatedAt.UTC()
	return &st, nil
}

func (s *Store) CreateStaff(ctx context.Context, staff domain.Staff) (*domain.Staff, error) {
	if staff.Role == "" {
		staff.Role = domain.StaffRolePending
	}
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = time.Now().UTC()
	}
	generated := staff.ID == ""

	for attempt := 0; attempt < idAttempts; attempt++ {
		if generated {
			staff.ID = xid.StaffCode()
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO staff (id, username, name, phone, role, active, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, staff.ID, staff.Username, staff.Name, staff.Phone, staff.Role, staff.Active, staff.CreatedAt)
		if err == nil {
			return &staff, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		if !generated {
			return nil, fmt.Errorf("%w: staff %s exists", store.ErrConflict, staff.ID)
		}
		if _, lookupErr := s.GetStaffByUsername(ctx, staff.Username); lookupErr == nil {
			return nil, fmt.Errorf("%w: staff profile exists for %s", store.ErrConflict, staff.Username)
		}
	}
	return nil, fmt.Errorf("%w: no free staff id after %d attempts", store.ErrConflict, idAttempts)
}

func (s *Store) GetStaff(ctx context.Context, id string) (*domain.Staff, error) {
	return scanStaff(s.db.QueryRowContext(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE id = $1
	`, id))
}

func (s *Store) GetStaffByUsername(ctx context.Context, username string) (*domain.Staff, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, store.ErrNotFound
	}
	return scanStaff(s.db.QueryRowContext(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE username = $1
	`, username))
}

func (s *Store) ListStaff(ctx context.Context, pendingOnly bool) ([]domain.Staff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE NOT $1 OR role = $2
		ORDER BY id ASC
	`, pendingOnly, domain.StaffRolePending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	staff := make([]domain.Staff, 0, 16)
	for rows.Next() {
		st, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		staff = append(staff, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return staff, nil
}

// UpdateStaff never changes the username; it is the link to the account.
func (s *Store) UpdateStaff(ctx context.Context, staff domain.Staff) (*domain.Staff, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE staff
		SET name = $2, phone = $3, role = $4, active = $5
		WHERE id = $1
		RETURNING username, created_at
	`, staff.ID, staff.Name, staff.Phone, staff.Role, staff.Active).Scan(&staff.Username, &staff.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	staff.CreatedAt = staff.CreatedAt.UTC()
	return &staff, nil
}

func (s *Store) DeleteStaff(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM staff WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

const userColumns = `username, password, kind, superuser, active, email, permissions, created_at`

func scanUser(row rowScanner) (*domain.UserAccount, error) {
	var (
		user  domain.UserAccount
		perms []byte
	)
	if err := row.Scan(&user.Username, &user.Password, &user.Kind, &user.Superuser, &user.Active, &user.Email, &perms, &user.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &user.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions for %s: %w", user.Username, err)
		}
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRequest
	}
	if user.Kind == "" {
		user.Kind = domain.AccountCustomer
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Permissions == nil {
		user.Permissions = []string{}
	}
	perms, err := json.Marshal(user.Permissions)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_accounts (username, password, kind, superuser, active, email, permissions, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
	`, user.Username, user.Password, user.Kind, user.Superuser, user.Active, user.Email, string(perms), user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %s is taken", store.ErrConflict, user.Username)
		}
		return err
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM user_accounts
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))))
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM user_accounts
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRequest
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE user_accounts
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) SetUserActive(ctx context.Context, username string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_accounts
		SET active = $2, updated_at = now()
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), active)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM user_accounts
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func defaultLabel(val string, fallback string) string {
	if val == "" {
		return fallback
	}
	return val
}
