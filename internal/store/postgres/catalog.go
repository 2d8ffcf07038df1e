package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
	"cookiecraze/backend/internal/xid"
)

const categoryColumns = `id, name, description, color, icon, active, created_at`

func scanCategory(row rowScanner) (domain.Category, error) {
	var c domain.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.Icon, &c.Active, &c.CreatedAt); err != nil {
		return domain.Category{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE $1 OR active = true
		ORDER BY lower(name) ASC
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, store.ErrInvalidRequest
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, color, icon, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, category.ID, category.Name, category.Description, category.Color, category.Icon, category.Active, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %q already exists", store.ErrConflict, category.Name)
		}
		return nil, err
	}
	return &category, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	err := s.db.QueryRowContext(ctx, `
		UPDATE categories
		SET name = $2, description = $3, color = $4, icon = $5, active = $6
		WHERE id = $1
		RETURNING created_at
	`, category.ID, category.Name, category.Description, category.Color, category.Icon, category.Active).Scan(&category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %q already exists", store.ErrConflict, category.Name)
		}
		return nil, notFound(err)
	}
	category.CreatedAt = category.CreatedAt.UTC()
	return &category, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	var inUse bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM cookies WHERE category_id = $1)
	`, id).Scan(&inUse); err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("%w: category still has cookies", store.ErrConflict)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

const cookieColumns = `id, category_id, name, flavor, description, price_cents, stock, expiration_date, available, created_at, updated_at`

func scanCookie(row rowScanner) (domain.Cookie, error) {
	var (
		c       domain.Cookie
		expires sql.NullTime
	)
	if err := row.Scan(
		&c.ID, &c.CategoryID, &c.Name, &c.Flavor, &c.Description, &c.PriceCents, &c.Stock,
		&expires, &c.Available, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return domain.Cookie{}, err
	}
	c.ExpirationDate = timePtr(expires)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func (s *Store) ListCookies(ctx context.Context, filter domain.CookieFilter) ([]domain.Cookie, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cookieColumns+`
		FROM cookies
		WHERE ($1 = '' OR category_id = $1)
			AND ($2 OR available = true)
		ORDER BY category_id, name
	`, filter.CategoryID, filter.IncludeUnavailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cookies := make([]domain.Cookie, 0, 64)
	for rows.Next() {
		c, err := scanCookie(rows)
		if err != nil {
			return nil, err
		}
		cookies = append(cookies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}

func (s *Store) GetCookie(ctx context.Context, id string) (*domain.Cookie, error) {
	c, err := scanCookie(s.db.QueryRowContext(ctx, `
		SELECT `+cookieColumns+`
		FROM cookies
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) GetCookiesByIDs(ctx context.Context, ids []string) (map[string]domain.Cookie, error) {
	result := make(map[string]domain.Cookie, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cookieColumns+`
		FROM cookies
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCookie(rows)
		if err != nil {
			return nil, err
		}
		result[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateCookie(ctx context.Context, cookie domain.Cookie) (*domain.Cookie, error) {
	if err := s.checkCategory(ctx, cookie.CategoryID); err != nil {
		return nil, err
	}
	if cookie.ID == "" {
		cookie.ID = xid.New("cookie")
	}
	now := time.Now().UTC()
	cookie.CreatedAt = now
	cookie.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cookies (
			id, category_id, name, flavor, description, price_cents, stock,
			expiration_date, available, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, cookie.ID, cookie.CategoryID, cookie.Name, cookie.Flavor, cookie.Description, cookie.PriceCents, cookie.Stock,
		nullDate(cookie.ExpirationDate), cookie.Available, cookie.CreatedAt, cookie.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: cookie %s exists", store.ErrConflict, cookie.ID)
		}
		return nil, err
	}
	return &cookie, nil
}

func (s *Store) UpdateCookie(ctx context.Context, cookie domain.Cookie) (*domain.Cookie, error) {
	if err := s.checkCategory(ctx, cookie.CategoryID); err != nil {
		return nil, err
	}
	cookie.UpdatedAt = time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		UPDATE cookies
		SET category_id = $2, name = $3, flavor = $4, description = $5, price_cents = $6,
			stock = $7, expiration_date = $8, available = $9, updated_at = $10
		WHERE id = $1
		RETURNING created_at
	`, cookie.ID, cookie.CategoryID, cookie.Name, cookie.Flavor, cookie.Description, cookie.PriceCents,
		cookie.Stock, nullDate(cookie.ExpirationDate), cookie.Available, cookie.UpdatedAt).Scan(&cookie.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	cookie.CreatedAt = cookie.CreatedAt.UTC()
	return &cookie, nil
}

func (s *Store) DeleteCookie(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// AdjustStock applies delta and floors the result at zero.
func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*domain.Cookie, error) {
	c, err := scanCookie(s.db.QueryRowContext(ctx, `
		UPDATE cookies
		SET stock = GREATEST(stock + $2, 0), updated_at = now()
		WHERE id = $1
		RETURNING `+cookieColumns, id, delta))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) checkCategory(ctx context.Context, id string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)
	`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: unknown category %s", store.ErrInvalidRequest, id)
	}
	return nil
}
