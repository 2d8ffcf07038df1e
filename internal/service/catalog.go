package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
)

const defaultCategoryColor = "#007bff"

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx, PrincipalFromContext(ctx).IsAdmin())
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, invalid("category name is required")
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Color:       defaultString(strings.TrimSpace(req.Color), defaultCategoryColor),
		Icon:        strings.TrimSpace(req.Icon),
		Active:      true,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return domain.Category{}, err
	}

	s.logAudit(ctx, "category_create", "category", created.ID, fmt.Sprintf("created category %s", created.Name))
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryUpdateRequest) (domain.Category, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}

	existing, err := s.repo.GetCategory(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Category{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Category{}, invalid("category name is required")
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Color != nil {
		updated.Color = defaultString(strings.TrimSpace(*req.Color), defaultCategoryColor)
	}
	if req.Icon != nil {
		updated.Icon = strings.TrimSpace(*req.Icon)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateCategory(ctx, updated)
	if err != nil {
		return domain.Category{}, err
	}

	s.logAudit(ctx, "category_update", "category", saved.ID, fmt.Sprintf("updated category %s active=%t", saved.Name, saved.Active))
	return *saved, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "category_delete", "category", id, "deleted category "+id)
	return nil
}

// ListCookies hides unavailable cookies from customers and the kiosk.
func (s *Service) ListCookies(ctx context.Context, categoryID string, includeUnavailable bool) ([]domain.Cookie, error) {
	if !PrincipalFromContext(ctx).IsApprovedStaff() {
		includeUnavailable = false
	}
	return s.repo.ListCookies(ctx, domain.CookieFilter{
		CategoryID:         strings.TrimSpace(categoryID),
		IncludeUnavailable: includeUnavailable,
	})
}

func (s *Service) GetCookie(ctx context.Context, id string) (domain.Cookie, error) {
	cookie, err := s.repo.GetCookie(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Cookie{}, err
	}
	if !cookie.Available && !PrincipalFromContext(ctx).IsApprovedStaff() {
		return domain.Cookie{}, store.ErrNotFound
	}
	return *cookie, nil
}

func (s *Service) CreateCookie(ctx context.Context, req domain.CookieCreateRequest) (domain.Cookie, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Cookie{}, err
	}

	cookie := domain.Cookie{
		CategoryID:  strings.TrimSpace(req.CategoryID),
		Name:        strings.TrimSpace(req.Name),
		Flavor:      strings.ToLower(strings.TrimSpace(req.Flavor)),
		Description: strings.TrimSpace(req.Description),
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		Available:   true,
	}
	if cookie.Name == "" || cookie.CategoryID == "" {
		return domain.Cookie{}, invalid("cookie name and category are required")
	}
	if req.ExpirationDate != nil {
		expires, err := parseExpiration(*req.ExpirationDate)
		if err != nil {
			return domain.Cookie{}, err
		}
		cookie.ExpirationDate = expires
	}
	if err := validateCookie(cookie); err != nil {
		return domain.Cookie{}, err
	}
	if _, err := s.repo.GetCategory(ctx, cookie.CategoryID); err != nil {
		return domain.Cookie{}, invalid("unknown category %s", cookie.CategoryID)
	}

	created, err := s.repo.CreateCookie(ctx, cookie)
	if err != nil {
		return domain.Cookie{}, err
	}

	s.logAudit(ctx, "cookie_create", "cookie", created.ID, fmt.Sprintf("created cookie %s price=%s stock=%d", created.Name, s.money(created.PriceCents), created.Stock))
	return *created, nil
}

func (s *Service) UpdateCookie(ctx context.Context, id string, req domain.CookieUpdateRequest) (domain.Cookie, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Cookie{}, err
	}

	existing, err := s.repo.GetCookie(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Cookie{}, err
	}

	updated := *existing
	if req.CategoryID != nil {
		updated.CategoryID = strings.TrimSpace(*req.CategoryID)
		if _, err := s.repo.GetCategory(ctx, updated.CategoryID); err != nil {
			return domain.Cookie{}, invalid("unknown category %s", updated.CategoryID)
		}
	}
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
		if updated.Name == "" {
			return domain.Cookie{}, invalid("cookie name is required")
		}
	}
	if req.Flavor != nil {
		updated.Flavor = strings.ToLower(strings.TrimSpace(*req.Flavor))
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.PriceCents != nil {
		updated.PriceCents = *req.PriceCents
	}
	if req.Available != nil {
		updated.Available = *req.Available
	}
	if req.ExpirationDate != nil {
		expires, err := parseExpiration(*req.ExpirationDate)
		if err != nil {
			return domain.Cookie{}, err
		}
		updated.ExpirationDate = expires
	}
	if err := validateCookie(updated); err != nil {
		return domain.Cookie{}, err
	}

	saved, err := s.repo.UpdateCookie(ctx, updated)
	if err != nil {
		return domain.Cookie{}, err
	}

	detail := fmt.Sprintf("updated cookie %s available=%t", saved.Name, saved.Available)
	if existing.PriceCents != saved.PriceCents {
		detail += fmt.Sprintf(" price %s -> %s", s.money(existing.PriceCents), s.money(saved.PriceCents))
	}
	s.logAudit(ctx, "cookie_update", "cookie", saved.ID, detail)
	return *saved, nil
}

func (s *Service) DeleteCookie(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteCookie(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "cookie_delete", "cookie", id, "deleted cookie "+id)
	return nil
}

// AdjustStock applies a signed delta. The resulting stock never goes below 0.
func (s *Service) AdjustStock(ctx context.Context, id string, req domain.StockAdjustRequest) (domain.Cookie, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Cookie{}, err
	}
	if req.Delta == 0 {
		return domain.Cookie{}, invalid("stock delta must not be zero")
	}

	cookie, err := s.repo.AdjustStock(ctx, strings.TrimSpace(id), req.Delta)
	if err != nil {
		return domain.Cookie{}, err
	}

	detail := fmt.Sprintf("stock %+d for %s, now %d", req.Delta, cookie.Name, cookie.Stock)
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		detail += " (" + notes + ")"
	}
	s.logAudit(ctx, "stock_adjust", "cookie", cookie.ID, detail)
	return *cookie, nil
}

func validateCookie(cookie domain.Cookie) error {
	if cookie.PriceCents < 1 {
		return invalid("price must be at least 0.01")
	}
	if cookie.Stock < 0 {
		return invalid("stock must not be negative")
	}
	if !domain.IsFlavor(cookie.Flavor) {
		return invalid("unknown flavor %q", cookie.Flavor)
	}
	return nil
}

// parseExpiration accepts YYYY-MM-DD. An empty value clears the date.
func parseExpiration(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, invalid("expiration date must be YYYY-MM-DD")
	}
	return &day, nil
}
