package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cookiecraze/backend/internal/cart"
	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
)

func cartKey(principal domain.Principal) string {
	return "user:" + principal.Username
}

func (s *Service) ViewCart(ctx context.Context) (domain.CartView, error) {
	principal, err := requireCustomer(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	c, err := s.loadCart(ctx, principal)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.normalizedView(ctx, principal, c, nil)
}

// AddToCart increases the quantity held for a cookie.
func (s *Service) AddToCart(ctx context.Context, req domain.CartItemRequest) (domain.CartView, error) {
	return s.changeCart(ctx, req, func(current int) int { return current + req.Quantity })
}

// UpdateCartItem replaces the quantity held for a cookie. Zero or less
// removes it.
func (s *Service) UpdateCartItem(ctx context.Context, req domain.CartItemRequest) (domain.CartView, error) {
	return s.changeCart(ctx, req, func(int) int { return req.Quantity })
}

func (s *Service) RemoveCartItem(ctx context.Context, cookieID string) (domain.CartView, error) {
	return s.changeCart(ctx, domain.CartItemRequest{CookieID: cookieID}, func(int) int { return 0 })
}

func (s *Service) ClearCart(ctx context.Context) error {
	principal, err := requireCustomer(ctx)
	if err != nil {
		return err
	}
	return s.carts.DeleteCart(ctx, cartKey(principal))
}

// CheckoutCart turns the cart into one kiosk order for the customer. The
// cart is cleared only once the order exists.
func (s *Service) CheckoutCart(ctx context.Context, req domain.CartCheckoutRequest) (domain.Order, error) {
	principal, err := requireCustomer(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	c, err := s.loadCart(ctx, principal)
	if err != nil {
		return domain.Order{}, err
	}
	cookies, err := s.repo.GetCookiesByIDs(ctx, c.IDs())
	if err != nil {
		return domain.Order{}, err
	}
	normalized, changes := cart.Normalize(c, cookies)
	if len(changes) > 0 {
		if err := s.saveCart(ctx, principal, normalized); err != nil {
			return domain.Order{}, err
		}
	}
	if normalized.Empty() {
		return domain.Order{}, invalid("cart is empty")
	}

	order, err := s.CreateKioskOrder(ctx, domain.KioskOrderRequest{
		Items:         normalized.Lines(),
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.carts.DeleteCart(ctx, cartKey(principal)); err != nil {
		log.Printf("[service] WARN: failed to clear cart user=%s order=%s: %v", principal.Username, order.Code, err)
	}
	return order, nil
}

func (s *Service) changeCart(ctx context.Context, req domain.CartItemRequest, next func(current int) int) (domain.CartView, error) {
	principal, err := requireCustomer(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	cookieID := strings.TrimSpace(req.CookieID)
	if cookieID == "" {
		return domain.CartView{}, invalid("cookie_id is required")
	}
	c, err := s.loadCart(ctx, principal)
	if err != nil {
		return domain.CartView{}, err
	}

	qty := next(c[cookieID])
	var messages []string
	if qty > 0 {
		cookie, err := s.repo.GetCookie(ctx, cookieID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.CartView{}, err
		}
		if err != nil || !cookie.Orderable() {
			if _, held := c[cookieID]; held {
				delete(c, cookieID)
				if err := s.saveCart(ctx, principal, c); err != nil {
					return domain.CartView{}, err
				}
			}
			return domain.CartView{}, fmt.Errorf("%w: cookie %s is not available", store.ErrNotFound, cookieID)
		}
		clamped, msg := cart.Clamp(qty, cookie.Stock)
		if msg != "" {
			messages = append(messages, fmt.Sprintf("%s: %s", cookie.Name, msg))
		}
		qty = clamped
	}
	c.Set(cookieID, qty)
	if err := s.saveCart(ctx, principal, c); err != nil {
		return domain.CartView{}, err
	}
	return s.normalizedView(ctx, principal, c, messages)
}

// normalizedView prices the cart against live stock and persists the pruned
// cart when anything changed.
func (s *Service) normalizedView(ctx context.Context, principal domain.Principal, c cart.Cart, messages []string) (domain.CartView, error) {
	cookies, err := s.repo.GetCookiesByIDs(ctx, c.IDs())
	if err != nil {
		return domain.CartView{}, err
	}
	normalized, changes := cart.Normalize(c, cookies)
	for _, change := range changes {
		name := change.CookieID
		if cookie, ok := cookies[change.CookieID]; ok {
			name = cookie.Name
		}
		switch change.Reason {
		case cart.ReasonUnavailable:
			messages = append(messages, fmt.Sprintf("%s is no longer available and was removed", name))
		case cart.ReasonClamped:
			_, msg := cart.Clamp(change.Requested, change.Kept)
			messages = append(messages, fmt.Sprintf("%s: %s", name, msg))
		}
	}
	if len(changes) > 0 {
		if err := s.saveCart(ctx, principal, normalized); err != nil {
			return domain.CartView{}, err
		}
	}

	view := domain.CartView{Items: make([]domain.CartLine, 0, len(normalized)), Messages: messages}
	for _, id := range normalized.IDs() {
		cookie := cookies[id]
		qty := normalized[id]
		line := domain.CartLine{
			CookieID:       id,
			Name:           cookie.Name,
			PriceCents:     cookie.PriceCents,
			Quantity:       qty,
			Stock:          cookie.Stock,
			LineTotalCents: cookie.PriceCents * int64(qty),
		}
		view.Items = append(view.Items, line)
		view.ItemCount += qty
		view.TotalCents += line.LineTotalCents
	}
	return view, nil
}

func (s *Service) loadCart(ctx context.Context, principal domain.Principal) (cart.Cart, error) {
	raw, err := s.carts.LoadCart(ctx, cartKey(principal))
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return cart.Read(raw), nil
}

func (s *Service) saveCart(ctx context.Context, principal domain.Principal, c cart.Cart) error {
	if c.Empty() {
		return s.carts.DeleteCart(ctx, cartKey(principal))
	}
	raw, err := cart.Write(c)
	if err != nil {
		return err
	}
	return s.carts.SaveCart(ctx, cartKey(principal), raw, s.cartTTL)
}
