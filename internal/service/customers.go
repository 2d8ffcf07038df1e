package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
)

const (
	minBuyerQueryLength = 2
	buyerLookupLimit    = 10
	customerListLimit   = 500
)

// ListCustomers serves two screens. Admins get the full customer list,
// optionally narrowed to active or inactive accounts. Other staff get the
// walk-in buyer lookup, which needs a query and returns a short list.
func (s *Service) ListCustomers(ctx context.Context, query string, status string) ([]domain.CustomerAccount, error) {
	principal, err := requireApprovedStaff(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "", "active", "inactive":
	default:
		return nil, invalid("status must be active or inactive")
	}

	limit := customerListLimit
	if !principal.IsAdmin() {
		if len(query) < minBuyerQueryLength {
			return []domain.CustomerAccount{}, nil
		}
		status = ""
		limit = buyerLookupLimit
	}

	customers, err := s.repo.ListCustomers(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	result := make([]domain.CustomerAccount, 0, len(customers))
	for _, c := range customers {
		account, err := s.customerAccount(ctx, c)
		if err != nil {
			return nil, err
		}
		if status == "active" && !account.AccountActive || status == "inactive" && account.AccountActive {
			continue
		}
		result = append(result, account)
	}
	return result, nil
}

// CustomerOrders is the admin view of one customer's order history.
func (s *Service) CustomerOrders(ctx context.Context, id string) (domain.CustomerOrders, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.CustomerOrders{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CustomerOrders{}, err
	}
	account, err := s.customerAccount(ctx, *customer)
	if err != nil {
		return domain.CustomerOrders{}, err
	}
	orders, err := s.repo.ListOrders(ctx, domain.OrderFilter{CustomerID: customer.ID})
	if err != nil {
		return domain.CustomerOrders{}, err
	}

	result := domain.CustomerOrders{Customer: account, Orders: orders, Count: len(orders)}
	for _, o := range orders {
		if o.Status == domain.StatusCompleted {
			result.TotalSpentCents += o.TotalCents
		}
	}
	return result, nil
}

// SetCustomerActive enables or disables a customer's login. Disabled
// accounts are rejected on their next request.
func (s *Service) SetCustomerActive(ctx context.Context, id string, active bool) (domain.CustomerAccount, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.CustomerAccount{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CustomerAccount{}, err
	}
	if customer.Username == "" {
		return domain.CustomerAccount{}, invalid("customer %s has no login account", customer.ID)
	}
	account, err := s.customerAccount(ctx, *customer)
	if err != nil {
		return domain.CustomerAccount{}, err
	}
	if account.AccountActive == active {
		return account, nil
	}

	if err := s.repo.SetUserActive(ctx, customer.Username, active); err != nil {
		return domain.CustomerAccount{}, err
	}
	account.AccountActive = active
	action := "customer_deactivate"
	if active {
		action = "customer_activate"
	}
	s.logAudit(ctx, action, "customer", customer.ID, fmt.Sprintf("customer %s active=%t", customer.Username, active))
	return account, nil
}

// DeleteMyAccount removes the caller's profile and login. Orders stay in
// the sales history under the buyer's name. Accounts with orders still in
// progress cannot be deleted.
func (s *Service) DeleteMyAccount(ctx context.Context) error {
	principal, err := requireCustomer(ctx)
	if err != nil {
		return err
	}
	customer, err := s.repo.GetCustomer(ctx, principal.CustomerID)
	if err != nil {
		return err
	}
	orders, err := s.repo.ListOrders(ctx, domain.OrderFilter{CustomerID: customer.ID})
	if err != nil {
		return err
	}
	for _, o := range orders {
		if !o.Status.Terminal() {
			return fmt.Errorf("%w: order %s is still %s", store.ErrConflict, o.Code, o.Status)
		}
	}

	s.logAudit(ctx, "account_deleted", "customer", customer.ID, fmt.Sprintf("customer account deleted: %s (%s)", customer.Name, customer.ID))
	if err := s.repo.DeleteCustomer(ctx, customer.ID); err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, principal.Username); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := s.carts.DeleteCart(ctx, cartKey(principal)); err != nil {
		log.Printf("[service] WARN: failed to drop cart for deleted account user=%s: %v", principal.Username, err)
	}
	return nil
}

func (s *Service) customerAccount(ctx context.Context, customer domain.Customer) (domain.CustomerAccount, error) {
	account := domain.CustomerAccount{Customer: customer}
	if customer.Username == "" {
		return account, nil
	}
	user, err := s.repo.GetUser(ctx, customer.Username)
	switch {
	case err == nil:
		account.HasAccount = true
		account.AccountActive = user.Active
	case !errors.Is(err, store.ErrNotFound):
		return domain.CustomerAccount{}, err
	}
	return account, nil
}
