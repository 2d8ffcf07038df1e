package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
	"cookiecraze/backend/internal/xid"
)

const (
	kioskPrefix  = "KIO"
	walkInPrefix = "STA"

	defaultKioskName  = "Kiosk Customer"
	defaultWalkInName = "Walk-in Customer"

	defaultSearchLimit = 100
	maxSearchLimit     = 500
)

func (s *Service) CreateKioskOrder(ctx context.Context, req domain.KioskOrderRequest) (domain.Order, error) {
	principal := PrincipalFromContext(ctx)

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = domain.PaymentGCash
	}
	if !domain.IsPaymentMethod(method) {
		return domain.Order{}, invalid("unsupported payment method %q", req.PaymentMethod)
	}

	order := domain.Order{
		Type:          domain.OrderTypeKiosk,
		PaymentMethod: method,
		Status:        domain.StatusPending,
		Notes:         strings.TrimSpace(req.Notes),
	}
	name := defaultString(strings.TrimSpace(req.CustomerName), defaultKioskName)
	if principal.IsCustomer() && principal.CustomerID != "" {
		order.CustomerID = principal.CustomerID
		order.CustomerName = name
		if customer, err := s.repo.GetCustomer(ctx, principal.CustomerID); err == nil && strings.TrimSpace(req.CustomerName) == "" {
			order.CustomerName = customer.Name
		}
	} else {
		order.WalkInName = name
		order.WalkInPhone = strings.TrimSpace(req.CustomerPhone)
		order.CustomerName = name
	}

	created, err := s.createOrder(ctx, order, req.Items, kioskPrefix, nil)
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, "order_create", "order", created.Code, fmt.Sprintf("kiosk order %s total=%s payment=%s", created.Code, s.money(created.TotalCents), created.PaymentMethod))
	return *created, nil
}

// PayKioskOrder records the customer's payment at the kiosk. Cash completes
// the order immediately. GCash leaves it pending until staff verify the
// reference.
func (s *Service) PayKioskOrder(ctx context.Context, id string, req domain.KioskPaymentRequest) (domain.Order, error) {
	existing, err := s.repo.GetOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Order{}, err
	}
	if existing.Type != domain.OrderTypeKiosk {
		return domain.Order{}, fmt.Errorf("%w: order %s", store.ErrNotFound, id)
	}

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = existing.PaymentMethod
	}
	if !domain.IsPaymentMethod(method) {
		return domain.Order{}, invalid("unsupported payment method %q", req.PaymentMethod)
	}
	reference := strings.TrimSpace(req.GCashReference)
	if method == domain.PaymentGCash && reference == "" {
		return domain.Order{}, invalid("gcash reference is required")
	}

	now := s.now()
	updated, err := s.repo.UpdateOrder(ctx, existing.ID, func(order *domain.Order) error {
		if order.Status != domain.StatusPending || order.Paid {
			return fmt.Errorf("%w: order %s is no longer awaiting payment", store.ErrInvalidTransition, order.Code)
		}
		if req.AmountPaid < order.TotalCents {
			return fmt.Errorf("%w: amount paid %s is below total %s", store.ErrInsufficientPayment, s.money(req.AmountPaid), s.money(order.TotalCents))
		}
		order.PaymentMethod = method
		if method == domain.PaymentCash {
			order.RecordCash(req.AmountPaid)
			order.MarkCompleted(now)
			return nil
		}
		amount := req.AmountPaid
		order.GCashReference = reference
		order.GCashNumber = strings.TrimSpace(req.GCashNumber)
		order.GCashAmountCents = &amount
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, "order_payment", "order", updated.Code, fmt.Sprintf("kiosk payment %s method=%s amount=%s", updated.Code, method, s.money(req.AmountPaid)))
	if updated.Status == domain.StatusCompleted {
		s.publish(ctx, domain.EventOrderStatusChanged, updated)
	}
	return *updated, nil
}

func (s *Service) GetKioskOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Order{}, err
	}
	if order.Type != domain.OrderTypeKiosk {
		return domain.Order{}, fmt.Errorf("%w: order %s", store.ErrNotFound, id)
	}
	return *order, nil
}

func (s *Service) CreateWalkInOrder(ctx context.Context, req domain.WalkInOrderRequest) (domain.Order, error) {
	principal, err := requireApprovedStaff(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = domain.PaymentCash
	}
	if !domain.IsPaymentMethod(method) {
		return domain.Order{}, invalid("unsupported payment method %q", req.PaymentMethod)
	}
	gcashNumber := strings.TrimSpace(req.GCashNumber)
	gcashReference := strings.TrimSpace(req.GCashReference)
	if method == domain.PaymentGCash && (gcashNumber == "" || gcashReference == "") {
		return domain.Order{}, invalid("gcash number and reference are required")
	}

	order := domain.Order{
		Type:          domain.OrderTypeStaff,
		PaymentMethod: method,
		Status:        domain.StatusPending,
		StaffID:       principal.StaffID,
		Notes:         strings.TrimSpace(req.Notes),
	}

	name := strings.TrimSpace(req.CustomerName)
	phone := strings.TrimSpace(req.CustomerPhone)
	if customer, err := s.repo.FindCustomer(ctx, name, phone); err == nil {
		order.CustomerID = customer.ID
		order.CustomerName = customer.Name
	} else {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.Order{}, err
		}
		order.WalkInName = defaultString(name, defaultWalkInName)
		order.WalkInPhone = phone
		order.CustomerName = order.WalkInName
	}

	now := s.now()
	finalize := func(o *domain.Order) error {
		switch method {
		case domain.PaymentCash:
			if req.AmountPaid < o.TotalCents {
				return fmt.Errorf("%w: amount paid %s is below total %s", store.ErrInsufficientPayment, s.money(req.AmountPaid), s.money(o.TotalCents))
			}
			o.RecordCash(req.AmountPaid)
			o.MarkCompleted(now)
		case domain.PaymentGCash:
			o.GCashNumber = gcashNumber
			o.GCashReference = gcashReference
			if req.AmountPaid > 0 {
				amount := req.AmountPaid
				o.GCashAmountCents = &amount
			}
		}
		return nil
	}

	created, err := s.createOrder(ctx, order, req.Items, walkInPrefix, finalize)
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, "order_create", "order", created.Code, fmt.Sprintf("walk-in order %s total=%s payment=%s", created.Code, s.money(created.TotalCents), created.PaymentMethod))
	return *created, nil
}

func (s *Service) createOrder(ctx context.Context, order domain.Order, items []domain.OrderLine, prefix string, finalize store.OrderMutation) (*domain.Order, error) {
	lines := store.NormalizeLines(items)
	if len(lines) == 0 {
		return nil, invalid("order must contain at least one item")
	}

	now := s.now()
	order.CreatedAt = now
	created, err := s.repo.CreateOrder(ctx, store.NewOrder{
		Order:    order,
		Lines:    lines,
		Prefix:   prefix,
		Day:      now.In(s.loc).Format("20060102"),
		Finalize: finalize,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.signal.BumpSignal(ctx); err != nil {
		log.Printf("[service] WARN: failed to bump order signal order=%s: %v", created.Code, err)
	}
	s.publish(ctx, domain.EventOrderCreated, created)
	return created, nil
}

func (s *Service) CompleteKioskOrder(ctx context.Context, id string) (domain.Order, error) {
	principal, err := requireApprovedStaff(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	existing, err := s.visibleOrder(ctx, principal, id)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	updated, err := s.repo.UpdateOrder(ctx, existing.ID, func(order *domain.Order) error {
		if order.Type != domain.OrderTypeKiosk {
			return invalid("order %s is not a kiosk order", order.Code)
		}
		if order.Status != domain.StatusPending {
			return fmt.Errorf("%w: order %s is %s", store.ErrInvalidTransition, order.Code, order.Status)
		}
		if order.StaffID == "" {
			order.StaffID = principal.StaffID
		}
		order.MarkCompleted(now)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, "order_complete", "order", updated.Code, fmt.Sprintf("kiosk order %s completed", updated.Code))
	s.publish(ctx, domain.EventOrderStatusChanged, updated)
	return *updated, nil
}

func (s *Service) VerifyGCash(ctx context.Context, id string, req domain.GCashVerifyRequest) (domain.Order, error) {
	principal, err := requireApprovedStaff(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	existing, err := s.visibleOrder(ctx, principal, id)
	if err != nil {
		return domain.Order{}, err
	}

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = existing.GCashReference
	}
	if reference == "" {
		return domain.Order{}, invalid("gcash reference is required")
	}

	now := s.now()
	updated, err := s.repo.UpdateOrder(ctx, existing.ID, func(order *domain.Order) error {
		if order.Status.Terminal() {
			return fmt.Errorf("%w: order %s is %s", store.ErrInvalidTransition, order.Code, order.Status)
		}
		if order.PaymentMethod != domain.PaymentGCash {
			return invalid("order %s is not a gcash order", order.Code)
		}
		amount := req.AmountCents
		if amount == 0 && order.GCashAmountCents != nil {
			amount = *order.GCashAmountCents
		}
		if amount < order.TotalCents {
			return fmt.Errorf("%w: gcash amount %s is below total %s", store.ErrInsufficientPayment, s.money(amount), s.money(order.TotalCents))
		}

		verifiedAt := now
		order.GCashReference = reference
		order.GCashAmountCents = &amount
		order.GCashVerifiedBy = principal.Username
		order.GCashVerifiedAt = &verifiedAt
		order.Paid = true
		if order.PaidAt == nil {
			order.PaidAt = &verifiedAt
		}
		if order.StaffID == "" {
			order.StaffID = principal.StaffID
		}
		if order.Status == domain.StatusPending {
			order.Status = domain.StatusPreparing
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, "gcash_verify", "order", updated.Code, fmt.Sprintf("gcash payment verified for %s ref=%s", updated.Code, reference))
	s.publish(ctx, domain.EventOrderStatusChanged, updated)
	return *updated, nil
}

func (s *Service) ConfirmCashPayment(ctx context.Context, id string, req domain.CashConfirmRequest) (domain.Order, error) {
	principal, err := requireApprovedStaff(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	existing, err := s.visibleOrder(ctx, principal, id)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	updated, err := s.repo.UpdateOrder(ctx, existing.ID, func(order *domain.Order) error {
		if order.Status.Terminal() {
			return fmt.Errorf("%w: order %s is %s", store.ErrInvalidTransition, order.Code, order.Status)
		}
		if order.PaymentMethod != domain.PaymentCash {
			return invalid("order %s is not a cash order", order.Code)
		}
		if req.AmountCents < order.TotalCents {
			return fmt.Errorf("%w: amount received %s is below total %s", store.ErrInsufficientPayment, s.money(req.AmountCents), s.money(order.TotalCents))
		}
		order.RecordCash(req.AmountCents)
		if order.StaffID == "" {
			order.StaffID = principal.StaffID
		}
		order.MarkCompleted(now)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, "order_payment", "order", updated.Code, fmt.Sprintf("cash payment confirmed for %s received=%s change=%s", updated.Code, s.money(req.AmountCents), s.money(updated.ChangeCents)))
	s.publish(ctx, domain.EventOrderStatusChanged, updated)
	return *updated, nil
}

func (s *Service) UpdateOrderStatus(ctx context.Context, id string, rawStatus string) (domain.Order, error) {
	principal, err := requireApprovedStaff(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	target, ok := domain.ParseOrderStatus(strings.ToLower(strings.TrimSpace(rawStatus)))
	if !ok {
		return domain.Order{}, invalid("unknown status %q", rawStatus)
	}
	existing, err := s.visibleOrder(ctx, principal, id)
	if err != nil {
		return domain.Order{}, err
	}

	privileged := principal.IsAdmin() || principal.Superuser
	checkTransition := func(order *domain.Order) error {
		if !domain.CanTransition(order.Status, target, privileged) {
			return fmt.Errorf("%w: cannot move order %s from %s to %s", store.ErrInvalidTransition, order.Code, order.Status, target)
		}
		return nil
	}

	now := s.now()
	var updated *domain.Order
	if target == domain.StatusCancelled {
		updated, err = s.repo.CancelOrder(ctx, existing.ID, checkTransition, now)
	} else {
		updated, err = s.repo.UpdateOrder(ctx, existing.ID, func(order *domain.Order) error {
			if err := checkTransition(order); err != nil {
				return err
			}
			if order.StaffID == "" {
				order.StaffID = principal.StaffID
			}
			if target == domain.StatusCompleted {
				order.MarkCompleted(now)
				return nil
			}
			order.Status = target
			return nil
		})
	}
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, "order_status", "order", updated.Code, fmt.Sprintf("order %s moved from %s to %s", updated.Code, existing.Status, updated.Status))
	if target == domain.StatusCancelled {
		s.publish(ctx, domain.EventOrderCancelled, updated)
	} else {
		s.publish(ctx, domain.EventOrderStatusChanged, updated)
	}
	return *updated, nil
}

// VoidOrder voids an order and restores its stock. approver is the admin
// whose credentials were supplied for an override, or nil.
func (s *Service) VoidOrder(ctx context.Context, id string, reason string, approver *domain.Principal) (domain.VoidOrderResponse, error) {
	principal, err := requireApprovedStaff(ctx)
	if err != nil {
		return domain.VoidOrderResponse{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.VoidOrderResponse{}, invalid("void reason is required")
	}

	existing, err := s.repo.GetOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.VoidOrderResponse{}, err
	}
	if existing.Status == domain.StatusVoided {
		return domain.VoidOrderResponse{}, store.ErrAlreadyVoided
	}

	entry := domain.VoidLog{
		ID:          xid.VoidCode(),
		Reason:      reason,
		StaffMember: principal.Username,
	}
	switch {
	case principal.IsAdmin() || principal.Superuser:
		entry.AdminUser = principal.Username
	case principal.StaffID != "" && existing.StaffID == principal.StaffID:
	case principal.HasPermission(domain.PermissionVoidAnyOrder):
	case approver != nil && approver.IsAdmin():
		entry.AdminUser = approver.Username
	default:
		return domain.VoidOrderResponse{}, fmt.Errorf("%w: admin credentials required to void this order", store.ErrForbidden)
	}

	now := s.now()
	voided, err := s.repo.VoidOrder(ctx, existing.ID, entry, now)
	if err != nil {
		return domain.VoidOrderResponse{}, err
	}
	entry.OrderID = voided.ID
	entry.OrderCode = voided.Code
	entry.OriginalTotalCents = voided.TotalCents
	entry.OriginalPaymentMethod = voided.PaymentMethod
	entry.CreatedAt = now

	description := fmt.Sprintf("voided %s total=%s reason=%s", voided.Code, s.money(voided.TotalCents), reason)
	if entry.AdminUser != "" && entry.AdminUser != principal.Username {
		description += " approved_by=" + entry.AdminUser
	}
	s.logAudit(ctx, "order_void", "order", voided.Code, description)
	s.publish(ctx, domain.EventOrderVoided, voided)
	return domain.VoidOrderResponse{Order: *voided, VoidLog: entry}, nil
}

func (s *Service) CancelCustomerOrder(ctx context.Context, id string) (domain.Order, error) {
	principal, err := requireCustomer(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	existing, err := s.repo.GetOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Order{}, err
	}
	if existing.CustomerID != principal.CustomerID {
		return domain.Order{}, fmt.Errorf("%w: order %s", store.ErrNotFound, id)
	}

	cancelled, err := s.repo.CancelOrder(ctx, existing.ID, func(order *domain.Order) error {
		if order.Status != domain.StatusPending || order.Paid {
			return fmt.Errorf("%w: only pending unpaid orders can be cancelled", store.ErrInvalidTransition)
		}
		return nil
	}, s.now())
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, "order_cancel", "order", cancelled.Code, fmt.Sprintf("customer cancelled %s", cancelled.Code))
	s.publish(ctx, domain.EventOrderCancelled, cancelled)
	return *cancelled, nil
}

// SearchOrders lists orders for staff screens. Non-admin staff only see
// their own orders plus unassigned kiosk orders, and cannot filter by staff
// or date range.
func (s *Service) SearchOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	principal, err := requireApprovedStaff(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Status != "" {
		if _, ok := domain.ParseOrderStatus(filter.Status); !ok {
			return nil, invalid("unknown status %q", filter.Status)
		}
	}
	if filter.PaymentMethod != "" && !domain.IsPaymentMethod(filter.PaymentMethod) {
		return nil, invalid("unsupported payment method %q", filter.PaymentMethod)
	}
	if !principal.IsAdmin() {
		filter.VisibleToStaffID = principal.StaffID
		filter.StaffID = ""
		filter.From = nil
		filter.To = nil
	}
	if filter.Limit < 1 {
		filter.Limit = defaultSearchLimit
	}
	if filter.Limit > maxSearchLimit {
		filter.Limit = maxSearchLimit
	}
	return s.repo.ListOrders(ctx, filter)
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	principal, err := requireApprovedStaff(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	order, err := s.visibleOrder(ctx, principal, id)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

// GetReceipt is available to staff who can see the order and to the
// customer who owns it.
func (s *Service) GetReceipt(ctx context.Context, id string) (domain.Receipt, error) {
	principal := PrincipalFromContext(ctx)

	var order *domain.Order
	var err error
	switch {
	case principal.IsCustomer() && principal.CustomerID != "":
		order, err = s.repo.GetOrder(ctx, strings.TrimSpace(id))
		if err == nil && order.CustomerID != principal.CustomerID {
			err = fmt.Errorf("%w: order %s", store.ErrNotFound, id)
		}
	default:
		if _, err = requireApprovedStaff(ctx); err == nil {
			order, err = s.visibleOrder(ctx, principal, id)
		}
	}
	if err != nil {
		return domain.Receipt{}, err
	}

	receipt := domain.Receipt{
		StoreName:     s.settings.StoreName,
		OrderCode:     order.Code,
		HexCode:       order.HexCode,
		Date:          order.CreatedAt.In(s.loc).Format("2006-01-02 15:04"),
		Customer:      order.CustomerName,
		Items:         order.Items,
		Total:         s.money(order.TotalCents),
		TotalCents:    order.TotalCents,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
	}
	if order.StaffID != "" {
		receipt.Staff = order.StaffID
		if staff, err := s.repo.GetStaff(ctx, order.StaffID); err == nil {
			receipt.Staff = staff.Name
		}
	}
	if order.CashReceivedCents != nil {
		receipt.CashReceived = s.money(*order.CashReceivedCents)
		receipt.Change = s.money(order.ChangeCents)
	}
	if order.PaymentMethod == domain.PaymentGCash {
		receipt.GCashReference = order.GCashReference
		receipt.GCashAccountName = s.settings.GCashAccountName
		receipt.GCashAccountPhone = s.settings.GCashNumber
	}
	return receipt, nil
}

// NewOrdersCheck reports orders created after since. When the caller's
// version matches the current signal the count query is skipped.
func (s *Service) NewOrdersCheck(ctx context.Context, since time.Time, version int64) (domain.NewOrdersResponse, error) {
	if _, err := requireApprovedStaff(ctx); err != nil {
		return domain.NewOrdersResponse{}, err
	}

	now := s.now()
	resp := domain.NewOrdersResponse{CheckedAt: now.Format(time.RFC3339)}
	current, err := s.signal.SignalVersion(ctx)
	if err != nil {
		log.Printf("[service] WARN: failed to read order signal: %v", err)
		current = -1
	}
	resp.Version = current
	if version > 0 && version == current {
		return resp, nil
	}

	if since.IsZero() {
		since = now.Add(-time.Minute)
	}
	count, latest, err := s.repo.CountOrdersSince(ctx, since)
	if err != nil {
		return domain.NewOrdersResponse{}, err
	}
	resp.Changed = count > 0
	resp.NewCount = count
	resp.LatestCode = latest
	return resp, nil
}

func (s *Service) MyOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	principal, err := requireCustomer(ctx)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}
	return s.repo.ListOrders(ctx, domain.OrderFilter{CustomerID: principal.CustomerID, Limit: limit})
}

// visibleOrder loads an order and hides it from non-admin staff who did not
// record it, unless it is an unassigned kiosk order.
func (s *Service) visibleOrder(ctx context.Context, principal domain.Principal, id string) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if principal.IsAdmin() {
		return order, nil
	}
	if order.StaffID == principal.StaffID && principal.StaffID != "" {
		return order, nil
	}
	if order.Type == domain.OrderTypeKiosk && order.StaffID == "" {
		return order, nil
	}
	return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, id)
}

func (s *Service) money(cents int64) string {
	return domain.FormatMoney(s.settings.CurrencySymbol, cents)
}
