package service

import (
	"context"
	"errors"
	"testing"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
	"cookiecraze/backend/internal/store/memory"
)

func TestAdminDeactivatesCustomerLogin(t *testing.T) {
	env := newTestEnv(t)
	adminCtx := env.as(t, "admin")

	all, err := env.svc.ListCustomers(adminCtx, "", "")
	if err != nil {
		t.Fatalf("list customers failed: %v", err)
	}
	if len(all) != 1 || all[0].ID != memory.SeedCustomerID || !all[0].HasAccount || !all[0].AccountActive {
		t.Fatalf("expected the seeded customer with an active login, got %+v", all)
	}
	if _, err := env.svc.ListCustomers(adminCtx, "", "banned"); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected unknown status filter to be rejected, got %v", err)
	}
	if _, err := env.svc.SetCustomerActive(env.as(t, "staff"), memory.SeedCustomerID, false); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("staff must not deactivate customers, got %v", err)
	}

	account, err := env.svc.SetCustomerActive(adminCtx, memory.SeedCustomerID, false)
	if err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if account.AccountActive {
		t.Fatalf("expected inactive account, got %+v", account)
	}
	if _, err := env.svc.ResolvePrincipal(context.Background(), "customer"); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("deactivated customer must not resolve, got %v", err)
	}
	inactive, _ := env.svc.ListCustomers(adminCtx, "", "inactive")
	active, _ := env.svc.ListCustomers(adminCtx, "", "active")
	if len(inactive) != 1 || len(active) != 0 {
		t.Fatalf("expected status filter to follow the login state, got %d inactive %d active", len(inactive), len(active))
	}

	if _, err := env.svc.SetCustomerActive(adminCtx, memory.SeedCustomerID, true); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if _, err := env.svc.ResolvePrincipal(context.Background(), "customer"); err != nil {
		t.Fatalf("reactivated customer should resolve, got %v", err)
	}
}

func TestStaffBuyerLookupNeedsQuery(t *testing.T) {
	env := newTestEnv(t)
	staffCtx := env.as(t, "staff")

	short, err := env.svc.ListCustomers(staffCtx, "m", "")
	if err != nil || len(short) != 0 {
		t.Fatalf("expected one-letter lookup to return nothing, got %d (%v)", len(short), err)
	}
	found, err := env.svc.ListCustomers(staffCtx, "SANTOS", "inactive")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(found) != 1 || found[0].Name != "Maria Santos" {
		t.Fatalf("expected staff lookup to ignore the status filter, got %+v", found)
	}
	if _, err := env.svc.ListCustomers(env.as(t, "customer"), "maria", ""); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("customers must not list customers, got %v", err)
	}
}

func TestCustomerOrdersTotalsCompletedSpend(t *testing.T) {
	env := newTestEnv(t)
	staffCtx := env.as(t, "staff")

	if _, err := env.svc.CreateWalkInOrder(staffCtx, domain.WalkInOrderRequest{
		Items:         ninetyPesoItems,
		CustomerName:  "Maria Santos",
		CustomerPhone: "09171234567",
		AmountPaid:    9000,
	}); err != nil {
		t.Fatalf("walk-in failed: %v", err)
	}
	if _, err := env.svc.CreateKioskOrder(env.as(t, "customer"), domain.KioskOrderRequest{Items: ninetyPesoItems}); err != nil {
		t.Fatalf("kiosk order failed: %v", err)
	}

	history, err := env.svc.CustomerOrders(env.as(t, "admin"), memory.SeedCustomerID)
	if err != nil {
		t.Fatalf("customer orders failed: %v", err)
	}
	if history.Count != 2 || len(history.Orders) != 2 || history.TotalSpentCents != 9000 {
		t.Fatalf("expected two orders with only the completed one counted, got count=%d spent=%d", history.Count, history.TotalSpentCents)
	}
	if history.Customer.ID != memory.SeedCustomerID || !history.Customer.HasAccount {
		t.Fatalf("unexpected customer %+v", history.Customer)
	}
	if _, err := env.svc.CustomerOrders(staffCtx, memory.SeedCustomerID); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("staff must not open the admin history, got %v", err)
	}
	if _, err := env.svc.CustomerOrders(env.as(t, "admin"), "CUST999999"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected unknown customer to be not found, got %v", err)
	}
}

func TestDeleteMyAccountKeepsOrdersAsWalkIns(t *testing.T) {
	env := newTestEnv(t)
	customerCtx := env.as(t, "customer")

	order, err := env.svc.CreateKioskOrder(customerCtx, domain.KioskOrderRequest{Items: ninetyPesoItems, PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("kiosk order failed: %v", err)
	}
	if err := env.svc.DeleteMyAccount(customerCtx); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected open order to block deletion, got %v", err)
	}
	if _, err := env.svc.CancelCustomerOrder(customerCtx, order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := env.svc.DeleteMyAccount(env.as(t, "staff")); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("staff must not use self-delete, got %v", err)
	}

	if err := env.svc.DeleteMyAccount(customerCtx); err != nil {
		t.Fatalf("delete account failed: %v", err)
	}
	if _, err := env.repo.GetCustomer(context.Background(), memory.SeedCustomerID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("customer profile should be gone, got %v", err)
	}
	if _, err := env.repo.GetUser(context.Background(), "customer"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("login should be gone, got %v", err)
	}
	kept, err := env.repo.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("order history should survive, got %v", err)
	}
	if kept.CustomerID != "" || kept.WalkInName != "Maria Santos" {
		t.Fatalf("expected order detached under the buyer's name, got customer=%q walk_in=%q", kept.CustomerID, kept.WalkInName)
	}
}

func TestSearchUnpaidGCashOrders(t *testing.T) {
	env := newTestEnv(t)
	staffCtx := env.as(t, "staff")

	waiting, err := env.svc.CreateKioskOrder(context.Background(), domain.KioskOrderRequest{Items: ninetyPesoItems})
	if err != nil {
		t.Fatalf("kiosk order failed: %v", err)
	}
	verified, err := env.svc.CreateKioskOrder(context.Background(), domain.KioskOrderRequest{Items: ninetyPesoItems})
	if err != nil {
		t.Fatalf("kiosk order failed: %v", err)
	}
	if _, err := env.svc.VerifyGCash(staffCtx, verified.ID, domain.GCashVerifyRequest{Reference: "REF-1", AmountCents: 9000}); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if _, err := env.svc.CreateWalkInOrder(staffCtx, domain.WalkInOrderRequest{Items: ninetyPesoItems, AmountPaid: 9000}); err != nil {
		t.Fatalf("walk-in failed: %v", err)
	}

	unpaid := false
	orders, err := env.svc.SearchOrders(env.as(t, "admin"), domain.OrderFilter{PaymentMethod: domain.PaymentGCash, Paid: &unpaid})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != waiting.ID {
		t.Fatalf("expected only the unverified gcash order, got %d", len(orders))
	}
}
