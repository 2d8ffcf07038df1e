package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
)

func walkInOrder(lines ...domain.OrderLine) store.NewOrder {
	return store.NewOrder{
		Order: domain.Order{
			WalkInName:    "Walk-in Customer",
			CustomerName:  "Walk-in Customer",
			Type:          domain.OrderTypeStaff,
			PaymentMethod: domain.PaymentCash,
			StaffID:       SeedStaffID,
		},
		Lines:  lines,
		Prefix: "STA",
		Day:    "20260314",
	}
}

func TestCreateOrderSnapshotsPricesAndDecrementsStock(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()

	order, err := repo.CreateOrder(ctx, walkInOrder(
		domain.OrderLine{CookieID: "cookie-choco-chip", Quantity: 1},
		domain.OrderLine{CookieID: "cookie-ube-crinkle", Quantity: 1},
		domain.OrderLine{CookieID: "cookie-choco-chip", Quantity: 1},
	))
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.TotalCents != 9000 {
		t.Fatalf("expected total 9000, got %d", order.TotalCents)
	}
	if len(order.Items) != 2 || order.Items[0].Quantity != 2 {
		t.Fatalf("expected merged lines, got %+v", order.Items)
	}
	if order.Code != "STA-20260314-001" || len(order.HexCode) != 8 {
		t.Fatalf("unexpected identifiers %s %s", order.Code, order.HexCode)
	}

	cookie, _ := repo.GetCookie(ctx, "cookie-choco-chip")
	if cookie.Stock != 118 {
		t.Fatalf("expected stock 118, got %d", cookie.Stock)
	}

	// Price changes after the fact must not rewrite history.
	cookie.PriceCents = 9900
	if _, err := repo.UpdateCookie(ctx, *cookie); err != nil {
		t.Fatalf("update cookie failed: %v", err)
	}
	reloaded, _ := repo.GetOrder(ctx, order.ID)
	if reloaded.Items[0].UnitPriceCents != 2500 {
		t.Fatalf("expected snapshotted price 2500, got %d", reloaded.Items[0].UnitPriceCents)
	}
}

func TestCreateOrderRejectsInsufficientStock(t *testing.T) {
	repo := NewSeeded()
	_, err := repo.CreateOrder(context.Background(), walkInOrder(domain.OrderLine{CookieID: "cookie-ube-crinkle", Quantity: 51}))
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	cookie, _ := repo.GetCookie(context.Background(), "cookie-ube-crinkle")
	if cookie.Stock != 50 {
		t.Fatalf("stock must be untouched on failure, got %d", cookie.Stock)
	}
}

func TestOrderSequencesAreUniqueUnderConcurrency(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()

	var wg sync.WaitGroup
	codes := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := repo.CreateOrder(ctx, walkInOrder(domain.OrderLine{CookieID: "cookie-choco-chip", Quantity: 1}))
			if err != nil {
				t.Errorf("create order failed: %v", err)
				return
			}
			codes <- order.Code
		}()
	}
	wg.Wait()
	close(codes)

	seen := map[string]bool{}
	for code := range codes {
		if seen[code] {
			t.Fatalf("duplicate order code %s", code)
		}
		seen[code] = true
	}
	if len(seen) != 20 {
		t.Fatalf("expected 20 codes, got %d", len(seen))
	}
}

func TestVoidRestoresStockOnce(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()

	order, err := repo.CreateOrder(ctx, walkInOrder(domain.OrderLine{CookieID: "cookie-ube-crinkle", Quantity: 3}))
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	at := time.Now().UTC()
	if _, err := repo.VoidOrder(ctx, order.ID, domain.VoidLog{Reason: "wrong item"}, at); err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if _, err := repo.VoidOrder(ctx, order.ID, domain.VoidLog{Reason: "again"}, at); !errors.Is(err, store.ErrAlreadyVoided) {
		t.Fatalf("expected already voided, got %v", err)
	}

	cookie, _ := repo.GetCookie(ctx, "cookie-ube-crinkle")
	if cookie.Stock != 50 {
		t.Fatalf("expected stock restored to 50, got %d", cookie.Stock)
	}
	logs, _ := repo.ListVoidLogs(ctx, at.Add(-time.Minute), at.Add(time.Minute))
	if len(logs) != 1 || logs[0].OriginalTotalCents != 12000 || logs[0].OrderCode != order.Code {
		t.Fatalf("expected one void log for the order, got %+v", logs)
	}
}

func TestLoyaltyAwardedOnceOnCompletion(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()

	req := walkInOrder(domain.OrderLine{CookieID: "cookie-choco-chip", Quantity: 2})
	req.Order.WalkInName = ""
	req.Order.CustomerID = SeedCustomerID
	order, err := repo.CreateOrder(ctx, req)
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	complete := func(o *domain.Order) error {
		o.MarkCompleted(time.Now().UTC())
		return nil
	}
	if _, err := repo.UpdateOrder(ctx, order.ID, complete); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if _, err := repo.UpdateOrder(ctx, order.ID, func(o *domain.Order) error { return nil }); err != nil {
		t.Fatalf("second update failed: %v", err)
	}

	customer, _ := repo.GetCustomer(ctx, SeedCustomerID)
	if customer.LoyaltyPoints != 50 {
		t.Fatalf("expected 50 points, got %d", customer.LoyaltyPoints)
	}
}

func TestCreateOrderRequiresExactlyOneBuyer(t *testing.T) {
	repo := NewSeeded()
	req := walkInOrder(domain.OrderLine{CookieID: "cookie-choco-chip", Quantity: 1})
	req.Order.CustomerID = SeedCustomerID
	if _, err := repo.CreateOrder(context.Background(), req); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for two buyers, got %v", err)
	}
}

func TestFindCustomerPrecedence(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()
	other, err := repo.CreateCustomer(ctx, domain.Customer{Name: "Maria Santos", Phone: "09990000000"})
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}

	got, err := repo.FindCustomer(ctx, "maria santos", "09990000000")
	if err != nil || got.ID != other.ID {
		t.Fatalf("expected name+phone match %s, got %+v (%v)", other.ID, got, err)
	}
	got, err = repo.FindCustomer(ctx, "", "09171234567")
	if err != nil || got.ID != SeedCustomerID {
		t.Fatalf("expected phone match, got %+v (%v)", got, err)
	}
	if _, err := repo.FindCustomer(ctx, "Nobody", ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpsertClosingFloatKeepsOnePerDay(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	first, err := repo.UpsertClosingFloat(ctx, domain.CashFloat{Day: day, AmountCents: 100000})
	if err != nil {
		t.Fatalf("first closing failed: %v", err)
	}
	second, err := repo.UpsertClosingFloat(ctx, domain.CashFloat{Day: day, AmountCents: 120000})
	if err != nil {
		t.Fatalf("second closing failed: %v", err)
	}
	if first.ID != second.ID || second.AmountCents != 120000 {
		t.Fatalf("expected closing to be replaced in place")
	}
	entries, _ := repo.ListCashFloats(ctx, day)
	if len(entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(entries))
	}
}

func TestDeleteCategoryBlockedWhileReferenced(t *testing.T) {
	repo := NewSeeded()
	if err := repo.DeleteCategory(context.Background(), "cat-classic"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestListCustomersMatchesAcrossFields(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()
	if _, err := repo.CreateCustomer(ctx, domain.Customer{ID: "CUST000002", Name: "Jose Rizal", Phone: "09179990000", Email: "jose@example.com"}); err != nil {
		t.Fatalf("create customer failed: %v", err)
	}

	for query, want := range map[string]string{
		"santos":      SeedCustomerID,
		"0917999":     "CUST000002",
		"JOSE@":       "CUST000002",
		"cust000001":  SeedCustomerID,
		"customer":    SeedCustomerID,
		"nobody-here": "",
	} {
		got, err := repo.ListCustomers(ctx, query, 0)
		if err != nil {
			t.Fatalf("list customers %q failed: %v", query, err)
		}
		if want == "" {
			if len(got) != 0 {
				t.Fatalf("expected no match for %q, got %+v", query, got)
			}
			continue
		}
		if len(got) != 1 || got[0].ID != want {
			t.Fatalf("expected %s for %q, got %+v", want, query, got)
		}
	}

	all, _ := repo.ListCustomers(ctx, "", 1)
	if len(all) != 1 {
		t.Fatalf("expected limit to cap results, got %d", len(all))
	}
}

func TestDeleteCustomerKeepsOrdersAsWalkIns(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()

	req := walkInOrder(domain.OrderLine{CookieID: "cookie-choco-chip", Quantity: 1})
	req.Order.WalkInName = ""
	req.Order.CustomerID = SeedCustomerID
	req.Order.CustomerName = "Maria Santos"
	order, err := repo.CreateOrder(ctx, req)
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	if err := repo.DeleteCustomer(ctx, SeedCustomerID); err != nil {
		t.Fatalf("delete customer failed: %v", err)
	}
	if _, err := repo.GetCustomer(ctx, SeedCustomerID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected customer gone, got %v", err)
	}
	kept, err := repo.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("order should survive customer deletion: %v", err)
	}
	if kept.CustomerID != "" || kept.WalkInName != "Maria Santos" {
		t.Fatalf("expected order detached under walk-in name, got customer=%q walk-in=%q", kept.CustomerID, kept.WalkInName)
	}
	if err := store.CheckBuyer(*kept); err != nil {
		t.Fatalf("detached order must still identify one buyer: %v", err)
	}
	if err := repo.DeleteCustomer(ctx, SeedCustomerID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSetUserActiveTogglesLogin(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()

	if err := repo.SetUserActive(ctx, "Customer", false); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	user, _ := repo.GetUser(ctx, "customer")
	if user.Active {
		t.Fatalf("expected customer account inactive")
	}
	if err := repo.SetUserActive(ctx, "ghost", true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}
