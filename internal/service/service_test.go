package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"warungku/backend/internal/bus"
	"warungku/backend/internal/cache"
	"warungku/backend/internal/domain"
	"warungku/backend/internal/kv"
	"warungku/backend/internal/store"
	"warungku/backend/internal/store/kvstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo, err := kvstore.New(kv.NewMemory(), bus.New())
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return New(repo, cache.NoopSummaryCache{}, nil)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func staffCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "staff", Role: domain.RoleStaff})
}

func firstProduct(t *testing.T, svc *Service) domain.Product {
	t.Helper()
	products, err := svc.ListProducts(context.Background())
	if err != nil || len(products) == 0 {
		t.Fatalf("list products: %v", err)
	}
	return products[0]
}

func TestCreateOrderRecomputesTotals(t *testing.T) {
	svc := newTestService(t)
	product := firstProduct(t, svc)

	order, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Items: []domain.OrderLineRequest{
			{ProductID: product.ID, Qty: 2},
		},
		Discount:   1000,
		PaidAmount: 2 * product.Price, // overpaying just means zero debt
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	wantTotal := 2 * product.Price
	if order.TotalAmount != wantTotal {
		t.Fatalf("total: got %d want %d", order.TotalAmount, wantTotal)
	}
	if order.FinalAmount != wantTotal-1000 {
		t.Fatalf("final: got %d want %d", order.FinalAmount, wantTotal-1000)
	}
	if order.DebtAmount != 0 {
		t.Fatalf("debt: got %d want 0", order.DebtAmount)
	}
	if order.Items[0].LineTotal != wantTotal {
		t.Fatalf("line total: got %d want %d", order.Items[0].LineTotal, wantTotal)
	}
	if order.StaffName != "staff" {
		t.Fatalf("staff name not taken from actor: %q", order.StaffName)
	}
}

func TestCreateOrderMergesDuplicateLines(t *testing.T) {
	svc := newTestService(t)
	product := firstProduct(t, svc)

	order, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Items: []domain.OrderLineRequest{
			{ProductID: product.ID, Qty: 1},
			{ProductID: product.ID, Qty: 2},
		},
		PaidAmount: 10 * product.Price,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].Qty != 3 {
		t.Fatalf("duplicate lines not merged: %+v", order.Items)
	}
}

func TestCreateOrderRejectsUnknownProduct(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Items:      []domain.OrderLineRequest{{ProductID: "prd-missing", Qty: 1}},
		PaidAmount: 1000,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateOrderRejectsInsufficientStock(t *testing.T) {
	svc := newTestService(t)
	product := firstProduct(t, svc)

	_, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Items:      []domain.OrderLineRequest{{ProductID: product.ID, Qty: product.Stock + 1}},
		PaidAmount: 1 << 40,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// The rejected sale must not touch stock.
	after := firstProduct(t, svc)
	if after.Stock != product.Stock {
		t.Fatalf("rejected order changed stock: got %d want %d", after.Stock, product.Stock)
	}
}

func TestCreateOrderWalkInMustBeFullyPaid(t *testing.T) {
	svc := newTestService(t)
	product := firstProduct(t, svc)

	_, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Items:      []domain.OrderLineRequest{{ProductID: product.ID, Qty: 1}},
		PaidAmount: product.Price - 1,
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unpaid walk-in sale, got %v", err)
	}
}

func TestCreateOrderRejectsDiscountAboveTotal(t *testing.T) {
	svc := newTestService(t)
	product := firstProduct(t, svc)

	_, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Items:      []domain.OrderLineRequest{{ProductID: product.ID, Qty: 1}},
		Discount:   product.Price + 1,
		PaidAmount: product.Price,
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDeleteOrderRequiresAdmin(t *testing.T) {
	svc := newTestService(t)
	product := firstProduct(t, svc)

	order, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Items:      []domain.OrderLineRequest{{ProductID: product.ID, Qty: 1}},
		PaidAmount: product.Price,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := svc.DeleteOrder(staffCtx(), order.ID); err == nil {
		t.Fatalf("expected staff delete to be rejected")
	}
	if err := svc.DeleteOrder(adminCtx(), order.ID); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
}

func TestPayDebtRejectsOverpayment(t *testing.T) {
	svc := newTestService(t)
	ctx := staffCtx()

	customers, _ := svc.ListCustomers(ctx)
	customer := customers[0]
	product := firstProduct(t, svc)

	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		CustomerID: customer.ID,
		Items:      []domain.OrderLineRequest{{ProductID: product.ID, Qty: 1}},
		PaidAmount: 0,
	}); err != nil {
		t.Fatalf("create credit order: %v", err)
	}

	_, err := svc.PayDebt(ctx, domain.PayDebtRequest{
		CustomerID: customer.ID,
		Amount:     product.Price + 1,
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for overpayment, got %v", err)
	}

	resp, err := svc.PayDebt(ctx, domain.PayDebtRequest{
		CustomerID: customer.ID,
		Amount:     product.Price,
	})
	if err != nil {
		t.Fatalf("exact payment failed: %v", err)
	}
	if resp.Customer.Debt != 0 {
		t.Fatalf("balance after exact payment: got %d want 0", resp.Customer.Debt)
	}
}

func TestCreateInventoryTransactionGeneratesCode(t *testing.T) {
	svc := newTestService(t)
	product := firstProduct(t, svc)

	tx, err := svc.CreateInventoryTransaction(staffCtx(), domain.InventoryTransactionRequest{
		Type: domain.StockImport,
		Items: []domain.StockLineRequest{
			{ProductID: product.ID, Qty: 10, UnitCost: 5000},
		},
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if !strings.HasPrefix(tx.Code, "IMP-") {
		t.Fatalf("import code prefix: %q", tx.Code)
	}
	if tx.TotalAmount != 50000 {
		t.Fatalf("total amount: got %d want 50000", tx.TotalAmount)
	}
	if tx.Items[0].ProductName != product.Name {
		t.Fatalf("product name not resolved: %+v", tx.Items[0])
	}
}

func TestCreateInventoryTransactionRejectsBadExpiry(t *testing.T) {
	svc := newTestService(t)
	product := firstProduct(t, svc)

	_, err := svc.CreateInventoryTransaction(staffCtx(), domain.InventoryTransactionRequest{
		Type: domain.StockImport,
		Items: []domain.StockLineRequest{
			{ProductID: product.ID, Qty: 1, ExpiryDate: "03/2027"},
		},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSaveUserHashesPassword(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.SaveUser(adminCtx(), domain.UserAccount{
		Username: "kasir2",
		Password: "rahasia",
		Role:     domain.RoleStaff,
	})
	if err != nil {
		t.Fatalf("save user: %v", err)
	}
	if user.Password != "" {
		t.Fatalf("response leaked password")
	}

	users, err := svc.repo.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	for _, u := range users {
		if u.Username != "kasir2" {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("rahasia")); err != nil {
			t.Fatalf("stored password is not a bcrypt hash of the input: %v", err)
		}
		return
	}
	t.Fatalf("user not stored")
}

func TestSaveUserRequiresAdmin(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SaveUser(staffCtx(), domain.UserAccount{Username: "x", Password: "y"})
	if err == nil {
		t.Fatalf("expected staff user save to be rejected")
	}
}

func TestDeleteUserProtectsLastAdmin(t *testing.T) {
	svc := newTestService(t)
	ctx := adminCtx()

	users, _ := svc.ListUsers(ctx)
	var admin domain.UserAccount
	for _, u := range users {
		if u.Role == domain.RoleAdmin {
			admin = u
			break
		}
	}
	if admin.ID == "" {
		t.Fatalf("no seeded admin")
	}

	err := svc.DeleteUser(ctx, admin.ID)
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected last-admin delete to be rejected, got %v", err)
	}

	if _, err := svc.SaveUser(ctx, domain.UserAccount{Username: "owner2", Password: "secret", Role: domain.RoleAdmin}); err != nil {
		t.Fatalf("add second admin: %v", err)
	}
	if err := svc.DeleteUser(ctx, admin.ID); err != nil {
		t.Fatalf("delete with a second admin present: %v", err)
	}
}

func TestSalesSummaryAggregatesOneDay(t *testing.T) {
	svc := newTestService(t)
	ctx := staffCtx()
	product := firstProduct(t, svc)

	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		Items:      []domain.OrderLineRequest{{ProductID: product.ID, Qty: 2}},
		PaidAmount: 2 * product.Price,
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	summary, err := svc.SalesSummary(ctx, today)
	if err != nil {
		t.Fatalf("sales summary: %v", err)
	}
	if summary.Orders != 1 || summary.ItemsSold != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Revenue != 2*product.Price {
		t.Fatalf("revenue: got %d want %d", summary.Revenue, 2*product.Price)
	}
	wantProfit := 2 * (product.Price - product.Cost)
	if summary.GrossProfit != wantProfit {
		t.Fatalf("gross profit: got %d want %d", summary.GrossProfit, wantProfit)
	}

	empty, err := svc.SalesSummary(ctx, "2000-01-01")
	if err != nil {
		t.Fatalf("summary for empty day: %v", err)
	}
	if empty.Orders != 0 || empty.Revenue != 0 {
		t.Fatalf("expected empty summary, got %+v", empty)
	}
}

func TestDebtSummaryListsDebtorsLargestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := staffCtx()
	product := firstProduct(t, svc)

	customers, _ := svc.ListCustomers(ctx)
	if len(customers) < 2 {
		t.Fatalf("need two seeded customers")
	}

	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		CustomerID: customers[0].ID,
		Items:      []domain.OrderLineRequest{{ProductID: product.ID, Qty: 1}},
	}); err != nil {
		t.Fatalf("first credit order: %v", err)
	}
	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		CustomerID: customers[1].ID,
		Items:      []domain.OrderLineRequest{{ProductID: product.ID, Qty: 3}},
	}); err != nil {
		t.Fatalf("second credit order: %v", err)
	}

	summary, err := svc.DebtSummary(ctx)
	if err != nil {
		t.Fatalf("debt summary: %v", err)
	}
	if len(summary.Debtors) != 2 {
		t.Fatalf("debtors: got %d want 2", len(summary.Debtors))
	}
	if summary.Debtors[0].Debt < summary.Debtors[1].Debt {
		t.Fatalf("debtors not sorted largest first: %+v", summary.Debtors)
	}
	if summary.TotalDebt != 4*product.Price {
		t.Fatalf("total debt: got %d want %d", summary.TotalDebt, 4*product.Price)
	}
}

func TestExpiringProductsUsesSettingsWindow(t *testing.T) {
	svc := newTestService(t)
	ctx := adminCtx()
	product := firstProduct(t, svc)

	soon := time.Now().UTC().Add(10 * 24 * time.Hour).Format("2006-01-02")
	if _, err := svc.CreateInventoryTransaction(ctx, domain.InventoryTransactionRequest{
		Type: domain.StockImport,
		Items: []domain.StockLineRequest{
			{ProductID: product.ID, Qty: 1, ExpiryDate: soon},
		},
	}); err != nil {
		t.Fatalf("import with expiry: %v", err)
	}

	alerts, err := svc.ExpiringProducts(ctx)
	if err != nil {
		t.Fatalf("expiring products: %v", err)
	}
	found := false
	for _, alert := range alerts {
		if alert.ProductID == product.ID {
			found = true
			if alert.DaysLeft > 30 || alert.DaysLeft < 0 {
				t.Fatalf("days left out of window: %d", alert.DaysLeft)
			}
		}
	}
	if !found {
		t.Fatalf("product expiring in 10 days not flagged: %+v", alerts)
	}
}

func TestImportSnapshotRequiresAdmin(t *testing.T) {
	svc := newTestService(t)

	snapshot, err := svc.ExportSnapshot(staffCtx())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := svc.ImportSnapshot(staffCtx(), snapshot); err == nil {
		t.Fatalf("expected staff import to be rejected")
	}

	result, err := svc.ImportSnapshot(adminCtx(), snapshot)
	if err != nil {
		t.Fatalf("admin import: %v", err)
	}
	if !result.Ok || result.Products != len(snapshot.Products) {
		t.Fatalf("unexpected import result: %+v", result)
	}
}
