package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"warungku/backend/internal/bus"
	"warungku/backend/internal/cache"
	"warungku/backend/internal/domain"
	"warungku/backend/internal/kv"
	"warungku/backend/internal/service"
	"warungku/backend/internal/store/kvstore"
)

// newTestAPI builds a full API on an in-memory store with a real AuthManager
// and Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo, err := kvstore.New(kv.NewMemory(), bus.New())
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	svc := service.New(repo, cache.NoopSummaryCache{}, nil)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*", nil)
}

func loginToken(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d (%s)", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestProductsRequireAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestStaffCannotCreateProduct(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, domain.Product{
		Code: "NEW-01", Name: "Telur 1kg", Price: 28000,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestAdminProductLifecycle(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, domain.Product{
		Code: "NEW-01", Name: "Telur 1kg", Unit: "kg", Price: 28000, Cost: 25000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Product.ID == "" {
		t.Fatalf("created product has no id")
	}

	created.Product.Price = 29000
	rec = doJSON(t, handler, http.MethodPut, "/api/v1/products/"+created.Product.ID, token, created.Product)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/products/"+created.Product.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/products/"+created.Product.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("double delete: expected 404, got %d", rec.Code)
	}
}

func TestOrderAndPayDebtFlow(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", token, nil)
	var productList struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&productList); err != nil || len(productList.Products) == 0 {
		t.Fatalf("list products: %v", err)
	}
	product := productList.Products[0]

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers", token, nil)
	var customerList struct {
		Customers []domain.Customer `json:"customers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&customerList); err != nil || len(customerList.Customers) == 0 {
		t.Fatalf("list customers: %v", err)
	}
	customer := customerList.Customers[0]

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders", token, domain.OrderCreateRequest{
		CustomerID: customer.ID,
		Items:      []domain.OrderLineRequest{{ProductID: product.ID, Qty: 2}},
		PaidAmount: 0,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var orderResp struct {
		Order domain.Order `json:"order"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&orderResp); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if orderResp.Order.DebtAmount != 2*product.Price {
		t.Fatalf("debt amount: got %d want %d", orderResp.Order.DebtAmount, 2*product.Price)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/debts/pay", token, domain.PayDebtRequest{
		CustomerID: customer.ID,
		Amount:     2 * product.Price,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("pay debt: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var payResp domain.PayDebtResponse
	if err := json.NewDecoder(rec.Body).Decode(&payResp); err != nil {
		t.Fatalf("decode pay response: %v", err)
	}
	if payResp.Customer.Debt != 0 {
		t.Fatalf("debt after payment: got %d want 0", payResp.Customer.Debt)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/debt-transactions?customer_id="+customer.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list debt transactions: expected 200, got %d", rec.Code)
	}
	var rows struct {
		Transactions []domain.DebtTransaction `json:"transactions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows.Transactions) != 2 {
		t.Fatalf("expected order_debt + payment rows, got %d", len(rows.Transactions))
	}
}

func TestStaffCannotDeleteOrder(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	staffToken := loginToken(t, handler, "staff", "123")
	adminToken := loginToken(t, handler, "admin", "123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", staffToken, nil)
	var productList struct {
		Products []domain.Product `json:"products"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&productList)
	product := productList.Products[0]

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders", staffToken, domain.OrderCreateRequest{
		Items:      []domain.OrderLineRequest{{ProductID: product.ID, Qty: 1}},
		PaidAmount: product.Price,
	})
	var orderResp struct {
		Order domain.Order `json:"order"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&orderResp)

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/orders/"+orderResp.Order.ID, staffToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("staff delete: expected 403, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/orders/"+orderResp.Order.ID, adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin delete: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestOrderReceiptRendersHTML(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", token, nil)
	var productList struct {
		Products []domain.Product `json:"products"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&productList)
	product := productList.Products[0]

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders", token, domain.OrderCreateRequest{
		Items:      []domain.OrderLineRequest{{ProductID: product.ID, Qty: 1}},
		PaidAmount: product.Price,
	})
	var orderResp struct {
		Order domain.Order `json:"order"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&orderResp)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/orders/"+orderResp.Order.ID+"/receipt", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("receipt: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Fatalf("receipt content type: %q", ct)
	}
	if !strings.Contains(rec.Body.String(), product.Name) {
		t.Fatalf("receipt missing product name")
	}
}

func TestInsufficientStockMapsToConflict(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", token, nil)
	var productList struct {
		Products []domain.Product `json:"products"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&productList)
	product := productList.Products[0]

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders", token, domain.OrderCreateRequest{
		Items:      []domain.OrderLineRequest{{ProductID: product.ID, Qty: product.Stock + 1}},
		PaidAmount: 1 << 40,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestBackupExportImportRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/backup/export", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "warungku-backup-") {
		t.Fatalf("export filename header: %q", cd)
	}

	var snapshot domain.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot.Products) == 0 {
		t.Fatalf("exported snapshot has no products")
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/backup/import", token, snapshot)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var result domain.ImportResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Ok || result.Products != len(snapshot.Products) {
		t.Fatalf("unexpected import result: %+v", result)
	}
}

func TestBackupImportMalformedBody(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "123")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/backup/import", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var result domain.ImportResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Ok || result.Message == "" {
		t.Fatalf("malformed import should answer with a message: %+v", result)
	}
}

func TestStaffCannotManageUsers(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/users", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
