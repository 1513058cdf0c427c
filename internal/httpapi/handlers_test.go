package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tindahan/backend/internal/cache"
	"tindahan/backend/internal/domain"
	"tindahan/backend/internal/notify"
	"tindahan/backend/internal/service"
	"tindahan/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) (*API, http.Handler) {
	t.Helper()
	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopReportCache{}, notify.NoopNotifier{}, 5*time.Second)
	auth := NewAuthManager("test-secret-key", time.Hour, "728391", repo)
	api := New(svc, auth, "http://localhost:5173")
	return api, api.Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, csrf string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func loginAs(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{
		Username: username,
		Password: password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (%s)", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func TestHandleHealth(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{
		Username: "admin",
		Password: "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	_, handler := newTestAPI(t)

	var last int
	for i := 0; i < 6; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{
			Username: "admin",
			Password: "wrong",
		})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on sixth attempt, got %d", last)
	}
}

func TestProductsRequireAuth(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProductCreateRequiresCSRFToken(t *testing.T) {
	api, handler := newTestAPI(t)
	token := loginAs(t, handler, "admin", "admin123")

	body := domain.ProductCreateRequest{Name: "Toyo 200ml", Category: "condiments", PriceCents: 1200}

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, "", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without CSRF token, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", token, api.generateCSRFToken(), body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 with CSRF token, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestBarcodeLookup(t *testing.T) {
	_, handler := newTestAPI(t)
	token := loginAs(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products?barcode=4800000000011", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Sardinas") {
		t.Fatalf("expected sardinas in response, got %s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products?barcode=0000000000000", token, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown barcode, got %d", rec.Code)
	}
}

func TestCashierCannotCreateProducts(t *testing.T) {
	api, handler := newTestAPI(t)
	token := loginAs(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, api.generateCSRFToken(), domain.ProductCreateRequest{
		Name:       "Chicharon",
		Category:   "snacks",
		PriceCents: 2000,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCashierForbiddenFromAdminRoutes(t *testing.T) {
	_, handler := newTestAPI(t)
	token := loginAs(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports/daily", token, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/audit-logs", token, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestSaleLifecycleOverHTTP(t *testing.T) {
	api, handler := newTestAPI(t)
	token := loginAs(t, handler, "cashier", "cashier123")
	csrf := api.generateCSRFToken()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, csrf, domain.SaleCreateRequest{
		PaymentMethod:       domain.PaymentCash,
		AmountReceivedCents: 10000,
		Items: []domain.CartItem{
			{ProductID: "prod-sardinas-01", Qty: 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	var created domain.SaleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if created.Sale.ChangeCents != 5000 {
		t.Fatalf("expected change 5000, got %d", created.Sale.ChangeCents)
	}

	// Wrong PIN is rejected before the sale is touched.
	voidPath := fmt.Sprintf("/api/v1/sales/%s/void", created.Sale.ID)
	rec = doJSON(t, handler, http.MethodPost, voidPath, token, csrf, domain.VoidSaleRequest{
		Reason:     "test",
		ManagerPIN: "000000",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong pin, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, voidPath, token, csrf, domain.VoidSaleRequest{
		Reason:     "wrong item scanned",
		ManagerPIN: "728391",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("void: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	// Re-voiding the same sale is a conflict.
	rec = doJSON(t, handler, http.MethodPost, voidPath, token, csrf, domain.VoidSaleRequest{
		Reason:     "again",
		ManagerPIN: "728391",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("double void: expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestInsufficientStockReturnsConflict(t *testing.T) {
	api, handler := newTestAPI(t)
	token := loginAs(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, api.generateCSRFToken(), domain.SaleCreateRequest{
		PaymentMethod:       domain.PaymentCash,
		AmountReceivedCents: 100000000,
		Items: []domain.CartItem{
			{ProductID: "prod-sardinas-01", Qty: 100000},
		},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestDailyReportCSVExport(t *testing.T) {
	api, handler := newTestAPI(t)
	cashierToken := loginAs(t, handler, "cashier", "cashier123")
	adminToken := loginAs(t, handler, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", cashierToken, api.generateCSRFToken(), domain.SaleCreateRequest{
		PaymentMethod:       domain.PaymentCash,
		AmountReceivedCents: 10000,
		Items:               []domain.CartItem{{ProductID: "prod-sardinas-01", Qty: 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed sale: expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/daily?format=csv", adminToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if contentType := rec.Header().Get("Content-Type"); !strings.Contains(contentType, "text/csv") {
		t.Fatalf("expected csv content type, got %s", contentType)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "summary,net_sales_cents,2500") {
		t.Fatalf("expected net sales row in csv, got %s", body)
	}
	if !strings.Contains(body, "payment,cash_sales,1") {
		t.Fatalf("expected cash payment row in csv, got %s", body)
	}
}

func TestCustomerCreditTransactionsOverHTTP(t *testing.T) {
	api, handler := newTestAPI(t)
	token := loginAs(t, handler, "cashier", "cashier123")
	csrf := api.generateCSRFToken()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/credit-transactions", token, csrf, domain.CreditTransactionRequest{
		CustomerID:  "cust-aling-nena",
		Type:        domain.CreditEntryCredit,
		AmountCents: 5000,
		Description: "utang",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/cust-aling-nena", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "5000") {
		t.Fatalf("expected balance 5000 in response, got %s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/cust-aling-nena/credit-transactions", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "utang") {
		t.Fatalf("expected ledger entry in response, got %s", rec.Body.String())
	}
}

func TestUnknownJSONFieldsRejected(t *testing.T) {
	api, handler := newTestAPI(t)
	token := loginAs(t, handler, "admin", "admin123")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"x","category":"y","price_cents":100,"bogus":true}`))
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", api.generateCSRFToken())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestCashierManagementOverHTTP(t *testing.T) {
	api, handler := newTestAPI(t)
	adminToken := loginAs(t, handler, "admin", "admin123")
	csrf := api.generateCSRFToken()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/cashiers", adminToken, csrf, domain.CashierCreateRequest{
		Username: "nena-pm",
		Password: "malakas-na-password",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	// New cashier can log in right away.
	token := loginAs(t, handler, "nena-pm", "malakas-na-password")
	if token == "" {
		t.Fatalf("expected token for newly created cashier")
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/users/cashiers", adminToken, csrf, domain.CashierCreateRequest{
		Username: "nena-pm2",
		Password: "short",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for weak password, got %d (%s)", rec.Code, rec.Body.String())
	}
}
