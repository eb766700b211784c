package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inventorypos/backend/internal/domain"
)

func createProductHTTP(t *testing.T, handler http.Handler, token string, req domain.ProductCreateRequest) domain.Product {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode product response: %v", err)
	}
	if body.Product.ID == "" {
		t.Fatalf("expected product id in response")
	}
	return body.Product
}

func TestProductEndpointsRequireAuth(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	for _, path := range []string{
		"/api/v1/products",
		"/api/v1/sales",
		"/api/v1/dashboard/summary",
		"/api/v1/reports/sales",
	} {
		rec := doJSON(t, handler, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token, got %d", path, rec.Code)
		}
	}
}

func TestProductLifecycleOverHTTP(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := loginForToken(t, handler)

	created := createProductHTTP(t, handler, token, domain.ProductCreateRequest{
		Name:            "House Blend 250g",
		SKU:             "HB-250",
		Barcode:         "8991002100001",
		UnitPriceCents:  12500,
		QuantityInStock: 8,
		Category:        "beans",
	})

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products/"+created.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/by-barcode/8991002100001", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("barcode lookup: expected 200, got %d", rec.Code)
	}
	var lookup struct {
		Product domain.Product `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &lookup); err != nil {
		t.Fatalf("decode barcode response: %v", err)
	}
	if lookup.Product.ID != created.ID {
		t.Fatalf("barcode lookup returned wrong product")
	}

	newName := "House Blend 250g (v2)"
	newPrice := int64(13900)
	rec = doJSON(t, handler, http.MethodPut, "/api/v1/products/"+created.ID, token, domain.ProductUpdateRequest{
		Name:           &newName,
		UnitPriceCents: &newPrice,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update product: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Product domain.Product `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode update response: %v", err)
	}
	if updated.Product.Name != newName || updated.Product.UnitPriceCents != 13900 {
		t.Fatalf("update not applied: %+v", updated.Product)
	}
	if updated.Product.QuantityInStock != 8 {
		t.Fatalf("partial update must not touch stock, got %d", updated.Product.QuantityInStock)
	}

	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/products/"+created.ID, token, domain.SetQuantityRequest{QuantityInStock: 30})
	if rec.Code != http.StatusOK {
		t.Fatalf("set quantity: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/products/"+created.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete product: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/"+created.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestDuplicateBarcodeConflicts(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := loginForToken(t, handler)

	createProductHTTP(t, handler, token, domain.ProductCreateRequest{
		Name:           "First",
		Barcode:        "8991002100777",
		UnitPriceCents: 100,
	})

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		Name:           "Second",
		Barcode:        "8991002100777",
		UnitPriceCents: 200,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate barcode, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateProductRejectsUnknownFields(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := loginForToken(t, handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products",
		strings.NewReader(`{"name":"X","unit_price_cents":100,"bogus_field":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestBodyCapAppliesWithoutContentType(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := loginForToken(t, handler)

	// Valid JSON over 1 MiB, sent without a Content-Type header. The body cap
	// must still apply.
	payload := `{"name":"` + strings.Repeat("a", 2<<20) + `","unit_price_cents":100}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", rec.Code)
	}
}

func TestSaleEndpointStatuses(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := loginForToken(t, handler)

	product := createProductHTTP(t, handler, token, domain.ProductCreateRequest{
		Name:            "Latte",
		UnitPriceCents:  28000,
		QuantityInStock: 4,
	})

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Quantity: 2, UnitPriceCents: 28000},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode sale response: %v", err)
	}
	if created.Sale.TotalCents != 56000 {
		t.Fatalf("expected total 56000, got %d", created.Sale.TotalCents)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/"+created.Sale.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get sale: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Quantity: 99, UnitPriceCents: 28000},
		},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for insufficient stock, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: "prod-missing", Quantity: 1, UnitPriceCents: 100},
		},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty sale, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDashboardAndReportEndpoints(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := loginForToken(t, handler)

	product := createProductHTTP(t, handler, token, domain.ProductCreateRequest{
		Name:            "Muffin",
		UnitPriceCents:  1500,
		QuantityInStock: 50,
	})
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Quantity: 2, UnitPriceCents: 1500},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/dashboard/summary", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rec.Code)
	}
	var summary domain.DashboardSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.SalesToday != 1 || summary.RevenueTodayCents != 3000 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/dashboard/sales-over-time", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sales over time: expected 200, got %d", rec.Code)
	}
	var points struct {
		Sales []domain.SalePoint `json:"sales"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode points: %v", err)
	}
	if len(points.Sales) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points.Sales))
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/sales", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sales report: expected 200, got %d", rec.Code)
	}
	var report domain.SalesReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TotalTransactions != 1 || report.TotalRevenueCents != 3000 {
		t.Fatalf("unexpected report %+v", report)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/sales?from=not-a-date", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad time bound, got %d", rec.Code)
	}
}

func TestHealthzIsPublic(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}
