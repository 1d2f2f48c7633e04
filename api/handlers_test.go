/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Customer registration, lookup and update
- The sale lifecycle over HTTP (open, add, discount, close)
- Stock endpoints (product, movements, release)
- Error mapping to status codes and details
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/pos-engine/catalog"
	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/pos/store"
	"github.com/warp/pos-engine/sales"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router http.Handler
	store  *store.Memory
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	s := store.NewMemory()
	_, err := catalog.Load(context.Background(), s, catalog.Default())
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	ledger := pos.NewStockLedger(s)
	h := NewHandler(
		sales.NewCustomers(s, log),
		sales.NewManager(s, ledger, pos.DefaultDiscountConfig(), log),
		ledger,
		s,
		log,
	)
	return &testServer{router: NewRouter(h, 5*time.Second), store: s}
}

// do sends body (JSON-encoded unless it is a string) and returns the recorder.
func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func (ts *testServer) register(t *testing.T, taxID int64, policy string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/customers", RegisterCustomerRequest{
		TaxID: taxID, Name: "Customer", Phone: 217500255, DiscountPolicy: policy,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (ts *testServer) openSale(t *testing.T, taxID int64) int64 {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/sales", OpenSaleRequest{TaxID: taxID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[SaleDTO](t, rec).ID
}

func (ts *testServer) addItem(t *testing.T, saleID, code int64, qty string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, fmt.Sprintf("/api/sales/%d/items", saleID),
		AddLineItemRequest{ProductCode: code, Qty: decimal.RequireFromString(qty)})
}

// =============================================================================
// CUSTOMER TESTS
// =============================================================================

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterCustomer_Created(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/customers", RegisterCustomerRequest{
		TaxID: 168027852, Name: "Customer 1", Phone: 217500255, DiscountPolicy: "amount_threshold",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decode[CustomerDTO](t, rec)
	assert.Equal(t, int64(168027852), got.TaxID)
	assert.Equal(t, "amount_threshold", got.DiscountPolicy)

	rec = ts.do(t, http.MethodGet, "/api/customers/168027852", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, got, decode[CustomerDTO](t, rec))
}

func TestRegisterCustomer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		field  string
	}{
		{
			name:   "bad checksum",
			body:   RegisterCustomerRequest{TaxID: 123456788, Name: "A", Phone: 1, DiscountPolicy: "none"},
			status: http.StatusBadRequest,
			field:  "tax_id",
		},
		{
			name:   "missing name",
			body:   RegisterCustomerRequest{TaxID: 123456789, Phone: 1, DiscountPolicy: "none"},
			status: http.StatusBadRequest,
			field:  "name",
		},
		{
			name:   "unknown policy",
			body:   RegisterCustomerRequest{TaxID: 123456789, Name: "A", Phone: 1, DiscountPolicy: "loyalty"},
			status: http.StatusBadRequest,
			field:  "discount_policy",
		},
		{
			name:   "malformed body",
			body:   `{"tax_id": "abc"`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t)

			rec := ts.do(t, http.MethodPost, "/api/customers", tt.body)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.field != "" {
				resp := decode[struct {
					Details map[string]string `json:"details"`
				}](t, rec)
				assert.Contains(t, resp.Details, tt.field)
			}
		})
	}
}

func TestRegisterCustomer_DuplicateIsConflict(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, 503183504, "eligible_items")

	rec := ts.do(t, http.MethodPost, "/api/customers", RegisterCustomerRequest{
		TaxID: 503183504, Name: "Other", Phone: 1, DiscountPolicy: "none",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetCustomer_NotFoundAndBadID(t *testing.T) {
	ts := setupTestServer(t)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/customers/123456789", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/customers/abc", nil).Code)
}

func TestUpdateCustomer(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, 168027852, "none")

	rec := ts.do(t, http.MethodPut, "/api/customers/168027852", UpdateCustomerRequest{
		Name: "Renamed", Phone: 912345678, DiscountPolicy: "eligible_items",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[CustomerDTO](t, rec)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "eligible_items", got.DiscountPolicy)

	rec = ts.do(t, http.MethodPut, "/api/customers/123456789", UpdateCustomerRequest{
		Name: "X", Phone: 1, DiscountPolicy: "none",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SALE TESTS
// =============================================================================

func TestSaleLifecycle(t *testing.T) {
	// GIVEN: An amount-threshold customer
	// WHEN: Opening a sale, adding 10 x 123 and 5 x 124, then closing
	// THEN: The preview and the frozen discount are both 14.1

	ts := setupTestServer(t)
	ts.register(t, 168027852, "amount_threshold")
	id := ts.openSale(t, 168027852)

	rec := ts.addItem(t, id, 123, "10")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.addItem(t, id, 124, "5")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, decode[SaleDTO](t, rec).Lines, 2)

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/sales/%d/discount", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode[DiscountDTO](t, rec)
	assert.False(t, preview.Frozen)
	assert.True(t, decimal.RequireFromString("14.1").Equal(preview.Discount))

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/sales/%d/close", id), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sale := decode[SaleDTO](t, rec)
	assert.Equal(t, "closed", sale.Status)
	assert.NotNil(t, sale.ClosedAt)
	assert.True(t, decimal.NewFromInt(141).Equal(sale.Total))
	assert.True(t, decimal.RequireFromString("14.1").Equal(sale.Discount))

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/sales/%d/discount", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	frozen := decode[DiscountDTO](t, rec)
	assert.True(t, frozen.Frozen)
	assert.True(t, decimal.RequireFromString("14.1").Equal(frozen.Discount))
}

func TestCloseSale_TwiceIsConflict(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, 168027852, "amount_threshold")
	id := ts.openSale(t, 168027852)
	path := fmt.Sprintf("/api/sales/%d/close", id)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, path, nil).Code)

	rec := ts.do(t, http.MethodPost, path, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddLineItem_Errors(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, 168027852, "amount_threshold")
	open := ts.openSale(t, 168027852)
	closed := ts.openSale(t, 168027852)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, fmt.Sprintf("/api/sales/%d/close", closed), nil).Code)

	tests := []struct {
		name   string
		sale   int64
		code   int64
		qty    string
		status int
	}{
		{"zero qty", open, 123, "0", http.StatusBadRequest},
		{"negative qty", open, 123, "-1", http.StatusBadRequest},
		{"unknown product", open, 999, "1", http.StatusNotFound},
		{"unknown sale", 404, 123, "1", http.StatusNotFound},
		{"closed sale", closed, 123, "1", http.StatusConflict},
		{"insufficient stock", open, 125, "21", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.addItem(t, tt.sale, tt.code, tt.qty)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := ts.do(t, http.MethodGet, "/api/products/123", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decimal.NewFromInt(100).Equal(decode[ProductDTO](t, rec).Stock))
}

func TestAddLineItem_InsufficientStockDetails(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, 168027852, "none")
	id := ts.openSale(t, 168027852)

	rec := ts.addItem(t, id, 125, "25")

	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[struct {
		Details struct {
			Available decimal.Decimal `json:"available"`
			Requested decimal.Decimal `json:"requested"`
		} `json:"details"`
	}](t, rec)
	assert.True(t, decimal.NewFromInt(20).Equal(resp.Details.Available))
	assert.True(t, decimal.NewFromInt(25).Equal(resp.Details.Requested))
}

func TestOpenSale_UnknownCustomer(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sales", OpenSaleRequest{TaxID: 168027852})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSale_NotFoundAndBadID(t *testing.T) {
	ts := setupTestServer(t)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/sales/77", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/sales/x", nil).Code)
}

// =============================================================================
// PRODUCT TESTS
// =============================================================================

func TestProductMovementsAndRelease(t *testing.T) {
	// GIVEN: 4 units of 125 sold
	// WHEN: Releasing 4 units back
	// THEN: Stock returns to 20 and the trail shows reserve then release

	ts := setupTestServer(t)
	ts.register(t, 168027852, "none")
	id := ts.openSale(t, 168027852)
	require.Equal(t, http.StatusCreated, ts.addItem(t, id, 125, "4").Code)

	rec := ts.do(t, http.MethodPost, "/api/products/125/release", ReleaseStockRequest{
		Qty: decimal.NewFromInt(4), Reference: fmt.Sprintf("void:sale:%d", id),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decimal.NewFromInt(20).Equal(decode[ProductDTO](t, rec).Stock))

	rec = ts.do(t, http.MethodGet, "/api/products/125/movements", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	movements := decode[[]MovementDTO](t, rec)
	require.Len(t, movements, 2)
	assert.Equal(t, string(pos.MovementReserve), movements[0].Type)
	assert.Equal(t, fmt.Sprintf("sale:%d", id), movements[0].Reference)
	assert.Equal(t, string(pos.MovementRelease), movements[1].Type)
}

func TestReleaseStock_Validation(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/products/125/release", ReleaseStockRequest{Qty: decimal.Zero, Reference: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/products/125/release", ReleaseStockRequest{Qty: decimal.NewFromInt(1)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/products/999/release", ReleaseStockRequest{Qty: decimal.NewFromInt(1), Reference: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&pos.ValidationError{Field: "qty", Reason: "must be positive"}, http.StatusBadRequest},
		{fmt.Errorf("%w: id 1", pos.ErrSaleNotFound), http.StatusNotFound},
		{&pos.DuplicateKeyError{Entity: "customer", Key: "1"}, http.StatusConflict},
		{pos.ErrSaleClosed, http.StatusConflict},
		{pos.ErrSaleAlreadyClosed, http.StatusConflict},
		{&pos.InsufficientStockError{}, http.StatusConflict},
		{&pos.IntegrityError{Op: "quote", Detail: "missing customer"}, http.StatusInternalServerError},
		{&pos.StorageError{Op: "insert", Err: errors.New("disk I/O error")}, http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}
