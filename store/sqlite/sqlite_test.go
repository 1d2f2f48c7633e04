package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCustomer(t *testing.T, s *Store, taxID pos.TaxID, policy pos.DiscountPolicy) pos.Customer {
	t.Helper()
	c, err := s.InsertCustomer(context.Background(), pos.Customer{TaxID: taxID, Name: "Customer 1", Phone: 217500255, Policy: policy})
	require.NoError(t, err)
	return c
}

func seedProduct(t *testing.T, s *Store, code pos.ProductCode, price, stock string, eligible bool) pos.Product {
	t.Helper()
	p, err := s.InsertProduct(context.Background(), pos.Product{
		Code:                code,
		Description:         fmt.Sprintf("Product %d", code),
		UnitPrice:           decimal.RequireFromString(price),
		StockQty:            decimal.RequireFromString(stock),
		EligibleForDiscount: eligible,
	})
	require.NoError(t, err)
	return p
}

// =============================================================================
// CUSTOMER TESTS
// =============================================================================

func TestStore_Customer_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := seedCustomer(t, s, 168027852, pos.PolicyAmountThreshold)
	assert.NotZero(t, c.ID)

	byTax, err := s.CustomerByTaxID(ctx, 168027852)
	require.NoError(t, err)
	require.NotNil(t, byTax)
	assert.Equal(t, c, *byTax)

	byID, err := s.CustomerByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, *byID)

	missing, err := s.CustomerByTaxID(ctx, 123456789)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_Customer_DuplicateTaxIDIsDuplicateKey(t *testing.T) {
	// GIVEN: A customer with tax id 168027852
	// WHEN: Inserting another customer with the same tax id
	// THEN: The UNIQUE constraint fires and surfaces as DuplicateKeyError

	s := newTestStore(t)
	seedCustomer(t, s, 168027852, pos.PolicyNone)

	_, err := s.InsertCustomer(context.Background(), pos.Customer{TaxID: 168027852, Name: "Other", Phone: 1, Policy: pos.PolicyNone})

	var dup *pos.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "customer", dup.Entity)
	assert.False(t, errors.Is(err, pos.ErrStorage))
}

func TestStore_Customer_ConcurrentInsert_OneWins(t *testing.T) {
	s := newTestStore(t)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		dups int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.InsertCustomer(context.Background(), pos.Customer{TaxID: 503183504, Name: "C", Phone: 1, Policy: pos.PolicyNone})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, pos.ErrDuplicateKey) {
				dups++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 9, dups)
}

func TestStore_UpdateCustomer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedCustomer(t, s, 168027852, pos.PolicyNone)

	require.NoError(t, s.UpdateCustomer(ctx, pos.Customer{TaxID: 168027852, Name: "Renamed", Phone: 42, Policy: pos.PolicyEligibleItems}))

	got, err := s.CustomerByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, int64(42), got.Phone)
	assert.Equal(t, pos.PolicyEligibleItems, got.Policy)

	err = s.UpdateCustomer(ctx, pos.Customer{TaxID: 123456789, Name: "X", Phone: 1, Policy: pos.PolicyNone})
	assert.ErrorIs(t, err, pos.ErrCustomerNotFound)
}

// =============================================================================
// STORAGE CODE TESTS
// =============================================================================

func TestStore_StorageCodes(t *testing.T) {
	// GIVEN: Rows written through the store
	// WHEN: Reading the raw columns
	// THEN: Enums are stored as their fixed codes

	s := newTestStore(t)
	ctx := context.Background()

	policies := map[pos.TaxID]pos.DiscountPolicy{
		168027852: pos.PolicyNone,
		503183504: pos.PolicyAmountThreshold,
		123456789: pos.PolicyEligibleItems,
	}
	for taxID, policy := range policies {
		seedCustomer(t, s, taxID, policy)
	}

	for taxID, want := range map[pos.TaxID]int{168027852: 1, 503183504: 2, 123456789: 3} {
		var code int
		require.NoError(t, s.db.GetContext(ctx, &code, `SELECT discount_id FROM customer WHERE tax_id = ?`, int64(taxID)))
		assert.Equal(t, want, code, "tax id %d", taxID)

		got, err := s.CustomerByTaxID(ctx, taxID)
		require.NoError(t, err)
		assert.Equal(t, policies[taxID], got.Policy)
	}

	seedProduct(t, s, 123, "12.50", "10", true)
	seedProduct(t, s, 124, "3.20", "10", false)
	var eligibility []string
	require.NoError(t, s.db.SelectContext(ctx, &eligibility, `SELECT eligibility FROM product ORDER BY code`))
	assert.Equal(t, []string{"E", "N"}, eligibility)

	c, _ := s.CustomerByTaxID(ctx, 168027852)
	sale, err := s.InsertSale(ctx, pos.Sale{CustomerID: c.ID, CreatedAt: time.Now(), Status: pos.SaleOpen})
	require.NoError(t, err)
	var status string
	require.NoError(t, s.db.GetContext(ctx, &status, `SELECT status FROM sale WHERE id = ?`, int64(sale.ID)))
	assert.Equal(t, "O", status)

	require.NoError(t, s.CloseSale(ctx, sale.ID, decimal.NewFromInt(1), decimal.Zero, time.Now()))
	require.NoError(t, s.db.GetContext(ctx, &status, `SELECT status FROM sale WHERE id = ?`, int64(sale.ID)))
	assert.Equal(t, "C", status)
}

// =============================================================================
// PRODUCT / STOCK TESTS
// =============================================================================

func TestStore_Product_RoundTripKeepsDecimals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 126, "6.75", "35.5", false)

	got, err := s.ProductByCode(ctx, 126)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, decimal.RequireFromString("6.75").Equal(got.UnitPrice))
	assert.True(t, decimal.RequireFromString("35.5").Equal(got.StockQty))
	assert.False(t, got.EligibleForDiscount)

	_, err = s.InsertProduct(ctx, pos.Product{Code: 126, Description: "Dup", UnitPrice: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, pos.ErrDuplicateKey)
}

func TestStore_ApplyStockMovement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 123, "12.50", "10", true)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.ApplyStockMovement(ctx, pos.StockMovement{
		ID: "m-1", ProductID: p.ID, Type: pos.MovementReserve, Qty: decimal.NewFromInt(4), Reference: "sale:1", CreatedAt: at,
	}, decimal.NewFromInt(6)))

	got, _ := s.ProductByID(ctx, p.ID)
	assert.True(t, decimal.NewFromInt(6).Equal(got.StockQty))

	ms, err := s.Movements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "m-1", ms[0].ID)
	assert.Equal(t, pos.MovementReserve, ms[0].Type)
	assert.Equal(t, "sale:1", ms[0].Reference)
	assert.True(t, at.Equal(ms[0].CreatedAt))

	err = s.ApplyStockMovement(ctx, pos.StockMovement{ID: "m-2", ProductID: p.ID, Type: pos.MovementReserve, Qty: decimal.NewFromInt(7), CreatedAt: at}, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, pos.ErrIntegrity)
}

func TestStore_StockLedger_ConcurrentReserves_NeverOversell(t *testing.T) {
	// GIVEN: 5 units of a product in SQLite
	// WHEN: 12 goroutines reserve 1 unit each through the ledger
	// THEN: 5 succeed, stock ends at 0 and never goes negative

	s := newTestStore(t)
	p := seedProduct(t, s, 123, "12.50", "5", true)
	ledger := pos.NewStockLedger(s)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := ledger.Reserve(context.Background(), p.ID, decimal.NewFromInt(1), fmt.Sprintf("sale:%d", i))
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, pos.ErrInsufficientStock)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	got, _ := s.ProductByID(context.Background(), p.ID)
	assert.True(t, got.StockQty.IsZero(), "got %s", got.StockQty)
}

// =============================================================================
// SALE TESTS
// =============================================================================

func TestStore_Sale_LifecycleAndLineItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedCustomer(t, s, 168027852, pos.PolicyNone)
	p := seedProduct(t, s, 123, "12.50", "10", true)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	sale, err := s.InsertSale(ctx, pos.Sale{CustomerID: c.ID, CreatedAt: created, Status: pos.SaleOpen})
	require.NoError(t, err)

	_, err = s.InsertLineItem(ctx, pos.LineItem{SaleID: sale.ID, ProductID: p.ID, Qty: decimal.RequireFromString("1.5")})
	require.NoError(t, err)
	_, err = s.InsertLineItem(ctx, pos.LineItem{SaleID: sale.ID, ProductID: p.ID, Qty: decimal.NewFromInt(2)})
	require.NoError(t, err)

	items, err := s.LineItems(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, decimal.RequireFromString("1.5").Equal(items[0].Qty))

	closed := created.Add(time.Hour)
	require.NoError(t, s.CloseSale(ctx, sale.ID, decimal.RequireFromString("43.75"), decimal.Zero, closed))

	got, err := s.SaleByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, pos.SaleClosed, got.Status)
	assert.True(t, decimal.RequireFromString("43.75").Equal(got.Total))
	assert.True(t, created.Equal(got.CreatedAt))
	require.NotNil(t, got.ClosedAt)
	assert.True(t, closed.Equal(*got.ClosedAt))

	err = s.CloseSale(ctx, sale.ID, decimal.NewFromInt(1), decimal.NewFromInt(1), time.Now())
	assert.ErrorIs(t, err, pos.ErrSaleAlreadyClosed)
	assert.ErrorIs(t, s.CloseSale(ctx, 999, decimal.Zero, decimal.Zero, time.Now()), pos.ErrSaleNotFound)
}

func TestStore_InsertLineItem_UnknownProductIsIntegrityError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedCustomer(t, s, 168027852, pos.PolicyNone)
	sale, err := s.InsertSale(ctx, pos.Sale{CustomerID: c.ID, CreatedAt: time.Now(), Status: pos.SaleOpen})
	require.NoError(t, err)

	_, err = s.InsertLineItem(ctx, pos.LineItem{SaleID: sale.ID, ProductID: 404, Qty: decimal.NewFromInt(1)})

	assert.ErrorIs(t, err, pos.ErrIntegrity)
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 123, "12.50", "10", true)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx pos.Store) error {
		if err := tx.ApplyStockMovement(ctx, pos.StockMovement{ID: "m-1", ProductID: p.ID, Type: pos.MovementReserve, Qty: decimal.NewFromInt(3), CreatedAt: time.Now()}, decimal.NewFromInt(7)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, _ := s.ProductByID(ctx, p.ID)
	assert.True(t, decimal.NewFromInt(10).Equal(got.StockQty))
	ms, _ := s.Movements(ctx, p.ID)
	assert.Empty(t, ms)
}

func TestStore_FileDatabase_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.db")

	s, err := New(path)
	require.NoError(t, err)
	seedCustomer(t, s, 168027852, pos.PolicyEligibleItems)
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.CustomerByTaxID(context.Background(), 168027852)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, pos.PolicyEligibleItems, got.Policy)
}
