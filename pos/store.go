/*
store.go - Persistence interfaces for customers, products and sales

PURPOSE:
  Defines the interface between the engine and the database. Business
  logic never sees rows, SQL, or storage codes; the stores translate
  enums ('O'/'C', discount codes 1..3) at this boundary only.

KEY INTERFACES:
  CustomerStore: registration and lookups by tax id / surrogate id
  ProductStore:  lookups by code / id, seed inserts, stock movements
  SaleStore:     sale rows, line items, the OPEN -> CLOSED transition
  Store:         all of the above
  TxStore:       Store + atomic multi-step units (WithTx)

UNIQUENESS CONTRACT:
  InsertCustomer and InsertProduct MUST fail with an error wrapping
  ErrDuplicateKey when the tax id / code already exists. A lookup before
  the insert is only an optimization: two concurrent registrations can both
  pass it, and the storage-level constraint decides which one wins.

NO RAW SETTERS:
  Stock changes only through ApplyStockMovement, sale state only through
  CloseSale. Both are conditional operations, not field setters.

LOOKUP CONVENTION:
  Lookups return (nil, nil) when the row does not exist. Whether a miss is
  a NotFound (caller-supplied key) or an IntegrityError (internal surrogate
  id) is decided by the caller, not the store.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - pos/store/memory.go: In-memory for tests and development
*/
package pos

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

type CustomerStore interface {
	// InsertCustomer persists c and returns it with its surrogate id set.
	InsertCustomer(ctx context.Context, c Customer) (Customer, error)

	// UpdateCustomer rewrites name, phone and policy of the customer with c.TaxID.
	UpdateCustomer(ctx context.Context, c Customer) error

	CustomerByTaxID(ctx context.Context, taxID TaxID) (*Customer, error)
	CustomerByID(ctx context.Context, id CustomerID) (*Customer, error)
}

type ProductStore interface {
	// InsertProduct is used by seeding only.
	InsertProduct(ctx context.Context, p Product) (Product, error)

	ProductByCode(ctx context.Context, code ProductCode) (*Product, error)
	ProductByID(ctx context.Context, id ProductID) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	// ApplyStockMovement appends m to the movement log and sets the product's
	// stock to newQty in the same step. The caller (StockLedger) has already
	// checked that newQty is non-negative inside the enclosing transaction.
	ApplyStockMovement(ctx context.Context, m StockMovement, newQty decimal.Decimal) error

	// Movements returns a product's movements, oldest first.
	Movements(ctx context.Context, id ProductID) ([]StockMovement, error)
}

type SaleStore interface {
	InsertSale(ctx context.Context, s Sale) (Sale, error)
	SaleByID(ctx context.Context, id SaleID) (*Sale, error)

	InsertLineItem(ctx context.Context, item LineItem) (LineItem, error)
	LineItems(ctx context.Context, id SaleID) ([]LineItem, error)

	// CloseSale moves the sale from OPEN to CLOSED, freezing total and
	// discount. Returns ErrSaleAlreadyClosed if it is not OPEN and
	// ErrSaleNotFound if it does not exist.
	CloseSale(ctx context.Context, id SaleID, total, discount decimal.Decimal, at time.Time) error
}

type Store interface {
	CustomerStore
	ProductStore
	SaleStore
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	// Write transactions are serialized against each other.
	WithTx(ctx context.Context, fn func(Store) error) error
}
