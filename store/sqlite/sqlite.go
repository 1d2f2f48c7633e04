/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements pos.TxStore using SQLite through sqlx. This is the durable
  store behind the server; pos/store.Memory is its in-memory twin.

KEY TABLES:
  customer:        registered customers, UNIQUE(tax_id)
  product:         catalog and stock, UNIQUE(code)
  sale:            sales with status 'O' / 'C' and the frozen totals
  sale_line_item:  append-only line items
  stock_movement:  append-only stock ledger entries

UNIQUENESS:
  The UNIQUE constraints on customer.tax_id and product.code are the real
  arbiters of uniqueness. A constraint violation on insert is translated to
  pos.DuplicateKeyError; callers never see the driver error.

STORAGE CODES:
  Enums are translated here and nowhere else:
    discount_id:  1 = none, 2 = amount threshold, 3 = eligible items
    status:       'O' = open, 'C' = closed
    eligibility:  'E' = eligible, 'N' = not eligible
  Decimals are stored as their canonical string form.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so a
  WithTx unit (read stock, check, decrement) cannot interleave with another
  write.

USAGE:
  store, err := sqlite.New("./data/pos.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := pos.NewStockLedger(store)
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/pos"
)

// Store implements pos.TxStore using SQLite.
type Store struct {
	db *sqlx.DB
	mu sync.RWMutex
}

var _ pos.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per-connection, and a single
	// writer is all SQLite offers anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customer (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tax_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		phone INTEGER NOT NULL,
		discount_id INTEGER NOT NULL CHECK (discount_id IN (1, 2, 3)),
		CONSTRAINT customer_tax_id_unique UNIQUE (tax_id)
	);

	CREATE TABLE IF NOT EXISTS product (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		unit_price TEXT NOT NULL,
		qty TEXT NOT NULL,
		eligibility TEXT NOT NULL CHECK (eligibility IN ('E', 'N')),
		CONSTRAINT product_code_unique UNIQUE (code)
	);

	CREATE TABLE IF NOT EXISTS sale (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL REFERENCES customer(id),
		created_at TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('O', 'C')),
		total TEXT NOT NULL DEFAULT '0',
		discount_total TEXT NOT NULL DEFAULT '0',
		closed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sale_customer
		ON sale(customer_id);

	-- Line items (append-only)
	CREATE TABLE IF NOT EXISTS sale_line_item (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_id INTEGER NOT NULL REFERENCES sale(id),
		product_id INTEGER NOT NULL REFERENCES product(id),
		qty TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sale_line_item_sale
		ON sale_line_item(sale_id);

	-- Stock movements (append-only ledger)
	CREATE TABLE IF NOT EXISTS stock_movement (
		id TEXT PRIMARY KEY,
		product_id INTEGER NOT NULL REFERENCES product(id),
		movement_type TEXT NOT NULL CHECK (movement_type IN ('reserve', 'release')),
		qty TEXT NOT NULL,
		reference TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stock_movement_product
		ON stock_movement(product_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROWS - storage layout, translated to pos types at this boundary
// =============================================================================

type customerRow struct {
	ID         int64  `db:"id"`
	TaxID      int64  `db:"tax_id"`
	Name       string `db:"name"`
	Phone      int64  `db:"phone"`
	DiscountID int    `db:"discount_id"`
}

type productRow struct {
	ID          int64           `db:"id"`
	Code        int64           `db:"code"`
	Description string          `db:"description"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	Qty         decimal.Decimal `db:"qty"`
	Eligibility string          `db:"eligibility"`
}

type saleRow struct {
	ID            int64           `db:"id"`
	CustomerID    int64           `db:"customer_id"`
	CreatedAt     string          `db:"created_at"`
	Status        string          `db:"status"`
	Total         decimal.Decimal `db:"total"`
	DiscountTotal decimal.Decimal `db:"discount_total"`
	ClosedAt      sql.NullString  `db:"closed_at"`
}

type lineItemRow struct {
	ID        int64           `db:"id"`
	SaleID    int64           `db:"sale_id"`
	ProductID int64           `db:"product_id"`
	Qty       decimal.Decimal `db:"qty"`
}

type movementRow struct {
	ID           string          `db:"id"`
	ProductID    int64           `db:"product_id"`
	MovementType string          `db:"movement_type"`
	Qty          decimal.Decimal `db:"qty"`
	Reference    sql.NullString  `db:"reference"`
	CreatedAt    string          `db:"created_at"`
}

const (
	statusOpen   = "O"
	statusClosed = "C"

	eligible    = "E"
	notEligible = "N"
)

func discountID(p pos.DiscountPolicy) int {
	switch p {
	case pos.PolicyAmountThreshold:
		return 2
	case pos.PolicyEligibleItems:
		return 3
	default:
		return 1
	}
}

func discountPolicy(id int) pos.DiscountPolicy {
	switch id {
	case 2:
		return pos.PolicyAmountThreshold
	case 3:
		return pos.PolicyEligibleItems
	default:
		return pos.PolicyNone
	}
}

func (r customerRow) toCustomer() *pos.Customer {
	return &pos.Customer{
		ID:     pos.CustomerID(r.ID),
		TaxID:  pos.TaxID(r.TaxID),
		Name:   r.Name,
		Phone:  r.Phone,
		Policy: discountPolicy(r.DiscountID),
	}
}

func (r productRow) toProduct() pos.Product {
	return pos.Product{
		ID:                  pos.ProductID(r.ID),
		Code:                pos.ProductCode(r.Code),
		Description:         r.Description,
		UnitPrice:           r.UnitPrice,
		StockQty:            r.Qty,
		EligibleForDiscount: r.Eligibility == eligible,
	}
}

func (r saleRow) toSale() *pos.Sale {
	s := &pos.Sale{
		ID:         pos.SaleID(r.ID),
		CustomerID: pos.CustomerID(r.CustomerID),
		CreatedAt:  parseTime(r.CreatedAt),
		Status:     pos.SaleOpen,
		Total:      r.Total,
		Discount:   r.DiscountTotal,
	}
	if r.Status == statusClosed {
		s.Status = pos.SaleClosed
	}
	if r.ClosedAt.Valid {
		t := parseTime(r.ClosedAt.String)
		s.ClosedAt = &t
	}
	return s
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) InsertCustomer(ctx context.Context, c pos.Customer) (pos.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertCustomer(ctx, s.db, c)
}

func (s *Store) UpdateCustomer(ctx context.Context, c pos.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateCustomer(ctx, s.db, c)
}

func (s *Store) CustomerByTaxID(ctx context.Context, taxID pos.TaxID) (*pos.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return customerBy(ctx, s.db, "tax_id", int64(taxID))
}

func (s *Store) CustomerByID(ctx context.Context, id pos.CustomerID) (*pos.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return customerBy(ctx, s.db, "id", int64(id))
}

func insertCustomer(ctx context.Context, q sqlx.ExtContext, c pos.Customer) (pos.Customer, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO customer (tax_id, name, phone, discount_id) VALUES (?, ?, ?, ?)`,
		int64(c.TaxID), c.Name, c.Phone, discountID(c.Policy),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return pos.Customer{}, &pos.DuplicateKeyError{Entity: "customer", Key: strconv.FormatInt(int64(c.TaxID), 10)}
		}
		return pos.Customer{}, &pos.StorageError{Op: "insert customer", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return pos.Customer{}, &pos.StorageError{Op: "insert customer", Err: err}
	}
	c.ID = pos.CustomerID(id)
	return c, nil
}

func updateCustomer(ctx context.Context, q sqlx.ExtContext, c pos.Customer) error {
	res, err := q.ExecContext(ctx,
		`UPDATE customer SET name = ?, phone = ?, discount_id = ? WHERE tax_id = ?`,
		c.Name, c.Phone, discountID(c.Policy), int64(c.TaxID),
	)
	if err != nil {
		return &pos.StorageError{Op: "update customer", Err: err}
	}
	if n, err := res.RowsAffected(); err != nil {
		return &pos.StorageError{Op: "update customer", Err: err}
	} else if n == 0 {
		return fmt.Errorf("%w: tax id %d", pos.ErrCustomerNotFound, c.TaxID)
	}
	return nil
}

// column is one of a fixed set of identifiers, never user input.
func customerBy(ctx context.Context, q sqlx.QueryerContext, column string, value int64) (*pos.Customer, error) {
	var row customerRow
	err := sqlx.GetContext(ctx, q, &row,
		`SELECT id, tax_id, name, phone, discount_id FROM customer WHERE `+column+` = ?`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &pos.StorageError{Op: "load customer", Err: err}
	}
	return row.toCustomer(), nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (s *Store) InsertProduct(ctx context.Context, p pos.Product) (pos.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertProduct(ctx, s.db, p)
}

func (s *Store) ProductByCode(ctx context.Context, code pos.ProductCode) (*pos.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return productBy(ctx, s.db, "code", int64(code))
}

func (s *Store) ProductByID(ctx context.Context, id pos.ProductID) (*pos.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return productBy(ctx, s.db, "id", int64(id))
}

func (s *Store) ListProducts(ctx context.Context) ([]pos.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listProducts(ctx, s.db)
}

// ApplyStockMovement runs in its own transaction when called outside WithTx.
func (s *Store) ApplyStockMovement(ctx context.Context, m pos.StockMovement, newQty decimal.Decimal) error {
	return s.WithTx(ctx, func(tx pos.Store) error {
		return tx.ApplyStockMovement(ctx, m, newQty)
	})
}

func (s *Store) Movements(ctx context.Context, id pos.ProductID) ([]pos.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return movements(ctx, s.db, id)
}

func insertProduct(ctx context.Context, q sqlx.ExtContext, p pos.Product) (pos.Product, error) {
	flag := notEligible
	if p.EligibleForDiscount {
		flag = eligible
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO product (code, description, unit_price, qty, eligibility) VALUES (?, ?, ?, ?, ?)`,
		int64(p.Code), p.Description, p.UnitPrice.String(), p.StockQty.String(), flag,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return pos.Product{}, &pos.DuplicateKeyError{Entity: "product", Key: strconv.FormatInt(int64(p.Code), 10)}
		}
		return pos.Product{}, &pos.StorageError{Op: "insert product", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return pos.Product{}, &pos.StorageError{Op: "insert product", Err: err}
	}
	p.ID = pos.ProductID(id)
	return p, nil
}

func productBy(ctx context.Context, q sqlx.QueryerContext, column string, value int64) (*pos.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, q, &row,
		`SELECT id, code, description, unit_price, qty, eligibility FROM product WHERE `+column+` = ?`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &pos.StorageError{Op: "load product", Err: err}
	}
	p := row.toProduct()
	return &p, nil
}

func listProducts(ctx context.Context, q sqlx.QueryerContext) ([]pos.Product, error) {
	var rows []productRow
	if err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT id, code, description, unit_price, qty, eligibility FROM product ORDER BY code`); err != nil {
		return nil, &pos.StorageError{Op: "list products", Err: err}
	}
	products := make([]pos.Product, len(rows))
	for i, r := range rows {
		products[i] = r.toProduct()
	}
	return products, nil
}

func applyStockMovement(ctx context.Context, q sqlx.ExtContext, m pos.StockMovement, newQty decimal.Decimal) error {
	if newQty.IsNegative() {
		return &pos.IntegrityError{
			Op:     "apply_stock_movement",
			Detail: fmt.Sprintf("stock of product %d would become %s", m.ProductID, newQty),
		}
	}
	res, err := q.ExecContext(ctx, `UPDATE product SET qty = ? WHERE id = ?`, newQty.String(), int64(m.ProductID))
	if err != nil {
		return &pos.StorageError{Op: "update stock", Err: err}
	}
	if n, err := res.RowsAffected(); err != nil {
		return &pos.StorageError{Op: "update stock", Err: err}
	} else if n == 0 {
		return fmt.Errorf("%w: id %d", pos.ErrProductNotFound, m.ProductID)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO stock_movement (id, product_id, movement_type, qty, reference, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, int64(m.ProductID), string(m.Type), m.Qty.String(), nullString(m.Reference), formatTime(m.CreatedAt),
	)
	if err != nil {
		return &pos.StorageError{Op: "append stock movement", Err: err}
	}
	return nil
}

func movements(ctx context.Context, q sqlx.QueryerContext, id pos.ProductID) ([]pos.StockMovement, error) {
	var rows []movementRow
	if err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT id, product_id, movement_type, qty, reference, created_at
		 FROM stock_movement WHERE product_id = ? ORDER BY created_at ASC, rowid ASC`, int64(id)); err != nil {
		return nil, &pos.StorageError{Op: "load stock movements", Err: err}
	}
	result := make([]pos.StockMovement, len(rows))
	for i, r := range rows {
		result[i] = pos.StockMovement{
			ID:        r.ID,
			ProductID: pos.ProductID(r.ProductID),
			Type:      pos.MovementType(r.MovementType),
			Qty:       r.Qty,
			Reference: r.Reference.String,
			CreatedAt: parseTime(r.CreatedAt),
		}
	}
	return result, nil
}

// =============================================================================
// SALES
// =============================================================================

func (s *Store) InsertSale(ctx context.Context, sale pos.Sale) (pos.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertSale(ctx, s.db, sale)
}

func (s *Store) SaleByID(ctx context.Context, id pos.SaleID) (*pos.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return saleByID(ctx, s.db, id)
}

func (s *Store) InsertLineItem(ctx context.Context, item pos.LineItem) (pos.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertLineItem(ctx, s.db, item)
}

func (s *Store) LineItems(ctx context.Context, id pos.SaleID) ([]pos.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lineItems(ctx, s.db, id)
}

func (s *Store) CloseSale(ctx context.Context, id pos.SaleID, total, discount decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closeSale(ctx, s.db, id, total, discount, at)
}

func insertSale(ctx context.Context, q sqlx.ExtContext, sale pos.Sale) (pos.Sale, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO sale (customer_id, created_at, status, total, discount_total) VALUES (?, ?, ?, ?, ?)`,
		int64(sale.CustomerID), formatTime(sale.CreatedAt), statusOpen, sale.Total.String(), sale.Discount.String(),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return pos.Sale{}, &pos.IntegrityError{
				Op:     "insert_sale",
				Detail: fmt.Sprintf("customer %d does not exist", sale.CustomerID),
				Err:    err,
			}
		}
		return pos.Sale{}, &pos.StorageError{Op: "insert sale", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return pos.Sale{}, &pos.StorageError{Op: "insert sale", Err: err}
	}
	sale.ID = pos.SaleID(id)
	sale.Status = pos.SaleOpen
	return sale, nil
}

func saleByID(ctx context.Context, q sqlx.QueryerContext, id pos.SaleID) (*pos.Sale, error) {
	var row saleRow
	err := sqlx.GetContext(ctx, q, &row,
		`SELECT id, customer_id, created_at, status, total, discount_total, closed_at FROM sale WHERE id = ?`, int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &pos.StorageError{Op: "load sale", Err: err}
	}
	return row.toSale(), nil
}

func insertLineItem(ctx context.Context, q sqlx.ExtContext, item pos.LineItem) (pos.LineItem, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO sale_line_item (sale_id, product_id, qty) VALUES (?, ?, ?)`,
		int64(item.SaleID), int64(item.ProductID), item.Qty.String(),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return pos.LineItem{}, &pos.IntegrityError{
				Op:     "insert_line_item",
				Detail: fmt.Sprintf("sale %d or product %d does not exist", item.SaleID, item.ProductID),
				Err:    err,
			}
		}
		return pos.LineItem{}, &pos.StorageError{Op: "insert line item", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return pos.LineItem{}, &pos.StorageError{Op: "insert line item", Err: err}
	}
	item.ID = pos.LineItemID(id)
	return item, nil
}

func lineItems(ctx context.Context, q sqlx.QueryerContext, id pos.SaleID) ([]pos.LineItem, error) {
	var rows []lineItemRow
	if err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT id, sale_id, product_id, qty FROM sale_line_item WHERE sale_id = ? ORDER BY id`, int64(id)); err != nil {
		return nil, &pos.StorageError{Op: "load line items", Err: err}
	}
	items := make([]pos.LineItem, len(rows))
	for i, r := range rows {
		items[i] = pos.LineItem{
			ID:        pos.LineItemID(r.ID),
			SaleID:    pos.SaleID(r.SaleID),
			ProductID: pos.ProductID(r.ProductID),
			Qty:       r.Qty,
		}
	}
	return items, nil
}

// closeSale is a conditional update: only a row still in 'O' moves to 'C'.
func closeSale(ctx context.Context, q sqlx.ExtContext, id pos.SaleID, total, discount decimal.Decimal, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE sale SET status = ?, total = ?, discount_total = ?, closed_at = ?
		 WHERE id = ? AND status = ?`,
		statusClosed, total.String(), discount.String(), formatTime(at), int64(id), statusOpen,
	)
	if err != nil {
		return &pos.StorageError{Op: "close sale", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &pos.StorageError{Op: "close sale", Err: err}
	}
	if n == 1 {
		return nil
	}

	existing, err := saleByID(ctx, q, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: id %d", pos.ErrSaleNotFound, id)
	}
	return pos.ErrSaleAlreadyClosed
}

// =============================================================================
// TRANSACTIONAL STORE (pos.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store pos.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &pos.StorageError{Op: "begin transaction", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	// database/sql rolls back on its own once ctx is done; report the
	// cancellation rather than the resulting ErrTxDone.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &pos.StorageError{Op: "commit transaction", Err: err}
	}
	return nil
}

// txStore runs every call on the open transaction. WithTx already holds the
// store's lock, so none of these methods may lock again.
type txStore struct {
	tx *sqlx.Tx
}

func (ts *txStore) InsertCustomer(ctx context.Context, c pos.Customer) (pos.Customer, error) {
	return insertCustomer(ctx, ts.tx, c)
}

func (ts *txStore) UpdateCustomer(ctx context.Context, c pos.Customer) error {
	return updateCustomer(ctx, ts.tx, c)
}

func (ts *txStore) CustomerByTaxID(ctx context.Context, taxID pos.TaxID) (*pos.Customer, error) {
	return customerBy(ctx, ts.tx, "tax_id", int64(taxID))
}

func (ts *txStore) CustomerByID(ctx context.Context, id pos.CustomerID) (*pos.Customer, error) {
	return customerBy(ctx, ts.tx, "id", int64(id))
}

func (ts *txStore) InsertProduct(ctx context.Context, p pos.Product) (pos.Product, error) {
	return insertProduct(ctx, ts.tx, p)
}

func (ts *txStore) ProductByCode(ctx context.Context, code pos.ProductCode) (*pos.Product, error) {
	return productBy(ctx, ts.tx, "code", int64(code))
}

func (ts *txStore) ProductByID(ctx context.Context, id pos.ProductID) (*pos.Product, error) {
	return productBy(ctx, ts.tx, "id", int64(id))
}

func (ts *txStore) ListProducts(ctx context.Context) ([]pos.Product, error) {
	return listProducts(ctx, ts.tx)
}

func (ts *txStore) ApplyStockMovement(ctx context.Context, m pos.StockMovement, newQty decimal.Decimal) error {
	return applyStockMovement(ctx, ts.tx, m, newQty)
}

func (ts *txStore) Movements(ctx context.Context, id pos.ProductID) ([]pos.StockMovement, error) {
	return movements(ctx, ts.tx, id)
}

func (ts *txStore) InsertSale(ctx context.Context, sale pos.Sale) (pos.Sale, error) {
	return insertSale(ctx, ts.tx, sale)
}

func (ts *txStore) SaleByID(ctx context.Context, id pos.SaleID) (*pos.Sale, error) {
	return saleByID(ctx, ts.tx, id)
}

func (ts *txStore) InsertLineItem(ctx context.Context, item pos.LineItem) (pos.LineItem, error) {
	return insertLineItem(ctx, ts.tx, item)
}

func (ts *txStore) LineItems(ctx context.Context, id pos.SaleID) ([]pos.LineItem, error) {
	return lineItems(ctx, ts.tx, id)
}

func (ts *txStore) CloseSale(ctx context.Context, id pos.SaleID, total, discount decimal.Decimal, at time.Time) error {
	return closeSale(ctx, ts.tx, id, total, discount, at)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
