// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements pos.TxStore with maps guarded by a single RWMutex.
// Unique indexes on tax id and product code are maps of their own, checked
// under the write lock, so they play the role of the database constraint.
type Memory struct {
	mu   sync.RWMutex
	data memoryData
}

var (
	_ pos.TxStore = (*Memory)(nil)
	_ pos.Store   = (*txMemoryView)(nil)
)

type memoryData struct {
	customers      map[pos.CustomerID]pos.Customer
	customersByTax map[pos.TaxID]pos.CustomerID
	products       map[pos.ProductID]pos.Product
	productsByCode map[pos.ProductCode]pos.ProductID
	sales          map[pos.SaleID]pos.Sale
	lineItems      map[pos.SaleID][]pos.LineItem
	movements      map[pos.ProductID][]pos.StockMovement

	lastCustomer int64
	lastProduct  int64
	lastSale     int64
	lastLineItem int64
}

func NewMemory() *Memory {
	return &Memory{data: memoryData{
		customers:      make(map[pos.CustomerID]pos.Customer),
		customersByTax: make(map[pos.TaxID]pos.CustomerID),
		products:       make(map[pos.ProductID]pos.Product),
		productsByCode: make(map[pos.ProductCode]pos.ProductID),
		sales:          make(map[pos.SaleID]pos.Sale),
		lineItems:      make(map[pos.SaleID][]pos.LineItem),
		movements:      make(map[pos.ProductID][]pos.StockMovement),
	}}
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Memory) InsertCustomer(_ context.Context, c pos.Customer) (pos.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.insertCustomer(c)
}

func (m *Memory) UpdateCustomer(_ context.Context, c pos.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.updateCustomer(c)
}

func (m *Memory) CustomerByTaxID(_ context.Context, taxID pos.TaxID) (*pos.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.customerByTaxID(taxID), nil
}

func (m *Memory) CustomerByID(_ context.Context, id pos.CustomerID) (*pos.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.customerByID(id), nil
}

func (d *memoryData) insertCustomer(c pos.Customer) (pos.Customer, error) {
	if _, taken := d.customersByTax[c.TaxID]; taken {
		return pos.Customer{}, &pos.DuplicateKeyError{Entity: "customer", Key: strconv.FormatInt(int64(c.TaxID), 10)}
	}
	d.lastCustomer++
	c.ID = pos.CustomerID(d.lastCustomer)
	d.customers[c.ID] = c
	d.customersByTax[c.TaxID] = c.ID
	return c, nil
}

func (d *memoryData) updateCustomer(c pos.Customer) error {
	id, ok := d.customersByTax[c.TaxID]
	if !ok {
		return fmt.Errorf("%w: tax id %d", pos.ErrCustomerNotFound, c.TaxID)
	}
	existing := d.customers[id]
	existing.Name = c.Name
	existing.Phone = c.Phone
	existing.Policy = c.Policy
	d.customers[id] = existing
	return nil
}

func (d *memoryData) customerByTaxID(taxID pos.TaxID) *pos.Customer {
	id, ok := d.customersByTax[taxID]
	if !ok {
		return nil
	}
	return d.customerByID(id)
}

func (d *memoryData) customerByID(id pos.CustomerID) *pos.Customer {
	c, ok := d.customers[id]
	if !ok {
		return nil
	}
	return &c
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (m *Memory) InsertProduct(_ context.Context, p pos.Product) (pos.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.insertProduct(p)
}

func (m *Memory) ProductByCode(_ context.Context, code pos.ProductCode) (*pos.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.productByCode(code), nil
}

func (m *Memory) ProductByID(_ context.Context, id pos.ProductID) (*pos.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.productByID(id), nil
}

func (m *Memory) ListProducts(_ context.Context) ([]pos.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listProducts(), nil
}

func (m *Memory) ApplyStockMovement(_ context.Context, mv pos.StockMovement, newQty decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.applyStockMovement(mv, newQty)
}

func (m *Memory) Movements(_ context.Context, id pos.ProductID) ([]pos.StockMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.movementsOf(id), nil
}

func (d *memoryData) insertProduct(p pos.Product) (pos.Product, error) {
	if _, taken := d.productsByCode[p.Code]; taken {
		return pos.Product{}, &pos.DuplicateKeyError{Entity: "product", Key: strconv.FormatInt(int64(p.Code), 10)}
	}
	d.lastProduct++
	p.ID = pos.ProductID(d.lastProduct)
	d.products[p.ID] = p
	d.productsByCode[p.Code] = p.ID
	return p, nil
}

func (d *memoryData) productByCode(code pos.ProductCode) *pos.Product {
	id, ok := d.productsByCode[code]
	if !ok {
		return nil
	}
	return d.productByID(id)
}

func (d *memoryData) productByID(id pos.ProductID) *pos.Product {
	p, ok := d.products[id]
	if !ok {
		return nil
	}
	return &p
}

func (d *memoryData) listProducts() []pos.Product {
	result := make([]pos.Product, 0, len(d.products))
	for _, p := range d.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}

func (d *memoryData) applyStockMovement(mv pos.StockMovement, newQty decimal.Decimal) error {
	p, ok := d.products[mv.ProductID]
	if !ok {
		return fmt.Errorf("%w: id %d", pos.ErrProductNotFound, mv.ProductID)
	}
	if newQty.IsNegative() {
		return &pos.IntegrityError{
			Op:     "apply_stock_movement",
			Detail: fmt.Sprintf("stock of product %d would become %s", p.ID, newQty),
		}
	}
	p.StockQty = newQty
	d.products[p.ID] = p
	d.movements[p.ID] = append(d.movements[p.ID], mv)
	return nil
}

func (d *memoryData) movementsOf(id pos.ProductID) []pos.StockMovement {
	result := make([]pos.StockMovement, len(d.movements[id]))
	copy(result, d.movements[id])
	return result
}

// =============================================================================
// SALES
// =============================================================================

func (m *Memory) InsertSale(_ context.Context, s pos.Sale) (pos.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.insertSale(s)
}

func (m *Memory) SaleByID(_ context.Context, id pos.SaleID) (*pos.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.saleByID(id), nil
}

func (m *Memory) InsertLineItem(_ context.Context, item pos.LineItem) (pos.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.insertLineItem(item)
}

func (m *Memory) LineItems(_ context.Context, id pos.SaleID) ([]pos.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.lineItemsOf(id), nil
}

func (m *Memory) CloseSale(_ context.Context, id pos.SaleID, total, discount decimal.Decimal, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.closeSale(id, total, discount, at)
}

func (d *memoryData) insertSale(s pos.Sale) (pos.Sale, error) {
	if _, ok := d.customers[s.CustomerID]; !ok {
		return pos.Sale{}, &pos.IntegrityError{
			Op:     "insert_sale",
			Detail: fmt.Sprintf("customer %d does not exist", s.CustomerID),
		}
	}
	d.lastSale++
	s.ID = pos.SaleID(d.lastSale)
	d.sales[s.ID] = s
	return s, nil
}

func (d *memoryData) saleByID(id pos.SaleID) *pos.Sale {
	s, ok := d.sales[id]
	if !ok {
		return nil
	}
	return &s
}

func (d *memoryData) insertLineItem(item pos.LineItem) (pos.LineItem, error) {
	if _, ok := d.sales[item.SaleID]; !ok {
		return pos.LineItem{}, &pos.IntegrityError{
			Op:     "insert_line_item",
			Detail: fmt.Sprintf("sale %d does not exist", item.SaleID),
		}
	}
	if _, ok := d.products[item.ProductID]; !ok {
		return pos.LineItem{}, &pos.IntegrityError{
			Op:     "insert_line_item",
			Detail: fmt.Sprintf("product %d does not exist", item.ProductID),
		}
	}
	d.lastLineItem++
	item.ID = pos.LineItemID(d.lastLineItem)
	d.lineItems[item.SaleID] = append(d.lineItems[item.SaleID], item)
	return item, nil
}

func (d *memoryData) lineItemsOf(id pos.SaleID) []pos.LineItem {
	result := make([]pos.LineItem, len(d.lineItems[id]))
	copy(result, d.lineItems[id])
	return result
}

func (d *memoryData) closeSale(id pos.SaleID, total, discount decimal.Decimal, at time.Time) error {
	s, ok := d.sales[id]
	if !ok {
		return fmt.Errorf("%w: id %d", pos.ErrSaleNotFound, id)
	}
	if !s.IsOpen() {
		return pos.ErrSaleAlreadyClosed
	}
	s.Status = pos.SaleClosed
	s.Total = total
	s.Discount = discount
	s.ClosedAt = &at
	d.sales[id] = s
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, so transactions are serialized.
func (m *Memory) WithTx(ctx context.Context, fn func(pos.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := m.data.clone()
	if err := fn(&txMemoryView{data: &m.data}); err != nil {
		m.data = snapshot
		return err
	}

	// A cancellation observed before returning counts as a failed commit.
	if err := ctx.Err(); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

func (d *memoryData) clone() memoryData {
	c := *d
	c.customers = cloneMap(d.customers)
	c.customersByTax = cloneMap(d.customersByTax)
	c.products = cloneMap(d.products)
	c.productsByCode = cloneMap(d.productsByCode)
	c.sales = cloneMap(d.sales)
	c.lineItems = make(map[pos.SaleID][]pos.LineItem, len(d.lineItems))
	for k, v := range d.lineItems {
		c.lineItems[k] = append([]pos.LineItem(nil), v...)
	}
	c.movements = make(map[pos.ProductID][]pos.StockMovement, len(d.movements))
	for k, v := range d.movements {
		c.movements[k] = append([]pos.StockMovement(nil), v...)
	}
	return c
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// txMemoryView operates on the parent's data while WithTx holds its lock.
type txMemoryView struct {
	data *memoryData
}

func (tv *txMemoryView) InsertCustomer(_ context.Context, c pos.Customer) (pos.Customer, error) {
	return tv.data.insertCustomer(c)
}

func (tv *txMemoryView) UpdateCustomer(_ context.Context, c pos.Customer) error {
	return tv.data.updateCustomer(c)
}

func (tv *txMemoryView) CustomerByTaxID(_ context.Context, taxID pos.TaxID) (*pos.Customer, error) {
	return tv.data.customerByTaxID(taxID), nil
}

func (tv *txMemoryView) CustomerByID(_ context.Context, id pos.CustomerID) (*pos.Customer, error) {
	return tv.data.customerByID(id), nil
}

func (tv *txMemoryView) InsertProduct(_ context.Context, p pos.Product) (pos.Product, error) {
	return tv.data.insertProduct(p)
}

func (tv *txMemoryView) ProductByCode(_ context.Context, code pos.ProductCode) (*pos.Product, error) {
	return tv.data.productByCode(code), nil
}

func (tv *txMemoryView) ProductByID(_ context.Context, id pos.ProductID) (*pos.Product, error) {
	return tv.data.productByID(id), nil
}

func (tv *txMemoryView) ListProducts(_ context.Context) ([]pos.Product, error) {
	return tv.data.listProducts(), nil
}

func (tv *txMemoryView) ApplyStockMovement(_ context.Context, mv pos.StockMovement, newQty decimal.Decimal) error {
	return tv.data.applyStockMovement(mv, newQty)
}

func (tv *txMemoryView) Movements(_ context.Context, id pos.ProductID) ([]pos.StockMovement, error) {
	return tv.data.movementsOf(id), nil
}

func (tv *txMemoryView) InsertSale(_ context.Context, s pos.Sale) (pos.Sale, error) {
	return tv.data.insertSale(s)
}

func (tv *txMemoryView) SaleByID(_ context.Context, id pos.SaleID) (*pos.Sale, error) {
	return tv.data.saleByID(id), nil
}

func (tv *txMemoryView) InsertLineItem(_ context.Context, item pos.LineItem) (pos.LineItem, error) {
	return tv.data.insertLineItem(item)
}

func (tv *txMemoryView) LineItems(_ context.Context, id pos.SaleID) ([]pos.LineItem, error) {
	return tv.data.lineItemsOf(id), nil
}

func (tv *txMemoryView) CloseSale(_ context.Context, id pos.SaleID, total, discount decimal.Decimal, at time.Time) error {
	return tv.data.closeSale(id, total, discount, at)
}
