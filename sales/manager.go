/*
manager.go - Sale lifecycle

PURPOSE:
  The Manager owns every Sale. It opens sales for registered customers,
  appends line items while they are open, and closes them exactly once.

STATE MACHINE:
  OPEN ──CloseSale──> CLOSED (terminal)

  AddLineItem:  OPEN only, otherwise pos.ErrSaleClosed
  CloseSale:    OPEN only, otherwise pos.ErrSaleAlreadyClosed. Never recomputes.
  GetDiscount:  CLOSED -> frozen value, OPEN -> live preview (nothing stored)

ATOMICITY:
  AddLineItem reserves stock and records the line item in one store
  transaction. If recording the item fails, the reservation rolls back with
  it, so stock is never taken without a line item to show for it.

CONCURRENCY:
  Calls on the same sale are serialized by a per-sale lock. Stock is
  serialized only for the duration of the reserve transaction, so two sales
  buying the same product contend briefly on the store, never on each other.

SEE ALSO:
  - pos/ledger.go: Stock reservation
  - pos/discount.go: Discount strategies
*/
package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// MANAGER
// =============================================================================

type Manager struct {
	store  pos.TxStore
	ledger *pos.StockLedger
	config pos.DiscountConfig
	log    *zap.Logger

	locks saleLocks
	now   func() time.Time
}

func NewManager(store pos.TxStore, ledger *pos.StockLedger, config pos.DiscountConfig, log *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		ledger: ledger,
		config: config,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Summary is a sale with its priced lines. Total and Discount are frozen
// for closed sales and computed live for open ones.
type Summary struct {
	Sale     pos.Sale
	Customer pos.Customer
	Lines    []pos.PricedLine
	Total    decimal.Decimal
	Discount decimal.Decimal
}

// OpenSale starts a new sale for the customer with taxID.
func (m *Manager) OpenSale(ctx context.Context, taxID pos.TaxID) (pos.SaleID, error) {
	customer, err := m.store.CustomerByTaxID(ctx, taxID)
	if err != nil {
		return 0, fmt.Errorf("open sale: %w", err)
	}
	if customer == nil {
		return 0, fmt.Errorf("%w: tax id %d", pos.ErrCustomerNotFound, taxID)
	}

	sale, err := m.store.InsertSale(ctx, pos.Sale{
		CustomerID: customer.ID,
		CreatedAt:  m.now(),
		Status:     pos.SaleOpen,
		Total:      decimal.Zero,
		Discount:   decimal.Zero,
	})
	if err != nil {
		return 0, fmt.Errorf("open sale: %w", err)
	}

	m.log.Info("sale opened",
		zap.Int64("sale_id", int64(sale.ID)),
		zap.Int64("customer_id", int64(customer.ID)))
	return sale.ID, nil
}

// AddLineItem reserves qty units of the product with code and appends them
// to the sale.
func (m *Manager) AddLineItem(ctx context.Context, saleID pos.SaleID, code pos.ProductCode, qty decimal.Decimal) (pos.LineItem, error) {
	if !qty.IsPositive() {
		return pos.LineItem{}, &pos.ValidationError{Field: "qty", Reason: "must be positive"}
	}

	unlock, err := m.locks.lock(ctx, saleID)
	if err != nil {
		return pos.LineItem{}, err
	}
	defer unlock()

	sale, err := m.loadSale(ctx, saleID)
	if err != nil {
		return pos.LineItem{}, err
	}
	if !sale.IsOpen() {
		return pos.LineItem{}, fmt.Errorf("%w: id %d", pos.ErrSaleClosed, saleID)
	}

	product, err := m.store.ProductByCode(ctx, code)
	if err != nil {
		return pos.LineItem{}, fmt.Errorf("add line item: %w", err)
	}
	if product == nil {
		return pos.LineItem{}, fmt.Errorf("%w: code %d", pos.ErrProductNotFound, code)
	}

	var item pos.LineItem
	err = m.store.WithTx(ctx, func(tx pos.Store) error {
		if err := m.ledger.ReserveIn(ctx, tx, product.ID, qty, saleReference(saleID)); err != nil {
			return err
		}
		var insertErr error
		item, insertErr = tx.InsertLineItem(ctx, pos.LineItem{
			SaleID:    saleID,
			ProductID: product.ID,
			Qty:       qty,
		})
		return insertErr
	})
	if err != nil {
		m.logFailure("add line item failed", err,
			zap.Int64("sale_id", int64(saleID)),
			zap.Int64("product_code", int64(code)),
			zap.Stringer("qty", qty))
		return pos.LineItem{}, err
	}

	m.log.Debug("line item added",
		zap.Int64("sale_id", int64(saleID)),
		zap.Int64("product_id", int64(product.ID)),
		zap.Stringer("qty", qty))
	return item, nil
}

// CloseSale freezes total and discount and moves the sale to CLOSED.
func (m *Manager) CloseSale(ctx context.Context, saleID pos.SaleID) (pos.Sale, error) {
	unlock, err := m.locks.lock(ctx, saleID)
	if err != nil {
		return pos.Sale{}, err
	}
	defer unlock()

	sale, err := m.loadSale(ctx, saleID)
	if err != nil {
		return pos.Sale{}, err
	}
	if !sale.IsOpen() {
		return pos.Sale{}, fmt.Errorf("%w: id %d", pos.ErrSaleAlreadyClosed, saleID)
	}

	summary, err := m.quote(ctx, sale)
	if err != nil {
		m.logFailure("close sale failed", err, zap.Int64("sale_id", int64(saleID)))
		return pos.Sale{}, err
	}

	closedAt := m.now()
	if err := m.store.CloseSale(ctx, saleID, summary.Total, summary.Discount, closedAt); err != nil {
		m.logFailure("close sale failed", err, zap.Int64("sale_id", int64(saleID)))
		return pos.Sale{}, err
	}

	sale.Status = pos.SaleClosed
	sale.Total = summary.Total
	sale.Discount = summary.Discount
	sale.ClosedAt = &closedAt

	m.log.Info("sale closed",
		zap.Int64("sale_id", int64(saleID)),
		zap.Stringer("total", sale.Total),
		zap.Stringer("discount", sale.Discount))
	return *sale, nil
}

// GetDiscount returns the frozen discount of a closed sale or a live
// preview for an open one.
func (m *Manager) GetDiscount(ctx context.Context, saleID pos.SaleID) (decimal.Decimal, error) {
	summary, err := m.GetSale(ctx, saleID)
	if err != nil {
		return decimal.Zero, err
	}
	return summary.Discount, nil
}

// GetSale returns the sale with its priced lines.
func (m *Manager) GetSale(ctx context.Context, saleID pos.SaleID) (Summary, error) {
	sale, err := m.loadSale(ctx, saleID)
	if err != nil {
		return Summary{}, err
	}
	summary, err := m.quote(ctx, sale)
	if err != nil {
		m.logFailure("load sale failed", err, zap.Int64("sale_id", int64(saleID)))
		return Summary{}, err
	}
	if !sale.IsOpen() {
		summary.Total = sale.Total
		summary.Discount = sale.Discount
	}
	return summary, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Manager) loadSale(ctx context.Context, id pos.SaleID) (*pos.Sale, error) {
	sale, err := m.store.SaleByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load sale: %w", err)
	}
	if sale == nil {
		return nil, fmt.Errorf("%w: id %d", pos.ErrSaleNotFound, id)
	}
	return sale, nil
}

// quote prices the sale's lines and computes total and discount from them.
// Every lookup here is by surrogate id, so a miss is an integrity error.
func (m *Manager) quote(ctx context.Context, sale *pos.Sale) (Summary, error) {
	customer, err := m.store.CustomerByID(ctx, sale.CustomerID)
	if err != nil {
		return Summary{}, fmt.Errorf("load customer of sale %d: %w", sale.ID, err)
	}
	if customer == nil {
		return Summary{}, &pos.IntegrityError{
			Op:     "quote",
			Detail: fmt.Sprintf("sale %d references missing customer %d", sale.ID, sale.CustomerID),
		}
	}

	items, err := m.store.LineItems(ctx, sale.ID)
	if err != nil {
		return Summary{}, fmt.Errorf("load line items of sale %d: %w", sale.ID, err)
	}
	lines, err := pos.PriceLines(ctx, m.store, items)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Sale:     *sale,
		Customer: *customer,
		Lines:    lines,
		Total:    pos.SaleTotal(lines),
		Discount: pos.ComputeDiscount(customer.Policy, lines, m.config),
	}, nil
}

// logFailure logs integrity and storage failures at error level; expected
// business outcomes (closed sale, no stock) stay at info.
func (m *Manager) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch {
	case errors.Is(err, pos.ErrIntegrity), errors.Is(err, pos.ErrStorage):
		m.log.Error(msg, fields...)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		m.log.Warn(msg, fields...)
	default:
		m.log.Info(msg, fields...)
	}
}

func saleReference(id pos.SaleID) string {
	return fmt.Sprintf("sale:%d", id)
}
