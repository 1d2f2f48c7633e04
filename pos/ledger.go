/*
ledger.go - Stock ledger

PURPOSE:
  The StockLedger is the only component allowed to change a product's
  stock. Every change is a read-check-write inside one store transaction
  and leaves an immutable StockMovement behind.

CRITICAL INVARIANTS:
  1. NON-NEGATIVE: StockQty >= 0 at all times
  2. ATOMIC: The check and the decrement happen in the same transaction, so
     two concurrent reservations can never both pass the check against the
     same stock (no lost update, no overselling)
  3. APPEND-ONLY MOVEMENTS: Corrections are Release movements, not edits

CANCELLATION:
  A context cancelled before the transaction commits aborts the
  reservation. Once committed, only an explicit Release gives stock back.

COMPOSITION:
  Reserve opens its own transaction. ReserveIn runs inside a transaction the
  caller already holds, which is how the sale manager makes "decrement stock"
  and "record line item" a single atomic unit.

EXAMPLE FLOW:
  Product 123 has 10 units.
  1. Sale A reserves 7: movement reserve 7, stock 3
  2. Sale B reserves 5: InsufficientStockError{Available: 3, Requested: 5}
  3. Sale A is voided by an operator: movement release 7, stock 10
*/
package pos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// STOCK LEDGER
// =============================================================================

type StockLedger struct {
	Store TxStore

	now   func() time.Time
	newID func() string
}

func NewStockLedger(store TxStore) *StockLedger {
	return &StockLedger{
		Store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Reserve atomically takes qty units of the product out of stock.
func (l *StockLedger) Reserve(ctx context.Context, productID ProductID, qty decimal.Decimal, reference string) error {
	return l.Store.WithTx(ctx, func(s Store) error {
		return l.ReserveIn(ctx, s, productID, qty, reference)
	})
}

// ReserveIn performs the reservation inside the caller's transaction s.
func (l *StockLedger) ReserveIn(ctx context.Context, s Store, productID ProductID, qty decimal.Decimal, reference string) error {
	if !qty.IsPositive() {
		return invalid("qty", "must be positive")
	}
	p, err := l.load(ctx, s, productID)
	if err != nil {
		return err
	}
	if p.StockQty.LessThan(qty) {
		return &InsufficientStockError{
			ProductID: productID,
			Available: p.StockQty,
			Requested: qty,
		}
	}
	return l.apply(ctx, s, p, MovementReserve, qty, reference)
}

// Release puts qty units back into stock. It is the compensating operation
// for a committed Reserve.
func (l *StockLedger) Release(ctx context.Context, productID ProductID, qty decimal.Decimal, reference string) error {
	if !qty.IsPositive() {
		return invalid("qty", "must be positive")
	}
	return l.Store.WithTx(ctx, func(s Store) error {
		p, err := l.load(ctx, s, productID)
		if err != nil {
			return err
		}
		return l.apply(ctx, s, p, MovementRelease, qty, reference)
	})
}

// Available returns the product's current stock.
func (l *StockLedger) Available(ctx context.Context, productID ProductID) (decimal.Decimal, error) {
	p, err := l.load(ctx, l.Store, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return p.StockQty, nil
}

// Movements returns the product's movement history, oldest first.
func (l *StockLedger) Movements(ctx context.Context, productID ProductID) ([]StockMovement, error) {
	return l.Store.Movements(ctx, productID)
}

func (l *StockLedger) load(ctx context.Context, s Store, productID ProductID) (*Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.ProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}
	return p, nil
}

func (l *StockLedger) apply(ctx context.Context, s Store, p *Product, typ MovementType, qty decimal.Decimal, reference string) error {
	m := StockMovement{
		ID:        l.newID(),
		ProductID: p.ID,
		Type:      typ,
		Qty:       qty,
		Reference: reference,
		CreatedAt: l.now(),
	}
	return s.ApplyStockMovement(ctx, m, p.StockQty.Add(m.Delta()))
}
