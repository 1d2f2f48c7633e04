/*
Package pos provides the core point-of-sale transaction engine.

PURPOSE:
  This package contains the domain types and algorithms behind a sale:
  customer identity, product stock, the sale lifecycle and the discount
  policies applied to it. Persistence lives behind the Store interfaces so
  the same engine runs against an in-memory store in tests and SQLite in
  production.

KEY CONCEPTS IN THIS FILE (types.go):
  - Customer: A registered buyer, identified by a checksummed tax id
  - Product: A catalog item with a unit price and a stock quantity
  - Sale: A purchase in progress (OPEN) or finished (CLOSED)
  - LineItem: One product-quantity entry of a sale
  - StockMovement: An immutable record of a stock change

DESIGN PRINCIPLES:
  1. Precision: Money and quantities use decimal.Decimal
  2. Type Safety: Distinct ID types prevent mixing customers, products and sales
  3. Tagged enums: DiscountPolicy and SaleStatus are Go types; storage codes
     ('O'/'C', 1/2/3) only exist inside the store implementations

SEE ALSO:
  - errors.go: Error taxonomy
  - store.go: Persistence interfaces
  - ledger.go: Stock ledger
  - discount.go: Discount policy engine
*/
package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID int64
type ProductID int64
type SaleID int64
type LineItemID int64

// TaxID is the customer's 9-digit business key. See IsValidTaxID.
type TaxID int64

// ProductCode is the external key printed on the product.
type ProductCode int64

// =============================================================================
// DISCOUNT POLICY
// =============================================================================

// DiscountPolicy selects how a customer's sales are discounted.
type DiscountPolicy int

const (
	PolicyNone DiscountPolicy = iota + 1
	PolicyAmountThreshold
	PolicyEligibleItems
)

var policyNames = map[DiscountPolicy]string{
	PolicyNone:            "none",
	PolicyAmountThreshold: "amount_threshold",
	PolicyEligibleItems:   "eligible_items",
}

func (p DiscountPolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether p is one of the known policies.
func (p DiscountPolicy) Valid() bool {
	_, ok := policyNames[p]
	return ok
}

// ParseDiscountPolicy maps a policy name back to its value.
func ParseDiscountPolicy(name string) (DiscountPolicy, error) {
	for p, n := range policyNames {
		if n == name {
			return p, nil
		}
	}
	return 0, &ValidationError{Field: "discount_policy", Reason: "unknown policy " + name}
}

// =============================================================================
// ENTITIES
// =============================================================================

type Customer struct {
	ID     CustomerID
	TaxID  TaxID
	Name   string
	Phone  int64
	Policy DiscountPolicy
}

type Product struct {
	ID                  ProductID
	Code                ProductCode
	Description         string
	UnitPrice           decimal.Decimal
	StockQty            decimal.Decimal
	EligibleForDiscount bool
}

// =============================================================================
// SALE
// =============================================================================

type SaleStatus int

const (
	SaleOpen SaleStatus = iota + 1
	SaleClosed
)

func (s SaleStatus) String() string {
	switch s {
	case SaleOpen:
		return "open"
	case SaleClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sale is owned by the sale lifecycle manager. Total and Discount are only
// meaningful once Status is SaleClosed; they are frozen at that point.
type Sale struct {
	ID         SaleID
	CustomerID CustomerID
	CreatedAt  time.Time
	Status     SaleStatus
	Total      decimal.Decimal
	Discount   decimal.Decimal
	ClosedAt   *time.Time
}

func (s Sale) IsOpen() bool { return s.Status == SaleOpen }

// LineItem is append-only: never updated, never removed.
type LineItem struct {
	ID        LineItemID
	SaleID    SaleID
	ProductID ProductID
	Qty       decimal.Decimal
}

// PricedLine pairs a line item with the product it references.
type PricedLine struct {
	Item    LineItem
	Product Product
}

// Amount is qty * unit price.
func (l PricedLine) Amount() decimal.Decimal {
	return l.Item.Qty.Mul(l.Product.UnitPrice)
}

// =============================================================================
// STOCK MOVEMENT - Append-only record of a stock change
// =============================================================================

type MovementType string

const (
	MovementReserve MovementType = "reserve" // Stock taken by a sale
	MovementRelease MovementType = "release" // Compensation, stock given back
)

type StockMovement struct {
	ID        string
	ProductID ProductID
	Type      MovementType
	Qty       decimal.Decimal // Always positive; Type carries the sign
	Reference string
	CreatedAt time.Time
}

// Delta is the signed change the movement applies to stock.
func (m StockMovement) Delta() decimal.Decimal {
	if m.Type == MovementReserve {
		return m.Qty.Neg()
	}
	return m.Qty
}
