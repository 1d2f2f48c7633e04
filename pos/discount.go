/*
discount.go - Discount policy engine

PURPOSE:
  Computes the discount of a sale from its priced line items, the
  customer's DiscountPolicy and the process-wide DiscountConfig.

POLICIES:
  PolicyNone:
    - Always 0
  PolicyAmountThreshold:
    - total = sum(qty * unitPrice) over ALL lines
    - discount = total * AmountThresholdPercentage if total > AmountThreshold
    - strict comparison: a total equal to the threshold gets nothing
  PolicyEligibleItems:
    - eligible = sum(qty * unitPrice) over lines whose product is eligible
    - discount = eligible * EligiblePercentage, no threshold

EXTENDING:
  Each policy is a DiscountStrategy. A new policy is a new strategy plus a
  case in StrategyFor; the sale manager does not change.

PURITY:
  ComputeDiscount performs no I/O. Resolving line items to products is a
  separate step (PriceLines) because a failed lookup there is an integrity
  error that must reach the caller.
*/
package pos

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// DiscountConfig is built once at startup and never mutated afterwards.
// Pass it by value.
type DiscountConfig struct {
	AmountThreshold           decimal.Decimal
	AmountThresholdPercentage decimal.Decimal
	EligiblePercentage        decimal.Decimal
}

// DefaultDiscountConfig returns threshold 50, 10% above it, 15% on eligible items.
func DefaultDiscountConfig() DiscountConfig {
	return DiscountConfig{
		AmountThreshold:           decimal.NewFromInt(50),
		AmountThresholdPercentage: decimal.RequireFromString("0.1"),
		EligiblePercentage:        decimal.RequireFromString("0.15"),
	}
}

func (c DiscountConfig) Validate() error {
	if c.AmountThreshold.IsNegative() {
		return invalid("amount_threshold", "must not be negative")
	}
	if !isFraction(c.AmountThresholdPercentage) {
		return invalid("amount_threshold_percentage", "must be in [0,1]")
	}
	if !isFraction(c.EligiblePercentage) {
		return invalid("eligible_percentage", "must be in [0,1]")
	}
	return nil
}

func isFraction(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(1))
}

// =============================================================================
// STRATEGIES
// =============================================================================

type DiscountStrategy interface {
	Discount(lines []PricedLine, cfg DiscountConfig) decimal.Decimal
}

type noDiscount struct{}

func (noDiscount) Discount([]PricedLine, DiscountConfig) decimal.Decimal {
	return decimal.Zero
}

type amountThresholdDiscount struct{}

func (amountThresholdDiscount) Discount(lines []PricedLine, cfg DiscountConfig) decimal.Decimal {
	total := SaleTotal(lines)
	if total.GreaterThan(cfg.AmountThreshold) {
		return total.Mul(cfg.AmountThresholdPercentage)
	}
	return decimal.Zero
}

type eligibleItemsDiscount struct{}

func (eligibleItemsDiscount) Discount(lines []PricedLine, cfg DiscountConfig) decimal.Decimal {
	eligible := decimal.Zero
	for _, l := range lines {
		if l.Product.EligibleForDiscount {
			eligible = eligible.Add(l.Amount())
		}
	}
	return eligible.Mul(cfg.EligiblePercentage)
}

// StrategyFor returns the strategy implementing policy. Unknown policies get
// no discount; they are rejected at registration, so this only matters for
// rows written by something else.
func StrategyFor(policy DiscountPolicy) DiscountStrategy {
	switch policy {
	case PolicyAmountThreshold:
		return amountThresholdDiscount{}
	case PolicyEligibleItems:
		return eligibleItemsDiscount{}
	default:
		return noDiscount{}
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// ComputeDiscount applies the strategy for policy to lines.
func ComputeDiscount(policy DiscountPolicy, lines []PricedLine, cfg DiscountConfig) decimal.Decimal {
	return StrategyFor(policy).Discount(lines, cfg)
}

// SaleTotal is sum(qty * unitPrice) over lines.
func SaleTotal(lines []PricedLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount())
	}
	return total
}

// PriceLines resolves the product of every item. Items reference products by
// surrogate id, so a missing product is an IntegrityError, never a zero line.
func PriceLines(ctx context.Context, products ProductStore, items []LineItem) ([]PricedLine, error) {
	lines := make([]PricedLine, 0, len(items))
	for _, item := range items {
		p, err := products.ProductByID(ctx, item.ProductID)
		if err != nil {
			return nil, &IntegrityError{
				Op:     "price_lines",
				Detail: fmt.Sprintf("loading product %d of sale %d", item.ProductID, item.SaleID),
				Err:    err,
			}
		}
		if p == nil {
			return nil, &IntegrityError{
				Op:     "price_lines",
				Detail: fmt.Sprintf("line item %d of sale %d references missing product %d", item.ID, item.SaleID, item.ProductID),
			}
		}
		lines = append(lines, PricedLine{Item: item, Product: *p})
	}
	return lines, nil
}
