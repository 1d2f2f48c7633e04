/*
Package catalog provides product seed data.

PURPOSE:
  Products are not created through the engine's operations; they come from
  seed data. This package converts JSON product definitions into
  pos.Product values and loads them into a store. A built-in catalog is
  used when no file is configured.

JSON SCHEMA:
  [
    {
      "code": 123,
      "description": "Coffee beans 1kg",
      "unit_price": "12.50",
      "stock": "100",
      "eligible_for_discount": true
    }
  ]

  unit_price and stock accept JSON strings or numbers.

IDEMPOTENT LOADING:
  Load skips products whose code already exists, so a durable database can
  be seeded on every start. Stock of an existing product is never touched.

USAGE:
  products, err := catalog.ReadFile("catalog.json")
  loaded, err := catalog.Load(ctx, store, products)
*/
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ProductJSON is the JSON representation of a seeded product.
type ProductJSON struct {
	Code                int64           `json:"code"`
	Description         string          `json:"description"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	Stock               decimal.Decimal `json:"stock"`
	EligibleForDiscount bool            `json:"eligible_for_discount"`
}

// =============================================================================
// PARSING
// =============================================================================

// Parse decodes a JSON array of products and validates every entry.
func Parse(data []byte) ([]pos.Product, error) {
	var entries []ProductJSON
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}

	products := make([]pos.Product, 0, len(entries))
	seen := make(map[int64]bool, len(entries))
	for i, pj := range entries {
		p, err := FromJSON(pj)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		if seen[pj.Code] {
			return nil, fmt.Errorf("catalog entry %d: %w", i, &pos.DuplicateKeyError{Entity: "product", Key: fmt.Sprint(pj.Code)})
		}
		seen[pj.Code] = true
		products = append(products, p)
	}
	return products, nil
}

// ReadFile reads and parses a catalog file.
func ReadFile(path string) ([]pos.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// FromJSON converts one entry, rejecting values no product may have.
func FromJSON(pj ProductJSON) (pos.Product, error) {
	if pj.Code <= 0 {
		return pos.Product{}, &pos.ValidationError{Field: "code", Reason: "must be positive"}
	}
	if strings.TrimSpace(pj.Description) == "" {
		return pos.Product{}, &pos.ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if !pj.UnitPrice.IsPositive() {
		return pos.Product{}, &pos.ValidationError{Field: "unit_price", Reason: "must be positive"}
	}
	if pj.Stock.IsNegative() {
		return pos.Product{}, &pos.ValidationError{Field: "stock", Reason: "must not be negative"}
	}
	return pos.Product{
		Code:                pos.ProductCode(pj.Code),
		Description:         strings.TrimSpace(pj.Description),
		UnitPrice:           pj.UnitPrice,
		StockQty:            pj.Stock,
		EligibleForDiscount: pj.EligibleForDiscount,
	}, nil
}

// =============================================================================
// DEFAULT CATALOG
// =============================================================================

// Default returns the built-in catalog.
func Default() []pos.Product {
	return []pos.Product{
		{Code: 123, Description: "Coffee beans 1kg", UnitPrice: decimal.RequireFromString("12.50"), StockQty: decimal.NewFromInt(100), EligibleForDiscount: true},
		{Code: 124, Description: "Paper filters x100", UnitPrice: decimal.RequireFromString("3.20"), StockQty: decimal.NewFromInt(50), EligibleForDiscount: false},
		{Code: 125, Description: "Ceramic mug", UnitPrice: decimal.RequireFromString("8.00"), StockQty: decimal.NewFromInt(20), EligibleForDiscount: true},
		{Code: 126, Description: "Loose leaf tea 250g", UnitPrice: decimal.RequireFromString("6.75"), StockQty: decimal.RequireFromString("35.5"), EligibleForDiscount: false},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load inserts the products whose code is not in the store yet and returns
// how many were inserted.
func Load(ctx context.Context, store pos.ProductStore, products []pos.Product) (int, error) {
	loaded := 0
	for _, p := range products {
		existing, err := store.ProductByCode(ctx, p.Code)
		if err != nil {
			return loaded, fmt.Errorf("seed product %d: %w", p.Code, err)
		}
		if existing != nil {
			continue
		}
		if _, err := store.InsertProduct(ctx, p); err != nil {
			if errors.Is(err, pos.ErrDuplicateKey) {
				continue
			}
			return loaded, fmt.Errorf("seed product %d: %w", p.Code, err)
		}
		loaded++
	}
	return loaded, nil
}
