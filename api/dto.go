/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract: storage ids stay
  internal where a business key exists, enums travel as names, and money
  travels as decimal strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Customer:  CustomerDTO, RegisterCustomerRequest, UpdateCustomerRequest
  Product:   ProductDTO, MovementDTO, ReleaseStockRequest
  Sale:      SaleDTO, LineItemDTO, DiscountDTO, OpenSaleRequest, AddLineItemRequest
  Scenarios: ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry validator/v10 tags. Rules a tag cannot express
  (positive decimals) are struct-level validations registered in
  validate.go. Domain rules (tax id checksum) stay in the domain.

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: Validator setup
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/sales"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID             int64  `json:"id"`
	TaxID          int64  `json:"tax_id"`
	Name           string `json:"name"`
	Phone          int64  `json:"phone"`
	DiscountPolicy string `json:"discount_policy"`
}

// RegisterCustomerRequest is the request to register a customer.
type RegisterCustomerRequest struct {
	TaxID          int64  `json:"tax_id" validate:"required,gt=0"`
	Name           string `json:"name" validate:"required,max=255"`
	Phone          int64  `json:"phone" validate:"required"`
	DiscountPolicy string `json:"discount_policy" validate:"required,oneof=none amount_threshold eligible_items"`
}

// UpdateCustomerRequest replaces a customer's mutable fields.
type UpdateCustomerRequest struct {
	Name           string `json:"name" validate:"required,max=255"`
	Phone          int64  `json:"phone" validate:"required"`
	DiscountPolicy string `json:"discount_policy" validate:"required,oneof=none amount_threshold eligible_items"`
}

func toCustomerDTO(c pos.Customer) CustomerDTO {
	return CustomerDTO{
		ID:             int64(c.ID),
		TaxID:          int64(c.TaxID),
		Name:           c.Name,
		Phone:          c.Phone,
		DiscountPolicy: c.Policy.String(),
	}
}

// =============================================================================
// PRODUCTS
// =============================================================================

// ProductDTO represents a product in API responses.
type ProductDTO struct {
	Code                int64           `json:"code"`
	Description         string          `json:"description"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	Stock               decimal.Decimal `json:"stock"`
	EligibleForDiscount bool            `json:"eligible_for_discount"`
}

// MovementDTO is one entry of a product's stock trail.
type MovementDTO struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Qty       decimal.Decimal `json:"qty"`
	Reference string          `json:"reference"`
	CreatedAt string          `json:"created_at"`
}

// ReleaseStockRequest puts units back into stock.
type ReleaseStockRequest struct {
	Qty       decimal.Decimal `json:"qty"`
	Reference string          `json:"reference" validate:"required,max=255"`
}

func toProductDTO(p pos.Product) ProductDTO {
	return ProductDTO{
		Code:                int64(p.Code),
		Description:         p.Description,
		UnitPrice:           p.UnitPrice,
		Stock:               p.StockQty,
		EligibleForDiscount: p.EligibleForDiscount,
	}
}

func toMovementDTOs(ms []pos.StockMovement) []MovementDTO {
	dtos := make([]MovementDTO, len(ms))
	for i, m := range ms {
		dtos[i] = MovementDTO{
			ID:        m.ID,
			Type:      string(m.Type),
			Qty:       m.Qty,
			Reference: m.Reference,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		}
	}
	return dtos
}

// =============================================================================
// SALES
// =============================================================================

// OpenSaleRequest opens a sale for a registered customer.
type OpenSaleRequest struct {
	TaxID int64 `json:"tax_id" validate:"required,gt=0"`
}

// AddLineItemRequest adds qty units of a product to an open sale.
type AddLineItemRequest struct {
	ProductCode int64           `json:"product_code" validate:"required,gt=0"`
	Qty         decimal.Decimal `json:"qty"`
}

// LineItemDTO is a priced line of a sale.
type LineItemDTO struct {
	ID          int64           `json:"id"`
	ProductCode int64           `json:"product_code"`
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// SaleDTO represents a sale in API responses.
type SaleDTO struct {
	ID        int64           `json:"id"`
	TaxID     int64           `json:"tax_id"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at"`
	ClosedAt  *string         `json:"closed_at,omitempty"`
	Total     decimal.Decimal `json:"total"`
	Discount  decimal.Decimal `json:"discount"`
	Lines     []LineItemDTO   `json:"lines"`
}

// DiscountDTO is the discount of a sale. Frozen is true once the sale is
// closed; before that the amount is a preview.
type DiscountDTO struct {
	SaleID   int64           `json:"sale_id"`
	Discount decimal.Decimal `json:"discount"`
	Frozen   bool            `json:"frozen"`
}

func toSaleDTO(s sales.Summary) SaleDTO {
	dto := SaleDTO{
		ID:        int64(s.Sale.ID),
		TaxID:     int64(s.Customer.TaxID),
		Status:    s.Sale.Status.String(),
		CreatedAt: s.Sale.CreatedAt.Format(time.RFC3339),
		Total:     s.Total,
		Discount:  s.Discount,
		Lines:     make([]LineItemDTO, len(s.Lines)),
	}
	if s.Sale.ClosedAt != nil {
		closed := s.Sale.ClosedAt.Format(time.RFC3339)
		dto.ClosedAt = &closed
	}
	for i, l := range s.Lines {
		dto.Lines[i] = LineItemDTO{
			ID:          int64(l.Item.ID),
			ProductCode: int64(l.Product.Code),
			Description: l.Product.Description,
			Qty:         l.Item.Qty,
			UnitPrice:   l.Product.UnitPrice,
			Amount:      l.Amount(),
		}
	}
	return dto
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest runs a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
