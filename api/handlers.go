/*
handlers.go - HTTP API handlers for the point-of-sale engine

PURPOSE:
  Exposes customer registration, the sale lifecycle and the stock ledger
  via REST API. Handles HTTP request/response, JSON serialization, and
  delegates to the sales and pos packages.

ENDPOINTS:
  Customers:
    POST   /api/customers                   Register customer
    GET    /api/customers/{taxID}           Find customer by tax id
    PUT    /api/customers/{taxID}           Update name, phone, policy

  Products:
    GET    /api/products/{code}             Product with current stock
    GET    /api/products/{code}/movements   Stock ledger trail
    POST   /api/products/{code}/release     Put units back into stock

  Sales:
    POST   /api/sales                       Open sale
    GET    /api/sales/{id}                  Sale with priced lines
    POST   /api/sales/{id}/items            Add line item
    POST   /api/sales/{id}/close            Close sale
    GET    /api/sales/{id}/discount         Frozen or preview discount

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Customers: registration service
  - Sales: sale lifecycle manager
  - Ledger: stock ledger, for the movement trail and releases
  - Products: product lookups by code

REQUEST FLOW:
  1. Parse path parameters and body
  2. Validate input (validator tags, then domain rules)
  3. Call the service
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Customer, product or sale not found
  - 409: Duplicate tax id, closed sale, insufficient stock
  - 500: Integrity and storage failures (logged)
  - 504: Request timed out

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - validate.go: Body decoding and validation
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/sales"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Customers *sales.Customers
	Sales     *sales.Manager
	Ledger    *pos.StockLedger
	Products  pos.ProductStore
	Logger    *zap.Logger

	validate *validatorv10.Validate
}

// NewHandler creates a new handler over the given services.
func NewHandler(customers *sales.Customers, manager *sales.Manager, ledger *pos.StockLedger, products pos.ProductStore, logger *zap.Logger) *Handler {
	return &Handler{
		Customers: customers,
		Sales:     manager,
		Ledger:    ledger,
		Products:  products,
		Logger:    logger,
		validate:  newValidator(),
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// RegisterCustomer registers a new customer.
func (h *Handler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req RegisterCustomerRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return
	}
	policy, err := pos.ParseDiscountPolicy(req.DiscountPolicy)
	if err != nil {
		h.writeDomainError(w, r, "Invalid discount policy", err)
		return
	}

	customer, err := h.Customers.Register(r.Context(), sales.Registration{
		TaxID:  pos.TaxID(req.TaxID),
		Name:   req.Name,
		Phone:  req.Phone,
		Policy: policy,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to register customer", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCustomerDTO(customer))
}

// GetCustomer returns the customer with the tax id in the path.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	taxID, err := int64Param(r, "taxID")
	if err != nil {
		h.writeDomainError(w, r, "Invalid tax id", err)
		return
	}

	customer, err := h.Customers.FindByTaxID(r.Context(), pos.TaxID(taxID))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get customer", err)
		return
	}
	if customer == nil {
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toCustomerDTO(*customer))
}

// UpdateCustomer replaces the customer's name, phone and discount policy.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	taxID, err := int64Param(r, "taxID")
	if err != nil {
		h.writeDomainError(w, r, "Invalid tax id", err)
		return
	}
	var req UpdateCustomerRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return
	}
	policy, err := pos.ParseDiscountPolicy(req.DiscountPolicy)
	if err != nil {
		h.writeDomainError(w, r, "Invalid discount policy", err)
		return
	}

	customer, err := h.Customers.Update(r.Context(), pos.TaxID(taxID), req.Name, req.Phone, policy)
	if err != nil {
		h.writeDomainError(w, r, "Failed to update customer", err)
		return
	}

	writeJSON(w, http.StatusOK, toCustomerDTO(customer))
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// GetProduct returns a product with its current stock.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := h.productFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*product))
}

// GetMovements returns the product's stock movements, oldest first.
func (h *Handler) GetMovements(w http.ResponseWriter, r *http.Request) {
	product, ok := h.productFromPath(w, r)
	if !ok {
		return
	}

	movements, err := h.Ledger.Movements(r.Context(), product.ID)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list movements", err)
		return
	}

	writeJSON(w, http.StatusOK, toMovementDTOs(movements))
}

// ReleaseStock puts units back into stock, e.g. after a sale is voided at
// the counter.
func (h *Handler) ReleaseStock(w http.ResponseWriter, r *http.Request) {
	product, ok := h.productFromPath(w, r)
	if !ok {
		return
	}
	var req ReleaseStockRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return
	}

	if err := h.Ledger.Release(r.Context(), product.ID, req.Qty, req.Reference); err != nil {
		h.writeDomainError(w, r, "Failed to release stock", err)
		return
	}
	h.Logger.Info("stock released",
		zap.Int64("product_code", int64(product.Code)),
		zap.Stringer("qty", req.Qty),
		zap.String("reference", req.Reference))

	updated, err := h.Products.ProductByID(r.Context(), product.ID)
	if err != nil || updated == nil {
		h.writeDomainError(w, r, "Failed to reload product", errors.Join(pos.ErrIntegrity, err))
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*updated))
}

func (h *Handler) productFromPath(w http.ResponseWriter, r *http.Request) (*pos.Product, bool) {
	code, err := int64Param(r, "code")
	if err != nil {
		h.writeDomainError(w, r, "Invalid product code", err)
		return nil, false
	}
	product, err := h.Products.ProductByCode(r.Context(), pos.ProductCode(code))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get product", err)
		return nil, false
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return nil, false
	}
	return product, true
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// OpenSale opens a sale for the customer with the given tax id.
func (h *Handler) OpenSale(w http.ResponseWriter, r *http.Request) {
	var req OpenSaleRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return
	}

	id, err := h.Sales.OpenSale(r.Context(), pos.TaxID(req.TaxID))
	if err != nil {
		h.writeDomainError(w, r, "Failed to open sale", err)
		return
	}

	h.writeSale(w, r, http.StatusCreated, id)
}

// GetSale returns a sale with its priced lines.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleIDFromPath(w, r)
	if !ok {
		return
	}
	h.writeSale(w, r, http.StatusOK, id)
}

// AddLineItem reserves stock and appends a line to an open sale.
func (h *Handler) AddLineItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleIDFromPath(w, r)
	if !ok {
		return
	}
	var req AddLineItemRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return
	}

	if _, err := h.Sales.AddLineItem(r.Context(), id, pos.ProductCode(req.ProductCode), req.Qty); err != nil {
		h.writeDomainError(w, r, "Failed to add line item", err)
		return
	}

	h.writeSale(w, r, http.StatusCreated, id)
}

// CloseSale closes a sale, freezing its total and discount.
func (h *Handler) CloseSale(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleIDFromPath(w, r)
	if !ok {
		return
	}

	if _, err := h.Sales.CloseSale(r.Context(), id); err != nil {
		h.writeDomainError(w, r, "Failed to close sale", err)
		return
	}

	h.writeSale(w, r, http.StatusOK, id)
}

// GetDiscount returns the sale's discount.
func (h *Handler) GetDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleIDFromPath(w, r)
	if !ok {
		return
	}

	summary, err := h.Sales.GetSale(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get discount", err)
		return
	}

	writeJSON(w, http.StatusOK, DiscountDTO{
		SaleID:   int64(id),
		Discount: summary.Discount,
		Frozen:   !summary.Sale.IsOpen(),
	})
}

func (h *Handler) saleIDFromPath(w http.ResponseWriter, r *http.Request) (pos.SaleID, bool) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.writeDomainError(w, r, "Invalid sale id", err)
		return 0, false
	}
	return pos.SaleID(id), true
}

func (h *Handler) writeSale(w http.ResponseWriter, r *http.Request, status int, id pos.SaleID) {
	summary, err := h.Sales.GetSale(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get sale", err)
		return
	}
	writeJSON(w, status, toSaleDTO(summary))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeErrorDetails(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	switch {
	case pos.IsClientError(err):
		return http.StatusBadRequest
	case pos.IsNotFound(err):
		return http.StatusNotFound
	case pos.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with the status it maps to. Server-side
// failures are logged with the request id; client errors are not.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(message,
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	var details any = err.Error()
	var ve *pos.ValidationError
	if errors.As(err, &ve) {
		details = map[string]string{ve.Field: ve.Reason}
	}
	var se *pos.InsufficientStockError
	if errors.As(err, &se) {
		details = map[string]any{
			"available": se.Available,
			"requested": se.Requested,
		}
	}
	writeErrorDetails(w, status, message, details)
}

func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &pos.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a number", raw)}
	}
	return v, nil
}
