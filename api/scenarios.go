/*
scenarios.go - Demo scenarios for testing and demonstrations

PURPOSE:

	Runs a scripted counter interaction through the real services so a
	fresh installation has a customer, a closed sale and a stock trail to
	look at. Every step goes through the same code paths as the API.

AVAILABLE SCENARIOS:

	threshold-sale:  Amount-threshold customer buys 10 x 123 and 5 x 124
	eligible-sale:   Eligible-items customer buys a mix of eligible and
	                 non-eligible products

HOW SCENARIOS WORK:
 1. Register the scenario customer, or reuse it if already registered
 2. Open a sale
 3. Add the line items (stock is reserved)
 4. Close the sale and return it

Scenarios never reset data. Running one twice creates a second sale and
takes stock again; once stock runs out the scenario fails with 409.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "threshold-sale"}

SEE ALSO:
  - handlers.go: Sale handlers
  - catalog/catalog.go: Products the scenarios buy
*/
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/sales"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenarioLine struct {
	code pos.ProductCode
	qty  decimal.Decimal
}

type scenario struct {
	ScenarioDTO
	customer sales.Registration
	lines    []scenarioLine
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "threshold-sale",
			Name:        "Threshold Sale",
			Description: "Amount-threshold customer whose sale goes over the threshold",
		},
		customer: sales.Registration{TaxID: 168027852, Name: "Customer 1", Phone: 217500255, Policy: pos.PolicyAmountThreshold},
		lines: []scenarioLine{
			{code: 123, qty: decimal.NewFromInt(10)},
			{code: 124, qty: decimal.NewFromInt(5)},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "eligible-sale",
			Name:        "Eligible Items Sale",
			Description: "Eligible-items customer buying eligible and non-eligible products",
		},
		customer: sales.Registration{TaxID: 503183504, Name: "Customer 2", Phone: 217500256, Policy: pos.PolicyEligibleItems},
		lines: []scenarioLine{
			{code: 123, qty: decimal.NewFromInt(2)},
			{code: 125, qty: decimal.NewFromInt(1)},
			{code: 126, qty: decimal.RequireFromString("0.5")},
		},
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario runs a predefined scenario and returns the closed sale.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return
	}

	var found *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			found = &scenarios[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	id, err := h.runScenario(r.Context(), *found)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load scenario", err)
		return
	}

	h.writeSale(w, r, http.StatusOK, id)
}

// =============================================================================
// SCENARIO RUNNER
// =============================================================================

func (h *Handler) runScenario(ctx context.Context, s scenario) (pos.SaleID, error) {
	if _, err := h.Customers.Register(ctx, s.customer); err != nil && !errors.Is(err, pos.ErrDuplicateKey) {
		return 0, err
	}

	id, err := h.Sales.OpenSale(ctx, s.customer.TaxID)
	if err != nil {
		return 0, err
	}
	for _, line := range s.lines {
		if _, err := h.Sales.AddLineItem(ctx, id, line.code, line.qty); err != nil {
			return 0, err
		}
	}
	if _, err := h.Sales.CloseSale(ctx, id); err != nil {
		return 0, err
	}
	return id, nil
}
