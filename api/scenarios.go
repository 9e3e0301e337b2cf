/*
scenarios.go - Demo wallets for testing and demonstrations

PURPOSE:

	Provides pre-built holders whose owned cards and purchase history show
	specific features: ownership grouping, miles ranking, and caps that
	shrink as the month goes on.

AVAILABLE SCENARIOS:

	everyday-spender: Dining and supermarket cards, a few meals recorded
	frequent-flyer:   Miles cards and a no-FX-fee card, overseas spend recorded
	cap-hunter:       The designated-merchant cap almost used up this month

HOW SCENARIOS WORK:
 1. Reset database (clear holders, usage and overrides)
 2. Give the scenario's holder its cards
 3. Record purchases through the engine, dated this month, so caps apply

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "cap-hunter"}

	POST /api/calculate
	{"merchant": "Sushiro", "amount": 400, "user_id": "demo-caps"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: RecordUsage follows the same path as scenario purchases
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/card-rewards/catalog"
	"github.com/warp/card-rewards/engine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type demoPurchase struct {
	card     catalog.CardID
	merchant string
	amount   string
	method   catalog.PaymentMethod
	foreign  bool
	day      int // day of the current month, clamped to today
}

type demoScenario struct {
	ScenarioDTO
	cards     []catalog.CardID
	purchases []demoPurchase
}

var scenarios = []demoScenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "everyday-spender",
			Name:        "Everyday Spender",
			Description: "Dining and supermarket cards with a few meals already on them",
			HolderID:    "demo-everyday",
		},
		cards: []catalog.CardID{"hsbc-red", "citi-rewards", "hangseng-enjoy"},
		purchases: []demoPurchase{
			{card: "hsbc-red", merchant: "Sushiro", amount: "320", day: 1},
			{card: "citi-rewards", merchant: "Tam Jai", amount: "85", method: catalog.PaymentApplePay, day: 2},
			{card: "hangseng-enjoy", merchant: "Wellcome", amount: "640", day: 3},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "frequent-flyer",
			Name:        "Frequent Flyer",
			Description: "Miles cards and a no-FX-fee card; ask with reward_preference=miles",
			HolderID:    "demo-flyer",
		},
		cards: []catalog.CardID{"hsbc-everymile", "hsbc-pulse", "sc-simply-cash"},
		purchases: []demoPurchase{
			{card: "hsbc-pulse", merchant: "Overseas Shopping", amount: "12000", foreign: true, day: 1},
			{card: "hsbc-everymile", merchant: "Starbucks", amount: "58", day: 2},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "cap-hunter",
			Name:        "Cap Hunter",
			Description: "Most of the monthly designated-merchant cap already used",
			HolderID:    "demo-caps",
		},
		cards: []catalog.CardID{"hsbc-red", "boc-cheers", "sc-simply-cash"},
		purchases: []demoPurchase{
			{card: "hsbc-red", merchant: "Sushiro", amount: "600", day: 1},
			{card: "hsbc-red", merchant: "Starbucks", amount: "400", day: 2},
		},
	},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var scenario *demoScenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			scenario = &scenarios[i]
		}
	}
	if scenario == nil {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := h.LoadOverrides(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh catalog", err)
		return
	}

	if err := h.loadScenario(ctx, *scenario); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = scenario.ID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "loaded",
		"scenario":  scenario.ID,
		"holder_id": scenario.HolderID,
	})
}

// =============================================================================
// SCENARIO LOADER
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, s demoScenario) error {
	if err := h.Store.ReplaceOwnedCards(ctx, s.HolderID, s.cards); err != nil {
		return err
	}

	snap := h.Catalog()
	today := h.Now()
	for i, p := range s.purchases {
		c, ok := snap.Card(p.card)
		if !ok {
			return fmt.Errorf("scenario %s: card %s not in catalog", s.ID, p.card)
		}

		day := p.day
		if day > today.Day() {
			day = today.Day()
		}
		opts := engine.Options{
			Amount:          decimal.RequireFromString(p.amount),
			PaymentMethod:   p.method,
			ForeignCurrency: p.foreign,
			Date:            time.Date(today.Year(), today.Month(), day, 12, 0, 0, 0, time.UTC),
		}

		res, err := h.resultForCard(ctx, s.HolderID, snap, c, p.merchant, opts)
		if err != nil {
			return fmt.Errorf("scenario %s purchase %d: %w", s.ID, i+1, err)
		}
		key := fmt.Sprintf("scenario-%s-%d", s.ID, i+1)
		if _, err := h.Ledger.RecordWithKey(ctx, key, s.HolderID, res, opts.Amount, opts.Date); err != nil {
			return err
		}
	}
	return nil
}
