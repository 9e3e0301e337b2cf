/*
handlers.go - HTTP API handlers for the card reward engine

PURPOSE:
  Exposes the reward engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine, the catalog snapshot and
  the usage ledger.

ENDPOINTS:
  Calculation:
    POST   /api/calculate                  Rank every card for one purchase

  Catalog:
    GET    /api/cards                      List cards (?all=true includes hidden)
    GET    /api/cards/{id}                 Card with its rules
    GET    /api/merchants                  List merchants (?q= resolves a name)
    GET    /api/categories                 List categories
    GET    /api/catalog/issues             Validation issues found at load
    GET    /api/rankings                   Leaderboard categories
    GET    /api/rankings/{category}        Best cards for a category (?limit=)

  Admin:
    PUT    /api/admin/cards/{id}/override  Cosmetic override (image, note, hidden)

  Holders:
    GET    /api/users/{id}/cards           Owned cards
    POST   /api/users/{id}/cards           Add an owned card
    DELETE /api/users/{id}/cards/{cardID}  Remove an owned card
    GET    /api/users/{id}/usage           Recorded purchases
    POST   /api/users/{id}/usage           Record a purchase against its caps

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: overrides, owned cards, usage
  - Ledger: cap accounting on top of Store
  - Calculator: engine entry point with logging
  - The authoritative catalog and the merged snapshot served to requests

  The snapshot is replaced wholesale when overrides change, so a request
  works against one consistent catalog from start to finish.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate idempotency key)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo wallets
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/card-rewards/catalog"
	"github.com/warp/card-rewards/engine"
	"github.com/warp/card-rewards/ledger"
	"github.com/warp/card-rewards/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Ledger     *ledger.Ledger
	Calculator *engine.Calculator
	Logger     *slog.Logger

	// Now is the clock used when a request carries no date.
	Now func() time.Time

	base   *catalog.Snapshot // authoritative, never mutated
	issues []catalog.Issue

	mu              sync.RWMutex
	snapshot        *catalog.Snapshot // base with overrides merged
	currentScenario string
}

// NewHandler creates a handler serving base. Call LoadOverrides before
// serving to apply stored cosmetic overrides.
func NewHandler(store *sqlite.Store, base *catalog.Snapshot, issues []catalog.Issue, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:      store,
		Ledger:     ledger.New(store),
		Calculator: engine.NewCalculator(logger),
		Logger:     logger,
		Now:        time.Now,
		base:       base,
		issues:     issues,
		snapshot:   base,
	}
}

// LoadOverrides merges the stored overrides onto the authoritative catalog
// and swaps in the result.
func (h *Handler) LoadOverrides(ctx context.Context) error {
	overrides, err := h.Store.Overrides(ctx)
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	merged := h.base.WithCards(catalog.Merge(h.base.Cards, overrides))

	h.mu.Lock()
	h.snapshot = merged
	h.mu.Unlock()
	return nil
}

// Catalog returns the snapshot requests are served from.
func (h *Handler) Catalog() *catalog.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}

// =============================================================================
// CALCULATION
// =============================================================================

// Calculate ranks every visible card for one purchase.
// POST /api/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Merchant) == "" {
		writeError(w, http.StatusBadRequest, "merchant is required", nil)
		return
	}

	pref := engine.RewardPreference(strings.ToLower(strings.TrimSpace(req.RewardPreference)))
	switch pref {
	case "":
		pref = engine.PreferCash
	case engine.PreferCash, engine.PreferMiles:
	default:
		writeError(w, http.StatusBadRequest, "reward_preference must be cash or miles", nil)
		return
	}

	opts, err := h.purchaseOptions(req.Amount, req.PaymentMethod, req.Online, req.Foreign, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid purchase", err)
		return
	}
	opts.RewardPreference = pref

	ctx := r.Context()
	snap := h.Catalog()
	cards := snap.Cards
	if req.UserID != "" {
		cards, err = h.Ledger.AdjustCaps(ctx, req.UserID, cards, opts.Date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to apply usage to caps", err)
			return
		}
	}

	out, err := h.Calculator.Calculate(ctx, engine.Context{MerchantName: req.Merchant, Options: opts}, snap.WithCards(cards))
	if err != nil {
		if engine.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid purchase", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Calculation failed", err)
		return
	}

	var owned []catalog.CardID
	if req.UserID != "" {
		owned, err = h.Store.OwnedCards(ctx, req.UserID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load owned cards", err)
			return
		}
	}
	ownedSet := make(map[catalog.CardID]bool, len(owned))
	for _, id := range owned {
		ownedSet[id] = true
	}

	resp := CalculateResponse{
		Merchant:     toMerchantDTO(out.Merchant),
		Date:         opts.Date.Format(dateLayout),
		Online:       out.Scenario.Online,
		Foreign:      out.Scenario.Foreign,
		Results:      toResultDTOs(out.Results, ownedSet),
		CapsAdjusted: req.UserID != "",
	}
	if len(owned) > 0 {
		mine, others := engine.GroupByOwnership(out.Results, owned)
		resp.Owned = toResultDTOs(mine, ownedSet)
		resp.Others = toResultDTOs(others, ownedSet)
	}
	if pref == engine.PreferMiles {
		resp.MilesRanked = toResultDTOs(engine.MilesRanking(out.Results), ownedSet)
	}
	for _, s := range out.Skipped {
		resp.Skipped = append(resp.Skipped, SkippedCardDTO{CardID: string(s.CardID), Reason: s.Err.Error()})
	}

	writeJSON(w, http.StatusOK, resp)
}

// purchaseOptions validates the fields shared by calculation and usage
// recording.
func (h *Handler) purchaseOptions(amount decimal.Decimal, method string, online, foreign bool, date string) (engine.Options, error) {
	if !amount.IsPositive() {
		return engine.Options{}, &engine.AmountError{Amount: amount}
	}

	on := h.Now()
	if date != "" {
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return engine.Options{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", date, err)
		}
		on = d
	}

	return engine.Options{
		Amount:           amount,
		PaymentMethod:    catalog.PaymentMethod(strings.ToLower(strings.TrimSpace(method))),
		IsOnlineScenario: online,
		ForeignCurrency:  foreign,
		Date:             on,
	}, nil
}

// =============================================================================
// CATALOG
// =============================================================================

// ListCards returns the catalog's cards without rules.
// GET /api/cards
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	snap := h.Catalog()
	cards := snap.VisibleCards()
	if r.URL.Query().Get("all") == "true" {
		cards = snap.Cards
	}

	dtos := make([]CardDTO, len(cards))
	for i, c := range cards {
		dtos[i] = toCardDTO(c, false)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCard returns a single card with its rules.
// GET /api/cards/{id}
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	id := catalog.CardID(chi.URLParam(r, "id"))

	c, ok := h.Catalog().Card(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Card not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCardDTO(c, true))
}

// ListMerchants returns the merchants, or the single merchant a name
// resolves to when ?q= is given.
// GET /api/merchants
func (h *Handler) ListMerchants(w http.ResponseWriter, r *http.Request) {
	snap := h.Catalog()

	if q := r.URL.Query().Get("q"); q != "" {
		m := engine.ResolveMerchant(q, snap.Merchants)
		writeJSON(w, http.StatusOK, []MerchantDTO{toMerchantDTO(m)})
		return
	}

	dtos := make([]MerchantDTO, len(snap.Merchants))
	for i, m := range snap.Merchants {
		dtos[i] = toMerchantDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListCategories returns the categories.
// GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	snap := h.Catalog()

	dtos := make([]CategoryDTO, len(snap.Categories))
	for i, c := range snap.Categories {
		dtos[i] = CategoryDTO{ID: string(c.ID), Name: c.Name, IsForeign: c.IsForeign}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListCatalogIssues returns what validation reported when the catalog was
// loaded. Cards with errors are not served.
// GET /api/catalog/issues
func (h *Handler) ListCatalogIssues(w http.ResponseWriter, r *http.Request) {
	issues := h.issues
	if issues == nil {
		issues = []catalog.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

// ListRankingCategories returns the categories with a leaderboard.
// GET /api/rankings
func (h *Handler) ListRankingCategories(w http.ResponseWriter, r *http.Request) {
	dtos := make([]RankingCategoryDTO, len(engine.RankingCategories))
	for i, c := range engine.RankingCategories {
		dtos[i] = RankingCategoryDTO{ID: string(c.ID), Name: c.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRankings returns the best visible cards for a spending category.
// GET /api/rankings/{category}?limit=
func (h *Handler) GetRankings(w http.ResponseWriter, r *http.Request) {
	id := engine.RankingCategory(chi.URLParam(r, "category"))

	limit := engine.DefaultRankingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	rankings, err := engine.RankByCategory(id, h.Catalog().Cards, limit)
	if errors.Is(err, engine.ErrUnknownRankingCategory) {
		writeError(w, http.StatusNotFound, "Ranking category not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to rank cards", err)
		return
	}

	cfg, _ := engine.LookupRankingCategory(id)
	writeJSON(w, http.StatusOK, RankingsResponse{
		Category: RankingCategoryDTO{ID: string(cfg.ID), Name: cfg.Name},
		Rankings: toRankingDTOs(rankings),
	})
}

// =============================================================================
// ADMIN
// =============================================================================

// SaveOverride stores a cosmetic override and refreshes the snapshot.
// PUT /api/admin/cards/{id}/override
func (h *Handler) SaveOverride(w http.ResponseWriter, r *http.Request) {
	id := catalog.CardID(chi.URLParam(r, "id"))
	if _, ok := h.base.Card(id); !ok {
		writeError(w, http.StatusNotFound, "Card not found", nil)
		return
	}

	var o catalog.Override
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.SaveOverride(ctx, id, o); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save override", err)
		return
	}
	if err := h.LoadOverrides(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh catalog", err)
		return
	}

	h.Logger.InfoContext(ctx, "card override saved", slog.String("card_id", string(id)))

	c, _ := h.Catalog().Card(id)
	writeJSON(w, http.StatusOK, toCardDTO(c, false))
}

// =============================================================================
// HOLDERS
// =============================================================================

// ListOwnedCards returns a holder's cards.
// GET /api/users/{id}/cards
func (h *Handler) ListOwnedCards(w http.ResponseWriter, r *http.Request) {
	holderID := chi.URLParam(r, "id")

	ids, err := h.Store.OwnedCards(r.Context(), holderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load owned cards", err)
		return
	}

	snap := h.Catalog()
	dtos := make([]CardDTO, 0, len(ids))
	for _, id := range ids {
		// Cards dropped from the catalog since they were added are skipped.
		if c, ok := snap.Card(id); ok {
			dtos = append(dtos, toCardDTO(c, false))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddOwnedCard links a catalog card to a holder.
// POST /api/users/{id}/cards
func (h *Handler) AddOwnedCard(w http.ResponseWriter, r *http.Request) {
	holderID := chi.URLParam(r, "id")

	var req AddCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c, ok := h.Catalog().Card(catalog.CardID(req.CardID))
	if !ok {
		writeError(w, http.StatusNotFound, "Card not found", nil)
		return
	}

	if err := h.Store.AddOwnedCard(r.Context(), holderID, c.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add card", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCardDTO(c, false))
}

// RemoveOwnedCard unlinks a card from a holder.
// DELETE /api/users/{id}/cards/{cardID}
func (h *Handler) RemoveOwnedCard(w http.ResponseWriter, r *http.Request) {
	holderID := chi.URLParam(r, "id")
	cardID := catalog.CardID(chi.URLParam(r, "cardID"))

	removed, err := h.Store.RemoveOwnedCard(r.Context(), holderID, cardID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to remove card", err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Card not owned", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUsage returns a holder's recorded purchases, oldest first.
// GET /api/users/{id}/usage
func (h *Handler) ListUsage(w http.ResponseWriter, r *http.Request) {
	holderID := chi.URLParam(r, "id")

	entries, err := h.Ledger.History(r.Context(), holderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load usage", err)
		return
	}

	dtos := make([]UsageDTO, len(entries))
	for i, u := range entries {
		dtos[i] = toUsageDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordUsage records a purchase made with one card. The card is evaluated
// with the holder's remaining caps so the recorded reward is what the bank
// would actually pay.
// POST /api/users/{id}/usage
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	holderID := chi.URLParam(r, "id")

	var req RecordUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	opts, err := h.purchaseOptions(req.Amount, req.PaymentMethod, req.Online, req.Foreign, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid purchase", err)
		return
	}

	ctx := r.Context()
	snap := h.Catalog()
	c, ok := snap.Card(catalog.CardID(req.CardID))
	if !ok {
		writeError(w, http.StatusNotFound, "Card not found", nil)
		return
	}

	res, err := h.resultForCard(ctx, holderID, snap, c, req.Merchant, opts)
	if err != nil {
		if errors.Is(err, errNothingEarned) {
			writeError(w, http.StatusUnprocessableEntity, "Card earns nothing on this purchase", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to evaluate card", err)
		return
	}

	u, err := h.Ledger.RecordWithKey(ctx, req.IdempotencyKey, holderID, res, opts.Amount, opts.Date)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
			writeError(w, http.StatusConflict, "Purchase already recorded", err)
		case ledger.IsClientError(err):
			writeError(w, http.StatusBadRequest, "Invalid usage", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to record usage", err)
		}
		return
	}

	h.Logger.InfoContext(ctx, "usage recorded",
		slog.String("holder_id", holderID),
		slog.String("card_id", string(u.CardID)),
		slog.String("rule_id", string(u.RuleID)),
		slog.String("reward", u.Reward.String()),
	)
	writeJSON(w, http.StatusCreated, toUsageDTO(u))
}

var errNothingEarned = errors.New("no eligible rule")

// resultForCard evaluates a single card for holderID with the holder's
// remaining caps applied.
func (h *Handler) resultForCard(ctx context.Context, holderID string, snap *catalog.Snapshot, c catalog.Card, merchant string, opts engine.Options) (engine.Result, error) {
	adjusted, err := h.Ledger.AdjustCaps(ctx, holderID, []catalog.Card{c}, opts.Date)
	if err != nil {
		return engine.Result{}, err
	}
	// Hidden cards still earn rewards for the people who hold them.
	adjusted[0].Hidden = false

	out, err := engine.ResolveBestCards(merchant, opts, adjusted, snap.Merchants, snap.Categories)
	if err != nil {
		return engine.Result{}, err
	}
	if len(out.Results) == 0 {
		if len(out.Skipped) > 0 {
			return engine.Result{}, fmt.Errorf("%w: %v", errNothingEarned, out.Skipped[0].Err)
		}
		return engine.Result{}, errNothingEarned
	}
	return out.Results[0], nil
}

// ResetDatabase clears holders, usage and overrides (dev only).
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := h.LoadOverrides(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh catalog", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
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
