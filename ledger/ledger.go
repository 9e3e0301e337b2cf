/*
ledger.go - Append-only usage log for cap accounting

PURPOSE:
  The engine treats every purchase on its own: a $100 reward cap is a $100
  cap on this purchase. Banks apply caps per month, quarter, year or promo.
  The ledger records what a holder actually spent on each rule so the
  remaining cap can be folded into the catalog before the next calculation.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IDEMPOTENT: Same idempotency key = same entry (no double counting)
  3. PURE ADJUSTMENT: AdjustCaps returns copies, the catalog is untouched

EXAMPLE FLOW:
  Rule hsbc-red-designated: 8%, reward cap $100 monthly.
  1. Jun 3, $500 at Sushiro: reward $40, recorded
  2. Jun 20, $500 at Tamjai: reward $40, recorded
  3. Jun 28 calculation: AdjustCaps sets the cap to $100 - $80 = $20
  4. Jul 1 calculation: new period, cap back to $100

SEE ALSO:
  - store.go: Low-level persistence interface
  - period.go: Which window a cap resets over
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/card-rewards/catalog"
	"github.com/warp/card-rewards/engine"
)

// =============================================================================
// USAGE ENTRY
// =============================================================================

// Usage is one recorded purchase against one rule.
type Usage struct {
	ID       uuid.UUID
	HolderID string
	CardID   catalog.CardID
	RuleID   catalog.RuleID
	Period   Period // cap period at the time of recording

	Spend  decimal.Decimal
	Reward decimal.Decimal // raw reward in cash terms, before FX fees

	IdempotencyKey string
	SpentAt        time.Time
	RecordedAt     time.Time
}

// Totals is what a holder has used of one rule within a period.
type Totals struct {
	Spend   decimal.Decimal
	Reward  decimal.Decimal
	Entries int
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Store Store
	Now   func() time.Time
}

func New(store Store) *Ledger {
	return &Ledger{Store: store, Now: time.Now}
}

// Record appends a usage entry for the rule res matched. The purchase is
// counted against the cap period of that rule containing date.
func (l *Ledger) Record(ctx context.Context, holderID string, res engine.Result, amount decimal.Decimal, date time.Time) (Usage, error) {
	return l.RecordWithKey(ctx, "", holderID, res, amount, date)
}

// RecordWithKey is Record with an idempotency key. An empty key disables
// the duplicate check.
func (l *Ledger) RecordWithKey(ctx context.Context, key, holderID string, res engine.Result, amount decimal.Decimal, date time.Time) (Usage, error) {
	if holderID == "" {
		return Usage{}, &UsageError{Spend: amount, Reason: "holder is required"}
	}
	if !amount.IsPositive() {
		return Usage{}, &UsageError{HolderID: holderID, Spend: amount, Reason: "spend must be positive"}
	}
	if res.MatchedRule.ID == "" {
		return Usage{}, ErrNoMatchedRule
	}

	if key != "" {
		exists, err := l.Store.UsageExists(ctx, key)
		if err != nil {
			return Usage{}, err
		}
		if exists {
			return Usage{}, ErrDuplicateIdempotencyKey
		}
	}

	u := Usage{
		ID:             uuid.New(),
		HolderID:       holderID,
		CardID:         res.Card.ID,
		RuleID:         res.MatchedRule.ID,
		Period:         CapPeriodFor(res.MatchedRule, date),
		Spend:          amount,
		Reward:         res.RewardAmount,
		IdempotencyKey: key,
		SpentAt:        day(date),
		RecordedAt:     l.now(),
	}
	if err := l.Store.AppendUsage(ctx, u); err != nil {
		return Usage{}, err
	}
	return u, nil
}

// History returns every entry of a holder, oldest first.
func (l *Ledger) History(ctx context.Context, holderID string) ([]Usage, error) {
	return l.Store.LoadUsage(ctx, holderID, "")
}

// Used sums a holder's entries for one rule whose purchase date falls in
// period.
func (l *Ledger) Used(ctx context.Context, holderID string, cardID catalog.CardID, ruleID catalog.RuleID, period Period) (Totals, error) {
	entries, err := l.Store.LoadUsage(ctx, holderID, cardID)
	if err != nil {
		return Totals{}, err
	}
	return sum(entries, cardID, ruleID, period), nil
}

// AdjustCaps returns deep copies of cards whose capped rules carry only what
// is left of the cap in the period containing date. Spending caps shrink by
// recorded spend and reward caps by recorded reward, never below zero.
// An exhausted cap pays nothing until its period resets.
func (l *Ledger) AdjustCaps(ctx context.Context, holderID string, cards []catalog.Card, date time.Time) ([]catalog.Card, error) {
	entries, err := l.Store.LoadUsage(ctx, holderID, "")
	if err != nil {
		return nil, err
	}

	out := make([]catalog.Card, len(cards))
	for i, c := range cards {
		c = c.Clone()
		for j := range c.Rules {
			r := &c.Rules[j]
			if r.Cap == nil {
				continue
			}
			used := sum(entries, c.ID, r.ID, CapPeriodFor(*r, date))
			if used.Entries == 0 {
				continue
			}
			consumed := used.Spend
			if r.CapType == catalog.CapReward {
				consumed = used.Reward
			}
			remaining := decimal.Max(r.Cap.Sub(consumed), decimal.Zero)
			r.Cap = &remaining
		}
		out[i] = c
	}
	return out, nil
}

func sum(entries []Usage, cardID catalog.CardID, ruleID catalog.RuleID, period Period) Totals {
	t := Totals{Spend: decimal.Zero, Reward: decimal.Zero}
	for _, u := range entries {
		if u.CardID != cardID || u.RuleID != ruleID || !period.Contains(u.SpentAt) {
			continue
		}
		t.Spend = t.Spend.Add(u.Spend)
		t.Reward = t.Reward.Add(u.Reward)
		t.Entries++
	}
	return t
}

func (l *Ledger) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now().UTC()
}
