package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/card-rewards/catalog"
	"github.com/warp/card-rewards/engine"
	"github.com/warp/card-rewards/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func capped(id catalog.RuleID, pct, limit string, ct catalog.CapType, cp catalog.CapPeriod) catalog.Rule {
	c := dec(limit)
	return catalog.Rule{
		ID:         id,
		Scope:      catalog.MerchantScope{MerchantIDs: []catalog.MerchantID{"sushiro"}},
		Percentage: dec(pct),
		Cap:        &c,
		CapType:    ct,
		CapPeriod:  cp,
	}
}

func testCard() catalog.Card {
	return catalog.Card{
		ID:   "red",
		Name: "Red",
		Rules: []catalog.Rule{
			capped("red-sushi", "8", "100", catalog.CapReward, catalog.CapMonthly),
			capped("red-spend", "5", "2000", catalog.CapSpending, catalog.CapYearly),
			{ID: "red-base", Scope: catalog.BaseScope{}, Percentage: dec("0.4")},
		},
	}
}

func resultFor(c catalog.Card, ruleID catalog.RuleID, reward string) engine.Result {
	r, _ := c.Rule(ruleID)
	return engine.Result{Card: c, MatchedRule: r, RewardAmount: dec(reward)}
}

func newLedger() *ledger.Ledger {
	l := ledger.New(ledger.NewMemoryStore())
	l.Now = func() time.Time { return date(2025, 6, 30) }
	return l
}

// =============================================================================
// PERIODS
// =============================================================================

func TestCapPeriodFor(t *testing.T) {
	from, to := date(2025, 12, 1), date(2026, 2, 28)

	tests := []struct {
		name  string
		rule  catalog.Rule
		on    time.Time
		start time.Time
		end   time.Time
	}{
		{"default is monthly", catalog.Rule{}, date(2025, 2, 14), date(2025, 2, 1), date(2025, 2, 28)},
		{"monthly leap year", catalog.Rule{CapPeriod: catalog.CapMonthly}, date(2024, 2, 29), date(2024, 2, 1), date(2024, 2, 29)},
		{"quarterly", catalog.Rule{CapPeriod: catalog.CapQuarterly}, date(2025, 5, 2), date(2025, 4, 1), date(2025, 6, 30)},
		{"last quarter", catalog.Rule{CapPeriod: catalog.CapQuarterly}, date(2025, 12, 31), date(2025, 10, 1), date(2025, 12, 31)},
		{"yearly", catalog.Rule{CapPeriod: catalog.CapYearly}, date(2025, 7, 9), date(2025, 1, 1), date(2025, 12, 31)},
		{"promo window", catalog.Rule{CapPeriod: catalog.CapPromo, ValidFrom: &from, ValidTo: &to}, date(2026, 1, 5), from, to},
		{"promo without window", catalog.Rule{CapPeriod: catalog.CapPromo}, date(2025, 3, 3), date(2025, 3, 1), date(2025, 3, 31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ledger.CapPeriodFor(tt.rule, tt.on)
			assert.Equal(t, tt.start, p.Start)
			assert.Equal(t, tt.end, p.End)
			assert.True(t, p.Contains(tt.on))
		})
	}
}

func TestPeriod_ContainsIgnoresTimeOfDay(t *testing.T) {
	p := ledger.CapPeriodFor(catalog.Rule{}, date(2025, 6, 1))
	assert.True(t, p.Contains(time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC)))
	assert.False(t, p.Contains(date(2025, 7, 1)))
	assert.Equal(t, "[2025-06-01, 2025-06-30]", p.String())
}

// =============================================================================
// RECORDING
// =============================================================================

func TestRecord_StoresEntry(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	c := testCard()

	u, err := l.Record(ctx, "alice", resultFor(c, "red-sushi", "40"), dec("500"), date(2025, 6, 3))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, catalog.RuleID("red-sushi"), u.RuleID)
	assert.Equal(t, date(2025, 6, 1), u.Period.Start)
	assert.Equal(t, date(2025, 6, 30), u.RecordedAt)

	history, err := l.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, u.ID, history[0].ID)
}

func TestRecord_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	c := testCard()

	_, err := l.Record(ctx, "", resultFor(c, "red-sushi", "1"), dec("10"), date(2025, 6, 3))
	assert.ErrorIs(t, err, ledger.ErrInvalidUsage)

	_, err = l.Record(ctx, "alice", resultFor(c, "red-sushi", "1"), dec("0"), date(2025, 6, 3))
	assert.ErrorIs(t, err, ledger.ErrInvalidUsage)
	assert.True(t, ledger.IsClientError(err))

	_, err = l.Record(ctx, "alice", engine.Result{Card: c}, dec("10"), date(2025, 6, 3))
	assert.ErrorIs(t, err, ledger.ErrNoMatchedRule)
}

func TestRecordWithKey_DuplicateRejected(t *testing.T) {
	// GIVEN: A purchase recorded with key "txn-1"
	// WHEN: The client retries with the same key
	// THEN: The retry is rejected and the spend is counted once

	ctx := context.Background()
	l := newLedger()
	c := testCard()
	res := resultFor(c, "red-sushi", "40")

	_, err := l.RecordWithKey(ctx, "txn-1", "alice", res, dec("500"), date(2025, 6, 3))
	require.NoError(t, err)

	_, err = l.RecordWithKey(ctx, "txn-1", "alice", res, dec("500"), date(2025, 6, 3))
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)

	used, err := l.Used(ctx, "alice", "red", "red-sushi", ledger.CapPeriodFor(res.MatchedRule, date(2025, 6, 3)))
	require.NoError(t, err)
	assert.Equal(t, 1, used.Entries)
	assert.True(t, used.Reward.Equal(dec("40")))
}

func TestUsed_OnlyCountsPeriodAndRule(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	c := testCard()

	_, err := l.Record(ctx, "alice", resultFor(c, "red-sushi", "40"), dec("500"), date(2025, 6, 3))
	require.NoError(t, err)
	_, err = l.Record(ctx, "alice", resultFor(c, "red-sushi", "24"), dec("300"), date(2025, 6, 20))
	require.NoError(t, err)
	_, err = l.Record(ctx, "alice", resultFor(c, "red-sushi", "8"), dec("100"), date(2025, 7, 1))
	require.NoError(t, err)
	_, err = l.Record(ctx, "alice", resultFor(c, "red-base", "1"), dec("250"), date(2025, 6, 5))
	require.NoError(t, err)
	_, err = l.Record(ctx, "bob", resultFor(c, "red-sushi", "40"), dec("500"), date(2025, 6, 3))
	require.NoError(t, err)

	june := ledger.CapPeriodFor(catalog.Rule{}, date(2025, 6, 15))
	used, err := l.Used(ctx, "alice", "red", "red-sushi", june)
	require.NoError(t, err)

	assert.Equal(t, 2, used.Entries)
	assert.True(t, used.Spend.Equal(dec("800")))
	assert.True(t, used.Reward.Equal(dec("64")))
}

// =============================================================================
// CAP ADJUSTMENT
// =============================================================================

func TestAdjustCaps_ReducesByType(t *testing.T) {
	// GIVEN: $64 of a $100 monthly reward cap used in June,
	//        and $1,500 of a $2,000 yearly spending cap used in 2025
	// WHEN: Adjusting caps for a June purchase
	// THEN: $36 reward and $500 spend remain; the base rule is untouched

	ctx := context.Background()
	l := newLedger()
	c := testCard()

	for _, rec := range []struct {
		rule   catalog.RuleID
		reward string
		spend  string
		on     time.Time
	}{
		{"red-sushi", "40", "500", date(2025, 6, 3)},
		{"red-sushi", "24", "300", date(2025, 6, 20)},
		{"red-spend", "50", "1000", date(2025, 2, 1)},
		{"red-spend", "25", "500", date(2025, 6, 2)},
	} {
		_, err := l.Record(ctx, "alice", resultFor(c, rec.rule, rec.reward), dec(rec.spend), rec.on)
		require.NoError(t, err)
	}

	adjusted, err := l.AdjustCaps(ctx, "alice", []catalog.Card{c}, date(2025, 6, 25))
	require.NoError(t, err)
	require.Len(t, adjusted, 1)

	sushi, _ := adjusted[0].Rule("red-sushi")
	spend, _ := adjusted[0].Rule("red-spend")
	baseRule, _ := adjusted[0].Rule("red-base")
	assert.True(t, sushi.Cap.Equal(dec("36")), sushi.Cap.String())
	assert.True(t, spend.Cap.Equal(dec("500")), spend.Cap.String())
	assert.Nil(t, baseRule.Cap)

	// Original card untouched
	orig, _ := c.Rule("red-sushi")
	assert.True(t, orig.Cap.Equal(dec("100")))
}

func TestAdjustCaps_FloorsAtZeroAndResetsNextPeriod(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	c := testCard()

	_, err := l.Record(ctx, "alice", resultFor(c, "red-sushi", "150"), dec("5000"), date(2025, 6, 3))
	require.NoError(t, err)

	june, err := l.AdjustCaps(ctx, "alice", []catalog.Card{c}, date(2025, 6, 10))
	require.NoError(t, err)
	r, _ := june[0].Rule("red-sushi")
	assert.True(t, r.Cap.IsZero())

	july, err := l.AdjustCaps(ctx, "alice", []catalog.Card{c}, date(2025, 7, 1))
	require.NoError(t, err)
	r, _ = july[0].Rule("red-sushi")
	assert.True(t, r.Cap.Equal(dec("100")))
}

func TestAdjustCaps_FeedsEngine(t *testing.T) {
	// GIVEN: $80 of the $100 Sushiro reward cap already used this month
	// WHEN: Resolving another $500 at Sushiro
	// THEN: Only the remaining $20 is paid and the result is capped

	ctx := context.Background()
	l := newLedger()
	c := testCard()

	_, err := l.Record(ctx, "alice", resultFor(c, "red-sushi", "80"), dec("1000"), date(2025, 6, 3))
	require.NoError(t, err)

	on := date(2025, 6, 12)
	cards, err := l.AdjustCaps(ctx, "alice", []catalog.Card{c}, on)
	require.NoError(t, err)

	merchants := []catalog.Merchant{{ID: "sushiro", Name: "Sushiro", CategoryIDs: []catalog.CategoryID{"dining"}}}
	out, err := engine.ResolveBestCards("Sushiro", engine.Options{Amount: dec("500"), Date: on}, cards, merchants, nil)
	require.NoError(t, err)
	require.Len(t, out.Results, 1)

	assert.True(t, out.Results[0].RewardAmount.Equal(dec("20")))
	assert.True(t, out.Results[0].IsCapped)
}

func TestAdjustCaps_UnknownHolder(t *testing.T) {
	l := newLedger()
	c := testCard()

	cards, err := l.AdjustCaps(context.Background(), "nobody", []catalog.Card{c}, date(2025, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, []catalog.Card{c}, cards)
}
