package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/card-rewards/catalog"
	"github.com/warp/card-rewards/engine"
	"github.com/warp/card-rewards/ledger"
	"github.com/warp/card-rewards/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// USAGE LEDGER
// =============================================================================

func TestUsage_RoundTripThroughLedger(t *testing.T) {
	// GIVEN: A ledger backed by SQLite
	// WHEN: Recording two purchases against a capped rule
	// THEN: They load back intact, oldest first, and count against the cap

	ctx := context.Background()
	store := newStore(t)
	l := ledger.New(store)

	limit := dec("100")
	rule := catalog.Rule{ID: "red-sushi", Scope: catalog.BaseScope{}, Percentage: dec("8"), Cap: &limit, CapType: catalog.CapReward}
	c := catalog.Card{ID: "red", Rules: []catalog.Rule{rule}}
	res := engine.Result{Card: c, MatchedRule: rule, RewardAmount: dec("40.25")}

	second, err := l.RecordWithKey(ctx, "k2", "alice", res, dec("503.125"), time.Date(2025, 6, 20, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	first, err := l.Record(ctx, "alice", res, dec("500"), time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	history, err := store.LoadUsage(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, second.ID, history[1].ID)
	assert.Equal(t, "k2", history[1].IdempotencyKey)
	assert.True(t, history[1].Spend.Equal(dec("503.125")))
	assert.True(t, history[1].Reward.Equal(dec("40.25")))
	assert.Equal(t, time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), history[1].SpentAt)
	assert.True(t, history[1].Period.Equal(second.Period))

	cards, err := l.AdjustCaps(ctx, "alice", []catalog.Card{c}, time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, cards[0].Rules[0].Cap.Equal(dec("19.5")))
}

func TestUsage_DuplicateKeyRejected(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	u := ledger.Usage{
		ID:             uuid.New(),
		HolderID:       "alice",
		CardID:         "red",
		RuleID:         "red-base",
		Spend:          dec("10"),
		Reward:         dec("0.04"),
		IdempotencyKey: "same",
		SpentAt:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		RecordedAt:     time.Now(),
	}
	require.NoError(t, store.AppendUsage(ctx, u))

	u.ID = uuid.New()
	err := store.AppendUsage(ctx, u)
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)

	exists, err := store.UsageExists(ctx, "same")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUsage_CorruptDateFailsLoad(t *testing.T) {
	// GIVEN: A usage row whose purchase date is not a date
	// WHEN: Loading the holder's usage
	// THEN: The load fails instead of yielding a zero time

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rewards.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(ctx, `
		INSERT INTO usage
		(id, holder_id, card_id, rule_id, period_start, period_end,
		 spend, reward, idempotency_key, spent_at, recorded_at)
		VALUES (?, 'alice', 'red', 'red-sushi', '2025-06-01', '2025-06-30',
		        '100', '8', NULL, 'last tuesday', '2025-06-03T00:00:00Z')`,
		uuid.NewString(),
	)
	require.NoError(t, err)

	_, err = store.LoadUsage(ctx, "alice", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spent at")
}

func TestUsage_FiltersByHolderAndCard(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	for _, u := range []ledger.Usage{
		{HolderID: "alice", CardID: "red", RuleID: "r1"},
		{HolderID: "alice", CardID: "pulse", RuleID: "r2"},
		{HolderID: "bob", CardID: "red", RuleID: "r1"},
	} {
		u.ID = uuid.New()
		u.Spend, u.Reward = dec("1"), dec("0")
		u.SpentAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, store.AppendUsage(ctx, u))
	}

	red, err := store.LoadUsage(ctx, "alice", "red")
	require.NoError(t, err)
	require.Len(t, red, 1)
	assert.Equal(t, catalog.RuleID("r1"), red[0].RuleID)

	all, err := store.LoadUsage(ctx, "alice", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// =============================================================================
// OVERRIDES
// =============================================================================

func TestOverrides_SaveAndMerge(t *testing.T) {
	// GIVEN: An override hiding a card and changing its note
	// WHEN: Merging stored overrides onto the catalog
	// THEN: Cosmetic fields change and the rules do not

	ctx := context.Background()
	store := newStore(t)

	note, hidden := "Closed to new applicants", true
	require.NoError(t, store.SaveOverride(ctx, "hsbc-red", catalog.Override{Note: &note, Hidden: &hidden}))

	got, err := store.GetOverride(ctx, "hsbc-red")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.ImageURL)
	assert.Equal(t, note, *got.Note)
	assert.True(t, *got.Hidden)

	missing, err := store.GetOverride(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	snap, err := catalog.Default()
	require.NoError(t, err)
	overrides, err := store.Overrides(ctx)
	require.NoError(t, err)
	merged := catalog.Merge(snap.Cards, overrides)

	orig, _ := snap.Card("hsbc-red")
	var red catalog.Card
	for _, c := range merged {
		if c.ID == "hsbc-red" {
			red = c
		}
	}
	assert.True(t, red.Hidden)
	assert.Equal(t, note, red.Note)
	assert.Equal(t, orig.Rules, red.Rules)
}

func TestOverrides_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	url := "https://img.example/red.png"
	hidden := true
	require.NoError(t, store.SaveOverride(ctx, "hsbc-red", catalog.Override{Hidden: &hidden}))
	require.NoError(t, store.SaveOverride(ctx, "hsbc-red", catalog.Override{ImageURL: &url}))

	got, err := store.GetOverride(ctx, "hsbc-red")
	require.NoError(t, err)
	assert.Nil(t, got.Hidden)
	assert.Equal(t, url, *got.ImageURL)
}

// =============================================================================
// OWNED CARDS
// =============================================================================

func TestOwnedCards(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.AddOwnedCard(ctx, "alice", "hsbc-red"))
	require.NoError(t, store.AddOwnedCard(ctx, "alice", "citi-rewards"))
	require.NoError(t, store.AddOwnedCard(ctx, "alice", "hsbc-red"))

	ids, err := store.OwnedCards(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.ElementsMatch(t, []catalog.CardID{"hsbc-red", "citi-rewards"}, ids)

	removed, err := store.RemoveOwnedCard(ctx, "alice", "hsbc-red")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.RemoveOwnedCard(ctx, "alice", "hsbc-red")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, store.ReplaceOwnedCards(ctx, "alice", []catalog.CardID{"sc-simply-cash", "hsbc-pulse", "boc-sogo"}))
	ids, err = store.OwnedCards(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []catalog.CardID{"sc-simply-cash", "hsbc-pulse", "boc-sogo"}, ids)

	none, err := store.OwnedCards(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.AddOwnedCard(ctx, "alice", "hsbc-red"))
	require.NoError(t, store.Reset(ctx))

	ids, err := store.OwnedCards(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
