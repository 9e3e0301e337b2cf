/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Holds everything that outlives a single calculation: cosmetic card
  overrides, which cards each holder owns, and the append-only usage ledger.
  The card catalog itself is NOT stored here; it is loaded from YAML and the
  overrides are merged on top of it.

INTERFACES IMPLEMENTED:
  ledger.Store: Usage entries for cap accounting

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the usage table
  - No DELETE statements on the usage table (Reset aside, for demos)

KEY TABLES:
  card_overrides: image/note/hidden per card, authoritative fields never stored
  owned_cards:    holder-to-card links
  usage:          Immutable log of purchases against capped rules

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/rewards.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  l := ledger.New(store)

SEE ALSO:
  - ledger/store.go: Interface definition
  - ledger/memory.go: In-memory implementation for testing
  - catalog/overlay.go: How overrides are merged
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/card-rewards/catalog"
	"github.com/warp/card-rewards/ledger"
)

const (
	dateLayout = "2006-01-02"
	// fixed width so added_at sorts as text
	stampLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Cosmetic overrides on top of the YAML catalog
	CREATE TABLE IF NOT EXISTS card_overrides (
		card_id TEXT PRIMARY KEY,
		image_url TEXT,
		note TEXT,
		hidden INTEGER,
		updated_at TEXT NOT NULL
	);

	-- Cards each holder carries
	CREATE TABLE IF NOT EXISTS owned_cards (
		holder_id TEXT NOT NULL,
		card_id TEXT NOT NULL,
		added_at TEXT NOT NULL,
		PRIMARY KEY (holder_id, card_id)
	);

	-- Usage (append-only ledger)
	CREATE TABLE IF NOT EXISTS usage (
		id TEXT PRIMARY KEY,
		holder_id TEXT NOT NULL,
		card_id TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		spend TEXT NOT NULL,
		reward TEXT NOT NULL,
		idempotency_key TEXT UNIQUE,
		spent_at TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	-- Cap lookups (hot path)
	CREATE INDEX IF NOT EXISTS idx_usage_holder_card_date
		ON usage(holder_id, card_id, spent_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USAGE STORE (ledger.Store interface)
// =============================================================================

// AppendUsage adds an entry to the usage ledger.
func (s *Store) AppendUsage(ctx context.Context, u ledger.Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO usage
		(id, holder_id, card_id, rule_id, period_start, period_end,
		 spend, reward, idempotency_key, spent_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		u.ID.String(),
		u.HolderID,
		string(u.CardID),
		string(u.RuleID),
		u.Period.Start.Format(dateLayout),
		u.Period.End.Format(dateLayout),
		u.Spend.String(),
		u.Reward.String(),
		nullString(u.IdempotencyKey),
		u.SpentAt.Format(dateLayout),
		u.RecordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append usage: %w", err)
	}
	return nil
}

// LoadUsage returns a holder's entries, oldest purchase first.
func (s *Store) LoadUsage(ctx context.Context, holderID string, cardID catalog.CardID) ([]ledger.Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, holder_id, card_id, rule_id, period_start, period_end,
		       spend, reward, idempotency_key, spent_at, recorded_at
		FROM usage
		WHERE holder_id = ? AND (? = '' OR card_id = ?)
		ORDER BY spent_at ASC, recorded_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, holderID, string(cardID), string(cardID))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Usage
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, u)
	}
	return entries, rows.Err()
}

// UsageExists checks if an idempotency key exists.
func (s *Store) UsageExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM usage WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

func scanUsage(rows *sql.Rows) (ledger.Usage, error) {
	var (
		u                      ledger.Usage
		id                     string
		cardID, ruleID         string
		periodStart, periodEnd string
		spend, reward          string
		idempotencyKey         sql.NullString
		spentAt, recordedAt    string
	)

	err := rows.Scan(
		&id, &u.HolderID, &cardID, &ruleID, &periodStart, &periodEnd,
		&spend, &reward, &idempotencyKey, &spentAt, &recordedAt,
	)
	if err != nil {
		return u, fmt.Errorf("failed to scan usage: %w", err)
	}

	if u.ID, err = uuid.Parse(id); err != nil {
		return u, fmt.Errorf("usage %s: %w", id, err)
	}
	if u.Spend, err = decimal.NewFromString(spend); err != nil {
		return u, fmt.Errorf("usage %s spend: %w", id, err)
	}
	if u.Reward, err = decimal.NewFromString(reward); err != nil {
		return u, fmt.Errorf("usage %s reward: %w", id, err)
	}
	u.CardID = catalog.CardID(cardID)
	u.RuleID = catalog.RuleID(ruleID)
	if u.Period.Start, err = time.Parse(dateLayout, periodStart); err != nil {
		return u, fmt.Errorf("usage %s period start: %w", id, err)
	}
	if u.Period.End, err = time.Parse(dateLayout, periodEnd); err != nil {
		return u, fmt.Errorf("usage %s period end: %w", id, err)
	}
	if u.SpentAt, err = time.Parse(dateLayout, spentAt); err != nil {
		return u, fmt.Errorf("usage %s spent at: %w", id, err)
	}
	if u.RecordedAt, err = time.Parse(time.RFC3339, recordedAt); err != nil {
		return u, fmt.Errorf("usage %s recorded at: %w", id, err)
	}
	u.IdempotencyKey = idempotencyKey.String

	return u, nil
}

// =============================================================================
// CARD OVERRIDES
// =============================================================================

// SaveOverride stores the cosmetic override for a card, replacing any
// previous one. Nil fields leave the catalog value in place.
func (s *Store) SaveOverride(ctx context.Context, cardID catalog.CardID, o catalog.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hidden sql.NullBool
	if o.Hidden != nil {
		hidden = sql.NullBool{Bool: *o.Hidden, Valid: true}
	}

	query := `
		INSERT INTO card_overrides (card_id, image_url, note, hidden, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(card_id) DO UPDATE SET
			image_url = excluded.image_url,
			note = excluded.note,
			hidden = excluded.hidden,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		string(cardID), nullStringPtr(o.ImageURL), nullStringPtr(o.Note), hidden,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetOverride retrieves the override for a card, or nil if there is none.
func (s *Store) GetOverride(ctx context.Context, cardID catalog.CardID) (*catalog.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var imageURL, note sql.NullString
	var hidden sql.NullBool

	err := s.db.QueryRowContext(ctx,
		"SELECT image_url, note, hidden FROM card_overrides WHERE card_id = ?",
		string(cardID),
	).Scan(&imageURL, &note, &hidden)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	o := toOverride(imageURL, note, hidden)
	return &o, nil
}

// Overrides returns every stored override keyed by card.
func (s *Store) Overrides(ctx context.Context) (map[catalog.CardID]catalog.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT card_id, image_url, note, hidden FROM card_overrides")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[catalog.CardID]catalog.Override)
	for rows.Next() {
		var cardID string
		var imageURL, note sql.NullString
		var hidden sql.NullBool
		if err := rows.Scan(&cardID, &imageURL, &note, &hidden); err != nil {
			return nil, err
		}
		out[catalog.CardID(cardID)] = toOverride(imageURL, note, hidden)
	}
	return out, rows.Err()
}

func toOverride(imageURL, note sql.NullString, hidden sql.NullBool) catalog.Override {
	var o catalog.Override
	if imageURL.Valid {
		o.ImageURL = &imageURL.String
	}
	if note.Valid {
		o.Note = &note.String
	}
	if hidden.Valid {
		o.Hidden = &hidden.Bool
	}
	return o
}

// =============================================================================
// OWNED CARDS
// =============================================================================

// AddOwnedCard links a card to a holder. Adding a card twice is a no-op.
func (s *Store) AddOwnedCard(ctx context.Context, holderID string, cardID catalog.CardID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO owned_cards (holder_id, card_id, added_at)
		VALUES (?, ?, ?)
		ON CONFLICT(holder_id, card_id) DO NOTHING
	`, holderID, string(cardID), time.Now().UTC().Format(stampLayout))
	return err
}

// RemoveOwnedCard unlinks a card. Returns false if the holder did not own it.
func (s *Store) RemoveOwnedCard(ctx context.Context, holderID string, cardID catalog.CardID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM owned_cards WHERE holder_id = ? AND card_id = ?",
		holderID, string(cardID),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// OwnedCards returns a holder's cards in the order they were added.
func (s *Store) OwnedCards(ctx context.Context, holderID string) ([]catalog.CardID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT card_id FROM owned_cards WHERE holder_id = ? ORDER BY added_at, card_id",
		holderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []catalog.CardID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, catalog.CardID(id))
	}
	return ids, rows.Err()
}

// ReplaceOwnedCards sets a holder's cards in one transaction.
func (s *Store) ReplaceOwnedCards(ctx context.Context, holderID string, cardIDs []catalog.CardID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM owned_cards WHERE holder_id = ?", holderID); err != nil {
		return err
	}
	base := time.Now().UTC()
	for i, id := range cardIDs {
		at := base.Add(time.Duration(i) * time.Microsecond).Format(stampLayout)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO owned_cards (holder_id, card_id, added_at) VALUES (?, ?, ?)
			ON CONFLICT(holder_id, card_id) DO NOTHING
		`, holderID, string(id), at); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"usage", "owned_cards", "card_overrides"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
