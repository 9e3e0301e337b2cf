/*
store.go - Persistence interface for the usage ledger

PURPOSE:
  Defines the interface between cap accounting and the database. Like the
  rest of the ledger it is append-only: a recorded purchase is never edited.

IDEMPOTENCY:
  Every write may carry an idempotency key. If the key already exists the
  write is rejected with ErrDuplicateIdempotencyKey, so a client retrying
  "record this purchase" never counts it twice against a cap.

IMPLEMENTATIONS:
  - ledger/memory.go: in-memory, for tests and the demo server
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - ledger.go: Record, Used and AdjustCaps on top of Store
*/
package ledger

import (
	"context"

	"github.com/warp/card-rewards/catalog"
)

// Store handles persistence of usage entries.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete.
type Store interface {
	// AppendUsage persists an entry. Returns ErrDuplicateIdempotencyKey if
	// its key already exists.
	AppendUsage(ctx context.Context, u Usage) error

	// LoadUsage returns a holder's entries ordered by SpentAt. An empty
	// cardID returns entries for every card.
	LoadUsage(ctx context.Context, holderID string, cardID catalog.CardID) ([]Usage, error)

	// UsageExists checks if idempotency key already exists.
	UsageExists(ctx context.Context, idempotencyKey string) (bool, error)
}
