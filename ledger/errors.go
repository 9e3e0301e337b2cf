package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a usage entry with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrNoMatchedRule is returned when recording a result that carries no rule.
	ErrNoMatchedRule = errors.New("result has no matched rule")

	// ErrInvalidUsage is returned for a non-positive spend or empty holder.
	ErrInvalidUsage = errors.New("invalid usage")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// UsageError describes why a usage entry was rejected.
type UsageError struct {
	HolderID string
	Spend    decimal.Decimal
	Reason   string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage for holder %q (spend %s): %s", e.HolderID, e.Spend, e.Reason)
}

func (e *UsageError) Unwrap() error {
	return ErrInvalidUsage
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidUsage) ||
		errors.Is(err, ErrNoMatchedRule) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}
