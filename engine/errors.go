/*
errors.go - Error types for the reward engine

PURPOSE:
  The engine fails as a whole only on bad input (a non-positive amount).
  Everything that goes wrong with a single card is isolated into a CardError
  and reported alongside the results instead of aborting the calculation.

ERROR CATEGORIES:
  1. Input errors - AmountError (caller's fault, maps to HTTP 400)
  2. Per-card errors - CardError wrapping ErrNoBaseRule or ErrCardPanic

USAGE:
  out, err := engine.ResolveBestCards(name, opts, cards, merchants, cats)
  if errors.Is(err, engine.ErrInvalidAmount) { ... }
  for _, skipped := range out.Skipped {
      if errors.Is(skipped, engine.ErrNoBaseRule) { ... }
  }
*/
package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/card-rewards/catalog"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when the spend amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrNoBaseRule is returned for a card with no rule eligible for the
	// purchase, which means its catch-all base rule is missing or excluded.
	ErrNoBaseRule = errors.New("no eligible rule")

	// ErrCardPanic is returned when evaluating a card panicked.
	ErrCardPanic = errors.New("card evaluation failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type AmountError struct {
	Amount decimal.Decimal
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("invalid amount %s: must be positive", e.Amount)
}

func (e *AmountError) Unwrap() error {
	return ErrInvalidAmount
}

// CardError ties a failure to the card it came from.
type CardError struct {
	CardID catalog.CardID
	Err    error
}

func (e *CardError) Error() string {
	return fmt.Sprintf("card %s: %v", e.CardID, e.Err)
}

func (e *CardError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount)
}
