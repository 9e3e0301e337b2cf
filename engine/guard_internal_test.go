package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_RecoversPanic(t *testing.T) {
	// GIVEN: A card evaluation that panics (e.g. decimal division by zero)
	// WHEN: Running it through guard
	// THEN: The panic becomes a CardError wrapping ErrCardPanic

	res, cerr := guard("boom", func() (Result, error) {
		decimal.NewFromInt(1).Div(decimal.Zero)
		return Result{RewardAmount: decimal.NewFromInt(1)}, nil
	})

	require.NotNil(t, cerr)
	assert.Equal(t, Result{}, res)
	assert.ErrorIs(t, cerr, ErrCardPanic)
	assert.Contains(t, cerr.Error(), "card boom")
}

func TestGuard_WrapsError(t *testing.T) {
	_, cerr := guard("c", func() (Result, error) {
		return Result{}, ErrNoBaseRule
	})
	require.NotNil(t, cerr)
	assert.True(t, errors.Is(cerr, ErrNoBaseRule))
}

func TestGuard_PassesResultThrough(t *testing.T) {
	res, cerr := guard("c", func() (Result, error) {
		return Result{RewardAmount: decimal.NewFromInt(7)}, nil
	})
	assert.Nil(t, cerr)
	assert.True(t, res.RewardAmount.Equal(decimal.NewFromInt(7)))
}
