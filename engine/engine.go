package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/card-rewards/catalog"
)

// alternativeMethods are tried, in order, when the purchase has no payment
// method or a plain physical card, to tell the user a wallet would pay more.
var alternativeMethods = []catalog.PaymentMethod{
	catalog.PaymentApplePay,
	catalog.PaymentBoCPay,
	catalog.PaymentAlipay,
	catalog.PaymentPayMe,
}

// =============================================================================
// ENTRY POINT
// =============================================================================

// ResolveBestCards computes one result per non-hidden card and ranks them.
//
// A non-positive amount fails the whole call with *AmountError. Anything that
// goes wrong with a single card (no eligible rule, or a panic while
// evaluating it) drops that card into Outcome.Skipped and the rest are still
// ranked. A zero opts.Date is replaced by the current time once, up front.
func ResolveBestCards(
	merchantName string,
	opts Options,
	cards []catalog.Card,
	merchants []catalog.Merchant,
	categories []catalog.Category,
) (*Outcome, error) {
	if !opts.Amount.IsPositive() {
		return nil, &AmountError{Amount: opts.Amount}
	}
	if opts.Date.IsZero() {
		opts.Date = time.Now()
	}

	merchant := ResolveMerchant(merchantName, merchants)
	sc := NewScenario(merchant, categories, opts)

	out := &Outcome{
		Merchant: merchant,
		Scenario: sc,
		Results:  make([]Result, 0, len(cards)),
	}
	for _, card := range cards {
		if card.Hidden {
			continue
		}
		res, err := evaluateCard(card, sc)
		if err != nil {
			out.Skipped = append(out.Skipped, err)
			continue
		}
		out.Results = append(out.Results, res)
	}

	Rank(out.Results)
	return out, nil
}

func evaluateCard(card catalog.Card, sc Scenario) (Result, *CardError) {
	return guard(card.ID, func() (Result, error) {
		m, err := MatchRule(card, sc)
		if err != nil {
			return Result{}, err
		}

		res := computeResult(card, m.Rule, sc)
		applyDiscount(&res, m.Discount, sc.Amount)
		Suggest(m, Reward{Amount: res.RewardAmount, IsCapped: res.IsCapped}, sc).apply(&res)

		if sc.PaymentMethod == "" || sc.PaymentMethod == catalog.PaymentPhysicalCard {
			suggestPaymentMethod(card, sc, &res)
		}
		return res, nil
	})
}

// guard runs fn and converts both its error and any panic into a CardError.
func guard(id catalog.CardID, fn func() (Result, error)) (res Result, cerr *CardError) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{}
			cerr = &CardError{CardID: id, Err: fmt.Errorf("%w: %v", ErrCardPanic, p)}
		}
	}()

	res, err := fn()
	if err != nil {
		return Result{}, &CardError{CardID: id, Err: err}
	}
	return res, nil
}

// suggestPaymentMethod re-runs the card with each alternative method and
// keeps the first one that pays strictly the most.
func suggestPaymentMethod(card catalog.Card, sc Scenario, res *Result) {
	bestAmount := res.RewardAmount
	for _, method := range alternativeMethods {
		alt := sc
		alt.PaymentMethod = method
		m, err := MatchRule(card, alt)
		if err != nil {
			continue
		}
		reward := ComputeReward(m.Rule, sc.Amount)
		if reward.Amount.GreaterThan(bestAmount) {
			bestAmount = reward.Amount
			res.SuggestedPaymentMethod = method
		}
	}
	if res.SuggestedPaymentMethod != "" {
		potential := bestAmount
		res.PotentialRewardAmount = &potential
	}
}

// =============================================================================
// CALCULATOR - Entry point with logging
// =============================================================================

// Calculator runs ResolveBestCards against a catalog snapshot and logs what
// it skipped. The zero value is usable and logs nothing.
type Calculator struct {
	Logger *slog.Logger
}

func NewCalculator(logger *slog.Logger) *Calculator {
	return &Calculator{Logger: logger}
}

// Calculate resolves the request against snap. ctx only carries logging
// context; the calculation itself never blocks.
func (c *Calculator) Calculate(ctx context.Context, in Context, snap *catalog.Snapshot) (*Outcome, error) {
	out, err := ResolveBestCards(in.MerchantName, in.Options, snap.Cards, snap.Merchants, snap.Categories)
	if err != nil {
		return nil, err
	}
	if c.Logger == nil {
		return out, nil
	}

	for _, skipped := range out.Skipped {
		c.Logger.WarnContext(ctx, "card skipped",
			slog.String("card_id", string(skipped.CardID)),
			slog.String("merchant", in.MerchantName),
			slog.Any("error", skipped.Err),
		)
	}
	if len(out.Results) > 0 {
		top := out.Results[0]
		c.Logger.DebugContext(ctx, "calculation done",
			slog.String("merchant_id", string(out.Merchant.ID)),
			slog.String("amount", in.Amount.String()),
			slog.Int("results", len(out.Results)),
			slog.String("best_card", string(top.Card.ID)),
			slog.String("best_value", RoundMoney(top.EffectiveValue()).String()),
		)
	}
	return out, nil
}

// RoundMoney rounds to cents, half away from zero. The engine never rounds
// internally; this is for presentation.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
