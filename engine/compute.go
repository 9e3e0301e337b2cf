package engine

import (
	"github.com/shopspring/decimal"

	"github.com/warp/card-rewards/catalog"
)

var hundred = decimal.NewFromInt(100)

// Reward is a rule applied to an amount.
type Reward struct {
	Amount   decimal.Decimal
	IsCapped bool
}

// ComputeReward applies a rule's rate and cap to amount.
//
//	no cap:        amount * pct / 100
//	spending cap:  min(amount, cap) * pct / 100, capped when amount > cap
//	reward cap:    min(amount * pct / 100, cap), capped when gross > cap
func ComputeReward(rule catalog.Rule, amount decimal.Decimal) Reward {
	if rule.Cap == nil {
		return Reward{Amount: percentOf(amount, rule.Percentage)}
	}

	limit := *rule.Cap
	if rule.CapType == catalog.CapReward {
		gross := percentOf(amount, rule.Percentage)
		if gross.GreaterThan(limit) {
			return Reward{Amount: limit, IsCapped: true}
		}
		return Reward{Amount: gross}
	}

	if amount.GreaterThan(limit) {
		return Reward{Amount: percentOf(limit, rule.Percentage), IsCapped: true}
	}
	return Reward{Amount: percentOf(amount, rule.Percentage)}
}

func percentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// computeResult turns a match into a card result: reward, FX net and unit
// conversions. Suggestions are added separately.
func computeResult(card catalog.Card, rule catalog.Rule, sc Scenario) Result {
	reward := ComputeReward(rule, sc.Amount)

	res := Result{
		Card:                card,
		MatchedRule:         rule,
		MatchType:           rule.MatchType(),
		Percentage:          rule.Percentage,
		EffectivePercentage: reward.Amount.Div(sc.Amount).Mul(hundred),
		RewardAmount:        reward.Amount,
		IsCapped:            reward.IsCapped,
		IsForeignCurrency:   sc.Foreign,
	}

	if sc.Foreign && card.ForeignCurrencyFee.IsPositive() {
		fee := card.ForeignCurrencyFee
		net := reward.Amount.Sub(percentOf(sc.Amount, fee))
		netPct := res.EffectivePercentage.Sub(fee)
		res.FxFee = fee
		res.NetRewardAmount = &net
		res.NetPercentage = &netPct
	}

	applyConversion(&res, card.RewardConfig, sc.Amount)
	return res
}

// applyConversion fills the miles or points figures. Cash cards, and cards
// without a reward config, get neither.
func applyConversion(res *Result, rc *catalog.RewardConfig, amount decimal.Decimal) {
	if rc == nil {
		return
	}
	switch rc.Currency {
	case catalog.CurrencyMiles:
		miles := res.RewardAmount.Mul(rc.Rate)
		if miles.IsPositive() {
			perMile := amount.Div(miles)
			res.MilesReturn = &perMile
		}
	case catalog.CurrencyPoints:
		points := amount.Mul(rc.Rate)
		cash := points.Mul(rc.RedemptionValue)
		res.PointsAmount = &points
		res.PointsCashValue = &cash
		res.PointsCurrency = rc.Label
	}
}

// applyDiscount records the instant discount. It stays out of RewardAmount and
// only reaches the ranking through EffectiveValue.
func applyDiscount(res *Result, rule *catalog.Rule, amount decimal.Decimal) {
	if rule == nil {
		return
	}
	r := rule.Clone()
	off := ComputeReward(r, amount).Amount
	pct := r.Percentage
	res.DiscountRule = &r
	res.DiscountPercentage = &pct
	res.DiscountAmount = &off
}
