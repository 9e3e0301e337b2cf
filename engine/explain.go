package engine

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/card-rewards/catalog"
)

// =============================================================================
// PRESENTATION HELPERS
// =============================================================================

// GroupByOwnership splits ranked results into the cards the user holds and
// the rest, keeping relative order in both.
func GroupByOwnership(results []Result, owned []catalog.CardID) (mine, others []Result) {
	for _, r := range results {
		if slices.Contains(owned, r.Card.ID) {
			mine = append(mine, r)
		} else {
			others = append(others, r)
		}
	}
	return mine, others
}

// Explain describes a result in plain sentences, most important first.
// Amounts are rounded to cents.
func Explain(r Result) []string {
	lines := []string{
		fmt.Sprintf("%s rule %q pays %s%%: %s", matchLabel(r.MatchType), r.MatchedRule.Description,
			r.Percentage.String(), money(r.RewardAmount)),
	}

	if r.DiscountRule != nil {
		lines = append(lines, fmt.Sprintf("Instant discount %q takes %s%% off: %s",
			r.DiscountRule.Description, r.DiscountPercentage, money(*r.DiscountAmount)))
	}
	if r.IsCapped {
		lines = append(lines, fmt.Sprintf("Capped: effective rate %s%%", RoundMoney(r.EffectivePercentage)))
	}
	if r.NetRewardAmount != nil {
		lines = append(lines, fmt.Sprintf("Foreign currency fee %s%% leaves %s net (%s%%)",
			r.FxFee, money(*r.NetRewardAmount), RoundMoney(*r.NetPercentage)))
	}
	if r.MilesReturn != nil {
		lines = append(lines, fmt.Sprintf("Costs %s per mile", money(*r.MilesReturn)))
	}
	if r.PointsAmount != nil {
		lines = append(lines, fmt.Sprintf("Earns %s %s worth %s",
			r.PointsAmount.Round(0), pointsLabel(r.PointsCurrency), money(*r.PointsCashValue)))
	}
	if s := r.DateSuggestion; s != nil {
		lines = append(lines, fmt.Sprintf("On %s: %q pays %s%% (%s)",
			weekdays(s.ValidDays), s.Description, s.NewPercentage, money(s.NewRewardAmount)))
	}
	if r.MissedDiscountRule != nil {
		verb := "pays"
		if r.MissedDiscountRule.IsDiscount {
			verb = "takes off"
		}
		lines = append(lines, fmt.Sprintf("%s: %q %s %s%% (%s)",
			missedWhen(*r.MissedDiscountRule), r.MissedDiscountRule.Description, verb,
			r.MissedDiscountPercentage, money(*r.MissedDiscountAmount)))
	}
	if s := r.SpendingSuggestion; s != nil {
		lines = append(lines, fmt.Sprintf("Spend %s or more: %q pays %s%% (%s)",
			money(s.TargetAmount), s.Description, s.NewPercentage, money(s.NewRewardAmount)))
	}
	if r.SuggestedPaymentMethod != "" && r.PotentialRewardAmount != nil {
		lines = append(lines, fmt.Sprintf("Paying with %s would earn %s",
			r.SuggestedPaymentMethod, money(*r.PotentialRewardAmount)))
	}
	return lines
}

// Comparison says how far a result is behind another.
type Comparison struct {
	CardID           catalog.CardID
	ValueGap         decimal.Decimal // best minus other, effective value
	PercentageGap    decimal.Decimal // best minus other, nominal percentage
	SameRuleCategory bool            // both matched at the same tier
	Summary          string
}

// Compare measures other against best.
func Compare(best, other Result) Comparison {
	gap := best.EffectiveValue().Sub(other.EffectiveValue())
	c := Comparison{
		CardID:           other.Card.ID,
		ValueGap:         gap,
		PercentageGap:    best.Percentage.Sub(other.Percentage),
		SameRuleCategory: best.MatchType == other.MatchType,
	}
	switch {
	case gap.IsZero():
		c.Summary = fmt.Sprintf("%s pays the same as %s", other.Card.Name, best.Card.Name)
	case gap.IsPositive():
		c.Summary = fmt.Sprintf("%s pays %s less than %s", other.Card.Name, money(gap), best.Card.Name)
	default:
		c.Summary = fmt.Sprintf("%s pays %s more than %s", other.Card.Name, money(gap.Neg()), best.Card.Name)
	}
	return c
}

func matchLabel(m catalog.MatchType) string {
	switch m {
	case catalog.MatchMerchant:
		return "Merchant"
	case catalog.MatchCategory:
		return "Category"
	case catalog.MatchPaymentMethod:
		return "Payment method"
	default:
		return "Base"
	}
}

func money(d decimal.Decimal) string {
	return "$" + RoundMoney(d).StringFixed(2)
}

func pointsLabel(label string) string {
	if label == "" {
		return "points"
	}
	return label
}

func weekdays(ds []time.Weekday) string {
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.String()
	}
	return strings.Join(names, "/")
}

func missedWhen(rule catalog.Rule) string {
	switch {
	case rule.HasWeekdayGate() && rule.HasDayOfMonthGate():
		return fmt.Sprintf("On %s, day %s of the month", weekdays(rule.ValidDays), days(rule.ValidDates))
	case rule.HasWeekdayGate():
		return "On " + weekdays(rule.ValidDays)
	case rule.HasDayOfMonthGate():
		return fmt.Sprintf("On day %s of the month", days(rule.ValidDates))
	default:
		return "During its promotion"
	}
}

func days(ds []int) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = fmt.Sprint(d)
	}
	return strings.Join(parts, "/")
}
