package engine

import (
	"github.com/shopspring/decimal"

	"github.com/warp/card-rewards/catalog"
)

// Suggestions are the better deals a purchase narrowly missed on one card.
type Suggestions struct {
	// Date is set for a weekday-gated rule that would pay more on another
	// weekday.
	Date *DateSuggestion

	// MissedDiscount is set for a rebate rule gated only by day of month (the
	// "3rd, 13th and 23rd" kind of promotion), or for an instant discount
	// that is not on today.
	MissedDiscountRule       *catalog.Rule
	MissedDiscountAmount     *decimal.Decimal
	MissedDiscountPercentage *decimal.Decimal

	// Spending is set for a rule the purchase missed by spending too little.
	Spending *SpendingSuggestion
}

// Suggest looks through a match's rejected candidates for better deals.
//
// A date-rejected rule qualifies only when both its percentage and its
// reward on this amount beat the matched rule. Rules whose promotion window
// excludes the date are never suggested; coming back on another weekday
// would not help.
//
// A date-rejected discount qualifies when it would take more off the bill
// than the discount applied today, if any. The missed discount is whichever
// day-of-month rebate or discount would have paid the most.
//
// A spend-rejected rule qualifies when, at its minimum spend, it pays more
// than the matched rule would at that same amount.
func Suggest(m Match, current Reward, sc Scenario) Suggestions {
	var out Suggestions

	var weekday, missed []candidate
	for i, r := range m.DateRejected {
		if !r.Percentage.GreaterThan(m.Rule.Percentage) || !windowOpen(r, sc) {
			continue
		}
		if !ComputeReward(r, sc.Amount).Amount.GreaterThan(current.Amount) {
			continue
		}
		switch {
		case r.HasWeekdayGate():
			weekday = append(weekday, candidate{rule: r, index: i})
		case r.HasDayOfMonthGate():
			missed = append(missed, candidate{rule: r, index: i})
		}
	}

	currentDiscount := decimal.Zero
	if m.Discount != nil {
		currentDiscount = ComputeReward(*m.Discount, sc.Amount).Amount
	}
	for i, r := range m.DiscountDateRejected {
		if !windowOpen(r, sc) {
			continue
		}
		if ComputeReward(r, sc.Amount).Amount.GreaterThan(currentDiscount) {
			missed = append(missed, candidate{rule: r, index: len(m.DateRejected) + i})
		}
	}

	if len(weekday) > 0 {
		r := best(weekday).rule
		out.Date = &DateSuggestion{
			RuleID:          r.ID,
			ValidDays:       r.ValidDays,
			ValidDates:      r.ValidDates,
			Description:     r.Description,
			NewPercentage:   r.Percentage,
			NewRewardAmount: ComputeReward(r, sc.Amount).Amount,
		}
	}

	if len(missed) > 0 {
		r := richest(missed, sc.Amount).rule
		amount := ComputeReward(r, sc.Amount).Amount
		pct := r.Percentage
		out.MissedDiscountRule = &r
		out.MissedDiscountAmount = &amount
		out.MissedDiscountPercentage = &pct
	}

	var spend []candidate
	for i, r := range m.SpendRejected {
		target := r.MinSpend
		if ComputeReward(r, target).Amount.GreaterThan(ComputeReward(m.Rule, target).Amount) {
			spend = append(spend, candidate{rule: r, index: i})
		}
	}
	if len(spend) > 0 {
		r := best(spend).rule
		out.Spending = &SpendingSuggestion{
			RuleID:          r.ID,
			TargetAmount:    r.MinSpend,
			Description:     r.Description,
			NewPercentage:   r.Percentage,
			NewRewardAmount: ComputeReward(r, r.MinSpend).Amount,
		}
	}

	return out
}

// richest picks the candidate paying the most on amount, falling back to the
// usual tie-break.
func richest(cs []candidate, amount decimal.Decimal) candidate {
	winner := cs[0]
	top := ComputeReward(winner.rule, amount).Amount
	for _, c := range cs[1:] {
		a := ComputeReward(c.rule, amount).Amount
		if a.GreaterThan(top) || (a.Equal(top) && outranks(c, winner)) {
			winner, top = c, a
		}
	}
	return winner
}

// windowOpen reports whether the rule's promotion window, if any, covers the
// scenario date.
func windowOpen(r catalog.Rule, sc Scenario) bool {
	if !r.HasWindow() {
		return true
	}
	windowOnly := catalog.Rule{ValidFrom: r.ValidFrom, ValidTo: r.ValidTo}
	return windowOnly.ValidOn(sc.Date)
}

func (s Suggestions) apply(res *Result) {
	res.DateSuggestion = s.Date
	res.MissedDiscountRule = s.MissedDiscountRule
	res.MissedDiscountAmount = s.MissedDiscountAmount
	res.MissedDiscountPercentage = s.MissedDiscountPercentage
	res.SpendingSuggestion = s.Spending
}
