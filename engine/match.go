package engine

import (
	"slices"

	"github.com/warp/card-rewards/catalog"
)

// Match is the rule a card applies to a scenario, plus the candidates that
// would have applied but for one condition. Rejected candidates are kept only
// from tiers at or above the winning one, since a lower tier could not win
// even with its condition met. Both rejected lists are in declaration order.
type Match struct {
	Rule catalog.Rule

	// DateRejected failed only their date gate.
	DateRejected []catalog.Rule

	// SpendRejected failed only their minimum spend.
	SpendRejected []catalog.Rule

	// Discount is the best instant discount that applies, if any. Discounts
	// stand outside the tiers and add to whatever rebate Rule pays.
	Discount *catalog.Rule

	// DiscountDateRejected are discounts that failed only their date gate.
	DiscountDateRejected []catalog.Rule
}

type candidate struct {
	rule  catalog.Rule
	index int
}

// MatchRule picks the rule a card applies to the scenario.
//
// Tiers are tried in order merchant, category, payment method, base; the
// first tier with an eligible rule wins outright, whatever the percentages in
// lower tiers. Within a tier the best rule is the highest percentage, then
// uncapped over capped, then the earliest declared.
//
// Discount rules are picked separately with the same tie-break, from every
// tier at once.
//
// Returns ErrNoBaseRule when no rebate rule is eligible.
func MatchRule(card catalog.Card, sc Scenario) (Match, error) {
	var (
		eligible      [4][]candidate
		dateRejected  [4][]candidate
		spendRejected [4][]candidate

		discounts, discountDateRejected []candidate
	)

	for i, rule := range card.Rules {
		tier := rule.MatchType().Tier()
		if tier >= len(eligible) || !isScopeCandidate(rule, sc) {
			continue
		}

		dateOK := rule.ValidOn(sc.Date)
		spendOK := sc.Amount.GreaterThanOrEqual(rule.MinSpend)
		c := candidate{rule: rule, index: i}

		if rule.IsDiscount {
			switch {
			case dateOK && spendOK:
				discounts = append(discounts, c)
			case spendOK:
				discountDateRejected = append(discountDateRejected, c)
			}
			continue
		}

		switch {
		case dateOK && spendOK:
			eligible[tier] = append(eligible[tier], c)
		case spendOK:
			dateRejected[tier] = append(dateRejected[tier], c)
		case dateOK:
			spendRejected[tier] = append(spendRejected[tier], c)
		}
	}

	for tier := range eligible {
		if len(eligible[tier]) == 0 {
			continue
		}
		m := Match{
			Rule:                 best(eligible[tier]).rule,
			DateRejected:         declared(dateRejected[:tier+1]...),
			SpendRejected:        declared(spendRejected[:tier+1]...),
			DiscountDateRejected: declared(discountDateRejected),
		}
		if len(discounts) > 0 {
			d := best(discounts).rule
			m.Discount = &d
		}
		return m, nil
	}
	return Match{}, ErrNoBaseRule
}

// isScopeCandidate checks everything except the date gate and min spend.
func isScopeCandidate(rule catalog.Rule, sc Scenario) bool {
	if rule.ForeignOnly && !sc.Foreign {
		return false
	}
	if isExcluded(rule, sc) {
		return false
	}
	return scopeMatches(rule.Scope, sc)
}

func scopeMatches(scope catalog.Scope, sc Scenario) bool {
	switch s := scope.(type) {
	case catalog.MerchantScope:
		return sc.Merchant.ID != "" && slices.Contains(s.MerchantIDs, sc.Merchant.ID)
	case catalog.CategoryScope:
		return slices.ContainsFunc(s.CategoryIDs, sc.inCategory)
	case catalog.PaymentMethodScope:
		return slices.ContainsFunc(s.Methods, func(m catalog.PaymentMethod) bool {
			return methodMatches(m, sc)
		})
	case catalog.BaseScope:
		return true
	default:
		return false
	}
}

// methodMatches reports whether a rule's method value covers the purchase.
// "mobile" covers the phone wallets and "online" covers online purchases.
func methodMatches(value catalog.PaymentMethod, sc Scenario) bool {
	switch {
	case sc.PaymentMethod != "" && value == sc.PaymentMethod:
		return true
	case value == catalog.PaymentMobile:
		return slices.Contains(catalog.MobileWallets, sc.PaymentMethod)
	case value == catalog.PaymentOnline:
		return sc.Online
	default:
		return false
	}
}

func isExcluded(rule catalog.Rule, sc Scenario) bool {
	if slices.ContainsFunc(rule.ExcludeCategories, sc.Merchant.InCategory) {
		return true
	}
	if sc.PaymentMethod == "" {
		return false
	}
	return slices.ContainsFunc(rule.ExcludePaymentMethods, func(m catalog.PaymentMethod) bool {
		return m == sc.PaymentMethod || (m == catalog.PaymentMobile && slices.Contains(catalog.MobileWallets, sc.PaymentMethod))
	})
}

// best applies the within-tier tie-break. cs must be non-empty and in
// declaration order.
func best(cs []candidate) candidate {
	winner := cs[0]
	for _, c := range cs[1:] {
		if outranks(c, winner) {
			winner = c
		}
	}
	return winner
}

func outranks(a, b candidate) bool {
	if cmp := a.rule.Percentage.Cmp(b.rule.Percentage); cmp != 0 {
		return cmp > 0
	}
	if a.rule.HasCap() != b.rule.HasCap() {
		return !a.rule.HasCap()
	}
	return a.index < b.index
}

// declared flattens candidate lists back into declaration order.
func declared(groups ...[]candidate) []catalog.Rule {
	var all []candidate
	for _, g := range groups {
		all = append(all, g...)
	}
	slices.SortFunc(all, func(a, b candidate) int { return a.index - b.index })

	var out []catalog.Rule
	for _, c := range all {
		out = append(out, c.rule)
	}
	return out
}
