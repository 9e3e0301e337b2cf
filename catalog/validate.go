package catalog

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ISSUES
// =============================================================================

type Severity string

const (
	SeverityError   Severity = "error"   // card is unusable and is dropped
	SeverityWarning Severity = "warning" // card is kept
)

type IssueCode string

const (
	IssueDuplicateCard      IssueCode = "duplicate_card"
	IssueDuplicateRule      IssueCode = "duplicate_rule"
	IssueDuplicateMerchant  IssueCode = "duplicate_merchant"
	IssueNoBaseRule         IssueCode = "no_base_rule"
	IssueMultipleBaseRules  IssueCode = "multiple_base_rules"
	IssueMissingScope       IssueCode = "missing_scope"
	IssueEmptyMatchValue    IssueCode = "empty_match_value"
	IssuePercentageRange    IssueCode = "percentage_out_of_range"
	IssueInvalidCap         IssueCode = "invalid_cap"
	IssueInvalidWeekday     IssueCode = "invalid_weekday"
	IssueInvalidDayOfMonth  IssueCode = "invalid_day_of_month"
	IssueInvertedWindow     IssueCode = "inverted_window"
	IssueNegativeFee        IssueCode = "negative_fee"
	IssueInvalidReward      IssueCode = "invalid_reward_config"
	IssueUnknownMerchant    IssueCode = "unknown_merchant"
	IssueUnknownCategory    IssueCode = "unknown_category"
	IssueNegativeMinSpend   IssueCode = "negative_min_spend"
	IssueUnknownCapSettings IssueCode = "unknown_cap_settings"
)

// Issue is one integrity finding. CardID/RuleID are empty for catalog-wide
// findings.
type Issue struct {
	Severity Severity  `json:"severity"`
	Code     IssueCode `json:"code"`
	CardID   CardID    `json:"card_id,omitempty"`
	RuleID   RuleID    `json:"rule_id,omitempty"`
	Message  string    `json:"message"`
}

func (i Issue) String() string {
	where := string(i.CardID)
	if i.RuleID != "" {
		where += "/" + string(i.RuleID)
	}
	if where == "" {
		return fmt.Sprintf("%s %s: %s", i.Severity, i.Code, i.Message)
	}
	return fmt.Sprintf("%s %s [%s]: %s", i.Severity, i.Code, where, i.Message)
}

// =============================================================================
// VALIDATION
// =============================================================================

var hundred = decimal.NewFromInt(100)

// Validate checks catalog integrity and returns every finding, errors first
// in catalog order. It never modifies the snapshot.
func Validate(snap *Snapshot) []Issue {
	var issues []Issue

	merchants := make(map[MerchantID]bool, len(snap.Merchants))
	for _, m := range snap.Merchants {
		if merchants[m.ID] {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Code:     IssueDuplicateMerchant,
				Message:  fmt.Sprintf("merchant %q defined more than once; first definition wins", m.ID),
			})
		}
		merchants[m.ID] = true
	}

	categories := make(map[CategoryID]bool, len(snap.Categories))
	for _, c := range snap.Categories {
		categories[c.ID] = true
	}
	for _, m := range snap.Merchants {
		for _, c := range m.CategoryIDs {
			if !categories[c] {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Code:     IssueUnknownCategory,
					Message:  fmt.Sprintf("merchant %q references unknown category %q", m.ID, c),
				})
			}
		}
	}

	seenCards := make(map[CardID]bool, len(snap.Cards))
	for _, card := range snap.Cards {
		if seenCards[card.ID] {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     IssueDuplicateCard,
				CardID:   card.ID,
				Message:  "card id defined more than once; later definition dropped",
			})
			continue
		}
		seenCards[card.ID] = true
		issues = append(issues, validateCard(card, merchants, categories)...)
	}

	slices.SortStableFunc(issues, func(a, b Issue) int {
		return severityRank(a.Severity) - severityRank(b.Severity)
	})
	return issues
}

func severityRank(s Severity) int {
	if s == SeverityError {
		return 0
	}
	return 1
}

func validateCard(card Card, merchants map[MerchantID]bool, categories map[CategoryID]bool) []Issue {
	var issues []Issue
	cardErr := func(code IssueCode, format string, args ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Code: code, CardID: card.ID, Message: fmt.Sprintf(format, args...)})
	}

	if card.ForeignCurrencyFee.IsNegative() {
		cardErr(IssueNegativeFee, "foreign currency fee %s is negative", card.ForeignCurrencyFee)
	}
	if rc := card.RewardConfig; rc != nil {
		switch rc.Currency {
		case CurrencyMiles:
			if !rc.Rate.IsPositive() {
				cardErr(IssueInvalidReward, "miles card needs a positive conversion rate")
			}
		case CurrencyPoints:
			if !rc.Rate.IsPositive() || rc.RedemptionValue.IsNegative() {
				cardErr(IssueInvalidReward, "points card needs a positive rate and non-negative redemption value")
			}
		}
	}

	baseRules := 0
	seenRules := make(map[RuleID]bool, len(card.Rules))
	for _, rule := range card.Rules {
		if seenRules[rule.ID] {
			issues = append(issues, Issue{
				Severity: SeverityError, Code: IssueDuplicateRule, CardID: card.ID, RuleID: rule.ID,
				Message: "rule id used more than once on this card",
			})
		}
		seenRules[rule.ID] = true

		if _, ok := rule.Scope.(BaseScope); ok && rule.IsCatchAll() {
			baseRules++
		}
		issues = append(issues, validateRule(card.ID, rule, merchants, categories)...)
	}

	switch {
	case baseRules == 0:
		cardErr(IssueNoBaseRule, "card has no catch-all base rule")
	case baseRules > 1:
		issues = append(issues, Issue{
			Severity: SeverityWarning, Code: IssueMultipleBaseRules, CardID: card.ID,
			Message: fmt.Sprintf("card has %d catch-all base rules; the best one applies", baseRules),
		})
	}
	return issues
}

func validateRule(cardID CardID, rule Rule, merchants map[MerchantID]bool, categories map[CategoryID]bool) []Issue {
	var issues []Issue
	add := func(sev Severity, code IssueCode, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Code: code, CardID: cardID, RuleID: rule.ID, Message: fmt.Sprintf(format, args...)})
	}

	switch s := rule.Scope.(type) {
	case nil:
		add(SeverityError, IssueMissingScope, "rule has no match type")
	case MerchantScope:
		if len(s.MerchantIDs) == 0 {
			add(SeverityWarning, IssueEmptyMatchValue, "merchant rule lists no merchants and never matches")
		}
		for _, id := range s.MerchantIDs {
			if !merchants[id] {
				add(SeverityWarning, IssueUnknownMerchant, "unknown merchant %q", id)
			}
		}
	case CategoryScope:
		if len(s.CategoryIDs) == 0 {
			add(SeverityWarning, IssueEmptyMatchValue, "category rule lists no categories and never matches")
		}
		for _, id := range s.CategoryIDs {
			if !categories[id] {
				add(SeverityWarning, IssueUnknownCategory, "unknown category %q", id)
			}
		}
	case PaymentMethodScope:
		if len(s.Methods) == 0 {
			add(SeverityWarning, IssueEmptyMatchValue, "payment method rule lists no methods and never matches")
		}
	case BaseScope:
	}

	if rule.Percentage.IsNegative() || rule.Percentage.GreaterThan(hundred) {
		add(SeverityError, IssuePercentageRange, "percentage %s outside 0-100", rule.Percentage)
	}
	if rule.Cap != nil && rule.Cap.IsNegative() {
		add(SeverityError, IssueInvalidCap, "cap %s is negative", rule.Cap)
	}
	switch rule.CapType {
	case "", CapSpending, CapReward:
	default:
		add(SeverityError, IssueUnknownCapSettings, "unknown cap type %q", rule.CapType)
	}
	switch rule.CapPeriod {
	case "", CapMonthly, CapQuarterly, CapYearly:
	case CapPromo:
		if !rule.HasWindow() {
			add(SeverityWarning, IssueUnknownCapSettings, "promo cap period without a promotion window; treated as monthly")
		}
	default:
		add(SeverityError, IssueUnknownCapSettings, "unknown cap period %q", rule.CapPeriod)
	}
	if rule.MinSpend.IsNegative() {
		add(SeverityError, IssueNegativeMinSpend, "min spend %s is negative", rule.MinSpend)
	}
	for _, d := range rule.ValidDays {
		if d < time.Sunday || d > time.Saturday {
			add(SeverityError, IssueInvalidWeekday, "weekday %d outside 0-6", d)
		}
	}
	for _, d := range rule.ValidDates {
		if d < 1 || d > 31 {
			add(SeverityError, IssueInvalidDayOfMonth, "day of month %d outside 1-31", d)
		}
	}
	if rule.ValidFrom != nil && rule.ValidTo != nil && truncateDay(*rule.ValidTo).Before(truncateDay(*rule.ValidFrom)) {
		add(SeverityError, IssueInvertedWindow, "valid_to %s is before valid_from %s",
			rule.ValidTo.Format("2006-01-02"), rule.ValidFrom.Format("2006-01-02"))
	}
	for _, id := range rule.ExcludeCategories {
		if !categories[id] {
			add(SeverityWarning, IssueUnknownCategory, "excludes unknown category %q", id)
		}
	}
	return issues
}

// Partition splits a snapshot into the usable part and the findings. Cards
// with at least one error-severity issue are dropped; merchants and
// categories are kept, with duplicate merchants collapsed to the first
// definition.
func Partition(snap *Snapshot) (*Snapshot, []Issue) {
	issues := Validate(snap)

	broken := make(map[CardID]bool)
	for _, is := range issues {
		if is.Severity == SeverityError && is.CardID != "" && is.Code != IssueDuplicateCard {
			broken[is.CardID] = true
		}
	}

	out := &Snapshot{Categories: snap.Categories}

	seenMerchants := make(map[MerchantID]bool, len(snap.Merchants))
	for _, m := range snap.Merchants {
		if seenMerchants[m.ID] {
			continue
		}
		seenMerchants[m.ID] = true
		out.Merchants = append(out.Merchants, m)
	}

	seenCards := make(map[CardID]bool, len(snap.Cards))
	for _, c := range snap.Cards {
		if seenCards[c.ID] {
			continue
		}
		seenCards[c.ID] = true
		if broken[c.ID] {
			continue
		}
		out.Cards = append(out.Cards, c)
	}
	return out, issues
}
