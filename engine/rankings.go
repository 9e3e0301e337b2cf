/*
rankings.go - Card leaderboards per spending category

PURPOSE:
  Answers "which card is best for dining?" without a concrete purchase. Each
  card contributes its single best rebate rule for the category, judged on
  the headline rate alone: no amount, no date and no cap accounting.

CATEGORIES:
  dining, hkd_online, supermarket, travel   category rules over those IDs
  foreign_online, overseas                  foreign-only rules, net of FX fee
  mobile_payment                            payment-method rules for wallets
  miles                                     miles cards, cheapest $/mile first
  all_round                                 the base rebate

ORDER:
  Rate descending (net rate for foreign categories), then the larger spending
  room under the cap, then uncapped before capped, then card name and ID.

SEE ALSO:
  - rank.go: Ranking for a concrete purchase
  - api/handlers.go: GET /api/rankings/{category}
*/
package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/card-rewards/catalog"
)

// ErrUnknownRankingCategory is returned for a category with no leaderboard.
var ErrUnknownRankingCategory = errors.New("unknown ranking category")

// DefaultRankingLimit is how many cards a leaderboard holds when the caller
// does not say.
const DefaultRankingLimit = 15

type RankingCategory string

const (
	RankDining        RankingCategory = "dining"
	RankHKDOnline     RankingCategory = "hkd_online"
	RankForeignOnline RankingCategory = "foreign_online"
	RankSupermarket   RankingCategory = "supermarket"
	RankTravel        RankingCategory = "travel"
	RankOverseas      RankingCategory = "overseas"
	RankMobilePayment RankingCategory = "mobile_payment"
	RankMiles         RankingCategory = "miles"
	RankAllRound      RankingCategory = "all_round"
)

// RankingConfig says which rules feed a leaderboard.
type RankingConfig struct {
	ID             RankingCategory
	Name           string
	Categories     []catalog.CategoryID
	PaymentMethods []catalog.PaymentMethod
	Foreign        bool
	Base           bool
	Miles          bool
}

var RankingCategories = []RankingConfig{
	{ID: RankDining, Name: "Dining", Categories: []catalog.CategoryID{"dining"}},
	{ID: RankHKDOnline, Name: "HKD Online Shopping", Categories: []catalog.CategoryID{catalog.CategoryOnline}},
	{ID: RankForeignOnline, Name: "Foreign Online Shopping", Categories: []catalog.CategoryID{catalog.CategoryOnline}, Foreign: true},
	{ID: RankSupermarket, Name: "Supermarket", Categories: []catalog.CategoryID{"supermarket"}},
	{ID: RankTravel, Name: "Travel", Categories: []catalog.CategoryID{"travel"}},
	{ID: RankOverseas, Name: "Overseas", Foreign: true},
	{
		ID: RankMobilePayment, Name: "Mobile Payment",
		PaymentMethods: []catalog.PaymentMethod{catalog.PaymentMobile, catalog.PaymentApplePay, catalog.PaymentGooglePay},
	},
	{ID: RankMiles, Name: "Miles", Miles: true},
	{ID: RankAllRound, Name: "All Round", Base: true},
}

// LookupRankingCategory finds a leaderboard by ID.
func LookupRankingCategory(id RankingCategory) (RankingConfig, bool) {
	for _, c := range RankingCategories {
		if c.ID == id {
			return c, true
		}
	}
	return RankingConfig{}, false
}

// CategoryRanking is one card's entry on a leaderboard.
type CategoryRanking struct {
	Card       catalog.Card
	Rule       catalog.Rule
	Percentage decimal.Decimal

	// Foreign categories only.
	FxFee         decimal.Decimal
	NetPercentage *decimal.Decimal

	// CapAsSpending is the monthly spend the rate holds for; nil when
	// uncapped.
	CapAsSpending *decimal.Decimal

	// Miles only.
	DollarsPerMile *decimal.Decimal
}

// RankByCategory builds the leaderboard for a category from the visible
// cards, best first, at most limit entries. A non-positive limit means
// DefaultRankingLimit.
func RankByCategory(id RankingCategory, cards []catalog.Card, limit int) ([]CategoryRanking, error) {
	cfg, ok := LookupRankingCategory(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRankingCategory, id)
	}
	if limit <= 0 {
		limit = DefaultRankingLimit
	}

	var out []CategoryRanking
	for _, card := range cards {
		if card.Hidden {
			continue
		}
		var (
			entry CategoryRanking
			found bool
		)
		if cfg.Miles {
			entry, found = bestMilesRule(card)
		} else {
			entry, found = bestCategoryRule(card, cfg)
		}
		if found {
			out = append(out, entry)
		}
	}

	if cfg.Miles {
		slices.SortFunc(out, compareMiles)
	} else {
		slices.SortFunc(out, compareRankings)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func bestCategoryRule(card catalog.Card, cfg RankingConfig) (CategoryRanking, bool) {
	var (
		best    catalog.Rule
		bestPct decimal.Decimal
		found   bool
	)
	for _, rule := range card.Rules {
		if rule.IsDiscount || !feedsCategory(rule, cfg) {
			continue
		}
		pct := rule.Percentage
		if cfg.Foreign {
			pct = pct.Sub(card.ForeignCurrencyFee)
		}
		if pct.GreaterThan(bestPct) {
			best, bestPct, found = rule, pct, true
		}
	}
	if !found {
		return CategoryRanking{}, false
	}

	entry := CategoryRanking{
		Card:          card,
		Rule:          best,
		Percentage:    best.Percentage,
		CapAsSpending: CapAsSpending(best),
	}
	if cfg.Foreign {
		entry.FxFee = card.ForeignCurrencyFee
		entry.NetPercentage = &bestPct
	}
	return entry, true
}

func feedsCategory(rule catalog.Rule, cfg RankingConfig) bool {
	if cfg.Foreign {
		if !rule.ForeignOnly {
			return false
		}
		if len(cfg.Categories) == 0 {
			return true
		}
	} else if rule.ForeignOnly {
		return false
	}

	switch s := rule.Scope.(type) {
	case catalog.CategoryScope:
		return len(cfg.Categories) > 0 && slices.ContainsFunc(s.CategoryIDs, func(id catalog.CategoryID) bool {
			return slices.Contains(cfg.Categories, id)
		})
	case catalog.PaymentMethodScope:
		return len(cfg.PaymentMethods) > 0 && slices.ContainsFunc(s.Methods, func(m catalog.PaymentMethod) bool {
			return slices.Contains(cfg.PaymentMethods, m)
		})
	case catalog.BaseScope:
		return cfg.Base
	default:
		return false
	}
}

// bestMilesRule picks the miles card's cheapest rule per mile among the
// rebates that apply in Hong Kong dollars.
func bestMilesRule(card catalog.Card) (CategoryRanking, bool) {
	rc := card.RewardConfig
	if rc == nil || rc.Currency != catalog.CurrencyMiles || !rc.Rate.IsPositive() {
		return CategoryRanking{}, false
	}

	var (
		best  catalog.Rule
		found bool
	)
	for _, rule := range card.Rules {
		if rule.IsDiscount || rule.ForeignOnly || !rule.Percentage.IsPositive() {
			continue
		}
		if !found || rule.Percentage.GreaterThan(best.Percentage) {
			best, found = rule, true
		}
	}
	if !found {
		return CategoryRanking{}, false
	}

	perMile := hundred.Div(best.Percentage.Mul(rc.Rate))
	return CategoryRanking{
		Card:           card,
		Rule:           best,
		Percentage:     best.Percentage,
		CapAsSpending:  CapAsSpending(best),
		DollarsPerMile: &perMile,
	}, true
}

// CapAsSpending converts a rule's cap into the spend it covers: a spending
// cap as is, a reward cap divided by the rate. Nil when the rule is uncapped.
func CapAsSpending(rule catalog.Rule) *decimal.Decimal {
	if rule.Cap == nil {
		return nil
	}
	limit := *rule.Cap
	if rule.CapType == catalog.CapReward {
		if !rule.Percentage.IsPositive() {
			return nil
		}
		limit = limit.Div(rule.Percentage).Mul(hundred).Round(0)
	}
	return &limit
}

func (r CategoryRanking) rate() decimal.Decimal {
	if r.NetPercentage != nil {
		return *r.NetPercentage
	}
	return r.Percentage
}

func compareRankings(a, b CategoryRanking) int {
	if c := b.rate().Cmp(a.rate()); c != 0 {
		return c
	}
	return compareRoom(a, b)
}

func compareMiles(a, b CategoryRanking) int {
	if c := a.DollarsPerMile.Cmp(*b.DollarsPerMile); c != 0 {
		return c
	}
	return compareRoom(a, b)
}

// compareRoom prefers more spending room: uncapped first, then the larger
// cap, then card name and ID.
func compareRoom(a, b CategoryRanking) int {
	switch {
	case a.CapAsSpending == nil && b.CapAsSpending != nil:
		return -1
	case a.CapAsSpending != nil && b.CapAsSpending == nil:
		return 1
	case a.CapAsSpending != nil:
		if c := b.CapAsSpending.Cmp(*a.CapAsSpending); c != 0 {
			return c
		}
	}
	if c := strings.Compare(a.Card.Name, b.Card.Name); c != 0 {
		return c
	}
	return strings.Compare(string(a.Card.ID), string(b.Card.ID))
}

// Warnings lists the catches behind a leaderboard entry's headline rate.
func (r CategoryRanking) Warnings() []string {
	var out []string
	if r.Rule.MinSpend.IsPositive() {
		out = append(out, fmt.Sprintf("Only on single purchases of %s or more", money(r.Rule.MinSpend)))
	}
	if r.Rule.HasWeekdayGate() || r.Rule.HasDayOfMonthGate() {
		out = append(out, "Selected days only")
	}
	if r.Rule.HasWindow() {
		out = append(out, "Limited-time promotion")
	}
	if slices.Contains(r.Rule.ExcludePaymentMethods, catalog.PaymentAlipay) ||
		slices.Contains(r.Rule.ExcludePaymentMethods, catalog.PaymentWeChatPay) {
		out = append(out, "E-wallet payments excluded")
	}
	if r.Card.ForeignCurrencyFee.IsPositive() {
		out = append(out, fmt.Sprintf("Foreign currency spending carries a %s%% fee", r.Card.ForeignCurrencyFee))
	}
	return out
}

// SpendingLimit describes the cap as a monthly spending limit.
func (r CategoryRanking) SpendingLimit() string {
	if r.CapAsSpending == nil {
		return "No limit"
	}
	return fmt.Sprintf("%s a month", money(*r.CapAsSpending))
}
