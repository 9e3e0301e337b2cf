/*
Package engine resolves, computes and ranks card rewards for one purchase.

PURPOSE:
  Given a merchant name, an amount, a payment method and a date, find for
  every card the single rule that applies, turn it into a reward, note any
  better deal the user narrowly missed, and rank the cards by what they are
  actually worth.

PIPELINE:
  ResolveMerchant -> (per card) MatchRule -> ComputeReward -> Suggest -> Rank

  Each stage is a pure function of its inputs. The engine holds no state,
  performs no I/O and never mutates the catalog, so identical calls produce
  deep-equal output and concurrent calls need no locking.

KEY CONCEPTS:
  - Scenario: the resolved purchase (merchant, categories, flags, date)
  - Match: the winning rule plus the near misses (date or spend rejected)
  - Result: one card's outcome, with conversions and suggestions
  - Effective value: net cash after FX fee, else points cash value, else
    reward; instant discounts are added on top

CAPS:
  Caps are enforced per call only. Cross-call accounting ("already spent
  $800 of the $1,000 this month") is done by ledger.AdjustCaps, which hands
  the engine cards whose caps are already reduced.

SEE ALSO:
  - catalog/: Card and rule definitions
  - ledger/: Cap accounting across purchases
  - api/: HTTP surface
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/card-rewards/catalog"
)

// =============================================================================
// INPUT
// =============================================================================

type RewardPreference string

const (
	PreferCash  RewardPreference = "cash"
	PreferMiles RewardPreference = "miles"
)

// Options describe a purchase apart from the merchant.
type Options struct {
	Amount           decimal.Decimal
	PaymentMethod    catalog.PaymentMethod
	IsOnlineScenario bool
	ForeignCurrency  bool
	Date             time.Time // zero means now
	RewardPreference RewardPreference
}

// Context is a complete calculation request.
type Context struct {
	MerchantName string
	Options
}

// Scenario is a purchase after the merchant has been resolved. Rule matching
// only ever looks at a Scenario.
type Scenario struct {
	Merchant      catalog.Merchant
	Categories    []catalog.Category
	Amount        decimal.Decimal
	PaymentMethod catalog.PaymentMethod
	Online        bool
	Foreign       bool
	Date          time.Time
}

// NewScenario derives the online and foreign flags. A purchase is online if
// the caller says so, pays with the "online" method, or the merchant only
// sells online. It is foreign if the caller says so or the merchant or any of
// its categories bill in a foreign currency; the payment method alone never
// makes it foreign.
func NewScenario(merchant catalog.Merchant, categories []catalog.Category, opts Options) Scenario {
	sc := Scenario{
		Merchant:      merchant,
		Amount:        opts.Amount,
		PaymentMethod: opts.PaymentMethod,
		Online:        opts.IsOnlineScenario || opts.PaymentMethod == catalog.PaymentOnline || merchant.IsOnlineOnly,
		Foreign:       opts.ForeignCurrency || merchant.IsForeign,
		Date:          opts.Date,
	}
	for _, id := range merchant.CategoryIDs {
		for _, c := range categories {
			if c.ID == id {
				sc.Categories = append(sc.Categories, c)
				if c.IsForeign {
					sc.Foreign = true
				}
				break
			}
		}
	}
	return sc
}

func (s Scenario) inCategory(id catalog.CategoryID) bool {
	if id == catalog.CategoryOnline {
		return s.Online
	}
	return s.Merchant.InCategory(id)
}

// =============================================================================
// OUTPUT
// =============================================================================

// DateSuggestion points at a weekday-gated rule that would pay more on
// another day.
type DateSuggestion struct {
	RuleID          catalog.RuleID
	ValidDays       []time.Weekday
	ValidDates      []int
	Description     string
	NewPercentage   decimal.Decimal
	NewRewardAmount decimal.Decimal
}

// SpendingSuggestion points at a rule the purchase missed by spending too
// little.
type SpendingSuggestion struct {
	RuleID          catalog.RuleID
	TargetAmount    decimal.Decimal
	Description     string
	NewPercentage   decimal.Decimal
	NewRewardAmount decimal.Decimal
}

// Result is one card's outcome. Optional figures are nil when they do not
// apply to the card or the purchase.
type Result struct {
	Card        catalog.Card
	MatchedRule catalog.Rule
	MatchType   catalog.MatchType

	Percentage          decimal.Decimal // rule's nominal rate
	EffectivePercentage decimal.Decimal // reward / amount, lower than nominal when capped
	RewardAmount        decimal.Decimal
	IsCapped            bool

	IsForeignCurrency bool
	FxFee             decimal.Decimal
	NetPercentage     *decimal.Decimal
	NetRewardAmount   *decimal.Decimal

	MilesReturn     *decimal.Decimal // dollars per mile
	PointsAmount    *decimal.Decimal
	PointsCurrency  string
	PointsCashValue *decimal.Decimal

	MissedDiscountRule       *catalog.Rule
	MissedDiscountAmount     *decimal.Decimal
	MissedDiscountPercentage *decimal.Decimal
	DateSuggestion           *DateSuggestion
	SpendingSuggestion       *SpendingSuggestion

	SuggestedPaymentMethod catalog.PaymentMethod
	PotentialRewardAmount  *decimal.Decimal

	// Instant discount taken at the till, on top of the reward.
	DiscountRule       *catalog.Rule
	DiscountPercentage *decimal.Decimal
	DiscountAmount     *decimal.Decimal
}

// EffectiveValue is the ranking basis: net cash when an FX fee applies, else
// the cash value of points, else the reward; plus any instant discount.
func (r Result) EffectiveValue() decimal.Decimal {
	v := r.RewardAmount
	switch {
	case r.NetRewardAmount != nil:
		v = *r.NetRewardAmount
	case r.PointsCashValue != nil:
		v = *r.PointsCashValue
	}
	if r.DiscountAmount != nil {
		v = v.Add(*r.DiscountAmount)
	}
	return v
}

// Outcome is the full answer to one calculation.
type Outcome struct {
	Merchant catalog.Merchant
	Scenario Scenario
	Results  []Result
	Skipped  []*CardError
}
