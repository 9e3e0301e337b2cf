/*
Package catalog holds the reference data the reward engine ranks against.

PURPOSE:
  Cards, their reward rules, merchants and categories. This is static,
  authoritative data: it is loaded once (from YAML, see factory.go), checked
  for integrity (validate.go), optionally overlaid with cosmetic fields from a
  secondary store (overlay.go), and then handed to the engine as a Snapshot.

KEY CONCEPTS IN THIS FILE (types.go):
  - Rule: one (scope, percentage, cap, date gate) tuple owned by a card
  - Scope: a sealed sum type, one variant per match type
  - Card: a reward program with an ordered list of rules
  - Merchant / Category: lookup data used to resolve a purchase context

MATCH TYPES:
  merchant:       MerchantScope{MerchantIDs}
  category:       CategoryScope{CategoryIDs}
  paymentMethod:  PaymentMethodScope{Methods}
  base:           BaseScope{}

  Code that needs to branch on the match type uses a type switch over
  Rule.Scope, so a new variant fails to compile everywhere it is not handled
  instead of silently falling through optional-field checks.

CAPS:
  spending: limits the spend amount eligible for the rate
  reward:   limits the payout itself
  A cap applies per CapPeriod (monthly by default); the engine only ever
  enforces it per calculation. Cross-call accounting lives in ledger/.

DATE GATES:
  ValidDays   weekday gate (time.Weekday, Sunday = 0)
  ValidDates  day-of-month gate (1-31)
  ValidFrom/ValidTo  promotion window (inclusive, by calendar day)
  Gates combine conjunctively.

SEE ALSO:
  - factory.go: YAML schema and conversion
  - validate.go: Catalog integrity checks
  - overlay.go: Cosmetic override merge
  - engine/: Reward resolution and ranking
*/
package catalog

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CardID string
type RuleID string
type MerchantID string
type CategoryID string
type PaymentMethod string

// Categories with special handling in the matcher.
const (
	CategoryOnline CategoryID = "online"
)

// Payment methods known to the matcher. Any other string is still accepted
// and matched literally.
const (
	PaymentPhysicalCard PaymentMethod = "physical_card"
	PaymentOnline       PaymentMethod = "online"
	PaymentMobile       PaymentMethod = "mobile" // umbrella for the wallets below
	PaymentApplePay     PaymentMethod = "apple_pay"
	PaymentGooglePay    PaymentMethod = "google_pay"
	PaymentSamsungPay   PaymentMethod = "samsung_pay"
	PaymentBoCPay       PaymentMethod = "boc_pay"
	PaymentAlipay       PaymentMethod = "alipay"
	PaymentWeChatPay    PaymentMethod = "wechat_pay"
	PaymentPayMe        PaymentMethod = "payme"
	PaymentOctopus      PaymentMethod = "octopus"
)

// MobileWallets are the payment methods a "mobile" rule covers.
var MobileWallets = []PaymentMethod{PaymentApplePay, PaymentGooglePay, PaymentSamsungPay, PaymentBoCPay}

// =============================================================================
// RULE SCOPE - Sealed sum type
// =============================================================================

type MatchType string

const (
	MatchMerchant      MatchType = "merchant"
	MatchCategory      MatchType = "category"
	MatchPaymentMethod MatchType = "paymentMethod"
	MatchBase          MatchType = "base"
)

// Scope says what a rule applies to. The unexported method seals the set of
// implementations to this package.
type Scope interface {
	MatchType() MatchType
	sealed()
}

type MerchantScope struct {
	MerchantIDs []MerchantID
}

type CategoryScope struct {
	CategoryIDs []CategoryID
}

type PaymentMethodScope struct {
	Methods []PaymentMethod
}

type BaseScope struct{}

func (MerchantScope) MatchType() MatchType      { return MatchMerchant }
func (CategoryScope) MatchType() MatchType      { return MatchCategory }
func (PaymentMethodScope) MatchType() MatchType { return MatchPaymentMethod }
func (BaseScope) MatchType() MatchType          { return MatchBase }

func (MerchantScope) sealed()      {}
func (CategoryScope) sealed()      {}
func (PaymentMethodScope) sealed() {}
func (BaseScope) sealed()          {}

// Tier orders match types by precedence; lower wins.
func (m MatchType) Tier() int {
	switch m {
	case MatchMerchant:
		return 0
	case MatchCategory:
		return 1
	case MatchPaymentMethod:
		return 2
	case MatchBase:
		return 3
	default:
		return 4
	}
}

// =============================================================================
// RULE
// =============================================================================

type CapType string

const (
	CapSpending CapType = "spending"
	CapReward   CapType = "reward"
)

type CapPeriod string

const (
	CapMonthly   CapPeriod = "monthly"
	CapQuarterly CapPeriod = "quarterly"
	CapYearly    CapPeriod = "yearly"
	CapPromo     CapPeriod = "promo" // whole ValidFrom..ValidTo window
)

// Rule is a single reward rule owned by a card.
type Rule struct {
	ID          RuleID
	Description string
	Scope       Scope

	Percentage decimal.Decimal // 0-100
	Cap        *decimal.Decimal
	CapType    CapType
	CapPeriod  CapPeriod

	ValidDays  []time.Weekday
	ValidDates []int
	ValidFrom  *time.Time
	ValidTo    *time.Time

	MinSpend    decimal.Decimal // zero means no threshold
	ForeignOnly bool            // only in foreign-currency scenarios

	// IsDiscount marks a price cut taken at the till. It is chosen apart
	// from the rebate rules and never counts as the base rule.
	IsDiscount bool

	ExcludeCategories     []CategoryID
	ExcludePaymentMethods []PaymentMethod
}

// MatchType returns the rule's tier, or "" when the scope is missing.
func (r Rule) MatchType() MatchType {
	if r.Scope == nil {
		return ""
	}
	return r.Scope.MatchType()
}

func (r Rule) HasCap() bool { return r.Cap != nil }

func (r Rule) HasWeekdayGate() bool    { return len(r.ValidDays) > 0 }
func (r Rule) HasDayOfMonthGate() bool { return len(r.ValidDates) > 0 }
func (r Rule) HasWindow() bool         { return r.ValidFrom != nil || r.ValidTo != nil }

// IsDateGated reports whether any date condition restricts the rule.
func (r Rule) IsDateGated() bool {
	return r.HasWeekdayGate() || r.HasDayOfMonthGate() || r.HasWindow()
}

// IsCatchAll reports whether the rule is a rebate that applies on any date,
// at any amount and in any currency. Exclusions may still rule it out for some merchants or
// payment methods; the card is then ineligible for that purchase.
func (r Rule) IsCatchAll() bool {
	return !r.IsDiscount && !r.IsDateGated() && !r.MinSpend.IsPositive() && !r.ForeignOnly
}

// ValidOn checks the date gates against day. Weekday and day-of-month are
// read in day's own location.
func (r Rule) ValidOn(day time.Time) bool {
	if r.HasWeekdayGate() && !slices.Contains(r.ValidDays, day.Weekday()) {
		return false
	}
	if r.HasDayOfMonthGate() && !slices.Contains(r.ValidDates, day.Day()) {
		return false
	}
	d := truncateDay(day)
	if r.ValidFrom != nil && d.Before(truncateDay(*r.ValidFrom)) {
		return false
	}
	if r.ValidTo != nil && d.After(truncateDay(*r.ValidTo)) {
		return false
	}
	return true
}

// Clone returns a deep copy.
func (r Rule) Clone() Rule {
	out := r
	if r.Cap != nil {
		c := *r.Cap
		out.Cap = &c
	}
	if r.ValidFrom != nil {
		t := *r.ValidFrom
		out.ValidFrom = &t
	}
	if r.ValidTo != nil {
		t := *r.ValidTo
		out.ValidTo = &t
	}
	out.ValidDays = slices.Clone(r.ValidDays)
	out.ValidDates = slices.Clone(r.ValidDates)
	out.ExcludeCategories = slices.Clone(r.ExcludeCategories)
	out.ExcludePaymentMethods = slices.Clone(r.ExcludePaymentMethods)
	switch s := r.Scope.(type) {
	case MerchantScope:
		out.Scope = MerchantScope{MerchantIDs: slices.Clone(s.MerchantIDs)}
	case CategoryScope:
		out.Scope = CategoryScope{CategoryIDs: slices.Clone(s.CategoryIDs)}
	case PaymentMethodScope:
		out.Scope = PaymentMethodScope{Methods: slices.Clone(s.Methods)}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// CARD
// =============================================================================

type RewardCurrency string

const (
	CurrencyCash   RewardCurrency = "cash"
	CurrencyMiles  RewardCurrency = "miles"
	CurrencyPoints RewardCurrency = "points"
)

// RewardConfig describes what a card actually pays out.
//
// For miles cards Rate is miles per unit of reward (HSBC RC: 1 RC = 10 miles).
// For points cards Rate is points per dollar spent and RedemptionValue the
// cash value of one point.
type RewardConfig struct {
	Currency        RewardCurrency
	Rate            decimal.Decimal
	RedemptionValue decimal.Decimal
	Label           string // e.g. "RC", "yuu points", "Asia Miles"
}

type Card struct {
	ID                 CardID
	Name               string
	Bank               string
	Rules              []Rule
	RewardConfig       *RewardConfig
	ForeignCurrencyFee decimal.Decimal // percentage
	AnnualFee          decimal.Decimal
	Tags               []string

	// Cosmetic, may be overridden by a secondary store.
	Note     string
	ImageURL string
	Hidden   bool
}

// BaseRule returns the card's catch-all base rule.
func (c Card) BaseRule() (Rule, bool) {
	for _, r := range c.Rules {
		if _, ok := r.Scope.(BaseScope); ok && r.IsCatchAll() {
			return r, true
		}
	}
	return Rule{}, false
}

// Rule looks up a rule by ID.
func (c Card) Rule(id RuleID) (Rule, bool) {
	for _, r := range c.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Clone returns a deep copy of the card and its rules.
func (c Card) Clone() Card {
	out := c
	out.Rules = make([]Rule, len(c.Rules))
	for i, r := range c.Rules {
		out.Rules[i] = r.Clone()
	}
	if c.RewardConfig != nil {
		rc := *c.RewardConfig
		out.RewardConfig = &rc
	}
	out.Tags = slices.Clone(c.Tags)
	return out
}

// =============================================================================
// MERCHANT / CATEGORY
// =============================================================================

type Merchant struct {
	ID           MerchantID
	Name         string
	Aliases      []string
	CategoryIDs  []CategoryID
	IsOnlineOnly bool
	IsGeneral    bool // catch-all fallback when nothing else resolves
	IsForeign    bool // bills in a foreign currency
}

func (m Merchant) InCategory(id CategoryID) bool {
	return slices.Contains(m.CategoryIDs, id)
}

type Category struct {
	ID        CategoryID
	Name      string
	IsForeign bool
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a fully merged, validated catalog. It is treated as read-only
// once built.
type Snapshot struct {
	Cards      []Card
	Merchants  []Merchant
	Categories []Category
}

func (s *Snapshot) Card(id CardID) (Card, bool) {
	for _, c := range s.Cards {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}

func (s *Snapshot) Category(id CategoryID) (Category, bool) {
	for _, c := range s.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// VisibleCards returns the cards not marked hidden, in catalog order.
func (s *Snapshot) VisibleCards() []Card {
	out := make([]Card, 0, len(s.Cards))
	for _, c := range s.Cards {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

// WithCards returns a shallow copy of the snapshot using cards instead.
func (s *Snapshot) WithCards(cards []Card) *Snapshot {
	return &Snapshot{Cards: cards, Merchants: s.Merchants, Categories: s.Categories}
}
