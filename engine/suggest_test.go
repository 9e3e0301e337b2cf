package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/card-rewards/catalog"
	"github.com/warp/card-rewards/engine"
)

func TestSuggest_WeekdayRule(t *testing.T) {
	// GIVEN: A Wednesday-only 8% rule and a 1% base rule
	// WHEN: Spending $1,000 on a Thursday
	// THEN: The base rule pays $10 and the result suggests Wednesday for $80

	wed := base("c-wed", "8")
	wed.Description = "Wednesday 8%"
	wed.ValidDays = []time.Weekday{time.Wednesday}
	c := card("c", wed, base("c-base", "1"))

	r := resolve(t, "Wellcome", engine.Options{Amount: dec("1000"), Date: thursday}, c).Results[0]

	assert.Equal(t, catalog.RuleID("c-base"), r.MatchedRule.ID)
	assert.True(t, r.RewardAmount.Equal(dec("10")))
	require.NotNil(t, r.DateSuggestion)
	assert.Equal(t, []time.Weekday{time.Wednesday}, r.DateSuggestion.ValidDays)
	assert.Equal(t, "Wednesday 8%", r.DateSuggestion.Description)
	assert.True(t, r.DateSuggestion.NewPercentage.Equal(dec("8")))
	assert.True(t, r.DateSuggestion.NewRewardAmount.Equal(dec("80")))
	assert.Nil(t, r.MissedDiscountRule)
}

func TestSuggest_DayOfMonthRule(t *testing.T) {
	// GIVEN: An 8% rule valid on the 3rd, 13th and 23rd
	// WHEN: Shopping on the 5th
	// THEN: It is reported as a missed discount, not a weekday suggestion

	dated := merchantRule("c-dated", "8", "wellcome")
	dated.ValidDates = []int{3, 13, 23}
	c := card("c", dated, base("c-base", "0.5"))

	r := resolve(t, "Wellcome", engine.Options{Amount: dec("500"), Date: thursday}, c).Results[0]

	assert.Nil(t, r.DateSuggestion)
	require.NotNil(t, r.MissedDiscountRule)
	assert.Equal(t, catalog.RuleID("c-dated"), r.MissedDiscountRule.ID)
	assert.True(t, r.MissedDiscountAmount.Equal(dec("40")))
	assert.True(t, r.MissedDiscountPercentage.Equal(dec("8")))
}

func TestSuggest_NoSuggestionWhenNotBetter(t *testing.T) {
	tests := []struct {
		name string
		rule catalog.Rule
	}{
		{"lower percentage", func() catalog.Rule {
			r := base("c-wed", "0.5")
			r.ValidDays = []time.Weekday{time.Wednesday}
			return r
		}()},
		{"higher percentage but capped below current reward", func() catalog.Rule {
			r := withCap(base("c-wed", "8"), "5", catalog.CapReward)
			r.ValidDays = []time.Weekday{time.Wednesday}
			return r
		}()},
		{"promotion window closed", func() catalog.Rule {
			from := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
			r := base("c-wed", "8")
			r.ValidDays = []time.Weekday{time.Wednesday}
			r.ValidFrom = &from
			return r
		}()},
		{"window-only gate", func() catalog.Rule {
			to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
			r := base("c-old", "8")
			r.ValidTo = &to
			return r
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resolve(t, "Wellcome", engine.Options{Amount: dec("1000"), Date: thursday}, card("c", tt.rule, base("c-base", "1"))).Results[0]
			assert.Nil(t, r.DateSuggestion)
			assert.Nil(t, r.MissedDiscountRule)
		})
	}
}

func TestSuggest_SpendingThreshold(t *testing.T) {
	// GIVEN: A 6% dining rule needing $500 and a 1% base
	// WHEN: Spending $300
	// THEN: The result suggests spending $500 for $30

	premium := category("c-premium", "6", "dining")
	premium.MinSpend = dec("500")
	c := card("c", premium, base("c-base", "1"))

	r := resolve(t, "Sushiro", amount("300"), c).Results[0]

	assert.True(t, r.RewardAmount.Equal(dec("3")))
	require.NotNil(t, r.SpendingSuggestion)
	assert.True(t, r.SpendingSuggestion.TargetAmount.Equal(dec("500")))
	assert.True(t, r.SpendingSuggestion.NewRewardAmount.Equal(dec("30")))
	assert.Equal(t, catalog.RuleID("c-premium"), r.SpendingSuggestion.RuleID)
}

func TestSuggest_PaymentMethod(t *testing.T) {
	// GIVEN: A card paying 5% on mobile wallets and 0.4% otherwise
	// WHEN: Paying with a physical card
	// THEN: Apple Pay is suggested with the reward it would earn

	c := card("c", method("c-mobile", "5", catalog.PaymentMobile), base("c-base", "0.4"))

	r := resolve(t, "Wellcome", engine.Options{Amount: dec("200"), PaymentMethod: catalog.PaymentPhysicalCard}, c).Results[0]
	assert.Equal(t, catalog.PaymentApplePay, r.SuggestedPaymentMethod)
	require.NotNil(t, r.PotentialRewardAmount)
	assert.True(t, r.PotentialRewardAmount.Equal(dec("10")))

	// Already paying with a wallet: nothing to suggest.
	r = resolve(t, "Wellcome", engine.Options{Amount: dec("200"), PaymentMethod: catalog.PaymentApplePay}, c).Results[0]
	assert.Empty(t, r.SuggestedPaymentMethod)
	assert.Nil(t, r.PotentialRewardAmount)
}

func TestSuggest_BothDateGates(t *testing.T) {
	// GIVEN: 8% rules gated by weekday AND day of month, one of them inside a
	//        window where no Wednesday falls on the 13th
	// WHEN: Shopping on Thursday the 5th
	// THEN: Neither rule matches, yet each is still offered as a suggestion

	window := func(r catalog.Rule) catalog.Rule {
		from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
		r.ValidFrom, r.ValidTo = &from, &to
		return r
	}
	gated := func(dates ...int) catalog.Rule {
		r := base("c-gated", "8")
		r.ValidDays = []time.Weekday{time.Wednesday}
		r.ValidDates = dates
		return r
	}

	tests := []struct {
		name string
		rule catalog.Rule
	}{
		{"satisfiable on another day", gated(4)},
		{"never satisfiable", window(gated(13))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resolve(t, "Wellcome", engine.Options{Amount: dec("1000"), Date: thursday}, card("c", tt.rule, base("c-base", "1"))).Results[0]

			assert.Equal(t, catalog.RuleID("c-base"), r.MatchedRule.ID)
			require.NotNil(t, r.DateSuggestion)
			assert.Equal(t, catalog.RuleID("c-gated"), r.DateSuggestion.RuleID)
			assert.Equal(t, []time.Weekday{time.Wednesday}, r.DateSuggestion.ValidDays)
			assert.Equal(t, tt.rule.ValidDates, r.DateSuggestion.ValidDates)
			assert.True(t, r.DateSuggestion.NewRewardAmount.Equal(dec("80")))
		})
	}
}

func TestSuggest_TieBreakFollowsDeclarationOrder(t *testing.T) {
	// GIVEN: A category rule declared before a merchant rule, both 8% on
	//        Wednesdays
	// WHEN: Shopping on a Thursday
	// THEN: The earlier declared rule is suggested

	wedCategory := category("c-cat-wed", "8", "dining")
	wedCategory.ValidDays = []time.Weekday{time.Wednesday}
	wedMerchant := merchantRule("c-m-wed", "8", "sushiro")
	wedMerchant.ValidDays = []time.Weekday{time.Wednesday}
	c := card("c", wedCategory, wedMerchant, base("c-base", "1"))

	r := resolve(t, "Sushiro", amount("100"), c).Results[0]
	require.NotNil(t, r.DateSuggestion)
	assert.Equal(t, catalog.RuleID("c-cat-wed"), r.DateSuggestion.RuleID)
}

func TestSuggest_MissedInstantDiscount(t *testing.T) {
	// GIVEN: 8% off on the 3rd, 13th and 23rd with a $100 minimum
	// WHEN: Spending $500 on the 5th
	// THEN: The discount is reported as missed with the $40 it would take off

	off := discount(merchantRule("c-day-off", "8", "wellcome"))
	off.ValidDates = []int{3, 13, 23}
	off.MinSpend = dec("100")
	c := card("c", off, base("c-base", "0.5"))

	r := resolve(t, "Wellcome", amount("500"), c).Results[0]
	assert.Nil(t, r.DiscountRule)
	require.NotNil(t, r.MissedDiscountRule)
	assert.Equal(t, catalog.RuleID("c-day-off"), r.MissedDiscountRule.ID)
	assert.True(t, r.MissedDiscountAmount.Equal(dec("40")))
	assert.True(t, r.MissedDiscountPercentage.Equal(dec("8")))
	assert.Nil(t, r.DateSuggestion)

	// Below the minimum spend it was never on offer.
	r = resolve(t, "Wellcome", amount("50"), c).Results[0]
	assert.Nil(t, r.MissedDiscountRule)
}

func TestSuggest_MissedDiscountMustBeatCurrentDiscount(t *testing.T) {
	always := discount(merchantRule("c-off", "5", "wellcome"))
	smaller := discount(merchantRule("c-day-off", "3", "wellcome"))
	smaller.ValidDates = []int{3}
	c := card("c", always, smaller, base("c-base", "0.5"))

	r := resolve(t, "Wellcome", amount("500"), c).Results[0]
	require.NotNil(t, r.DiscountRule)
	assert.Nil(t, r.MissedDiscountRule)
}

func TestSuggest_PaymentMethodOrder(t *testing.T) {
	// GIVEN: Equal 5% rules for BoC Pay and Alipay
	// WHEN: Paying with a physical card
	// THEN: BoC Pay is suggested, as it is tried first

	c := card("c",
		method("c-alipay", "5", catalog.PaymentAlipay),
		method("c-bocpay", "5", catalog.PaymentBoCPay),
		base("c-base", "0.4"),
	)

	r := resolve(t, "Wellcome", engine.Options{Amount: dec("200"), PaymentMethod: catalog.PaymentPhysicalCard}, c).Results[0]
	assert.Equal(t, catalog.PaymentBoCPay, r.SuggestedPaymentMethod)
}
