package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/card-rewards/catalog"
	"github.com/warp/card-rewards/engine"
)

func scenario(merchant string, opts engine.Options) engine.Scenario {
	if opts.Date.IsZero() {
		opts.Date = thursday
	}
	m := engine.ResolveMerchant(merchant, testMerchants)
	return engine.NewScenario(m, testCategories, opts)
}

// =============================================================================
// TIER PRECEDENCE
// =============================================================================

func TestMatchRule_MerchantBeatsHigherCategory(t *testing.T) {
	// GIVEN: A 2% merchant rule and a 10% category rule that both apply
	// WHEN: Matching at that merchant
	// THEN: The merchant rule wins despite the lower rate

	c := card("c",
		category("c-dining", "10", "dining"),
		merchantRule("c-sushiro", "2", "sushiro"),
		base("c-base", "1"),
	)

	m, err := engine.MatchRule(c, scenario("Sushiro", amount("100")))
	require.NoError(t, err)
	assert.Equal(t, catalog.RuleID("c-sushiro"), m.Rule.ID)
}

func TestMatchRule_TierOrder(t *testing.T) {
	c := card("c",
		base("c-base", "9"),
		method("c-mobile", "5", catalog.PaymentMobile),
		category("c-dining", "3", "dining"),
	)

	tests := []struct {
		name     string
		merchant string
		opts     engine.Options
		want     catalog.RuleID
	}{
		{"category over method", "Sushiro", engine.Options{Amount: dec("100"), PaymentMethod: catalog.PaymentApplePay}, "c-dining"},
		{"method over base", "Wellcome", engine.Options{Amount: dec("100"), PaymentMethod: catalog.PaymentGooglePay}, "c-mobile"},
		{"base as fallback", "Wellcome", engine.Options{Amount: dec("100"), PaymentMethod: catalog.PaymentPhysicalCard}, "c-base"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := engine.MatchRule(c, scenario(tt.merchant, tt.opts))
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Rule.ID)
		})
	}
}

func TestMatchRule_DateGateAppliesInEveryTier(t *testing.T) {
	// GIVEN: A Wednesday-only merchant rule
	// WHEN: Matching on a Thursday
	// THEN: Resolution falls through to the next tier

	wed := merchantRule("c-wed", "8", "sushiro")
	wed.ValidDays = []time.Weekday{time.Wednesday}
	c := card("c", wed, category("c-dining", "2", "dining"), base("c-base", "1"))

	m, err := engine.MatchRule(c, scenario("Sushiro", engine.Options{Amount: dec("100"), Date: thursday}))
	require.NoError(t, err)
	assert.Equal(t, catalog.RuleID("c-dining"), m.Rule.ID)
	require.Len(t, m.DateRejected, 1)
	assert.Equal(t, catalog.RuleID("c-wed"), m.DateRejected[0].ID)

	m, err = engine.MatchRule(c, scenario("Sushiro", engine.Options{Amount: dec("100"), Date: wednesday}))
	require.NoError(t, err)
	assert.Equal(t, catalog.RuleID("c-wed"), m.Rule.ID)
	assert.Empty(t, m.DateRejected)
}

func TestMatchRule_LowerTierRejectsNotReported(t *testing.T) {
	wed := base("c-wed", "8")
	wed.ValidDays = []time.Weekday{time.Wednesday}
	c := card("c", category("c-dining", "2", "dining"), wed, base("c-base", "1"))

	m, err := engine.MatchRule(c, scenario("Sushiro", amount("100")))
	require.NoError(t, err)
	assert.Equal(t, catalog.RuleID("c-dining"), m.Rule.ID)
	assert.Empty(t, m.DateRejected, "a base rule could not beat a category rule on any day")
}

func TestMatchRule_BothDateGates(t *testing.T) {
	// GIVEN: An 8% rule valid on Wednesdays that are also the 4th
	// WHEN: Matching on days meeting both, one or neither gate
	// THEN: Only the day meeting both uses it; the others fall back and
	//       report it as date-rejected

	gated := merchantRule("c-wed-4th", "8", "sushiro")
	gated.ValidDays = []time.Weekday{time.Wednesday}
	gated.ValidDates = []int{4}
	c := card("c", gated, base("c-base", "1"))

	tests := []struct {
		name     string
		date     time.Time
		want     catalog.RuleID
		rejected bool
	}{
		{"wednesday the 4th", wednesday, "c-wed-4th", false},
		{"wednesday the 11th", time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC), "c-base", true},
		{"thursday the 5th", thursday, "c-base", true},
		{"friday the 4th", time.Date(2025, 7, 4, 10, 0, 0, 0, time.UTC), "c-base", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := engine.MatchRule(c, scenario("Sushiro", engine.Options{Amount: dec("100"), Date: tt.date}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Rule.ID)
			if tt.rejected {
				require.Len(t, m.DateRejected, 1)
				assert.Equal(t, catalog.RuleID("c-wed-4th"), m.DateRejected[0].ID)
			} else {
				assert.Empty(t, m.DateRejected)
			}
		})
	}
}

func TestMatchRule_RejectedInDeclarationOrder(t *testing.T) {
	wedCategory := category("c-cat-wed", "8", "dining")
	wedCategory.ValidDays = []time.Weekday{time.Wednesday}
	wedMerchant := merchantRule("c-m-wed", "8", "sushiro")
	wedMerchant.ValidDays = []time.Weekday{time.Wednesday}
	c := card("c", wedCategory, wedMerchant, base("c-base", "1"))

	m, err := engine.MatchRule(c, scenario("Sushiro", amount("100")))
	require.NoError(t, err)
	require.Len(t, m.DateRejected, 2)
	assert.Equal(t, catalog.RuleID("c-cat-wed"), m.DateRejected[0].ID)
	assert.Equal(t, catalog.RuleID("c-m-wed"), m.DateRejected[1].ID)
}

// =============================================================================
// INSTANT DISCOUNTS
// =============================================================================

func TestMatchRule_DiscountChosenApart(t *testing.T) {
	// GIVEN: A 5% merchant discount, an 8% day-of-month discount and a 1.5%
	//        merchant rebate
	// WHEN: Matching on a day the dated discount is off
	// THEN: The rebate still comes from the tiers and the 5% discount applies
	//       alongside it

	dated := discount(merchantRule("c-day-off", "8", "wellcome"))
	dated.ValidDates = []int{3, 13, 23}
	c := card("c",
		discount(merchantRule("c-off", "5", "wellcome")),
		dated,
		merchantRule("c-rebate", "1.5", "wellcome"),
		base("c-base", "0.5"),
	)

	m, err := engine.MatchRule(c, scenario("Wellcome", amount("200")))
	require.NoError(t, err)
	assert.Equal(t, catalog.RuleID("c-rebate"), m.Rule.ID)
	require.NotNil(t, m.Discount)
	assert.Equal(t, catalog.RuleID("c-off"), m.Discount.ID)
	require.Len(t, m.DiscountDateRejected, 1)
	assert.Equal(t, catalog.RuleID("c-day-off"), m.DiscountDateRejected[0].ID)
	assert.Empty(t, m.DateRejected, "discounts never show up as rebate candidates")

	m, err = engine.MatchRule(c, scenario("Wellcome", engine.Options{Amount: dec("200"), Date: time.Date(2025, 6, 13, 10, 0, 0, 0, time.UTC)}))
	require.NoError(t, err)
	assert.Equal(t, catalog.RuleID("c-day-off"), m.Discount.ID)
}

func TestMatchRule_DiscountIsNeverTheBaseRule(t *testing.T) {
	c := card("c", discount(base("c-off", "5")))

	_, err := engine.MatchRule(c, scenario("Wellcome", amount("100")))
	assert.ErrorIs(t, err, engine.ErrNoBaseRule)
}

func TestMatchRule_DiscountNeedsMinSpend(t *testing.T) {
	off := discount(merchantRule("c-off", "8", "wellcome"))
	off.MinSpend = dec("100")
	c := card("c", off, base("c-base", "1"))

	m, err := engine.MatchRule(c, scenario("Wellcome", amount("99")))
	require.NoError(t, err)
	assert.Nil(t, m.Discount)

	m, err = engine.MatchRule(c, scenario("Wellcome", amount("100")))
	require.NoError(t, err)
	require.NotNil(t, m.Discount)
}

// =============================================================================
// TIE-BREAK
// =============================================================================

func TestMatchRule_TieBreak(t *testing.T) {
	tests := []struct {
		name  string
		rules []catalog.Rule
		want  catalog.RuleID
	}{
		{
			"higher percentage",
			[]catalog.Rule{base("low", "1"), base("high", "2")},
			"high",
		},
		{
			"uncapped over capped",
			[]catalog.Rule{withCap(base("capped", "2"), "100", catalog.CapReward), base("uncapped", "2")},
			"uncapped",
		},
		{
			"declaration order",
			[]catalog.Rule{base("first", "2"), base("second", "2")},
			"first",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := engine.MatchRule(card("c", tt.rules...), scenario("Wellcome", amount("100")))
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Rule.ID)
		})
	}
}

// =============================================================================
// SCOPE DETAILS
// =============================================================================

func TestMatchRule_OnlineCategoryNeedsOnlineScenario(t *testing.T) {
	c := card("c", category("c-online", "4", "online"), base("c-base", "0.4"))

	tests := []struct {
		name     string
		merchant string
		opts     engine.Options
		want     catalog.RuleID
	}{
		{"in-store purchase", "Wellcome", amount("100"), "c-base"},
		{"online flag", "Wellcome", engine.Options{Amount: dec("100"), IsOnlineScenario: true}, "c-online"},
		{"online payment method", "Wellcome", engine.Options{Amount: dec("100"), PaymentMethod: catalog.PaymentOnline}, "c-online"},
		{"online-only merchant", "HKTVmall", amount("100"), "c-online"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := engine.MatchRule(c, scenario(tt.merchant, tt.opts))
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Rule.ID)
		})
	}
}

func TestMatchRule_MobileCoversWallets(t *testing.T) {
	c := card("c", method("c-mobile", "5", catalog.PaymentMobile), base("c-base", "1"))

	for _, pm := range []catalog.PaymentMethod{catalog.PaymentApplePay, catalog.PaymentGooglePay, catalog.PaymentSamsungPay, catalog.PaymentBoCPay} {
		m, err := engine.MatchRule(c, scenario("Wellcome", engine.Options{Amount: dec("100"), PaymentMethod: pm}))
		require.NoError(t, err)
		assert.Equal(t, catalog.RuleID("c-mobile"), m.Rule.ID, string(pm))
	}

	m, err := engine.MatchRule(c, scenario("Wellcome", engine.Options{Amount: dec("100"), PaymentMethod: catalog.PaymentAlipay}))
	require.NoError(t, err)
	assert.Equal(t, catalog.RuleID("c-base"), m.Rule.ID)
}

func TestMatchRule_Exclusions(t *testing.T) {
	dining := category("c-dining", "5", "dining")
	dining.ExcludePaymentMethods = []catalog.PaymentMethod{catalog.PaymentAlipay}
	online := category("c-online", "4", "online")
	online.ExcludeCategories = []catalog.CategoryID{"supermarket"}
	c := card("c", dining, online, base("c-base", "1"))

	m, err := engine.MatchRule(c, scenario("Sushiro", engine.Options{Amount: dec("100"), PaymentMethod: catalog.PaymentAlipay}))
	require.NoError(t, err)
	assert.Equal(t, catalog.RuleID("c-base"), m.Rule.ID, "excluded payment method")

	m, err = engine.MatchRule(c, scenario("HKTVmall", amount("100")))
	require.NoError(t, err)
	assert.Equal(t, catalog.RuleID("c-base"), m.Rule.ID, "excluded category")
}

func TestMatchRule_MinSpend(t *testing.T) {
	premium := category("c-premium", "6", "dining")
	premium.MinSpend = dec("500")
	c := card("c", premium, base("c-base", "1"))

	m, err := engine.MatchRule(c, scenario("Sushiro", amount("499.99")))
	require.NoError(t, err)
	assert.Equal(t, catalog.RuleID("c-base"), m.Rule.ID)
	require.Len(t, m.SpendRejected, 1)

	m, err = engine.MatchRule(c, scenario("Sushiro", amount("500")))
	require.NoError(t, err)
	assert.Equal(t, catalog.RuleID("c-premium"), m.Rule.ID, "threshold is inclusive")
}
