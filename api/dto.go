/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract: the engine works
  in exact decimals, clients get money rounded to cents.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Calculation:
    CalculateRequest, CalculateResponse, ResultDTO, SkippedCardDTO

  Catalog:
    CardDTO, RuleDTO, MerchantDTO, CategoryDTO

  Leaderboards:
    RankingCategoryDTO, RankingsResponse, RankingDTO

  Holders:
    AddCardRequest, RecordUsageRequest, UsageDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: Result
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/card-rewards/catalog"
	"github.com/warp/card-rewards/engine"
	"github.com/warp/card-rewards/ledger"
)

// =============================================================================
// CALCULATION
// =============================================================================

// CalculateRequest describes one purchase. Amount accepts a JSON number or a
// decimal string.
type CalculateRequest struct {
	Merchant         string          `json:"merchant"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	Online           bool            `json:"online,omitempty"`
	Foreign          bool            `json:"foreign,omitempty"`
	Date             string          `json:"date,omitempty"` // YYYY-MM-DD, default today
	RewardPreference string          `json:"reward_preference,omitempty"`
	UserID           string          `json:"user_id,omitempty"`
}

type CalculateResponse struct {
	Merchant     MerchantDTO      `json:"merchant"`
	Date         string           `json:"date"`
	Online       bool             `json:"online"`
	Foreign      bool             `json:"foreign"`
	Results      []ResultDTO      `json:"results"`
	MilesRanked  []ResultDTO      `json:"miles_ranked,omitempty"`
	Owned        []ResultDTO      `json:"owned,omitempty"`
	Others       []ResultDTO      `json:"others,omitempty"`
	Skipped      []SkippedCardDTO `json:"skipped,omitempty"`
	CapsAdjusted bool             `json:"caps_adjusted"`
}

type ResultDTO struct {
	Rank     int    `json:"rank"`
	CardID   string `json:"card_id"`
	CardName string `json:"card_name"`
	Bank     string `json:"bank"`
	ImageURL string `json:"image_url,omitempty"`
	Note     string `json:"note,omitempty"`
	Owned    bool   `json:"owned,omitempty"`

	RuleID              string  `json:"rule_id"`
	RuleDescription     string  `json:"rule_description,omitempty"`
	MatchType           string  `json:"match_type"`
	Percentage          float64 `json:"percentage"`
	EffectivePercentage float64 `json:"effective_percentage"`
	RewardAmount        float64 `json:"reward_amount"`
	EffectiveValue      float64 `json:"effective_value"`
	IsCapped            bool    `json:"is_capped"`

	IsForeignCurrency bool     `json:"is_foreign_currency"`
	FxFee             float64  `json:"fx_fee,omitempty"`
	NetPercentage     *float64 `json:"net_percentage,omitempty"`
	NetRewardAmount   *float64 `json:"net_reward_amount,omitempty"`

	MilesReturn     *float64 `json:"miles_return,omitempty"`
	PointsAmount    *float64 `json:"points_amount,omitempty"`
	PointsCurrency  string   `json:"points_currency,omitempty"`
	PointsCashValue *float64 `json:"points_cash_value,omitempty"`

	DiscountRuleID      string   `json:"discount_rule_id,omitempty"`
	DiscountDescription string   `json:"discount_description,omitempty"`
	DiscountPercentage  *float64 `json:"discount_percentage,omitempty"`
	DiscountAmount      *float64 `json:"discount_amount,omitempty"`

	MissedDiscount     *MissedDiscountDTO     `json:"missed_discount,omitempty"`
	DateSuggestion     *DateSuggestionDTO     `json:"date_suggestion,omitempty"`
	SpendingSuggestion *SpendingSuggestionDTO `json:"spending_suggestion,omitempty"`

	SuggestedPaymentMethod string   `json:"suggested_payment_method,omitempty"`
	PotentialRewardAmount  *float64 `json:"potential_reward_amount,omitempty"`

	Explanation []string `json:"explanation"`
}

type MissedDiscountDTO struct {
	RuleID      string   `json:"rule_id"`
	Description string   `json:"description,omitempty"`
	ValidDays   []string `json:"valid_days,omitempty"`
	ValidDates  []int    `json:"valid_dates,omitempty"`
	IsDiscount  bool     `json:"is_discount,omitempty"`
	Percentage  float64  `json:"percentage"`
	Amount      float64  `json:"amount"`
}

type DateSuggestionDTO struct {
	RuleID          string   `json:"rule_id"`
	Description     string   `json:"description,omitempty"`
	ValidDays       []string `json:"valid_days,omitempty"`
	ValidDates      []int    `json:"valid_dates,omitempty"`
	NewPercentage   float64  `json:"new_percentage"`
	NewRewardAmount float64  `json:"new_reward_amount"`
}

type SpendingSuggestionDTO struct {
	RuleID          string  `json:"rule_id"`
	Description     string  `json:"description,omitempty"`
	TargetAmount    float64 `json:"target_amount"`
	NewPercentage   float64 `json:"new_percentage"`
	NewRewardAmount float64 `json:"new_reward_amount"`
}

type SkippedCardDTO struct {
	CardID string `json:"card_id"`
	Reason string `json:"reason"`
}

// =============================================================================
// CATALOG
// =============================================================================

type CardDTO struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Bank               string   `json:"bank"`
	RewardCurrency     string   `json:"reward_currency"`
	RewardLabel        string   `json:"reward_label,omitempty"`
	AnnualFee          float64  `json:"annual_fee"`
	ForeignCurrencyFee float64  `json:"foreign_currency_fee"`
	ImageURL           string   `json:"image_url,omitempty"`
	Note               string   `json:"note,omitempty"`
	Hidden             bool     `json:"hidden"`
	Tags               []string `json:"tags,omitempty"`

	Rules []RuleDTO `json:"rules,omitempty"`
}

type RuleDTO struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	MatchType   string   `json:"match_type"`
	MatchValue  []string `json:"match_value,omitempty"`
	Percentage  float64  `json:"percentage"`
	Cap         *float64 `json:"cap,omitempty"`
	CapType     string   `json:"cap_type,omitempty"`
	CapPeriod   string   `json:"cap_period,omitempty"`
	ValidDays   []string `json:"valid_days,omitempty"`
	ValidDates  []int    `json:"valid_dates,omitempty"`
	ValidFrom   string   `json:"valid_from,omitempty"`
	ValidTo     string   `json:"valid_to,omitempty"`
	MinSpend    float64  `json:"min_spend,omitempty"`
	ForeignOnly bool     `json:"foreign_only,omitempty"`
	IsDiscount  bool     `json:"is_discount,omitempty"`
}

type RankingCategoryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RankingsResponse struct {
	Category RankingCategoryDTO `json:"category"`
	Rankings []RankingDTO       `json:"rankings"`
}

type RankingDTO struct {
	Rank           int      `json:"rank"`
	CardID         string   `json:"card_id"`
	CardName       string   `json:"card_name"`
	Bank           string   `json:"bank"`
	ImageURL       string   `json:"image_url,omitempty"`
	Rule           RuleDTO  `json:"rule"`
	Percentage     float64  `json:"percentage"`
	NetPercentage  *float64 `json:"net_percentage,omitempty"`
	FxFee          float64  `json:"fx_fee,omitempty"`
	CapAsSpending  *float64 `json:"cap_as_spending,omitempty"`
	SpendingLimit  string   `json:"spending_limit"`
	DollarsPerMile *float64 `json:"dollars_per_mile,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

type MerchantDTO struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Aliases      []string `json:"aliases,omitempty"`
	Categories   []string `json:"categories"`
	IsOnlineOnly bool     `json:"is_online_only,omitempty"`
	IsGeneral    bool     `json:"is_general,omitempty"`
	IsForeign    bool     `json:"is_foreign,omitempty"`
}

type CategoryDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsForeign bool   `json:"is_foreign,omitempty"`
}

// =============================================================================
// HOLDERS
// =============================================================================

type AddCardRequest struct {
	CardID string `json:"card_id"`
}

// RecordUsageRequest records a purchase already made with a card. The engine
// decides which rule it earned under.
type RecordUsageRequest struct {
	CardID         string          `json:"card_id"`
	Merchant       string          `json:"merchant"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	Online         bool            `json:"online,omitempty"`
	Foreign        bool            `json:"foreign,omitempty"`
	Date           string          `json:"date,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

type UsageDTO struct {
	ID          string  `json:"id"`
	CardID      string  `json:"card_id"`
	RuleID      string  `json:"rule_id"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
	Spend       float64 `json:"spend"`
	Reward      float64 `json:"reward"`
	SpentAt     string  `json:"spent_at"`
	RecordedAt  string  `json:"recorded_at"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	HolderID    string `json:"holder_id"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

const dateLayout = "2006-01-02"

func money(d decimal.Decimal) float64 {
	return engine.RoundMoney(d).InexactFloat64()
}

func moneyPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v := money(*d)
	return &v
}

// milesPtr rounds dollars-per-mile to four places.
func milesPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v := d.Round(4).InexactFloat64()
	return &v
}

func toResultDTO(rank int, r engine.Result) ResultDTO {
	dto := ResultDTO{
		Rank:                rank,
		CardID:              string(r.Card.ID),
		CardName:            r.Card.Name,
		Bank:                r.Card.Bank,
		ImageURL:            r.Card.ImageURL,
		Note:                r.Card.Note,
		RuleID:              string(r.MatchedRule.ID),
		RuleDescription:     r.MatchedRule.Description,
		MatchType:           string(r.MatchType),
		Percentage:          money(r.Percentage),
		EffectivePercentage: money(r.EffectivePercentage),
		RewardAmount:        money(r.RewardAmount),
		EffectiveValue:      money(r.EffectiveValue()),
		IsCapped:            r.IsCapped,
		IsForeignCurrency:   r.IsForeignCurrency,
		FxFee:               money(r.FxFee),
		NetPercentage:       moneyPtr(r.NetPercentage),
		NetRewardAmount:     moneyPtr(r.NetRewardAmount),
		MilesReturn:         milesPtr(r.MilesReturn),
		PointsAmount:        moneyPtr(r.PointsAmount),
		PointsCurrency:      r.PointsCurrency,
		PointsCashValue:     moneyPtr(r.PointsCashValue),
		Explanation:         engine.Explain(r),
	}
	dto.SuggestedPaymentMethod = string(r.SuggestedPaymentMethod)
	dto.PotentialRewardAmount = moneyPtr(r.PotentialRewardAmount)

	if r.DiscountRule != nil {
		dto.DiscountRuleID = string(r.DiscountRule.ID)
		dto.DiscountDescription = r.DiscountRule.Description
		dto.DiscountPercentage = moneyPtr(r.DiscountPercentage)
		dto.DiscountAmount = moneyPtr(r.DiscountAmount)
	}
	if r.MissedDiscountRule != nil {
		dto.MissedDiscount = &MissedDiscountDTO{
			RuleID:      string(r.MissedDiscountRule.ID),
			Description: r.MissedDiscountRule.Description,
			ValidDays:   weekdayNames(r.MissedDiscountRule.ValidDays),
			ValidDates:  r.MissedDiscountRule.ValidDates,
			IsDiscount:  r.MissedDiscountRule.IsDiscount,
		}
		if r.MissedDiscountPercentage != nil {
			dto.MissedDiscount.Percentage = money(*r.MissedDiscountPercentage)
		}
		if r.MissedDiscountAmount != nil {
			dto.MissedDiscount.Amount = money(*r.MissedDiscountAmount)
		}
	}
	if s := r.DateSuggestion; s != nil {
		dto.DateSuggestion = &DateSuggestionDTO{
			RuleID:          string(s.RuleID),
			Description:     s.Description,
			ValidDays:       weekdayNames(s.ValidDays),
			ValidDates:      s.ValidDates,
			NewPercentage:   money(s.NewPercentage),
			NewRewardAmount: money(s.NewRewardAmount),
		}
	}
	if s := r.SpendingSuggestion; s != nil {
		dto.SpendingSuggestion = &SpendingSuggestionDTO{
			RuleID:          string(s.RuleID),
			Description:     s.Description,
			TargetAmount:    money(s.TargetAmount),
			NewPercentage:   money(s.NewPercentage),
			NewRewardAmount: money(s.NewRewardAmount),
		}
	}
	return dto
}

func toResultDTOs(results []engine.Result, owned map[catalog.CardID]bool) []ResultDTO {
	dtos := make([]ResultDTO, len(results))
	for i, r := range results {
		dtos[i] = toResultDTO(i+1, r)
		dtos[i].Owned = owned[r.Card.ID]
	}
	return dtos
}

func toCardDTO(c catalog.Card, withRules bool) CardDTO {
	dto := CardDTO{
		ID:                 string(c.ID),
		Name:               c.Name,
		Bank:               c.Bank,
		RewardCurrency:     string(catalog.CurrencyCash),
		AnnualFee:          money(c.AnnualFee),
		ForeignCurrencyFee: money(c.ForeignCurrencyFee),
		ImageURL:           c.ImageURL,
		Note:               c.Note,
		Hidden:             c.Hidden,
		Tags:               c.Tags,
	}
	if rc := c.RewardConfig; rc != nil {
		dto.RewardCurrency = string(rc.Currency)
		dto.RewardLabel = rc.Label
	}
	if withRules {
		dto.Rules = make([]RuleDTO, len(c.Rules))
		for i, r := range c.Rules {
			dto.Rules[i] = toRuleDTO(r)
		}
	}
	return dto
}

func toRankingDTOs(rs []engine.CategoryRanking) []RankingDTO {
	dtos := make([]RankingDTO, len(rs))
	for i, r := range rs {
		dtos[i] = RankingDTO{
			Rank:           i + 1,
			CardID:         string(r.Card.ID),
			CardName:       r.Card.Name,
			Bank:           r.Card.Bank,
			ImageURL:       r.Card.ImageURL,
			Rule:           toRuleDTO(r.Rule),
			Percentage:     money(r.Percentage),
			NetPercentage:  moneyPtr(r.NetPercentage),
			FxFee:          money(r.FxFee),
			CapAsSpending:  moneyPtr(r.CapAsSpending),
			SpendingLimit:  r.SpendingLimit(),
			DollarsPerMile: milesPtr(r.DollarsPerMile),
			Warnings:       r.Warnings(),
		}
	}
	return dtos
}

func toRuleDTO(r catalog.Rule) RuleDTO {
	dto := RuleDTO{
		ID:          string(r.ID),
		Description: r.Description,
		MatchType:   string(r.MatchType()),
		Percentage:  money(r.Percentage),
		Cap:         moneyPtr(r.Cap),
		CapType:     string(r.CapType),
		CapPeriod:   string(r.CapPeriod),
		ValidDays:   weekdayNames(r.ValidDays),
		ValidDates:  r.ValidDates,
		MinSpend:    money(r.MinSpend),
		ForeignOnly: r.ForeignOnly,
		IsDiscount:  r.IsDiscount,
	}
	if r.ValidFrom != nil {
		dto.ValidFrom = r.ValidFrom.Format(dateLayout)
	}
	if r.ValidTo != nil {
		dto.ValidTo = r.ValidTo.Format(dateLayout)
	}

	switch s := r.Scope.(type) {
	case catalog.MerchantScope:
		for _, id := range s.MerchantIDs {
			dto.MatchValue = append(dto.MatchValue, string(id))
		}
	case catalog.CategoryScope:
		for _, id := range s.CategoryIDs {
			dto.MatchValue = append(dto.MatchValue, string(id))
		}
	case catalog.PaymentMethodScope:
		for _, m := range s.Methods {
			dto.MatchValue = append(dto.MatchValue, string(m))
		}
	}
	return dto
}

func toMerchantDTO(m catalog.Merchant) MerchantDTO {
	cats := make([]string, len(m.CategoryIDs))
	for i, id := range m.CategoryIDs {
		cats[i] = string(id)
	}
	return MerchantDTO{
		ID:           string(m.ID),
		Name:         m.Name,
		Aliases:      m.Aliases,
		Categories:   cats,
		IsOnlineOnly: m.IsOnlineOnly,
		IsGeneral:    m.IsGeneral,
		IsForeign:    m.IsForeign,
	}
}

func toUsageDTO(u ledger.Usage) UsageDTO {
	return UsageDTO{
		ID:          u.ID.String(),
		CardID:      string(u.CardID),
		RuleID:      string(u.RuleID),
		PeriodStart: u.Period.Start.Format(dateLayout),
		PeriodEnd:   u.Period.End.Format(dateLayout),
		Spend:       money(u.Spend),
		Reward:      money(u.Reward),
		SpentAt:     u.SpentAt.Format(dateLayout),
		RecordedAt:  u.RecordedAt.Format(time.RFC3339),
	}
}

func weekdayNames(days []time.Weekday) []string {
	if len(days) == 0 {
		return nil
	}
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.String()
	}
	return out
}
