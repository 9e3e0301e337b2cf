/*
factory.go - YAML to Go catalog conversion

PURPOSE:
  Converts the YAML catalog file into typed Cards, Merchants and Categories.
  Rule definitions are authored by people reading bank T&Cs, so the file
  format stays close to how those terms read; the factory turns each rule's
  match_type/match_value pair into the sealed Scope variant.

YAML SCHEMA:
  categories:
    - id: dining
      name: Dining
  merchants:
    - id: sushiro
      name: Sushiro
      aliases: [sushi]
      categories: [dining]
  cards:
    - id: hsbc-red
      name: HSBC Red
      bank: HSBC
      foreign_currency_fee: 1.95
      reward: {currency: miles, rate: 10, label: RC}
      rules:
        - description: Online 4%
          match_type: category
          match_value: online          # string or list
          percentage: 4
          cap: 400
          cap_type: reward             # spending (default) | reward
          cap_period: monthly          # monthly (default) | quarterly | yearly | promo
          valid_days: [3]              # 0 = Sunday
          valid_dates: [3, 13, 23]
          valid_from: 2025-12-01
          valid_to: 2026-02-28
          min_spend: 300
          foreign_only: false
          exclude_categories: [tax]
          exclude_payment_methods: [alipay]

DEFAULTS:
  - cap_type defaults to spending, cap_period to monthly
  - rule ids default to "<card id>-<1-based index>"

USAGE:
  snap, err := catalog.LoadFile("./catalog.yaml")
  snap, err := catalog.Default() // embedded catalog

SEE ALSO:
  - types.go: Target types
  - validate.go: Run after loading, before use
*/
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml
var defaultCatalog []byte

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

type FileYAML struct {
	Categories []CategoryYAML `yaml:"categories"`
	Merchants  []MerchantYAML `yaml:"merchants"`
	Cards      []CardYAML     `yaml:"cards"`
}

type CategoryYAML struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Foreign bool   `yaml:"foreign,omitempty"`
}

type MerchantYAML struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Aliases    []string `yaml:"aliases,omitempty"`
	Categories []string `yaml:"categories,omitempty"`
	OnlineOnly bool     `yaml:"online_only,omitempty"`
	General    bool     `yaml:"general,omitempty"`
	Foreign    bool     `yaml:"foreign,omitempty"`
}

type CardYAML struct {
	ID                 string      `yaml:"id"`
	Name               string      `yaml:"name"`
	Bank               string      `yaml:"bank"`
	ForeignCurrencyFee float64     `yaml:"foreign_currency_fee,omitempty"`
	AnnualFee          float64     `yaml:"annual_fee,omitempty"`
	Tags               []string    `yaml:"tags,omitempty"`
	Note               string      `yaml:"note,omitempty"`
	ImageURL           string      `yaml:"image_url,omitempty"`
	Hidden             bool        `yaml:"hidden,omitempty"`
	Reward             *RewardYAML `yaml:"reward,omitempty"`
	Rules              []RuleYAML  `yaml:"rules"`
}

type RewardYAML struct {
	Currency        string  `yaml:"currency"`
	Rate            float64 `yaml:"rate,omitempty"`
	RedemptionValue float64 `yaml:"redemption_value,omitempty"`
	Label           string  `yaml:"label,omitempty"`
}

type RuleYAML struct {
	ID                    string     `yaml:"id,omitempty"`
	Description           string     `yaml:"description"`
	MatchType             string     `yaml:"match_type"`
	MatchValue            StringList `yaml:"match_value,omitempty"`
	Percentage            float64    `yaml:"percentage"`
	Cap                   *float64   `yaml:"cap,omitempty"`
	CapType               string     `yaml:"cap_type,omitempty"`
	CapPeriod             string     `yaml:"cap_period,omitempty"`
	ValidDays             []int      `yaml:"valid_days,omitempty"`
	ValidDates            []int      `yaml:"valid_dates,omitempty"`
	ValidFrom             string     `yaml:"valid_from,omitempty"`
	ValidTo               string     `yaml:"valid_to,omitempty"`
	MinSpend              float64    `yaml:"min_spend,omitempty"`
	ForeignOnly           bool       `yaml:"foreign_only,omitempty"`
	IsDiscount            bool       `yaml:"is_discount,omitempty"`
	ExcludeCategories     []string   `yaml:"exclude_categories,omitempty"`
	ExcludePaymentMethods []string   `yaml:"exclude_payment_methods,omitempty"`
}

// StringList accepts either a scalar or a sequence of scalars.
type StringList []string

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: match_value must be a string or a list", node.Line)
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Default returns the catalog embedded in the binary.
func Default() (*Snapshot, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads and converts a YAML catalog file.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	snap, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return snap, nil
}

// Parse converts YAML bytes into a Snapshot. Integrity is not checked here;
// run Validate or Partition on the result.
func Parse(data []byte) (*Snapshot, error) {
	var fy FileYAML
	if err := yaml.Unmarshal(data, &fy); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	return FromYAML(fy)
}

// FromYAML converts the schema types into a Snapshot.
func FromYAML(fy FileYAML) (*Snapshot, error) {
	snap := &Snapshot{
		Categories: make([]Category, 0, len(fy.Categories)),
		Merchants:  make([]Merchant, 0, len(fy.Merchants)),
		Cards:      make([]Card, 0, len(fy.Cards)),
	}

	for _, cy := range fy.Categories {
		snap.Categories = append(snap.Categories, Category{
			ID:        CategoryID(cy.ID),
			Name:      cy.Name,
			IsForeign: cy.Foreign,
		})
	}

	for _, my := range fy.Merchants {
		m := Merchant{
			ID:           MerchantID(my.ID),
			Name:         my.Name,
			Aliases:      my.Aliases,
			IsOnlineOnly: my.OnlineOnly,
			IsGeneral:    my.General,
			IsForeign:    my.Foreign,
		}
		for _, c := range my.Categories {
			m.CategoryIDs = append(m.CategoryIDs, CategoryID(c))
		}
		snap.Merchants = append(snap.Merchants, m)
	}

	for _, cy := range fy.Cards {
		card, err := cardFromYAML(cy)
		if err != nil {
			return nil, err
		}
		snap.Cards = append(snap.Cards, card)
	}

	return snap, nil
}

func cardFromYAML(cy CardYAML) (Card, error) {
	card := Card{
		ID:                 CardID(cy.ID),
		Name:               cy.Name,
		Bank:               cy.Bank,
		ForeignCurrencyFee: decimal.NewFromFloat(cy.ForeignCurrencyFee),
		AnnualFee:          decimal.NewFromFloat(cy.AnnualFee),
		Tags:               cy.Tags,
		Note:               cy.Note,
		ImageURL:           cy.ImageURL,
		Hidden:             cy.Hidden,
		Rules:              make([]Rule, 0, len(cy.Rules)),
	}

	if cy.Reward != nil {
		currency := RewardCurrency(cy.Reward.Currency)
		switch currency {
		case CurrencyCash, CurrencyMiles, CurrencyPoints:
		case "":
			currency = CurrencyCash
		default:
			return Card{}, fmt.Errorf("card %s: unknown reward currency %q", cy.ID, cy.Reward.Currency)
		}
		card.RewardConfig = &RewardConfig{
			Currency:        currency,
			Rate:            decimal.NewFromFloat(cy.Reward.Rate),
			RedemptionValue: decimal.NewFromFloat(cy.Reward.RedemptionValue),
			Label:           cy.Reward.Label,
		}
	}

	for i, ry := range cy.Rules {
		rule, err := ruleFromYAML(ry)
		if err != nil {
			return Card{}, fmt.Errorf("card %s rule %d: %w", cy.ID, i+1, err)
		}
		if rule.ID == "" {
			rule.ID = RuleID(fmt.Sprintf("%s-%d", cy.ID, i+1))
		}
		card.Rules = append(card.Rules, rule)
	}

	return card, nil
}

func ruleFromYAML(ry RuleYAML) (Rule, error) {
	rule := Rule{
		ID:          RuleID(ry.ID),
		Description: ry.Description,
		Percentage:  decimal.NewFromFloat(ry.Percentage),
		CapType:     CapType(ry.CapType),
		CapPeriod:   CapPeriod(ry.CapPeriod),
		ValidDates:  ry.ValidDates,
		MinSpend:    decimal.NewFromFloat(ry.MinSpend),
		ForeignOnly: ry.ForeignOnly,
		IsDiscount:  ry.IsDiscount,
	}

	switch MatchType(ry.MatchType) {
	case MatchMerchant:
		s := MerchantScope{}
		for _, v := range ry.MatchValue {
			s.MerchantIDs = append(s.MerchantIDs, MerchantID(v))
		}
		rule.Scope = s
	case MatchCategory:
		s := CategoryScope{}
		for _, v := range ry.MatchValue {
			s.CategoryIDs = append(s.CategoryIDs, CategoryID(v))
		}
		rule.Scope = s
	case MatchPaymentMethod:
		s := PaymentMethodScope{}
		for _, v := range ry.MatchValue {
			s.Methods = append(s.Methods, PaymentMethod(v))
		}
		rule.Scope = s
	case MatchBase:
		rule.Scope = BaseScope{}
	default:
		return Rule{}, fmt.Errorf("unknown match_type %q", ry.MatchType)
	}

	if ry.Cap != nil {
		c := decimal.NewFromFloat(*ry.Cap)
		rule.Cap = &c
	}
	if rule.CapType == "" {
		rule.CapType = CapSpending
	}
	if rule.CapPeriod == "" {
		rule.CapPeriod = CapMonthly
	}

	for _, d := range ry.ValidDays {
		rule.ValidDays = append(rule.ValidDays, time.Weekday(d))
	}

	var err error
	if rule.ValidFrom, err = parseDate(ry.ValidFrom); err != nil {
		return Rule{}, fmt.Errorf("valid_from: %w", err)
	}
	if rule.ValidTo, err = parseDate(ry.ValidTo); err != nil {
		return Rule{}, fmt.Errorf("valid_to: %w", err)
	}

	for _, c := range ry.ExcludeCategories {
		rule.ExcludeCategories = append(rule.ExcludeCategories, CategoryID(c))
	}
	for _, p := range ry.ExcludePaymentMethods {
		rule.ExcludePaymentMethods = append(rule.ExcludePaymentMethods, PaymentMethod(p))
	}

	return rule, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
