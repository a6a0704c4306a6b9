/*
Package factory provides JSON to Go product configuration conversion.

PURPOSE:
  Converts JSON product definitions into the engine's Strategy and the
  progressive model's day-count/EMI settings. Banks configure allocation
  behavior without code changes: a product is a JSON document, reviewed
  like any other product parameter.

JSON SCHEMA:
  {
    "currency": {"code": "EUR", "decimal_places": 2},
    "strategy": "standard",
    "day_count": "actual/365",
    "nominal_rate": "0.095",
    "emi_rounding_multiple": 1
  }

  A custom strategy is declared inline instead of by code:

  {
    "currency": {"code": "HUF", "decimal_places": 0, "in_multiples_of": 5},
    "strategy": {
      "code": "bank-x",
      "installment_order": "due-date",
      "due_order": ["penalty", "interest", "principal", "fee"],
      "advance_order": ["principal", "interest", "fee", "penalty"],
      "overpayment": "credit",
      "waiver_component": "interest"
    },
    "day_count": "30/360",
    "nominal_rate": "0.12"
  }

SEE ALSO:
  - engine/strategy.go: the registry of named variants
  - progressive/daycount.go: supported day-count conventions
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/loan-engine/engine"
	"github.com/warp/loan-engine/money"
	"github.com/warp/loan-engine/progressive"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type productJSON struct {
	Currency            currencyJSON    `json:"currency"`
	Strategy            json.RawMessage `json:"strategy"`
	DayCount            string          `json:"day_count"`
	NominalRate         string          `json:"nominal_rate"`
	EmiRoundingMultiple int64           `json:"emi_rounding_multiple,omitempty"`
}

type currencyJSON struct {
	Code          string `json:"code"`
	DecimalPlaces int32  `json:"decimal_places"`
	InMultiplesOf int64  `json:"in_multiples_of,omitempty"`
}

type strategyJSON struct {
	Code             string   `json:"code"`
	Name             string   `json:"name,omitempty"`
	InstallmentOrder string   `json:"installment_order"`
	DueOrder         []string `json:"due_order"`
	AdvanceOrder     []string `json:"advance_order,omitempty"`
	Overpayment      string   `json:"overpayment,omitempty"`
	WaiverComponent  string   `json:"waiver_component,omitempty"`
}

// =============================================================================
// PRODUCT CONFIG
// =============================================================================

// ProductConfig is the parsed, validated configuration a loan is opened
// with.
type ProductConfig struct {
	Currency    money.Currency
	Strategy    engine.Strategy
	DayCount    progressive.DayCountConvention
	NominalRate decimal.Decimal
}

// ParseProduct parses and validates a JSON product definition.
func ParseProduct(data []byte) (*ProductConfig, error) {
	var raw productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("factory: invalid product JSON: %w", err)
	}

	if raw.Currency.Code == "" {
		return nil, fmt.Errorf("factory: currency code is required")
	}
	currency := money.Currency{
		Code:          raw.Currency.Code,
		DecimalPlaces: raw.Currency.DecimalPlaces,
		InMultiplesOf: raw.Currency.InMultiplesOf,
	}

	strategy, err := parseStrategy(raw.Strategy)
	if err != nil {
		return nil, err
	}

	dayCount, err := parseDayCount(raw.DayCount)
	if err != nil {
		return nil, err
	}

	rate := decimal.Zero
	if raw.NominalRate != "" {
		rate, err = decimal.NewFromString(raw.NominalRate)
		if err != nil {
			return nil, fmt.Errorf("factory: invalid nominal rate %q: %w", raw.NominalRate, err)
		}
		if rate.IsNegative() {
			return nil, fmt.Errorf("factory: nominal rate must not be negative")
		}
	}

	return &ProductConfig{
		Currency:    currency,
		Strategy:    strategy,
		DayCount:    dayCount,
		NominalRate: rate,
	}, nil
}

// parseStrategy accepts either a registered strategy code ("standard") or
// an inline strategy object.
func parseStrategy(raw json.RawMessage) (engine.Strategy, error) {
	if len(raw) == 0 {
		return engine.Strategy{}, fmt.Errorf("factory: strategy is required")
	}

	var code string
	if err := json.Unmarshal(raw, &code); err == nil {
		return engine.StrategyByCode(code)
	}

	var sj strategyJSON
	if err := json.Unmarshal(raw, &sj); err != nil {
		return engine.Strategy{}, fmt.Errorf("factory: invalid strategy: %w", err)
	}
	if sj.Code == "" {
		return engine.Strategy{}, fmt.Errorf("factory: inline strategy requires a code")
	}

	strategy := engine.Strategy{
		Code:             sj.Code,
		Name:             sj.Name,
		InstallmentOrder: engine.InstallmentOrder(sj.InstallmentOrder),
		DueOrder:         toComponents(sj.DueOrder),
		AdvanceOrder:     toComponents(sj.AdvanceOrder),
		Overpayment:      engine.OverpaymentPolicy(sj.Overpayment),
		WaiverComponent:  engine.Component(sj.WaiverComponent),
	}

	// Defaults: advance order mirrors due order; overpayments are
	// credited; waivers target interest.
	if len(strategy.AdvanceOrder) == 0 {
		strategy.AdvanceOrder = strategy.DueOrder
	}
	if strategy.Overpayment == "" {
		strategy.Overpayment = engine.OverpaymentCredit
	}
	if strategy.WaiverComponent == "" {
		strategy.WaiverComponent = engine.ComponentInterest
	}

	if err := strategy.Validate(); err != nil {
		return engine.Strategy{}, fmt.Errorf("factory: %w", err)
	}
	return strategy, nil
}

func toComponents(names []string) []engine.Component {
	out := make([]engine.Component, 0, len(names))
	for _, n := range names {
		out = append(out, engine.Component(n))
	}
	return out
}

func parseDayCount(name string) (progressive.DayCountConvention, error) {
	switch progressive.DayCountConvention(name) {
	case progressive.Actual365, progressive.Actual360, progressive.Thirty360:
		return progressive.DayCountConvention(name), nil
	case "":
		return progressive.Actual365, nil
	}
	return "", fmt.Errorf("factory: unknown day-count convention %q", name)
}
