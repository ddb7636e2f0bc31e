/*
Package factory converts store VIP configuration documents into
vip.StoreVipConfig values.

PURPOSE:
  Lets an administrator describe the store-wide VIP program in a JSON or
  YAML file (or an API body) instead of code. The factory validates the
  document, applies defaults and builds the struct the engine consumes.

DOCUMENT SCHEMA (YAML):
  weekly_value_goal: "150.00"
  weekly_order_goal: 4
  combo_reward_value: "20.00"
  combo_min_order_value: "30.00"   # optional, defaults to 30.00
  week_start_date: 2024-01-01
  month_start_date: 2024-01-01     # optional, defaults to week_start_date

  The same keys are accepted as JSON. Money fields may be strings or
  numbers; strings avoid float rounding.

KEY FEATURES:
  - Accepts JSON and YAML (format sniffed from the first character)
  - Money parsed with shopspring/decimal
  - Dates checked against the ISO layout before they reach the resolver
  - ToDocument for the reverse direction (GET /api/config, exports)

USAGE:
  f := factory.NewConfigFactory()

  cfg, err := f.ParseFile("./vip.yaml")
  if err != nil {
      return err
  }
  store.SaveConfig(ctx, *cfg)

  // From a preset
  cfg, err = f.Parse([]byte(vip.NeighborhoodProgramJSON("2024-01-01")))

SEE ALSO:
  - vip/types.go: StoreVipConfig
  - vip/presets.go: preset documents
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/vip"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// ConfigDocument is the serialized form of a StoreVipConfig.
type ConfigDocument struct {
	WeeklyValueGoal    MoneyField `json:"weekly_value_goal" yaml:"weekly_value_goal"`
	WeeklyOrderGoal    *int       `json:"weekly_order_goal" yaml:"weekly_order_goal"`
	ComboRewardValue   MoneyField `json:"combo_reward_value" yaml:"combo_reward_value"`
	ComboMinOrderValue MoneyField `json:"combo_min_order_value,omitempty" yaml:"combo_min_order_value,omitempty"`
	WeekStartDate      string     `json:"week_start_date" yaml:"week_start_date"`
	MonthStartDate     string     `json:"month_start_date,omitempty" yaml:"month_start_date,omitempty"`
}

// MoneyField accepts "12.50" or 12.5 and remembers whether it was set.
type MoneyField struct {
	Value decimal.Decimal
	Set   bool
}

// NewMoneyField wraps a set value.
func NewMoneyField(d decimal.Decimal) MoneyField {
	return MoneyField{Value: d, Set: true}
}

func (m MoneyField) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Value.StringFixed(2))
}

func (m *MoneyField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", data, err)
	}
	m.Value, m.Set = d, true
	return nil
}

func (m MoneyField) MarshalYAML() (any, error) {
	return m.Value.StringFixed(2), nil
}

func (m *MoneyField) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		return nil
	}
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid amount %q: %w", node.Line, node.Value, err)
	}
	m.Value, m.Set = d, true
	return nil
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// ConfigFactory converts documents to StoreVipConfig.
type ConfigFactory struct{}

// NewConfigFactory creates a new config factory.
func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{}
}

// Parse decodes a JSON or YAML document and builds the config.
func (f *ConfigFactory) Parse(data []byte) (*vip.StoreVipConfig, error) {
	var doc ConfigDocument
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty config document", generic.ErrMissingConfiguration)
	}

	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}
	return f.FromDocument(doc)
}

// ParseFile reads and parses a config document from disk.
func (f *ConfigFactory) ParseFile(path string) (*vip.StoreVipConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := f.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FromDocument validates a document and converts it.
func (f *ConfigFactory) FromDocument(doc ConfigDocument) (*vip.StoreVipConfig, error) {
	if !doc.WeeklyValueGoal.Set {
		return nil, fmt.Errorf("%w: weekly_value_goal is required", generic.ErrMissingConfiguration)
	}
	if doc.WeeklyOrderGoal == nil {
		return nil, fmt.Errorf("%w: weekly_order_goal is required", generic.ErrMissingConfiguration)
	}
	if doc.WeekStartDate == "" {
		return nil, fmt.Errorf("%w: week_start_date is required", generic.ErrMissingConfiguration)
	}

	weekStart, err := generic.ParseDate(doc.WeekStartDate)
	if err != nil {
		return nil, &generic.InvalidDateConfigError{Field: "week_start_date", Default: doc.WeekStartDate}
	}
	monthStart := weekStart
	if doc.MonthStartDate != "" {
		if monthStart, err = generic.ParseDate(doc.MonthStartDate); err != nil {
			return nil, &generic.InvalidDateConfigError{Field: "month_start_date", Default: doc.MonthStartDate}
		}
	}

	cfg := &vip.StoreVipConfig{
		DefaultWeeklyValueGoal: doc.WeeklyValueGoal.Value,
		DefaultWeeklyOrderGoal: *doc.WeeklyOrderGoal,
		ComboRewardValue:       decimal.Zero,
		ComboMinOrderValue:     vip.DefaultComboMinOrderValue,
		DefaultWeekStartDate:   weekStart.String(),
		DefaultMonthStartDate:  monthStart.String(),
	}
	if doc.ComboRewardValue.Set {
		cfg.ComboRewardValue = doc.ComboRewardValue.Value
	}
	if doc.ComboMinOrderValue.Set {
		cfg.ComboMinOrderValue = doc.ComboMinOrderValue.Value
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToDocument converts a config back to its document form.
func (f *ConfigFactory) ToDocument(cfg vip.StoreVipConfig) ConfigDocument {
	orders := cfg.DefaultWeeklyOrderGoal
	return ConfigDocument{
		WeeklyValueGoal:    NewMoneyField(cfg.DefaultWeeklyValueGoal),
		WeeklyOrderGoal:    &orders,
		ComboRewardValue:   NewMoneyField(cfg.ComboRewardValue),
		ComboMinOrderValue: NewMoneyField(cfg.ComboMinOrderValue),
		WeekStartDate:      cfg.DefaultWeekStartDate,
		MonthStartDate:     cfg.DefaultMonthStartDate,
	}
}

// MarshalYAML renders a config as a YAML document.
func (f *ConfigFactory) MarshalYAML(cfg vip.StoreVipConfig) ([]byte, error) {
	return yaml.Marshal(f.ToDocument(cfg))
}
