// Package shifthours maps declared shift types to hours using one strategy
// table per labor regime.
package shifthours

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/turnos/internal/apperrors"
	"github.com/smallbiznis/turnos/internal/config"
	"go.uber.org/fx"
)

type ShiftType string

const (
	ShiftMorning          ShiftType = "MORNING"
	ShiftAfternoon        ShiftType = "AFTERNOON"
	ShiftMorningAfternoon ShiftType = "MORNING_AFTERNOON"
)

var (
	ErrInvalidShiftType = apperrors.NewValidation("invalid_shift_type")
	ErrUnknownRegime    = apperrors.NewValidation("unknown_regime")
)

func (s ShiftType) Valid() bool {
	switch s {
	case ShiftMorning, ShiftAfternoon, ShiftMorningAfternoon:
		return true
	default:
		return false
	}
}

func ParseShiftType(value string) (ShiftType, error) {
	shift := ShiftType(strings.ToUpper(strings.TrimSpace(value)))
	if !shift.Valid() {
		return "", ErrInvalidShiftType
	}
	return shift, nil
}

// Table is the hour value of each shift type for one regime.
type Table struct {
	Morning          decimal.Decimal
	Afternoon        decimal.Decimal
	MorningAfternoon decimal.Decimal
}

func (t Table) Hours(shift ShiftType) (decimal.Decimal, error) {
	switch shift {
	case ShiftMorning:
		return t.Morning, nil
	case ShiftAfternoon:
		return t.Afternoon, nil
	case ShiftMorningAfternoon:
		return t.MorningAfternoon, nil
	default:
		return decimal.Zero, ErrInvalidShiftType
	}
}

// Calculator dispatches hour computation to the table of a regime. When
// backed by a rules provider it reads the current snapshot on every call, so
// a reloaded rules.yml takes effect without a restart.
type Calculator struct {
	rules  config.RulesProvider
	tables map[string]Table
}

// NewCalculator returns a calculator over a fixed set of tables.
func NewCalculator(tables map[string]Table) *Calculator {
	normalized := make(map[string]Table, len(tables))
	for id, table := range tables {
		normalized[config.NormalizeRegimeID(id)] = table
	}
	return &Calculator{tables: normalized}
}

// NewCalculatorFromRules builds the strategy map from the configured regimes
// each time a table is requested.
func NewCalculatorFromRules(rules config.RulesProvider) *Calculator {
	return &Calculator{rules: rules}
}

func tableFromRule(rule config.RegimeRule) Table {
	return Table{
		Morning:          decimal.NewFromFloat(rule.Morning),
		Afternoon:        decimal.NewFromFloat(rule.Afternoon),
		MorningAfternoon: decimal.NewFromFloat(rule.MorningAfternoon),
	}
}

func (c *Calculator) Table(regimeID string) (Table, error) {
	id := config.NormalizeRegimeID(regimeID)
	if c.rules != nil {
		rule, ok := c.rules.Get().Regimes[id]
		if !ok {
			return Table{}, ErrUnknownRegime
		}
		return tableFromRule(rule), nil
	}
	table, ok := c.tables[id]
	if !ok {
		return Table{}, ErrUnknownRegime
	}
	return table, nil
}

func (c *Calculator) Hours(regimeID string, shift ShiftType) (decimal.Decimal, error) {
	table, err := c.Table(regimeID)
	if err != nil {
		return decimal.Zero, err
	}
	return table.Hours(shift)
}

// Regimes lists the configured regime identifiers.
func (c *Calculator) Regimes() []string {
	if c.rules != nil {
		regimes := c.rules.Get().Regimes
		ids := make([]string, 0, len(regimes))
		for id := range regimes {
			ids = append(ids, id)
		}
		return ids
	}
	ids := make([]string, 0, len(c.tables))
	for id := range c.tables {
		ids = append(ids, id)
	}
	return ids
}

var Module = fx.Module("shifthours",
	fx.Provide(NewCalculatorFromRules),
)
