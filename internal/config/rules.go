package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Rules are the business thresholds that drive submission and reconciliation.
type Rules struct {
	MinimumRequiredHours float64               `mapstructure:"minimum_required_hours"`
	ToleranceHours       float64               `mapstructure:"tolerance_hours"`
	DefaultRegime        string                `mapstructure:"default_regime"`
	Regimes              map[string]RegimeRule `mapstructure:"regimes"`
}

// RegimeRule holds the per-shift hour values of a labor regime.
type RegimeRule struct {
	Morning              float64  `mapstructure:"morning"`
	Afternoon            float64  `mapstructure:"afternoon"`
	MorningAfternoon     float64  `mapstructure:"morning_afternoon"`
	MinimumRequiredHours *float64 `mapstructure:"minimum_required_hours"`
}

func DefaultRules() Rules {
	return Rules{
		MinimumRequiredHours: 150,
		ToleranceHours:       10,
		DefaultRegime:        "GENERAL",
		Regimes: map[string]RegimeRule{
			"GENERAL":   {Morning: 6, Afternoon: 6, MorningAfternoon: 12},
			"PART_TIME": {Morning: 4, Afternoon: 4, MorningAfternoon: 8},
			"ON_CALL":   {Morning: 12, Afternoon: 12, MorningAfternoon: 24},
		},
	}
}

// MinimumHours returns the submission threshold for a regime, falling back
// to the global value when the regime has no override.
func (r Rules) MinimumHours(regimeID string) decimal.Decimal {
	if rule, ok := r.Regimes[NormalizeRegimeID(regimeID)]; ok && rule.MinimumRequiredHours != nil {
		return decimal.NewFromFloat(*rule.MinimumRequiredHours)
	}
	return decimal.NewFromFloat(r.MinimumRequiredHours)
}

func (r Rules) Tolerance() decimal.Decimal {
	return decimal.NewFromFloat(r.ToleranceHours)
}

// NormalizeRegimeID upper-cases regime identifiers; viper lowercases map keys.
func NormalizeRegimeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func (r Rules) normalized() Rules {
	regimes := make(map[string]RegimeRule, len(r.Regimes))
	for id, rule := range r.Regimes {
		regimes[NormalizeRegimeID(id)] = rule
	}
	r.Regimes = regimes
	r.DefaultRegime = NormalizeRegimeID(r.DefaultRegime)
	return r
}

// RulesProvider exposes the current rules snapshot.
type RulesProvider interface {
	Get() Rules
}

type RulesHolder struct {
	current atomic.Value // holds Rules
}

// NewStaticRulesHolder returns a holder that never reloads.
func NewStaticRulesHolder(rules Rules) (*RulesHolder, error) {
	rules = rules.normalized()
	if err := validateRules(rules); err != nil {
		return nil, err
	}
	holder := &RulesHolder{}
	holder.current.Store(rules)
	return holder, nil
}

// NewRulesHolder reads rules.yml and keeps watching it for changes.
func NewRulesHolder(cfg Config) (*RulesHolder, error) {
	v := viper.New()

	v.SetConfigName("rules")
	v.SetConfigType("yml")
	if cfg.RulesPath != "" {
		v.AddConfigPath(cfg.RulesPath)
	}
	v.AddConfigPath("/etc/turnos")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TURNOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRules()
	v.SetDefault("rules.minimum_required_hours", defaults.MinimumRequiredHours)
	v.SetDefault("rules.tolerance_hours", defaults.ToleranceHours)
	v.SetDefault("rules.default_regime", defaults.DefaultRegime)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}
	if !v.IsSet("rules.regimes") {
		v.SetDefault("rules.regimes", defaults.Regimes)
	}

	rules, err := decodeRules(v)
	if err != nil {
		return nil, err
	}

	holder := &RulesHolder{}
	holder.current.Store(rules)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Rules
		if err := v.UnmarshalKey("rules", &updated); err != nil {
			zap.L().Warn("rules reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := holder.Replace(updated); err != nil {
			zap.L().Warn("rules reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		zap.L().Info("rules reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func decodeRules(v *viper.Viper) (Rules, error) {
	var rules Rules
	if err := v.UnmarshalKey("rules", &rules); err != nil {
		return Rules{}, err
	}
	rules = rules.normalized()
	if err := validateRules(rules); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

func (h *RulesHolder) Get() Rules {
	return h.current.Load().(Rules)
}

// Replace swaps in a new snapshot. Invalid rules leave the current one in place.
func (h *RulesHolder) Replace(rules Rules) error {
	rules = rules.normalized()
	if err := validateRules(rules); err != nil {
		return err
	}
	h.current.Store(rules)
	return nil
}

func validateRules(r Rules) error {
	if r.MinimumRequiredHours < 0 {
		return errors.New("rules.minimum_required_hours cannot be negative")
	}
	if r.ToleranceHours < 0 {
		return errors.New("rules.tolerance_hours cannot be negative")
	}
	if len(r.Regimes) == 0 {
		return errors.New("rules.regimes cannot be empty")
	}
	if _, ok := r.Regimes[r.DefaultRegime]; !ok {
		return fmt.Errorf("rules.default_regime %q is not a configured regime", r.DefaultRegime)
	}
	for id, rule := range r.Regimes {
		if rule.Morning <= 0 || rule.Afternoon <= 0 || rule.MorningAfternoon <= 0 {
			return fmt.Errorf("rules.regimes.%s: shift hours must be positive", strings.ToLower(id))
		}
		if rule.MinimumRequiredHours != nil && *rule.MinimumRequiredHours < 0 {
			return fmt.Errorf("rules.regimes.%s.minimum_required_hours cannot be negative", strings.ToLower(id))
		}
	}
	return nil
}
