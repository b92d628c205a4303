package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// TaxDefaults seeds the tax settings record created for a shop that has none yet.
type TaxDefaults struct {
	Label             string  `mapstructure:"label"`
	LaborRate         float64 `mapstructure:"laborRate"`
	PartsRate         float64 `mapstructure:"partsRate"`
	CombinedRate      float64 `mapstructure:"combinedRate"`
	CalculationMethod string  `mapstructure:"calculationMethod"`
	DisplayMethod     string  `mapstructure:"displayMethod"`
	ApplyToLabor      bool    `mapstructure:"applyToLabor"`
	ApplyToParts      bool    `mapstructure:"applyToParts"`
}

func DefaultTaxDefaults() TaxDefaults {
	return TaxDefaults{
		Label:             "Tax",
		CalculationMethod: "separate",
		DisplayMethod:     "exclusive",
		ApplyToLabor:      true,
		ApplyToParts:      true,
	}
}

type TaxDefaultsHolder struct {
	current atomic.Value // holds TaxDefaults
}

// NewStaticTaxDefaultsHolder returns a holder that never reloads.
func NewStaticTaxDefaultsHolder(defaults TaxDefaults) *TaxDefaultsHolder {
	holder := &TaxDefaultsHolder{}
	holder.current.Store(defaults)
	return holder
}

func NewTaxDefaultsHolder(log *zap.Logger) (*TaxDefaultsHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("tax.defaults")

	v := viper.New()

	v.SetConfigName("tax")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/shopdesk/config")
	v.AddConfigPath("/etc/shopdesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SHOPDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultTaxDefaults()
	v.SetDefault("tax.defaults.label", defaults.Label)
	v.SetDefault("tax.defaults.laborRate", defaults.LaborRate)
	v.SetDefault("tax.defaults.partsRate", defaults.PartsRate)
	v.SetDefault("tax.defaults.combinedRate", defaults.CombinedRate)
	v.SetDefault("tax.defaults.calculationMethod", defaults.CalculationMethod)
	v.SetDefault("tax.defaults.displayMethod", defaults.DisplayMethod)
	v.SetDefault("tax.defaults.applyToLabor", defaults.ApplyToLabor)
	v.SetDefault("tax.defaults.applyToParts", defaults.ApplyToParts)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg TaxDefaults
	if err := v.UnmarshalKey("tax.defaults", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateTaxDefaults(cfg); err != nil {
		return nil, err
	}

	holder := &TaxDefaultsHolder{}
	holder.current.Store(cfg)

	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated TaxDefaults
		if err := v.UnmarshalKey("tax.defaults", &updated); err != nil {
			log.Warn("reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := ValidateTaxDefaults(updated); err != nil {
			log.Warn("invalid tax defaults ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("tax defaults reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *TaxDefaultsHolder) Get() TaxDefaults {
	return h.current.Load().(TaxDefaults)
}

func ValidateTaxDefaults(cfg TaxDefaults) error {
	for _, rate := range []float64{cfg.LaborRate, cfg.PartsRate, cfg.CombinedRate} {
		if rate < 0 || rate > 100 {
			return errors.New("tax.defaults rates must be between 0 and 100")
		}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.CalculationMethod)) {
	case "separate", "combined":
	default:
		return errors.New("tax.defaults.calculationMethod must be separate or combined")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.DisplayMethod)) {
	case "exclusive", "inclusive":
	default:
		return errors.New("tax.defaults.displayMethod must be exclusive or inclusive")
	}
	return nil
}
