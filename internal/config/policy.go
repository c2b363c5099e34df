package config

import (
	"errors"
	"io/fs"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PricingPolicy carries the commercial knobs that operators tune without a
// redeploy.
type PricingPolicy struct {
	BirthdayDiscountPercent int64   `mapstructure:"birthdayDiscountPercent"`
	LoyaltyEarnRate         float64 `mapstructure:"loyaltyEarnRate"`
	LowStockSweep           bool    `mapstructure:"lowStockSweep"`
}

func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		BirthdayDiscountPercent: 10,
		LoyaltyEarnRate:         0.01,
		LowStockSweep:           true,
	}
}

type PolicyHolder struct {
	current atomic.Value // holds PricingPolicy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(policy PricingPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewPolicyHolder(cfg Config, log *zap.Logger) (*PolicyHolder, error) {
	log = log.Named("config.policy")
	v := viper.New()

	if cfg.PolicyPath != "" {
		v.SetConfigFile(cfg.PolicyPath)
	} else {
		v.SetConfigName("pricing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/tillpoint")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TILLPOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingPolicy()
	v.SetDefault("pricing.birthdayDiscountPercent", defaults.BirthdayDiscountPercent)
	v.SetDefault("pricing.loyaltyEarnRate", defaults.LoyaltyEarnRate)
	v.SetDefault("pricing.lowStockSweep", defaults.LowStockSweep)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		fileLoaded = false
	}

	var policy PricingPolicy
	if err := v.UnmarshalKey("pricing", &policy); err != nil {
		return nil, err
	}
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !fileLoaded {
		log.Info("pricing policy file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingPolicy
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Warn("pricing policy reload failed", zap.Error(err))
			return
		}
		if err := validatePolicy(updated); err != nil {
			log.Warn("invalid pricing policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("pricing policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() PricingPolicy {
	return h.current.Load().(PricingPolicy)
}

func validatePolicy(p PricingPolicy) error {
	if p.BirthdayDiscountPercent < 0 || p.BirthdayDiscountPercent > 100 {
		return errors.New("pricing.birthdayDiscountPercent must be within 0..100")
	}
	if p.LoyaltyEarnRate < 0 || p.LoyaltyEarnRate > 1 {
		return errors.New("pricing.loyaltyEarnRate must be within 0..1")
	}
	return nil
}
