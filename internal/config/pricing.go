package config

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultGSTPercent          = "3"
	DefaultMakingChargePercent = "12"
	DefaultCurrency            = "INR"
	DefaultQuoteCacheTTL       = 10 * time.Minute
)

// PricingConfig is the admin-tunable part of the price calculation.
type PricingConfig struct {
	GSTPercent decimal.Decimal
	// DefaultMakingChargePercent applies to categories without a policy row.
	// Nil means there is no system default and such categories cannot be priced.
	DefaultMakingChargePercent *decimal.Decimal
	Currency                   string
	QuoteCacheTTL              time.Duration
}

type rawPricingConfig struct {
	GSTPercent                 string        `mapstructure:"gst_percent"`
	DefaultMakingChargePercent string        `mapstructure:"default_making_charge_percent"`
	Currency                   string        `mapstructure:"currency"`
	QuoteCacheTTL              time.Duration `mapstructure:"quote_cache_ttl"`
}

func DefaultPricingConfig() PricingConfig {
	def := decimal.RequireFromString(DefaultMakingChargePercent)
	return PricingConfig{
		GSTPercent:                 decimal.RequireFromString(DefaultGSTPercent),
		DefaultMakingChargePercent: &def,
		Currency:                   DefaultCurrency,
		QuoteCacheTTL:              DefaultQuoteCacheTTL,
	}
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig

	mu        sync.Mutex
	listeners []func(PricingConfig)
}

// NewStaticPricingConfigHolder returns a holder that never reloads.
func NewStaticPricingConfigHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPricingConfigHolder(appCfg Config, log *zap.Logger) (*PricingConfigHolder, error) {
	log = log.Named("pricing.config")
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	if appCfg.PricingConfigPath != "" {
		v.AddConfigPath(appCfg.PricingConfigPath)
	}
	v.AddConfigPath("/etc/karat")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KARAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("pricing.gst_percent", DefaultGSTPercent)
	v.SetDefault("pricing.default_making_charge_percent", DefaultMakingChargePercent)
	v.SetDefault("pricing.currency", DefaultCurrency)
	v.SetDefault("pricing.quote_cache_ttl", DefaultQuoteCacheTTL)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Info("pricing.yml not found, using defaults")
	}

	cfg, err := decodePricingConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticPricingConfigHolder(cfg)

	if v.ConfigFileUsed() != "" {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodePricingConfig(v)
			if err != nil {
				log.Warn("invalid pricing config ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.Update(updated)
			log.Info("pricing config reloaded",
				zap.String("file", e.Name),
				zap.String("gst_percent", updated.GSTPercent.String()),
			)
		})
	}

	return holder, nil
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

// OnChange registers fn to run after every Update, with the new config.
func (h *PricingConfigHolder) OnChange(fn func(PricingConfig)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Update swaps in cfg, then notifies listeners. Readers never see a listener
// run before the new value is visible.
func (h *PricingConfigHolder) Update(cfg PricingConfig) {
	h.current.Store(cfg)
	h.mu.Lock()
	listeners := append(([]func(PricingConfig))(nil), h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}

func decodePricingConfig(v *viper.Viper) (PricingConfig, error) {
	var raw rawPricingConfig
	if err := v.UnmarshalKey("pricing", &raw); err != nil {
		return PricingConfig{}, err
	}
	return parsePricingConfig(raw)
}

func parsePricingConfig(raw rawPricingConfig) (PricingConfig, error) {
	gst, err := decimal.NewFromString(strings.TrimSpace(raw.GSTPercent))
	if err != nil {
		return PricingConfig{}, errors.New("pricing.gst_percent must be a number")
	}
	if gst.IsNegative() || gst.GreaterThan(decimal.NewFromInt(100)) {
		return PricingConfig{}, errors.New("pricing.gst_percent must be between 0 and 100")
	}

	cfg := PricingConfig{
		GSTPercent:    gst,
		Currency:      strings.ToUpper(strings.TrimSpace(raw.Currency)),
		QuoteCacheTTL: raw.QuoteCacheTTL,
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.QuoteCacheTTL <= 0 {
		cfg.QuoteCacheTTL = DefaultQuoteCacheTTL
	}

	if value := strings.TrimSpace(raw.DefaultMakingChargePercent); value != "" {
		pct, err := decimal.NewFromString(value)
		if err != nil {
			return PricingConfig{}, errors.New("pricing.default_making_charge_percent must be a number")
		}
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return PricingConfig{}, errors.New("pricing.default_making_charge_percent must be between 0 and 100")
		}
		cfg.DefaultMakingChargePercent = &pct
	}

	return cfg, nil
}
