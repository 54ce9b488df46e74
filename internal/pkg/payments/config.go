package payments

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agricapital/agricapital/app/models"
	"github.com/agricapital/agricapital/internal/pkg/env"
)

const (
	// DefaultUnitPricePerHa is the access-right price per hectare used when a
	// plantation carries no rate of its own.
	DefaultUnitPricePerHa = 30000

	defaultVerifyTimeout     = 10 * time.Second
	defaultPollInterval      = 2500 * time.Millisecond
	defaultPollMaxAutoChecks = 10
	defaultReturnSessionTTL  = 30 * time.Minute
	defaultReturnMaxSessions = 10000
)

// ActivationConfig holds the pricing inputs of the activation cascade.
type ActivationConfig struct {
	DefaultUnitPricePerHa decimal.Decimal
}

// Config is the reconciliation configuration shared by the webhook receiver,
// the return flow and the activation cascade.
type Config struct {
	// WebhookSecrets maps a provider name to its webhook signing secret. An
	// empty secret disables signature checking for that provider.
	WebhookSecrets map[string]string
	Activation     ActivationConfig
	VerifyTimeout  time.Duration
}

// PollerConfig bounds the automatic re-checks of the return flow.
type PollerConfig struct {
	Interval      time.Duration
	MaxAutoChecks int
	SessionTTL    time.Duration
	// MaxSessions caps live sessions; the one closest to expiry is evicted.
	MaxSessions int
}

// DefaultActivationConfig returns the activation config with the built-in price.
func DefaultActivationConfig() ActivationConfig {
	return ActivationConfig{DefaultUnitPricePerHa: decimal.NewFromInt(DefaultUnitPricePerHa)}
}

// DefaultPollerConfig returns 10 automatic checks every 2.5s.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:      defaultPollInterval,
		MaxAutoChecks: defaultPollMaxAutoChecks,
		SessionTTL:    defaultReturnSessionTTL,
		MaxSessions:   defaultReturnMaxSessions,
	}
}

// ConfigFromEnv reads the reconciliation config once at startup.
func ConfigFromEnv() Config {
	cfg := Config{
		WebhookSecrets: map[string]string{
			models.PaymentProviderFedaPay: strings.TrimSpace(env.GetEnv("FEDAPAY_WEBHOOK_SECRET", "")),
			models.PaymentProviderKKiaPay: strings.TrimSpace(env.GetEnv("KKIAPAY_WEBHOOK_SECRET", "")),
		},
		Activation:    DefaultActivationConfig(),
		VerifyTimeout: defaultVerifyTimeout,
	}

	if raw := strings.TrimSpace(env.GetEnv("DA_UNIT_PRICE_PER_HA", "")); raw != "" {
		if price, err := decimal.NewFromString(raw); err == nil && price.IsPositive() {
			cfg.Activation.DefaultUnitPricePerHa = price
		}
	}
	if d, err := time.ParseDuration(env.GetEnv("PAYMENT_VERIFY_TIMEOUT", "")); err == nil && d > 0 {
		cfg.VerifyTimeout = d
	}
	return cfg
}

// PollerConfigFromEnv reads the return-flow polling bounds.
func PollerConfigFromEnv() PollerConfig {
	cfg := DefaultPollerConfig()
	if ms, err := strconv.Atoi(env.GetEnv("RETURN_POLL_INTERVAL_MS", "")); err == nil && ms > 0 {
		cfg.Interval = time.Duration(ms) * time.Millisecond
	}
	if n, err := strconv.Atoi(env.GetEnv("RETURN_POLL_MAX_CHECKS", "")); err == nil && n >= 0 {
		cfg.MaxAutoChecks = n
	}
	if n, err := strconv.Atoi(env.GetEnv("RETURN_MAX_SESSIONS", "")); err == nil && n > 0 {
		cfg.MaxSessions = n
	}
	return cfg
}

// SecretFor returns the configured webhook secret for provider.
func (c Config) SecretFor(provider string) string {
	if c.WebhookSecrets == nil {
		return ""
	}
	return c.WebhookSecrets[provider]
}
