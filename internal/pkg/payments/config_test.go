package payments

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("FEDAPAY_WEBHOOK_SECRET", "")
	t.Setenv("KKIAPAY_WEBHOOK_SECRET", "")
	t.Setenv("DA_UNIT_PRICE_PER_HA", "")
	t.Setenv("PAYMENT_VERIFY_TIMEOUT", "")

	cfg := ConfigFromEnv()
	assert.Empty(t, cfg.SecretFor("fedapay"))
	assert.True(t, cfg.Activation.DefaultUnitPricePerHa.Equal(decimal.NewFromInt(30000)))
	assert.Equal(t, 10*time.Second, cfg.VerifyTimeout)
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("FEDAPAY_WEBHOOK_SECRET", " whsec_feda ")
	t.Setenv("KKIAPAY_WEBHOOK_SECRET", "whsec_kkia")
	t.Setenv("DA_UNIT_PRICE_PER_HA", "45000")
	t.Setenv("PAYMENT_VERIFY_TIMEOUT", "3s")

	cfg := ConfigFromEnv()
	assert.Equal(t, "whsec_feda", cfg.SecretFor("fedapay"))
	assert.Equal(t, "whsec_kkia", cfg.SecretFor("kkiapay"))
	assert.Empty(t, cfg.SecretFor("stripe"))
	assert.True(t, cfg.Activation.DefaultUnitPricePerHa.Equal(decimal.NewFromInt(45000)))
	assert.Equal(t, 3*time.Second, cfg.VerifyTimeout)
}

func TestConfigFromEnv_IgnoresInvalidPrice(t *testing.T) {
	t.Setenv("DA_UNIT_PRICE_PER_HA", "-10")
	assert.True(t, ConfigFromEnv().Activation.DefaultUnitPricePerHa.Equal(decimal.NewFromInt(30000)))

	t.Setenv("DA_UNIT_PRICE_PER_HA", "abc")
	assert.True(t, ConfigFromEnv().Activation.DefaultUnitPricePerHa.Equal(decimal.NewFromInt(30000)))
}

func TestPollerConfigFromEnv(t *testing.T) {
	t.Setenv("RETURN_POLL_INTERVAL_MS", "")
	t.Setenv("RETURN_POLL_MAX_CHECKS", "")
	t.Setenv("RETURN_MAX_SESSIONS", "")
	assert.Equal(t, DefaultPollerConfig(), PollerConfigFromEnv())

	t.Setenv("RETURN_POLL_INTERVAL_MS", "1000")
	t.Setenv("RETURN_POLL_MAX_CHECKS", "3")
	t.Setenv("RETURN_MAX_SESSIONS", "50")
	cfg := PollerConfigFromEnv()
	assert.Equal(t, 50, cfg.MaxSessions)
	assert.Equal(t, time.Second, cfg.Interval)
	assert.Equal(t, 3, cfg.MaxAutoChecks)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
}
