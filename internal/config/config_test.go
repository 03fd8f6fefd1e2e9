package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":      "postgres://localhost/studio",
		"REDIS_URL":         "redis://localhost:6379/0",
		"JWT_SECRET":        "secret",
		"PAYMENT_PROVIDER":  "",
		"STRIPE_SECRET_KEY": "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, int64(30), cfg.ProcessorFixedFeeCents)
	require.Equal(t, "0.029", cfg.ProcessorPercentFee.String())
	require.Equal(t, "sandbox", cfg.PaymentProvider)
	require.Equal(t, "usd", cfg.Currency)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.True(t, cfg.EmailEnabled)
}

func TestLoadCheckoutOverrides(t *testing.T) {
	env := baseEnv()
	env["PAYMENT_PROVIDER"] = "stripe"
	env["STRIPE_SECRET_KEY"] = "sk_test_123"
	env["PROCESSOR_PERCENT_FEE"] = "0.034"
	env["PLATFORM_FEE_TIERS"] = "free:5,pro:1.5"
	env["CURRENCY"] = "EUR"
	env["PUBLIC_BASE_URL"] = "https://{tenant}.studio.test/"
	env["CHECKOUT_RATE_LIMIT_WINDOW"] = "30s"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "stripe", cfg.PaymentProvider)
	require.Equal(t, "0.034", cfg.ProcessorPercentFee.String())
	require.Equal(t, "free:5,pro:1.5", cfg.PlatformFeeTiers)
	require.Equal(t, "eur", cfg.Currency)
	require.Equal(t, "https://{tenant}.studio.test", cfg.PublicBaseURL)
	require.Equal(t, 30*time.Second, cfg.CheckoutRateLimitWindow)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"missing database":   {"DATABASE_URL": ""},
		"stripe without key": {"PAYMENT_PROVIDER": "stripe"},
		"unknown provider":   {"PAYMENT_PROVIDER": "paypal"},
		"bad fee":            {"PROCESSOR_PERCENT_FEE": "lots"},
		"negative fixed fee": {"PROCESSOR_FIXED_FEE_CENTS": "-1"},
		"inverted gift card": {"GIFT_CARD_MIN_CENTS": "1000", "GIFT_CARD_MAX_CENTS": "500"},
		"bad ui mode":        {"CHECKOUT_UI_MODE": "popup"},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			env := baseEnv()
			for k, v := range overrides {
				env[k] = v
			}
			_, err := LoadForTests(env)
			require.Error(t, err)
		})
	}
}
