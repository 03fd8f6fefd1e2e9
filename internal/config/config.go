package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	MigrateOnStart     bool
	CORSAllowedOrigins []string
	BodyLimitBytes     int64
	ShutdownTimeout    time.Duration

	JWTSecret    string
	JWTIssuer    string
	JWTAudience  string
	AccessCookie string

	TenantHeader     string
	TenantRootDomain string
	TenantDefault    string
	TenantCacheTTL   time.Duration

	ProcessorFixedFeeCents    int64
	ProcessorPercentFee       decimal.Decimal
	PlatformFeeTiers          string
	PlatformFeeDefaultPercent decimal.Decimal
	Currency                  string
	PublicBaseURL             string
	GiftCardMinCents          int64
	GiftCardMaxCents          int64

	PaymentProvider string
	StripeSecretKey string
	StripeAPIBase   string
	StripeTimeout   time.Duration
	CheckoutUIMode  string
	AutomaticTax    bool

	RateLimitIP             string
	CheckoutRateLimitMax    int
	CheckoutRateLimitWindow time.Duration
	IdempotencyTTL          time.Duration

	AsynqQueue    string
	AsynqMaxRetry int
	EmailEnabled  bool

	LogLevel         string
	LogFormat        string
	MetricsNamespace string
	MetricsBuckets   string
	TracingExporter  string
	TracingEndpoint  string
	TracingSampling  float64
	ServiceName      string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var errs []error
	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:     parseInt64(k.String("BODY_LIMIT_BYTES"), 1<<20, &errs),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),

		JWTSecret:    k.String("JWT_SECRET"),
		JWTIssuer:    strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:  strings.TrimSpace(k.String("JWT_AUDIENCE")),
		AccessCookie: valueOrDefault(k.String("ACCESS_COOKIE"), "access_token"),

		TenantHeader:     valueOrDefault(k.String("TENANT_HEADER"), "X-Tenant-ID"),
		TenantRootDomain: strings.TrimSpace(k.String("TENANT_ROOT_DOMAIN")),
		TenantDefault:    strings.TrimSpace(k.String("TENANT_DEFAULT")),
		TenantCacheTTL:   parseDuration(k.String("TENANT_CACHE_TTL"), "1m"),

		ProcessorFixedFeeCents:    parseInt64(k.String("PROCESSOR_FIXED_FEE_CENTS"), 30, &errs),
		ProcessorPercentFee:       parseDecimal(k.String("PROCESSOR_PERCENT_FEE"), "0.029", &errs),
		PlatformFeeTiers:          strings.TrimSpace(k.String("PLATFORM_FEE_TIERS")),
		PlatformFeeDefaultPercent: parseDecimal(k.String("PLATFORM_FEE_DEFAULT_PERCENT"), "0", &errs),
		Currency:                  strings.ToLower(valueOrDefault(k.String("CURRENCY"), "usd")),
		PublicBaseURL:             strings.TrimRight(strings.TrimSpace(k.String("PUBLIC_BASE_URL")), "/"),
		GiftCardMinCents:          parseInt64(k.String("GIFT_CARD_MIN_CENTS"), 500, &errs),
		GiftCardMaxCents:          parseInt64(k.String("GIFT_CARD_MAX_CENTS"), 50000, &errs),

		PaymentProvider: strings.ToLower(valueOrDefault(k.String("PAYMENT_PROVIDER"), "sandbox")),
		StripeSecretKey: k.String("STRIPE_SECRET_KEY"),
		StripeAPIBase:   strings.TrimSpace(k.String("STRIPE_API_BASE")),
		StripeTimeout:   parseDuration(k.String("STRIPE_TIMEOUT"), "15s"),
		CheckoutUIMode:  strings.ToLower(valueOrDefault(k.String("CHECKOUT_UI_MODE"), "hosted")),
		AutomaticTax:    parseBool(k.String("AUTOMATIC_TAX")),

		RateLimitIP:             valueOrDefault(k.String("RATE_LIMIT_IP"), "120-M"),
		CheckoutRateLimitMax:    int(parseInt64(k.String("CHECKOUT_RATE_LIMIT_MAX"), 10, &errs)),
		CheckoutRateLimitWindow: parseDuration(k.String("CHECKOUT_RATE_LIMIT_WINDOW"), "1m"),
		IdempotencyTTL:          parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		AsynqQueue:    valueOrDefault(k.String("ASYNQ_QUEUE"), "notifications"),
		AsynqMaxRetry: int(parseInt64(k.String("ASYNQ_MAX_RETRY"), 8, &errs)),
		EmailEnabled:  k.String("EMAIL_ENABLED") == "" || parseBool(k.String("EMAIL_ENABLED")),

		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "studio"),
		MetricsBuckets:   k.String("OBS_METRICS_BUCKETS"),
		TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "none"),
		TracingEndpoint:  strings.TrimSpace(k.String("OBS_TRACING_ENDPOINT")),
		TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 0.1, &errs),
		ServiceName:      valueOrDefault(k.String("OBS_SERVICE_NAME"), "studio-checkout"),
	}

	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if cfg.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if cfg.PaymentProvider != "stripe" && cfg.PaymentProvider != "sandbox" {
		errs = append(errs, fmt.Errorf("PAYMENT_PROVIDER %q must be stripe or sandbox", cfg.PaymentProvider))
	}
	if cfg.PaymentProvider == "stripe" && strings.TrimSpace(cfg.StripeSecretKey) == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required when PAYMENT_PROVIDER=stripe"))
	}
	if cfg.CheckoutUIMode != "hosted" && cfg.CheckoutUIMode != "embedded" {
		errs = append(errs, fmt.Errorf("CHECKOUT_UI_MODE %q must be hosted or embedded", cfg.CheckoutUIMode))
	}
	if cfg.GiftCardMaxCents > 0 && cfg.GiftCardMinCents > cfg.GiftCardMaxCents {
		errs = append(errs, errors.New("GIFT_CARD_MIN_CENTS exceeds GIFT_CARD_MAX_CENTS"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt64(value string, fallback int64, errs *[]error) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		*errs = append(*errs, fmt.Errorf("invalid non-negative integer %q", value))
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64, errs *[]error) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid number %q", value))
		return fallback
	}
	return f
}

func parseDecimal(value, fallback string, errs *[]error) decimal.Decimal {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	d, err := decimal.NewFromString(value)
	if err != nil || d.IsNegative() {
		*errs = append(*errs, fmt.Errorf("invalid non-negative decimal %q", value))
		return decimal.RequireFromString(fallback)
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
