package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/studio-checkout/internal/cache"
	"github.com/noah-isme/studio-checkout/internal/checkout"
	"github.com/noah-isme/studio-checkout/internal/common"
	"github.com/noah-isme/studio-checkout/internal/config"
	"github.com/noah-isme/studio-checkout/internal/coupon"
	"github.com/noah-isme/studio-checkout/internal/db"
	"github.com/noah-isme/studio-checkout/internal/events"
	"github.com/noah-isme/studio-checkout/internal/fulfillment"
	"github.com/noah-isme/studio-checkout/internal/giftcard"
	"github.com/noah-isme/studio-checkout/internal/money"
	"github.com/noah-isme/studio-checkout/internal/notify"
	"github.com/noah-isme/studio-checkout/internal/payment"
	"github.com/noah-isme/studio-checkout/internal/pricing"
	"github.com/noah-isme/studio-checkout/internal/product"
	"github.com/noah-isme/studio-checkout/internal/tenant"
)

// Dependencies holds the connections shared by the api and worker processes.
type Dependencies struct {
	DB         *pgxpool.Pool
	Redis      *redis.Client
	TaskClient *asynq.Client
	Logger     zerolog.Logger
}

// Open connects Postgres and Redis and, when enabled, applies pending migrations.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, appName string) (*Dependencies, error) {
	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		logger.Info().Msg("migrations applied")
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, appName)
	if err != nil {
		return nil, err
	}

	redisClient, err := NewRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	taskOpt, err := RedisConnOpt(cfg.RedisURL)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}

	return &Dependencies{
		DB:         pool,
		Redis:      redisClient,
		TaskClient: asynq.NewClient(taskOpt),
		Logger:     logger,
	}, nil
}

// Close releases every connection, joining their errors.
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.TaskClient != nil {
		errs = append(errs, d.TaskClient.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.DB != nil {
		d.DB.Close()
	}
	return errors.Join(errs...)
}

// NewRedis opens an instrumented Redis client and pings it.
func NewRedis(ctx context.Context, url string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisConnOpt converts REDIS_URL into the asynq connection options.
func RedisConnOpt(url string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(url)
	if err != nil {
		return nil, fmt.Errorf("parse asynq redis uri: %w", err)
	}
	return opt, nil
}

// NewProcessor selects the payment processor named by PAYMENT_PROVIDER.
func NewProcessor(cfg *config.Config) (payment.Processor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.PaymentProvider)) {
	case "stripe":
		return payment.NewStripe(payment.StripeConfig{
			SecretKey: cfg.StripeSecretKey,
			APIBase:   cfg.StripeAPIBase,
			Timeout:   cfg.StripeTimeout,
		})
	case "sandbox", "":
		return payment.Sandbox{}, nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
	}
}

// Pricing converts the fee settings into the values the pricing calculator takes.
func Pricing(cfg *config.Config) (pricing.FeeSchedule, tenant.TierTable, error) {
	fees := pricing.FeeSchedule{
		FixedFee:   money.Money(cfg.ProcessorFixedFeeCents),
		PercentFee: cfg.ProcessorPercentFee,
	}
	if err := fees.Validate(); err != nil {
		return pricing.FeeSchedule{}, tenant.TierTable{}, err
	}
	tiers, err := tenant.ParseTierTable(cfg.PlatformFeeTiers, cfg.PlatformFeeDefaultPercent)
	if err != nil {
		return pricing.FeeSchedule{}, tenant.TierTable{}, err
	}
	return fees, tiers, nil
}

// Bus routes domain events onto the notification queue.
func (d *Dependencies) Bus(cfg *config.Config) *events.Bus {
	enqueuer := notify.Enqueuer{Queue: cfg.AsynqQueue, MaxRetry: cfg.AsynqMaxRetry}
	if d.TaskClient != nil {
		enqueuer.Client = d.TaskClient
	}
	return &events.Bus{Notifiers: []events.Notifier{enqueuer}}
}

// NewCheckoutService wires the Postgres stores, the processor and the event bus into a checkout.Service.
func NewCheckoutService(cfg *config.Config, deps *Dependencies, processor payment.Processor) (*checkout.Service, error) {
	if deps == nil || deps.DB == nil {
		return nil, errors.New("app: database not configured")
	}
	fees, tiers, err := Pricing(cfg)
	if err != nil {
		return nil, err
	}
	return &checkout.Service{
		Tenants: tenant.CachedDirectory{
			Next:   tenant.PGStore{DB: deps.DB},
			Cache:  &cache.JSON{Client: deps.Redis, TTL: cfg.TenantCacheTTL, Prefix: "tenant"},
			Logger: deps.Logger,
		},
		Catalog:   product.PGStore{DB: deps.DB},
		Coupons:   &coupon.Resolver{Store: coupon.PGStore{DB: deps.DB}},
		GiftCards: &giftcard.Reader{Store: giftcard.PGStore{DB: deps.DB}},
		Fulfillment: &fulfillment.Service{
			Store:  fulfillment.PGStore{Pool: deps.DB},
			Logger: deps.Logger.With().Str("component", "fulfillment").Logger(),
		},
		Processor: processor,
		Bus:       deps.Bus(cfg),
		Fees:      fees,
		Tiers:     tiers,
		Limits: product.AmountLimits{
			Min: money.Money(cfg.GiftCardMinCents),
			Max: money.Money(cfg.GiftCardMaxCents),
		},
		Currency:     cfg.Currency,
		BaseURL:      cfg.PublicBaseURL,
		UIMode:       cfg.CheckoutUIMode,
		AutomaticTax: cfg.AutomaticTax,
		Logger:       deps.Logger.With().Str("component", "checkout").Logger(),
	}, nil
}

// NewTaskHandler builds the worker side of the notification queue. Without a mail relay
// the emails are written to the log.
func NewTaskHandler(cfg *config.Config, logger zerolog.Logger) notify.TaskHandler {
	mailer := common.LogEmailSender{Logger: logger.With().Str("component", "mail").Logger()}
	return notify.TaskHandler{
		Notifiers: []events.Notifier{notify.EmailNotifier{Mail: mailer, Enabled: cfg.EmailEnabled}},
		Logger:    logger,
	}
}
