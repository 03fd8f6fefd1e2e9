package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/studio-checkout/internal/auth"
	"github.com/noah-isme/studio-checkout/internal/config"
	"github.com/noah-isme/studio-checkout/internal/db"
	"github.com/noah-isme/studio-checkout/internal/obs"
)

// Seeds a demo studio with the catalogue used in local checkout walkthroughs and prints a member token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL, "studio-checkout-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	tenantID, err := seedTenant(ctx, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed tenant")
	}
	logger.Info().Str("tenant_id", tenantID).Msg("tenant ready")

	seedCatalog(ctx, pool, tenantID, logger)
	seedPromotions(ctx, pool, tenantID, logger)

	verifier, err := auth.NewVerifier(auth.VerifierConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise verifier")
	}
	token, err := verifier.Issue(auth.Identity{UserID: "member-demo", Email: "member@studio.test"}, 24*time.Hour)
	if err != nil {
		logger.Fatal().Err(err).Msg("issue token")
	}
	fmt.Fprintf(os.Stdout, "X-Tenant-ID: %s\nAuthorization: Bearer %s\n", tenantID, token)
}

func seedTenant(ctx context.Context, pool *pgxpool.Pool) (string, error) {
	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO tenants (id, slug, name, tier, connected_account_id, currency)
		VALUES ($1, 'demo', 'Demo Studio', 'pro', 'acct_demo', 'usd')
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, uuid.New()).Scan(&id)
	return id, err
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, tenantID string, logger zerolog.Logger) {
	packs := []struct {
		Name    string
		Credits int
		Price   int64
		Days    int
	}{
		{"Drop-in class", 1, 2500, 30},
		{"10 class pack", 10, 5000, 180},
		{"25 class pack", 25, 10000, 365},
	}
	for _, p := range packs {
		_, err := pool.Exec(ctx, `
			INSERT INTO packs (id, tenant_id, name, credits, base_price, expires_in_days)
			SELECT $1, $2, $3, $4, $5, $6
			WHERE NOT EXISTS (SELECT 1 FROM packs WHERE tenant_id = $2 AND name = $3)`,
			uuid.New(), tenantID, p.Name, p.Credits, p.Price, p.Days)
		if err != nil {
			logger.Error().Err(err).Str("pack", p.Name).Msg("seed pack")
		}
	}

	plans := []struct {
		Name     string
		Price    int64
		Interval string
	}{
		{"Unlimited monthly", 2000, "month"},
		{"Annual membership", 20000, "year"},
		{"Summer pass", 8000, "one_time"},
	}
	for _, p := range plans {
		_, err := pool.Exec(ctx, `
			INSERT INTO plans (id, tenant_id, name, base_price, interval)
			SELECT $1, $2, $3, $4, $5
			WHERE NOT EXISTS (SELECT 1 FROM plans WHERE tenant_id = $2 AND name = $3)`,
			uuid.New(), tenantID, p.Name, p.Price, p.Interval)
		if err != nil {
			logger.Error().Err(err).Str("plan", p.Name).Msg("seed plan")
		}
	}
}

func seedPromotions(ctx context.Context, pool *pgxpool.Pool, tenantID string, logger zerolog.Logger) {
	coupons := []struct {
		Code  string
		Kind  string
		Value int64
	}{
		{"WELCOME", "flat", 5000},
		{"SAVE10", "percent", 10},
	}
	for _, c := range coupons {
		_, err := pool.Exec(ctx, `
			INSERT INTO coupons (id, tenant_id, code, kind, value)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (tenant_id, code) DO NOTHING`,
			uuid.New(), tenantID, c.Code, c.Kind, c.Value)
		if err != nil {
			logger.Error().Err(err).Str("coupon", c.Code).Msg("seed coupon")
		}
	}

	cards := []struct {
		Code    string
		Balance int64
	}{
		{"GC-DEMO-FULL", 9000},
		{"GC-DEMO-PART", 1500},
	}
	for _, c := range cards {
		_, err := pool.Exec(ctx, `
			INSERT INTO gift_cards (id, tenant_id, code, initial_balance, current_balance)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (tenant_id, code) DO NOTHING`,
			uuid.New(), tenantID, c.Code, c.Balance)
		if err != nil {
			logger.Error().Err(err).Str("gift_card", c.Code).Msg("seed gift card")
		}
	}
}
