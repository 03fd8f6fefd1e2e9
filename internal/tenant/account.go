package tenant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/studio-checkout/internal/db"
)

// ErrNotFound is returned when no tenant matches the identifier.
var ErrNotFound = errors.New("tenant not found")

// Account is the merchant side of a tenant.
type Account struct {
	ID                 string
	Slug               string
	Name               string
	Tier               string
	ConnectedAccountID string
	Currency           string
}

// PaymentsEnabled reports whether the tenant has a connected merchant account to charge through.
func (a Account) PaymentsEnabled() bool {
	return strings.TrimSpace(a.ConnectedAccountID) != ""
}

// Directory loads tenant accounts.
type Directory interface {
	Get(ctx context.Context, idOrSlug string) (Account, error)
}

// PGStore reads tenants from postgres.
type PGStore struct {
	DB db.DBTX
}

const selectTenantByID = `
SELECT id::text, slug, name, tier, COALESCE(connected_account_id, ''), currency
FROM tenants WHERE id = $1::uuid`

const selectTenantBySlug = `
SELECT id::text, slug, name, tier, COALESCE(connected_account_id, ''), currency
FROM tenants WHERE slug = $1`

// Get accepts either the tenant UUID or its slug, matching what the resolver middleware puts on the context.
func (s PGStore) Get(ctx context.Context, idOrSlug string) (Account, error) {
	key := Normalize(idOrSlug)
	if key == "" {
		return Account{}, ErrNotFound
	}
	query := selectTenantBySlug
	if _, err := uuid.Parse(key); err == nil {
		query = selectTenantByID
	}
	var a Account
	err := s.DB.QueryRow(ctx, query, key).Scan(&a.ID, &a.Slug, &a.Name, &a.Tier, &a.ConnectedAccountID, &a.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("get tenant: %w", err)
	}
	return a, nil
}

// TierTable maps subscription tiers to the platform revenue-share percent (percentage points).
type TierTable struct {
	Rates   map[string]decimal.Decimal
	Default decimal.Decimal
}

// PlatformFeePercent looks up the revenue share for tier. Unknown tiers use Default.
func (t TierTable) PlatformFeePercent(tier string) decimal.Decimal {
	if rate, ok := t.Rates[strings.ToLower(strings.TrimSpace(tier))]; ok {
		return rate
	}
	return t.Default
}

// ParseTierTable parses "free:5,starter:3,pro:1.5" into a table.
func ParseTierTable(entries string, fallback decimal.Decimal) (TierTable, error) {
	table := TierTable{Rates: map[string]decimal.Decimal{}, Default: fallback}
	for _, part := range strings.Split(entries, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, raw, ok := strings.Cut(part, ":")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" {
			return TierTable{}, fmt.Errorf("tier entry %q must be name:percent", part)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return TierTable{}, fmt.Errorf("tier %s: %w", name, err)
		}
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
			return TierTable{}, fmt.Errorf("tier %s: percent %s outside [0,100]", name, strconv.Quote(raw))
		}
		table.Rates[name] = rate
	}
	return table, nil
}
