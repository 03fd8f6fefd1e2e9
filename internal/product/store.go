package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/studio-checkout/internal/db"
)

// Catalog loads purchasable products for a tenant.
type Catalog interface {
	Pack(ctx context.Context, tenantID, id string) (Pack, error)
	Plan(ctx context.Context, tenantID, id string) (Plan, error)
}

// PGStore reads packs and plans from postgres.
type PGStore struct {
	DB db.DBTX
}

const selectPack = `
SELECT id::text, tenant_id::text, name, credits, base_price, expires_in_days, active
FROM packs
WHERE tenant_id = $1::uuid AND id = $2::uuid`

// Pack returns the pack or ErrNotFound.
func (s PGStore) Pack(ctx context.Context, tenantID, id string) (Pack, error) {
	var p Pack
	err := s.DB.QueryRow(ctx, selectPack, tenantID, id).
		Scan(&p.ID, &p.TenantID, &p.Name, &p.Credits, &p.Price, &p.ExpiresIn, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pack{}, ErrNotFound
		}
		return Pack{}, fmt.Errorf("get pack: %w", err)
	}
	return p, nil
}

const selectPlan = `
SELECT id::text, tenant_id::text, name, base_price, interval, interval_count, active
FROM plans
WHERE tenant_id = $1::uuid AND id = $2::uuid`

// Plan returns the plan or ErrNotFound.
func (s PGStore) Plan(ctx context.Context, tenantID, id string) (Plan, error) {
	var (
		p        Plan
		interval string
	)
	err := s.DB.QueryRow(ctx, selectPlan, tenantID, id).
		Scan(&p.ID, &p.TenantID, &p.Name, &p.Price, &interval, &p.IntervalCount, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plan{}, ErrNotFound
		}
		return Plan{}, fmt.Errorf("get plan: %w", err)
	}
	p.Interval = Interval(interval)
	return p, nil
}

// Load turns a validated selection into a concrete product. Inactive packs and plans are reported as ErrNotFound.
func Load(ctx context.Context, catalog Catalog, tenantID string, sel Selection, recipient *Recipient) (Product, error) {
	switch sel.Kind {
	case KindPack:
		if catalog == nil {
			return nil, errors.New("product catalog not configured")
		}
		p, err := catalog.Pack(ctx, tenantID, sel.ID)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, ErrNotFound
		}
		return p, nil
	case KindPlan:
		if catalog == nil {
			return nil, errors.New("product catalog not configured")
		}
		p, err := catalog.Plan(ctx, tenantID, sel.ID)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, ErrNotFound
		}
		if !p.Interval.Valid() {
			return nil, fmt.Errorf("plan %s has unknown interval %q", p.ID, p.Interval)
		}
		return p, nil
	case KindGiftCard:
		return GiftCardPurchase{Amount: sel.Amount, Recipient: recipient}, nil
	default:
		return nil, ErrNoSelection
	}
}
