package coupon

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/studio-checkout/internal/db"
)

// PGStore reads coupons from postgres.
type PGStore struct {
	DB db.DBTX
}

const selectByCode = `
SELECT id::text, tenant_id::text, code, kind, value, usage_limit, used_count, active, expires_at
FROM coupons
WHERE tenant_id = $1::uuid AND code = $2`

// GetByCode returns the coupon with the given upper-cased code.
func (s PGStore) GetByCode(ctx context.Context, tenantID, code string) (Coupon, error) {
	var (
		c    Coupon
		kind string
	)
	err := s.DB.QueryRow(ctx, selectByCode, tenantID, code).
		Scan(&c.ID, &c.TenantID, &c.Code, &kind, &c.Value, &c.UsageLimit, &c.UsedCount, &c.Active, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("get coupon: %w", err)
	}
	c.Kind = Kind(kind)
	return c, nil
}
