package coupon

import (
	"context"
	"errors"
	"time"
)

// Store looks up coupons by their normalized code.
type Store interface {
	GetByCode(ctx context.Context, tenantID, code string) (Coupon, error)
}

// Resolver evaluates a raw promo code for a tenant.
//
// Unknown, inactive, expired and exhausted codes resolve to no coupon rather than an
// error, so a typo never blocks checkout. Store failures are still returned.
type Resolver struct {
	Store Store
	Now   func() time.Time
}

// Resolve returns the usable coupon for raw, or nil when there is none.
func (r *Resolver) Resolve(ctx context.Context, tenantID, raw string) (*Coupon, error) {
	code := NormalizeCode(raw)
	if code == "" {
		return nil, nil
	}
	if r == nil || r.Store == nil {
		return nil, errors.New("coupon resolver not configured")
	}
	c, err := r.Store.GetByCode(ctx, tenantID, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if c.Usable(r.now()) != nil {
		return nil, nil
	}
	return &c, nil
}

func (r *Resolver) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
