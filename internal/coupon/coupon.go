package coupon

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/studio-checkout/internal/money"
)

var (
	// ErrNotFound is returned by stores when no coupon matches the code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when the coupon has been switched off.
	ErrInactive = errors.New("coupon not active")
	// ErrExpired is returned when the coupon expiry has passed.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached indicates the coupon has exhausted its usage quota.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

// Kind is the discount shape of a coupon.
type Kind string

const (
	KindPercent Kind = "percent"
	KindFlat    Kind = "flat"
)

// Coupon is a tenant scoped promotional code. Only one coupon applies per order.
type Coupon struct {
	ID         string
	TenantID   string
	Code       string
	Kind       Kind
	Value      int64
	UsageLimit *int32
	UsedCount  int32
	Active     bool
	ExpiresAt  *time.Time
}

// NormalizeCode trims and upper-cases a code so lookups are case-insensitive.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Usable reports why the coupon cannot be applied at now, or nil when it can.
func (c Coupon) Usable(now time.Time) error {
	if !c.Active {
		return ErrInactive
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return ErrExpired
	}
	if c.UsageLimit != nil && *c.UsageLimit >= 0 && c.UsedCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	return nil
}

// Discount returns the amount taken off base. The result is always within [0, base].
func (c Coupon) Discount(base money.Money) money.Money {
	if base <= 0 || c.Value <= 0 {
		return 0
	}
	var discount money.Money
	switch c.Kind {
	case KindPercent:
		discount = money.PercentOf(base, decimal.NewFromInt(c.Value))
	case KindFlat:
		discount = c.Value
	default:
		return 0
	}
	return money.Clamp(discount, 0, base)
}
