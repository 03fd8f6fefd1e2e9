package coupon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDiscountPercent(t *testing.T) {
	c := Coupon{Kind: KindPercent, Value: 10}
	if got := c.Discount(10_000); got != 1000 {
		t.Fatalf("expected 1000 discount, got %d", got)
	}
	// 15% of 1250 = 187.5 rounds half up
	c.Value = 15
	if got := c.Discount(1250); got != 188 {
		t.Fatalf("expected 188 discount, got %d", got)
	}
	c.Value = 150
	if got := c.Discount(4000); got != 4000 {
		t.Fatalf("percent above 100 must clamp to base, got %d", got)
	}
}

func TestDiscountFlat(t *testing.T) {
	c := Coupon{Kind: KindFlat, Value: 5000}
	require.Equal(t, int64(5000), c.Discount(5000))
	require.Equal(t, int64(3000), c.Discount(3000))
	require.Equal(t, int64(0), c.Discount(0))
	require.Equal(t, int64(0), Coupon{Kind: "bogus", Value: 5}.Discount(100))
}

func TestDiscountNeverExceedsBase(t *testing.T) {
	for _, c := range []Coupon{
		{Kind: KindPercent, Value: 1},
		{Kind: KindPercent, Value: 33},
		{Kind: KindPercent, Value: 100},
		{Kind: KindFlat, Value: 1},
		{Kind: KindFlat, Value: 999_999},
	} {
		for base := int64(0); base <= 2000; base += 7 {
			d := c.Discount(base)
			if d < 0 || d > base {
				t.Fatalf("%+v: discount %d outside [0,%d]", c, d, base)
			}
		}
	}
}

func TestUsable(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	limit := int32(2)

	require.NoError(t, Coupon{Active: true}.Usable(now))
	require.NoError(t, Coupon{Active: true, ExpiresAt: &future, UsageLimit: &limit, UsedCount: 1}.Usable(now))
	require.ErrorIs(t, Coupon{Active: false}.Usable(now), ErrInactive)
	require.ErrorIs(t, Coupon{Active: true, ExpiresAt: &past}.Usable(now), ErrExpired)
	require.ErrorIs(t, Coupon{Active: true, UsageLimit: &limit, UsedCount: 2}.Usable(now), ErrUsageLimitReached)
}

type memStore struct {
	coupons map[string]Coupon
	err     error
	lookups []string
}

func (m *memStore) GetByCode(_ context.Context, tenantID, code string) (Coupon, error) {
	m.lookups = append(m.lookups, code)
	if m.err != nil {
		return Coupon{}, m.err
	}
	c, ok := m.coupons[tenantID+"/"+code]
	if !ok {
		return Coupon{}, ErrNotFound
	}
	return c, nil
}

func TestResolverCaseInsensitive(t *testing.T) {
	store := &memStore{coupons: map[string]Coupon{
		"t1/SPRING10": {ID: "c1", Code: "SPRING10", Kind: KindPercent, Value: 10, Active: true},
	}}
	r := &Resolver{Store: store}

	c, err := r.Resolve(context.Background(), "t1", "  spring10 ")
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, "c1", c.ID)
	require.Equal(t, []string{"SPRING10"}, store.lookups)
}

func TestResolverSilentFallback(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)
	store := &memStore{coupons: map[string]Coupon{
		"t1/OFF":  {ID: "off", Code: "OFF", Kind: KindFlat, Value: 100, Active: false},
		"t1/OLD":  {ID: "old", Code: "OLD", Kind: KindFlat, Value: 100, Active: true, ExpiresAt: &expired},
		"t2/OTHR": {ID: "other", Code: "OTHR", Kind: KindFlat, Value: 100, Active: true},
	}}
	r := &Resolver{Store: store, Now: func() time.Time { return now }}

	for _, code := range []string{"", "   ", "missing", "off", "old", "othr"} {
		c, err := r.Resolve(context.Background(), "t1", code)
		require.NoError(t, err, code)
		require.Nil(t, c, code)
	}
}

func TestResolverPropagatesStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	r := &Resolver{Store: &memStore{err: boom}}
	_, err := r.Resolve(context.Background(), "t1", "ANY")
	require.ErrorIs(t, err, boom)
}
