package tenant

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/studio-checkout/internal/cache"
)

// CachedDirectory is a read-through cache in front of another Directory. Cache failures fall
// through to the source, and misses for unknown tenants are not cached.
type CachedDirectory struct {
	Next   Directory
	Cache  *cache.JSON
	Logger zerolog.Logger
}

// Get implements Directory.
func (c CachedDirectory) Get(ctx context.Context, idOrSlug string) (Account, error) {
	key := "account:" + strings.ToLower(strings.TrimSpace(idOrSlug))
	var account Account
	found, err := c.Cache.Get(ctx, key, &account)
	if err != nil {
		c.Logger.Warn().Err(err).Str("key", key).Msg("tenant_cache_read_failed")
	}
	if found {
		return account, nil
	}

	account, err = c.Next.Get(ctx, idOrSlug)
	if err != nil {
		return Account{}, err
	}
	if err := c.Cache.Set(ctx, key, account); err != nil {
		c.Logger.Warn().Err(err).Str("key", key).Msg("tenant_cache_write_failed")
	}
	return account, nil
}
