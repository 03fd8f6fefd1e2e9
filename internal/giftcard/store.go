package giftcard

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/studio-checkout/internal/db"
)

// PGStore reads gift cards from postgres.
type PGStore struct {
	DB db.DBTX
}

const selectByCode = `
SELECT id::text, tenant_id::text, code, current_balance, status
FROM gift_cards
WHERE tenant_id = $1::uuid AND code = $2`

// GetByCode returns the card with the given code.
func (s PGStore) GetByCode(ctx context.Context, tenantID, code string) (Card, error) {
	var (
		c      Card
		status string
	)
	err := s.DB.QueryRow(ctx, selectByCode, tenantID, code).
		Scan(&c.ID, &c.TenantID, &c.Code, &c.CurrentBalance, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Card{}, ErrNotFound
		}
		return Card{}, fmt.Errorf("get gift card: %w", err)
	}
	c.Status = Status(status)
	return c, nil
}
