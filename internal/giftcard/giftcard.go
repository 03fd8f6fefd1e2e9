package giftcard

import (
	"context"
	"errors"

	"github.com/noah-isme/studio-checkout/internal/coupon"
	"github.com/noah-isme/studio-checkout/internal/money"
)

// ErrNotFound is returned by stores when no card matches the code.
var ErrNotFound = errors.New("gift card not found")

// Status is the lifecycle state of a stored-value card.
type Status string

const (
	StatusActive   Status = "active"
	StatusRedeemed Status = "redeemed"
	StatusExpired  Status = "expired"
)

// Card is a stored-value gift card. CurrentBalance is never negative.
type Card struct {
	ID             string
	TenantID       string
	Code           string
	CurrentBalance money.Money
	Status         Status
}

// Spendable returns the balance that may be applied to an order.
func (c Card) Spendable() money.Money {
	if c.Status != StatusActive || c.CurrentBalance <= 0 {
		return 0
	}
	return c.CurrentBalance
}

// Credit is the stored value a card contributes to one order. Card is nil when nothing applies.
type Credit struct {
	Card   *Card
	Amount money.Money
}

// Store looks up cards by their normalized code.
type Store interface {
	GetByCode(ctx context.Context, tenantID, code string) (Card, error)
}

// Reader reads spendable balances. It never changes a balance; redemption happens at fulfillment.
type Reader struct {
	Store Store
}

// Credit returns min(balance, remaining) for the card named by raw.
// Unknown or inactive cards yield a zero credit, store failures are returned.
func (r *Reader) Credit(ctx context.Context, tenantID, raw string, remaining money.Money) (Credit, error) {
	code := coupon.NormalizeCode(raw)
	if code == "" || remaining <= 0 {
		return Credit{}, nil
	}
	if r == nil || r.Store == nil {
		return Credit{}, errors.New("gift card reader not configured")
	}
	card, err := r.Store.GetByCode(ctx, tenantID, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Credit{}, nil
		}
		return Credit{}, err
	}
	amount := money.Min(card.Spendable(), remaining)
	if amount <= 0 {
		return Credit{}, nil
	}
	return Credit{Card: &card, Amount: amount}, nil
}
