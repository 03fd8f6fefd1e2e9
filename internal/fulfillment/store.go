package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/studio-checkout/internal/giftcard"
	"github.com/noah-isme/studio-checkout/internal/money"
)

// PGStore runs fulfillments against postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

// InTx implements Store.
func (s PGStore) InTx(ctx context.Context, fn func(Tx) error) error {
	if s.Pool == nil {
		return errors.New("fulfillment store not configured")
	}
	return pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		return fn(pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

const insertOrder = `
INSERT INTO orders (id, tenant_id, order_ref, user_id, kind, product_id, amount_paid, coupon_id, gift_card_id, credit_applied)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6::uuid, $7, $8::uuid, $9::uuid, $10)
ON CONFLICT (order_ref) DO NOTHING`

func (t pgTx) InsertOrder(ctx context.Context, rec OrderRecord) (bool, error) {
	tag, err := t.tx.Exec(ctx, insertOrder,
		uuid.NewString(), rec.TenantID, rec.Ref, rec.UserID, string(rec.Kind),
		nullable(rec.ProductID), rec.AmountPaid, nullable(rec.CouponID), nullable(rec.GiftCardID), rec.CreditApplied)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const insertCredits = `
INSERT INTO credit_ledger (id, tenant_id, user_id, pack_id, order_ref, credits, expires_at)
VALUES ($1::uuid, $2::uuid, $3, $4::uuid, $5, $6, $7)`

func (t pgTx) GrantCredits(ctx context.Context, g CreditGrant) error {
	if _, err := t.tx.Exec(ctx, insertCredits, uuid.NewString(), g.TenantID, g.UserID, g.PackID, g.OrderRef, g.Credits, g.ExpiresAt); err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	return nil
}

const insertMembership = `
INSERT INTO memberships (id, tenant_id, user_id, plan_id, order_ref)
VALUES ($1::uuid, $2::uuid, $3, $4::uuid, $5)`

func (t pgTx) StartMembership(ctx context.Context, m Membership) error {
	if _, err := t.tx.Exec(ctx, insertMembership, uuid.NewString(), m.TenantID, m.UserID, m.PlanID, m.OrderRef); err != nil {
		return fmt.Errorf("start membership: %w", err)
	}
	return nil
}

const insertGiftCard = `
INSERT INTO gift_cards (id, tenant_id, code, initial_balance, current_balance, status, purchaser_id, recipient_name, recipient_email, message, order_ref)
VALUES ($1::uuid, $2::uuid, $3, $4, $4, 'active', $5, $6, $7, $8, $9)`

func (t pgTx) IssueGiftCard(ctx context.Context, p IssueParams) (IssuedCard, error) {
	id := uuid.NewString()
	var name, email, message any
	if p.Recipient != nil {
		name, email, message = nullable(p.Recipient.Name), nullable(p.Recipient.Email), nullable(p.Recipient.Message)
	}
	if _, err := t.tx.Exec(ctx, insertGiftCard, id, p.TenantID, p.Code, p.Amount, nullable(p.PurchaserID), name, email, message, p.OrderRef); err != nil {
		return IssuedCard{}, fmt.Errorf("issue gift card: %w", err)
	}
	return IssuedCard{ID: id, Code: p.Code, Balance: p.Amount}, nil
}

const selectIssuedCard = `SELECT id::text, code, current_balance FROM gift_cards WHERE order_ref = $1`

func (t pgTx) IssuedCardByOrder(ctx context.Context, orderRef string) (IssuedCard, error) {
	var c IssuedCard
	if err := t.tx.QueryRow(ctx, selectIssuedCard, orderRef).Scan(&c.ID, &c.Code, &c.Balance); err != nil {
		return IssuedCard{}, fmt.Errorf("get issued gift card: %w", err)
	}
	return c, nil
}

const lockGiftCard = `
SELECT current_balance, status FROM gift_cards
WHERE id = $1::uuid AND tenant_id = $2::uuid
FOR UPDATE`

const selectRedemption = `
SELECT amount FROM gift_card_redemptions WHERE gift_card_id = $1::uuid AND order_ref = $2`

const insertRedemption = `
INSERT INTO gift_card_redemptions (id, gift_card_id, order_ref, amount)
VALUES ($1::uuid, $2::uuid, $3, $4)`

const debitGiftCard = `
UPDATE gift_cards
SET current_balance = current_balance - $2,
    status = CASE WHEN current_balance - $2 = 0 THEN 'redeemed' ELSE status END
WHERE id = $1::uuid`

func (t pgTx) RedeemGiftCard(ctx context.Context, tenantID, cardID, orderRef string, amount money.Money) (money.Money, error) {
	var (
		balance money.Money
		status  string
	)
	if err := t.tx.QueryRow(ctx, lockGiftCard, cardID, tenantID).Scan(&balance, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, giftcard.ErrNotFound
		}
		return 0, fmt.Errorf("lock gift card: %w", err)
	}

	var previous money.Money
	err := t.tx.QueryRow(ctx, selectRedemption, cardID, orderRef).Scan(&previous)
	if err == nil {
		return previous, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("get redemption: %w", err)
	}

	take := money.Min(amount, balance)
	if giftcard.Status(status) != giftcard.StatusActive || take < 0 {
		take = 0
	}
	if _, err := t.tx.Exec(ctx, insertRedemption, uuid.NewString(), cardID, orderRef, take); err != nil {
		return 0, fmt.Errorf("insert redemption: %w", err)
	}
	if take > 0 {
		if _, err := t.tx.Exec(ctx, debitGiftCard, cardID, take); err != nil {
			return 0, fmt.Errorf("debit gift card: %w", err)
		}
	}
	return take, nil
}

const bumpCouponUsage = `UPDATE coupons SET used_count = used_count + 1 WHERE id = $1::uuid`

func (t pgTx) IncrementCouponUsage(ctx context.Context, couponID string) error {
	if _, err := t.tx.Exec(ctx, bumpCouponUsage, couponID); err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	return nil
}
