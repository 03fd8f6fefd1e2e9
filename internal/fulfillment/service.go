package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/studio-checkout/internal/money"
	"github.com/noah-isme/studio-checkout/internal/obs"
	"github.com/noah-isme/studio-checkout/internal/product"
)

// ErrInvalidOrder is returned when fulfillment arguments are incomplete.
var ErrInvalidOrder = errors.New("fulfillment: invalid order")

// Args identifies who bought and which promotions were used. It travels with the
// order ref through processor metadata so a webhook can rebuild it.
type Args struct {
	TenantID      string
	UserID        string
	Email         string
	CouponID      string
	GiftCardID    string
	CreditApplied money.Money
}

// OrderRecord is the row that makes a fulfillment idempotent.
type OrderRecord struct {
	TenantID      string
	Ref           string
	UserID        string
	Kind          product.Kind
	ProductID     string
	AmountPaid    money.Money
	CouponID      string
	GiftCardID    string
	CreditApplied money.Money
}

// CreditGrant adds class credits to a member.
type CreditGrant struct {
	TenantID  string
	UserID    string
	PackID    string
	OrderRef  string
	Credits   int
	ExpiresAt *time.Time
}

// Membership starts a plan for a member.
type Membership struct {
	TenantID string
	UserID   string
	PlanID   string
	OrderRef string
}

// IssueParams describes a new stored-value card.
type IssueParams struct {
	TenantID    string
	Code        string
	Amount      money.Money
	PurchaserID string
	Recipient   *product.Recipient
	OrderRef    string
}

// IssuedCard is a gift card created by a purchase.
type IssuedCard struct {
	ID      string
	Code    string
	Balance money.Money
}

// Tx is the set of writes one fulfillment performs atomically.
type Tx interface {
	// InsertOrder reports false when the ref was already recorded.
	InsertOrder(ctx context.Context, rec OrderRecord) (bool, error)
	GrantCredits(ctx context.Context, grant CreditGrant) error
	StartMembership(ctx context.Context, m Membership) error
	IssueGiftCard(ctx context.Context, p IssueParams) (IssuedCard, error)
	// IssuedCardByOrder returns the card issued for ref.
	IssuedCardByOrder(ctx context.Context, orderRef string) (IssuedCard, error)
	// RedeemGiftCard clamps to the current balance and returns what was taken.
	// A second call with the same ref returns the first result.
	RedeemGiftCard(ctx context.Context, tenantID, cardID, orderRef string, amount money.Money) (money.Money, error)
	IncrementCouponUsage(ctx context.Context, couponID string) error
}

// Store runs fn inside one transaction.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Service records completed purchases. Every method is idempotent by order ref.
type Service struct {
	Store   Store
	Logger  zerolog.Logger
	Now     func() time.Time
	NewCode func() string
}

// Order is a complete zero-amount or confirmed purchase.
type Order struct {
	Args
	Ref        string
	Product    product.Product
	AmountPaid money.Money
}

// Result reports what a fulfillment did.
type Result struct {
	Replayed   bool
	Redeemed   money.Money
	IssuedCard *IssuedCard
}

// Fulfill completes an order and redeems its gift card credit in a single transaction.
func (s *Service) Fulfill(ctx context.Context, order Order) (Result, error) {
	if err := s.ready(); err != nil {
		return Result{}, err
	}
	if order.Product == nil {
		return Result{}, fmt.Errorf("%w: product is required", ErrInvalidOrder)
	}
	kind := string(order.Product.Kind())
	var res Result
	err := s.Store.InTx(ctx, func(tx Tx) error {
		var err error
		res, err = s.fulfillTx(ctx, tx, order)
		if err != nil {
			return err
		}
		if res.Replayed || order.GiftCardID == "" || order.CreditApplied <= 0 {
			return nil
		}
		res.Redeemed, err = s.redeemTx(ctx, tx, order.TenantID, order.GiftCardID, order.Ref, order.CreditApplied)
		return err
	})
	s.observe(kind, err, res.Replayed)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// FulfillPackPurchase grants the pack's credits.
func (s *Service) FulfillPackPurchase(ctx context.Context, args Args, pack product.Pack, orderRef string, amountPaid money.Money) error {
	_, err := s.single(ctx, Order{Args: args, Ref: orderRef, Product: pack, AmountPaid: amountPaid})
	return err
}

// FulfillPlanPurchase starts the membership.
func (s *Service) FulfillPlanPurchase(ctx context.Context, args Args, plan product.Plan, orderRef string, amountPaid money.Money) error {
	_, err := s.single(ctx, Order{Args: args, Ref: orderRef, Product: plan, AmountPaid: amountPaid})
	return err
}

// FulfillGiftCardPurchase issues a new card for the purchased amount.
func (s *Service) FulfillGiftCardPurchase(ctx context.Context, args Args, purchase product.GiftCardPurchase, orderRef string, amount money.Money) (IssuedCard, error) {
	res, err := s.single(ctx, Order{Args: args, Ref: orderRef, Product: purchase, AmountPaid: amount})
	if err != nil {
		return IssuedCard{}, err
	}
	if res.IssuedCard == nil {
		return IssuedCard{}, nil
	}
	return *res.IssuedCard, nil
}

// RedeemGiftCard takes up to amount from the card. Over-redemption is clamped to the
// balance and is not an error.
func (s *Service) RedeemGiftCard(ctx context.Context, tenantID, cardID string, amount money.Money, orderRef string) (money.Money, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(cardID) == "" || strings.TrimSpace(orderRef) == "" {
		return 0, fmt.Errorf("%w: card id and order ref are required", ErrInvalidOrder)
	}
	var redeemed money.Money
	err := s.Store.InTx(ctx, func(tx Tx) error {
		var err error
		redeemed, err = s.redeemTx(ctx, tx, tenantID, cardID, orderRef, amount)
		return err
	})
	if err != nil {
		return 0, err
	}
	return redeemed, nil
}

func (s *Service) single(ctx context.Context, order Order) (Result, error) {
	if err := s.ready(); err != nil {
		return Result{}, err
	}
	if order.Product == nil {
		return Result{}, fmt.Errorf("%w: product is required", ErrInvalidOrder)
	}
	var res Result
	err := s.Store.InTx(ctx, func(tx Tx) error {
		var err error
		res, err = s.fulfillTx(ctx, tx, order)
		return err
	})
	s.observe(string(order.Product.Kind()), err, res.Replayed)
	return res, err
}

func (s *Service) fulfillTx(ctx context.Context, tx Tx, order Order) (Result, error) {
	if strings.TrimSpace(order.Ref) == "" || strings.TrimSpace(order.TenantID) == "" || strings.TrimSpace(order.UserID) == "" {
		return Result{}, fmt.Errorf("%w: tenant, user and order ref are required", ErrInvalidOrder)
	}
	if order.AmountPaid < 0 || order.CreditApplied < 0 {
		return Result{}, fmt.Errorf("%w: negative amount", ErrInvalidOrder)
	}
	rec := OrderRecord{
		TenantID:      order.TenantID,
		Ref:           order.Ref,
		UserID:        order.UserID,
		Kind:          order.Product.Kind(),
		AmountPaid:    order.AmountPaid,
		CouponID:      order.CouponID,
		GiftCardID:    order.GiftCardID,
		CreditApplied: order.CreditApplied,
	}
	switch p := order.Product.(type) {
	case product.Pack:
		rec.ProductID = p.ID
	case product.Plan:
		rec.ProductID = p.ID
	}
	inserted, err := tx.InsertOrder(ctx, rec)
	if err != nil {
		return Result{}, err
	}
	if !inserted {
		s.Logger.Info().Str("order_ref", order.Ref).Msg("fulfillment_replayed")
		res := Result{Replayed: true}
		if _, ok := order.Product.(product.GiftCardPurchase); ok {
			card, err := tx.IssuedCardByOrder(ctx, order.Ref)
			if err != nil {
				return Result{}, err
			}
			res.IssuedCard = &card
		}
		return res, nil
	}

	var res Result
	switch p := order.Product.(type) {
	case product.Pack:
		grant := CreditGrant{
			TenantID: order.TenantID,
			UserID:   order.UserID,
			PackID:   p.ID,
			OrderRef: order.Ref,
			Credits:  p.Credits,
		}
		if p.ExpiresIn > 0 {
			expires := s.now().AddDate(0, 0, p.ExpiresIn)
			grant.ExpiresAt = &expires
		}
		if err := tx.GrantCredits(ctx, grant); err != nil {
			return Result{}, err
		}
	case product.Plan:
		if err := tx.StartMembership(ctx, Membership{TenantID: order.TenantID, UserID: order.UserID, PlanID: p.ID, OrderRef: order.Ref}); err != nil {
			return Result{}, err
		}
	case product.GiftCardPurchase:
		card, err := tx.IssueGiftCard(ctx, IssueParams{
			TenantID:    order.TenantID,
			Code:        s.newCode(),
			Amount:      p.Amount,
			PurchaserID: order.UserID,
			Recipient:   p.Recipient,
			OrderRef:    order.Ref,
		})
		if err != nil {
			return Result{}, err
		}
		res.IssuedCard = &card
	default:
		return Result{}, fmt.Errorf("%w: unsupported product %T", ErrInvalidOrder, order.Product)
	}

	if order.CouponID != "" {
		if err := tx.IncrementCouponUsage(ctx, order.CouponID); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

func (s *Service) redeemTx(ctx context.Context, tx Tx, tenantID, cardID, orderRef string, amount money.Money) (money.Money, error) {
	if amount <= 0 {
		return 0, nil
	}
	redeemed, err := tx.RedeemGiftCard(ctx, tenantID, cardID, orderRef, amount)
	if err != nil {
		return 0, err
	}
	if redeemed < amount {
		s.Logger.Warn().
			Str("gift_card_id", cardID).
			Str("order_ref", orderRef).
			Int64("requested", amount).
			Int64("redeemed", redeemed).
			Msg("gift_card_over_redemption_clamped")
	}
	return redeemed, nil
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil {
		return errors.New("fulfillment service not configured")
	}
	return nil
}

func (s *Service) observe(kind string, err error, replayed bool) {
	if obs.FulfillmentTotal == nil {
		return
	}
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case replayed:
		result = "replayed"
	}
	obs.FulfillmentTotal.WithLabelValues(kind, result).Inc()
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newCode() string {
	if s != nil && s.NewCode != nil {
		return s.NewCode()
	}
	return NewGiftCardCode()
}

// NewGiftCardCode returns a random code of the form GC-XXXX-XXXX-XXXX-XXXX.
func NewGiftCardCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
	return "GC-" + raw[0:4] + "-" + raw[4:8] + "-" + raw[8:12] + "-" + raw[12:16]
}
