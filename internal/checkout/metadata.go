package checkout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/studio-checkout/internal/fulfillment"
	"github.com/noah-isme/studio-checkout/internal/money"
	"github.com/noah-isme/studio-checkout/internal/product"
)

// Order reference prefixes. Free orders never reach a processor.
const (
	FreeOrderPrefix      = "free"
	ProcessorOrderPrefix = "ord"
)

// ErrInvalidMetadata is returned when a processor metadata bag cannot be decoded.
var ErrInvalidMetadata = errors.New("checkout: invalid session metadata")

// NewOrderRef returns a globally unique, time-ordered order reference.
func NewOrderRef(prefix string) string {
	return prefix + "_" + ulid.Make().String()
}

// Metadata is everything the confirmation webhook needs to fulfil an order without re-pricing it.
type Metadata struct {
	OrderRef             string
	TenantID             string
	UserID               string
	Email                string
	ProductKind          product.Kind
	ProductID            string
	CouponID             string
	GiftCardID           string
	CreditApplied        money.Money
	AmountToPay          money.Money
	ProcessorFee         money.Money
	GrossAmount          money.Money
	ApplicationFeeAmount money.Money
	// ApplicationFeePercent is the platform share of a subscription, in percentage points.
	ApplicationFeePercent decimal.Decimal
	GiftCardAmount        money.Money
	Recipient             *product.Recipient
}

const (
	keyOrderRef       = "order_ref"
	keyTenantID       = "tenant_id"
	keyUserID         = "user_id"
	keyEmail          = "email"
	keyProductKind    = "product_kind"
	keyProductID      = "product_id"
	keyCouponID       = "coupon_id"
	keyGiftCardID     = "gift_card_id"
	keyCreditApplied  = "credit_applied"
	keyAmountToPay    = "amount_to_pay"
	keyProcessorFee   = "processor_fee"
	keyGrossAmount    = "total_charge"
	keyApplicationFee = "application_fee_amount"
	keyApplicationPct = "application_fee_percent"
	keyGiftCardAmount = "gift_card_amount"
	keyRecipientName  = "recipient_name"
	keyRecipientEmail = "recipient_email"
	keyRecipientMsg   = "recipient_message"
)

// Encode flattens m into processor metadata. Empty values are omitted.
func (m Metadata) Encode() map[string]string {
	out := map[string]string{}
	put := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	putAmount := func(k string, v money.Money) {
		if v != 0 {
			out[k] = strconv.FormatInt(v, 10)
		}
	}
	put(keyOrderRef, m.OrderRef)
	put(keyTenantID, m.TenantID)
	put(keyUserID, m.UserID)
	put(keyEmail, m.Email)
	put(keyProductKind, string(m.ProductKind))
	put(keyProductID, m.ProductID)
	put(keyCouponID, m.CouponID)
	put(keyGiftCardID, m.GiftCardID)
	putAmount(keyCreditApplied, m.CreditApplied)
	putAmount(keyAmountToPay, m.AmountToPay)
	putAmount(keyProcessorFee, m.ProcessorFee)
	putAmount(keyGrossAmount, m.GrossAmount)
	putAmount(keyApplicationFee, m.ApplicationFeeAmount)
	if !m.ApplicationFeePercent.IsZero() {
		out[keyApplicationPct] = m.ApplicationFeePercent.String()
	}
	putAmount(keyGiftCardAmount, m.GiftCardAmount)
	if m.Recipient != nil {
		put(keyRecipientName, m.Recipient.Name)
		put(keyRecipientEmail, m.Recipient.Email)
		put(keyRecipientMsg, m.Recipient.Message)
	}
	return out
}

// DecodeMetadata rebuilds Metadata from a processor metadata bag.
func DecodeMetadata(in map[string]string) (Metadata, error) {
	m := Metadata{
		OrderRef:    in[keyOrderRef],
		TenantID:    in[keyTenantID],
		UserID:      in[keyUserID],
		Email:       in[keyEmail],
		ProductKind: product.Kind(in[keyProductKind]),
		ProductID:   in[keyProductID],
		CouponID:    in[keyCouponID],
		GiftCardID:  in[keyGiftCardID],
	}
	if m.OrderRef == "" || m.TenantID == "" {
		return Metadata{}, fmt.Errorf("%w: order_ref and tenant_id are required", ErrInvalidMetadata)
	}
	amounts := []struct {
		key string
		dst *money.Money
	}{
		{keyCreditApplied, &m.CreditApplied},
		{keyAmountToPay, &m.AmountToPay},
		{keyProcessorFee, &m.ProcessorFee},
		{keyGrossAmount, &m.GrossAmount},
		{keyApplicationFee, &m.ApplicationFeeAmount},
		{keyGiftCardAmount, &m.GiftCardAmount},
	}
	for _, a := range amounts {
		raw, ok := in[a.key]
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return Metadata{}, fmt.Errorf("%w: %s=%q", ErrInvalidMetadata, a.key, raw)
		}
		*a.dst = v
	}
	if raw, ok := in[keyApplicationPct]; ok {
		pct, err := decimal.NewFromString(raw)
		if err != nil || pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return Metadata{}, fmt.Errorf("%w: %s=%q", ErrInvalidMetadata, keyApplicationPct, raw)
		}
		m.ApplicationFeePercent = pct
	}
	switch m.ProductKind {
	case product.KindPack, product.KindPlan:
		if m.ProductID == "" {
			return Metadata{}, fmt.Errorf("%w: product_id is required for %s", ErrInvalidMetadata, m.ProductKind)
		}
	case product.KindGiftCard:
		if m.GiftCardAmount <= 0 {
			return Metadata{}, fmt.Errorf("%w: gift_card_amount is required", ErrInvalidMetadata)
		}
	default:
		return Metadata{}, fmt.Errorf("%w: unknown product kind %q", ErrInvalidMetadata, m.ProductKind)
	}
	if name, email := in[keyRecipientName], in[keyRecipientEmail]; name != "" || email != "" {
		m.Recipient = &product.Recipient{Name: name, Email: email, Message: in[keyRecipientMsg]}
	}
	return m, nil
}

// Args returns the fulfillment arguments carried by m.
func (m Metadata) Args() fulfillment.Args {
	return fulfillment.Args{
		TenantID:      m.TenantID,
		UserID:        m.UserID,
		Email:         m.Email,
		CouponID:      m.CouponID,
		GiftCardID:    m.GiftCardID,
		CreditApplied: m.CreditApplied,
	}
}

// Selection returns the product selection carried by m.
func (m Metadata) Selection() product.Selection {
	return product.Selection{Kind: m.ProductKind, ID: m.ProductID, Amount: m.GiftCardAmount}
}
