package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/studio-checkout/internal/money"
	"github.com/noah-isme/studio-checkout/internal/product"
)

// ErrInvalidInput is returned when a fee schedule or price cannot produce a valid breakdown.
var ErrInvalidInput = errors.New("pricing: invalid input")

var hundred = decimal.NewFromInt(100)

// ChargeMode is the shape of the processor charge.
type ChargeMode string

const (
	ModePayment      ChargeMode = "payment"
	ModeSubscription ChargeMode = "subscription"
)

// ModeFor picks the charge mode for a product. Only renewing plans are subscriptions.
func ModeFor(p product.Product) ChargeMode {
	if plan, ok := p.(product.Plan); ok && plan.Interval.Recurring() {
		return ModeSubscription
	}
	return ModePayment
}

// FeeSchedule is the processor fee model: fee = FixedFee + PercentFee * gross.
// PercentFee is a fraction, so 2.9% is 0.029.
type FeeSchedule struct {
	FixedFee   money.Money
	PercentFee decimal.Decimal
}

// Validate rejects schedules that cannot be grossed up.
func (f FeeSchedule) Validate() error {
	if f.FixedFee < 0 {
		return fmt.Errorf("%w: fixed fee %d is negative", ErrInvalidInput, f.FixedFee)
	}
	if f.PercentFee.IsNegative() || f.PercentFee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: percent fee %s outside [0,1)", ErrInvalidInput, f.PercentFee)
	}
	return nil
}

// GrossUp returns the charge whose net after fees equals amount, and the fee itself.
// gross = ceil((amount + fixed) / (1 - percent)), fee = gross - amount.
func (f FeeSchedule) GrossUp(amount money.Money) (gross, fee money.Money) {
	if amount <= 0 {
		return 0, 0
	}
	numerator := decimal.NewFromInt(amount + f.FixedFee)
	denominator := decimal.NewFromInt(1).Sub(f.PercentFee)
	gross = money.Ceil(numerator.DivRound(denominator, 16))
	return gross, gross - amount
}

// Input carries everything the calculator needs. Discount and Credit are the resolved
// amounts, clamped again here so a caller cannot break the breakdown invariants.
type Input struct {
	BasePrice money.Money
	Discount  money.Money
	Credit    money.Money
	Fees      FeeSchedule
	// PlatformFeePercent is in percentage points, so 3 means 3%.
	PlatformFeePercent decimal.Decimal
	Mode               ChargeMode
}

// Breakdown is the immutable result of one pricing run.
type Breakdown struct {
	BasePrice             money.Money     `json:"basePrice"`
	DiscountAmount        money.Money     `json:"discountAmount"`
	TaxableAmount         money.Money     `json:"taxableAmount"`
	CreditApplied         money.Money     `json:"creditApplied"`
	AmountToPay           money.Money     `json:"amountToPay"`
	ProcessorFee          money.Money     `json:"processorFee"`
	GrossAmount           money.Money     `json:"grossAmount"`
	ApplicationFeeAmount  money.Money     `json:"applicationFeeAmount"`
	ApplicationFeePercent decimal.Decimal `json:"applicationFeePercent"`
	ChargeMode            ChargeMode      `json:"chargeMode"`
}

// Free reports whether nothing is owed and the processor can be skipped.
func (b Breakdown) Free() bool { return b.AmountToPay == 0 }

// Compute runs discount, credit, gross-up and application fee in that order.
func Compute(in Input) (Breakdown, error) {
	if in.BasePrice < 0 {
		return Breakdown{}, fmt.Errorf("%w: base price %d is negative", ErrInvalidInput, in.BasePrice)
	}
	if err := in.Fees.Validate(); err != nil {
		return Breakdown{}, err
	}
	if in.PlatformFeePercent.IsNegative() || in.PlatformFeePercent.GreaterThan(hundred) {
		return Breakdown{}, fmt.Errorf("%w: platform fee %s outside [0,100]", ErrInvalidInput, in.PlatformFeePercent)
	}
	mode := in.Mode
	if mode == "" {
		mode = ModePayment
	}
	if mode != ModePayment && mode != ModeSubscription {
		return Breakdown{}, fmt.Errorf("%w: unknown charge mode %q", ErrInvalidInput, mode)
	}

	b := Breakdown{BasePrice: in.BasePrice, ChargeMode: mode, ApplicationFeePercent: decimal.Zero}
	b.DiscountAmount = money.Clamp(in.Discount, 0, in.BasePrice)
	b.TaxableAmount = in.BasePrice - b.DiscountAmount
	b.CreditApplied = money.Clamp(in.Credit, 0, b.TaxableAmount)
	b.AmountToPay = b.TaxableAmount - b.CreditApplied
	if b.AmountToPay == 0 {
		return b, nil
	}

	b.GrossAmount, b.ProcessorFee = in.Fees.GrossUp(b.AmountToPay)

	switch mode {
	case ModeSubscription:
		// recurring invoices take the platform cut as a percentage of each future invoice
		b.ApplicationFeePercent = in.PlatformFeePercent
	default:
		b.ApplicationFeeAmount = money.Min(money.PercentOf(b.GrossAmount, in.PlatformFeePercent), b.GrossAmount)
	}
	return b, nil
}
