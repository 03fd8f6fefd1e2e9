package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-checkout/internal/product"
)

var standardFees = FeeSchedule{FixedFee: 30, PercentFee: decimal.RequireFromString("0.029")}

func TestComputeFullPricePack(t *testing.T) {
	b, err := Compute(Input{BasePrice: 5000, Fees: standardFees, PlatformFeePercent: decimal.NewFromInt(3)})
	require.NoError(t, err)
	require.Equal(t, int64(5000), b.AmountToPay)
	// (5000 + 30) / 0.971 = 5180.23 -> 5181
	require.Equal(t, int64(5181), b.GrossAmount)
	require.Equal(t, int64(181), b.ProcessorFee)
	require.Equal(t, int64(155), b.ApplicationFeeAmount)
	require.True(t, b.ApplicationFeePercent.IsZero())
	require.Equal(t, ModePayment, b.ChargeMode)
	require.False(t, b.Free())
}

func TestComputeFlatCouponCoversPack(t *testing.T) {
	b, err := Compute(Input{BasePrice: 5000, Discount: 5000, Fees: standardFees, PlatformFeePercent: decimal.NewFromInt(3)})
	require.NoError(t, err)
	require.Equal(t, int64(5000), b.DiscountAmount)
	require.Zero(t, b.TaxableAmount)
	require.True(t, b.Free())
	require.Zero(t, b.GrossAmount)
	require.Zero(t, b.ProcessorFee)
	require.Zero(t, b.ApplicationFeeAmount)
}

func TestComputePercentCouponAndGiftCard(t *testing.T) {
	b, err := Compute(Input{BasePrice: 10_000, Discount: 1000, Credit: 9000, Fees: standardFees})
	require.NoError(t, err)
	require.Equal(t, int64(9000), b.TaxableAmount)
	require.Equal(t, int64(9000), b.CreditApplied)
	require.True(t, b.Free())
	require.Zero(t, b.GrossAmount)
}

func TestComputeRecurringPlanUsesPercent(t *testing.T) {
	plan := product.Plan{Price: 2000, Interval: product.IntervalMonth, IntervalCount: 1}
	b, err := Compute(Input{
		BasePrice:          plan.BasePrice(),
		Fees:               standardFees,
		PlatformFeePercent: decimal.NewFromInt(3),
		Mode:               ModeFor(plan),
	})
	require.NoError(t, err)
	require.Equal(t, ModeSubscription, b.ChargeMode)
	require.True(t, b.ApplicationFeePercent.Equal(decimal.NewFromInt(3)))
	require.Zero(t, b.ApplicationFeeAmount)
	require.Equal(t, b.AmountToPay, b.GrossAmount-b.ProcessorFee)
}

func TestModeFor(t *testing.T) {
	require.Equal(t, ModePayment, ModeFor(product.Pack{}))
	require.Equal(t, ModePayment, ModeFor(product.GiftCardPurchase{Amount: 100}))
	require.Equal(t, ModePayment, ModeFor(product.Plan{Interval: product.IntervalOneTime}))
	require.Equal(t, ModeSubscription, ModeFor(product.Plan{Interval: product.IntervalWeek}))
	require.Equal(t, ModeSubscription, ModeFor(product.Plan{Interval: product.IntervalYear}))
}

func TestGrossUpInverseLaw(t *testing.T) {
	schedules := []FeeSchedule{
		standardFees,
		{FixedFee: 0, PercentFee: decimal.Zero},
		{FixedFee: 25, PercentFee: decimal.RequireFromString("0.034")},
		{FixedFee: 0, PercentFee: decimal.RequireFromString("0.5")},
	}
	for _, fees := range schedules {
		for amount := int64(1); amount <= 20_000; amount += 37 {
			b, err := Compute(Input{BasePrice: amount, Fees: fees, PlatformFeePercent: decimal.RequireFromString("2.5")})
			require.NoError(t, err)
			if b.GrossAmount-b.ProcessorFee != b.AmountToPay {
				t.Fatalf("amount %d: gross %d - fee %d != %d", amount, b.GrossAmount, b.ProcessorFee, b.AmountToPay)
			}
			if b.GrossAmount < b.AmountToPay {
				t.Fatalf("amount %d: gross %d below amount to pay", amount, b.GrossAmount)
			}
			// the tenant nets at least the amount owed after the processor takes its cut
			net := decimal.NewFromInt(b.GrossAmount).
				Sub(decimal.NewFromInt(fees.FixedFee)).
				Sub(decimal.NewFromInt(b.GrossAmount).Mul(fees.PercentFee))
			if net.LessThan(decimal.NewFromInt(amount)) {
				t.Fatalf("amount %d: net %s below target", amount, net)
			}
			if b.ApplicationFeeAmount > b.GrossAmount {
				t.Fatalf("amount %d: application fee %d above gross %d", amount, b.ApplicationFeeAmount, b.GrossAmount)
			}
		}
	}
}

func TestComputeClampsInputs(t *testing.T) {
	b, err := Compute(Input{BasePrice: 1000, Discount: 5000, Credit: 10, Fees: standardFees})
	require.NoError(t, err)
	require.Equal(t, int64(1000), b.DiscountAmount)
	require.Zero(t, b.CreditApplied)

	b, err = Compute(Input{BasePrice: 1000, Discount: -50, Credit: 4000, Fees: standardFees})
	require.NoError(t, err)
	require.Zero(t, b.DiscountAmount)
	require.Equal(t, int64(1000), b.CreditApplied)
	require.True(t, b.Free())
}

func TestComputeIsDeterministic(t *testing.T) {
	in := Input{BasePrice: 7777, Discount: 777, Credit: 100, Fees: standardFees, PlatformFeePercent: decimal.RequireFromString("1.5")}
	first, err := Compute(in)
	require.NoError(t, err)
	second, err := Compute(in)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestComputeRejectsBadInput(t *testing.T) {
	cases := []Input{
		{BasePrice: -1, Fees: standardFees},
		{BasePrice: 100, Fees: FeeSchedule{FixedFee: -1}},
		{BasePrice: 100, Fees: FeeSchedule{PercentFee: decimal.NewFromInt(1)}},
		{BasePrice: 100, Fees: FeeSchedule{PercentFee: decimal.RequireFromString("-0.01")}},
		{BasePrice: 100, Fees: standardFees, PlatformFeePercent: decimal.NewFromInt(101)},
		{BasePrice: 100, Fees: standardFees, Mode: "installments"},
	}
	for _, in := range cases {
		_, err := Compute(in)
		require.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestComputeZeroBase(t *testing.T) {
	b, err := Compute(Input{BasePrice: 0, Fees: standardFees})
	require.NoError(t, err)
	require.True(t, b.Free())
	require.Zero(t, b.GrossAmount)
}
