package checkout

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-checkout/internal/payment"
	"github.com/noah-isme/studio-checkout/internal/pricing"
	"github.com/noah-isme/studio-checkout/internal/product"
	"github.com/noah-isme/studio-checkout/internal/tenant"
)

var errBoom = errors.New("processor exploded")

func TestNewOrderRefIsUnique(t *testing.T) {
	a := NewOrderRef(FreeOrderPrefix)
	b := NewOrderRef(FreeOrderPrefix)
	require.True(t, strings.HasPrefix(a, "free_"))
	require.Len(t, a, len("free_")+26)
	require.NotEqual(t, a, b)
}

func TestMetadataRebuildsFulfillmentArgs(t *testing.T) {
	in := Metadata{
		OrderRef:       "ord_01HZX",
		TenantID:       tenantID,
		UserID:         memberID,
		Email:          memberEmail,
		ProductKind:    product.KindGiftCard,
		GiftCardID:     "card-part",
		CreditApplied:  1500,
		AmountToPay:    1000,
		ProcessorFee:   61,
		GrossAmount:    1061,
		GiftCardAmount: 2500,
		Recipient:      &product.Recipient{Name: "Ada", Email: "ada@example.com"},
	}
	bag := in.Encode()
	require.NotContains(t, bag, "coupon_id")
	require.NotContains(t, bag, "recipient_message")
	require.NotContains(t, bag, "application_fee_percent")
	require.Equal(t, "1061", bag["total_charge"])

	out, err := DecodeMetadata(bag)
	require.NoError(t, err)
	require.Equal(t, in, out)

	args := out.Args()
	require.Equal(t, "card-part", args.GiftCardID)
	require.Equal(t, int64(1500), args.CreditApplied)
	require.Equal(t, product.Selection{Kind: product.KindGiftCard, Amount: 2500}, out.Selection())
}

func TestMetadataCarriesSubscriptionFeePercent(t *testing.T) {
	in := Metadata{
		OrderRef:              "ord_01HZY",
		TenantID:              tenantID,
		ProductKind:           product.KindPlan,
		ProductID:             planID,
		AmountToPay:           2000,
		GrossAmount:           2092,
		ApplicationFeePercent: decimal.RequireFromString("2.5"),
	}
	bag := in.Encode()
	require.Equal(t, "2.5", bag["application_fee_percent"])
	require.NotContains(t, bag, "application_fee_amount")

	out, err := DecodeMetadata(bag)
	require.NoError(t, err)
	require.True(t, out.ApplicationFeePercent.Equal(in.ApplicationFeePercent))
	require.Equal(t, int64(2092), out.GrossAmount)
}

func TestDecodeMetadataRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"missing ref":     {"tenant_id": "t", "product_kind": "pack", "product_id": packID},
		"bad amount":      {"order_ref": "ord_1", "tenant_id": "t", "product_kind": "pack", "product_id": packID, "credit_applied": "ten"},
		"negative":        {"order_ref": "ord_1", "tenant_id": "t", "product_kind": "pack", "product_id": packID, "amount_to_pay": "-1"},
		"no product id":   {"order_ref": "ord_1", "tenant_id": "t", "product_kind": "plan"},
		"no card amount":  {"order_ref": "ord_1", "tenant_id": "t", "product_kind": "gift_card"},
		"unknown product": {"order_ref": "ord_1", "tenant_id": "t", "product_kind": "voucher"},
		"bad percent":     {"order_ref": "ord_1", "tenant_id": "t", "product_kind": "plan", "product_id": planID, "application_fee_percent": "150"},
	}
	for name, bag := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeMetadata(bag)
			require.ErrorIs(t, err, ErrInvalidMetadata)
		})
	}
}

func TestBuildSessionOmitsZeroFeeLine(t *testing.T) {
	b, err := pricing.Compute(pricing.Input{BasePrice: 5000})
	require.NoError(t, err)
	req, err := BuildSession(SessionInput{
		Account:   tenant.Account{ConnectedAccountID: accountID},
		Product:   product.Pack{ID: packID, Name: "10 class pack", Price: 5000},
		Breakdown: b,
		Metadata:  Metadata{OrderRef: "ord_1", TenantID: tenantID},
		Currency:  "EUR",
	})
	require.NoError(t, err)
	require.Len(t, req.LineItems, 1)
	require.Equal(t, "eur", req.Currency)
	require.Nil(t, req.ApplicationFeeAmount)
	require.Equal(t, "ord_1", req.IdempotencyKey)
}

func TestBuildSessionRejects(t *testing.T) {
	paid, err := pricing.Compute(pricing.Input{BasePrice: 2000, PlatformFeePercent: decimal.NewFromInt(3), Mode: pricing.ModeSubscription})
	require.NoError(t, err)

	_, err = BuildSession(SessionInput{Product: product.Pack{}, Breakdown: paid})
	require.ErrorIs(t, err, ErrPaymentsNotEnabled)

	account := tenant.Account{ConnectedAccountID: accountID}
	_, err = BuildSession(SessionInput{Account: account, Product: product.Pack{Name: "pack"}, Breakdown: paid, Currency: "usd"})
	require.Error(t, err, "subscription breakdown for a pack")

	free, err := pricing.Compute(pricing.Input{BasePrice: 2000, Discount: 2000})
	require.NoError(t, err)
	_, err = BuildSession(SessionInput{Account: account, Product: product.Pack{Name: "pack"}, Breakdown: free, Currency: "usd"})
	require.Error(t, err)

	plan := product.Plan{Name: "Monthly", Interval: product.IntervalMonth}
	req, err := BuildSession(SessionInput{Account: account, Product: plan, Breakdown: paid, Currency: "usd"})
	require.NoError(t, err)
	require.Equal(t, payment.ModeSubscription, req.Mode)
	require.Equal(t, int64(1), req.LineItems[0].Recurring.IntervalCount)
}
