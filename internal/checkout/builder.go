package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/studio-checkout/internal/payment"
	"github.com/noah-isme/studio-checkout/internal/pricing"
	"github.com/noah-isme/studio-checkout/internal/product"
	"github.com/noah-isme/studio-checkout/internal/tenant"
)

// ProcessingFeeLabel is the visible name of the grossed-up fee line.
const ProcessingFeeLabel = "Processing fee"

// SessionInput is a priced order ready to be sent to the processor.
type SessionInput struct {
	Account       tenant.Account
	Product       product.Product
	Breakdown     pricing.Breakdown
	Metadata      Metadata
	Currency      string
	CustomerEmail string
	UIMode        string
	ReturnURL     string
	CancelURL     string
	AutomaticTax  bool
}

// BuildSession turns a priced order into a processor session request. The main line carries
// amountToPay and, for recurring plans, the recurrence; a second one-off line shows the processor fee.
func BuildSession(in SessionInput) (payment.SessionRequest, error) {
	if !in.Account.PaymentsEnabled() {
		return payment.SessionRequest{}, ErrPaymentsNotEnabled
	}
	if in.Product == nil {
		return payment.SessionRequest{}, errors.New("checkout: product is required")
	}
	b := in.Breakdown
	if b.AmountToPay <= 0 {
		return payment.SessionRequest{}, fmt.Errorf("checkout: nothing to charge for %s", in.Metadata.OrderRef)
	}

	main := payment.LineItem{Name: productName(in.Product), UnitAmount: b.AmountToPay, Quantity: 1}
	req := payment.SessionRequest{
		MerchantAccount: in.Account.ConnectedAccountID,
		Currency:        strings.ToLower(in.Currency),
		Mode:            payment.ModePayment,
		Metadata:        in.Metadata.Encode(),
		CustomerEmail:   in.CustomerEmail,
		UIMode:          in.UIMode,
		ReturnURL:       in.ReturnURL,
		CancelURL:       in.CancelURL,
		AutomaticTax:    in.AutomaticTax,
		IdempotencyKey:  in.Metadata.OrderRef,
	}

	switch b.ChargeMode {
	case pricing.ModeSubscription:
		plan, ok := in.Product.(product.Plan)
		if !ok || !plan.Interval.Recurring() {
			return payment.SessionRequest{}, fmt.Errorf("checkout: subscription mode needs a recurring plan, got %s", in.Product.Kind())
		}
		count := int64(plan.IntervalCount)
		if count <= 0 {
			count = 1
		}
		main.Recurring = &payment.Recurrence{Interval: string(plan.Interval), IntervalCount: count}
		req.Mode = payment.ModeSubscription
		if b.ApplicationFeePercent.IsPositive() {
			pct := b.ApplicationFeePercent
			req.ApplicationFeePercent = &pct
		}
	default:
		if b.ApplicationFeeAmount > 0 {
			fee := b.ApplicationFeeAmount
			req.ApplicationFeeAmount = &fee
		}
	}

	req.LineItems = append(req.LineItems, main)
	if b.ProcessorFee > 0 {
		req.LineItems = append(req.LineItems, payment.LineItem{Name: ProcessingFeeLabel, UnitAmount: b.ProcessorFee, Quantity: 1})
	}
	if err := req.Validate(); err != nil {
		return payment.SessionRequest{}, err
	}
	return req, nil
}

func productName(p product.Product) string {
	switch v := p.(type) {
	case product.Pack:
		return v.Name
	case product.Plan:
		return v.Name
	case product.GiftCardPurchase:
		return "Gift card"
	default:
		return string(p.Kind())
	}
}

func productID(p product.Product) string {
	switch v := p.(type) {
	case product.Pack:
		return v.ID
	case product.Plan:
		return v.ID
	default:
		return ""
	}
}
