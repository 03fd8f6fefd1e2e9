package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StripeConfig configures the Stripe processor.
type StripeConfig struct {
	SecretKey string
	// APIBase overrides the API host, used against stripe-mock.
	APIBase string
	Timeout time.Duration
}

// Stripe creates Checkout Sessions on the tenant's connected account.
type Stripe struct {
	api *client.API
}

// NewStripe builds a client with retries disabled; a failed call is surfaced to the caller as is.
func NewStripe(cfg StripeConfig) (*Stripe, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	backendConfig := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
	}
	if base := strings.TrimSpace(cfg.APIBase); base != "" {
		backendConfig.URL = stripe.String(base)
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, stripe.NewBackendsWithConfig(backendConfig))
	return &Stripe{api: api}, nil
}

// Name implements Processor.
func (s *Stripe) Name() string { return "stripe" }

// CreateSession implements Processor.
func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	params, err := StripeSessionParams(req)
	if err != nil {
		return Session{}, err
	}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return Session{}, fmt.Errorf("stripe checkout session (%s %s): %w", stripeErr.Type, stripeErr.Code, err)
		}
		return Session{}, fmt.Errorf("stripe checkout session: %w", err)
	}
	return Session{
		Provider:     s.Name(),
		ID:           sess.ID,
		ClientSecret: sess.ClientSecret,
		URL:          sess.URL,
	}, nil
}

// StripeSessionParams maps a SessionRequest onto Checkout Session parameters.
func StripeSessionParams(req SessionRequest) (*stripe.CheckoutSessionParams, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(req.Mode)),
	}
	for _, item := range req.LineItems {
		priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(currency),
			UnitAmount: stripe.Int64(item.UnitAmount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(item.Name),
			},
		}
		if item.Recurring != nil {
			priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval:      stripe.String(item.Recurring.Interval),
				IntervalCount: stripe.Int64(item.Recurring.IntervalCount),
			}
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: priceData,
			Quantity:  stripe.Int64(item.Quantity),
		})
	}

	switch req.Mode {
	case ModeSubscription:
		sub := &stripe.CheckoutSessionSubscriptionDataParams{}
		if req.ApplicationFeePercent != nil && req.ApplicationFeePercent.IsPositive() {
			pct, _ := req.ApplicationFeePercent.Float64()
			sub.ApplicationFeePercent = stripe.Float64(pct)
		}
		sub.Metadata = copyMetadata(req.Metadata)
		params.SubscriptionData = sub
	default:
		intent := &stripe.CheckoutSessionPaymentIntentDataParams{}
		if req.ApplicationFeeAmount != nil && *req.ApplicationFeeAmount > 0 {
			intent.ApplicationFeeAmount = stripe.Int64(*req.ApplicationFeeAmount)
		}
		intent.Metadata = copyMetadata(req.Metadata)
		params.PaymentIntentData = intent
	}

	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if strings.EqualFold(req.UIMode, "embedded") {
		params.UIMode = stripe.String(string(stripe.CheckoutSessionUIModeEmbedded))
		params.ReturnURL = stripe.String(req.ReturnURL)
	} else {
		params.SuccessURL = stripe.String(req.ReturnURL)
		if req.CancelURL != "" {
			params.CancelURL = stripe.String(req.CancelURL)
		}
	}
	if req.AutomaticTax {
		params.AutomaticTax = &stripe.CheckoutSessionAutomaticTaxParams{Enabled: stripe.Bool(true)}
	}

	keys := make([]string, 0, len(req.Metadata))
	for k := range req.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params.AddMetadata(k, req.Metadata[k])
	}
	params.SetStripeAccount(req.MerchantAccount)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	return params, nil
}

func copyMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
