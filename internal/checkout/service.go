package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/studio-checkout/internal/coupon"
	"github.com/noah-isme/studio-checkout/internal/events"
	"github.com/noah-isme/studio-checkout/internal/fulfillment"
	"github.com/noah-isme/studio-checkout/internal/giftcard"
	"github.com/noah-isme/studio-checkout/internal/obs"
	"github.com/noah-isme/studio-checkout/internal/payment"
	"github.com/noah-isme/studio-checkout/internal/pricing"
	"github.com/noah-isme/studio-checkout/internal/product"
	"github.com/noah-isme/studio-checkout/internal/tenant"
)

// Fulfiller completes orders. *fulfillment.Service satisfies it.
type Fulfiller interface {
	Fulfill(ctx context.Context, order fulfillment.Order) (fulfillment.Result, error)
}

// Service prices checkout requests and dispatches them either to fulfillment or to the payment processor.
// It keeps no state between calls.
type Service struct {
	Tenants     tenant.Directory
	Catalog     product.Catalog
	Coupons     *coupon.Resolver
	GiftCards   *giftcard.Reader
	Fulfillment Fulfiller
	Processor   payment.Processor
	Bus         *events.Bus

	Fees   pricing.FeeSchedule
	Tiers  tenant.TierTable
	Limits product.AmountLimits

	Currency string
	// BaseURL is the storefront origin. "{tenant}" is replaced with the tenant slug.
	BaseURL      string
	UIMode       string
	AutomaticTax bool

	Logger zerolog.Logger
	// Go runs background work such as confirmation notifications. Defaults to a goroutine.
	Go func(func())
}

// Quote is a priced order that has not been dispatched.
type Quote struct {
	Breakdown       pricing.Breakdown `json:"breakdown"`
	ProductKind     product.Kind      `json:"productKind"`
	ProductName     string            `json:"productName"`
	Currency        string            `json:"currency"`
	CouponApplied   bool              `json:"couponApplied"`
	GiftCardApplied bool              `json:"giftCardApplied"`
}

// SessionHandle is the opaque processor handle returned to the storefront.
type SessionHandle struct {
	Provider     string `json:"provider"`
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Result is either a completed free order or an open processor session.
type Result struct {
	Complete  bool              `json:"complete"`
	OrderRef  string            `json:"orderRef"`
	ReturnURL string            `json:"returnUrl,omitempty"`
	Session   *SessionHandle    `json:"session,omitempty"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}

// priced carries the intermediate state of one request. It is never shared between requests.
type priced struct {
	account   tenant.Account
	product   product.Product
	coupon    *coupon.Coupon
	credit    giftcard.Credit
	recipient *product.Recipient
	breakdown pricing.Breakdown
	currency  string
}

// Quote prices a request without side effects.
func (s *Service) Quote(ctx context.Context, caller Caller, req Request) (Quote, error) {
	p, err := s.price(ctx, caller, req)
	s.observe("quote", p.breakdown.ChargeMode, err)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Breakdown:       p.breakdown,
		ProductKind:     p.product.Kind(),
		ProductName:     productName(p.product),
		Currency:        p.currency,
		CouponApplied:   p.breakdown.DiscountAmount > 0,
		GiftCardApplied: p.breakdown.CreditApplied > 0,
	}, nil
}

// Checkout prices a request and dispatches it exactly once: free orders are fulfilled immediately,
// everything else becomes a hosted processor session.
func (s *Service) Checkout(ctx context.Context, caller Caller, req Request) (Result, error) {
	if strings.TrimSpace(caller.ImpersonatorID) != "" {
		s.observe("rejected", "", ErrImpersonationForbidden)
		return Result{}, ErrImpersonationForbidden
	}
	p, err := s.price(ctx, caller, req)
	if err != nil {
		s.observe("rejected", "", err)
		return Result{}, err
	}
	if p.breakdown.Free() {
		res, err := s.completeFree(ctx, caller, p)
		s.observe("free", p.breakdown.ChargeMode, err)
		return res, err
	}
	res, err := s.openSession(ctx, caller, p)
	s.observe("processor", p.breakdown.ChargeMode, err)
	return res, err
}

func (s *Service) price(ctx context.Context, caller Caller, req Request) (priced, error) {
	if err := s.ready(); err != nil {
		return priced{}, err
	}
	if strings.TrimSpace(caller.UserID) == "" {
		return priced{}, ErrUnauthenticated
	}
	if strings.TrimSpace(caller.TenantID) == "" {
		return priced{}, invalid("tenant is required")
	}
	sel, err := req.Validate(s.Limits)
	if err != nil {
		return priced{}, err
	}

	account, err := s.Tenants.Get(ctx, caller.TenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return priced{}, ErrTenantNotFound
		}
		return priced{}, fmt.Errorf("load tenant: %w", err)
	}
	if !account.PaymentsEnabled() {
		return priced{}, ErrPaymentsNotEnabled
	}

	recipient := req.recipient()
	prod, err := product.Load(ctx, s.Catalog, account.ID, sel, recipient)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return priced{}, ErrProductNotFound
		}
		return priced{}, fmt.Errorf("load product: %w", err)
	}

	p := priced{account: account, product: prod, recipient: recipient, currency: s.currencyFor(account)}
	base := prod.BasePrice()

	var discount int64
	if strings.TrimSpace(req.CouponCode) != "" {
		p.coupon, err = s.Coupons.Resolve(ctx, account.ID, req.CouponCode)
		if err != nil {
			return priced{}, fmt.Errorf("resolve coupon: %w", err)
		}
		if p.coupon != nil {
			discount = p.coupon.Discount(base)
		}
	}
	if strings.TrimSpace(req.GiftCardCode) != "" {
		p.credit, err = s.GiftCards.Credit(ctx, account.ID, req.GiftCardCode, base-discount)
		if err != nil {
			return priced{}, fmt.Errorf("read gift card: %w", err)
		}
	}

	p.breakdown, err = pricing.Compute(pricing.Input{
		BasePrice:          base,
		Discount:           discount,
		Credit:             p.credit.Amount,
		Fees:               s.Fees,
		PlatformFeePercent: s.Tiers.PlatformFeePercent(account.Tier),
		Mode:               pricing.ModeFor(prod),
	})
	if err != nil {
		return priced{}, fmt.Errorf("compute pricing: %w", err)
	}
	return p, nil
}

func (s *Service) openSession(ctx context.Context, caller Caller, p priced) (Result, error) {
	ref := NewOrderRef(ProcessorOrderPrefix)
	meta := p.metadata(caller, ref)
	req, err := BuildSession(SessionInput{
		Account:       p.account,
		Product:       p.product,
		Breakdown:     p.breakdown,
		Metadata:      meta,
		Currency:      p.currency,
		CustomerEmail: caller.Email,
		UIMode:        s.UIMode,
		ReturnURL:     s.url(p.account, "/checkout/return?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     s.url(p.account, "/checkout/cancel"),
		AutomaticTax:  s.AutomaticTax,
	})
	if err != nil {
		return Result{}, fmt.Errorf("build session: %w", err)
	}

	start := time.Now()
	session, err := s.Processor.CreateSession(ctx, req)
	s.observeProcessor(start, err)
	if err != nil {
		s.Logger.Error().Err(err).
			Str("tenant_id", p.account.ID).
			Str("order_ref", ref).
			Str("provider", s.Processor.Name()).
			Msg("checkout_session_failed")
		return Result{}, fmt.Errorf("%w: %v", ErrProcessor, err)
	}

	s.Logger.Info().
		Str("tenant_id", p.account.ID).
		Str("order_ref", ref).
		Str("session_id", session.ID).
		Str("mode", string(req.Mode)).
		Int64("gross_amount", p.breakdown.GrossAmount).
		Msg("checkout_session_created")
	return Result{
		OrderRef: ref,
		Session: &SessionHandle{
			Provider:     session.Provider,
			ID:           session.ID,
			ClientSecret: session.ClientSecret,
			URL:          session.URL,
		},
		Breakdown: p.breakdown,
	}, nil
}

func (p priced) args(caller Caller) fulfillment.Args {
	args := fulfillment.Args{
		TenantID:      p.account.ID,
		UserID:        caller.UserID,
		Email:         caller.Email,
		CreditApplied: p.breakdown.CreditApplied,
	}
	if p.coupon != nil && p.breakdown.DiscountAmount > 0 {
		args.CouponID = p.coupon.ID
	}
	if p.credit.Card != nil && p.breakdown.CreditApplied > 0 {
		args.GiftCardID = p.credit.Card.ID
	}
	return args
}

func (p priced) metadata(caller Caller, ref string) Metadata {
	args := p.args(caller)
	m := Metadata{
		OrderRef:             ref,
		TenantID:             args.TenantID,
		UserID:               args.UserID,
		Email:                args.Email,
		ProductKind:          p.product.Kind(),
		ProductID:            productID(p.product),
		CouponID:             args.CouponID,
		GiftCardID:           args.GiftCardID,
		CreditApplied:        p.breakdown.CreditApplied,
		AmountToPay:          p.breakdown.AmountToPay,
		ProcessorFee:         p.breakdown.ProcessorFee,
		GrossAmount:          p.breakdown.GrossAmount,
		ApplicationFeeAmount: p.breakdown.ApplicationFeeAmount,
		Recipient:            p.recipient,
	}
	if p.breakdown.ChargeMode == pricing.ModeSubscription {
		m.ApplicationFeePercent = p.breakdown.ApplicationFeePercent
	}
	if g, ok := p.product.(product.GiftCardPurchase); ok {
		m.GiftCardAmount = g.Amount
	}
	return m
}

func (s *Service) ready() error {
	switch {
	case s == nil:
		return errors.New("checkout service not configured")
	case s.Tenants == nil:
		return errors.New("checkout: tenant directory not configured")
	case s.Processor == nil:
		return errors.New("checkout: payment processor not configured")
	case s.Fulfillment == nil:
		return errors.New("checkout: fulfillment not configured")
	}
	return nil
}

func (s *Service) currencyFor(account tenant.Account) string {
	if c := strings.TrimSpace(account.Currency); c != "" {
		return strings.ToLower(c)
	}
	if c := strings.TrimSpace(s.Currency); c != "" {
		return strings.ToLower(c)
	}
	return "usd"
}

func (s *Service) url(account tenant.Account, path string) string {
	base := strings.TrimRight(strings.ReplaceAll(s.BaseURL, "{tenant}", account.Slug), "/")
	return base + path
}

func (s *Service) observe(path string, mode pricing.ChargeMode, err error) {
	if obs.CheckoutRequestsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.CheckoutRequestsTotal.WithLabelValues(path, string(mode), result).Inc()
}

func (s *Service) observeProcessor(start time.Time, err error) {
	provider := s.Processor.Name()
	if obs.ProcessorLatency != nil {
		obs.ProcessorLatency.WithLabelValues(provider).Observe(float64(time.Since(start).Milliseconds()))
	}
	if obs.ProcessorSessionsTotal != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		obs.ProcessorSessionsTotal.WithLabelValues(provider, result).Inc()
	}
}
