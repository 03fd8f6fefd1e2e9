package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidRequest is returned when a session request is malformed before any network call.
var ErrInvalidRequest = errors.New("payment: invalid session request")

// Mode is the processor charge shape.
type Mode string

const (
	ModePayment      Mode = "payment"
	ModeSubscription Mode = "subscription"
)

// Recurrence describes how often a subscription line item renews.
type Recurrence struct {
	Interval      string
	IntervalCount int64
}

// LineItem is one visible row on the hosted payment page.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
	Recurring  *Recurrence
}

// SessionRequest captures everything needed to open a hosted checkout session on a connected account.
// Exactly one of ApplicationFeeAmount (payment mode) or ApplicationFeePercent (subscription mode) is set.
type SessionRequest struct {
	MerchantAccount       string
	Currency              string
	Mode                  Mode
	LineItems             []LineItem
	ApplicationFeeAmount  *int64
	ApplicationFeePercent *decimal.Decimal
	Metadata              map[string]string
	CustomerEmail         string
	UIMode                string
	ReturnURL             string
	CancelURL             string
	AutomaticTax          bool
	IdempotencyKey        string
}

// Validate checks the request shape.
func (r SessionRequest) Validate() error {
	if strings.TrimSpace(r.MerchantAccount) == "" {
		return fmt.Errorf("%w: merchant account is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Currency) == "" {
		return fmt.Errorf("%w: currency is required", ErrInvalidRequest)
	}
	if len(r.LineItems) == 0 {
		return fmt.Errorf("%w: at least one line item is required", ErrInvalidRequest)
	}
	for i, item := range r.LineItems {
		if item.UnitAmount <= 0 || item.Quantity <= 0 {
			return fmt.Errorf("%w: line item %d has non-positive amount or quantity", ErrInvalidRequest, i)
		}
		if item.Recurring != nil && r.Mode != ModeSubscription {
			return fmt.Errorf("%w: recurring line item in %s mode", ErrInvalidRequest, r.Mode)
		}
	}
	switch r.Mode {
	case ModePayment:
		if r.ApplicationFeePercent != nil {
			return fmt.Errorf("%w: payment mode takes a fixed application fee", ErrInvalidRequest)
		}
	case ModeSubscription:
		if r.ApplicationFeeAmount != nil {
			return fmt.Errorf("%w: subscription mode takes a percentage application fee", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, r.Mode)
	}
	return nil
}

// Total sums the line items.
func (r SessionRequest) Total() int64 {
	var total int64
	for _, item := range r.LineItems {
		total += item.UnitAmount * item.Quantity
	}
	return total
}

// Session is the opaque handle returned to the storefront.
type Session struct {
	Provider     string
	ID           string
	ClientSecret string
	URL          string
}

// Processor opens hosted checkout sessions. Implementations make at most one attempt per call.
type Processor interface {
	Name() string
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}
