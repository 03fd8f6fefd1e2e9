package product

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/studio-checkout/internal/money"
)

var (
	// ErrNoSelection is returned when a checkout request names no product at all.
	ErrNoSelection = errors.New("product: no product selected")
	// ErrAmbiguousSelection is returned when more than one product variant is named.
	ErrAmbiguousSelection = errors.New("product: more than one product selected")
	// ErrInvalidAmount indicates a malformed gift card amount.
	ErrInvalidAmount = errors.New("product: invalid gift card amount")
	// ErrInvalidID indicates a pack or plan identifier that is not a UUID.
	ErrInvalidID = errors.New("product: invalid product id")
	// ErrNotFound is returned when the product does not exist for the tenant or is inactive.
	ErrNotFound = errors.New("product: not found")
)

// Kind discriminates the product variants that can be purchased.
type Kind string

const (
	KindPack     Kind = "pack"
	KindPlan     Kind = "plan"
	KindGiftCard Kind = "gift_card"
)

// Interval is the billing cadence of a plan.
type Interval string

const (
	IntervalOneTime Interval = "one_time"
	IntervalWeek    Interval = "week"
	IntervalMonth   Interval = "month"
	IntervalYear    Interval = "year"
)

// Valid reports whether the interval is one of the known cadences.
func (i Interval) Valid() bool {
	switch i {
	case IntervalOneTime, IntervalWeek, IntervalMonth, IntervalYear:
		return true
	}
	return false
}

// Recurring reports whether the interval renews.
func (i Interval) Recurring() bool {
	return i == IntervalWeek || i == IntervalMonth || i == IntervalYear
}

// Product is the closed set of purchasable things. Exactly one variant is active per checkout.
type Product interface {
	Kind() Kind
	BasePrice() money.Money
	isProduct()
}

// Pack is a bundle of class credits.
type Pack struct {
	ID        string
	TenantID  string
	Name      string
	Credits   int
	Price     money.Money
	ExpiresIn int // days, 0 means never
	Active    bool
}

func (Pack) Kind() Kind               { return KindPack }
func (p Pack) BasePrice() money.Money { return p.Price }
func (Pack) isProduct()               {}

// Plan is a membership, either one-time or renewing.
type Plan struct {
	ID            string
	TenantID      string
	Name          string
	Price         money.Money
	Interval      Interval
	IntervalCount int
	Active        bool
}

func (Plan) Kind() Kind               { return KindPlan }
func (p Plan) BasePrice() money.Money { return p.Price }
func (Plan) isProduct()               {}

// Recipient describes who receives a purchased gift card.
type Recipient struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message,omitempty"`
}

// GiftCardPurchase is a direct monetary request for a new stored-value card.
type GiftCardPurchase struct {
	Amount    money.Money
	Recipient *Recipient
}

func (GiftCardPurchase) Kind() Kind { return KindGiftCard }
func (g GiftCardPurchase) BasePrice() money.Money { return g.Amount }
func (GiftCardPurchase) isProduct() {}

// Ref is the loosely-typed product reference found on a checkout request.
type Ref struct {
	PackID         string
	PlanID         string
	GiftCardAmount *int64
}

// Selection is a validated Ref with exactly one active variant.
type Selection struct {
	Kind   Kind
	ID     string
	Amount money.Money
}

// AmountLimits bounds gift card purchase amounts. A zero Max means no upper bound.
type AmountLimits struct {
	Min money.Money
	Max money.Money
}

// Parse rejects references naming zero or several products and validates the one that remains.
func (r Ref) Parse(limits AmountLimits) (Selection, error) {
	packID := strings.TrimSpace(r.PackID)
	planID := strings.TrimSpace(r.PlanID)
	count := 0
	if packID != "" {
		count++
	}
	if planID != "" {
		count++
	}
	if r.GiftCardAmount != nil {
		count++
	}
	switch {
	case count == 0:
		return Selection{}, ErrNoSelection
	case count > 1:
		return Selection{}, ErrAmbiguousSelection
	}

	switch {
	case packID != "":
		if _, err := uuid.Parse(packID); err != nil {
			return Selection{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
		}
		return Selection{Kind: KindPack, ID: packID}, nil
	case planID != "":
		if _, err := uuid.Parse(planID); err != nil {
			return Selection{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
		}
		return Selection{Kind: KindPlan, ID: planID}, nil
	default:
		amount := *r.GiftCardAmount
		if amount <= 0 {
			return Selection{}, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
		}
		if limits.Min > 0 && amount < limits.Min {
			return Selection{}, fmt.Errorf("%w: below minimum %d", ErrInvalidAmount, limits.Min)
		}
		if limits.Max > 0 && amount > limits.Max {
			return Selection{}, fmt.Errorf("%w: above maximum %d", ErrInvalidAmount, limits.Max)
		}
		return Selection{Kind: KindGiftCard, Amount: amount}, nil
	}
}
