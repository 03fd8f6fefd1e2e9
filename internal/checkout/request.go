package checkout

import (
	"context"
	"errors"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/studio-checkout/internal/common"
	"github.com/noah-isme/studio-checkout/internal/product"
	"github.com/noah-isme/studio-checkout/internal/tenant"
)

// Request is the storefront checkout payload. Exactly one of PackID, PlanID or GiftCardAmount must be set.
type Request struct {
	PackID         string          `json:"packId" validate:"omitempty,uuid"`
	PlanID         string          `json:"planId" validate:"omitempty,uuid"`
	GiftCardAmount *int64          `json:"giftCardAmount" validate:"omitempty,gt=0"`
	CouponCode     string          `json:"couponCode" validate:"omitempty,max=64"`
	GiftCardCode   string          `json:"giftCardCode" validate:"omitempty,max=64"`
	Recipient      *RecipientInput `json:"recipient" validate:"omitempty"`
}

// RecipientInput names who receives a purchased gift card.
type RecipientInput struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"max=400"`
}

// Caller is the authenticated identity a checkout runs for.
type Caller struct {
	TenantID       string
	UserID         string
	Email          string
	ImpersonatorID string
}

// CallerFrom reads tenant and identity values placed on ctx by the tenant and auth middleware.
func CallerFrom(ctx context.Context) Caller {
	var c Caller
	c.TenantID, _ = tenant.FromContext(ctx)
	c.UserID, _ = common.UserID(ctx)
	c.Email, _ = common.Email(ctx)
	c.ImpersonatorID, _ = common.ImpersonatorID(ctx)
	return c
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field formats, then the exactly-one product rule.
func (r Request) Validate(limits product.AmountLimits) (product.Selection, error) {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fieldPath(fe.Namespace())] = fe.Tag()
			}
			return product.Selection{}, &ValidationError{Message: "invalid checkout request", Fields: fields}
		}
		return product.Selection{}, &ValidationError{Message: err.Error()}
	}
	sel, err := r.Ref().Parse(limits)
	if err != nil {
		return product.Selection{}, &ValidationError{Message: err.Error()}
	}
	if r.Recipient != nil && sel.Kind != product.KindGiftCard {
		return product.Selection{}, invalid("recipient only applies to gift card purchases")
	}
	return sel, nil
}

// Ref extracts the loosely-typed product reference.
func (r Request) Ref() product.Ref {
	return product.Ref{PackID: r.PackID, PlanID: r.PlanID, GiftCardAmount: r.GiftCardAmount}
}

func (r Request) recipient() *product.Recipient {
	if r.Recipient == nil {
		return nil
	}
	return &product.Recipient{
		Name:    strings.TrimSpace(r.Recipient.Name),
		Email:   strings.TrimSpace(r.Recipient.Email),
		Message: strings.TrimSpace(r.Recipient.Message),
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
