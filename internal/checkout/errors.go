package checkout

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/noah-isme/studio-checkout/internal/common"
)

var (
	ErrValidation             = errors.New("checkout: invalid request")
	ErrUnauthenticated        = errors.New("checkout: caller identity required")
	ErrTenantNotFound         = errors.New("checkout: tenant not found")
	ErrPaymentsNotEnabled     = errors.New("checkout: tenant has no connected payment account")
	ErrImpersonationForbidden = errors.New("checkout: impersonated sessions cannot pay")
	ErrProductNotFound        = errors.New("checkout: product not found")
	ErrProcessor              = errors.New("checkout: payment processor failed")
)

// ValidationError names the offending fields. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "checkout: " + e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "checkout: " + e.Message + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(message string) error {
	return &ValidationError{Message: message}
}

// AppError maps a checkout failure onto the API error shape. Unknown errors become a generic 500
// so internal computation state never leaks to the caller.
func AppError(err error) *common.AppError {
	if appErr, ok := common.AsAppError(err); ok {
		return appErr
	}
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		out := common.NewAppError("VALIDATION_ERROR", verr.Message, http.StatusBadRequest, err)
		if len(verr.Fields) > 0 {
			out.WithDetails(verr.Fields)
		}
		return out
	case errors.Is(err, ErrValidation):
		return common.NewAppError("VALIDATION_ERROR", "invalid checkout request", http.StatusBadRequest, err)
	case errors.Is(err, ErrUnauthenticated):
		return common.NewAppError("UNAUTHORIZED", "authentication required", http.StatusUnauthorized, err)
	case errors.Is(err, ErrImpersonationForbidden):
		return common.NewAppError("IMPERSONATION_FORBIDDEN", "payments cannot be made while impersonating a member", http.StatusForbidden, err)
	case errors.Is(err, ErrTenantNotFound):
		return common.NewAppError("TENANT_NOT_FOUND", "studio not found", http.StatusNotFound, err)
	case errors.Is(err, ErrProductNotFound):
		return common.NewAppError("PRODUCT_NOT_FOUND", "product not found", http.StatusNotFound, err)
	case errors.Is(err, ErrPaymentsNotEnabled):
		return common.NewAppError("PAYMENTS_NOT_ENABLED", "this studio is not accepting payments yet", http.StatusConflict, err)
	case errors.Is(err, ErrProcessor):
		return common.NewAppError("PAYMENT_PROVIDER_ERROR", "payment provider unavailable, please try again", http.StatusBadGateway, err)
	default:
		return common.NewAppError("INTERNAL", "checkout failed", http.StatusInternalServerError, err)
	}
}
