package payment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/studio-checkout/internal/common"
)

// Sandbox implements Processor without performing a network call.
// Session handles are derived from the request so repeated calls with the same
// idempotency key return the same handle, which keeps local flows reproducible.
type Sandbox struct {
	BaseURL string
}

// Name implements Processor.
func (Sandbox) Name() string { return "sandbox" }

// CreateSession synthesises a deterministic session.
func (s Sandbox) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	if err := req.Validate(); err != nil {
		return Session{}, err
	}
	id := "cs_sandbox_" + common.Sha256Hex(s.fingerprint(req))[:24]
	return Session{
		Provider:     s.Name(),
		ID:           id,
		ClientSecret: id + "_secret",
		URL:          fmt.Sprintf("%s/pay/%s", strings.TrimRight(s.host(), "/"), id),
	}, nil
}

func (s Sandbox) host() string {
	if host := strings.TrimSpace(s.BaseURL); host != "" {
		return host
	}
	return "http://localhost:8080/sandbox"
}

func (Sandbox) fingerprint(req SessionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s|", req.MerchantAccount, req.Currency, req.Mode, req.IdempotencyKey)
	for _, item := range req.LineItems {
		fmt.Fprintf(&b, "%s:%d:%d;", item.Name, item.UnitAmount, item.Quantity)
	}
	keys := make([]string, 0, len(req.Metadata))
	for k := range req.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, req.Metadata[k])
	}
	return b.String()
}
