package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/studio-checkout/internal/common"
	"github.com/noah-isme/studio-checkout/internal/events"
)

// EmailNotifier sends transactional emails for selected topics.
type EmailNotifier struct {
	Mail         common.EmailSender
	Enabled      bool
	TopicToggles map[string]bool
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(_ context.Context, event events.Event) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	to, subject, body, err := render(event)
	if err != nil {
		return fmt.Errorf("email notify: %w", err)
	}
	if to == "" {
		return nil
	}
	return n.Mail.Send(to, subject, body)
}

func render(event events.Event) (to, subject, body string, err error) {
	switch event.Topic {
	case events.TopicOrderCompleted:
		var p events.OrderCompleted
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return "", "", "", fmt.Errorf("decode payload: %w", err)
		}
		return strings.TrimSpace(p.Email), "Your order is confirmed", orderBody(p, event.OccurredAt), nil
	case events.TopicGiftCardIssued:
		var p events.GiftCardIssued
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return "", "", "", fmt.Errorf("decode payload: %w", err)
		}
		to := strings.TrimSpace(p.RecipientEmail)
		if to == "" {
			to = strings.TrimSpace(p.PurchaserEmail)
		}
		return to, "You received a gift card", giftCardBody(p), nil
	default:
		return "", "", "", nil
	}
}

func orderBody(p events.OrderCompleted, occurred time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Thanks for your purchase of <strong>%s</strong>.</p>", html.EscapeString(p.ProductName))
	fmt.Fprintf(&b, "<p>Order reference: %s<br>", html.EscapeString(p.OrderRef))
	fmt.Fprintf(&b, "Amount charged: %s", formatAmount(p.AmountPaid, p.Currency))
	if p.CreditApplied > 0 {
		fmt.Fprintf(&b, "<br>Gift card credit applied: %s", formatAmount(p.CreditApplied, p.Currency))
	}
	fmt.Fprintf(&b, "<br>Completed at: %s</p>", occurred.Format(time.RFC1123))
	return b.String()
}

func giftCardBody(p events.GiftCardIssued) string {
	var b strings.Builder
	name := strings.TrimSpace(p.RecipientName)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(name))
	fmt.Fprintf(&b, "<p>You have a gift card worth <strong>%s</strong>.</p>", formatAmount(p.Amount, p.Currency))
	if msg := strings.TrimSpace(p.Message); msg != "" {
		fmt.Fprintf(&b, "<blockquote>%s</blockquote>", html.EscapeString(msg))
	}
	fmt.Fprintf(&b, "<p>Code: <code>%s</code></p>", html.EscapeString(p.Code))
	return b.String()
}

func formatAmount(cents int64, currency string) string {
	return decimal.New(cents, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}
