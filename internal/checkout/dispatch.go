package checkout

import (
	"context"
	"fmt"

	"github.com/noah-isme/studio-checkout/internal/events"
	"github.com/noah-isme/studio-checkout/internal/fulfillment"
	"github.com/noah-isme/studio-checkout/internal/obs"
)

// completeFree fulfils an order that discounts and credit fully cover. No processor is called,
// the gift card is redeemed inside the fulfillment transaction, and confirmations go out in the background.
func (s *Service) completeFree(ctx context.Context, caller Caller, p priced) (Result, error) {
	ref := NewOrderRef(FreeOrderPrefix)
	res, err := s.Fulfillment.Fulfill(ctx, fulfillment.Order{
		Args:       p.args(caller),
		Ref:        ref,
		Product:    p.product,
		AmountPaid: 0,
	})
	if err != nil {
		return Result{}, fmt.Errorf("fulfill %s: %w", ref, err)
	}
	if res.Redeemed != p.breakdown.CreditApplied {
		// a concurrent checkout drained the card between quote and redemption
		s.Logger.Warn().
			Str("order_ref", ref).
			Int64("credit_applied", p.breakdown.CreditApplied).
			Int64("redeemed", res.Redeemed).
			Msg("gift_card_redemption_short")
	}

	s.Logger.Info().
		Str("tenant_id", p.account.ID).
		Str("order_ref", ref).
		Str("product_kind", string(p.product.Kind())).
		Int64("credit_applied", p.breakdown.CreditApplied).
		Msg("checkout_completed")

	s.notify(ctx, caller, p, ref, res)
	return Result{
		Complete:  true,
		OrderRef:  ref,
		ReturnURL: s.url(p.account, "/checkout/complete?order="+ref),
		Breakdown: p.breakdown,
	}, nil
}

// notify emits confirmation events without holding up the response. The request context
// may be cancelled as soon as the handler returns, so the work runs detached from it.
func (s *Service) notify(ctx context.Context, caller Caller, p priced, ref string, res fulfillment.Result) {
	if s.Bus == nil || res.Replayed {
		return
	}
	detached := context.WithoutCancel(ctx)
	tenantID := p.account.ID
	order := events.OrderCompleted{
		OrderRef:      ref,
		Email:         caller.Email,
		ProductKind:   string(p.product.Kind()),
		ProductName:   productName(p.product),
		AmountPaid:    0,
		CreditApplied: p.breakdown.CreditApplied,
		Currency:      p.currency,
	}
	var issued *events.GiftCardIssued
	if card := res.IssuedCard; card != nil {
		issued = &events.GiftCardIssued{
			OrderRef:       ref,
			Code:           card.Code,
			Amount:         card.Balance,
			Currency:       p.currency,
			PurchaserEmail: caller.Email,
		}
		if r := p.recipient; r != nil {
			issued.RecipientName = r.Name
			issued.RecipientEmail = r.Email
			issued.Message = r.Message
		}
	}

	s.spawn(func() {
		if _, err := s.Bus.Emit(detached, events.TopicOrderCompleted, tenantID, ref, order); err != nil {
			s.notifyFailed(ref, events.TopicOrderCompleted, err)
		}
		if issued != nil {
			if _, err := s.Bus.Emit(detached, events.TopicGiftCardIssued, tenantID, ref, *issued); err != nil {
				s.notifyFailed(ref, events.TopicGiftCardIssued, err)
			}
		}
	})
}

func (s *Service) notifyFailed(ref, topic string, err error) {
	if obs.NotificationsTotal != nil {
		obs.NotificationsTotal.WithLabelValues("enqueue_error").Inc()
	}
	s.Logger.Warn().Err(err).Str("order_ref", ref).Str("topic", topic).Msg("checkout_notification_failed")
}

func (s *Service) spawn(fn func()) {
	if s.Go != nil {
		s.Go(fn)
		return
	}
	go fn()
}
