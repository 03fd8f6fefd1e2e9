package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/studio-checkout/internal/events"
	"github.com/noah-isme/studio-checkout/internal/obs"
)

// TypeEventNotification is the asynq task type carrying one events.Event.
const TypeEventNotification = "notify:event"

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer hands events to the worker so the request path never waits on email delivery.
type Enqueuer struct {
	Client   TaskEnqueuer
	Queue    string
	MaxRetry int
}

// Notify implements events.Notifier. Re-emitting the same topic for the same aggregate is a no-op.
func (e Enqueuer) Notify(ctx context.Context, event events.Event) error {
	if e.Client == nil {
		return errors.New("notify: task client not configured")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	opts := []asynq.Option{asynq.TaskID(event.Topic + ":" + event.AggregateID)}
	if q := strings.TrimSpace(e.Queue); q != "" {
		opts = append(opts, asynq.Queue(q))
	}
	if e.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(e.MaxRetry))
	}
	_, err = e.Client.EnqueueContext(ctx, asynq.NewTask(TypeEventNotification, payload), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", event.Topic, err)
	}
	return nil
}

// TaskHandler delivers queued events to the configured notifiers.
type TaskHandler struct {
	Notifiers []events.Notifier
	Logger    zerolog.Logger
}

// Register binds the handler on mux.
func (h TaskHandler) Register(mux *asynq.ServeMux) {
	mux.Handle(TypeEventNotification, h)
}

// ProcessTask implements asynq.Handler. Malformed payloads are not retried.
func (h TaskHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var event events.Event
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		observe("malformed")
		return fmt.Errorf("decode event: %v: %w", err, asynq.SkipRetry)
	}
	var joined error
	for _, n := range h.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			joined = errors.Join(joined, err)
		}
	}
	if joined != nil {
		observe("error")
		h.Logger.Warn().Err(joined).Str("topic", event.Topic).Str("aggregate_id", event.AggregateID).Msg("notification_failed")
		return joined
	}
	observe("sent")
	return nil
}

func observe(result string) {
	if obs.NotificationsTotal != nil {
		obs.NotificationsTotal.WithLabelValues(result).Inc()
	}
}
