package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-checkout/internal/events"
)

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitFansOut(t *testing.T) {
	first := &captureNotifier{}
	second := &captureNotifier{}
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	bus := events.Bus{Notifiers: []events.Notifier{first, nil, second}, Now: func() time.Time { return now }}

	payload := events.OrderCompleted{OrderRef: "free_01", Email: "m@example.com", AmountPaid: 0}
	ev, err := bus.Emit(context.Background(), events.TopicOrderCompleted, "t1", "free_01", payload)
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)
	require.Equal(t, now, ev.OccurredAt)
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	require.Equal(t, ev.ID, second.events[0].ID)

	var decoded events.OrderCompleted
	require.NoError(t, json.Unmarshal(first.events[0].Payload, &decoded))
	require.Equal(t, "free_01", decoded.OrderRef)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	boom := errors.New("smtp down")
	capture := &captureNotifier{}
	bus := events.Bus{Notifiers: []events.Notifier{
		events.NotifierFunc(func(context.Context, events.Event) error { return boom }),
		capture,
	}}
	_, err := bus.Emit(context.Background(), events.TopicOrderCompleted, "t1", "ref", nil)
	require.ErrorIs(t, err, boom)
	require.Len(t, capture.events, 1, "later notifiers still run")
}

func TestEmitValidates(t *testing.T) {
	bus := events.Bus{}
	_, err := bus.Emit(context.Background(), " ", "t1", "ref", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCompleted, "t1", "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCompleted, "t1", "ref", []byte("{bad"))
	require.Error(t, err)
}
