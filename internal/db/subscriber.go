package db

import (
	"context"

	"github.com/energizer-project/pulse/internal/events"
)

const subscriberName = "store"

// Attach subscribes the store to the bus: variable updates are upserted
// and every lifecycle alert is appended to the history.
func (s *Store) Attach(bus *events.EventBus) {
	bus.Subscribe(events.EventVariablesUpdated, subscriberName, func(ctx context.Context, e events.Event) error {
		p, ok := e.Payload.(events.VariablesPayload)
		if !ok {
			return nil
		}
		return s.SetVariables(ctx, p.Variables)
	})

	bus.SubscribeMany(events.AlertTypes, subscriberName, func(ctx context.Context, e events.Event) error {
		_, err := s.RecordAlert(ctx, e)
		return err
	})
}
