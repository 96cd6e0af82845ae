package events

import (
	"context"
	"fmt"
)

// BusSink publishes poll output onto an EventBus. Variables become an
// EventVariablesUpdated event and every alert is emitted as itself. Both
// wait for the subscribers so storage and telemetry see events in order.
type BusSink struct {
	Bus    *EventBus
	Source string
}

// NewBusSink creates a sink that emits on bus with the given source tag.
func NewBusSink(bus *EventBus, source string) *BusSink {
	return &BusSink{Bus: bus, Source: source}
}

// PublishVariables emits the latest variables.
func (s *BusSink) PublishVariables(ctx context.Context, vars Variables) error {
	err := s.Bus.EmitSync(ctx, Event{
		Type:    EventVariablesUpdated,
		Source:  s.Source,
		Payload: VariablesPayload{Variables: vars},
	})
	if err != nil {
		return fmt.Errorf("publish variables: %w", err)
	}
	return nil
}

// PublishAlert emits one lifecycle event.
func (s *BusSink) PublishAlert(ctx context.Context, event Event) error {
	if event.Source == "" {
		event.Source = s.Source
	}
	if err := s.Bus.EmitSync(ctx, event); err != nil {
		return fmt.Errorf("publish %s alert: %w", event.Type, err)
	}
	return nil
}
