package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
)

// DirectPublisher publishes straight to the message broker, bypassing the
// outbox. Use it only for emissions that own no database state transition.
type DirectPublisher struct {
	bus *cqrs.EventBus
}

func NewDirectPublisher(pub message.Publisher, logger watermill.LoggerAdapter) (*DirectPublisher, error) {
	bus, err := NewEventBus(pub, logger)
	if err != nil {
		return nil, err
	}
	return &DirectPublisher{bus: bus}, nil
}

func (p *DirectPublisher) Publish(ctx context.Context, event any) error {
	return p.bus.Publish(ctx, event)
}
