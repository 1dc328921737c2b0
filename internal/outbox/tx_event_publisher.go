package outbox

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"

	"ticketing/internal/interfaces/events"
)

// TxEventPublisher publishes events through the outbox using the transaction
// bound to the context. Publishing outside a transaction is a programming
// error.
type TxEventPublisher struct {
	getter *trmsqlx.CtxGetter
	logger watermill.LoggerAdapter
}

func NewTxEventPublisher(getter *trmsqlx.CtxGetter, logger watermill.LoggerAdapter) *TxEventPublisher {
	return &TxEventPublisher{getter: getter, logger: logger}
}

func (p *TxEventPublisher) Publish(ctx context.Context, event any) error {
	tr := p.getter.DefaultTrOrDB(ctx, nil)
	if tr == nil {
		return fmt.Errorf("no transaction in context")
	}

	publisher, err := NewPublisher(tr, p.logger)
	if err != nil {
		return fmt.Errorf("failed to create outbox publisher: %w", err)
	}

	eb, err := events.NewEventBus(publisher, p.logger)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}

	return eb.Publish(ctx, event)
}
