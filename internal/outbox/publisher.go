package outbox

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	watermillSQL "github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"

	"ticketing/internal/observability"
)

const Topic = "events_to_forward"

// NewPublisher writes messages into the outbox table using the transaction the
// caller is already in, so a notification request commits or rolls back
// together with the state transition that produced it.
func NewPublisher(
	tx watermillSQL.ContextExecutor,
	logger watermill.LoggerAdapter,
) (message.Publisher, error) {
	publisher, err := watermillSQL.NewPublisher(
		tx,
		watermillSQL.PublisherConfig{
			SchemaAdapter: watermillSQL.DefaultPostgreSQLSchema{},
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox publisher: %w", err)
	}

	tracedPublisher := observability.PublisherWithTracing{Publisher: publisher}

	return forwarder.NewPublisher(tracedPublisher, forwarder.PublisherConfig{
		ForwarderTopic: Topic,
	}), nil
}
