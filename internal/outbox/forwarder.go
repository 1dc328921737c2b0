package outbox

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	watermillSQL "github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Forwarder polls the outbox table and republishes committed messages to the
// redis stream the event processor consumes from.
type Forwarder struct {
	logger watermill.LoggerAdapter
	fwd    *forwarder.Forwarder
}

func NewForwarder(
	db *sqlx.DB,
	rdb *redis.Client,
	pollInterval time.Duration,
	logger watermill.LoggerAdapter,
) (*Forwarder, error) {
	subscriber, err := watermillSQL.NewSubscriber(
		db,
		watermillSQL.SubscriberConfig{
			SchemaAdapter:  watermillSQL.DefaultPostgreSQLSchema{},
			OffsetsAdapter: watermillSQL.DefaultPostgreSQLOffsetsAdapter{},
			PollInterval:   pollInterval,
			ResendInterval: pollInterval,
			RetryInterval:  pollInterval,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	if err := subscriber.SubscribeInitialize(Topic); err != nil {
		return nil, err
	}

	publisher, err := NewRedisPublisher(logger, rdb)
	if err != nil {
		return nil, err
	}

	fwd, err := forwarder.NewForwarder(subscriber, publisher,
		logger,
		forwarder.Config{
			ForwarderTopic: Topic,
		},
	)
	if err != nil {
		return nil, err
	}

	return &Forwarder{
		fwd:    fwd,
		logger: logger,
	}, nil
}

func (f *Forwarder) Run(ctx context.Context) error {
	return f.fwd.Run(ctx)
}

func (f *Forwarder) Running() chan struct{} {
	return f.fwd.Running()
}

func NewRedisPublisher(
	logger watermill.LoggerAdapter,
	redisClient *redis.Client,
) (message.Publisher, error) {
	return redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: redisClient,
	}, logger)
}
