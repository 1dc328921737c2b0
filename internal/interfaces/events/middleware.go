package events

import (
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func CorrelationIDMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		correlationID := msg.Metadata.Get("correlation_id")

		if correlationID == "" {
			correlationID = uuid.New().String()
			msg.Metadata.Set("correlation_id", correlationID)
		}

		return next(msg)
	}
}

func LoggingMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		logger := logrus.WithFields(logrus.Fields{
			"message_uuid":   msg.UUID,
			"correlation_id": msg.Metadata.Get("correlation_id"),
		})
		logger.Info("Handling a message")

		messages, err := next(msg)
		if err != nil {
			logger.WithField("error", err).Error("Message handling error")
		}

		return messages, err
	}
}

var ErrJsonUnmarshal = errors.New("json unmarshal error")

// SkipMarshallingErrorsMiddleware drops malformed messages instead of
// retrying them forever.
func SkipMarshallingErrorsMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		msgs, err := h(msg)

		if err != nil && errors.Is(err, ErrJsonUnmarshal) {
			logrus.WithField("error", err).Warn("Error while unmarshalling message")
			return nil, nil
		}

		return msgs, err
	}
}
