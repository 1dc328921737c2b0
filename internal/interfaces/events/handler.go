package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"ticketing/internal/entities"
	"ticketing/internal/infrastructure/clients"
	"ticketing/internal/observability"
)

type NotificationService interface {
	Send(ctx context.Context, req clients.SendNotificationRequest) error
}

// SendNotificationHandler delivers notification requests to the notification
// service. Failures bubble up to the router's retry middleware; the state
// transition that produced the request has long since committed.
func SendNotificationHandler(
	notificationsClient NotificationService,
) cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"send_notification_handler",
		func(ctx context.Context, payload *entities.NotificationRequested_v1) error {
			err := notificationsClient.Send(ctx, clients.SendNotificationRequest{
				UserId:       payload.UserId,
				Title:        payload.Title,
				Body:         payload.Body,
				Type:         payload.Type,
				ReferenceKey: payload.ReferenceKey,
			})
			if err != nil {
				return err
			}

			observability.NotificationsEnqueued.WithLabelValues(payload.Type).Inc()
			return nil
		},
	)
}
