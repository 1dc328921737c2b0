package entities

import (
	"time"

	"github.com/google/uuid"
)

// Notification types understood by the notification service.
const (
	NotificationBookingConfirmed = "booking_confirmed"
	NotificationBookingCancelled = "booking_cancelled"
	NotificationPaymentReminder  = "payment_reminder"
	NotificationEventReminder    = "event_reminder"
	NotificationFeedbackRequest  = "feedback_request"
)

// NotificationRequested_v1 asks the notification service to deliver one
// message to one user. Delivery is fire-and-forget from the emitter's point
// of view; the reference key, when set, deduplicates repeated requests.
type NotificationRequested_v1 struct {
	Header EventHeader `json:"header"`

	UserId       uuid.UUID `json:"user_id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Type         string    `json:"type"`
	ReferenceKey string    `json:"reference_key,omitempty"`
}

// BookingConfirmed_v1 is emitted when a booking reaches its confirmed state,
// either on a free-event booking or after payment reconciliation.
type BookingConfirmed_v1 struct {
	Header EventHeader `json:"header"`

	BookingId   uuid.UUID `json:"booking_id"`
	EventId     uuid.UUID `json:"event_id"`
	UserId      uuid.UUID `json:"user_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// BookingCancelled_v1 is emitted when a booking is cancelled and its reserved
// inventory has been released.
type BookingCancelled_v1 struct {
	Header EventHeader `json:"header"`

	BookingId   uuid.UUID `json:"booking_id"`
	EventId     uuid.UUID `json:"event_id"`
	UserId      uuid.UUID `json:"user_id"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}
