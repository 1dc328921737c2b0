package bookings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is the aggregate root of a purchase attempt. Bookings are never
// deleted; cancelled ones stay around as an audit trail.
type Booking struct {
	Id                     uuid.UUID       `json:"id"`
	EventId                uuid.UUID       `json:"event_id"`
	UserId                 uuid.UUID       `json:"user_id"`
	Status                 BookingStatus   `json:"status"`
	TotalAmount            decimal.Decimal `json:"total_amount"`
	IsFreeEvent            bool            `json:"is_free_event"`
	BookingDate            time.Time       `json:"booking_date"`
	FeedbackReminderSent   bool            `json:"feedback_reminder_sent"`
	FeedbackReminderSentAt *time.Time      `json:"feedback_reminder_sent_at,omitempty"`

	Tickets  []Ticket  `json:"tickets,omitempty"`
	Payments []Payment `json:"payments,omitempty"`
}
