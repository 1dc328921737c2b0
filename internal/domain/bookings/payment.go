package bookings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment tracks one attempt to collect money for a booking. Status moves
// pending → paid or pending → failed, never out of a terminal state. The
// PaymentReference is the idempotency key for every gateway call.
type Payment struct {
	Id               uuid.UUID       `json:"id"`
	BookingId        uuid.UUID       `json:"booking_id"`
	Amount           decimal.Decimal `json:"amount"`
	Status           PaymentStatus   `json:"status"`
	PaymentReference string          `json:"payment_reference"`
	CheckoutUrl      string          `json:"checkout_url,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	ReminderSent     bool            `json:"reminder_sent"`
	ReminderSentAt   *time.Time      `json:"reminder_sent_at,omitempty"`
}

// Expired reports whether the payment has been pending longer than the window.
func (p Payment) Expired(now time.Time, window time.Duration) bool {
	return p.Status == PaymentPending && now.Sub(p.CreatedAt) > window
}
