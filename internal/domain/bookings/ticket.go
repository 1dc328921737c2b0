package bookings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketReserved  TicketStatus = "reserved"
	TicketCheckedIn TicketStatus = "checked_in"
	TicketCancelled TicketStatus = "cancelled"
)

// Ticket carries the price snapshot taken when it was reserved. Prices are
// never recomputed retroactively. The QR code is minted once and never reused.
type Ticket struct {
	Id           uuid.UUID       `json:"id"`
	BookingId    uuid.UUID       `json:"booking_id"`
	TicketTypeId uuid.UUID       `json:"ticket_type_id"`
	HolderName   string          `json:"holder_name"`
	HolderPhone  string          `json:"holder_phone"`
	Price        decimal.Decimal `json:"price"`
	Status       TicketStatus    `json:"status"`
	QrCode       string          `json:"qr_code"`
	CreatedAt    time.Time       `json:"created_at"`
}
