package events

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrEventNotFound      = errors.New("event not found")
	ErrTicketTypeNotFound = errors.New("ticket type not found")
)

type Event struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Venue     string    `json:"venue"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// SalesOpen reports whether tickets for the event can still be sold.
// Sales close at the event start.
func (e Event) SalesOpen(now time.Time) bool {
	return now.Before(e.StartTime)
}

type TicketType struct {
	Id        uuid.UUID       `json:"id"`
	EventId   uuid.UUID       `json:"event_id"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"base_price"`
	Quantity  int             `json:"quantity"`
	Sold      int             `json:"sold"`
	IsActive  bool            `json:"is_active"`
}

// Available returns the number of unreserved seats for the type.
func (t TicketType) Available() int {
	return t.Quantity - t.Sold
}
