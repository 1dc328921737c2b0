package bookings

import "errors"

var (
	ErrInsufficientInventory = errors.New("not enough tickets available")
	ErrTicketTypeInactive    = errors.New("ticket type is not active")
	ErrSalesWindowClosed     = errors.New("ticket sales are closed for this event")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrPaymentNotFound       = errors.New("payment not found")
)
