package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"ticketing/internal/application/usecases/booking"
	domain "ticketing/internal/domain/bookings"
	edomain "ticketing/internal/domain/events"
)

type BookTicketsRequest struct {
	EventId uuid.UUID           `json:"event_id"`
	UserId  uuid.UUID           `json:"user_id"`
	Tickets []TicketItemRequest `json:"tickets"`
}

type TicketItemRequest struct {
	TicketTypeId uuid.UUID `json:"ticket_type_id"`
	Quantity     int       `json:"quantity"`
	HolderName   string    `json:"holder_name"`
	HolderPhone  string    `json:"holder_phone"`
}

type BookTicketsResponse struct {
	BookingId   uuid.UUID        `json:"booking_id"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	IsFree      bool             `json:"is_free"`
	CheckoutUrl string           `json:"checkout_url,omitempty"`
	Tickets     []TicketResponse `json:"tickets"`
}

type TicketResponse struct {
	TicketId uuid.UUID       `json:"ticket_id"`
	QrCode   string          `json:"qr_code"`
	Price    decimal.Decimal `json:"price"`
	Status   string          `json:"status"`
}

func (s *Server) BookTicketsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var request BookTicketsRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if len(request.Tickets) == 0 {
		return c.JSON(http.StatusBadRequest, errorBody("at least one ticket is required"))
	}

	items := make([]booking.TicketRequest, 0, len(request.Tickets))
	for _, t := range request.Tickets {
		items = append(items, booking.TicketRequest{
			TicketTypeId: t.TicketTypeId,
			Quantity:     t.Quantity,
			HolderName:   t.HolderName,
			HolderPhone:  t.HolderPhone,
		})
	}

	b, err := s.bookingsService.CreateBooking(ctx, booking.CreateBookingRequest{
		EventId: request.EventId,
		UserId:  request.UserId,
		Tickets: items,
	})
	if err != nil {
		return bookingError(c, err)
	}

	response := BookTicketsResponse{
		BookingId:   b.Id,
		TotalAmount: b.TotalAmount,
		IsFree:      b.IsFreeEvent,
		Tickets:     make([]TicketResponse, 0, len(b.Tickets)),
	}
	if len(b.Payments) > 0 {
		response.CheckoutUrl = b.Payments[0].CheckoutUrl
	}
	for _, t := range b.Tickets {
		response.Tickets = append(response.Tickets, TicketResponse{
			TicketId: t.Id,
			QrCode:   t.QrCode,
			Price:    t.Price,
			Status:   string(t.Status),
		})
	}

	return c.JSON(http.StatusCreated, response)
}

func bookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInsufficientInventory):
		return c.JSON(http.StatusConflict, errorBody("not enough tickets available"))
	case errors.Is(err, domain.ErrTicketTypeInactive):
		return c.JSON(http.StatusUnprocessableEntity, errorBody("ticket type is not on sale"))
	case errors.Is(err, domain.ErrSalesWindowClosed):
		return c.JSON(http.StatusUnprocessableEntity, errorBody("sales for this event are closed"))
	case errors.Is(err, edomain.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, errorBody("event not found"))
	case errors.Is(err, edomain.ErrTicketTypeNotFound):
		return c.JSON(http.StatusNotFound, errorBody("ticket type not found"))
	case errors.Is(err, domain.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, errorBody("booking not found"))
	default:
		return err
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
