package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type QuoteResponse struct {
	TicketTypeId uuid.UUID       `json:"ticket_type_id"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// QuoteHandler returns the price the pricing engine would charge right now.
// Nothing is reserved; the quote is not a hold.
func (s *Server) QuoteHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("ticket_type_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("ticket_type_id is not a valid UUID"))
	}

	price, err := s.bookingsService.Quote(c.Request().Context(), id)
	if err != nil {
		return bookingError(c, err)
	}

	return c.JSON(http.StatusOK, QuoteResponse{
		TicketTypeId: id,
		CurrentPrice: price,
	})
}
