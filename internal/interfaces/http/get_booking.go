package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func (s *Server) GetBookingHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("booking_id is not a valid UUID"))
	}

	booking, err := s.bookingsService.GetBooking(c.Request().Context(), id)
	if err != nil {
		return bookingError(c, err)
	}

	return c.JSON(http.StatusOK, booking)
}
