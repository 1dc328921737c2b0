package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ticketing/internal/application/usecases/booking"
	"ticketing/internal/application/usecases/catalog"
)

type Server struct {
	e    *echo.Echo
	addr string

	bookingsService *booking.Usecase
	catalogService  *catalog.Usecase
}

func NewServer(
	e *echo.Echo,
	addr string,
	bookingsService *booking.Usecase,
	catalogService *catalog.Usecase,
	routerIsRunning func() bool,
	logger zerolog.Logger,
) *Server {
	srv := &Server{
		e:               e,
		addr:            addr,
		bookingsService: bookingsService,
		catalogService:  catalogService,
	}

	e.POST("/book-tickets", srv.BookTicketsHandler)
	e.GET("/bookings/:booking_id", srv.GetBookingHandler)
	e.GET("/ticket-types/:ticket_type_id/quote", srv.QuoteHandler)

	e.POST("/events", srv.CreateEventHandler)
	e.POST("/ticket-types", srv.CreateTicketTypeHandler)
	e.POST("/pricing-rules", srv.CreatePricingRuleHandler)

	e.GET("/health", func(c echo.Context) error {
		if !routerIsRunning() {
			return c.String(http.StatusServiceUnavailable, "router is not running")
		}
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// logging middleware
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			logger.Info().
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("handling request")

			err := next(c)
			if err != nil {
				logger.Error().Err(err).
					Str("path", c.Request().URL.Path).
					Msg("request handling error")
			}

			return err
		}
	})

	return srv
}

func (s *Server) Start() error {
	err := s.e.Start(s.addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
