package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"ticketing/internal/application/usecases/catalog"
	"ticketing/internal/domain/pricing"
)

type CreateEventRequest struct {
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Venue     string    `json:"venue"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type CreatedResponse struct {
	Id uuid.UUID `json:"id"`
}

func (s *Server) CreateEventHandler(c echo.Context) error {
	var request CreateEventRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	id, err := s.catalogService.CreateEvent(c.Request().Context(), catalog.CreateEventRequest{
		Name:      request.Name,
		Category:  request.Category,
		Venue:     request.Venue,
		StartTime: request.StartTime,
		EndTime:   request.EndTime,
	})
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}

	return c.JSON(http.StatusCreated, CreatedResponse{Id: id})
}

type CreateTicketTypeRequest struct {
	EventId   uuid.UUID       `json:"event_id"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"base_price"`
	Quantity  int             `json:"quantity"`
}

func (s *Server) CreateTicketTypeHandler(c echo.Context) error {
	var request CreateTicketTypeRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	id, err := s.catalogService.CreateTicketType(c.Request().Context(), catalog.CreateTicketTypeRequest{
		EventId:   request.EventId,
		Name:      request.Name,
		BasePrice: request.BasePrice,
		Quantity:  request.Quantity,
	})
	if err != nil {
		return bookingError(c, err)
	}

	return c.JSON(http.StatusCreated, CreatedResponse{Id: id})
}

type CreatePricingRuleRequest struct {
	TicketTypeId uuid.UUID `json:"ticket_type_id"`
	RuleType     string    `json:"rule_type"`

	DiscountPercent  decimal.Decimal `json:"discount_percent"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	DaysBeforeEvent  int             `json:"days_before_event"`
	ThresholdPercent decimal.Decimal `json:"threshold_percent"`
	IncreasePercent  decimal.Decimal `json:"increase_percent"`
}

func (s *Server) CreatePricingRuleHandler(c echo.Context) error {
	var request CreatePricingRuleRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	var (
		kind pricing.Kind
		err  error
	)
	switch request.RuleType {
	case pricing.KindEarlyBird:
		kind, err = pricing.NewEarlyBird(request.DiscountPercent, request.StartDate, request.EndDate)
	case pricing.KindLastMinute:
		kind, err = pricing.NewLastMinute(request.DiscountPercent, request.DaysBeforeEvent)
	case pricing.KindDemandBased:
		kind, err = pricing.NewDemandBased(request.ThresholdPercent, request.IncreasePercent)
	default:
		return c.JSON(http.StatusBadRequest, errorBody("unknown rule_type"))
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}

	id, err := s.catalogService.CreatePricingRule(c.Request().Context(), catalog.CreatePricingRuleRequest{
		TicketTypeId: request.TicketTypeId,
		Kind:         kind,
	})
	if err != nil {
		return bookingError(c, err)
	}

	return c.JSON(http.StatusCreated, CreatedResponse{Id: id})
}
