package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	edomain "ticketing/internal/domain/events"
	"ticketing/internal/domain/pricing"
)

type EventsRepo interface {
	CreateEvent(ctx context.Context, event edomain.Event) (uuid.UUID, error)
	GetEvent(ctx context.Context, id uuid.UUID) (edomain.Event, error)
	CreateTicketType(ctx context.Context, tt edomain.TicketType) (uuid.UUID, error)
	GetTicketType(ctx context.Context, id uuid.UUID) (edomain.TicketType, error)
}

type PricingRulesRepo interface {
	Create(ctx context.Context, rule pricing.Rule) (uuid.UUID, error)
}

// Usecase covers the organizer-facing catalog: events, their ticket types and
// the pricing rules attached to them.
type Usecase struct {
	eventsRepo EventsRepo
	rulesRepo  PricingRulesRepo
}

func NewUsecase(eventsRepo EventsRepo, rulesRepo PricingRulesRepo) *Usecase {
	return &Usecase{eventsRepo: eventsRepo, rulesRepo: rulesRepo}
}

type CreateEventRequest struct {
	Name      string
	Category  string
	Venue     string
	StartTime time.Time
	EndTime   time.Time
}

func (u *Usecase) CreateEvent(ctx context.Context, req CreateEventRequest) (uuid.UUID, error) {
	if req.Name == "" {
		return uuid.Nil, fmt.Errorf("event name is required")
	}
	if !req.EndTime.After(req.StartTime) {
		return uuid.Nil, fmt.Errorf("event end time must be after its start time")
	}

	return u.eventsRepo.CreateEvent(ctx, edomain.Event{
		Name:      req.Name,
		Category:  req.Category,
		Venue:     req.Venue,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
}

type CreateTicketTypeRequest struct {
	EventId   uuid.UUID
	Name      string
	BasePrice decimal.Decimal
	Quantity  int
}

func (u *Usecase) CreateTicketType(ctx context.Context, req CreateTicketTypeRequest) (uuid.UUID, error) {
	if req.Name == "" {
		return uuid.Nil, fmt.Errorf("ticket type name is required")
	}
	if req.BasePrice.IsNegative() {
		return uuid.Nil, fmt.Errorf("base price must not be negative")
	}
	if req.Quantity <= 0 {
		return uuid.Nil, fmt.Errorf("quantity must be positive")
	}

	if _, err := u.eventsRepo.GetEvent(ctx, req.EventId); err != nil {
		return uuid.Nil, err
	}

	return u.eventsRepo.CreateTicketType(ctx, edomain.TicketType{
		EventId:   req.EventId,
		Name:      req.Name,
		BasePrice: req.BasePrice,
		Quantity:  req.Quantity,
		IsActive:  true,
	})
}

type CreatePricingRuleRequest struct {
	TicketTypeId uuid.UUID
	Kind         pricing.Kind
}

func (u *Usecase) CreatePricingRule(ctx context.Context, req CreatePricingRuleRequest) (uuid.UUID, error) {
	if req.Kind == nil {
		return uuid.Nil, fmt.Errorf("pricing rule kind is required")
	}

	if _, err := u.eventsRepo.GetTicketType(ctx, req.TicketTypeId); err != nil {
		return uuid.Nil, err
	}

	return u.rulesRepo.Create(ctx, pricing.Rule{
		TicketTypeId: req.TicketTypeId,
		IsActive:     true,
		Kind:         req.Kind,
	})
}
