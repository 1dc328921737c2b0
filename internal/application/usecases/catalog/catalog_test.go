package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	edomain "ticketing/internal/domain/events"
	"ticketing/internal/domain/pricing"
)

type fakeEventsRepo struct {
	events map[uuid.UUID]edomain.Event
	types  map[uuid.UUID]edomain.TicketType
}

func newFakeEventsRepo() *fakeEventsRepo {
	return &fakeEventsRepo{
		events: map[uuid.UUID]edomain.Event{},
		types:  map[uuid.UUID]edomain.TicketType{},
	}
}

func (r *fakeEventsRepo) CreateEvent(_ context.Context, event edomain.Event) (uuid.UUID, error) {
	event.Id = uuid.New()
	r.events[event.Id] = event
	return event.Id, nil
}

func (r *fakeEventsRepo) GetEvent(_ context.Context, id uuid.UUID) (edomain.Event, error) {
	event, ok := r.events[id]
	if !ok {
		return edomain.Event{}, edomain.ErrEventNotFound
	}
	return event, nil
}

func (r *fakeEventsRepo) CreateTicketType(_ context.Context, tt edomain.TicketType) (uuid.UUID, error) {
	tt.Id = uuid.New()
	r.types[tt.Id] = tt
	return tt.Id, nil
}

func (r *fakeEventsRepo) GetTicketType(_ context.Context, id uuid.UUID) (edomain.TicketType, error) {
	tt, ok := r.types[id]
	if !ok {
		return edomain.TicketType{}, edomain.ErrTicketTypeNotFound
	}
	return tt, nil
}

type fakeRulesRepo struct {
	rules []pricing.Rule
}

func (r *fakeRulesRepo) Create(_ context.Context, rule pricing.Rule) (uuid.UUID, error) {
	rule.Id = uuid.New()
	r.rules = append(r.rules, rule)
	return rule.Id, nil
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create event validates the time window", func(t *testing.T) {
		uc := NewUsecase(newFakeEventsRepo(), &fakeRulesRepo{})

		_, err := uc.CreateEvent(ctx, CreateEventRequest{
			Name:      "Summer Gig",
			StartTime: now,
			EndTime:   now,
		})
		assert.Error(t, err)

		id, err := uc.CreateEvent(ctx, CreateEventRequest{
			Name:      "Summer Gig",
			Venue:     "Main Hall",
			StartTime: now,
			EndTime:   now.Add(2 * time.Hour),
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
	})

	t.Run("ticket type requires an existing event", func(t *testing.T) {
		uc := NewUsecase(newFakeEventsRepo(), &fakeRulesRepo{})

		_, err := uc.CreateTicketType(ctx, CreateTicketTypeRequest{
			EventId:   uuid.New(),
			Name:      "General",
			BasePrice: decimal.RequireFromString("50.00"),
			Quantity:  100,
		})
		assert.ErrorIs(t, err, edomain.ErrEventNotFound)
	})

	t.Run("ticket type rejects bad input", func(t *testing.T) {
		events := newFakeEventsRepo()
		uc := NewUsecase(events, &fakeRulesRepo{})
		eventID, err := uc.CreateEvent(ctx, CreateEventRequest{
			Name: "Summer Gig", StartTime: now, EndTime: now.Add(time.Hour),
		})
		require.NoError(t, err)

		_, err = uc.CreateTicketType(ctx, CreateTicketTypeRequest{
			EventId: eventID, Name: "General",
			BasePrice: decimal.RequireFromString("-1"), Quantity: 10,
		})
		assert.Error(t, err)

		_, err = uc.CreateTicketType(ctx, CreateTicketTypeRequest{
			EventId: eventID, Name: "General",
			BasePrice: decimal.RequireFromString("10.00"), Quantity: 0,
		})
		assert.Error(t, err)
	})

	t.Run("pricing rule requires an existing ticket type", func(t *testing.T) {
		events := newFakeEventsRepo()
		rules := &fakeRulesRepo{}
		uc := NewUsecase(events, rules)

		kind, err := pricing.NewLastMinute(decimal.NewFromInt(10), 3)
		require.NoError(t, err)

		_, err = uc.CreatePricingRule(ctx, CreatePricingRuleRequest{
			TicketTypeId: uuid.New(),
			Kind:         kind,
		})
		assert.ErrorIs(t, err, edomain.ErrTicketTypeNotFound)

		eventID, err := uc.CreateEvent(ctx, CreateEventRequest{
			Name: "Summer Gig", StartTime: now, EndTime: now.Add(time.Hour),
		})
		require.NoError(t, err)
		ttID, err := uc.CreateTicketType(ctx, CreateTicketTypeRequest{
			EventId: eventID, Name: "General",
			BasePrice: decimal.RequireFromString("10.00"), Quantity: 10,
		})
		require.NoError(t, err)

		id, err := uc.CreatePricingRule(ctx, CreatePricingRuleRequest{
			TicketTypeId: ttID,
			Kind:         kind,
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
		require.Len(t, rules.rules, 1)
		assert.True(t, rules.rules[0].IsActive)
	})
}
