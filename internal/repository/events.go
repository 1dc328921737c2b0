package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ticketing/internal/domain/bookings"
	domain "ticketing/internal/domain/events"
)

type EventsRepo struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
}

func NewEventsRepo(db *sqlx.DB, getter *trmsqlx.CtxGetter) *EventsRepo {
	return &EventsRepo{db: db, getter: getter}
}

func (r *EventsRepo) CreateEvent(ctx context.Context, event domain.Event) (uuid.UUID, error) {
	var id uuid.UUID

	query := `
		INSERT INTO events (
			name, category, venue, start_time, end_time
		) VALUES (
			$1, $2, $3, $4, $5
		) RETURNING id`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, query,
		event.Name,
		event.Category,
		event.Venue,
		event.StartTime,
		event.EndTime,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create event: %w", err)
	}

	return id, nil
}

func (r *EventsRepo) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	var event domain.Event

	query := `
		SELECT id, name, category, venue, start_time, end_time
		FROM events
		WHERE id = $1`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, query, id).
		Scan(&event.Id, &event.Name, &event.Category, &event.Venue, &event.StartTime, &event.EndTime)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

func (r *EventsRepo) CreateTicketType(ctx context.Context, tt domain.TicketType) (uuid.UUID, error) {
	var id uuid.UUID

	query := `
		INSERT INTO ticket_types (
			event_id, name, base_price, quantity, sold, is_active
		) VALUES (
			$1, $2, $3, $4, $5, $6
		) RETURNING id`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, query,
		tt.EventId,
		tt.Name,
		tt.BasePrice,
		tt.Quantity,
		tt.Sold,
		tt.IsActive,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create ticket type: %w", err)
	}

	return id, nil
}

func (r *EventsRepo) GetTicketType(ctx context.Context, id uuid.UUID) (domain.TicketType, error) {
	var tt domain.TicketType

	query := `
		SELECT id, event_id, name, base_price, quantity, sold, is_active
		FROM ticket_types
		WHERE id = $1`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, query, id).
		Scan(&tt.Id, &tt.EventId, &tt.Name, &tt.BasePrice, &tt.Quantity, &tt.Sold, &tt.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TicketType{}, domain.ErrTicketTypeNotFound
	}
	if err != nil {
		return domain.TicketType{}, fmt.Errorf("failed to get ticket type: %w", err)
	}

	return tt, nil
}

// ReserveSeats increments the sold counter of a ticket type only if the
// resulting value stays within capacity. The check and the increment are one
// conditional UPDATE, so concurrent reservations against the same type can
// never jointly exceed the quantity, regardless of how many processes run the
// booking path.
func (r *EventsRepo) ReserveSeats(ctx context.Context, ticketTypeID uuid.UUID, quantity int) error {
	tr := r.getter.DefaultTrOrDB(ctx, r.db)

	query := `
		UPDATE ticket_types
		SET sold = sold + $2
		WHERE id = $1
		  AND is_active
		  AND sold + $2 <= quantity`

	res, err := tr.ExecContext(ctx, query, ticketTypeID, quantity)
	if err != nil {
		return fmt.Errorf("failed to reserve seats: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read reserve result: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// The guarded update matched nothing; find out why.
	var isActive bool
	var quantityTotal, sold int
	err = tr.QueryRowxContext(ctx,
		`SELECT is_active, quantity, sold FROM ticket_types WHERE id = $1`, ticketTypeID).
		Scan(&isActive, &quantityTotal, &sold)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrTicketTypeNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to inspect ticket type: %w", err)
	}
	if !isActive {
		return bookings.ErrTicketTypeInactive
	}
	return bookings.ErrInsufficientInventory
}

// ReleaseSeats gives reserved inventory back after a cancellation. The guard
// keeps sold from going negative; hitting it means the decrement was applied
// more than once, which callers must treat as an invariant violation.
func (r *EventsRepo) ReleaseSeats(ctx context.Context, ticketTypeID uuid.UUID, quantity int) error {
	query := `
		UPDATE ticket_types
		SET sold = sold - $2
		WHERE id = $1
		  AND sold >= $2`

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, ticketTypeID, quantity)
	if err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read release result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("release of %d seats for ticket type %s would make sold negative", quantity, ticketTypeID)
	}
	return nil
}
