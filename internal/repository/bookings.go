package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	domain "ticketing/internal/domain/bookings"
)

type BookingsRepo struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
}

func NewBookingsRepo(db *sqlx.DB, getter *trmsqlx.CtxGetter) *BookingsRepo {
	return &BookingsRepo{db: db, getter: getter}
}

func (r *BookingsRepo) CreateBooking(ctx context.Context, booking domain.Booking) (uuid.UUID, error) {
	var id uuid.UUID

	query := `
		INSERT INTO bookings (
			event_id, user_id, status, total_amount, is_free_event, booking_date
		) VALUES (
			$1, $2, $3, $4, $5, $6
		) RETURNING id`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, query,
		booking.EventId,
		booking.UserId,
		booking.Status,
		booking.TotalAmount,
		booking.IsFreeEvent,
		booking.BookingDate,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create booking: %w", err)
	}

	return id, nil
}

func (r *BookingsRepo) InsertTickets(ctx context.Context, tickets []domain.Ticket) error {
	tr := r.getter.DefaultTrOrDB(ctx, r.db)

	query := `
		INSERT INTO tickets (
			booking_id, ticket_type_id, holder_name, holder_phone, price, status, qr_code, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		) RETURNING id`

	for i := range tickets {
		err := tr.QueryRowxContext(ctx, query,
			tickets[i].BookingId,
			tickets[i].TicketTypeId,
			tickets[i].HolderName,
			tickets[i].HolderPhone,
			tickets[i].Price,
			tickets[i].Status,
			tickets[i].QrCode,
			tickets[i].CreatedAt,
		).Scan(&tickets[i].Id)
		if err != nil {
			return fmt.Errorf("failed to insert ticket: %w", err)
		}
	}
	return nil
}

func (r *BookingsRepo) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	tr := r.getter.DefaultTrOrDB(ctx, r.db)

	var booking domain.Booking
	err := tr.QueryRowxContext(ctx, `
		SELECT id, event_id, user_id, status, total_amount, is_free_event, booking_date,
		       feedback_reminder_sent, feedback_reminder_sent_at
		FROM bookings
		WHERE id = $1`, id).
		Scan(&booking.Id, &booking.EventId, &booking.UserId, &booking.Status,
			&booking.TotalAmount, &booking.IsFreeEvent, &booking.BookingDate,
			&booking.FeedbackReminderSent, &booking.FeedbackReminderSentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	ticketRows, err := tr.QueryxContext(ctx, `
		SELECT id, booking_id, ticket_type_id, holder_name, holder_phone, price, status, qr_code, created_at
		FROM tickets
		WHERE booking_id = $1
		ORDER BY created_at`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list booking tickets: %w", err)
	}
	defer ticketRows.Close()

	for ticketRows.Next() {
		var t domain.Ticket
		if err := ticketRows.Scan(&t.Id, &t.BookingId, &t.TicketTypeId, &t.HolderName,
			&t.HolderPhone, &t.Price, &t.Status, &t.QrCode, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		booking.Tickets = append(booking.Tickets, t)
	}
	if err := ticketRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}

	paymentRows, err := tr.QueryxContext(ctx, `
		SELECT id, booking_id, amount, status, payment_reference, checkout_url, created_at, paid_at,
		       reminder_sent, reminder_sent_at
		FROM payments
		WHERE booking_id = $1
		ORDER BY created_at`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list booking payments: %w", err)
	}
	defer paymentRows.Close()

	for paymentRows.Next() {
		var p domain.Payment
		if err := paymentRows.Scan(&p.Id, &p.BookingId, &p.Amount, &p.Status, &p.PaymentReference,
			&p.CheckoutUrl, &p.CreatedAt, &p.PaidAt, &p.ReminderSent, &p.ReminderSentAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		booking.Payments = append(booking.Payments, p)
	}
	if err := paymentRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}

	return &booking, nil
}

// UpdateBookingStatus flips a booking from one status to another and reports
// how many rows changed. Zero means the booking was not in the expected status
// anymore; callers rely on that for idempotence.
func (r *BookingsRepo) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) (int64, error) {
	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE bookings
		SET status = $3
		WHERE id = $1
		  AND status = $2`, id, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to update booking status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read booking status update result: %w", err)
	}
	return affected, nil
}

// ReservedTicketCounts returns how many still-reserved tickets the booking
// holds per ticket type. Used to release exactly the right amount of
// inventory on cancellation.
func (r *BookingsRepo) ReservedTicketCounts(ctx context.Context, bookingID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, `
		SELECT ticket_type_id, COUNT(*)
		FROM tickets
		WHERE booking_id = $1
		  AND status = $2
		GROUP BY ticket_type_id`, bookingID, domain.TicketReserved)
	if err != nil {
		return nil, fmt.Errorf("failed to count reserved tickets: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var ticketTypeID uuid.UUID
		var count int
		if err := rows.Scan(&ticketTypeID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan reserved ticket count: %w", err)
		}
		counts[ticketTypeID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reserved ticket counts: %w", err)
	}
	return counts, nil
}

func (r *BookingsRepo) CancelReservedTickets(ctx context.Context, bookingID uuid.UUID) error {
	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE tickets
		SET status = $3
		WHERE booking_id = $1
		  AND status = $2`, bookingID, domain.TicketReserved, domain.TicketCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel reserved tickets: %w", err)
	}
	return nil
}

// ListExpiredPendingIDs selects bookings whose payment never completed within
// the deadline: still pending, older than the cutoff, and with no paid payment.
func (r *BookingsRepo) ListExpiredPendingIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, `
		SELECT b.id
		FROM bookings b
		WHERE b.status = $1
		  AND b.booking_date <= $2
		  AND NOT EXISTS (
			SELECT 1 FROM payments p
			WHERE p.booking_id = b.id AND p.status = $3
		  )
		ORDER BY b.booking_date`, domain.BookingPending, cutoff, domain.PaymentPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired bookings: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expired booking id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired bookings: %w", err)
	}
	return ids, nil
}

// EventReminderRow is one confirmed booking of an event approaching its start.
type EventReminderRow struct {
	BookingId uuid.UUID
	UserId    uuid.UUID
	EventId   uuid.UUID
	EventName string
	StartTime time.Time
}

func (r *BookingsRepo) ListConfirmedForUpcomingEvents(ctx context.Context, from, to time.Time) ([]EventReminderRow, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, `
		SELECT b.id, b.user_id, e.id, e.name, e.start_time
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		WHERE b.status = $1
		  AND e.start_time > $2
		  AND e.start_time <= $3`, domain.BookingConfirmed, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming event bookings: %w", err)
	}
	defer rows.Close()

	var out []EventReminderRow
	for rows.Next() {
		var row EventReminderRow
		if err := rows.Scan(&row.BookingId, &row.UserId, &row.EventId, &row.EventName, &row.StartTime); err != nil {
			return nil, fmt.Errorf("failed to scan upcoming event booking: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate upcoming event bookings: %w", err)
	}
	return out, nil
}

// FeedbackRow is one confirmed booking of an event that already ended and has
// not received a feedback request yet.
type FeedbackRow struct {
	BookingId uuid.UUID
	UserId    uuid.UUID
	EventId   uuid.UUID
	EventName string
}

func (r *BookingsRepo) ListFeedbackCandidates(ctx context.Context, now time.Time) ([]FeedbackRow, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, `
		SELECT b.id, b.user_id, e.id, e.name
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		WHERE b.status = $1
		  AND e.end_time < $2
		  AND NOT b.feedback_reminder_sent`, domain.BookingConfirmed, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback candidates: %w", err)
	}
	defer rows.Close()

	var out []FeedbackRow
	for rows.Next() {
		var row FeedbackRow
		if err := rows.Scan(&row.BookingId, &row.UserId, &row.EventId, &row.EventName); err != nil {
			return nil, fmt.Errorf("failed to scan feedback candidate: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback candidates: %w", err)
	}
	return out, nil
}

func (r *BookingsRepo) SetFeedbackReminderSent(ctx context.Context, bookingID uuid.UUID, at time.Time) error {
	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE bookings
		SET feedback_reminder_sent = TRUE,
		    feedback_reminder_sent_at = $2
		WHERE id = $1`, bookingID, at)
	if err != nil {
		return fmt.Errorf("failed to set feedback reminder flag: %w", err)
	}
	return nil
}
