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

type PaymentsRepo struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
}

func NewPaymentsRepo(db *sqlx.DB, getter *trmsqlx.CtxGetter) *PaymentsRepo {
	return &PaymentsRepo{db: db, getter: getter}
}

func (r *PaymentsRepo) Create(ctx context.Context, payment domain.Payment) (uuid.UUID, error) {
	var id uuid.UUID

	query := `
		INSERT INTO payments (
			booking_id, amount, status, payment_reference, checkout_url, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		) RETURNING id`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, query,
		payment.BookingId,
		payment.Amount,
		payment.Status,
		payment.PaymentReference,
		payment.CheckoutUrl,
		payment.CreatedAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create payment: %w", err)
	}

	return id, nil
}

func (r *PaymentsRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	var p domain.Payment

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, `
		SELECT id, booking_id, amount, status, payment_reference, checkout_url, created_at, paid_at,
		       reminder_sent, reminder_sent_at
		FROM payments
		WHERE id = $1`, id).
		Scan(&p.Id, &p.BookingId, &p.Amount, &p.Status, &p.PaymentReference,
			&p.CheckoutUrl, &p.CreatedAt, &p.PaidAt, &p.ReminderSent, &p.ReminderSentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &p, nil
}

func (r *PaymentsRepo) SetCheckoutUrl(ctx context.Context, id uuid.UUID, url string) error {
	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE payments
		SET checkout_url = $2
		WHERE id = $1`, id, url)
	if err != nil {
		return fmt.Errorf("failed to set checkout url: %w", err)
	}
	return nil
}

// ListPendingIDs selects payments the reconciliation sweep should look at:
// still pending themselves, with a parent booking that is still pending.
func (r *PaymentsRepo) ListPendingIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, `
		SELECT p.id
		FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		WHERE p.status = $1
		  AND b.status = $2
		ORDER BY p.created_at`, domain.PaymentPending, domain.BookingPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pending payment id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending payments: %w", err)
	}
	return ids, nil
}

// ListUnconfirmedPaidIDs selects payments already paid whose booking is still
// pending. This only happens when a confirmation crashed between the two
// conditional updates; the sweep finishes the job.
func (r *PaymentsRepo) ListUnconfirmedPaidIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, `
		SELECT p.id
		FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		WHERE p.status = $1
		  AND b.status = $2
		ORDER BY p.created_at`, domain.PaymentPaid, domain.BookingPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list unconfirmed paid payments: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan unconfirmed paid payment id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unconfirmed paid payments: %w", err)
	}
	return ids, nil
}

// MarkPaid moves a payment to its paid terminal state. The status guard keeps
// the transition monotone even when two sweeps race on the same row.
func (r *PaymentsRepo) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE payments
		SET status = $2,
		    paid_at = $3
		WHERE id = $1
		  AND status = $4`, id, domain.PaymentPaid, at, domain.PaymentPending)
	if err != nil {
		return 0, fmt.Errorf("failed to mark payment paid: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read mark paid result: %w", err)
	}
	return affected, nil
}

func (r *PaymentsRepo) MarkFailed(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE payments
		SET status = $2
		WHERE id = $1
		  AND status = $3`, id, domain.PaymentFailed, domain.PaymentPending)
	if err != nil {
		return 0, fmt.Errorf("failed to mark payment failed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read mark failed result: %w", err)
	}
	return affected, nil
}

func (r *PaymentsRepo) MarkFailedByBooking(ctx context.Context, bookingID uuid.UUID) error {
	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE payments
		SET status = $2
		WHERE booking_id = $1
		  AND status = $3`, bookingID, domain.PaymentFailed, domain.PaymentPending)
	if err != nil {
		return fmt.Errorf("failed to fail booking payments: %w", err)
	}
	return nil
}

// PaymentReminderRow is one pending, unexpired payment whose owner should be
// nudged to finish checkout.
type PaymentReminderRow struct {
	PaymentId uuid.UUID
	BookingId uuid.UUID
	UserId    uuid.UUID
	CreatedAt time.Time
}

func (r *PaymentsRepo) ListReminderCandidates(ctx context.Context, remindBefore, expiredAfter time.Time) ([]PaymentReminderRow, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, `
		SELECT p.id, p.booking_id, b.user_id, p.created_at
		FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		WHERE p.status = $1
		  AND b.status = $2
		  AND NOT p.reminder_sent
		  AND p.created_at <= $3
		  AND p.created_at > $4`,
		domain.PaymentPending, domain.BookingPending, remindBefore, expiredAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment reminder candidates: %w", err)
	}
	defer rows.Close()

	var out []PaymentReminderRow
	for rows.Next() {
		var row PaymentReminderRow
		if err := rows.Scan(&row.PaymentId, &row.BookingId, &row.UserId, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment reminder candidate: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment reminder candidates: %w", err)
	}
	return out, nil
}

func (r *PaymentsRepo) SetReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE payments
		SET reminder_sent = TRUE,
		    reminder_sent_at = $2
		WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to set payment reminder flag: %w", err)
	}
	return nil
}
