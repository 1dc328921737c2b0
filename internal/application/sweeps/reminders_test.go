package sweeps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing/internal/entities"
	"ticketing/internal/observability"
	"ticketing/internal/repository"
)

type fakeReminderPayments struct {
	candidates []repository.PaymentReminderRow
	flagged    []uuid.UUID
}

func (r *fakeReminderPayments) ListReminderCandidates(_ context.Context, _, _ time.Time) ([]repository.PaymentReminderRow, error) {
	return r.candidates, nil
}

func (r *fakeReminderPayments) SetReminderSent(_ context.Context, id uuid.UUID, _ time.Time) error {
	r.flagged = append(r.flagged, id)
	return nil
}

type fakeReminderBookings struct {
	upcoming []repository.EventReminderRow
	feedback []repository.FeedbackRow
	flagged  []uuid.UUID
}

func (r *fakeReminderBookings) ListConfirmedForUpcomingEvents(_ context.Context, _, _ time.Time) ([]repository.EventReminderRow, error) {
	return r.upcoming, nil
}

func (r *fakeReminderBookings) ListFeedbackCandidates(_ context.Context, _ time.Time) ([]repository.FeedbackRow, error) {
	return r.feedback, nil
}

func (r *fakeReminderBookings) SetFeedbackReminderSent(_ context.Context, bookingID uuid.UUID, _ time.Time) error {
	r.flagged = append(r.flagged, bookingID)
	return nil
}

type fakeNotificationLog struct {
	claimed  map[string]bool
	released []string
}

func newFakeNotificationLog() *fakeNotificationLog {
	return &fakeNotificationLog{claimed: map[string]bool{}}
}

func (l *fakeNotificationLog) TryClaim(_ context.Context, key string) (bool, error) {
	if l.claimed[key] {
		return false, nil
	}
	l.claimed[key] = true
	return true, nil
}

func (l *fakeNotificationLog) Release(_ context.Context, key string) error {
	delete(l.claimed, key)
	l.released = append(l.released, key)
	return nil
}

type fakeBusPublisher struct {
	events []any
	err    error
}

func (p *fakeBusPublisher) Publish(_ context.Context, event any) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakeBusPublisher) notifications() []entities.NotificationRequested_v1 {
	var out []entities.NotificationRequested_v1
	for _, e := range p.events {
		if n, ok := e.(entities.NotificationRequested_v1); ok {
			out = append(out, n)
		}
	}
	return out
}

func newReminderScheduler(
	payments *fakeReminderPayments,
	bookingsRepo *fakeReminderBookings,
	log *fakeNotificationLog,
	pub *fakeBusPublisher,
	now time.Time,
) *ReminderScheduler {
	s := NewReminderScheduler(payments, bookingsRepo, log, pub, ReminderConfig{
		Interval:           time.Minute,
		PaymentRemindAfter: time.Hour,
		ExpirationWindow:   24 * time.Hour,
	}, observability.NewLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestSweepPaymentReminders(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("candidates get one reminder and the flag", func(t *testing.T) {
		row := repository.PaymentReminderRow{
			PaymentId: uuid.New(),
			BookingId: uuid.New(),
			UserId:    uuid.New(),
			CreatedAt: now.Add(-2 * time.Hour),
		}
		payments := &fakeReminderPayments{candidates: []repository.PaymentReminderRow{row}}
		pub := &fakeBusPublisher{}

		s := newReminderScheduler(payments, &fakeReminderBookings{}, newFakeNotificationLog(), pub, now)
		require.NoError(t, s.SweepPaymentReminders(ctx))

		notifications := pub.notifications()
		require.Len(t, notifications, 1)
		assert.Equal(t, entities.NotificationPaymentReminder, notifications[0].Type)
		assert.Equal(t, row.UserId, notifications[0].UserId)
		assert.Equal(t, []uuid.UUID{row.PaymentId}, payments.flagged)
	})

	t.Run("publish failure leaves the flag unset", func(t *testing.T) {
		payments := &fakeReminderPayments{candidates: []repository.PaymentReminderRow{{
			PaymentId: uuid.New(),
			BookingId: uuid.New(),
			UserId:    uuid.New(),
		}}}
		pub := &fakeBusPublisher{err: errors.New("broker down")}

		s := newReminderScheduler(payments, &fakeReminderBookings{}, newFakeNotificationLog(), pub, now)
		require.NoError(t, s.SweepPaymentReminders(ctx))

		assert.Empty(t, payments.flagged, "retried next cycle")
	})
}

func TestSweepEventReminders(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	row := repository.EventReminderRow{
		BookingId: uuid.New(),
		UserId:    uuid.New(),
		EventId:   uuid.New(),
		EventName: "Summer Gig",
		StartTime: now.Add(90 * time.Minute),
	}

	t.Run("repeated sweeps send each threshold once", func(t *testing.T) {
		bookingsRepo := &fakeReminderBookings{upcoming: []repository.EventReminderRow{row}}
		log := newFakeNotificationLog()
		pub := &fakeBusPublisher{}

		s := newReminderScheduler(&fakeReminderPayments{}, bookingsRepo, log, pub, now)
		require.NoError(t, s.SweepEventReminders(ctx))
		require.NoError(t, s.SweepEventReminders(ctx))
		require.NoError(t, s.SweepEventReminders(ctx))

		// The booking sits inside both the one day and the two hour windows,
		// so exactly one reminder per threshold.
		assert.Len(t, pub.notifications(), 2)
	})

	t.Run("claim is released when the publish fails", func(t *testing.T) {
		bookingsRepo := &fakeReminderBookings{upcoming: []repository.EventReminderRow{row}}
		log := newFakeNotificationLog()
		pub := &fakeBusPublisher{err: errors.New("broker down")}

		s := newReminderScheduler(&fakeReminderPayments{}, bookingsRepo, log, pub, now)
		require.NoError(t, s.SweepEventReminders(ctx))
		assert.Len(t, log.released, 2)

		// Broker back up: the next sweep delivers.
		pub.err = nil
		require.NoError(t, s.SweepEventReminders(ctx))
		assert.Len(t, pub.notifications(), 2)
	})
}

func TestSweepFeedbackReminders(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("asks for feedback and flags the booking", func(t *testing.T) {
		row := repository.FeedbackRow{
			BookingId: uuid.New(),
			UserId:    uuid.New(),
			EventId:   uuid.New(),
			EventName: "Summer Gig",
		}
		bookingsRepo := &fakeReminderBookings{feedback: []repository.FeedbackRow{row}}
		pub := &fakeBusPublisher{}

		s := newReminderScheduler(&fakeReminderPayments{}, bookingsRepo, newFakeNotificationLog(), pub, now)
		require.NoError(t, s.SweepFeedbackReminders(ctx))

		notifications := pub.notifications()
		require.Len(t, notifications, 1)
		assert.Equal(t, entities.NotificationFeedbackRequest, notifications[0].Type)
		assert.Equal(t, []uuid.UUID{row.BookingId}, bookingsRepo.flagged)
	})
}
