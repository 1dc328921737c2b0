package sweeps

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ticketing/internal/entities"
	"ticketing/internal/observability"
	"ticketing/internal/repository"
)

type ReminderPaymentsRepo interface {
	ListReminderCandidates(ctx context.Context, remindBefore, expiredAfter time.Time) ([]repository.PaymentReminderRow, error)
	SetReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

type ReminderBookingsRepo interface {
	ListConfirmedForUpcomingEvents(ctx context.Context, from, to time.Time) ([]repository.EventReminderRow, error)
	ListFeedbackCandidates(ctx context.Context, now time.Time) ([]repository.FeedbackRow, error)
	SetFeedbackReminderSent(ctx context.Context, bookingID uuid.UUID, at time.Time) error
}

type NotificationLog interface {
	TryClaim(ctx context.Context, referenceKey string) (bool, error)
	Release(ctx context.Context, referenceKey string) error
}

// Publisher is the direct (non-transactional) event bus; reminder emission is
// best-effort and owns no other state transition.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

type ReminderConfig struct {
	Interval           time.Duration
	PaymentRemindAfter time.Duration
	ExpirationWindow   time.Duration
}

type eventThreshold struct {
	within time.Duration
	label  string
}

// Thresholds before the event start at which attendees get a reminder, one
// reminder per threshold per booking.
var eventThresholds = []eventThreshold{
	{within: 24 * time.Hour, label: "ONE_DAY"},
	{within: 2 * time.Hour, label: "TWO_HOURS"},
}

// ReminderScheduler runs three independent periodic scans: payment pending
// too long, event imminent, event ended. All three share the same guard
// pattern: a per-entity flag or a deterministic reference key makes delivery
// at-most-once per threshold, and the guard is only set after a successful
// emit so failures retry next cycle.
type ReminderScheduler struct {
	payments  ReminderPaymentsRepo
	bookings  ReminderBookingsRepo
	log       NotificationLog
	publisher Publisher
	cfg       ReminderConfig
	logger    zerolog.Logger

	now func() time.Time
}

func NewReminderScheduler(
	payments ReminderPaymentsRepo,
	bookings ReminderBookingsRepo,
	log NotificationLog,
	publisher Publisher,
	cfg ReminderConfig,
	logger zerolog.Logger,
) *ReminderScheduler {
	return &ReminderScheduler{
		payments:  payments,
		bookings:  bookings,
		log:       log,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *ReminderScheduler) RunPaymentReminders(ctx context.Context) error {
	return s.runLoop(ctx, "payment_reminders", s.SweepPaymentReminders)
}

func (s *ReminderScheduler) RunEventReminders(ctx context.Context) error {
	return s.runLoop(ctx, "event_reminders", s.SweepEventReminders)
}

func (s *ReminderScheduler) RunFeedbackReminders(ctx context.Context) error {
	return s.runLoop(ctx, "feedback_reminders", s.SweepFeedbackReminders)
}

func (s *ReminderScheduler) runLoop(ctx context.Context, name string, sweep func(context.Context) error) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := sweep(ctx); err != nil {
				s.logger.Error().Err(err).Str("sweep", name).Msg("reminder sweep failed")
			}
			observability.SweepCycles.WithLabelValues(name).Inc()
		}
	}
}

// SweepPaymentReminders nudges users whose payment has been pending for a
// while but is not expired yet.
func (s *ReminderScheduler) SweepPaymentReminders(ctx context.Context) error {
	now := s.now()

	rows, err := s.payments.ListReminderCandidates(ctx,
		now.Add(-s.cfg.PaymentRemindAfter),
		now.Add(-s.cfg.ExpirationWindow),
	)
	if err != nil {
		return err
	}

	for _, row := range rows {
		err := s.publisher.Publish(ctx, entities.NotificationRequested_v1{
			Header:       entities.NewEventHeaderWithIdempotencyKey("PAYMENT:" + row.PaymentId.String()),
			UserId:       row.UserId,
			Title:        "Complete your payment",
			Body:         fmt.Sprintf("Your booking %s is waiting for payment.", row.BookingId),
			Type:         entities.NotificationPaymentReminder,
			ReferenceKey: "PAYMENT:" + row.PaymentId.String(),
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("payment_id", row.PaymentId.String()).Msg("failed to emit payment reminder")
			continue
		}

		// Flag only after the emit succeeded; a failed emit retries next cycle.
		if err := s.payments.SetReminderSent(ctx, row.PaymentId, now); err != nil {
			s.logger.Error().Err(err).Str("payment_id", row.PaymentId.String()).Msg("failed to flag payment reminder")
		}
	}
	return nil
}

// SweepEventReminders tells confirmed attendees their event is coming up.
func (s *ReminderScheduler) SweepEventReminders(ctx context.Context) error {
	now := s.now()

	for _, threshold := range eventThresholds {
		rows, err := s.bookings.ListConfirmedForUpcomingEvents(ctx, now, now.Add(threshold.within))
		if err != nil {
			return err
		}

		for _, row := range rows {
			key := fmt.Sprintf("EVENT:%s:BOOKING:%s:%s", row.EventId, row.BookingId, threshold.label)

			claimed, err := s.log.TryClaim(ctx, key)
			if err != nil {
				return err
			}
			if !claimed {
				continue
			}

			err = s.publisher.Publish(ctx, entities.NotificationRequested_v1{
				Header:       entities.NewEventHeaderWithIdempotencyKey(key),
				UserId:       row.UserId,
				Title:        "Your event is coming up",
				Body:         fmt.Sprintf("%s starts at %s.", row.EventName, row.StartTime.Format(time.RFC1123)),
				Type:         entities.NotificationEventReminder,
				ReferenceKey: key,
			})
			if err != nil {
				s.logger.Warn().Err(err).Str("reference_key", key).Msg("failed to emit event reminder")
				// Give the claim back so the next cycle retries.
				if rerr := s.log.Release(ctx, key); rerr != nil {
					s.logger.Error().Err(rerr).Str("reference_key", key).Msg("failed to release reminder claim")
				}
			}
		}
	}
	return nil
}

// SweepFeedbackReminders asks attendees of ended events for feedback once.
func (s *ReminderScheduler) SweepFeedbackReminders(ctx context.Context) error {
	now := s.now()

	rows, err := s.bookings.ListFeedbackCandidates(ctx, now)
	if err != nil {
		return err
	}

	for _, row := range rows {
		err := s.publisher.Publish(ctx, entities.NotificationRequested_v1{
			Header: entities.NewEventHeaderWithIdempotencyKey("FEEDBACK:" + row.BookingId.String()),
			UserId: row.UserId,
			Title:  "How was " + row.EventName + "?",
			Body:   "Tell us about your experience.",
			Type:   entities.NotificationFeedbackRequest,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("booking_id", row.BookingId.String()).Msg("failed to emit feedback reminder")
			continue
		}

		if err := s.bookings.SetFeedbackReminderSent(ctx, row.BookingId, now); err != nil {
			s.logger.Error().Err(err).Str("booking_id", row.BookingId.String()).Msg("failed to flag feedback reminder")
		}
	}
	return nil
}
