package sweeps

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ticketing/internal/observability"
)

type ExpiryBookingsRepo interface {
	ListExpiredPendingIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

type ExpiryConfig struct {
	Interval         time.Duration
	ExpirationWindow time.Duration
}

// ExpirySweep cancels bookings whose payment never completed within the
// expiration window and releases their inventory. It runs independently of
// the reconciliation sweep; when both observe the same booking in one cycle,
// the idempotence of CancelTickets decides a single winner.
type ExpirySweep struct {
	bookingsRepo ExpiryBookingsRepo
	bookings     BookingStateMachine
	cfg          ExpiryConfig
	logger       zerolog.Logger

	now func() time.Time
}

func NewExpirySweep(
	bookingsRepo ExpiryBookingsRepo,
	bookings BookingStateMachine,
	cfg ExpiryConfig,
	logger zerolog.Logger,
) *ExpirySweep {
	return &ExpirySweep{
		bookingsRepo: bookingsRepo,
		bookings:     bookings,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *ExpirySweep) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("expiry sweep failed")
			}
			observability.SweepCycles.WithLabelValues("expiry").Inc()
		}
	}
}

func (s *ExpirySweep) Sweep(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.ExpirationWindow)

	ids, err := s.bookingsRepo.ListExpiredPendingIDs(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := s.bookings.CancelTickets(ctx, id, "payment not completed in time"); err != nil {
			s.logger.Error().Err(err).Str("booking_id", id.String()).Msg("failed to expire booking")
			continue
		}
		observability.BookingsExpired.Inc()
	}
	return nil
}
