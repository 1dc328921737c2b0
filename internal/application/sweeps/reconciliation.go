package sweeps

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ticketing/internal/domain/bookings"
	"ticketing/internal/observability"
)

type PaymentsRepo interface {
	ListPendingIDs(ctx context.Context) ([]uuid.UUID, error)
	ListUnconfirmedPaidIDs(ctx context.Context) ([]uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*bookings.Payment, error)
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (int64, error)
}

// BookingStateMachine is the slice of the booking usecase the sweeps drive.
type BookingStateMachine interface {
	ConfirmBooking(ctx context.Context, bookingID uuid.UUID) error
	CancelTickets(ctx context.Context, bookingID uuid.UUID, reason string) error
}

type PaymentVerifier interface {
	Verify(ctx context.Context, reference string) (bool, error)
}

type ReconciliationConfig struct {
	Interval         time.Duration
	BatchSize        int
	Workers          int
	BatchDelay       time.Duration
	VerifyTimeout    time.Duration
	ExpirationWindow time.Duration
}

// ReconciliationSweep periodically aligns pending payments with the gateway's
// ground truth. It coordinates with the booking path and the expiry sweep only
// through conditional updates on the store; there is no cross-sweep locking.
type ReconciliationSweep struct {
	payments PaymentsRepo
	bookings BookingStateMachine
	gateway  PaymentVerifier
	cfg      ReconciliationConfig
	logger   zerolog.Logger

	now func() time.Time
}

func NewReconciliationSweep(
	payments PaymentsRepo,
	bookings BookingStateMachine,
	gateway PaymentVerifier,
	cfg ReconciliationConfig,
	logger zerolog.Logger,
) *ReconciliationSweep {
	return &ReconciliationSweep{
		payments: payments,
		bookings: bookings,
		gateway:  gateway,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *ReconciliationSweep) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("reconciliation sweep failed")
			}
			observability.SweepCycles.WithLabelValues("reconciliation").Inc()
		}
	}
}

// Sweep runs one reconciliation pass: pending payments are processed in
// fixed-size batches by a bounded worker pool, with a short delay between
// batches to stay inside the gateway's rate limits.
func (s *ReconciliationSweep) Sweep(ctx context.Context) error {
	ids, err := s.payments.ListPendingIDs(ctx)
	if err != nil {
		return err
	}

	// Paid payments with a still-pending booking mean a previous confirmation
	// was interrupted; finish those first.
	stuck, err := s.payments.ListUnconfirmedPaidIDs(ctx)
	if err != nil {
		return err
	}
	ids = append(stuck, ids...)

	for start := 0; start < len(ids); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(ids) {
			end = len(ids)
		}

		// A plain group, not errgroup.WithContext: a shutdown must not abort
		// verifications already in flight, or a payment could be left
		// half-transitioned.
		var g errgroup.Group
		g.SetLimit(s.cfg.Workers)
		for _, id := range ids[start:end] {
			id := id
			g.Go(func() error {
				s.reconcile(ctx, id)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(ids) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.BatchDelay):
			}
		}
	}
	return nil
}

// reconcile drives one payment. Every error path leaves the row untouched so
// the next cycle retries; only an explicit gateway confirmation produces Paid,
// and only the expiration deadline produces Failed.
func (s *ReconciliationSweep) reconcile(ctx context.Context, id uuid.UUID) {
	// Re-read the row: the expiry sweep or another instance may have moved it
	// since the selection query ran.
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("payment_id", id.String()).Msg("failed to load payment")
		return
	}
	if payment.Status == bookings.PaymentPaid {
		if err := s.bookings.ConfirmBooking(ctx, payment.BookingId); err != nil {
			s.logger.Error().Err(err).Str("booking_id", payment.BookingId.String()).Msg("failed to confirm booking")
		}
		return
	}
	if payment.Status != bookings.PaymentPending {
		return
	}

	now := s.now()

	// The expiration check comes first: a confirmation that arrives past the
	// deadline must not resurrect the payment.
	if payment.Expired(now, s.cfg.ExpirationWindow) {
		affected, err := s.payments.MarkFailed(ctx, id)
		if err != nil {
			s.logger.Error().Err(err).Str("payment_id", id.String()).Msg("failed to expire payment")
			return
		}
		if affected > 0 {
			if err := s.bookings.CancelTickets(ctx, payment.BookingId, "payment not completed in time"); err != nil {
				// The expiry sweep picks the booking up on its next pass.
				s.logger.Error().Err(err).Str("booking_id", payment.BookingId.String()).Msg("failed to cancel expired booking")
				return
			}
			observability.PaymentsReconciled.WithLabelValues("expired").Inc()
		}
		return
	}

	verifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.VerifyTimeout)
	defer cancel()

	paid, err := s.gateway.Verify(verifyCtx, payment.PaymentReference)
	if err != nil {
		observability.GatewayVerifyErrors.Inc()
		s.logger.Warn().Err(err).Str("payment_id", id.String()).Msg("gateway verification failed, will retry")
		return
	}
	if !paid {
		return
	}

	affected, err := s.payments.MarkPaid(ctx, id, now)
	if err != nil {
		s.logger.Error().Err(err).Str("payment_id", id.String()).Msg("failed to mark payment paid")
		return
	}
	if affected == 0 {
		return
	}

	if err := s.bookings.ConfirmBooking(ctx, payment.BookingId); err != nil {
		s.logger.Error().Err(err).Str("booking_id", payment.BookingId.String()).Msg("failed to confirm booking")
		return
	}
	observability.PaymentsReconciled.WithLabelValues("paid").Inc()
}
