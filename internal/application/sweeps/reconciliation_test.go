package sweeps

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing/internal/domain/bookings"
	"ticketing/internal/observability"
)

type fakePaymentsRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*bookings.Payment
}

func newFakePaymentsRepo() *fakePaymentsRepo {
	return &fakePaymentsRepo{payments: map[uuid.UUID]*bookings.Payment{}}
}

func (r *fakePaymentsRepo) add(p bookings.Payment) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Id == uuid.Nil {
		p.Id = uuid.New()
	}
	r.payments[p.Id] = &p
	return p.Id
}

func (r *fakePaymentsRepo) ListPendingIDs(context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, p := range r.payments {
		if p.Status == bookings.PaymentPending {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakePaymentsRepo) ListUnconfirmedPaidIDs(context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

func (r *fakePaymentsRepo) GetByID(_ context.Context, id uuid.UUID) (*bookings.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, bookings.ErrPaymentNotFound
	}
	out := *p
	return &out, nil
}

func (r *fakePaymentsRepo) MarkPaid(_ context.Context, id uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.payments[id]
	if p.Status != bookings.PaymentPending {
		return 0, nil
	}
	p.Status = bookings.PaymentPaid
	p.PaidAt = &at
	return 1, nil
}

func (r *fakePaymentsRepo) MarkFailed(_ context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.payments[id]
	if p.Status != bookings.PaymentPending {
		return 0, nil
	}
	p.Status = bookings.PaymentFailed
	return 1, nil
}

func (r *fakePaymentsRepo) status(id uuid.UUID) bookings.PaymentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payments[id].Status
}

type fakeStateMachine struct {
	mu        sync.Mutex
	confirmed []uuid.UUID
	cancelled []uuid.UUID

	confirmErr error
}

func (m *fakeStateMachine) ConfirmBooking(_ context.Context, bookingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confirmErr != nil {
		return m.confirmErr
	}
	m.confirmed = append(m.confirmed, bookingID)
	return nil
}

func (m *fakeStateMachine) CancelTickets(_ context.Context, bookingID uuid.UUID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, bookingID)
	return nil
}

type fakeVerifier struct {
	mu      sync.Mutex
	results map[string]bool
	err     error
	calls   []string
}

func (v *fakeVerifier) Verify(_ context.Context, reference string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, reference)
	if v.err != nil {
		return false, v.err
	}
	return v.results[reference], nil
}

func testConfig() ReconciliationConfig {
	return ReconciliationConfig{
		Interval:         time.Minute,
		BatchSize:        10,
		Workers:          2,
		BatchDelay:       time.Millisecond,
		VerifyTimeout:    time.Second,
		ExpirationWindow: 24 * time.Hour,
	}
}

func TestReconciliationSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	newSweep := func(repo *fakePaymentsRepo, sm *fakeStateMachine, v *fakeVerifier) *ReconciliationSweep {
		s := NewReconciliationSweep(repo, sm, v, testConfig(), observability.NewLogger())
		s.now = func() time.Time { return now }
		return s
	}

	t.Run("confirmed by gateway is marked paid and booking confirmed", func(t *testing.T) {
		repo := newFakePaymentsRepo()
		bookingID := uuid.New()
		paymentID := repo.add(bookings.Payment{
			BookingId:        bookingID,
			Status:           bookings.PaymentPending,
			PaymentReference: "ref-1",
			CreatedAt:        now.Add(-time.Hour),
		})

		sm := &fakeStateMachine{}
		v := &fakeVerifier{results: map[string]bool{"ref-1": true}}

		require.NoError(t, newSweep(repo, sm, v).Sweep(ctx))

		assert.Equal(t, bookings.PaymentPaid, repo.status(paymentID))
		assert.Equal(t, []uuid.UUID{bookingID}, sm.confirmed)
		assert.Empty(t, sm.cancelled)
	})

	t.Run("unpaid stays pending", func(t *testing.T) {
		repo := newFakePaymentsRepo()
		paymentID := repo.add(bookings.Payment{
			BookingId:        uuid.New(),
			Status:           bookings.PaymentPending,
			PaymentReference: "ref-1",
			CreatedAt:        now.Add(-time.Hour),
		})

		sm := &fakeStateMachine{}
		v := &fakeVerifier{results: map[string]bool{}}

		require.NoError(t, newSweep(repo, sm, v).Sweep(ctx))

		assert.Equal(t, bookings.PaymentPending, repo.status(paymentID))
		assert.Empty(t, sm.confirmed)
		assert.Empty(t, sm.cancelled)
	})

	t.Run("expired payment fails without asking the gateway", func(t *testing.T) {
		repo := newFakePaymentsRepo()
		bookingID := uuid.New()
		paymentID := repo.add(bookings.Payment{
			BookingId:        bookingID,
			Status:           bookings.PaymentPending,
			PaymentReference: "ref-1",
			CreatedAt:        now.Add(-25 * time.Hour),
		})

		sm := &fakeStateMachine{}
		// The gateway would answer paid, but the deadline has passed.
		v := &fakeVerifier{results: map[string]bool{"ref-1": true}}

		require.NoError(t, newSweep(repo, sm, v).Sweep(ctx))

		assert.Equal(t, bookings.PaymentFailed, repo.status(paymentID))
		assert.Equal(t, []uuid.UUID{bookingID}, sm.cancelled)
		assert.Empty(t, sm.confirmed)
		assert.Empty(t, v.calls, "no verification past the deadline")
	})

	t.Run("gateway error leaves the payment for the next cycle", func(t *testing.T) {
		repo := newFakePaymentsRepo()
		paymentID := repo.add(bookings.Payment{
			BookingId:        uuid.New(),
			Status:           bookings.PaymentPending,
			PaymentReference: "ref-1",
			CreatedAt:        now.Add(-time.Hour),
		})

		sm := &fakeStateMachine{}
		v := &fakeVerifier{err: errors.New("gateway timeout")}

		require.NoError(t, newSweep(repo, sm, v).Sweep(ctx))

		assert.Equal(t, bookings.PaymentPending, repo.status(paymentID))
		assert.Empty(t, sm.confirmed)
		assert.Empty(t, sm.cancelled)
	})

	t.Run("already paid payment only repairs the booking", func(t *testing.T) {
		repo := newFakePaymentsRepo()
		bookingID := uuid.New()
		paymentID := repo.add(bookings.Payment{
			BookingId:        bookingID,
			Status:           bookings.PaymentPaid,
			PaymentReference: "ref-1",
			CreatedAt:        now.Add(-time.Hour),
		})

		sm := &fakeStateMachine{}
		v := &fakeVerifier{}

		s := newSweep(repo, sm, v)
		s.reconcile(ctx, paymentID)

		assert.Equal(t, []uuid.UUID{bookingID}, sm.confirmed)
		assert.Empty(t, v.calls)
	})

	t.Run("failed confirmation keeps the payment paid for a retry", func(t *testing.T) {
		repo := newFakePaymentsRepo()
		paymentID := repo.add(bookings.Payment{
			BookingId:        uuid.New(),
			Status:           bookings.PaymentPending,
			PaymentReference: "ref-1",
			CreatedAt:        now.Add(-time.Hour),
		})

		sm := &fakeStateMachine{confirmErr: errors.New("db down")}
		v := &fakeVerifier{results: map[string]bool{"ref-1": true}}

		require.NoError(t, newSweep(repo, sm, v).Sweep(ctx))

		assert.Equal(t, bookings.PaymentPaid, repo.status(paymentID))
	})

	t.Run("many payments are processed across batches", func(t *testing.T) {
		repo := newFakePaymentsRepo()
		var ids []uuid.UUID
		for i := 0; i < 25; i++ {
			ids = append(ids, repo.add(bookings.Payment{
				BookingId:        uuid.New(),
				Status:           bookings.PaymentPending,
				PaymentReference: uuid.NewString(),
				CreatedAt:        now.Add(-time.Hour),
			}))
		}

		sm := &fakeStateMachine{}
		v := &fakeVerifier{results: map[string]bool{}}

		require.NoError(t, newSweep(repo, sm, v).Sweep(ctx))

		assert.Len(t, v.calls, 25)
		for _, id := range ids {
			assert.Equal(t, bookings.PaymentPending, repo.status(id))
		}
	})
}
