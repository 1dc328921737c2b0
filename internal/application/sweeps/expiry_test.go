package sweeps

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing/internal/observability"
)

type fakeExpiryRepo struct {
	rows map[uuid.UUID]time.Time
}

func (r *fakeExpiryRepo) ListExpiredPendingIDs(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, bookedAt := range r.rows {
		if !bookedAt.After(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func TestExpirySweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("only bookings past the window are cancelled", func(t *testing.T) {
		oldID := uuid.New()
		freshID := uuid.New()
		repo := &fakeExpiryRepo{rows: map[uuid.UUID]time.Time{
			oldID:   now.Add(-25 * time.Hour),
			freshID: now.Add(-23 * time.Hour),
		}}
		sm := &fakeStateMachine{}

		s := NewExpirySweep(repo, sm, ExpiryConfig{
			Interval:         time.Minute,
			ExpirationWindow: 24 * time.Hour,
		}, observability.NewLogger())
		s.now = func() time.Time { return now }

		require.NoError(t, s.Sweep(ctx))

		assert.Equal(t, []uuid.UUID{oldID}, sm.cancelled)
	})

	t.Run("empty scan is a no-op", func(t *testing.T) {
		sm := &fakeStateMachine{}
		s := NewExpirySweep(&fakeExpiryRepo{}, sm, ExpiryConfig{
			Interval:         time.Minute,
			ExpirationWindow: 24 * time.Hour,
		}, observability.NewLogger())
		s.now = func() time.Time { return now }

		require.NoError(t, s.Sweep(ctx))
		assert.Empty(t, sm.cancelled)
	})
}
