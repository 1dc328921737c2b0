package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "ticketing/internal/domain/bookings"
	edomain "ticketing/internal/domain/events"
)

var (
	testDB    *sqlx.DB
	getDbOnce sync.Once
)

func getDb(t *testing.T) *sqlx.DB {
	if os.Getenv("POSTGRES_URL") == "" {
		t.Skip("POSTGRES_URL not set")
	}
	getDbOnce.Do(func() {
		var err error
		testDB, err = sqlx.Open("postgres", os.Getenv("POSTGRES_URL"))
		if err != nil {
			panic(err)
		}
		if err := InitializeDBSchema(testDB); err != nil {
			panic(err)
		}
	})
	return testDB
}

func createTestEvent(t *testing.T, events *EventsRepo, start time.Time) uuid.UUID {
	t.Helper()
	id, err := events.CreateEvent(context.Background(), edomain.Event{
		Name:      "Integration Gig",
		Venue:     "Test Hall",
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	return id
}

func createTestTicketType(t *testing.T, events *EventsRepo, eventID uuid.UUID, quantity int) uuid.UUID {
	t.Helper()
	id, err := events.CreateTicketType(context.Background(), edomain.TicketType{
		EventId:   eventID,
		Name:      "General",
		BasePrice: decimal.RequireFromString("50.00"),
		Quantity:  quantity,
		IsActive:  true,
	})
	require.NoError(t, err)
	return id
}

func TestEventsRepo_ReserveSeats_Integration(t *testing.T) {
	db := getDb(t)
	events := NewEventsRepo(db, trmsqlx.DefaultCtxGetter)
	ctx := context.Background()

	eventID := createTestEvent(t, events, time.Now().Add(48*time.Hour))
	ttID := createTestTicketType(t, events, eventID, 10)

	t.Run("concurrent reservations never exceed capacity", func(t *testing.T) {
		const attempts = 8
		errs := make(chan error, attempts)
		for i := 0; i < attempts; i++ {
			go func() {
				errs <- events.ReserveSeats(ctx, ttID, 2)
			}()
		}

		var succeeded, insufficient int
		for i := 0; i < attempts; i++ {
			switch err := <-errs; {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientInventory):
				insufficient++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}

		assert.Equal(t, 5, succeeded)
		assert.Equal(t, 3, insufficient)

		tt, err := events.GetTicketType(ctx, ttID)
		require.NoError(t, err)
		assert.Equal(t, 10, tt.Sold)
	})

	t.Run("release returns inventory", func(t *testing.T) {
		require.NoError(t, events.ReleaseSeats(ctx, ttID, 4))
		tt, err := events.GetTicketType(ctx, ttID)
		require.NoError(t, err)
		assert.Equal(t, 6, tt.Sold)
	})

	t.Run("reserving an unknown type", func(t *testing.T) {
		err := events.ReserveSeats(ctx, uuid.New(), 1)
		assert.ErrorIs(t, err, edomain.ErrTicketTypeNotFound)
	})
}

func TestPaymentsRepo_StatusTransitions_Integration(t *testing.T) {
	db := getDb(t)
	getter := trmsqlx.DefaultCtxGetter
	events := NewEventsRepo(db, getter)
	bookingsRepo := NewBookingsRepo(db, getter)
	payments := NewPaymentsRepo(db, getter)
	ctx := context.Background()

	eventID := createTestEvent(t, events, time.Now().Add(48*time.Hour))
	bookingID, err := bookingsRepo.CreateBooking(ctx, domain.Booking{
		EventId:     eventID,
		UserId:      uuid.New(),
		Status:      domain.BookingPending,
		TotalAmount: decimal.RequireFromString("50.00"),
		BookingDate: time.Now(),
	})
	require.NoError(t, err)

	paymentID, err := payments.Create(ctx, domain.Payment{
		BookingId:        bookingID,
		Amount:           decimal.RequireFromString("50.00"),
		Status:           domain.PaymentPending,
		PaymentReference: uuid.NewString(),
		CreatedAt:        time.Now(),
	})
	require.NoError(t, err)

	t.Run("mark paid wins exactly once", func(t *testing.T) {
		affected, err := payments.MarkPaid(ctx, paymentID, time.Now())
		require.NoError(t, err)
		assert.EqualValues(t, 1, affected)

		affected, err = payments.MarkPaid(ctx, paymentID, time.Now())
		require.NoError(t, err)
		assert.EqualValues(t, 0, affected)
	})

	t.Run("paid payment cannot be failed", func(t *testing.T) {
		affected, err := payments.MarkFailed(ctx, paymentID)
		require.NoError(t, err)
		assert.EqualValues(t, 0, affected)

		p, err := payments.GetByID(ctx, paymentID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPaid, p.Status)
	})

	t.Run("booking status flip is conditional", func(t *testing.T) {
		affected, err := bookingsRepo.UpdateBookingStatus(ctx, bookingID, domain.BookingPending, domain.BookingConfirmed)
		require.NoError(t, err)
		assert.EqualValues(t, 1, affected)

		affected, err = bookingsRepo.UpdateBookingStatus(ctx, bookingID, domain.BookingPending, domain.BookingCancelled)
		require.NoError(t, err)
		assert.EqualValues(t, 0, affected)
	})
}

func TestNotificationLogRepo_TryClaim_Integration(t *testing.T) {
	db := getDb(t)
	repo := NewNotificationLogRepo(db, trmsqlx.DefaultCtxGetter)
	ctx := context.Background()

	key := "EVENT:" + uuid.NewString() + ":BOOKING:" + uuid.NewString() + ":ONE_DAY"

	claimed, err := repo.TryClaim(ctx, key)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.TryClaim(ctx, key)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, repo.Release(ctx, key))

	claimed, err = repo.TryClaim(ctx, key)
	require.NoError(t, err)
	assert.True(t, claimed)
}
