package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/settings"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ticketing/internal/domain/bookings"
	edomain "ticketing/internal/domain/events"
	"ticketing/internal/domain/pricing"
	"ticketing/internal/entities"
	"ticketing/internal/infrastructure/clients"
	"ticketing/internal/observability"
)

type EventsRepo interface {
	GetEvent(ctx context.Context, id uuid.UUID) (edomain.Event, error)
	GetTicketType(ctx context.Context, id uuid.UUID) (edomain.TicketType, error)
	ReserveSeats(ctx context.Context, ticketTypeID uuid.UUID, quantity int) error
	ReleaseSeats(ctx context.Context, ticketTypeID uuid.UUID, quantity int) error
}

type PricingRulesRepo interface {
	ListActiveForTicketType(ctx context.Context, ticketTypeID uuid.UUID) ([]pricing.Rule, error)
}

type BookingsRepo interface {
	CreateBooking(ctx context.Context, booking bookings.Booking) (uuid.UUID, error)
	InsertTickets(ctx context.Context, tickets []bookings.Ticket) error
	GetBooking(ctx context.Context, id uuid.UUID) (*bookings.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to bookings.BookingStatus) (int64, error)
	ReservedTicketCounts(ctx context.Context, bookingID uuid.UUID) (map[uuid.UUID]int, error)
	CancelReservedTickets(ctx context.Context, bookingID uuid.UUID) error
}

type PaymentsRepo interface {
	Create(ctx context.Context, payment bookings.Payment) (uuid.UUID, error)
	SetCheckoutUrl(ctx context.Context, id uuid.UUID, url string) error
	MarkFailedByBooking(ctx context.Context, bookingID uuid.UUID) error
}

type PaymentGateway interface {
	Initiate(ctx context.Context, req clients.InitiatePaymentRequest) (string, error)
}

// EventPublisher publishes an event inside the transaction bound to ctx, so
// the event commits together with the state change that produced it.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

type Transactor interface {
	DoWithSettings(ctx context.Context, s trm.Settings, fn func(ctx context.Context) error) error
}

type Usecase struct {
	eventsRepo   EventsRepo
	rulesRepo    PricingRulesRepo
	bookingsRepo BookingsRepo
	paymentsRepo PaymentsRepo
	gateway      PaymentGateway
	publisher    EventPublisher
	trManager    Transactor
	policy       pricing.Policy
	logger       zerolog.Logger

	now func() time.Time
}

func NewUsecase(
	eventsRepo EventsRepo,
	rulesRepo PricingRulesRepo,
	bookingsRepo BookingsRepo,
	paymentsRepo PaymentsRepo,
	gateway PaymentGateway,
	publisher EventPublisher,
	trManager Transactor,
	policy pricing.Policy,
	logger zerolog.Logger,
) *Usecase {
	return &Usecase{
		eventsRepo:   eventsRepo,
		rulesRepo:    rulesRepo,
		bookingsRepo: bookingsRepo,
		paymentsRepo: paymentsRepo,
		gateway:      gateway,
		publisher:    publisher,
		trManager:    trManager,
		policy:       policy,
		logger:       logger,
		now:          time.Now,
	}
}

type TicketRequest struct {
	TicketTypeId uuid.UUID
	Quantity     int
	HolderName   string
	HolderPhone  string
}

type CreateBookingRequest struct {
	EventId uuid.UUID
	UserId  uuid.UUID
	Tickets []TicketRequest
}

func serializable() trm.Settings {
	return trmsql.MustSettings(
		settings.Must(settings.WithCancelable(true)),
		trmsql.WithTxOptions(&sql.TxOptions{Isolation: sql.LevelSerializable}),
	)
}

// withRetry re-runs f when Postgres aborts it with a serialization failure
// (SQLSTATE 40001). Any other error is final.
func withRetry(attempts int, f func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var lastErr error
		for i := 0; i < attempts; i++ {
			err := f(ctx)
			if err == nil {
				return nil
			}

			pgErr := &pq.Error{}
			if errors.As(err, &pgErr) && pgErr.Code == "40001" {
				lastErr = err
				continue
			}

			return err
		}
		return lastErr
	}
}

// inSerializableTx runs fn inside a serializable transaction, retrying the
// whole transaction on a serialization failure. The retry wraps the
// transaction manager, not the other way round: an aborted transaction can
// only answer 25P02 to further statements, so every attempt must open a
// fresh one.
func (u *Usecase) inSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withRetry(3, func(ctx context.Context) error {
		return u.trManager.DoWithSettings(ctx, serializable(), fn)
	})(ctx)
}

// CreateBooking reserves tickets across one or more ticket types as a single
// unit: the capacity check-and-increment, the ticket rows and the booking row
// either all commit or none do. Prices are quoted by the pricing engine at
// this moment and stamped immutably onto the tickets.
//
// A zero total confirms the booking immediately with no payment. Otherwise a
// pending payment is created and a checkout session is requested from the
// gateway after commit; the reconciliation and expiry sweeps own the booking
// from there.
func (u *Usecase) CreateBooking(ctx context.Context, req CreateBookingRequest) (*bookings.Booking, error) {
	if len(req.Tickets) == 0 {
		return nil, fmt.Errorf("booking must request at least one ticket")
	}
	for _, t := range req.Tickets {
		if t.Quantity <= 0 {
			return nil, fmt.Errorf("ticket quantity must be positive")
		}
	}

	var (
		booking   bookings.Booking
		payment   bookings.Payment
		payerName string
	)

	err := u.inSerializableTx(ctx, func(ctx context.Context) error {
		now := u.now()

		event, err := u.eventsRepo.GetEvent(ctx, req.EventId)
		if err != nil {
			return err
		}
		if !event.SalesOpen(now) {
			return bookings.ErrSalesWindowClosed
		}

		total := decimal.Zero
		var tickets []bookings.Ticket

		for _, item := range req.Tickets {
			tt, err := u.eventsRepo.GetTicketType(ctx, item.TicketTypeId)
			if err != nil {
				return err
			}
			if tt.EventId != event.Id {
				return edomain.ErrTicketTypeNotFound
			}

			if err := u.eventsRepo.ReserveSeats(ctx, tt.Id, item.Quantity); err != nil {
				return err
			}

			rules, err := u.rulesRepo.ListActiveForTicketType(ctx, tt.Id)
			if err != nil {
				return err
			}

			// Demand eligibility is judged against the occupancy seen at the
			// moment of this quote, before our own reservation counts.
			price := u.policy.CurrentPrice(tt, event.StartTime, rules, now)
			total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))

			for i := 0; i < item.Quantity; i++ {
				tickets = append(tickets, bookings.Ticket{
					TicketTypeId: tt.Id,
					HolderName:   item.HolderName,
					HolderPhone:  item.HolderPhone,
					Price:        price,
					Status:       bookings.TicketReserved,
					QrCode:       uuid.NewString(),
					CreatedAt:    now,
				})
			}
			if payerName == "" {
				payerName = item.HolderName
			}
		}

		isFree := total.IsZero()
		booking = bookings.Booking{
			EventId:     event.Id,
			UserId:      req.UserId,
			Status:      bookings.BookingPending,
			TotalAmount: total,
			IsFreeEvent: isFree,
			BookingDate: now,
		}
		if isFree {
			booking.Status = bookings.BookingConfirmed
		}

		booking.Id, err = u.bookingsRepo.CreateBooking(ctx, booking)
		if err != nil {
			return err
		}

		for i := range tickets {
			tickets[i].BookingId = booking.Id
		}
		if err := u.bookingsRepo.InsertTickets(ctx, tickets); err != nil {
			return err
		}
		booking.Tickets = tickets

		if isFree {
			return u.publishConfirmed(ctx, booking.Id, booking.EventId, booking.UserId, now)
		}

		payment = bookings.Payment{
			BookingId:        booking.Id,
			Amount:           total,
			Status:           bookings.PaymentPending,
			PaymentReference: uuid.NewString(),
			CreatedAt:        now,
		}
		payment.Id, err = u.paymentsRepo.Create(ctx, payment)
		return err
	})
	if err != nil {
		observability.BookingsFailed.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	observability.BookingsCreated.WithLabelValues(string(booking.Status)).Inc()

	if booking.IsFreeEvent {
		return &booking, nil
	}

	checkoutUrl, err := u.gateway.Initiate(ctx, clients.InitiatePaymentRequest{
		Amount:     payment.Amount,
		PayerName:  payerName,
		Reference:  payment.PaymentReference,
	})
	if err != nil {
		// The booking and its pending payment are committed; the sweeps will
		// drive them to a terminal state. The caller just gets no checkout
		// handle on this response.
		u.logger.Warn().Err(err).
			Str("booking_id", booking.Id.String()).
			Msg("failed to initiate checkout")
	} else {
		payment.CheckoutUrl = checkoutUrl
		if err := u.paymentsRepo.SetCheckoutUrl(ctx, payment.Id, checkoutUrl); err != nil {
			u.logger.Error().Err(err).
				Str("payment_id", payment.Id.String()).
				Msg("failed to store checkout url")
		}
	}

	booking.Payments = []bookings.Payment{payment}
	return &booking, nil
}

// CancelTickets cancels a booking and releases its reserved inventory. It is
// idempotent: the conditional pending→cancelled flip decides exactly one
// winner, so a second call (or a concurrent sweep) is a no-op rather than a
// double decrement.
func (u *Usecase) CancelTickets(ctx context.Context, bookingID uuid.UUID, reason string) error {
	return u.inSerializableTx(ctx, func(ctx context.Context) error {
		now := u.now()

		affected, err := u.bookingsRepo.UpdateBookingStatus(ctx, bookingID, bookings.BookingPending, bookings.BookingCancelled)
		if err != nil {
			return err
		}
		if affected == 0 {
			// Either already terminal or missing; only the latter is an error.
			if _, err := u.bookingsRepo.GetBooking(ctx, bookingID); err != nil {
				return err
			}
			return nil
		}

		counts, err := u.bookingsRepo.ReservedTicketCounts(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := u.bookingsRepo.CancelReservedTickets(ctx, bookingID); err != nil {
			return err
		}
		for ticketTypeID, quantity := range counts {
			if err := u.eventsRepo.ReleaseSeats(ctx, ticketTypeID, quantity); err != nil {
				return err
			}
		}

		if err := u.paymentsRepo.MarkFailedByBooking(ctx, bookingID); err != nil {
			return err
		}

		booking, err := u.bookingsRepo.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}

		if err := u.publisher.Publish(ctx, entities.BookingCancelled_v1{
			Header:      entities.NewEventHeader(),
			BookingId:   bookingID,
			EventId:     booking.EventId,
			UserId:      booking.UserId,
			Reason:      reason,
			CancelledAt: now,
		}); err != nil {
			return err
		}

		return u.publisher.Publish(ctx, entities.NotificationRequested_v1{
			Header:    entities.NewEventHeader(),
			UserId:    booking.UserId,
			Title:     "Booking cancelled",
			Body:      fmt.Sprintf("Your booking %s was cancelled: %s", bookingID, reason),
			Type:      entities.NotificationBookingCancelled,
		})
	})
}

// ConfirmBooking flips a pending booking to confirmed after its payment was
// verified. Tickets stay reserved; check-in is a separate flow.
func (u *Usecase) ConfirmBooking(ctx context.Context, bookingID uuid.UUID) error {
	return u.inSerializableTx(ctx, func(ctx context.Context) error {
		affected, err := u.bookingsRepo.UpdateBookingStatus(ctx, bookingID, bookings.BookingPending, bookings.BookingConfirmed)
		if err != nil {
			return err
		}
		if affected == 0 {
			if _, err := u.bookingsRepo.GetBooking(ctx, bookingID); err != nil {
				return err
			}
			return nil
		}

		booking, err := u.bookingsRepo.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}

		return u.publishConfirmed(ctx, bookingID, booking.EventId, booking.UserId, u.now())
	})
}

func (u *Usecase) publishConfirmed(ctx context.Context, bookingID, eventID, userID uuid.UUID, now time.Time) error {
	if err := u.publisher.Publish(ctx, entities.BookingConfirmed_v1{
		Header:      entities.NewEventHeader(),
		BookingId:   bookingID,
		EventId:     eventID,
		UserId:      userID,
		ConfirmedAt: now,
	}); err != nil {
		return err
	}

	return u.publisher.Publish(ctx, entities.NotificationRequested_v1{
		Header: entities.NewEventHeader(),
		UserId: userID,
		Title:  "Booking confirmed",
		Body:   fmt.Sprintf("Your booking %s is confirmed. See you there!", bookingID),
		Type:   entities.NotificationBookingConfirmed,
	})
}

// GetBooking returns a booking with its tickets and payments.
func (u *Usecase) GetBooking(ctx context.Context, bookingID uuid.UUID) (*bookings.Booking, error) {
	return u.bookingsRepo.GetBooking(ctx, bookingID)
}

// Quote returns the current price of a ticket type without reserving
// anything. The result is not persisted anywhere.
func (u *Usecase) Quote(ctx context.Context, ticketTypeID uuid.UUID) (decimal.Decimal, error) {
	tt, err := u.eventsRepo.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return decimal.Zero, err
	}

	event, err := u.eventsRepo.GetEvent(ctx, tt.EventId)
	if err != nil {
		return decimal.Zero, err
	}

	rules, err := u.rulesRepo.ListActiveForTicketType(ctx, ticketTypeID)
	if err != nil {
		return decimal.Zero, err
	}

	return u.policy.CurrentPrice(tt, event.StartTime, rules, u.now()), nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, bookings.ErrInsufficientInventory):
		return "insufficient_inventory"
	case errors.Is(err, bookings.ErrTicketTypeInactive):
		return "ticket_type_inactive"
	case errors.Is(err, bookings.ErrSalesWindowClosed):
		return "sales_window_closed"
	case errors.Is(err, edomain.ErrEventNotFound), errors.Is(err, edomain.ErrTicketTypeNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
