package app

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ticketing/internal/application/sweeps"
	"ticketing/internal/application/usecases/booking"
	"ticketing/internal/application/usecases/catalog"
	"ticketing/internal/config"
	"ticketing/internal/domain/pricing"
	"ticketing/internal/infrastructure/clients"
	"ticketing/internal/interfaces/events"
	"ticketing/internal/interfaces/http"
	"ticketing/internal/outbox"
	"ticketing/internal/repository"
)

type App struct {
	logger          zerolog.Logger
	watermillLogger watermill.LoggerAdapter

	db        *sqlx.DB
	router    *message.Router
	srv       *http.Server
	forwarder *outbox.Forwarder

	reconciliation *sweeps.ReconciliationSweep
	expiry         *sweeps.ExpirySweep
	reminders      *sweeps.ReminderScheduler
}

func NewApp(
	cfg config.Config,
	db *sqlx.DB,
	redisClient *redis.Client,
	watermillLogger watermill.LoggerAdapter,
	logger zerolog.Logger,
) (*App, error) {
	getter := trmsqlx.DefaultCtxGetter
	trManager := manager.Must(trmsqlx.NewDefaultFactory(db))

	eventsRepo := repository.NewEventsRepo(db, getter)
	rulesRepo := repository.NewPricingRulesRepo(db, getter)
	bookingsRepo := repository.NewBookingsRepo(db, getter)
	paymentsRepo := repository.NewPaymentsRepo(db, getter)
	notificationLogRepo := repository.NewNotificationLogRepo(db, getter)

	gatewayClient := clients.NewGatewayClient(cfg.GatewayURL, cfg.GatewayAPIKey)
	notificationsClient := clients.NewNotificationsClient(cfg.NotificationsURL)

	txPublisher := outbox.NewTxEventPublisher(getter, watermillLogger)

	bookingsService := booking.NewUsecase(
		eventsRepo,
		rulesRepo,
		bookingsRepo,
		paymentsRepo,
		gatewayClient,
		txPublisher,
		trManager,
		pricing.DefaultPolicy(),
		logger,
	)
	catalogService := catalog.NewUsecase(eventsRepo, rulesRepo)

	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, err
	}

	router.AddMiddleware(middleware.Recoverer)
	router.AddMiddleware(events.CorrelationIDMiddleware)
	router.AddMiddleware(events.LoggingMiddleware)
	router.AddMiddleware(middleware.Retry{
		MaxRetries:      10,
		InitialInterval: time.Millisecond * 100,
		MaxInterval:     time.Second,
		Multiplier:      2,
		Logger:          watermillLogger,
	}.Middleware)

	// skip marshalling errors before retrying
	router.AddMiddleware(events.SkipMarshallingErrorsMiddleware)

	processor, err := events.NewEventProcessor(router, redisClient, watermillLogger)
	if err != nil {
		return nil, err
	}
	if err := processor.AddHandlers(
		events.SendNotificationHandler(notificationsClient),
	); err != nil {
		return nil, err
	}

	fwd, err := outbox.NewForwarder(db, redisClient, cfg.OutboxPollInterval, watermillLogger)
	if err != nil {
		return nil, err
	}

	redisPublisher, err := outbox.NewRedisPublisher(watermillLogger, redisClient)
	if err != nil {
		return nil, err
	}
	directPublisher, err := events.NewDirectPublisher(redisPublisher, watermillLogger)
	if err != nil {
		return nil, err
	}

	reconciliation := sweeps.NewReconciliationSweep(
		paymentsRepo,
		bookingsService,
		gatewayClient,
		sweeps.ReconciliationConfig{
			Interval:         cfg.ReconcileInterval,
			BatchSize:        cfg.ReconcileBatchSize,
			Workers:          cfg.ReconcileWorkers,
			BatchDelay:       cfg.ReconcileBatchDelay,
			VerifyTimeout:    cfg.VerifyTimeout,
			ExpirationWindow: cfg.PaymentExpiration,
		},
		logger,
	)
	expiry := sweeps.NewExpirySweep(
		bookingsRepo,
		bookingsService,
		sweeps.ExpiryConfig{
			Interval:         cfg.ExpiryInterval,
			ExpirationWindow: cfg.PaymentExpiration,
		},
		logger,
	)
	reminders := sweeps.NewReminderScheduler(
		paymentsRepo,
		bookingsRepo,
		notificationLogRepo,
		directPublisher,
		sweeps.ReminderConfig{
			Interval:           cfg.ReminderInterval,
			PaymentRemindAfter: cfg.PaymentRemindAfter,
			ExpirationWindow:   cfg.PaymentExpiration,
		},
		logger,
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := http.NewServer(
		e,
		cfg.HTTPAddr,
		bookingsService,
		catalogService,
		router.IsRunning,
		logger,
	)

	return &App{
		logger:          logger,
		watermillLogger: watermillLogger,
		db:              db,
		router:          router,
		srv:             srv,
		forwarder:       fwd,
		reconciliation:  reconciliation,
		expiry:          expiry,
		reminders:       reminders,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	if err := repository.InitializeDBSchema(a.db); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Msg("starting router")
		return a.router.Run(ctx)
	})

	g.Go(func() error {
		a.logger.Info().Msg("starting outbox forwarder")
		return a.forwarder.Run(ctx)
	})

	g.Go(func() error {
		<-a.router.Running()
		a.logger.Info().Msg("router is running, starting server")
		return a.srv.Start()
	})

	g.Go(func() error { return a.reconciliation.Run(ctx) })
	g.Go(func() error { return a.expiry.Run(ctx) })
	g.Go(func() error { return a.reminders.RunPaymentReminders(ctx) })
	g.Go(func() error { return a.reminders.RunEventReminders(ctx) })
	g.Go(func() error { return a.reminders.RunFeedbackReminders(ctx) })

	g.Go(func() error {
		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if err := a.srv.Stop(stopCtx); err != nil {
			a.logger.Err(err).Msg("error stopping server")
			return err
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
