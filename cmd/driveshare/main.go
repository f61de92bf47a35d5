package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"driveshare/internal/app/commands"
	listingapp "driveshare/internal/app/handlers/listing"
	reservationapp "driveshare/internal/app/handlers/reservation"
	"driveshare/internal/app/middleware"
	appoutbox "driveshare/internal/app/outbox"
	"driveshare/internal/app/queries"
	"driveshare/internal/app/schedule"
	authsvc "driveshare/internal/app/services/auth"
	"driveshare/internal/app/uow"
	domainpricing "driveshare/internal/domain/pricing"
	domainuser "driveshare/internal/domain/user"
	"driveshare/internal/infra/broker/kafka"
	"driveshare/internal/infra/config"
	mongodb "driveshare/internal/infra/db/mongo"
	ginserver "driveshare/internal/infra/http/gin"
	"driveshare/internal/infra/notify"
	"driveshare/internal/infra/obs"
	infraoutbox "driveshare/internal/infra/outbox"
	"driveshare/internal/infra/security"
	"driveshare/internal/infra/storage/memory"
	"driveshare/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application bootstrap failed", "error", err)
		os.Exit(1)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	scheduler := cron.New()
	if _, err := app.lifecycle.Start(scheduler, cfg.LifecycleSpec); err != nil {
		logger.Error("lifecycle job registration failed", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if app.outboxWorker != nil {
		go func() {
			if err := app.outboxWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers     ginserver.Handlers
	lifecycle    *schedule.LifecycleJob
	outboxWorker *infraoutbox.Worker
	ready        func() error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, error) {
	var (
		uowFactory  uow.Factory
		users       domainuser.Repository
		outboxStore appoutbox.Outbox
		idStore     middleware.IdempotencyStore
		worker      *infraoutbox.Worker
		ready       = func() error { return nil }
	)

	if cfg.MongoURI != "" {
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return application{}, err
		}
		listingRepo := mongodb.NewListingRepository(client.DB)
		reservationRepo := mongodb.NewReservationRepository(client.DB)
		userRepo := mongodb.NewUserRepository(client.DB)
		uowFactory = mongodb.Factory{
			DB:              client.DB,
			ListingRepo:     listingRepo,
			ReservationRepo: reservationRepo,
			UserRepo:        userRepo,
		}
		users = userRepo
		idStore = mongodb.NewIdempotencyStore(client.DB)
		store := infraoutbox.NewStore(client.DB)
		outboxStore = store
		ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}

		if len(cfg.KafkaBrokers) > 0 {
			producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
			if err != nil {
				return application{}, err
			}
			worker = &infraoutbox.Worker{
				Store:       store,
				Producer:    producer,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Backoff:     cfg.RetryBackoff,
			}
		} else {
			logger.Warn("kafka brokers not configured, events stay in the outbox")
		}
	} else {
		logger.Warn("MONGO_URI not set, using in-memory storage")
		listingRepo := memory.NewListingRepository()
		reservationRepo := memory.NewReservationRepository()
		userRepo := memory.NewUserRepository()
		uowFactory = memory.Factory{
			ListingRepo:     listingRepo,
			ReservationRepo: reservationRepo,
			UserRepo:        userRepo,
		}
		users = userRepo
		idStore = memory.NewIdempotencyStore()
		outboxStore = memory.NewOutbox()
	}

	authService := &authsvc.Service{
		Users:    users,
		Password: security.BcryptHasher{},
		Tokens:   security.JWTManager{Secret: []byte(cfg.JWTSecret)},
		TokenTTL: cfg.TokenTTL,
		Logger:   logger,
	}

	var uploader listingapp.Uploader = s3.NoopUploader{}
	if cfg.S3Endpoint != "" {
		client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicEndpoint, logger)
		if err != nil {
			logger.Warn("photo storage unavailable", "error", err)
		} else {
			uploader = client
		}
	}

	var notifier reservationapp.Notifier
	if cfg.SendgridAPIKey != "" || cfg.TwilioAccountSID != "" {
		rn := &notify.ReservationNotifier{Logger: logger}
		if cfg.SendgridAPIKey != "" {
			rn.Email = &notify.EmailSender{
				APIKey:    cfg.SendgridAPIKey,
				FromEmail: cfg.SendgridFromEmail,
				FromName:  cfg.SendgridFromName,
			}
		}
		if cfg.TwilioAccountSID != "" {
			rn.SMS = notify.NewSMSSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		}
		notifier = rn
	}

	pricingEngine := domainpricing.Engine{TaxBasisPoints: cfg.TaxBasisPoints}

	commandBus := commands.NewInMemoryBus()
	createHandler := &reservationapp.CreateReservationHandler{
		UoWFactory: uowFactory,
		Pricing:    pricingEngine,
		Outbox:     outboxStore,
		Encoder:    appoutbox.JSONEventEncoder{},
		Notifier:   notifier,
	}
	commands.RegisterHandler(commandBus, reservationapp.CreateReservationCommand{}.Key(), createHandler)
	cancelHandler := &reservationapp.CancelReservationHandler{
		UoWFactory: uowFactory,
		Outbox:     outboxStore,
		Encoder:    appoutbox.JSONEventEncoder{},
		Notifier:   notifier,
	}
	commands.RegisterHandler(commandBus, reservationapp.CancelReservationCommand{}.Key(), cancelHandler)
	createListingHandler := &listingapp.CreateListingHandler{UoWFactory: uowFactory}
	commands.RegisterHandler(commandBus, listingapp.CreateListingCommand{}.Key(), createListingHandler)

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, reservationapp.CheckAvailabilityQuery{}.Key(), &reservationapp.CheckAvailabilityHandler{UoWFactory: uowFactory})
	listHandler := &reservationapp.ListReservationsHandler{UoWFactory: uowFactory, Logger: logger}
	queries.RegisterHandler(queryBus, reservationapp.ListRenterReservationsQuery{}.Key(), reservationapp.RenterReservationsHandler{ListReservationsHandler: listHandler})
	queries.RegisterHandler(queryBus, reservationapp.ListOwnerReservationsQuery{}.Key(), reservationapp.OwnerReservationsHandler{ListReservationsHandler: listHandler})
	queries.RegisterHandler(queryBus, listingapp.SearchCatalogQuery{}.Key(), &listingapp.SearchCatalogHandler{UoWFactory: uowFactory})
	queries.RegisterHandler(queryBus, listingapp.GetListingQuery{}.Key(), &listingapp.GetListingHandler{UoWFactory: uowFactory})

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Idempotency(idStore, nil),
		middleware.Transaction(uowFactory, nil),
		middleware.OutboxFlush(outboxStore),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus)

	photoService := &listingapp.PhotoService{UoWFactory: uowFactory, Uploader: uploader}
	lifecycle := &schedule.LifecycleJob{
		UoWFactory: uowFactory,
		Outbox:     outboxStore,
		Encoder:    appoutbox.JSONEventEncoder{},
		Logger:     logger,
	}

	return application{
		handlers: ginserver.Handlers{
			Booking: ginserver.BookingHandler{
				Commands: commandBusWithMiddleware,
				Queries:  queryBusWithMiddleware,
			},
			Listing: ginserver.ListingHandler{
				Commands: commandBusWithMiddleware,
				Queries:  queryBusWithMiddleware,
				Photos:   photoService,
			},
			Auth:           ginserver.AuthHandler{Service: authService, Logger: logger},
			AuthMiddleware: ginserver.AuthMiddleware{Service: authService, Logger: logger}.Handle,
		},
		lifecycle:    lifecycle,
		outboxWorker: worker,
		ready:        ready,
	}, nil
}
