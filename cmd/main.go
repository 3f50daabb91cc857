package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"

	"github.com/m04kA/SMC-TourBookingService/internal/api"
	cancelBookingHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/cancel_booking"
	confirmBookingHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/confirm_booking"
	createBookingHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/create_booking"
	getAvailableSlotsHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/get_available_slots"
	getBookingHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/get_booking"
	getCustomerBookingsHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/get_customer_bookings"
	getSlotHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/get_slot"
	getSlotBookingsHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/get_slot_bookings"
	issueInvoiceHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/issue_invoice"
	placeHoldHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/place_hold"
	runSweeperHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/run_sweeper"
	"github.com/m04kA/SMC-TourBookingService/internal/config"
	"github.com/m04kA/SMC-TourBookingService/internal/infra/idempotency"
	"github.com/m04kA/SMC-TourBookingService/internal/infra/ratelimit"
	auditRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/audit"
	bookingRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/booking"
	invoiceRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/invoice"
	"github.com/m04kA/SMC-TourBookingService/internal/infra/storage/migrations"
	routeRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/route"
	slotRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/slot"
	"github.com/m04kA/SMC-TourBookingService/internal/integrations/eventbus"
	"github.com/m04kA/SMC-TourBookingService/internal/integrations/smsgateway"
	auditService "github.com/m04kA/SMC-TourBookingService/internal/service/audit"
	bookingsService "github.com/m04kA/SMC-TourBookingService/internal/service/bookings"
	"github.com/m04kA/SMC-TourBookingService/internal/service/capacity"
	"github.com/m04kA/SMC-TourBookingService/internal/service/notify"
	slotsService "github.com/m04kA/SMC-TourBookingService/internal/service/slots"
	createBookingUC "github.com/m04kA/SMC-TourBookingService/internal/usecase/create_booking"
	getAvailableSlotsUC "github.com/m04kA/SMC-TourBookingService/internal/usecase/get_available_slots"
	sweepExpiredHoldsUC "github.com/m04kA/SMC-TourBookingService/internal/usecase/sweep_expired_holds"
	"github.com/m04kA/SMC-TourBookingService/pkg/clock"
	"github.com/m04kA/SMC-TourBookingService/pkg/dbmetrics"
	"github.com/m04kA/SMC-TourBookingService/pkg/logger"
	"github.com/m04kA/SMC-TourBookingService/pkg/metrics"
	"github.com/m04kA/SMC-TourBookingService/pkg/psqlbuilder"
	"github.com/m04kA/SMC-TourBookingService/pkg/tracing"
	"github.com/m04kA/SMC-TourBookingService/pkg/txmanager"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to TOML config")
	flag.Parse()

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализируем логгер
	log, err := logger.New(cfg.Logs.File, cfg.Logs.Level)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("Starting SMC-TourBookingService...")
	log.Info("Configuration loaded from %s", *configPath)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Трейсинг: спаны создаются всегда (trace id нужен аудиту), экспорт - только если включен
	tracingCfg := tracing.Config{
		ServiceName:    cfg.Metrics.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		URLPath:        cfg.Tracing.URLPath,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}
	if cfg.Tracing.Enabled {
		tracingCfg.Endpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Setup(rootCtx, tracingCfg)
	if err != nil {
		log.Fatal("Failed to initialize tracing: %v", err)
	}
	if cfg.Tracing.Enabled {
		log.Info("Tracing export enabled (endpoint=%s)", cfg.Tracing.Endpoint)
	}

	// Инициализируем метрики (если включены)
	var metricsCollector *metrics.Metrics
	stopMetricsCh := make(chan struct{})
	if cfg.Metrics.Enabled {
		metricsCollector = metrics.New(cfg.Metrics.ServiceName)
		log.Info("Metrics enabled at %s", cfg.Metrics.Path)
	}

	// Подключаемся к базе данных
	dialect, err := psqlbuilder.ParseDialect(cfg.Database.Driver)
	if err != nil {
		log.Fatal("Unsupported database driver: %v", err)
	}
	db, err := openDatabase(rootCtx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	log.Info("Successfully connected to database (driver=%s)", cfg.Database.Driver)

	if cfg.Database.AutoMigrate {
		if err := migrations.Apply(rootCtx, db, dialect); err != nil {
			log.Fatal("Failed to apply migrations: %v", err)
		}
		log.Info("Database migrations applied")
	}

	wrappedDB := dbmetrics.WrapWithDefault(db, metricsCollector, stopMetricsCh)
	builder := psqlbuilder.New(dialect)

	isolation := sql.LevelRepeatableRead
	if cfg.Database.Isolation == "serializable" {
		isolation = sql.LevelSerializable
	}
	txMgr := txmanager.NewTransactionManager(wrappedDB,
		txmanager.WithIsolation(isolation),
		txmanager.WithMaxAttempts(cfg.Database.TxMaxAttempts),
		txmanager.WithMetrics(metricsCollector),
		txmanager.WithLogger(log),
	)

	// Redis: идемпотентность и ограничение частоты. Недоступность на старте не фатальна.
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeoutDuration(),
		ReadTimeout:  cfg.Redis.ReadTimeoutDuration(),
		WriteTimeout: cfg.Redis.WriteTimeoutDuration(),
	})
	pingCtx, cancelPing := context.WithTimeout(rootCtx, cfg.Redis.DialTimeoutDuration())
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis is not reachable at %s, idempotency and rate limiting will degrade: %v", cfg.Redis.Addr, err)
	} else {
		log.Info("Successfully connected to Redis (addr=%s)", cfg.Redis.Addr)
	}
	cancelPing()

	// Уведомления после коммита
	var publishers []notify.Publisher
	var kafkaPublisher *eventbus.Publisher
	if cfg.Kafka.Enabled {
		writer := eventbus.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		writer.WriteTimeout = time.Duration(cfg.Kafka.WriteTimeout) * time.Second
		kafkaPublisher = eventbus.NewPublisher(writer)
		publishers = append(publishers, kafkaPublisher)
		log.Info("Kafka publisher enabled (topic=%s, brokers=%v)", cfg.Kafka.Topic, cfg.Kafka.Brokers)
	}
	if cfg.SMS.Enabled {
		publishers = append(publishers, smsgateway.NewClient(
			cfg.SMS.URL,
			cfg.SMS.Sender,
			time.Duration(cfg.SMS.Timeout)*time.Second,
			log,
		))
		log.Info("SMS gateway enabled (url=%s)", cfg.SMS.URL)
	}
	notifier := notify.NewMulti(metricsCollector, log, publishers...)

	// Репозитории
	systemClock := clock.NewSystem()
	bookingRepository := bookingRepo.NewRepository(wrappedDB, builder)
	invoiceRepository := invoiceRepo.NewRepository(wrappedDB, builder)
	slotRepository := slotRepo.NewRepository(wrappedDB, builder)
	routeRepository := routeRepo.NewRepository(wrappedDB, builder)
	auditRecorder := auditService.NewTolerant(auditRepo.NewRepository(wrappedDB, builder), metricsCollector, log)

	// Сервисы
	bookingSvc := bookingsService.NewService(bookingsService.Dependencies{
		Bookings:  bookingRepository,
		Invoices:  invoiceRepository,
		Slots:     slotRepository,
		Routes:    routeRepository,
		Capacity:  capacity.NewEngine(slotRepository, systemClock, metricsCollector, log),
		Audit:     auditRecorder,
		Notifier:  notifier,
		TxManager: txMgr,
		Clock:     systemClock,
		Metrics:   metricsCollector,
	}, cfg.Booking.HoldTTL(), log)
	slotSvc := slotsService.NewService(slotRepository, routeRepository, systemClock, log)

	// Use cases
	createBookingUseCase := createBookingUC.NewUseCase(
		bookingRepository,
		slotRepository,
		routeRepository,
		auditRecorder,
		txMgr,
		systemClock,
		cfg.Booking.MaxSeatsPerBooking,
		log,
	)
	getAvailableSlotsUseCase := getAvailableSlotsUC.NewUseCase(routeRepository, slotRepository, log)
	sweepUseCase := sweepExpiredHoldsUC.NewUseCase(
		bookingRepository,
		bookingSvc,
		systemClock,
		cfg.Sweeper.BatchSize,
		metricsCollector,
		log,
	)

	// Роутер
	routerOpts := api.Options{
		Idempotency: idempotency.NewGate(rdb, cfg.Redis.KeyPrefix,
			cfg.Idempotency.LockTTL(), cfg.Idempotency.ResultTTL(), metricsCollector, log),
		PublicOrigin: cfg.Security.PublicOrigin,
		Logger:       log,
	}
	if cfg.Metrics.Enabled {
		routerOpts.Metrics = metricsCollector
		routerOpts.MetricsPath = cfg.Metrics.Path
		routerOpts.MetricsHandler = metricsCollector.Handler()
	}
	if cfg.RateLimit.Enabled {
		routerOpts.Limiter = ratelimit.NewLimiter(rdb, cfg.Redis.KeyPrefix, systemClock,
			cfg.RateLimit.FailOpen, metricsCollector, log)
		routerOpts.RateLimit = cfg.RateLimit.Limit
		routerOpts.RateLimitWindow = cfg.RateLimit.Window()
		log.Info("Rate limiting enabled (%d requests per %s, fail_open=%t)",
			cfg.RateLimit.Limit, cfg.RateLimit.Window(), cfg.RateLimit.FailOpen)
	}

	router := api.NewRouter(api.Handlers{
		CreateBooking:       createBookingHandler.NewHandler(createBookingUseCase, log).Handle,
		GetBooking:          getBookingHandler.NewHandler(bookingSvc, log).Handle,
		PlaceHold:           placeHoldHandler.NewHandler(bookingSvc, log).Handle,
		IssueInvoice:        issueInvoiceHandler.NewHandler(bookingSvc, log).Handle,
		ConfirmBooking:      confirmBookingHandler.NewHandler(bookingSvc, log).Handle,
		CancelBooking:       cancelBookingHandler.NewHandler(bookingSvc, log).Handle,
		GetAvailableSlots:   getAvailableSlotsHandler.NewHandler(getAvailableSlotsUseCase, log).Handle,
		GetCustomerBookings: getCustomerBookingsHandler.NewHandler(bookingSvc, log).Handle,
		GetSlot:             getSlotHandler.NewHandler(slotSvc, log).Handle,
		GetSlotBookings:     getSlotBookingsHandler.NewHandler(bookingSvc, log).Handle,
		RunSweeper:          runSweeperHandler.NewHandler(sweepUseCase, cfg.Security.SweeperSecret, log).Handle,
	}, routerOpts)

	// Встроенный свипер просроченных удержаний
	sweeperCtx, stopSweeper := context.WithCancel(rootCtx)
	var sweeperWG sync.WaitGroup
	if interval := cfg.Sweeper.Interval(); interval > 0 {
		sweeperWG.Add(1)
		go func() {
			defer sweeperWG.Done()
			runSweeper(sweeperCtx, sweepUseCase, interval, log)
		}()
		log.Info("Hold sweeper started (interval=%s, batch=%d)", interval, cfg.Sweeper.BatchSize)
	}

	// Создаем HTTP сервер
	addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Ожидаем сигнал завершения
	select {
	case <-rootCtx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		log.Error("Server failed: %v", err)
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer cancel()

	// Закрываем в порядке, обратном созданию
	stopSweeper()
	sweeperWG.Wait()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	// Досылаем события, поставленные в очередь до остановки сервера
	if err := notifier.Close(shutdownCtx); err != nil {
		log.Error("Failed to drain notifications: %v", err)
	}

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			log.Error("Failed to close Kafka publisher: %v", err)
		}
	}

	if err := rdb.Close(); err != nil {
		log.Error("Failed to close Redis client: %v", err)
	}

	close(stopMetricsCh)

	if err := db.Close(); err != nil {
		log.Error("Failed to close database: %v", err)
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Failed to flush traces: %v", err)
	}

	log.Info("Server stopped gracefully")
}

// openDatabase открывает пул и проверяет соединение.
// Для SQLite пул из одного соединения: писатели сериализуются через BEGIN IMMEDIATE.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

type sweeper interface {
	Execute(ctx context.Context) (*sweepExpiredHoldsUC.Result, error)
}

func runSweeper(ctx context.Context, uc sweeper, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := uc.Execute(ctx); err != nil && ctx.Err() == nil {
				log.Error("Sweeper: pass failed: %v", err)
			}
		}
	}
}
