package main

import (
	"attendance-sync-api/internal/auth"
	"attendance-sync-api/internal/cache"
	"attendance-sync-api/internal/config"
	"attendance-sync-api/internal/database"
	"attendance-sync-api/internal/devices"
	"attendance-sync-api/internal/gateway"
	"attendance-sync-api/internal/handler"
	"attendance-sync-api/internal/logging"
	"attendance-sync-api/internal/metrics"
	"attendance-sync-api/internal/middleware"
	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/notification"
	"attendance-sync-api/internal/queue"
	"attendance-sync-api/internal/repository"
	"attendance-sync-api/internal/router"
	"attendance-sync-api/internal/scheduler"
	"attendance-sync-api/internal/service"
	notificationadapter "attendance-sync-api/internal/service/notification"
	"attendance-sync-api/internal/supervisor"
	syncer "attendance-sync-api/internal/sync"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Timestamp: true,
		Caller:    cfg.LogLevel == "debug",
	})

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("Service stopped with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	m := metrics.NewDefault()

	employeeRepo := repository.NewEmployeeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	userRepo := repository.NewUserRepository(db)

	employeeCache, err := cache.New[*service.EmployeePage](cache.Config{
		Name:       "employees",
		Enabled:    cfg.Cache.Enabled,
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	}, m)
	if err != nil {
		return fmt.Errorf("create employee cache: %w", err)
	}
	defer employeeCache.Close()

	images, err := service.NewDiskImageStore(cfg.Uploads.Dir, cfg.Uploads.PublicBaseURL, cfg.Uploads.MaxBytes)
	if err != nil {
		return err
	}

	employeeSvc := service.NewEmployeeService(employeeRepo, employeeCache, images, logging.Component(logger, "employees"))
	attendanceSvc := service.NewAttendanceService(attendanceRepo, logging.Component(logger, "attendances"))
	deviceSvc := service.NewDeviceService(deviceRepo, logging.Component(logger, "devices"))
	userSvc := service.NewUserService(userRepo, logging.Component(logger, "users"))

	var tokens *auth.Tokens
	if cfg.Auth.JWTSecret != "" {
		tokens, err = auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
		if err != nil {
			return fmt.Errorf("create token issuer: %w", err)
		}
	} else {
		logger.Warn().Msg("JWT_SECRET is not set; login is unavailable")
	}
	authSvc := service.NewAuthService(userRepo, tokens, logging.Component(logger, "auth"))

	employeeEngine, attendanceEngine := buildEngines(cfg, logger, m, deviceRepo, employeeRepo, attendanceRepo, employeeSvc)

	handlerLog := logging.Component(logger, "http")
	handlers := router.Handlers{
		Employees:   handler.NewEmployeeHandler(employeeSvc, cfg.Uploads.MaxBytes, handlerLog),
		Sync:        handler.NewSyncHandler(employeeEngine, attendanceEngine, handlerLog),
		Attendances: handler.NewAttendanceHandler(attendanceSvc, handlerLog),
		Devices:     handler.NewDeviceHandler(deviceSvc, handlerLog),
		Users:       handler.NewUserHandler(userSvc, handlerLog),
		Auth:        handler.NewAuthHandler(authSvc, handlerLog),
		Health: handler.NewHealthHandler(map[string]handler.HealthChecker{
			"database": handler.HealthCheckFunc(db.PingContext),
		}, handlerLog),
		Uploads:       http.FileServer(http.Dir(images.Dir())),
		UploadsPrefix: "/uploads",
	}
	if cfg.Server.EnableMetrics {
		handlers.Metrics = m.Handler()
	}

	var guard *auth.Tokens
	if cfg.Auth.Enabled {
		guard = tokens
	}
	authMW := middleware.NewAuthMiddleware(guard, logging.Component(logger, "auth"),
		router.LoginPath, router.HealthPath, router.MetricsPath)

	r := router.NewRouter(handlers, cfg, middleware.NewLoggingMiddleware(logging.Component(logger, "access"), m), authMW)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	sup := supervisor.New("attendance-sync-api", supervisor.Config{ShutdownTimeout: cfg.Security.ShutdownTimeout}, logging.Component(logger, "supervisor"))
	sup.Add(supervisor.NewHTTPService(server, cfg.Security.ShutdownTimeout, logging.Component(logger, "server")))

	sched, err := buildScheduler(cfg, logger, employeeEngine, attendanceEngine)
	if err != nil {
		return err
	}
	if sched != nil {
		sup.Add(sched)
	}

	logger.Info().
		Int("port", cfg.Port).
		Str("environment", cfg.Environment).
		Int("rate_limit_rps", cfg.Security.RateLimitRPS).
		Int("rate_limit_burst", cfg.Security.RateLimitBurst).
		Bool("cors", cfg.Security.EnableCORS).
		Bool("auth", cfg.Auth.Enabled).
		Dur("request_timeout", cfg.Security.RequestTimeout).
		Msg("Starting server")

	return sup.Serve(ctx)
}

// buildEngines wires the gateway, queue and device enumerator into both sync engines.
func buildEngines(
	cfg *config.Config,
	logger zerolog.Logger,
	m *metrics.Metrics,
	deviceRepo repository.DeviceRepository,
	employeeRepo repository.EmployeeRepository,
	attendanceRepo repository.AttendanceRepository,
	employeeSvc *service.EmployeeService,
) (*syncer.EmployeeEngine, *syncer.AttendanceEngine) {
	gw := gateway.New(gateway.Config{
		BaseURL:                 cfg.Gateway.BaseURL,
		Timeout:                 cfg.Gateway.Timeout,
		RetryAttempts:           cfg.Gateway.RetryAttempts,
		RetryDelay:              cfg.Gateway.RetryDelay,
		BreakerMaxRequests:      cfg.Gateway.BreakerMaxRequests,
		BreakerInterval:         cfg.Gateway.BreakerInterval,
		BreakerTimeout:          cfg.Gateway.BreakerTimeout,
		BreakerFailureThreshold: cfg.Gateway.BreakerFailureThreshold,
	}, logging.Component(logger, "gateway"), m)

	var q *queue.Queue
	if cfg.Queue.Enabled {
		delay := cfg.Queue.Delay
		if cfg.TestMode() {
			delay = 0
		}
		q = queue.New(queue.Config{DefaultDelay: delay, Observer: m}, logging.Component(logger, "queue"))
	}

	var alerter syncer.Alerter
	if cfg.Alerts.URL != "" {
		notifier := notification.NewNotifierWithConfig(notification.NotificationConfig{
			URL:            cfg.Alerts.URL,
			Timeout:        cfg.Alerts.Timeout,
			RetryAttempts:  cfg.Alerts.RetryAttempts,
			RetryDelay:     cfg.Alerts.RetryDelay,
			MaxPayloadSize: cfg.Alerts.MaxPayloadSize,
		}, logging.Component(logger, "alerts"))
		alerter = notificationadapter.NewServiceAdapter(notifier)
	}

	deps := func(component string, invalidator syncer.Invalidator) syncer.Deps {
		return syncer.Deps{
			Devices: devices.NewEnumerator(deviceRepo, logging.Component(logger, "devices")),
			Gateway: gw,
			Queue:   q,
			Metrics: m,
			Cache:   invalidator,
			Alerter: alerter,
			Logger:  logging.Component(logger, component),
		}
	}
	options := func(s config.SyncConfig) syncer.Options {
		opts := syncer.Options{BulkSize: s.BulkSize, Delay: s.Delay, Debug: s.Debug}
		if cfg.TestMode() {
			opts.Delay = 0
		}
		return opts
	}

	employees := syncer.NewEmployeeEngine(deps("employee-sync", employeeSvc), employeeRepo, options(cfg.EmployeeSync))

	attOpts := options(cfg.AttendanceSync)
	attOpts.TimeOffset = cfg.Attendance.TimeOffset
	attendances := syncer.NewAttendanceEngine(deps("attendance-sync", nil), attendanceRepo, attOpts)

	return employees, attendances
}

// buildScheduler registers a job per enabled engine. It returns nil when
// neither engine runs on a schedule.
func buildScheduler(cfg *config.Config, logger zerolog.Logger, employees *syncer.EmployeeEngine, attendances *syncer.AttendanceEngine) (*scheduler.Scheduler, error) {
	log := logging.Component(logger, "scheduler")

	var jobs []scheduler.Job
	if cfg.EmployeeSync.Enabled {
		jobs = append(jobs, scheduler.Job{
			Name:       "employee-sync",
			Times:      scheduler.ParseTimes(cfg.EmployeeSync.Times, log),
			Interval:   cfg.EmployeeSync.Interval,
			RunAtStart: cfg.EmployeeSync.RunAtStart,
			Run: func(ctx context.Context, trigger model.Trigger) {
				if _, err := employees.Run(ctx, trigger, nil); err != nil {
					log.Error().Err(err).Str("trigger", string(trigger)).Msg("scheduled employee sync failed")
				}
			},
		})
	}
	if cfg.AttendanceSync.Enabled {
		jobs = append(jobs, scheduler.Job{
			Name:       "attendance-sync",
			Times:      scheduler.ParseTimes(cfg.AttendanceSync.Times, log),
			Interval:   cfg.AttendanceSync.Interval,
			RunAtStart: cfg.AttendanceSync.RunAtStart,
			Run: func(ctx context.Context, trigger model.Trigger) {
				if _, err := attendances.Run(ctx, trigger, syncer.Window{}); err != nil {
					log.Error().Err(err).Str("trigger", string(trigger)).Msg("scheduled attendance sync failed")
				}
			},
		})
	}
	if len(jobs) == 0 {
		log.Info().Msg("No sync engine is scheduled")
		return nil, nil
	}
	return scheduler.New(log, jobs...)
}
