package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/api"
	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
	"github.com/clinicdesk/appointment-scheduling/internal/config"
	"github.com/clinicdesk/appointment-scheduling/internal/db"
	"github.com/clinicdesk/appointment-scheduling/internal/directory"
	"github.com/clinicdesk/appointment-scheduling/internal/leave"
	"github.com/clinicdesk/appointment-scheduling/internal/logging"
	"github.com/clinicdesk/appointment-scheduling/internal/notify"
	redisclient "github.com/clinicdesk/appointment-scheduling/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api-server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("clinic_timezone", cfg.ClinicLocation.String()),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, "api-server", log)
	cancelPg()
	if err != nil {
		return err
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	applied, err := db.Migrate(rootCtx, pgPool)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		log.Info("migrations applied", zap.Strings("migrations", applied))
	}

	// Connect Redis
	rdb, err := redisclient.Connect(rootCtx, redisclient.ClientOptions{
		Addr:       cfg.RedisAddr,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
		ClientName: "api-server",
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

	healthDeps := []api.Dependency{
		{Name: "postgres", Critical: true, Ping: pgPool.Ping},
		{Name: "redis", Critical: true, Ping: redisclient.Ping(rdb)},
	}

	// Notifications
	var publisher notify.Publisher = notify.NewLogPublisher(log)
	if cfg.AMQPURL != "" {
		conn, err := notify.Dial(cfg.AMQPURL)
		if err != nil {
			return err
		}
		defer closeAMQP(conn, log)

		amqpPub, err := notify.NewAMQPPublisher(conn, cfg.NotifyQueue)
		if err != nil {
			return err
		}
		defer func() { _ = amqpPub.Close() }()

		publisher = amqpPub
		healthDeps = append(healthDeps, api.Dependency{Name: "rabbitmq", Ping: amqpPub.Ping})
		log.Info("connected to RabbitMQ", zap.String("queue", cfg.NotifyQueue))
	} else {
		log.Warn("AMQP_URL not set, notifications are only logged")
	}

	dispatcher := notify.NewDispatcher(publisher, notify.NewPgOutbox(pgPool), cfg, log)
	dispatcher.Start()

	pgAccounts := directory.NewPgRepository(pgPool)
	var accounts appointment.Directory = pgAccounts
	if cfg.DirectoryCacheTTL > 0 {
		accounts = directory.NewCachedFinder(pgAccounts, rdb, cfg.DirectoryCacheTTL, log)
	}

	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	appts := appointment.NewService(appointment.NewPgRepository(pgPool), accounts, locker, dispatcher, cfg, log)
	leaves := leave.NewService(leave.NewPgRepository(pgPool), cfg, log)

	router := api.NewRouter(api.RouterConfig{
		Appointments:       appts,
		Leaves:             leaves,
		Health:             api.NewHealthHandler(cfg.Env, version, healthDeps...),
		Log:                log,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	// Requests are done; flush what they queued.
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error("notification dispatcher did not drain", zap.Error(err))
	}

	log.Info("api-server stopped")
	return nil
}

func closeAMQP(conn *amqp.Connection, log *zap.Logger) {
	if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		log.Warn("error closing rabbitmq connection", zap.Error(err))
	}
}
