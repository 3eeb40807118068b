package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/config"
	"github.com/clinicdesk/appointment-scheduling/internal/db"
	"github.com/clinicdesk/appointment-scheduling/internal/logging"
	"github.com/clinicdesk/appointment-scheduling/internal/notify"
)

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

	if cfg.AMQPURL == "" {
		log.Fatal("AMQP_URL is required for the notification relay")
	}

	log.Info("notify-relay starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Int("batch", cfg.RelayBatchSize),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, "notify-relay", log)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	conn, err := notify.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatal("rabbitmq connection error", zap.Error(err))
	}
	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			log.Warn("error closing rabbitmq connection", zap.Error(err))
		}
	}()

	publisher, err := notify.NewAMQPPublisher(conn, cfg.NotifyQueue)
	if err != nil {
		log.Fatal("rabbitmq publisher error", zap.Error(err))
	}
	defer func() { _ = publisher.Close() }()
	log.Info("connected to RabbitMQ", zap.String("queue", cfg.NotifyQueue))

	outbox := notify.NewPgOutbox(pgPool)
	relay := notify.NewRelay(outbox, publisher, cfg.RelayBatchSize, cfg.NotifyTimeout, log)

	// Run once at startup
	runOnce(rootCtx, relay, outbox, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping notify relay")
			return
		case <-ticker.C:
			runOnce(rootCtx, relay, outbox, log)
		}
	}
}

func runOnce(ctx context.Context, relay *notify.Relay, outbox *notify.PgOutbox, log *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	res, err := relay.RunOnce(runCtx)
	if err != nil {
		log.Error("relay run error", zap.Error(err))
		return
	}

	remaining, err := outbox.CountPending(runCtx)
	if err != nil {
		log.Warn("count pending notifications", zap.Error(err))
	}
	log.Info("relay run complete",
		zap.Int("delivered", res.Delivered),
		zap.Int("failed", res.Failed),
		zap.Int64("pending", remaining),
		zap.Duration("took", time.Since(start)),
	)
}
