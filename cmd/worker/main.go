package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"agency_portal_echo/internal/bootstrap"
	"agency_portal_echo/internal/config"
	"agency_portal_echo/internal/logging"
	"agency_portal_echo/internal/services"
	"agency_portal_echo/internal/tasks"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := bootstrap.Database(cfg)
	if err != nil {
		zap.S().Fatalw("Failed to connect to database", "error", err)
	}

	events, closeEvents := bootstrap.Events(cfg)
	defer closeEvents()

	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, tasks.Deps{
		Sweeper:     services.NewExpirationSweeper(db, events),
		Mailer:      bootstrap.Email(cfg),
		Messenger:   bootstrap.WhatsAppGateway(cfg),
		NotifyToken: cfg.WANotifySessionToken,
	})
	runner := tasks.NewRunner(db, registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	created, err := tasks.EnsureRecurring(ctx, db, tasks.ExpirePaymentsTaskName, tasks.ExpirePaymentsRule, time.Now())
	if err != nil {
		zap.S().Fatalw("Failed to seed recurring tasks", "error", err)
	}
	if created {
		zap.S().Infow("Seeded recurring task", "task", tasks.ExpirePaymentsTaskName, "rule", tasks.ExpirePaymentsRule)
	}

	cronLog := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	tick := func() {
		if _, err := runner.RunDue(ctx); err != nil && ctx.Err() == nil {
			zap.S().Errorw("Task run failed", "error", err)
		}
	}
	if _, err := c.AddFunc(cfg.SweepSchedule, tick); err != nil {
		zap.S().Fatalw("Invalid SWEEP_SCHEDULE", "schedule", cfg.SweepSchedule, "error", err)
	}

	zap.S().Infow("Worker started", "schedule", cfg.SweepSchedule, "tasks", registry.Names())
	// run once at startup so a restart does not wait a full tick
	tick()
	c.Start()

	<-ctx.Done()
	zap.S().Info("Shutting down worker...")
	<-c.Stop().Done()
}
