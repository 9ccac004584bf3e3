package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"tuition/internal/cli"
	applog "tuition/internal/log"
	"tuition/internal/services"
	"tuition/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger("info", applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentWorker)

	logger.Info("Starting tuition-worker")

	res := cli.InitBackend(context.Background(), logger, cfg)
	if res.Reports == nil {
		logger.Error("The worker needs a report backend; set REPORT_BACKEND to memory or sheets")
		_ = res.Cleanup()
		os.Exit(1)
	}

	processor := services.NewReportProcessor(res.Store, res.Reports, cli.Years(cfg))
	reportWorker := worker.NewReportWorker(processor)

	scheduler := cron.New()
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		stopped := scheduler.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Performing startup report check...")
	if err := reportWorker.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup report check", "error", err)
	}

	if cfg.ReportSchedule != "" {
		if _, err := reportWorker.Schedule(scheduler, cfg.ReportSchedule); err != nil {
			logger.Error("Failed to schedule report refresh", "error", err, "schedule", cfg.ReportSchedule)
			os.Exit(1)
		}
		scheduler.Start()
		logger.Info("Report refresh scheduled", "schedule", cfg.ReportSchedule)
	}

	if res.AMQP != nil {
		go func() {
			if err := res.AMQP.Consume(ctx, reportWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
