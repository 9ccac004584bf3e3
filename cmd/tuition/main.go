package main

import (
	"context"
	"os"
	"time"

	"tuition/internal/cache"
	"tuition/internal/cli"
	apphttp "tuition/internal/http"
	applog "tuition/internal/log"
	"tuition/internal/services"
	"tuition/internal/sheets"
)

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger("info", applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)

	res := cli.InitBackend(context.Background(), logger, cfg)

	ledgerSvc := services.NewLedgerService(res.Store, res.Publisher(), cli.Years(cfg), cfg.SummaryCacheTTL)
	rosterSvc := services.NewRosterService(res.Store, res.Publisher())
	rosterSvc.OnChange(ledgerSvc.Invalidate)

	caches := cache.NewManager()
	caches.Register(ledgerSvc.Summaries())
	caches.StartCleanup(5 * time.Minute)

	opts := apphttp.Options{
		Logger: logger,
		Ledger: ledgerSvc,
		Roster: rosterSvc,
		Debug:  cfg.LogLevel == "debug",
	}
	if reader, ok := res.Reports.(sheets.ReportReader); ok {
		opts.Reports = reader
	}
	srv := apphttp.NewServer(opts)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting tuition server", "port", cfg.Port, "backend", cfg.DataBackend, "report", cfg.ReportBackend)
	go func() {
		if err := srv.Start(":" + cfg.Port); err != nil {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
