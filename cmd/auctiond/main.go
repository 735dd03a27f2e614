package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stepweaver/silent-auction/internal/bidding"
	"github.com/stepweaver/silent-auction/internal/clock"
	"github.com/stepweaver/silent-auction/internal/closing"
	"github.com/stepweaver/silent-auction/internal/config"
	"github.com/stepweaver/silent-auction/internal/health"
	"github.com/stepweaver/silent-auction/internal/leader"
	"github.com/stepweaver/silent-auction/internal/notify"
	"github.com/stepweaver/silent-auction/internal/ratelimit"
	"github.com/stepweaver/silent-auction/internal/sched"
	"github.com/stepweaver/silent-auction/internal/server"
	"github.com/stepweaver/silent-auction/internal/store/postgres"
	"github.com/stepweaver/silent-auction/internal/telemetry"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()
	logger.InfoContext(ctx, "connected to database", slog.String("host", cfg.Database.Host))

	items := postgres.NewItemRepo(db, clk)
	bids := postgres.NewBidRepo(db, clk)
	settings := postgres.NewSettingsRepo(db, clk)
	events := postgres.NewEventStore(db)

	mailer, err := notify.NewSMTPMailer(cfg.SMTP)
	if err != nil {
		return fmt.Errorf("creating mailer: %w", err)
	}
	dispatcher := notify.NewDispatcher(mailer, clk, cfg.SMTP.SendSpacing, logger, tp.TracerProvider)

	orchestrator := closing.NewOrchestrator(items, bids, settings, events, dispatcher,
		cfg.Auction.AdminEmails, logger, tp.TracerProvider, clk)
	bidSvc := bidding.NewService(items, bids, settings, events, logger, tp.TracerProvider, clk)
	limiter := ratelimit.NewFixedWindow(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, clk)

	healthHandler := health.NewHandler(clk,
		health.Check{
			Name:  "postgres",
			Probe: db.PingContext,
		},
	)

	srv := server.New(items, bids, settings, bidSvc, orchestrator, limiter, healthHandler,
		server.AuthConfig{
			CronSecret:    cfg.Auction.CronSecret,
			AdminUser:     cfg.Auction.AdminUser,
			AdminPassword: cfg.Auction.AdminPassword,
		},
		logger, tp.TracerProvider, clk)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
			logger.ErrorContext(ctx, "http server error", slog.Any("error", listenErr))
			cancel()
		}
	}()

	healthHandler.SetReady(true)
	logger.InfoContext(ctx, "auctiond is running", slog.String("version", version))

	// The in-process close-check loop is optional; deployments with an
	// external cron hit /internal/close-check instead. When replicated,
	// leader election keeps it to one ticker.
	if cfg.Scheduler.Enabled {
		scheduler := sched.New(orchestrator, cfg.Scheduler.Interval, clk, logger)
		if cfg.Scheduler.LeaderElection.Enabled {
			go func() {
				if leaderErr := leader.Run(ctx, cfg.Scheduler.LeaderElection, logger, scheduler.Run, func() {
					logger.Info("lost leadership, stopping scheduler")
				}); leaderErr != nil {
					logger.ErrorContext(ctx, "leader election failed", slog.Any("error", leaderErr))
				}
			}()
		} else {
			go scheduler.Run(ctx)
		}
	}

	<-ctx.Done()
	logger.Info("shutting down...")
	healthHandler.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}
