package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/tradewatch/circuit-data/internal/bizdate"
	"github.com/tradewatch/circuit-data/internal/config"
	"github.com/tradewatch/circuit-data/internal/database"
	"github.com/tradewatch/circuit-data/internal/ingest"
	"github.com/tradewatch/circuit-data/internal/quote"
	"github.com/tradewatch/circuit-data/internal/schedule"
	"github.com/tradewatch/circuit-data/internal/store"
	"github.com/tradewatch/circuit-data/internal/universe"
	"github.com/tradewatch/circuit-data/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/collector.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"underlying", cfg.Market.Underlying,
		"exchange", cfg.Universe.Exchange,
	)

	loc, err := time.LoadLocation(cfg.Market.Timezone)
	if err != nil {
		logger.Error("failed to load timezone", "timezone", cfg.Market.Timezone, "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Postgres.Host,
		"port", cfg.Database.Postgres.Port,
		"database", cfg.Database.Postgres.Name,
	)

	db, err := database.Connect(ctx, cfg.Database.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("database connected")

	// Create Kite Connect client
	kc := kiteconnect.New(cfg.Kite.APIKey)
	kc.SetAccessToken(cfg.Kite.AccessToken)
	if cfg.Kite.BaseURL != "" {
		kc.SetBaseURI(cfg.Kite.BaseURL)
	}
	if cfg.Kite.Timeout > 0 {
		kc.SetTimeout(cfg.Kite.Timeout)
	}

	st := store.New(db, logger)
	resolver := bizdate.New(st, cfg.Market.SpotSymbol, loc, logger)
	pipeline := ingest.New(ingest.Config{StampWindow: cfg.Market.StampWindow}, st, resolver, logger)

	quoteCfg := quote.DefaultConfig()
	quoteCfg.Exchange = cfg.Universe.Exchange
	quoteCfg.SpotID = "NSE:" + cfg.Market.SpotSymbol
	quoteCfg.Underlying = cfg.Market.Underlying
	quoteCfg.BatchSize = cfg.Kite.QuoteBatchSize
	quotes := quote.NewKite(quoteCfg, kc, logger)

	syncer := universe.New(universe.Config{
		Exchange:   cfg.Universe.Exchange,
		Underlying: cfg.Market.Underlying,
	}, kc, st, logger)

	// Seed the universe on first run so the initial tick has instruments
	// to collect.
	if err := syncer.EnsureSeeded(ctx, resolver.Current(ctx, nil)); err != nil {
		logger.Error("failed to seed instrument universe", "error", err)
		os.Exit(1)
	}

	// Daily universe refresh before the pre-market session opens.
	refresher := cron.New(cron.WithLocation(loc))
	_, err = refresher.AddFunc(cfg.Universe.RefreshCron, func() {
		if err := syncer.Refresh(ctx, resolver.Resolve(ctx, nil)); err != nil {
			logger.Error("scheduled universe refresh failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("invalid universe refresh schedule",
			"cron", cfg.Universe.RefreshCron, "error", err)
		os.Exit(1)
	}
	refresher.Start()
	defer refresher.Stop()

	windows, err := schedule.NewWindows(cfg.Market.Timezone,
		cfg.Market.PreMarketOpen, cfg.Market.MarketOpen, cfg.Market.MarketClose)
	if err != nil {
		logger.Error("invalid market windows", "error", err)
		os.Exit(1)
	}

	scheduler := schedule.New(schedule.Config{
		Windows: windows,
		Intervals: schedule.Intervals{
			PreMarket:   cfg.Market.PreMarketInterval,
			MarketHours: cfg.Market.MarketInterval,
			AfterHours:  cfg.Market.AfterHoursInterval,
		},
		SpotIndex:        cfg.Market.SpotSymbol,
		CoverageAttempts: cfg.Market.CoverageAttempts,
		CoverageBackoff:  cfg.Market.CoverageBackoff,
	}, quotes, st, pipeline, st, logger)

	// Health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(db, st, scheduler, logger),
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("collector running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	err = scheduler.Run(ctx)
	if err != nil && err != context.Canceled {
		logger.Error("scheduler stopped", "error", err)
	}

	logger.Info("shutting down...")

	// Graceful shutdown of health server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("collector stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(db *pgxpool.Pool, st *store.Store, scheduler *schedule.Scheduler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check database
		if err := db.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}

		// Check instrument universe
		active, err := st.CountActive(ctx)
		if err == nil {
			health.Components["universe"] = map[string]interface{}{
				"active_instruments": active,
			}
			if active == 0 {
				health.Status = "degraded"
			}
		}

		// Check collection liveness
		lastTick, lastResult := scheduler.LastTick()
		if lastTick.IsZero() {
			health.Components["collection"] = "waiting for first tick"
		} else {
			health.Components["collection"] = map[string]interface{}{
				"last_tick":     lastTick.Format(time.RFC3339),
				"last_tick_age": time.Since(lastTick).Round(time.Second).String(),
				"saved":         lastResult.Saved,
				"skipped":       lastResult.Skipped,
				"business_date": lastResult.BusinessDate.Format("2006-01-02"),
			}
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
