// cmd/dealengine/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zarzn/dealbot-be-sub000/internal/cache"
	"github.com/zarzn/dealbot-be-sub000/internal/common/config"
	"github.com/zarzn/dealbot-be-sub000/internal/common/database"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/common/observability"
	"github.com/zarzn/dealbot-be-sub000/internal/engine"
	"github.com/zarzn/dealbot-be-sub000/internal/engine/batchscore"
	"github.com/zarzn/dealbot-be-sub000/internal/engine/dealscore"
	"github.com/zarzn/dealbot-be-sub000/internal/engine/queryinterp"
	"github.com/zarzn/dealbot-be-sub000/internal/engine/relevance"
	"github.com/zarzn/dealbot-be-sub000/internal/genai"
	"github.com/zarzn/dealbot-be-sub000/internal/markets"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
	"github.com/zarzn/dealbot-be-sub000/internal/storage"
)

const reliabilityTTL = 12 * time.Hour

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting deal engine...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Repositories & cache ---
	dealRepo := storage.NewDealRepository(pg.DB, log)
	historyRepo := storage.NewPriceHistoryRepository(pg.DB, log)
	scoreRepo := storage.NewScoreRecordRepository(pg.DB, log)
	reliability := cache.NewReliabilityCache(redisClient.Client, cfg.Engine.Scoring.DefaultReliability, reliabilityTTL, log)

	// --- Text-generation capability ---
	completer := genai.NewClient(*cfg, log)
	if !completer.Available() {
		zapLog.Warn("text-generation capability not configured, running heuristic-only")
	}

	// --- Market connectors (registration order fixed by name) ---
	var connectors []markets.Connector
	names := make([]string, 0, len(cfg.Markets))
	for name := range cfg.Markets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mcfg := cfg.Markets[name]
		if !mcfg.Enabled {
			zapLog.Info("market disabled", zap.String("market", name))
			continue
		}
		connectors = append(connectors, markets.NewHTTPConnector(name, mcfg, log))
		zapLog.Info("market connector registered", zap.String("market", name))
	}
	if len(connectors) == 0 {
		zapLog.Warn("no market connectors enabled, searches will return empty results")
	}

	// --- Engine wiring ---
	eng := engine.New(engine.Deps{
		Interpreter: queryinterp.New(completer, log),
		Aggregator: markets.NewAggregator(
			connectors,
			config.GetDuration(cfg.Engine.MarketTimeout),
			cfg.Engine.MaxProducts,
			log,
		),
		Filter: relevance.NewFilter(cfg.Engine.FallbackLimit, cfg.Engine.MaxProducts, log),
		BatchScorer: batchscore.New(
			completer,
			cfg.Engine.BatchScoreCap,
			config.GetDuration(cfg.Engine.BatchScoreTimeout),
			log,
		),
		Calculator: dealscore.NewCalculator(
			completer,
			reliability,
			&storage.ScoreWriter{Records: scoreRepo, Deals: dealRepo},
			cfg.Engine.Scoring,
			log,
		),
		Deals:     dealRepo,
		History:   historyRepo,
		ScoreHist: scoreRepo,
		Obs:       obs,
		Config:    cfg.Engine,
		Logger:    log,
	})

	// --- HTTP API ---
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		var req models.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		writeJSON(w, http.StatusOK, eng.Search(r.Context(), req))
	})

	mux.HandleFunc("POST /api/v1/deals/{id}/score", func(w http.ResponseWriter, r *http.Request) {
		dealID := r.PathValue("id")
		res, err := eng.ComputeScore(r.Context(), dealID)
		if errors.Is(err, storage.ErrDealNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "deal not found"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "score computation failed"})
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := pg.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: mux,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Metrics get their own listener so scrapes never contend with API
	// traffic.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    cfg.Server.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		zapLog.Info("Metrics server listening", zap.String("addr", cfg.Server.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Metrics server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Deal engine stopped gracefully")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
