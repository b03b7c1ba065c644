package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/folio/portfolio-engine/internal/metrics"
	"github.com/folio/portfolio-engine/internal/portfolio"
	"github.com/folio/portfolio-engine/internal/quotes"
	"github.com/folio/portfolio-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Store ---
	// In-memory only: there is no persistence layer. State is seeded below
	// and lost on restart.
	st := store.NewMemoryStore()

	if os.Getenv("SEED") != "off" {
		if err := store.Seed(context.Background(), st); err != nil {
			slog.Error("seeding demo data failed", "err", err)
			os.Exit(1)
		}
		slog.Info("demo data seeded")
	}
	if assets, err := st.ListAssets(context.Background(), ""); err == nil {
		metrics.TrackedAssets.Set(float64(len(assets)))
	}

	// --- FX rate for derived TWD amounts ---
	fxRate := decimal.NewFromFloat(32.5)
	if v := os.Getenv("FX_RATE_TWD"); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil || !parsed.IsPositive() {
			slog.Error("invalid FX_RATE_TWD", "value", v)
			os.Exit(1)
		}
		fxRate = parsed
	}

	// --- Quote sources ---
	// The inter-request delay is a rate-limiting courtesy toward the quote
	// endpoints, not a correctness requirement.
	delay := 500 * time.Millisecond
	if v := os.Getenv("QUOTE_DELAY_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			slog.Error("invalid QUOTE_DELAY_MS", "value", v)
			os.Exit(1)
		}
		delay = time.Duration(ms) * time.Millisecond
	}

	relayURL := os.Getenv("QUOTE_RELAY_URL")
	if relayURL == "" {
		relayURL = quotes.DefaultRelayURL
	}

	stock := quotes.NewChartSource(os.Getenv("QUOTE_BASE_URL"))
	fund := quotes.NewNAVSource(relayURL)
	refresher := quotes.NewRefresher(stock, fund, delay, 8*time.Second)

	// --- WebSocket hub ---
	wsHub := portfolio.NewWSHub()
	go wsHub.Run()

	// --- Portfolio service ---
	svc := portfolio.NewService(st, refresher, fxRate, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"portfolio-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.Routes)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // a refresh pass can take a while
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("portfolio-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down portfolio-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("portfolio-engine stopped")
}
