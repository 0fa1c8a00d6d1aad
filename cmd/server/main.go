package main

import (
	"context"
	"errors"
	"flag"
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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/atmx/prediction-amm/internal/config"
	"github.com/atmx/prediction-amm/internal/metrics"
	"github.com/atmx/prediction-amm/internal/processor"
	"github.com/atmx/prediction-amm/internal/publish"
	"github.com/atmx/prediction-amm/internal/store"
	"github.com/atmx/prediction-amm/internal/trade"
)

func main() {
	configPath := flag.String("config", os.Getenv("PAMM_CONFIG"), "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.Database.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if cfg.Database.RunMigrations {
			if err := pg.Migrate(ctx); err != nil {
				slog.Error("migration failed", "err", err)
				os.Exit(1)
			}
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Redis.URL != "" {
			opt, err := redis.ParseURL(cfg.Redis.URL)
			if err != nil {
				slog.Error("invalid redis url", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.Redis.TTL.Duration)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("database dsn not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Engine ---
	proc, err := processor.New(cfg.Processor())
	if err != nil {
		slog.Error("invalid engine config", "err", err)
		os.Exit(1)
	}

	// --- Event stream ---
	var sink trade.EventSink
	var publisher *publish.JetStreamPublisher
	if cfg.NATS.URL != "" {
		nc, js, err := publish.Connect(cfg.NATS.URL)
		if err != nil {
			slog.Error("NATS connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, nc.Close)
		if err := publish.EnsureStream(ctx, js, cfg.NATS.Stream, cfg.NATS.SubjectPrefix, cfg.NATS.MaxAge.Duration); err != nil {
			slog.Error("stream setup failed", "err", err)
			os.Exit(1)
		}
		publisher = publish.NewJetStreamPublisher(js, cfg.NATS.SubjectPrefix, cfg.NATS.BufferSize)
		sink = publisher
	} else {
		slog.Warn("nats url not set, settlements are reported in the log only")
	}

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()

	// --- Trade service ---
	tradeSvc := trade.NewService(proc, st, wsHub, sink)
	if cfg.Server.TxToken == "" {
		slog.Warn("server tx_token not set, POST /api/v1/tx is open to anyone who can reach the port")
	}
	tradeSvc.SetTxToken(cfg.Server.TxToken)
	if err := tradeSvc.Restore(ctx); err != nil {
		slog.Error("failed to restore world state", "err", err)
		os.Exit(1)
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
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
		w.Write([]byte(`{"status":"ok","service":"prediction-amm"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	// The WebSocket route must not sit behind a timeout.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws", wsHub.HandleWS)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			tradeSvc.Routes(r)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("prediction-amm listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		wsHub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		wsHub.Run()
		return nil
	})

	if publisher != nil {
		g.Go(func() error { return publisher.Run(gctx) })
	}

	if cfg.Ticker.Auto {
		slog.Info("auto ticker enabled", "interval", cfg.Ticker.Interval.Duration)
		g.Go(func() error { return tradeSvc.RunTicker(gctx, cfg.Ticker.Interval.Duration) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
	}

	// Graceful shutdown.
	slog.Info("shutting down prediction-amm...")
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tradeSvc.Checkpoint(saveCtx); err != nil {
		slog.Error("final checkpoint failed", "err", err)
	}
	fmt.Println("prediction-amm stopped")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
