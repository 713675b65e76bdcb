package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"college-roster-go/config"
	"college-roster-go/db"
	"college-roster-go/handlers"
	"college-roster-go/logger"
	"college-roster-go/metrics"
	"github.com/gin-gonic/gin"
)

// HTTP server timeouts.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// listen opens the server socket once the roster is loaded.
var listen = net.Listen

func main() {
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		stop()
		logger.Get().Fatal(ctx, "server failed", logger.Error(err))
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.WithJSON(cfg.LogFormat == config.LogFormatJSON)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	gin.SetMode(cfg.GinMode)

	// Phase one: the roster must be loaded before anything listens.
	store := db.Instrumented(newStore(cfg, log))
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "closing store", logger.Error(err))
		}
	}()
	if err := store.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize data: %w", err)
	}
	log.Info(ctx, "data initialized", logger.String("store", cfg.Store))

	// Phase two: routes, then the listener.
	opts := handlers.RouterOptions{Logger: log.Named("http")}
	if cfg.MetricsEnabled {
		opts.Metrics = metrics.Default()
	}
	router := handlers.NewRouter(store, opts)

	ln, err := listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}
	srv := &http.Server{
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "server listening", logger.Int("port", cfg.Port))
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(ctx, "shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newStore builds the configured backend; nothing is opened until Initialize.
func newStore(cfg *config.Config, log logger.Logger) db.Store {
	source := os.DirFS(cfg.DataDir)
	storeLog := db.WithLogger(log.Named("db"))

	switch cfg.Store {
	case config.StoreBolt:
		return db.NewBoltStore(cfg.BoltPath, source, storeLog)
	case config.StoreRedis:
		client := db.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		return db.NewRedisService(client, source, storeLog)
	default:
		return db.NewMemoryStore(source, storeLog)
	}
}
