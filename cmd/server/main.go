package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cafe-pos/internal/api"
	"cafe-pos/internal/checkout"
	"cafe-pos/internal/config"
	"cafe-pos/internal/db"
	"cafe-pos/internal/display"
	"cafe-pos/internal/logger"
	"cafe-pos/internal/metrics"
	"cafe-pos/internal/middleware"
	"cafe-pos/internal/notify"
	"cafe-pos/internal/order"
	"cafe-pos/internal/product"
	"cafe-pos/internal/queue"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = startServer
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	if cfg.IsProduction() && cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}

	database := initDBFunc(cfg)
	defer database.Close()

	var notifier queue.Notifier = notify.Nop{}
	if cfg.RabbitMQURL != "" {
		conn, err := notify.Dial(cfg.RabbitMQURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		notifier = notify.NewRabbitMQ(conn)
	} else {
		logger.L().Warn("RABBITMQ_URL not set, queue events will not be published")
	}

	router, err := newServer(cfg, database, notifier)
	if err != nil {
		return err
	}

	addr := ":" + cfg.AppPort
	logger.L().Info("HTTP server listening", zap.String("addr", addr), zap.String("env", cfg.AppEnv))
	return startServerFunc(addr, router)
}

// newServer wires repositories, services and handlers on top of database.
func newServer(cfg *config.Config, database *sql.DB, notifier queue.Notifier) (http.Handler, error) {
	profile, err := config.LoadKitchenProfile(cfg.KitchenConfig)
	if err != nil {
		return nil, err
	}
	kitchen, err := queue.NewKitchen(profile.MaxSimultaneous, profile.BaseTimes)
	if err != nil {
		return nil, err
	}

	stats := &metrics.Queue{}

	queueRepo := queue.NewRepository(database)
	queueSvc := queue.NewService(queueRepo,
		queue.WithKitchen(kitchen),
		queue.WithNotifier(notifier),
		queue.WithMetrics(stats),
	)

	orderRepo := order.NewRepository(database)
	productRepo := product.NewRepository(database)

	checkoutSvc := checkout.NewService(orderRepo, productRepo, queueSvc)
	displaySvc := display.NewService(queueSvc, orderRepo, productRepo, kitchen.MaxSimultaneous)

	h := api.NewHandler(queueSvc, checkoutSvc, displaySvc, stats)
	return setupRouter(cfg, h), nil
}

func setupRouter(cfg *config.Config, h *api.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(logger.RequestIDMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.CORS(cfg.CORSOrigin))
	r.Use(middleware.AuthMiddleware([]byte(cfg.JWTSecret)))
	r.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware)

	h.Register(r)
	return r
}

// startServer serves until SIGINT or SIGTERM, then drains in-flight requests.
func startServer(addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case sig := <-stop:
		logger.L().Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
