package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/campusride/campusride-backend/internal/config"
	"github.com/campusride/campusride-backend/internal/database"
	"github.com/campusride/campusride-backend/internal/handlers"
	"github.com/campusride/campusride-backend/internal/logging"
	"github.com/campusride/campusride-backend/internal/repository"
	"github.com/campusride/campusride-backend/internal/services"
	"github.com/gin-gonic/gin"
)

type stores struct {
	rides         repository.RideStore
	notifications repository.NotificationStore
	users         repository.UserDirectory
	friends       repository.FriendLister
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	feed, closeFeed, err := openFeed(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize Redis", "error", err)
		os.Exit(1)
	}
	defer closeFeed()

	sinks := services.MultiSink{feed}
	if cfg.AMQPURL != "" {
		amqpSink, err := services.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			// Downstream consumers are optional; the API keeps serving.
			logger.Warn("amqp sink disabled", "error", err)
		} else {
			defer amqpSink.Close()
			sinks = append(sinks, amqpSink)
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := services.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}

	// Initialize WebSocket hub
	hub := services.NewHub(logger)
	go hub.Run()

	notifier := services.NewNotificationService(st.notifications, st.rides, st.friends, hub, logger)
	engine := services.NewRideService(st.rides, notifier, sinks, logger, services.RideOptions{
		RecurringHorizonDays: cfg.RecurringHorizonDays,
		SearchWindow:         cfg.SearchWindow,
	})
	matcher := services.NewMatcher(st.rides, st.users, feed, logger)

	router := handlers.NewRouter(handlers.Dependencies{
		Rides:         engine,
		Notifications: notifier,
		Matcher:       matcher,
		Users:         st.users,
		Hub:           hub,
		Logger:        logger,
		JWTSecret:     cfg.JWTSecret,
		CORSOrigins:   cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("server listening", "addr", cfg.HTTPAddr, "database", cfg.UseDatabase(), "redis", cfg.RedisURL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown incomplete", "error", err)
	}
	hub.Stop()
	hub.Wait()
	engine.Wait()
}

func openStores(cfg config.Config, logger *slog.Logger) (stores, error) {
	if !cfg.UseDatabase() {
		logger.Warn("DB_HOST not set, using in-memory stores")
		dir := repository.NewMemoryDirectory()
		return stores{
			rides:         repository.NewMemoryRideStore(),
			notifications: repository.NewMemoryNotificationStore(),
			users:         dir,
			friends:       dir,
		}, nil
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		return stores{}, err
	}
	dir := repository.NewGormDirectory(db)
	return stores{
		rides:         repository.NewGormRideStore(db),
		notifications: repository.NewGormNotificationStore(db),
		users:         dir,
		friends:       dir,
	}, nil
}

type changeFeed interface {
	services.ChangeFeed
	services.EventSink
}

func openFeed(ctx context.Context, cfg config.Config, logger *slog.Logger) (changeFeed, func(), error) {
	if cfg.RedisURL == "" {
		return services.NewLocalFeed(), func() {}, nil
	}
	client, err := services.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return services.NewRedisFeed(client, cfg.RideUpdatesChannel, logger), func() { client.Close() }, nil
}
