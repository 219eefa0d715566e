package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"peerprep/interview/internal/config"
	"peerprep/interview/internal/db"
	"peerprep/interview/internal/events"
	"peerprep/interview/internal/feedback"
	"peerprep/interview/internal/handlers"
	"peerprep/interview/internal/hub"
	"peerprep/interview/internal/interview"
	"peerprep/interview/internal/match_management"
	"peerprep/interview/internal/questions"
	"peerprep/interview/internal/repositories"
	"peerprep/interview/internal/routers"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "interview",
		Short: "Peer interview scheduling, matching and live session service",
		PersistentPreRun: func(*cobra.Command, []string) {
			// a missing .env is fine outside local development
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "optional config file (yaml, json or toml)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(configFile)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(configFile)
		},
	})
	return root
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func migrate(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	conn, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(conn, cfg.DBDriver); err != nil {
		return err
	}
	logger.Info("Migrations applied", zap.String("driver", cfg.DBDriver))
	return nil
}

// newPublisher connects to Redis when an address is configured. Without one,
// lifecycle events are not published.
func newPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Publisher, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, lifecycle events will not be published")
		return events.NopPublisher{}, func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return events.NewRedisPublisher(rdb), func() { rdb.Close() }, nil
}

type app struct {
	router  *chi.Mux
	sweeper *match_management.Sweeper
}

// buildApp wires every component onto an open database.
func buildApp(cfg *config.Config, conn *gorm.DB, publisher events.Publisher, picker questions.Picker, logger *zap.Logger) *app {
	store := repositories.NewRepository(conn)
	realtime := hub.NewHub()

	coordinator := match_management.NewCoordinator(store, publisher, logger.Named("matching"))
	coordinator.SetNotifier(realtime)
	sessions := interview.NewSessionManager(store, picker, publisher, logger.Named("sessions"))
	sessions.SetNotifier(realtime)
	collector := feedback.NewCollector(store, logger.Named("feedback"))

	router := routers.NewRouter(cfg.AllowedOrigins)
	routers.HealthRoutes(router, handlers.NewHealthHandler())
	routers.APIRoutes(router, cfg.JWTSecret,
		handlers.NewSessionHandler(sessions, logger),
		handlers.NewMatchingHandler(coordinator, logger),
		handlers.NewFeedbackHandler(collector, logger))
	routers.RealtimeRoutes(router,
		hub.NewHandler(realtime, cfg.JWTSecret, cfg.AllowedOrigins, sessions, coordinator, logger.Named("hub")))

	return &app{
		router:  router,
		sweeper: match_management.NewSweeper(coordinator, cfg.ExpirySweepSchedule, logger.Named("sweeper")),
	}
}

func serve(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	conn, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		logger.Error("Failed to open database", zap.Error(err))
		return err
	}
	if err := db.Migrate(conn, cfg.DBDriver); err != nil {
		logger.Error("Failed to migrate database", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	publisher, closePublisher, err := newPublisher(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("Failed to initialize event publisher", zap.Error(err))
		return err
	}
	defer closePublisher()

	picker := questions.NewHTTPPicker(cfg.QuestionServiceURL, nil)
	a := buildApp(cfg, conn, publisher, picker, logger)

	if err := a.sweeper.Start(); err != nil {
		logger.Error("Failed to start expiry sweep", zap.Error(err))
		return err
	}

	serverAddr := ":" + cfg.Port
	// no write timeout: WebSocket connections are long-lived
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     a.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Interview service starting", zap.String("addr", serverAddr), zap.String("db_driver", cfg.DBDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-shutdownChan:
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
		a.sweeper.Stop()
		return err
	}

	logger.Info("Interview service shutting down...")
	a.sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}
	logger.Info("Interview service exited")
	return nil
}
