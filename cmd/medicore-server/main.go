package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medicore/medicore/internal/config"
	"github.com/medicore/medicore/internal/domain/doctor"
	"github.com/medicore/medicore/internal/domain/identity"
	"github.com/medicore/medicore/internal/domain/notification"
	"github.com/medicore/medicore/internal/domain/queue"
	"github.com/medicore/medicore/internal/domain/sos"
	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/internal/platform/db"
	"github.com/medicore/medicore/internal/platform/middleware"
	redisclient "github.com/medicore/medicore/internal/platform/redis"
	"github.com/medicore/medicore/internal/platform/websocket"
	"github.com/medicore/medicore/migrations"
	"github.com/medicore/medicore/pkg/validator"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medicore-server",
		Short: "MediCore real-time coordination server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.Files
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationSource(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationSource(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	jc := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.AuthSigningKey != "" {
		jc.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return jc
}

// deps are the external resources the HTTP server is built on. rdb is nil
// when Redis is not configured.
type deps struct {
	cfg    *config.Config
	pool   *pgxpool.Pool
	rdb    *goredis.Client
	logger zerolog.Logger
}

// newServer assembles the echo instance, its declared middleware chain and
// every route.
func newServer(d deps) (*echo.Echo, *websocket.Hub, error) {
	cfg, logger := d.cfg, d.logger

	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.NewValidator()

	// Global middleware, outermost first
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.HeaderUserID, auth.HeaderUserRole},
	}))

	// Health endpoints are registered before auth so probes stay anonymous.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(d.pool))
	checks := map[string]db.CheckFunc{
		"postgres": d.pool.Ping,
		"redis":    nil,
	}
	if d.rdb != nil {
		checks["redis"] = redisclient.Ping(d.rdb)
	}
	e.GET("/health/ready", db.ReadinessHandler(checks))

	// Event broadcaster
	hub := websocket.NewHub(logger.With().Str("component", "websocket").Logger())
	wsHandler := websocket.NewWebSocketHandler(hub, websocket.HandlerConfig{
		PongWait:       cfg.WSPongWait,
		SendBuffer:     cfg.WSSendBuffer,
		AllowedOrigins: cfg.CORSOrigins,
	})
	wsHandler.RegisterRoutes(e.Group(""))

	// Auth middleware
	var authMW echo.MiddlewareFunc
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtConfig(cfg))
	} else {
		authMW = auth.JWTMiddleware(jwtConfig(cfg))
	}
	apiV1 := e.Group("/api/v1", authMW)

	// Directory
	userRepo := identity.NewUserRepo(d.pool)
	patientRepo := identity.NewPatientRepo(d.pool)

	// Notifications
	notifySvc := notification.NewService(notification.NewNotificationRepo(d.pool))
	notifySvc.SetPublisher(hub)
	notifySvc.SetLogger(logger)
	notification.NewHandler(notifySvc).RegisterRoutes(apiV1)

	// Doctor status machine
	doctorSvc := doctor.NewService(doctor.NewDoctorRepo(d.pool))
	doctorSvc.SetPublisher(hub)
	doctorSvc.SetLogger(logger)
	doctor.NewHandler(doctorSvc).RegisterRoutes(apiV1)

	// Queue manager
	queueSvc := queue.NewService(queue.NewAppointmentRepo(d.pool), doctorSvc)
	queueSvc.SetPublisher(hub)
	queueSvc.SetLogger(logger)
	queueSvc.SetPatients(patientRepo)
	queueSvc.SetLocation(loc)
	if d.rdb != nil {
		queueSvc.SetLocker(redisclient.NewRedisDayLocker(d.rdb, cfg.QueueLockTTL))
	}
	queue.NewHandler(queueSvc).RegisterRoutes(apiV1)

	// SOS alerts
	sosSvc := sos.NewService(sos.NewAlertRepo(d.pool), patientRepo, userRepo, notifySvc)
	sosSvc.SetPublisher(hub)
	sosSvc.SetLogger(logger)
	sos.NewHandler(sosSvc).RegisterRoutes(apiV1)

	return e, hub, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Redis (optional)
	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = redisclient.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		logger.Info().Msg("connected to redis, queue locking enabled")
	} else {
		logger.Warn().Msg("REDIS_URL not set, queue positions are issued without a lock")
	}

	e, _, err := newServer(deps{cfg: cfg, pool: pool, rdb: rdb, logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return cfg.ShutdownTimeout
}
