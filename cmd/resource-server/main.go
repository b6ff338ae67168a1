package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/resourceaccess/internal/config"
	"github.com/ehr/resourceaccess/internal/domain/auditevent"
	"github.com/ehr/resourceaccess/internal/domain/clinical"
	"github.com/ehr/resourceaccess/internal/domain/diagnostics"
	"github.com/ehr/resourceaccess/internal/domain/medication"
	"github.com/ehr/resourceaccess/internal/platform/auth"
	"github.com/ehr/resourceaccess/internal/platform/db"
	"github.com/ehr/resourceaccess/internal/platform/middleware"
	"github.com/ehr/resourceaccess/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "resource-server",
		Short:         "Clinical resource access server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(fhirCmd())
	rootCmd.AddCommand(permissionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

// loadConfig loads and validates configuration for commands that need it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
	}, logger)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the resource API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

// newRoleResolver chains the token claims, the users table and the profiles
// table.
func newRoleResolver(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *auth.RoleResolver {
	return auth.NewRoleResolver(auth.RoleResolverConfig{
		DefaultRole: cfg.DefaultRole,
		Strict:      cfg.RoleStrict,
		CacheTTL:    cfg.RoleCacheTTL,
	}, logger,
		auth.ClaimsRoleStrategy{},
		auth.NewTableRoleStrategy(pool, "users"),
		auth.NewTableRoleStrategy(pool, "profiles"),
	)
}

// newServer builds the echo instance with every route registered. The pool
// is only touched when requests arrive.
func newServer(cfg *config.Config, pool *pgxpool.Pool, roles *auth.RoleResolver, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		logger.Warn().Msg("development mode without AUTH_SIGNING_KEY: every request runs as dev-user")
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.Use(auth.ResolveRoleMiddleware(roles))

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")
	fhirGroup := e.Group("/fhir")

	// Audit log and permission grants
	auditSvc := auditevent.NewService(
		auditevent.NewAuditRepoPG(pool),
		auditevent.NewPermissionRepoPG(pool),
		cfg.AuditSource,
		logger,
	)
	auditevent.NewHandler(auditSvc).RegisterRoutes(apiV1, fhirGroup)

	// Condition and Observation
	conditionSvc := clinical.NewConditionService(clinical.NewConditionRepoPG(pool), auditSvc)
	observationSvc := clinical.NewObservationService(clinical.NewObservationRepoPG(pool), auditSvc)
	clinical.NewHandler(conditionSvc, observationSvc, auditSvc, auditSvc).RegisterRoutes(apiV1, fhirGroup)

	// DiagnosticReport
	reportSvc := diagnostics.NewReportService(diagnostics.NewReportRepoPG(pool), auditSvc)
	diagnostics.NewHandler(reportSvc, auditSvc, auditSvc).RegisterRoutes(apiV1, fhirGroup)

	// MedicationRequest
	requestSvc := medication.NewRequestService(medication.NewRequestRepoPG(pool), auditSvc)
	medication.NewHandler(requestSvc, auditSvc, auditSvc).RegisterRoutes(apiV1, fhirGroup)

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := openPool(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	roles := newRoleResolver(cfg, pool, logger)
	go roles.Start()
	defer roles.Stop()

	e := newServer(cfg, pool, roles, logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
