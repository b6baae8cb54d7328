package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/readmit/readmit/internal/config"
	"github.com/readmit/readmit/internal/pipeline"
	"github.com/readmit/readmit/internal/platform/db"
	"github.com/readmit/readmit/internal/platform/middleware"
	"github.com/readmit/readmit/internal/platform/telemetry"
	"github.com/readmit/readmit/internal/schema"
	"github.com/readmit/readmit/internal/serving"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "readmit",
		Short:        "Hospital readmission risk pipeline and prediction server",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(cleanCmd())
	root.AddCommand(featurizeCmd())
	root.AddCommand(trainCmd())
	root.AddCommand(pipelineCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(schemaCmd())
	return root
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func poolOptions(cfg *config.Config) (db.PoolOptions, error) {
	if !cfg.HasDatabase() {
		return db.PoolOptions{}, errors.New("DATABASE_URL is required for this command")
	}
	return db.PoolOptions{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		ConnectTimeout: 10 * time.Second,
	}, nil
}

// pathFlags registers per-command path overrides on cmd.
func pathFlags(cmd *cobra.Command, names ...string) {
	usage := map[string]string{
		"raw":      "Raw encounter CSV (overrides RAW_DATA_PATH)",
		"cleaned":  "Cleaned parquet file (overrides CLEANED_DATA_PATH)",
		"features": "Feature parquet file (overrides FEATURE_DATA_PATH)",
		"schema":   "Feature schema JSON (overrides FEATURE_SCHEMA_PATH)",
		"model":    "Model artifact (overrides MODEL_PATH)",
	}
	for _, n := range names {
		cmd.Flags().String(n, "", usage[n])
	}
}

func resolvePaths(cmd *cobra.Command, cfg *config.Config) pipeline.Paths {
	p := pipeline.Paths{
		Raw:      cfg.RawDataPath,
		Cleaned:  cfg.CleanedDataPath,
		Features: cfg.FeatureDataPath,
		Schema:   cfg.FeatureSchemaPath,
		Model:    cfg.ModelPath,
	}
	override := func(name string, dst *string) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	override("raw", &p.Raw)
	override("cleaned", &p.Cleaned)
	override("features", &p.Features)
	override("schema", &p.Schema)
	override("model", &p.Model)
	return p
}

// stageCmd builds a pipeline subcommand. The Postgres registry is attached
// when DATABASE_URL is set.
func stageCmd(use, short string, flags []string, run func(context.Context, *pipeline.Runner) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stdout)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var registry pipeline.Registry
			if cfg.HasDatabase() {
				opts, _ := poolOptions(cfg)
				pool, err := db.NewPool(ctx, opts)
				if err != nil {
					return err
				}
				defer pool.Close()
				registry = schema.NewPGStore(pool)
				logger.Info().Msg("mirroring schemas to database")
			}

			runner := pipeline.NewRunner(resolvePaths(cmd, cfg), cfg.TrainParams(), cfg.TrainTestFraction, registry, logger)
			if err := run(ctx, runner); err != nil {
				logger.Error().Err(err).Str("stage", use).Msg("stage failed")
				return err
			}
			return nil
		},
	}
	pathFlags(cmd, flags...)
	return cmd
}

func cleanCmd() *cobra.Command {
	return stageCmd("clean", "Clean the raw encounter CSV into parquet",
		[]string{"raw", "cleaned"},
		func(ctx context.Context, r *pipeline.Runner) error { return r.Clean(ctx) })
}

func featurizeCmd() *cobra.Command {
	return stageCmd("featurize", "Encode cleaned encounters and capture the feature schema",
		[]string{"cleaned", "features", "schema"},
		func(ctx context.Context, r *pipeline.Runner) error {
			_, err := r.Featurize(ctx)
			return err
		})
}

func trainCmd() *cobra.Command {
	return stageCmd("train", "Train the classifier and write the model artifact",
		[]string{"features", "schema", "model"},
		func(ctx context.Context, r *pipeline.Runner) error {
			_, err := r.Train(ctx)
			return err
		})
}

func pipelineCmd() *cobra.Command {
	return stageCmd("pipeline", "Run clean, featurize and train in sequence",
		[]string{"raw", "cleaned", "features", "schema", "model"},
		func(ctx context.Context, r *pipeline.Runner) error {
			_, err := r.Run(ctx)
			return err
		})
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the prediction server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd)
		},
	}
	pathFlags(cmd, "model")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run schema registry database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetString("schema")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			opts, err := poolOptions(cfg)
			if err != nil {
				return err
			}
			pool, err := db.NewPool(ctx, opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, db.Migrations())
			fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", target)

			count, err := migrator.Up(ctx, target)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetString("schema")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			opts, err := poolOptions(cfg)
			if err != nil {
				return err
			}
			pool, err := db.NewPool(ctx, opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, db.Migrations()).Status(ctx, target)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), target, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, target string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", target)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect captured feature schemas",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List schemas mirrored to the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			opts, err := poolOptions(cfg)
			if err != nil {
				return err
			}
			pool, err := db.NewPool(ctx, opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			schemas, err := schema.NewPGStore(pool).List(ctx)
			if err != nil {
				return err
			}
			printSchemas(cmd.OutOrStdout(), schemas)
			return nil
		},
	})

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the schema file's columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := schema.NewFileStore(resolvePaths(cmd, cfg).Schema).Load(cmd.Context())
			if err != nil {
				return err
			}
			printSchemas(cmd.OutOrStdout(), []schema.Schema{s})
			for i, c := range s.Columns {
				fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s\n", i, c)
			}
			return nil
		},
	}
	pathFlags(showCmd, "schema")
	cmd.AddCommand(showCmd)

	return cmd
}

func printSchemas(w io.Writer, schemas []schema.Schema) {
	fmt.Fprintf(w, "%-16s %-36s %-6s %s\n", "FINGERPRINT", "ID", "WIDTH", "CAPTURED AT")
	for _, s := range schemas {
		fmt.Fprintf(w, "%-16s %-36s %-6d %s\n", s.Fingerprint[:min(16, len(s.Fingerprint))], s.ID, s.Width(), s.CapturedAt.Format(time.RFC3339))
	}
}

// newServer wires the HTTP stack around a loaded model holder.
func newServer(cfg *config.Config, holder *serving.Holder, static fs.FS, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	rateLimitCfg.BurstSize = cfg.RateLimitBurst

	metrics := telemetry.New()
	metrics.RegisterGauge("readmission_model_loaded", "Whether a model artifact is loaded.", func() float64 {
		if holder.Loaded() {
			return 1
		}
		return 0
	})
	e.Use(metrics.Middleware())
	e.GET("/metrics", metrics.Handler())

	serving.NewHandler(holder, static, logger).WithRecorder(metrics).RegisterRoutes(e,
		middleware.RateLimit(rateLimitCfg),
		middleware.RequestTimeout(cfg.RequestTimeout),
	)
	return e
}

func runServer(cmd *cobra.Command) error {
	// Config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	// Model
	holder := serving.Open(resolvePaths(cmd, cfg).Model, logger)
	defer holder.Close()

	var static fs.FS
	if cfg.StaticDir != "" {
		static = os.DirFS(cfg.StaticDir)
	}
	e := newServer(cfg, holder, static, logger)

	// Database
	if cfg.HasDatabase() {
		ctx := context.Background()
		opts, _ := poolOptions(cfg)
		pool, err := db.NewPool(ctx, opts)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
		e.GET("/health/db", db.HealthHandler(pool))
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
