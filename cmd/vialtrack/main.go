package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/vialtrack/vialtrack/cmd/vialtrack/cli"
	"github.com/vialtrack/vialtrack/internal/app"
	"github.com/vialtrack/vialtrack/internal/inventory"
	"github.com/vialtrack/vialtrack/internal/observability"
	"github.com/vialtrack/vialtrack/internal/platform/cache"
	"github.com/vialtrack/vialtrack/internal/platform/db"
	"github.com/vialtrack/vialtrack/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	rootCmd := &cobra.Command{
		Use:          "vialtrack",
		Short:        "Vial inventory inference and reconciliation",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(jobsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	engine := inventory.NewEngine(opts)

	serviceCfg := inventory.ServiceConfig{Logger: logger}
	var source inventory.Source
	if cfg.DataDir != "" {
		source = inventory.NewCSVSource(cfg.DataDir)
		logger.Info("using csv source", slog.String("dir", cfg.DataDir))
	} else {
		pool, err := db.New(ctx, cfg.PostgresOptions("vialtrack-api"))
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		repo := inventory.NewRepository(pool)
		source = repo
		serviceCfg.Writer = repo
	}

	var jobHandler *jobs.Handler
	redisClient, err := cache.New(ctx, cfg.RedisOptions("vialtrack-api"))
	if err != nil {
		logger.Warn("redis unavailable, snapshot cache disabled", slog.Any("error", err))
		jobHandler = jobs.NewHandler(nil, logger)
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		snapshotCache := inventory.NewCache(redisClient, cfg.CacheTTL)
		serviceCfg.Cache = snapshotCache

		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
		queue := jobs.NewClient(redisOpts)
		defer func() { _ = queue.Close() }()
		serviceCfg.Scheduler = queue

		inspector := asynq.NewInspector(redisOpts)
		defer func() { _ = inspector.Close() }()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	metrics := observability.NewMetrics()
	serviceCfg.Metrics = metrics
	service := inventory.NewService(engine, source, serviceCfg)
	inventoryHandler := inventory.NewHandler(logger, service)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		InventoryHandler: inventoryHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func reconcileCmd() *cobra.Command {
	var (
		dataDir           string
		product           string
		jsonOutput        bool
		failOnDiscrepancy bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compute inventory from CSV exports and print depot discrepancies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if dataDir == "" {
				dataDir = cfg.DataDir
			}
			if dataDir == "" {
				return errors.New("reconcile: --data or DATA_DIR is required")
			}
			opts, err := cfg.EngineOptions()
			if err != nil {
				return err
			}
			helper, err := cli.NewReconcileCLI(inventory.NewEngine(opts), inventory.NewCSVSource(dataDir))
			if err != nil {
				return err
			}
			code := helper.ReconcileCommand(cmd.Context(), cli.ReconcileOptions{
				Product:           product,
				JSONOutput:        jsonOutput,
				FailOnDiscrepancy: failOnDiscrepancy,
				Stdout:            cmd.OutOrStdout(),
				Stderr:            cmd.ErrOrStderr(),
			})
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data", "", "directory holding shipments.csv, treatments.csv and reported.csv")
	cmd.Flags().StringVar(&product, "product", "", "limit output to one product")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
	cmd.Flags().BoolVar(&failOnDiscrepancy, "fail-on-discrepancy", false, "exit 10 when any depot count disagrees")
	return cmd
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage background jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "trigger [task]",
		Short: "Enqueue a job by task name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := jobs.TaskInventoryReconcile
			if len(args) == 1 {
				name = args[0]
			}
			return withJobsCLI(func(c *cli.JobsCLI) error {
				info, err := c.Trigger(cmd.Context(), name)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobsCLI(func(c *cli.JobsCLI) error {
				stats, err := c.InspectQueue(cmd.Context())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "queue %s: pending %d active %d scheduled %d retry %d\n",
					stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
				scheduled, err := c.ListScheduled(cmd.Context(), 10)
				if err != nil {
					return err
				}
				for _, t := range scheduled {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), " - %s at %s\n", t.Type, t.NextProcessAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	})
	return cmd
}

func withJobsCLI(fn func(*cli.JobsCLI) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return fn(c)
}
