package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/namansh70747/smart-factory-monitor/internal/core"
	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/namansh70747/smart-factory-monitor/pkg/logger"
	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// --- Global Command Variables ---
var (
	configPath string
	useMemory  bool
	simulate   bool
	config     *core.Config

	kpiStart    string
	kpiEnd      string
	kpiDevice   string
	alertLimit  int
	reportDate  string
	reportClock string

	rootCmd = &cobra.Command{
		Use:           "factory-monitor",
		Short:         "Smart factory monitoring backend",
		Long:          `factory-monitor computes OEE, MTBF and MTTR from machine sensor readings, classifies alerts and answers operator questions over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := logger.Initialize(cfg.App.LogLevel); err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			config = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the dashboard observer and the live feed",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Write simulated sensor readings to the configured store",
		RunE:  runSimulate, // Defined in cmd_simulate.go
	}

	kpisCmd = &cobra.Command{
		Use:   "kpis",
		Short: "Print the production KPIs for all readings or a date range, plant-wide or for one device",
		RunE:  runKPIs, // Defined in cmd_query.go
	}

	alertsCmd = &cobra.Command{
		Use:   "alerts",
		Short: "Print the current alert snapshot",
		RunE:  runAlerts,
	}

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Render operator reports",
	}
	reportQuickCmd = &cobra.Command{
		Use:   "quick",
		Short: "Risk report for the most recent reading",
		RunE:  runQuickReport,
	}
	reportCompleteCmd = &cobra.Command{
		Use:   "complete",
		Short: "Full plant report for a given date (dd/mm/aaaa)",
		RunE:  runCompleteReport,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Print("factory-monitor"))
		},
	}
)

func init() {
	defaultPath := os.Getenv("FACTORY_CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = core.DefaultConfigPath
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "path to the YAML configuration")
	rootCmd.PersistentFlags().BoolVar(&useMemory, "memory", false, "use an in-memory reading store instead of PostgreSQL (serve seeds it with simulated readings)")
	serveCmd.Flags().BoolVar(&simulate, "simulate", false, "feed the store with simulated readings (default true with --memory)")

	kpisCmd.Flags().StringVar(&kpiStart, "start", "", "first day of the window (dd/mm/aaaa)")
	kpisCmd.Flags().StringVar(&kpiEnd, "end", "", "last day of the window, inclusive (dd/mm/aaaa)")
	kpisCmd.Flags().StringVar(&kpiDevice, "device", "", "restrict the KPIs to one device (e.g. DEV-100)")
	kpisCmd.MarkFlagsRequiredTogether("start", "end")
	alertsCmd.Flags().IntVar(&alertLimit, "limit", 0, "readings scanned for risk alerts (0 uses the configured window)")
	reportCompleteCmd.Flags().StringVar(&reportDate, "date", "", "report date (dd/mm/aaaa), defaults to today")
	reportCompleteCmd.Flags().StringVar(&reportClock, "time", "", "report time (hh:mm), defaults to 00:00")

	reportCmd.AddCommand(reportQuickCmd, reportCompleteCmd)
	rootCmd.AddCommand(serveCmd, simulateCmd, kpisCmd, alertsCmd, reportCmd, versionCmd)
}

// loadConfig falls back to the built-in defaults only when the default
// config file is absent. An explicit path must exist.
func loadConfig(path string) (*core.Config, error) {
	if path == core.DefaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := core.Default()
			if err := cfg.ApplyEnvOverrides(); err != nil {
				return nil, fmt.Errorf("invalid environment override: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid configuration: %w", err)
			}
			return cfg, nil
		}
	}
	cfg, err := core.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

// openStore returns the configured reading store and its cleanup func.
func openStore(ctx context.Context, cfg *core.Config) (storage.ReadingStore, func(), error) {
	if useMemory {
		logger.Warn("Using in-memory reading store, data is not persisted")
		return storage.NewMemoryStore(), func() {}, nil
	}

	db, err := storage.NewPostgresClient(cfg.GetDatabaseURL(), storage.PoolOptions{
		MaxConns:     int32(cfg.Database.MaxConnections),
		MinConns:     int32(cfg.Database.MinConnections),
		QueryTimeout: cfg.Database.QueryTimeout,
	}, logger.Component("storage"))
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	logger.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)
	return db, db.Close, nil
}
