package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/namansh70747/smart-factory-monitor/internal/api"
	"github.com/namansh70747/smart-factory-monitor/internal/assistant"
	"github.com/namansh70747/smart-factory-monitor/internal/notifier"
	"github.com/namansh70747/smart-factory-monitor/internal/observer"
	"github.com/namansh70747/smart-factory-monitor/internal/report"
	"github.com/namansh70747/smart-factory-monitor/internal/simulator"
	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/namansh70747/smart-factory-monitor/internal/websocket"
	"github.com/namansh70747/smart-factory-monitor/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := analyzer.NewEngine(store, cfg.Engine.KPI, cfg.Engine.Alerts)
	if err != nil {
		return err
	}
	formatter, err := report.NewFormatter(engine, cfg.Engine.Report)
	if err != nil {
		return err
	}

	hub := websocket.NewHub(logger.Component("websocket"))
	alerts := notifier.New(cfg.Notifier, logger.Component("notifier"))
	history, _ := store.(storage.AlertEventStore)
	if history != nil {
		alerts.WithRecorder(history)
	}
	defer func() {
		if err := alerts.Close(); err != nil {
			logger.Warn("Notifier close failed", zap.Error(err))
		}
	}()

	dashboard := observer.New(engine, hub, alerts, cfg.Observer, logger.Component("observer"))
	hub.SetGreeting(func() *websocket.Message {
		snap := dashboard.Last()
		if snap == nil {
			return nil
		}
		return &websocket.Message{Type: observer.DashboardMessage, Payload: snap}
	})

	if cfg.App.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Deps{
		Engine:          engine,
		Reports:         formatter,
		Assistant:       assistant.New(engine, formatter, logger.Component("assistant")),
		LiveFeed:        hub,
		History:         history,
		AppName:         cfg.App.Name,
		AppVersion:      cfg.App.Version,
		RequestTimeout:  cfg.Server.RequestTimeout,
		ChatRate:        cfg.Chat.RatePerSecond,
		ChatBurst:       cfg.Chat.Burst,
		MaxMessageBytes: cfg.Chat.MaxMessageBytes,
		Logger:          logger.Component("api"),
	})

	srv := &http.Server{
		Addr:           cfg.ListenAddr(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if simulating(cmd) {
		sink, ok := store.(simulator.Sink)
		if !ok {
			return errors.New("reading store does not accept inserts")
		}
		fleet := simulator.NewFleet(cfg.Simulator, sink, logger.Component("simulator"))
		if _, err := fleet.Backfill(ctx); err != nil {
			return fmt.Errorf("simulator backfill failed: %w", err)
		}
		g.Go(func() error {
			if err := fleet.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		hub.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		if err := dashboard.Start(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("HTTP server started",
			zap.String("addr", srv.Addr),
			zap.Bool("memory_store", useMemory),
			zap.Bool("simulator", simulating(cmd)),
			zap.Bool("notifier", alerts.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// simulating is true with --simulate, or with --memory unless --simulate=false
// was given explicitly.
func simulating(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("simulate") {
		return simulate
	}
	return simulate || useMemory
}
