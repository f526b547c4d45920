package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/namansh70747/smart-factory-monitor/internal/simulator"
	"github.com/namansh70747/smart-factory-monitor/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, ok := store.(simulator.Sink)
	if !ok {
		return errors.New("reading store does not accept inserts")
	}
	fleet := simulator.NewFleet(cfg.Simulator, sink, logger.Component("simulator"))
	if _, err := fleet.Backfill(ctx); err != nil {
		return fmt.Errorf("simulator backfill failed: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := fleet.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.Simulator.MetricsPort > 0 {
		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(gin.Recovery())
		router.GET("/health", func(c *gin.Context) {
			if err := store.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"status":    "healthy",
				"devices":   fleet.DeviceIDs(),
				"timestamp": time.Now().Format(time.RFC3339),
			})
		})
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Simulator.MetricsPort),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Simulator metrics listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
