// Package api exposes the KPI engine, reports and chat assistant over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/namansh70747/smart-factory-monitor/internal/assistant"
	"github.com/namansh70747/smart-factory-monitor/internal/report"
	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Engine interface {
	LatestReadings(ctx context.Context, limit int) ([]*storage.SensorReading, error)
	ComputeKPIs(ctx context.Context, window *storage.TimeRange) (*analyzer.KPIResult, error)
	ComputeDeviceKPIs(ctx context.Context, deviceID string, window *storage.TimeRange) (*analyzer.KPIResult, error)
	EvaluateDevice(ctx context.Context, deviceID string) (*analyzer.DeviceAlert, error)
	ClassifyAlerts(ctx context.Context, limit int) (*analyzer.AlertSnapshot, error)
	Summary(ctx context.Context) (*analyzer.PlantSummary, error)
	Health(ctx context.Context) error
}

type Reporter interface {
	FormatQuickReport(ctx context.Context) (*report.Report, error)
	FormatCompleteReport(ctx context.Context, date, clock string) (*report.Report, error)
	Location() *time.Location
}

type Chatter interface {
	Handle(ctx context.Context, message string) *assistant.Reply
}

// Deps is everything the router serves. LiveFeed and History are optional.
type Deps struct {
	Engine    Engine
	Reports   Reporter
	Assistant Chatter
	LiveFeed  http.Handler
	History   storage.AlertEventStore

	AppName         string
	AppVersion      string
	RequestTimeout  time.Duration
	ChatRate        float64
	ChatBurst       int
	MaxMessageBytes int

	Logger *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 10 * time.Second
	}
	h := &handlers{deps: d}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), ginLogger(d.Logger))

	router.GET("/health", h.health())
	router.GET("/ready", h.ready())
	router.GET("/status", h.status())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/sensores", h.readings())
	router.GET("/kpis", h.kpis())
	router.GET("/alertas", h.alerts())
	router.GET("/dispositivos/:id/alerta", h.deviceAlert())
	if d.History != nil {
		router.GET("/alertas/historico", h.alertHistory())
		router.GET("/alertas/ativos", h.activeAlerts())
		router.POST("/alertas/:id/resolver", h.resolveAlert())
	}
	router.POST("/chat", rateLimit(newClientLimiter(d.ChatRate, d.ChatBurst)), h.chat())

	reports := router.Group("/report")
	{
		reports.GET("/full", h.fullReport())
		reports.GET("/quick", h.quickReport())
		reports.GET("/complete", h.completeReport())
	}

	if d.LiveFeed != nil {
		router.GET("/ws", gin.WrapH(d.LiveFeed))
	}
	return router
}
