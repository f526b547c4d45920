package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/namansh70747/smart-factory-monitor/internal/report"
	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/prometheus/common/version"
	"go.uber.org/zap"
)

type handlers struct {
	deps Deps
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

func (h *handlers) timeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.deps.RequestTimeout)
}

// fail maps store outages to 503 and everything else to 500.
func (h *handlers) fail(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, storage.ErrStoreUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	h.deps.Logger.Error("Request failed",
		zap.String("request_id", c.GetString(requestIDHeader)),
		zap.String("operation", op),
		zap.Int("status", status),
		zap.Error(err),
	)
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *handlers) health() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := h.deps.Engine.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   h.deps.AppVersion,
		})
	}
}

func (h *handlers) ready() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := h.deps.Engine.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"reason": "reading store unavailable",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func (h *handlers) status() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":    h.deps.AppName,
			"version":    h.deps.AppVersion,
			"revision":   version.Revision,
			"build_date": version.BuildDate,
			"go_version": version.GoVersion,
			"timestamp":  time.Now().Format(time.RFC3339),
		})
	}
}

func (h *handlers) readings() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := parseLimit(c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := h.timeout(c)
		defer cancel()

		readings, err := h.deps.Engine.LatestReadings(ctx, limit)
		if err != nil {
			h.fail(c, "latest_readings", err)
			return
		}
		c.JSON(http.StatusOK, readings)
	}
}

func (h *handlers) kpis() gin.HandlerFunc {
	return func(c *gin.Context) {
		window, err := parseWindow(c.Query("start"), c.Query("end"), h.deps.Reports.Location())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := h.timeout(c)
		defer cancel()

		kpis, err := h.deps.Engine.ComputeDeviceKPIs(ctx, c.Query("device"), window)
		if err != nil {
			h.fail(c, "compute_kpis", err)
			return
		}
		c.JSON(http.StatusOK, kpis.View())
	}
}

func (h *handlers) alerts() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := h.timeout(c)
		defer cancel()

		alerts, err := h.deps.Engine.ClassifyAlerts(ctx, 0)
		if err != nil {
			h.fail(c, "classify_alerts", err)
			return
		}
		c.JSON(http.StatusOK, alerts)
	}
}

func (h *handlers) alertHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := parseLimit(c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := h.timeout(c)
		defer cancel()

		events, err := h.deps.History.RecentAlertEvents(ctx, storage.AlertEventQuery{
			DeviceID: c.Query("device"),
			Limit:    limit,
		})
		if err != nil {
			h.fail(c, "alert_history", err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

func (h *handlers) activeAlerts() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := parseLimit(c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := h.timeout(c)
		defer cancel()

		events, err := h.deps.History.ActiveAlertEvents(ctx, limit)
		if err != nil {
			h.fail(c, "active_alerts", err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

func (h *handlers) resolveAlert() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "alert id must be a positive integer"})
			return
		}

		var req resolveRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
				return
			}
		}
		if req.ResolvedBy == "" {
			req.ResolvedBy = "system"
		}

		ctx, cancel := h.timeout(c)
		defer cancel()

		event, err := h.deps.History.ResolveAlertEvent(ctx, id, req.ResolvedBy, time.Now())
		if errors.Is(err, storage.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			h.fail(c, "resolve_alert", err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func (h *handlers) deviceAlert() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := h.timeout(c)
		defer cancel()

		alert, err := h.deps.Engine.EvaluateDevice(ctx, c.Param("id"))
		if errors.Is(err, analyzer.ErrUnknownDevice) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			h.fail(c, "evaluate_device", err)
			return
		}
		c.JSON(http.StatusOK, alert)
	}
}

func (h *handlers) chat() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}
		if len(req.Message) > h.deps.MaxMessageBytes && h.deps.MaxMessageBytes > 0 {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "message is too long"})
			return
		}

		ctx, cancel := h.timeout(c)
		defer cancel()

		c.JSON(http.StatusOK, h.deps.Assistant.Handle(ctx, req.Message))
	}
}

func (h *handlers) fullReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := h.timeout(c)
		defer cancel()

		summary, err := h.deps.Engine.Summary(ctx)
		if err != nil {
			h.fail(c, "summary", err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func (h *handlers) quickReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := h.timeout(c)
		defer cancel()

		r, err := h.deps.Reports.FormatQuickReport(ctx)
		if err != nil {
			h.fail(c, "quick_report", err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func (h *handlers) completeReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		date := c.Query("date")
		if date == "" {
			date = time.Now().In(h.deps.Reports.Location()).Format("02/01/2006")
		}

		ctx, cancel := h.timeout(c)
		defer cancel()

		r, err := h.deps.Reports.FormatCompleteReport(ctx, date, c.Query("time"))
		if err != nil {
			h.fail(c, "complete_report", err)
			return
		}
		if errors.Is(r.Err, report.ErrInvalidDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": r.Text})
			return
		}
		c.JSON(http.StatusOK, r)
	}
}
