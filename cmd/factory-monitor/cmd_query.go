package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/namansh70747/smart-factory-monitor/internal/report"
	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/spf13/cobra"
)

// withFormatter opens the store, builds the engine and formatter and runs fn.
func withFormatter(cmd *cobra.Command, fn func(ctx context.Context, engine *analyzer.Engine, f *report.Formatter) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), config.Server.RequestTimeout)
	defer cancel()

	store, closeStore, err := openStore(ctx, config)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := analyzer.NewEngine(store, config.Engine.KPI, config.Engine.Alerts)
	if err != nil {
		return err
	}
	formatter, err := report.NewFormatter(engine, config.Engine.Report)
	if err != nil {
		return err
	}
	return fn(ctx, engine, formatter)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runKPIs(cmd *cobra.Command, _ []string) error {
	return withFormatter(cmd, func(ctx context.Context, engine *analyzer.Engine, f *report.Formatter) error {
		window, err := dayWindow(kpiStart, kpiEnd, f.Location())
		if err != nil {
			return err
		}

		kpis, err := engine.ComputeDeviceKPIs(ctx, kpiDevice, window)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), kpis.View())
	})
}

// dayWindow spans from the start of the first day to the end of the last.
// Both empty means no window.
func dayWindow(start, end string, loc *time.Location) (*storage.TimeRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	first, err := report.ParseDateTime(start, "", loc)
	if err != nil {
		return nil, err
	}
	last, err := report.ParseDateTime(end, "", loc)
	if err != nil {
		return nil, err
	}
	if last.Before(first) {
		return nil, fmt.Errorf("end %s is before start %s", end, start)
	}
	return &storage.TimeRange{Start: first, End: storage.DayRange(last).End}, nil
}

func runAlerts(cmd *cobra.Command, _ []string) error {
	return withFormatter(cmd, func(ctx context.Context, engine *analyzer.Engine, _ *report.Formatter) error {
		alerts, err := engine.ClassifyAlerts(ctx, alertLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), alerts)
	})
}

func runQuickReport(cmd *cobra.Command, _ []string) error {
	return withFormatter(cmd, func(ctx context.Context, _ *analyzer.Engine, f *report.Formatter) error {
		r, err := f.FormatQuickReport(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), r.Text)
		return nil
	})
}

func runCompleteReport(cmd *cobra.Command, _ []string) error {
	return withFormatter(cmd, func(ctx context.Context, _ *analyzer.Engine, f *report.Formatter) error {
		date := reportDate
		if date == "" {
			date = time.Now().In(f.Location()).Format("02/01/2006")
		}

		r, err := f.FormatCompleteReport(ctx, date, reportClock)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), r.Text)
		return r.Err
	})
}
