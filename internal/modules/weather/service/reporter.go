package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"weather-subscriber/internal/modules/weather/types"
)

// Reasons passed to Reporter.Report.
const (
	ReasonCadence   = "cadence"
	ReasonShutdown  = "shutdown"
	ReasonScheduled = "scheduled"
)

// Reporter presents an aggregate snapshot to humans.
type Reporter interface {
	Report(ctx context.Context, reason string, snap types.Snapshot)
}

// LogReporter writes each snapshot as one structured log record.
type LogReporter struct {
	logger *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger.With("component", "report")}
}

func (r *LogReporter) Report(ctx context.Context, reason string, snap types.Snapshot) {
	if snap.Count == 0 {
		r.logger.InfoContext(ctx, "weather statistics: no readings yet", "reason", reason)
		return
	}

	attrs := []any{
		"reason", reason,
		"count", snap.Count,
		"valid", snap.Valid,
		"faults", snap.Faults,
		"station_count", len(snap.Stations),
		"stations", strings.Join(snap.Stations, ", "),
	}
	if !snap.HasValidData() {
		r.logger.InfoContext(ctx, "weather statistics: no valid data", attrs...)
		return
	}

	attrs = append(attrs,
		"avg_temp_c", oneDecimal(snap.Temperature.Mean),
		"min_temp_c", oneDecimal(snap.Temperature.Min),
		"max_temp_c", oneDecimal(snap.Temperature.Max),
	)
	if snap.MeanHumidity != nil {
		attrs = append(attrs, "avg_humidity_pct", oneDecimal(*snap.MeanHumidity))
	} else {
		attrs = append(attrs, "avg_humidity_pct", types.NotAvailable)
	}
	r.logger.InfoContext(ctx, "weather statistics", attrs...)
}

func oneDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
