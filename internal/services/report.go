package services

import (
	"context"
	"log/slog"

	"github.com/senthilkumarv/aq-telemetry/internal/events"
	"github.com/senthilkumarv/aq-telemetry/internal/logging"
	"github.com/senthilkumarv/aq-telemetry/internal/metrics"
)

// Widget types as they appear in logs, metrics and events
const (
	WidgetTile   = "tile"
	WidgetSeries = "series"
)

// Failure reasons
const (
	ReasonTemplate     = "template_error"
	ReasonConnectivity = "connectivity"
	ReasonTimeout      = "timeout"
	ReasonRejected     = "rejected"
)

// WidgetFailure describes a widget that was rendered without data
type WidgetFailure struct {
	AquariumID string
	Widget     string
	WidgetID   string
	ChartID    string
	Reason     string
	Err        error
}

// FailureReporter receives every contained widget failure
type FailureReporter interface {
	WidgetFailed(ctx context.Context, f WidgetFailure)
}

// Reporter logs, counts and publishes widget failures
type Reporter struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher events.Publisher
}

// NewReporter creates a Reporter. metrics and publisher may be nil.
func NewReporter(logger *slog.Logger, m *metrics.Metrics, p events.Publisher) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		p = events.NopPublisher{}
	}
	return &Reporter{logger: logger, metrics: m, publisher: p}
}

// WidgetFailed records f. Template and rejected-query failures point at a
// catalog problem and are logged as errors.
func (r *Reporter) WidgetFailed(ctx context.Context, f WidgetFailure) {
	level := slog.LevelWarn
	if f.Reason == ReasonTemplate || f.Reason == ReasonRejected {
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("aquarium", f.AquariumID),
		slog.String("widget", f.Widget),
		slog.String("widget_id", f.WidgetID),
		slog.String("reason", f.Reason),
	}
	if f.ChartID != "" {
		attrs = append(attrs, slog.String("chart_id", f.ChartID))
	}
	if id := logging.RequestID(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if f.Err != nil {
		attrs = append(attrs, slog.String("error", f.Err.Error()))
	}
	r.logger.LogAttrs(ctx, level, "widget_degraded", attrs...)

	r.metrics.WidgetFailed(f.Widget, f.Reason)

	ev := events.WidgetFailureEvent{
		AquariumID: f.AquariumID,
		Widget:     f.Widget,
		WidgetID:   f.WidgetID,
		ChartID:    f.ChartID,
		Reason:     f.Reason,
		RequestID:  logging.RequestID(ctx),
	}
	if f.Err != nil {
		ev.Error = f.Err.Error()
	}
	if err := r.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		r.logger.Warn("widget_event_publish_failed", slog.String("error", err.Error()))
	}
}
