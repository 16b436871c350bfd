package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/senthilkumarv/aq-telemetry/internal/events"
	"github.com/senthilkumarv/aq-telemetry/internal/logging"
	"github.com/senthilkumarv/aq-telemetry/internal/metrics"
)

type capturePublisher struct {
	events []events.WidgetFailureEvent
}

func (c *capturePublisher) Publish(ctx context.Context, ev events.WidgetFailureEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestReporterLogsAndPublishes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	pub := &capturePublisher{}
	r := NewReporter(logger, metrics.New(), pub)

	ctx := logging.WithRequestID(context.Background(), "req-1")
	r.WidgetFailed(ctx, WidgetFailure{
		AquariumID: "Reef",
		Widget:     WidgetSeries,
		WidgetID:   "s0",
		ChartID:    "temp",
		Reason:     ReasonRejected,
		Err:        errors.New("syntax error"),
	})
	r.WidgetFailed(ctx, WidgetFailure{AquariumID: "Reef", Widget: WidgetTile, WidgetID: "t0", Reason: ReasonConnectivity})

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "widget_id=s0") {
		t.Errorf("expected rejected query logged at error, got %q", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "request_id=req-1") {
		t.Errorf("expected connectivity failure logged at warn with request id, got %q", out)
	}
	if len(pub.events) != 2 || pub.events[0].ChartID != "temp" || pub.events[0].Error != "syntax error" {
		t.Errorf("unexpected events %+v", pub.events)
	}
}
