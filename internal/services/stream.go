package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/senthilkumarv/aq-telemetry/internal/catalog"
	"github.com/senthilkumarv/aq-telemetry/internal/models"
)

// StreamEventKind identifies the payload of a StreamEvent
type StreamEventKind int

const (
	EventSkeleton StreamEventKind = iota
	EventTileUpdate
	EventSeriesUpdate
	EventComplete
)

// StreamEvent is one step of a progressive dashboard load
type StreamEvent struct {
	Kind       StreamEventKind
	AquariumID string

	// Skeleton is set for EventSkeleton
	Skeleton *models.Page
	// Tile is set for EventTileUpdate
	Tile *models.TileValue
	// ChartID and Series are set for EventSeriesUpdate
	ChartID string
	Series  *models.SeriesValue
	// Widgets and Duration are set for EventComplete
	Widgets  int
	Duration time.Duration
}

// Stream assembles the same page as Assemble but reports it progressively:
// a skeleton first, then one update per widget as it finishes, then a
// completion event once every widget is done. emit is never called
// concurrently. An emit error stops the remaining work and is returned.
// If ctx ends first, no completion event is sent.
func (a *Assembler) Stream(ctx context.Context, cat *catalog.Catalog, rc RequestContext, emit func(StreamEvent) error) error {
	rc = normalize(rc)
	start := a.now()

	page := Skeleton(cat, rc)
	if err := emit(StreamEvent{Kind: EventSkeleton, AquariumID: rc.AquariumID, Skeleton: clonePage(page)}); err != nil {
		return err
	}

	res, err := a.run(ctx, cat, rc, page, func(d widgetDone) error {
		if d.tile >= 0 {
			tv := page.Tiles[d.tile]
			return emit(StreamEvent{Kind: EventTileUpdate, AquariumID: rc.AquariumID, Tile: &tv})
		}
		sv := page.Charts[d.chart].Series[d.series]
		return emit(StreamEvent{
			Kind:       EventSeriesUpdate,
			AquariumID: rc.AquariumID,
			ChartID:    page.Charts[d.chart].ID,
			Series:     &sv,
		})
	})
	if err != nil {
		a.metrics.AssemblyFinished("cancelled")
		a.logger.Info("dashboard_stream_stopped",
			slog.String("aquarium", rc.AquariumID),
			slog.String("error", err.Error()))
		return err
	}

	elapsed := a.now().Sub(start)
	a.finish(rc, res, elapsed)
	return emit(StreamEvent{Kind: EventComplete, AquariumID: rc.AquariumID, Widgets: res.widgets, Duration: elapsed})
}

// clonePage copies the slices of p so the copy is unaffected by later slot writes
func clonePage(p *models.Page) *models.Page {
	out := *p
	out.Tiles = append([]models.TileValue(nil), p.Tiles...)
	out.Overlays = append([]models.Overlay(nil), p.Overlays...)
	out.Charts = make([]models.ChartValue, len(p.Charts))
	for i, c := range p.Charts {
		c.Series = append([]models.SeriesValue(nil), c.Series...)
		out.Charts[i] = c
	}
	return &out
}
