// Package wire encodes dashboard payloads for remote clients: Thrift binary
// structs, optional compression and length-prefixed stream frames.
package wire

import (
	"context"
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/senthilkumarv/aq-telemetry/internal/models"
	"github.com/senthilkumarv/aq-telemetry/internal/services"
)

// Thrift enum values shared with clients
const (
	ChartKindLine      int32 = 0
	ChartKindMultiLine int32 = 1

	MessageSkeleton    int32 = 0
	MessageTileUpdate  int32 = 1
	MessageChartUpdate int32 = 2
	MessageComplete    int32 = 3
)

// writer accumulates the first protocol error so struct writers stay linear
type writer struct {
	ctx context.Context
	p   thrift.TProtocol
	err error
}

func newWriter(ctx context.Context) (*writer, *thrift.TMemoryBuffer) {
	buf := thrift.NewTMemoryBuffer()
	return &writer{ctx: ctx, p: thrift.NewTBinaryProtocolConf(buf, &thrift.TConfiguration{})}, buf
}

func (w *writer) check(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

func (w *writer) structBegin(name string) {
	if w.err == nil {
		w.check(w.p.WriteStructBegin(w.ctx, name))
	}
}

func (w *writer) structEnd() {
	if w.err == nil {
		w.check(w.p.WriteFieldStop(w.ctx))
		w.check(w.p.WriteStructEnd(w.ctx))
	}
}

func (w *writer) fieldBegin(name string, typ thrift.TType, id int16) {
	if w.err == nil {
		w.check(w.p.WriteFieldBegin(w.ctx, name, typ, id))
	}
}

func (w *writer) fieldEnd() {
	if w.err == nil {
		w.check(w.p.WriteFieldEnd(w.ctx))
	}
}

func (w *writer) listBegin(elem thrift.TType, size int) {
	if w.err == nil {
		w.check(w.p.WriteListBegin(w.ctx, elem, size))
	}
}

func (w *writer) listEnd() {
	if w.err == nil {
		w.check(w.p.WriteListEnd(w.ctx))
	}
}

func (w *writer) str(id int16, name, v string) {
	w.fieldBegin(name, thrift.STRING, id)
	if w.err == nil {
		w.check(w.p.WriteString(w.ctx, v))
	}
	w.fieldEnd()
}

func (w *writer) optStr(id int16, name, v string) {
	if v != "" {
		w.str(id, name, v)
	}
}

func (w *writer) i32(id int16, name string, v int32) {
	w.fieldBegin(name, thrift.I32, id)
	if w.err == nil {
		w.check(w.p.WriteI32(w.ctx, v))
	}
	w.fieldEnd()
}

func (w *writer) i64(id int16, name string, v int64) {
	w.fieldBegin(name, thrift.I64, id)
	if w.err == nil {
		w.check(w.p.WriteI64(w.ctx, v))
	}
	w.fieldEnd()
}

func (w *writer) double(id int16, name string, v float64) {
	w.fieldBegin(name, thrift.DOUBLE, id)
	if w.err == nil {
		w.check(w.p.WriteDouble(w.ctx, v))
	}
	w.fieldEnd()
}

func (w *writer) optDouble(id int16, name string, v *float64) {
	if v != nil {
		w.double(id, name, *v)
	}
}

func (w *writer) list(id int16, name string, n int, each func(i int)) {
	w.fieldBegin(name, thrift.LIST, id)
	w.listBegin(thrift.STRUCT, n)
	for i := 0; i < n && w.err == nil; i++ {
		each(i)
	}
	w.listEnd()
	w.fieldEnd()
}

func (w *writer) nested(id int16, name string, body func()) {
	w.fieldBegin(name, thrift.STRUCT, id)
	body()
	w.fieldEnd()
}

func (w *writer) finish(buf *thrift.TMemoryBuffer, what string) ([]byte, error) {
	if w.err == nil {
		w.check(w.p.Flush(w.ctx))
	}
	if w.err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", what, w.err)
	}
	return buf.Bytes(), nil
}

func chartKind(k models.ChartKind) int32 {
	if k == models.ChartKindMultiLine {
		return ChartKindMultiLine
	}
	return ChartKindLine
}

func (w *writer) tile(t models.TileValue) {
	w.structBegin("SDTile")
	w.str(1, "id", t.ID)
	w.str(2, "title", t.Title)
	w.str(3, "unit", t.Unit)
	w.optDouble(4, "value", t.Value)
	w.i32(5, "precision", int32(t.Precision))
	w.structEnd()
}

func (w *writer) point(p models.Point) {
	w.structBegin("SDPoint")
	w.i64(1, "time_ms", p.TimeMs)
	w.double(2, "value", p.Value)
	w.structEnd()
}

func (w *writer) series(s models.SeriesValue) {
	w.structBegin("SDSeries")
	w.str(1, "id", s.ID)
	w.str(2, "name", s.Name)
	w.optStr(3, "color", s.Color)
	w.list(4, "points", len(s.Points), func(i int) { w.point(s.Points[i]) })
	w.structEnd()
}

func (w *writer) chart(c models.ChartValue) {
	w.structBegin("SDChart")
	w.str(1, "id", c.ID)
	w.str(2, "title", c.Title)
	w.optStr(3, "unit", c.Unit)
	w.i32(4, "kind", chartKind(c.Kind))
	w.optDouble(5, "y_min", c.YMin)
	w.optDouble(6, "y_max", c.YMax)
	if c.FractionDigits != nil {
		w.i32(7, "fraction_digits", int32(*c.FractionDigits))
	}
	w.list(8, "series", len(c.Series), func(i int) { w.series(c.Series[i]) })
	w.structEnd()
}

func (w *writer) overlay(o models.Overlay) {
	w.structBegin("SDOverlay")
	w.str(1, "chart_id", o.ChartID)
	w.str(2, "id", o.ID)
	w.str(3, "name", o.Name)
	w.optStr(4, "color", o.Color)
	w.structEnd()
}

func (w *writer) page(p *models.Page) {
	w.structBegin("SDPage")
	w.str(1, "title", p.Title)
	w.list(2, "tiles", len(p.Tiles), func(i int) { w.tile(p.Tiles[i]) })
	w.list(3, "charts", len(p.Charts), func(i int) { w.chart(p.Charts[i]) })
	w.list(4, "overlays", len(p.Overlays), func(i int) { w.overlay(p.Overlays[i]) })
	w.structEnd()
}

// EncodePage writes p as an SDPage struct
func EncodePage(ctx context.Context, p *models.Page) ([]byte, error) {
	w, buf := newWriter(ctx)
	w.page(p)
	return w.finish(buf, "page")
}

// EncodeAquariums writes the list as an SDAquariumList struct
func EncodeAquariums(ctx context.Context, list []models.Aquarium) ([]byte, error) {
	w, buf := newWriter(ctx)
	w.structBegin("SDAquariumList")
	w.list(1, "aquariums", len(list), func(i int) {
		w.structBegin("SDAquarium")
		w.str(1, "id", list[i].ID)
		w.str(2, "name", list[i].Name)
		w.structEnd()
	})
	w.structEnd()
	return w.finish(buf, "aquariums")
}

func (w *writer) skeleton(aquariumID string, p *models.Page) {
	w.structBegin("DashboardSkeleton")
	w.str(1, "aquarium_id", aquariumID)
	w.list(2, "tiles", len(p.Tiles), func(i int) {
		t := p.Tiles[i]
		w.structBegin("TileSkeleton")
		w.str(1, "id", t.ID)
		w.str(2, "title", t.Title)
		w.str(3, "unit", t.Unit)
		w.i32(4, "precision", int32(t.Precision))
		w.structEnd()
	})
	w.list(3, "charts", len(p.Charts), func(i int) {
		c := p.Charts[i]
		w.structBegin("ChartSkeleton")
		w.str(1, "id", c.ID)
		w.str(2, "title", c.Title)
		w.optStr(3, "unit", c.Unit)
		w.i32(4, "kind", chartKind(c.Kind))
		w.optDouble(5, "y_min", c.YMin)
		w.optDouble(6, "y_max", c.YMax)
		if c.FractionDigits != nil {
			w.i32(7, "fraction_digits", int32(*c.FractionDigits))
		}
		w.list(8, "series", len(c.Series), func(j int) {
			s := c.Series[j]
			w.structBegin("SeriesSkeleton")
			w.str(1, "id", s.ID)
			w.str(2, "name", s.Name)
			w.optStr(3, "color", s.Color)
			w.structEnd()
		})
		w.structEnd()
	})
	w.str(4, "title", p.Title)
	w.structEnd()
}

// EncodeStreamMessage writes one progressive-load event as a StreamMessage
func EncodeStreamMessage(ctx context.Context, ev services.StreamEvent) ([]byte, error) {
	w, buf := newWriter(ctx)
	w.structBegin("StreamMessage")

	switch ev.Kind {
	case services.EventSkeleton:
		w.i32(1, "type", MessageSkeleton)
		w.nested(2, "skeleton", func() { w.skeleton(ev.AquariumID, ev.Skeleton) })
	case services.EventTileUpdate:
		w.i32(1, "type", MessageTileUpdate)
		w.nested(3, "tile_update", func() {
			w.structBegin("TileUpdate")
			w.str(1, "tile_id", ev.Tile.ID)
			w.optDouble(2, "value", ev.Tile.Value)
			w.structEnd()
		})
	case services.EventSeriesUpdate:
		w.i32(1, "type", MessageChartUpdate)
		w.nested(4, "chart_update", func() {
			w.structBegin("ChartUpdate")
			w.str(1, "chart_id", ev.ChartID)
			w.list(2, "series", 1, func(int) {
				w.structBegin("SeriesUpdate")
				w.str(1, "series_id", ev.Series.ID)
				w.list(2, "points", len(ev.Series.Points), func(i int) { w.point(ev.Series.Points[i]) })
				w.structEnd()
			})
			w.structEnd()
		})
	case services.EventComplete:
		w.i32(1, "type", MessageComplete)
		w.nested(5, "completion", func() {
			w.structBegin("CompletionEvent")
			w.i32(1, "total_widgets", int32(ev.Widgets))
			w.i64(2, "duration_ms", ev.Duration.Milliseconds())
			w.structEnd()
		})
	default:
		return nil, fmt.Errorf("unknown stream event kind %d", ev.Kind)
	}

	w.structEnd()
	return w.finish(buf, "stream message")
}
