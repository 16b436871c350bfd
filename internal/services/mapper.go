package services

import (
	"sort"

	"github.com/senthilkumarv/aq-telemetry/internal/catalog"
	"github.com/senthilkumarv/aq-telemetry/internal/models"
	"github.com/senthilkumarv/aq-telemetry/internal/telemetry"
)

// MapStats records what the mapper had to ignore
type MapStats struct {
	// ExtraRows is the number of rows beyond the first for a tile
	ExtraRows int
	// Dropped is the number of rows whose time or value could not be coerced
	Dropped int
}

var (
	tileValueColumns   = []string{"mean", "last", "value"}
	seriesValueColumns = []string{"value", "mean", "last"}
)

const timeColumn = "time"

// ToTileValue maps query rows onto a tile. Zero rows or a null cell gives a
// nil value; only the first row is used otherwise.
func ToTileValue(rows []telemetry.Row, def catalog.TileDef) (models.TileValue, MapStats) {
	tv := models.TileValue{
		ID:        def.ID,
		Title:     def.Title,
		Unit:      def.Unit,
		Precision: def.Precision,
	}
	var stats MapStats
	if len(rows) == 0 {
		return tv, stats
	}
	stats.ExtraRows = len(rows) - 1

	// a null cell is an empty window, not a bad value
	v := rows[0].At(valueIndex(rows[0], tileValueColumns, -1))
	if f, ok := v.Float(); ok {
		tv.Value = &f
	} else if !v.IsNull() {
		stats.Dropped = 1
	}
	return tv, stats
}

// ToSeriesValue maps query rows onto a series, dropping rows without a
// usable timestamp or value. Points are sorted ascending by time.
func ToSeriesValue(rows []telemetry.Row, def catalog.SeriesDef) (models.SeriesValue, MapStats) {
	sv := models.SeriesValue{
		ID:     def.ID,
		Name:   def.Name,
		Color:  def.Color,
		Points: make([]models.Point, 0, len(rows)),
	}
	var stats MapStats

	for _, row := range rows {
		ti := row.Index(timeColumn)
		if ti < 0 {
			ti = 0
		}
		ms, ok := row.At(ti).Millis()
		if !ok {
			stats.Dropped++
			continue
		}
		f, ok := row.At(valueIndex(row, seriesValueColumns, ti)).Float()
		if !ok {
			stats.Dropped++
			continue
		}
		sv.Points = append(sv.Points, models.Point{TimeMs: ms, Value: f})
	}

	sort.SliceStable(sv.Points, func(i, j int) bool {
		return sv.Points[i].TimeMs < sv.Points[j].TimeMs
	})
	return sv, stats
}

// valueIndex picks the first preferred column present, falling back to the
// first column that is neither "time" nor skip
func valueIndex(row telemetry.Row, preferred []string, skip int) int {
	for _, name := range preferred {
		if i := row.Index(name); i >= 0 {
			return i
		}
	}
	ti := row.Index(timeColumn)
	for i := range row.Columns {
		if i != ti && i != skip {
			return i
		}
	}
	return -1
}

// Downsample reduces points to at most max by averaging fixed-size buckets.
// Each bucket keeps its middle point's timestamp.
func Downsample(points []models.Point, max int) []models.Point {
	if max <= 0 || len(points) <= max {
		return points
	}
	bucket := (len(points) + max - 1) / max
	out := make([]models.Point, 0, (len(points)+bucket-1)/bucket)
	for start := 0; start < len(points); start += bucket {
		end := start + bucket
		if end > len(points) {
			end = len(points)
		}
		chunk := points[start:end]
		sum := 0.0
		for _, p := range chunk {
			sum += p.Value
		}
		out = append(out, models.Point{
			TimeMs: chunk[len(chunk)/2].TimeMs,
			Value:  sum / float64(len(chunk)),
		})
	}
	return out
}
