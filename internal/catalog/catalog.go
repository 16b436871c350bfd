// Package catalog holds the declarative widget definitions a dashboard is
// assembled from. A Catalog is loaded once at startup and never mutated.
package catalog

import "github.com/senthilkumarv/aq-telemetry/internal/models"

// Catalog is the ordered set of tiles and charts shown on every dashboard
type Catalog struct {
	Tiles  []TileDef  `json:"tiles" yaml:"tiles" toml:"tiles"`
	Charts []ChartDef `json:"charts" yaml:"charts" toml:"charts"`
}

// TileDef describes a single-number widget
type TileDef struct {
	ID        string `json:"id" yaml:"id" toml:"id"`
	Title     string `json:"title" yaml:"title" toml:"title"`
	Unit      string `json:"unit" yaml:"unit" toml:"unit"`
	Precision int    `json:"precision" yaml:"precision" toml:"precision"`
	Query     string `json:"query" yaml:"query" toml:"query"`
}

// ChartDef describes a time-series chart
type ChartDef struct {
	ID             string       `json:"id" yaml:"id" toml:"id"`
	Title          string       `json:"title" yaml:"title" toml:"title"`
	Unit           string       `json:"unit,omitempty" yaml:"unit,omitempty" toml:"unit,omitempty"`
	KindName       string       `json:"kind" yaml:"kind" toml:"kind"`
	YMin           *float64     `json:"y_min,omitempty" yaml:"y_min,omitempty" toml:"y_min,omitempty"`
	YMax           *float64     `json:"y_max,omitempty" yaml:"y_max,omitempty" toml:"y_max,omitempty"`
	FractionDigits *int         `json:"fraction_digits,omitempty" yaml:"fraction_digits,omitempty" toml:"fraction_digits,omitempty"`
	Series         []SeriesDef  `json:"series" yaml:"series" toml:"series"`
	Overlays       []OverlayDef `json:"overlays,omitempty" yaml:"overlays,omitempty" toml:"overlays,omitempty"`

	// Kind is resolved from KindName during validation
	Kind models.ChartKind `json:"-" yaml:"-" toml:"-"`
}

// SeriesDef describes one line of a chart
type SeriesDef struct {
	ID    string `json:"id" yaml:"id" toml:"id"`
	Name  string `json:"name" yaml:"name" toml:"name"`
	Color string `json:"color,omitempty" yaml:"color,omitempty" toml:"color,omitempty"`
	Query string `json:"query" yaml:"query" toml:"query"`
}

// OverlayDef describes an annotation layer drawn over a chart.
// Overlays are passed through to clients and their queries are not run.
type OverlayDef struct {
	ID    string `json:"id" yaml:"id" toml:"id"`
	Name  string `json:"name" yaml:"name" toml:"name"`
	Color string `json:"color,omitempty" yaml:"color,omitempty" toml:"color,omitempty"`
	Query string `json:"query" yaml:"query" toml:"query"`
}

// SeriesCount returns the total number of series across all charts
func (c *Catalog) SeriesCount() int {
	n := 0
	for _, ch := range c.Charts {
		n += len(ch.Series)
	}
	return n
}

// WidgetCount returns the number of queries one assembly issues
func (c *Catalog) WidgetCount() int {
	return len(c.Tiles) + c.SeriesCount()
}
