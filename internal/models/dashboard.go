package models

import "fmt"

// ChartKind is the rendering style of a chart
type ChartKind int

const (
	ChartKindLine ChartKind = iota
	ChartKindMultiLine
)

// String returns the catalog spelling of the kind
func (k ChartKind) String() string {
	switch k {
	case ChartKindMultiLine:
		return "multiLine"
	default:
		return "line"
	}
}

// MarshalText lets ChartKind appear as a string in JSON payloads
func (k ChartKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the spellings ParseChartKind does
func (k *ChartKind) UnmarshalText(b []byte) error {
	kind, ok := ParseChartKind(string(b))
	if !ok {
		return fmt.Errorf("unknown chart kind %q", b)
	}
	*k = kind
	return nil
}

// ParseChartKind resolves a catalog kind name. An empty name is a line chart.
func ParseChartKind(s string) (ChartKind, bool) {
	switch s {
	case "", "line", "Line", "LINE":
		return ChartKindLine, true
	case "multiLine", "multiline", "MultiLine", "MULTILINE":
		return ChartKindMultiLine, true
	}
	return ChartKindLine, false
}

// Point is a single timestamped reading of a series
type Point struct {
	TimeMs int64   `json:"time_ms"` // Unix timestamp in milliseconds
	Value  float64 `json:"value"`
}

// TileValue is a single-number widget. Value is nil when no data was available.
type TileValue struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Unit      string   `json:"unit"`
	Precision int      `json:"precision"`
	Value     *float64 `json:"value"`
}

// SeriesValue is one line of a chart
type SeriesValue struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Color  string  `json:"color,omitempty"`
	Points []Point `json:"points"`
}

// ChartValue is a chart widget with its series in declaration order
type ChartValue struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Unit           string        `json:"unit,omitempty"`
	Kind           ChartKind     `json:"kind"`
	YMin           *float64      `json:"y_min,omitempty"`
	YMax           *float64      `json:"y_max,omitempty"`
	FractionDigits *int          `json:"fraction_digits,omitempty"`
	Series         []SeriesValue `json:"series"`
}

// Overlay is chart annotation metadata carried through to the client
type Overlay struct {
	ChartID string `json:"chart_id"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color,omitempty"`
}

// Page is a fully assembled dashboard
type Page struct {
	Title    string       `json:"title"`
	Tiles    []TileValue  `json:"tiles"`
	Charts   []ChartValue `json:"charts"`
	Overlays []Overlay    `json:"overlays"`
}

// WidgetCount returns the number of queried widgets (tiles plus series)
func (p *Page) WidgetCount() int {
	n := len(p.Tiles)
	for _, c := range p.Charts {
		n += len(c.Series)
	}
	return n
}
