package catalog

import (
	"fmt"
	"strings"

	"github.com/senthilkumarv/aq-telemetry/internal/models"
)

// Validate checks the catalog and resolves chart kinds. All problems are
// collected into a single ConfigError.
func (c *Catalog) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	tileIDs := make(map[string]bool, len(c.Tiles))
	for i, t := range c.Tiles {
		if t.ID == "" {
			addf("tiles[%d]: empty id", i)
		} else if tileIDs[t.ID] {
			addf("tiles[%d]: duplicate tile id %q", i, t.ID)
		}
		tileIDs[t.ID] = true
		if strings.TrimSpace(t.Query) == "" {
			addf("tile %q: empty query", t.ID)
		}
		if t.Precision < 0 {
			addf("tile %q: negative precision %d", t.ID, t.Precision)
		}
	}

	chartIDs := make(map[string]bool, len(c.Charts))
	for i := range c.Charts {
		ch := &c.Charts[i]
		if ch.ID == "" {
			addf("charts[%d]: empty id", i)
		} else if chartIDs[ch.ID] {
			addf("charts[%d]: duplicate chart id %q", i, ch.ID)
		}
		chartIDs[ch.ID] = true

		kind, ok := models.ParseChartKind(ch.KindName)
		if !ok {
			addf("chart %q: unknown kind %q", ch.ID, ch.KindName)
		}
		ch.Kind = kind

		if ch.YMin != nil && ch.YMax != nil && *ch.YMin >= *ch.YMax {
			addf("chart %q: y_min (%g) must be less than y_max (%g)", ch.ID, *ch.YMin, *ch.YMax)
		}
		if ch.FractionDigits != nil && *ch.FractionDigits < 0 {
			addf("chart %q: negative fraction_digits %d", ch.ID, *ch.FractionDigits)
		}

		seriesIDs := make(map[string]bool, len(ch.Series))
		for j, s := range ch.Series {
			if s.ID == "" {
				addf("chart %q series[%d]: empty id", ch.ID, j)
			} else if seriesIDs[s.ID] {
				addf("chart %q: duplicate series id %q", ch.ID, s.ID)
			}
			seriesIDs[s.ID] = true
			if strings.TrimSpace(s.Query) == "" {
				addf("chart %q series %q: empty query", ch.ID, s.ID)
			}
		}

		overlayIDs := make(map[string]bool, len(ch.Overlays))
		for j, o := range ch.Overlays {
			if o.ID == "" {
				addf("chart %q overlays[%d]: empty id", ch.ID, j)
			} else if overlayIDs[o.ID] {
				addf("chart %q: duplicate overlay id %q", ch.ID, o.ID)
			}
			overlayIDs[o.ID] = true
			if strings.TrimSpace(o.Query) == "" {
				addf("chart %q overlay %q: empty query", ch.ID, o.ID)
			}
		}
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}
