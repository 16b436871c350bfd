package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/senthilkumarv/aq-telemetry/internal/catalog"
	"github.com/senthilkumarv/aq-telemetry/internal/metrics"
	"github.com/senthilkumarv/aq-telemetry/internal/models"
	"github.com/senthilkumarv/aq-telemetry/internal/telemetry"
)

const (
	defaultMaxConcurrency = 8
	defaultMaxPoints      = 150
)

// Assembler builds dashboard pages by running every catalog query for a
// request concurrently. It holds no per-request state and is safe for
// concurrent use.
type Assembler struct {
	exec           telemetry.Executor
	maxConcurrency int
	queryTimeout   time.Duration
	maxPoints      int
	reporter       FailureReporter
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time
}

// AssemblerOption configures an Assembler
type AssemblerOption func(*Assembler)

// WithMaxConcurrency bounds the number of in-flight queries per request
func WithMaxConcurrency(n int) AssemblerOption {
	return func(a *Assembler) { a.maxConcurrency = n }
}

// WithQueryTimeout bounds each individual query. Zero disables the bound.
func WithQueryTimeout(d time.Duration) AssemblerOption {
	return func(a *Assembler) { a.queryTimeout = d }
}

// WithMaxPoints caps series length by downsampling. Zero disables it.
func WithMaxPoints(n int) AssemblerOption {
	return func(a *Assembler) { a.maxPoints = n }
}

// WithReporter sets the sink for contained widget failures
func WithReporter(r FailureReporter) AssemblerOption {
	return func(a *Assembler) { a.reporter = r }
}

// WithMetrics records query latency and assembly outcomes
func WithMetrics(m *metrics.Metrics) AssemblerOption {
	return func(a *Assembler) { a.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) AssemblerOption {
	return func(a *Assembler) { a.logger = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// NewAssembler creates a new Assembler instance
func NewAssembler(exec telemetry.Executor, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		exec:           exec,
		maxConcurrency: defaultMaxConcurrency,
		maxPoints:      defaultMaxPoints,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.reporter == nil {
		a.reporter = NewReporter(a.logger, a.metrics, nil)
	}
	return a
}

// Title returns the page title for a request
func Title(rc RequestContext) string {
	return fmt.Sprintf("%s Telemetry (last %dh)", models.DisplayName(rc.AquariumID), rc.Hours)
}

// Assemble runs every tile and series query of cat for rc and returns the
// page in catalog order. Failed widgets are reported and left empty. If ctx
// ends before all queries finish, no page is returned.
func (a *Assembler) Assemble(ctx context.Context, cat *catalog.Catalog, rc RequestContext) (*models.Page, error) {
	rc = normalize(rc)
	start := a.now()

	page := Skeleton(cat, rc)
	res, err := a.run(ctx, cat, rc, page, nil)
	if err != nil {
		a.metrics.AssemblyFinished("cancelled")
		a.logger.Info("dashboard_cancelled",
			slog.String("aquarium", rc.AquariumID),
			slog.String("error", err.Error()))
		return nil, err
	}

	a.finish(rc, res, a.now().Sub(start))
	return page, nil
}

// Skeleton builds a page carrying all widget metadata with no values: tiles
// have nil values and series have no points.
func Skeleton(cat *catalog.Catalog, rc RequestContext) *models.Page {
	page := &models.Page{
		Title:    Title(rc),
		Tiles:    make([]models.TileValue, len(cat.Tiles)),
		Charts:   make([]models.ChartValue, len(cat.Charts)),
		Overlays: []models.Overlay{},
	}
	for i, t := range cat.Tiles {
		page.Tiles[i] = models.TileValue{ID: t.ID, Title: t.Title, Unit: t.Unit, Precision: t.Precision}
	}
	for i, ch := range cat.Charts {
		cv := models.ChartValue{
			ID:             ch.ID,
			Title:          ch.Title,
			Unit:           ch.Unit,
			Kind:           ch.Kind,
			YMin:           ch.YMin,
			YMax:           ch.YMax,
			FractionDigits: ch.FractionDigits,
			Series:         make([]models.SeriesValue, len(ch.Series)),
		}
		for j, s := range ch.Series {
			cv.Series[j] = models.SeriesValue{ID: s.ID, Name: s.Name, Color: s.Color, Points: []models.Point{}}
		}
		page.Charts[i] = cv
		for _, o := range ch.Overlays {
			page.Overlays = append(page.Overlays, models.Overlay{ChartID: ch.ID, ID: o.ID, Name: o.Name, Color: o.Color})
		}
	}
	return page
}

// widgetDone identifies a finished slot of the page
type widgetDone struct {
	tile   int
	chart  int
	series int
}

type runResult struct {
	widgets int
	failed  int
}

// run fans out one job per tile and per series, each writing only its own
// slot of page. onDone is called serially after each job.
func (a *Assembler) run(ctx context.Context, cat *catalog.Catalog, rc RequestContext, page *models.Page, onDone func(widgetDone) error) (runResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	if a.maxConcurrency > 0 {
		g.SetLimit(a.maxConcurrency)
	}

	var (
		mu     sync.Mutex
		failed atomic.Int32
	)
	done := func(d widgetDone, ok bool) error {
		if !ok {
			failed.Add(1)
		}
		if onDone == nil {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		if gctx.Err() != nil {
			return nil
		}
		return onDone(d)
	}

	for i := range cat.Tiles {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			ok := a.fillTile(gctx, cat.Tiles[i], rc, &page.Tiles[i])
			return done(widgetDone{tile: i, chart: -1, series: -1}, ok)
		})
	}
	for c := range cat.Charts {
		for s := range cat.Charts[c].Series {
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				ok := a.fillSeries(gctx, cat.Charts[c].ID, cat.Charts[c].Series[s], rc, &page.Charts[c].Series[s])
				return done(widgetDone{tile: -1, chart: c, series: s}, ok)
			})
		}
	}

	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return runResult{}, ctxErr
	}
	if err != nil {
		return runResult{}, err
	}
	return runResult{widgets: cat.WidgetCount(), failed: int(failed.Load())}, nil
}

func (a *Assembler) fillTile(ctx context.Context, def catalog.TileDef, rc RequestContext, slot *models.TileValue) bool {
	rows, reason, err := a.query(ctx, def.Query, rc, WidgetTile)
	if err != nil {
		if reason != "" {
			a.reporter.WidgetFailed(ctx, WidgetFailure{
				AquariumID: rc.AquariumID, Widget: WidgetTile, WidgetID: def.ID, Reason: reason, Err: err,
			})
		}
		return false
	}

	tv, stats := ToTileValue(rows, def)
	if stats.ExtraRows > 0 {
		a.logger.Warn("tile_extra_rows",
			slog.String("aquarium", rc.AquariumID),
			slog.String("widget_id", def.ID),
			slog.Int("rows", len(rows)))
	}
	a.metrics.ValuesDropped(WidgetTile, stats.Dropped)
	*slot = tv
	return true
}

func (a *Assembler) fillSeries(ctx context.Context, chartID string, def catalog.SeriesDef, rc RequestContext, slot *models.SeriesValue) bool {
	rows, reason, err := a.query(ctx, def.Query, rc, WidgetSeries)
	if err != nil {
		if reason != "" {
			a.reporter.WidgetFailed(ctx, WidgetFailure{
				AquariumID: rc.AquariumID, Widget: WidgetSeries, WidgetID: def.ID, ChartID: chartID, Reason: reason, Err: err,
			})
		}
		return false
	}

	sv, stats := ToSeriesValue(rows, def)
	if stats.Dropped > 0 {
		a.logger.Debug("series_values_dropped",
			slog.String("aquarium", rc.AquariumID),
			slog.String("chart_id", chartID),
			slog.String("widget_id", def.ID),
			slog.Int("dropped", stats.Dropped))
	}
	a.metrics.ValuesDropped(WidgetSeries, stats.Dropped)
	sv.Points = Downsample(sv.Points, a.maxPoints)
	*slot = sv
	return true
}

// query resolves and executes one template. The returned reason is empty
// when the failure was caused by ctx ending, which is not a widget failure.
func (a *Assembler) query(ctx context.Context, tmpl string, rc RequestContext, widget string) ([]telemetry.Row, string, error) {
	q, err := Substitute(tmpl, rc.Bindings())
	if err != nil {
		return nil, ReasonTemplate, err
	}

	qctx := ctx
	if a.queryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, a.queryTimeout)
		defer cancel()
	}

	start := a.now()
	rows, err := a.exec.Execute(qctx, string(q))
	a.metrics.QueryObserved(widget, a.now().Sub(start))
	if err == nil {
		return rows, "", nil
	}

	switch {
	case ctx.Err() != nil:
		return nil, "", ctx.Err()
	case telemetry.IsRejected(err):
		return nil, ReasonRejected, err
	case errors.Is(err, context.DeadlineExceeded):
		return nil, ReasonTimeout, telemetry.NewConnectivityError(string(q), err)
	case telemetry.IsConnectivity(err):
		return nil, ReasonConnectivity, err
	default:
		return nil, ReasonConnectivity, telemetry.NewConnectivityError(string(q), err)
	}
}

func (a *Assembler) finish(rc RequestContext, res runResult, elapsed time.Duration) {
	outcome := "complete"
	if res.failed > 0 {
		outcome = "degraded"
	}
	a.metrics.AssemblyFinished(outcome)
	a.logger.Info("dashboard_assembled",
		slog.String("aquarium", rc.AquariumID),
		slog.Int("hours", rc.Hours),
		slog.Int("widgets", res.widgets),
		slog.Int("failed", res.failed),
		slog.Duration("duration", elapsed))
}

func normalize(rc RequestContext) RequestContext {
	if rc.Hours < 1 {
		rc.Hours = DefaultHours
	}
	return rc
}
