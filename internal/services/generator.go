package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/senthilkumarv/aq-telemetry/internal/database"
	"github.com/senthilkumarv/aq-telemetry/internal/models"
)

// generatorBatchSize is the number of readings written per transaction
const generatorBatchSize = 10000

// ProbeSpec describes one synthetic probe and its plausible value range
type ProbeSpec struct {
	ProbeType string
	Name      string
	Min       float64
	Max       float64
}

// GenerateOptions controls a synthetic data run
type GenerateOptions struct {
	Hosts    []string
	Probes   []ProbeSpec
	Hours    int
	Interval time.Duration
	// Sequential makes each value a bounded step from the previous one
	// instead of an independent draw
	Sequential bool
	// End is the timestamp of the last reading; now when zero
	End time.Time
}

// Generator handles generating dummy probe readings. Runs are serialized.
type Generator struct {
	mu     sync.Mutex
	db     *database.DB
	logger *slog.Logger
	rnd    *rand.Rand
}

// NewGenerator creates a new Generator instance
func NewGenerator(db *database.DB, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		db:     db,
		logger: logger.With(slog.String("component", "generator")),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GenerateDummyData replaces the readings of every host with synthetic
// values over the last opts.Hours. It returns the number of readings
// written and the number of probe series generated.
func (g *Generator) GenerateDummyData(ctx context.Context, opts GenerateOptions) (int, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	generateStartTime := time.Now()

	if len(opts.Hosts) == 0 {
		return 0, 0, fmt.Errorf("no aquarium hosts to generate data for")
	}
	if len(opts.Probes) == 0 {
		return 0, 0, fmt.Errorf("no probes configured")
	}
	for _, p := range opts.Probes {
		if p.Min >= p.Max {
			return 0, 0, fmt.Errorf("invalid value range for probe %s: min (%f) must be less than max (%f)", p.Name, p.Min, p.Max)
		}
	}
	if opts.Hours < 1 {
		opts.Hours = DefaultHours
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	end := opts.End
	if end.IsZero() {
		end = time.Now()
	}
	end = end.UTC().Truncate(opts.Interval)
	start := end.Add(-time.Duration(opts.Hours) * time.Hour)
	steps := int(end.Sub(start)/opts.Interval) + 1

	g.logger.Info("generate_started",
		slog.Int("hosts", len(opts.Hosts)),
		slog.Int("probes", len(opts.Probes)),
		slog.Time("start", start),
		slog.Time("end", end),
		slog.Bool("sequential", opts.Sequential))

	totalRecords := 0
	batch := make([]models.Reading, 0, generatorBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := g.db.UpsertReadings(ctx, batch)
		if err != nil {
			return err
		}
		totalRecords += n
		batch = batch[:0]
		return nil
	}

	for _, host := range opts.Hosts {
		if _, err := g.db.DeleteHostReadings(ctx, host); err != nil {
			return 0, 0, err
		}

		for _, probe := range opts.Probes {
			current := probe.Min + g.rnd.Float64()*(probe.Max-probe.Min)
			clamped := 0

			for step := 0; step < steps; step++ {
				var value float64
				if opts.Sequential {
					// Small drift around the previous value, at most 2% of the range
					value = current + (g.rnd.Float64()*2-1)*0.02*(probe.Max-probe.Min)
				} else {
					value = probe.Min + g.rnd.Float64()*(probe.Max-probe.Min)
				}

				if value < probe.Min {
					value = probe.Min
					clamped++
				}
				if value > probe.Max {
					value = probe.Max
					clamped++
				}
				current = value

				batch = append(batch, models.Reading{
					Host:      host,
					ProbeType: probe.ProbeType,
					Name:      probe.Name,
					Timestamp: start.Add(time.Duration(step) * opts.Interval).UnixMilli(),
					Value:     value,
					Quality:   3,
				})
				if len(batch) >= generatorBatchSize {
					if err := flush(); err != nil {
						return 0, 0, err
					}
				}
			}

			g.logger.Debug("generate_probe_completed",
				slog.String("host", host),
				slog.String("probe", probe.Name),
				slog.Int("clamped", clamped))
		}
	}

	if err := flush(); err != nil {
		return 0, 0, err
	}

	series := len(opts.Hosts) * len(opts.Probes)
	g.logger.Info("generate_completed",
		slog.Int("records", totalRecords),
		slog.Int("series", series),
		slog.Duration("duration", time.Since(generateStartTime).Round(time.Millisecond)))

	return totalRecords, series, nil
}
