package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/senthilkumarv/aq-telemetry/internal/models"
	"github.com/senthilkumarv/aq-telemetry/internal/telemetry"
)

// DefaultDiscoveryQuery lists controller hosts known to InfluxDB
const DefaultDiscoveryQuery = `SHOW TAG VALUES FROM apex_probe WITH KEY = host`

// SQLiteDiscoveryQuery lists hosts present in the local readings store
const SQLiteDiscoveryQuery = `SELECT DISTINCT host AS value FROM readings ORDER BY host`

// DefaultDiscoveryTTL is how long a discovered aquarium list is reused
const DefaultDiscoveryTTL = time.Minute

// ErrAquariumsUnresolved is returned by Known when discovery fails and no
// aquarium list has been discovered yet
var ErrAquariumsUnresolved = errors.New("aquarium list not resolved")

// aquariumIDPattern bounds ids accepted while the list is unresolved; ids are
// substituted into queries unescaped
var aquariumIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// AquariumService resolves the set of aquariums dashboards can be built for
type AquariumService struct {
	exec           telemetry.Executor
	ids            []string
	discoveryQuery string
	ttl            time.Duration
	now            func() time.Time
	logger         *slog.Logger

	mu           sync.Mutex
	discovered   []string
	discoveredAt time.Time
}

// AquariumOption configures an AquariumService
type AquariumOption func(*AquariumService)

// WithDiscoveryTTL sets how long a discovered list is served before the
// discovery query runs again
func WithDiscoveryTTL(d time.Duration) AquariumOption {
	return func(s *AquariumService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithDiscoveryClock replaces time.Now for cache expiry
func WithDiscoveryClock(now func() time.Time) AquariumOption {
	return func(s *AquariumService) { s.now = now }
}

// NewAquariumService creates an AquariumService. When ids is empty the
// aquariums are discovered by running discoveryQuery.
func NewAquariumService(exec telemetry.Executor, ids []string, discoveryQuery string, logger *slog.Logger, opts ...AquariumOption) *AquariumService {
	if discoveryQuery == "" {
		discoveryQuery = DefaultDiscoveryQuery
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &AquariumService{
		exec:           exec,
		ids:            ids,
		discoveryQuery: discoveryQuery,
		ttl:            DefaultDiscoveryTTL,
		now:            time.Now,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the known aquariums with display names
func (s *AquariumService) List(ctx context.Context) ([]models.Aquarium, error) {
	ids, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Aquarium, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.NewAquarium(id))
	}
	return out, nil
}

// Known reports whether id is one of the listed aquariums. When discovery
// fails the last discovered list answers instead. With no list at all it
// returns an error matching ErrAquariumsUnresolved and reports ids of plain
// word characters as known, so a dashboard can still be assembled.
func (s *AquariumService) Known(ctx context.Context, id string) (bool, error) {
	ids, err := s.resolve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		return aquariumIDPattern.MatchString(id), fmt.Errorf("%w: %v", ErrAquariumsUnresolved, err)
	}
	for _, known := range ids {
		if known == id {
			return true, nil
		}
	}
	return false, nil
}

// resolve returns the configured ids, a fresh cached discovery, or the
// result of running discovery again. A failed discovery falls back to the
// last list that was discovered.
func (s *AquariumService) resolve(ctx context.Context) ([]string, error) {
	if len(s.ids) > 0 {
		return s.ids, nil
	}

	s.mu.Lock()
	cached, at := s.discovered, s.discoveredAt
	s.mu.Unlock()
	if cached != nil && s.now().Sub(at) < s.ttl {
		return cached, nil
	}

	ids, err := s.discover(ctx)
	if err != nil {
		if cached != nil && ctx.Err() == nil {
			s.logger.Warn("aquarium_discovery_stale",
				slog.Int("count", len(cached)),
				slog.String("error", err.Error()))
			return cached, nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.discovered, s.discoveredAt = ids, s.now()
	s.mu.Unlock()
	return ids, nil
}

func (s *AquariumService) discover(ctx context.Context) ([]string, error) {
	rows, err := s.exec.Execute(ctx, s.discoveryQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to discover aquariums: %w", err)
	}

	seen := make(map[string]bool, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		i := row.Index("value")
		if i < 0 {
			i = row.Index("host")
		}
		if i < 0 {
			i = len(row.Columns) - 1
		}
		id, ok := row.At(i).Text()
		if !ok || id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	s.logger.Debug("aquariums_discovered", slog.Int("count", len(ids)))
	return ids, nil
}
