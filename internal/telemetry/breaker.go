package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings configures a BreakerExecutor
type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration

	// OnStateChange is called after every transition
	OnStateChange func(from, to gobreaker.State)
}

// BreakerExecutor stops sending queries to a data source after repeated
// connectivity failures. Rejected queries do not trip it.
type BreakerExecutor struct {
	next Executor
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerExecutor wraps next with a circuit breaker
func NewBreakerExecutor(next Executor, s BreakerSettings, logger *slog.Logger) *BreakerExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.Name == "" {
		s.Name = "datasource"
	}

	maxFailures := s.MaxFailures
	onChange := s.OnStateChange
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsConnectivity(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("breaker_state_change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if onChange != nil {
				onChange(from, to)
			}
		},
	})

	return &BreakerExecutor{next: next, cb: cb}
}

// Execute runs the query unless the breaker is open
func (b *BreakerExecutor) Execute(ctx context.Context, query string) ([]Row, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Execute(ctx, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, NewConnectivityError(query, err)
		}
		return nil, err
	}
	rows, _ := res.([]Row)
	return rows, nil
}

// State returns the current breaker state
func (b *BreakerExecutor) State() gobreaker.State {
	return b.cb.State()
}
