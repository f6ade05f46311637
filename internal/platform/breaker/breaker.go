// Package breaker wraps sony/gobreaker for outbound collaborator calls.
package breaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrOpen reports that the breaker rejected the call without running it.
var ErrOpen = errors.New("circuit breaker open")

// Config tunes when the breaker trips and how long it stays open.
type Config struct {
	MaxRequests         uint32        `env:"MAX_REQUESTS" envDefault:"1"`
	Interval            time.Duration `env:"INTERVAL" envDefault:"30s"`
	Timeout             time.Duration `env:"OPEN_TIMEOUT" envDefault:"10s"`
	ConsecutiveFailures uint32        `env:"CONSECUTIVE_FAILURES" envDefault:"5"`
	MinRequests         uint32        `env:"MIN_REQUESTS" envDefault:"10"`
	FailureRatio        float64       `env:"FAILURE_RATIO" envDefault:"0.5"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		MaxRequests:         1,
		Interval:            30 * time.Second,
		Timeout:             10 * time.Second,
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.5,
	}
}

// Breaker guards one named collaborator.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New builds a breaker. countsAsSuccess lets callers exclude business
// failures (unknown asset, compliance rejection) from the trip counters.
func New(name string, cfg Config, countsAsSuccess func(error) bool, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultConfig().ConsecutiveFailures
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.MinRequests == 0 || counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	if countsAsSuccess != nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || countsAsSuccess(err)
		}
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Do runs fn through the breaker. Rejections wrap ErrOpen.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrOpen, err)
	}
	return err
}

// State returns the breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
