package breaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/bookstore-orders/internal/metrics"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while the breaker is open or probing.
var ErrUnavailable = errors.New("dependency unavailable")

// Settings tune a breaker. Zero values take the defaults used by New.
type Settings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	MinRequests uint32
	FailureRate float64
}

func (s Settings) withDefaults() Settings {
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval == 0 {
		s.Interval = 15 * time.Second
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 3
	}
	if s.FailureRate == 0 {
		s.FailureRate = 0.6
	}
	return s
}

// Breaker wraps gobreaker with Prometheus state and failure metrics.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

func New(name string, settings Settings) *Breaker {
	s := settings.withDefaults()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRate
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(cbName).Set(stateValue(to))

			log.WithFields(log.Fields{
				"component": "breaker",
				"circuit":   cbName,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("circuit breaker state changed")
		},
	})

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return &Breaker{cb: cb, name: name}
}

// Do runs fn through the breaker. Calls rejected by an open breaker return
// an error wrapping ErrUnavailable.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}

	metrics.CircuitBreakerFailures.WithLabelValues(b.name).Inc()
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit %s is %s", ErrUnavailable, b.name, b.cb.State())
	}
	return err
}

// State returns closed, open or half-open.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
