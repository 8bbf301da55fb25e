package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

type Settings struct {
	Name string
	// MaxFailures consecutive failures trip the breaker.
	MaxFailures uint32
	// HalfOpenRequests allowed through while probing.
	HalfOpenRequests uint32
	Interval         time.Duration
	Timeout          time.Duration
	OnStateChange    func(name string, from, to string)
}

type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	st := gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.HalfOpenRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	}
	if settings.OnStateChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			settings.OnStateChange(name, from.String(), to.String())
		}
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(st)}
}

func (c *CircuitBreaker) Execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}
