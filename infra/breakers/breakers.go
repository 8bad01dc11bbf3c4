// Package breakers shields the fact sources behind circuit breakers so a
// failing upstream sheds load instead of eating retries on every scan.
package breakers

import (
	"time"

	"github.com/rs/zerolog/log"
	cb "github.com/sony/gobreaker"
)

// Breaker wraps one provider's circuit. It opens after three consecutive
// failures, or a >5% failure rate once twenty requests have been observed,
// and probes again after the cooldown.
type Breaker struct {
	cb *cb.CircuitBreaker
}

// Settings tune one breaker. Zero values select the defaults.
type Settings struct {
	Name     string
	Cooldown time.Duration
}

// New returns a breaker with default settings for the named provider.
func New(name string) *Breaker {
	return NewWithSettings(Settings{Name: name})
}

func NewWithSettings(s Settings) *Breaker {
	if s.Cooldown <= 0 {
		s.Cooldown = 60 * time.Second
	}

	st := cb.Settings{
		Name:     s.Name,
		Interval: 60 * time.Second,
		Timeout:  s.Cooldown,
	}
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		log.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state change")
	}

	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn under the breaker. When the circuit is open it returns
// gobreaker.ErrOpenState without invoking fn.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// Name returns the provider name the breaker was built with.
func (b *Breaker) Name() string { return b.cb.Name() }

// State returns the current state as a string for health reporting.
func (b *Breaker) State() string { return b.cb.State().String() }

// Open reports whether the circuit is currently rejecting calls.
func (b *Breaker) Open() bool { return b.cb.State() == cb.StateOpen }
