package resilience

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/common/metrics"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type BreakerConfig struct {
	FailureThreshold int           // consecutive failures that open the circuit
	SuccessThreshold int           // consecutive half-open successes that close it
	OpenTimeout      time.Duration // wait before probing again
	OnStateChange    func(name string, from, to State)
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

// Breaker is shared by every request calling the same upstream, so its state
// is guarded by a mutex. Cancellation of the caller's context is not counted
// as an upstream failure.
type Breaker struct {
	name   string
	config BreakerConfig
	logger logger.Logger
	now    func() time.Time

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	openedAt     time.Time
	probing      bool // a half-open trial call is in flight
}

func NewBreaker(name string, cfg BreakerConfig, log logger.Logger) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	metrics.BreakerState.WithLabelValues(name).Set(float64(StateClosed))
	return &Breaker{
		name:   name,
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"breaker": name}),
		now:    time.Now,
		state:  StateClosed,
	}
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.Mark(err)
	return err
}

// Allow reports whether a call may go ahead. While half-open only one
// trial call is admitted at a time; every admitted call must be followed by
// Mark or Release.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.OpenTimeout {
			return errors.NewCircuitOpenError(b.name)
		}
		b.setState(StateHalfOpen)
		b.successCount = 0
	case StateHalfOpen:
		if b.probing {
			return errors.NewCircuitOpenError(b.name)
		}
	}
	if b.state == StateHalfOpen {
		b.probing = true
	}
	return nil
}

// Mark records an outcome. nil is a success.
func (b *Breaker) Mark(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err != nil && stderrors.Is(err, context.Canceled) {
		return
	}

	if err == nil {
		b.onSuccess()
		return
	}
	b.onFailure()
}

// Release frees the half-open trial slot without recording an outcome. It
// is used when the caller gave up before the upstream answered.
func (b *Breaker) Release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.failureCount = 0
			b.successCount = 0
			b.setState(StateClosed)
		}
	}
}

func (b *Breaker) onFailure() {
	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.config.FailureThreshold {
			b.open()
		}
	case StateHalfOpen:
		b.open()
	case StateOpen:
		b.openedAt = b.now()
	}
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.successCount = 0
	b.setState(StateOpen)
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	metrics.BreakerState.WithLabelValues(b.name).Set(float64(to))
	b.logger.Warn("circuit breaker state changed", map[string]interface{}{
		"from": from.String(),
		"to":   to.String(),
	})
	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(b.name, from, to)
	}
}
