package embeddings

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Breaker wraps a Provider in a circuit breaker. After repeated provider
// failures the circuit opens and calls fail fast with UnavailableError
// instead of stacking timeouts on the write path.
type Breaker struct {
	name  string
	inner Provider
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps inner with a circuit breaker named for logging.
func NewBreaker(name string, inner Provider, log *zap.Logger) *Breaker {
	if log == nil {
		log = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("embedding circuit state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Breaker{
		name:  name,
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

// Dimension reports the wrapped provider's dimension.
func (b *Breaker) Dimension() int {
	return b.inner.Dimension()
}

// Embed calls the provider through the circuit. Every failure, including
// an open circuit, surfaces as UnavailableError.
func (b *Breaker) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Embed(ctx, texts)
	})
	if err != nil {
		return nil, &UnavailableError{Provider: b.name, Err: err}
	}
	return result.([][]float32), nil
}

// EmbedOne calls the provider through the circuit for a single text.
func (b *Breaker) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	result, err := b.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return result[0], nil
}
