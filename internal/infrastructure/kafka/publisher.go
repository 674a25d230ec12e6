package kafka

import (
	"context"

	"github.com/example/bookstore-orders/internal/infrastructure/breaker"
)

// Publisher is anything that can put an event on the bus.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// GuardedPublisher puts a circuit breaker in front of a Publisher so that a
// broker outage fails publishes immediately instead of stalling requests.
type GuardedPublisher struct {
	next    Publisher
	breaker *breaker.Breaker
}

func NewGuardedPublisher(next Publisher, b *breaker.Breaker) *GuardedPublisher {
	return &GuardedPublisher{next: next, breaker: b}
}

func (g *GuardedPublisher) Publish(ctx context.Context, key string, event any) error {
	return g.breaker.Do(func() error {
		return g.next.Publish(ctx, key, event)
	})
}
