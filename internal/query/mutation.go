package query

import "context"

// MutationFunc performs a create, update or delete against the API.
type MutationFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

// SettledFunc runs after every mutation attempt, successful or not.
type SettledFunc[In, Out any] func(ctx context.Context, in In, out Out, err error)

// Mutation wraps a MutationFunc with a post-settle callback. Mutations are
// not queued: concurrent triggers race and the last response wins.
type Mutation[In, Out any] struct {
	fn        MutationFunc[In, Out]
	onSettled SettledFunc[In, Out]
	metrics   *Metrics
}

// NewMutation builds a mutation. onSettled may be nil.
func NewMutation[In, Out any](c *Client, fn MutationFunc[In, Out], onSettled SettledFunc[In, Out]) *Mutation[In, Out] {
	m := &Mutation[In, Out]{fn: fn, onSettled: onSettled}
	if c != nil {
		m.metrics = c.metrics
	}
	return m
}

// Trigger runs the mutation, then the settle callback, and returns the
// mutation's own result.
func (m *Mutation[In, Out]) Trigger(ctx context.Context, in In) (Out, error) {
	out, err := m.fn(ctx, in)
	if m.metrics != nil {
		m.metrics.Mutations.WithLabelValues(outcome(err)).Inc()
	}
	if m.onSettled != nil {
		m.onSettled(ctx, in, out, err)
	}
	return out, err
}
