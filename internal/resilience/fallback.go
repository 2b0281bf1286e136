package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no member of a [FallbackGroup] produced a
// result, either because it failed or because its breaker was open.
var ErrAllFailed = errors.New("resilience: all entries failed")

// FallbackConfig configures the circuit breaker created for each member of a
// [FallbackGroup]. The breaker's Name is replaced by the member name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// member is one backend of a group together with its breaker.
type member[T any] struct {
	name    string
	backend T
	breaker *CircuitBreaker
}

// FallbackGroup is an ordered list of interchangeable backends, each behind
// its own [CircuitBreaker]. [Call] asks them in order and returns the first
// answer.
//
// Members must be added before the group is used concurrently.
type FallbackGroup[T any] struct {
	members []member[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] whose first member is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends backend under name. It is asked only after every
// earlier member failed or was skipped.
func (fg *FallbackGroup[T]) AddFallback(name string, backend T) {
	cb := fg.cfg.CircuitBreaker
	cb.Name = name
	fg.members = append(fg.members, member[T]{
		name:    name,
		backend: backend,
		breaker: NewCircuitBreaker(cb),
	})
}

// Names returns the member names in the order they are asked.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.members))
	for i, m := range fg.members {
		names[i] = m.name
	}
	return names
}

// Breakers returns the circuit breaker of every member in order.
func (fg *FallbackGroup[T]) Breakers() []*CircuitBreaker {
	out := make([]*CircuitBreaker, len(fg.members))
	for i := range fg.members {
		out[i] = fg.members[i].breaker
	}
	return out
}

// Call asks the members of fg in order and returns the first result that
// comes back without error. Members whose breaker is open are skipped.
//
// Once ctx is done no further member is asked and ctx's error is returned.
// When every member failed, the error wraps [ErrAllFailed] and each member's
// error, prefixed with its name.
func Call[T, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for i := range fg.members {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		m := &fg.members[i]
		var out R
		err := m.breaker.Execute(func() error {
			var err error
			out, err = fn(ctx, m.backend)
			return err
		})
		if err == nil {
			return out, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
		switch {
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("resilience: circuit open, skipping", "entry", m.name)
		case i < len(fg.members)-1:
			slog.Warn("resilience: entry failed, trying next", "entry", m.name, "next", fg.members[i+1].name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
