package resilience

import (
	"context"

	"github.com/MrWong99/parley/pkg/question"
)

// ClassifierFallback implements [question.Classifier] with failover: the
// primary classifier (typically LLM-backed) is guarded by a circuit breaker
// and, while it errors or its breaker is open, the fallback answers instead.
type ClassifierFallback struct {
	name  string
	group *FallbackGroup[question.Classifier]
}

var (
	_ question.Classifier = (*ClassifierFallback)(nil)
	_ question.Named      = (*ClassifierFallback)(nil)
)

// NewClassifierFallback creates a [ClassifierFallback] with primary as the
// preferred classifier. The primary's breaker is named after
// [question.NameOf].
func NewClassifierFallback(primary question.Classifier, cfg FallbackConfig) *ClassifierFallback {
	name := question.NameOf(primary)
	return &ClassifierFallback{
		name:  name,
		group: NewFallbackGroup(primary, name, cfg),
	}
}

// AddFallback registers c to be asked when every earlier classifier failed.
func (f *ClassifierFallback) AddFallback(c question.Classifier) {
	f.group.AddFallback(question.NameOf(c), c)
}

// Name returns the primary classifier's name.
func (f *ClassifierFallback) Name() string { return f.name }

// Chain returns the classifier names in the order they are asked.
func (f *ClassifierFallback) Chain() []string { return f.group.Names() }

// Breakers returns the per-classifier circuit breakers in order.
func (f *ClassifierFallback) Breakers() []*CircuitBreaker {
	return f.group.Breakers()
}

// IsQuestion asks the first healthy classifier.
func (f *ClassifierFallback) IsQuestion(ctx context.Context, text string) (bool, error) {
	return Call(ctx, f.group, func(ctx context.Context, c question.Classifier) (bool, error) {
		return c.IsQuestion(ctx, text)
	})
}
