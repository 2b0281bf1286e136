// Package question decides whether a piece of transcript text is a question.
//
// Callers depend on the [Classifier] interface. Two building blocks are
// provided here:
//
//   - [Heuristic], a deterministic keyword and grammar test that needs no
//     model and never fails.
//   - [Cascade], which consults a primary classifier (statistical or remote)
//     first and lets a fallback decide whenever the primary says "no".
//
// The dialogue-act classifier in package llmact is the usual primary.
package question

import (
	"context"
	"fmt"
)

// Classifier reports whether text is a question.
//
// Implementations must be safe for concurrent use. An error means the text
// could not be classified at all; it is never a substitute for false.
type Classifier interface {
	IsQuestion(ctx context.Context, text string) (bool, error)
}

// Func adapts an ordinary function to the [Classifier] interface.
type Func func(ctx context.Context, text string) (bool, error)

// IsQuestion calls f(ctx, text).
func (f Func) IsQuestion(ctx context.Context, text string) (bool, error) {
	return f(ctx, text)
}

// Named is implemented by classifiers that carry a stable name for logs and
// metrics.
type Named interface {
	Name() string
}

// NameOf returns c's name if it implements [Named], or its Go type otherwise.
func NameOf(c Classifier) string {
	if n, ok := c.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", c)
}
