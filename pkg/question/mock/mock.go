// Package mock provides a test double for the question.Classifier interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/parley/pkg/question"
)

// Classifier is a mock implementation of question.Classifier.
//
// Answers maps exact texts to results; texts not in the map get Default.
// If Err is set it is returned for every call, and ErrOn returns its error
// only for the given text.
type Classifier struct {
	mu sync.Mutex

	// Answers maps text to the result returned for it.
	Answers map[string]bool

	// Default is returned for texts missing from Answers.
	Default bool

	// Err, if non-nil, is returned from every call.
	Err error

	// ErrOn maps text to an error returned only for that text.
	ErrOn map[string]error

	// Calls records every classified text in order.
	Calls []string
}

var _ question.Classifier = (*Classifier)(nil)

// IsQuestion records text and returns the configured answer.
func (c *Classifier) IsQuestion(_ context.Context, text string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, text)
	if c.Err != nil {
		return false, c.Err
	}
	if err, ok := c.ErrOn[text]; ok {
		return false, err
	}
	if v, ok := c.Answers[text]; ok {
		return v, nil
	}
	return c.Default, nil
}

// Name implements question.Named.
func (c *Classifier) Name() string { return "mock" }

// CallCount returns the number of IsQuestion invocations.
func (c *Classifier) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}
