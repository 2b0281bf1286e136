package question

import (
	"context"
	"fmt"
)

type cascade struct {
	primary  Classifier
	fallback Classifier
}

// Cascade returns a classifier that asks primary first. A positive answer is
// final; a negative one is handed to fallback. An error from either stage is
// returned wrapped and the text is not classified.
func Cascade(primary, fallback Classifier) Classifier {
	return &cascade{primary: primary, fallback: fallback}
}

// Name implements [Named].
func (c *cascade) Name() string {
	return NameOf(c.primary) + "+" + NameOf(c.fallback)
}

// IsQuestion implements [Classifier].
func (c *cascade) IsQuestion(ctx context.Context, text string) (bool, error) {
	ok, err := c.primary.IsQuestion(ctx, text)
	if err != nil {
		return false, fmt.Errorf("question: primary %s: %w", NameOf(c.primary), err)
	}
	if ok {
		return true, nil
	}
	ok, err = c.fallback.IsQuestion(ctx, text)
	if err != nil {
		return false, fmt.Errorf("question: fallback %s: %w", NameOf(c.fallback), err)
	}
	return ok, nil
}
