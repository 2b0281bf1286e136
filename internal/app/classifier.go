package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/resilience"
	"github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/question"
	"github.com/MrWong99/parley/pkg/question/llmact"
)

// ErrNoLLM is returned by [NewClassifier] when the LLM classifier is selected
// but no LLM provider was supplied.
var ErrNoLLM = errors.New("app: llm classifier requires an llm provider")

// NewLLM creates the LLM provider of cfg through reg. With fallbacks
// configured, the providers are combined into a [resilience.LLMFallback]
// that fails over in order, each backend behind its own circuit breaker.
func NewLLM(reg *config.Registry, cfg config.ClassifierConfig) (llm.Provider, error) {
	primary, err := reg.CreateLLM(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("app: create llm %q: %w", cfg.Provider.Name, err)
	}
	if len(cfg.Fallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewLLMFallback(primary, cfg.Provider.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Breaker.MaxFailures,
			ResetTimeout: cfg.Breaker.ResetTimeout,
		},
	})
	for _, entry := range cfg.Fallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("app: create fallback llm %q: %w", entry.Name, err)
		}
		fb.AddFallback(entry.Name, p)
	}
	return fb, nil
}

// NewClassifier builds the question classifier selected by cfg.
//
// The heuristic classifier is used on its own for [config.ClassifierHeuristic].
// For [config.ClassifierLLM] the dialogue-act classifier over provider is
// guarded by a circuit breaker that degrades to the heuristic while the LLM
// is failing, and texts the LLM does not label as questions are still
// offered to the heuristic. Every leaf classifier records call metrics on m.
func NewClassifier(cfg config.ClassifierConfig, provider llm.Provider, m *observe.Metrics) (question.Classifier, error) {
	heuristic := instrument(question.NewHeuristic(question.WithExtraPatterns(cfg.ExtraPatterns...)), m)

	switch cfg.Name {
	case config.ClassifierHeuristic, "":
		return heuristic, nil
	case config.ClassifierLLM:
	default:
		return nil, fmt.Errorf("app: unknown classifier %q", cfg.Name)
	}

	if provider == nil {
		return nil, ErrNoLLM
	}

	act := instrument(llmact.New(provider, llmact.WithStrict(cfg.Strict)), m)
	guarded := resilience.NewClassifierFallback(act, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Breaker.MaxFailures,
			ResetTimeout: cfg.Breaker.ResetTimeout,
			OnStateChange: func(name string, _, to resilience.State) {
				m.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	})
	guarded.AddFallback(heuristic)

	return question.Cascade(guarded, heuristic), nil
}

// instrumented records the outcome and latency of every classification.
type instrumented struct {
	inner   question.Classifier
	name    string
	metrics *observe.Metrics
}

var (
	_ question.Classifier = (*instrumented)(nil)
	_ question.Named      = (*instrumented)(nil)
)

func instrument(c question.Classifier, m *observe.Metrics) question.Classifier {
	return &instrumented{inner: c, name: question.NameOf(c), metrics: m}
}

func (i *instrumented) Name() string { return i.name }

func (i *instrumented) IsQuestion(ctx context.Context, text string) (bool, error) {
	start := time.Now()
	ok, err := i.inner.IsQuestion(ctx, text)
	status := observe.StatusOK
	if err != nil {
		status = observe.StatusError
	}
	i.metrics.RecordClassifierCall(ctx, i.name, status, time.Since(start))
	return ok, err
}
