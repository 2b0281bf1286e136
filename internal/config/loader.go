package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/parley/pkg/convgraph"
)

// ValidLLMProviders lists the LLM provider names registered by the parley
// binary. Used by [Validate] to warn about unrecognised provider names.
var ValidLLMProviders = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Paths
	if strings.ContainsAny(cfg.Paths.CompactSuffix, `/\`) {
		errs = append(errs, fmt.Errorf("paths.compact_suffix %q must not contain a path separator", cfg.Paths.CompactSuffix))
	}

	// Classifier
	c := cfg.Classifier
	if c.Name != "" && !c.Name.IsValid() {
		errs = append(errs, fmt.Errorf("classifier.name %q is invalid; valid values: heuristic, llm", c.Name))
	}
	if c.Name == ClassifierLLM {
		if c.Provider.Name == "" {
			errs = append(errs, errors.New("classifier: name \"llm\" requires classifier.provider.name"))
		} else {
			validateProviderName(c.Provider.Name)
		}
	} else if c.Provider.Name != "" {
		slog.Warn("classifier.provider is set but classifier.name is not \"llm\"; the provider is ignored",
			"provider", c.Provider.Name)
	}
	for i, fb := range c.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("classifier.fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName(fb.Name)
	}
	for i, p := range c.ExtraPatterns {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("classifier.extra_patterns[%d] is empty", i))
		}
	}
	if c.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("classifier.breaker.max_failures %d must not be negative", c.Breaker.MaxFailures))
	}
	if c.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("classifier.breaker.reset_timeout %s must not be negative", c.Breaker.ResetTimeout))
	}

	// Graph
	if cfg.Graph.AnswerRule != "" {
		if _, err := convgraph.ParseAnswerRule(cfg.Graph.AnswerRule); err != nil {
			errs = append(errs, fmt.Errorf("graph.answer_rule: %w", err))
		}
	}

	// Speakers
	for i, name := range cfg.Speakers.Roster {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("speakers.roster[%d] is empty", i))
		}
	}
	for _, th := range []struct {
		field string
		v     float64
	}{
		{"speakers.phonetic_threshold", cfg.Speakers.PhoneticThreshold},
		{"speakers.fuzzy_threshold", cfg.Speakers.FuzzyThreshold},
	} {
		if th.v < 0 || th.v > 1 {
			errs = append(errs, fmt.Errorf("%s %g must be within [0, 1]", th.field, th.v))
		}
	}

	// Store
	if cfg.Store.PostgresDSN == "" {
		slog.Debug("store.postgres_dsn is empty; analysed transcripts are kept in memory only")
	}

	// Watch
	if cfg.Watch.Interval < 0 {
		errs = append(errs, fmt.Errorf("watch.interval %s must not be negative", cfg.Watch.Interval))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is not in [ValidLLMProviders].
func validateProviderName(name string) {
	if slices.Contains(ValidLLMProviders, name) {
		return
	}
	slog.Warn("unknown LLM provider name, may be a typo or third-party provider",
		"name", name,
		"known", ValidLLMProviders,
	)
}
