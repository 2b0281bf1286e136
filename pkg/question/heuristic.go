package question

import (
	"context"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultPatterns are substrings whose presence in lower-cased text marks it
// as a question. Matching is by plain substring, so "how" also matches
// "show" and "ask" matches "task".
var DefaultPatterns = []string{
	"do i", "do you", "what", "who", "is it", "why", "would you", "how",
	"is there", "are there", "is it so", "is this true", "to know",
	"is that true", "are we", "am i", "question is", "tell me more",
	"can i", "can we", "tell me", "can you explain", "question", "answer",
	"questions", "answers", "ask",
}

// HelpingVerbs open a yes/no question when they are the first word of a
// clause.
var HelpingVerbs = []string{"is", "am", "can", "are", "do", "does"}

// Heuristic is the deterministic question test:
//
//  1. lower-case and trim the text;
//  2. if any pattern occurs as a substring, it is a question;
//  3. otherwise split on '.' and, for every clause that is not blank, report
//     a question if the clause ends with '?' or its first word is a helping
//     verb.
//
// The zero value uses [DefaultPatterns] and [HelpingVerbs].
type Heuristic struct {
	patterns []string
}

var _ Classifier = (*Heuristic)(nil)

// HeuristicOption configures a [Heuristic].
type HeuristicOption func(*Heuristic)

// WithExtraPatterns appends lower-cased patterns to [DefaultPatterns].
func WithExtraPatterns(patterns ...string) HeuristicOption {
	return func(h *Heuristic) {
		for _, p := range patterns {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" && !slices.Contains(h.patterns, p) {
				h.patterns = append(h.patterns, p)
			}
		}
	}
}

// NewHeuristic returns a heuristic classifier.
func NewHeuristic(opts ...HeuristicOption) *Heuristic {
	h := &Heuristic{patterns: slices.Clone(DefaultPatterns)}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Name implements [Named].
func (h *Heuristic) Name() string { return "heuristic" }

// IsQuestion implements [Classifier]. It never returns an error.
func (h *Heuristic) IsQuestion(_ context.Context, text string) (bool, error) {
	return h.Match(text), nil
}

// Match reports whether text is a question.
func (h *Heuristic) Match(text string) bool {
	q := strings.ToLower(strings.TrimSpace(text))
	if q == "" {
		return false
	}

	patterns := h.patterns
	if patterns == nil {
		patterns = DefaultPatterns
	}
	for _, p := range patterns {
		if strings.Contains(q, p) {
			return true
		}
	}

	for _, clause := range strings.Split(q, ".") {
		if strings.TrimSpace(clause) == "" {
			continue
		}
		if strings.HasSuffix(clause, "?") || slices.Contains(HelpingVerbs, firstWord(clause)) {
			return true
		}
	}
	return false
}

// firstWord returns the first token of clause the way a Treebank-style word
// tokenizer would: leading punctuation is its own token, "cannot" yields
// "can" and a trailing "n't" contraction is split off ("don't" -> "do").
func firstWord(clause string) string {
	fields := strings.Fields(clause)
	if len(fields) == 0 {
		return ""
	}
	w := fields[0]

	if strings.HasPrefix(w, "cannot") {
		return "can"
	}
	if i := strings.Index(w, "n't"); i > 0 {
		w = w[:i]
	}

	end := strings.IndexFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	switch {
	case end == 0:
		_, size := utf8.DecodeRuneInString(w)
		return w[:size]
	case end > 0:
		return w[:end]
	default:
		return w
	}
}
