// Package speaker maps the speaker labels found in caption files onto a
// roster of canonical participant names.
//
// Meeting tools label speakers with whatever display name a participant
// joined with, so the same person can appear as "Jon Smyth", "john smith"
// or "John Smith (he/him)" across recordings. A [Resolver] folds those
// variants onto one roster entry in two stages:
//
//  1. Phonetic: every word of the label must share a Double Metaphone code
//     with some word of the roster name, and the string similarity must
//     reach the phonetic threshold.
//  2. Fuzzy: otherwise the Jaro-Winkler similarity alone must reach the
//     (higher) fuzzy threshold.
//
// Phonetic candidates win over fuzzy-only ones. When two roster entries
// score equally the label is considered ambiguous and left unchanged.
package speaker

import (
	"strings"
	"sync"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/parley/pkg/caption"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Match is the outcome of resolving one speaker label.
type Match struct {
	// Label is the speaker label as written in the captions.
	Label string

	// Speaker is the resolved roster name, or Label when nothing matched.
	Speaker string

	// Score is the similarity in [0, 1] of the chosen roster entry.
	// 1 for an exact (case-insensitive) match, 0 when unmatched.
	Score float64

	// Phonetic reports whether the phonetic stage produced the match.
	Phonetic bool

	// Matched reports whether a roster entry was chosen.
	Matched bool
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithPhoneticThreshold sets the minimum similarity for a label whose words
// all share a phonetic code with the roster name. Default: 0.70.
func WithPhoneticThreshold(t float64) Option {
	return func(r *Resolver) { r.phoneticThreshold = t }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler similarity for a match
// without phonetic agreement. Default: 0.85.
func WithFuzzyThreshold(t float64) Option {
	return func(r *Resolver) { r.fuzzyThreshold = t }
}

type entry struct {
	name   string
	norm   string
	tokens []string
	codes  [][2]string
}

func newEntry(name string) entry {
	tokens := tokenize(name)
	codes := make([][2]string, len(tokens))
	for i, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		codes[i] = [2]string{p, s}
	}
	return entry{
		name:   name,
		norm:   strings.Join(tokens, " "),
		tokens: tokens,
		codes:  codes,
	}
}

// Resolver maps speaker labels to roster names. It is safe for concurrent
// use; results are cached per label.
type Resolver struct {
	roster            []entry
	phoneticThreshold float64
	fuzzyThreshold    float64

	mu    sync.Mutex
	cache map[string]Match
}

// New returns a Resolver for the given roster. Blank roster names are
// ignored.
func New(roster []string, opts ...Option) *Resolver {
	r := &Resolver{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		cache:             make(map[string]Match),
	}
	for _, o := range opts {
		o(r)
	}
	for _, name := range roster {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if e := newEntry(name); len(e.tokens) > 0 {
			r.roster = append(r.roster, e)
		}
	}
	return r
}

// Len returns the number of usable roster entries.
func (r *Resolver) Len() int { return len(r.roster) }

// Resolve returns the roster entry that label refers to. [caption.OmittedSpeaker]
// is never mapped.
func (r *Resolver) Resolve(label string) Match {
	r.mu.Lock()
	m, ok := r.cache[label]
	r.mu.Unlock()
	if ok {
		return m
	}

	m = r.resolve(label)

	r.mu.Lock()
	r.cache[label] = m
	r.mu.Unlock()
	return m
}

func (r *Resolver) resolve(label string) Match {
	none := Match{Label: label, Speaker: label}
	if label == caption.OmittedSpeaker || len(r.roster) == 0 {
		return none
	}
	q := newEntry(label)
	if len(q.tokens) == 0 {
		return none
	}

	for _, e := range r.roster {
		if e.norm == q.norm {
			return Match{Label: label, Speaker: e.name, Score: 1, Phonetic: true, Matched: true}
		}
	}

	var (
		best  Match
		found bool
		tie   bool
	)
	for _, e := range r.roster {
		score := similarity(q, e)
		phon := score >= r.phoneticThreshold && codesAlign(q.codes, e.codes)
		if !phon && score < r.fuzzyThreshold {
			continue
		}
		switch {
		case !found,
			phon && !best.Phonetic,
			phon == best.Phonetic && score > best.Score:
			best = Match{Label: label, Speaker: e.name, Score: score, Phonetic: phon, Matched: true}
			found, tie = true, false
		case phon == best.Phonetic && score == best.Score:
			tie = true
		}
	}
	if !found || tie {
		return none
	}
	return best
}

// Apply returns a copy of utts with every resolvable speaker label replaced
// by its roster name, plus one [Match] per distinct label that was renamed,
// in order of first appearance. utts is not modified.
func (r *Resolver) Apply(utts []caption.Utterance) ([]caption.Utterance, []Match) {
	if len(utts) == 0 || len(r.roster) == 0 {
		return utts, nil
	}
	out := make([]caption.Utterance, len(utts))
	seen := make(map[string]bool)
	var renamed []Match
	for i, u := range utts {
		m := r.Resolve(u.Speaker)
		if m.Matched {
			u.Speaker = m.Speaker
			if !seen[m.Label] && m.Label != m.Speaker {
				renamed = append(renamed, m)
			}
		}
		seen[m.Label] = true
		out[i] = u
	}
	return out, renamed
}

// similarity is the best Jaro-Winkler score of three comparisons: the full
// names, the names with spaces removed, and the mean of the best per-word
// scores of the label against the roster name.
func similarity(q, e entry) float64 {
	best := matchr.JaroWinkler(q.norm, e.norm, false)
	if s := matchr.JaroWinkler(strings.Join(q.tokens, ""), strings.Join(e.tokens, ""), false); s > best {
		best = s
	}
	var sum float64
	for _, qt := range q.tokens {
		var top float64
		for _, et := range e.tokens {
			if s := matchr.JaroWinkler(qt, et, false); s > top {
				top = s
			}
		}
		sum += top
	}
	if s := sum / float64(len(q.tokens)); s > best {
		best = s
	}
	return best
}

// codesAlign reports whether every label word shares a Double Metaphone
// code with at least one roster word.
func codesAlign(label, roster [][2]string) bool {
	for _, lc := range label {
		ok := false
		for _, rc := range roster {
			if codesOverlap(lc, rc) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func codesOverlap(a, b [2]string) bool {
	for _, x := range a {
		if x == "" {
			continue
		}
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// tokenize lower-cases s, drops bracketed annotations such as "(she/her)"
// or "[guest]" and splits the rest into words of letters and digits.
func tokenize(s string) []string {
	var b strings.Builder
	depth := 0
	for _, r := range strings.ToLower(s) {
		switch r {
		case '(', '[':
			depth++
			continue
		case ')', ']':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth > 0 {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}
