// Package wordstats computes simple lexical statistics over transcript text:
// token counts, the most frequent content words and the most common
// trigrams.
package wordstats

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/MrWong99/parley/pkg/caption"
)

// Trigram is three consecutive words and how often they occur.
type Trigram struct {
	Words [3]string
	Count int
}

// String joins the trigram's words with spaces.
func (t Trigram) String() string {
	return strings.Join(t.Words[:], " ")
}

// WordCount is a word and its frequency.
type WordCount struct {
	Word  string
	Count int
}

// Stats summarises a transcript's vocabulary.
type Stats struct {
	// Tokens counts words and punctuation marks.
	Tokens int

	// Words counts word tokens.
	Words int

	// ContentWords counts alphabetic words that are not stop-words.
	ContentWords int

	// TopTrigrams are the most common word trigrams, most frequent first.
	TopTrigrams []Trigram

	// TopWords are the most common content words, most frequent first.
	TopWords []WordCount
}

// Analyzer computes [Stats]. The zero value is not usable; see [New].
type Analyzer struct {
	stop     map[string]struct{}
	trigrams int
	words    int
}

// Option configures an [Analyzer].
type Option func(*Analyzer)

// WithStopwords adds words to the stop-word list.
func WithStopwords(words ...string) Option {
	return func(a *Analyzer) {
		for _, w := range words {
			a.stop[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithTopTrigrams sets how many trigrams are reported. Default 2.
func WithTopTrigrams(n int) Option {
	return func(a *Analyzer) { a.trigrams = n }
}

// WithTopWords sets how many content words are reported. Default 10.
func WithTopWords(n int) Option {
	return func(a *Analyzer) { a.words = n }
}

// New returns an analyzer using the English stop-word list plus common
// transcript filler words.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		stop:     make(map[string]struct{}, len(englishStopwords)+len(transcriptStopwords)),
		trigrams: 2,
		words:    10,
	}
	for _, w := range englishStopwords {
		a.stop[w] = struct{}{}
	}
	for _, w := range transcriptStopwords {
		a.stop[w] = struct{}{}
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// AnalyzeChunks analyzes the text of all chunks as one document.
func (a *Analyzer) AnalyzeChunks(chunks []caption.Chunk) Stats {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Text)
		sb.WriteByte('\n')
	}
	return a.Analyze(sb.String())
}

// Analyze computes statistics for text.
func (a *Analyzer) Analyze(text string) Stats {
	tokens := Tokenize(text)
	st := Stats{Tokens: len(tokens)}

	words := make([]string, 0, len(tokens))
	freq := map[string]int{}
	var order []string
	for _, tok := range tokens {
		if !isWord(tok) {
			continue
		}
		lw := strings.ToLower(tok)
		words = append(words, lw)
		if !isAlpha(lw) {
			continue
		}
		if _, stop := a.stop[lw]; stop {
			continue
		}
		st.ContentWords++
		if freq[lw] == 0 {
			order = append(order, lw)
		}
		freq[lw]++
	}
	st.Words = len(words)

	st.TopWords = topWords(order, freq, a.words)
	st.TopTrigrams = topTrigrams(words, a.trigrams)
	return st
}

// Tokenize splits text into word tokens (letters, digits and inner
// apostrophes) and single punctuation tokens. Whitespace is dropped.
func Tokenize(text string) []string {
	var (
		tokens []string
		cur    []rune
	)
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.Trim(string(cur), "'"))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur = append(cur, r)
		case r == '\'' && len(cur) > 0:
			cur = append(cur, r)
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			tokens = append(tokens, string(r))
		}
	}
	flush()
	return slices.DeleteFunc(tokens, func(s string) bool { return s == "" })
}

func isWord(tok string) bool {
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func isAlpha(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return w != ""
}

func topWords(order []string, freq map[string]int, n int) []WordCount {
	out := make([]WordCount, 0, len(order))
	for _, w := range order {
		out = append(out, WordCount{Word: w, Count: freq[w]})
	}
	slices.SortStableFunc(out, func(a, b WordCount) int { return cmp.Compare(b.Count, a.Count) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func topTrigrams(words []string, n int) []Trigram {
	if len(words) < 3 || n <= 0 {
		return nil
	}
	counts := map[[3]string]int{}
	var order [][3]string
	for i := 0; i+2 < len(words); i++ {
		k := [3]string{words[i], words[i+1], words[i+2]}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	out := make([]Trigram, 0, len(order))
	for _, k := range order {
		out = append(out, Trigram{Words: k, Count: counts[k]})
	}
	slices.SortStableFunc(out, func(a, b Trigram) int { return cmp.Compare(b.Count, a.Count) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
