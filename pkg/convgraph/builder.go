package convgraph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/parley/pkg/caption"
	"github.com/MrWong99/parley/pkg/question"
)

// AnswerRule selects how Answered edges are derived from the recorded
// questions.
type AnswerRule int

const (
	// AnswerAdjacent treats the turn after a question as its answer. The
	// asked speaker is by construction the speaker of that turn, so every
	// Asked edge is paired with an Answered edge and "answered the most"
	// counts the speakers asked the most.
	AnswerAdjacent AnswerRule = iota

	// AnswerNextAsker records an answer only when the asked speaker is also
	// the asker of the next recorded question.
	AnswerNextAsker
)

// String implements [fmt.Stringer].
func (r AnswerRule) String() string {
	switch r {
	case AnswerAdjacent:
		return "adjacent"
	case AnswerNextAsker:
		return "next_asker"
	default:
		return fmt.Sprintf("AnswerRule(%d)", int(r))
	}
}

// ParseAnswerRule maps "adjacent" and "next_asker" to an [AnswerRule]. The
// empty string selects [AnswerAdjacent].
func ParseAnswerRule(s string) (AnswerRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "adjacent":
		return AnswerAdjacent, nil
	case "next_asker":
		return AnswerNextAsker, nil
	default:
		return 0, fmt.Errorf("convgraph: unknown answer rule %q", s)
	}
}

// ClassificationError reports a classifier failure while scanning a turn.
type ClassificationError struct {
	// Turn is the 0-based index of the chunk being scanned.
	Turn int

	// Seq is the chunk's sequence number.
	Seq int

	// Speaker owns the turn.
	Speaker string

	// Segment is the text that could not be classified.
	Segment string

	Err error
}

// Error implements [error].
func (e *ClassificationError) Error() string {
	return fmt.Sprintf("convgraph: classify turn %d (seq %d, %s) segment %q: %v", e.Turn, e.Seq, e.Speaker, e.Segment, e.Err)
}

// Unwrap returns the classifier's error.
func (e *ClassificationError) Unwrap() error { return e.Err }

// BuilderOption configures a [Builder].
type BuilderOption func(*Builder)

// WithAnswerRule sets the Answered edge rule. Default: [AnswerAdjacent].
func WithAnswerRule(r AnswerRule) BuilderOption {
	return func(b *Builder) {
		b.rule = r
	}
}

// Builder turns compacted chunks into a [Graph]. A Builder holds no state
// between builds and is safe for concurrent use if its classifier is.
type Builder struct {
	classifier question.Classifier
	rule       AnswerRule
}

// NewBuilder returns a builder that detects questions with c.
func NewBuilder(c question.Classifier, opts ...BuilderOption) *Builder {
	b := &Builder{classifier: c, rule: AnswerAdjacent}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Rule returns the builder's answer rule.
func (b *Builder) Rule() AnswerRule { return b.rule }

// askEvent is a question found in one turn and directed at the next.
type askEvent struct {
	turn     int
	asker    string
	askee    string
	question string
}

// Build scans chunks in order. The first segment of a turn that the
// classifier accepts is that turn's question; the speaker of the following
// turn is the one asked. A question in the final turn has nobody to ask.
// Answered edges are derived in a second pass according to the answer rule.
//
// A classifier error aborts the build with a [*ClassificationError] and no
// graph. Empty input yields an empty graph.
func (b *Builder) Build(ctx context.Context, chunks []caption.Chunk) (*Graph, error) {
	g := NewGraph()
	var events []askEvent

	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("convgraph: build: %w", err)
		}
		g.AddSpeaker(c.Speaker)

		q, err := b.firstQuestion(ctx, i, c)
		if err != nil {
			return nil, err
		}
		if q == "" || i+1 >= len(chunks) {
			continue
		}
		askee := chunks[i+1].Speaker
		if askee == c.Speaker {
			slog.Debug("convgraph: skipping question to self", "turn", i, "speaker", c.Speaker)
			continue
		}
		events = append(events, askEvent{turn: i, asker: c.Speaker, askee: askee, question: q})
	}

	for _, ev := range events {
		if err := g.AddEdge(Edge{From: ev.asker, To: ev.askee, Kind: Asked, Question: ev.question, Turn: ev.turn}); err != nil {
			return nil, err
		}
	}

	for k, ev := range events {
		if b.rule == AnswerNextAsker && !answeredByNextAsk(events, k) {
			continue
		}
		if err := g.AddEdge(Edge{From: ev.askee, To: ev.asker, Kind: Answered, Question: ev.question, Turn: ev.turn + 1}); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// answeredByNextAsk reports whether the speaker asked in events[k] asks the
// next recorded question.
func answeredByNextAsk(events []askEvent, k int) bool {
	return k+1 < len(events) && events[k+1].asker == events[k].askee
}

func (b *Builder) firstQuestion(ctx context.Context, turn int, c caption.Chunk) (string, error) {
	for _, seg := range Segments(c.Text) {
		ok, err := b.classifier.IsQuestion(ctx, seg)
		if err != nil {
			return "", &ClassificationError{Turn: turn, Seq: c.Seq, Speaker: c.Speaker, Segment: seg, Err: err}
		}
		if ok {
			return seg, nil
		}
	}
	return "", nil
}

// Segments splits text into sentence-like pieces on '.', '?' and '!' and on
// the line breaks between merged utterances. Pieces are trimmed, empty ones
// dropped, and the delimiters are not kept.
func Segments(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '?' || r == '!' || r == '\n'
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
