// Package report renders transcript analyses as a human-readable console
// report. Headings and key values are highlighted with ANSI colours when the
// output supports them.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/MrWong99/parley/pkg/convgraph"
	"github.com/MrWong99/parley/pkg/graphstore"
	"github.com/MrWong99/parley/pkg/talktime"
	"github.com/MrWong99/parley/pkg/wordstats"
)

const ruleWidth = 56

// Analysis bundles everything computed for one transcript.
type Analysis struct {
	// Name identifies the transcript, usually its file name.
	Name string

	// Graph is the question/answer graph. A nil graph skips the section.
	Graph *convgraph.Graph

	// Talk is the speaking-time summary. Only rendered when HasTalk is set.
	Talk    talktime.Summary
	HasTalk bool

	// Words are the lexical statistics. A nil value skips the section.
	Words *wordstats.Stats
}

// Writer prints [Analysis] values. Create with [New].
type Writer struct {
	w       io.Writer
	heading *color.Color
	value   *color.Color
	muted   *color.Color
}

// Option configures a [Writer].
type Option func(*Writer)

// WithoutColor disables ANSI colouring regardless of the terminal.
func WithoutColor() Option {
	return func(r *Writer) {
		r.heading.DisableColor()
		r.value.DisableColor()
		r.muted.DisableColor()
	}
}

// New returns a Writer that prints to w.
func New(w io.Writer, opts ...Option) *Writer {
	r := &Writer{
		w:       w,
		heading: color.New(color.FgCyan, color.Bold),
		value:   color.New(color.FgYellow),
		muted:   color.New(color.Faint),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Write renders a. Sections whose data is absent are omitted.
func (r *Writer) Write(a Analysis) error {
	var b strings.Builder
	if a.Name != "" {
		r.heading.Fprintf(&b, "%s\n", a.Name)
	}
	if a.Graph != nil {
		r.graphSection(&b, a.Graph)
	}
	if a.HasTalk {
		r.talkSection(&b, a.Talk)
	}
	if a.Words != nil {
		r.wordSection(&b, *a.Words)
	}
	if _, err := io.WriteString(r.w, b.String()); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}

// WriteHistory lists stored transcripts, one line each.
func (r *Writer) WriteHistory(infos []graphstore.Info) error {
	var b strings.Builder
	r.rule(&b, "Stored Transcripts")
	if len(infos) == 0 {
		fmt.Fprintf(&b, "%s\n", r.muted.Sprint("(none)"))
	}
	for _, in := range infos {
		fmt.Fprintf(&b, "%s  %s  %s  %d chunks, %d speakers, %d asked, %d answered\n",
			r.value.Sprint(in.ID), in.CreatedAt.Format(time.RFC3339), in.Name,
			in.Chunks, in.Speakers, in.Asked, in.Answered)
	}
	if _, err := io.WriteString(r.w, b.String()); err != nil {
		return fmt.Errorf("report: write history: %w", err)
	}
	return nil
}

func (r *Writer) rule(b *strings.Builder, title string) {
	title = " " + title + " "
	pad := max(ruleWidth-len(title), 2)
	left := pad / 2
	b.WriteString("\n")
	r.heading.Fprintf(b, "%s%s%s\n", strings.Repeat("-", left), title, strings.Repeat("-", pad-left))
}

func (r *Writer) graphSection(b *strings.Builder, g *convgraph.Graph) {
	r.rule(b, "Graph Analysis")
	sum := g.Summary()
	fmt.Fprintf(b, "Distinct speakers: %s\n", r.value.Sprint(sum.Speakers))
	fmt.Fprintf(b, "Questions asked: %s\n", r.value.Sprint(sum.Asked))
	fmt.Fprintf(b, "Answers given: %s\n", r.value.Sprint(sum.Answered))

	if sc, ok := g.MostQuestionsAnswered(); ok && sc.Count > 0 {
		fmt.Fprintf(b, "Answered the most questions: %s (%d answered)\n", r.value.Sprint(sc.Speaker), sc.Count)
	} else {
		fmt.Fprintf(b, "Answered the most questions: %s\n", r.muted.Sprint("(none)"))
	}
	if sc, ok := g.MostQuestionsAsked(); ok && sc.Count > 0 {
		fmt.Fprintf(b, "Asked the most questions: %s (%d asked)\n", r.value.Sprint(sc.Speaker), sc.Count)
	} else {
		fmt.Fprintf(b, "Asked the most questions: %s\n", r.muted.Sprint("(none)"))
	}
	if p, ok := g.TopBackAndForthPair(); ok {
		fmt.Fprintf(b, "Pair with most back-and-forth: %s & %s (%d interactions)\n",
			r.value.Sprint(p.A), r.value.Sprint(p.B), p.Interactions)
	} else {
		fmt.Fprintf(b, "Pair with most back-and-forth: %s\n", r.muted.Sprint("(none)"))
	}
}

func (r *Writer) talkSection(b *strings.Builder, s talktime.Summary) {
	r.rule(b, "Duration Analysis")
	fmt.Fprintf(b, "Spoke the most: %s (%s sec)\n", r.value.Sprint(s.Most.Speaker), seconds(s.Most.Total))
	fmt.Fprintf(b, "Spoke the least: %s (%s sec)\n", r.value.Sprint(s.Least.Speaker), seconds(s.Least.Total))
	for _, st := range s.Speakers {
		fmt.Fprintf(b, "- %s: %d %s, averaging %s sec (%.0f%%)\n",
			st.Speaker, st.Count, plural(st.Count, "time", "times"), seconds(st.Mean), 100*s.Share(st))
	}
}

func (r *Writer) wordSection(b *strings.Builder, s wordstats.Stats) {
	r.rule(b, "Basic Analysis")
	fmt.Fprintf(b, "Total number of words: %s\n", r.value.Sprint(s.Words))
	for i, tg := range s.TopTrigrams {
		fmt.Fprintf(b, "%s common trigram: %s (Count: %d)\n", ordinal(i+1), r.value.Sprint(tg.String()), tg.Count)
	}
	fmt.Fprintf(b, "Words excluding punctuation and stop-words: %s\n", r.value.Sprint(s.ContentWords))
	if len(s.TopWords) > 0 {
		parts := make([]string, len(s.TopWords))
		for i, wc := range s.TopWords {
			parts[i] = fmt.Sprintf("%s (%d)", wc.Word, wc.Count)
		}
		fmt.Fprintf(b, "Most frequent words: %s\n", strings.Join(parts, ", "))
	}
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds())
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
