// Package talktime computes how long each speaker held the floor in a
// compacted transcript.
package talktime

import (
	"time"

	"github.com/MrWong99/parley/pkg/caption"
)

// Stat is one speaker's speaking time.
type Stat struct {
	Speaker string
	Total   time.Duration
	Count   int
	Mean    time.Duration
}

// Durations returns each speaker's total turn duration, number of turns and
// mean turn duration. Turns with End before Start count as zero length.
func Durations(chunks []caption.Chunk) map[string]Stat {
	out := make(map[string]Stat)
	for _, c := range chunks {
		s := out[c.Speaker]
		s.Speaker = c.Speaker
		s.Total += c.Duration()
		s.Count++
		out[c.Speaker] = s
	}
	for k, s := range out {
		s.Mean = s.Total / time.Duration(s.Count)
		out[k] = s
	}
	return out
}

// Summary is the per-speaker breakdown in first-appearance order together
// with the most and least talkative speakers.
type Summary struct {
	Speakers []Stat
	Most     Stat
	Least    Stat
	Total    time.Duration
}

// Summarize computes [Durations] and ranks the speakers by total time. Ties
// go to the speaker who spoke first. ok is false when chunks is empty.
func Summarize(chunks []caption.Chunk) (Summary, bool) {
	if len(chunks) == 0 {
		return Summary{}, false
	}
	stats := Durations(chunks)

	var sum Summary
	seen := make(map[string]bool, len(stats))
	for _, c := range chunks {
		if seen[c.Speaker] {
			continue
		}
		seen[c.Speaker] = true
		st := stats[c.Speaker]
		sum.Speakers = append(sum.Speakers, st)
		sum.Total += st.Total
	}

	sum.Most, sum.Least = sum.Speakers[0], sum.Speakers[0]
	for _, st := range sum.Speakers[1:] {
		if st.Total > sum.Most.Total {
			sum.Most = st
		}
		if st.Total < sum.Least.Total {
			sum.Least = st
		}
	}
	return sum, true
}

// Share returns the fraction of the total speaking time held by st.
func (s Summary) Share(st Stat) float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(st.Total) / float64(s.Total)
}
