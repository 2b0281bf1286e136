// Package caption parses timestamped caption files (WebVTT as exported by
// meeting tools such as Zoom) into ordered [Utterance] records and compacts
// consecutive same-speaker utterances into [Chunk] turns.
//
// A caption file is a sequence of blocks separated by blank lines:
//
//	WEBVTT
//
//	1
//	00:00:00.000 --> 00:00:02.000
//	Alice: hello
//
//	2
//	00:00:02.000 --> 00:00:04.000
//	Alice: how are you?
//
// The header line is optional. The first text line of a block may carry a
// "Speaker: " prefix; blocks without one are attributed to [OmittedSpeaker].
//
// Parsing, compaction and formatting are pure, single-pass operations over
// in-memory data. Empty input always yields empty output and a nil error.
package caption

import (
	"fmt"
	"time"
)

// HeaderMarker is the literal first line of a WebVTT file.
const HeaderMarker = "WEBVTT"

// OmittedSpeaker is recorded as the speaker of a block whose first text line
// carries no "Speaker:" prefix.
const OmittedSpeaker = "OMITTED"

// Utterance is one timestamped caption block attributed to a speaker.
type Utterance struct {
	// Seq is the block's index line. Positive and strictly increasing
	// within a parsed file.
	Seq int

	// Speaker is the name left of the first colon, or [OmittedSpeaker].
	Speaker string

	// Start and End are offsets from the beginning of the recording.
	Start time.Duration
	End   time.Duration

	// Text is the trimmed utterance text. Never empty once complete.
	Text string
}

// Complete reports whether u has a sequence number, a speaker and non-empty
// text. Only complete utterances are emitted by the parser.
func (u Utterance) Complete() bool {
	return u.Seq > 0 && u.Speaker != "" && u.Text != ""
}

// String implements [fmt.Stringer].
func (u Utterance) String() string {
	return fmt.Sprintf("Utterance(%d, %s, %s, text: %d)", u.Seq, u.Speaker, FormatTimestamp(u.Start), len(u.Text))
}

// Chunk is a maximal run of consecutive utterances by the same speaker,
// merged into a single turn.
type Chunk struct {
	// Seq is the sequence number of the first merged utterance.
	Seq int

	// Speaker is shared by every merged utterance.
	Speaker string

	// Start is the first utterance's start; End is the last utterance's end.
	Start time.Duration
	End   time.Duration

	// Text is the merged utterances' texts joined by "\n", in order.
	Text string
}

// Duration returns the length of the turn. Negative spans are reported as 0.
func (c Chunk) Duration() time.Duration {
	if c.End < c.Start {
		return 0
	}
	return c.End - c.Start
}
