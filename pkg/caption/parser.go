package caption

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ParserState is the field the [Parser] expects on its next non-blank line.
type ParserState int

const (
	// StateIndex expects the block's sequence number.
	StateIndex ParserState = iota

	// StateTimeRange expects "<start> --> <end>".
	StateTimeRange

	// StateSpeaker expects the first text line, optionally "Speaker: text".
	StateSpeaker

	// StateText expects utterance text after a "Speaker:" line that had none.
	StateText

	// StateComplete holds a complete utterance. A further text line before the
	// next blank line continues the utterance; anything else starts a new block.
	StateComplete
)

// String implements [fmt.Stringer].
func (s ParserState) String() string {
	switch s {
	case StateIndex:
		return "awaiting index"
	case StateTimeRange:
		return "awaiting time range"
	case StateSpeaker:
		return "awaiting speaker"
	case StateText:
		return "awaiting text"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("ParserState(%d)", int(s))
	}
}

// maxLineSize bounds a single caption line read by [Parse].
const maxLineSize = 1 << 20

// Parser is an incremental caption parser. Feed it lines in order, then call
// [Parser.Finish] to obtain the utterances. The zero value is not usable;
// create one with [NewParser].
//
// A Parser is not safe for concurrent use.
type Parser struct {
	state    ParserState
	cur      Utterance
	line     int
	lastSeq  int
	sawBlank bool
	out      []Utterance
	finished bool
}

// NewParser returns a parser positioned before the first block.
func NewParser() *Parser {
	return &Parser{state: StateIndex}
}

// State returns the parser's current state.
func (p *Parser) State() ParserState { return p.state }

// Feed consumes one raw input line (without its trailing newline).
func (p *Parser) Feed(raw string) error {
	if p.finished {
		return fmt.Errorf("caption: feed after finish")
	}
	p.line++

	line := raw
	if p.line == 1 {
		line = strings.TrimPrefix(line, "\ufeff")
	}
	line = strings.TrimSpace(line)

	if line == "" {
		switch p.state {
		case StateComplete:
			p.sawBlank = true
		case StateTimeRange, StateSpeaker, StateText:
			return p.fail(raw, ErrBlockEnded)
		}
		return nil
	}
	if isHeader(line) {
		return nil
	}

	if p.state == StateComplete {
		if !p.sawBlank && !isIndexLine(line) {
			p.cur.Text += " " + line
			return nil
		}
		p.flush()
	}

	switch p.state {
	case StateIndex:
		seq, err := strconv.Atoi(line)
		if err != nil || seq <= 0 {
			return p.fail(raw, ErrInvalidIndex)
		}
		if seq <= p.lastSeq {
			return p.fail(raw, fmt.Errorf("%w: %d after %d", ErrIndexOrder, seq, p.lastSeq))
		}
		p.cur.Seq = seq
		p.state = StateTimeRange

	case StateTimeRange:
		start, end, err := parseTimeRange(line)
		if err != nil {
			return p.fail(raw, err)
		}
		p.cur.Start, p.cur.End = start, end
		p.state = StateSpeaker

	case StateSpeaker:
		p.cur.Speaker, p.cur.Text = splitSpeaker(line)
		if p.cur.Text == "" {
			p.state = StateText
		} else {
			p.state = StateComplete
		}

	case StateText:
		p.cur.Text = line
		p.state = StateComplete
	}
	return nil
}

// Finish ends the input. A complete trailing utterance is emitted; a partial
// one yields an [*IncompleteUtteranceError].
func (p *Parser) Finish() ([]Utterance, error) {
	p.finished = true
	switch p.state {
	case StateComplete:
		p.flush()
	case StateIndex:
	default:
		return nil, &IncompleteUtteranceError{Seq: p.cur.Seq, State: p.state, Line: p.line}
	}
	out := p.out
	if out == nil {
		out = []Utterance{}
	}
	return out, nil
}

func (p *Parser) flush() {
	p.out = append(p.out, p.cur)
	p.lastSeq = p.cur.Seq
	p.cur = Utterance{}
	p.sawBlank = false
	p.state = StateIndex
}

func (p *Parser) fail(raw string, err error) error {
	return &ParseError{Line: p.line, Raw: raw, State: p.state, Err: err}
}

// Parse reads a caption file from r and returns its utterances in file order.
func Parse(r io.Reader) ([]Utterance, error) {
	p := NewParser()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		if err := p.Feed(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("caption: read: %w", err)
	}
	return p.Finish()
}

// ParseLines parses an already split caption file.
func ParseLines(lines []string) ([]Utterance, error) {
	p := NewParser()
	for _, l := range lines {
		if err := p.Feed(l); err != nil {
			return nil, err
		}
	}
	return p.Finish()
}

func isHeader(line string) bool {
	if !strings.HasPrefix(line, HeaderMarker) {
		return false
	}
	rest := line[len(HeaderMarker):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

func isIndexLine(line string) bool {
	return allDigits(line)
}

// parseTimeRange parses "<start> --> <end> [cue settings]".
func parseTimeRange(line string) (start, end time.Duration, err error) {
	left, right, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, ErrInvalidTimeRange
	}
	endFields := strings.Fields(right)
	if len(endFields) == 0 {
		return 0, 0, ErrInvalidTimeRange
	}
	if start, err = ParseTimestamp(left); err != nil {
		return 0, 0, fmt.Errorf("%w: start: %w", ErrInvalidTimeRange, err)
	}
	if end, err = ParseTimestamp(endFields[0]); err != nil {
		return 0, 0, fmt.Errorf("%w: end: %w", ErrInvalidTimeRange, err)
	}
	return start, end, nil
}

// splitSpeaker splits "Speaker: text" on the first colon. Lines without a
// colon, or with nothing before it, belong to [OmittedSpeaker].
func splitSpeaker(line string) (speaker, text string) {
	name, rest, ok := strings.Cut(line, ":")
	if !ok {
		return OmittedSpeaker, line
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = OmittedSpeaker
	}
	return name, strings.TrimSpace(rest)
}
