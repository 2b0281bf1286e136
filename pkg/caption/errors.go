package caption

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIndex is wrapped by a [ParseError] when an index line is not a
	// positive integer.
	ErrInvalidIndex = errors.New("index is not a positive integer")

	// ErrIndexOrder is wrapped by a [ParseError] when an index line does not
	// increase over the previous block's index.
	ErrIndexOrder = errors.New("index is not strictly increasing")

	// ErrInvalidTimeRange is wrapped by a [ParseError] when a time line does
	// not have the form "<start> --> <end>".
	ErrInvalidTimeRange = errors.New("malformed time range")

	// ErrBlockEnded is wrapped by a [ParseError] when a blank line ends a
	// block before its time range or text was read.
	ErrBlockEnded = errors.New("block ended before its text")

	// ErrInvalidTimestamp is returned by [ParseTimestamp] for malformed
	// timestamps.
	ErrInvalidTimestamp = errors.New("malformed timestamp")

	// ErrInvalidHeader is wrapped by a [ParseError] when a compacted record
	// header cannot be parsed.
	ErrInvalidHeader = errors.New("malformed record header")
)

// ParseError reports a line that could not be parsed into the field expected
// by the parser's current state. Raw is the line exactly as read.
type ParseError struct {
	// Line is the 1-based line number within the input.
	Line int

	// Raw is the offending line, untrimmed.
	Raw string

	// State is the parser state the line was consumed in.
	State ParserState

	// Err is the underlying cause.
	Err error
}

// Error implements [error].
func (e *ParseError) Error() string {
	return fmt.Sprintf("caption: line %d (%s): couldn't parse %q: %v", e.Line, e.State, e.Raw, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error { return e.Err }

// IncompleteUtteranceError reports input that ended in the middle of a
// caption block.
type IncompleteUtteranceError struct {
	// Seq is the index of the unfinished block, 0 if none was read.
	Seq int

	// State is the parser state at end of input.
	State ParserState

	// Line is the number of lines consumed.
	Line int
}

// Error implements [error].
func (e *IncompleteUtteranceError) Error() string {
	return fmt.Sprintf("caption: input ended after line %d with block %d incomplete (%s)", e.Line, e.Seq, e.State)
}
