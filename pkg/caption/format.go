package caption

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// recordHeader matches a compacted record header such as
// "3. Alice. 00:00:04.000 -> 00:00:09.500".
var recordHeader = regexp.MustCompile(`^(\d+)\. (.+)\. (\S+) -> (\S+)$`)

// WriteCompacted writes chunks in the compacted transcript format, one record
// per chunk:
//
//	<seq>. <speaker>. <start> -> <end>
//
//	<text>
//
// Multi-line chunk text is written verbatim.
func WriteCompacted(w io.Writer, chunks []Chunk) error {
	bw := bufio.NewWriter(w)
	for _, c := range chunks {
		if _, err := fmt.Fprintf(bw, "%d. %s. %s -> %s\n\n%s\n\n",
			c.Seq, c.Speaker, FormatTimestamp(c.Start), FormatTimestamp(c.End), c.Text); err != nil {
			return fmt.Errorf("caption: write chunk %d: %w", c.Seq, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("caption: write: %w", err)
	}
	return nil
}

// ReadCompacted parses the format produced by [WriteCompacted]. Text lines
// following a header belong to that record and are joined with "\n"; blank
// lines are ignored.
func ReadCompacted(r io.Reader) ([]Chunk, error) {
	var (
		chunks  []Chunk
		text    []string
		lineNum int
		open    bool
	)
	closeRecord := func() {
		if open {
			chunks[len(chunks)-1].Text = strings.Join(text, "\n")
		}
		text = text[:0]
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		lineNum++
		raw := sc.Text()
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		m := recordHeader.FindStringSubmatch(line)
		if m == nil {
			if !open {
				return nil, &ParseError{Line: lineNum, Raw: raw, State: StateIndex, Err: ErrInvalidHeader}
			}
			text = append(text, line)
			continue
		}

		c, err := chunkFromHeader(m)
		if err != nil {
			return nil, &ParseError{Line: lineNum, Raw: raw, State: StateIndex, Err: err}
		}
		closeRecord()
		chunks = append(chunks, c)
		open = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("caption: read compacted: %w", err)
	}
	closeRecord()

	if chunks == nil {
		chunks = []Chunk{}
	}
	return chunks, nil
}

func chunkFromHeader(m []string) (Chunk, error) {
	seq, err := strconv.Atoi(m[1])
	if err != nil || seq <= 0 {
		return Chunk{}, ErrInvalidIndex
	}
	start, err := ParseTimestamp(m[3])
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: start: %w", ErrInvalidHeader, err)
	}
	end, err := ParseTimestamp(m[4])
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: end: %w", ErrInvalidHeader, err)
	}
	return Chunk{Seq: seq, Speaker: m[2], Start: start, End: end}, nil
}
