package caption

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimestamp parses a caption timestamp of the form HH:MM:SS.fff or
// MM:SS.fff into an offset. The fractional part may have one to nine digits
// and may be separated by '.' or ','.
func ParseTimestamp(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	var hours, minutes int
	var secPart string
	var err error

	switch len(parts) {
	case 3:
		if hours, err = parseClockField(parts[0], -1); err != nil {
			return 0, fmt.Errorf("%w: %q: hours", ErrInvalidTimestamp, s)
		}
		if minutes, err = parseClockField(parts[1], 59); err != nil {
			return 0, fmt.Errorf("%w: %q: minutes", ErrInvalidTimestamp, s)
		}
		secPart = parts[2]
	case 2:
		if minutes, err = parseClockField(parts[0], -1); err != nil {
			return 0, fmt.Errorf("%w: %q: minutes", ErrInvalidTimestamp, s)
		}
		secPart = parts[1]
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}

	whole, frac, _ := strings.Cut(strings.Replace(secPart, ",", ".", 1), ".")
	seconds, err := parseClockField(whole, 59)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: seconds", ErrInvalidTimestamp, s)
	}

	var nanos int64
	if frac != "" {
		if len(frac) > 9 || !allDigits(frac) {
			return 0, fmt.Errorf("%w: %q: fraction", ErrInvalidTimestamp, s)
		}
		n, _ := strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
		nanos = n
	}

	d := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(nanos)
	return d, nil
}

// FormatTimestamp renders d as HH:MM:SS.mmm, widening to microseconds or
// nanoseconds when d carries finer precision, so that [ParseTimestamp]
// returns d unchanged.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second

	if d%time.Microsecond != 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%09d", h, m, s, d)
	}
	if d%time.Millisecond != 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, s, d/time.Microsecond)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, d/time.Millisecond)
}

// parseClockField parses a non-negative decimal clock field. max < 0 means
// unbounded.
func parseClockField(s string, max int) (int, error) {
	if s == "" || !allDigits(s) {
		return 0, ErrInvalidTimestamp
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if max >= 0 && n > max {
		return 0, ErrInvalidTimestamp
	}
	return n, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
