// Package workload parses replayable update streams.
//
// Each non-blank line is one update:
//
//	key delta [ttl]
//
// ttl is a Go duration ("30s", "1m30s") or a bare number of seconds. Lines
// starting with # are comments.
package workload

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/xtxerr/keysample/internal/errors"
	"github.com/xtxerr/keysample/internal/validation"
)

// Update is a single workload line.
type Update struct {
	Line   int
	Key    string
	Delta  int64
	TTL    time.Duration // Zero when the line carries no ttl
	HasTTL bool
}

// ParseLine parses one line. It returns ok=false for blank and comment lines.
func ParseLine(lineNo int, line string) (Update, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Update{}, false, nil
	}

	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields) > 3 {
		return Update{}, false, errors.NewParse(lineNo, "expected 'key delta [ttl]'")
	}

	if err := validation.Key(fields[0]); err != nil {
		return Update{}, false, errors.NewParse(lineNo, err.Error())
	}

	delta, err := ParseDelta(fields[1])
	if err != nil {
		return Update{}, false, errors.NewParse(lineNo, "bad delta "+fields[1])
	}

	u := Update{Line: lineNo, Key: fields[0], Delta: delta}

	if len(fields) == 3 {
		ttl, err := ParseTTL(fields[2])
		if err != nil {
			return Update{}, false, errors.NewParse(lineNo, err.Error())
		}
		u.TTL = ttl
		u.HasTTL = true
	}

	return u, true, nil
}

// ParseDelta parses a signed base-10 integer. Fractions and other bases are
// rejected; leading zeros are read as decimal.
func ParseDelta(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrParse, "bad integer %s", s)
	}
	return v, nil
}

// maxTTLSeconds is the largest bare ttl that fits in a time.Duration.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// ParseTTL parses a positive duration. Bare integers are seconds; anything
// with a unit goes through cast.
func ParseTTL(s string) (time.Duration, error) {
	var ttl time.Duration
	if !strings.ContainsAny(s, "nsuµmh") {
		secs, err := ParseDelta(s)
		if err != nil {
			return 0, errors.Wrapf(errors.ErrInvalidInterval, "bad ttl %s", s)
		}
		if secs > maxTTLSeconds {
			return 0, errors.Wrapf(errors.ErrInvalidInterval, "ttl %s is too large", s)
		}
		ttl = time.Duration(secs) * time.Second
	} else {
		var err error
		ttl, err = cast.ToDurationE(s)
		if err != nil {
			return 0, errors.Wrapf(errors.ErrInvalidInterval, "bad ttl %s", s)
		}
	}
	if ttl <= 0 {
		return 0, errors.Wrapf(errors.ErrInvalidInterval, "ttl %s must be positive", s)
	}
	return ttl, nil
}

// Scanner reads updates from a stream one at a time.
type Scanner struct {
	sc     *bufio.Scanner
	lineNo int
	update Update
	err    error
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{sc: bufio.NewScanner(r)}
}

// Scan advances to the next update. It returns false at end of input or on
// the first malformed line; Err reports which.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.sc.Scan() {
		s.lineNo++
		u, ok, err := ParseLine(s.lineNo, s.sc.Text())
		if err != nil {
			s.err = err
			return false
		}
		if ok {
			s.update = u
			return true
		}
	}
	s.err = s.sc.Err()
	return false
}

// Update returns the most recent update read by Scan.
func (s *Scanner) Update() Update {
	return s.update
}

// Err returns the first error encountered, if any.
func (s *Scanner) Err() error {
	return s.err
}

// ReadAll parses every update in r.
func ReadAll(r io.Reader) ([]Update, error) {
	var updates []Update
	s := NewScanner(r)
	for s.Scan() {
		updates = append(updates, s.Update())
	}
	return updates, s.Err()
}
