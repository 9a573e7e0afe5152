// Package deadline normalizes the loosely formatted deadline strings found in
// course feeds into a canonical instant.
//
// Feeds are inconsistent: some omit the year ("12-25 18:00"), some separate
// date and time with a space instead of 'T', and most carry no timezone. The
// rules applied here are:
//
//   - A bare "MM-DD..." value gets the current calendar year prefixed. The
//     current year is always assumed, so a January deadline seen in December
//     resolves to the past January. This is a known limitation.
//   - A space between date and time becomes 'T' and the value is read as UTC.
//   - Anything that still fails to parse is Unparseable.
//
// Normalize never panics and never returns an error.
package deadline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Instant is either a point in time or the Unparseable sentinel.
// The zero value is Unparseable.
type Instant struct {
	at    time.Time
	valid bool
}

// Unparseable is the sentinel for deadlines that could not be interpreted.
var Unparseable = Instant{}

// At wraps t as a valid Instant (normalized to UTC).
func At(t time.Time) Instant { return Instant{at: t.UTC(), valid: true} }

// Valid reports whether the instant holds a parsed point in time.
func (i Instant) Valid() bool { return i.valid }

// Time returns the parsed instant. It is the zero time for Unparseable.
func (i Instant) Time() time.Time { return i.at }

func (i Instant) String() string {
	if !i.valid {
		return "unparseable"
	}
	return i.at.Format(time.RFC3339)
}

var reMonthDay = regexp.MustCompile(`^\d{1,2}-\d{1,2}(\D|$)`)

// Layouts tried after normalization, in order. Zone-less layouts are read as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-1-2T15:04:05Z07:00",
	"2006-1-2T15:04Z07:00",
	"2006-1-2T15:04:05",
	"2006-1-2T15:04",
	"2006-1-2",
}

// Parser normalizes deadlines relative to a clock. The clock only matters for
// year-less input.
type Parser struct {
	Now func() time.Time
}

// Normalize parses raw using the wall clock.
func Normalize(raw string) Instant {
	return Parser{}.Normalize(raw)
}

// Normalize parses raw. It returns Unparseable for any input it cannot read.
func (p Parser) Normalize(raw string) (out Instant) {
	defer func() {
		if recover() != nil {
			out = Unparseable
		}
	}()

	s := strings.TrimSpace(raw)
	if s == "" {
		return Unparseable
	}
	if reMonthDay.MatchString(s) {
		s = strconv.Itoa(p.now().UTC().Year()) + "-" + s
	}
	if date, clock, ok := strings.Cut(s, " "); ok {
		s = date + "T" + strings.TrimSpace(clock)
	}

	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return At(t)
		}
	}
	return Unparseable
}

func (p Parser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
