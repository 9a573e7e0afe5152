package reminder

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidLead is returned for lead times outside LeadTimes.
var ErrInvalidLead = errors.New("invalid lead time")

// LeadTime is how long before a deadline a reminder fires.
// Only the values below are valid.
type LeadTime int

const (
	Lead3h LeadTime = iota + 1
	Lead6h
	Lead12h
	Lead1d
	Lead3d
)

// DefaultLead is used when no preference has been stored yet.
const DefaultLead = Lead1d

// LeadTimes lists the valid selections in ascending order.
var LeadTimes = []LeadTime{Lead3h, Lead6h, Lead12h, Lead1d, Lead3d}

// Duration returns the lead as a duration (3h = 10,800,000ms ... 3d = 259,200,000ms).
func (l LeadTime) Duration() time.Duration {
	switch l {
	case Lead3h:
		return 3 * time.Hour
	case Lead6h:
		return 6 * time.Hour
	case Lead12h:
		return 12 * time.Hour
	case Lead1d:
		return 24 * time.Hour
	case Lead3d:
		return 72 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether l is one of LeadTimes.
func (l LeadTime) Valid() bool { return l.Duration() > 0 }

func (l LeadTime) String() string {
	switch l {
	case Lead3h:
		return "3h"
	case Lead6h:
		return "6h"
	case Lead12h:
		return "12h"
	case Lead1d:
		return "1d"
	case Lead3d:
		return "3d"
	default:
		return fmt.Sprintf("LeadTime(%d)", int(l))
	}
}

// ParseLeadTime accepts "3h", "6h", "12h", "1d", "3d" (case-insensitive) and the
// equivalent Go durations ("24h", "72h").
func ParseLeadTime(raw string) (LeadTime, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, l := range LeadTimes {
		if s == l.String() {
			return l, nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		for _, l := range LeadTimes {
			if d == l.Duration() {
				return l, nil
			}
		}
	}
	return 0, fmt.Errorf("%w %q (use 3h, 6h, 12h, 1d or 3d)", ErrInvalidLead, raw)
}

// MarshalText implements encoding.TextMarshaler.
func (l LeadTime) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w %d", ErrInvalidLead, int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *LeadTime) UnmarshalText(b []byte) error {
	v, err := ParseLeadTime(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
