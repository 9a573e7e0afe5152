package reminder

import (
	"time"

	"coursebell/internal/task"
)

// Verdict is the outcome of evaluating one task against a lead time.
type Verdict int

const (
	// NotYet means the fire instant is still in the future; a later pass may schedule it.
	NotYet Verdict = iota
	// Due means a reminder should be scheduled at Decision.FireAt.
	Due
	// Expired means no reminder will ever be scheduled (deadline passed or unknown).
	Expired
)

func (v Verdict) String() string {
	switch v {
	case NotYet:
		return "not_yet"
	case Due:
		return "due"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Decision is the result of Evaluate. FireAt is only set for Due.
type Decision struct {
	Verdict Verdict
	FireAt  time.Time
}

// Evaluate decides whether a reminder for t is due at now.
//
// FireAt is deadline minus lead and may already be in the past; the delivery
// side fires past instants immediately rather than inventing a new one.
// Unparseable deadlines and deadlines at or before now are Expired.
func Evaluate(t task.Task, lead LeadTime, now time.Time) Decision {
	if !t.Deadline.Valid() {
		return Decision{Verdict: Expired}
	}
	dl := t.Deadline.Time()
	if !dl.After(now) {
		return Decision{Verdict: Expired}
	}
	fireAt := dl.Add(-lead.Duration())
	if now.Before(fireAt) {
		return Decision{Verdict: NotYet}
	}
	return Decision{Verdict: Due, FireAt: fireAt}
}
