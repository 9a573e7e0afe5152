// Package task merges lecture and assignment records into one ranked list.
package task

import (
	"math"
	"sort"
	"strings"
	"time"

	"coursebell/internal/course"
	"coursebell/internal/deadline"
)

// Kind distinguishes the two task sources.
type Kind int

const (
	Lecture Kind = iota
	Assignment
)

func (k Kind) String() string {
	switch k {
	case Lecture:
		return "lecture"
	case Assignment:
		return "assignment"
	default:
		return "unknown"
	}
}

// Label returns the short Korean tag shown in reminder titles.
func (k Kind) Label() string {
	if k == Assignment {
		return "과제"
	}
	return "영상"
}

// Unbounded is the remaining time of a task whose deadline is unparseable.
const Unbounded = time.Duration(math.MaxInt64)

const (
	placeholderCourse = "(과목 미상)"
	placeholderLabel  = "(제목 없음)"
)

// Key is the natural identity of a task. Source data carries no ids, so two
// real tasks sharing all three fields are indistinguishable.
type Key struct {
	Kind        Kind
	CourseName  string
	RawDeadline string
}

func (k Key) String() string {
	return k.Kind.String() + "|" + k.CourseName + "|" + k.RawDeadline
}

// Task is the unified, time-annotated view of a lecture or an assignment.
// Tasks are rebuilt on every aggregation pass and never mutated afterwards.
type Task struct {
	Kind        Kind
	CourseName  string
	Label       string
	RawDeadline string
	Deadline    deadline.Instant

	// Lecture only.
	Length string
	// Assignment only.
	Status string
	Week   string

	// Remaining is Deadline minus the aggregation clock, Unbounded when unparseable.
	Remaining time.Duration
}

// Key returns the task's natural key.
func (t Task) Key() Key {
	return Key{Kind: t.Kind, CourseName: t.CourseName, RawDeadline: t.RawDeadline}
}

// Aggregator builds ranked task lists.
type Aggregator struct {
	Parser deadline.Parser
}

// Aggregate merges records with the default parser.
func Aggregate(lectures [][]course.Lecture, assignments []course.Assignment, now time.Time) []Task {
	return Aggregator{Parser: deadline.Parser{Now: func() time.Time { return now }}}.Aggregate(lectures, assignments, now)
}

// Aggregate flattens lecture groups, tags every record, normalizes its deadline
// and returns the tasks sorted by remaining time. Ties keep input order
// (lectures first, then assignments); unparseable deadlines sort last.
func (a Aggregator) Aggregate(lectures [][]course.Lecture, assignments []course.Assignment, now time.Time) []Task {
	n := len(assignments)
	for _, g := range lectures {
		n += len(g)
	}
	out := make([]Task, 0, n)

	for _, group := range lectures {
		for _, l := range group {
			out = append(out, a.build(Task{
				Kind:        Lecture,
				CourseName:  orPlaceholder(l.CourseName, placeholderCourse),
				Label:       orPlaceholder(l.Title, placeholderLabel),
				RawDeadline: l.Deadline,
				Length:      l.Length,
			}, now))
		}
	}
	for _, as := range assignments {
		out = append(out, a.build(Task{
			Kind:        Assignment,
			CourseName:  orPlaceholder(as.CourseName, placeholderCourse),
			Label:       orPlaceholder(as.Title, placeholderLabel),
			RawDeadline: as.Deadline,
			Status:      as.Status,
			Week:        as.Week,
		}, now))
	}

	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := out[i].Deadline.Valid(), out[j].Deadline.Valid()
		if vi != vj {
			return vi
		}
		return out[i].Remaining < out[j].Remaining
	})
	return out
}

func (a Aggregator) build(t Task, now time.Time) Task {
	t.Deadline = a.Parser.Normalize(t.RawDeadline)
	t.Remaining = Unbounded
	if t.Deadline.Valid() {
		t.Remaining = t.Deadline.Time().Sub(now)
	}
	return t
}

func orPlaceholder(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
