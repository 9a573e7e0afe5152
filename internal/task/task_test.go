package task

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"pgregory.net/rapid"

	"coursebell/internal/course"
)

var now = time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)

func labels(ts []Task) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Label)
	}
	return out
}

func TestAggregateFlattensAndRanks(t *testing.T) {
	t.Parallel()
	lectures := [][]course.Lecture{
		{
			{CourseName: "웹프레임워크1", Title: "1주차", Length: "42:10", Deadline: "12-25 18:00"},
			{CourseName: "웹프레임워크1", Title: "2주차", Deadline: "12-21 09:00"},
		},
		{
			{CourseName: "선형대수", Title: "고유값", Deadline: "2025-12-22 12:00"},
		},
	}
	assignments := []course.Assignment{
		{CourseName: "설계패턴", Title: "보고서", Week: "15", Status: "미제출", Deadline: "not-a-date"},
		{CourseName: "시스템프로그래밍", Title: "셸 구현", Deadline: "2025-12-20T06:00:00Z"},
	}

	got := Aggregate(lectures, assignments, now)
	want := []string{"셸 구현", "2주차", "고유값", "1주차", "보고서"}
	if !reflect.DeepEqual(labels(got), want) {
		t.Fatalf("order = %v, want %v", labels(got), want)
	}

	last := got[len(got)-1]
	if last.Deadline.Valid() || last.Remaining != Unbounded {
		t.Fatalf("unparseable task = %+v, want sentinel deadline and Unbounded remaining", last)
	}
	if last.Kind != Assignment || last.Status != "미제출" || last.Week != "15" {
		t.Fatalf("assignment fields lost: %+v", last)
	}
	if got[0].Remaining != 6*time.Hour {
		t.Fatalf("Remaining = %v, want 6h", got[0].Remaining)
	}
	if got[3].Kind != Lecture || got[3].Length != "42:10" {
		t.Fatalf("lecture fields lost: %+v", got[3])
	}
}

func TestAggregatePlaceholders(t *testing.T) {
	t.Parallel()
	got := Aggregate([][]course.Lecture{{{}}}, []course.Assignment{{Title: "x"}}, now)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, tk := range got {
		if tk.CourseName != placeholderCourse {
			t.Fatalf("CourseName = %q, want placeholder", tk.CourseName)
		}
		if tk.Deadline.Valid() {
			t.Fatalf("missing deadline must be unparseable: %+v", tk)
		}
	}
	if got[0].Label != placeholderLabel {
		t.Fatalf("Label = %q, want placeholder", got[0].Label)
	}
}

func TestAggregateTiesKeepInputOrder(t *testing.T) {
	t.Parallel()
	lectures := [][]course.Lecture{{
		{CourseName: "A", Title: "first", Deadline: "12-25 18:00"},
		{CourseName: "B", Title: "second", Deadline: "2025-12-25 18:00"},
	}}
	assignments := []course.Assignment{
		{CourseName: "C", Title: "third", Deadline: "2025-12-25T18:00:00Z"},
	}
	got := Aggregate(lectures, assignments, now)
	if want := []string{"first", "second", "third"}; !reflect.DeepEqual(labels(got), want) {
		t.Fatalf("order = %v, want %v", labels(got), want)
	}
}

func TestKeyIdentity(t *testing.T) {
	t.Parallel()
	a := Task{Kind: Lecture, CourseName: "A", Label: "x", RawDeadline: "12-25 18:00"}
	b := Task{Kind: Lecture, CourseName: "A", Label: "y", RawDeadline: "12-25 18:00"}
	c := Task{Kind: Assignment, CourseName: "A", Label: "x", RawDeadline: "12-25 18:00"}
	if a.Key() != b.Key() {
		t.Fatal("label must not be part of the key")
	}
	if a.Key() == c.Key() {
		t.Fatal("kind must be part of the key")
	}
}

func genDeadline(t *rapid.T, label string) string {
	switch rapid.IntRange(0, 3).Draw(t, label+"_form") {
	case 0:
		return fmt.Sprintf("%02d-%02d %02d:00", rapid.IntRange(1, 12).Draw(t, label+"_m"), rapid.IntRange(1, 28).Draw(t, label+"_d"), rapid.IntRange(0, 23).Draw(t, label+"_h"))
	case 1:
		return fmt.Sprintf("2025-%02d-%02d", rapid.IntRange(1, 12).Draw(t, label+"_m"), rapid.IntRange(1, 28).Draw(t, label+"_d"))
	case 2:
		return rapid.SampledFrom([]string{"", "not-a-date", "곧"}).Draw(t, label+"_junk")
	default:
		return "12-25 18:00"
	}
}

func TestAggregateIsStableAndSorted(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		groups := rapid.IntRange(0, 3).Draw(rt, "groups")
		var lectures [][]course.Lecture
		for g := 0; g < groups; g++ {
			n := rapid.IntRange(0, 4).Draw(rt, fmt.Sprintf("g%d", g))
			var group []course.Lecture
			for i := 0; i < n; i++ {
				group = append(group, course.Lecture{CourseName: fmt.Sprintf("C%d", g), Title: fmt.Sprintf("L%d-%d", g, i), Deadline: genDeadline(rt, fmt.Sprintf("l%d_%d", g, i))})
			}
			lectures = append(lectures, group)
		}
		var assignments []course.Assignment
		for i, n := 0, rapid.IntRange(0, 5).Draw(rt, "assignments"); i < n; i++ {
			assignments = append(assignments, course.Assignment{CourseName: "A", Title: fmt.Sprintf("A%d", i), Deadline: genDeadline(rt, fmt.Sprintf("a%d", i))})
		}

		first := Aggregate(lectures, assignments, now)
		second := Aggregate(lectures, assignments, now)
		if !reflect.DeepEqual(labels(first), labels(second)) {
			rt.Fatalf("ordering differs between calls: %v vs %v", labels(first), labels(second))
		}

		seenUnparseable := false
		for i, tk := range first {
			if !tk.Deadline.Valid() {
				seenUnparseable = true
				continue
			}
			if seenUnparseable {
				rt.Fatalf("valid deadline at %d after an unparseable one", i)
			}
			if i > 0 && first[i-1].Deadline.Valid() && first[i-1].Remaining > tk.Remaining {
				rt.Fatalf("not sorted at %d: %v > %v", i, first[i-1].Remaining, tk.Remaining)
			}
		}
	})
}
