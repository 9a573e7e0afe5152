package deadline

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestNormalizeVariants(t *testing.T) {
	t.Parallel()
	p := Parser{Now: fixedClock(time.Date(2025, 12, 24, 18, 0, 0, 0, time.UTC))}

	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{name: "month-day with space", raw: "12-25 18:00", want: time.Date(2025, 12, 25, 18, 0, 0, 0, time.UTC)},
		{name: "month-day only", raw: "12-25", want: time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)},
		{name: "single digit month-day", raw: "1-5 9:30", want: time.Date(2025, 1, 5, 9, 30, 0, 0, time.UTC)},
		{name: "full date with space", raw: "2024-10-05 23:59", want: time.Date(2024, 10, 5, 23, 59, 0, 0, time.UTC)},
		{name: "full date with seconds", raw: "2024-10-05 23:59:30", want: time.Date(2024, 10, 5, 23, 59, 30, 0, time.UTC)},
		{name: "iso without zone", raw: "2024-10-05T23:59", want: time.Date(2024, 10, 5, 23, 59, 0, 0, time.UTC)},
		{name: "rfc3339 zulu", raw: "2024-10-05T23:59:00Z", want: time.Date(2024, 10, 5, 23, 59, 0, 0, time.UTC)},
		{name: "rfc3339 offset", raw: "2024-10-06T08:59:00+09:00", want: time.Date(2024, 10, 5, 23, 59, 0, 0, time.UTC)},
		{name: "date only", raw: "2024-10-05", want: time.Date(2024, 10, 5, 0, 0, 0, 0, time.UTC)},
		{name: "surrounding whitespace", raw: "  12-25 18:00\n", want: time.Date(2025, 12, 25, 18, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := p.Normalize(tt.raw)
			if !got.Valid() {
				t.Fatalf("Normalize(%q) = unparseable, want %v", tt.raw, tt.want)
			}
			if !got.Time().Equal(tt.want) {
				t.Fatalf("Normalize(%q) = %v, want %v", tt.raw, got.Time(), tt.want)
			}
		})
	}
}

func TestNormalizeUnparseable(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "   ", "not-a-date", "13-45 18:00", "2025-02-30", "12-25 25:99", "tomorrow", "--", "12-", "-12-25"} {
		if got := Normalize(raw); got.Valid() {
			t.Fatalf("Normalize(%q) = %v, want unparseable", raw, got)
		}
	}
	if Unparseable.Valid() {
		t.Fatal("sentinel must not be valid")
	}
	if Unparseable.String() != "unparseable" {
		t.Fatalf("String() = %q", Unparseable.String())
	}
}

func TestNormalizeAssumesCurrentYearInDecember(t *testing.T) {
	t.Parallel()
	// A January deadline seen in December resolves to the current year, not the next one.
	p := Parser{Now: fixedClock(time.Date(2025, 12, 30, 0, 0, 0, 0, time.UTC))}
	got := p.Normalize("01-03 09:00")
	if !got.Valid() || got.Time().Year() != 2025 {
		t.Fatalf("Normalize = %v, want year 2025", got)
	}
}

func TestNormalizeYearlessUsesCurrentYear(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		month := rapid.IntRange(1, 12).Draw(rt, "month")
		day := rapid.IntRange(1, 28).Draw(rt, "day")
		hour := rapid.IntRange(0, 23).Draw(rt, "hour")
		minute := rapid.IntRange(0, 59).Draw(rt, "minute")
		year := rapid.IntRange(2000, 2100).Draw(rt, "year")

		p := Parser{Now: fixedClock(time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC))}
		raw := fmt.Sprintf("%02d-%02d %02d:%02d", month, day, hour, minute)
		got := p.Normalize(raw)
		if !got.Valid() {
			rt.Fatalf("Normalize(%q) unparseable", raw)
		}
		want := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
		if !got.Time().Equal(want) {
			rt.Fatalf("Normalize(%q) = %v, want %v", raw, got.Time(), want)
		}
	})
}

func TestNormalizeNeverPanics(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		raw := rapid.String().Draw(rt, "raw")
		got := Normalize(raw)
		if !got.Valid() && !got.Time().IsZero() {
			rt.Fatalf("unparseable instant carries a time: %v", got.Time())
		}
	})
}
