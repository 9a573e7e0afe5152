package trigger

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in       string
		wantKind SpecKind
		wantExpr string
	}{
		{"*/10 * * * *", SpecCron, "*/10 * * * *"},
		{"@hourly", SpecCron, "@hourly"},
		{"@every 5m", SpecCron, "@every 5m"},
		{"cron:0 9 * * *", SpecCron, "0 9 * * *"},
		{"5m", SpecInterval, "@every 5m0s"},
		{"1h30m", SpecInterval, "@every 1h30m0s"},
		{"00:15", SpecInterval, "@every 15m0s"},
		{"02:30", SpecInterval, "@every 2h30m0s"},
		{"every: 10m", SpecInterval, "@every 10m0s"},
		{"interval:01:00", SpecInterval, "@every 1h0m0s"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tt.in)
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tt.in, err)
			}
			if got.Kind != tt.wantKind || got.Expr() != tt.wantExpr {
				t.Fatalf("ParseSchedule(%q) = %+v (expr %q), want kind %v expr %q", tt.in, got, got.Expr(), tt.wantKind, tt.wantExpr)
			}
		})
	}
}

func TestParseScheduleErrors(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "   ", "cron:", "every:", "0s", "-5m", "00:00", "01:75", "soon"} {
		if got, err := ParseSchedule(in); err == nil {
			t.Fatalf("ParseSchedule(%q) = %+v, want error", in, got)
		}
	}
}

func TestIntervalDuration(t *testing.T) {
	t.Parallel()
	got, err := ParseSchedule("00:50")
	if err != nil || got.Every != 50*time.Minute {
		t.Fatalf("ParseSchedule(00:50) = %+v, %v", got, err)
	}
}
