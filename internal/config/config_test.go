package config

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"coursebell/internal/reminder"
)

const validYAML = `
logging:
  level: debug
  console: true
telegram:
  token: ""
  owner_user_ids: [1001]
source:
  kind: file
  path: ./feed.json
reminder:
  lead: 12h
trigger:
  schedule: 10m
  timezone: UTC
`

const validJSON = `{
  "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}},
  "telegram": {"token": "", "owner_user_ids": []},
  "source": {"kind": "lms", "url": "https://learn.example", "semester_start": "2024-09-02"},
  "reminder": {"lead": "1d", "persist_marks": true},
  "trigger": {"schedule": "*/10 * * * *"},
  "storage": {"driver": "sqlite", "path": "./data/coursebell.db"}
}`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadYAMLAndJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfg, err := NewManager(writeFile(t, dir, "c.yaml", validYAML)).Load()
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	if cfg.Reminder.LeadTime() != reminder.Lead12h || cfg.Source.Kind != "file" || !cfg.Trigger.RunsOnStart() {
		t.Fatalf("yaml cfg = %+v", cfg)
	}

	cfg, err = NewManager(writeFile(t, dir, "c.json", validJSON)).Load()
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	start, err := cfg.Source.SemesterStartDate()
	if err != nil || !start.Equal(time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("SemesterStartDate = %v, %v", start, err)
	}
}

func TestLoadRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, file, body, wantErr string
	}{
		{"unknown field", "c.json", `{"source":{"kind":"file","path":"f"},"trigger":{"schedule":"5m"},"pprof":{}}`, "unknown field"},
		{"trailing data", "c.json", `{"source":{"kind":"file","path":"f"},"trigger":{"schedule":"5m"}} {}`, "trailing"},
		{"bad lead", "c.yaml", "source: {kind: file, path: f}\ntrigger: {schedule: 5m}\nreminder: {lead: 2h}\n", "reminder.lead"},
		{"bad schedule", "c.yaml", "source: {kind: file, path: f}\ntrigger: {schedule: soon}\n", "trigger.schedule"},
		{"lms needs semester", "c.yaml", "source: {kind: lms, url: https://x}\ntrigger: {schedule: 5m}\n", "semester_start"},
		{"persist needs storage", "c.yaml", "source: {kind: file, path: f}\ntrigger: {schedule: 5m}\nreminder: {persist_marks: true}\n", "requires storage"},
		{"bad duration", "c.yaml", "source: {kind: file, path: f}\ntrigger: {schedule: 5m}\nnotifier: {enabled: true, retry_base: fast}\n", "notifier.retry_base"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := writeFile(t, t.TempDir(), tt.file, tt.body)
			_, err := NewManager(p).Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "c.yaml", validYAML)
	m := NewManager(p)
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// Invalid content is rejected and never published.
	writeFile(t, dir, "c.yaml", strings.Replace(validYAML, "lead: 12h", "lead: 2h", 1))
	select {
	case cfg := <-ch:
		t.Fatalf("invalid config published: %+v", cfg.Reminder)
	case <-time.After(300 * time.Millisecond):
	}

	writeFile(t, dir, "c.yaml", strings.Replace(validYAML, "lead: 12h", "lead: 3d", 1))
	select {
	case cfg := <-ch:
		if cfg.Reminder.LeadTime() != reminder.Lead3d {
			t.Fatalf("published lead = %q", cfg.Reminder.Lead)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no config published")
	}
	if m.Get().Reminder.Lead != "3d" {
		t.Fatalf("Get().Reminder.Lead = %q", m.Get().Reminder.Lead)
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Trigger: TriggerConfig{Schedule: "10m"}, Telegram: TelegramConfig{Token: "a"}}
	newCfg := &Config{Trigger: TriggerConfig{Schedule: "5m"}, Telegram: TelegramConfig{Token: "b"}, Reminder: ReminderConfig{Lead: "3h"}}
	sections, attrs := SummarizeChange(oldCfg, newCfg)
	want := []string{"telegram", "reminder", "trigger"}
	if !slices.Equal(sections, want) {
		t.Fatalf("sections = %v, want %v", sections, want)
	}
	if len(attrs) == 0 {
		t.Fatal("no attrs")
	}
	if s, _ := SummarizeChange(newCfg, newCfg); len(s) != 0 {
		t.Fatalf("identical configs changed: %v", s)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("x", "", time.Second); err != nil || d != time.Second {
		t.Fatalf("empty = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "250ms", time.Second); err != nil || d != 250*time.Millisecond {
		t.Fatalf("250ms = %v, %v", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "-1s", time.Second); err == nil {
		t.Fatal("negative accepted")
	}
}
