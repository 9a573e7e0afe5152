package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	soon := time.Now().UTC().Add(2 * time.Hour).Format("2006-01-02 15:04")
	feed := `{
  "lectures": [[{"courseName": "웹프레임워크1", "lecture_title": "5주차", "deadline": "??"}]],
  "assignments": [{"courseName": "운영체제", "title": "보고서", "deadline": "` + soon + `"}]
}`
	feedPath := filepath.Join(dir, "feed.json")
	if err := os.WriteFile(feedPath, []byte(feed), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := `{
  "logging": {"level": "error"},
  "source": {"kind": "file", "path": "` + filepath.ToSlash(feedPath) + `"},
  "reminder": {"lead": "3h"},
  "trigger": {"schedule": "10m"}
}`
	cfgPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestPlanCommand(t *testing.T) {
	t.Parallel()
	out := execute(t, "--config", writeFixture(t), "plan")
	if !strings.HasPrefix(out, "lead: 3h\n") {
		t.Fatalf("plan output:\n%s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("want header + 2 rows, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[2], "due") || !strings.Contains(lines[2], "[과제] 운영체제") {
		t.Fatalf("row 1 = %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "expired") || !strings.Contains(lines[3], "??") {
		t.Fatalf("row 2 = %q", lines[3])
	}
}

func TestTasksCommand(t *testing.T) {
	t.Parallel()
	out := execute(t, "--config", writeFixture(t), "tasks", "--limit", "1")
	if !strings.HasPrefix(out, "1. [과제] 운영체제 · 보고서 · ") || !strings.Contains(out, "외 1개") {
		t.Fatalf("tasks output:\n%s", out)
	}
}

func TestMissingConfigFails(t *testing.T) {
	t.Parallel()
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.json"), "plan"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for missing config")
	}
}
