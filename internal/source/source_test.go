package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "coursebell/pkg/logx"
)

const feedJSON = `{
  "lectures": [
    [{"courseName": "웹프레임워크1", "lecture_title": "3주차 1차시", "lecture_length": "25:10", "deadline": "09-22 23:59"}],
    [{"courseName": "운영체제", "lecture_title": "3주차", "deadline": "2024-09-20T18:00:00Z"}]
  ],
  "assignments": [
    {"courseName": "자료구조", "title": "과제2", "week": "3", "status": "미제출", "deadline": "09-21 12:00"}
  ]
}`

const feedYAML = `
lectures:
  - - courseName: 웹프레임워크1
      lecture_title: 3주차 1차시
      deadline: "09-22 23:59"
assignments:
  - courseName: 자료구조
    title: 과제2
    deadline: "09-21 12:00"
`

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"file", Config{Kind: "file", Path: "feed.json"}, false},
		{"file without path", Config{Kind: "file"}, true},
		{"http", Config{Kind: "HTTP", URL: "http://localhost/feed"}, false},
		{"http without url", Config{Kind: "http"}, true},
		{"lms without semester", Config{Kind: "lms", URL: "https://learn.example"}, true},
		{"lms", Config{Kind: "lms", URL: "https://learn.example", SemesterStart: time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)}, false},
		{"unknown", Config{Kind: "ftp"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.cfg, logx.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileSource(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for name, body := range map[string]string{"feed.json": feedJSON, "feed.yaml": feedYAML} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatal(err)
			}
			feed, err := (&File{Path: path}).Fetch(context.Background())
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if feed.LectureCount() == 0 || len(feed.Assignments) != 1 {
				t.Fatalf("feed = %+v", feed)
			}
			if got := feed.Lectures[0][0]; got.CourseName != "웹프레임워크1" || got.Deadline != "09-22 23:59" {
				t.Fatalf("first lecture = %+v", got)
			}
		})
	}
}

func TestFileSourceErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if _, err := (&File{Path: filepath.Join(dir, "missing.json")}).Fetch(context.Background()); err == nil {
		t.Fatal("missing file should fail")
	}
	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`{"lectures": "nope"}`), 0o600)
	if _, err := (&File{Path: bad}).Fetch(context.Background()); err == nil {
		t.Fatal("malformed feed should fail")
	}
}

func TestHTTPSource(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t0k" {
			http.Error(w, "no", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(feedJSON))
	}))
	defer srv.Close()

	src := &HTTP{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer t0k"}, Client: srv.Client()}
	feed, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if feed.LectureCount() != 2 || len(feed.Assignments) != 1 {
		t.Fatalf("feed = %+v", feed)
	}

	src.Headers = nil
	if _, err := src.Fetch(context.Background()); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("unauthorized Fetch err = %v", err)
	}
}
