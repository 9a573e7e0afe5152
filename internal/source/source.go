// Package source fetches the course feed: outstanding lectures and
// assignments. Sources never interpret deadlines; that is task's job.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"coursebell/internal/course"
	logx "coursebell/pkg/logx"
)

// Source yields one feed snapshot per call.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (course.Feed, error)
}

// Config selects and configures a source.
//
// Kind values:
//   - "file": JSON or YAML feed on disk (Path)
//   - "http": JSON feed served at URL
//   - "lms":  scrape the course site at URL with a logged-in session Cookie
type Config struct {
	Kind          string
	Path          string
	URL           string
	Headers       map[string]string
	Cookie        string
	Timeout       time.Duration
	SemesterStart time.Time // lms only
	Concurrency   int       // lms only
}

// New builds the configured source.
func New(cfg Config, log logx.Logger) (Source, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := &http.Client{Timeout: cfg.Timeout}

	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "file":
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, errors.New("source.path is required for file source")
		}
		return &File{Path: cfg.Path}, nil
	case "http":
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, errors.New("source.url is required for http source")
		}
		return &HTTP{URL: cfg.URL, Headers: cfg.Headers, Client: client}, nil
	case "lms":
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, errors.New("source.url is required for lms source")
		}
		if cfg.SemesterStart.IsZero() {
			return nil, errors.New("source.semester_start is required for lms source")
		}
		return &LMS{
			BaseURL:       strings.TrimRight(cfg.URL, "/"),
			Cookie:        cfg.Cookie,
			SemesterStart: cfg.SemesterStart,
			Concurrency:   cfg.Concurrency,
			Client:        client,
			Log:           log,
		}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
