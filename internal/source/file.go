package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"coursebell/internal/course"
)

// File reads a feed from disk. ".yaml" and ".yml" decode as YAML, anything
// else as JSON. The file is re-read on every Fetch.
type File struct {
	Path string
}

func (f *File) Name() string { return "file:" + f.Path }

func (f *File) Fetch(ctx context.Context) (course.Feed, error) {
	if err := ctx.Err(); err != nil {
		return course.Feed{}, err
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return course.Feed{}, fmt.Errorf("read feed: %w", err)
	}
	var feed course.Feed
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &feed)
	default:
		err = json.Unmarshal(b, &feed)
	}
	if err != nil {
		return course.Feed{}, fmt.Errorf("decode feed %s: %w", f.Path, err)
	}
	return feed, nil
}
