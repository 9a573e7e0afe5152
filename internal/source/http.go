package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"coursebell/internal/course"
)

// maxFeedBytes bounds a feed response body.
const maxFeedBytes = 8 << 20

// HTTP fetches a JSON feed with GET.
type HTTP struct {
	URL     string
	Headers map[string]string
	Client  *http.Client
}

func (h *HTTP) Name() string { return "http:" + h.URL }

func (h *HTTP) Fetch(ctx context.Context) (course.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return course.Feed{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client().Do(req)
	if err != nil {
		return course.Feed{}, fmt.Errorf("HTTP request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return course.Feed{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	var feed course.Feed
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&feed); err != nil {
		return course.Feed{}, fmt.Errorf("decode feed: %w", err)
	}
	return feed, nil
}

func (h *HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}
