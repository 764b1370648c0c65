// Package importer fetches task lists from an external board service over one JSON POST.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evanschultz/sprinter/internal/app"
)

// defaultTimeout bounds one import request when the caller sets none.
const defaultTimeout = 15 * time.Second

// maxResponseBytes caps the decoded response body.
const maxResponseBytes = 4 << 20

// ErrRemote reports an unsuccessful response from the task service.
var ErrRemote = errors.New("task service reported failure")

// Options configures a Client.
type Options struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client posts a list id and decodes the returned task records.
type Client struct {
	url  string
	http *http.Client
}

// New constructs a client for the task endpoint at opts.URL.
func New(opts Options) (*Client, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, errors.New("import url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{url: url, http: client}, nil
}

type listRequest struct {
	ListID string `json:"list_id"`
}

type listResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Tasks   []taskRecord `json:"tasks"`
}

type taskRecord struct {
	ID          json.RawMessage `json:"id"`
	Title       string          `json:"title"`
	StoryPoints json.Number     `json:"story_points"`
	Priority    string          `json:"priority"`
	Description string          `json:"description"`
}

// FetchTasks implements app.TaskSource.
func (c *Client) FetchTasks(ctx context.Context, listID string) ([]app.ImportRecord, error) {
	body, err := json.Marshal(listRequest{ListID: listID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build import request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post import request: %w", err)
	}
	defer resp.Body.Close()

	var decoded listResponse
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode import response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !decoded.Success {
		msg := strings.TrimSpace(decoded.Error)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrRemote, msg)
	}

	out := make([]app.ImportRecord, 0, len(decoded.Tasks))
	for i, rec := range decoded.Tasks {
		id, err := recordID(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("tasks[%d].id: %w", i, err)
		}
		sp, err := storyPoints(rec.StoryPoints)
		if err != nil {
			return nil, fmt.Errorf("tasks[%d].story_points: %w", i, err)
		}
		out = append(out, app.ImportRecord{
			ID:          id,
			Title:       rec.Title,
			StoryPoints: sp,
			Priority:    rec.Priority,
			Description: rec.Description,
		})
	}
	return out, nil
}

// recordID accepts string or numeric ids.
func recordID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("missing")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("unsupported id %s", raw)
	}
	return n.String(), nil
}

// storyPoints accepts whole-number values such as 3 or 3.0.
func storyPoints(n json.Number) (int, error) {
	if n == "" {
		return 0, nil
	}
	if v, err := n.Int64(); err == nil {
		return int(v), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("fractional value %s", n)
	}
	return int(f), nil
}
