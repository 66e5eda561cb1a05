// Package slskd is the client for the peer-to-peer search and download
// daemon: initiating searches, polling them to completion, enqueueing
// transfers, and listing the active download queue.
package slskd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrNotFound is returned when a search ID is unknown to the daemon.
var ErrNotFound = errors.New("slskd: not found")

// Client talks to a slskd instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	dryRun     bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDryRun suppresses enqueueing; searches and reads are unaffected.
func WithDryRun(dryRun bool) Option {
	return func(c *Client) { c.dryRun = dryRun }
}

// NewClient creates a new slskd client.
func NewClient(baseURL, apiKey string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search initiates a search and returns its ID. The daemon keeps
// collecting responses for the given timeout after this call returns.
func (c *Client) Search(ctx context.Context, text string, timeout time.Duration) (string, error) {
	body := map[string]any{
		"searchText": text,
		"timeout":    timeout.Milliseconds(),
	}
	var result struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v0/searches", body, &result); err != nil {
		return "", fmt.Errorf("initiate search: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("initiate search: no id in response")
	}
	c.logger.Debug("search started", "id", result.ID, "text", text)
	return result.ID, nil
}

// Status returns the current state of a search.
func (c *Client) Status(ctx context.Context, searchID string) (SearchStatus, error) {
	var status SearchStatus
	if err := c.get(ctx, "/api/v0/searches/"+searchID, &status); err != nil {
		return SearchStatus{}, fmt.Errorf("search status: %w", err)
	}
	return status, nil
}

// Responses returns the per-peer responses collected so far.
func (c *Client) Responses(ctx context.Context, searchID string) ([]Response, error) {
	var responses []Response
	if err := c.get(ctx, "/api/v0/searches/"+searchID+"/responses", &responses); err != nil {
		return nil, fmt.Errorf("search responses: %w", err)
	}
	return responses, nil
}

// CollectOptions bounds a Collect poll loop.
type CollectOptions struct {
	Timeout    time.Duration // hard ceiling on total wait
	Interval   time.Duration // poll interval
	MinResults int           // early exit once this many files are seen past MinWait
	MinWait    time.Duration // never early-exit before this much time has passed
}

// Collect runs a search to completion: initiate, poll until the daemon
// reports it complete, the file count clears the early-exit bar, or the
// budget runs out, then fetch whatever responses accumulated. A search
// that times out with zero files is not an error; the caller gets an
// empty slice.
func (c *Client) Collect(ctx context.Context, text string, opts CollectOptions) ([]Response, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.Interval <= 0 {
		opts.Interval = 4 * time.Second
	}
	if opts.MinWait <= 0 {
		opts.MinWait = time.Minute
	}

	id, err := c.Search(ctx, text, opts.Timeout)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(opts.Timeout)
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	started := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		status, err := c.Status(ctx, id)
		if err != nil {
			// Transient; keep polling until the budget runs out.
			c.logger.Debug("search status poll failed", "id", id, "error", err)
		} else {
			elapsed := time.Since(started)
			if status.IsComplete {
				break
			}
			if elapsed >= opts.MinWait && opts.MinResults > 0 && status.FileCount >= opts.MinResults {
				c.logger.Debug("search early exit",
					"id", id, "files", status.FileCount, "elapsed", elapsed)
				break
			}
		}

		if time.Now().After(deadline) {
			break
		}
	}

	return c.Responses(ctx, id)
}

// Enqueue requests a download of the given files from one peer, all in a
// single request so the peer queues them together.
func (c *Client) Enqueue(ctx context.Context, username string, files []EnqueueFile) error {
	if len(files) == 0 {
		return fmt.Errorf("enqueue: no files")
	}
	if c.dryRun {
		c.logger.Info("dry-run: would enqueue downloads",
			"peer", username, "files", len(files))
		return nil
	}
	if err := c.post(ctx, "/api/v0/transfers/downloads/"+username, files, nil); err != nil {
		return fmt.Errorf("enqueue from %s: %w", username, err)
	}
	c.logger.Info("enqueued downloads", "peer", username, "files", len(files))
	return nil
}

// Downloads returns all downloads the daemon knows about, flattened.
func (c *Client) Downloads(ctx context.Context) ([]Transfer, error) {
	var users []transferUser
	if err := c.get(ctx, "/api/v0/transfers/downloads", &users); err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}

	var transfers []Transfer
	for _, u := range users {
		for _, dir := range u.Directories {
			for _, f := range dir.Files {
				if f.Username == "" {
					f.Username = u.Username
				}
				transfers = append(transfers, f)
			}
		}
	}
	return transfers, nil
}

const (
	getAttempts = 3
	getBackoff  = 500 * time.Millisecond
)

// get retries transport and server errors with doubling backoff.
// Searches and enqueues go through post and are never retried.
func (c *Client) get(ctx context.Context, path string, out any) error {
	backoff := getBackoff
	var err error
	for attempt := 0; attempt < getAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		var retryable bool
		retryable, err = c.getOnce(ctx, path, out)
		if err == nil || !retryable {
			return err
		}
		c.logger.Debug("retrying read", "path", path, "attempt", attempt+1, "error", err)
	}
	return err
}

func (c *Client) getOnce(ctx context.Context, path string, out any) (retryable bool, _ error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, ErrNotFound
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return true, fmt.Errorf("slskd API error: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("slskd API error: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slskd API error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
