// Package lidarr is a thin client for the wanted-album source: paging
// through missing releases, fetching canonical track lists, and flipping
// album monitoring after deletions.
package lidarr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vmunix/crate/pkg/match"
)

// ErrNotFound is returned when an artist or album does not exist.
var ErrNotFound = errors.New("lidarr: not found")

const wantedPageSize = 250

// Client talks to a Lidarr instance.
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

// WithDryRun suppresses all mutating calls; reads are unaffected.
func WithDryRun(dryRun bool) Option {
	return func(c *Client) { c.dryRun = dryRun }
}

// NewClient creates a new Lidarr client.
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

// GetWantedAlbums pages through wanted/missing and returns every record.
func (c *Client) GetWantedAlbums(ctx context.Context) ([]Album, error) {
	var albums []Album
	for page := 1; ; page++ {
		q := url.Values{
			"page":          {strconv.Itoa(page)},
			"pageSize":      {strconv.Itoa(wantedPageSize)},
			"sortKey":       {"releaseDate"},
			"sortDirection": {"descending"},
		}

		var result wantedPage
		if err := c.get(ctx, "/api/v1/wanted/missing", q, &result); err != nil {
			return nil, fmt.Errorf("fetch wanted page %d: %w", page, err)
		}
		albums = append(albums, result.Records...)

		if len(result.Records) == 0 || len(albums) >= result.TotalRecords {
			break
		}
	}
	c.logger.Debug("fetched wanted albums", "count", len(albums))
	return albums, nil
}

// GetAlbumTracks returns the canonical track list for an album.
func (c *Client) GetAlbumTracks(ctx context.Context, albumID int64) ([]Track, error) {
	q := url.Values{"albumId": {strconv.FormatInt(albumID, 10)}}
	var tracks []Track
	if err := c.get(ctx, "/api/v1/track", q, &tracks); err != nil {
		return nil, fmt.Errorf("fetch tracks for album %d: %w", albumID, err)
	}
	return tracks, nil
}

// FindAlbum locates an album by artist and title. Exact normalized
// equality wins; failing that, the best fuzzy title match is accepted at
// high confidence only, so tag typos and edition suffixes don't orphan
// an album while a near-miss never resolves to the wrong one. Returns
// ErrNotFound when either side is missing.
func (c *Client) FindAlbum(ctx context.Context, artistName, albumTitle string) (*Album, error) {
	var artists []Artist
	if err := c.get(ctx, "/api/v1/artist", nil, &artists); err != nil {
		return nil, fmt.Errorf("fetch artists: %w", err)
	}

	names := make([]string, len(artists))
	for i := range artists {
		names[i] = artists[i].ArtistName
	}
	pick := resolveTitle(artistName, names)
	if pick < 0 {
		return nil, fmt.Errorf("artist %q: %w", artistName, ErrNotFound)
	}
	artist := &artists[pick]

	q := url.Values{"artistId": {strconv.FormatInt(artist.ID, 10)}}
	var albums []Album
	if err := c.get(ctx, "/api/v1/album", q, &albums); err != nil {
		return nil, fmt.Errorf("fetch albums for artist %d: %w", artist.ID, err)
	}
	titles := make([]string, len(albums))
	for i := range albums {
		titles[i] = albums[i].Title
	}
	pick = resolveTitle(albumTitle, titles)
	if pick < 0 {
		return nil, fmt.Errorf("album %q: %w", albumTitle, ErrNotFound)
	}
	return &albums[pick], nil
}

// resolveTitle returns the index of the candidate naming target, or -1.
func resolveTitle(target string, candidates []string) int {
	nt := match.Normalize(target)
	for i, c := range candidates {
		if match.Normalize(c) == nt {
			return i
		}
	}
	best := match.MatchTitle(target, candidates)
	if best.Confidence < match.ConfidenceHigh {
		return -1
	}
	for i, c := range candidates {
		if c == best.Title {
			return i
		}
	}
	return -1
}

// SetMonitored flips an album's monitored flag. The full album record is
// re-fetched and sent back with only the flag changed, as the API expects.
func (c *Client) SetMonitored(ctx context.Context, albumID int64, monitored bool) error {
	var album json.RawMessage
	if err := c.get(ctx, "/api/v1/album/"+strconv.FormatInt(albumID, 10), nil, &album); err != nil {
		return fmt.Errorf("fetch album %d: %w", albumID, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(album, &fields); err != nil {
		return fmt.Errorf("decode album %d: %w", albumID, err)
	}
	fields["monitored"] = monitored

	if c.dryRun {
		c.logger.Info("dry-run: would set album monitored",
			"album_id", albumID, "monitored", monitored)
		return nil
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode album %d: %w", albumID, err)
	}
	if err := c.put(ctx, "/api/v1/album/"+strconv.FormatInt(albumID, 10), body); err != nil {
		return fmt.Errorf("update album %d: %w", albumID, err)
	}
	return nil
}

// Ping verifies connectivity and the API key.
func (c *Client) Ping(ctx context.Context) error {
	var status map[string]any
	return c.get(ctx, "/api/v1/system/status", nil, &status)
}

const (
	getAttempts = 3
	getBackoff  = 500 * time.Millisecond
)

// get retries transport and server errors with doubling backoff. Reads
// are idempotent; mutations go through put and are never retried.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
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
		retryable, err = c.getOnce(ctx, path, q, out)
		if err == nil || !retryable {
			return err
		}
		c.logger.Debug("retrying read", "path", path, "attempt", attempt+1, "error", err)
	}
	return err
}

func (c *Client) getOnce(ctx context.Context, path string, q url.Values, out any) (retryable bool, _ error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, ErrNotFound
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return true, fmt.Errorf("lidarr API error: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("lidarr API error: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

func (c *Client) put(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("lidarr API error: %s", resp.Status)
	}
	return nil
}
