// Package navidrome is the starred-status client. Starred albums and
// tracks are the user's keep signal: they veto deletions and trigger
// promotions. Reads use the native token API; star mutations go through
// the Subsonic-compatible endpoint.
package navidrome

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vmunix/crate/pkg/match"
)

// ErrAuth is returned when login is rejected or a token has expired.
var ErrAuth = errors.New("navidrome: authentication failed")

const subsonicClient = "crate"
const subsonicVersion = "1.16.1"

// Client talks to a Navidrome instance.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
	dryRun     bool

	token string // native API token, set by Login
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDryRun suppresses star mutations; reads are unaffected.
func WithDryRun(dryRun bool) Option {
	return func(c *Client) { c.dryRun = dryRun }
}

// NewClient creates a new Navidrome client.
func NewClient(baseURL, username, password string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
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

// Login authenticates against the native API and stores the token.
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return fmt.Errorf("encode login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuth
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("navidrome login error: %s", resp.Status)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if result.Token == "" {
		return fmt.Errorf("login response missing token: %w", ErrAuth)
	}
	c.token = result.Token
	return nil
}

// album is one record from the native album API.
type album struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

// song is one record from the native song API.
type song struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Path   string `json:"path"`
}

// StarredSet is a snapshot of everything the user has starred, keyed by
// the same normalization the matcher uses. Destructive callers must take
// a fresh snapshot immediately before acting on it.
type StarredSet struct {
	Albums     map[string]bool // match.AlbumKey(artist, album)
	Tracks     map[string]bool // match.TrackKey(artist, title)
	TrackPaths map[string]bool // library-relative paths of starred tracks
	FetchedAt  time.Time
}

// AlbumStarred reports whether the album is starred.
func (s *StarredSet) AlbumStarred(artist, albumTitle string) bool {
	return s.Albums[match.AlbumKey(artist, albumTitle)]
}

// TrackStarred reports whether the track is starred.
func (s *StarredSet) TrackStarred(artist, title string) bool {
	return s.Tracks[match.TrackKey(artist, title)]
}

// Starred fetches a fresh snapshot of starred albums and tracks. Logs in
// first when no token is held yet.
func (c *Client) Starred(ctx context.Context) (*StarredSet, error) {
	if c.token == "" {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	var albums []album
	if err := c.get(ctx, "/api/album", url.Values{"starred": {"true"}}, &albums); err != nil {
		return nil, fmt.Errorf("fetch starred albums: %w", err)
	}
	var songs []song
	if err := c.get(ctx, "/api/song", url.Values{"starred": {"true"}}, &songs); err != nil {
		return nil, fmt.Errorf("fetch starred tracks: %w", err)
	}

	set := &StarredSet{
		Albums:     make(map[string]bool, len(albums)),
		Tracks:     make(map[string]bool, len(songs)),
		TrackPaths: make(map[string]bool, len(songs)),
		FetchedAt:  time.Now(),
	}
	for _, a := range albums {
		set.Albums[match.AlbumKey(a.Artist, a.Name)] = true
	}
	for _, s := range songs {
		set.Tracks[match.TrackKey(s.Artist, s.Title)] = true
		if s.Path != "" {
			set.TrackPaths[s.Path] = true
		}
	}

	c.logger.Debug("fetched starred snapshot",
		"albums", len(set.Albums), "tracks", len(set.Tracks))
	return set, nil
}

// Star stars an album or song by Navidrome ID through the Subsonic API.
func (c *Client) Star(ctx context.Context, param, id string) error {
	return c.subsonicStar(ctx, "/rest/star", param, id)
}

// Unstar removes a star through the Subsonic API.
func (c *Client) Unstar(ctx context.Context, param, id string) error {
	return c.subsonicStar(ctx, "/rest/unstar", param, id)
}

// subsonicStar calls star or unstar. param is the Subsonic ID parameter
// name: "id" for songs, "albumId" for albums.
func (c *Client) subsonicStar(ctx context.Context, endpoint, param, id string) error {
	if c.dryRun {
		c.logger.Info("dry-run: would call subsonic endpoint",
			"endpoint", endpoint, param, id)
		return nil
	}

	q := c.subsonicAuth()
	q.Set(param, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subsonic API error: %s", resp.Status)
	}

	var envelope struct {
		Response struct {
			Status string `json:"status"`
			Error  struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		} `json:"subsonic-response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Response.Status != "ok" {
		return fmt.Errorf("subsonic error %d: %s",
			envelope.Response.Error.Code, envelope.Response.Error.Message)
	}
	return nil
}

// subsonicAuth builds salted-token auth parameters.
func (c *Client) subsonicAuth() url.Values {
	salt := make([]byte, 6)
	_, _ = rand.Read(salt)
	saltHex := hex.EncodeToString(salt)
	sum := md5.Sum([]byte(c.password + saltHex))

	return url.Values{
		"u": {c.username},
		"t": {hex.EncodeToString(sum[:])},
		"s": {saltHex},
		"v": {subsonicVersion},
		"c": {subsonicClient},
		"f": {"json"},
	}
}

const (
	getAttempts = 3
	getBackoff  = 500 * time.Millisecond
)

// get retries transport and server errors with doubling backoff. Star
// and unstar mutations are never retried.
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
	req.Header.Set("x-nd-authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return false, ErrAuth
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return true, fmt.Errorf("navidrome API error: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("navidrome API error: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}
