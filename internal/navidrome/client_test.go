package navidrome

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret", nil)
	require.NoError(t, client.Login(context.Background()))
	assert.Equal(t, "tok-1", client.token)

	bad := NewClient(server.URL, "admin", "wrong", nil)
	assert.ErrorIs(t, bad.Login(context.Background()), ErrAuth)
}

func TestClient_Starred(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
		case "/api/album":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("x-nd-authorization"))
			assert.Equal(t, "true", r.URL.Query().Get("starred"))
			_ = json.NewEncoder(w).Encode([]album{
				{ID: "al-1", Name: "Dummy", Artist: "Portishead"},
			})
		case "/api/song":
			_ = json.NewEncoder(w).Encode([]song{
				{ID: "tr-1", Title: "Roads", Artist: "Portishead", Album: "Dummy", Path: "Portishead/Dummy/08 - Roads.flac"},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret", nil)

	// Login happens implicitly on first read.
	set, err := client.Starred(context.Background())
	require.NoError(t, err)

	assert.True(t, set.AlbumStarred("Portishead", "Dummy"))
	assert.True(t, set.AlbumStarred("portishead", "DUMMY"), "lookup is normalized")
	assert.False(t, set.AlbumStarred("Portishead", "Third"))
	assert.True(t, set.TrackStarred("Portishead", "Roads"))
	assert.False(t, set.TrackStarred("Portishead", "Mysterons"))
	assert.True(t, set.TrackPaths["Portishead/Dummy/08 - Roads.flac"])
	assert.False(t, set.FetchedAt.IsZero())
}

func TestClient_Unstar_SubsonicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/unstar", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "admin", q.Get("u"))
		assert.Equal(t, "al-1", q.Get("albumId"))
		assert.Equal(t, "json", q.Get("f"))

		// Token must be md5(password + salt).
		sum := md5.Sum([]byte("secret" + q.Get("s")))
		assert.Equal(t, hex.EncodeToString(sum[:]), q.Get("t"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"subsonic-response": map[string]any{"status": "ok"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret", nil)
	require.NoError(t, client.Unstar(context.Background(), "albumId", "al-1"))
}

func TestClient_Star_SubsonicError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"subsonic-response": map[string]any{
				"status": "failed",
				"error":  map[string]any{"code": 70, "message": "not found"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret", nil)
	err := client.Star(context.Background(), "id", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestClient_Star_DryRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("dry-run must not reach the server")
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret", nil, WithDryRun(true))
	require.NoError(t, client.Star(context.Background(), "id", "tr-1"))
	require.NoError(t, client.Unstar(context.Background(), "albumId", "al-1"))
}

func TestClient_Starred_ExpiredToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/album" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret", nil)
	client.token = "stale"

	_, err := client.Starred(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
}
