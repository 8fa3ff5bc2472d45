package spotify_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"library-encoder/pkg/spotify"
)

func trackItem(i int) map[string]any {
	id := fmt.Sprintf("track-%03d", i)
	return map[string]any{
		"added_at": time.Now().UTC().Format(time.RFC3339),
		"track": map[string]any{
			"id":          id,
			"name":        "Track " + id,
			"artists":     []map[string]any{{"id": "artist-1", "name": "Artist"}},
			"album":       map[string]any{"id": "album-1", "name": "Album"},
			"duration_ms": 180000,
			"preview_url": "https://cdn.example.com/" + id + ".mp3",
		},
	}
}

func TestSavedTracksWalksAllPages(t *testing.T) {
	const total = 53
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/me/tracks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		authHeader = r.Header.Get("Authorization")

		offset := 0
		fmt.Sscanf(r.URL.Query().Get("offset"), "%d", &offset)
		limit := 50

		var items []map[string]any
		for i := offset; i < offset+limit && i < total; i++ {
			items = append(items, trackItem(i))
		}
		next := ""
		if offset+limit < total {
			next = fmt.Sprintf("%s/v1/me/tracks?limit=%d&offset=%d", r.Host, limit, offset+limit)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": items,
			"next":  next,
			"total": total,
		})
	}))
	defer srv.Close()

	client := spotify.NewClient(srv.URL, 5*time.Second)
	catalog, err := client.SavedTracks(context.Background(), "test-token")
	if err != nil {
		t.Fatalf("SavedTracks returned error: %v", err)
	}
	if len(catalog) != total {
		t.Fatalf("expected %d tracks, got %d", total, len(catalog))
	}
	if authHeader != "Bearer test-token" {
		t.Fatalf("unexpected auth header: %q", authHeader)
	}
	// Library order is preserved across pages.
	if catalog[0].Track.ID != "track-000" || catalog[total-1].Track.ID != fmt.Sprintf("track-%03d", total-1) {
		t.Fatalf("catalog out of order: first=%s last=%s", catalog[0].Track.ID, catalog[total-1].Track.ID)
	}
	if catalog[0].Track.ArtistName() != "Artist" {
		t.Fatalf("unexpected artist: %q", catalog[0].Track.ArtistName())
	}
}

func TestSavedTracksRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{trackItem(0)},
			"next":  "",
			"total": 1,
		})
	}))
	defer srv.Close()

	client := spotify.NewClient(srv.URL, 5*time.Second)
	catalog, err := client.SavedTracks(context.Background(), "token")
	if err != nil {
		t.Fatalf("SavedTracks returned error: %v", err)
	}
	if len(catalog) != 1 {
		t.Fatalf("expected 1 track, got %d", len(catalog))
	}
	if attempts != 2 {
		t.Fatalf("expected exactly one retry, got %d attempts", attempts)
	}
}

func TestSavedTracksDoesNotRetryAuthFailures(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := spotify.NewClient(srv.URL, 5*time.Second)
	if _, err := client.SavedTracks(context.Background(), "expired"); err == nil {
		t.Fatal("expected error for unauthorized request")
	}
	if attempts != 1 {
		t.Fatalf("auth failures must not be retried, got %d attempts", attempts)
	}
}
