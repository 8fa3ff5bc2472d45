package embedding_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"library-encoder/pkg/embedding"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
	puts int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, trackId string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	data, ok := c.data[trackId]
	return data, ok
}

func (c *memoryCache) Put(_ context.Context, trackId string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.data[trackId] = data
}

func modelServer(t *testing.T, dimension int) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		vector := make([]float32, dimension)
		for i := range vector {
			vector[i] = 0.5
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vector})
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func TestEmbedUsesAudioWhenPreviewAvailable(t *testing.T) {
	preview := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer preview.Close()

	model, paths := modelServer(t, 4)
	cache := newMemoryCache()
	client := embedding.NewModelClient(model.URL, 4, time.Second, cache)

	vector, err := client.Embed(context.Background(), embedding.Track{
		Id:         "a",
		Name:       "Alpha",
		Artist:     "Artist",
		PreviewUrl: preview.URL + "/a.mp3",
	})
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(vector) != 4 {
		t.Fatalf("expected 4 dimensions, got %d", len(vector))
	}
	if len(*paths) != 1 || (*paths)[0] != "/embed/audio" {
		t.Fatalf("expected one /embed/audio call, got %v", *paths)
	}
	if cache.puts != 1 {
		t.Fatalf("expected downloaded preview to be cached, puts=%d", cache.puts)
	}
}

func TestEmbedServesAudioFromCache(t *testing.T) {
	model, paths := modelServer(t, 4)
	cache := newMemoryCache()
	cache.data["a"] = []byte("cached-mp3")

	// The preview URL points nowhere; a cache hit must make that irrelevant.
	client := embedding.NewModelClient(model.URL, 4, time.Second, cache)
	_, err := client.Embed(context.Background(), embedding.Track{
		Id:         "a",
		Name:       "Alpha",
		PreviewUrl: "http://127.0.0.1:1/missing.mp3",
	})
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(*paths) != 1 || (*paths)[0] != "/embed/audio" {
		t.Fatalf("expected one /embed/audio call, got %v", *paths)
	}
}

func TestEmbedFallsBackToTextWithoutPreview(t *testing.T) {
	model, paths := modelServer(t, 4)
	client := embedding.NewModelClient(model.URL, 4, time.Second, nil)

	_, err := client.Embed(context.Background(), embedding.Track{
		Id:     "a",
		Name:   "Alpha",
		Artist: "Artist",
	})
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(*paths) != 1 || (*paths)[0] != "/embed/text" {
		t.Fatalf("expected one /embed/text call, got %v", *paths)
	}
}

func TestEmbedUnavailableWithoutAnySignal(t *testing.T) {
	model, _ := modelServer(t, 4)
	client := embedding.NewModelClient(model.URL, 4, time.Second, nil)

	_, err := client.Embed(context.Background(), embedding.Track{Id: "a"})
	if !errors.Is(err, embedding.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestEmbedComputeErrorOnModelFailure(t *testing.T) {
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer model.Close()

	client := embedding.NewModelClient(model.URL, 4, time.Second, nil)
	_, err := client.Embed(context.Background(), embedding.Track{Id: "a", Name: "Alpha"})
	if !errors.Is(err, embedding.ErrCompute) {
		t.Fatalf("expected ErrCompute, got %v", err)
	}
}

func TestEmbedComputeErrorOnDimensionMismatch(t *testing.T) {
	model, _ := modelServer(t, 7)
	client := embedding.NewModelClient(model.URL, 4, time.Second, nil)

	_, err := client.Embed(context.Background(), embedding.Track{Id: "a", Name: "Alpha"})
	if !errors.Is(err, embedding.ErrCompute) {
		t.Fatalf("expected ErrCompute, got %v", err)
	}
}

func TestEmbedTimeoutIsComputeError(t *testing.T) {
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer model.Close()

	client := embedding.NewModelClient(model.URL, 4, 50*time.Millisecond, nil)
	_, err := client.Embed(context.Background(), embedding.Track{Id: "a", Name: "Alpha"})
	if !errors.Is(err, embedding.ErrCompute) {
		t.Fatalf("expected ErrCompute on timeout, got %v", err)
	}
}
