// Embedding worker: turns one track into one fixed-length vector by
// calling the model-serving endpoint. Audio previews are preferred, track
// text is the fallback. One attempt per track; retry policy belongs to
// the coordinator.
package embedding

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

	"github.com/rs/zerolog"
)

var (
	// ErrUnavailable means the track has no usable audio or text signal.
	ErrUnavailable = errors.New("no usable signal for embedding")
	// ErrCompute means the model call itself failed, including timeouts.
	ErrCompute = errors.New("embedding computation failed")
)

type Track struct {
	Id         string
	Name       string
	Artist     string
	PreviewUrl string
}

type Embedder interface {
	Embed(ctx context.Context, track Track) ([]float32, error)
}

// PreviewCache holds downloaded preview audio keyed by track id. Cache
// misses and write failures are soft; the worker falls back to the
// preview URL.
type PreviewCache interface {
	Get(ctx context.Context, trackId string) ([]byte, bool)
	Put(ctx context.Context, trackId string, data []byte)
}

// ModelClient computes embeddings via an HTTP model server exposing
// POST /embed/audio (raw audio body) and POST /embed/text (json body),
// both returning {"embedding": [...]}.
type ModelClient struct {
	endpoint  string
	dimension int
	timeout   time.Duration
	http      *http.Client
	cache     PreviewCache
}

func NewModelClient(endpoint string, dimension int, timeout time.Duration, cache PreviewCache) *ModelClient {
	return &ModelClient{
		endpoint:  strings.TrimSuffix(endpoint, "/"),
		dimension: dimension,
		timeout:   timeout,
		http:      &http.Client{},
		cache:     cache,
	}
}

func (m *ModelClient) Embed(ctx context.Context, track Track) ([]float32, error) {
	text := strings.TrimSpace(strings.TrimSpace(track.Name) + " " + strings.TrimSpace(track.Artist))
	if track.PreviewUrl == "" && text == "" {
		return nil, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if track.PreviewUrl != "" {
		audio, err := m.previewAudio(ctx, track)
		if err == nil {
			return m.embedAudio(ctx, audio)
		}
		if text == "" {
			return nil, errors.Join(ErrCompute, err)
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("track_id", track.Id).Msg("preview download failed, falling back to text")
	}

	return m.embedText(ctx, text)
}

func (m *ModelClient) previewAudio(ctx context.Context, track Track) ([]byte, error) {
	if m.cache != nil {
		if data, ok := m.cache.Get(ctx, track.Id); ok {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.PreviewUrl, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("preview download: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		m.cache.Put(ctx, track.Id, data)
	}
	return data, nil
}

func (m *ModelClient) embedAudio(ctx context.Context, audio []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/embed/audio", bytes.NewReader(audio))
	if err != nil {
		return nil, errors.Join(ErrCompute, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return m.doEmbed(req)
}

func (m *ModelClient) embedText(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, errors.Join(ErrCompute, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/embed/text", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Join(ErrCompute, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return m.doEmbed(req)
}

func (m *ModelClient) doEmbed(req *http.Request) ([]float32, error) {
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, errors.Join(ErrCompute, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Join(ErrCompute, fmt.Errorf("model server: status %d", resp.StatusCode))
	}

	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Join(ErrCompute, err)
	}
	if len(out.Embedding) != m.dimension {
		return nil, errors.Join(ErrCompute, fmt.Errorf("model server: expected %d dimensions, got %d", m.dimension, len(out.Embedding)))
	}
	return out.Embedding, nil
}
