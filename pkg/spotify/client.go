// Spotify Web API catalog client.
//
// The pipeline only needs one logical call: the full ordered list of the
// user's saved tracks. Pagination, rate limiting and transient retries are
// handled here; callers see a single slice or a single error.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.spotify.com"

	pageLimit = 50
)

type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Album struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMs int      `json:"duration_ms"`
	PreviewUrl string   `json:"preview_url"`
}

// ArtistName returns the primary artist, or an empty string when the
// provider sent none.
func (t Track) ArtistName() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

type SavedTrack struct {
	AddedAt time.Time `json:"added_at"`
	Track   Track     `json:"track"`
}

type savedTracksPage struct {
	Items []SavedTrack `json:"items"`
	Next  string       `json:"next"`
	Total int          `json:"total"`
}

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}
}

// SavedTracks walks the saved-tracks pages in library order and returns
// the complete catalog.
func (c *Client) SavedTracks(ctx context.Context, accessToken string) ([]SavedTrack, error) {
	var catalog []SavedTrack
	offset := 0
	for {
		page, err := c.savedTracksPage(ctx, accessToken, offset)
		if err != nil {
			return nil, err
		}
		catalog = append(catalog, page.Items...)
		if page.Next == "" || len(page.Items) == 0 {
			return catalog, nil
		}
		offset += len(page.Items)
	}
}

func (c *Client) savedTracksPage(ctx context.Context, accessToken string, offset int) (*savedTracksPage, error) {
	operation := func() (*savedTracksPage, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		url := fmt.Sprintf("%s/v1/me/tracks?limit=%d&offset=%d", c.baseURL, pageLimit, offset)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, fmt.Errorf("spotify saved tracks: status %d", resp.StatusCode)
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, backoff.Permanent(fmt.Errorf("spotify saved tracks: status %d: %s", resp.StatusCode, body))
		}

		page := &savedTracksPage{}
		if err := json.NewDecoder(resp.Body).Decode(page); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("spotify saved tracks: decode: %w", err))
		}
		return page, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(4))
}
