// Package music finds playable tracks for a free-text query.
package music

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

// ErrNoResults is returned when nothing matches the query.
var ErrNoResults = errors.New("no music results")

// Track kinds.
const (
	KindVideo    = "video"
	KindPlaylist = "playlist"
)

// Track is a playable result.
type Track struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Kind  string `json:"kind"`
}

// Finder looks up the best track for a query.
type Finder interface {
	Find(ctx context.Context, query string) (*Track, error)
}

// YouTubeEndpoint is the YouTube Data API v3 search endpoint.
const YouTubeEndpoint = "https://www.googleapis.com/youtube/v3/search"

// YouTubeConfig configures a YouTube finder.
type YouTubeConfig struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

// YouTube finds videos and playlists through the YouTube Data API.
type YouTube struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewYouTube creates a YouTube finder.
func NewYouTube(cfg *YouTubeConfig) (*YouTube, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("youtube: api key is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = YouTubeEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &YouTube{apiKey: cfg.APIKey, endpoint: endpoint, client: client}, nil
}

// Find implements Finder. It returns the single top video or playlist hit.
func (y *YouTube) Find(ctx context.Context, query string) (*Track, error) {
	params := url.Values{}
	params.Set("key", y.apiKey)
	params.Set("q", query)
	params.Set("part", "snippet")
	params.Set("type", "video,playlist")
	params.Set("maxResults", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube status %d: %s", resp.StatusCode, gjson.GetBytes(body, "error.message").String())
	}

	for _, item := range gjson.GetBytes(body, "items").Array() {
		title := item.Get("snippet.title").String()
		switch item.Get("id.kind").String() {
		case "youtube#video":
			return &Track{Title: title, Kind: KindVideo,
				URL: "https://www.youtube.com/watch?v=" + item.Get("id.videoId").String()}, nil
		case "youtube#playlist":
			return &Track{Title: title, Kind: KindPlaylist,
				URL: "https://www.youtube.com/playlist?list=" + item.Get("id.playlistId").String()}, nil
		}
	}
	return nil, ErrNoResults
}
