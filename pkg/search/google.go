package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
)

// GoogleEndpoint is the Custom Search JSON API endpoint.
const GoogleEndpoint = "https://www.googleapis.com/customsearch/v1"

// GoogleConfig configures a Google Custom Search client.
type GoogleConfig struct {
	APIKey     string
	EngineID   string
	Endpoint   string
	HTTPClient *http.Client

	// MaxRetries bounds retries of throttled or failed requests (default 3).
	MaxRetries int

	// RetryInterval is the first backoff delay (default 500ms).
	RetryInterval time.Duration
}

// Google searches through the Custom Search JSON API.
type Google struct {
	apiKey     string
	engineID   string
	endpoint   string
	client     *http.Client
	maxRetries uint64
	interval   time.Duration
}

// NewGoogle creates a Google Custom Search client.
func NewGoogle(cfg *GoogleConfig) (*Google, error) {
	if cfg == nil || cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, fmt.Errorf("google search: api key and engine id are required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = GoogleEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &Google{
		apiKey:     cfg.APIKey,
		engineID:   cfg.EngineID,
		endpoint:   endpoint,
		client:     client,
		maxRetries: uint64(retries),
		interval:   cfg.RetryInterval,
	}, nil
}

// Search implements Searcher. The API returns at most 10 results per call.
func (g *Google) Search(ctx context.Context, query string, n int) ([]Result, error) {
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(clampCount(n, 10)))
	target := g.endpoint + "?" + params.Encode()

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := g.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("google search status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("google search status %d: %s", resp.StatusCode, gjson.GetBytes(data, "error.message").String()))
		}
		body = data
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	if g.interval > 0 {
		expo.InitialInterval = g.interval
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, g.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("google search: %w", err)
	}

	items := gjson.GetBytes(body, "items")
	results := make([]Result, 0, len(items.Array()))
	items.ForEach(func(_, item gjson.Result) bool {
		results = append(results, Result{
			Title:   item.Get("title").String(),
			Link:    item.Get("link").String(),
			Snippet: item.Get("snippet").String(),
		})
		return true
	})
	return results, nil
}
