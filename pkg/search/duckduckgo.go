package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DuckDuckGoEndpoint is the keyless HTML search endpoint.
const DuckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGoConfig configures a DuckDuckGo client.
type DuckDuckGoConfig struct {
	Endpoint   string
	UserAgent  string
	HTTPClient *http.Client
}

// DuckDuckGo scrapes the DuckDuckGo HTML results page. It needs no API key.
type DuckDuckGo struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo client.
func NewDuckDuckGo(cfg *DuckDuckGoConfig) *DuckDuckGo {
	if cfg == nil {
		cfg = &DuckDuckGoConfig{}
	}
	d := &DuckDuckGo{
		endpoint:  cfg.Endpoint,
		userAgent: cfg.UserAgent,
		client:    cfg.HTTPClient,
	}
	if d.endpoint == "" {
		d.endpoint = DuckDuckGoEndpoint
	}
	if d.userAgent == "" {
		d.userAgent = "Mozilla/5.0 (compatible; trinity/1.0)"
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: 10 * time.Second}
	}
	return d
}

// Search implements Searcher.
func (d *DuckDuckGo) Search(ctx context.Context, query string, n int) ([]Result, error) {
	n = clampCount(n, 30)
	form := url.Values{"q": {query}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: failed to parse HTML: %w", err)
	}

	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		anchor := s.Find("a.result__a").First()
		href, _ := anchor.Attr("href")
		r := Result{
			Title:   strings.TrimSpace(anchor.Text()),
			Link:    resolveRedirect(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").Text()),
		}
		if r.Title == "" && r.Snippet == "" {
			return true
		}
		results = append(results, r)
		return len(results) < n
	})
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's "/l/?uddg=<target>" redirect links.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
