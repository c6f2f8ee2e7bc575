// Package weather provides the current-conditions collaborator.
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidKey is returned when the provider rejects the API key (HTTP 401).
	ErrInvalidKey = errors.New("invalid weather api key")

	// ErrLocationNotFound is returned when the provider cannot resolve the location (HTTP 400).
	ErrLocationNotFound = errors.New("location not found")
)

// Conditions are the current weather at a location.
type Conditions struct {
	Location    string  `json:"location"`
	Description string  `json:"description"`
	TempC       float64 `json:"temp_c"`
	HumidityPct int     `json:"humidity_pct"`
	WindKph     float64 `json:"wind_kph"`
}

// Provider reports current conditions.
type Provider interface {
	Current(ctx context.Context, location string) (*Conditions, error)
}

var severeKeywords = []string{"rain", "storm", "snow", "hail"}

// Severe reports whether a condition description warrants a precaution.
func Severe(description string) bool {
	lower := strings.ToLower(description)
	for _, k := range severeKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// WeatherAPIEndpoint is the weatherapi.com current conditions endpoint.
const WeatherAPIEndpoint = "http://api.weatherapi.com/v1/current.json"

// WeatherAPIConfig configures a WeatherAPI client.
type WeatherAPIConfig struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

// WeatherAPI reads conditions from weatherapi.com.
type WeatherAPI struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewWeatherAPI creates a WeatherAPI client. The key is checked by the
// service, so an empty key yields ErrInvalidKey on first use.
func NewWeatherAPI(cfg *WeatherAPIConfig) *WeatherAPI {
	if cfg == nil {
		cfg = &WeatherAPIConfig{}
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = WeatherAPIEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WeatherAPI{apiKey: cfg.APIKey, endpoint: endpoint, client: client}
}

// Current implements Provider.
func (w *WeatherAPI) Current(ctx context.Context, location string) (*Conditions, error) {
	params := url.Values{}
	params.Set("key", w.apiKey)
	params.Set("q", location)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrInvalidKey
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrLocationNotFound, location)
	default:
		return nil, fmt.Errorf("weather status %d: %s", resp.StatusCode, gjson.GetBytes(body, "error.message").String())
	}

	current := gjson.GetBytes(body, "current")
	if !current.Exists() {
		return nil, errors.New("weather response has no current conditions")
	}
	return &Conditions{
		Location:    location,
		Description: current.Get("condition.text").String(),
		TempC:       current.Get("temp_c").Float(),
		HumidityPct: int(current.Get("humidity").Int()),
		WindKph:     current.Get("wind_kph").Float(),
	}, nil
}
