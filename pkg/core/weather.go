package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/oceanbase/trinity-go/pkg/metrics"
	"github.com/oceanbase/trinity-go/pkg/storage"
	"github.com/oceanbase/trinity-go/pkg/weather"
)

// Weather advice appended to every successful report.
const (
	AdviceSevere      = "It looks like bad weather; if you go out, remember to bring an umbrella and warm clothes."
	AdviceGoOut       = "The weather is beautiful and you have no appointments today. How about going out for a walk or exercise?"
	AdviceAppointment = "The weather is pleasant, but you have appointments scheduled."
)

var (
	weatherPlace = regexp.MustCompile(`(?i)\b(?:in|at|for)\s+(.+)$`)

	weatherFiller = map[string]bool{
		"what": true, "what's": true, "whats": true, "is": true, "the": true, "how": true,
		"how's": true, "check": true, "tell": true, "me": true, "about": true, "today": true,
		"now": true, "like": true, "current": true, "please": true, "show": true, "forecast": true,
		"today's": true, "right": true,
	}
)

func (c *Client) checkWeather(ctx context.Context, uid, utterance string) (*outcome, error) {
	location, err := c.weatherLocation(ctx, uid, utterance)
	if err != nil {
		return nil, err
	}
	if location == "" {
		return failure(ErrExtractionFailure, DeltaExtractionFailure, "Please specify a city name."), nil
	}
	text, err := c.weatherReport(ctx, location)
	if err != nil {
		return failure(fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err), 0, text), nil
	}
	return &outcome{text: text, delta: DeltaWeatherReported}, nil
}

// weatherLocation finds the place an utterance asks about. A named place
// wins, then the words left after the filler is dropped, then the profile
// location.
func (c *Client) weatherLocation(ctx context.Context, uid, utterance string) (string, error) {
	if loc := c.extract(ctx, utterance).FirstLocation(); loc != "" {
		return loc, nil
	}

	rest := strings.ReplaceAll(strings.ToLower(utterance), "weather", " ")
	if m := weatherPlace.FindStringSubmatch(rest); m != nil {
		rest = m[1]
	}
	var words []string
	for _, w := range strings.Fields(rest) {
		w = strings.Trim(w, ".,!?")
		if w != "" && !weatherFiller[w] {
			words = append(words, w)
		}
	}
	if len(words) > 0 {
		return cases.Title(language.Und).String(strings.Join(words, " ")), nil
	}

	profile, err := c.store.GetProfile(ctx, uid)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", storageFault(err)
	}
	return profile.Location, nil
}

// weatherReport fetches conditions for location and composes the summary
// with advice. On error the returned text is the user-facing explanation.
func (c *Client) weatherReport(ctx context.Context, location string) (string, error) {
	wctx, cancel := context.WithTimeout(ctx, c.timeouts.Weather.Std())
	start := time.Now()
	cond, err := c.weather.Current(wctx, location)
	cancel()
	metrics.ObserveCollaborator("weather", start, err)

	switch {
	case errors.Is(err, weather.ErrInvalidKey):
		return "Error: Invalid API Key.", err
	case errors.Is(err, weather.ErrLocationNotFound):
		return fmt.Sprintf("Error: City '%s' not found.", location), err
	case err != nil:
		return fmt.Sprintf("Error fetching weather data: %v", err), err
	}

	city := cond.Location
	if city == "" {
		city = location
	}
	return fmt.Sprintf("Weather in %s: %s, Temperature: %s°C, Humidity: %d%%, Wind Speed: %s km/h. %s",
		city, cond.Description, formatFloat(cond.TempC), cond.HumidityPct, formatFloat(cond.WindKph),
		c.weatherAdvice(ctx, cond.Description)), nil
}

// weatherAdvice picks advice from the conditions and whether anything is
// scheduled. An unreachable calendar counts as nothing scheduled.
func (c *Client) weatherAdvice(ctx context.Context, description string) string {
	if weather.Severe(description) {
		return AdviceSevere
	}
	cctx, cancel := context.WithTimeout(ctx, c.timeouts.Calendar.Std())
	defer cancel()
	start := time.Now()
	events, err := c.calendar.Upcoming(cctx, 1)
	metrics.ObserveCollaborator("calendar", start, err)
	if err != nil {
		c.logger.Debug().Err(err).Msg("calendar unavailable for weather advice")
		return AdviceGoOut
	}
	if len(events) == 0 {
		return AdviceGoOut
	}
	return AdviceAppointment
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
