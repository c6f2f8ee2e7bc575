package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oceanbase/trinity-go/pkg/extract"
	"github.com/oceanbase/trinity-go/pkg/knowledge"
	"github.com/oceanbase/trinity-go/pkg/metrics"
	"github.com/oceanbase/trinity-go/pkg/music"
	"github.com/oceanbase/trinity-go/pkg/search"
	"github.com/oceanbase/trinity-go/pkg/storage"
	"github.com/oceanbase/trinity-go/pkg/system"
)

// Reward deltas applied by the intent handlers.
const (
	DeltaExtractionFailure = -5
	DeltaNegativeFeedback  = -5
	DeltaNameSet           = 10
	DeltaLocationSet       = 5
	DeltaAppointmentSet    = 10
	DeltaAppLaunched       = 2
	DeltaAppWebsite        = 1
	DeltaFavouriteSong     = 5
	DeltaQueriedSong       = 3
	DeltaWeatherReported   = 1
)

// EventTimeLayout formats appointment times in responses.
const EventTimeLayout = "2006-01-02 03:04 PM"

var negativeKeywords = []string{"no", "wrong", "that not right", "incorrect", "not correct"}

var (
	personAfterWith = regexp.MustCompile(`(?i)\bwith\s+([\pL]+(?:\s+[\pL]+)*?)(?:\s+(?:at|on|tomorrow|today|tonight|next|this|in|for)\b|\s*\d|[,.!?]|$)`)
	clockTime       = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\.?\b|\b(\d{1,2}):(\d{2})\b`)
	isoDate         = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

func failure(err error, delta int, text string) *outcome {
	return &outcome{text: text, delta: delta, err: err}
}

func (c *Client) negativeFeedback(payload string) *outcome {
	lower := strings.ToLower(payload)
	for _, kw := range negativeKeywords {
		if containsWord(lower, kw) {
			return &outcome{text: "Negative feedback noted. Your reward score has been reduced.", delta: DeltaNegativeFeedback}
		}
	}
	return &outcome{text: "Feedback received."}
}

func (c *Client) answerFAQ(utterance string) *outcome {
	answer, _ := c.faq.Answer(utterance)
	return &outcome{text: answer}
}

func (c *Client) selfIdentity(utterance string) *outcome {
	if answer, ok := c.faq.Answer(utterance); ok {
		return &outcome{text: answer}
	}
	answer, _ := c.faq.Respond("intro")
	return &outcome{text: answer}
}

func (c *Client) setName(ctx context.Context, uid, name string) (*outcome, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return failure(ErrExtractionFailure, DeltaExtractionFailure, "Could not extract your name. Please try again."), nil
	}
	if err := c.store.UpsertProfile(ctx, uid, storage.ProfileUpdate{Username: &name}); err != nil {
		return nil, storageFault(err)
	}
	return &outcome{text: fmt.Sprintf("Your name has been set to %s.", name), delta: DeltaNameSet}, nil
}

func (c *Client) setLocation(ctx context.Context, uid, location string) (*outcome, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return failure(ErrExtractionFailure, DeltaExtractionFailure, "Could not extract your location. Please try again."), nil
	}
	if err := c.store.UpsertProfile(ctx, uid, storage.ProfileUpdate{Location: &location}); err != nil {
		return nil, storageFault(err)
	}
	return &outcome{text: fmt.Sprintf("Your location has been set to %s.", location), delta: DeltaLocationSet}, nil
}

func (c *Client) reminders(ctx context.Context) *outcome {
	text, err := c.upcomingText(ctx, 5)
	if err != nil {
		return failure(fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err), 0, "Could not retrieve your appointments right now.")
	}
	return &outcome{text: text}
}

// upcomingText lists up to limit future events.
func (c *Client) upcomingText(ctx context.Context, limit int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Calendar.Std())
	defer cancel()

	start := time.Now()
	events, err := c.calendar.Upcoming(ctx, limit)
	metrics.ObserveCollaborator("calendar", start, err)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "No upcoming appointments found.", nil
	}
	var b strings.Builder
	b.WriteString("Upcoming appointments:")
	for _, ev := range events {
		fmt.Fprintf(&b, "\n- %s at %s", ev.Summary, ev.Start.Format(EventTimeLayout))
	}
	return b.String(), nil
}

func (c *Client) systemCommand(ctx context.Context, utterance string) *outcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Launcher.Std())
	defer cancel()

	start := time.Now()
	text, err := system.Execute(ctx, c.controller, utterance)
	metrics.ObserveCollaborator("system", start, err)
	if err != nil {
		return failure(fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err), 0, "Could not complete the system command.")
	}
	return &outcome{text: text}
}

func (c *Client) openApp(ctx context.Context, utterance string) (*outcome, error) {
	name := c.appName(ctx, utterance)
	if name == "" {
		return failure(ErrExtractionFailure, DeltaExtractionFailure, "Invalid command. Please specify an application to open."), nil
	}

	path, mapped := c.apps[name]
	if mapped && system.IsWebTarget(path) {
		if err := c.openURL(ctx, path); err != nil {
			return failure(fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err), 0, fmt.Sprintf("Could not open %s.", name)), nil
		}
		if err := c.store.IncrementUsage(ctx, storage.UsageApp, name, ""); err != nil {
			return nil, storageFault(err)
		}
		return &outcome{text: fmt.Sprintf("Opening %s in your browser...", name), delta: DeltaAppLaunched}, nil
	}

	if mapped {
		err := c.launch(ctx, path)
		if err == nil {
			if err := c.store.IncrementUsage(ctx, storage.UsageApp, name, ""); err != nil {
				return nil, storageFault(err)
			}
			return &outcome{text: fmt.Sprintf("Opening %s...", name), delta: DeltaAppLaunched}, nil
		}
		c.logger.Warn().Err(err).Str("app", name).Msg("local launch failed, trying official website")

		site, siteErr := c.openOfficialSite(ctx, name)
		if siteErr != nil {
			return failure(fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err), 0, fmt.Sprintf("Could not open %s.", name)), nil
		}
		if err := c.store.IncrementUsage(ctx, storage.UsageApp, name, ""); err != nil {
			return nil, storageFault(err)
		}
		return &outcome{text: "Could not open local app. Opened official website: " + site, delta: DeltaAppWebsite}, nil
	}

	site, err := c.openOfficialSite(ctx, name)
	if errors.Is(err, search.ErrNoResults) {
		return &outcome{text: fmt.Sprintf("Application '%s' is not supported.", name)}, nil
	}
	if err != nil {
		return failure(fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err), 0, fmt.Sprintf("Application '%s' is not supported.", name)), nil
	}
	if err := c.store.IncrementUsage(ctx, storage.UsageApp, name, ""); err != nil {
		return nil, storageFault(err)
	}
	return &outcome{
		text:  fmt.Sprintf("Application '%s' is not in local mapping. Opened official website: %s", name, site),
		delta: DeltaAppWebsite,
	}, nil
}

// appName finds the application named in an "open ..." utterance.
func (c *Client) appName(ctx context.Context, utterance string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ToLower(utterance), "open ", ""))
	cleaned = strings.Trim(cleaned, " .!?")
	if cleaned == "open" {
		return ""
	}
	if _, ok := c.apps[cleaned]; ok {
		return cleaned
	}

	name := cleaned
	ents := c.extract(ctx, cleaned)
	switch {
	case len(ents.Organizations) > 0:
		name = ents.Organizations[0]
	case len(ents.Products) > 0:
		name = ents.Products[0]
	case len(ents.NounPhrases) > 0:
		name = ents.NounPhrases[0]
	}
	name = strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range []string{" application", " app"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}

// openOfficialSite searches for name's website and opens the first hit.
func (c *Client) openOfficialSite(ctx context.Context, name string) (string, error) {
	if c.searcher == nil {
		return "", search.ErrNoResults
	}
	searchCtx, cancel := context.WithTimeout(ctx, c.timeouts.Search.Std())
	start := time.Now()
	link, err := search.FirstLink(searchCtx, c.searcher, name+" official website")
	cancel()
	metrics.ObserveCollaborator("search", start, err)
	if err != nil {
		return "", err
	}
	if err := c.openURL(ctx, link); err != nil {
		return "", err
	}
	return link, nil
}

func (c *Client) launch(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Launcher.Std())
	defer cancel()
	start := time.Now()
	err := c.launcher.Launch(ctx, path)
	metrics.ObserveCollaborator("launcher", start, err)
	return err
}

func (c *Client) openURL(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Launcher.Std())
	defer cancel()
	start := time.Now()
	err := c.opener.OpenURL(ctx, url)
	metrics.ObserveCollaborator("browser", start, err)
	return err
}

func (c *Client) playMusic(ctx context.Context, utterance string) (*outcome, error) {
	if strings.Trim(strings.ToLower(utterance), " .!?") == "play music" {
		top, err := c.store.TopUsage(ctx, storage.UsageSong, 1)
		if err != nil {
			return nil, storageFault(err)
		}
		if len(top) == 0 {
			return &outcome{text: "No favorite song data found. Please specify a song to play."}, nil
		}
		return c.play(ctx, top[0].Key, DeltaFavouriteSong)
	}

	query := c.musicQuery(ctx, utterance)
	if query == "" {
		return failure(ErrExtractionFailure, DeltaExtractionFailure, "Music command not recognized."), nil
	}
	return c.play(ctx, query, DeltaQueriedSong)
}

// musicQuery prefers a quoted title, then the last noun phrase or
// capitalised name, then the utterance without the "play" verb.
func (c *Client) musicQuery(ctx context.Context, utterance string) string {
	ents := c.extract(ctx, utterance)
	if len(ents.WorksOfArt) > 0 {
		return strings.TrimSpace(ents.WorksOfArt[0])
	}
	if n := len(ents.NounPhrases); n > 0 {
		return strings.TrimSpace(ents.NounPhrases[n-1])
	}
	if n := len(ents.Organizations); n > 0 {
		return strings.TrimSpace(ents.Organizations[n-1])
	}
	cleaned := strings.Replace(strings.ToLower(utterance), "play", "", 1)
	return strings.Trim(cleaned, " .!?")
}

func (c *Client) play(ctx context.Context, query string, delta int) (*outcome, error) {
	if c.music == nil {
		return failure(ErrCollaboratorUnavailable, 0, "Music search is not configured."), nil
	}
	findCtx, cancel := context.WithTimeout(ctx, c.timeouts.Music.Std())
	start := time.Now()
	track, err := c.music.Find(findCtx, query)
	cancel()
	metrics.ObserveCollaborator("music", start, err)

	if errors.Is(err, music.ErrNoResults) {
		return &outcome{text: fmt.Sprintf("No results found for '%s'.", query)}, nil
	}
	if err != nil {
		return failure(fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err), 0, "Could not search for music right now."), nil
	}
	if err := c.openURL(ctx, track.URL); err != nil {
		return failure(fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err), 0, fmt.Sprintf("Could not open the player for '%s'.", query)), nil
	}
	if err := c.store.IncrementUsage(ctx, storage.UsageSong, query, ""); err != nil {
		return nil, storageFault(err)
	}
	return &outcome{text: fmt.Sprintf("Playing '%s' on YouTube...", query), delta: delta}, nil
}

func (c *Client) setAppointment(ctx context.Context, utterance string) *outcome {
	ents := c.extract(ctx, utterance)
	person := ents.FirstPerson()
	if person == "" {
		if m := personAfterWith.FindStringSubmatch(utterance); m != nil {
			person = strings.TrimSpace(m[1])
		}
	}
	if person == "" {
		return failure(ErrExtractionFailure, DeltaExtractionFailure,
			"Could not identify the person to meet. Please provide the name of the person you want to meet.")
	}

	when := strings.Join(ents.Datetimes, " ")
	if when == "" {
		when = utterance
	}
	start := appointmentTime(c.now(), when)

	calCtx, cancel := context.WithTimeout(ctx, c.timeouts.Calendar.Std())
	defer cancel()
	began := time.Now()
	link, err := c.calendar.Create(calCtx, "Meeting with "+person, start, start.Add(time.Hour))
	metrics.ObserveCollaborator("calendar", began, err)
	if err != nil {
		return failure(fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err), 0, "Could not create the appointment right now.")
	}
	return &outcome{
		text:  fmt.Sprintf("Appointment set with %s at %s. You can view it at: %s", person, start.Format(EventTimeLayout), link),
		delta: DeltaAppointmentSet,
	}
}

// appointmentTime reads a clock time (and optional date or "tomorrow") from
// text relative to now. A missing or past time becomes 09:00 tomorrow.
func appointmentTime(now time.Time, text string) time.Time {
	y, mo, d := now.Date()
	fallback := time.Date(y, mo, d+1, 9, 0, 0, 0, now.Location())

	m := clockTime.FindStringSubmatch(text)
	if m == nil {
		return fallback
	}
	var hour, minute int
	if m[1] != "" {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		pm := strings.EqualFold(m[3], "p")
		switch {
		case hour > 12:
			return fallback
		case pm && hour < 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
	} else {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
	}
	if hour > 23 || minute > 59 {
		return fallback
	}

	lower := strings.ToLower(text)
	switch {
	case isoDate.MatchString(text):
		dm := isoDate.FindStringSubmatch(text)
		yy, _ := strconv.Atoi(dm[1])
		mm, _ := strconv.Atoi(dm[2])
		dd, _ := strconv.Atoi(dm[3])
		y, mo, d = yy, time.Month(mm), dd
	case strings.Contains(lower, "tomorrow"):
		d++
	}

	start := time.Date(y, mo, d, hour, minute, 0, 0, now.Location())
	if start.Before(now) {
		return fallback
	}
	return start
}

func (c *Client) dynamicRespond(ctx context.Context, utterance string) (*outcome, error) {
	if answer, ok := c.faq.Answer(utterance); ok {
		return &outcome{text: answer}, nil
	}
	text, ok, err := c.resolver.Lookup(ctx, utterance)
	if err != nil {
		return nil, storageFault(err)
	}
	if ok {
		return &outcome{text: c.resolver.Compose(ctx, text)}, nil
	}
	return &outcome{
		text: fmt.Sprintf("I don't know about '%s'. Can you teach me?", utterance),
		clarification: &knowledge.Clarification{
			Topic:  knowledge.Normalize(utterance),
			Query:  utterance,
			Reason: knowledge.ReasonUnknownTopic,
		},
	}, nil
}

func (c *Client) resolve(ctx context.Context, query string) (*outcome, error) {
	res, err := c.resolver.Resolve(ctx, query)
	if errors.Is(err, knowledge.ErrEmptyQuery) {
		return failure(ErrInvalidInput, 0, "Please ask a question."), nil
	}
	if err != nil {
		return nil, storageFault(err)
	}
	if res.NeedsClarification != nil {
		return &outcome{
			text:          "Quality still low after alternative search. Please provide the correct information for this query.",
			err:           fmt.Errorf("%w: %s", ErrQualityBelowThreshold, res.NeedsClarification.Topic),
			clarification: res.NeedsClarification,
		}, nil
	}
	return &outcome{text: res.Answer, delta: res.Delta}, nil
}

// extract never returns nil; extraction failures and timeouts yield no entities.
func (c *Client) extract(ctx context.Context, text string) *extract.Entities {
	if c.extractor == nil {
		return &extract.Entities{}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Extract.Std())
	defer cancel()

	start := time.Now()
	ents, err := c.extractor.Extract(ctx, text)
	metrics.ObserveCollaborator("extract", start, err)
	if err != nil || ents == nil {
		if err != nil {
			c.logger.Debug().Err(err).Msg("entity extraction failed")
		}
		return &extract.Entities{}
	}
	return ents
}

// containsWord reports whether phrase occurs in text on word boundaries.
func containsWord(text, phrase string) bool {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '\'' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	words := strings.Fields(phrase)
	for i := 0; i+len(words) <= len(fields); i++ {
		match := true
		for j, w := range words {
			if fields[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
