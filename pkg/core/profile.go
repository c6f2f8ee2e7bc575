package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/oceanbase/trinity-go/pkg/storage"
)

// Greet welcomes uid with their score and the weather at their location.
//
// Missing profile fields are filled from opts. Without them Greet fails with
// ErrMissingUsername or ErrMissingLocation, and the caller asks the user and
// calls again.
//
// Example:
//
//	msg, err := client.Greet(ctx, uid)
//	if errors.Is(err, core.ErrMissingUsername) {
//	    msg, err = client.Greet(ctx, uid, core.WithUsername(askName()))
//	}
func (c *Client) Greet(ctx context.Context, uid string, opts ...GreetOption) (string, error) {
	if uid == "" {
		return "", NewAssistantError("Greet", ErrUnauthorized)
	}
	o := applyGreetOptions(opts)

	if err := c.store.EnsureProfile(ctx, uid); err != nil {
		return "", NewAssistantError("Greet", storageFault(err))
	}
	profile, err := c.store.GetProfile(ctx, uid)
	if err != nil {
		return "", NewAssistantError("Greet", storageFault(err))
	}

	name := profile.Username
	if name == "" {
		name = strings.TrimSpace(o.Username)
		if name == "" {
			return "", NewAssistantError("Greet", ErrMissingUsername)
		}
		if err := c.store.UpsertProfile(ctx, uid, storage.ProfileUpdate{Username: &name}); err != nil {
			return "", NewAssistantError("Greet", storageFault(err))
		}
	}

	location := profile.Location
	if location == "" {
		location = strings.TrimSpace(o.Location)
		if location == "" {
			return "", NewAssistantError("Greet", ErrMissingLocation)
		}
		if err := c.store.UpsertProfile(ctx, uid, storage.ProfileUpdate{Location: &location}); err != nil {
			return "", NewAssistantError("Greet", storageFault(err))
		}
	}

	// A failed lookup still greets, with the error text in place of the report.
	report, err := c.weatherReport(ctx, location)
	if err != nil {
		c.logger.Warn().Err(err).Str("uid", uid).Msg("weather unavailable for greeting")
	}
	return fmt.Sprintf("Hello %s! Your current reward score is %d. %s", name, profile.Score, report), nil
}

// Statistics summarizes uid's profile, the top songs and apps, and uid's
// interaction history.
func (c *Client) Statistics(ctx context.Context, uid string) (*Statistics, error) {
	if uid == "" {
		return nil, NewAssistantError("Statistics", ErrUnauthorized)
	}

	stats := &Statistics{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, err := c.store.GetProfile(gctx, uid)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		stats.Profile = profile
		return err
	})
	g.Go(func() error {
		songs, err := c.store.TopUsage(gctx, storage.UsageSong, 3)
		stats.TopSongs = toUsageEntries(songs)
		return err
	})
	g.Go(func() error {
		apps, err := c.store.TopUsage(gctx, storage.UsageApp, 3)
		stats.TopApps = toUsageEntries(apps)
		return err
	})
	g.Go(func() error {
		log, err := c.store.InteractionStats(gctx, uid)
		if err != nil {
			return err
		}
		stats.TotalInteractions = log.Total
		stats.FirstInteraction = log.First
		stats.LastInteraction = log.Last
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, NewAssistantError("Statistics", storageFault(err))
	}
	return stats, nil
}

// Recommend suggests a song and an app from usage history and lists the
// upcoming appointments.
func (c *Client) Recommend(ctx context.Context) (*Recommendations, error) {
	rec := &Recommendations{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		top, err := c.store.TopUsage(gctx, storage.UsageSong, 1)
		if err != nil {
			return err
		}
		rec.Song = songRecommendation(top)
		return nil
	})
	g.Go(func() error {
		top, err := c.store.TopUsage(gctx, storage.UsageApp, 1)
		if err != nil {
			return err
		}
		rec.App = "No application data available for recommendations."
		if len(top) > 0 {
			rec.App = fmt.Sprintf("You frequently use '%s'. Consider exploring its advanced features!", top[0].Key)
		}
		return nil
	})
	g.Go(func() error {
		text, err := c.upcomingText(gctx, 5)
		if err != nil {
			c.logger.Warn().Err(err).Msg("calendar unavailable for recommendations")
			text = "Could not retrieve your appointments right now."
		}
		rec.Reminders = text
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, NewAssistantError("Recommend", storageFault(err))
	}
	return rec, nil
}

func songRecommendation(top []*storage.UsageCounter) string {
	if len(top) == 0 {
		return "No song data available for recommendations."
	}
	if top[0].Genre == "" {
		return fmt.Sprintf("Based on your listening habits, you seem to love '%s'.", top[0].Key)
	}
	return fmt.Sprintf("Based on your listening habits, you seem to love '%s' in the %s genre.", top[0].Key, top[0].Genre)
}
