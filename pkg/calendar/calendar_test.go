package calendar_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/trinity-go/pkg/calendar"
)

func TestMemory_CreateAndUpcoming(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cal := calendar.NewMemory(calendar.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := cal.Create(ctx, "Past", now.Add(-time.Hour), now.Add(-30*time.Minute))
	require.NoError(t, err)
	_, err = cal.Create(ctx, "Later", now.Add(48*time.Hour), now.Add(49*time.Hour))
	require.NoError(t, err)
	link, err := cal.Create(ctx, "Sooner", now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, calendar.DefaultLinkBase))

	events, err := cal.Upcoming(ctx, 5)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Sooner", events[0].Summary)
	assert.Equal(t, link, events[0].Link)
	assert.Equal(t, "Later", events[1].Summary)

	events, err = cal.Upcoming(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Sooner", events[0].Summary)
}

func TestMemory_Invalid(t *testing.T) {
	cal := calendar.NewMemory(calendar.WithLinkBase("https://cal.example/"))
	start := time.Now()

	_, err := cal.Create(context.Background(), "", start, start.Add(time.Hour))
	assert.ErrorIs(t, err, calendar.ErrInvalidEvent)

	_, err = cal.Create(context.Background(), "Backwards", start, start.Add(-time.Hour))
	assert.ErrorIs(t, err, calendar.ErrInvalidEvent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cal.Upcoming(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_ConcurrentCreate(t *testing.T) {
	cal := calendar.NewMemory()
	base := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := base.Add(time.Duration(20-i) * time.Minute)
			_, err := cal.Create(context.Background(), "Meeting", start, start.Add(time.Minute))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	events, err := cal.Upcoming(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 20)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Start.Before(events[i-1].Start))
	}
}
