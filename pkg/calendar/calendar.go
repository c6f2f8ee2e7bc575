// Package calendar provides the appointment collaborator.
package calendar

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidEvent is returned for events without a summary or with end before start.
var ErrInvalidEvent = errors.New("invalid event")

// Event is a scheduled appointment.
type Event struct {
	ID      string    `json:"id"`
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Link    string    `json:"link"`
}

// Calendar lists and creates appointments.
type Calendar interface {
	// Upcoming returns at most limit events starting at or after now, earliest first.
	Upcoming(ctx context.Context, limit int) ([]Event, error)

	// Create schedules an event and returns a link to it.
	Create(ctx context.Context, summary string, start, end time.Time) (string, error)
}

// DefaultLinkBase prefixes the links of events created by Memory.
const DefaultLinkBase = "trinity://calendar/events/"

// Memory is an in-process Calendar. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	events   []Event
	now      func() time.Time
	linkBase string
}

// MemoryOption configures a Memory calendar.
type MemoryOption func(*Memory)

// WithClock sets the time source used to decide what is upcoming.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// WithLinkBase sets the prefix of event links.
func WithLinkBase(base string) MemoryOption {
	return func(m *Memory) {
		m.linkBase = base
	}
}

// NewMemory creates an empty in-process calendar.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{now: time.Now, linkBase: DefaultLinkBase}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Upcoming implements Calendar.
func (m *Memory) Upcoming(ctx context.Context, limit int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Event
	for _, e := range m.events {
		if limit > 0 && len(out) >= limit {
			break
		}
		if !e.Start.Before(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Create implements Calendar.
func (m *Memory) Create(ctx context.Context, summary string, start, end time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if summary == "" || end.Before(start) {
		return "", ErrInvalidEvent
	}

	id := uuid.NewString()
	e := Event{ID: id, Summary: summary, Start: start, End: end, Link: m.linkBase + id}

	m.mu.Lock()
	defer m.mu.Unlock()
	// keep events ordered by start time
	i := sort.Search(len(m.events), func(i int) bool { return m.events[i].Start.After(start) })
	m.events = append(m.events, Event{})
	copy(m.events[i+1:], m.events[i:])
	m.events[i] = e
	return e.Link, nil
}
