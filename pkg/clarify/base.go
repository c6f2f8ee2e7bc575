// Package clarify holds knowledge resolutions suspended until the user
// supplies text, keyed by user and topic.
package clarify

import (
	"context"
	"errors"
	"time"

	"github.com/oceanbase/trinity-go/pkg/knowledge"
)

// ErrNotFound is returned when no unexpired clarification is pending.
var ErrNotFound = errors.New("no pending clarification")

// DefaultTTL bounds how long a clarification waits for its follow-up.
const DefaultTTL = 30 * time.Minute

// Pending is a stored clarification.
type Pending struct {
	ID            string                  `json:"id"`
	UID           string                  `json:"uid"`
	Clarification knowledge.Clarification `json:"clarification"`
	CreatedAt     time.Time               `json:"created_at"`
}

// Store keeps pending clarifications. A later Put for the same user and
// topic replaces the earlier one.
type Store interface {
	// Put stores c for uid and returns the pending record.
	Put(ctx context.Context, uid string, c *knowledge.Clarification) (*Pending, error)

	// Take removes and returns the clarification for uid and topic.
	// It returns ErrNotFound when none is pending.
	Take(ctx context.Context, uid, topic string) (*Pending, error)

	Close() error
}
