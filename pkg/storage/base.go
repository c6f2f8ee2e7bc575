// Package storage provides interfaces and types for the assistant's persistent state.
//
// It defines the Store interface that all backends (SQLite, PostgreSQL, OceanBase)
// must satisfy: learned knowledge, the interaction log, user profiles with their
// reward score, and song/app usage counters.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// LearnedEntry is a piece of knowledge stored under a normalized topic key.
type LearnedEntry struct {
	// Topic is the normalized topic key (unique).
	Topic string

	// Answer is the stored context text for the topic.
	Answer string

	// UpdatedAt is when the entry was last written.
	UpdatedAt time.Time
}

// InteractionRecord is one completed exchange between a user and the assistant.
type InteractionRecord struct {
	// ID is a snowflake ID assigned by the caller.
	ID int64

	// UID identifies the user (empty for anonymous console use).
	UID string

	// Timestamp is when the exchange completed.
	Timestamp time.Time

	// Utterance is the raw user input.
	Utterance string

	// Response is the personalized assistant response.
	Response string
}

// InteractionStats summarizes the interaction log.
type InteractionStats struct {
	// Total is the number of recorded interactions.
	Total int64

	// First is the timestamp of the oldest interaction (nil if none).
	First *time.Time

	// Last is the timestamp of the newest interaction (nil if none).
	Last *time.Time
}

// UserProfile is the per-user identity and reward ledger.
type UserProfile struct {
	// UID is the stable external identity of the user.
	UID string `json:"uid"`

	// Username is the name the user asked to be called.
	Username string `json:"username,omitempty"`

	// Location is the user's home location (used for weather).
	Location string `json:"location,omitempty"`

	// Preferences is free-form preference text.
	Preferences string `json:"preferences,omitempty"`

	// Score is the reward score. It has no floor or ceiling.
	Score int `json:"score"`

	// CreatedAt is when the profile was first referenced.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the profile was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate carries the profile fields to change.
// Nil or empty fields keep their stored value.
type ProfileUpdate struct {
	Username    *string
	Location    *string
	Preferences *string
}

// UsageKind selects a usage counter table.
type UsageKind string

const (
	// UsageSong counts song plays.
	UsageSong UsageKind = "song"

	// UsageApp counts application launches.
	UsageApp UsageKind = "app"
)

// UsageCounter is a usage count for a song title or an application name.
type UsageCounter struct {
	Kind  UsageKind `json:"kind"`
	Key   string    `json:"key"`
	Count int64     `json:"count"`
	Genre string    `json:"genre,omitempty"`
}

// KnowledgeStore stores learned topic texts.
type KnowledgeStore interface {
	// GetLearned returns the stored text for a topic key.
	// The boolean is false when no entry exists.
	GetLearned(ctx context.Context, topic string) (string, bool, error)

	// PutLearned stores text under a topic key, replacing any existing entry.
	PutLearned(ctx context.Context, topic, text string) error
}

// InteractionLog is the append-only record of exchanges.
type InteractionLog interface {
	// AppendInteraction appends one exchange.
	AppendInteraction(ctx context.Context, rec *InteractionRecord) error

	// InteractionStats summarizes the log. An empty uid covers all users.
	InteractionStats(ctx context.Context, uid string) (*InteractionStats, error)
}

// ProfileStore stores user profiles and reward scores.
type ProfileStore interface {
	// GetProfile returns the profile for uid, or ErrNotFound.
	GetProfile(ctx context.Context, uid string) (*UserProfile, error)

	// EnsureProfile creates an empty profile for uid if none exists.
	EnsureProfile(ctx context.Context, uid string) error

	// UpsertProfile creates or updates a profile. Only set, non-empty fields are written.
	UpsertProfile(ctx context.Context, uid string, update ProfileUpdate) error

	// AdjustScore atomically adds delta to the user's score and returns the new score.
	// The profile is created first if it does not exist.
	AdjustScore(ctx context.Context, uid string, delta int) (int, error)
}

// UsageStore stores song and app usage counters.
type UsageStore interface {
	// IncrementUsage adds one use of key. A non-empty genre is recorded
	// only if the stored genre is empty.
	IncrementUsage(ctx context.Context, kind UsageKind, key, genre string) error

	// TopUsage returns up to limit counters ordered by count descending.
	TopUsage(ctx context.Context, kind UsageKind, limit int) ([]*UsageCounter, error)
}

// Store is the full persistence surface used by the assistant.
type Store interface {
	KnowledgeStore
	InteractionLog
	ProfileStore
	UsageStore

	// Close closes the store and releases resources.
	Close() error
}
