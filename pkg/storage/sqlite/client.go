// Package sqlite provides the SQLite implementation of storage.Store.
//
// SQLite is the default backend: a single local file holding learned knowledge,
// the interaction log, user profiles and usage counters. Upserts rely on
// ON CONFLICT and RETURNING, so the bundled SQLite must be 3.35 or newer.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oceanbase/trinity-go/pkg/storage"
)

// Client implements storage.Store using SQLite as the backend.
type Client struct {
	db     *sql.DB
	tables storage.Tables
}

// Config contains configuration for creating a SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TablePrefix is prepended to every table name (optional).
	TablePrefix string
}

// NewClient opens (and if needed creates) the SQLite database.
//
// Parameters:
//   - cfg: Configuration containing the database path and table prefix
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if the connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client := &Client{
		db:     db,
		tables: storage.NewTables(cfg.TablePrefix),
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables creates the schema. Interaction timestamps are stored as unix
// milliseconds so MIN/MAX aggregates scan without type loss.
func (c *Client) initTables(ctx context.Context) error {
	t := c.tables
	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			topic TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`, t.Knowledge),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			uid TEXT NOT NULL DEFAULT '',
			ts INTEGER NOT NULL,
			user_message TEXT NOT NULL,
			ai_response TEXT NOT NULL
		)`, t.Interactions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_uid ON %s(uid)`, t.Interactions, t.Interactions),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			uid TEXT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			preferences TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`, t.Profiles),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			song_title TEXT PRIMARY KEY,
			play_count INTEGER NOT NULL DEFAULT 0,
			genre TEXT NOT NULL DEFAULT ''
		)`, t.Songs),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			app_name TEXT PRIMARY KEY,
			usage_count INTEGER NOT NULL DEFAULT 0
		)`, t.Apps),
	}

	for _, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initTables: %w", err)
		}
	}
	return nil
}

// GetLearned returns the stored text for topic.
func (c *Client) GetLearned(ctx context.Context, topic string) (string, bool, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE topic = ?", c.tables.Knowledge)

	var data string
	err := c.db.QueryRowContext(ctx, query, topic).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("GetLearned: %w", err)
	}
	return data, true, nil
}

// PutLearned stores text under topic, replacing any previous text.
func (c *Client) PutLearned(ctx context.Context, topic, text string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (topic, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(topic) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, c.tables.Knowledge)

	if _, err := c.db.ExecContext(ctx, query, topic, text, time.Now()); err != nil {
		return fmt.Errorf("PutLearned: %w", err)
	}
	return nil
}

// AppendInteraction appends one exchange to the log.
func (c *Client) AppendInteraction(ctx context.Context, rec *storage.InteractionRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, uid, ts, user_message, ai_response) VALUES (?, ?, ?, ?, ?)
	`, c.tables.Interactions)

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := c.db.ExecContext(ctx, query, rec.ID, rec.UID, ts.UnixMilli(), rec.Utterance, rec.Response)
	if err != nil {
		return fmt.Errorf("AppendInteraction: %w", err)
	}
	return nil
}

// InteractionStats returns count and time range of the log.
func (c *Client) InteractionStats(ctx context.Context, uid string) (*storage.InteractionStats, error) {
	whereClause, args := buildUIDClause(uid)
	query := fmt.Sprintf("SELECT COUNT(*), MIN(ts), MAX(ts) FROM %s %s", c.tables.Interactions, whereClause)

	var (
		total       int64
		first, last sql.NullInt64
	)
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&total, &first, &last); err != nil {
		return nil, fmt.Errorf("InteractionStats: %w", err)
	}

	stats := &storage.InteractionStats{Total: total}
	if first.Valid {
		t := time.UnixMilli(first.Int64)
		stats.First = &t
	}
	if last.Valid {
		t := time.UnixMilli(last.Int64)
		stats.Last = &t
	}
	return stats, nil
}

// GetProfile returns the profile for uid.
func (c *Client) GetProfile(ctx context.Context, uid string) (*storage.UserProfile, error) {
	query := fmt.Sprintf(`
		SELECT uid, username, location, preferences, score, created_at, updated_at
		FROM %s WHERE uid = ?
	`, c.tables.Profiles)

	var p storage.UserProfile
	err := c.db.QueryRowContext(ctx, query, uid).Scan(
		&p.UID, &p.Username, &p.Location, &p.Preferences, &p.Score, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetProfile: %w", err)
	}
	return &p, nil
}

// EnsureProfile creates an empty profile for uid if none exists.
func (c *Client) EnsureProfile(ctx context.Context, uid string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (uid, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(uid) DO NOTHING
	`, c.tables.Profiles)

	now := time.Now()
	if _, err := c.db.ExecContext(ctx, query, uid, now, now); err != nil {
		return fmt.Errorf("EnsureProfile: %w", err)
	}
	return nil
}

// UpsertProfile writes the set fields of update, creating the profile if needed.
func (c *Client) UpsertProfile(ctx context.Context, uid string, update storage.ProfileUpdate) error {
	if err := c.EnsureProfile(ctx, uid); err != nil {
		return err
	}

	sets, args := buildProfileSet(update)
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now(), uid)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE uid = ?", c.tables.Profiles, strings.Join(sets, ", "))
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("UpsertProfile: %w", err)
	}
	return nil
}

// AdjustScore adds delta to the score in a single statement and returns the new score.
func (c *Client) AdjustScore(ctx context.Context, uid string, delta int) (int, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (uid, score, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET score = score + excluded.score, updated_at = excluded.updated_at
		RETURNING score
	`, c.tables.Profiles)

	now := time.Now()
	var score int
	if err := c.db.QueryRowContext(ctx, query, uid, delta, now, now).Scan(&score); err != nil {
		return 0, fmt.Errorf("AdjustScore: %w", err)
	}
	return score, nil
}

// IncrementUsage adds one use of key.
func (c *Client) IncrementUsage(ctx context.Context, kind storage.UsageKind, key, genre string) error {
	cols, err := c.tables.Usage(kind)
	if err != nil {
		return fmt.Errorf("IncrementUsage: %w", err)
	}

	var query string
	args := []interface{}{key}
	if cols.HasGenre {
		query = fmt.Sprintf(`
			INSERT INTO %[1]s (%[2]s, %[3]s, genre) VALUES (?, 1, ?)
			ON CONFLICT(%[2]s) DO UPDATE SET
				%[3]s = %[3]s + 1,
				genre = CASE WHEN genre = '' THEN excluded.genre ELSE genre END
		`, cols.Table, cols.Key, cols.Count)
		args = append(args, genre)
	} else {
		query = fmt.Sprintf(`
			INSERT INTO %[1]s (%[2]s, %[3]s) VALUES (?, 1)
			ON CONFLICT(%[2]s) DO UPDATE SET %[3]s = %[3]s + 1
		`, cols.Table, cols.Key, cols.Count)
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("IncrementUsage: %w", err)
	}
	return nil
}

// TopUsage returns the most used keys of kind.
func (c *Client) TopUsage(ctx context.Context, kind storage.UsageKind, limit int) ([]*storage.UsageCounter, error) {
	cols, err := c.tables.Usage(kind)
	if err != nil {
		return nil, fmt.Errorf("TopUsage: %w", err)
	}
	if limit <= 0 {
		limit = 3
	}

	genreExpr := "''"
	if cols.HasGenre {
		genreExpr = "genre"
	}
	query := fmt.Sprintf("SELECT %s, %s, %s FROM %s ORDER BY %s DESC, %s ASC LIMIT ?",
		cols.Key, cols.Count, genreExpr, cols.Table, cols.Count, cols.Key)

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("TopUsage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counters []*storage.UsageCounter
	for rows.Next() {
		u := &storage.UsageCounter{Kind: kind}
		if err := rows.Scan(&u.Key, &u.Count, &u.Genre); err != nil {
			return nil, fmt.Errorf("TopUsage: %w", err)
		}
		counters = append(counters, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("TopUsage: %w", err)
	}
	return counters, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}
