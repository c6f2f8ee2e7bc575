// Package oceanbase provides the OceanBase (MySQL protocol) implementation of storage.Store.
//
// It also works against plain MySQL 8. Learned topics are keyed by an MD5 hash
// of the normalized topic because MySQL cannot index unbounded TEXT columns.
package oceanbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/oceanbase/trinity-go/pkg/storage"
)

// Client is an OceanBase store client.
type Client struct {
	db     *sql.DB
	tables storage.Tables
}

// Config contains OceanBase configuration.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	TablePrefix string
}

// NewClient creates a new OceanBase client and initializes the schema.
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
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

// initTables creates the schema.
func (c *Client) initTables(ctx context.Context) error {
	t := c.tables
	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			topic_hash CHAR(32) PRIMARY KEY,
			topic LONGTEXT NOT NULL,
			data LONGTEXT NOT NULL,
			updated_at DATETIME(3)
		)`, t.Knowledge),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			uid VARCHAR(128) NOT NULL DEFAULT '',
			ts DATETIME(3) NOT NULL,
			user_message LONGTEXT NOT NULL,
			ai_response LONGTEXT NOT NULL,
			INDEX idx_uid (uid)
		)`, t.Interactions),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			uid VARCHAR(128) PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			location VARCHAR(255) NOT NULL DEFAULT '',
			preferences TEXT,
			score INT NOT NULL DEFAULT 0,
			created_at DATETIME(3),
			updated_at DATETIME(3)
		)`, t.Profiles),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			song_title VARCHAR(512) PRIMARY KEY,
			play_count BIGINT NOT NULL DEFAULT 0,
			genre VARCHAR(128) NOT NULL DEFAULT ''
		)`, t.Songs),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			app_name VARCHAR(255) PRIMARY KEY,
			usage_count BIGINT NOT NULL DEFAULT 0
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
	query := fmt.Sprintf("SELECT data FROM %s WHERE topic_hash = ?", c.tables.Knowledge)

	var data string
	err := c.db.QueryRowContext(ctx, query, topicHash(topic)).Scan(&data)
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
		INSERT INTO %s (topic_hash, topic, data, updated_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)
	`, c.tables.Knowledge)

	if _, err := c.db.ExecContext(ctx, query, topicHash(topic), topic, text, time.Now()); err != nil {
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
	if _, err := c.db.ExecContext(ctx, query, rec.ID, rec.UID, ts, rec.Utterance, rec.Response); err != nil {
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
		first, last sql.NullTime
	)
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&total, &first, &last); err != nil {
		return nil, fmt.Errorf("InteractionStats: %w", err)
	}

	stats := &storage.InteractionStats{Total: total}
	if first.Valid {
		stats.First = &first.Time
	}
	if last.Valid {
		stats.Last = &last.Time
	}
	return stats, nil
}

// GetProfile returns the profile for uid.
func (c *Client) GetProfile(ctx context.Context, uid string) (*storage.UserProfile, error) {
	query := fmt.Sprintf(`
		SELECT uid, username, location, COALESCE(preferences, ''), score, created_at, updated_at
		FROM %s WHERE uid = ?
	`, c.tables.Profiles)

	var (
		p                storage.UserProfile
		created, updated sql.NullTime
	)
	err := c.db.QueryRowContext(ctx, query, uid).Scan(
		&p.UID, &p.Username, &p.Location, &p.Preferences, &p.Score, &created, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetProfile: %w", err)
	}
	p.CreatedAt = created.Time
	p.UpdatedAt = updated.Time
	return &p, nil
}

// EnsureProfile creates an empty profile for uid if none exists.
func (c *Client) EnsureProfile(ctx context.Context, uid string) error {
	query := fmt.Sprintf(`
		INSERT IGNORE INTO %s (uid, preferences, created_at, updated_at) VALUES (?, '', ?, ?)
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

// AdjustScore adds delta to the score and returns the new score.
//
// MySQL has no RETURNING, so the upsert and the read share a transaction;
// the upsert holds the row lock until commit.
func (c *Client) AdjustScore(ctx context.Context, uid string, delta int) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("AdjustScore: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert := fmt.Sprintf(`
		INSERT INTO %s (uid, preferences, score, created_at, updated_at) VALUES (?, '', ?, ?, ?)
		ON DUPLICATE KEY UPDATE score = score + VALUES(score), updated_at = VALUES(updated_at)
	`, c.tables.Profiles)

	now := time.Now()
	if _, err := tx.ExecContext(ctx, upsert, uid, delta, now, now); err != nil {
		return 0, fmt.Errorf("AdjustScore: %w", err)
	}

	var score int
	selectQuery := fmt.Sprintf("SELECT score FROM %s WHERE uid = ?", c.tables.Profiles)
	if err := tx.QueryRowContext(ctx, selectQuery, uid).Scan(&score); err != nil {
		return 0, fmt.Errorf("AdjustScore: %w", err)
	}

	if err := tx.Commit(); err != nil {
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
			ON DUPLICATE KEY UPDATE
				genre = IF(genre = '', VALUES(genre), genre),
				%[3]s = %[3]s + 1
		`, cols.Table, cols.Key, cols.Count)
		args = append(args, genre)
	} else {
		query = fmt.Sprintf(`
			INSERT INTO %[1]s (%[2]s, %[3]s) VALUES (?, 1)
			ON DUPLICATE KEY UPDATE %[3]s = %[3]s + 1
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
