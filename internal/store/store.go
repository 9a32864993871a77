// Package store is the persistence collaborator: a SQLite database that
// answers the freshness queries (latest record timestamp, count since) and
// serves candidate items to the selection stage. The curation core never
// writes content records; only ingestion does.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"citydigest/internal/core"
)

// Store wraps the SQLite database.
type Store struct {
	db      *sql.DB
	path    string
	builder sq.StatementBuilderType
}

// NewStore opens (creating if needed) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "citydigest.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:      db,
		path:    dbPath,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	itemsTable := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT,
		body TEXT,
		source TEXT,
		url TEXT,
		neighborhood TEXT,
		published_at DATETIME,
		embedding TEXT,
		created_at DATETIME NOT NULL
	);`

	itemsIndex := `
	CREATE INDEX IF NOT EXISTS idx_items_source_published
	ON items (source_id, published_at);`

	typeIndex := `
	CREATE INDEX IF NOT EXISTS idx_items_type_published
	ON items (type, published_at);`

	digestsTable := `
	CREATE TABLE IF NOT EXISTS digests (
		id TEXT PRIMARY KEY,
		slot TEXT,
		subject TEXT,
		items TEXT,
		generated_at DATETIME NOT NULL
	);`

	for _, stmt := range []string{itemsTable, itemsIndex, typeIndex, digestsTable} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertItem stores a content item under its source. Returns true if a new
// row was created, false if the item id already existed.
func (s *Store) InsertItem(ctx context.Context, sourceID string, item core.ContentItem) (bool, error) {
	var embedding []byte
	if len(item.Embedding) > 0 {
		embedding, _ = json.Marshal(item.Embedding)
	}

	query, args, err := s.builder.
		Insert("items").
		Options("OR IGNORE").
		Columns("id", "source_id", "type", "title", "body", "source", "url", "neighborhood", "published_at", "embedding", "created_at").
		Values(item.ID, sourceID, string(item.Type), item.Title, item.Body, item.Source, item.URL, item.Neighborhood, item.PublishedAt.UTC(), string(embedding), time.Now().UTC()).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build insert: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to insert item %s: %w", item.ID, err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// LatestTimestamp returns the most recent published_at recorded for a
// source, or the zero time if the source has never produced data.
func (s *Store) LatestTimestamp(ctx context.Context, sourceID string) (time.Time, error) {
	query, args, err := s.builder.
		Select("MAX(published_at)").
		From("items").
		Where(sq.Eq{"source_id": sourceID}).
		ToSql()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to build query: %w", err)
	}

	var latest sql.NullTime
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest timestamp for %s: %w", sourceID, err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time.UTC(), nil
}

// CountSince returns how many records a source produced at or after the
// given time.
func (s *Store) CountSince(ctx context.Context, sourceID string, since time.Time) (int, error) {
	query, args, err := s.builder.
		Select("COUNT(*)").
		From("items").
		Where(sq.Eq{"source_id": sourceID}).
		Where(sq.GtOrEq{"published_at": since.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count items for %s: %w", sourceID, err)
	}
	return count, nil
}

// CandidatesByType returns up to limit items of one content type published
// at or after the given time, newest first.
func (s *Store) CandidatesByType(ctx context.Context, contentType core.ContentType, since time.Time, limit int) ([]core.ContentItem, error) {
	query, args, err := s.builder.
		Select("id", "type", "title", "body", "source", "url", "neighborhood", "published_at", "embedding").
		From("items").
		Where(sq.Eq{"type": string(contentType)}).
		Where(sq.GtOrEq{"published_at": since.UTC()}).
		OrderBy("published_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var items []core.ContentItem
	for rows.Next() {
		var (
			item      core.ContentItem
			itemType  string
			embedding sql.NullString
			published sql.NullTime
		)
		if err := rows.Scan(&item.ID, &itemType, &item.Title, &item.Body, &item.Source, &item.URL, &item.Neighborhood, &published, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Type = core.ContentType(itemType)
		if published.Valid {
			item.PublishedAt = published.Time.UTC()
		}
		if embedding.Valid && embedding.String != "" {
			if err := json.Unmarshal([]byte(embedding.String), &item.Embedding); err != nil {
				return nil, fmt.Errorf("failed to decode embedding for %s: %w", item.ID, err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveDigest stores a generated digest.
func (s *Store) SaveDigest(ctx context.Context, digest core.Digest) error {
	items, err := json.Marshal(digest.Items)
	if err != nil {
		return fmt.Errorf("failed to encode digest items: %w", err)
	}

	query, args, err := s.builder.
		Insert("digests").
		Options("OR REPLACE").
		Columns("id", "slot", "subject", "items", "generated_at").
		Values(digest.ID, digest.Slot, digest.Subject, string(items), digest.GeneratedAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save digest %s: %w", digest.ID, err)
	}
	return nil
}

// LatestDigest returns the most recently generated digest, or nil if none
// exists.
func (s *Store) LatestDigest(ctx context.Context) (*core.Digest, error) {
	query, args, err := s.builder.
		Select("id", "slot", "subject", "items", "generated_at").
		From("digests").
		OrderBy("generated_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var (
		digest    core.Digest
		items     string
		generated time.Time
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&digest.ID, &digest.Slot, &digest.Subject, &items, &generated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest digest: %w", err)
	}
	digest.GeneratedAt = generated.UTC()
	if err := json.Unmarshal([]byte(items), &digest.Items); err != nil {
		return nil, fmt.Errorf("failed to decode digest items: %w", err)
	}
	return &digest, nil
}
