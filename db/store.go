package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"podbot/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// StoreError wraps a failed store operation. The pipeline treats it as
// fatal for the current episode to avoid duplicate-publish risk.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Store is the persistent ledger of published episodes, keyed by
// (feed short name, episode guid, target). The mutex serializes the
// existence-check-then-insert sequence so concurrent workers racing on the
// same triple cannot both pass the check.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (and creates, if needed) the episode database at path and
// brings its schema up to date. Repeated opens of the same file are safe.
func Open(path string) (*Store, error) {
	if err := Migrate(path); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	db, err := connection(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Exists reports whether the episode has already been published to the
// given target. It must be checked per target: the same episode may go to
// Bluesky and Mastodon independently.
func (s *Store) Exists(ctx context.Context, feedName, guid string, target models.TargetKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("1").From("episodes")
	sb.Where(
		sb.Equal("feed_name", feedName),
		sb.Equal("guid", guid),
		sb.Equal("target", string(target)),
	)
	sb.Limit(1)

	query, args := sb.Build()

	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &StoreError{Op: "exists", Err: err}
	}

	return true, nil
}

// Record marks the episode as published to the target. Inserting an
// existing triple is a no-op, so retries after a crash are harmless.
func (s *Store) Record(ctx context.Context, feedName, guid string, target models.TargetKind, postedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO episodes (feed_name, guid, target, posted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (feed_name, guid, target) DO NOTHING`,
		feedName, guid, string(target), postedAt.UTC().Unix(),
	)
	if err != nil {
		return &StoreError{Op: "record", Err: err}
	}

	return nil
}

// Purge deletes publication records older than the cutoff and returns the
// number of rows removed. A record exactly olderThanDays old is deleted.
func (s *Store) Purge(ctx context.Context, olderThanDays int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays).Unix()

	deleteEpisodes := sqlbuilder.SQLite.NewDeleteBuilder()
	query, args := deleteEpisodes.DeleteFrom("episodes").
		Where(deleteEpisodes.LessEqualThan("posted_at", cutoff)).
		Build()

	log.WithFields(log.Fields{
		"sql":  query,
		"args": args,
	}).Debug("Purging old publication records")

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &StoreError{Op: "purge", Err: err}
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, &StoreError{Op: "purge", Err: err}
	}

	return deleted, nil
}

// LastModified returns the stored last-modified time for a feed, or the
// zero time when none has been recorded yet.
func (s *Store) LastModified(ctx context.Context, feedName string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("last_modified").From("feeds")
	sb.Where(sb.Equal("feed_name", feedName))

	query, args := sb.Build()

	var modified sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&modified)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, &StoreError{Op: "last_modified", Err: err}
	}
	if !modified.Valid {
		return time.Time{}, nil
	}

	return time.Unix(modified.Int64, 0).UTC(), nil
}

// SetLastModified upserts the last-modified time for a feed.
func (s *Store) SetLastModified(ctx context.Context, feedName string, modified time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feeds (feed_name, last_modified)
		VALUES (?, ?)
		ON CONFLICT (feed_name) DO UPDATE SET last_modified = excluded.last_modified`,
		feedName, modified.UTC().Unix(),
	)
	if err != nil {
		return &StoreError{Op: "set_last_modified", Err: err}
	}

	return nil
}
