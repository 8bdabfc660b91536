package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"forum_search/internal/model"
	"forum_search/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// An in-memory database exists per connection.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveSnapshot replaces the stored snapshot for snap.ChatID and sets
// snap.UpdatedAt.
func (s *SQLite) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO search_sessions (chat_id, free_text, forum_ids, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET
		   free_text = excluded.free_text,
		   forum_ids = excluded.forum_ids,
		   updated_at = excluded.updated_at`,
		snap.ChatID, snap.FreeText, joinIDs(snap.ForumIDs), now,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_filters WHERE chat_id = ?`, snap.ChatID); err != nil {
		return fmt.Errorf("clear filters: %w", err)
	}
	for i, f := range snap.Filters {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO session_filters (chat_id, position, kind, param) VALUES (?, ?, ?, ?)`,
			snap.ChatID, i, f.Kind, f.Param,
		)
		if err != nil {
			return fmt.Errorf("insert filter %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	snap.UpdatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// LoadSnapshot returns the stored snapshot for chatID, with filters in their
// saved order. It returns ErrNotFound if there is none.
func (s *SQLite) LoadSnapshot(ctx context.Context, chatID int64) (*model.Snapshot, error) {
	snap := model.Snapshot{ChatID: chatID}
	var forumIDs, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT free_text, forum_ids, updated_at FROM search_sessions WHERE chat_id = ?`, chatID,
	).Scan(&snap.FreeText, &forumIDs, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	snap.ForumIDs, err = splitIDs(forumIDs)
	if err != nil {
		return nil, fmt.Errorf("parse forum ids: %w", err)
	}
	snap.UpdatedAt, _ = time.Parse(timeLayout, updated)

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, param FROM session_filters WHERE chat_id = ? ORDER BY position`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query filters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var f model.FilterToken
		if err := rows.Scan(&f.Kind, &f.Param); err != nil {
			return nil, fmt.Errorf("scan filter: %w", err)
		}
		snap.Filters = append(snap.Filters, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filters: %w", err)
	}
	return &snap, nil
}

// TouchSnapshot marks the snapshot for chatID as used at the given time
// without rewriting its inputs. Touching a missing snapshot is not an error.
func (s *SQLite) TouchSnapshot(ctx context.Context, chatID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE search_sessions SET updated_at = ? WHERE chat_id = ?`,
		at.UTC().Format(timeLayout), chatID,
	)
	if err != nil {
		return fmt.Errorf("touch snapshot: %w", err)
	}
	return nil
}

// DeleteSnapshot removes the snapshot for chatID. Deleting a missing
// snapshot is not an error.
func (s *SQLite) DeleteSnapshot(ctx context.Context, chatID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_filters WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete filters: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM search_sessions WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteSnapshotsBefore removes every snapshot last saved before cutoff and
// returns how many were removed.
func (s *SQLite) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ts := cutoff.UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM session_filters WHERE chat_id IN
		   (SELECT chat_id FROM search_sessions WHERE updated_at < ?)`, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("delete filters: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM search_sessions WHERE updated_at < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var ids []int
	for _, p := range strings.Split(s, ",") {
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid forum id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
