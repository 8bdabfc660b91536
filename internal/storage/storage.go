// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"forum_search/internal/model"
)

// ErrNotFound is returned when no snapshot exists for a chat.
var ErrNotFound = errors.New("snapshot not found")

// Storage persists the inputs of live search sessions so they survive a
// restart. Results are never stored.
type Storage interface {
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error
	LoadSnapshot(ctx context.Context, chatID int64) (*model.Snapshot, error)
	TouchSnapshot(ctx context.Context, chatID int64, at time.Time) error
	DeleteSnapshot(ctx context.Context, chatID int64) error
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
