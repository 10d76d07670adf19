// Package storage defines the persistence interface for issues and
// sync-related configuration. Two implementations exist: a SQLite store for
// real deployments and an in-memory store for tests and local development.
package storage

import (
	"context"
	"errors"

	"github.com/deskhub/deskhub/internal/types"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("not found")

// IssueFilter narrows ListIssues results. Zero values match everything.
type IssueFilter struct {
	Org    string
	Status types.Status
	// Synced filters on sync state when non-nil.
	Synced *bool
}

// Storage is the persistence interface used by the sync engine and the
// webhook receiver. Both directions mutate issues through narrow field
// updates rather than whole-record replacement, so concurrent inbound and
// outbound writes to the same issue cannot clobber each other's fields.
type Storage interface {
	CreateIssue(ctx context.Context, issue *types.Issue) error
	GetIssue(ctx context.Context, id int64) (*types.Issue, error)
	GetIssueByRemoteID(ctx context.Context, remoteID string) (*types.Issue, error)
	ListIssues(ctx context.Context, filter IssueFilter) ([]*types.Issue, error)

	// UpdateIssueFields applies a narrow update. Recognized keys: title,
	// description, priority, status, remote_id, remote_url, remote_team_id,
	// synced, last_synced_at. Unknown keys are an error.
	UpdateIssueFields(ctx context.Context, id int64, updates map[string]interface{}) error

	// Config key/value pairs, e.g. per-organization remote team ids.
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	Close() error
}
