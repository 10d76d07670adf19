// Package types defines the issue record shared by the sync engine, the
// webhook receiver, and the storage layer. Only the fields the sync bridge
// reads or writes live here; the rest of the CRM's data model stays outside.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Status is the local issue status.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// ParseStatus converts a status string to a Status, defaulting to open.
func ParseStatus(s string) Status {
	switch strings.ToLower(s) {
	case "open":
		return StatusOpen
	case "in_progress", "in-progress", "inprogress":
		return StatusInProgress
	case "resolved":
		return StatusResolved
	case "closed":
		return StatusClosed
	default:
		return StatusOpen
	}
}

// Priority is the local issue priority.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ParsePriority converts a priority string to a Priority, defaulting to medium.
func ParsePriority(s string) Priority {
	switch strings.ToLower(s) {
	case "low":
		return PriorityLow
	case "medium":
		return PriorityMedium
	case "high":
		return PriorityHigh
	case "urgent":
		return PriorityUrgent
	default:
		return PriorityMedium
	}
}

// Issue is a support ticket raised against an organization. The CRM owns the
// content fields; the sync bridge owns the Remote*/Synced/LastSyncedAt subset.
type Issue struct {
	ID     int64  `json:"id"`
	Org    string `json:"org"`    // organization slug
	Number int    `json:"number"` // org-scoped sequential, immutable once assigned

	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`
	Category    string   `json:"category,omitempty"` // not part of sync

	// Sync metadata. RemoteID is set if and only if Synced is true.
	// RemoteTeamID is immutable once assigned; remote trackers do not support
	// moving an issue between teams via update.
	RemoteID     string     `json:"remote_id,omitempty"`
	RemoteURL    string     `json:"remote_url,omitempty"`
	RemoteTeamID string     `json:"remote_team_id,omitempty"`
	Synced       bool       `json:"synced"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the content fields the bridge depends on.
func (i *Issue) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("issue title cannot be empty")
	}
	if !i.Status.Valid() {
		return fmt.Errorf("invalid status: %q", i.Status)
	}
	if !i.Priority.Valid() {
		return fmt.Errorf("invalid priority: %q", i.Priority)
	}
	return nil
}

// ValidateSyncMetadata checks the remote-identity invariant: an issue is
// synced exactly when it carries a remote id.
func (i *Issue) ValidateSyncMetadata() error {
	if i.Synced && i.RemoteID == "" {
		return fmt.Errorf("issue %s-%d marked synced without a remote id", i.Org, i.Number)
	}
	if !i.Synced && i.RemoteID != "" {
		return fmt.Errorf("issue %s-%d has remote id %s but is not marked synced", i.Org, i.Number, i.RemoteID)
	}
	return nil
}

// Ref returns the human-readable org-scoped reference, e.g. "acme-42".
func (i *Issue) Ref() string {
	return fmt.Sprintf("%s-%d", i.Org, i.Number)
}
