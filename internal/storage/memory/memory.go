// Package memory provides an in-memory Storage implementation used by tests
// and local development. It applies the same narrow-update semantics as the
// SQLite store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/deskhub/deskhub/internal/storage"
	"github.com/deskhub/deskhub/internal/types"
)

// MemoryStorage is a thread-safe in-memory issue store.
type MemoryStorage struct {
	mu      sync.RWMutex
	issues  map[int64]*types.Issue
	config  map[string]string
	nextID  int64
	numbers map[string]int // org -> highest assigned number
}

// New creates an empty in-memory store.
func New() *MemoryStorage {
	return &MemoryStorage{
		issues:  make(map[int64]*types.Issue),
		config:  make(map[string]string),
		numbers: make(map[string]int),
		nextID:  1,
	}
}

func (m *MemoryStorage) CreateIssue(ctx context.Context, issue *types.Issue) error {
	if err := issue.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	issue.ID = m.nextID
	m.nextID++

	if issue.Number == 0 {
		m.numbers[issue.Org]++
		issue.Number = m.numbers[issue.Org]
	} else if issue.Number > m.numbers[issue.Org] {
		m.numbers[issue.Org] = issue.Number
	}

	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now

	cp := *issue
	m.issues[issue.ID] = &cp
	return nil
}

func (m *MemoryStorage) GetIssue(ctx context.Context, id int64) (*types.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issue, ok := m.issues[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *issue
	return &cp, nil
}

func (m *MemoryStorage) GetIssueByRemoteID(ctx context.Context, remoteID string) (*types.Issue, error) {
	if remoteID == "" {
		return nil, storage.ErrNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, issue := range m.issues {
		if issue.RemoteID == remoteID {
			cp := *issue
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *MemoryStorage) ListIssues(ctx context.Context, filter storage.IssueFilter) ([]*types.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*types.Issue
	for _, issue := range m.issues {
		if filter.Org != "" && issue.Org != filter.Org {
			continue
		}
		if filter.Status != "" && issue.Status != filter.Status {
			continue
		}
		if filter.Synced != nil && issue.Synced != *filter.Synced {
			continue
		}
		cp := *issue
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStorage) UpdateIssueFields(ctx context.Context, id int64, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[id]
	if !ok {
		return storage.ErrNotFound
	}

	// Apply against a copy so a rejected key leaves the stored record
	// untouched, matching the SQLite store's all-or-nothing update.
	cp := *issue
	for key, value := range updates {
		if err := applyField(&cp, key, value); err != nil {
			return err
		}
	}
	cp.UpdatedAt = time.Now().UTC()
	m.issues[id] = &cp
	return nil
}

func applyField(issue *types.Issue, key string, value interface{}) error {
	switch key {
	case "title":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("title: expected string, got %T", value)
		}
		issue.Title = s
	case "description":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("description: expected string, got %T", value)
		}
		issue.Description = s
	case "priority":
		switch v := value.(type) {
		case types.Priority:
			issue.Priority = v
		case string:
			issue.Priority = types.Priority(v)
		default:
			return fmt.Errorf("priority: expected string, got %T", value)
		}
	case "status":
		switch v := value.(type) {
		case types.Status:
			issue.Status = v
		case string:
			issue.Status = types.Status(v)
		default:
			return fmt.Errorf("status: expected string, got %T", value)
		}
	case "remote_id":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("remote_id: expected string, got %T", value)
		}
		issue.RemoteID = s
	case "remote_url":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("remote_url: expected string, got %T", value)
		}
		issue.RemoteURL = s
	case "remote_team_id":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("remote_team_id: expected string, got %T", value)
		}
		if issue.RemoteTeamID != "" && issue.RemoteTeamID != s {
			return fmt.Errorf("remote_team_id is immutable once set (have %s)", issue.RemoteTeamID)
		}
		issue.RemoteTeamID = s
	case "synced":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("synced: expected bool, got %T", value)
		}
		issue.Synced = b
	case "last_synced_at":
		t, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("last_synced_at: expected time.Time, got %T", value)
		}
		issue.LastSyncedAt = &t
	default:
		return fmt.Errorf("unknown issue field: %q", key)
	}
	return nil
}

func (m *MemoryStorage) GetConfig(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config[key], nil
}

func (m *MemoryStorage) SetConfig(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}

func (m *MemoryStorage) Close() error { return nil }

var _ storage.Storage = (*MemoryStorage)(nil)
