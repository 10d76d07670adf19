// Package sqlite implements storage.Storage on modernc.org/sqlite (pure Go,
// no CGO).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/deskhub/deskhub/internal/storage"
	"github.com/deskhub/deskhub/internal/types"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS issues (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	org            TEXT NOT NULL,
	number         INTEGER NOT NULL,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	priority       TEXT NOT NULL DEFAULT 'medium',
	status         TEXT NOT NULL DEFAULT 'open',
	category       TEXT NOT NULL DEFAULT '',
	remote_id      TEXT NOT NULL DEFAULT '',
	remote_url     TEXT NOT NULL DEFAULT '',
	remote_team_id TEXT NOT NULL DEFAULT '',
	synced         INTEGER NOT NULL DEFAULT 0,
	last_synced_at TIMESTAMP,
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL,
	UNIQUE (org, number)
);
CREATE INDEX IF NOT EXISTS idx_issues_remote_id ON issues(remote_id) WHERE remote_id != '';
CREATE INDEX IF NOT EXISTS idx_issues_org ON issues(org);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// issueColumns is the select list shared by all issue queries.
const issueColumns = `id, org, number, title, description, priority, status, category,
	remote_id, remote_url, remote_team_id, synced, last_synced_at, created_at, updated_at`

// allowedUpdateColumns whitelists columns for UpdateIssueFields. Keys map to
// themselves; the whitelist exists so callers can never smuggle arbitrary SQL
// through an update key.
var allowedUpdateColumns = map[string]bool{
	"title":          true,
	"description":    true,
	"priority":       true,
	"status":         true,
	"remote_id":      true,
	"remote_url":     true,
	"remote_team_id": true,
	"synced":         true,
	"last_synced_at": true,
}

// SQLiteStore implements storage.Storage.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and bootstraps
// the schema.
func New(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite supports a single concurrent writer; one connection serializes
	// access through the pool and avoids "database is locked" errors when the
	// webhook receiver and a bulk sync write concurrently.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *types.Issue) error {
	if err := issue.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if issue.Number == 0 {
		// Org-scoped sequential numbering, immutable once assigned.
		row := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(number), 0) + 1 FROM issues WHERE org = ?`, issue.Org)
		if err := row.Scan(&issue.Number); err != nil {
			return fmt.Errorf("assign issue number: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO issues (org, number, title, description, priority, status, category,
			remote_id, remote_url, remote_team_id, synced, last_synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.Org, issue.Number, issue.Title, issue.Description,
		string(issue.Priority), string(issue.Status), issue.Category,
		issue.RemoteID, issue.RemoteURL, issue.RemoteTeamID,
		boolToInt(issue.Synced), issue.LastSyncedAt, issue.CreatedAt, issue.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	issue.ID = id

	return tx.Commit()
}

func (s *SQLiteStore) GetIssue(ctx context.Context, id int64) (*types.Issue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	return scanIssue(row)
}

func (s *SQLiteStore) GetIssueByRemoteID(ctx context.Context, remoteID string) (*types.Issue, error) {
	if remoteID == "" {
		return nil, storage.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE remote_id = ?`, remoteID)
	return scanIssue(row)
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter storage.IssueFilter) ([]*types.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	var conds []string
	var args []interface{}

	if filter.Org != "" {
		conds = append(conds, "org = ?")
		args = append(args, filter.Org)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Synced != nil {
		conds = append(conds, "synced = ?")
		args = append(args, boolToInt(*filter.Synced))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var issues []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (s *SQLiteStore) UpdateIssueFields(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	// remote_team_id is immutable once set; reject reassignment here as well
	// as in the sync engine so no caller can slip one through.
	if v, ok := updates["remote_team_id"]; ok {
		newTeam, _ := v.(string)
		var current string
		err := s.db.QueryRowContext(ctx, `SELECT remote_team_id FROM issues WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check remote_team_id: %w", err)
		}
		if current != "" && current != newTeam {
			return fmt.Errorf("remote_team_id is immutable once set (have %s)", current)
		}
	}

	// Deterministic column order keeps the statement stable for a given key set.
	keys := make([]string, 0, len(updates))
	for key := range updates {
		if !allowedUpdateColumns[key] {
			return fmt.Errorf("unknown issue field: %q", key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sets []string
	var args []interface{}
	for _, key := range keys {
		value := updates[key]
		switch v := value.(type) {
		case types.Status:
			value = string(v)
		case types.Priority:
			value = string(v)
		case bool:
			value = boolToInt(v)
		}
		sets = append(sets, key+" = ?")
		args = append(args, value)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC())
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE issues SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update issue %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get config %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(row scanner) (*types.Issue, error) {
	var issue types.Issue
	var priority, status string
	var synced int
	var lastSyncedAt sql.NullTime

	err := row.Scan(&issue.ID, &issue.Org, &issue.Number, &issue.Title, &issue.Description,
		&priority, &status, &issue.Category,
		&issue.RemoteID, &issue.RemoteURL, &issue.RemoteTeamID,
		&synced, &lastSyncedAt, &issue.CreatedAt, &issue.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan issue: %w", err)
	}

	issue.Priority = types.Priority(priority)
	issue.Status = types.Status(status)
	issue.Synced = synced != 0
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		issue.LastSyncedAt = &t
	}
	return &issue, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ storage.Storage = (*SQLiteStore)(nil)
