// Package syncer implements the outbound half of the issue-tracker bridge:
// it decides create-vs-update for a local issue, maps local status/priority
// onto the remote team's workflow states, calls the remote API, and persists
// the resulting sync metadata.
//
// The engine never retries and never rolls back the local mutation that
// triggered a sync; local data is the system of record and sync is advisory.
// Scheduling belongs to callers: each call is a short-lived unit of work.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/deskhub/deskhub/internal/linear"
	"github.com/deskhub/deskhub/internal/storage"
	"github.com/deskhub/deskhub/internal/types"
)

const scopeName = "github.com/deskhub/deskhub/syncer"

// LastSyncConfigKey is the storage config key recording when the last fully
// successful bulk sync completed, in RFC3339. Advisory, like LastSyncedAt.
const LastSyncConfigKey = "sync.last_run"

// RemoteClient is the subset of the tracker client the engine needs. The
// concrete implementation is *linear.Client.
type RemoteClient interface {
	CreateIssue(ctx context.Context, input linear.IssueCreateInput) (*linear.Issue, error)
	UpdateIssue(ctx context.Context, id string, input linear.IssueUpdateInput) (*linear.Issue, error)
	GetTeam(ctx context.Context, teamID string) (*linear.Team, error)
}

// Engine orchestrates outbound sync for single issues and batches.
type Engine struct {
	client RemoteClient
	store  storage.Storage
	logger *slog.Logger

	attempts metric.Int64Counter
	failures metric.Int64Counter
}

// New creates a sync engine. A nil logger falls back to slog.Default().
func New(client RemoteClient, store storage.Storage, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.Meter(scopeName)
	attempts, _ := meter.Int64Counter("deskhub.sync.attempts",
		metric.WithDescription("Outbound sync attempts"))
	failures, _ := meter.Int64Counter("deskhub.sync.failures",
		metric.WithDescription("Outbound sync failures"))
	return &Engine{
		client:   client,
		store:    store,
		logger:   logger,
		attempts: attempts,
		failures: failures,
	}
}

// Result records the outcome of syncing one issue in a batch.
type Result struct {
	IssueID int64
	Ref     string // org-scoped reference, e.g. "acme-42"
	Created bool
	Updated bool
	Err     error
}

// SyncIssue pushes one issue to the remote tracker.
//
// With updateExisting true and a remote id already present, the remote issue
// is updated in place (repeated sync updates, never duplicates). Otherwise a
// remote issue is created and its identity persisted onto the local record.
// On failure the issue keeps its prior sync state; the error is returned but
// the local issue is never rolled back.
func (e *Engine) SyncIssue(ctx context.Context, issue *types.Issue, teamID string, updateExisting bool) error {
	op := "create"
	if updateExisting && issue.RemoteID != "" {
		op = "update"
	}
	e.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))

	if err := e.syncIssue(ctx, issue, teamID, updateExisting); err != nil {
		e.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
		e.logger.Error("sync failed",
			"issue", issue.Ref(),
			"team_id", teamID,
			"op", op,
			"error", err)
		return err
	}
	return nil
}

func (e *Engine) syncIssue(ctx context.Context, issue *types.Issue, teamID string, updateExisting bool) error {
	teamID, err := e.resolveTeamID(issue, teamID)
	if err != nil {
		return err
	}

	team, err := e.client.GetTeam(ctx, teamID)
	if err != nil {
		return fmt.Errorf("fetching team %s: %w", teamID, err)
	}

	if updateExisting && issue.RemoteID != "" {
		return e.pushUpdate(ctx, issue, team)
	}
	return e.pushCreate(ctx, issue, team)
}

// resolveTeamID picks the team for this sync. A team id already bound to the
// issue wins and must not change; remote trackers cannot move an issue
// between teams via update.
func (e *Engine) resolveTeamID(issue *types.Issue, teamID string) (string, error) {
	if issue.RemoteTeamID != "" {
		if teamID != "" && teamID != issue.RemoteTeamID {
			return "", fmt.Errorf("issue %s is bound to remote team %s; cannot sync to %s",
				issue.Ref(), issue.RemoteTeamID, teamID)
		}
		return issue.RemoteTeamID, nil
	}
	if teamID == "" {
		return "", fmt.Errorf("issue %s has no remote team configured", issue.Ref())
	}
	return teamID, nil
}

func (e *Engine) pushCreate(ctx context.Context, issue *types.Issue, team *linear.Team) error {
	// Creation never blocks on an unmapped status; fall back to the team
	// default state.
	state, err := linear.ResolveState(issue.Status, team.States)
	if err != nil {
		return fmt.Errorf("team %s has no workflow states: %w", team.ID, err)
	}

	priority := linear.PriorityToRemote(issue.Priority)
	created, err := e.client.CreateIssue(ctx, linear.IssueCreateInput{
		TeamID:      team.ID,
		Title:       issue.Title,
		Description: issue.Description,
		Priority:    &priority,
		StateID:     state.ID,
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"remote_id":      created.ID,
		"remote_url":     created.URL,
		"remote_team_id": team.ID,
		"synced":         true,
		"last_synced_at": now,
	}
	if err := e.store.UpdateIssueFields(ctx, issue.ID, updates); err != nil {
		return fmt.Errorf("persisting sync metadata for %s: %w", issue.Ref(), err)
	}

	issue.RemoteID = created.ID
	issue.RemoteURL = created.URL
	issue.RemoteTeamID = team.ID
	issue.Synced = true
	issue.LastSyncedAt = &now

	e.logger.Info("issue created remotely",
		"issue", issue.Ref(),
		"remote", created.Identifier,
		"team_id", team.ID)
	return nil
}

func (e *Engine) pushUpdate(ctx context.Context, issue *types.Issue, team *linear.Team) error {
	priority := linear.PriorityToRemote(issue.Priority)
	input := linear.IssueUpdateInput{
		Title:       issue.Title,
		Description: issue.Description,
		Priority:    &priority,
	}

	// An unmapped status skips the state field rather than guessing.
	state, err := linear.FindStateForStatus(issue.Status, team.States)
	switch {
	case err == nil:
		input.StateID = state.ID
	case errors.Is(err, linear.ErrNoStateMatch):
		e.logger.Warn("no workflow state for status; skipping state update",
			"issue", issue.Ref(),
			"status", issue.Status,
			"team_id", team.ID)
	default:
		return err
	}

	if _, err := e.client.UpdateIssue(ctx, issue.RemoteID, input); err != nil {
		return err
	}

	return e.markSynced(ctx, issue)
}

// SyncStatusChange is the narrow path for a pure status transition: it sends
// only a state update, plus an optional description append carrying a
// resolution note. It is a no-op for issues that were never synced.
func (e *Engine) SyncStatusChange(ctx context.Context, issue *types.Issue, oldStatus types.Status, note string) error {
	if !issue.Synced || issue.RemoteID == "" {
		return nil
	}
	if issue.RemoteTeamID == "" {
		return fmt.Errorf("issue %s is synced but has no remote team", issue.Ref())
	}

	e.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "status")))

	team, err := e.client.GetTeam(ctx, issue.RemoteTeamID)
	if err != nil {
		e.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "status")))
		e.logger.Error("status sync failed",
			"issue", issue.Ref(),
			"team_id", issue.RemoteTeamID,
			"error", err)
		return err
	}

	state, err := linear.FindStateForStatus(issue.Status, team.States)
	if errors.Is(err, linear.ErrNoStateMatch) {
		// Log and skip rather than guess a state id.
		e.logger.Warn("no workflow state for status change; skipping",
			"issue", issue.Ref(),
			"old_status", oldStatus,
			"status", issue.Status,
			"team_id", issue.RemoteTeamID)
		return nil
	}
	if err != nil {
		return err
	}

	input := linear.IssueUpdateInput{StateID: state.ID}
	if note != "" {
		input.Description = issue.Description + "\n\n---\n" + note
	}

	if _, err := e.client.UpdateIssue(ctx, issue.RemoteID, input); err != nil {
		e.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "status")))
		e.logger.Error("status sync failed",
			"issue", issue.Ref(),
			"team_id", issue.RemoteTeamID,
			"error", err)
		return err
	}

	e.logger.Info("status synced",
		"issue", issue.Ref(),
		"old_status", oldStatus,
		"status", issue.Status,
		"state", state.Name)
	return e.markSynced(ctx, issue)
}

// SyncAll applies SyncIssue to a collection sequentially, accumulating
// per-issue results. One failure does not abort the batch. A batch that
// completes with no failures records its completion time under
// LastSyncConfigKey.
func (e *Engine) SyncAll(ctx context.Context, issues []*types.Issue, teamID string) []Result {
	results := make([]Result, 0, len(issues))
	allOK := true
	for _, issue := range issues {
		wasSynced := issue.Synced
		err := e.SyncIssue(ctx, issue, teamID, true)
		if err != nil {
			allOK = false
		}
		results = append(results, Result{
			IssueID: issue.ID,
			Ref:     issue.Ref(),
			Created: err == nil && !wasSynced,
			Updated: err == nil && wasSynced,
			Err:     err,
		})
	}
	if allOK && len(results) > 0 {
		ts := time.Now().UTC().Format(time.RFC3339)
		if err := e.store.SetConfig(ctx, LastSyncConfigKey, ts); err != nil {
			e.logger.Warn("recording bulk sync time failed", "error", err)
		}
	}
	return results
}

func (e *Engine) markSynced(ctx context.Context, issue *types.Issue) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"synced":         true,
		"last_synced_at": now,
	}
	if err := e.store.UpdateIssueFields(ctx, issue.ID, updates); err != nil {
		return fmt.Errorf("refreshing sync metadata for %s: %w", issue.Ref(), err)
	}
	issue.Synced = true
	issue.LastSyncedAt = &now
	return nil
}
