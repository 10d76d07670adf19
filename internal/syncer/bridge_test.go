package syncer

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deskhub/deskhub/internal/linear"
	"github.com/deskhub/deskhub/internal/storage/memory"
	"github.com/deskhub/deskhub/internal/types"
	"github.com/deskhub/deskhub/internal/webhook"
)

// TestBridgeRoundTrip walks a ticket through the full loop: outbound create,
// local status transition pushed outbound, then an inbound webhook reporting a
// remote-side state change.
func TestBridgeRoundTrip(t *testing.T) {
	ctx := context.Background()
	secret := []byte("bridge-secret")

	remote := &fakeRemote{team: &linear.Team{
		ID: "team-1",
		States: []linear.State{
			{ID: "st-backlog", Name: "Backlog", Type: linear.StateTypeUnstarted},
			{ID: "st-progress", Name: "In Progress", Type: linear.StateTypeStarted},
			{ID: "st-done", Name: "Done", Type: linear.StateTypeCompleted},
		},
	}}
	store := memory.New()
	logger := slog.New(slog.DiscardHandler)
	engine := New(remote, store, logger)
	receiver := webhook.NewServer(webhook.ServerConfig{Store: store, Secret: secret, Logger: logger})

	// Outbound create lands in Backlog.
	issue := &types.Issue{
		Org:      "acme",
		Title:    "Search returns stale results",
		Priority: types.PriorityMedium,
		Status:   types.StatusOpen,
	}
	if err := store.CreateIssue(ctx, issue); err != nil {
		t.Fatal(err)
	}
	if err := engine.SyncIssue(ctx, issue, "team-1", false); err != nil {
		t.Fatalf("SyncIssue: %v", err)
	}
	if remote.createInputs[0].StateID != "st-backlog" {
		t.Errorf("create state = %q, want st-backlog", remote.createInputs[0].StateID)
	}

	// Local transition to resolved pushes a single state-only update.
	issue.Status = types.StatusResolved
	if err := engine.SyncStatusChange(ctx, issue, types.StatusOpen, ""); err != nil {
		t.Fatalf("SyncStatusChange: %v", err)
	}
	if len(remote.updateInputs) != 1 {
		t.Fatalf("updates = %d, want 1", len(remote.updateInputs))
	}
	update := remote.updateInputs[0]
	if update.StateID != "st-done" {
		t.Errorf("update state = %q, want st-done", update.StateID)
	}
	if update.Title != "" || update.Description != "" || update.Priority != nil {
		t.Errorf("status sync carried extra fields: %+v", update)
	}

	// Remote side reopens the issue; the webhook applies it as a terminal
	// local write with no outbound call.
	stored, _ := store.GetIssue(ctx, issue.ID)
	before := *stored.LastSyncedAt
	outboundBefore := len(remote.updateInputs) + len(remote.createInputs)

	body := []byte(`{"type":"Issue","action":"update","data":{
		"id":"` + issue.RemoteID + `",
		"state":{"id":"st-progress","name":"In Progress","type":"started"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(webhook.SignatureHeader, webhook.SignatureFor(secret, "1724900000", body))
	rec := httptest.NewRecorder()
	receiver.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d: %s", rec.Code, rec.Body.String())
	}

	stored, _ = store.GetIssue(ctx, issue.ID)
	if stored.Status != types.StatusInProgress {
		t.Errorf("status = %q, want in_progress", stored.Status)
	}
	if !stored.LastSyncedAt.After(before) {
		t.Errorf("last_synced_at did not advance: %v -> %v", before, stored.LastSyncedAt)
	}
	if got := len(remote.updateInputs) + len(remote.createInputs); got != outboundBefore {
		t.Errorf("webhook triggered %d outbound calls", got-outboundBefore)
	}
	if err := stored.ValidateSyncMetadata(); err != nil {
		t.Errorf("sync metadata invariant: %v", err)
	}
}
