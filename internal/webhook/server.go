// Package webhook receives issue events pushed by the remote tracker and
// applies them to local issues. Deliveries are authenticated with an HMAC
// signature header; the signature is the entire trust boundary for this
// endpoint.
//
// Each delivery results in at most one local write. The handler never calls
// back into the outbound sync engine, so a remote-originated change cannot
// ping-pong between the two directions.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/deskhub/deskhub/internal/linear"
	"github.com/deskhub/deskhub/internal/storage"
)

const maxBodySize = 1 << 20 // 1MB

// Server handles webhook deliveries from the remote tracker.
type Server struct {
	store      storage.Storage
	secret     []byte
	logger     *slog.Logger
	mux        *http.ServeMux
	httpServer *http.Server

	events metric.Int64Counter
}

// ServerConfig holds configuration for the webhook server.
type ServerConfig struct {
	Store  storage.Storage
	Secret []byte // shared secret; empty disables verification (insecure, dev only)
	Logger *slog.Logger
}

// NewServer creates a webhook server. With an empty secret, signature
// verification is skipped and every startup logs the insecure mode.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	events, _ := otel.Meter("github.com/deskhub/deskhub/webhook").Int64Counter(
		"deskhub.webhook.events",
		metric.WithDescription("Webhook deliveries by outcome"))

	s := &Server{
		store:  cfg.Store,
		secret: cfg.Secret,
		logger: logger,
		mux:    http.NewServeMux(),
		events: events,
	}

	if len(s.secret) == 0 {
		s.logger.Warn("webhook signature verification disabled: no secret configured (insecure, local development only)")
	}

	s.mux.HandleFunc("/webhook", s.handleWebhook)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

// Start starts the HTTP server on the given address and blocks.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Handler returns the HTTP handler for use with custom servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Event is the envelope the remote tracker posts.
type Event struct {
	Type   string          `json:"type"`   // entity type: "Issue", "Comment", ...
	Action string          `json:"action"` // "create", "update", "remove"
	Data   json.RawMessage `json:"data"`
}

// issuePayload is the subset of the remote issue payload the bridge reads.
// Pointer fields distinguish "absent" from "empty".
type issuePayload struct {
	ID          string        `json:"id"`
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	Priority    *int          `json:"priority"`
	State       *linear.State `json:"state"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed: use POST", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.count(r.Context(), "bad_request")
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if len(s.secret) > 0 {
		if err := VerifySignature(s.secret, r.Header.Get(SignatureHeader), body); err != nil {
			s.count(r.Context(), "unauthorized")
			s.logger.Warn("webhook rejected", "remote_addr", r.RemoteAddr, "error", err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		s.count(r.Context(), "bad_request")
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := s.processEvent(r.Context(), &event); err != nil {
		s.count(r.Context(), "error")
		s.logger.Error("webhook processing failed",
			"type", event.Type,
			"action", event.Action,
			"error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.count(r.Context(), "ok")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"success":true}`))
}

// processEvent dispatches on entity type and action. Event shapes this bridge
// does not act on are acknowledged, not errored: the remote side treats
// non-200 as a delivery failure and retries.
func (s *Server) processEvent(ctx context.Context, event *Event) error {
	if event.Type != "Issue" {
		s.logger.Debug("ignoring event type", "type", event.Type, "action", event.Action)
		return nil
	}

	var payload issuePayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decoding issue payload: %w", err)
	}
	if payload.ID == "" {
		return fmt.Errorf("issue payload missing id")
	}

	switch event.Action {
	case "update":
		return s.applyUpdate(ctx, &payload)
	case "remove":
		return s.applyRemove(ctx, &payload)
	case "create":
		// Issues originate locally; acting on remote creates would open a
		// duplicate-creation loop.
		s.logger.Debug("ignoring remote issue create", "remote_id", payload.ID)
		return nil
	default:
		s.logger.Debug("ignoring issue action", "action", event.Action)
		return nil
	}
}

func (s *Server) applyUpdate(ctx context.Context, payload *issuePayload) error {
	issue, err := s.store.GetIssueByRemoteID(ctx, payload.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// Not ours; another installation may share the remote workspace.
		s.logger.Debug("no local issue for remote id", "remote_id", payload.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up remote id %s: %w", payload.ID, err)
	}

	updates := map[string]interface{}{
		"last_synced_at": time.Now().UTC(),
	}
	if payload.Title != nil {
		updates["title"] = *payload.Title
	}
	if payload.Description != nil {
		updates["description"] = *payload.Description
	}
	if payload.Priority != nil {
		updates["priority"] = string(linear.PriorityToLocal(*payload.Priority))
	}
	if payload.State != nil {
		status, matched := linear.StateNameToStatus(payload.State.Name)
		if !matched {
			s.logger.Warn("unrecognized remote state name; falling back to open",
				"issue", issue.Ref(),
				"state", payload.State.Name,
				"state_type", payload.State.Type)
		}
		updates["status"] = string(status)
	}

	if err := s.store.UpdateIssueFields(ctx, issue.ID, updates); err != nil {
		return fmt.Errorf("updating issue %s: %w", issue.Ref(), err)
	}

	s.logger.Info("applied remote update", "issue", issue.Ref(), "remote_id", payload.ID)
	return nil
}

// applyRemove unlinks the local issue from its deleted remote counterpart.
// The local issue itself is never deleted; content fields stay untouched.
func (s *Server) applyRemove(ctx context.Context, payload *issuePayload) error {
	issue, err := s.store.GetIssueByRemoteID(ctx, payload.ID)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Debug("no local issue for removed remote id", "remote_id", payload.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up remote id %s: %w", payload.ID, err)
	}

	updates := map[string]interface{}{
		"synced":     false,
		"remote_id":  "",
		"remote_url": "",
	}
	if err := s.store.UpdateIssueFields(ctx, issue.ID, updates); err != nil {
		return fmt.Errorf("unlinking issue %s: %w", issue.Ref(), err)
	}

	s.logger.Info("remote issue removed; local issue unlinked",
		"issue", issue.Ref(), "remote_id", payload.ID)
	return nil
}

func (s *Server) count(ctx context.Context, outcome string) {
	s.events.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
