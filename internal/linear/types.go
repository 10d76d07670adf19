// Package linear provides the client and data types for the remote issue
// tracker's GraphQL API, plus the pure mappings between the local issue
// vocabulary and the tracker's per-team workflow states.
//
// The tracker exposes a single typed endpoint; every call carries a JSON
// content type and the configured API credential verbatim in the
// Authorization header. All failure shapes (transport, HTTP status, and
// application errors returned inside a 200 response) collapse into *APIError
// so callers never branch on transport vs. application errors. The client
// performs no retries; retry policy belongs to callers.
package linear

import (
	"fmt"
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the tracker's GraphQL endpoint.
	DefaultAPIEndpoint = "https://api.linear.app/graphql"

	// DefaultTimeout bounds every request; a timeout is treated the same as
	// any other transport failure.
	DefaultTimeout = 30 * time.Second
)

// Workflow state types, as reported by the tracker. Each team defines its own
// named states; only the type vocabulary is fixed.
const (
	StateTypeUnstarted = "unstarted"
	StateTypeStarted   = "started"
	StateTypeCompleted = "completed"
	StateTypeCanceled  = "canceled"
)

// State is a per-team workflow state. Names vary between teams ("Todo",
// "Backlog", "In Review", ...); Type is drawn from the fixed vocabulary above.
type State struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Position float64 `json:"position"`
}

// Team is a remote team (workspace) with its workflow states.
type Team struct {
	ID     string  `json:"id"`
	Key    string  `json:"key"`
	Name   string  `json:"name"`
	States []State `json:"states"`
}

// Issue is an issue as returned by the remote API.
type Issue struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Priority    int    `json:"priority"`
	State       *State `json:"state"`
}

// Viewer is the authenticated API user and the teams visible to it.
type Viewer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Teams []Team `json:"teams"`
}

// IssueCreateInput carries the fields written on issue creation. Optional
// fields are omitted when empty.
type IssueCreateInput struct {
	TeamID      string `json:"teamId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    *int   `json:"priority,omitempty"`
	StateID     string `json:"stateId,omitempty"`
	AssigneeID  string `json:"assigneeId,omitempty"`
}

// IssueUpdateInput carries the fields written on issue update. Any field may
// be omitted when unchanged or unavailable.
type IssueUpdateInput struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Priority    *int   `json:"priority,omitempty"`
	StateID     string `json:"stateId,omitempty"`
	AssigneeID  string `json:"assigneeId,omitempty"`
}

// APIError is the single failure shape for all remote calls. StatusCode is
// the raw transport status (0 when the request never completed, 200 when the
// failure was an application-level error inside a successful response).
type APIError struct {
	Op         string // operation name, e.g. "issueCreate"
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("tracker %s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("tracker %s: %s", e.Op, e.Message)
}

// Client provides access to the remote tracker's GraphQL API.
type Client struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}
