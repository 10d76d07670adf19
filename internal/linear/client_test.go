package linear

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client := NewClient("lin_api_test")

	if client.APIKey != "lin_api_test" {
		t.Errorf("APIKey = %q, want %q", client.APIKey, "lin_api_test")
	}
	if client.Endpoint != DefaultAPIEndpoint {
		t.Errorf("Endpoint = %q, want %q", client.Endpoint, DefaultAPIEndpoint)
	}
	if client.HTTPClient == nil {
		t.Fatal("HTTPClient should not be nil")
	}
	if client.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", client.HTTPClient.Timeout, DefaultTimeout)
	}
}

func TestWithEndpoint(t *testing.T) {
	client := NewClient("key")
	custom := "https://tracker.internal/graphql"

	clone := client.WithEndpoint(custom)

	if clone.Endpoint != custom {
		t.Errorf("Endpoint = %q, want %q", clone.Endpoint, custom)
	}
	if client.Endpoint != DefaultAPIEndpoint {
		t.Errorf("original endpoint changed: %q", client.Endpoint)
	}
	if clone.APIKey != "key" {
		t.Errorf("APIKey not preserved: %q", clone.APIKey)
	}
}

func TestWithHTTPClient(t *testing.T) {
	client := NewClient("key")
	hc := &http.Client{Timeout: time.Minute}

	clone := client.WithHTTPClient(hc)

	if clone.HTTPClient != hc {
		t.Error("HTTPClient not set")
	}
	if clone.Endpoint != DefaultAPIEndpoint {
		t.Errorf("Endpoint not preserved: %q", clone.Endpoint)
	}
}

// graphqlHandler records the last request and replies with a fixed JSON body.
type graphqlHandler struct {
	lastAuth         string
	lastContentType  string
	lastContentTypes []string
	lastQuery        string
	lastVars         map[string]interface{}
	status           int
	body             string
}

func (h *graphqlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.lastAuth = r.Header.Get("Authorization")
	h.lastContentType = r.Header.Get("Content-Type")
	h.lastContentTypes = r.Header.Values("Content-Type")

	var req struct {
		Query     string                 `json:"query"`
		Variables map[string]interface{} `json:"variables"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	h.lastQuery = req.Query
	h.lastVars = req.Variables

	if h.status != 0 {
		w.WriteHeader(h.status)
	}
	_, _ = w.Write([]byte(h.body))
}

func newTestClient(t *testing.T, h *graphqlHandler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("lin_api_test").WithEndpoint(srv.URL)
}

func TestGetTeamSendsCredentialVerbatim(t *testing.T) {
	h := &graphqlHandler{body: `{"data":{"team":{"id":"team-1","key":"SUP","name":"Support",
		"states":{"nodes":[
			{"id":"s2","name":"Done","type":"completed","position":2},
			{"id":"s1","name":"Todo","type":"unstarted","position":1}
		]}}}}`}
	client := newTestClient(t, h)

	team, err := client.GetTeam(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("GetTeam: %v", err)
	}

	if h.lastAuth != "lin_api_test" {
		t.Errorf("Authorization = %q, want credential verbatim", h.lastAuth)
	}
	// The library may append a charset parameter; the JSON media type is the
	// contract.
	if !strings.HasPrefix(h.lastContentType, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", h.lastContentType)
	}
	if got := len(h.lastContentTypes); got != 1 {
		t.Errorf("Content-Type sent %d times, want once: %v", got, h.lastContentTypes)
	}
	if team.Key != "SUP" {
		t.Errorf("Key = %q, want SUP", team.Key)
	}
	// States come back sorted by position regardless of response order.
	if len(team.States) != 2 || team.States[0].ID != "s1" || team.States[1].ID != "s2" {
		t.Errorf("states not in board order: %+v", team.States)
	}
}

func TestCreateIssuePassesInput(t *testing.T) {
	h := &graphqlHandler{body: `{"data":{"issueCreate":{"success":true,"issue":{
		"id":"iss-1","identifier":"SUP-7","title":"Printer on fire","url":"https://linear.app/acme/issue/SUP-7",
		"priority":2,"state":{"id":"s1","name":"Todo","type":"unstarted"}}}}}`}
	client := newTestClient(t, h)

	priority := 2
	issue, err := client.CreateIssue(context.Background(), IssueCreateInput{
		TeamID:   "team-1",
		Title:    "Printer on fire",
		Priority: &priority,
		StateID:  "s1",
	})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if issue.ID != "iss-1" || issue.Identifier != "SUP-7" {
		t.Errorf("issue identity = %q/%q", issue.ID, issue.Identifier)
	}

	input, ok := h.lastVars["input"].(map[string]interface{})
	if !ok {
		t.Fatalf("input variable missing: %v", h.lastVars)
	}
	if input["teamId"] != "team-1" || input["title"] != "Printer on fire" || input["stateId"] != "s1" {
		t.Errorf("unexpected input vars: %v", input)
	}
	if _, present := input["assigneeId"]; present {
		t.Error("empty assigneeId should be omitted")
	}
}

func TestApplicationErrorInside200(t *testing.T) {
	h := &graphqlHandler{body: `{"errors":[{"message":"title must not be empty"}]}`}
	client := newTestClient(t, h)

	_, err := client.CreateIssue(context.Background(), IssueCreateInput{TeamID: "team-1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", apiErr.StatusCode)
	}
	if apiErr.Op != "issueCreate" {
		t.Errorf("Op = %q, want issueCreate", apiErr.Op)
	}
}

func TestTransportErrorCarriesStatus(t *testing.T) {
	h := &graphqlHandler{status: http.StatusUnauthorized, body: `{"error":"invalid key"}`}
	client := newTestClient(t, h)

	_, err := client.GetViewer(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
}

func TestMissingCredential(t *testing.T) {
	client := NewClient("")

	_, err := client.GetViewer(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 (no request made)", apiErr.StatusCode)
	}
}

func TestMutationReportedFailure(t *testing.T) {
	h := &graphqlHandler{body: `{"data":{"issueUpdate":{"success":false,"issue":null}}}`}
	client := newTestClient(t, h)

	_, err := client.UpdateIssue(context.Background(), "iss-1", IssueUpdateInput{Title: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
}
