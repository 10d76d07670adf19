package linear

import (
	"context"

	"github.com/machinebox/graphql"
)

// CreateIssue creates an issue in the remote tracker and returns its remote
// identity.
func (c *Client) CreateIssue(ctx context.Context, input IssueCreateInput) (*Issue, error) {
	req := graphql.NewRequest(`
		mutation IssueCreate($input: IssueCreateInput!) {
			issueCreate(input: $input) {
				success
				issue {` + issueFields + `}
			}
		}`)
	req.Var("input", input)

	var resp struct {
		IssueCreate struct {
			Success bool   `json:"success"`
			Issue   *Issue `json:"issue"`
		} `json:"issueCreate"`
	}
	if err := c.run(ctx, "issueCreate", req, &resp); err != nil {
		return nil, err
	}
	if !resp.IssueCreate.Success || resp.IssueCreate.Issue == nil {
		return nil, &APIError{Op: "issueCreate", StatusCode: 200, Message: "mutation reported failure"}
	}
	return resp.IssueCreate.Issue, nil
}

// UpdateIssue updates an existing remote issue. Omitted input fields are left
// unchanged on the remote side.
func (c *Client) UpdateIssue(ctx context.Context, id string, input IssueUpdateInput) (*Issue, error) {
	req := graphql.NewRequest(`
		mutation IssueUpdate($id: String!, $input: IssueUpdateInput!) {
			issueUpdate(id: $id, input: $input) {
				success
				issue {` + issueFields + `}
			}
		}`)
	req.Var("id", id)
	req.Var("input", input)

	var resp struct {
		IssueUpdate struct {
			Success bool   `json:"success"`
			Issue   *Issue `json:"issue"`
		} `json:"issueUpdate"`
	}
	if err := c.run(ctx, "issueUpdate", req, &resp); err != nil {
		return nil, err
	}
	if !resp.IssueUpdate.Success || resp.IssueUpdate.Issue == nil {
		return nil, &APIError{Op: "issueUpdate", StatusCode: 200, Message: "mutation reported failure"}
	}
	return resp.IssueUpdate.Issue, nil
}
