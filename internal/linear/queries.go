package linear

import (
	"context"
	"sort"

	"github.com/machinebox/graphql"
)

// issueFields is the selection set shared by every query returning an issue.
const issueFields = `
	id
	identifier
	title
	description
	url
	priority
	state {
		id
		name
		type
	}
`

// GetTeam fetches a team and its workflow states. States are returned in
// board order.
func (c *Client) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	req := graphql.NewRequest(`
		query Team($id: String!) {
			team(id: $id) {
				id
				key
				name
				states {
					nodes {
						id
						name
						type
						position
					}
				}
			}
		}`)
	req.Var("id", teamID)

	var resp struct {
		Team struct {
			ID     string `json:"id"`
			Key    string `json:"key"`
			Name   string `json:"name"`
			States struct {
				Nodes []State `json:"nodes"`
			} `json:"states"`
		} `json:"team"`
	}
	if err := c.run(ctx, "team", req, &resp); err != nil {
		return nil, err
	}
	if resp.Team.ID == "" {
		return nil, &APIError{Op: "team", StatusCode: 200, Message: "team " + teamID + " not found"}
	}

	team := &Team{
		ID:     resp.Team.ID,
		Key:    resp.Team.Key,
		Name:   resp.Team.Name,
		States: resp.Team.States.Nodes,
	}
	sort.SliceStable(team.States, func(i, j int) bool {
		return team.States[i].Position < team.States[j].Position
	})
	return team, nil
}

// GetIssue fetches a single issue by its opaque remote id.
func (c *Client) GetIssue(ctx context.Context, id string) (*Issue, error) {
	req := graphql.NewRequest(`
		query Issue($id: String!) {
			issue(id: $id) {` + issueFields + `}
		}`)
	req.Var("id", id)

	var resp struct {
		Issue *Issue `json:"issue"`
	}
	if err := c.run(ctx, "issue", req, &resp); err != nil {
		return nil, err
	}
	if resp.Issue == nil {
		return nil, &APIError{Op: "issue", StatusCode: 200, Message: "issue " + id + " not found"}
	}
	return resp.Issue, nil
}

// GetViewer fetches the authenticated user and the teams visible to it. Used
// as a connectivity check and for team discovery.
func (c *Client) GetViewer(ctx context.Context) (*Viewer, error) {
	req := graphql.NewRequest(`
		query Viewer {
			viewer {
				id
				name
				email
			}
			teams {
				nodes {
					id
					key
					name
				}
			}
		}`)

	var resp struct {
		Viewer struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"viewer"`
		Teams struct {
			Nodes []Team `json:"nodes"`
		} `json:"teams"`
	}
	if err := c.run(ctx, "viewer", req, &resp); err != nil {
		return nil, err
	}

	return &Viewer{
		ID:    resp.Viewer.ID,
		Name:  resp.Viewer.Name,
		Email: resp.Viewer.Email,
		Teams: resp.Teams.Nodes,
	}, nil
}
