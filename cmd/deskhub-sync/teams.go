package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List remote teams visible to the configured credential",
	Long: `Teams queries the remote tracker for the teams the configured API key can
see, along with each team's workflow states. Use the team ids shown here for
linear.team-id or per-org overrides in the teams: section.`,
	RunE: runTeams,
}

func init() {
	teamsCmd.Flags().Bool("states", false, "Also list each team's workflow states")
	rootCmd.AddCommand(teamsCmd)
}

func runTeams(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client, err := remoteClient()
	if err != nil {
		return err
	}

	viewer, err := client.GetViewer(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Authenticated as %s (%s)\n\n", viewer.Name, viewer.Email)
	if len(viewer.Teams) == 0 {
		fmt.Println("No teams visible to this credential.")
		return nil
	}

	showStates, _ := cmd.Flags().GetBool("states")
	for _, team := range viewer.Teams {
		fmt.Printf("%-28s  %s (%s)\n", team.ID, team.Name, team.Key)
		if !showStates {
			continue
		}
		full, err := client.GetTeam(ctx, team.ID)
		if err != nil {
			return err
		}
		for _, state := range full.States {
			fmt.Printf("    %-24s  %s (%s)\n", state.ID, state.Name, state.Type)
		}
	}
	return nil
}
