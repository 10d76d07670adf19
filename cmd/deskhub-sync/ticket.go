package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deskhub/deskhub/internal/storage"
	"github.com/deskhub/deskhub/internal/syncer"
	"github.com/deskhub/deskhub/internal/types"
)

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Manage local support tickets",
}

var ticketCreateCmd = &cobra.Command{
	Use:   "create <org> <title>",
	Short: "Create a local ticket, optionally pushing it to the remote tracker",
	Args:  cobra.ExactArgs(2),
	RunE:  runTicketCreate,
}

var ticketListCmd = &cobra.Command{
	Use:   "list [org]",
	Short: "List local tickets",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTicketList,
}

var ticketStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Change a ticket's status and sync the transition",
	Args:  cobra.ExactArgs(2),
	RunE:  runTicketStatus,
}

func init() {
	ticketCreateCmd.Flags().String("description", "", "Ticket description")
	ticketCreateCmd.Flags().String("priority", "medium", "Priority: low, medium, high, urgent")
	ticketCreateCmd.Flags().Bool("sync", false, "Push to the remote tracker after creating")

	ticketListCmd.Flags().String("status", "", "Filter by status")
	ticketListCmd.Flags().Bool("unsynced", false, "Only tickets that have never synced")

	ticketStatusCmd.Flags().String("note", "", "Resolution note appended to the remote description")

	ticketCmd.AddCommand(ticketCreateCmd, ticketListCmd, ticketStatusCmd)
	rootCmd.AddCommand(ticketCmd)
}

func runTicketCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	description, _ := cmd.Flags().GetString("description")
	priority, _ := cmd.Flags().GetString("priority")

	issue := &types.Issue{
		Org:         args[0],
		Title:       args[1],
		Description: description,
		Priority:    types.ParsePriority(priority),
		Status:      types.StatusOpen,
	}
	if err := store.CreateIssue(ctx, issue); err != nil {
		return err
	}
	fmt.Printf("Created %s (id %d)\n", issue.Ref(), issue.ID)

	doSync, _ := cmd.Flags().GetBool("sync")
	if !doSync {
		return nil
	}

	client, err := remoteClient()
	if err != nil {
		return err
	}
	engine := syncer.New(client, store, logger)
	if err := engine.SyncIssue(ctx, issue, cfg.TeamForOrg(issue.Org), false); err != nil {
		// The ticket exists either way; sync is advisory.
		fmt.Printf("Created, but not yet synced: %v\n", err)
		return nil
	}
	fmt.Printf("Synced → %s\n", issue.RemoteURL)
	return nil
}

func runTicketList(cmd *cobra.Command, args []string) error {
	filter := storage.IssueFilter{}
	if len(args) > 0 {
		filter.Org = args[0]
	}
	if s, _ := cmd.Flags().GetString("status"); s != "" {
		filter.Status = types.ParseStatus(s)
	}
	if unsynced, _ := cmd.Flags().GetBool("unsynced"); unsynced {
		f := false
		filter.Synced = &f
	}

	issues, err := store.ListIssues(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		fmt.Println("No tickets.")
		return nil
	}
	for _, issue := range issues {
		sync := "-"
		if issue.Synced {
			sync = issue.RemoteURL
		}
		fmt.Printf("%-12s %-12s %-8s %-40s %s\n",
			issue.Ref(), issue.Status, issue.Priority, issue.Title, sync)
	}
	return nil
}

func runTicketStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid ticket id %q", args[0])
	}
	status := types.Status(args[1])
	if !status.Valid() {
		return fmt.Errorf("invalid status %q (want open, in_progress, resolved, closed)", args[1])
	}

	issue, err := store.GetIssue(ctx, id)
	if err != nil {
		return err
	}
	oldStatus := issue.Status
	if err := store.UpdateIssueFields(ctx, id, map[string]interface{}{
		"status": string(status),
	}); err != nil {
		return err
	}
	issue.Status = status
	fmt.Printf("%s: %s → %s\n", issue.Ref(), oldStatus, status)

	if !issue.Synced {
		return nil
	}
	client, err := remoteClient()
	if err != nil {
		return err
	}
	engine := syncer.New(client, store, logger)
	note, _ := cmd.Flags().GetString("note")
	if err := engine.SyncStatusChange(ctx, issue, oldStatus, note); err != nil {
		fmt.Printf("Status changed locally, but not yet synced: %v\n", err)
	}
	return nil
}
