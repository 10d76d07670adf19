package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/deskhub/deskhub/internal/linear"
	"github.com/deskhub/deskhub/internal/storage"
	"github.com/deskhub/deskhub/internal/syncer"
	"github.com/deskhub/deskhub/internal/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync [org]",
	Short: "Push local tickets to the remote tracker",
	Long: `Sync pushes tickets to the remote tracker. By default only tickets that
have never synced are pushed; --all re-pushes synced tickets too, updating
their remote counterparts in place.

Transient transport failures are retried with exponential backoff; remote
validation failures are reported and skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("all", false, "Also re-push already-synced tickets")
	syncCmd.Flags().String("team", "", "Remote team id (overrides config)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	org := ""
	if len(args) > 0 {
		org = args[0]
	}

	client, err := remoteClient()
	if err != nil {
		return err
	}
	engine := syncer.New(client, store, logger)

	filter := storage.IssueFilter{Org: org}
	all, _ := cmd.Flags().GetBool("all")
	if !all {
		unsynced := false
		filter.Synced = &unsynced
	}
	issues, err := store.ListIssues(ctx, filter)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		fmt.Println("Nothing to sync.")
		return nil
	}

	if last, err := store.GetConfig(ctx, syncer.LastSyncConfigKey); err == nil && last != "" {
		fmt.Printf("Last full sync: %s\n", last)
	}

	teamID, _ := cmd.Flags().GetString("team")

	var synced, failed int
	for _, issue := range issues {
		team := teamID
		if team == "" {
			team = cfg.TeamForOrg(issue.Org)
		}
		if err := syncWithRetry(ctx, engine, issue, team); err != nil {
			failed++
			fmt.Printf("  ✗ %s: %v\n", issue.Ref(), err)
			continue
		}
		synced++
		fmt.Printf("  ✓ %s → %s\n", issue.Ref(), issue.RemoteURL)
	}

	fmt.Printf("Synced %d of %d tickets", synced, len(issues))
	if failed > 0 {
		fmt.Printf(" (%d failed)", failed)
	}
	fmt.Println()
	if failed > 0 {
		return fmt.Errorf("%d tickets failed to sync", failed)
	}

	ts := time.Now().UTC().Format(time.RFC3339)
	if err := store.SetConfig(ctx, syncer.LastSyncConfigKey, ts); err != nil {
		logger.Warn("recording bulk sync time failed", "error", err)
	}
	return nil
}

// syncWithRetry retries transient transport failures with exponential backoff.
// The engine itself never retries; this policy belongs to the operator-facing
// bulk path only.
func syncWithRetry(ctx context.Context, engine *syncer.Engine, issue *types.Issue, teamID string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		err := engine.SyncIssue(ctx, issue, teamID, true)
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

// isTransient reports whether a sync failure is worth retrying: transport
// failures and remote 5xx/429. Validation and auth failures are permanent.
func isTransient(err error) bool {
	var apiErr *linear.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 0 || apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
}
