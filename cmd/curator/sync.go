package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seqops/curator/pkg/curator/logging"
)

var syncCmd = &cobra.Command{
	Use:   "sync [path]",
	Short: "Scan then upload in one run",
	Long: `Sync runs the full pipeline: scan the project, write the manifest, diff
it against the remote bucket, and upload whatever is missing or stale.

This is the command to put in cron. Repeating it against an unchanged
tree scans quickly, hashes nothing, and transfers nothing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSyncCmd,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

// runSyncCmd is the sync command handler.
func runSyncCmd(_ *cobra.Command, args []string) error {
	if err := initLogging(); err != nil {
		return err
	}
	defer logging.Close() //nolint:errcheck

	proj, err := resolveProject(args)
	if err != nil {
		return err
	}

	dest, err := resolveDestination(proj)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := newResult(proj)

	entries, err := runScanPhase(ctx, proj, res)
	if err != nil {
		_ = printResult(res)
		return err
	}
	stampScanTime(proj, time.Now())

	complete, err := runUploadPhase(ctx, proj, dest, entries, lastUploadTime(proj), res)
	if err != nil {
		_ = printResult(res)
		return err
	}

	if complete && !res.DryRun {
		stampUploadTime(proj, dest, time.Now())
	}

	return printResult(res)
}
