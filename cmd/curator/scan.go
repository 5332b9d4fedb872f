package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seqops/curator/pkg/curator/logging"
	"github.com/seqops/curator/pkg/curator/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a project directory and write its manifest",
	Long: `Scan walks the project directory, classifies every file, deletes junk,
recompresses oversized plain-text sequence files, and reconciles the
result against the prior manifest. Unchanged files keep their recorded
checksums; only new or modified files are hashed.

The manifest (` + "curator-manifest.csv" + `) and removal list
(` + "curator-removed.txt" + `) are replaced atomically at the project root.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScanCmd,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

// runScanCmd is the scan command handler.
func runScanCmd(_ *cobra.Command, args []string) error {
	if err := initLogging(); err != nil {
		return err
	}
	defer logging.Close() //nolint:errcheck

	proj, err := resolveProject(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := newResult(proj)
	if _, err := runScanPhase(ctx, proj, res); err != nil {
		if errors.Is(err, scan.ErrHideInProgress) {
			printError("a hide operation is staged in %s; resolve it before scanning", proj.Root)
			return err
		}
		if errors.Is(err, context.Canceled) {
			res.Interrupted = true
			_ = printResult(res)
		}
		return err
	}

	stampScanTime(proj, time.Now())

	return printResult(res)
}

// stampScanTime records the completed scan in the catalog when the
// project is registered. Unregistered projects scan fine without one.
func stampScanTime(proj project, at time.Time) {
	store, err := openCatalog()
	if err != nil {
		logging.Get("catalog").Warn("catalog unavailable, scan time not recorded", "error", err)
		return
	}
	defer store.Close() //nolint:errcheck

	if err := store.SetScanTime(proj.Name, at); err != nil {
		logging.Get("catalog").Debug("scan time not recorded", "project", proj.Name, "error", err)
	}
}
