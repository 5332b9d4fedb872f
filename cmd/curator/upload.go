package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seqops/curator/pkg/curator/catalog"
	"github.com/seqops/curator/pkg/curator/logging"
	"github.com/seqops/curator/pkg/curator/manifest"
	"github.com/seqops/curator/pkg/curator/types"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [path]",
	Short: "Upload manifest entries missing or stale in the remote bucket",
	Long: `Upload reads the project manifest, lists the destination prefix, and
transfers every entry whose remote copy is missing or older than the
manifest's modification time. Individual transfer failures do not abort
the run; the failed files are re-planned on the next invocation.

The project's last-upload timestamp advances only when every planned
transfer succeeds.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUploadCmd,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

// runUploadCmd is the upload command handler.
func runUploadCmd(_ *cobra.Command, args []string) error {
	if err := initLogging(); err != nil {
		return err
	}
	defer logging.Close() //nolint:errcheck

	proj, err := resolveProject(args)
	if err != nil {
		return err
	}

	entries, err := loadManifestEntries(proj)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no manifest at %s; run \"curator scan\" first", proj.Root)
	}

	dest, err := resolveDestination(proj)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := newResult(proj)
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

// loadManifestEntries reads the manifest into planner order.
func loadManifestEntries(proj project) ([]types.ManifestEntry, error) {
	byPath, err := manifest.Load(proj.Root)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}

	entries := make([]types.ManifestEntry, 0, len(byPath))
	for _, e := range byPath {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RelPath < entries[j].RelPath
	})
	return entries, nil
}

// lastUploadTime returns the recorded upload time, zero when the
// project is unregistered or the catalog is unavailable.
func lastUploadTime(proj project) time.Time {
	store, err := openCatalog()
	if err != nil {
		return time.Time{}
	}
	defer store.Close() //nolint:errcheck

	rec, err := store.Get(proj.Name)
	if err != nil {
		return time.Time{}
	}
	return rec.LastUploadTime
}

// stampUploadTime records a fully successful upload, registering the
// project on first contact.
func stampUploadTime(proj project, dest types.Destination, at time.Time) {
	store, err := openCatalog()
	if err != nil {
		logging.Get("catalog").Warn("catalog unavailable, upload time not recorded", "error", err)
		return
	}
	defer store.Close() //nolint:errcheck

	if err := store.SetUploadTime(proj.Name, at); err == nil {
		return
	}

	rec := catalog.Record{Path: proj.Root, Destination: dest, LastUploadTime: at}
	if err := store.Put(proj.Name, rec); err != nil {
		logging.Get("catalog").Warn("upload time not recorded", "project", proj.Name, "error", err)
	}
}
