package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/seqops/curator/pkg/curator/archive"
	"github.com/seqops/curator/pkg/curator/logging"
)

var archiveCmd = &cobra.Command{
	Use:   "archive [path]",
	Short: "Bundle the project's archivable files into one tarball",
	Long: `Archive collects every manifest entry marked archivable into a single
compressed tarball at the project root. While the bundle is present,
uploads transfer it as one object instead of each member individually.

Run "curator scan" first so the manifest reflects the current tree.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runArchiveCmd,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}

// runArchiveCmd is the archive command handler.
func runArchiveCmd(_ *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := archive.Build(ctx, proj.Root, entries)
	if err != nil {
		return err
	}
	if res.Members == 0 {
		printInfo("no archivable files in %s, bundle not written", proj.Name)
		return nil
	}

	printInfo("bundled %d files (%s raw, %s compressed) into %s",
		res.Members,
		humanize.IBytes(uint64(res.BytesIn)),  //nolint:gosec // byte counts are non-negative
		humanize.IBytes(uint64(res.BytesOut)), //nolint:gosec // byte counts are non-negative
		res.Path)
	return nil
}
