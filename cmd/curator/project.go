package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/seqops/curator/pkg/curator/catalog"
	"github.com/seqops/curator/pkg/curator/config"
	"github.com/seqops/curator/pkg/curator/types"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage registered projects",
	Long: `The project catalog records each project's root directory, upload
destination, and lifecycle timestamps. Registration is optional: scan
and upload work on bare paths, but only registered projects track when
they last scanned and uploaded.`,
}

var projectAddCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Register a project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProjectAdd,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one project's record",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a project from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectRemove,
}

func init() {
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}

// openCatalog opens the catalog database under the XDG data directory.
func openCatalog() (*catalog.Store, error) {
	if err := config.EnsureDataDir(); err != nil {
		return nil, err
	}
	return catalog.Open(config.DefaultCatalogPath())
}

// runProjectAdd registers the project at the given path.
func runProjectAdd(_ *cobra.Command, args []string) error {
	proj, err := resolveProject(args)
	if err != nil {
		return err
	}

	dest, err := resolveDestination(proj)
	if err != nil {
		return err
	}

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	// Re-registering keeps existing lifecycle timestamps.
	rec, err := store.Get(proj.Name)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return err
	}
	rec.Path = proj.Root
	rec.Destination = dest

	if err := store.Put(proj.Name, rec); err != nil {
		return err
	}

	printInfo("registered %s -> gs://%s/%s", proj.Name, dest.Bucket, dest.Prefix)
	return nil
}

// runProjectList prints the registered projects.
func runProjectList(cmd *cobra.Command, _ []string) error {
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	names, err := store.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		printInfo("no projects registered")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPATH\tDESTINATION\tLAST SCAN\tLAST UPLOAD")
	for _, name := range names {
		rec, err := store.Get(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\tgs://%s/%s\t%s\t%s\n",
			name, rec.Path, rec.Destination.Bucket, rec.Destination.Prefix,
			formatStamp(rec.LastScanTime), formatStamp(rec.LastUploadTime))
	}
	return tw.Flush()
}

// runProjectShow prints one record.
func runProjectShow(cmd *cobra.Command, args []string) error {
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	rec, err := store.Get(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "name:        %s\n", args[0])
	fmt.Fprintf(out, "path:        %s\n", rec.Path)
	fmt.Fprintf(out, "destination: gs://%s/%s\n", rec.Destination.Bucket, rec.Destination.Prefix)
	if rec.Destination.StorageClass != "" {
		fmt.Fprintf(out, "class:       %s\n", rec.Destination.StorageClass)
	}
	fmt.Fprintf(out, "last scan:   %s\n", formatStamp(rec.LastScanTime))
	fmt.Fprintf(out, "last upload: %s\n", formatStamp(rec.LastUploadTime))
	return nil
}

// runProjectRemove drops a record.
func runProjectRemove(_ *cobra.Command, args []string) error {
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	if err := store.Delete(args[0]); err != nil {
		return err
	}
	printInfo("removed %s", args[0])
	return nil
}

// formatStamp renders a lifecycle timestamp, "-" when never set.
func formatStamp(at time.Time) string {
	if at.IsZero() {
		return "-"
	}
	return at.Format(types.DateFormat)
}
