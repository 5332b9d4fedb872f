package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/seqops/curator/pkg/curator/checksum"
	"github.com/seqops/curator/pkg/curator/classify"
	"github.com/seqops/curator/pkg/curator/config"
	"github.com/seqops/curator/pkg/curator/manifest"
	"github.com/seqops/curator/pkg/curator/output"
	"github.com/seqops/curator/pkg/curator/plan"
	"github.com/seqops/curator/pkg/curator/reconcile"
	"github.com/seqops/curator/pkg/curator/remote"
	"github.com/seqops/curator/pkg/curator/scan"
	"github.com/seqops/curator/pkg/curator/types"
	"github.com/seqops/curator/pkg/curator/upload"
)

// project resolves one positional path argument to a project name and
// absolute root directory.
type project struct {
	Name string
	Root string
}

// resolveProject validates the path argument and derives the project
// name from the directory base name.
func resolveProject(args []string) (project, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	expanded, err := config.ExpandPath(path)
	if err != nil {
		return project{}, fmt.Errorf("failed to expand path: %w", err)
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return project{}, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return project{}, fmt.Errorf("path does not exist: %s", abs)
		}
		return project{}, fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return project{}, fmt.Errorf("path is not a directory: %s", abs)
	}

	return project{Name: filepath.Base(abs), Root: abs}, nil
}

// resolveDestination builds the upload target from flags and config.
// Prefix defaults to the project name.
func resolveDestination(proj project) (types.Destination, error) {
	bucket := viper.GetString("bucket")
	if bucket == "" {
		return types.Destination{}, fmt.Errorf("no destination bucket configured (use --bucket or set bucket in config)")
	}

	prefix := viper.GetString("prefix")
	if prefix == "" {
		prefix = proj.Name
	}

	return types.Destination{
		Bucket:       bucket,
		Prefix:       prefix,
		StorageClass: viper.GetString("upload.storage_class"),
	}, nil
}

// newResult starts an output result for one pipeline run.
func newResult(proj project) *output.Result {
	return &output.Result{
		Project: proj.Name,
		Root:    proj.Root,
		RunID:   uuid.NewString(),
		DryRun:  viper.GetBool("dry_run"),
	}
}

// plannerFor builds the upload planner for a project.
func plannerFor(proj project, dest types.Destination) *plan.Planner {
	return plan.New(proj.Root, dest)
}

// runScanPhase scans the project, reconciles against the prior manifest,
// fills checksums for fresh entries, and writes the manifest pair.
func runScanPhase(ctx context.Context, proj project, res *output.Result) ([]types.ManifestEntry, error) {
	begin := time.Now()

	largeSize, err := types.ParseSize(viper.GetString("scan.large_file_size"))
	if err != nil {
		return nil, fmt.Errorf("invalid scan.large_file_size: %w", err)
	}
	transcodeSize, err := types.ParseSize(viper.GetString("scan.transcode_size"))
	if err != nil {
		return nil, fmt.Errorf("invalid scan.transcode_size: %w", err)
	}
	if !viper.GetBool("scan.transcode") {
		// Threshold past any real file size disables the effect.
		transcodeSize = 1 << 62
	}

	classifier := classify.New(
		classify.WithLargeFileThreshold(largeSize),
		classify.WithTranscodeThreshold(transcodeSize),
	)
	checksums := checksum.NewCache()

	session := scan.NewSession(proj.Root, classifier, checksums)
	if err := session.Scan(ctx); err != nil {
		return nil, err
	}

	prior, err := manifest.Load(proj.Root)
	if err != nil {
		return nil, fmt.Errorf("loading prior manifest: %w", err)
	}

	recon := reconcile.New(reconcile.DefaultTolerance).Reconcile(prior, session.Entries)

	// Only fresh entries are hashed; retained ones keep their digests.
	// Files that vanished between walk and hash drop out of the manifest
	// and land on the removal list instead of aborting the scan.
	filled, dropped := checksums.Fill(proj.Root, recon.Entries)
	if len(dropped) > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d files became unreadable during checksumming and were dropped", len(dropped)))
	}

	removed := append(recon.Removed, session.Removed...)
	removed = append(removed, dropped...)
	if err := manifest.Write(proj.Root, filled, removed); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	res.Scan = output.ScanStats{
		FilesScanned:     session.Stats.FilesScanned,
		JunkDeleted:      session.Stats.JunkDeleted,
		SubtreesExcluded: session.Stats.SubtreesExcluded,
		SymlinksSkipped:  session.Stats.SymlinksSkipped,
		Transcoded:       session.Stats.Transcoded,
		Duration:         time.Since(begin),
	}
	res.Manifest = output.ManifestStats{
		Entries:  len(filled),
		Retained: recon.Retained,
		Fresh:    recon.Fresh,
		Removed:  len(recon.Removed) + len(dropped),
	}

	return filled, nil
}

// newTransfer builds the configured transfer implementation.
func newTransfer(ctx context.Context) (remote.Transfer, func() error, error) {
	switch mode := viper.GetString("upload.mode"); mode {
	case "exec":
		return &remote.ExecTransfer{Binary: viper.GetString("upload.transfer_binary")}, func() error { return nil }, nil
	case "api":
		t, err := remote.NewGCSTransfer(ctx, viper.GetString("upload.credentials_file"))
		if err != nil {
			return nil, nil, err
		}
		return t, t.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown upload.mode: %q", mode)
	}
}

// runUploadPhase lists the remote prefix, plans the diff, and executes
// the transfers. It returns whether every planned task succeeded.
func runUploadPhase(ctx context.Context, proj project, dest types.Destination,
	entries []types.ManifestEntry, lastUpload time.Time, res *output.Result) (bool, error) {

	res.Destination = fmt.Sprintf("gs://%s/%s", dest.Bucket, dest.Prefix)

	lister, err := remote.NewGCSLister(ctx, viper.GetString("upload.credentials_file"))
	if err != nil {
		return false, fmt.Errorf("creating remote lister: %w", err)
	}
	defer lister.Close()

	records, err := lister.List(ctx, dest.Bucket, dest.Prefix)
	if err != nil {
		return false, fmt.Errorf("listing remote state: %w", err)
	}

	if !remote.CheckConsistency(records, lastUpload) {
		res.Warnings = append(res.Warnings,
			"remote objects exist but no upload is recorded for this project")
	}

	uploadPlan := plannerFor(proj, dest).Build(entries, records)
	res.Upload.Planned = len(uploadPlan.Tasks)
	res.Upload.SkippedCurrent = uploadPlan.SkippedCurrent
	res.Upload.SkippedArchived = uploadPlan.SkippedArchived
	if uploadPlan.LegacyLayout {
		res.Warnings = append(res.Warnings, "legacy flat remote layout detected, uploads use flat keys")
	}

	transfer, closeTransfer, err := newTransfer(ctx)
	if err != nil {
		return false, fmt.Errorf("creating transfer: %w", err)
	}
	defer closeTransfer() //nolint:errcheck

	executor := upload.NewExecutor(transfer,
		upload.WithWorkers(viper.GetInt("upload.workers")),
		upload.WithDryRun(viper.GetBool("dry_run")),
	)

	summary, runErr := executor.Run(ctx, dest, uploadPlan.Tasks)
	res.Upload.Succeeded = summary.Succeeded
	res.Upload.Failed = summary.Failed
	res.Upload.Skipped = summary.Skipped
	res.Upload.BytesTransferred = summary.BytesTransferred
	res.Upload.Duration = summary.Elapsed
	if runErr != nil {
		res.Interrupted = true
		return false, runErr
	}

	return summary.Complete(), nil
}

// printResult renders the run through the selected formatter.
func printResult(res *output.Result) error {
	if getQuiet() {
		return nil
	}

	formatter, err := output.Get(viper.GetString("output"))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, res); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	fmt.Print(buf.String())
	return nil
}
