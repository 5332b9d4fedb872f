// Package archive bundles a project's archivable entries into a single
// compressed tarball so cold-tier files travel as one object instead of
// thousands of small ones.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/seqops/curator/pkg/curator/logging"
	"github.com/seqops/curator/pkg/curator/types"
)

var logger = logging.Get("archive")

// Suffix is appended to the project directory name to form the bundle
// file name.
const Suffix = "-archive.tar.gz"

// BundleName returns the bundle file name for a project root, derived
// from the directory base name.
func BundleName(root string) string {
	return filepath.Base(filepath.Clean(root)) + Suffix
}

// BundlePath returns the absolute bundle location inside the project.
func BundlePath(root string) string {
	return filepath.Join(root, BundleName(root))
}

// Exists reports whether the project currently carries a bundle.
func Exists(root string) bool {
	info, err := os.Stat(BundlePath(root))
	return err == nil && info.Mode().IsRegular()
}

// Result summarizes one bundling pass.
type Result struct {
	Path      string
	Members   int
	BytesIn   int64
	BytesOut  int64
	Skipped   int
}

// Build writes a tar.gz containing every archivable manifest entry,
// preserving relative paths. The bundle is written to a temporary file
// and renamed into place so a crash never leaves a half-written bundle
// that the planner would treat as complete.
func Build(ctx context.Context, root string, entries []types.ManifestEntry) (Result, error) {
	res := Result{Path: BundlePath(root)}

	tmp, err := os.CreateTemp(root, BundleName(root)+".tmp-*")
	if err != nil {
		return res, fmt.Errorf("creating bundle temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	gz, err := gzip.NewWriterLevel(tmp, gzip.BestSpeed)
	if err != nil {
		return res, fmt.Errorf("creating gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !e.Archivable {
			res.Skipped++
			continue
		}
		n, err := addMember(tw, root, e.RelPath)
		if err != nil {
			return res, fmt.Errorf("bundling %s: %w", e.RelPath, err)
		}
		res.Members++
		res.BytesIn += n
	}

	if res.Members == 0 {
		// Nothing to bundle; leave no empty tarball behind.
		return res, nil
	}

	if err := tw.Close(); err != nil {
		return res, fmt.Errorf("closing tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return res, fmt.Errorf("closing gzip stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return res, fmt.Errorf("closing bundle temp file: %w", err)
	}

	info, err := os.Stat(tmp.Name())
	if err != nil {
		return res, fmt.Errorf("stating bundle: %w", err)
	}
	res.BytesOut = info.Size()

	if err := os.Rename(tmp.Name(), res.Path); err != nil {
		return res, fmt.Errorf("placing bundle: %w", err)
	}

	logger.Info("archive bundle written",
		"path", res.Path, "members", res.Members,
		"bytes_in", res.BytesIn, "bytes_out", res.BytesOut)
	return res, nil
}

// addMember streams one file into the tar writer under its relative path.
func addMember(tw *tar.Writer, root, rel string) (int64, error) {
	path := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return 0, err
	}
	hdr.Name = rel
	if err := tw.WriteHeader(hdr); err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return io.Copy(tw, f)
}
