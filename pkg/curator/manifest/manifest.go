// Package manifest persists the per-project file inventory. The manifest
// is a UTF-8 CSV with a header row; the paired removal list is plain
// text, one relative path per line. The two files are written together
// atomically: both appear, or neither does.
package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/seqops/curator/pkg/curator/types"
)

// Names of the pipeline-owned files written into the project root.
// The scanner excludes them from their own scan.
const (
	FileName        = "curator-manifest.csv"
	RemovalFileName = "curator-removed.txt"
)

// header is the manifest CSV column layout.
var header = []string{"File", "Type", "Archived", "Size", "Date", "MD5", "Info"}

// ErrMalformedRow is returned when a manifest row cannot be parsed.
var ErrMalformedRow = errors.New("malformed manifest row")

// Path returns the manifest path for a project root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// RemovalPath returns the removal-list path for a project root.
func RemovalPath(root string) string {
	return filepath.Join(root, RemovalFileName)
}

// IsOwned reports whether name is one of the pipeline-owned metadata
// files that must never appear in their own manifest.
func IsOwned(name string) bool {
	return name == FileName || name == RemovalFileName
}

// Load reads the manifest for a project root. A missing manifest is not
// an error: it returns an empty map, degrading reconciliation to a full
// scan. The returned map is keyed by relative path.
func Load(root string) (map[string]types.ManifestEntry, error) {
	f, err := os.Open(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]types.ManifestEntry{}, nil
		}
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	entries := make(map[string]types.ManifestEntry, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		entry, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", i+1, err)
		}
		entries[entry.RelPath] = entry
	}

	return entries, nil
}

// parseRow converts one CSV record into a ManifestEntry.
func parseRow(row []string) (types.ManifestEntry, error) {
	category, err := types.ParseCategory(row[1])
	if err != nil {
		return types.ManifestEntry{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}

	archivable := row[2] == "Y"
	if row[2] != "Y" && row[2] != "N" {
		return types.ManifestEntry{}, fmt.Errorf("%w: Archived = %q", ErrMalformedRow, row[2])
	}

	size, err := strconv.ParseInt(row[3], 10, 64)
	if err != nil || size < 0 {
		return types.ManifestEntry{}, fmt.Errorf("%w: Size = %q", ErrMalformedRow, row[3])
	}

	modTime, err := types.ParseDate(row[4])
	if err != nil {
		return types.ManifestEntry{}, fmt.Errorf("%w: Date = %q", ErrMalformedRow, row[4])
	}

	return types.ManifestEntry{
		RelPath:    row[0],
		Category:   category,
		Archivable: archivable,
		Size:       size,
		ModTime:    modTime,
		Checksum:   row[5],
		Info:       row[6],
		Status:     types.StatusRetained,
	}, nil
}

// Write persists the manifest and its paired removal list for a project
// root. Entries are written sorted by relative path for deterministic
// output; removed paths merge into any existing removal list so a
// project accumulates its full deletion history across scans. The list
// is a set: excluded-subtree members and skipped symlinks re-emitted on
// every scan do not duplicate their lines.
//
// Both files go through temp-file-and-rename, and the manifest rename
// happens only after the removal list succeeded, so a crash cannot leave
// a new manifest next to a stale removal list. A crash between the two
// renames leaves a new removal list next to the stale manifest; the
// history semantics make that safe to leave in place, and the next scan
// rewrites the pair.
func Write(root string, entries []types.ManifestEntry, removed []string) error {
	sorted := make([]types.ManifestEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RelPath < sorted[j].RelPath
	})

	manifestTmp, err := writeManifestTemp(root, sorted)
	if err != nil {
		return err
	}

	removalTmp, err := writeRemovalTemp(root, removed)
	if err != nil {
		_ = os.Remove(manifestTmp)
		return err
	}

	if err := os.Rename(removalTmp, RemovalPath(root)); err != nil {
		_ = os.Remove(manifestTmp)
		_ = os.Remove(removalTmp)
		return fmt.Errorf("replacing removal list: %w", err)
	}

	if err := os.Rename(manifestTmp, Path(root)); err != nil {
		_ = os.Remove(manifestTmp)
		return fmt.Errorf("replacing manifest: %w", err)
	}

	return nil
}

// writeManifestTemp writes the manifest rows to a temp file and returns
// its path.
func writeManifestTemp(root string, entries []types.ManifestEntry) (string, error) {
	tmp := Path(root) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("creating manifest temp file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("writing manifest header: %w", err)
	}

	for _, e := range entries {
		archived := "N"
		if e.Archivable {
			archived = "Y"
		}
		row := []string{
			e.RelPath,
			string(e.Category),
			archived,
			strconv.FormatInt(e.Size, 10),
			types.FormatDate(e.ModTime),
			e.Checksum,
			e.Info,
		}
		if err := w.Write(row); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return "", fmt.Errorf("writing manifest row for %s: %w", e.RelPath, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("flushing manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("closing manifest temp file: %w", err)
	}

	return tmp, nil
}

// writeRemovalTemp writes the removal list (existing history plus the
// newly removed paths, first occurrence wins) to a temp file and returns
// its path. Deduplication also heals lists that accumulated duplicates
// before it existed.
func writeRemovalTemp(root string, removed []string) (string, error) {
	existing, err := LoadRemovals(root)
	if err != nil {
		return "", err
	}

	tmp := RemovalPath(root) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("creating removal temp file: %w", err)
	}

	seen := make(map[string]struct{}, len(existing)+len(removed))
	for _, p := range append(existing, removed...) {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if _, err := fmt.Fprintln(f, p); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return "", fmt.Errorf("writing removal list: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("closing removal temp file: %w", err)
	}

	return tmp, nil
}

// LoadRemovals reads the removal-list history for a project root.
// A missing file yields an empty list.
func LoadRemovals(root string) ([]string, error) {
	data, err := os.ReadFile(RemovalPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading removal list: %w", err)
	}

	var paths []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			if line := string(data[start:i]); line != "" {
				paths = append(paths, line)
			}
			start = i + 1
		}
	}
	if start < len(data) {
		paths = append(paths, string(data[start:]))
	}
	return paths, nil
}
