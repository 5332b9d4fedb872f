// Package reconcile merges a fresh directory scan against the previously
// persisted manifest. Entries unchanged within the mtime tolerance
// window are retained with their prior checksum and category, avoiding
// recomputation; entries no longer on disk move to the removal list.
// This is the performance-critical merge: checksum computation over
// large sequencing files dominates runtime on a cold scan.
package reconcile

import (
	"sort"
	"time"

	"github.com/seqops/curator/pkg/curator/logging"
	"github.com/seqops/curator/pkg/curator/types"
)

var logger = logging.Get("reconcile")

// DefaultTolerance is the mtime comparison window. Filesystem and
// network-share clocks disagree by up to a couple of seconds (FAT
// stores 2s granularity), so exact equality would re-checksum unchanged
// files on every run.
const DefaultTolerance = 2 * time.Second

// Result is the outcome of reconciling one scan.
type Result struct {
	// Entries is the new manifest: the union of retained and new
	// entries, sorted by relative path.
	Entries []types.ManifestEntry

	// Removed lists the relative paths present in the prior manifest
	// but absent from the current scan.
	Removed []string

	// Retained counts entries carried forward without recomputation.
	Retained int

	// Fresh counts entries that were fully classified and checksummed
	// this scan.
	Fresh int
}

// Reconciler merges scans against prior manifests.
type Reconciler struct {
	tolerance time.Duration
}

// New creates a Reconciler with the given mtime tolerance window.
// A non-positive tolerance uses the default.
func New(tolerance time.Duration) *Reconciler {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Reconciler{tolerance: tolerance}
}

// Reconcile merges the prior manifest with the current scan output.
//
// For every path in prior: if the current scan observed it with the
// same size and an mtime within tolerance, the prior entry is carried
// forward as retained, keeping its checksum, category and enrichment.
// If absent from the scan, the path moves to the removal list. Every
// scanned path not in prior stays as scanned (new).
//
// An empty prior manifest degrades to a full scan: every entry is new.
func (r *Reconciler) Reconcile(prior map[string]types.ManifestEntry, scanned []types.ManifestEntry) Result {
	current := make(map[string]types.ManifestEntry, len(scanned))
	for _, e := range scanned {
		current[e.RelPath] = e
	}

	var res Result

	for path, old := range prior {
		cur, ok := current[path]
		if !ok {
			res.Removed = append(res.Removed, path)
			continue
		}

		if r.unchanged(old, cur) {
			kept := old
			kept.Status = types.StatusRetained
			// Re-stamp with the freshly observed mtime so the tolerance
			// window does not drift across many months of re-runs.
			kept.ModTime = cur.ModTime
			current[path] = kept
			res.Retained++
		}
	}

	res.Entries = make([]types.ManifestEntry, 0, len(current))
	for _, e := range current {
		if e.Status == types.StatusNew {
			res.Fresh++
		}
		res.Entries = append(res.Entries, e)
	}
	sort.Slice(res.Entries, func(i, j int) bool {
		return res.Entries[i].RelPath < res.Entries[j].RelPath
	})
	sort.Strings(res.Removed)

	return res
}

// unchanged decides whether a previously manifested file can be carried
// forward without re-hashing. Size must match exactly; mtime within the
// tolerance window. A size match with an mtime beyond tolerance is
// logged as an anomaly but still treated as unchanged content; the
// comparison is a heuristic, not a cryptographic verification.
func (r *Reconciler) unchanged(old, cur types.ManifestEntry) bool {
	if cur.Size != old.Size {
		return false
	}

	delta := cur.ModTime.Sub(old.ModTime)
	if delta < 0 {
		delta = -delta
	}
	if delta <= r.tolerance {
		return true
	}

	logger.Warn("same size, suspicious time delta",
		"path", cur.RelPath, "delta", delta.String(),
		"size", types.FormatSize(cur.Size))
	return true
}
