// Package plan diffs the reconciled manifest against remote object state
// and produces the minimal ordered set of upload tasks. Decisions are
// timestamp-based: an entry is skipped only when the remote copy is
// strictly newer than the manifest's mtime. Content is not re-hashed at
// planning time.
package plan

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seqops/curator/pkg/curator/archive"
	"github.com/seqops/curator/pkg/curator/logging"
	"github.com/seqops/curator/pkg/curator/types"
)

var logger = logging.Get("plan")

// LegacyPrefix is the subdirectory that the old flat remote layout did
// not preserve: "data/x/y.bam" used to upload as "x/y.bam".
const LegacyPrefix = "data/"

// Plan is the ordered task list plus what the planner decided about the
// project's remote layout.
type Plan struct {
	// Tasks is the minimal ordered set of transfers, manifest order
	// (sorted by relative path), with the archive bundle last when
	// present.
	Tasks []types.UploadTask

	// LegacyLayout reports that the flat legacy key convention was
	// detected and applied project-wide.
	LegacyLayout bool

	// SkippedCurrent counts entries whose remote copy is already newer.
	SkippedCurrent int

	// SkippedArchived counts archivable entries excluded because the
	// aggregate bundle carries them.
	SkippedArchived int
}

// Planner builds upload plans.
type Planner struct {
	root string
	dest types.Destination
}

// New creates a Planner for a project root and destination.
func New(root string, dest types.Destination) *Planner {
	return &Planner{root: root, dest: dest}
}

// Build diffs manifest entries against the remote records.
//
// The legacy-layout check is a documented heuristic: the first entry
// found to be current under the stripped legacy key switches the whole
// project to legacy keys for the remainder of the plan. Layouts do not
// mix within one project, so per-file evaluation would only mask a
// broken tree; a genuinely mixed project will misplan and must be
// repaired by hand.
func (p *Planner) Build(entries []types.ManifestEntry, remote []types.RemoteObject) Plan {
	byPath := make(map[string]time.Time, len(remote))
	for _, r := range remote {
		byPath[r.RelPath] = r.LastModified
	}

	bundlePath := archive.BundlePath(p.root)
	bundleInfo, bundleErr := os.Stat(bundlePath)
	bundleExists := bundleErr == nil

	var plan Plan

	for _, e := range entries {
		if e.Archivable && bundleExists {
			plan.SkippedArchived++
			continue
		}

		key := e.RelPath
		if plan.LegacyLayout {
			key = legacyKey(key)
		}

		if mod, ok := byPath[key]; ok && mod.After(e.ModTime) {
			plan.SkippedCurrent++
			continue
		}

		// Not current under the expected key: before planning the
		// upload, probe the legacy alternate once.
		if !plan.LegacyLayout {
			if alt := legacyKey(e.RelPath); alt != e.RelPath {
				if mod, ok := byPath[alt]; ok && mod.After(e.ModTime) {
					logger.Warn("legacy flat layout detected, applying to whole project",
						"path", e.RelPath, "legacy_key", alt)
					plan.LegacyLayout = true
					plan.SkippedCurrent++
					continue
				}
			}
		}

		plan.Tasks = append(plan.Tasks, types.UploadTask{
			LocalPath: filepath.Join(p.root, filepath.FromSlash(e.RelPath)),
			RemoteKey: p.remoteKey(key),
			Size:      e.Size,
		})
	}

	if bundleExists {
		rel := filepath.ToSlash(archive.BundleName(p.root))
		if mod, ok := byPath[rel]; !ok || !mod.After(bundleInfo.ModTime()) {
			plan.Tasks = append(plan.Tasks, types.UploadTask{
				LocalPath: bundlePath,
				RemoteKey: p.remoteKey(rel),
				Size:      bundleInfo.Size(),
			})
		} else {
			plan.SkippedCurrent++
		}
	}

	logger.Info("upload plan built",
		"tasks", len(plan.Tasks),
		"skipped_current", plan.SkippedCurrent,
		"skipped_archived", plan.SkippedArchived,
		"legacy_layout", plan.LegacyLayout)
	return plan
}

// remoteKey joins the destination prefix with a relative key.
func (p *Planner) remoteKey(rel string) string {
	prefix := strings.Trim(p.dest.Prefix, "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

// legacyKey strips the legacy subdirectory from a relative path.
// Paths outside that subtree are returned unchanged.
func legacyKey(rel string) string {
	return strings.TrimPrefix(rel, LegacyPrefix)
}
