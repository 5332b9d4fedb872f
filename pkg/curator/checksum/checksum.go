// Package checksum computes content digests for manifest entries.
// Digests are MD5, matching the sidecar checksum files that sequencing
// pipelines drop next to their outputs; a side-table of those sidecar
// values is consulted before any recomputation.
package checksum

import (
	"bufio"
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/seqops/curator/pkg/curator/logging"
	"github.com/seqops/curator/pkg/curator/types"
)

var logger = logging.Get("checksum")

// DefaultDuplicateThreshold is the minimum size at which two distinct
// paths sharing a digest are logged as a data-integrity warning.
// Duplicate content below this size (small scripts, boilerplate text)
// is common and not a signal.
const DefaultDuplicateThreshold = 1 * types.MiB

// SidecarExtension is the suffix of precomputed-checksum sidecar files.
const SidecarExtension = ".md5"

// Cache computes file digests, consulting a side-table of precomputed
// values before hashing, and tracks digests already seen this scan to
// flag suspicious duplicates. It is scan-session-scoped and not safe
// for concurrent use; scanning is single-threaded.
type Cache struct {
	// sidecar maps bare file name to the digest recovered from a
	// sibling .md5 file encountered earlier in the walk.
	sidecar map[string]string

	// seen maps digest to the first path observed with it, for
	// duplicate detection.
	seen map[string]string

	duplicateThreshold int64
}

// NewCache creates an empty checksum cache.
func NewCache() *Cache {
	return &Cache{
		sidecar:            make(map[string]string),
		seen:               make(map[string]string),
		duplicateThreshold: DefaultDuplicateThreshold,
	}
}

// Sum returns the hex-encoded MD5 digest of the file at path. If the
// side-table holds a precomputed digest for the file's bare name, it is
// returned without reading the file.
func (c *Cache) Sum(path string, size int64) (string, error) {
	name := filepath.Base(path)
	if digest, ok := c.sidecar[name]; ok {
		logger.Debug("sidecar digest hit", "file", name)
		c.recordDigest(digest, path, size)
		return digest, nil
	}

	digest, err := sumFile(path)
	if err != nil {
		return "", err
	}
	c.recordDigest(digest, path, size)
	return digest, nil
}

// recordDigest tracks the digest for duplicate detection. Collisions
// across large files are a signal for human review, not an error.
func (c *Cache) recordDigest(digest, path string, size int64) {
	if prev, ok := c.seen[digest]; ok && prev != path && size >= c.duplicateThreshold {
		logger.Warn("duplicate content digest across large files",
			"digest", digest, "path", path, "previous", prev,
			"size", types.FormatSize(size))
		return
	}
	if _, ok := c.seen[digest]; !ok {
		c.seen[digest] = path
	}
}

// Fill computes digests for every entry whose checksum is still empty,
// joining relative paths against root. Reconciliation runs before this
// pass, so retained entries arrive with their prior digest and are
// skipped; only new or changed files are read.
//
// A file that vanished or turned unreadable since the walk is logged,
// left out of the returned entries, and reported in dropped so the
// caller can route it to the removal list. The pass always finishes the
// remaining entries; a transient read failure never discards the scan.
func (c *Cache) Fill(root string, entries []types.ManifestEntry) (kept []types.ManifestEntry, dropped []string) {
	kept = make([]types.ManifestEntry, 0, len(entries))
	for _, e := range entries {
		if e.Checksum == "" {
			digest, err := c.Sum(filepath.Join(root, filepath.FromSlash(e.RelPath)), e.Size)
			if err != nil {
				logger.Warn("checksum failed, dropping entry", "path", e.RelPath, "error", err)
				dropped = append(dropped, e.RelPath)
				continue
			}
			e.Checksum = digest
		}
		kept = append(kept, e)
	}
	return kept, dropped
}

// LoadSidecar parses a .md5 sidecar file and adds its digests to the
// side-table. The standard md5sum format is "digest  filename", one per
// line; a bare digest line applies to the sidecar's own stem (the file
// name without the .md5 suffix). Malformed lines are skipped.
func (c *Cache) LoadSidecar(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening sidecar %s: %w", path, err)
	}
	defer f.Close()

	stem := strings.TrimSuffix(filepath.Base(path), SidecarExtension)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		digest := strings.ToLower(fields[0])
		if !isHexDigest(digest) {
			continue
		}

		name := stem
		if len(fields) > 1 {
			// md5sum prefixes binary-mode names with '*'.
			name = filepath.Base(strings.TrimPrefix(fields[1], "*"))
		}
		c.sidecar[name] = digest
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading sidecar %s: %w", path, err)
	}

	return nil
}

// SidecarCount returns the number of digests in the side-table.
func (c *Cache) SidecarCount() int {
	return len(c.sidecar)
}

// IsSidecar reports whether the file name is a checksum sidecar.
func IsSidecar(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), SidecarExtension)
}

// sumFile hashes the file content.
func sumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New() //nolint:gosec // content fingerprint, not a security boundary
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// isHexDigest reports whether s is a 32-character hex string.
func isHexDigest(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
