// Package scan walks a project directory tree and produces the manifest
// entries for one pass. The walk is a single depth-first traversal;
// state accumulates in an explicit Session value rather than package
// globals, so the walker is a function from (root, session) to session.
//
// Checksums are not computed here: entries leave the scanner with empty
// digests and are filled in after reconciliation, so unchanged files are
// never re-hashed.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/klauspost/compress/gzip"
	"github.com/seqops/curator/pkg/curator/archive"
	"github.com/seqops/curator/pkg/curator/checksum"
	"github.com/seqops/curator/pkg/curator/classify"
	"github.com/seqops/curator/pkg/curator/logging"
	"github.com/seqops/curator/pkg/curator/manifest"
	"github.com/seqops/curator/pkg/curator/types"
)

var logger = logging.Get("scan")

// HideDirName is the hidden staging directory created while a project is
// being archived away. Its presence at the root means a prior run was
// interrupted mid-hide.
const HideDirName = ".curator-hide"

// ErrHideInProgress aborts a scan whose project root contains an
// in-progress hide staging directory. The scan fails before mutating any
// manifest state; the operator must resolve the interrupted run first.
var ErrHideInProgress = errors.New("hide staging directory present, prior run interrupted")

// Session accumulates the state of one scan pass.
type Session struct {
	// Root is the absolute project directory being scanned.
	Root string

	// Entries collects the manifest rows observed this pass, before
	// reconciliation. Checksums are empty.
	Entries []types.ManifestEntry

	// Removed collects relative paths destined for the removal list:
	// members of excluded subtrees and deleted symlinks.
	Removed []string

	// Stats summarizes the pass.
	Stats Stats

	classifier *Classifier
	checksums  *checksum.Cache

	// warnedSubtrees ensures excluded-subtree presence is logged once
	// per scan, not once per file.
	warnedSubtrees bool
}

// Classifier is the subset of the classify package the scanner needs,
// split out so tests can substitute rule sets.
type Classifier = classify.Classifier

// Stats counts what a scan pass did.
type Stats struct {
	DirsScanned      int
	FilesScanned     int
	BytesScanned     int64
	JunkDeleted      int
	SymlinksSkipped  int
	SubtreesExcluded int
	Transcoded       int
	Elapsed          time.Duration
}

// NewSession creates a scan session for the given project root.
// The checksum cache is shared with the post-reconciliation fill pass so
// sidecar digests collected during the walk are honored there.
func NewSession(root string, classifier *Classifier, checksums *checksum.Cache) *Session {
	return &Session{
		Root:       root,
		classifier: classifier,
		checksums:  checksums,
	}
}

// Scan performs the walk. It is single-threaded and synchronous; the
// context is only consulted between entries so an operator interrupt
// stops the pass promptly without tearing down mid-file.
func (s *Session) Scan(ctx context.Context) error {
	start := time.Now()

	info, err := os.Stat(s.Root)
	if err != nil {
		return fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project root %s: %w", s.Root, os.ErrInvalid)
	}

	// Structural precondition: an interrupted hide must be resolved by a
	// human before any manifest mutation.
	if _, err := os.Stat(filepath.Join(s.Root, HideDirName)); err == nil {
		return fmt.Errorf("%s: %w", s.Root, ErrHideInProgress)
	}

	err = filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logger.Warn("walk error", "path", path, "error", err)
			return nil
		}
		return s.visit(path, d)
	})
	if err != nil {
		return err
	}

	s.Stats.Elapsed = time.Since(start)
	logger.Info("scan complete",
		"root", s.Root,
		"files", s.Stats.FilesScanned,
		"dirs", s.Stats.DirsScanned,
		"junk_deleted", s.Stats.JunkDeleted,
		"transcoded", s.Stats.Transcoded,
		"elapsed", s.Stats.Elapsed.String())
	return nil
}

// visit handles one directory entry.
func (s *Session) visit(path string, d fs.DirEntry) error {
	if path == s.Root {
		return nil
	}

	rel, err := filepath.Rel(s.Root, path)
	if err != nil {
		return fmt.Errorf("relativizing %s: %w", path, err)
	}
	rel = filepath.ToSlash(rel)

	if d.IsDir() {
		return s.visitDir(path, rel, d)
	}

	// Symlinks are never dereferenced. Junk-named links are removed like
	// any other junk; the rest are skipped and noted on the removal list
	// so downstream consumers know they are untracked.
	if d.Type()&fs.ModeSymlink != 0 {
		if IsJunk(d.Name()) {
			return s.deleteJunk(path)
		}
		s.Stats.SymlinksSkipped++
		s.Removed = append(s.Removed, rel)
		logger.Debug("symlink skipped", "path", rel)
		return nil
	}

	if !d.Type().IsRegular() {
		logger.Debug("non-regular file skipped", "path", rel)
		return nil
	}

	return s.visitFile(path, rel, d)
}

// visitDir applies directory skip rules.
func (s *Session) visitDir(path, rel string, d fs.DirEntry) error {
	name := d.Name()

	// Hidden directories (VCS metadata, editor state) are not part of
	// the project inventory.
	if name[0] == '.' {
		return filepath.SkipDir
	}

	if IsExcludedSubtree(name) {
		if !s.warnedSubtrees {
			logger.Warn("excluded subtrees present, members go to removal list", "first", rel)
			s.warnedSubtrees = true
		}
		s.Stats.SubtreesExcluded++
		if err := s.spoolSubtree(path, rel); err != nil {
			return err
		}
		return filepath.SkipDir
	}

	s.Stats.DirsScanned++
	return nil
}

// visitFile classifies and records one regular file.
func (s *Session) visitFile(path, rel string, d fs.DirEntry) error {
	name := d.Name()

	if manifest.IsOwned(name) || name == archive.BundleName(s.Root) {
		return nil // never manifest our own metadata files or the bundle
	}

	if IsJunk(name) {
		return s.deleteJunk(path)
	}

	// Sidecar digests feed the checksum side-table; the sidecar itself
	// is tracked like any other small text file.
	if checksum.IsSidecar(name) {
		if err := s.checksums.LoadSidecar(path); err != nil {
			logger.Warn("unreadable checksum sidecar", "path", rel, "error", err)
		}
	}

	info, err := d.Info()
	if err != nil {
		logger.Warn("stat failed", "path", rel, "error", err)
		return nil
	}

	size := info.Size()
	modTime := info.ModTime()

	res, effect := s.classifier.Classify(path, size)
	if effect != nil {
		newSize, newModTime, terr := s.applyTranscode(effect)
		if terr != nil {
			// The file stays usable uncompressed; record it as observed.
			logger.Warn("transcode failed, keeping original", "path", rel, "error", terr)
		} else {
			s.Stats.Transcoded++
			rel = rel + ".gz"
			size = newSize
			modTime = newModTime
			res, _ = s.classifier.Classify(effect.NewPath, newSize)
		}
	}

	s.Stats.FilesScanned++
	s.Stats.BytesScanned += size

	s.Entries = append(s.Entries, types.ManifestEntry{
		RelPath:    rel,
		Category:   res.Category,
		Archivable: res.Archivable,
		Size:       size,
		ModTime:    modTime,
		Info:       res.Info,
		Status:     types.StatusNew,
	})
	return nil
}

// deleteJunk removes a junk file immediately.
func (s *Session) deleteJunk(path string) error {
	if err := os.Remove(path); err != nil {
		logger.Warn("junk delete failed", "path", path, "error", err)
		return nil
	}
	s.Stats.JunkDeleted++
	logger.Debug("junk deleted", "path", path)
	return nil
}

// spoolSubtree appends every member of an excluded subtree to the
// removal list without classification. Such subtrees (raw instrument run
// folders, QC-only output) can hold on the order of 10^5 files and must
// not be individually manifested. The enumeration is read-only, so the
// parallel walker is safe here.
func (s *Session) spoolSubtree(dir, relDir string) error {
	conf := fastwalk.Config{Follow: false}

	var mu sync.Mutex
	var members []string

	err := fastwalk.Walk(&conf, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("excluded subtree walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(s.Root, path)
		if rerr != nil {
			return nil
		}
		mu.Lock()
		members = append(members, filepath.ToSlash(rel))
		mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("enumerating excluded subtree %s: %w", relDir, err)
	}

	s.Removed = append(s.Removed, members...)
	return nil
}

// applyTranscode compresses the file in place and returns the new size
// and mtime. On success the original file is gone and effect.NewPath
// exists.
func (s *Session) applyTranscode(effect *classify.TranscodeEffect) (int64, time.Time, error) {
	src, err := os.Open(effect.Path)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(effect.NewPath)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("creating compressed file: %w", err)
	}

	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		_ = zw.Close()
		_ = dst.Close()
		_ = os.Remove(effect.NewPath)
		return 0, time.Time{}, fmt.Errorf("compressing: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = dst.Close()
		_ = os.Remove(effect.NewPath)
		return 0, time.Time{}, fmt.Errorf("finalizing gzip stream: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(effect.NewPath)
		return 0, time.Time{}, fmt.Errorf("closing compressed file: %w", err)
	}

	if err := os.Remove(effect.Path); err != nil {
		return 0, time.Time{}, fmt.Errorf("removing original: %w", err)
	}

	info, err := os.Stat(effect.NewPath)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("re-statting compressed file: %w", err)
	}

	logger.Info("transcoded in place", "path", effect.NewPath,
		"size", types.FormatSize(info.Size()))
	return info.Size(), info.ModTime(), nil
}
