package scan

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/seqops/curator/pkg/curator/checksum"
	"github.com/seqops/curator/pkg/curator/classify"
	"github.com/seqops/curator/pkg/curator/manifest"
	"github.com/seqops/curator/pkg/curator/types"
)

func writeFile(t *testing.T, root string, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newSession(t *testing.T, root string) *Session {
	t.Helper()
	return NewSession(root, classify.New(), checksum.NewCache())
}

func entryPaths(entries []types.ManifestEntry) []string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.RelPath)
	}
	sort.Strings(paths)
	return paths
}

func TestSession_Scan_BasicClassification(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "results/sample1.bam", "bamdata")
	writeFile(t, root, "docs/readme.txt", "hello")
	writeFile(t, root, "plots/coverage.png", "png")

	s := newSession(t, root)
	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []string{"docs/readme.txt", "plots/coverage.png", "results/sample1.bam"}
	got := entryPaths(s.Entries)
	if len(got) != len(want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}

	for _, e := range s.Entries {
		if e.Checksum != "" {
			t.Errorf("%s: checksum = %q, want empty before fill pass", e.RelPath, e.Checksum)
		}
		if e.Status != types.StatusNew {
			t.Errorf("%s: status = %v, want new", e.RelPath, e.Status)
		}
	}
	if s.Stats.FilesScanned != 3 {
		t.Errorf("FilesScanned = %d, want 3", s.Stats.FilesScanned)
	}
}

func TestSession_Scan_JunkDeleted(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "keep.txt", "x")
	junk := writeFile(t, root, "sub/.DS_Store", "x")
	backup := writeFile(t, root, "sub/notes.txt~", "x")
	swap := writeFile(t, root, "sub/.analysis.swp", "x")

	s := newSession(t, root)
	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	for _, p := range []string{junk, backup, swap} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("junk file %s still present", p)
		}
	}
	if s.Stats.JunkDeleted != 3 {
		t.Errorf("JunkDeleted = %d, want 3", s.Stats.JunkDeleted)
	}
	if got := entryPaths(s.Entries); len(got) != 1 || got[0] != "keep.txt" {
		t.Errorf("entries = %v, want [keep.txt]", got)
	}
}

func TestSession_Scan_OwnedFilesExcluded(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "data.txt", "x")
	writeFile(t, root, manifest.FileName, "File,Type\n")
	writeFile(t, root, manifest.RemovalFileName, "old.txt\n")

	s := newSession(t, root)
	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if got := entryPaths(s.Entries); len(got) != 1 || got[0] != "data.txt" {
		t.Errorf("entries = %v, want [data.txt]", got)
	}
	// The pipeline-owned files must survive, not be junk-deleted.
	if _, err := os.Stat(filepath.Join(root, manifest.FileName)); err != nil {
		t.Errorf("manifest file deleted: %v", err)
	}
}

func TestSession_Scan_ExcludedSubtrees(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "results/final.vcf.gz", "x")
	writeFile(t, root, "250114_M00123_0042_000000000-ABCDE/Data/L001/r1.bcl", "x")
	writeFile(t, root, "250114_M00123_0042_000000000-ABCDE/RunInfo.xml", "x")
	writeFile(t, root, "fastqc/sample1_fastqc.html", "x")

	s := newSession(t, root)
	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if got := entryPaths(s.Entries); len(got) != 1 || got[0] != "results/final.vcf.gz" {
		t.Errorf("entries = %v, want [results/final.vcf.gz]", got)
	}

	sort.Strings(s.Removed)
	wantRemoved := []string{
		"250114_M00123_0042_000000000-ABCDE/Data/L001/r1.bcl",
		"250114_M00123_0042_000000000-ABCDE/RunInfo.xml",
		"fastqc/sample1_fastqc.html",
	}
	if len(s.Removed) != len(wantRemoved) {
		t.Fatalf("Removed = %v, want %v", s.Removed, wantRemoved)
	}
	for i := range wantRemoved {
		if s.Removed[i] != wantRemoved[i] {
			t.Errorf("Removed[%d] = %q, want %q", i, s.Removed[i], wantRemoved[i])
		}
	}
	if s.Stats.SubtreesExcluded != 2 {
		t.Errorf("SubtreesExcluded = %d, want 2", s.Stats.SubtreesExcluded)
	}
}

func TestSession_Scan_SymlinksNeverFollowed(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}

	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, outside, "secret.bam", "outside the project")
	writeFile(t, root, "inside.txt", "x")

	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(outside, "secret.bam"), filepath.Join(root, "link.bam")); err != nil {
		t.Fatal(err)
	}

	s := newSession(t, root)
	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if got := entryPaths(s.Entries); len(got) != 1 || got[0] != "inside.txt" {
		t.Errorf("entries = %v, want [inside.txt]", got)
	}
	if s.Stats.SymlinksSkipped != 2 {
		t.Errorf("SymlinksSkipped = %d, want 2", s.Stats.SymlinksSkipped)
	}
}

func TestSession_Scan_HideInProgressFatal(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "data.txt", "x")
	if err := os.Mkdir(filepath.Join(root, HideDirName), 0o755); err != nil {
		t.Fatal(err)
	}

	s := newSession(t, root)
	err := s.Scan(context.Background())
	if err == nil {
		t.Fatal("Scan() error = nil, want ErrHideInProgress")
	}
	if len(s.Entries) != 0 {
		t.Errorf("entries collected despite fatal precondition: %v", entryPaths(s.Entries))
	}
}

func TestSession_Scan_SidecarsFeedChecksumCache(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "sample.bam", "bam content")
	writeFile(t, root, "sample.bam.md5", "0123456789abcdef0123456789abcdef  sample.bam\n")

	cache := checksum.NewCache()
	s := NewSession(root, classify.New(), cache)
	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if cache.SidecarCount() != 1 {
		t.Errorf("SidecarCount() = %d, want 1", cache.SidecarCount())
	}

	// The fill pass must pick up the sidecar digest instead of hashing.
	filled, dropped := cache.Fill(root, s.Entries)
	if len(dropped) != 0 {
		t.Fatalf("Fill() dropped = %v, want none", dropped)
	}
	for _, e := range filled {
		if e.RelPath == "sample.bam" && e.Checksum != "0123456789abcdef0123456789abcdef" {
			t.Errorf("sample.bam checksum = %q, want sidecar digest", e.Checksum)
		}
	}
}

func TestSession_Scan_TranscodeAppliedInPlace(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	content := "@M00123:1:FC:1:1:1:1 1:N:0:1\nACGTACGTACGTACGTACGT\n+\nIIIIIIIIIIIIIIIIIIII\n"
	orig := writeFile(t, root, "reads/big.fastq", content)

	classifier := classify.New(classify.WithTranscodeThreshold(10))
	s := NewSession(root, classifier, checksum.NewCache())
	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if _, err := os.Stat(orig); !os.IsNotExist(err) {
		t.Error("original uncompressed file still present after transcode")
	}
	compressed := filepath.Join(root, "reads", "big.fastq.gz")
	info, err := os.Stat(compressed)
	if err != nil {
		t.Fatalf("compressed file missing: %v", err)
	}

	if len(s.Entries) != 1 {
		t.Fatalf("entries = %v", entryPaths(s.Entries))
	}
	e := s.Entries[0]
	if e.RelPath != "reads/big.fastq.gz" {
		t.Errorf("RelPath = %q, want reads/big.fastq.gz", e.RelPath)
	}
	if e.Category != types.CategorySequence {
		t.Errorf("Category = %v, want sequence", e.Category)
	}
	if e.Size != info.Size() {
		t.Errorf("Size = %d, want post-transcode %d", e.Size, info.Size())
	}
	if s.Stats.Transcoded != 1 {
		t.Errorf("Transcoded = %d, want 1", s.Stats.Transcoded)
	}
}

func TestIsJunk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{".DS_Store", true},
		{"Thumbs.db", true},
		{"notes.txt~", true},
		{"analysis.swp", true},
		{"download.part", true},
		{".nfs000000000012d9ab", true}, // NFS silly-rename, matched as a dotfile
		{".hidden", true},
		{"sample.bam", false},
		{"reads.fastq.gz", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsJunk(tt.name); got != tt.want {
			t.Errorf("IsJunk(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSession_Scan_Cancellation(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "a.txt", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newSession(t, root)
	if err := s.Scan(ctx); err == nil {
		t.Fatal("Scan() error = nil, want context error")
	}
}
