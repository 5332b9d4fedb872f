package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seqops/curator/pkg/curator/types"
)

func sampleEntries() []types.ManifestEntry {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return []types.ManifestEntry{
		{
			RelPath:  "results/sample1.bam",
			Category: types.CategoryAlignment,
			Size:     1 << 30,
			ModTime:  t0,
			Checksum: "0123456789abcdef0123456789abcdef",
			Status:   types.StatusNew,
		},
		{
			RelPath:    "notes, final.txt",
			Category:   types.CategoryText,
			Archivable: true,
			Size:       420,
			ModTime:    t0.Add(time.Hour),
			Checksum:   "fedcba9876543210fedcba9876543210",
			Status:     types.StatusNew,
		},
		{
			RelPath:  "reads/lane1.fastq.gz",
			Category: types.CategorySequence,
			Size:     2 << 30,
			ModTime:  t0,
			Checksum: "00112233445566778899aabbccddeeff",
			Info:     "M00123",
			Status:   types.StatusNew,
		},
	}
}

func TestWriteLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	entries := sampleEntries()

	if err := Write(root, entries, []string{"old/gone.txt"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	loaded, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != len(entries) {
		t.Fatalf("Load() returned %d entries, want %d", len(loaded), len(entries))
	}

	for _, want := range entries {
		got, ok := loaded[want.RelPath]
		if !ok {
			t.Fatalf("entry %q missing after round trip", want.RelPath)
		}
		if got.Category != want.Category {
			t.Errorf("%s: Category = %v, want %v", want.RelPath, got.Category, want.Category)
		}
		if got.Archivable != want.Archivable {
			t.Errorf("%s: Archivable = %v, want %v", want.RelPath, got.Archivable, want.Archivable)
		}
		if got.Size != want.Size {
			t.Errorf("%s: Size = %d, want %d", want.RelPath, got.Size, want.Size)
		}
		if !got.ModTime.Equal(want.ModTime) {
			t.Errorf("%s: ModTime = %v, want %v", want.RelPath, got.ModTime, want.ModTime)
		}
		if got.Checksum != want.Checksum {
			t.Errorf("%s: Checksum = %q, want %q", want.RelPath, got.Checksum, want.Checksum)
		}
		if got.Info != want.Info {
			t.Errorf("%s: Info = %q, want %q", want.RelPath, got.Info, want.Info)
		}
	}

	removed, err := LoadRemovals(root)
	if err != nil {
		t.Fatalf("LoadRemovals() error = %v", err)
	}
	if len(removed) != 1 || removed[0] != "old/gone.txt" {
		t.Errorf("LoadRemovals() = %v, want [old/gone.txt]", removed)
	}
}

func TestWrite_SortedAndDeterministic(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := Write(root, sampleEntries(), nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	first, err := os.ReadFile(Path(root))
	if err != nil {
		t.Fatal(err)
	}

	// Writing the same entries in a different order produces identical bytes.
	reversed := sampleEntries()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	root2 := t.TempDir()
	if err := Write(root2, reversed, nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	second, err := os.ReadFile(Path(root2))
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Error("manifest bytes differ across entry orderings")
	}

	lines := strings.Split(strings.TrimSpace(string(first)), "\n")
	if len(lines) != 4 {
		t.Fatalf("manifest has %d lines, want 4", len(lines))
	}
	if !strings.HasPrefix(lines[0], "File,Type,Archived,Size,Date,MD5") {
		t.Errorf("header = %q", lines[0])
	}
	// Path with a comma is quoted per CSV rules.
	if !strings.HasPrefix(lines[1], `"notes, final.txt"`) {
		t.Errorf("quoted path row = %q", lines[1])
	}
}

func TestWrite_AppendsRemovalHistory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := Write(root, nil, []string{"a.txt"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := Write(root, nil, []string{"b.txt", "c.txt"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	removed, err := LoadRemovals(root)
	if err != nil {
		t.Fatalf("LoadRemovals() error = %v", err)
	}
	want := []string{"a.txt", "b.txt", "c.txt"}
	if len(removed) != len(want) {
		t.Fatalf("LoadRemovals() = %v, want %v", removed, want)
	}
	for i := range want {
		if removed[i] != want[i] {
			t.Errorf("removal[%d] = %q, want %q", i, removed[i], want[i])
		}
	}
}

func TestWrite_RemovalHistoryDeduplicated(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	// Excluded-subtree members are re-emitted on every scan; repeating a
	// scan must leave the removal list unchanged.
	subtree := []string{
		"250114_M00123_0042_000000000-ABCDE/Data/L001/r1.bcl",
		"250114_M00123_0042_000000000-ABCDE/RunInfo.xml",
	}
	if err := Write(root, nil, subtree); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	first, err := os.ReadFile(RemovalPath(root))
	if err != nil {
		t.Fatal(err)
	}

	if err := Write(root, nil, subtree); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	second, err := os.ReadFile(RemovalPath(root))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("removal list grew across identical scans:\nfirst:\n%ssecond:\n%s", first, second)
	}

	// Genuinely new removals still append, once each.
	if err := Write(root, nil, []string{"old/gone.txt", "old/gone.txt"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	removed, err := LoadRemovals(root)
	if err != nil {
		t.Fatalf("LoadRemovals() error = %v", err)
	}
	want := append(subtree, "old/gone.txt")
	if len(removed) != len(want) {
		t.Fatalf("LoadRemovals() = %v, want %v", removed, want)
	}
	for i := range want {
		if removed[i] != want[i] {
			t.Errorf("removal[%d] = %q, want %q", i, removed[i], want[i])
		}
	}
}

func TestWrite_NoTempLeftovers(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := Write(root, sampleEntries(), []string{"x"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLoad_MissingManifest(t *testing.T) {
	t.Parallel()

	loaded, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("Load() = %d entries, want 0", len(loaded))
	}
}

func TestLoad_MalformedRow(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	bad := "File,Type,Archived,Size,Date,MD5,Info\n" +
		"a.txt,text,MAYBE,10,2025-06-01 10:00:00 +0000,aa,\n"
	if err := os.WriteFile(filepath.Join(root, FileName), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(root); err == nil {
		t.Fatal("Load() error = nil, want malformed row error")
	}
}

func TestIsOwned(t *testing.T) {
	t.Parallel()

	if !IsOwned(FileName) || !IsOwned(RemovalFileName) {
		t.Error("pipeline-owned files not recognized")
	}
	if IsOwned("sample.bam") {
		t.Error("sample.bam wrongly treated as pipeline-owned")
	}
}
