package archive

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/seqops/curator/pkg/curator/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func bundleMembers(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(gz)

	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, hdr.Name)
	}
	sort.Strings(names)
	return names
}

func TestBuild_OnlyArchivableMembers(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "raw/reads_R1.fastq.gz", "sequence data")
	writeFile(t, root, "raw/reads_R2.fastq.gz", "sequence data")
	writeFile(t, root, "results/summary.txt", "keep hot")

	entries := []types.ManifestEntry{
		{RelPath: "raw/reads_R1.fastq.gz", Archivable: true},
		{RelPath: "raw/reads_R2.fastq.gz", Archivable: true},
		{RelPath: "results/summary.txt", Archivable: false},
	}

	res, err := Build(context.Background(), root, entries)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Members != 2 {
		t.Errorf("Members = %d, want 2", res.Members)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	if !Exists(root) {
		t.Fatal("Exists() = false after Build")
	}

	want := []string{"raw/reads_R1.fastq.gz", "raw/reads_R2.fastq.gz"}
	got := bundleMembers(t, res.Path)
	if len(got) != len(want) {
		t.Fatalf("members = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("member %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuild_MissingMemberFails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	entries := []types.ManifestEntry{{RelPath: "gone.bam", Archivable: true}}

	if _, err := Build(context.Background(), root, entries); err == nil {
		t.Fatal("Build() error = nil, want missing-member error")
	}
	if Exists(root) {
		t.Error("partial bundle left in place after failure")
	}
}

func TestBundleName_FollowsDirectory(t *testing.T) {
	t.Parallel()

	if got := BundleName("/data/projects/proj42"); got != "proj42-archive.tar.gz" {
		t.Errorf("BundleName = %q", got)
	}
	if got := BundleName("/data/projects/proj42/"); got != "proj42-archive.tar.gz" {
		t.Errorf("BundleName with trailing slash = %q", got)
	}
}
