package classify

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/seqops/curator/pkg/curator/types"
)

func TestClassifier_Classify(t *testing.T) {
	t.Parallel()

	c := New()

	tests := []struct {
		name           string
		path           string
		wantCategory   types.Category
		wantArchivable bool
	}{
		{"bam alignment", "results/sample1.bam", types.CategoryAlignment, false},
		{"bam index", "results/sample1.bam.bai", types.CategoryAlignment, false},
		{"cram", "results/sample1.cram", types.CategoryAlignment, false},
		{"compressed fastq", "reads/lane1_R1.fastq.gz", types.CategorySequence, false},
		{"uncompressed fasta", "refs/genome.fa", types.CategorySequence, false},
		{"compressed vcf", "calls/variants.vcf.gz", types.CategoryAnnotation, false},
		{"bed", "regions/targets.bed", types.CategoryAnnotation, false},
		{"shell script", "bin/run_pipeline.sh", types.CategoryScript, true},
		{"r markdown", "reports/qc.Rmd", types.CategoryScript, true},
		{"png image", "plots/coverage.png", types.CategoryImage, true},
		{"tarball", "backup/old_runs.tar.gz", types.CategoryArchive, false},
		{"bare gzip", "misc/notes.gz", types.CategoryArchive, false},
		{"log text", "pipeline.log", types.CategoryText, true},
		{"tsv text", "counts.tsv", types.CategoryText, true},
		{"unknown falls to catch-all", "data/strange.h5x", types.CategoryOther, true},
		{"no extension", "README", types.CategoryOther, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, _ := c.Classify(tt.path, 1024)
			if res.Category != tt.wantCategory {
				t.Errorf("Classify(%q) category = %v, want %v", tt.path, res.Category, tt.wantCategory)
			}
			if res.Archivable != tt.wantArchivable {
				t.Errorf("Classify(%q) archivable = %v, want %v", tt.path, res.Archivable, tt.wantArchivable)
			}
		})
	}
}

func TestClassifier_FirstMatchWins(t *testing.T) {
	t.Parallel()

	c := New()

	// ".fastq.gz" must hit the compressed-sequence rule, not the generic
	// ".gz" archive rule further down the list.
	res, _ := c.Classify("reads/lane1.fastq.gz", 1024)
	if res.Category != types.CategorySequence {
		t.Errorf("fastq.gz category = %v, want sequence", res.Category)
	}

	// Reordering the rules changes the outcome: rule precedence is the
	// data structure, not code order.
	reversed := []Rule{
		{Name: "archive", Extensions: []string{".gz"}, Category: types.CategoryArchive},
		{Name: "sequence", Extensions: []string{".fastq.gz"}, Category: types.CategorySequence},
		{Name: "catch-all", Category: types.CategoryOther, Archivable: true, CatchAll: true},
	}
	c2 := New(WithRules(reversed))
	res, _ = c2.Classify("reads/lane1.fastq.gz", 1024)
	if res.Category != types.CategoryArchive {
		t.Errorf("reordered rules category = %v, want archive", res.Category)
	}
}

func TestClassifier_TranscodeEffect(t *testing.T) {
	t.Parallel()

	c := New(WithTranscodeThreshold(1000))

	t.Run("oversized uncompressed fastq is scheduled", func(t *testing.T) {
		t.Parallel()
		_, effect := c.Classify("reads/big.fastq", 2000)
		if effect == nil {
			t.Fatal("Classify() effect = nil, want transcode")
		}
		if effect.NewPath != "reads/big.fastq.gz" {
			t.Errorf("NewPath = %q, want reads/big.fastq.gz", effect.NewPath)
		}
	})

	t.Run("small file is left alone", func(t *testing.T) {
		t.Parallel()
		_, effect := c.Classify("reads/small.fastq", 500)
		if effect != nil {
			t.Errorf("Classify() effect = %+v, want nil", effect)
		}
	})

	t.Run("already compressed sequence is never transcoded", func(t *testing.T) {
		t.Parallel()
		_, effect := c.Classify("reads/big.fastq.gz", 5000)
		if effect != nil {
			t.Errorf("Classify() effect = %+v, want nil", effect)
		}
	})
}

func TestClassifier_SniffFailureTolerated(t *testing.T) {
	t.Parallel()

	c := New()

	// The file does not exist, so the sniff fails; classification must
	// still succeed with an empty enrichment.
	res, _ := c.Classify(filepath.Join(t.TempDir(), "missing.fastq"), 100)
	if res.Category != types.CategorySequence {
		t.Errorf("category = %v, want sequence", res.Category)
	}
	if res.Info != "" {
		t.Errorf("Info = %q, want empty on sniff failure", res.Info)
	}
}

func TestSniffInstrument(t *testing.T) {
	t.Parallel()

	t.Run("extracts instrument from fastq header", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "reads.fastq")
		content := "@M00123:58:000000000-ABCDE:1:1101:15589:1331 1:N:0:1\nGATTACA\n+\nIIIIIII\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		got, err := SniffInstrument(path)
		if err != nil {
			t.Fatalf("SniffInstrument() error = %v", err)
		}
		if got != "M00123" {
			t.Errorf("SniffInstrument() = %q, want M00123", got)
		}
	})

	t.Run("fasta header yields empty enrichment", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "genome.fa")
		if err := os.WriteFile(path, []byte(">chr1 Homo sapiens\nACGT\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		got, err := SniffInstrument(path)
		if err != nil {
			t.Fatalf("SniffInstrument() error = %v", err)
		}
		if got != "" {
			t.Errorf("SniffInstrument() = %q, want empty", got)
		}
	})

	t.Run("reads through gzip", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "reads.fastq.gz")

		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		zw := gzip.NewWriter(f)
		if _, err := zw.Write([]byte("@A01889:102:HGK7TDRX3:1:2101:1000:1016 1:N:0:4\nACGT\n")); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}

		got, err := SniffInstrumentGzip(path)
		if err != nil {
			t.Fatalf("SniffInstrumentGzip() error = %v", err)
		}
		if got != "A01889" {
			t.Errorf("SniffInstrumentGzip() = %q, want A01889", got)
		}
	})
}
