package classify

import (
	"strings"

	"github.com/seqops/curator/pkg/curator/types"
)

// Default thresholds for classification side effects.
const (
	// DefaultLargeFileThreshold flags catch-all files above this size
	// for human review.
	DefaultLargeFileThreshold = 5 * types.GiB

	// DefaultTranscodeThreshold schedules uncompressed sequence and
	// annotation text above this size for in-place gzip.
	DefaultTranscodeThreshold = 100 * types.MiB
)

// SniffFunc reads file content to recover a category-specific
// enrichment value, such as an instrument identifier. Implementations
// must tolerate unreadable files by returning an error; the classifier
// treats that as "no enrichment", never as a scan failure.
type SniffFunc func(path string) (string, error)

// Rule is one entry of the ordered classification list. Rules are
// evaluated top-down; the first rule whose Match returns true decides
// the file's category.
type Rule struct {
	// Name identifies the rule in logs and tests.
	Name string

	// Extensions are matched case-insensitively against the end of the
	// file name. An empty list combined with CatchAll matches anything.
	Extensions []string

	// Category is assigned on match.
	Category types.Category

	// Archivable is assigned on match.
	Archivable bool

	// Compressible marks files that should be gzip-compressed in place
	// when they exceed the transcode threshold.
	Compressible bool

	// Sniff, when set, is invoked on match to enrich the entry from
	// file content.
	Sniff SniffFunc

	// CatchAll marks the terminal rule that matches every file.
	CatchAll bool
}

// Match reports whether the rule applies to the given path.
func (r Rule) Match(path string) bool {
	if r.CatchAll {
		return true
	}
	name := strings.ToLower(path)
	for _, ext := range r.Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// DefaultRules returns the ordered rule list, most specific first. The
// catch-all is always last and always matches. Order is load-bearing:
// compressed sequence data must be tested before the generic ".gz"
// archive rule, and sidecar indexes before their parent formats.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "alignment",
			Extensions: []string{".bam", ".sam", ".cram", ".bai", ".crai", ".csi"},
			Category:   types.CategoryAlignment,
		},
		{
			Name:       "sequence-compressed",
			Extensions: []string{".fastq.gz", ".fq.gz", ".fasta.gz", ".fa.gz"},
			Category:   types.CategorySequence,
			Sniff:      SniffInstrumentGzip,
		},
		{
			Name:         "sequence",
			Extensions:   []string{".fastq", ".fq", ".fasta", ".fa"},
			Category:     types.CategorySequence,
			Compressible: true,
			Sniff:        SniffInstrument,
		},
		{
			Name:       "annotation-compressed",
			Extensions: []string{".vcf.gz", ".gff.gz", ".gtf.gz", ".bed.gz"},
			Category:   types.CategoryAnnotation,
		},
		{
			Name:         "annotation",
			Extensions:   []string{".vcf", ".gff", ".gff3", ".gtf", ".bed"},
			Category:     types.CategoryAnnotation,
			Compressible: true,
		},
		{
			Name:       "script",
			Extensions: []string{".sh", ".pl", ".py", ".r", ".rmd", ".ipynb"},
			Category:   types.CategoryScript,
			Archivable: true,
		},
		{
			Name:       "image",
			Extensions: []string{".png", ".jpg", ".jpeg", ".svg", ".pdf", ".tif", ".tiff"},
			Category:   types.CategoryImage,
			Archivable: true,
		},
		{
			Name:       "archive",
			Extensions: []string{".tar", ".tar.gz", ".tgz", ".zip", ".gz", ".bz2", ".xz"},
			Category:   types.CategoryArchive,
		},
		{
			Name:       "text",
			Extensions: []string{".txt", ".log", ".md", ".csv", ".tsv", ".json", ".yaml", ".yml", ".xml", ".html"},
			Category:   types.CategoryText,
			Archivable: true,
		},
		{
			Name:       "catch-all",
			Category:   types.CategoryOther,
			Archivable: true,
			CatchAll:   true,
		},
	}
}
