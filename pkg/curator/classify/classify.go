// Package classify maps file names to content categories for the curator
// manifest. Classification is rule-driven: an ordered list of patterns is
// evaluated top-down with first-match-wins semantics, ending in a
// catch-all that always matches. A small number of rules additionally
// request an in-place transcode of the file; that side effect is surfaced
// as an explicit value for the caller to apply, never performed here.
package classify

import (
	"github.com/seqops/curator/pkg/curator/logging"
	"github.com/seqops/curator/pkg/curator/types"
)

var logger = logging.Get("classify")

// Result is the outcome of classifying a single file.
type Result struct {
	// Category is the content class from the closed set.
	Category types.Category

	// Archivable marks the file as eligible for aggregate-archive
	// bundling instead of individual upload.
	Archivable bool

	// Info is the category-specific enrichment (e.g. the instrument
	// identifier from a FASTQ header). Empty when unavailable.
	Info string
}

// TranscodeEffect describes an in-place compression the caller should
// apply before recording the file. The classifier only declares the
// effect; applying it and re-statting the file is the scanner's job, so
// the mutation is visible at the call site rather than hidden in a rule.
type TranscodeEffect struct {
	// Path is the file to compress.
	Path string

	// NewPath is the path the file will have after compression.
	NewPath string
}

// Classifier evaluates the ordered rule list against file names.
type Classifier struct {
	rules []Rule

	// largeFileThreshold is the size above which a catch-all match is
	// logged as an anomaly. Zero disables the warning.
	largeFileThreshold int64

	// transcodeThreshold is the size above which uncompressed
	// sequence/annotation text is scheduled for in-place compression.
	transcodeThreshold int64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLargeFileThreshold sets the size above which an unclassifiable
// file triggers a warning.
func WithLargeFileThreshold(n int64) Option {
	return func(c *Classifier) { c.largeFileThreshold = n }
}

// WithTranscodeThreshold sets the size above which eligible uncompressed
// files are scheduled for compression.
func WithTranscodeThreshold(n int64) Option {
	return func(c *Classifier) { c.transcodeThreshold = n }
}

// WithRules replaces the default rule list. Intended for tests; the
// catch-all must remain last.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) { c.rules = rules }
}

// New creates a Classifier with the default rule list.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		rules:              DefaultRules(),
		largeFileThreshold: DefaultLargeFileThreshold,
		transcodeThreshold: DefaultTranscodeThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the category and archivable flag for the file at
// path with the given size. The second return value, when non-nil, is a
// compression the caller must apply and re-stat before recording the
// entry. Rules are evaluated in order; the first match wins and the
// catch-all guarantees a match.
func (c *Classifier) Classify(path string, size int64) (Result, *TranscodeEffect) {
	for _, rule := range c.rules {
		if !rule.Match(path) {
			continue
		}

		res := Result{
			Category:   rule.Category,
			Archivable: rule.Archivable,
		}

		if rule.Sniff != nil {
			// Enrichment reads file content; a read failure leaves Info
			// empty rather than aborting the scan.
			info, err := rule.Sniff(path)
			if err != nil {
				logger.Debug("content sniff failed", "path", path, "error", err)
			} else {
				res.Info = info
			}
		}

		var effect *TranscodeEffect
		if rule.Compressible && c.transcodeThreshold > 0 && size > c.transcodeThreshold {
			effect = &TranscodeEffect{
				Path:    path,
				NewPath: path + ".gz",
			}
		}

		if rule.CatchAll && c.largeFileThreshold > 0 && size > c.largeFileThreshold {
			logger.Warn("large file matched no specific rule",
				"path", path, "size", types.FormatSize(size))
		}

		return res, effect
	}

	// Unreachable as long as the catch-all is present; kept as a guard
	// against a misconfigured rule list.
	return Result{Category: types.CategoryOther, Archivable: true}, nil
}
