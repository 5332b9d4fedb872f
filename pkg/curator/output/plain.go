package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// PlainFormatter formats output as a simple aligned key/value listing.
// It produces plain text output suitable for scripting and piping.
// No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	rows := [][2]string{
		{"project", r.Project},
		{"root", r.Root},
		{"destination", r.Destination},
		{"files_scanned", fmt.Sprintf("%d", r.Scan.FilesScanned)},
		{"junk_deleted", fmt.Sprintf("%d", r.Scan.JunkDeleted)},
		{"subtrees_excluded", fmt.Sprintf("%d", r.Scan.SubtreesExcluded)},
		{"transcoded", fmt.Sprintf("%d", r.Scan.Transcoded)},
		{"manifest_entries", fmt.Sprintf("%d", r.Manifest.Entries)},
		{"retained", fmt.Sprintf("%d", r.Manifest.Retained)},
		{"fresh", fmt.Sprintf("%d", r.Manifest.Fresh)},
		{"removed", fmt.Sprintf("%d", r.Manifest.Removed)},
		{"planned", fmt.Sprintf("%d", r.Upload.Planned)},
		{"uploaded", fmt.Sprintf("%d", r.Upload.Succeeded)},
		{"failed", fmt.Sprintf("%d", r.Upload.Failed)},
		{"bytes", humanize.IBytes(uint64(r.Upload.BytesTransferred))}, //nolint:gosec // byte counts are non-negative
	}
	if r.DryRun {
		rows = append(rows, [2]string{"dry_run", "true"})
	}

	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		if _, err := tw.Write([]byte(row[0] + "\t" + row[1] + "\n")); err != nil {
			return err
		}
	}
	for _, warning := range r.Warnings {
		if _, err := tw.Write([]byte("warning\t" + warning + "\n")); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
