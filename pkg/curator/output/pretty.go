package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
// It produces a visually appealing output suitable for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatBody(r))
	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}

	return nil
}

// formatHeader builds the header box with project metadata.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("%s %s",
		LabelStyle.Render("Project:"), ValueStyle.Render(r.Project)))
	lines = append(lines, fmt.Sprintf("%s %s",
		LabelStyle.Render("Root:"), ValueStyle.Render(r.Root)))
	if r.Destination != "" {
		lines = append(lines, fmt.Sprintf("%s %s",
			LabelStyle.Render("Destination:"), ValueStyle.Render(r.Destination)))
	}
	if r.DryRun {
		lines = append(lines, WarningStyle.Render("Dry run: nothing was transferred"))
	}
	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Run interrupted"))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatBody builds the per-phase statistics lines.
func (f *PrettyFormatter) formatBody(r *Result) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s %s in %s\n",
		LabelStyle.Render("Scanned:"),
		ValueStyle.Render(fmt.Sprintf("%d files", r.Scan.FilesScanned)),
		formatDuration(r.Scan.Duration)))

	if r.Scan.JunkDeleted > 0 || r.Scan.SubtreesExcluded > 0 || r.Scan.Transcoded > 0 {
		b.WriteString(fmt.Sprintf("%s %d junk deleted, %d subtrees excluded, %d transcoded\n",
			LabelStyle.Render("Cleanup:"),
			r.Scan.JunkDeleted, r.Scan.SubtreesExcluded, r.Scan.Transcoded))
	}

	b.WriteString(fmt.Sprintf("%s %d entries (%d retained, %d fresh, %d removed)\n",
		LabelStyle.Render("Manifest:"),
		r.Manifest.Entries, r.Manifest.Retained, r.Manifest.Fresh, r.Manifest.Removed))

	uploadLine := fmt.Sprintf("%d planned, %d uploaded", r.Upload.Planned, r.Upload.Succeeded)
	if r.Upload.Failed > 0 {
		uploadLine += ", " + DangerStyle.Render(fmt.Sprintf("%d failed", r.Upload.Failed))
	}
	if r.Upload.Skipped > 0 {
		uploadLine += fmt.Sprintf(", %d skipped", r.Upload.Skipped)
	}
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Upload:"), uploadLine))

	return b.String()
}

// formatFooter builds the summary box.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	status := SuccessStyle.Render("complete")
	if !r.Complete() {
		status = DangerStyle.Render("incomplete")
	}

	transferred := humanize.IBytes(uint64(r.Upload.BytesTransferred)) //nolint:gosec // byte counts are non-negative
	content := fmt.Sprintf("%s %s  %s %s in %s",
		LabelStyle.Render("Status:"), status,
		LabelStyle.Render("Transferred:"), ValueStyle.Render(transferred),
		formatDuration(r.Upload.Duration))

	return FooterBox.Render(content)
}

// formatWarnings renders the warning list.
func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var lines []string
	for _, warning := range warnings {
		lines = append(lines, WarningStyle.Render("! "+warning))
	}
	return strings.Join(lines, "\n") + "\n"
}

// formatDuration renders a duration compactly for display.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
