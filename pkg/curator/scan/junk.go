package scan

import (
	"regexp"
	"strings"
)

// junkNames are exact file names dropped by editors, desktop
// environments and analysis tooling. They are deleted on sight and never
// manifested.
var junkNames = map[string]struct{}{
	".DS_Store":   {},
	"Thumbs.db":   {},
	"desktop.ini": {},
	".Rhistory":   {},
	".RData":      {},
}

// junkSuffixes match backup and ecosystem spawn files by extension.
var junkSuffixes = []string{
	"~",     // editor backups
	".swp",  // vim swap
	".swo",  // vim swap
	".pyc",  // python bytecode
	".tmp",  // transient temp files
	".part", // partial downloads
}

// IsJunk reports whether the file name matches the delete-on-sight
// rules: hidden dotfiles, backup-tilde files and known spawn files.
func IsJunk(name string) bool {
	if name == "" {
		return false
	}
	if _, ok := junkNames[name]; ok {
		return true
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, suffix := range junkSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// runFolderPattern matches raw instrument run folders, e.g.
// "250114_M00123_0042_000000000-ABCDE" (date, instrument, run number,
// flowcell).
var runFolderPattern = regexp.MustCompile(`^\d{6}_[A-Za-z0-9]+_\d{4}_[A-Za-z0-9-]+$`)

// qcFolderNames are analysis subfolders whose contents are QC-only and
// regenerable; they are never individually tracked.
var qcFolderNames = map[string]struct{}{
	"fastqc":       {},
	"FastQC":       {},
	"multiqc_data": {},
	"qc_reports":   {},
}

// IsExcludedSubtree reports whether a directory name marks a subtree
// whose members go straight to the removal list without classification.
func IsExcludedSubtree(name string) bool {
	if _, ok := qcFolderNames[name]; ok {
		return true
	}
	return runFolderPattern.MatchString(name)
}
