// Package output provides formatters for displaying curator pipeline
// results in various output formats (pretty, plain, json, yaml).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ScanStats summarizes the filesystem pass.
type ScanStats struct {
	// FilesScanned is the number of regular files visited.
	FilesScanned int `json:"files_scanned" yaml:"files_scanned"`

	// JunkDeleted is the number of junk files removed.
	JunkDeleted int `json:"junk_deleted" yaml:"junk_deleted"`

	// SubtreesExcluded is the number of instrument/QC subtrees skipped.
	SubtreesExcluded int `json:"subtrees_excluded" yaml:"subtrees_excluded"`

	// SymlinksSkipped is the number of symlinks left untouched.
	SymlinksSkipped int `json:"symlinks_skipped" yaml:"symlinks_skipped"`

	// Transcoded is the number of files recompressed in place.
	Transcoded int `json:"transcoded" yaml:"transcoded"`

	// Duration is the total scan time.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// ManifestStats summarizes reconciliation against the prior manifest.
type ManifestStats struct {
	// Entries is the manifest size after reconciliation.
	Entries int `json:"entries" yaml:"entries"`

	// Retained is how many entries carried forward from the prior
	// manifest without rehashing.
	Retained int `json:"retained" yaml:"retained"`

	// Fresh is how many entries were hashed this run.
	Fresh int `json:"fresh" yaml:"fresh"`

	// Removed is how many prior entries disappeared this run.
	Removed int `json:"removed" yaml:"removed"`
}

// UploadStats summarizes the transfer pool run.
type UploadStats struct {
	// Planned is the task count the planner produced.
	Planned int `json:"planned" yaml:"planned"`

	// SkippedCurrent counts entries whose remote copy was already newer.
	SkippedCurrent int `json:"skipped_current" yaml:"skipped_current"`

	// SkippedArchived counts entries carried by the archive bundle.
	SkippedArchived int `json:"skipped_archived" yaml:"skipped_archived"`

	// Succeeded, Failed and Skipped partition the attempted tasks.
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
	Skipped   int `json:"skipped" yaml:"skipped"`

	// BytesTransferred is the payload moved this run.
	BytesTransferred int64 `json:"bytes_transferred" yaml:"bytes_transferred"`

	// Duration is the wall time of the upload phase.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Result contains the complete output data for formatting one pipeline
// run over one project.
type Result struct {
	// Project is the project name.
	Project string `json:"project" yaml:"project"`

	// Root is the local project directory.
	Root string `json:"root" yaml:"root"`

	// Destination is the remote target, e.g. "gs://bucket/prefix".
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`

	// RunID identifies this pipeline invocation in the logs.
	RunID string `json:"run_id" yaml:"run_id"`

	Scan     ScanStats     `json:"scan" yaml:"scan"`
	Manifest ManifestStats `json:"manifest" yaml:"manifest"`
	Upload   UploadStats   `json:"upload" yaml:"upload"`

	// DryRun marks a run that classified but did not transfer.
	DryRun bool `json:"dry_run" yaml:"dry_run"`

	// Warnings contains any warning messages generated during the run.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Interrupted indicates the run was cancelled before completion.
	Interrupted bool `json:"interrupted" yaml:"interrupted"`
}

// Complete reports that every planned task was attempted and succeeded.
func (r *Result) Complete() bool {
	return !r.Interrupted && r.Upload.Failed == 0 && r.Upload.Skipped == 0
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	// It returns an error if formatting fails.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
// It returns an error if the formatter is not found.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
