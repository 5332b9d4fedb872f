// Package types provides core data types for the curator project-data
// lifecycle tool. It includes the manifest entry model, remote object
// records, upload tasks, and utility functions for parsing and formatting
// file sizes and manifest timestamps.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// DateFormat is the manifest timestamp layout. It is locale-stable and
// parses back to an absolute instant including the UTC offset.
const DateFormat = "2006-01-02 15:04:05 -0700"

// Category is the content class assigned to a tracked file.
// The set is closed: every file maps to exactly one category, with
// CategoryOther as the catch-all.
type Category string

// The closed category set, most specific first.
const (
	CategorySequence   Category = "sequence"
	CategoryAlignment  Category = "alignment"
	CategoryAnnotation Category = "annotation"
	CategoryText       Category = "text"
	CategoryImage      Category = "image"
	CategoryArchive    Category = "archive"
	CategoryScript     Category = "script"
	CategoryOther      Category = "other"
)

// ErrUnknownCategory is returned when a manifest row names a category
// outside the closed set.
var ErrUnknownCategory = errors.New("unknown category")

// ParseCategory parses a manifest Type column value into a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategorySequence:
		return CategorySequence, nil
	case CategoryAlignment:
		return CategoryAlignment, nil
	case CategoryAnnotation:
		return CategoryAnnotation, nil
	case CategoryText:
		return CategoryText, nil
	case CategoryImage:
		return CategoryImage, nil
	case CategoryArchive:
		return CategoryArchive, nil
	case CategoryScript:
		return CategoryScript, nil
	case CategoryOther:
		return CategoryOther, nil
	default:
		return CategoryOther, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// Status is the scan-local reconciliation state of a manifest entry.
// It is never persisted: stale-removed entries are excluded from the
// written manifest and appended to the removal list instead.
type Status int

// Reconciliation states.
const (
	// StatusNew marks an entry observed by the current scan but absent
	// from the prior manifest. New entries are fully classified and
	// checksummed.
	StatusNew Status = iota

	// StatusRetained marks an entry carried forward unchanged from the
	// prior manifest. Checksum and category are copied, not recomputed.
	StatusRetained

	// StatusStaleRemoved marks a prior entry no longer observed on disk.
	StatusStaleRemoved
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusRetained:
		return "retained"
	case StatusStaleRemoved:
		return "stale-removed"
	default:
		return "unknown"
	}
}

// ManifestEntry is one row of the durable per-project inventory.
type ManifestEntry struct {
	// RelPath is the POSIX-relative, slash-separated path of the file
	// under the project root. It is the unique key within a manifest.
	RelPath string

	// Category is the content class assigned by the classifier.
	Category Category

	// Archivable marks the file as eligible for bundling into the
	// aggregate archive instead of individual upload.
	Archivable bool

	// Size is the file size in bytes at scan time.
	Size int64

	// ModTime is the filesystem mtime captured at scan time.
	ModTime time.Time

	// Checksum is the hex-encoded MD5 digest of the file content.
	// It is empty only transiently, before computation.
	Checksum string

	// Info holds a category-specific enrichment field, such as the
	// instrument identifier recovered from a FASTQ header. It is empty
	// when enrichment is unavailable or failed.
	Info string

	// Status is the scan-local reconciliation state. Not persisted.
	Status Status
}

// RemoteObject records one object observed under the destination prefix.
type RemoteObject struct {
	// RelPath is the object key with the destination prefix stripped.
	RelPath string

	// LastModified is the object's last-modified timestamp as reported
	// by the remote store.
	LastModified time.Time
}

// UploadTask pairs a local file with its destination key. Tasks are
// generated by the upload planner and consumed exactly once by the
// upload executor.
type UploadTask struct {
	// LocalPath is the absolute path of the file to transfer.
	LocalPath string

	// RemoteKey is the full object key under the destination bucket.
	RemoteKey string

	// Size is the file size in bytes, used for throughput accounting.
	Size int64
}

// Destination identifies where a project's files are synchronized to.
type Destination struct {
	// Bucket is the object-storage bucket name.
	Bucket string `json:"bucket" yaml:"bucket"`

	// Prefix is the key prefix under the bucket, without leading or
	// trailing slashes.
	Prefix string `json:"prefix" yaml:"prefix"`

	// Profile names the credentials profile (service-account key) used
	// for this destination.
	Profile string `json:"profile" yaml:"profile"`

	// StorageClass optionally overrides the bucket's default storage
	// class for uploaded objects (e.g. NEARLINE, COLDLINE).
	StorageClass string `json:"storage_class,omitempty" yaml:"storage_class,omitempty"`
}

// sizePattern matches size strings like "100M", "2G", "1.5GiB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in
// bytes. Plain byte counts, "512B", "100K"/"100KiB", "50M", "2G" and
// "1T" forms are accepted; decimal values are truncated to the nearest
// byte.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units.
func FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}

// FormatDate renders a timestamp in the manifest Date column layout.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// ParseDate parses a manifest Date column value back to an instant.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateFormat, s)
}
