// Package config provides configuration management for the curator
// pipeline.
package config

// Default configuration values for curator.
const (
	// DefaultLargeFileSize is the size past which a file is flagged for
	// operator review.
	DefaultLargeFileSize = "5GB"

	// DefaultTranscodeSize is the size past which an uncompressed
	// sequence file is recompressed in place.
	DefaultTranscodeSize = "100MB"

	// DefaultWorkers is the upload pool size.
	DefaultWorkers = 4

	// DefaultTransferBinary is the external copy tool for the exec
	// transfer mode.
	DefaultTransferBinary = "gcloud"

	// DefaultStorageClass is the storage class applied to uploads.
	DefaultStorageClass = "COLDLINE"

	// DefaultTransferMode selects between "api" and "exec" transfers.
	DefaultTransferMode = "api"
)
