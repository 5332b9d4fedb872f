// Package remote talks to the destination object store. It provides the
// bucket/prefix state lister used by the upload planner and the per-file
// transfer primitive used by the upload executor.
package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/seqops/curator/pkg/curator/logging"
	"github.com/seqops/curator/pkg/curator/types"
)

var logger = logging.Get("remote")

// Lister enumerates the current contents of a destination prefix.
type Lister interface {
	// List returns one record per object under the prefix, with keys
	// relativized by stripping the prefix. Zero-byte directory markers
	// (keys ending in "/") are excluded.
	List(ctx context.Context, bucket, prefix string) ([]types.RemoteObject, error)
}

// GCSLister lists objects through the Cloud Storage API.
type GCSLister struct {
	client *storage.Client
}

// NewGCSLister creates a lister. credentialsFile may be empty to use
// application default credentials.
func NewGCSLister(ctx context.Context, credentialsFile string) (*GCSLister, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSLister{client: client}, nil
}

// Close releases the underlying client.
func (l *GCSLister) Close() error {
	return l.client.Close()
}

// List streams the paginated object listing under bucket/prefix.
func (l *GCSLister) List(ctx context.Context, bucket, prefix string) ([]types.RemoteObject, error) {
	query := &storage.Query{Prefix: normalizePrefix(prefix)}

	var records []types.RemoteObject
	it := l.client.Bucket(bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing gs://%s/%s: %w", bucket, prefix, err)
		}

		rel, ok := relativizeKey(attrs.Name, prefix)
		if !ok {
			continue
		}

		records = append(records, types.RemoteObject{
			RelPath:      rel,
			LastModified: attrs.Updated,
		})
	}

	logger.Debug("remote listing complete",
		"bucket", bucket, "prefix", prefix, "objects", len(records))
	return records, nil
}

// normalizePrefix ensures a non-empty prefix ends in exactly one slash,
// so "proj42" does not also match "proj421/...".
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// relativizeKey strips the prefix from an object key. Directory markers
// and keys outside the prefix are rejected.
func relativizeKey(key, prefix string) (string, bool) {
	if strings.HasSuffix(key, "/") {
		return "", false // zero-byte directory marker
	}
	p := normalizePrefix(prefix)
	if p == "" {
		return key, key != ""
	}
	if !strings.HasPrefix(key, p) {
		return "", false
	}
	rel := strings.TrimPrefix(key, p)
	return rel, rel != ""
}

// CheckConsistency flags remote content that exists without a recorded
// upload event. This is a warning for human review, not a fatal error:
// the planner proceeds either way.
func CheckConsistency(records []types.RemoteObject, lastUpload time.Time) bool {
	if len(records) > 0 && lastUpload.IsZero() {
		logger.Warn("remote objects exist but no upload is recorded for this project",
			"objects", len(records))
		return false
	}
	return true
}
