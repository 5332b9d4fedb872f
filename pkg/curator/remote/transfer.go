package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/seqops/curator/pkg/curator/types"
)

// DefaultTransferTimeout bounds one transfer invocation so a hung
// network call cannot stall the executor pool.
const DefaultTransferTimeout = 30 * time.Minute

// Transfer performs one file upload. Implementations must honor the
// context deadline and must treat dryRun as a full classification pass
// that skips only the data movement.
type Transfer interface {
	Upload(ctx context.Context, localPath string, dest types.Destination, remoteKey string, dryRun bool) error
}

// GCSTransfer uploads through the Cloud Storage API writer.
type GCSTransfer struct {
	client *storage.Client
}

// NewGCSTransfer creates an API-backed transfer. credentialsFile may be
// empty to use application default credentials.
func NewGCSTransfer(ctx context.Context, credentialsFile string) (*GCSTransfer, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSTransfer{client: client}, nil
}

// Close releases the underlying client.
func (t *GCSTransfer) Close() error {
	return t.client.Close()
}

// Upload copies one local file to the destination key.
func (t *GCSTransfer) Upload(ctx context.Context, localPath string, dest types.Destination, remoteKey string, dryRun bool) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	if dryRun {
		// Same failure classification as a real run (missing or
		// unreadable local files surface identically), no transfer.
		logger.Info("dry-run upload", "local", localPath,
			"dest", fmt.Sprintf("gs://%s/%s", dest.Bucket, remoteKey))
		return nil
	}

	obj := t.client.Bucket(dest.Bucket).Object(remoteKey)
	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if dest.StorageClass != "" {
		w.StorageClass = dest.StorageClass
	}

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copying %s to gs://%s/%s: %w", localPath, dest.Bucket, remoteKey, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing gs://%s/%s: %w", dest.Bucket, remoteKey, err)
	}

	return nil
}

// ExecTransfer shells out to the gcloud CLI for each file. It exists for
// hosts where the transfer tool owns retry and credential handling; the
// process inherits the per-task context, so a timeout or cancellation
// kills the child rather than orphaning it.
type ExecTransfer struct {
	// Binary is the transfer command, "gcloud" when empty.
	Binary string
}

// Upload invokes one external copy process for the file.
func (t *ExecTransfer) Upload(ctx context.Context, localPath string, dest types.Destination, remoteKey string, dryRun bool) error {
	if _, err := os.Stat(localPath); err != nil {
		return fmt.Errorf("local file: %w", err)
	}

	binary := t.Binary
	if binary == "" {
		binary = "gcloud"
	}

	args := []string{"storage", "cp", localPath,
		fmt.Sprintf("gs://%s/%s", dest.Bucket, remoteKey)}
	if dest.StorageClass != "" {
		args = append(args, "--storage-class", strings.ToLower(dest.StorageClass))
	}

	if dryRun {
		logger.Info("dry-run transfer command", "cmd", binary+" "+strings.Join(args, " "))
		return nil
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %s: %w: %s", binary, strings.Join(args, " "), err,
			strings.TrimSpace(string(out)))
	}
	return nil
}
