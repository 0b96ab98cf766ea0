// Package archive ships finished result sets to S3 so sweep outputs
// survive host rotation. Archiving is best-effort: failures are reported
// to the caller, never retried here.
package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const uploadTimeout = 2 * time.Minute

// S3Uploader copies result files into an S3 bucket under a fixed prefix.
type S3Uploader struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewS3Uploader resolves AWS credentials from the default chain and returns
// an uploader bound to the given bucket. region may be empty to use the
// environment's default.
func NewS3Uploader(ctx context.Context, bucket, prefix, region string, log zerolog.Logger) (*S3Uploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Uploader{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
		log:      log.With().Str("component", "archive").Logger(),
	}, nil
}

// ArchiveDir uploads every regular file in dir under <prefix>/<runID>/.
// Subdirectories are skipped.
func (u *S3Uploader) ArchiveDir(runID, dir string) error {
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read results dir: %w", err)
	}

	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := u.uploadFile(ctx, filepath.Join(dir, entry.Name()), objectKey(u.prefix, runID, entry.Name())); err != nil {
			return err
		}
		uploaded++
	}

	u.log.Info().
		Str("run_id", runID).
		Str("bucket", u.bucket).
		Int("files", uploaded).
		Msg("Archived results to S3")
	return nil
}

func (u *S3Uploader) uploadFile(ctx context.Context, filePath, key string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// objectKey joins the configured prefix, run id, and file name into an S3
// key with forward slashes regardless of host OS.
func objectKey(prefix, runID, name string) string {
	if prefix == "" {
		return path.Join(runID, name)
	}
	return path.Join(prefix, runID, name)
}
