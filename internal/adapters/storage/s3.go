// internal/adapters/storage/s3.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// S3Config locates the archive bucket. Endpoint and UsePathStyle target
// MinIO or LocalStack.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
}

// S3Storage keeps export archives as objects in one bucket
type S3Storage struct {
	client *s3.Client
	up     *manager.Uploader
	down   *manager.Downloader
	bucket string
	logger *slog.Logger
}

var _ ports.StorageClient = (*S3Storage)(nil)

// NewS3Storage connects to the bucket, creating it when it is missing
func NewS3Storage(ctx context.Context, cfg *S3Config, logger *slog.Logger) (*S3Storage, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.EndpointResolver = s3.EndpointResolverFromURL(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	s := &S3Storage{
		client: client,
		up:     manager.NewUploader(client),
		down:   manager.NewDownloader(client),
		bucket: cfg.Bucket,
		logger: logger.With(slog.String("storage", "s3"), slog.String("bucket", cfg.Bucket)),
	}
	if err := s.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *S3Storage) ensureBucket(ctx context.Context, region string) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &s.bucket}); err == nil {
		return nil
	}

	in := &s3.CreateBucketInput{Bucket: &s.bucket}
	// us-east-1 rejects an explicit location constraint
	if region != "" && region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, in); err != nil {
		return fmt.Errorf("archive bucket %s is unavailable: %w", s.bucket, err)
	}
	s.logger.InfoContext(ctx, "archive bucket created")
	return nil
}

// Upload stores an archive and returns its object URL. The export kind
// taken from the key is recorded as object metadata.
func (s *S3Storage) Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}

	res, err := s.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        data,
		ContentType: &contentType,
		Metadata: map[string]string{
			"export-kind": archiveKind(key),
			"archived-at": time.Now().UTC().Format(time.RFC3339),
			"archive-id":  uuid.NewString(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive %s: %w", key, err)
	}

	s.logger.InfoContext(ctx, "archive uploaded", slog.String("key", key), slog.String("location", res.Location))
	return res.Location, nil
}

// Download reads a whole archive into memory
func (s *S3Storage) Download(ctx context.Context, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	if _, err := s.down.Download(ctx, buf, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return nil, fmt.Errorf("failed to download archive %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// Delete removes an archive
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return fmt.Errorf("failed to delete archive %s: %w", key, err)
	}
	s.logger.InfoContext(ctx, "archive deleted", slog.String("key", key))
	return nil
}

// GetPresignedURL returns a time limited download link
func (s *S3Storage) GetPresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s3.NewPresignClient(s.client).PresignGetObject(ctx,
		&s3.GetObjectInput{Bucket: &s.bucket, Key: &key},
		s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign archive %s: %w", key, err)
	}
	return req.URL, nil
}

// List returns archive keys under prefix in bucket order
func (s *S3Storage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &prefix})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list archives: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Exists reports whether an archive is stored under key
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	var notFound *types.NotFound
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &notFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat archive %s: %w", key, err)
	}
}

// ContentTypeFor maps an archive key to the content type of its format
func ContentTypeFor(key string) string {
	ext := filepath.Ext(key)
	switch ext {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ArchiveKey is the object key of an export archive created at t
func ArchiveKey(kind, ext string, t time.Time) string {
	return fmt.Sprintf("exports/%s/%s.%s", kind, t.UTC().Format("20060102T150405Z"), ext)
}

// archiveKind extracts the export kind from an ArchiveKey
func archiveKind(key string) string {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) == 3 && parts[0] == "exports" {
		return parts[1]
	}
	return "unknown"
}
