// Package s3 stores attachment bytes in an S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound is returned when the bucket has no object under the key.
var ErrObjectNotFound = errors.New("s3: object not found")

// Config describes how to reach the bucket.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	ForcePathStyle  bool
	// Transport overrides the HTTP transport; tests point it at a fake server.
	Transport http.RoundTripper
}

// Store is the blob store client: put, delete and presigned GET over minio-go.
// It is stateless apart from the underlying HTTP client and safe for concurrent use.
type Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// New creates a Store. Static credentials are used when both keys are set,
// otherwise the environment, shared credentials file and IAM chain is consulted.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.Region != "" {
			endpoint = fmt.Sprintf("s3.%s.amazonaws.com", cfg.Region)
		} else {
			endpoint = "s3.amazonaws.com"
		}
	}

	var creds *credentials.Credentials
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{},
		})
	}

	options := &minio.Options{
		Creds:     creds,
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: cfg.Transport,
	}
	if cfg.ForcePathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}

	client, err := minio.New(endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With(slog.String("component", "blob_store"), slog.String("bucket", cfg.Bucket)),
	}, nil
}

// Bucket returns the bucket name the store writes to.
func (s *Store) Bucket() string {
	return s.bucket
}

// Put uploads size bytes from r under key. A failed upload leaves nothing
// visible under the key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("put object failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return fmt.Errorf("s3: put %q: %w", key, err)
	}

	s.logger.Debug("object stored",
		slog.String("key", key),
		slog.Int64("size", info.Size),
		slog.String("etag", info.ETag))
	return nil
}

// Delete removes the object under key. S3 treats deleting a missing key as
// success; a 404 (for instance a missing bucket) surfaces as ErrObjectNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return fmt.Errorf("s3: delete %q: %w", key, err)
	}
	s.logger.Debug("object deleted", slog.String("key", key))
	return nil
}

// SignedURL mints a presigned GET URL for key valid for ttl. When
// downloadName is set, the response is served as an attachment with that
// file name.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration, downloadName string) (string, error) {
	params := url.Values{}
	if downloadName != "" {
		params.Set("response-content-disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": downloadName}))
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, params)
	if err != nil {
		return "", fmt.Errorf("s3: presign %q: %w", key, err)
	}
	return u.String(), nil
}

// Ping checks that the bucket is reachable and exists.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("s3: bucket check: %w", err)
	}
	if !ok {
		return fmt.Errorf("s3: bucket %q does not exist", s.bucket)
	}
	return nil
}

func isNotFound(err error) bool {
	errResp := minio.ErrorResponse{}
	if errors.As(err, &errResp) {
		return errResp.StatusCode == http.StatusNotFound
	}
	return false
}
