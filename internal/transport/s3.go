package transport

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// S3Config contains S3-compatible endpoint configuration
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
	PartSize  uint64
}

// S3 uploads files to an S3-compatible bucket; the remote path becomes
// the object key.
type S3 struct {
	client   *minio.Client
	bucket   string
	partSize uint64
	logger   *zap.Logger
}

// NewS3 creates an S3 transport
func NewS3(cfg S3Config, logger *zap.Logger) (*S3, error) {
	endpoint, err := cleanEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, err
	}

	return &S3{
		client:   client,
		bucket:   cfg.Bucket,
		partSize: cfg.PartSize,
		logger:   logger,
	}, nil
}

// Transfer uploads localPath, overwriting any existing object
func (s *S3) Transfer(ctx context.Context, localPath, remotePath string) error {
	key := ObjectKey(remotePath)

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	s.logger.Debug("Uploading file",
		zap.String("path", localPath),
		zap.String("bucket", s.bucket),
		zap.String("key", key),
	)

	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    s.partSize,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s/%s: %w", localPath, s.bucket, key, err)
	}
	return nil
}

// ObjectKey converts a remote path into an object key
func ObjectKey(remotePath string) string {
	return strings.TrimLeft(remotePath, "/")
}

// cleanEndpoint removes protocol and path from endpoint URL to get host:port format
func cleanEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("endpoint cannot be empty")
	}

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if strings.Contains(endpoint, "/") {
			return "", fmt.Errorf("endpoint contains path but no protocol")
		}
		return endpoint, nil
	}

	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint URL: %w", err)
	}

	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return "", fmt.Errorf("endpoint URL cannot have paths, only host:port is allowed (got path: %s)", parsedURL.Path)
	}

	return parsedURL.Host, nil
}
