package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/pkg/httpretry"
	"github.com/ignite/kitsync/internal/pkg/logger"
)

// PutObjectAPI is the subset of the S3 client used by the relay.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 relays images by downloading them, downscaling wide images and storing
// them in a bucket served through a CDN domain.
type S3 struct {
	client     PutObjectAPI
	downloader httpretry.HTTPDoer
	bucket     string
	region     string
	prefix     string
	cdnDomain  string
	maxWidth   int
}

// NewS3 creates an S3 relay.
func NewS3(client PutObjectAPI, downloader httpretry.HTTPDoer, cfg config.S3ImagesConfig) *S3 {
	return &S3{
		client:     client,
		downloader: downloader,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		cdnDomain:  cfg.CDNDomain,
		maxWidth:   cfg.MaxWidth,
	}
}

// Relay implements Relay. The object key is derived from key alone, so a
// rerun overwrites rather than duplicates.
func (s *S3) Relay(ctx context.Context, sourceURL, key string) (string, error) {
	data, err := s.download(ctx, sourceURL)
	if err != nil {
		return "", err
	}

	contentType := detectContentType(data)
	if !supportedImageTypes[contentType] {
		return "", fmt.Errorf("unsupported image type: %s", contentType)
	}

	data, contentType, err = downscale(data, contentType, s.maxWidth)
	if err != nil {
		return "", fmt.Errorf("resizing %s: %w", key, err)
	}

	objectKey := key + extension(contentType)
	if s.prefix != "" {
		objectKey = s.prefix + "/" + objectKey
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(objectKey),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000"), // 1 year cache
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to S3: %w", objectKey, err)
	}

	url := s.publicURL(objectKey)
	logger.Info("image relayed", "provider", "s3", "key", objectKey, "bytes", len(data), "url", url)
	return url, nil
}

func (s *S3) download(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}
	resp, err := s.downloader.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading image: status %d", resp.StatusCode)
	}

	// Read one byte past the limit to detect oversized files.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds maximum of %d MB", maxImageBytes/(1024*1024))
	}
	return data, nil
}

func (s *S3) publicURL(key string) string {
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
