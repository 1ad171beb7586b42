// Package relay copies images from short-lived source URLs to durable
// hosting and returns the public URL to embed in emails.
package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/metrics"
	"github.com/ignite/kitsync/internal/pkg/httpretry"
)

// Relay uploads the image at sourceURL under the stable naming key and
// returns its durable URL.
type Relay interface {
	Relay(ctx context.Context, sourceURL, key string) (string, error)
}

// Passthrough returns the source URL unchanged. Used for dry runs and
// previews where nothing may be uploaded.
type Passthrough struct{}

// Relay implements Relay.
func (Passthrough) Relay(_ context.Context, sourceURL, _ string) (string, error) {
	return sourceURL, nil
}

// New builds the relay selected by cfg.Provider.
func New(ctx context.Context, cfg config.ImagesConfig, maxRetries int) (Relay, error) {
	switch cfg.Provider {
	case "", "cloudinary":
		return NewCloudinary(cfg.Cloudinary), nil
	case "s3":
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3.Region)}
		if cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, "")))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		downloader := httpretry.NewRetryClient(&http.Client{Timeout: 60 * time.Second}, maxRetries)
		return NewS3(s3.NewFromConfig(awsCfg), downloader, cfg.S3), nil
	case "none":
		return Passthrough{}, nil
	}
	return nil, fmt.Errorf("unknown image provider %q", cfg.Provider)
}

// Counted reports each relay attempt to the images metric.
type Counted struct {
	Next Relay
}

// Relay implements Relay.
func (c Counted) Relay(ctx context.Context, sourceURL, key string) (string, error) {
	url, err := c.Next.Relay(ctx, sourceURL, key)
	if err != nil {
		metrics.ImagesRelayed.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.ImagesRelayed.WithLabelValues("ok").Inc()
	return url, nil
}
