package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/pkg/logger"
)

// EmailAPI is the subset of the SES v2 client used for alerts.
type EmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES emails alerts to operators and also logs them.
type SES struct {
	client EmailAPI
	from   string
	to     []string
}

// NewSES creates an SES notifier around an existing client.
func NewSES(client EmailAPI, from string, to []string) *SES {
	return &SES{client: client, from: from, to: to}
}

// New builds the notifier named by cfg: SES when alerts are enabled,
// otherwise the log-only notifier.
func New(ctx context.Context, cfg config.AlertsConfig) (Notifier, error) {
	if !cfg.Enabled {
		return Log{}, nil
	}
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("alert: from and to addresses are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for alerts: %w", err)
	}
	return NewSES(sesv2.NewFromConfig(awsCfg), cfg.From, cfg.To), nil
}

// Notify implements Notifier.
func (s *SES) Notify(ctx context.Context, a Alert) error {
	_ = Log{}.Notify(ctx, a)

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: s.to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(a.Subject()), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(a.Body()), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("job"), Value: aws.String(a.Job)},
			{Name: aws.String("severity"), Value: aws.String(string(a.Severity))},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("sending alert email: %w", err)
	}
	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	logger.Info("alert email sent", "message_id", messageID, "job", a.Job)
	return nil
}
