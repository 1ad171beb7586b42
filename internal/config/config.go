package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for kitsync
type Config struct {
	Notion     NotionConfig   `yaml:"notion"`
	Kit        KitConfig      `yaml:"kit"`
	Images     ImagesConfig   `yaml:"images"`
	Send       SendConfig     `yaml:"send"`
	Stats      StatsConfig    `yaml:"stats"`
	Carousel   CarouselConfig `yaml:"carousel"`
	Properties PropertyNames  `yaml:"properties"`
	Ledger     LedgerConfig   `yaml:"ledger"`
	Redis      RedisConfig    `yaml:"redis"`
	Alerts     AlertsConfig   `yaml:"alerts"`
	Server     ServerConfig   `yaml:"server"`
	Schedule   ScheduleConfig `yaml:"schedule"`
	Log        LogConfig      `yaml:"log"`
	Retry      RetryConfig    `yaml:"retry"`
}

// NotionConfig holds Notion API configuration
type NotionConfig struct {
	Token             string  `yaml:"token"`
	BaseURL           string  `yaml:"base_url"`
	Version           string  `yaml:"version"`
	DatabaseID        string  `yaml:"database_id"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Timeout returns the configured timeout as a duration
func (c NotionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// KitConfig holds Kit (ConvertKit) v4 API configuration
type KitConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c KitConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ImagesConfig selects and configures the image relay.
type ImagesConfig struct {
	Provider   string           `yaml:"provider"` // "cloudinary" or "s3"
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
	S3         S3ImagesConfig   `yaml:"s3"`
}

// CloudinaryConfig holds Cloudinary upload credentials
type CloudinaryConfig struct {
	CloudName      string `yaml:"cloud_name"`
	APIKey         string `yaml:"api_key"`
	APISecret      string `yaml:"api_secret"`
	Folder         string `yaml:"folder"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c CloudinaryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// S3ImagesConfig holds S3 image hosting settings
type S3ImagesConfig struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	CDNDomain string `yaml:"cdn_domain"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	MaxWidth  int    `yaml:"max_width"`
}

// SendConfig controls the send job
type SendConfig struct {
	TestMode       bool   `yaml:"test_mode"`
	TestEmail      string `yaml:"test_email"`
	DryRun         bool   `yaml:"dry_run"`
	DateOnlyPolicy string `yaml:"date_only_policy"` // "strict" or "end_of_day"
	PreviewLength  int    `yaml:"preview_length"`
	ReadyStatus    string `yaml:"ready_status"`
	SentStatus     string `yaml:"sent_status"`
}

// StatsConfig controls the stats sync job
type StatsConfig struct {
	// ExcludedLinkPatterns are substrings identifying non-content links.
	// Empty means the built-in defaults.
	ExcludedLinkPatterns []string `yaml:"excluded_link_patterns"`
	DateOnlyPolicy       string   `yaml:"date_only_policy"`
}

// CarouselConfig controls carousel script generation
type CarouselConfig struct {
	PageSize     int           `yaml:"page_size"`
	Limit        int           `yaml:"limit"`
	TemplatePath string        `yaml:"template_path"`
	MaxComment   int           `yaml:"max_comment"`
	Bedrock      BedrockConfig `yaml:"bedrock"`
}

// BedrockConfig holds optional Bedrock refinement settings
type BedrockConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	ModelID   string `yaml:"model_id"`
	MaxTokens int    `yaml:"max_tokens"`
}

// PropertyNames maps logical fields onto Notion property names
type PropertyNames struct {
	Name        string `yaml:"name"`
	Subject     string `yaml:"subject"`
	PreviewText string `yaml:"preview_text"`
	PublishDate string `yaml:"publish_date"`
	Segments    string `yaml:"segments"`
	Status      string `yaml:"status"`
	BroadcastID string `yaml:"broadcast_id"`
	SentDate    string `yaml:"sent_date"`
	Recipients  string `yaml:"recipients"`
	Opens       string `yaml:"opens"`
	Clicks      string `yaml:"clicks"`
	OpenRate    string `yaml:"open_rate"`
	ClickRate   string `yaml:"click_rate"`
	ClickToOpen string `yaml:"click_to_open_rate"`
}

// LedgerConfig selects the send ledger backend
type LedgerConfig struct {
	Type          string `yaml:"type"` // "memory", "postgres" or "dynamodb"
	DatabaseURL   string `yaml:"database_url"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"`
}

// RedisConfig holds Redis connection settings for the run lock
type RedisConfig struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the run lock TTL as a duration
func (c RedisConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// AlertsConfig holds operator alert settings (SES)
type AlertsConfig struct {
	Enabled   bool     `yaml:"enabled"`
	From      string   `yaml:"from"`
	To        []string `yaml:"to"`
	Region    string   `yaml:"region"`
	AccessKey string   `yaml:"access_key"`
	SecretKey string   `yaml:"secret_key"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns host:port for the listener
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ScheduleConfig holds cron expressions for the schedule command
type ScheduleConfig struct {
	Timezone     string `yaml:"timezone"`
	SendCron     string `yaml:"send_cron"`
	StatsCron    string `yaml:"stats_cron"`
	CarouselCron string `yaml:"carousel_cron"`
}

// Specs returns the cron expression per job name. Empty entries are unscheduled.
func (c ScheduleConfig) Specs() map[string]string {
	return map[string]string{
		"send":     c.SendCron,
		"stats":    c.StatsCron,
		"carousel": c.CarouselCron,
	}
}

// LogConfig holds logging settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on (default true).
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// RetryConfig controls retries of idempotent API reads
type RetryConfig struct {
	MaxRetries *int `yaml:"max_retries"`
}

// Retries returns the configured retry count (default 3).
func (c RetryConfig) Retries() int {
	if c.MaxRetries == nil {
		return 3
	}
	return *c.MaxRetries
}

// Load reads and parses the configuration file. A missing file yields the
// defaults so the process can be configured purely from the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Notion.BaseURL == "" {
		cfg.Notion.BaseURL = "https://api.notion.com/v1"
	}
	if cfg.Notion.Version == "" {
		cfg.Notion.Version = "2022-06-28"
	}
	if cfg.Notion.TimeoutSeconds == 0 {
		cfg.Notion.TimeoutSeconds = 30
	}
	if cfg.Notion.RequestsPerSecond == 0 {
		cfg.Notion.RequestsPerSecond = 3
	}
	if cfg.Kit.BaseURL == "" {
		cfg.Kit.BaseURL = "https://api.kit.com/v4"
	}
	if cfg.Kit.TimeoutSeconds == 0 {
		cfg.Kit.TimeoutSeconds = 30
	}
	if cfg.Images.Provider == "" {
		cfg.Images.Provider = "cloudinary"
	}
	if cfg.Images.Cloudinary.Folder == "" {
		cfg.Images.Cloudinary.Folder = "notion-emails"
	}
	if cfg.Images.Cloudinary.BaseURL == "" {
		cfg.Images.Cloudinary.BaseURL = "https://api.cloudinary.com/v1_1"
	}
	if cfg.Images.Cloudinary.TimeoutSeconds == 0 {
		cfg.Images.Cloudinary.TimeoutSeconds = 60
	}
	if cfg.Images.S3.Region == "" {
		cfg.Images.S3.Region = "us-east-1"
	}
	if cfg.Images.S3.Prefix == "" {
		cfg.Images.S3.Prefix = "notion-emails"
	}
	if cfg.Images.S3.MaxWidth == 0 {
		cfg.Images.S3.MaxWidth = 1200
	}
	if cfg.Send.DateOnlyPolicy == "" {
		cfg.Send.DateOnlyPolicy = "strict"
	}
	if cfg.Send.PreviewLength == 0 {
		cfg.Send.PreviewLength = 150
	}
	if cfg.Send.ReadyStatus == "" {
		cfg.Send.ReadyStatus = "Ready to Send"
	}
	if cfg.Send.SentStatus == "" {
		cfg.Send.SentStatus = "Scheduled & Sent"
	}
	if cfg.Stats.DateOnlyPolicy == "" {
		cfg.Stats.DateOnlyPolicy = "end_of_day"
	}
	if cfg.Carousel.PageSize == 0 {
		cfg.Carousel.PageSize = 10
	}
	if cfg.Carousel.Limit == 0 {
		cfg.Carousel.Limit = 3
	}
	if cfg.Carousel.MaxComment == 0 {
		cfg.Carousel.MaxComment = 1900
	}
	if cfg.Carousel.Bedrock.Region == "" {
		cfg.Carousel.Bedrock.Region = "us-east-1"
	}
	if cfg.Carousel.Bedrock.ModelID == "" {
		cfg.Carousel.Bedrock.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Carousel.Bedrock.MaxTokens == 0 {
		cfg.Carousel.Bedrock.MaxTokens = 1500
	}
	applyPropertyDefaults(&cfg.Properties)
	if cfg.Ledger.Type == "" {
		cfg.Ledger.Type = "memory"
	}
	if cfg.Ledger.DynamoDBTable == "" {
		cfg.Ledger.DynamoDBTable = "kitsync-ledger"
	}
	if cfg.Ledger.AWSRegion == "" {
		cfg.Ledger.AWSRegion = "us-east-1"
	}
	if cfg.Redis.LockTTLSeconds == 0 {
		cfg.Redis.LockTTLSeconds = 900
	}
	if cfg.Alerts.Region == "" {
		cfg.Alerts.Region = "us-east-1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "UTC"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyPropertyDefaults(p *PropertyNames) {
	defaults := []struct {
		field *string
		value string
	}{
		{&p.Name, "Name"},
		{&p.Subject, "SL1"},
		{&p.PreviewText, "Pre-Text"},
		{&p.PublishDate, "Publish Date"},
		{&p.Segments, "Segments"},
		{&p.Status, "E-mail Status"},
		{&p.BroadcastID, "Kit Broadcast ID"},
		{&p.SentDate, "Sent Date"},
		{&p.Recipients, "Recipients"},
		{&p.Opens, "Total Opens"},
		{&p.Clicks, "Total Clicks"},
		{&p.OpenRate, "Open Rate"},
		{&p.ClickRate, "Click Rate"},
		{&p.ClickToOpen, "Click-to-Open Rate"},
	}
	for _, d := range defaults {
		if *d.field == "" {
			*d.field = d.value
		}
	}
}

// envOverrides lists the environment variables that override file values.
// Unset variables leave the pointer nil.
type envOverrides struct {
	NotionToken         *string `envconfig:"NOTION_TOKEN"`
	NotionBaseURL       *string `envconfig:"NOTION_BASE_URL"`
	EmailsDatabaseID    *string `envconfig:"EMAILS_DATABASE_ID"`
	KitAPIKey           *string `envconfig:"KIT_API_KEY"`
	KitBaseURL          *string `envconfig:"KIT_BASE_URL"`
	ImageProvider       *string `envconfig:"IMAGE_PROVIDER"`
	CloudinaryCloudName *string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    *string `envconfig:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret *string `envconfig:"CLOUDINARY_API_SECRET"`
	ImagesS3Bucket      *string `envconfig:"IMAGES_S3_BUCKET"`
	TestMode            *bool   `envconfig:"TEST_MODE"`
	TestEmail           *string `envconfig:"TEST_EMAIL"`
	DryRun              *bool   `envconfig:"DRY_RUN"`
	DatabaseURL         *string `envconfig:"DATABASE_URL"`
	LedgerType          *string `envconfig:"LEDGER_TYPE"`
	RedisAddr           *string `envconfig:"REDIS_ADDR"`
	RedisPassword       *string `envconfig:"REDIS_PASSWORD"`
	AWSSESAccessKey     *string `envconfig:"AWS_SES_ACCESS_KEY"`
	AWSSESSecretKey     *string `envconfig:"AWS_SES_SECRET_KEY"`
	LogLevel            *string `envconfig:"LOG_LEVEL"`
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in CI.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	env.apply(cfg)

	return cfg, nil
}

func (e envOverrides) apply(cfg *Config) {
	setString(&cfg.Notion.Token, e.NotionToken)
	setString(&cfg.Notion.BaseURL, e.NotionBaseURL)
	setString(&cfg.Notion.DatabaseID, e.EmailsDatabaseID)
	setString(&cfg.Kit.APIKey, e.KitAPIKey)
	setString(&cfg.Kit.BaseURL, e.KitBaseURL)
	setString(&cfg.Images.Provider, e.ImageProvider)
	setString(&cfg.Images.Cloudinary.CloudName, e.CloudinaryCloudName)
	setString(&cfg.Images.Cloudinary.APIKey, e.CloudinaryAPIKey)
	setString(&cfg.Images.Cloudinary.APISecret, e.CloudinaryAPISecret)
	setString(&cfg.Images.S3.Bucket, e.ImagesS3Bucket)
	setString(&cfg.Send.TestEmail, e.TestEmail)
	setString(&cfg.Redis.Addr, e.RedisAddr)
	setString(&cfg.Redis.Password, e.RedisPassword)
	setString(&cfg.Alerts.AccessKey, e.AWSSESAccessKey)
	setString(&cfg.Alerts.SecretKey, e.AWSSESSecretKey)
	setString(&cfg.Log.Level, e.LogLevel)
	if e.TestMode != nil {
		cfg.Send.TestMode = *e.TestMode
	}
	if e.DryRun != nil {
		cfg.Send.DryRun = *e.DryRun
	}
	// A DATABASE_URL implies the Postgres ledger unless a type is forced.
	if e.DatabaseURL != nil && *e.DatabaseURL != "" {
		cfg.Ledger.DatabaseURL = *e.DatabaseURL
		if cfg.Ledger.Type == "memory" {
			cfg.Ledger.Type = "postgres"
		}
	}
	setString(&cfg.Ledger.Type, e.LedgerType)
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

// MissingError lists the required settings absent for a job.
type MissingError struct {
	Job     string
	Missing []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required configuration for %s: %s", e.Job, strings.Join(e.Missing, ", "))
}

// Validate checks the settings required by the named job ("send", "stats",
// "carousel", "preview" or "serve"). Missing configuration is fatal at startup.
// A send outside dry run needs a durable ledger.
func (c *Config) Validate(job string) error {
	var missing []string
	need := func(ok bool, name string) {
		if !ok {
			missing = append(missing, name)
		}
	}

	need(c.Notion.Token != "", "NOTION_TOKEN")
	need(c.Notion.DatabaseID != "", "EMAILS_DATABASE_ID")

	switch job {
	case "send", "preview", "serve":
		need(c.Kit.APIKey != "", "KIT_API_KEY")
		switch c.Images.Provider {
		case "cloudinary":
			need(c.Images.Cloudinary.CloudName != "", "CLOUDINARY_CLOUD_NAME")
			need(c.Images.Cloudinary.APIKey != "", "CLOUDINARY_API_KEY")
			need(c.Images.Cloudinary.APISecret != "", "CLOUDINARY_API_SECRET")
		case "s3":
			need(c.Images.S3.Bucket != "", "IMAGES_S3_BUCKET")
		default:
			missing = append(missing, fmt.Sprintf("IMAGE_PROVIDER (unknown %q)", c.Images.Provider))
		}
		switch c.Send.DateOnlyPolicy {
		case "strict", "end_of_day":
		default:
			missing = append(missing, fmt.Sprintf("send.date_only_policy (unknown %q)", c.Send.DateOnlyPolicy))
		}
	case "stats":
		need(c.Kit.APIKey != "", "KIT_API_KEY")
	case "carousel":
	default:
		return fmt.Errorf("unknown job %q", job)
	}

	switch c.Ledger.Type {
	case "memory":
		// A one-shot send loses the memory ledger on exit, and with it the
		// record that stops a duplicate broadcast after a failed write-back.
		if job == "send" && !c.Send.DryRun {
			missing = append(missing, "LEDGER_TYPE (memory cannot guard a send; use postgres or dynamodb, or --dry-run)")
		}
	case "postgres":
		need(c.Ledger.DatabaseURL != "", "DATABASE_URL")
	case "dynamodb":
		need(c.Ledger.DynamoDBTable != "", "ledger.dynamodb_table")
	default:
		missing = append(missing, fmt.Sprintf("LEDGER_TYPE (unknown %q)", c.Ledger.Type))
	}

	if c.Alerts.Enabled {
		need(c.Alerts.From != "", "alerts.from")
		need(len(c.Alerts.To) > 0, "alerts.to")
	}

	if len(missing) > 0 {
		return &MissingError{Job: job, Missing: missing}
	}
	return nil
}
