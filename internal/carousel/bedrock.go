package carousel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/pkg/logger"
)

// Refiner rewrites a generated script, e.g. with an LLM.
type Refiner interface {
	Refine(ctx context.Context, title, script string) (string, error)
}

// InvokeAPI is the subset of the Bedrock runtime client used here.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

const refineSystemPrompt = `You turn newsletter emails into social media carousel scripts.
Keep the slide structure of the draft you are given: a hook slide, main content slides,
a call to action slide and a closing slide. Use at most 50 words per slide.
Return only the script, no preamble.`

type bedrockMessage struct {
	Role    string         `json:"role"`
	Content []bedrockBlock `json:"content"`
}

type bedrockBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []bedrockBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// BedrockRefiner refines scripts with an Anthropic model on AWS Bedrock.
type BedrockRefiner struct {
	client    InvokeAPI
	modelID   string
	maxTokens int
}

// NewBedrockRefiner wraps an existing Bedrock runtime client.
func NewBedrockRefiner(client InvokeAPI, modelID string, maxTokens int) *BedrockRefiner {
	return &BedrockRefiner{client: client, modelID: modelID, maxTokens: maxTokens}
}

// NewRefiner returns a BedrockRefiner when enabled in cfg, otherwise nil.
func NewRefiner(ctx context.Context, cfg config.BedrockConfig) (Refiner, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewBedrockRefiner(bedrockruntime.NewFromConfig(awsCfg), cfg.ModelID, cfg.MaxTokens), nil
}

// Refine implements Refiner.
func (b *BedrockRefiner) Refine(ctx context.Context, title, script string) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        b.maxTokens,
		System:           refineSystemPrompt,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockBlock{{Type: "text", Text: fmt.Sprintf("Email title: %s\n\nDraft script:\n%s", title, script)}},
		}},
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke: %w", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	refined := strings.TrimSpace(sb.String())
	if refined == "" {
		return "", errors.New("bedrock returned no text")
	}
	logger.Debug("carousel script refined", "model", b.modelID,
		"input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)
	return refined, nil
}
