package generate

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/portalize/portal-platform/pkg/metrics"
)

const anthropicModel = "claude-3-5-haiku-20241022"

// AnthropicClient generates answers with the Anthropic messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a new Anthropic generation client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropicModel,
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Generate produces an answer conditioned on the request's CV chunks.
func (c *AnthropicClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := anthropic.MessageParamRoleUser
		if turn.Role == "assistant" {
			role = anthropic.MessageParamRoleAssistant
		}
		messages = append(messages, textMessage(role, turn.Content))
	}
	// Grounding instructions ride in the final user turn; the alpha SDK
	// surface used here is messages-only.
	prompt := systemPrompt(req) + "\nVisitor question: " + req.Query
	messages = append(messages, textMessage(anthropic.MessageParamRoleUser, prompt))

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(c.model),
		MaxTokens: anthropic.F(int64(1024)),
		Messages:  anthropic.F(messages),
	})
	if err != nil {
		metrics.RecordGeneration(c.Name(), "error", time.Since(start).Seconds())
		return nil, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}
	if content == "" {
		metrics.RecordGeneration(c.Name(), "error", time.Since(start).Seconds())
		return nil, errors.New("empty completion")
	}

	metrics.RecordGeneration(c.Name(), "success", time.Since(start).Seconds())

	return &Response{
		Message:    content,
		Sources:    sources(req.Chunks),
		Confidence: req.Confidence,
		FollowUps:  followUps(req.Chunks, req.OwnerName),
	}, nil
}

func textMessage(role anthropic.MessageParamRole, content string) anthropic.MessageParam {
	return anthropic.MessageParam{
		Role: anthropic.F(role),
		Content: anthropic.F([]anthropic.MessageParamContentUnion{
			anthropic.TextBlockParam{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(content),
			},
		}),
	}
}
