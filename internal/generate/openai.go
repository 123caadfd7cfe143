package generate

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/portalize/portal-platform/pkg/metrics"
)

const openAIModel = "gpt-4o-mini"

// OpenAIClient generates answers with the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI generation client.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  openAIModel,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Generate produces an answer conditioned on the request's CV chunks.
func (c *OpenAIClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(req),
	})
	for _, turn := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Query,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: 1024,
	})
	if err != nil {
		metrics.RecordGeneration(c.Name(), "error", time.Since(start).Seconds())
		return nil, err
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
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
