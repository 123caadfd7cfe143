// Package generate produces natural-language answers conditioned on
// retrieved CV content and conversation history.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/portalize/portal-platform/internal/model"
)

// Turn is one role-tagged entry of the conversation transcript handed
// to a provider.
type Turn struct {
	Role    string
	Content string
}

// Request carries everything a provider needs to answer one query.
type Request struct {
	Query     string
	OwnerName string
	Chunks    []model.Chunk
	// Confidence is the retrieval confidence for Chunks; echoed back on
	// the response so citation confidence matches what was retrieved.
	Confidence float64
	History    []Turn
	Language   string
	Style      string
}

// Response is a generated answer with its citations.
type Response struct {
	Message    string
	Sources    []string
	Confidence float64
	FollowUps  []string
}

// Client is the interface for answer-generation providers.
type Client interface {
	// Generate produces an answer for the request. It must honor ctx
	// cancellation; callers enforce an overall deadline.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of generation provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// NewClient creates a generation client for the given provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return NewOpenAIClient(apiKey)
	}
}

// systemPrompt assembles the grounding prompt from the retrieved chunks.
// Answers must come from the supplied content only, which keeps cited
// sources honest.
func systemPrompt(req *Request) string {
	var b strings.Builder
	owner := req.OwnerName
	if owner == "" {
		owner = "the CV owner"
	}
	fmt.Fprintf(&b, "You are an assistant answering visitor questions about %s's CV.\n", owner)
	b.WriteString("Answer only from the CV content below. If the content does not cover the question, say so briefly.\n")
	if req.Language != "" {
		fmt.Fprintf(&b, "Respond in %s.\n", req.Language)
	}
	if req.Style != "" {
		fmt.Fprintf(&b, "Response style: %s.\n", req.Style)
	}
	if len(req.Chunks) > 0 {
		b.WriteString("\nCV content:\n")
		for _, c := range req.Chunks {
			fmt.Fprintf(&b, "[%s]\n%s\n\n", c.Label, c.Text)
		}
	}
	return b.String()
}

// sources returns the deduplicated labels of the chunks included in the
// prompt, preserving rank order. Always a subset of the retrieval
// result's labels.
func sources(chunks []model.Chunk) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range chunks {
		if !seen[c.Label] {
			out = append(out, c.Label)
			seen[c.Label] = true
		}
	}
	return out
}

// followUps derives deterministic follow-up suggestions from the
// retrieved section labels.
func followUps(chunks []model.Chunk, ownerName string) []string {
	labels := sources(chunks)
	var out []string
	for _, label := range labels {
		out = append(out, fmt.Sprintf("Tell me more about the %s section", strings.ToLower(label)))
		if len(out) == 2 {
			break
		}
	}
	name := ownerName
	if name == "" {
		name = "them"
	}
	out = append(out, fmt.Sprintf("What makes %s a good fit for my team?", name))
	return out
}
