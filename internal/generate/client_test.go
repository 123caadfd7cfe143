package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalize/portal-platform/internal/model"
)

func TestFallback(t *testing.T) {
	resp := Fallback("Ada Lovelace")
	assert.Contains(t, resp.Message, "Ada Lovelace")
	assert.Equal(t, 0.5, resp.Confidence)
	assert.Len(t, resp.FollowUps, 3)
	assert.Empty(t, resp.Sources)

	// Deterministic: identical inputs, identical responses.
	assert.Equal(t, resp, Fallback("Ada Lovelace"))
}

func TestFallback_NoOwnerName(t *testing.T) {
	resp := Fallback("")
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, 0.5, resp.Confidence)
	assert.Len(t, resp.FollowUps, 3)
}

func TestWelcome(t *testing.T) {
	msg := Welcome("Ada Lovelace", true, []string{"Experience", "Skills"})
	assert.Contains(t, msg, "Ada Lovelace")
	assert.Contains(t, msg, "Experience")
	assert.Contains(t, msg, "Skills")

	// Non-RAG sessions get the generic greeting, no topic list.
	generic := Welcome("Ada Lovelace", false, []string{"Experience"})
	assert.Contains(t, generic, "Ada Lovelace")
	assert.NotContains(t, generic, "Experience")

	anon := Welcome("", true, nil)
	assert.Contains(t, anon, "this candidate")
}

func TestWelcome_TopicListCapped(t *testing.T) {
	topics := []string{"One", "Two", "Three", "Four", "Five"}
	msg := Welcome("Ada", true, topics)
	assert.Contains(t, msg, "Four")
	assert.NotContains(t, msg, "Five")
}

func TestSources_DeduplicatesPreservingRank(t *testing.T) {
	chunks := []model.Chunk{
		{Label: "Experience"},
		{Label: "Skills"},
		{Label: "Experience"},
		{Label: "Education"},
	}
	assert.Equal(t, []string{"Experience", "Skills", "Education"}, sources(chunks))
	assert.Nil(t, sources(nil))
}

func TestFollowUps(t *testing.T) {
	chunks := []model.Chunk{
		{Label: "Experience"},
		{Label: "Skills"},
		{Label: "Education"},
	}
	out := followUps(chunks, "Ada")
	require.Len(t, out, 3)
	assert.Contains(t, out[0], "experience")
	assert.Contains(t, out[1], "skills")
	assert.Contains(t, out[2], "Ada")

	// Without chunks only the generic fit question remains.
	out = followUps(nil, "")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "them")
}

func TestSystemPrompt(t *testing.T) {
	req := &Request{
		Query:     "what did they build?",
		OwnerName: "Ada Lovelace",
		Language:  "French",
		Style:     "concise",
		Chunks: []model.Chunk{
			{Label: "Experience", Text: "built the analytical engine"},
		},
	}
	prompt := systemPrompt(req)
	assert.Contains(t, prompt, "Ada Lovelace")
	assert.Contains(t, prompt, "Respond in French.")
	assert.Contains(t, prompt, "Response style: concise.")
	assert.Contains(t, prompt, "[Experience]")
	assert.Contains(t, prompt, "built the analytical engine")

	bare := systemPrompt(&Request{Query: "hi"})
	assert.Contains(t, bare, "the CV owner")
	assert.NotContains(t, bare, "CV content:")
}
