package generate

import (
	"fmt"
)

// fallbackConfidence is the fixed confidence attached to fallback
// responses.
const fallbackConfidence = 0.5

var genericFollowUps = []string{
	"What is their professional background?",
	"What are their key skills?",
	"What experience do they have?",
}

// Fallback returns the deterministic response used when retrieval or
// generation is unavailable or times out. No network calls are made.
func Fallback(ownerName string) *Response {
	message := "Thanks for your interest in this CV. I'm unable to answer in detail right now, but feel free to browse the portal for the full background, skills and experience."
	if ownerName != "" {
		message = fmt.Sprintf("Thanks for your interest in %s's CV. I'm unable to answer in detail right now, but feel free to browse the portal for %s's full background, skills and experience.", ownerName, ownerName)
	}
	return &Response{
		Message:    message,
		Confidence: fallbackConfidence,
		FollowUps:  append([]string(nil), genericFollowUps...),
	}
}

// Welcome returns the greeting for a newly started session. When RAG is
// available the greeting invites topic questions; otherwise it stays
// generic, mirroring the fallback path.
func Welcome(ownerName string, ragEnabled bool, topics []string) string {
	owner := ownerName
	if owner == "" {
		owner = "this candidate"
	}
	if !ragEnabled || len(topics) == 0 {
		return fmt.Sprintf("Hi! I'm the assistant for %s's CV portal. Ask me anything about their background.", owner)
	}
	return fmt.Sprintf("Hi! I'm the assistant for %s's CV portal. Ask me about: %s.", owner, joinTopics(topics))
}

func joinTopics(topics []string) string {
	const max = 4
	if len(topics) > max {
		topics = topics[:max]
	}
	out := ""
	for i, t := range topics {
		if i > 0 {
			out += ", "
		}
		out += t
	}
	return out
}
