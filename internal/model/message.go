package model

import (
	"time"
)

// AuthorKind identifies who authored a message.
type AuthorKind string

const (
	AuthorUser AuthorKind = "user"
	AuthorAI   AuthorKind = "ai"
)

// MessageContext carries structured metadata attached to AI messages.
type MessageContext struct {
	Topic      string   `json:"topic,omitempty" bson:"topic,omitempty"`
	Sources    []string `json:"sources,omitempty" bson:"sources,omitempty"`
	Confidence float64  `json:"confidence" bson:"confidence"`
	FollowUps  []string `json:"suggested_follow_ups,omitempty" bson:"suggested_follow_ups,omitempty"`
}

// Message is one turn in a chat session. Immutable once appended.
type Message struct {
	ID        string          `json:"id" bson:"id"`
	Author    AuthorKind      `json:"author" bson:"author"`
	Content   string          `json:"content" bson:"content"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
	Context   *MessageContext `json:"context,omitempty" bson:"context,omitempty"`
}
