package model

import (
	"time"
)

// SessionStatus represents the lifecycle state of a chat session.
type SessionStatus string

const (
	SessionStatusActive      SessionStatus = "active"
	SessionStatusExpired     SessionStatus = "expired"
	SessionStatusRateLimited SessionStatus = "rate_limited"
)

// SessionContext holds per-session generation preferences.
type SessionContext struct {
	Language      string `json:"language,omitempty" bson:"language,omitempty"`
	ResponseStyle string `json:"response_style,omitempty" bson:"response_style,omitempty"`
}

// VisitorContext identifies the anonymous visitor who opened a session.
type VisitorContext struct {
	VisitorID string `json:"visitor_id,omitempty" bson:"visitor_id,omitempty"`
	Referrer  string `json:"referrer,omitempty" bson:"referrer,omitempty"`
	UserAgent string `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
}

// ChatSession represents one visitor conversation against a portal.
//
// Messages are append-only and always grow by a user/assistant pair, so
// MessageCount is always twice the number of completed exchanges. Expiry
// is absolute from creation, not sliding on activity.
type ChatSession struct {
	ID             string         `json:"id" bson:"_id"`
	PortalID       string         `json:"portal_id" bson:"portal_id"`
	UserID         string         `json:"user_id,omitempty" bson:"user_id,omitempty"`
	VisitorID      string         `json:"visitor_id,omitempty" bson:"visitor_id,omitempty"`
	Status         SessionStatus  `json:"status" bson:"status"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at" bson:"expires_at"`
	LastActivityAt *time.Time     `json:"last_activity_at,omitempty" bson:"last_activity_at,omitempty"`
	Messages       []Message      `json:"messages" bson:"messages"`
	MessageCount   int            `json:"message_count" bson:"message_count"`
	Context        SessionContext `json:"context" bson:"context"`
}

// Expired reports whether the session's absolute expiry has passed.
func (s *ChatSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
