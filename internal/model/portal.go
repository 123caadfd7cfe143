// Package model defines data structures for the portal platform.
package model

import (
	"time"
)

// PortalStatus represents the build lifecycle state of a portal.
type PortalStatus string

const (
	PortalStatusQueued     PortalStatus = "queued"
	PortalStatusProcessing PortalStatus = "processing"
	PortalStatusCompleted  PortalStatus = "completed"
	PortalStatusFailed     PortalStatus = "failed"
)

// Terminal reports whether no further build transitions are allowed.
func (s PortalStatus) Terminal() bool {
	return s == PortalStatusCompleted || s == PortalStatusFailed
}

// PortalConfig holds presentation configuration chosen by the owner.
type PortalConfig struct {
	Theme    string   `json:"theme" bson:"theme"`
	Features []string `json:"features,omitempty" bson:"features,omitempty"`
}

// BuildError records why a portal build failed. Persisted verbatim for
// later inspection.
type BuildError struct {
	Code       string    `json:"code" bson:"code"`
	Message    string    `json:"message" bson:"message"`
	PortalID   string    `json:"portal_id" bson:"portal_id"`
	DocumentID string    `json:"document_id" bson:"document_id"`
	OccurredAt time.Time `json:"occurred_at" bson:"occurred_at"`
}

// Portal represents a generated interactive micro-site for one CV.
// Mutated only by the orchestrator; immutable once the build reaches a
// terminal state, except for the analytics counters attached by reference.
type Portal struct {
	ID         string       `json:"id" bson:"_id"`
	UserID     string       `json:"user_id" bson:"user_id"`
	DocumentID string       `json:"document_id" bson:"document_id"`
	Status     PortalStatus `json:"status" bson:"status"`
	Config     PortalConfig `json:"config" bson:"config"`
	URL        string       `json:"url,omitempty" bson:"url,omitempty"`
	CreatedAt  time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" bson:"updated_at"`
	BuildError *BuildError  `json:"build_error,omitempty" bson:"build_error,omitempty"`
}

// DocumentSection is one labelled block of CV content. Section labels
// double as retrieval source labels and chat topics.
type DocumentSection struct {
	Label string `json:"label" bson:"label"`
	Text  string `json:"text" bson:"text"`
}

// SourceDocument is the CV a portal is generated from.
type SourceDocument struct {
	ID        string            `json:"id" bson:"_id"`
	UserID    string            `json:"user_id" bson:"user_id"`
	OwnerName string            `json:"owner_name" bson:"owner_name"`
	Sections  []DocumentSection `json:"sections" bson:"sections"`
	PortalID  string            `json:"portal_id,omitempty" bson:"portal_id,omitempty"`
	PortalURL string            `json:"portal_url,omitempty" bson:"portal_url,omitempty"`
	CreatedAt time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" bson:"updated_at"`
}
