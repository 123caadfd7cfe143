package model

import (
	"time"
)

// ViewEvent is an append-only record of one portal page view.
type ViewEvent struct {
	ID        string    `json:"id" bson:"_id"`
	PortalID  string    `json:"portal_id" bson:"portal_id"`
	VisitorID string    `json:"visitor_id,omitempty" bson:"visitor_id,omitempty"`
	Referrer  string    `json:"referrer,omitempty" bson:"referrer,omitempty"`
	UserAgent string    `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// FeedbackEvent is an append-only visitor rating of a portal.
type FeedbackEvent struct {
	ID        string    `json:"id" bson:"_id"`
	PortalID  string    `json:"portal_id" bson:"portal_id"`
	SessionID string    `json:"session_id,omitempty" bson:"session_id,omitempty"`
	Rating    int       `json:"rating" bson:"rating"`
	Comment   string    `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// PortalCounters are per-portal running counters maintained with atomic
// increments. They exist alongside the raw events so dashboards can show
// totals without scanning collections.
type PortalCounters struct {
	PortalID        string    `json:"portal_id" bson:"_id"`
	SessionsStarted int64     `json:"sessions_started" bson:"sessions_started"`
	Messages        int64     `json:"messages" bson:"messages"`
	Views           int64     `json:"views" bson:"views"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

// OverviewStats is the headline rollup for one portal and date range.
type OverviewStats struct {
	TotalViews             int     `json:"total_views"`
	UniqueVisitors         int     `json:"unique_visitors"`
	ChatSessionsStarted    int     `json:"chat_sessions_started"`
	TotalMessages          int     `json:"total_messages"`
	AverageSessionDuration float64 `json:"average_session_duration_seconds"`
	ConversionRate         float64 `json:"conversion_rate"`
}

// TermCount is a ranked term with its occurrence count.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// EngagementStats summarises what visitors asked about.
type EngagementStats struct {
	TopQuestions []TermCount `json:"top_questions"`
	TopTopics    []TermCount `json:"top_topics"`
}

// TimelineBucket is one calendar day of activity, bucketed by the UTC
// date portion of event timestamps.
type TimelineBucket struct {
	Date     string `json:"date"`
	Views    int    `json:"views"`
	Sessions int    `json:"sessions"`
	Messages int    `json:"messages"`
}

// FeedbackStats summarises visitor ratings.
type FeedbackStats struct {
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Average  float64 `json:"average"`
}

// DateRange is the inclusive window a rollup was computed over.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// AnalyticsReport is the full derived rollup returned to portal owners.
// It has no independent lifecycle: recomputed per query, never stored.
type AnalyticsReport struct {
	Overview    OverviewStats    `json:"overview"`
	Engagement  EngagementStats  `json:"engagement"`
	Timeline    []TimelineBucket `json:"timeline"`
	Feedback    FeedbackStats    `json:"feedback"`
	Geographic  map[string]int   `json:"geographic"`
	Technology  map[string]int   `json:"technology"`
	Performance map[string]any   `json:"performance"`
	DateRange   DateRange        `json:"dateRange"`
}
