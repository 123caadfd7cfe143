// Package analytics computes derived rollups from raw portal events.
// Every function here is pure: deterministic, side-effect free, and
// never writes back to storage.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/portalize/portal-platform/internal/model"
)

const (
	topQuestionLimit = 10
	topTopicLimit    = 5
	minTokenLen      = 4
)

// Inputs is a read-only snapshot of one portal's raw events, already
// filtered to the query range.
type Inputs struct {
	Views    []model.ViewEvent
	Sessions []model.ChatSession
	Feedback []model.FeedbackEvent
}

// Overview computes the headline counters for the range.
func Overview(in Inputs) model.OverviewStats {
	stats := model.OverviewStats{
		TotalViews:          len(in.Views),
		ChatSessionsStarted: len(in.Sessions),
	}

	visitors := make(map[string]bool)
	for _, v := range in.Views {
		if v.VisitorID != "" {
			visitors[v.VisitorID] = true
		}
	}
	stats.UniqueVisitors = len(visitors)

	var durationSum float64
	var durationCount int
	for _, s := range in.Sessions {
		stats.TotalMessages += s.MessageCount
		// Sessions missing either timestamp are excluded from the
		// duration mean, not treated as zero.
		if s.LastActivityAt != nil && !s.CreatedAt.IsZero() {
			durationSum += s.LastActivityAt.Sub(s.CreatedAt).Seconds()
			durationCount++
		}
	}
	if durationCount > 0 {
		stats.AverageSessionDuration = durationSum / float64(durationCount)
	}

	stats.ConversionRate = ConversionRate(len(in.Views), len(in.Sessions))
	return stats
}

// ConversionRate is the percentage of views that started a chat session.
// Zero views yields zero, never a division by zero.
func ConversionRate(views, sessions int) float64 {
	if views == 0 {
		return 0
	}
	return 100 * float64(sessions) / float64(views)
}

// Engagement extracts ranked question tokens and topic tags from the
// sessions' messages.
func Engagement(sessions []model.ChatSession) model.EngagementStats {
	questionCounter := newCounter()
	topicCounter := newCounter()

	for _, s := range sessions {
		for _, msg := range s.Messages {
			if msg.Author == model.AuthorUser {
				for _, token := range strings.Fields(strings.ToLower(msg.Content)) {
					if len(token) >= minTokenLen {
						questionCounter.add(token)
					}
				}
			}
			if msg.Context != nil && msg.Context.Topic != "" {
				topicCounter.add(msg.Context.Topic)
			}
		}
	}

	return model.EngagementStats{
		TopQuestions: questionCounter.top(topQuestionLimit),
		TopTopics:    topicCounter.top(topTopicLimit),
	}
}

// Timeline produces one bucket per calendar day from from to to
// inclusive, in ascending date order. Events bucket by the UTC date
// portion of their timestamps.
func Timeline(in Inputs, from, to time.Time) []model.TimelineBucket {
	start := from.UTC().Truncate(24 * time.Hour)
	end := to.UTC().Truncate(24 * time.Hour)
	if end.Before(start) {
		return nil
	}

	var buckets []model.TimelineBucket
	index := make(map[string]int)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format("2006-01-02")
		index[date] = len(buckets)
		buckets = append(buckets, model.TimelineBucket{Date: date})
	}

	for _, v := range in.Views {
		if i, ok := index[dateOf(v.CreatedAt)]; ok {
			buckets[i].Views++
		}
	}
	for _, s := range in.Sessions {
		if i, ok := index[dateOf(s.CreatedAt)]; ok {
			buckets[i].Sessions++
		}
		for _, msg := range s.Messages {
			if i, ok := index[dateOf(msg.CreatedAt)]; ok {
				buckets[i].Messages++
			}
		}
	}

	return buckets
}

// FeedbackSummary counts positive (rating >= 4) and negative
// (rating <= 2) feedback and the mean rating, zero when empty.
func FeedbackSummary(feedback []model.FeedbackEvent) model.FeedbackStats {
	stats := model.FeedbackStats{}
	if len(feedback) == 0 {
		return stats
	}
	sum := 0
	for _, f := range feedback {
		switch {
		case f.Rating >= 4:
			stats.Positive++
		case f.Rating <= 2:
			stats.Negative++
		}
		sum += f.Rating
	}
	stats.Average = float64(sum) / float64(len(feedback))
	return stats
}

func dateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// counter tracks term frequencies with first-seen order for stable
// tie-breaking.
type counter struct {
	counts    map[string]int
	firstSeen map[string]int
	order     int
}

func newCounter() *counter {
	return &counter{
		counts:    make(map[string]int),
		firstSeen: make(map[string]int),
	}
}

func (c *counter) add(term string) {
	if _, ok := c.counts[term]; !ok {
		c.firstSeen[term] = c.order
		c.order++
	}
	c.counts[term]++
}

// top returns the n most frequent terms, descending by count with ties
// broken by first-seen order.
func (c *counter) top(n int) []model.TermCount {
	terms := make([]model.TermCount, 0, len(c.counts))
	for term, count := range c.counts {
		terms = append(terms, model.TermCount{Term: term, Count: count})
	}
	sort.Slice(terms, func(a, b int) bool {
		if terms[a].Count != terms[b].Count {
			return terms[a].Count > terms[b].Count
		}
		return c.firstSeen[terms[a].Term] < c.firstSeen[terms[b].Term]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}
