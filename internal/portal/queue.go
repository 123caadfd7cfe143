package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	natsclient "github.com/portalize/portal-platform/internal/nats"
)

const (
	// streamName is the JetStream stream holding portal build jobs.
	streamName = "PORTAL_BUILDS"

	// jobSubject is the subject build jobs are published to.
	jobSubject = "builds.job"

	// consumerName is the durable consumer the build worker reads from.
	consumerName = "portal-builder"
)

// BuildJob is the unit of work handed to the build worker.
type BuildJob struct {
	PortalID   string    `json:"portal_id"`
	DocumentID string    `json:"document_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is the JetStream-backed portal build queue.
type Queue struct {
	client *natsclient.Client
}

// NewQueue creates a build queue on an established NATS client.
func NewQueue(client *natsclient.Client) *Queue {
	return &Queue{client: client}
}

// EnsureStream ensures the build stream exists.
func (q *Queue) EnsureStream(ctx context.Context) error {
	js := q.client.JetStream()

	_, err := js.Stream(ctx, streamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Subjects:    []string{"builds.>"},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Pending portal build jobs",
	})
	if err != nil {
		return fmt.Errorf("failed to create build stream: %w", err)
	}
	return nil
}

// Publish enqueues a build job.
func (q *Queue) Publish(ctx context.Context, job BuildJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal build job: %w", err)
	}
	if _, err := q.client.JetStream().Publish(ctx, jobSubject, data); err != nil {
		return fmt.Errorf("failed to publish build job: %w", err)
	}
	return nil
}

// Consume delivers build jobs to handler until ctx is cancelled. Jobs
// are acked regardless of handler outcome: failures are persisted on the
// portal record and never retried by this component.
func (q *Queue) Consume(ctx context.Context, handler func(context.Context, BuildJob)) error {
	cons, err := q.client.JetStream().CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: jobSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create build consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		var job BuildJob
		if err := json.Unmarshal(msg.Data(), &job); err != nil {
			_ = msg.Term()
			return
		}
		handler(ctx, job)
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start build consumer: %w", err)
	}

	<-ctx.Done()
	cc.Stop()
	return nil
}
