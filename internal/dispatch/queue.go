// Package dispatch moves inbound messages through a queue to a bounded pool of
// workers that run the dialogue pipeline and deliver replies.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue is the transport between producers and workers. MemoryQueue serves
// single-process deployments; SQSQueue lets the API and workers scale apart.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one raw queue entry.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Job is an inbound message waiting to be handled.
type Job struct {
	ID         string    `json:"id"`
	Channel    string    `json:"channel"`
	UserID     string    `json:"user_id"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"received_at"`
}

func encodeJob(job Job) (Job, string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.ReceivedAt.IsZero() {
		job.ReceivedAt = time.Now().UTC()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, "", fmt.Errorf("dispatch: failed to encode job: %w", err)
	}
	return job, string(body), nil
}

func decodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("dispatch: failed to decode job: %w", err)
	}
	if job.ID == "" {
		return Job{}, fmt.Errorf("dispatch: job without id")
	}
	return job, nil
}
