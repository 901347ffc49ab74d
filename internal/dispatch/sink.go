package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

// ReplySink receives replies for jobs nobody is waiting on.
type ReplySink interface {
	Deliver(ctx context.Context, reply Reply) error
}

// LogSink logs replies. Used in development and when no callback is set.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger.Component("reply_sink")}
}

func (s *LogSink) Deliver(_ context.Context, reply Reply) error {
	s.logger.Info("reply ready",
		"job_id", reply.JobID,
		"channel", reply.Channel,
		"user", logging.RedactID(reply.UserID),
		"intent", reply.Intent,
		"needs_handoff", reply.NeedsHandoff,
	)
	return nil
}

// CallbackSink posts each reply as JSON to the channel adapter.
type CallbackSink struct {
	url    string
	client *http.Client
}

func NewCallbackSink(url string, client *http.Client) *CallbackSink {
	if url == "" {
		panic("dispatch: callback url required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CallbackSink{url: url, client: client}
}

func (s *CallbackSink) Deliver(ctx context.Context, reply Reply) error {
	body, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("dispatch: encode reply: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dispatch: build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if reply.JobID != "" {
		req.Header.Set("Idempotency-Key", reply.JobID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch: callback: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch: callback returned %d", resp.StatusCode)
	}
	return nil
}
