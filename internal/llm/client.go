package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrUnavailable is returned when no provider is configured.
var ErrUnavailable = errors.New("llm: no completion provider configured")

// Message is one role/content pair in a prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request is a provider-neutral completion request. System messages may be
// given either in System or inline in Messages.
type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client completes chat prompts.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// UnavailableClient always fails. It stands in when no API key is set so the
// dialogue layer falls back instead of crashing at startup.
type UnavailableClient struct {
	Reason string
}

func (c UnavailableClient) Complete(context.Context, Request) (Response, error) {
	if c.Reason == "" {
		return Response{}, ErrUnavailable
	}
	return Response{}, errors.Join(ErrUnavailable, errors.New(c.Reason))
}

// splitSystem separates inline system messages from the conversation.
func splitSystem(req Request) ([]string, []Message) {
	system := make([]string, 0, len(req.System))
	for _, s := range req.System {
		if s != "" {
			system = append(system, s)
		}
	}
	convo := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			if m.Content != "" {
				system = append(system, m.Content)
			}
			continue
		}
		convo = append(convo, m)
	}
	return system, convo
}
