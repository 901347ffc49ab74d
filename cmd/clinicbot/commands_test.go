package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	appconfig "github.com/FLANsa/clinic-ai-bot/internal/config"
	"github.com/FLANsa/clinic-ai-bot/internal/dispatch"
	"github.com/FLANsa/clinic-ai-bot/internal/llm"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "REDIS_ADDR", "GROQ_API_KEY", "GEMINI_API_KEY", "LLM_FALLBACK_PROVIDER", "REPLY_LOCALE"} {
		t.Setenv(key, "")
	}
	t.Setenv("LLM_PROVIDER", "groq")
	t.Setenv("ENV", "production")
}

func catalogPath() string {
	return filepath.Join("..", "..", "testdata", "catalog.json")
}

func TestChatCommandBooksAndStopsOnQuit(t *testing.T) {
	isolateEnv(t)

	in := strings.NewReader(strings.Join([]string{
		"",
		"I want to book teeth cleaning at Olaya Branch, my name is Sara Ahmed, phone 0501234567",
		"/quit",
		"never read",
	}, "\n"))
	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetIn(in)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"chat", "--catalog", catalogPath(), "--user", "web-visitor"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got := out.String()
	if !strings.HasPrefix(got, "clinicbot on web as web-visitor.") {
		t.Fatalf("missing banner:\n%s", got)
	}
	if strings.Count(got, "[intent=appointment_booking") != 1 {
		t.Fatalf("expected one booking turn, got:\n%s", got)
	}
	if strings.Count(got, "> ") != 3 {
		t.Fatalf("expected the loop to stop at /quit, got:\n%s", got)
	}
}

func TestAskCommandFallsBackWithoutProvider(t *testing.T) {
	isolateEnv(t)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"ask", "--catalog", catalogPath(), "--channel", "whatsapp", "what", "services", "do", "you", "have?"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var reply dispatch.Reply
	if err := json.Unmarshal(out.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v (%s)", err, out.String())
	}
	if !reply.NeedsHandoff || !reply.Unrecognized || reply.Text == "" {
		t.Fatalf("expected fallback reply, got %+v", reply)
	}
	if reply.Channel != "whatsapp" {
		t.Fatalf("unexpected channel %q", reply.Channel)
	}
}

func TestAskCommandRequiresMessage(t *testing.T) {
	isolateEnv(t)
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"ask"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an argument error")
	}
}

func TestChatCommandMissingCatalog(t *testing.T) {
	isolateEnv(t)
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"chat", "--catalog", filepath.Join(t.TempDir(), "nope.json")})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for a missing catalog file")
	}
}

type fakeLLM struct {
	got  llm.Request
	resp llm.Response
	err  error
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	f.got = req
	return f.resp, f.err
}

func TestRunLLMCheck(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: "groq", LLMTimeout: time.Second, LLMMaxTokens: 64, LLMTemperature: 0.2}
	client := &fakeLLM{resp: llm.Response{Text: " Welcome! ", Usage: llm.TokenUsage{InputTokens: 12, OutputTokens: 3}}}

	var out bytes.Buffer
	if err := runLLMCheck(context.Background(), client, cfg, "hello", &out); err != nil {
		t.Fatalf("llm check: %v", err)
	}
	got := out.String()
	for _, want := range []string{"provider=groq fallback=-", "Welcome!", "tokens: in=12 out=3"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if client.got.MaxTokens != 64 || client.got.Messages[0].Content != "hello" {
		t.Fatalf("unexpected request %+v", client.got)
	}
}

func TestRunLLMCheckReportsFailure(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: "bedrock", LLMTimeout: time.Second}
	err := runLLMCheck(context.Background(), &fakeLLM{err: llm.ErrUnavailable}, cfg, "hi", &bytes.Buffer{})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected wrapped ErrUnavailable, got %v", err)
	}
}
