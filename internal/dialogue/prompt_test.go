package dialogue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FLANsa/clinic-ai-bot/internal/history"
	"github.com/FLANsa/clinic-ai-bot/internal/llm"
)

func TestPersona(t *testing.T) {
	assert.Contains(t, Persona("whatsapp"), "WhatsApp")
	assert.Contains(t, Persona(" TikTok "), "TikTok")
	assert.Equal(t, Persona("web"), Persona("carrier-pigeon"))
	for _, ch := range []string{"whatsapp", "instagram", "facebook", "tiktok", "web"} {
		assert.True(t, strings.HasPrefix(Persona(ch), basePersona), ch)
	}
}

func TestBuildMessages(t *testing.T) {
	window := history.Window{
		{InboundText: "hi", OutboundText: "hello!"},
		{InboundText: "prices?", OutboundText: ""},
	}

	msgs := BuildMessages("instagram", "=== Services ===", window, "thanks")

	assert.Equal(t, []llm.Message{
		{Role: llm.RoleSystem, Content: Persona("instagram") + "\n\nClinic data:\n=== Services ==="},
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello!"},
		{Role: llm.RoleUser, Content: "prices?"},
		{Role: llm.RoleUser, Content: "thanks"},
	}, msgs)
}

func TestBuildMessagesWithoutContext(t *testing.T) {
	msgs := BuildMessages("web", "  ", nil, "hello")
	assert.Len(t, msgs, 2)
	assert.Equal(t, Persona("web"), msgs[0].Content)
}

func TestKnownChannel(t *testing.T) {
	for _, channel := range []string{"whatsapp", " Instagram ", "web"} {
		if !KnownChannel(channel) {
			t.Fatalf("expected %q to be known", channel)
		}
	}
	if KnownChannel("google_maps") {
		t.Fatalf("expected google_maps to be unknown")
	}
}
