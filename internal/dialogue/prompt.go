package dialogue

import (
	"strings"

	"github.com/FLANsa/clinic-ai-bot/internal/history"
	"github.com/FLANsa/clinic-ai-bot/internal/llm"
)

const promptWindow = 5

const basePersona = `You are the virtual receptionist for a chain of medical and dental clinics.
Answer questions about doctors, services, prices, branches, working hours and offers.
Only state facts that appear in the clinic data below. If something is not listed, say you will check with the team and offer to connect the customer with reception.
Never invent prices, doctors or branches. Never give a diagnosis.
Reply in the same language the customer writes in.`

var channelStyles = map[string]string{
	"whatsapp":  "You are chatting on WhatsApp: keep replies short and friendly, a few lines at most, emojis sparingly.",
	"instagram": "You are replying to an Instagram direct message: warm, brief and conversational.",
	"facebook":  "You are replying on Facebook Messenger: polite, brief and helpful.",
	"tiktok":    "You are replying to a TikTok message: very short, upbeat and clear.",
	"web":       "You are chatting in the website widget: clear, complete sentences are fine.",
}

// Persona returns the system instruction for a channel.
func Persona(channel string) string {
	style, ok := channelStyles[strings.ToLower(strings.TrimSpace(channel))]
	if !ok {
		style = channelStyles["web"]
	}
	return basePersona + "\n" + style
}

// BuildMessages lays out the prompt: the channel persona with the clinic data,
// then the last five turns as alternating user and assistant messages, then
// the current message.
func BuildMessages(channel, catalogContext string, window history.Window, message string) []llm.Message {
	system := Persona(channel)
	if strings.TrimSpace(catalogContext) != "" {
		system += "\n\nClinic data:\n" + catalogContext
	}

	recent := window.Last(promptWindow)
	messages := make([]llm.Message, 0, 2+2*len(recent))
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, turn := range recent {
		if in := strings.TrimSpace(turn.InboundText); in != "" {
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: in})
		}
		if out := strings.TrimSpace(turn.OutboundText); out != "" {
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: out})
		}
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})
	return messages
}

// KnownChannel reports whether channel has its own persona.
func KnownChannel(channel string) bool {
	_, ok := channelStyles[strings.ToLower(strings.TrimSpace(channel))]
	return ok
}
