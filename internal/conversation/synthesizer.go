package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/clinicware/clinic-ai-agent/internal/llm"
	"github.com/clinicware/clinic-ai-agent/internal/session"
)

const clinicianSystemPrompt = `You are an AI assistant for a medical clinic system, currently assisting a clinician.
Your role is to provide information clearly and professionally, focusing on medical accuracy.
Use medical terminology appropriate for healthcare professionals.
Be concise but thorough in your responses.

When presenting patient information, organize it clearly with the most important information first.
When discussing medications or test results, highlight any abnormal values or potential concerns.
When showing appointments, organize them chronologically and highlight any conflicts or special notes.`

const patientSystemPrompt = `You are an AI assistant for a medical clinic system, currently assisting a patient.
Your role is to provide clear, easy-to-understand information about healthcare topics.
Avoid complex medical jargon when possible, and explain medical terms when you use them.
Be empathetic and supportive in your responses.
Remember that you are not providing medical advice, only information from the patient's records.

When discussing medications, explain their general purpose in simple terms.
When discussing test results, focus on whether they are normal or require follow-up.
When discussing appointments, provide clear details about date, time, location, and doctor.`

const defaultSystemPrompt = `You are an AI assistant for a medical clinic system.
Always be professional, accurate, and compassionate in your responses.
Never provide medical advice beyond what is in the patient records.
Maintain patient confidentiality and privacy at all times.`

// Synthesizer turns the gathered facts plus conversation history into the
// natural-language reply for one turn.
type Synthesizer struct {
	client      llm.Client
	temperature float32
}

func NewSynthesizer(client llm.Client, temperature float32) *Synthesizer {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &Synthesizer{client: client, temperature: temperature}
}

// Synthesize composes the reply. history is the conversation before the
// current input; the current input is always the final message. Unlike
// backend sub-fetches, a generation failure here is fatal for the turn.
func (s *Synthesizer) Synthesize(ctx context.Context, role session.Role, history []session.Message, facts Facts, input string) (string, error) {
	messages := make([]llm.Message, 0, len(history)+3)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPromptFor(role)})

	for _, msg := range history {
		switch msg.Role {
		case session.HistoryRoleUser:
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: msg.Content})
		case session.HistoryRoleAssistant:
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: msg.Content})
		}
	}

	if rendered := facts.Render(); rendered != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: rendered})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: input})

	resp, err := s.client.Complete(ctx, llm.Request{
		Messages:    messages,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("conversation: synthesize reply: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("conversation: synthesize reply: empty completion")
	}
	return text, nil
}

func systemPromptFor(role session.Role) string {
	switch role {
	case session.RoleClinician:
		return clinicianSystemPrompt
	case session.RolePatient:
		return patientSystemPrompt
	default:
		return defaultSystemPrompt
	}
}
