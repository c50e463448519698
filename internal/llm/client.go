package llm

import "context"

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message sent to or received from the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call. A zero Temperature asks for the
// least sampling variance the provider supports; callers branching on exact
// text equality (the intent classifier) rely on that.
type Request struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Response carries the model's reply text.
type Response struct {
	Text string
}

// Client is the text-completion boundary. Both the classifier and the
// response synthesizer treat it as a stateless single-call black box; all
// conversational continuity is reconstructed by replaying history in the
// request.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
