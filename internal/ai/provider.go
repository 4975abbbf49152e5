package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Provider turns a message list into one completion.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Embedder maps text into the vector space used by the retrieval corpus.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options configure a provider instance. A nil Temperature leaves the
// provider default; any explicit value, zero included, is sent.
type Options struct {
	Model       string
	Temperature *float32
}

// Temperature returns a pointer for Options.Temperature.
func Temperature(v float32) *float32 { return &v }
