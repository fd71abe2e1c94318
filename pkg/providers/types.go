package providers

import "context"

// Message is one chat-completions message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMResponse is the provider-agnostic reply shape.
type LLMResponse struct {
	Content string
	Model   string
}

// LLMProvider is the external responder boundary. Every substantive
// natural-language reply in the runtime comes through here; callers treat
// any error as recoverable and degrade to static fallback text.
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error)
	GetDefaultModel() string
}

func optionAsInt(options map[string]interface{}, key string) (int, bool) {
	if options == nil {
		return 0, false
	}
	switch v := options[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func optionAsFloat(options map[string]interface{}, key string) (float64, bool) {
	if options == nil {
		return 0, false
	}
	switch v := options[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
