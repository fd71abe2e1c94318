package providers

import (
	"context"
	"strings"
)

// MockProvider returns deterministic canned replies. Used for local runs
// without credentials and throughout the tests.
type MockProvider struct {
	// Reply, when set, overrides the canned response entirely.
	Reply string
	// Err, when set, is returned from every Chat call.
	Err error
	// Calls records the message batches passed to Chat.
	Calls [][]Message
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) GetDefaultModel() string {
	return "mock"
}

func (p *MockProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	p.Calls = append(p.Calls, messages)
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Reply != "" {
		return &LLMResponse{Content: p.Reply, Model: "mock"}, nil
	}

	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = messages[i].Content
			break
		}
	}
	reply := "I hear you. Tell me more about what that has been like for you."
	if strings.Contains(strings.ToLower(last), "thank") {
		reply = "You're welcome. I'm here whenever you want to continue."
	}
	return &LLMResponse{Content: reply, Model: "mock"}, nil
}
