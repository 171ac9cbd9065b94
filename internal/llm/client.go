package llm

import "context"

// Client is the generative-model contract: given a structured prompt, return
// a block of text expected to contain a JSON value. JSONMode is a hint only;
// callers must still run the JSON extractor on every response.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Model returns the model identifier.
	Model() string
}

// CompletionRequest contains all parameters for one completion call.
type CompletionRequest struct {
	System    string `json:"system,omitempty"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	// JSONMode asks the provider for structured output where supported.
	JSONMode    bool    `json:"json_mode,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// CompletionResponse is the model's raw reply.
type CompletionResponse struct {
	Content    string     `json:"content"`
	StopReason string     `json:"stop_reason,omitempty"`
	Usage      TokenUsage `json:"usage"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Config holds provider connection settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    int // seconds, default 120
	MaxRetries int
}
