package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/deepresearch/core"
)

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction describes the concrete function target of a tool call.
type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"` // JSON string of arguments
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input.
type Request struct {
	Instructions string           `json:"instructions"` // System instructions for the model
	Contents     []core.Content   `json:"contents"`     // Conversation converted to provider messages
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"` // Indicates if this is a partial response
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "ollama", "anthropic", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Runnable is the invocable surface shared by models and bound models.
//
// Invoke is the synchronous path: it blocks until the provider returns the
// complete response. Generate is the unified streaming/asynchronous path in
// the Go channel idiom: it returns immediately and delivers partial chunks
// (when req.Stream is set) followed by the final response on the response
// channel, with any terminal error on the error channel.
type Runnable interface {
	Invoke(ctx context.Context, req Request, cfg RunConfig) (*Response, error)
	Generate(ctx context.Context, req Request, cfg RunConfig) (<-chan Response, <-chan error)
}

// ChatModel is the full invocation contract of a model-serving client.
//
// BindTools and Bind return a new Runnable obtained from the client with the
// tools / generic options attached. WithConfig returns a re-configured client
// holding cfg as its default per-call configuration.
type ChatModel interface {
	Runnable

	BindTools(tools []ToolDefinition) Runnable
	Bind(opts map[string]any) Runnable
	WithConfig(cfg RunConfig) ChatModel

	// Info returns information about the model implementation.
	Info() Info
}

// MockChatModel is a lightweight in-memory ChatModel useful for tests.
// Responses are keyed by the text of the last content entry; unmatched
// prompts yield a deterministic echo. Scripted tool calls can be queued to
// exercise tool-calling loops.
type MockChatModel struct {
	info      Info
	responses map[string]string
	scripted  []Response
	calls     []RunConfig
}

// NewMockChatModel constructs a MockChatModel with tool support enabled.
func NewMockChatModel(name, provider string) *MockChatModel {
	return &MockChatModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockChatModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Script queues responses returned in order before canned/echo lookup kicks in.
func (m *MockChatModel) Script(responses ...Response) {
	m.scripted = append(m.scripted, responses...)
}

// Configs returns the RunConfig values observed across invocations.
func (m *MockChatModel) Configs() []RunConfig { return m.calls }

func (m *MockChatModel) next(req Request) Response {
	if len(m.scripted) > 0 {
		resp := m.scripted[0]
		m.scripted = m.scripted[1:]
		return resp
	}

	var inputText string
	if len(req.Contents) > 0 {
		inputText = req.Contents[len(req.Contents)-1].Text()
	}
	full := m.responses[inputText]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", inputText)
	}
	return Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: full}}},
		FinishReason: "stop",
	}
}

// Invoke implements Runnable.
func (m *MockChatModel) Invoke(ctx context.Context, req Request, cfg RunConfig) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls = append(m.calls, cfg)
	resp := m.next(req)
	return &resp, nil
}

// Generate implements Runnable; emits the response as a single final chunk.
func (m *MockChatModel) Generate(ctx context.Context, req Request, cfg RunConfig) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)
	m.calls = append(m.calls, cfg)
	resp := m.next(req)

	go func() {
		defer close(respCh)
		defer close(errCh)
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- resp:
		}
	}()

	return respCh, errCh
}

// BindTools implements ChatModel; the mock ignores tool definitions.
func (m *MockChatModel) BindTools([]ToolDefinition) Runnable { return m }

// Bind implements ChatModel; the mock ignores generic options.
func (m *MockChatModel) Bind(map[string]any) Runnable { return m }

// WithConfig implements ChatModel returning the same mock instance.
func (m *MockChatModel) WithConfig(RunConfig) ChatModel { return m }

// Info implements ChatModel.
func (m *MockChatModel) Info() Info { return m.info }
