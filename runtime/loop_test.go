package runtime

import (
	"context"
	"errors"
	goruntime "runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/deepresearch/core"
	"github.com/hupe1980/deepresearch/model"
	"github.com/hupe1980/deepresearch/tool"
)

// failingModel errors on every invocation, simulating an unreachable provider.
type failingModel struct{}

func (failingModel) Invoke(ctx context.Context, req model.Request, cfg model.RunConfig) (*model.Response, error) {
	return nil, errors.New("provider unavailable")
}

func (failingModel) Generate(ctx context.Context, req model.Request, cfg model.RunConfig) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response)
	errCh := make(chan error, 1)
	errCh <- errors.New("provider unavailable")
	close(out)
	close(errCh)
	return out, errCh
}

func (m failingModel) BindTools([]model.ToolDefinition) model.Runnable { return m }
func (m failingModel) Bind(map[string]any) model.Runnable              { return m }
func (m failingModel) WithConfig(model.RunConfig) model.ChatModel      { return m }
func (failingModel) Info() model.Info {
	return model.Info{Name: "failing", Provider: "mock", SupportsTools: true}
}

func textResponse(text string) model.Response {
	return model.Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	}
}

func toolCallResponse(id, name, arguments string) model.Response {
	return model.Response{
		Content: core.Content{Role: "assistant", Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: arguments}},
		}},
		FinishReason: "tool_calls",
	}
}

func collect(t *testing.T, events <-chan core.Event, errs <-chan error) ([]core.Event, error) {
	t.Helper()
	var out []core.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out, <-errs
}

func TestLoopFinalTextOnly(t *testing.T) {
	mock := model.NewMockChatModel("test-model", "mock")
	mock.Script(textResponse("the answer"))

	loop := NewLoop()
	events, errs := loop.Run(context.Background(), Config{
		Model:          mock,
		RecursionLimit: 10,
	}, "question")

	got, err := collect(t, events, errs)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "agent", got[0].Author)
	assert.True(t, got[0].IsFinalResponse())
	assert.Equal(t, "the answer", got[0].Content.Text())
}

func TestLoopExecutesToolCalls(t *testing.T) {
	var calls int
	echo := tool.NewFunctionTool("echo", "Echoes input",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			calls++
			return args["text"], nil
		})

	mock := model.NewMockChatModel("test-model", "mock")
	mock.Script(
		toolCallResponse("call-1", "echo", `{"text":"ping"}`),
		textResponse("done"),
	)

	loop := NewLoop()
	events, errs := loop.Run(context.Background(), Config{
		Model:          mock,
		Tools:          []tool.Tool{echo},
		RecursionLimit: 10,
	}, "question")

	got, err := collect(t, events, errs)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, got, 3)

	assert.Len(t, got[0].GetFunctionCalls(), 1)

	responses := got[1].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "call-1", responses[0].ID)
	assert.Equal(t, "ping", responses[0].Response)
	assert.Empty(t, responses[0].Error)

	assert.True(t, got[2].IsFinalResponse())
	assert.Equal(t, "done", got[2].Content.Text())
}

func TestLoopUnknownToolReportsError(t *testing.T) {
	mock := model.NewMockChatModel("test-model", "mock")
	mock.Script(
		toolCallResponse("call-1", "no_such_tool", `{}`),
		textResponse("recovered"),
	)

	loop := NewLoop()
	events, errs := loop.Run(context.Background(), Config{
		Model:          mock,
		RecursionLimit: 10,
	}, "question")

	got, err := collect(t, events, errs)

	require.NoError(t, err)
	require.Len(t, got, 3)

	responses := got[1].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Error, "no_such_tool")

	assert.True(t, got[2].IsFinalResponse())
}

func TestLoopRecursionLimit(t *testing.T) {
	mock := model.NewMockChatModel("test-model", "mock")
	// Always asks for another tool call, never concludes.
	mock.Script(
		toolCallResponse("call-1", "no_such_tool", `{}`),
		toolCallResponse("call-2", "no_such_tool", `{}`),
		toolCallResponse("call-3", "no_such_tool", `{}`),
	)

	loop := NewLoop()
	events, errs := loop.Run(context.Background(), Config{
		Model:          mock,
		RecursionLimit: 2,
	}, "question")

	got, err := collect(t, events, errs)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "recursion limit")

	last := got[len(got)-1]
	require.NotNil(t, last.ErrorMessage)
}

func TestLoopContextCancellation(t *testing.T) {
	mock := model.NewMockChatModel("test-model", "mock")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := NewLoop()
	events, errs := loop.Run(ctx, Config{
		Model:          mock,
		RecursionLimit: 10,
	}, "question")

	_, err := collect(t, events, errs)

	require.ErrorIs(t, err, context.Canceled)
}

func TestLoopDelegation(t *testing.T) {
	mock := model.NewMockChatModel("test-model", "mock")
	mock.Script(
		toolCallResponse("call-1", "task", `{"subagent":"researcher","prompt":"look up golang"}`),
		textResponse("researcher findings"),
		textResponse("final report"),
	)

	loop := NewLoop()
	events, errs := loop.Run(context.Background(), Config{
		Model: mock,
		Delegation: DelegationPolicy{
			DefaultModel: mock,
			SubAgents: []SubAgentSpec{
				{Name: "researcher", Description: "Researches", SystemPrompt: "You research."},
			},
		},
		RecursionLimit: 10,
	}, "question")

	got, err := collect(t, events, errs)

	require.NoError(t, err)

	var authors []string
	for _, ev := range got {
		authors = append(authors, ev.Author)
	}
	assert.Contains(t, authors, "researcher")

	responses := funcResponses(got)
	require.Len(t, responses, 1)
	assert.Equal(t, "researcher findings", responses[0].Response)

	last := got[len(got)-1]
	assert.Equal(t, "agent", last.Author)
	assert.True(t, last.IsFinalResponse())
	assert.Equal(t, "final report", last.Content.Text())
}

func TestLoopUnknownSubagent(t *testing.T) {
	mock := model.NewMockChatModel("test-model", "mock")
	mock.Script(
		toolCallResponse("call-1", "task", `{"subagent":"nobody","prompt":"anything"}`),
		textResponse("handled"),
	)

	loop := NewLoop()
	events, errs := loop.Run(context.Background(), Config{
		Model: mock,
		Delegation: DelegationPolicy{
			DefaultModel: mock,
			SubAgents: []SubAgentSpec{
				{Name: "researcher", Description: "Researches"},
			},
		},
		RecursionLimit: 10,
	}, "question")

	got, err := collect(t, events, errs)

	require.NoError(t, err)

	responses := funcResponses(got)
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Error, "nobody")

	assert.True(t, got[len(got)-1].IsFinalResponse())
}

func TestLoopDelegationDefaultTools(t *testing.T) {
	var calls int
	echo := tool.NewFunctionTool("echo", "Echoes input",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			calls++
			return args["text"], nil
		})

	mock := model.NewMockChatModel("test-model", "mock")
	mock.Script(
		toolCallResponse("call-1", "task", `{"subagent":"researcher","prompt":"use your tools"}`),
		toolCallResponse("call-2", "echo", `{"text":"ping"}`),
		textResponse("subagent done"),
		textResponse("final"),
	)

	loop := NewLoop()
	events, errs := loop.Run(context.Background(), Config{
		Model: mock,
		Delegation: DelegationPolicy{
			DefaultModel: mock,
			DefaultTools: []tool.Tool{echo},
			SubAgents: []SubAgentSpec{
				// nil Tools inherits DefaultTools.
				{Name: "researcher", Description: "Researches"},
			},
		},
		RecursionLimit: 10,
	}, "question")

	got, err := collect(t, events, errs)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, got[len(got)-1].IsFinalResponse())
}

func TestLoopFailedDelegationReportsToolError(t *testing.T) {
	mock := model.NewMockChatModel("test-model", "mock")
	mock.Script(
		toolCallResponse("call-1", "task", `{"subagent":"researcher","prompt":"look up golang"}`),
		textResponse("concluded without subagent input"),
	)

	loop := NewLoop()
	events, errs := loop.Run(context.Background(), Config{
		Model: mock,
		Delegation: DelegationPolicy{
			DefaultModel: mock,
			SubAgents: []SubAgentSpec{
				{Name: "researcher", Description: "Researches", Model: failingModel{}},
			},
		},
		RecursionLimit: 10,
	}, "question")

	got, err := collect(t, events, errs)

	require.NoError(t, err)

	responses := funcResponses(got)
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Error, "researcher")
	assert.Contains(t, responses[0].Error, "provider unavailable")

	assert.True(t, got[len(got)-1].IsFinalResponse())
}

func TestLoopFailedDelegationsDoNotLeakGoroutines(t *testing.T) {
	before := goruntime.NumGoroutine()

	for i := 0; i < 20; i++ {
		mock := model.NewMockChatModel("test-model", "mock")
		mock.Script(
			toolCallResponse("call-1", "task", `{"subagent":"researcher","prompt":"x"}`),
			textResponse("done"),
		)

		loop := NewLoop()
		events, errs := loop.Run(context.Background(), Config{
			Model: mock,
			Delegation: DelegationPolicy{
				DefaultModel: mock,
				SubAgents: []SubAgentSpec{
					{Name: "researcher", Model: failingModel{}},
				},
			},
			RecursionLimit: 10,
		}, "question")

		_, err := collect(t, events, errs)
		require.NoError(t, err)
	}

	// Let finished tee goroutines unwind before counting.
	var after int
	for i := 0; i < 50; i++ {
		time.Sleep(10 * time.Millisecond)
		after = goruntime.NumGoroutine()
		if after <= before+2 {
			break
		}
	}

	assert.LessOrEqual(t, after, before+2,
		"goroutines grew from %d to %d across failed delegations", before, after)
}

func TestDelegationPolicyFind(t *testing.T) {
	policy := DelegationPolicy{
		SubAgents: []SubAgentSpec{
			{Name: "a"},
			{Name: "b"},
		},
	}

	require.NotNil(t, policy.Find("b"))
	assert.Equal(t, "b", policy.Find("b").Name)
	assert.Nil(t, policy.Find("c"))
}

func funcResponses(events []core.Event) []core.FunctionResponse {
	var out []core.FunctionResponse
	for _, ev := range events {
		out = append(out, ev.GetFunctionResponses()...)
	}
	return out
}
