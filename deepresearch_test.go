package deepresearch

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/deepresearch/config"
	"github.com/hupe1980/deepresearch/core"
	"github.com/hupe1980/deepresearch/model"
	"github.com/hupe1980/deepresearch/search"
)

func newTestAgent(t *testing.T, mock *model.MockChatModel) *Agent {
	t.Helper()

	agent, err := New(func(o *Options) {
		o.Config = config.Default()
		o.Model = mock
		o.SearchClient = search.NewClient("tvly-test")
	})
	require.NoError(t, err)
	return agent
}

func TestNewAssemblesSubagents(t *testing.T) {
	agent := newTestAgent(t, model.NewMockChatModel("test-model", "mock"))

	rtCfg := agent.RuntimeConfig()

	// The orchestrator carries the research tools itself, and subagent specs
	// without an explicit tool subset inherit the same set.
	require.Len(t, rtCfg.Tools, 2)
	assert.Equal(t, "internet_search", rtCfg.Tools[0].Name())
	assert.Equal(t, "think_tool", rtCfg.Tools[1].Name())

	require.Len(t, rtCfg.Delegation.DefaultTools, 2)
	assert.Equal(t, "internet_search", rtCfg.Delegation.DefaultTools[0].Name())
	assert.Equal(t, "think_tool", rtCfg.Delegation.DefaultTools[1].Name())

	require.Len(t, rtCfg.Delegation.SubAgents, 2)

	research := rtCfg.Delegation.Find(ResearchAgentName)
	require.NotNil(t, research)
	require.Len(t, research.Tools, 2)
	assert.Equal(t, "internet_search", research.Tools[0].Name())
	assert.Equal(t, "think_tool", research.Tools[1].Name())
	assert.NotEmpty(t, research.SystemPrompt)

	critique := rtCfg.Delegation.Find(CritiqueAgentName)
	require.NotNil(t, critique)
	// Explicit empty slice: the critic must not inherit the default tools.
	require.NotNil(t, critique.Tools)
	assert.Empty(t, critique.Tools)

	assert.Equal(t, config.Default().RecursionLimit, rtCfg.RecursionLimit)
}

func TestNewWrapsModelInAdapter(t *testing.T) {
	mock := model.NewMockChatModel("test-model", "mock")
	agent := newTestAgent(t, mock)

	assert.IsType(t, &model.Adapter{}, agent.Model())
	assert.Equal(t, mock.Info(), agent.Model().Info())
}

func TestNewUnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "bogus"

	_, err := New(func(o *Options) {
		o.Config = cfg
		o.SearchClient = search.NewClient("tvly-test")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model provider")
}

func TestNewAnthropicRequiresAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "anthropic"
	cfg.AnthropicAPIKey = ""

	_, err := New(func(o *Options) {
		o.Config = cfg
		o.SearchClient = search.NewClient("tvly-test")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvAnthropicAPIKey)
}

func TestMainPromptInterpolation(t *testing.T) {
	prompt := MainPrompt(4, 6)

	assert.Contains(t, prompt, "at most 4 research")
	assert.Contains(t, prompt, "after 6 rounds")
	assert.Contains(t, prompt, ResearchAgentName)
	assert.Contains(t, prompt, CritiqueAgentName)
	assert.Contains(t, prompt, "question.txt")
	assert.Contains(t, prompt, "final_report.md")
}

func TestRunSyncReturnsFinalReport(t *testing.T) {
	mock := model.NewMockChatModel("test-model", "mock")
	mock.Script(model.Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: "## Report\n\nFindings."}}},
		FinishReason: "stop",
	})

	agent := newTestAgent(t, mock)

	report, err := agent.RunSync(context.Background(), "What is Go?")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(report, "## Report"))
}

func TestRunStreamsEvents(t *testing.T) {
	mock := model.NewMockChatModel("test-model", "mock")
	mock.Script(model.Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: "answer"}}},
		FinishReason: "stop",
	})

	agent := newTestAgent(t, mock)

	events, errs := agent.Run(context.Background(), "question")

	var finals int
	for ev := range events {
		if ev.IsFinalResponse() {
			finals++
		}
	}
	require.NoError(t, <-errs)
	assert.Equal(t, 1, finals)
}
