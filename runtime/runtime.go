// Package runtime defines the invocation contract between the research
// assembly and an agent-graph runtime: the configuration a runtime accepts
// (model, tools, system prompt, subagent specifications, policies) and the
// channel-based run surface it exposes. Full-featured runtimes with
// summarization, parallel scheduling and persistence live outside this
// module; the package ships a deliberately minimal sequential Loop for local
// runs and tests.
package runtime

import (
	"context"

	"github.com/hupe1980/deepresearch/core"
	"github.com/hupe1980/deepresearch/model"
	"github.com/hupe1980/deepresearch/tool"
)

// SubAgentSpec describes a named agent the top-level agent can delegate a
// sub-task to. Specs are defined statically at startup and read-only
// thereafter; runtimes look them up by name.
type SubAgentSpec struct {
	// Name uniquely identifies the subagent.
	Name string
	// Description is the routing hint shown to the delegating agent.
	Description string
	// SystemPrompt replaces the top-level prompt for the subagent.
	SystemPrompt string
	// Tools restricts the subagent's tool set; nil falls back to the
	// delegation policy defaults.
	Tools []tool.Tool
	// Model overrides the delegation policy default model when non-nil.
	Model model.ChatModel
}

// SummarizationPolicy carries the thresholds controlling when a runtime
// condenses conversation history to stay within a model's context limits.
// The reference Loop does not condense; the policy is part of the contract
// consumed by full runtimes.
type SummarizationPolicy struct {
	// TriggerMessages starts summarization once this many messages accumulate.
	TriggerMessages int
	// TriggerTokens starts summarization once this many tokens accumulate.
	TriggerTokens int
	// KeepMessages is the retention window of recent messages left verbatim.
	KeepMessages int
	// TrimTokens is the target size summarized history is trimmed to.
	TrimTokens int
}

// DefaultSummarizationPolicy returns aggressive settings suited to local
// models with small context windows.
func DefaultSummarizationPolicy() SummarizationPolicy {
	return SummarizationPolicy{
		TriggerMessages: 8,
		TriggerTokens:   3000,
		KeepMessages:    4,
		TrimTokens:      1500,
	}
}

// DelegationPolicy configures how a runtime spawns subagents.
type DelegationPolicy struct {
	// DefaultModel is used by specs without a model override.
	DefaultModel model.ChatModel
	// DefaultTools is used by specs without a tool subset.
	DefaultTools []tool.Tool
	// SubAgents is the static registry of named specs.
	SubAgents []SubAgentSpec
	// MaxConcurrent bounds parallel subagent execution in full runtimes.
	MaxConcurrent int
	// MaxIterations bounds research rounds before the agent must conclude.
	MaxIterations int
}

// Find returns the spec with the given name, or nil.
func (p DelegationPolicy) Find(name string) *SubAgentSpec {
	for i := range p.SubAgents {
		if p.SubAgents[i].Name == name {
			return &p.SubAgents[i]
		}
	}
	return nil
}

// Config is everything a runtime needs to drive a research run.
type Config struct {
	Model         model.ChatModel
	Tools         []tool.Tool
	SystemPrompt  string
	Summarization SummarizationPolicy
	Delegation    DelegationPolicy
	// RecursionLimit bounds total model turns across the run.
	RecursionLimit int
}

// Runtime drives the conversation loop: it invokes the model, executes the
// tool calls the model decides on, and emits events until a final response.
// Implementations own all durable state (history, task list, scratch files).
type Runtime interface {
	Run(ctx context.Context, cfg Config, question string) (<-chan core.Event, <-chan error)
}
