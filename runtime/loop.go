package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/deepresearch/core"
	"github.com/hupe1980/deepresearch/internal/util"
	"github.com/hupe1980/deepresearch/logging"
	"github.com/hupe1980/deepresearch/model"
	"github.com/hupe1980/deepresearch/tool"
)

// LoopOptions configures the reference loop.
type LoopOptions struct {
	// Logger receives loop progress. Defaults to the no-op logger.
	Logger logging.Logger
}

// Loop is a minimal sequential runtime: one model turn, then inline execution
// of any requested tool calls, repeated until a final text turn or the
// recursion limit. Subagent delegation runs nested loops via the built-in
// "task" tool. It keeps no durable state and performs no summarization; it
// exists for local runs and tests, not production workloads.
type Loop struct {
	opts LoopOptions
}

// NewLoop creates a sequential reference runtime.
func NewLoop(optFns ...func(o *LoopOptions)) *Loop {
	opts := LoopOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Loop{opts: opts}
}

// Run starts the loop asynchronously. The event channel is closed when a
// final response is emitted or an unrecoverable error is sent on the error
// channel. Callers should range over events and then drain the error channel.
func (l *Loop) Run(ctx context.Context, cfg Config, question string) (<-chan core.Event, <-chan error) {
	eventChan := make(chan core.Event, 100)
	errChan := make(chan error, 1)

	go func() {
		defer close(eventChan)
		defer close(errChan)

		runID := util.NewID()

		state := &runState{
			runID:     runID,
			remaining: cfg.RecursionLimit,
		}
		if state.remaining <= 0 {
			state.remaining = 1
		}

		contents := []core.Content{core.NewUserContent(question)}

		if err := l.runAgent(ctx, cfg, state, agentParams{
			author:       "agent",
			systemPrompt: cfg.SystemPrompt,
			model:        cfg.Model,
			tools:        cfg.Tools,
			delegation:   &cfg.Delegation,
		}, contents, eventChan); err != nil {
			eventChan <- core.NewErrorEvent(runID, err)
			errChan <- err
		}
	}()

	return eventChan, errChan
}

// runState is the per-run turn budget shared between the top-level agent and
// any nested subagent loops.
type runState struct {
	runID     string
	remaining int
}

// agentParams describes one agent participating in the run.
type agentParams struct {
	author       string
	systemPrompt string
	model        model.ChatModel
	tools        []tool.Tool
	// delegation is non-nil only for the top-level agent; subagents cannot
	// delegate further.
	delegation *DelegationPolicy
}

// runAgent drives one agent's conversation to completion. It returns the
// final text when the model stops requesting tools, via the last emitted
// event; a non-nil error aborts the whole run.
func (l *Loop) runAgent(
	ctx context.Context,
	cfg Config,
	state *runState,
	params agentParams,
	contents []core.Content,
	eventChan chan<- core.Event,
) error {
	registry := map[string]tool.Tool{}
	for _, t := range params.tools {
		registry[t.Name()] = t
	}

	if params.delegation != nil && len(params.delegation.SubAgents) > 0 {
		taskTool := l.newTaskTool(ctx, cfg, state, eventChan)
		registry[taskTool.Name()] = taskTool
		params.tools = append(append([]tool.Tool{}, params.tools...), taskTool)
	}

	req := model.Request{
		Instructions: params.systemPrompt,
		Tools:        toolDefinitions(params.tools),
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if state.remaining <= 0 {
			return fmt.Errorf("recursion limit reached before a final response")
		}
		state.remaining--

		req.Contents = contents

		start := time.Now()
		resp, err := params.model.Invoke(ctx, req, nil)
		if err != nil {
			return fmt.Errorf("model invocation failed: %w", err)
		}

		l.opts.Logger.Debug("loop.turn",
			"author", params.author,
			"duration_ms", time.Since(start).Milliseconds(),
			"remaining_turns", state.remaining,
		)

		contents = append(contents, resp.Content)

		ev := core.NewEvent(state.runID, params.author)
		content := resp.Content
		ev.Content = &content

		fnCalls := ev.GetFunctionCalls()
		if len(fnCalls) == 0 {
			turnComplete := true
			ev.TurnComplete = &turnComplete
			eventChan <- ev
			return nil
		}
		eventChan <- ev

		for _, fc := range fnCalls {
			result, callErr := l.executeTool(ctx, state, registry, params.author, fc)
			respEvent := core.NewFunctionResponseEvent(state.runID, params.author, fc.ID, fc.Name, result, callErr)
			eventChan <- respEvent
			contents = append(contents, *respEvent.Content)
		}
	}
}

// executeTool runs one function call, recovering panics into tool errors so a
// misbehaving tool cannot take down the loop.
func (l *Loop) executeTool(
	ctx context.Context,
	state *runState,
	registry map[string]tool.Tool,
	author string,
	fc core.FunctionCall,
) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.opts.Logger.Error("loop.tool.panic",
				"function", fc.Name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			result = nil
			err = fmt.Errorf("tool %s panicked: %v", fc.Name, r)
		}
	}()

	t, ok := registry[fc.Name]
	if !ok {
		return nil, tool.NewToolError(fc.Name, fmt.Sprintf("unknown tool %q", fc.Name), "UNKNOWN_TOOL")
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if uerr := json.Unmarshal([]byte(fc.Arguments), &args); uerr != nil {
			return nil, tool.NewToolError(fc.Name, fmt.Sprintf("invalid arguments: %v", uerr), "VALIDATION_ERROR")
		}
	}

	l.opts.Logger.Info("loop.tool.start",
		"author", author,
		"function", fc.Name,
		"function_call_id", fc.ID,
	)

	toolCtx := core.NewToolContext(ctx, state.runID, fc.ID, l.opts.Logger)

	return t.Call(toolCtx, args)
}

// taskArgs are the arguments of the built-in delegation tool.
type taskArgs struct {
	Subagent string `json:"subagent" description:"Name of the subagent to delegate to"`
	Prompt   string `json:"prompt" description:"Self-contained task description for the subagent"`
}

// newTaskTool builds the delegation tool: it looks up the named subagent spec
// and runs a nested loop against the same turn budget, returning the
// subagent's final text as the tool result.
func (l *Loop) newTaskTool(ctx context.Context, cfg Config, state *runState, eventChan chan<- core.Event) tool.Tool {
	description := "Delegate a self-contained task to a named subagent. Available subagents:"
	for _, spec := range cfg.Delegation.SubAgents {
		description += fmt.Sprintf("\n- %s: %s", spec.Name, spec.Description)
	}

	return tool.NewFunctionToolFromStruct("task", description, taskArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			name, _ := args["subagent"].(string)
			prompt, _ := args["prompt"].(string)

			spec := cfg.Delegation.Find(name)
			if spec == nil {
				return nil, tool.NewToolError("task", fmt.Sprintf("unknown subagent %q", name), "UNKNOWN_SUBAGENT")
			}

			subModel := spec.Model
			if subModel == nil {
				subModel = cfg.Delegation.DefaultModel
			}
			subTools := spec.Tools
			if subTools == nil {
				subTools = cfg.Delegation.DefaultTools
			}

			collector := newSubagentCollector()
			sink := collector.forward(eventChan)

			runErr := l.runAgent(ctx, cfg, state, agentParams{
				author:       spec.Name,
				systemPrompt: spec.SystemPrompt,
				model:        subModel,
				tools:        subTools,
			}, []core.Content{core.NewUserContent(prompt)}, sink)

			// The collector must be drained and closed on every path or its
			// tee goroutine blocks forever.
			final := collector.finalText()
			if runErr != nil {
				return nil, fmt.Errorf("subagent %s failed: %w", spec.Name, runErr)
			}

			return final, nil
		})
}

// subagentCollector forwards nested loop events to the outer stream while
// remembering the last assistant text, which becomes the tool result.
type subagentCollector struct {
	ch   chan core.Event
	done chan struct{}
	last string
}

func newSubagentCollector() *subagentCollector {
	return &subagentCollector{
		ch:   make(chan core.Event, 100),
		done: make(chan struct{}),
	}
}

// forward starts the tee goroutine and returns the channel the nested loop
// emits into. Events pass through to outer unchanged.
func (c *subagentCollector) forward(outer chan<- core.Event) chan<- core.Event {
	go func() {
		defer close(c.done)
		for ev := range c.ch {
			if ev.IsFinalResponse() && ev.Content != nil {
				c.last = ev.Content.Text()
			}
			outer <- ev
		}
	}()

	return c.ch
}

// finalText closes the collector and returns the subagent's last full text.
func (c *subagentCollector) finalText() string {
	close(c.ch)
	<-c.done
	if c.last == "" {
		return "Subagent produced no final response."
	}
	return c.last
}

func toolDefinitions(tools []tool.Tool) []model.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
