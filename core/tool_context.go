package core

import (
	"context"

	"github.com/hupe1980/deepresearch/logging"
)

// ToolContext provides a constrained surface for tool implementations invoked
// during a run. Tools in this codebase are stateless; the context carries only
// ambient cancellation, correlation identifiers and a logger. Durable state
// (conversation history, task list, scratch files) is owned by the runtime.
type ToolContext struct {
	ctx            context.Context
	runID          string
	functionCallID string
	logger         logging.Logger
}

// NewToolContext constructs a tool context bound to a run and a unique
// functionCallID. A nil logger is substituted with a NoOpLogger.
func NewToolContext(ctx context.Context, runID, functionCallID string, logger logging.Logger) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		ctx:            ctx,
		runID:          runID,
		functionCallID: functionCallID,
		logger:         logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runID }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }
