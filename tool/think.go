package tool

import (
	"github.com/hupe1980/deepresearch/core"
)

// thinkAcknowledgement is returned for every reflection regardless of input.
const thinkAcknowledgement = "Reflection recorded. Continue with your research plan."

// thinkArgs describes the think_tool parameters exposed to the model.
type thinkArgs struct {
	Reflection string `json:"reflection" description:"Your detailed reflection on progress and next steps"`
}

// NewThinkTool gives the model an explicit "pause and reason" action. The
// reflection text is never read back here; the conversation history owned by
// the runtime is what preserves it.
func NewThinkTool() *FunctionTool {
	return NewFunctionToolFromStruct(
		"think_tool",
		"Tool for strategic reflection on research progress: what was gathered, what gaps remain, whether to continue searching or answer.",
		thinkArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			reflection, _ := args["reflection"].(string)
			tc.Logger().Debug("tool.think", "chars", len(reflection))
			return thinkAcknowledgement, nil
		},
	)
}
