package core

import (
	"time"

	"github.com/hupe1980/deepresearch/internal/util"
)

// Event is the unit of communication a runtime emits while driving a research
// run. After emission it should be treated as immutable. Content may be nil
// for error-only events.
type Event struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	Author       string    `json:"author"`
	Timestamp    time.Time `json:"timestamp"`
	Content      *Content  `json:"content,omitempty"`
	Partial      *bool     `json:"partial,omitempty"`
	TurnComplete *bool     `json:"turn_complete,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to a run.
func NewEvent(runID, author string) Event {
	return Event{
		ID:        util.NewID(),
		RunID:     runID,
		Author:    author,
		Timestamp: time.Now().UTC(),
	}
}

// NewMessageEvent creates an assistant message event with a single text part.
func NewMessageEvent(runID, author, message string) Event {
	e := NewEvent(runID, author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewFunctionResponseEvent records the completion result (or error) of a
// tool/function invocation. If err is non-nil its message is copied into the
// response.Error field.
func NewFunctionResponseEvent(runID, author, id, functionName string, result any, err error) Event {
	e := NewEvent(runID, author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewErrorEvent wraps an error as a system-authored event.
func NewErrorEvent(runID string, err error) Event {
	e := NewEvent(runID, "system")
	msg := err.Error()
	e.ErrorMessage = &msg
	return e
}

// GetFunctionCalls extracts all function call parts from the event content.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses extracts all function response parts from the event content.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// IsPartial reports whether the event is a partial streaming chunk.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// IsFinalResponse reports whether the event is a complete assistant turn
// with no pending function calls.
func (e Event) IsFinalResponse() bool {
	return e.TurnComplete != nil && *e.TurnComplete
}
