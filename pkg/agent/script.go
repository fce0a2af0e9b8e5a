package agent

import (
	"context"
	"iter"
)

// Script is a Runner that replays a fixed event list. When Err is set it is
// yielded after FailAfter events.
type Script struct {
	Events    []Event
	Err       error
	FailAfter int

	// Requests records every request the script received.
	Requests []Request
}

func (s *Script) Stream(ctx context.Context, req Request) iter.Seq2[Event, error] {
	s.Requests = append(s.Requests, req)
	return func(yield func(Event, error) bool) {
		for i, ev := range s.Events {
			if s.Err != nil && i == s.FailAfter {
				yield(Event{}, s.Err)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
		if s.Err != nil && s.FailAfter >= len(s.Events) {
			yield(Event{}, s.Err)
		}
	}
}

// ToolCallEvent builds an assistant event requesting a single tool call.
func ToolCallEvent(name string, args map[string]any) Event {
	return Event{Role: RoleAssistant, ToolCalls: []ToolCall{{Name: name, Args: args}}}
}

// ToolResultEvent builds a tool result event.
func ToolResultEvent(name, payload string) Event {
	return Event{Role: RoleTool, ToolResult: &ToolResult{Name: name, Payload: payload}}
}

// TextEvent builds an assistant text event.
func TextEvent(text string) Event {
	return Event{Role: RoleAssistant, Text: text}
}
