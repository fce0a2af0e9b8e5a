package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

func collect(t *testing.T, s *Script) ([]Event, error) {
	t.Helper()
	var out []Event
	for ev, err := range s.Stream(context.Background(), Request{Input: "go"}) {
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func TestScriptReplaysEvents(t *testing.T) {
	s := &Script{Events: []Event{TextEvent("a"), TextEvent("b")}}
	got, err := collect(t, s)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Len(t, s.Requests, 1)
	assert.Equal(t, "go", s.Requests[0].Input)
}

func TestScriptFailsMidway(t *testing.T) {
	boom := errors.New("boom")
	s := &Script{Events: []Event{TextEvent("a"), TextEvent("b"), TextEvent("c")}, Err: boom, FailAfter: 2}
	got, err := collect(t, s)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, got, 2)
}

func TestScriptFailsAtEnd(t *testing.T) {
	boom := errors.New("boom")
	s := &Script{Events: []Event{TextEvent("a")}, Err: boom, FailAfter: 5}
	got, err := collect(t, s)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, got, 1)
}

func newADKEvent(author string, parts ...*genai.Part) *session.Event {
	ev := session.NewEvent("inv")
	ev.Author = author
	ev.LLMResponse = model.LLMResponse{Content: &genai.Content{Role: "model", Parts: parts}}
	return ev
}

func TestConvertEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   *session.Event
		want []Event
	}{
		{
			name: "Nil event",
			ev:   nil,
			want: nil,
		},
		{
			name: "Final text",
			ev:   newADKEvent(agentName, &genai.Part{Text: "Report"}, &genai.Part{Text: " done"}),
			want: []Event{{Role: RoleAssistant, Text: "Report done"}},
		},
		{
			name: "Thoughts are dropped",
			ev:   newADKEvent(agentName, &genai.Part{Text: "thinking", Thought: true}),
			want: nil,
		},
		{
			name: "Function calls",
			ev: newADKEvent(agentName,
				&genai.Part{FunctionCall: &genai.FunctionCall{Name: "arxiv_search", Args: map[string]any{"topic": "llm"}}},
			),
			want: []Event{{Role: RoleAssistant, ToolCalls: []ToolCall{{Name: "arxiv_search", Args: map[string]any{"topic": "llm"}}}}},
		},
		{
			name: "Function responses",
			ev: newADKEvent(userID,
				&genai.Part{FunctionResponse: &genai.FunctionResponse{Name: "render_latex_pdf", Response: map[string]any{"path": "/tmp/p.pdf"}}},
				&genai.Part{FunctionResponse: &genai.FunctionResponse{Name: "render_latex_pdf", Response: map[string]any{"error": "pdflatex missing"}}},
			),
			want: []Event{
				{Role: RoleTool, ToolResult: &ToolResult{Name: "render_latex_pdf", Payload: "/tmp/p.pdf"}},
				{Role: RoleTool, ToolResult: &ToolResult{Name: "render_latex_pdf", Payload: "pdflatex missing", IsError: true}},
			},
		},
		{
			name: "User echo text is ignored",
			ev:   newADKEvent(userID, &genai.Part{Text: "hello"}),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convertEvent(tt.ev))
		})
	}
}

func TestResponsePayload(t *testing.T) {
	p, isErr := responsePayload(map[string]any{"results": "# Title: x"})
	assert.Equal(t, "# Title: x", p)
	assert.False(t, isErr)

	p, _ = responsePayload(map[string]any{"count": 2})
	assert.JSONEq(t, `{"count":2}`, p)
}
