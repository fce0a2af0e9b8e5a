package chat

import (
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"

	"github.com/mikeboe/research-chat/pkg/agent"
	"github.com/mikeboe/research-chat/pkg/research/tools"
	"github.com/mikeboe/research-chat/pkg/session"
)

const (
	// DefaultTopic labels a search call that carries no topic argument.
	DefaultTopic = "Unknown Topic"
	// DefaultPaperTopic labels a paper rendered before any search in the turn.
	DefaultPaperTopic = "New Research Paper"

	audioMinRunes = 50
	audioMaxRunes = 500
	audioEllipsis = "..."
)

// StatusSink receives progress of a single turn.
type StatusSink interface {
	// Notice reports a tool call or tool result.
	Notice(msg string)
	// Content reports the current display text. Each call replaces the previous one.
	Content(text string)
	// Complete marks the turn as finished.
	Complete()
	// Fail marks the turn as failed with err.
	Fail(err error)
}

// NopSink discards all status updates.
type NopSink struct{}

func (NopSink) Notice(string)  {}
func (NopSink) Content(string) {}
func (NopSink) Complete()      {}
func (NopSink) Fail(error)     {}

type reducer struct {
	store *session.Store
	sink  StatusSink
	topic string
	text  string
}

// Reduce folds an agent event stream into store and returns the final display
// text. The first stream error stops consumption; mutations applied before it
// are kept and the partial display text is returned along with the error.
func Reduce(store *session.Store, events iter.Seq2[agent.Event, error], sink StatusSink) (string, error) {
	if sink == nil {
		sink = NopSink{}
	}
	r := &reducer{store: store, sink: sink}

	for ev, err := range events {
		if err != nil {
			slog.Error("Agent stream failed", "session_id", store.ID, "error", err)
			sink.Fail(err)
			return r.text, err
		}
		r.apply(ev)
	}

	sink.Complete()
	return r.text, nil
}

func (r *reducer) apply(ev agent.Event) {
	switch {
	case len(ev.ToolCalls) > 0:
		for _, call := range ev.ToolCalls {
			r.toolCall(call)
		}
	case ev.ToolResult != nil:
		r.toolResult(*ev.ToolResult)
	case ev.Role == agent.RoleAssistant && ev.Text != "":
		r.text = ev.Text
		r.sink.Content(r.text)
	}
}

func (r *reducer) toolCall(call agent.ToolCall) {
	slog.Info("Tool call", "session_id", r.store.ID, "tool", call.Name)
	r.sink.Notice(fmt.Sprintf("Searching: `%s`", call.Name))

	if call.Name != tools.SearchToolName {
		return
	}
	topic := DefaultTopic
	if v, ok := call.Args["topic"].(string); ok && v != "" {
		topic = v
	}
	r.topic = topic
	r.store.Graph.AddTopic(topic)
}

func (r *reducer) toolResult(res agent.ToolResult) {
	slog.Info("Tool result", "session_id", r.store.ID, "tool", res.Name, "is_error", res.IsError)

	switch res.Name {
	case tools.RenderToolName:
		if res.IsError {
			r.sink.Notice(fmt.Sprintf("PDF Generation Failed: %s", res.Payload))
			return
		}
		r.sink.Notice(fmt.Sprintf("PDF Generated: `%s`", filepath.Base(res.Payload)))
		topic := r.topic
		if topic == "" {
			topic = DefaultPaperTopic
		}
		r.store.AddPaper(res.Payload, topic)
	case tools.SearchToolName:
		r.sink.Notice("Arxiv Results Received")
	default:
		r.sink.Notice(fmt.Sprintf("Data Received from `%s`", res.Name))
	}
}

// AudioText returns the portion of text handed to the speech exporter, or
// false when text is too short to be worth speaking.
func AudioText(text string) (string, bool) {
	runes := []rune(text)
	if len(runes) <= audioMinRunes {
		return "", false
	}
	if len(runes) <= audioMaxRunes {
		return text, true
	}
	return string(runes[:audioMaxRunes]) + audioEllipsis, true
}
