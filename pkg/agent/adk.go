package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	adkagent "google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/mikeboe/research-chat/pkg/prompt"
)

const (
	appName   = "research-chat"
	agentName = "ai_researcher"
	userID    = "user"
)

// ADKRunner runs the research agent on the Agent Development Kit with Gemini models.
type ADKRunner struct {
	APIKey  string
	Models  map[prompt.ModelChoice]string
	Toolbox *Toolbox
}

func NewADKRunner(apiKey string, models map[prompt.ModelChoice]string, toolbox *Toolbox) *ADKRunner {
	return &ADKRunner{APIKey: apiKey, Models: models, Toolbox: toolbox}
}

func (r *ADKRunner) modelName(choice prompt.ModelChoice) string {
	if name, ok := r.Models[choice]; ok && name != "" {
		return name
	}
	return r.Models[prompt.ModelPro]
}

func (r *ADKRunner) Stream(ctx context.Context, req Request) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		run, sessionID, err := r.prepare(ctx, req)
		if err != nil {
			yield(Event{}, err)
			return
		}

		userContent := &genai.Content{
			Role:  "user",
			Parts: []*genai.Part{{Text: req.Input}},
		}
		runCfg := adkagent.RunConfig{
			StreamingMode: adkagent.StreamingModeNone,
		}

		slog.Info("Starting agent run", "session_id", sessionID, "model", r.modelName(req.Options.Model))
		for ev, err := range run.Run(ctx, userID, sessionID, userContent, runCfg) {
			if err != nil {
				slog.Error("Agent runner error", "error", err)
				yield(Event{}, err)
				return
			}
			for _, out := range convertEvent(ev) {
				if !yield(out, nil) {
					return
				}
			}
		}
		slog.Info("Agent run completed", "session_id", sessionID)
	}
}

// prepare builds a fresh agent for the turn and hydrates an in-memory ADK
// session with the prior conversation.
func (r *ADKRunner) prepare(ctx context.Context, req Request) (*runner.Runner, string, error) {
	llm, err := gemini.NewModel(ctx, r.modelName(req.Options.Model), &genai.ClientConfig{
		APIKey: r.APIKey,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create model: %w", err)
	}

	agentTools, err := r.Toolbox.build(req.Options.Depth.MaxResults())
	if err != nil {
		return nil, "", err
	}

	researcher, err := llmagent.New(llmagent.Config{
		Name:        agentName,
		Model:       llm,
		Description: "An autonomous researcher that searches arXiv, reads papers and writes reports.",
		Instruction: req.Instruction,
		Tools:       agentTools,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create agent: %w", err)
	}

	sessionSvc := session.InMemoryService()
	sessionID := uuid.NewString()
	created, err := sessionSvc.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	for _, msg := range req.History {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		role, author := "user", userID
		if msg.Role == RoleAssistant {
			role, author = "model", agentName
		}

		evt := session.NewEvent(uuid.NewString())
		evt.Author = author
		evt.LLMResponse = model.LLMResponse{
			Content: &genai.Content{
				Role:  role,
				Parts: []*genai.Part{{Text: msg.Content}},
			},
		}
		if err := sessionSvc.AppendEvent(ctx, created.Session, evt); err != nil {
			return nil, "", fmt.Errorf("failed to hydrate history: %w", err)
		}
	}

	run, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          researcher,
		SessionService: sessionSvc,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create runner: %w", err)
	}
	return run, sessionID, nil
}

// convertEvent splits an ADK event into stream events: one assistant event
// for text and function calls, then one event per function response.
func convertEvent(ev *session.Event) []Event {
	if ev == nil || ev.LLMResponse.Content == nil || ev.LLMResponse.Partial {
		return nil
	}

	var (
		calls   []ToolCall
		text    strings.Builder
		results []Event
	)
	for _, part := range ev.LLMResponse.Content.Parts {
		if part == nil {
			continue
		}
		switch {
		case part.FunctionCall != nil:
			calls = append(calls, ToolCall{Name: part.FunctionCall.Name, Args: part.FunctionCall.Args})
		case part.FunctionResponse != nil:
			payload, isErr := responsePayload(part.FunctionResponse.Response)
			results = append(results, Event{
				Role:       RoleTool,
				ToolResult: &ToolResult{Name: part.FunctionResponse.Name, Payload: payload, IsError: isErr},
			})
		case part.Text != "" && !part.Thought:
			text.WriteString(part.Text)
		}
	}

	var out []Event
	if len(calls) > 0 || (text.Len() > 0 && ev.Author != userID) {
		out = append(out, Event{Role: RoleAssistant, Text: text.String(), ToolCalls: calls})
	}
	return append(out, results...)
}

// responsePayload flattens a function response into the string the reducer
// sees. Render results carry a path; other tools are passed through as JSON.
func responsePayload(resp map[string]any) (string, bool) {
	if msg, ok := resp["error"].(string); ok {
		return msg, true
	}
	for _, key := range []string{"path", "result", "results", "content"} {
		if v, ok := resp[key].(string); ok {
			return v, false
		}
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprintf("%v", resp), false
	}
	return string(data), false
}
