package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// QuickStartTopics are offered while the conversation is still empty.
var QuickStartTopics = []string{
	"Autonomous Agents",
	"Quantum Machine Learning",
	"CRISPR Gene Editing",
	"Climate Change AI",
}

// QuickStartRequest turns a quick-start topic into the user's opening message.
func QuickStartRequest(topic string) string {
	return fmt.Sprintf("I want to research %s. Find me the latest papers.", topic)
}

// ShowQuickStart reports whether quick-start topics should be offered for a
// transcript of the given length.
func ShowQuickStart(messages int) bool {
	return messages <= 1
}

// FollowUp is a suggested next step and the message it sends.
type FollowUp struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// DefaultFollowUps are offered after every completed turn.
var DefaultFollowUps = []FollowUp{
	{Label: "Tell me more about the methodology", Message: "Tell me more about the methodology used in these papers."},
	{Label: "What are the limitations?", Message: "What are the main limitations or weaknesses of this research?"},
	{Label: "Compare with other approaches", Message: "How does this compare to other state-of-the-art approaches?"},
}

const followUpPrompt = `Suggest exactly 3 short follow-up questions a researcher might ask after reading this report.
Return the JSON object directly without any formatting or additional text, using this structure:
{"follow_ups": [{"label": "<max 6 words>", "message": "<the full question>"}]}

Report:
%s`

// SuggestFollowUps asks llm for follow-ups tailored to report. Any failure,
// including a nil model, yields DefaultFollowUps.
func SuggestFollowUps(ctx context.Context, llm llms.Model, report string) []FollowUp {
	if llm == nil || strings.TrimSpace(report) == "" {
		return DefaultFollowUps
	}

	runes := []rune(report)
	if len(runes) > 4000 {
		report = string(runes[:4000])
	}

	content, err := llms.GenerateFromSinglePrompt(ctx, llm, fmt.Sprintf(followUpPrompt, report), llms.WithJSONMode())
	if err != nil {
		slog.Warn("Follow-up generation failed", "error", err)
		return DefaultFollowUps
	}

	var resp struct {
		FollowUps []FollowUp `json:"follow_ups"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &resp); err != nil {
		slog.Warn("Follow-up response was not valid JSON", "error", err)
		return DefaultFollowUps
	}

	out := make([]FollowUp, 0, len(resp.FollowUps))
	for _, f := range resp.FollowUps {
		if f.Label == "" || f.Message == "" {
			continue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return DefaultFollowUps
	}
	return out
}
