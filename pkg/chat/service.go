package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/research-chat/pkg/agent"
	"github.com/mikeboe/research-chat/pkg/prompt"
	"github.com/mikeboe/research-chat/pkg/session"
)

var ErrTurnInProgress = errors.New("a turn is already running for this session")

// AudioRenderer turns the spoken summary of a reply into an audio file.
type AudioRenderer interface {
	Render(ctx context.Context, text string, lang prompt.Language) (string, bool)
}

// PaperIndexer receives papers generated during a turn.
type PaperIndexer interface {
	Add(ctx context.Context, sessionID uuid.UUID, paper session.GeneratedPaper) error
	Remove(ctx context.Context, sessionID uuid.UUID) error
}

type Service struct {
	Repo    session.Repository
	Runner  agent.Runner
	Audio   AudioRenderer
	Archive PaperIndexer
	// Assist is an optional fast model for titles and follow-up suggestions.
	Assist llms.Model
	// BaseInstructions precede the composed clauses. Defaults to prompt.BaseInstructions.
	BaseInstructions string

	mu sync.Mutex
	// busy holds the sessions with an operation in flight.
	busy map[uuid.UUID]struct{}
}

// Turn is the outcome of one SendMessage call.
type Turn struct {
	Reply     session.ChatMessage       `json:"reply"`
	NewPapers []session.GeneratedPaper `json:"new_papers"`
	FollowUps []prompt.FollowUp        `json:"follow_ups"`
	Store     *session.Store           `json:"session"`
}

func NewService(repo session.Repository, runner agent.Runner, audio AudioRenderer, archive PaperIndexer, assist llms.Model) *Service {
	return &Service{
		Repo:             repo,
		Runner:           runner,
		Audio:            audio,
		Archive:          archive,
		Assist:           assist,
		BaseInstructions: prompt.BaseInstructions,
		busy:             make(map[uuid.UUID]struct{}),
	}
}

func (s *Service) lock(id uuid.UUID) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy == nil {
		s.busy = make(map[uuid.UUID]struct{})
	}
	if _, ok := s.busy[id]; ok {
		return nil, ErrTurnInProgress
	}
	s.busy[id] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.busy, id)
		s.mu.Unlock()
	}, nil
}

func (s *Service) Create(ctx context.Context) (*session.Store, error) {
	store := session.New()
	if err := s.Repo.Save(ctx, store); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	slog.Info("Session created", "session_id", store.ID)
	return store, nil
}

func (s *Service) Snapshot(ctx context.Context, id uuid.UUID) (*session.Store, error) {
	return s.Repo.Get(ctx, id)
}

// Reset clears the transcript, papers and graph of a session. Bookmarks are kept.
func (s *Service) Reset(ctx context.Context, id uuid.UUID) (*session.Store, error) {
	unlock, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	store, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	store.Reset()
	if s.Archive != nil {
		if err := s.Archive.Remove(ctx, id); err != nil {
			slog.Warn("Failed to clear paper index", "session_id", id, "error", err)
		}
	}
	if err := s.Repo.Save(ctx, store); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	slog.Info("Session reset", "session_id", id)
	return store, nil
}

func (s *Service) Bookmark(ctx context.Context, id uuid.UUID, index int) (session.Bookmark, error) {
	unlock, err := s.lock(id)
	if err != nil {
		return session.Bookmark{}, err
	}
	defer unlock()

	store, err := s.Repo.Get(ctx, id)
	if err != nil {
		return session.Bookmark{}, err
	}
	bm, err := store.Bookmark(index)
	if err != nil {
		return session.Bookmark{}, err
	}
	if err := s.Repo.Save(ctx, store); err != nil {
		return session.Bookmark{}, fmt.Errorf("failed to save session: %w", err)
	}
	return bm, nil
}

func history(msgs []session.ChatMessage) []agent.Message {
	out := make([]agent.Message, 0, len(msgs))
	for _, m := range msgs {
		role := agent.RoleUser
		if m.Role == session.RoleAssistant {
			role = agent.RoleAssistant
		}
		out = append(out, agent.Message{Role: role, Content: m.Content})
	}
	return out
}

// SendMessage runs one research turn. Progress is reported to sink. When the
// agent stream fails, the session keeps everything recorded before the
// failure and the error is returned together with the partial turn.
func (s *Service) SendMessage(ctx context.Context, id uuid.UUID, input string, opts prompt.Options, sink StatusSink) (*Turn, error) {
	if sink == nil {
		sink = NopSink{}
	}
	unlock, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	store, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	opts = opts.Normalize()
	base := s.BaseInstructions
	if base == "" {
		base = prompt.BaseInstructions
	}
	req := agent.Request{
		Instruction: prompt.Compose(base, opts),
		Options:     opts,
		History:     history(store.Messages),
		Input:       input,
	}
	store.AppendMessage(session.ChatMessage{Role: session.RoleUser, Content: input})
	papersBefore := len(store.Papers)

	slog.Info("Starting turn", "session_id", id, "model", opts.Model, "depth", opts.Depth, "language", opts.Language)
	text, runErr := Reduce(store, s.Runner.Stream(ctx, req), sink)

	reply := session.ChatMessage{Role: session.RoleAssistant, Content: text}
	// A partial reply from a failed run is still spoken.
	if spoken, ok := AudioText(text); ok && s.Audio != nil {
		if path, ok := s.Audio.Render(ctx, spoken, opts.Language); ok {
			reply.AudioPath = path
		}
	}
	if runErr == nil || text != "" {
		store.AppendMessage(reply)
	}

	newPapers := append([]session.GeneratedPaper(nil), store.Papers[papersBefore:]...)
	if s.Archive != nil {
		for _, p := range newPapers {
			if err := s.Archive.Add(ctx, id, p); err != nil {
				slog.Warn("Failed to index paper", "session_id", id, "path", p.Path, "error", err)
			}
		}
	}

	if runErr == nil && len(store.Messages) <= 2 {
		store.Title = s.title(ctx, input, text)
	}

	// Persist with a fresh context so a cancelled request still records the partial turn.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.Repo.Save(saveCtx, store); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	turn := &Turn{Reply: reply, NewPapers: newPapers, Store: store}
	if runErr != nil {
		return turn, fmt.Errorf("agent run failed: %w", runErr)
	}
	turn.FollowUps = prompt.SuggestFollowUps(ctx, s.Assist, text)
	slog.Info("Turn completed", "session_id", id, "reply_len", len(text), "new_papers", len(newPapers))
	return turn, nil
}

const titlePrompt = `Generate a short, concise title (max 5 words) for this research conversation.
Return the JSON object directly without any formatting or additional text: {"title": "<title>"}
User: %s
Assistant: %s`

// title names the session after its first exchange. Without an assist model,
// or on failure, the opening request is shortened instead.
func (s *Service) title(ctx context.Context, userMsg, reply string) string {
	fallback := shorten(userMsg, 60)
	if s.Assist == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	content, err := llms.GenerateFromSinglePrompt(ctx, s.Assist, fmt.Sprintf(titlePrompt, userMsg, shorten(reply, 2000)), llms.WithJSONMode())
	if err != nil {
		slog.Warn("Title generation failed", "error", err)
		return fallback
	}
	var resp struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &resp); err != nil || strings.TrimSpace(resp.Title) == "" {
		slog.Warn("Failed to unmarshal title generation response", "raw_json", content)
		return fallback
	}
	return strings.TrimSpace(resp.Title)
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
