package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-chat/pkg/agent"
	"github.com/mikeboe/research-chat/pkg/prompt"
	"github.com/mikeboe/research-chat/pkg/session"
)

type fakeAudio struct {
	texts []string
	langs []prompt.Language
	fail  bool
}

func (f *fakeAudio) Render(ctx context.Context, text string, lang prompt.Language) (string, bool) {
	f.texts = append(f.texts, text)
	f.langs = append(f.langs, lang)
	if f.fail {
		return "", false
	}
	return "/tmp/summary.wav", true
}

type fakeArchive struct {
	added   []session.GeneratedPaper
	removed []uuid.UUID
}

func (f *fakeArchive) Add(ctx context.Context, id uuid.UUID, p session.GeneratedPaper) error {
	f.added = append(f.added, p)
	return nil
}

func (f *fakeArchive) Remove(ctx context.Context, id uuid.UUID) error {
	f.removed = append(f.removed, id)
	return nil
}

func newTestService(t *testing.T, script *agent.Script) (*Service, *fakeAudio, *fakeArchive) {
	t.Helper()
	audio := &fakeAudio{}
	archive := &fakeArchive{}
	svc := NewService(session.NewMemoryRepository(time.Hour), script, audio, archive, nil)
	return svc, audio, archive
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	report := strings.Repeat("r", 120)
	script := &agent.Script{Events: []agent.Event{
		agent.ToolCallEvent("arxiv_search", map[string]any{"topic": "quantum ai"}),
		agent.ToolResultEvent("arxiv_search", "ok"),
		agent.ToolResultEvent("render_latex_pdf", "/out/q.pdf"),
		agent.TextEvent(report),
	}}
	svc, audio, archive := newTestService(t, script)

	store, err := svc.Create(ctx)
	require.NoError(t, err)

	opts := prompt.Options{Language: prompt.French, Persona: prompt.PersonaSkeptic, CriticalMode: true}
	sink := &recordingSink{}
	turn, err := svc.SendMessage(ctx, store.ID, "Find quantum ai papers", opts, sink)
	require.NoError(t, err)

	assert.Equal(t, report, turn.Reply.Content)
	assert.Equal(t, "/tmp/summary.wav", turn.Reply.AudioPath)
	assert.Equal(t, []string{report}, audio.texts)
	assert.Equal(t, []prompt.Language{prompt.French}, audio.langs)
	assert.Equal(t, prompt.DefaultFollowUps, turn.FollowUps)
	require.Len(t, turn.NewPapers, 1)
	assert.Equal(t, "quantum ai", turn.NewPapers[0].Topic)
	assert.Equal(t, turn.NewPapers, archive.added)
	assert.True(t, sink.complete)

	require.Len(t, script.Requests, 1)
	req := script.Requests[0]
	assert.Equal(t, "Find quantum ai papers", req.Input)
	assert.Empty(t, req.History)
	assert.True(t, strings.HasPrefix(req.Instruction, prompt.BaseInstructions))
	assert.Contains(t, req.Instruction, "French")
	assert.Equal(t, prompt.ModelPro, req.Options.Model)

	saved, err := svc.Snapshot(ctx, store.ID)
	require.NoError(t, err)
	require.Len(t, saved.Messages, 2)
	assert.Equal(t, session.RoleUser, saved.Messages[0].Role)
	assert.Equal(t, session.RoleAssistant, saved.Messages[1].Role)
	assert.Equal(t, "Find quantum ai papers", saved.Title)
	assert.Len(t, saved.Papers, 1)
}

func TestSendMessageCarriesHistory(t *testing.T) {
	ctx := context.Background()
	script := &agent.Script{Events: []agent.Event{agent.TextEvent("short")}}
	svc, audio, _ := newTestService(t, script)

	store, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, store.ID, "first", prompt.DefaultOptions(), nil)
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, store.ID, "second", prompt.DefaultOptions(), nil)
	require.NoError(t, err)

	require.Len(t, script.Requests, 2)
	assert.Equal(t, []agent.Message{
		{Role: agent.RoleUser, Content: "first"},
		{Role: agent.RoleAssistant, Content: "short"},
	}, script.Requests[1].History)
	assert.Empty(t, audio.texts, "short replies are not spoken")
}

func TestSendMessageFailureKeepsPartialTurn(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota exhausted")
	script := &agent.Script{
		Events: []agent.Event{
			agent.ToolCallEvent("arxiv_search", map[string]any{"topic": "fusion"}),
			agent.ToolResultEvent("render_latex_pdf", "/out/f.pdf"),
		},
		Err:       boom,
		FailAfter: 2,
	}
	svc, audio, archive := newTestService(t, script)
	store, err := svc.Create(ctx)
	require.NoError(t, err)

	sink := &recordingSink{}
	turn, err := svc.SendMessage(ctx, store.ID, "fusion", prompt.DefaultOptions(), sink)
	require.ErrorIs(t, err, boom)
	require.NotNil(t, turn)
	assert.Equal(t, boom, sink.failed)
	assert.Empty(t, audio.texts)
	assert.Len(t, archive.added, 1)

	saved, err := svc.Snapshot(ctx, store.ID)
	require.NoError(t, err)
	assert.Contains(t, saved.Graph.Nodes, "fusion")
	assert.Len(t, saved.Papers, 1)
	require.Len(t, saved.Messages, 1)
	assert.Equal(t, session.RoleUser, saved.Messages[0].Role)
}

func TestSendMessageFailureStillSpeaksPartialReply(t *testing.T) {
	ctx := context.Background()
	partial := strings.Repeat("x", 600)
	script := &agent.Script{
		Events:    []agent.Event{agent.TextEvent(partial)},
		Err:       errors.New("boom"),
		FailAfter: 1,
	}
	svc, audio, _ := newTestService(t, script)
	store, err := svc.Create(ctx)
	require.NoError(t, err)

	turn, err := svc.SendMessage(ctx, store.ID, "go", prompt.DefaultOptions(), nil)
	require.Error(t, err)
	require.NotNil(t, turn)

	require.Len(t, audio.texts, 1)
	assert.Equal(t, strings.Repeat("x", 500)+"...", audio.texts[0])
	assert.Equal(t, "/tmp/summary.wav", turn.Reply.AudioPath)
	assert.Empty(t, turn.FollowUps)

	saved, err := svc.Snapshot(ctx, store.ID)
	require.NoError(t, err)
	require.Len(t, saved.Messages, 2)
	assert.Equal(t, "/tmp/summary.wav", saved.Messages[1].AudioPath)
}

func TestSessionLocksAreReleased(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &agent.Script{Events: []agent.Event{agent.TextEvent("done")}})
	store, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, store.ID, "hi", prompt.DefaultOptions(), nil)
	require.NoError(t, err)
	for range 3 {
		_, err = svc.SendMessage(ctx, uuid.New(), "hi", prompt.DefaultOptions(), nil)
		require.ErrorIs(t, err, session.ErrNotFound)
	}
	_, err = svc.Reset(ctx, store.ID)
	require.NoError(t, err)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Empty(t, svc.busy)
}

func TestSendMessageRejectsConcurrentTurn(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &agent.Script{})
	store, err := svc.Create(ctx)
	require.NoError(t, err)

	unlock, err := svc.lock(store.ID)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, store.ID, "hi", prompt.DefaultOptions(), nil)
	assert.ErrorIs(t, err, ErrTurnInProgress)
	_, err = svc.Reset(ctx, store.ID)
	assert.ErrorIs(t, err, ErrTurnInProgress)

	unlock()
	_, err = svc.SendMessage(ctx, store.ID, "hi", prompt.DefaultOptions(), nil)
	assert.NoError(t, err)
}

func TestSendMessageUnknownSession(t *testing.T) {
	svc, _, _ := newTestService(t, &agent.Script{})
	_, err := svc.SendMessage(context.Background(), uuid.New(), "hi", prompt.DefaultOptions(), nil)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestResetKeepsBookmarks(t *testing.T) {
	ctx := context.Background()
	script := &agent.Script{Events: []agent.Event{
		agent.ToolResultEvent("render_latex_pdf", "/out/a.pdf"),
		agent.TextEvent("done"),
	}}
	svc, _, archive := newTestService(t, script)
	store, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, store.ID, "go", prompt.DefaultOptions(), nil)
	require.NoError(t, err)

	bm, err := svc.Bookmark(ctx, store.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "/out/a.pdf", bm.Path)

	_, err = svc.Bookmark(ctx, store.ID, 3)
	assert.ErrorIs(t, err, session.ErrPaperIndex)

	reset, err := svc.Reset(ctx, store.ID)
	require.NoError(t, err)
	assert.Empty(t, reset.Messages)
	assert.Empty(t, reset.Papers)
	assert.True(t, reset.Graph.Empty())
	assert.Equal(t, []session.Bookmark{bm}, reset.Bookmarks)
	assert.Equal(t, []uuid.UUID{store.ID}, archive.removed)
}
