package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-chat/pkg/agent"
	"github.com/mikeboe/research-chat/pkg/archive"
	"github.com/mikeboe/research-chat/pkg/chat"
	"github.com/mikeboe/research-chat/pkg/export"
	"github.com/mikeboe/research-chat/pkg/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var longReport = "# Findings\n" + strings.Repeat("Quantum error correction keeps improving. ", 5)

func newTestRouter(t *testing.T, runner agent.Runner) (*gin.Engine, *chat.Service) {
	t.Helper()
	svc := chat.NewService(session.NewMemoryRepository(time.Hour), runner, nil, nil, nil)
	r := gin.New()
	NewHandler(svc, nil, nil, nil).RegisterRoutes(r)
	return r, svc
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	w := do(r, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var store session.Store
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &store))
	return store.ID.String()
}

func streamEvents(t *testing.T, body string) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	for _, chunk := range strings.Split(body, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		var ev StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(chunk, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestSessionLifecycle(t *testing.T) {
	script := &agent.Script{Events: []agent.Event{
		agent.ToolCallEvent("arxiv_search", map[string]any{"topic": "quantum ai"}),
		agent.ToolResultEvent("arxiv_search", "ok"),
		agent.ToolResultEvent("render_latex_pdf", "/nonexistent/report1.pdf"),
		agent.TextEvent(longReport),
	}}
	r, _ := newTestRouter(t, script)
	id := createSession(t, r)

	w := do(r, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"show_quick_start":true`)
	assert.NotContains(t, w.Body.String(), "latest_paper")

	w = do(r, http.MethodPost, "/api/sessions/"+id+"/messages", map[string]any{
		"topic":    "Quantum Machine Learning",
		"language": "German",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := streamEvents(t, w.Body.String())
	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{"notice", "notice", "notice", "content", "done"}, types)
	assert.Equal(t, "Searching: `arxiv_search`", events[0].Payload)
	assert.Equal(t, "PDF Generated: `report1.pdf`", events[2].Payload)
	assert.Equal(t, "I want to research Quantum Machine Learning. Find me the latest papers.", script.Requests[0].Input)

	w = do(r, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		LatestPaper session.GeneratedPaper `json:"latest_paper"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "/nonexistent/report1.pdf", got.LatestPaper.Path)

	w = do(r, http.MethodGet, "/api/sessions/"+id+"/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Research"->"quantum ai"`)

	w = do(r, http.MethodGet, "/api/sessions/"+id+"/papers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []archive.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Missing)

	w = do(r, http.MethodGet, "/api/sessions/"+id+"/papers/0/download", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "report1.pdf")

	w = do(r, http.MethodPost, "/api/sessions/"+id+"/papers/0/bookmark", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodPost, "/api/sessions/"+id+"/papers/4/bookmark", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/sessions/"+id+"/messages/1/docx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.DocxMIME, w.Header().Get("Content-Type"))
	assert.Equal(t, "PK", w.Body.String()[:2])

	w = do(r, http.MethodGet, "/api/sessions/"+id+"/messages/0/docx", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodGet, "/api/sessions/"+id+"/messages/1/audio", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/sessions/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/sessions/"+id+"/bookmarks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bookmarks []session.Bookmark
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bookmarks))
	assert.Equal(t, []session.Bookmark{{Title: "quantum ai", Path: "/nonexistent/report1.pdf"}}, bookmarks)

	w = do(r, http.MethodGet, "/api/sessions/"+id+"/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestSendMessageStreamFailure(t *testing.T) {
	script := &agent.Script{
		Events:    []agent.Event{agent.ToolCallEvent("arxiv_search", map[string]any{"topic": "x"})},
		Err:       assert.AnError,
		FailAfter: 1,
	}
	r, _ := newTestRouter(t, script)
	id := createSession(t, r)

	w := do(r, http.MethodPost, "/api/sessions/"+id+"/messages", map[string]any{"content": "go"})
	require.Equal(t, http.StatusOK, w.Code)
	events := streamEvents(t, w.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "error", events[1].Type)
	assert.Equal(t, assert.AnError.Error(), events[1].Payload)
}

// flakyRepo stores sessions in memory but fails every save after the first.
type flakyRepo struct {
	*session.MemoryRepository
	saves int
}

func (r *flakyRepo) Save(ctx context.Context, s *session.Store) error {
	r.saves++
	if r.saves > 1 {
		return errors.New("disk full")
	}
	return r.MemoryRepository.Save(ctx, s)
}

func TestSendMessageSaveFailureAfterStreaming(t *testing.T) {
	script := &agent.Script{Events: []agent.Event{
		agent.ToolCallEvent("arxiv_search", map[string]any{"topic": "x"}),
		agent.TextEvent("hello"),
	}}
	svc := chat.NewService(&flakyRepo{MemoryRepository: session.NewMemoryRepository(time.Hour)}, script, nil, nil, nil)
	r := gin.New()
	NewHandler(svc, nil, nil, nil).RegisterRoutes(r)
	id := createSession(t, r)

	w := do(r, http.MethodPost, "/api/sessions/"+id+"/messages", map[string]any{"content": "go"})
	require.Equal(t, http.StatusOK, w.Code)
	events := streamEvents(t, w.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "notice", events[0].Type)
	assert.Equal(t, "content", events[1].Type)
	assert.Equal(t, "error", events[2].Type)
	assert.Contains(t, events[2].Payload, "disk full")
}

func TestRequestValidation(t *testing.T) {
	r, _ := newTestRouter(t, &agent.Script{})
	id := createSession(t, r)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"Invalid uuid", http.MethodGet, "/api/sessions/nope", nil, http.StatusBadRequest},
		{"Unknown session", http.MethodGet, "/api/sessions/00000000-0000-0000-0000-000000000001", nil, http.StatusNotFound},
		{"Empty message", http.MethodPost, "/api/sessions/" + id + "/messages", map[string]any{}, http.StatusBadRequest},
		{"Bad index", http.MethodGet, "/api/sessions/" + id + "/messages/x/docx", nil, http.StatusBadRequest},
		{"Suggestions", http.MethodGet, "/api/suggestions", nil, http.StatusOK},
		{"Search without archive", http.MethodGet, "/api/sessions/" + id + "/papers/search?q=x", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

// blockingRunner holds a turn open until release is closed.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRunner) Stream(ctx context.Context, req agent.Request) iter.Seq2[agent.Event, error] {
	return func(yield func(agent.Event, error) bool) {
		close(b.started)
		<-b.release
		yield(agent.TextEvent("done"), nil)
	}
}

func TestConcurrentTurnConflict(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	r, _ := newTestRouter(t, runner)
	id := createSession(t, r)

	first := make(chan *httptest.ResponseRecorder)
	go func() {
		first <- do(r, http.MethodPost, "/api/sessions/"+id+"/messages", map[string]any{"content": "one"})
	}()
	<-runner.started

	w := do(r, http.MethodPost, "/api/sessions/"+id+"/messages", map[string]any{"content": "two"})
	assert.Equal(t, http.StatusConflict, w.Code)

	close(runner.release)
	assert.Equal(t, http.StatusOK, (<-first).Code)
}

type fakeLogs struct {
	entries []LogEntry
	got     uuid.UUID
}

func (f *fakeLogs) SessionLogs(ctx context.Context, id uuid.UUID) ([]LogEntry, error) {
	f.got = id
	return f.entries, nil
}

func TestSessionLogs(t *testing.T) {
	svc := chat.NewService(session.NewMemoryRepository(time.Hour), &agent.Script{}, nil, nil, nil)
	logs := &fakeLogs{entries: []LogEntry{{ID: 1, Level: "INFO", Message: "Starting turn", Metadata: json.RawMessage(`{"model":"pro"}`)}}}
	r := gin.New()
	NewHandler(svc, nil, logs, nil).RegisterRoutes(r)

	id := createSession(t, r)
	w := do(r, http.MethodGet, "/api/sessions/"+id+"/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got []LogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Starting turn", got[0].Message)
	assert.JSONEq(t, `{"model":"pro"}`, string(got[0].Metadata))
	assert.Equal(t, id, logs.got.String())

	r2, _ := newTestRouter(t, &agent.Script{})
	w = do(r2, http.MethodGet, "/api/sessions/"+uuid.NewString()+"/logs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
