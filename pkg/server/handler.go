package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mikeboe/research-chat/pkg/archive"
	"github.com/mikeboe/research-chat/pkg/chat"
	"github.com/mikeboe/research-chat/pkg/export"
	"github.com/mikeboe/research-chat/pkg/prompt"
	"github.com/mikeboe/research-chat/pkg/render"
	"github.com/mikeboe/research-chat/pkg/session"
)

// StreamEvent represents a single event in the turn stream
type StreamEvent struct {
	Type    string `json:"type"` // "notice", "content", "error", "done"
	Payload any    `json:"payload"`
}

type Handler struct {
	Chat   *chat.Service
	Papers PaperSearcher
	Logs   LogReader
	MCP    http.Handler
}

func NewHandler(c *chat.Service, papers PaperSearcher, logs LogReader, mcpHandler http.Handler) *Handler {
	return &Handler{Chat: c, Papers: papers, Logs: logs, MCP: mcpHandler}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	if h.MCP != nil {
		r.Any("/mcp", gin.WrapH(h.MCP))
	}
	api := r.Group("/api")
	{
		api.GET("/suggestions", h.suggestions)

		api.POST("/sessions", h.createSession)
		api.GET("/sessions/:id", h.getSession)
		api.POST("/sessions/:id/reset", h.resetSession)
		api.POST("/sessions/:id/messages", h.sendMessage)
		api.GET("/sessions/:id/messages/:index/docx", h.exportDocx)
		api.GET("/sessions/:id/messages/:index/audio", h.downloadAudio)
		api.GET("/sessions/:id/graph", h.getGraph)
		api.GET("/sessions/:id/papers", h.listPapers)
		api.GET("/sessions/:id/papers/search", h.searchPapers)
		api.GET("/sessions/:id/papers/:index/download", h.downloadPaper)
		api.POST("/sessions/:id/papers/:index/bookmark", h.bookmarkPaper)
		api.GET("/sessions/:id/bookmarks", h.listBookmarks)
		api.GET("/sessions/:id/logs", h.getLogs)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrPaperIndex):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrTurnInProgress):
		return http.StatusConflict
	case errors.Is(err, export.ErrNotExportable):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return uuid.Nil, false
	}
	return id, true
}

func parseIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return 0, false
	}
	return index, true
}

func (h *Handler) load(c *gin.Context) (*session.Store, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	store, err := h.Chat.Snapshot(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return store, true
}

type quickStart struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

func (h *Handler) suggestions(c *gin.Context) {
	topics := make([]quickStart, 0, len(prompt.QuickStartTopics))
	for _, t := range prompt.QuickStartTopics {
		topics = append(topics, quickStart{Topic: t, Message: prompt.QuickStartRequest(t)})
	}
	c.JSON(http.StatusOK, gin.H{
		"quick_start": topics,
		"follow_ups":  prompt.DefaultFollowUps,
		"languages":   prompt.Languages,
		"personas":    prompt.Personas,
		"defaults":    prompt.DefaultOptions(),
	})
}

func (h *Handler) createSession(c *gin.Context) {
	store, err := h.Chat.Create(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, store)
}

func (h *Handler) getSession(c *gin.Context) {
	store, ok := h.load(c)
	if !ok {
		return
	}
	body := gin.H{
		"session":          store,
		"show_quick_start": prompt.ShowQuickStart(len(store.Messages)),
	}
	if latest, ok := store.LastPaper(); ok {
		body["latest_paper"] = latest
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) resetSession(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	store, err := h.Chat.Reset(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, store)
}

type SendMessageRequest struct {
	Content string `json:"content"`
	// Topic starts a quick-start request when Content is empty.
	Topic string `json:"topic"`
	prompt.Options
}

// sseSink streams turn progress. Headers are written on the first event so
// errors raised before the turn starts can still use a plain status code.
type sseSink struct {
	c       *gin.Context
	started bool
}

func (s *sseSink) start() {
	if s.started {
		return
	}
	s.started = true
	s.c.Header("Content-Type", "text/event-stream")
	s.c.Header("Cache-Control", "no-cache")
	s.c.Header("Connection", "keep-alive")
	s.c.Status(http.StatusOK)
}

func (s *sseSink) send(ev StreamEvent) {
	s.start()
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal stream event", "type", ev.Type, "error", err)
		return
	}
	_, _ = s.c.Writer.Write([]byte("data: "))
	_, _ = s.c.Writer.Write(data)
	_, _ = s.c.Writer.Write([]byte("\n\n"))
	s.c.Writer.Flush()
}

func (s *sseSink) Notice(msg string)   { s.send(StreamEvent{Type: "notice", Payload: msg}) }
func (s *sseSink) Content(text string) { s.send(StreamEvent{Type: "content", Payload: text}) }
func (s *sseSink) Complete()           {}
func (s *sseSink) Fail(err error)      { s.send(StreamEvent{Type: "error", Payload: err.Error()}) }

func (h *Handler) sendMessage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Content == "" && req.Topic != "" {
		req.Content = prompt.QuickStartRequest(req.Topic)
	}
	if req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	sink := &sseSink{c: c}
	turn, err := h.Chat.SendMessage(c.Request.Context(), id, req.Content, req.Options, sink)
	if err != nil {
		switch {
		case !sink.started:
			fail(c, err)
		case turn == nil:
			// Stream failures come back with a partial turn and were reported
			// through the sink. Anything else happened after the stream ended.
			slog.Error("Turn failed after streaming started", "session_id", id, "error", err)
			sink.send(StreamEvent{Type: "error", Payload: err.Error()})
		}
		return
	}
	sink.send(StreamEvent{Type: "done", Payload: turn})
}

func (h *Handler) exportDocx(c *gin.Context) {
	store, ok := h.load(c)
	if !ok {
		return
	}
	index, ok := parseIndex(c)
	if !ok {
		return
	}
	if index >= len(store.Messages) || !export.DocxEligible(store.Messages[index]) {
		fail(c, export.ErrNotExportable)
		return
	}
	data, err := export.Docx(store.Messages[index].Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="research_report.docx"`)
	c.Data(http.StatusOK, export.DocxMIME, data)
}

func (h *Handler) downloadAudio(c *gin.Context) {
	store, ok := h.load(c)
	if !ok {
		return
	}
	index, ok := parseIndex(c)
	if !ok {
		return
	}
	if index >= len(store.Messages) || store.Messages[index].AudioPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no audio for this message"})
		return
	}
	serveFile(c, store.Messages[index].AudioPath, "audio/wav")
}

func (h *Handler) getGraph(c *gin.Context) {
	store, ok := h.load(c)
	if !ok {
		return
	}
	dot, err := render.GraphDOT(store.Graph)
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/vnd.graphviz; charset=utf-8", []byte(dot))
}

func (h *Handler) listPapers(c *gin.Context) {
	store, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, archive.Inspect(store.Papers))
}

func (h *Handler) searchPapers(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if h.Papers == nil {
		c.JSON(http.StatusOK, []archive.Hit{})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	hits, err := h.Papers.Search(c.Request.Context(), id, c.Query("q"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hits)
}

func (h *Handler) downloadPaper(c *gin.Context) {
	store, ok := h.load(c)
	if !ok {
		return
	}
	index, ok := parseIndex(c)
	if !ok {
		return
	}
	if index >= len(store.Papers) {
		fail(c, session.ErrPaperIndex)
		return
	}
	serveFile(c, store.Papers[index].Path, "application/pdf")
}

// serveFile answers 404 with a warning when the artifact has disappeared.
func serveFile(c *gin.Context, path, mime string) {
	if _, err := os.Stat(path); err != nil {
		slog.Warn("Artifact file not found", "path", path)
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found: " + filepath.Base(path)})
		return
	}
	c.Header("Content-Type", mime)
	c.FileAttachment(path, filepath.Base(path))
}

func (h *Handler) bookmarkPaper(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	index, ok := parseIndex(c)
	if !ok {
		return
	}
	bm, err := h.Chat.Bookmark(c.Request.Context(), id, index)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bm)
}

func (h *Handler) listBookmarks(c *gin.Context) {
	store, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, store.Bookmarks)
}

func (h *Handler) getLogs(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if h.Logs == nil {
		c.JSON(http.StatusOK, []LogEntry{})
		return
	}
	logs, err := h.Logs.SessionLogs(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if logs == nil {
		logs = []LogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}
