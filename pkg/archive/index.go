// Package archive indexes generated papers for full-text search.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"

	"github.com/mikeboe/research-chat/pkg/research/tools"
	"github.com/mikeboe/research-chat/pkg/session"
)

const (
	fieldSession = "session_id"
	fieldPath    = "path"
	fieldTopic   = "topic"
	fieldContent = "content"

	// maxContentRunes bounds the text indexed per paper.
	maxContentRunes = 200_000
)

type document struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Topic     string `json:"topic"`
	Content   string `json:"content"`
}

// Hit is a search result.
type Hit struct {
	Path  string  `json:"path"`
	Topic string  `json:"topic"`
	Score float64 `json:"score"`
}

// Loader returns the papers a session already holds.
type Loader func(ctx context.Context, sessionID uuid.UUID) ([]session.GeneratedPaper, error)

// Index is an in-memory bleve index of generated papers across sessions.
type Index struct {
	mu    sync.Mutex
	index bleve.Index
	// extract reads the text of a paper on disk.
	extract func(path string) (string, error)

	loadMu sync.Mutex
	load   Loader
	loaded map[uuid.UUID]struct{}
}

func New() (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldTopic, text)

	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = false
	docMapping.AddFieldMappingsAt(fieldContent, content)

	keyword := bleve.NewKeywordFieldMapping()
	keyword.IncludeInAll = false
	docMapping.AddFieldMappingsAt(fieldSession, keyword)
	docMapping.AddFieldMappingsAt(fieldPath, keyword)

	im.AddDocumentMapping("paper", docMapping)
	im.DefaultType = "paper"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create paper index: %w", err)
	}
	return &Index{
		index:   index,
		extract: tools.ExtractPDFFile,
		loaded:  make(map[uuid.UUID]struct{}),
	}, nil
}

// SetLoader makes Search rebuild a session's entries from load the first time
// the session is searched. The index itself does not survive a restart.
func (x *Index) SetLoader(load Loader) {
	x.loadMu.Lock()
	defer x.loadMu.Unlock()
	x.load = load
}

func (x *Index) hydrate(ctx context.Context, sessionID uuid.UUID) {
	x.loadMu.Lock()
	defer x.loadMu.Unlock()
	if x.load == nil {
		return
	}
	if _, ok := x.loaded[sessionID]; ok {
		return
	}
	papers, err := x.load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			slog.Warn("Failed to load papers for indexing", "session_id", sessionID, "error", err)
		}
		return
	}
	for _, p := range papers {
		if err := x.Add(ctx, sessionID, p); err != nil {
			slog.Warn("Failed to reindex paper", "session_id", sessionID, "path", p.Path, "error", err)
		}
	}
	x.loaded[sessionID] = struct{}{}
}

func docID(sessionID uuid.UUID, path string) string {
	return sessionID.String() + ":" + path
}

// Add indexes paper under sessionID. When the PDF cannot be read only its
// topic is indexed.
func (x *Index) Add(ctx context.Context, sessionID uuid.UUID, paper session.GeneratedPaper) error {
	doc := document{
		SessionID: sessionID.String(),
		Path:      paper.Path,
		Topic:     paper.Topic,
	}
	if text, err := x.extract(paper.Path); err != nil {
		slog.Warn("Indexing paper without text", "path", paper.Path, "error", err)
	} else {
		if runes := []rune(text); len(runes) > maxContentRunes {
			text = string(runes[:maxContentRunes])
		}
		doc.Content = text
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.index.Index(docID(sessionID, paper.Path), doc); err != nil {
		return fmt.Errorf("failed to index paper %s: %w", paper.Path, err)
	}
	return nil
}

func sessionQuery(sessionID uuid.UUID) *blevequery.TermQuery {
	q := bleve.NewTermQuery(sessionID.String())
	q.SetField(fieldSession)
	return q
}

// Search returns papers of sessionID whose topic or text matches query.
func (x *Index) Search(ctx context.Context, sessionID uuid.UUID, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}
	x.hydrate(ctx, sessionID)

	topicQ := bleve.NewMatchQuery(query)
	topicQ.SetField(fieldTopic)
	topicQ.SetBoost(2)
	contentQ := bleve.NewMatchQuery(query)
	contentQ.SetField(fieldContent)

	q := bleve.NewConjunctionQuery(sessionQuery(sessionID), bleve.NewDisjunctionQuery(topicQ, contentQ))
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{fieldPath, fieldTopic}

	x.mu.Lock()
	res, err := x.index.SearchInContext(ctx, req)
	x.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("paper search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		path, _ := h.Fields[fieldPath].(string)
		topic, _ := h.Fields[fieldTopic].(string)
		hits = append(hits, Hit{Path: path, Topic: topic, Score: h.Score})
	}
	return hits, nil
}

// Remove drops every paper indexed for sessionID.
func (x *Index) Remove(ctx context.Context, sessionID uuid.UUID) error {
	x.loadMu.Lock()
	delete(x.loaded, sessionID)
	x.loadMu.Unlock()

	x.mu.Lock()
	defer x.mu.Unlock()

	for {
		req := bleve.NewSearchRequest(sessionQuery(sessionID))
		req.Size = 500
		res, err := x.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to list papers of %s: %w", sessionID, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := x.index.NewBatch()
		for _, h := range res.Hits {
			batch.Delete(h.ID)
		}
		if err := x.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to remove papers of %s: %w", sessionID, err)
		}
	}
}

func (x *Index) Close() error {
	return x.index.Close()
}

// Entry is a paper as shown in the archive listing.
type Entry struct {
	Index   int                    `json:"index"`
	Paper   session.GeneratedPaper `json:"paper"`
	Missing bool                   `json:"missing"`
}

// Inspect checks every paper file. Missing files are flagged, never fatal.
func Inspect(papers []session.GeneratedPaper) []Entry {
	entries := make([]Entry, 0, len(papers))
	for i, p := range papers {
		_, err := os.Stat(p.Path)
		entries = append(entries, Entry{Index: i, Paper: p, Missing: err != nil})
	}
	return entries
}
