package session

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// New returns an empty session store.
func New() *Store {
	now := time.Now().UTC()
	return &Store{
		ID:        uuid.New(),
		Title:     "New Research Session",
		Messages:  []ChatMessage{},
		Papers:    []GeneratedPaper{},
		Bookmarks: []Bookmark{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendMessage adds a message to the end of the transcript.
func (s *Store) AppendMessage(msg ChatMessage) {
	s.Messages = append(s.Messages, msg)
	s.touch()
}

// HasPaper reports whether a paper with path is already archived.
func (s *Store) HasPaper(path string) bool {
	for _, p := range s.Papers {
		if p.Path == path {
			return true
		}
	}
	return false
}

// AddPaper archives a generated paper. It returns false when a paper with the
// same path already exists.
func (s *Store) AddPaper(path, topic string) bool {
	if s.HasPaper(path) {
		return false
	}
	s.Papers = append(s.Papers, GeneratedPaper{Path: path, Topic: topic})
	s.touch()
	return true
}

// Bookmark saves the paper at index. Bookmarking the same paper twice is a no-op.
func (s *Store) Bookmark(index int) (Bookmark, error) {
	if index < 0 || index >= len(s.Papers) {
		return Bookmark{}, fmt.Errorf("bookmark %d: %w", index, ErrPaperIndex)
	}
	paper := &s.Papers[index]
	bm := Bookmark{Title: paper.Topic, Path: paper.Path}
	paper.Bookmarked = true
	for _, existing := range s.Bookmarks {
		if existing.Path == bm.Path {
			return existing, nil
		}
	}
	s.Bookmarks = append(s.Bookmarks, bm)
	s.touch()
	return bm, nil
}

// Reset clears the transcript, the paper archive and the knowledge graph.
// Bookmarks survive a reset.
func (s *Store) Reset() {
	s.Messages = []ChatMessage{}
	s.Papers = []GeneratedPaper{}
	s.Graph = KnowledgeGraph{}
	s.touch()
}

// LastPaper returns the most recently archived paper.
func (s *Store) LastPaper() (GeneratedPaper, bool) {
	if len(s.Papers) == 0 {
		return GeneratedPaper{}, false
	}
	return s.Papers[len(s.Papers)-1], true
}

func (s *Store) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	c := *s
	c.Messages = slices.Clone(s.Messages)
	c.Papers = slices.Clone(s.Papers)
	c.Bookmarks = slices.Clone(s.Bookmarks)
	c.Graph = KnowledgeGraph{
		Nodes: slices.Clone(s.Graph.Nodes),
		Edges: slices.Clone(s.Graph.Edges),
	}
	return &c
}
