package session

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RootNode is the fixed node every search topic hangs off.
const RootNode = "Research"

var (
	ErrNotFound   = errors.New("session not found")
	ErrPaperIndex = errors.New("paper index out of range")
)

// ChatMessage is one entry of the conversation transcript.
type ChatMessage struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	AudioPath string `json:"audio_path,omitempty"`
}

// GeneratedPaper is a PDF produced by the agent during a turn.
type GeneratedPaper struct {
	Path       string `json:"path"`
	Topic      string `json:"topic"`
	Bookmarked bool   `json:"bookmarked"`
}

// Bookmark references a paper the user explicitly saved.
type Bookmark struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

// Edge is a directed knowledge graph edge.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// KnowledgeGraph holds the topics searched during a session. Nodes and edges
// behave as sets but keep insertion order so rendering is stable.
type KnowledgeGraph struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// AddNode adds name unless it is already present.
func (g *KnowledgeGraph) AddNode(name string) {
	if !slices.Contains(g.Nodes, name) {
		g.Nodes = append(g.Nodes, name)
	}
}

// AddEdge adds from->to unless it is already present.
func (g *KnowledgeGraph) AddEdge(from, to string) {
	e := Edge{From: from, To: to}
	if !slices.Contains(g.Edges, e) {
		g.Edges = append(g.Edges, e)
	}
}

// AddTopic records a searched topic under the root node.
func (g *KnowledgeGraph) AddTopic(topic string) {
	g.AddNode(RootNode)
	g.AddNode(topic)
	g.AddEdge(RootNode, topic)
}

// Empty reports whether nothing has been searched yet.
func (g *KnowledgeGraph) Empty() bool {
	return len(g.Nodes) == 0
}

// Store is the per-session state every turn reads and mutates.
type Store struct {
	ID        uuid.UUID        `json:"id"`
	Title     string           `json:"title"`
	Messages  []ChatMessage    `json:"messages"`
	Papers    []GeneratedPaper `json:"papers"`
	Bookmarks []Bookmark       `json:"bookmarks"`
	Graph     KnowledgeGraph   `json:"graph"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
