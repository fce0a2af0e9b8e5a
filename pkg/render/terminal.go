package render

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/mikeboe/research-chat/pkg/archive"
	"github.com/mikeboe/research-chat/pkg/session"
)

var (
	Primary = lipgloss.Color("#4F46E5")
	Muted   = lipgloss.Color("#6B7280")
	Green   = lipgloss.Color("#10B981")
	Amber   = lipgloss.Color("#F59E0B")
	Red     = lipgloss.Color("#EF4444")
)

// Styles used by the terminal client.
type Styles struct {
	Title   lipgloss.Style
	Prompt  lipgloss.Style
	Notice  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Reply   lipgloss.Style
}

func NewStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true),
		Prompt: lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true),
		Notice: lipgloss.NewStyle().
			Foreground(Muted).
			PaddingLeft(2),
		Success: lipgloss.NewStyle().
			Foreground(Green).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(Amber),
		Error: lipgloss.NewStyle().
			Foreground(Red).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(Muted),
		Reply: lipgloss.NewStyle().
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(Primary),
	}
}

// Markdown renders reports for a terminal of the given width.
type Markdown struct {
	renderer *glamour.TermRenderer
}

// NewMarkdown picks the style from the terminal background. Style "notty"
// produces plain output.
func NewMarkdown(style string, width int) (*Markdown, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return &Markdown{renderer: r}, nil
}

// Render falls back to the raw text when rendering fails.
func (m *Markdown) Render(md string) string {
	if m == nil || m.renderer == nil {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// Papers lists the archive. Missing files are shown as warnings.
func Papers(s Styles, papers []session.GeneratedPaper) string {
	if len(papers) == 0 {
		return s.Muted.Render("No papers generated yet.")
	}
	var b strings.Builder
	for _, e := range archive.Inspect(papers) {
		star := " "
		if e.Paper.Bookmarked {
			star = "*"
		}
		line := fmt.Sprintf("%s %d. %s (%s)", star, e.Index+1, e.Paper.Topic, filepath.Base(e.Paper.Path))
		if e.Missing {
			line = s.Warning.Render(fmt.Sprintf("  %d. File not found: %s", e.Index+1, filepath.Base(e.Paper.Path)))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Bookmarks lists saved papers.
func Bookmarks(s Styles, bookmarks []session.Bookmark) string {
	if len(bookmarks) == 0 {
		return s.Muted.Render("No bookmarks yet.")
	}
	var b strings.Builder
	for i, bm := range bookmarks {
		fmt.Fprintf(&b, "%d. %s  %s\n", i+1, s.Title.Render(bm.Title), s.Muted.Render(bm.Path))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Graph lists the knowledge graph edges as an indented tree.
func Graph(s Styles, g session.KnowledgeGraph) string {
	if g.Empty() {
		return s.Muted.Render("Start researching to build your knowledge graph!")
	}
	var b strings.Builder
	b.WriteString(s.Title.Render(session.RootNode))
	for _, e := range g.Edges {
		b.WriteString("\n  -> ")
		b.WriteString(e.To)
	}
	return b.String()
}
