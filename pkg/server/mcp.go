package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/research-chat/pkg/archive"
	"github.com/mikeboe/research-chat/pkg/prompt"
	"github.com/mikeboe/research-chat/pkg/research/tools"
)

const sessionPapersToolName = "search_session_papers"

// PaperSearcher finds papers generated in a session.
type PaperSearcher interface {
	Search(ctx context.Context, sessionID uuid.UUID, query string, limit int) ([]archive.Hit, error)
}

type ArxivSearchArgs struct {
	Topic string `json:"topic" jsonschema:"The topic or arXiv query to search for"`
	Depth string `json:"depth,omitempty" jsonschema:"overview, standard or deep; controls the number of results"`
}

type ArxivSearchResp struct {
	Results string `json:"results"`
}

type SessionPapersArgs struct {
	SessionID string `json:"session_id" jsonschema:"The research session to search"`
	Query     string `json:"query" jsonschema:"Full-text query over generated papers"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum number of hits, default 10"`
}

type SessionPapersResp struct {
	Hits []archive.Hit `json:"hits"`
}

// NewMCPServer exposes the research tools over the Model Context Protocol.
func NewMCPServer(arxiv *tools.ArxivClient, papers PaperSearcher) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "research-chat-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        tools.SearchToolName,
		Description: "Search arXiv for the latest papers on a topic.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ArxivSearchArgs) (*mcp.CallToolResult, ArxivSearchResp, error) {
		if strings.TrimSpace(args.Topic) == "" {
			return nil, ArxivSearchResp{}, fmt.Errorf("topic is required")
		}
		found, err := arxiv.Search(ctx, args.Topic, prompt.ParseDepth(args.Depth).MaxResults())
		if err != nil {
			return nil, ArxivSearchResp{}, err
		}
		text := tools.FormatPapers(args.Topic, found)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, ArxivSearchResp{Results: text}, nil
	})

	if papers != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        sessionPapersToolName,
			Description: "Full-text search over the papers generated in a research session.",
		}, func(ctx context.Context, req *mcp.CallToolRequest, args SessionPapersArgs) (*mcp.CallToolResult, SessionPapersResp, error) {
			id, err := uuid.Parse(args.SessionID)
			if err != nil {
				return nil, SessionPapersResp{}, fmt.Errorf("invalid session id: %w", err)
			}
			hits, err := papers.Search(ctx, id, args.Query, args.Limit)
			if err != nil {
				return nil, SessionPapersResp{}, err
			}
			var b strings.Builder
			for _, h := range hits {
				fmt.Fprintf(&b, "- %s (%s)\n", h.Topic, h.Path)
			}
			if b.Len() == 0 {
				b.WriteString("No matching papers.")
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: b.String()}},
			}, SessionPapersResp{Hits: hits}, nil
		})
	}

	return server
}

// NewMCPHandler serves server over streamable HTTP.
func NewMCPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}
