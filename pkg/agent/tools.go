package agent

import (
	"fmt"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/mikeboe/research-chat/pkg/research/tools"
)

type SearchArgs struct {
	Topic string `json:"topic" jsonschema:"The research topic to search arXiv for"`
}

type SearchResp struct {
	Results string `json:"results"`
}

type ReadArgs struct {
	URL string `json:"url" jsonschema:"The PDF link of the arXiv paper to read"`
}

type ReadResp struct {
	Content string `json:"content"`
}

type RenderArgs struct {
	Latex string `json:"latex" jsonschema:"The complete LaTeX source of the paper"`
}

type RenderResp struct {
	Path string `json:"path"`
}

// Toolbox holds the collaborators behind the agent's tools.
type Toolbox struct {
	Arxiv    *tools.ArxivClient
	Reader   *tools.PaperReader
	Renderer *tools.LatexRenderer
}

// build returns the tools for one run; maxResults follows the research depth.
func (b *Toolbox) build(maxResults int) ([]tool.Tool, error) {
	searchTool, err := functiontool.New[SearchArgs, SearchResp](
		functiontool.Config{
			Name:        tools.SearchToolName,
			Description: "Search arXiv for recent scientific papers about a topic.",
		},
		func(ctx tool.Context, args SearchArgs) (SearchResp, error) {
			papers, err := b.Arxiv.Search(ctx, args.Topic, maxResults)
			if err != nil {
				return SearchResp{}, err
			}
			return SearchResp{Results: tools.FormatPapers(args.Topic, papers)}, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search tool: %w", err)
	}

	readTool, err := functiontool.New[ReadArgs, ReadResp](
		functiontool.Config{
			Name:        tools.ReadToolName,
			Description: "Download an arXiv paper PDF and return its text.",
		},
		func(ctx tool.Context, args ReadArgs) (ReadResp, error) {
			text, err := b.Reader.Read(ctx, args.URL)
			if err != nil {
				return ReadResp{}, err
			}
			return ReadResp{Content: text}, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create read tool: %w", err)
	}

	renderTool, err := functiontool.New[RenderArgs, RenderResp](
		functiontool.Config{
			Name:        tools.RenderToolName,
			Description: "Compile a LaTeX research paper to PDF and return the file path.",
		},
		func(ctx tool.Context, args RenderArgs) (RenderResp, error) {
			path, err := b.Renderer.Render(ctx, args.Latex)
			if err != nil {
				return RenderResp{}, err
			}
			return RenderResp{Path: path}, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create render tool: %w", err)
	}

	return []tool.Tool{searchTool, readTool, renderTool}, nil
}
