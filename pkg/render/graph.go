// Package render presents session state for terminals and graph viewers.
package render

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"

	"github.com/mikeboe/research-chat/pkg/session"
)

const graphName = "research"

var (
	nodeAttrs = map[string]string{
		"style":     "filled",
		"fillcolor": strconv.Quote("#4F46E5"),
		"fontcolor": "white",
		"color":     "white",
	}
	edgeAttrs = map[string]string{
		"color": "white",
	}
)

// GraphDOT renders the knowledge graph as a Graphviz digraph.
func GraphDOT(g session.KnowledgeGraph) (string, error) {
	graph := gographviz.NewGraph()
	if err := graph.SetName(graphName); err != nil {
		return "", fmt.Errorf("failed to name graph: %w", err)
	}
	if err := graph.SetDir(true); err != nil {
		return "", fmt.Errorf("failed to set graph direction: %w", err)
	}
	if err := graph.AddAttr(graphName, "bgcolor", "transparent"); err != nil {
		return "", fmt.Errorf("failed to set graph background: %w", err)
	}

	for _, node := range g.Nodes {
		if err := graph.AddNode(graphName, strconv.Quote(node), copyAttrs(nodeAttrs)); err != nil {
			return "", fmt.Errorf("failed to add node %q: %w", node, err)
		}
	}
	for _, e := range g.Edges {
		if err := graph.AddEdge(strconv.Quote(e.From), strconv.Quote(e.To), true, copyAttrs(edgeAttrs)); err != nil {
			return "", fmt.Errorf("failed to add edge %q -> %q: %w", e.From, e.To, err)
		}
	}
	return graph.String(), nil
}

func copyAttrs(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
