package tools

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RenderToolName is the name the agent uses to typeset a paper.
const RenderToolName = "render_latex_pdf"

// LatexRenderer typesets LaTeX sources with an external pdflatex binary.
type LatexRenderer struct {
	Binary    string
	OutputDir string
}

func NewLatexRenderer(binary, outputDir string) *LatexRenderer {
	if binary == "" {
		binary = "pdflatex"
	}
	if outputDir == "" {
		outputDir = "output"
	}
	return &LatexRenderer{Binary: binary, OutputDir: outputDir}
}

// Render writes source to OutputDir and compiles it. It returns the absolute
// path of the produced PDF.
func (r *LatexRenderer) Render(ctx context.Context, source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", fmt.Errorf("empty LaTeX source")
	}
	if !strings.Contains(source, `\begin{document}`) {
		source = wrapDocument(source)
	}

	dir, err := filepath.Abs(r.OutputDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	name := fmt.Sprintf("paper_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
	texPath := filepath.Join(dir, name+".tex")
	if err := os.WriteFile(texPath, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("failed to write LaTeX source: %w", err)
	}

	// Two passes so references and the table of contents resolve.
	for pass := 1; pass <= 2; pass++ {
		var out bytes.Buffer
		cmd := exec.CommandContext(ctx, r.Binary, "-interaction=nonstopmode", "-halt-on-error", "-output-directory", dir, texPath)
		cmd.Stdout = &out
		cmd.Stderr = &out
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("pdflatex pass %d failed: %w: %s", pass, err, tail(out.String(), 1200))
		}
	}

	pdfPath := filepath.Join(dir, name+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("pdflatex produced no PDF: %w", err)
	}

	for _, ext := range []string{".aux", ".log", ".out", ".toc"} {
		_ = os.Remove(filepath.Join(dir, name+ext))
	}

	slog.Info("Rendered PDF", "path", pdfPath)
	return pdfPath, nil
}

func wrapDocument(body string) string {
	return `\documentclass{article}
\usepackage[utf8]{inputenc}
\usepackage{amsmath}
\usepackage{hyperref}
\begin{document}
` + body + `
\end{document}
`
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
