package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Quantum   Agents
      at Scale</title>
    <summary>  We study agents. </summary>
    <published>2025-01-02T00:00:00Z</published>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <link href="http://arxiv.org/abs/2501.00001v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2501.00001v1" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <title>No PDF</title>
    <summary>Abstract only.</summary>
    <published>2024-12-01T00:00:00Z</published>
  </entry>
</feed>`

func TestArxivSearch(t *testing.T) {
	var gotQuery, gotMax string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		gotMax = r.URL.Query().Get("max_results")
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	c := NewArxivClient()
	c.BaseURL = srv.URL

	papers, err := c.Search(context.Background(), "quantum ai", 3)
	require.NoError(t, err)

	assert.Equal(t, "all:quantum ai", gotQuery)
	assert.Equal(t, "3", gotMax)
	require.Len(t, papers, 2)
	assert.Equal(t, "Quantum Agents at Scale", papers[0].Title)
	assert.Equal(t, "We study agents.", papers[0].Summary)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, papers[0].Authors)
	assert.Equal(t, "http://arxiv.org/pdf/2501.00001v1", papers[0].PDFURL)
	assert.Empty(t, papers[1].PDFURL)
}

func TestArxivSearchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewArxivClient()
	c.BaseURL = srv.URL

	_, err := c.Search(context.Background(), "x", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = c.Search(context.Background(), "   ", 1)
	require.Error(t, err)
}

func TestFormatPapers(t *testing.T) {
	assert.Equal(t, "No results found for query: llm", FormatPapers("llm", nil))

	out := FormatPapers("llm", []Paper{{Title: "T", Summary: "S", Published: "P", PDFURL: "U", Authors: []string{"A", "B"}}})
	assert.Equal(t, "# Title: T\n## Authors: A, B\n## Summary: S\n## Published: P\n## PDF Link: U\n\n", out)
}

func TestOCRClientRequiresKey(t *testing.T) {
	_, err := NewOCRClient("").ScrapePDF(context.Background(), "https://arxiv.org/pdf/1")
	require.Error(t, err)
}

func TestOCRClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"pages":[{"index":0,"markdown":"# Intro"},{"index":1,"markdown":"Body"}]}`))
	}))
	defer srv.Close()

	c := NewOCRClient("key")
	c.BaseURL = srv.URL
	out, err := c.ScrapePDF(context.Background(), "http://arxiv.org/pdf/1")
	require.NoError(t, err)
	assert.Equal(t, "- Page 0 -\n# Intro\n\n- Page 1 -\nBody\n\n", out)
}

func TestPaperReaderFallsBackToOCR(t *testing.T) {
	pdfSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a pdf"))
	}))
	defer pdfSrv.Close()
	ocrSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pages":[{"index":0,"markdown":"Recovered text"}]}`))
	}))
	defer ocrSrv.Close()

	ocr := NewOCRClient("key")
	ocr.BaseURL = ocrSrv.URL
	reader := NewPaperReader(ocr, 1000, 200)

	out, err := reader.Read(context.Background(), pdfSrv.URL+"/paper.pdf")
	require.NoError(t, err)
	assert.Contains(t, out, "Recovered text")
	assert.Contains(t, out, "# URL: ")
}

func TestPaperReaderWithoutOCRReportsError(t *testing.T) {
	pdfSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer pdfSrv.Close()

	reader := NewPaperReader(nil, 1000, 200)
	_, err := reader.Read(context.Background(), pdfSrv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestExtractPDFTextRejectsGarbage(t *testing.T) {
	_, err := ExtractPDFText([]byte("plain text"))
	require.Error(t, err)
}

func TestLatexRendererWithFakeBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for pdflatex")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "fake-pdflatex")
	// Mimics pdflatex: writes <name>.pdf next to the source in -output-directory.
	script := `#!/bin/sh
outdir="$4"
src="$5"
base=$(basename "$src" .tex)
printf '%%PDF-1.4' > "$outdir/$base.pdf"
printf 'log' > "$outdir/$base.log"
`
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	r := NewLatexRenderer(bin, filepath.Join(dir, "out"))
	path, err := r.Render(context.Background(), `\section{Intro} Hello`)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(path, ".pdf"))
	assert.FileExists(t, path)
	assert.NoFileExists(t, strings.TrimSuffix(path, ".pdf")+".log")

	src, err := os.ReadFile(strings.TrimSuffix(path, ".pdf") + ".tex")
	require.NoError(t, err)
	assert.Contains(t, string(src), `\begin{document}`)
}

func TestLatexRendererFailure(t *testing.T) {
	r := NewLatexRenderer(filepath.Join(t.TempDir(), "missing-binary"), t.TempDir())
	_, err := r.Render(context.Background(), `\begin{document}x\end{document}`)
	require.Error(t, err)

	_, err = r.Render(context.Background(), "  ")
	require.Error(t, err)
}
