package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/mikeboe/research-chat/pkg/splitter"
)

// ReadToolName is the name the agent uses to read a paper.
const ReadToolName = "read_arxiv_paper"

const maxPDFBytes = 50 << 20

// ExtractPDFText returns the plain text layer of a PDF document.
func ExtractPDFText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}

// ExtractPDFFile reads the PDF at path and returns its text layer.
func ExtractPDFFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read PDF: %w", err)
	}
	return ExtractPDFText(content)
}

// PaperReader downloads papers and returns their leading text.
type PaperReader struct {
	HTTPClient *http.Client
	OCR        *OCRClient
	Splitter   *splitter.TextSplitter
	MaxChunks  int
}

func NewPaperReader(ocr *OCRClient, chunkSize, chunkOverlap int) *PaperReader {
	return &PaperReader{
		HTTPClient: &http.Client{Timeout: time.Minute},
		OCR:        ocr,
		Splitter:   splitter.NewRecursiveCharacterTextSplitter(chunkSize, chunkOverlap),
		MaxChunks:  12,
	}
}

// Read fetches the PDF at url and returns its text, truncated to MaxChunks chunks.
func (r *PaperReader) Read(ctx context.Context, url string) (string, error) {
	url = strings.Replace(strings.TrimSpace(url), "http://", "https://", 1)
	if url == "" {
		return "", fmt.Errorf("empty paper URL")
	}
	// arXiv abstract pages link to the PDF under /pdf/.
	url = strings.Replace(url, "arxiv.org/abs/", "arxiv.org/pdf/", 1)

	text, err := r.download(ctx, url)
	if err != nil || strings.TrimSpace(text) == "" {
		if r.OCR == nil || r.OCR.APIKey == "" {
			if err != nil {
				return "", err
			}
			return "", fmt.Errorf("no extractable text in %s", url)
		}
		slog.Warn("Falling back to OCR", "url", url, "error", err)
		text, err = r.OCR.ScrapePDF(ctx, url)
		if err != nil {
			return "", err
		}
	}

	head, truncated, err := r.Splitter.Head(text, r.MaxChunks)
	if err != nil {
		return "", fmt.Errorf("failed to split text: %w", err)
	}
	if truncated {
		head += "\n\n[... truncated ...]"
	}
	return fmt.Sprintf("-----\n# URL: %s\n-----\n\n%s", url, head), nil
}

func (r *PaperReader) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download PDF: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("PDF download returned status %d", resp.StatusCode)
	}
	content, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}
	return ExtractPDFText(content)
}
