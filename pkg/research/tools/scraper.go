package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOCRURL = "https://api.mistral.ai/v1/ocr"

const ocrModel = "mistral-ocr-latest"

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

// OCRClient extracts text from remote PDFs with the Mistral OCR API. It is the
// fallback for scanned papers that carry no text layer.
type OCRClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewOCRClient(apiKey string) *OCRClient {
	return &OCRClient{
		APIKey:     apiKey,
		BaseURL:    defaultOCRURL,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// ScrapePDF returns the OCR markdown of the PDF at url, page by page.
func (c *OCRClient) ScrapePDF(ctx context.Context, url string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("MISTRAL_API_KEY is not set")
	}
	url = strings.Replace(url, "http://", "https://", 1)

	body, err := json.Marshal(ocrRequest{
		Model:    ocrModel,
		Document: ocrDocument{Type: "document_url", DocumentURL: url},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal OCR request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("OCR request failed with status %s: %s", resp.Status, msg)
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode OCR response: %w", err)
	}

	var sb strings.Builder
	for _, page := range out.Pages {
		fmt.Fprintf(&sb, "- Page %d -\n%s\n\n", page.Index, page.Markdown)
	}
	return sb.String(), nil
}
