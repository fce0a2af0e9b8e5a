package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SearchToolName is the name the agent uses for arXiv searches.
const SearchToolName = "arxiv_search"

const defaultArxivURL = "https://export.arxiv.org/api/query"

// ArxivEntry struct to hold arXiv entry data
type ArxivEntry struct {
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Authors   []string    `xml:"author>name"`
	Link      []ArxivLink `xml:"link"`
}

// ArxivLink struct to hold arXiv link data
type ArxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// ArxivFeed struct to hold the entire arXiv feed
type ArxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []ArxivEntry `xml:"entry"`
}

// Paper is a single search hit.
type Paper struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Published string   `json:"published"`
	Authors   []string `json:"authors,omitempty"`
	PDFURL    string   `json:"pdf_url,omitempty"`
}

// ArxivClient queries the arXiv Atom API.
type ArxivClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewArxivClient() *ArxivClient {
	return &ArxivClient{
		BaseURL:    defaultArxivURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Search returns up to maxResults papers for topic, newest first.
func (c *ArxivClient) Search(ctx context.Context, topic string, maxResults int) ([]Paper, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("empty search topic")
	}

	query := topic
	if !strings.Contains(query, ":") {
		query = "all:" + query
	}

	params := url.Values{}
	params.Add("search_query", query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")
	params.Add("sortBy", "submittedDate")
	params.Add("sortOrder", "descending")
	apiURL := c.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	slog.Info("arXiv request made", "url", apiURL, "status", resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned non-200 status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var feed ArxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		p := Paper{
			Title:     collapseSpace(entry.Title),
			Summary:   collapseSpace(entry.Summary),
			Published: entry.Published,
			Authors:   entry.Authors,
		}
		for _, link := range entry.Link {
			if link.Type == "application/pdf" {
				p.PDFURL = link.Href
				break
			}
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// FormatPapers renders papers in the markdown layout the agent reads.
func FormatPapers(topic string, papers []Paper) string {
	if len(papers) == 0 {
		return "No results found for query: " + topic
	}
	var sb strings.Builder
	for _, p := range papers {
		sb.WriteString(fmt.Sprintf("# Title: %s\n", p.Title))
		if len(p.Authors) > 0 {
			sb.WriteString(fmt.Sprintf("## Authors: %s\n", strings.Join(p.Authors, ", ")))
		}
		sb.WriteString(fmt.Sprintf("## Summary: %s\n", p.Summary))
		sb.WriteString(fmt.Sprintf("## Published: %s\n", p.Published))
		if p.PDFURL != "" {
			sb.WriteString(fmt.Sprintf("## PDF Link: %s\n", p.PDFURL))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
