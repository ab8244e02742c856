package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/policy-rag/backend/internal/storage/models"
	"github.com/policy-rag/backend/pkg/config"
	"github.com/policy-rag/backend/pkg/logger"
)

const duckDuckGoURL = "https://html.duckduckgo.com/html/"

// Client fetches web snippets used to supplement retrieved policy context.
// With a SerpAPI key it queries SerpAPI, otherwise it scrapes the DuckDuckGo
// HTML endpoint. SiteFilter restricts results to one domain.
type Client struct {
	serpAPIKey string
	siteFilter string
	maxResults int
	httpClient *http.Client
}

func NewClient(cfg config.SearchConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}

	return &Client{
		serpAPIKey: cfg.SerpAPIKey,
		siteFilter: cfg.SiteFilter,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]models.WebSnippet, error) {
	if maxResults <= 0 {
		maxResults = c.maxResults
	}

	if c.siteFilter != "" {
		query = fmt.Sprintf("site:%s %s", c.siteFilter, query)
	}

	logger.Info("Performing web search", zap.String("query", query))

	if c.serpAPIKey != "" {
		return c.searchWithSerpAPI(ctx, query, maxResults)
	}
	return c.searchWithDuckDuckGo(ctx, query, maxResults)
}

func (c *Client) searchWithSerpAPI(ctx context.Context, query string, maxResults int) ([]models.WebSnippet, error) {
	params := url.Values{}
	params.Add("q", query)
	params.Add("api_key", c.serpAPIKey)
	params.Add("num", fmt.Sprintf("%d", maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://serpapi.com/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var searchResp struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]models.WebSnippet, 0, len(searchResp.OrganicResults))
	for _, r := range searchResp.OrganicResults {
		if len(results) >= maxResults {
			break
		}
		results = append(results, models.WebSnippet{
			Title:   r.Title,
			Snippet: r.Snippet,
			URL:     r.Link,
		})
	}

	logger.Info("Web search completed", zap.Int("results", len(results)))
	return results, nil
}

func (c *Client) searchWithDuckDuckGo(ctx context.Context, query string, maxResults int) ([]models.WebSnippet, error) {
	form := url.Values{}
	form.Add("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		duckDuckGoURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	results := make([]models.WebSnippet, 0, maxResults)
	doc.Find("div.result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		title := strings.TrimSpace(s.Find("a.result__a").Text())
		link, _ := s.Find("a.result__a").Attr("href")
		snippet := strings.TrimSpace(s.Find("a.result__snippet").Text())

		if title != "" && link != "" {
			results = append(results, models.WebSnippet{
				Title:   title,
				Snippet: snippet,
				URL:     cleanDuckDuckGoURL(link),
			})
		}
		return len(results) < maxResults
	})

	logger.Info("Web search completed", zap.Int("results", len(results)))
	return results, nil
}

// cleanDuckDuckGoURL unwraps the redirect links the HTML endpoint returns
// (//duckduckgo.com/l/?uddg=<encoded target>).
func cleanDuckDuckGoURL(link string) string {
	if !strings.Contains(link, "uddg=") {
		return link
	}
	parsed, err := url.Parse(link)
	if err != nil {
		return link
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return link
}
