// Package websearch retrieves ranked web results for a query and
// optionally fetches readable page text for the top hits.
//
// The contract is degrade-never-fail: a missing API key, a provider
// outage or a malformed response all yield an empty (or partial)
// result set, never an error. The response pipeline treats "no web
// context" as a normal condition.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/travo-ai/travo/internal/log"
)

const (
	defaultBaseURL = "https://serpapi.com/search.json"

	// maxPageBody caps how much of a page is read during enrichment.
	maxPageBody = 2 << 20 // 2 MiB

	// pageFetchTimeout bounds each enrichment fetch independently of
	// the outer request deadline.
	pageFetchTimeout = 10 * time.Second

	// contentPreviewLen is how much extracted page text is kept per
	// result. Prompts carry a preview, not the whole article.
	contentPreviewLen = 1000
)

// Result is one web search hit. Content holds extracted page text for
// enriched results, empty otherwise.
type Result struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Favicon string `json:"favicon"`
	Content string `json:"-"`
}

// Options configures the client.
type Options struct {
	APIKey     string
	BaseURL    string // defaults to the SerpAPI endpoint
	FetchPages bool   // enrich top results with extracted page text
	ScrapeTopN int    // how many results to enrich
	HTTPClient *http.Client
}

// Client queries SerpAPI. Safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	fetchPages bool
	scrapeTopN int
	httpc      *http.Client
	logger     log.Logger
}

// New creates a Client. An empty API key is allowed; every search then
// returns no results.
func New(opts Options, logger log.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		fetchPages: opts.FetchPages,
		scrapeTopN: opts.ScrapeTopN,
		httpc:      httpc,
		logger:     logger,
	}
}

// serpResponse mirrors the slice of the SerpAPI payload we consume.
type serpResponse struct {
	Organic []struct {
		Position int    `json:"position"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Favicon  string `json:"favicon"`
	} `json:"organic_results"`
}

// Search returns up to max results for the query. Results are numbered
// from 1 in rank order. Failures are logged and surface as an empty
// slice.
func (c *Client) Search(ctx context.Context, query string, max int) []Result {
	if c.apiKey == "" {
		c.logger.Warn("web search skipped: no API key configured")
		return nil
	}
	if max < 1 {
		return nil
	}

	results, err := c.search(ctx, query, max)
	if err != nil {
		c.logger.Warn("web search failed", "query", query, "error", err)
		return nil
	}

	if c.fetchPages && c.scrapeTopN > 0 {
		c.enrich(ctx, results)
	}
	return results
}

func (c *Client) search(ctx context.Context, query string, max int) ([]Result, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	params.Set("num", strconv.Itoa(max))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling search API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload serpResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPageBody)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	results := make([]Result, 0, max)
	for i, org := range payload.Organic {
		if i >= max {
			break
		}
		results = append(results, Result{
			ID:      i + 1,
			Title:   org.Title,
			Snippet: org.Snippet,
			URL:     org.Link,
			Favicon: org.Favicon,
		})
	}
	return results, nil
}

// enrich fetches readable page text for the top results concurrently.
// Individual fetch failures leave Content empty.
func (c *Client) enrich(ctx context.Context, results []Result) {
	n := c.scrapeTopN
	if n > len(results) {
		n = len(results)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(r *Result) {
			defer wg.Done()
			text, err := c.fetchPageText(ctx, r.URL)
			if err != nil {
				c.logger.Debug("page enrichment failed", "url", r.URL, "error", err)
				return
			}
			r.Content = text
		}(&results[i])
	}
	wg.Wait()
}

func (c *Client) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, pageFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building page request: %w", err)
	}
	req.Header.Set("User-Agent", "travo/1.0 (+https://github.com/travo-ai/travo)")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page status %d", resp.StatusCode)
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing page URL: %w", err)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBody), parsed)
	if err != nil {
		return "", fmt.Errorf("extracting readable text: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > contentPreviewLen {
		text = text[:contentPreviewLen]
	}
	return text, nil
}
