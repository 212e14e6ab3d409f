package wikisource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Client fetches and caches anonymized Wikipedia pages. The page cache is a
// process-wide map guarded for concurrent access; entries are never
// evicted — benchmark corpora are small and repetition across concurrent
// runs is common, so caching outlives any single run.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string

	mu    sync.RWMutex
	cache map[string]*Page
}

// New creates a Client. baseURL defaults to the public MediaWiki API when empty.
func New(httpClient *http.Client, baseURL, userAgent string) *Client {
	if baseURL == "" {
		baseURL = "https://en.wikipedia.org/w/api.php"
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  userAgent,
		cache:      make(map[string]*Page),
	}
}

// FetchPage returns the cached page for title if present; otherwise it
// fetches the plain-text extract and the full set of namespace-0 outgoing
// links (following API continuation tokens until exhausted), anonymizes the
// extract, caches, and returns the result.
func (c *Client) FetchPage(ctx context.Context, title string) (*Page, error) {
	if cached, ok := c.getCached(title); ok {
		return cached, nil
	}

	extract, err := c.fetchExtract(ctx, title)
	if err != nil {
		return nil, err
	}

	links, err := c.fetchAllLinks(ctx, title)
	if err != nil {
		// Non-fatal: original client logs and continues with a partial
		// link list rather than failing the whole fetch.
		slog.Warn("partial link fetch", "title", title, "error", err)
	}

	anonymizedExtract, mapping := anonymize(extract, links)

	page := &Page{
		Title:   title,
		Extract: anonymizedExtract,
		Links:   links,
		Mapping: mapping,
	}
	c.setCached(title, page)
	return page, nil
}

func (c *Client) getCached(title string) (*Page, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.cache[title]
	return p, ok
}

func (c *Client) setCached(title string, p *Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[title] = p
}

type mwQueryResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID  int    `json:"pageid"`
			Missing *struct{} `json:"missing"`
			Extract string `json:"extract"`
			Links   []struct {
				Title string `json:"title"`
			} `json:"links"`
		} `json:"pages"`
	} `json:"query"`
	Continue map[string]string `json:"continue"`
}

func (c *Client) fetchExtract(ctx context.Context, title string) (string, error) {
	params := url.Values{
		"action":           {"query"},
		"format":           {"json"},
		"prop":             {"extracts"},
		"titles":           {title},
		"explaintext":      {"1"},
		"exsectionformat":  {"wiki"},
	}

	var resp mwQueryResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return "", fmt.Errorf("wikisource: fetch extract for %q: %w", title, err)
	}

	for _, page := range resp.Query.Pages {
		if page.PageID == -1 || page.Missing != nil {
			return "", fmt.Errorf("%w: %s", ErrPageNotFound, title)
		}
		return page.Extract, nil
	}
	return "", fmt.Errorf("%w: %s", ErrPageNotFound, title)
}

func (c *Client) fetchAllLinks(ctx context.Context, title string) ([]string, error) {
	var links []string
	params := url.Values{
		"action":     {"query"},
		"format":     {"json"},
		"prop":       {"links"},
		"titles":     {title},
		"pllimit":    {"max"},
		"plnamespace": {"0"},
	}

	for {
		var resp mwQueryResponse
		if err := c.get(ctx, params, &resp); err != nil {
			return links, err
		}

		for _, page := range resp.Query.Pages {
			if page.PageID == -1 || page.Missing != nil {
				return links, nil
			}
			for _, l := range page.Links {
				links = append(links, l.Title)
			}
		}

		if len(resp.Continue) == 0 {
			break
		}
		for k, v := range resp.Continue {
			params.Set(k, v)
		}
	}

	return links, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// Validate parses a Wikipedia article URL, resolves its title, and confirms
// the page exists by fetching it. It returns the resolved title.
func (c *Client) Validate(ctx context.Context, rawURL string) (string, error) {
	title, err := urlToTitle(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, err)
	}
	if _, err := c.FetchPage(ctx, title); err != nil {
		return "", err
	}
	return title, nil
}

func urlToTitle(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	const marker = "/wiki/"
	idx := strings.Index(u.Path, marker)
	if idx == -1 {
		return "", fmt.Errorf("not a wikipedia article url: %s", rawURL)
	}
	encoded := u.Path[idx+len(marker):]
	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(decoded, "_", " "), nil
}

// RandomPage returns a random namespace-0 article's URL and title.
func (c *Client) RandomPage(ctx context.Context) (pageURL, title string, err error) {
	params := url.Values{
		"action":      {"query"},
		"format":      {"json"},
		"list":        {"random"},
		"rnnamespace": {"0"},
		"rnlimit":     {"1"},
	}

	var resp struct {
		Query struct {
			Random []struct {
				Title string `json:"title"`
			} `json:"random"`
		} `json:"query"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		return "", "", fmt.Errorf("wikisource: random page: %w", err)
	}
	if len(resp.Query.Random) == 0 {
		return "", "", fmt.Errorf("wikisource: random page: empty response")
	}

	title = resp.Query.Random[0].Title
	pageURL = "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(title, " ", "_")
	return pageURL, title, nil
}
