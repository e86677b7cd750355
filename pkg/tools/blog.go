package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jmuk/blogsearch/pkg/config"
	"github.com/jmuk/blogsearch/pkg/netutil"
	"github.com/jmuk/blogsearch/pkg/retry"
)

type searchBlogRequest struct {
	Query string `json:"query" jsonschema:"description=the search keywords"`
}

type getBlogContentsRequest struct {
	TargetURL string `json:"targetUrl" jsonschema:"description=the URL of the page to read"`
}

type serpResult struct {
	OrganicResults []struct {
		Link string `json:"link"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

// BlogTools searches one blog and reads its articles.
type BlogTools struct {
	search config.SearchConfig
	fetch  config.FetchConfig
	apiKey string

	searchClient *http.Client
	pageClient   *http.Client
	retry        retry.Config
}

type BlogOption func(*BlogTools)

// WithHTTPClients replaces the clients used for the search API and for pages.
func WithHTTPClients(search, page *http.Client) BlogOption {
	return func(bt *BlogTools) {
		bt.searchClient = search
		bt.pageClient = page
	}
}

func WithRetry(cfg retry.Config) BlogOption {
	return func(bt *BlogTools) { bt.retry = cfg }
}

// NewBlogTools fails when the search API key is missing from the environment.
func NewBlogTools(search config.SearchConfig, fetch config.FetchConfig, opts ...BlogOption) (*BlogTools, error) {
	apiKey, err := config.RequireEnv(search.APIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("search api key: %w", err)
	}
	timeout := fetch.Timeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageTransport := http.DefaultTransport
	if !fetch.AllowPrivate {
		pageTransport = netutil.SafeTransport()
	}
	bt := &BlogTools{
		search:       search,
		fetch:        fetch,
		apiKey:       apiKey,
		searchClient: &http.Client{Timeout: timeout},
		pageClient:   &http.Client{Timeout: timeout, Transport: pageTransport},
		retry:        retry.Once,
	}
	for _, opt := range opts {
		opt(bt)
	}
	return bt, nil
}

func (bt *BlogTools) ToolDefs(ctx context.Context) ([]ToolDefinition, error) {
	return []ToolDefinition{
		NewToolDefinition(
			"searchBlog",
			fmt.Sprintf("Search the blog at %s with the given keywords and get the list of matching article URLs.", bt.search.Site),
			bt.searchBlog,
		),
		NewToolDefinition(
			"getBlogContents",
			"Fetch the page at the given URL and get the text of its article body.",
			bt.getBlogContents,
		),
	}, nil
}

func (bt *BlogTools) Close() error {
	bt.searchClient.CloseIdleConnections()
	bt.pageClient.CloseIdleConnections()
	return nil
}

func (bt *BlogTools) searchBlog(ctx context.Context, req searchBlogRequest) (string, error) {
	logger := getLogger(ctx).With("query", req.Query)
	logger.Debug("Searching")
	if strings.TrimSpace(req.Query) == "" {
		return "", toolErrorf(ErrInvalidArguments, "query must not be empty")
	}
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", fmt.Sprintf("site:%s %s", bt.search.Site, req.Query))
	params.Set("location", bt.search.Location)
	params.Set("hl", bt.search.Language)
	params.Set("gl", bt.search.Country)
	params.Set("google_domain", bt.search.GoogleDomain)
	params.Set("api_key", bt.apiKey)
	endpoint := bt.search.Endpoint + "?" + params.Encode()

	var result serpResult
	err := retry.Do(ctx, bt.retry, func(ctx context.Context) error {
		body, err := bt.get(ctx, bt.searchClient, endpoint, bt.fetch.MaxBodyBytes)
		if err != nil {
			return err
		}
		result = serpResult{}
		return json.Unmarshal(body, &result)
	})
	if err != nil {
		logger.Error("Search failed", "error", err)
		// Do not leak the api key through url errors.
		return "", toolErrorf(ErrFetch, "search request failed: %s", redact(err.Error(), bt.apiKey))
	}
	links := make([]string, 0, len(result.OrganicResults))
	for _, r := range result.OrganicResults {
		if r.Link != "" {
			links = append(links, r.Link)
		}
	}
	if len(links) == 0 {
		logger.Info("No results", "provider_error", result.Error)
		return "", toolErrorf(ErrNoResults, "nothing matched %q on %s", req.Query, bt.search.Site)
	}
	logger.Debug("Found", "count", len(links))
	return strings.Join(links, ","), nil
}

func (bt *BlogTools) getBlogContents(ctx context.Context, req getBlogContentsRequest) (string, error) {
	logger := getLogger(ctx).With("url", req.TargetURL)
	logger.Debug("Fetching")
	u, err := netutil.CheckURL(req.TargetURL)
	if err != nil {
		return "", toolErrorf(ErrFetch, "%v", err)
	}
	var body []byte
	err = retry.Do(ctx, bt.retry, func(ctx context.Context) error {
		var err error
		body, err = bt.get(ctx, bt.pageClient, u.String(), bt.fetch.MaxBodyBytes)
		return err
	})
	if err != nil {
		logger.Error("Fetch failed", "error", err)
		return "", toolErrorf(ErrFetch, "%v", err)
	}
	// The runner bounds the text and reports how much was cut.
	text, err := ExtractContent(bytes.NewReader(body), bt.fetch.ContentClass)
	if err != nil {
		logger.Info("No content", "error", err)
		return "", err
	}
	return text, nil
}

// ExtractContent joins the paragraphs inside the first element carrying the
// class, one paragraph per line.
func ExtractContent(r io.Reader, class string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", toolErrorf(ErrParse, "%v", err)
	}
	content := doc.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.HasClass(class)
	}).First()
	if content.Length() == 0 {
		return "", toolErrorf(ErrParse, "no element with class %q", class)
	}
	texts := content.Find("p").Map(func(_ int, s *goquery.Selection) string {
		return s.Text()
	})
	return strings.Join(texts, "\n"), nil
}

func (bt *BlogTools) get(ctx context.Context, client *http.Client, target string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %s", resp.Status)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, &retry.TransientError{Err: err}
		}
		return nil, err
	}
	var r io.Reader = resp.Body
	if limit > 0 {
		r = io.LimitReader(resp.Body, limit)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &retry.TransientError{Err: err}
	}
	return body, nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, url.QueryEscape(secret), "REDACTED")
}
