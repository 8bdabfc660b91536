// Package forum talks to the forum's search pages over HTTP.
package forum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"forum_search/internal/model"
)

const (
	searchPath   = "/query.php"
	maxBodyBytes = 5 * 1024 * 1024
	userAgent    = "ForumSearchBot/1.0"
)

// ErrNotLoggedIn is returned when the forum answers with its login page.
var ErrNotLoggedIn = errors.New("forum session is not logged in")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the connection settings for a Client.
type Config struct {
	BaseURL string
	// Cookie is sent verbatim; the forum only allows searching when logged in.
	Cookie string
	// RequestsPerSecond caps the request rate. Zero or less means no limit.
	RequestsPerSecond float64
}

// Client runs searches against the forum. It is safe for concurrent use.
type Client struct {
	client  HTTPClient
	base    *url.URL
	cookie  string
	limiter *rate.Limiter
}

// New creates a Client that sends requests through client.
func New(client HTTPClient, cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		client:  client,
		base:    base,
		cookie:  cfg.Cookie,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Search submits query limited to forums (all forums when empty). A result
// with QueryID 0 means the forum found nothing.
func (c *Client) Search(ctx context.Context, query string, forums []int) (model.SearchResult, error) {
	form := url.Values{}
	form.Set("action", "query")
	form.Set("q", query)
	for _, id := range forums {
		form.Add("forums[]", strconv.Itoa(id))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(nil), strings.NewReader(form.Encode()))
	if err != nil {
		return model.SearchResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	doc, final, err := c.do(req)
	if err != nil {
		return model.SearchResult{}, err
	}

	qid := queryID(final, doc)
	if qid == 0 {
		return model.SearchResult{}, nil
	}
	return model.SearchResult{
		QueryID: qid,
		Pages:   pageCount(doc),
		Items:   c.parseResults(doc),
	}, nil
}

// FetchPage returns the results on one page of an existing query.
func (c *Client) FetchPage(ctx context.Context, queryID, page int) ([]model.ResultItem, error) {
	q := url.Values{}
	q.Set("action", "results")
	q.Set("qid", strconv.Itoa(queryID))
	q.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(q), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	doc, _, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return c.parseResults(doc), nil
}

func (c *Client) endpoint(q url.Values) string {
	u := c.base.JoinPath(searchPath)
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends req and parses the response. It returns the URL the response
// came from, which differs from req's after a redirect.
func (c *Client) do(req *http.Request) (*goquery.Document, *url.URL, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, nil, fmt.Errorf("rate limit: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("http %s: %w", strings.ToLower(req.Method), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("parse page: %w", err)
	}
	if doc.Find(`form[action*="account.php"]`).Length() > 0 {
		return nil, nil, ErrNotLoggedIn
	}

	final := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	return doc, final, nil
}
