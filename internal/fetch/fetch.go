// Package fetch retrieves web pages for URL validity tests and reduces
// HTML to its visible text.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

var (
	// ErrEmptyURL is returned for a blank URL.
	ErrEmptyURL = errors.New("url is required")
	// ErrStatus is returned for HTTP responses with status 400 and above.
	ErrStatus = errors.New("unexpected HTTP status")
)

var multiSpacePattern = regexp.MustCompile(`\s+`)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 2 << 20 // 2MB
	defaultAgent    = "marcer/1.0 (URL checker)"
	maxDepth        = 200
)

// Options configure a Client.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	Logger       *zap.Logger
}

// Client fetches pages over HTTP.
type Client struct {
	http   *http.Client
	opts   Options
	logger *zap.Logger
}

// New returns a client. Zero options fall back to defaults.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:   &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		opts:   opts,
		logger: logger,
	}
}

// Fetch GETs url and returns the page text. HTML is reduced to its visible
// text with whitespace collapsed; other content types are returned as read.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", ErrEmptyURL
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: %s returned %s", ErrStatus, url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("fetched page",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("took", time.Since(start)))

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "html") || (contentType == "" && looksLikeHTML(body)) {
		return PageText(string(body))
	}
	return string(body), nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

// PageText returns the visible text of an HTML document, skipping script,
// style and noscript content.
func PageText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	extractText(doc, &sb, 0)
	return strings.TrimSpace(multiSpacePattern.ReplaceAllString(sb.String(), " ")), nil
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > maxDepth {
		return
	}
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteByte(' ')
		}
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript":
			return
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		extractText(child, sb, depth+1)
	}
}
