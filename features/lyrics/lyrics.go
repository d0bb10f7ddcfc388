// Package lyrics scrapes song lyrics from AZLyrics with a Genius fallback and
// provides the lyrics conversation.
package lyrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrNotFound is returned when no source yields lyrics for the song.
var ErrNotFound = errors.New("no lyrics found")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Client looks up lyrics over HTTP.
type Client struct {
	http      *http.Client
	userAgent string

	azSearchURL     string
	geniusSearchURL string
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithSearchURLs overrides the search endpoints, used by tests.
func WithSearchURLs(azlyrics, genius string) ClientOption {
	return func(c *Client) {
		c.azSearchURL = azlyrics
		c.geniusSearchURL = genius
	}
}

// NewClient builds a lyrics client with production endpoints.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:            &http.Client{Timeout: 20 * time.Second},
		userAgent:       defaultUserAgent,
		azSearchURL:     "https://search.azlyrics.com/search.php?q=",
		geniusSearchURL: "https://genius.com/search?q=",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches lyrics for the song, trying AZLyrics first and Genius after.
func (c *Client) Lookup(ctx context.Context, song string) (string, error) {
	text, azErr := c.fromAZLyrics(ctx, song)
	if azErr == nil {
		return text, nil
	}
	text, gErr := c.fromGenius(ctx, song)
	if gErr == nil {
		return text, nil
	}
	if errors.Is(gErr, ErrNotFound) && !errors.Is(azErr, ErrNotFound) {
		return "", azErr
	}
	return "", gErr
}

func (c *Client) fromAZLyrics(ctx context.Context, song string) (string, error) {
	query := url.QueryEscape(strings.ToLower(song))
	doc, err := c.fetch(ctx, c.azSearchURL+query)
	if err != nil {
		return "", fmt.Errorf("azlyrics search: %w", err)
	}

	href, ok := doc.Find("td.text-left a").First().Attr("href")
	if !ok {
		return "", ErrNotFound
	}

	page, err := c.fetch(ctx, href)
	if err != nil {
		return "", fmt.Errorf("azlyrics page: %w", err)
	}

	// The lyrics sit in the only div carrying no class, id, or style attribute.
	var lyrics string
	page.Find("div").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if hasAnyAttr(sel, "class", "id", "style") {
			return true
		}
		lyrics = textWithBreaks(sel)
		return lyrics == ""
	})
	if lyrics == "" {
		return "", ErrNotFound
	}
	return lyrics, nil
}

func (c *Client) fromGenius(ctx context.Context, song string) (string, error) {
	query := url.QueryEscape(strings.ToLower(song))
	doc, err := c.fetch(ctx, c.geniusSearchURL+query)
	if err != nil {
		return "", fmt.Errorf("genius search: %w", err)
	}

	href, ok := doc.Find("a.mini_card").First().Attr("href")
	if !ok {
		return "", ErrNotFound
	}

	page, err := c.fetch(ctx, href)
	if err != nil {
		return "", fmt.Errorf("genius page: %w", err)
	}

	container := page.Find(`div[class*="Lyrics__Container"]`).First()
	if container.Length() == 0 {
		return "", ErrNotFound
	}
	lyrics := textWithBreaks(container)
	if lyrics == "" {
		return "", ErrNotFound
	}
	return lyrics, nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s for %s", resp.Status, rawURL)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func hasAnyAttr(sel *goquery.Selection, names ...string) bool {
	for _, name := range names {
		if _, ok := sel.Attr(name); ok {
			return true
		}
	}
	return false
}

// textWithBreaks extracts text content, turning <br> elements into newlines.
func textWithBreaks(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			b.WriteString("\n")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.TrimSpace(b.String())
}
