// Package rates fetches Damascus market currency rates from sp-today.com and
// formats the report served by the /dollar command.
package rates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultPageURL   = "https://www.sp-today.com/currency/us_dollar"
	defaultUserAgent = "Mozilla/5.0"

	labelUSDDamascus  = "دولار أمريكي دمشق"
	labelEuroDamascus = "يورو دمشق"
	labelLiraDamascus = "ل. تركية دمشق"
	labelGoldGram     = "غرام الذهب"

	valueMissing = "غير متوفر"
)

// Rates holds the scraped Damascus market prices. Empty fields mean the value
// was absent from the page.
type Rates struct {
	BuyUSD  string
	SellUSD string

	EuroDamascus string
	LiraDamascus string
	GoldGram     string
}

// Client scrapes the sp-today currency page.
type Client struct {
	http      *http.Client
	pageURL   string
	userAgent string
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithPageURL overrides the scraped page, used by tests.
func WithPageURL(u string) ClientOption {
	return func(c *Client) { c.pageURL = u }
}

// NewClient builds a rates client with production defaults.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:      &http.Client{Timeout: 15 * time.Second},
		pageURL:   defaultPageURL,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads and parses the currency page.
func (c *Client) Fetch(ctx context.Context) (Rates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL, nil)
	if err != nil {
		return Rates{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Rates{}, fmt.Errorf("sp-today fetch: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return Rates{}, fmt.Errorf("sp-today fetch: unexpected status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Rates{}, fmt.Errorf("sp-today parse: %w", err)
	}
	return parse(doc), nil
}

func parse(doc *goquery.Document) Rates {
	var r Rates

	doc.Find("div.item-data").Each(func(_ int, item *goquery.Selection) {
		name := strings.TrimSpace(item.Find("span.name").First().Text())
		value := strings.ReplaceAll(strings.TrimSpace(item.Find("span.value").First().Text()), ",", "")
		if value == "" {
			return
		}
		switch name {
		case labelEuroDamascus:
			r.EuroDamascus = value
		case labelLiraDamascus:
			r.LiraDamascus = value
		case labelGoldGram:
			r.GoldGram = value
		}
	})

	doc.Find("table.local-cur tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cell := row.Find("span").First()
		if !strings.Contains(cell.Text(), labelUSDDamascus) {
			return true
		}
		prices := row.Find("strong")
		if prices.Length() >= 3 {
			r.BuyUSD = strings.TrimSpace(prices.Eq(1).Text())
			r.SellUSD = strings.TrimSpace(prices.Eq(2).Text())
		}
		return false
	})

	return r
}

// Format renders the Arabic market report.
func Format(r Rates) string {
	var b strings.Builder
	b.WriteString("\n💱 دولار دمشق :\n")
	if r.BuyUSD != "" && r.SellUSD != "" {
		fmt.Fprintf(&b, "شراء: %s SYP, ", r.BuyUSD)
		fmt.Fprintf(&b, "مبيع: %s SYP\n\n", r.SellUSD)
	}
	b.WriteString("📊 أسعار السوق في دمشق:\n")
	fmt.Fprintf(&b, "%s: %s SYP\n", labelEuroDamascus, orMissing(r.EuroDamascus))
	fmt.Fprintf(&b, "%s: %s SYP\n", labelLiraDamascus, orMissing(r.LiraDamascus))
	fmt.Fprintf(&b, "%s: %s SYP\n", labelGoldGram, orMissing(r.GoldGram))
	return b.String()
}

func orMissing(v string) string {
	if v == "" {
		return valueMissing
	}
	return v
}
