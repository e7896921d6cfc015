// Package sp500 scrapes the S&P 500 constituent list, used as a ticker
// universe for attribute refresh.
package sp500

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/eqindex/pkg/httputil"
	"github.com/wonny/eqindex/pkg/logger"
	"github.com/wonny/eqindex/pkg/metrics"
)

// DefaultURL is the Wikipedia constituents page
const DefaultURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// ErrTableNotFound is returned when the page has no constituents table
var ErrTableNotFound = errors.New("sp500: constituents table not found")

// Constituent is one row of the constituents table
type Constituent struct {
	Symbol   string
	Security string
	Sector   string
}

// Client fetches the constituent table
// ⭐ SSOT: S&P 500 유니버스 수집은 여기서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	url        string
}

// NewClient creates a new scraper client. An empty pageURL uses DefaultURL.
func NewClient(httpClient *httputil.Client, log *logger.Logger, pageURL string) *Client {
	if pageURL == "" {
		pageURL = DefaultURL
	}
	return &Client{httpClient: httpClient, logger: log, url: pageURL}
}

// Constituents downloads and parses the constituent table
func (c *Client) Constituents(ctx context.Context) ([]Constituent, error) {
	resp, err := c.httpClient.Get(ctx, c.url)
	if err != nil {
		metrics.ExternalRequests.WithLabelValues("sp500", "constituents", metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.ExternalRequests.WithLabelValues("sp500", "constituents", fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	list, err := ParseConstituents(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.WithField("rows", len(list)).Info("Fetched S&P 500 constituents")
	return list, nil
}

// Tickers returns the sorted constituent symbols
func (c *Client) Tickers(ctx context.Context) ([]string, error) {
	list, err := c.Constituents(ctx)
	if err != nil {
		return nil, err
	}

	tickers := make([]string, 0, len(list))
	for _, item := range list {
		tickers = append(tickers, item.Symbol)
	}
	sort.Strings(tickers)
	return tickers, nil
}

// ParseConstituents parses the #constituents table.
// 컬럼: Symbol | Security | GICS Sector | ...
func ParseConstituents(r io.Reader) ([]Constituent, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	table := doc.Find("table#constituents")
	if table.Length() == 0 {
		return nil, ErrTableNotFound
	}

	seen := make(map[string]bool)
	var list []Constituent
	table.Find("tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return // header row
		}

		symbol := strings.ToUpper(strings.TrimSpace(cells.Eq(0).Text()))
		if symbol == "" || seen[symbol] {
			return
		}
		seen[symbol] = true

		list = append(list, Constituent{
			Symbol:   symbol,
			Security: strings.TrimSpace(cells.Eq(1).Text()),
			Sector:   strings.TrimSpace(cells.Eq(2).Text()),
		})
	})

	return list, nil
}
