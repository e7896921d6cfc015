package polygon

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
)

// pageLimit is the maximum page size of /v3/reference/tickers
const pageLimit = 1000

// FetchTickerAttributes fetches current reference data of a ticker.
// Unknown tickers (404) return nil, nil.
func (c *Client) FetchTickerAttributes(ctx context.Context, ticker string) (*contracts.TickerAttributes, error) {
	return c.FetchTickerAttributesAsOf(ctx, ticker, time.Time{})
}

// FetchTickerAttributesAsOf fetches reference data as of a date (zero date = current)
func (c *Client) FetchTickerAttributesAsOf(ctx context.Context, ticker string, asOf time.Time) (*contracts.TickerAttributes, error) {
	params := url.Values{}
	if !asOf.IsZero() {
		params.Set("date", contracts.FormatDate(asOf))
	}

	var resp tickerDetailsResponse
	err := c.getJSON(ctx, "ticker_details", "/v3/reference/tickers/"+url.PathEscape(ticker), params, &resp)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch ticker details %s: %w", ticker, err)
	}

	if resp.Results == nil {
		return nil, fmt.Errorf("ticker details %s: %w", ticker, ErrNoData)
	}
	if err := c.validate.Struct(resp.Results); err != nil {
		return nil, fmt.Errorf("ticker details %s: %v: %w", ticker, err, ErrSchema)
	}

	return resp.Results.toAttributes(), nil
}

// ListTickers lists active stock tickers, following next_url pages.
// limit <= 0 means all pages.
func (c *Client) ListTickers(ctx context.Context, limit int) ([]string, error) {
	pageSize := pageLimit
	if limit > 0 && limit < pageSize {
		pageSize = limit
	}

	params := url.Values{
		"market": {"stocks"},
		"active": {"true"},
		"order":  {"desc"},
		"sort":   {"market"},
		"limit":  {strconv.Itoa(pageSize)},
	}

	var tickers []string
	var resp tickerListResponse
	if err := c.getJSON(ctx, "tickers", "/v3/reference/tickers", params, &resp); err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}

	for {
		for _, r := range resp.Results {
			tickers = append(tickers, r.Ticker)
			if limit > 0 && len(tickers) >= limit {
				return tickers, nil
			}
		}
		if resp.NextURL == "" {
			break
		}

		next, err := c.withAPIKey(resp.NextURL)
		if err != nil {
			return nil, err
		}
		resp = tickerListResponse{}
		if err := c.fetch(ctx, "tickers", next, &resp); err != nil {
			return nil, fmt.Errorf("list tickers page: %w", err)
		}
	}

	c.logger.WithField("rows", len(tickers)).Info("Listed tickers")
	return tickers, nil
}
