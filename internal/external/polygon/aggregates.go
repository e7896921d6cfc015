package polygon

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
)

// FetchDailyPrices fetches the grouped daily bars of all US stocks for one date.
// A market holiday yields an empty slice. Bars failing validation are dropped;
// if every bar fails, ErrSchema is returned.
func (c *Client) FetchDailyPrices(ctx context.Context, date time.Time) ([]contracts.PricePoint, error) {
	day := contracts.NormalizeDate(date)
	path := "/v2/aggs/grouped/locale/us/market/stocks/" + contracts.FormatDate(day)
	params := url.Values{
		"adjusted":    {"true"},
		"include_otc": {"false"},
	}

	var resp groupedDailyResponse
	if err := c.getJSON(ctx, "grouped_daily", path, params, &resp); err != nil {
		return nil, fmt.Errorf("fetch grouped daily %s: %w", contracts.FormatDate(day), err)
	}

	prices := make([]contracts.PricePoint, 0, len(resp.Results))
	dropped := 0
	for _, bar := range resp.Results {
		if err := c.validate.Struct(bar); err != nil {
			dropped++
			c.logger.WithFields(map[string]interface{}{
				"ticker": bar.Ticker,
				"date":   contracts.FormatDate(day),
			}).Debugf("Dropping invalid bar: %v", err)
			continue
		}
		prices = append(prices, bar.toPricePoint(day, resp.Adjusted))
	}

	if len(prices) == 0 && dropped > 0 {
		return nil, fmt.Errorf("grouped daily %s: %d bars invalid: %w", contracts.FormatDate(day), dropped, ErrSchema)
	}

	c.logger.WithFields(map[string]interface{}{
		"date":    contracts.FormatDate(day),
		"rows":    len(prices),
		"dropped": dropped,
	}).Info("Fetched grouped daily bars")

	return prices, nil
}
