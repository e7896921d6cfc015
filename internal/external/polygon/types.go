package polygon

import (
	"errors"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
)

var (
	// ErrNoData is returned when Polygon answers without a results payload
	ErrNoData = errors.New("polygon: no data")
	// ErrSchema is returned when no record of a payload passes validation
	ErrSchema = errors.New("polygon: unexpected payload schema")
)

// groupedDailyResponse is /v2/aggs/grouped/locale/us/market/stocks/{date}
type groupedDailyResponse struct {
	Status       string         `json:"status"`
	Adjusted     bool           `json:"adjusted"`
	QueryCount   int            `json:"queryCount"`
	ResultsCount int            `json:"resultsCount"`
	Results      []aggregateBar `json:"results"`
}

type aggregateBar struct {
	Ticker       string  `json:"T" validate:"required"`
	Timestamp    int64   `json:"t" validate:"gt=0"`
	Open         float64 `json:"o" validate:"gte=0"`
	High         float64 `json:"h" validate:"gte=0"`
	Low          float64 `json:"l" validate:"gte=0"`
	Close        float64 `json:"c" validate:"gt=0"`
	Volume       float64 `json:"v" validate:"gte=0"`
	Transactions int64   `json:"n" validate:"gte=0"`
	VWAP         float64 `json:"vw"`
	OTC          bool    `json:"otc"`
}

// tickerDetailsResponse is /v3/reference/tickers/{ticker}
type tickerDetailsResponse struct {
	Status    string         `json:"status"`
	RequestID string         `json:"request_id"`
	Results   *tickerDetails `json:"results"`
}

type tickerDetails struct {
	Ticker                    string   `json:"ticker" validate:"required"`
	Active                    bool     `json:"active"`
	Name                      string   `json:"name"`
	Market                    string   `json:"market"`
	Locale                    string   `json:"locale"`
	PrimaryExchange           string   `json:"primary_exchange"`
	Type                      string   `json:"type"`
	CurrencyName              string   `json:"currency_name"`
	CIK                       string   `json:"cik"`
	Description               string   `json:"description"`
	HomepageURL               string   `json:"homepage_url"`
	ListDate                  string   `json:"list_date"`
	MarketCap                 *float64 `json:"market_cap" validate:"omitempty,gte=0"`
	PhoneNumber               string   `json:"phone_number"`
	TotalEmployees            *int64   `json:"total_employees"`
	SICCode                   string   `json:"sic_code"`
	SICDescription            string   `json:"sic_description"`
	TickerRoot                string   `json:"ticker_root"`
	TickerSuffix              string   `json:"ticker_suffix"`
	WeightedSharesOutstanding *float64 `json:"weighted_shares_outstanding"`
	Address                   struct {
		Address1   string `json:"address1"`
		Address2   string `json:"address2"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postal_code"`
	} `json:"address"`
	Branding struct {
		LogoURL string `json:"logo_url"`
		IconURL string `json:"icon_url"`
	} `json:"branding"`
}

// tickerListResponse is /v3/reference/tickers
type tickerListResponse struct {
	Status  string `json:"status"`
	Count   int    `json:"count"`
	NextURL string `json:"next_url"`
	Results []struct {
		Ticker string `json:"ticker"`
	} `json:"results"`
}

func (b aggregateBar) toPricePoint(date time.Time, adjusted bool) contracts.PricePoint {
	return contracts.PricePoint{
		Ticker:            b.Ticker,
		Date:              date,
		Timestamp:         b.Timestamp,
		Open:              b.Open,
		High:              b.High,
		Low:               b.Low,
		Close:             b.Close,
		Volume:            b.Volume,
		Transactions:      b.Transactions,
		VolumeWeightedAvg: b.VWAP,
		IsOTC:             b.OTC,
		IsAdjusted:        adjusted,
	}
}

func (d *tickerDetails) toAttributes() *contracts.TickerAttributes {
	return &contracts.TickerAttributes{
		Ticker:                    d.Ticker,
		Active:                    d.Active,
		Name:                      d.Name,
		Market:                    d.Market,
		Locale:                    d.Locale,
		PrimaryExchange:           d.PrimaryExchange,
		Type:                      d.Type,
		CurrencyName:              d.CurrencyName,
		CIK:                       d.CIK,
		Description:               d.Description,
		HomepageURL:               d.HomepageURL,
		ListDate:                  d.ListDate,
		MarketCap:                 d.MarketCap,
		PhoneNumber:               d.PhoneNumber,
		TotalEmployees:            d.TotalEmployees,
		Address1:                  d.Address.Address1,
		Address2:                  d.Address.Address2,
		City:                      d.Address.City,
		State:                     d.Address.State,
		PostalCode:                d.Address.PostalCode,
		LogoURL:                   d.Branding.LogoURL,
		IconURL:                   d.Branding.IconURL,
		SICCode:                   d.SICCode,
		SICDescription:            d.SICDescription,
		TickerRoot:                d.TickerRoot,
		TickerSuffix:              d.TickerSuffix,
		WeightedSharesOutstanding: d.WeightedSharesOutstanding,
	}
}
