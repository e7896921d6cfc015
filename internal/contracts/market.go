package contracts

import "time"

// PricePoint is one daily OHLCV bar of a ticker.
// Natural key (Ticker, Timestamp); re-fetching overwrites by key.
type PricePoint struct {
	Ticker            string    `json:"ticker"`
	Date              time.Time `json:"date"`
	Timestamp         int64     `json:"timestamp"` // bar start, unix ms
	Open              float64   `json:"open"`
	High              float64   `json:"high"`
	Low               float64   `json:"low"`
	Close             float64   `json:"close"`
	Volume            float64   `json:"volume"`
	Transactions      int64     `json:"transactions"`
	VolumeWeightedAvg float64   `json:"volume_weighted_avg"`
	IsOTC             bool      `json:"is_otc"`
	IsAdjusted        bool      `json:"is_adjusted"`
}

// TickerAttributes holds reference data of a ticker.
// Overwritten on refresh; MarketCap is the value current at refresh time.
type TickerAttributes struct {
	Ticker                    string   `json:"ticker"`
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
	MarketCap                 *float64 `json:"market_cap,omitempty"`
	PhoneNumber               string   `json:"phone_number"`
	TotalEmployees            *int64   `json:"total_employees,omitempty"`
	Address1                  string   `json:"address1"`
	Address2                  string   `json:"address2"`
	City                      string   `json:"city"`
	State                     string   `json:"state"`
	PostalCode                string   `json:"postal_code"`
	LogoURL                   string   `json:"logo_url"`
	IconURL                   string   `json:"icon_url"`
	SICCode                   string   `json:"sic_code"`
	SICDescription            string   `json:"sic_description"`
	TickerRoot                string   `json:"ticker_root"`
	TickerSuffix              string   `json:"ticker_suffix"`
	WeightedSharesOutstanding *float64 `json:"weighted_shares_outstanding,omitempty"`
}

// HasMarketCap reports whether the ticker can be ranked
func (t *TickerAttributes) HasMarketCap() bool {
	return t.MarketCap != nil
}

// ClosePrice is the close of one ticker on one date
type ClosePrice struct {
	Date   time.Time `json:"date"`
	Ticker string    `json:"ticker"`
	Close  float64   `json:"close"`
}

// Candidate is a ticker eligible for selection on a date:
// it has a market cap and a price bar on that date.
type Candidate struct {
	Ticker     string  `json:"ticker"`
	MarketCap  float64 `json:"market_cap"`
	ClosePrice float64 `json:"close_price"`
}
