package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/eqindex/internal/contracts"
)

const tickerColumns = `
	ticker, active, name, market, locale, primary_exchange, type, currency_name,
	cik, description, homepage_url, list_date, market_cap, phone_number,
	total_employees, address1, address2, city, state, postal_code, logo_url,
	icon_url, sic_code, sic_description, ticker_root, ticker_suffix,
	weighted_shares_outstanding`

// SaveTickerAttributes upserts reference data by ticker (last-write-wins)
func (s *Store) SaveTickerAttributes(ctx context.Context, attrs []contracts.TickerAttributes) (int, error) {
	if len(attrs) == 0 {
		return 0, nil
	}
	if err := ValidateTickers(attrs); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO data.ticker_details (` + tickerColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, NOW())
		ON CONFLICT (ticker) DO UPDATE SET
			active = EXCLUDED.active,
			name = EXCLUDED.name,
			market = EXCLUDED.market,
			locale = EXCLUDED.locale,
			primary_exchange = EXCLUDED.primary_exchange,
			type = EXCLUDED.type,
			currency_name = EXCLUDED.currency_name,
			cik = EXCLUDED.cik,
			description = EXCLUDED.description,
			homepage_url = EXCLUDED.homepage_url,
			list_date = EXCLUDED.list_date,
			market_cap = EXCLUDED.market_cap,
			phone_number = EXCLUDED.phone_number,
			total_employees = EXCLUDED.total_employees,
			address1 = EXCLUDED.address1,
			address2 = EXCLUDED.address2,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			postal_code = EXCLUDED.postal_code,
			logo_url = EXCLUDED.logo_url,
			icon_url = EXCLUDED.icon_url,
			sic_code = EXCLUDED.sic_code,
			sic_description = EXCLUDED.sic_description,
			ticker_root = EXCLUDED.ticker_root,
			ticker_suffix = EXCLUDED.ticker_suffix,
			weighted_shares_outstanding = EXCLUDED.weighted_shares_outstanding,
			updated_at = NOW()
	`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range attrs {
		_, err := tx.Exec(ctx, query,
			a.Ticker, a.Active, a.Name, a.Market, a.Locale, a.PrimaryExchange, a.Type, a.CurrencyName,
			a.CIK, a.Description, a.HomepageURL, a.ListDate, a.MarketCap, a.PhoneNumber,
			a.TotalEmployees, a.Address1, a.Address2, a.City, a.State, a.PostalCode, a.LogoURL,
			a.IconURL, a.SICCode, a.SICDescription, a.TickerRoot, a.TickerSuffix,
			a.WeightedSharesOutstanding,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert ticker %s: %w", a.Ticker, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return len(attrs), nil
}

// GetTickerAttributes returns reference data of one ticker or ErrNotFound
func (s *Store) GetTickerAttributes(ctx context.Context, ticker string) (*contracts.TickerAttributes, error) {
	query := `SELECT ` + tickerColumns + ` FROM data.ticker_details WHERE ticker = $1`

	var a contracts.TickerAttributes
	err := s.pool.QueryRow(ctx, query, ticker).Scan(
		&a.Ticker, &a.Active, &a.Name, &a.Market, &a.Locale, &a.PrimaryExchange, &a.Type, &a.CurrencyName,
		&a.CIK, &a.Description, &a.HomepageURL, &a.ListDate, &a.MarketCap, &a.PhoneNumber,
		&a.TotalEmployees, &a.Address1, &a.Address2, &a.City, &a.State, &a.PostalCode, &a.LogoURL,
		&a.IconURL, &a.SICCode, &a.SICDescription, &a.TickerRoot, &a.TickerSuffix,
		&a.WeightedSharesOutstanding,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ticker %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get ticker %s: %w", ticker, err)
	}
	return &a, nil
}

// ListTickers returns all known tickers in sorted order
func (s *Store) ListTickers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT ticker FROM data.ticker_details ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}
