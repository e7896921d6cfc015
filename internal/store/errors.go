package store

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/wonny/eqindex/internal/contracts"
)

// Sentinel errors shared by the postgres and memory stores
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidatePrices checks bars before they are written
func ValidatePrices(prices []contracts.PricePoint) error {
	for i, p := range prices {
		if strings.TrimSpace(p.Ticker) == "" {
			return invalid("price %d: empty ticker", i)
		}
		if p.Date.IsZero() {
			return invalid("price %s: zero date", p.Ticker)
		}
		if !finite(p.Close) || p.Close < 0 {
			return invalid("price %s: bad close %v", p.Ticker, p.Close)
		}
	}
	return nil
}

// ValidateTickers checks reference rows before they are written
func ValidateTickers(attrs []contracts.TickerAttributes) error {
	for i, a := range attrs {
		if strings.TrimSpace(a.Ticker) == "" {
			return invalid("ticker %d: empty ticker", i)
		}
		if a.MarketCap != nil && (!finite(*a.MarketCap) || *a.MarketCap < 0) {
			return invalid("ticker %s: bad market cap %v", a.Ticker, *a.MarketCap)
		}
	}
	return nil
}

// ValidateComposition checks one version set: rows must be unique per (date, ticker)
func ValidateComposition(rows []contracts.CompositionEntry) error {
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		if strings.TrimSpace(r.Ticker) == "" {
			return invalid("composition %d: empty ticker", i)
		}
		if r.Date.IsZero() {
			return invalid("composition %s: zero date", r.Ticker)
		}
		if !finite(r.Weight) || r.Weight <= 0 || r.Weight > 1 {
			return invalid("composition %s: weight %v out of (0, 1]", r.Ticker, r.Weight)
		}
		key := contracts.FormatDate(r.Date) + "|" + r.Ticker
		if _, dup := seen[key]; dup {
			return invalid("composition %s: duplicate ticker for %s", r.Ticker, contracts.FormatDate(r.Date))
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ValidatePerformance checks one performance version set: one row per date
func ValidatePerformance(rows []contracts.PerformancePoint) error {
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		if r.Date.IsZero() {
			return invalid("performance %d: zero date", i)
		}
		if !finite(r.IndexPrice) || !finite(r.DailyReturn) {
			return invalid("performance %s: non-finite value", contracts.FormatDate(r.Date))
		}
		key := contracts.FormatDate(r.Date)
		if _, dup := seen[key]; dup {
			return invalid("performance %s: duplicate date", key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ValidateChanges checks change records before they are appended
func ValidateChanges(rows []contracts.ChangeRecord) error {
	for i, r := range rows {
		if r.Date.IsZero() {
			return invalid("change %d: zero date", i)
		}
		if (r.PrevDate == nil) != (r.PrevSymbols == nil) {
			return invalid("change %s: prev_date and prev_symbols must both be set or both be null", contracts.FormatDate(r.Date))
		}
	}
	return nil
}
