package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Universe supplies the tickers whose reference data is refreshed
type Universe interface {
	Tickers(ctx context.Context) ([]string, error)
}

// StaticUniverse is a fixed ticker list
type StaticUniverse []string

// Tickers returns the list uppercased, deduplicated and sorted
func (u StaticUniverse) Tickers(context.Context) ([]string, error) {
	seen := make(map[string]struct{}, len(u))
	out := make([]string, 0, len(u))
	for _, t := range u {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// TickerLister pages through a reference ticker listing; polygon.Client satisfies it
type TickerLister interface {
	ListTickers(ctx context.Context, limit int) ([]string, error)
}

// ListedUniverse reads up to Limit tickers from a lister (0 = all)
type ListedUniverse struct {
	Lister TickerLister
	Limit  int
}

// Tickers lists the universe
func (u ListedUniverse) Tickers(ctx context.Context) ([]string, error) {
	tickers, err := u.Lister.ListTickers(ctx, u.Limit)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	return tickers, nil
}
