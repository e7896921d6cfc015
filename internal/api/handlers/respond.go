package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// parseRange reads ?from=&to= (YYYY-MM-DD). Missing ends default to the
// trailing window of lookback days ending today.
func parseRange(r *http.Request, now time.Time, lookback int) (contracts.DateRange, error) {
	def := contracts.TrailingRange(now, lookback)
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	return rangeFrom(from, to, def)
}

func rangeFrom(from, to string, def contracts.DateRange) (contracts.DateRange, error) {
	start, end := def.Start, def.End

	if from != "" {
		d, err := contracts.ParseDate(from)
		if err != nil {
			return contracts.DateRange{}, err
		}
		start = d
	}
	if to != "" {
		d, err := contracts.ParseDate(to)
		if err != nil {
			return contracts.DateRange{}, err
		}
		end = d
	}
	return contracts.NewDateRange(start, end)
}
