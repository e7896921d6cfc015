package polygon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/config"
	"github.com/wonny/eqindex/pkg/httputil"
	"github.com/wonny/eqindex/pkg/logger"
	"github.com/wonny/eqindex/pkg/metrics"
)

const source = "polygon"

// Client handles communication with the Polygon.io REST API
// ⭐ SSOT: Polygon 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	validate   *validator.Validate
}

// NewClient creates a new Polygon client.
// Requests are spaced to cfg.RequestsPerMinute (free tier: 5/min).
func NewClient(httpClient *httputil.Client, log *logger.Logger, cfg config.PolygonConfig) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 5
	}

	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		validate:   validator.New(),
	}
}

// getJSON waits for the limiter, then GETs path with params plus apiKey
func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", c.apiKey)

	return c.fetch(ctx, endpoint, c.baseURL+path+"?"+params.Encode(), out)
}

func (c *Client) fetch(ctx context.Context, endpoint, fullURL string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	err := c.httpClient.GetJSON(ctx, fullURL, out)
	metrics.ExternalRequests.WithLabelValues(source, endpoint, requestStatus(err)).Inc()
	return err
}

// withAPIKey appends the key to a next_url cursor, which Polygon returns without it
func (c *Client) withAPIKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse next_url: %w", err)
	}
	q := u.Query()
	q.Set("apiKey", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func requestStatus(err error) string {
	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("%d", statusErr.StatusCode)
	}
	if err != nil {
		return metrics.OutcomeError
	}
	return fmt.Sprintf("%d", http.StatusOK)
}

func isNotFound(err error) bool {
	var statusErr *httputil.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

var _ contracts.MarketDataSource = (*Client)(nil)
