package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/eqindex/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestWrap_Nil(t *testing.T) {
	assert.False(t, Wrap(nil).Enabled())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "test")
	cfg := PolygonRateLimit(5)

	// When Redis is disabled, all requests should be allowed
	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, cfg.Limit, remaining)

	assert.NoError(t, limiter.Wait(context.Background(), cfg))
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")
	ctx := context.Background()

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestCache_GetOrSetDisabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")

	calls := 0
	var out struct{ Ticker string }
	err := cache.GetOrSet(context.Background(), TickerDetailsKey("AAPL"), &out, TTLDaily, func() (interface{}, error) {
		calls++
		return map[string]string{"Ticker": "AAPL"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "AAPL", out.Ticker)
}

func TestPubSub_Disabled(t *testing.T) {
	client := disabledClient(t)

	assert.NoError(t, client.Publish(context.Background(), "events", map[string]int{"rows": 1}))

	_, err := client.Subscribe(context.Background(), "events")
	assert.Error(t, err)
}

func TestPolygonRateLimit(t *testing.T) {
	cfg := PolygonRateLimit(5)
	assert.Equal(t, "polygon", cfg.Key)
	assert.Equal(t, 5, cfg.Limit)
	assert.Equal(t, time.Minute, cfg.Window)
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"TickerDetailsKey", TickerDetailsKey("AAPL"), "ticker:details:AAPL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}
