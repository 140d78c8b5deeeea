// Package client 提供上游行情服务的 HTTP 客户端实现。
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wyfcoding/pkg/cache"
	"github.com/wyfcoding/pkg/httpclient"
	"github.com/wyfcoding/pkg/logging"

	"github.com/wyfcoding/portfoliorisk/internal/simulation/domain"
)

const (
	historyPath   = "/api/v1/marketdata/history"
	cacheKeyScope = "mkt:history"
)

// priceHistoryPayload 上游行情服务的历史价格响应。
// 缺失价格以 null 传输，转换为领域层的 NaN；JSON 无法携带 NaN，
// 缓存也存这份线格式而不是领域对象。
type priceHistoryPayload struct {
	Symbols []string     `json:"symbols"`
	Dates   []string     `json:"dates"`
	Prices  [][]*float64 `json:"prices"`
}

// MarketDataClient 实现 domain.MarketDataProvider，经带治理能力的 HTTP 客户端
// 访问上游行情服务，可选经本地缓存短路重复查询。
type MarketDataClient struct {
	baseURL  string
	http     *httpclient.Client
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewMarketDataClient 创建行情客户端。c 为 nil 时禁用缓存。
func NewMarketDataClient(baseURL string, hc *httpclient.Client, c cache.Cache, cacheTTL time.Duration) *MarketDataClient {
	return &MarketDataClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     hc,
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

// FetchPrices 拉取资产子集在日期区间内按日对齐的收盘价序列。
func (c *MarketDataClient) FetchPrices(ctx context.Context, symbols []string, start, end time.Time) (*domain.PriceSeries, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("fetch prices: no symbols: %w", domain.ErrInvalidParameter)
	}

	key := cacheKey(symbols, start, end)
	if c.cache != nil {
		var cached priceHistoryPayload
		if err := c.cache.Get(ctx, key, &cached); err == nil {
			return toPriceSeries(&cached)
		}
	}

	payload, err := c.fetch(ctx, symbols, start, end)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, payload, c.cacheTTL); err != nil {
			logging.Warn(ctx, "Failed to cache price history", "key", key, "error", err)
		}
	}
	return toPriceSeries(payload)
}

func (c *MarketDataClient) fetch(ctx context.Context, symbols []string, start, end time.Time) (*priceHistoryPayload, error) {
	query := url.Values{}
	query.Set("symbols", strings.Join(symbols, ","))
	query.Set("start", start.Format("2006-01-02"))
	query.Set("end", end.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+historyPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("market data request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("market data for %s: %w", strings.Join(symbols, ","), domain.ErrAssetNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("market data request: status %d: %s", resp.StatusCode, string(body))
	}

	var payload priceHistoryPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode market data response: %w", err)
	}
	return &payload, nil
}

// toPriceSeries 线格式转领域对象：null 价格转 NaN，日期转 UTC 零点。
func toPriceSeries(payload *priceHistoryPayload) (*domain.PriceSeries, error) {
	dates := make([]time.Time, len(payload.Dates))
	for i, d := range payload.Dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			return nil, fmt.Errorf("market data date %q: %w", d, err)
		}
		dates[i] = t
	}

	prices := make([][]float64, len(payload.Prices))
	for i, row := range payload.Prices {
		if len(row) != len(payload.Symbols) {
			return nil, fmt.Errorf("market data row %d: %d prices for %d symbols: %w",
				i, len(row), len(payload.Symbols), domain.ErrInvalidParameter)
		}
		out := make([]float64, len(row))
		for j, p := range row {
			if p == nil {
				out[j] = math.NaN()
				continue
			}
			out[j] = *p
		}
		prices[i] = out
	}

	return domain.NewPriceSeries(dates, payload.Symbols, prices)
}

func cacheKey(symbols []string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", cacheKeyScope,
		strings.Join(symbols, ","), start.Format("2006-01-02"), end.Format("2006-01-02"))
}
