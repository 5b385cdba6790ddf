package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/avralex/tradebrief/pkg/models"
)

// YFinance implements MarketSource using the Yahoo Finance v8 chart API.
type YFinance struct {
	baseURL string
	cache   *Cache
	limiter *RateLimiter
}

// YFinanceOption configures the Yahoo Finance source.
type YFinanceOption func(*YFinance)

// WithYFinanceBaseURL overrides the API base URL (used in tests).
func WithYFinanceBaseURL(u string) YFinanceOption {
	return func(y *YFinance) { y.baseURL = u }
}

// NewYFinance creates a new Yahoo Finance market data source.
func NewYFinance(opts ...YFinanceOption) *YFinance {
	y := &YFinance{
		baseURL: "https://query1.finance.yahoo.com",
		cache:   NewCache(5 * time.Minute),
		limiter: NewRateLimiter(5, time.Second), // 5 req/s
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v8 API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfIndicators struct {
	Quote    []yfOHLCV    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// History returns OHLCV candles for the ticker on the given timeframe.
// Any provider error, unknown symbol, or empty series normalizes to ErrNoData
// so the caller sees a single absence-of-data signal.
func (y *YFinance) History(ctx context.Context, ticker string, tf models.Timeframe) ([]models.OHLCV, error) {
	cacheKey := fmt.Sprintf("hist:%s:%s", ticker, tf)
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.([]models.OHLCV), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	from, to := lookbackRange(tf, time.Now())
	reqURL := fmt.Sprintf(
		"%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=%s",
		y.baseURL, url.PathEscape(ticker), from, to, tf,
	)

	body, _, err := doGet(ctx, reqURL, map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chart %s: %v", ErrNoData, ticker, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrNoData, err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse chart: %v", ErrNoData, err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoData, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}

	candles := parseYFCandles(resp.Chart.Result[0])
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}

	y.cache.SetWithTTL(cacheKey, candles, 15*time.Minute)
	return candles, nil
}

// IsNoData reports whether an error is the absence-of-data signal.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}

// --- Helpers ---

// lookbackRange maps a timeframe to the unix second range requested from the
// chart API. Short intraday timeframes get a short window; daily and weekly
// get multi-year windows; monthly gets the full history.
func lookbackRange(tf models.Timeframe, now time.Time) (from, to int64) {
	to = now.Unix()
	switch tf {
	case models.Timeframe1Min, models.Timeframe5Min, models.Timeframe15Min, models.Timeframe30Min:
		from = now.AddDate(0, -1, 0).Unix()
	case models.Timeframe1Hour:
		from = now.AddDate(-1, 0, 0).Unix()
	case models.Timeframe4Hour:
		from = now.AddDate(-2, 0, 0).Unix()
	case models.Timeframe1Day, models.Timeframe1Week:
		from = now.AddDate(-5, 0, 0).Unix()
	case models.Timeframe1Mon:
		from = 0 // full history
	default:
		from = now.AddDate(0, -1, 0).Unix()
	}
	return from, to
}

func parseYFCandles(result yfChartResult) []models.OHLCV {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	q := result.Indicators.Quote[0]
	var adjCloses []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	candles := make([]models.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := models.OHLCV{
			Timestamp: time.Unix(ts, 0),
		}
		if i < len(q.Open) && q.Open[i] != nil {
			c.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			c.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			c.Low = *q.Low[i]
		}
		if i < len(q.Close) && q.Close[i] != nil {
			c.Close = *q.Close[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		if i < len(adjCloses) && adjCloses[i] != nil {
			c.AdjClose = *adjCloses[i]
		}
		candles = append(candles, c)
	}
	return candles
}
