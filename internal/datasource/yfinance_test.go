package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avralex/tradebrief/pkg/models"
)

// chartJSON renders a minimal v8 chart response with n daily candles.
func chartJSON(n int) string {
	var ts, opens, highs, lows, closes, vols []string
	base := time.Now().AddDate(0, -6, 0).Unix()
	for i := 0; i < n; i++ {
		price := 100.0 + float64(i)
		ts = append(ts, fmt.Sprint(base+int64(i)*86400))
		opens = append(opens, fmt.Sprint(price))
		highs = append(highs, fmt.Sprint(price+2))
		lows = append(lows, fmt.Sprint(price-2))
		closes = append(closes, fmt.Sprint(price+1))
		vols = append(vols, "1000000")
	}
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],
		"indicators":{"quote":[{"open":[%s],"high":[%s],"low":[%s],"close":[%s],"volume":[%s]}]}}],
		"error":null}}`,
		strings.Join(ts, ","), strings.Join(opens, ","), strings.Join(highs, ","),
		strings.Join(lows, ","), strings.Join(closes, ","), strings.Join(vols, ","))
}

func TestYFinanceHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/v8/finance/chart/AAPL") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("interval") != "1d" {
			t.Errorf("unexpected interval: %s", r.URL.Query().Get("interval"))
		}
		fmt.Fprint(w, chartJSON(60))
	}))
	defer server.Close()

	y := NewYFinance(WithYFinanceBaseURL(server.URL))
	candles, err := y.History(context.Background(), "AAPL", models.Timeframe1Day)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(candles) != 60 {
		t.Fatalf("expected 60 candles, got %d", len(candles))
	}
	if candles[0].Close != 101 {
		t.Errorf("expected first close 101, got %.2f", candles[0].Close)
	}
	if candles[0].Volume != 1000000 {
		t.Errorf("expected volume 1000000, got %d", candles[0].Volume)
	}
}

func TestYFinanceHistoryCached(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, chartJSON(60))
	}))
	defer server.Close()

	y := NewYFinance(WithYFinanceBaseURL(server.URL))
	ctx := context.Background()
	if _, err := y.History(ctx, "AAPL", models.Timeframe1Day); err != nil {
		t.Fatalf("first History failed: %v", err)
	}
	if _, err := y.History(ctx, "AAPL", models.Timeframe1Day); err != nil {
		t.Fatalf("second History failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}
}

func TestYFinanceUnknownSymbol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	}))
	defer server.Close()

	y := NewYFinance(WithYFinanceBaseURL(server.URL))
	_, err := y.History(context.Background(), "NOPE", models.Timeframe1Day)
	if !IsNoData(err) {
		t.Fatalf("expected ErrNoData for unknown symbol, got %v", err)
	}
}

func TestYFinanceServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	y := NewYFinance(WithYFinanceBaseURL(server.URL))
	_, err := y.History(context.Background(), "AAPL", models.Timeframe1Day)
	if !IsNoData(err) {
		t.Fatalf("expected provider failure to normalize to ErrNoData, got %v", err)
	}
}

func TestYFinanceEmptySeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartJSON(0))
	}))
	defer server.Close()

	y := NewYFinance(WithYFinanceBaseURL(server.URL))
	_, err := y.History(context.Background(), "AAPL", models.Timeframe1Day)
	if !IsNoData(err) {
		t.Fatalf("expected ErrNoData for empty series, got %v", err)
	}
}

func TestLookbackRange(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		tf   models.Timeframe
		from int64
	}{
		{models.Timeframe15Min, now.AddDate(0, -1, 0).Unix()},
		{models.Timeframe1Hour, now.AddDate(-1, 0, 0).Unix()},
		{models.Timeframe4Hour, now.AddDate(-2, 0, 0).Unix()},
		{models.Timeframe1Day, now.AddDate(-5, 0, 0).Unix()},
		{models.Timeframe1Week, now.AddDate(-5, 0, 0).Unix()},
		{models.Timeframe1Mon, 0},
	}
	for _, tt := range tests {
		from, to := lookbackRange(tt.tf, now)
		if from != tt.from {
			t.Errorf("%s: expected from=%d, got %d", tt.tf, tt.from, from)
		}
		if to != now.Unix() {
			t.Errorf("%s: expected to=%d, got %d", tt.tf, now.Unix(), to)
		}
	}
}

func TestParseYFCandlesNilValues(t *testing.T) {
	one := 100.0
	vol := int64(5000)
	result := yfChartResult{
		Timestamp: []int64{1700000000, 1700086400},
		Indicators: yfIndicators{
			Quote: []yfOHLCV{{
				Open:   []*float64{&one, nil},
				High:   []*float64{&one, nil},
				Low:    []*float64{&one, nil},
				Close:  []*float64{&one, nil},
				Volume: []*int64{&vol, nil},
			}},
		},
	}

	candles := parseYFCandles(result)
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].Close != 100 {
		t.Errorf("expected close 100, got %.2f", candles[0].Close)
	}
	if candles[1].Close != 0 {
		t.Errorf("expected zero close for nil value, got %.2f", candles[1].Close)
	}
}
