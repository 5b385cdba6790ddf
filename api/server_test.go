package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avralex/tradebrief/internal/bot"
	"github.com/avralex/tradebrief/internal/config"
	"github.com/avralex/tradebrief/internal/datasource"
	"github.com/avralex/tradebrief/pkg/models"
)

type fakeMarket struct {
	historyFunc func(ctx context.Context, ticker string, tf models.Timeframe) ([]models.OHLCV, error)
}

func (m *fakeMarket) Name() string { return "fake market" }

func (m *fakeMarket) History(ctx context.Context, ticker string, tf models.Timeframe) ([]models.OHLCV, error) {
	return m.historyFunc(ctx, ticker, tf)
}

func makeCandles(n int) []models.OHLCV {
	candles := make([]models.OHLCV, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price := 100 + float64(i)
		candles[i] = models.OHLCV{
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price - 0.5,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	return candles
}

func newTestServer(market datasource.MarketSource, sessions *bot.Store) *Server {
	cfg := &config.Config{}
	cfg.API.CORSOrigins = []string{"*"}
	return NewServer(cfg, market, sessions)
}

func doRequest(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	market := &fakeMarket{}
	sessions := bot.NewStore()
	sessions.Do(1, func(s *bot.Session) {})
	srv := newTestServer(market, sessions)

	for _, path := range []string{"/health", "/api/v1/health"} {
		rec, resp := doRequest(t, srv, path)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
		if !resp.Success {
			t.Errorf("%s success = false", path)
		}
		data := resp.Data.(map[string]interface{})
		if data["status"] != "ok" {
			t.Errorf("%s status field = %v", path, data["status"])
		}
		if data["source"] != "fake market" {
			t.Errorf("%s source = %v", path, data["source"])
		}
		if data["active_chats"] != float64(1) {
			t.Errorf("%s active_chats = %v", path, data["active_chats"])
		}
	}
}

func TestHealthWithoutSessions(t *testing.T) {
	srv := newTestServer(&fakeMarket{}, nil)

	_, resp := doRequest(t, srv, "/health")
	data := resp.Data.(map[string]interface{})
	if _, ok := data["active_chats"]; ok {
		t.Error("active_chats should be absent without a session store")
	}
}

func TestSnapshot(t *testing.T) {
	var gotTicker string
	var gotTF models.Timeframe
	market := &fakeMarket{
		historyFunc: func(ctx context.Context, ticker string, tf models.Timeframe) ([]models.OHLCV, error) {
			gotTicker, gotTF = ticker, tf
			return makeCandles(60), nil
		},
	}
	srv := newTestServer(market, nil)

	rec, resp := doRequest(t, srv, "/api/v1/snapshot/btc-usd?timeframe=4h")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotTicker != "BTC-USD" {
		t.Errorf("ticker = %q, want normalized BTC-USD", gotTicker)
	}
	if gotTF != models.Timeframe4Hour {
		t.Errorf("timeframe = %q", gotTF)
	}

	data := resp.Data.(map[string]interface{})
	if data["ticker"] != "BTC-USD" {
		t.Errorf("snapshot ticker = %v", data["ticker"])
	}
	if _, ok := data["rsi"]; !ok {
		t.Error("snapshot missing rsi field")
	}
}

func TestSnapshotDefaultTimeframe(t *testing.T) {
	var gotTF models.Timeframe
	market := &fakeMarket{
		historyFunc: func(ctx context.Context, ticker string, tf models.Timeframe) ([]models.OHLCV, error) {
			gotTF = tf
			return makeCandles(60), nil
		},
	}
	srv := newTestServer(market, nil)

	doRequest(t, srv, "/api/v1/snapshot/AAPL")
	if gotTF != models.Timeframe1Day {
		t.Errorf("default timeframe = %q, want 1d", gotTF)
	}
}

func TestSnapshotInvalidTicker(t *testing.T) {
	srv := newTestServer(&fakeMarket{}, nil)

	rec, resp := doRequest(t, srv, "/api/v1/snapshot/A?timeframe=1d")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if resp.Success || resp.Error == "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSnapshotUnknownTimeframe(t *testing.T) {
	srv := newTestServer(&fakeMarket{}, nil)

	rec, resp := doRequest(t, srv, "/api/v1/snapshot/AAPL?timeframe=7d")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(resp.Error, "unknown timeframe") {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestSnapshotNoData(t *testing.T) {
	market := &fakeMarket{
		historyFunc: func(ctx context.Context, ticker string, tf models.Timeframe) ([]models.OHLCV, error) {
			return nil, datasource.ErrNoData
		},
	}
	srv := newTestServer(market, nil)

	rec, resp := doRequest(t, srv, "/api/v1/snapshot/ZZZZZZ")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if resp.Success {
		t.Error("success should be false")
	}
}

func TestSnapshotShortHistory(t *testing.T) {
	market := &fakeMarket{
		historyFunc: func(ctx context.Context, ticker string, tf models.Timeframe) ([]models.OHLCV, error) {
			return makeCandles(10), nil
		},
	}
	srv := newTestServer(market, nil)

	rec, _ := doRequest(t, srv, "/api/v1/snapshot/AAPL")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestOHLCV(t *testing.T) {
	market := &fakeMarket{
		historyFunc: func(ctx context.Context, ticker string, tf models.Timeframe) ([]models.OHLCV, error) {
			return makeCandles(3), nil
		},
	}
	srv := newTestServer(market, nil)

	rec, resp := doRequest(t, srv, "/api/v1/ohlcv/AAPL?timeframe=1h")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	candles := resp.Data.([]interface{})
	if len(candles) != 3 {
		t.Errorf("got %d candles", len(candles))
	}
}
