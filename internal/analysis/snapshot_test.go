package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/avralex/tradebrief/pkg/models"
)

// makeCandles generates synthetic OHLCV data for testing.
func makeCandles(n int, basePrice float64, trend float64) []models.OHLCV {
	candles := make([]models.OHLCV, n)
	price := basePrice
	for i := 0; i < n; i++ {
		open := price
		close := open + trend
		high := math.Max(open, close) + 2
		low := math.Min(open, close) - 2
		candles[i] = models.OHLCV{
			Timestamp: time.Now().Add(time.Duration(-n+i) * 24 * time.Hour),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    1000000,
		}
		price = close
	}
	return candles
}

func TestBuildSnapshotInsufficientData(t *testing.T) {
	candles := makeCandles(MinObservations-1, 100, 1)
	if _, err := BuildSnapshot("AAPL", models.Timeframe1Day, candles); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestBuildSnapshotMinimumSeries(t *testing.T) {
	candles := makeCandles(MinObservations, 100, 0.5)
	snap, err := BuildSnapshot("AAPL", models.Timeframe1Day, candles)
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	if snap.Ticker != "AAPL" || snap.Timeframe != models.Timeframe1Day {
		t.Errorf("identity mismatch: %s %s", snap.Ticker, snap.Timeframe)
	}
	// Fewer than 200 candles keeps the trend unknown.
	if snap.Trend != models.TrendUnknown {
		t.Errorf("expected UNKNOWN trend for %d candles, got %s", MinObservations, snap.Trend)
	}
}

func TestBuildSnapshotTrendUp(t *testing.T) {
	candles := makeCandles(TrendPeriod+50, 100, 0.5)
	snap, err := BuildSnapshot("AAPL", models.Timeframe1Day, candles)
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	if snap.Trend != models.TrendUp {
		t.Errorf("expected UP trend in rising series, got %s", snap.Trend)
	}
}

func TestBuildSnapshotTrendDown(t *testing.T) {
	candles := makeCandles(TrendPeriod+50, 500, -0.5)
	snap, err := BuildSnapshot("AAPL", models.Timeframe1Day, candles)
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	if snap.Trend != models.TrendDown {
		t.Errorf("expected DOWN trend in falling series, got %s", snap.Trend)
	}
}

func TestBuildSnapshotBandStatus(t *testing.T) {
	// A final close far above the recent range pushes past the upper band.
	candles := makeCandles(60, 100, 0.1)
	candles[len(candles)-1].Close = 200
	snap, err := BuildSnapshot("AAPL", models.Timeframe1Day, candles)
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	if snap.BandStatus != models.BandOverbought {
		t.Errorf("expected OVERBOUGHT after price spike, got %s", snap.BandStatus)
	}

	candles[len(candles)-1].Close = 20
	snap, err = BuildSnapshot("AAPL", models.Timeframe1Day, candles)
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	if snap.BandStatus != models.BandOversold {
		t.Errorf("expected OVERSOLD after price crash, got %s", snap.BandStatus)
	}
}

func TestBuildSnapshotSupportResistance(t *testing.T) {
	candles := makeCandles(SupportWindow*3, 100, 0.5)
	snap, err := BuildSnapshot("AAPL", models.Timeframe1Day, candles)
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	if snap.Support > snap.Resistance {
		t.Errorf("support %.4f above resistance %.4f", snap.Support, snap.Resistance)
	}
	if snap.Price < snap.Support || snap.Price > snap.Resistance {
		t.Errorf("price %.4f outside [%.4f, %.4f] for a close-based range",
			snap.Price, snap.Support, snap.Resistance)
	}
	// Window is trailing: a low close further back than the window must not
	// drag support down.
	wantSupport := candles[len(candles)-SupportWindow].Close
	if snap.Support != roundTo(wantSupport, pricePrecision) {
		t.Errorf("expected support %.4f from trailing window, got %.4f", wantSupport, snap.Support)
	}
}

func TestBuildSnapshotRounding(t *testing.T) {
	candles := makeCandles(60, 100, 0.333333)
	snap, err := BuildSnapshot("AAPL", models.Timeframe1Day, candles)
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	for name, v := range map[string]float64{
		"price":      snap.Price,
		"support":    snap.Support,
		"resistance": snap.Resistance,
		"atr":        snap.ATR,
	} {
		if roundTo(v, pricePrecision) != v {
			t.Errorf("%s not rounded to %d places: %v", name, pricePrecision, v)
		}
	}
	if roundTo(snap.RSI, oscPrecision) != snap.RSI {
		t.Errorf("rsi not rounded to %d places: %v", oscPrecision, snap.RSI)
	}
}

func TestTailMinMax(t *testing.T) {
	data := []float64{1, 9, 3, 4, 5}
	min, max := tailMinMax(data, 3)
	if min != 3 || max != 5 {
		t.Errorf("expected (3, 5), got (%.0f, %.0f)", min, max)
	}
	min, max = tailMinMax(data, 10)
	if min != 1 || max != 9 {
		t.Errorf("expected (1, 9) for oversized window, got (%.0f, %.0f)", min, max)
	}
}
