// Package analysis derives the per-instrument market snapshot from a raw
// OHLCV series.
package analysis

import (
	"errors"
	"math"
	"time"

	"github.com/avralex/tradebrief/internal/analysis/technical"
	"github.com/avralex/tradebrief/pkg/models"
)

// Indicator parameters for the snapshot. The trailing window for
// support/resistance doubles as the minimum series length.
const (
	MinObservations = 50
	TrendPeriod     = 200
	RSIPeriod       = 14
	BollingerPeriod = 20
	BollingerStdDev = 2.0
	ATRPeriod       = 14
	SupportWindow   = 50

	pricePrecision = 4
	oscPrecision   = 2
)

// ErrInsufficientData is returned when the price series is too short to
// compute the snapshot.
var ErrInsufficientData = errors.New("analysis: insufficient price history")

// BuildSnapshot computes the technical snapshot for a candle series.
// The series must hold at least MinObservations candles; the trend stays
// UNKNOWN below TrendPeriod candles.
func BuildSnapshot(ticker string, tf models.Timeframe, candles []models.OHLCV) (*models.Snapshot, error) {
	if len(candles) < MinObservations {
		return nil, ErrInsufficientData
	}

	closes := technical.ExtractCloses(candles)
	lastClose := closes[len(closes)-1]

	trend := models.TrendUnknown
	if len(closes) >= TrendPeriod {
		if lastClose > technical.SMALatest(closes, TrendPeriod) {
			trend = models.TrendUp
		} else {
			trend = models.TrendDown
		}
	}

	bb := technical.BollingerLatest(candles, BollingerPeriod, BollingerStdDev)
	bandStatus := models.BandNormal
	switch {
	case lastClose >= bb.Upper:
		bandStatus = models.BandOverbought
	case lastClose <= bb.Lower:
		bandStatus = models.BandOversold
	}

	support, resistance := tailMinMax(closes, SupportWindow)

	return &models.Snapshot{
		Ticker:     ticker,
		Timeframe:  tf,
		Price:      roundTo(lastClose, pricePrecision),
		RSI:        roundTo(technical.RSILatest(candles, RSIPeriod), oscPrecision),
		Trend:      trend,
		BandStatus: bandStatus,
		Support:    roundTo(support, pricePrecision),
		Resistance: roundTo(resistance, pricePrecision),
		ATR:        roundTo(technical.ATRLatest(candles, ATRPeriod), pricePrecision),
		FetchedAt:  time.Now(),
	}, nil
}

// tailMinMax returns the min and max of the trailing window of a series.
func tailMinMax(data []float64, window int) (min, max float64) {
	if len(data) == 0 {
		return 0, 0
	}
	start := len(data) - window
	if start < 0 {
		start = 0
	}
	min, max = data[start], data[start]
	for _, v := range data[start+1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func roundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
