// Package technical implements the technical indicators behind the market
// snapshot. All functions operate on []models.OHLCV candle slices ordered
// oldest first.
package technical

import (
	"math"

	"github.com/avralex/tradebrief/pkg/models"
)

// SMA calculates Simple Moving Average for the given period.
func SMA(data []float64, period int) []float64 {
	n := len(data)
	if n < period || period <= 0 {
		return nil
	}

	result := make([]float64, n)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += data[i]
	}
	result[period-1] = sum / float64(period)

	for i := period; i < n; i++ {
		sum += data[i] - data[i-period]
		result[i] = sum / float64(period)
	}

	return result
}

// SMALatest returns the most recent SMA value.
func SMALatest(data []float64, period int) float64 {
	vals := SMA(data, period)
	if len(vals) == 0 {
		return 0
	}
	return vals[len(vals)-1]
}

// RSI calculates the Relative Strength Index for the given period using
// Wilder's smoothing. Default period is 14. Returns values 0–100.
func RSI(candles []models.OHLCV, period int) []float64 {
	if period <= 0 {
		period = 14
	}
	n := len(candles)
	if n < period+1 {
		return nil
	}

	rsi := make([]float64, n)
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		rsi[period] = 100
	} else {
		rs := avgGain / avgLoss
		rsi[period] = 100 - (100 / (1 + rs))
	}

	for i := period + 1; i < n; i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)

		if avgLoss == 0 {
			rsi[i] = 100
		} else {
			rs := avgGain / avgLoss
			rsi[i] = 100 - (100 / (1 + rs))
		}
	}

	return rsi
}

// RSILatest returns only the most recent RSI value.
func RSILatest(candles []models.OHLCV, period int) float64 {
	vals := RSI(candles, period)
	if len(vals) == 0 {
		return 0
	}
	return vals[len(vals)-1]
}

// BollingerData holds one Bollinger Bands computation point.
type BollingerData struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// BollingerBands calculates Bollinger Bands (upper, middle, lower).
// Default: period=20, stddev multiplier=2.
func BollingerBands(candles []models.OHLCV, period int, mult float64) []BollingerData {
	if period <= 0 {
		period = 20
	}
	if mult <= 0 {
		mult = 2.0
	}

	closes := ExtractCloses(candles)
	n := len(closes)
	if n < period {
		return nil
	}

	result := make([]BollingerData, n)
	for i := period - 1; i < n; i++ {
		window := closes[i-period+1 : i+1]
		mean := avg(window)
		sd := stddev(window, mean)
		result[i] = BollingerData{
			Upper:  mean + mult*sd,
			Middle: mean,
			Lower:  mean - mult*sd,
		}
	}

	return result
}

// BollingerLatest returns the most recent Bollinger Bands values.
func BollingerLatest(candles []models.OHLCV, period int, mult float64) BollingerData {
	vals := BollingerBands(candles, period, mult)
	if len(vals) == 0 {
		return BollingerData{}
	}
	return vals[len(vals)-1]
}

// ATR calculates the Average True Range for the given period using
// Wilder's smoothing.
func ATR(candles []models.OHLCV, period int) []float64 {
	if period <= 0 {
		period = 14
	}
	n := len(candles)
	if n < 2 {
		return nil
	}

	tr := make([]float64, n)
	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < n; i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	atr := make([]float64, n)
	if n < period {
		return atr
	}

	// First ATR = simple average of first `period` true ranges.
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	atr[period-1] = sum / float64(period)

	for i := period; i < n; i++ {
		atr[i] = (atr[i-1]*float64(period-1) + tr[i]) / float64(period)
	}

	return atr
}

// ATRLatest returns the most recent ATR value.
func ATRLatest(candles []models.OHLCV, period int) float64 {
	vals := ATR(candles, period)
	if len(vals) == 0 {
		return 0
	}
	return vals[len(vals)-1]
}

// ExtractCloses returns the close series of a candle slice.
func ExtractCloses(candles []models.OHLCV) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

func avg(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func stddev(data []float64, mean float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range data {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(data)))
}
