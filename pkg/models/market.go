// Package models defines the core data structures used throughout tradebrief.
package models

import "time"

// OHLCV represents a single candlestick bar of price data.
type OHLCV struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	AdjClose  float64   `json:"adj_close,omitempty"`
}

// Timeframe represents chart timeframe for OHLCV data.
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1m"
	Timeframe5Min  Timeframe = "5m"
	Timeframe15Min Timeframe = "15m"
	Timeframe30Min Timeframe = "30m"
	Timeframe1Hour Timeframe = "1h"
	Timeframe4Hour Timeframe = "4h"
	Timeframe1Day  Timeframe = "1d"
	Timeframe1Week Timeframe = "1wk"
	Timeframe1Mon  Timeframe = "1mo"
)

// Timeframes lists all supported chart timeframes in display order.
var Timeframes = []Timeframe{
	Timeframe1Min, Timeframe5Min, Timeframe15Min, Timeframe30Min,
	Timeframe1Hour, Timeframe4Hour, Timeframe1Day, Timeframe1Week, Timeframe1Mon,
}

// ParseTimeframe validates a user-supplied timeframe token.
func ParseTimeframe(s string) (Timeframe, bool) {
	tf := Timeframe(s)
	for _, known := range Timeframes {
		if tf == known {
			return tf, true
		}
	}
	return "", false
}

// Trend classifies price position relative to the 200-period SMA.
type Trend string

const (
	TrendUp      Trend = "UP"
	TrendDown    Trend = "DOWN"
	TrendUnknown Trend = "UNKNOWN"
)

// BandStatus classifies price position relative to the Bollinger Bands.
type BandStatus string

const (
	BandOverbought BandStatus = "OVERBOUGHT"
	BandOversold   BandStatus = "OVERSOLD"
	BandNormal     BandStatus = "NORMAL"
)

// Snapshot is the compact technical picture of an instrument on one timeframe.
// It is computed once per conversation turn and never mutated afterwards.
type Snapshot struct {
	Ticker     string     `json:"ticker"`
	Timeframe  Timeframe  `json:"timeframe"`
	Price      float64    `json:"price"`
	RSI        float64    `json:"rsi"`
	Trend      Trend      `json:"trend"`
	BandStatus BandStatus `json:"band_status"`
	Support    float64    `json:"support"`
	Resistance float64    `json:"resistance"`
	ATR        float64    `json:"atr"`
	FetchedAt  time.Time  `json:"fetched_at"`
}

// Headline is a single news item attached to an instrument.
type Headline struct {
	Title       string    `json:"title"`
	Publisher   string    `json:"publisher"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}
