package domain

import (
	"time"
)

// Tick is the latest trade reported for a symbol.
type Tick struct {
	Price  float64   `json:"price"`
	Volume int64     `json:"volume"`
	Time   time.Time `json:"time"`
}

// DailyBar carries the current session's open, high and low.
type DailyBar struct {
	Open float64 `json:"open"`
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Quote is the per-symbol record held in a snapshot.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	Time          time.Time `json:"time"`
}

func NewQuote(symbol string, tick Tick, daily DailyBar) Quote {
	change := tick.Price - daily.Open

	return Quote{
		Symbol:        symbol,
		Price:         tick.Price,
		Open:          daily.Open,
		High:          daily.High,
		Low:           daily.Low,
		Change:        change,
		ChangePercent: ChangePercent(tick.Price, daily.Open),
		Volume:        tick.Volume,
		Time:          tick.Time,
	}
}

// ChangePercent returns (price-open)/open*100, or 0 when open is 0.
func ChangePercent(price, open float64) float64 {
	if open == 0 {
		return 0
	}
	return (price - open) / open * 100
}
