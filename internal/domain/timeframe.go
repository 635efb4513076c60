package domain

import (
	"strings"
	"time"
)

type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D1  Timeframe = "D1"
)

var timeframes = map[Timeframe]time.Duration{
	M1:  time.Minute,
	M5:  5 * time.Minute,
	M15: 15 * time.Minute,
	M30: 30 * time.Minute,
	H1:  time.Hour,
	H4:  4 * time.Hour,
	D1:  24 * time.Hour,
}

// ParseTimeframe is case-insensitive and falls back to D1 for unknown values.
func ParseTimeframe(s string) Timeframe {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := timeframes[tf]; ok {
		return tf
	}
	return D1
}

func (tf Timeframe) Duration() time.Duration {
	if d, ok := timeframes[tf]; ok {
		return d
	}
	return timeframes[D1]
}
