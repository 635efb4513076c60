package bridge

import (
	"encoding/json"
)

const (
	methodInitialize       = "initialize"
	methodSymbolSelect     = "symbol_select"
	methodSymbolInfoTick   = "symbol_info_tick"
	methodCopyRatesFromPos = "copy_rates_from_pos"
)

type request struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *responseError  `json:"error,omitempty"`

	transportErr error
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type symbolParams struct {
	Symbol string `json:"symbol"`
}

type ratesParams struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Start     int    `json:"start"`
	Count     int    `json:"count"`
}

type initializeResult struct {
	Terminal string `json:"terminal"`
}

type selectResult struct {
	Selected bool `json:"selected"`
	Visible  bool `json:"visible"`
}

// tickResult mirrors the MT5 symbol_info_tick fields the service uses.
type tickResult struct {
	Time   int64   `json:"time"`
	Last   float64 `json:"last"`
	Volume int64   `json:"volume"`
}

type rateResult struct {
	Time       int64   `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	TickVolume int64   `json:"tick_volume"`
}
