package domain

import (
	"context"
)

// SymbolInfo is what the data source reports when a symbol is selected.
type SymbolInfo struct {
	Symbol  string
	Visible bool
}

// Provider is the market-data source. Symbol-level absence is reported with
// an error wrapping ErrUnavailable; transport loss wraps ErrConnectionLost or
// ErrNotConnected.
type Provider interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect() error
	SelectSymbol(ctx context.Context, symbol string) (SymbolInfo, error)
	LatestTick(ctx context.Context, symbol string) (Tick, error)
	LatestDailyBar(ctx context.Context, symbol string) (DailyBar, error)
	HistoricalBars(ctx context.Context, symbol string, tf Timeframe, count int) ([]Bar, error)
}
