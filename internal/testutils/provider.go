package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/igefined/b3-pulse/internal/domain"
)

// FakeProvider is an in-memory domain.Provider. Symbols missing from a map are unavailable.
type FakeProvider struct {
	Mu sync.Mutex

	ConnectErrs  []error // consumed one per Connect call
	ConnectCalls int
	Connected    bool

	Hidden   map[string]bool // selectable but not visible
	Rejected map[string]bool // selection fails
	Ticks    map[string]domain.Tick
	Dailies  map[string]domain.DailyBar
	Bars     map[string][]domain.Bar

	// FailWith, when set, is returned by every data call for that symbol.
	FailWith map[string]error
	// PanicOn makes LatestTick panic for that symbol.
	PanicOn string

	HistoryCalls []string
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Hidden:   map[string]bool{},
		Rejected: map[string]bool{},
		Ticks:    map[string]domain.Tick{},
		Dailies:  map[string]domain.DailyBar{},
		Bars:     map[string][]domain.Bar{},
		FailWith: map[string]error{},
	}
}

func (p *FakeProvider) Name() string {
	return "fake"
}

func (p *FakeProvider) Connect(ctx context.Context) error {
	p.Mu.Lock()
	defer p.Mu.Unlock()

	p.ConnectCalls++
	if len(p.ConnectErrs) > 0 {
		err := p.ConnectErrs[0]
		p.ConnectErrs = p.ConnectErrs[1:]
		if err != nil {
			return err
		}
	}
	p.Connected = true
	return nil
}

func (p *FakeProvider) Disconnect() error {
	p.Mu.Lock()
	p.Connected = false
	p.Mu.Unlock()
	return nil
}

func (p *FakeProvider) SelectSymbol(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	p.Mu.Lock()
	defer p.Mu.Unlock()

	if err := p.FailWith[symbol]; err != nil {
		return domain.SymbolInfo{}, err
	}
	if p.Rejected[symbol] {
		return domain.SymbolInfo{}, fmt.Errorf("select %s: %w", symbol, domain.ErrUnavailable)
	}
	return domain.SymbolInfo{Symbol: symbol, Visible: !p.Hidden[symbol]}, nil
}

func (p *FakeProvider) LatestTick(ctx context.Context, symbol string) (domain.Tick, error) {
	p.Mu.Lock()
	defer p.Mu.Unlock()

	if p.PanicOn == symbol {
		panic("fake provider panic for " + symbol)
	}
	if err := p.FailWith[symbol]; err != nil {
		return domain.Tick{}, err
	}
	tick, ok := p.Ticks[symbol]
	if !ok {
		return domain.Tick{}, fmt.Errorf("tick %s: %w", symbol, domain.ErrUnavailable)
	}
	return tick, nil
}

func (p *FakeProvider) LatestDailyBar(ctx context.Context, symbol string) (domain.DailyBar, error) {
	p.Mu.Lock()
	defer p.Mu.Unlock()

	if err := p.FailWith[symbol]; err != nil {
		return domain.DailyBar{}, err
	}
	daily, ok := p.Dailies[symbol]
	if !ok {
		return domain.DailyBar{}, fmt.Errorf("daily %s: %w", symbol, domain.ErrUnavailable)
	}
	return daily, nil
}

func (p *FakeProvider) HistoricalBars(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Bar, error) {
	p.Mu.Lock()
	defer p.Mu.Unlock()

	p.HistoryCalls = append(p.HistoryCalls, fmt.Sprintf("%s/%s/%d", symbol, tf, count))
	if err := p.FailWith[symbol]; err != nil {
		return nil, err
	}
	bars, ok := p.Bars[symbol]
	if !ok {
		return nil, fmt.Errorf("bars %s: %w", symbol, domain.ErrUnavailable)
	}
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return append([]domain.Bar(nil), bars...), nil
}

// SetQuote makes symbol fully available with the given open and last price.
func (p *FakeProvider) SetQuote(symbol string, open, price float64) {
	p.Mu.Lock()
	defer p.Mu.Unlock()

	p.Ticks[symbol] = domain.Tick{Price: price, Volume: 100, Time: time.Unix(1_700_000_000, 0)}
	p.Dailies[symbol] = domain.DailyBar{Open: open, High: max(open, price), Low: min(open, price)}
}

// Closes builds one-minute bars from closing prices starting at start.
func Closes(start time.Time, closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Time:  start.Add(time.Duration(i) * time.Minute),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}
	return bars
}
