package simulated

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/igefined/b3-pulse/internal/domain"
)

const providerName = "simulated"

// Provider produces random-walk quotes for any symbol so the service can run
// without a trading terminal.
type Provider struct {
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	connected bool
	rng       *rand.Rand
	books     map[string]*book
}

type book struct {
	open  float64
	high  float64
	low   float64
	last  float64
	ticks int64
}

func NewProvider(logger *zap.Logger, seed int64) *Provider {
	return &Provider{
		logger: logger.Named(providerName),
		now:    time.Now,
		rng:    rand.New(rand.NewSource(seed)),
		books:  make(map[string]*book),
	}
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()

	p.logger.Info("Simulated market data ready")
	return nil
}

func (p *Provider) Disconnect() error {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	return nil
}

// SelectSymbol accepts every symbol except dotted aliases, which are reported hidden.
func (p *Provider) SelectSymbol(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return domain.SymbolInfo{}, domain.ErrNotConnected
	}
	if symbol == "" {
		return domain.SymbolInfo{}, fmt.Errorf("empty symbol: %w", domain.ErrUnavailable)
	}

	return domain.SymbolInfo{Symbol: symbol, Visible: !strings.Contains(symbol, ".")}, nil
}

func (p *Provider) LatestTick(ctx context.Context, symbol string) (domain.Tick, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return domain.Tick{}, domain.ErrNotConnected
	}

	b := p.bookFor(symbol)
	// -0.5% to +0.5% per tick
	b.last *= 1 + (p.rng.Float64()-0.5)/100
	b.high = math.Max(b.high, b.last)
	b.low = math.Min(b.low, b.last)
	b.ticks++

	return domain.Tick{Price: b.last, Volume: 100 * (1 + p.rng.Int63n(50)), Time: p.now()}, nil
}

func (p *Provider) LatestDailyBar(ctx context.Context, symbol string) (domain.DailyBar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return domain.DailyBar{}, domain.ErrNotConnected
	}

	b := p.bookFor(symbol)
	return domain.DailyBar{Open: b.open, High: b.high, Low: b.low}, nil
}

// HistoricalBars returns count bars ending at the current period. The walk is
// seeded by symbol and period so repeated calls agree on shared timestamps.
func (p *Provider) HistoricalBars(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Bar, error) {
	p.mu.Lock()
	connected := p.connected
	base := p.bookFor(symbol).open
	p.mu.Unlock()

	if !connected {
		return nil, domain.ErrNotConnected
	}
	if count <= 0 {
		return nil, fmt.Errorf("no bars requested for %s: %w", symbol, domain.ErrUnavailable)
	}

	step := tf.Duration()
	end := p.now().Truncate(step)
	start := end.Add(-time.Duration(count-1) * step)

	rng := rand.New(rand.NewSource(seedFor(symbol, start.Unix())))
	bars := make([]domain.Bar, count)
	price := base
	for i := range bars {
		open := price
		closePrice := open * (1 + (rng.Float64()-0.5)/50)
		bars[i] = domain.Bar{
			Time:   start.Add(time.Duration(i) * step),
			Open:   open,
			High:   math.Max(open, closePrice) * (1 + rng.Float64()/500),
			Low:    math.Min(open, closePrice) * (1 - rng.Float64()/500),
			Close:  closePrice,
			Volume: 1000 + rng.Int63n(9000),
		}
		price = closePrice
	}

	return bars, nil
}

func (p *Provider) bookFor(symbol string) *book {
	if b, ok := p.books[symbol]; ok {
		return b
	}

	price := basePrice(symbol)
	b := &book{open: price, high: price, low: price, last: price}
	p.books[symbol] = b

	p.logger.Debug("Created simulated book", zap.String("symbol", symbol), zap.Float64("price", price))
	return b
}

// basePrice picks a plausible starting level from the symbol's shape.
func basePrice(symbol string) float64 {
	switch {
	case strings.HasPrefix(symbol, "DI1"):
		return 10 + float64(seedFor(symbol, 0)%300)/100
	case strings.HasPrefix(symbol, "WIN"), strings.Contains(symbol, "IBOV"):
		return 130000
	case strings.HasPrefix(symbol, "WDO"):
		return 5500
	default:
		return 5 + float64(seedFor(symbol, 0)%9500)/100
	}
}

func seedFor(symbol string, salt int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return int64(h.Sum64()>>1) ^ salt
}
