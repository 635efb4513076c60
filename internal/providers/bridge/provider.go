package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/igefined/b3-pulse/internal/config"
	"github.com/igefined/b3-pulse/internal/domain"
)

const providerName = "mt5-bridge"

// Provider talks to an MT5 bridge process over a websocket using JSON
// request/response messages matched by id.
type Provider struct {
	config  config.ProviderConfig
	logger  *zap.Logger
	limiter *rate.Limiter
	dialer  *websocket.Dialer

	mu      sync.RWMutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan response
}

func NewProvider(cfg config.ProviderConfig, logger *zap.Logger) *Provider {
	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		burst = max(1, int(cfg.RateLimit))
	}

	return &Provider{
		config:  cfg,
		logger:  logger.Named("bridge"),
		limiter: rate.NewLimiter(limit, burst),
		dialer:  websocket.DefaultDialer,
		pending: make(map[string]chan response),
	}
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) Connect(ctx context.Context) error {
	p.logger.Info("Connecting to MT5 bridge", zap.String("url", p.config.BridgeURL))

	dialCtx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	conn, _, err := p.dialer.DialContext(dialCtx, p.config.BridgeURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to MT5 bridge: %w", err)
	}

	p.mu.Lock()
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = conn
	p.mu.Unlock()

	go p.messageHandler(conn)

	var init initializeResult
	if err := p.call(ctx, methodInitialize, nil, &init); err != nil {
		_ = p.Disconnect()
		return fmt.Errorf("failed to initialize MT5 terminal: %w", err)
	}

	p.logger.Info("Connected to MT5 bridge", zap.String("terminal", init.Terminal))
	return nil
}

func (p *Provider) Disconnect() error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	if conn == nil {
		return nil
	}

	p.logger.Info("Disconnecting from MT5 bridge")
	return conn.Close()
}

func (p *Provider) SelectSymbol(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	var res selectResult
	if err := p.call(ctx, methodSymbolSelect, symbolParams{Symbol: symbol}, &res); err != nil {
		return domain.SymbolInfo{}, err
	}
	if !res.Selected {
		return domain.SymbolInfo{}, fmt.Errorf("symbol %s not selectable: %w", symbol, domain.ErrUnavailable)
	}

	return domain.SymbolInfo{Symbol: symbol, Visible: res.Visible}, nil
}

func (p *Provider) LatestTick(ctx context.Context, symbol string) (domain.Tick, error) {
	var res tickResult
	if err := p.call(ctx, methodSymbolInfoTick, symbolParams{Symbol: symbol}, &res); err != nil {
		return domain.Tick{}, err
	}

	return domain.Tick{
		Price:  res.Last,
		Volume: res.Volume,
		Time:   time.Unix(res.Time, 0),
	}, nil
}

func (p *Provider) LatestDailyBar(ctx context.Context, symbol string) (domain.DailyBar, error) {
	bars, err := p.HistoricalBars(ctx, symbol, domain.D1, 1)
	if err != nil {
		return domain.DailyBar{}, err
	}

	last := bars[len(bars)-1]
	return domain.DailyBar{Open: last.Open, High: last.High, Low: last.Low}, nil
}

func (p *Provider) HistoricalBars(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Bar, error) {
	var rates []rateResult
	params := ratesParams{Symbol: symbol, Timeframe: string(tf), Start: 0, Count: count}
	if err := p.call(ctx, methodCopyRatesFromPos, params, &rates); err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("no %s bars for %s: %w", tf, symbol, domain.ErrUnavailable)
	}

	bars := make([]domain.Bar, len(rates))
	for i, r := range rates {
		bars[i] = domain.Bar{
			Time:   time.Unix(r.Time, 0),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.TickVolume,
		}
	}

	return bars, nil
}

// call sends one request and decodes its result into out. A null result, a
// bridge-reported error or an unanswered request is ErrUnavailable; write
// failures and a dropped socket are ErrConnectionLost.
func (p *Provider) call(ctx context.Context, method string, params any, out any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()

	if conn == nil {
		return domain.ErrNotConnected
	}

	id := uuid.NewString()
	ch := make(chan response, 1)

	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	defer p.forget(id)

	msg, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	p.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, msg)
	p.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: send %s: %v", domain.ErrConnectionLost, method, err)
	}

	timer := time.NewTimer(p.config.RequestTimeout)
	defer timer.Stop()

	var resp response
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%s timed out after %s: %w", method, p.config.RequestTimeout, domain.ErrUnavailable)
	case resp = <-ch:
	}

	if resp.transportErr != nil {
		return resp.transportErr
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %s: %w", method, resp.Error.Message, domain.ErrUnavailable)
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return fmt.Errorf("%s returned no data: %w", method, domain.ErrUnavailable)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}

	return nil
}

func (p *Provider) forget(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *Provider) messageHandler(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			p.dropConnection(conn, err)
			return
		}

		var resp response
		if err := json.Unmarshal(message, &resp); err != nil {
			p.logger.Error("Failed to unmarshal bridge message", zap.Error(err))
			continue
		}

		p.mu.RLock()
		ch, ok := p.pending[resp.ID]
		p.mu.RUnlock()

		if !ok {
			p.logger.Debug("Dropping response without pending request", zap.String("id", resp.ID))
			continue
		}

		select {
		case ch <- resp:
		default:
		}
	}
}

// dropConnection fails every pending request once the read side of conn dies.
func (p *Provider) dropConnection(conn *websocket.Conn, cause error) {
	p.mu.Lock()
	current := p.conn == conn
	if current {
		p.conn = nil
	}
	// a newer connection owns the pending requests
	if p.conn != nil {
		p.mu.Unlock()
		return
	}
	pending := p.pending
	p.pending = make(map[string]chan response)
	p.mu.Unlock()

	if current {
		p.logger.Warn("MT5 bridge connection dropped", zap.Error(cause))
	}

	lost := fmt.Errorf("%w: %v", domain.ErrConnectionLost, cause)
	for _, ch := range pending {
		select {
		case ch <- response{transportErr: lost}:
		default:
		}
	}
}
