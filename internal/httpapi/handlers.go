package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/igefined/b3-pulse/internal/analytics"
	"github.com/igefined/b3-pulse/internal/domain"
	"github.com/igefined/b3-pulse/internal/refresher"
	"github.com/igefined/b3-pulse/internal/snapshot"
	"github.com/igefined/b3-pulse/internal/universe"
)

const (
	CandleCount  = 200
	candleLayout = "2006-01-02T15:04:05"
	indexName    = "Índice Bovespa"
)

// RefreshReporter exposes the refresher's progress to the read side.
type RefreshReporter interface {
	State() refresher.State
	LastReport() *refresher.CycleReport
}

type Stock struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        int64   `json:"volume"`
}

type SymbolInfo struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        int64   `json:"volume"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Source        string  `json:"source"`
}

type Candle struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

type Handlers struct {
	engine   *analytics.Engine
	store    *snapshot.Store
	universe *universe.Universe
	provider domain.Provider
	refresh  RefreshReporter
	logger   *zap.Logger
}

func NewHandlers(
	engine *analytics.Engine,
	store *snapshot.Store,
	u *universe.Universe,
	provider domain.Provider,
	refresh RefreshReporter,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		engine:   engine,
		store:    store,
		universe: u,
		provider: provider,
		refresh:  refresh,
		logger:   logger.Named("httpapi"),
	}
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"mt5_connected": h.store.Connection().Connected,
	})
}

func (h *Handlers) IbovPulse(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Pulse())
}

func (h *Handlers) DICurve(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Curve())
}

func (h *Handlers) TradableStocks(c *gin.Context) {
	stocks := []Stock{}

	snap := h.store.Snapshot()
	if h.store.Connection().Connected && snap.Len() > 0 {
		for _, symbol := range h.universe.Equities {
			q, ok := snap.Get(symbol)
			if !ok {
				continue
			}
			stocks = append(stocks, Stock{
				Symbol:        symbol,
				Name:          symbol,
				Price:         q.Price,
				Change:        q.Change,
				ChangePercent: q.ChangePercent,
				Volume:        q.Volume,
			})
		}
	}

	c.JSON(http.StatusOK, stocks)
}

func (h *Handlers) Candlestick(c *gin.Context) {
	symbol := h.store.ResolveIndex(c.Param("symbol"), universe.IndexSymbol)
	tf := domain.ParseTimeframe(c.Param("timeframe"))

	bars, err := h.provider.HistoricalBars(c.Request.Context(), symbol, tf, CandleCount)
	if err != nil {
		h.logger.Warn("Candles unavailable",
			zap.String("symbol", symbol),
			zap.String("timeframe", string(tf)),
			zap.Error(err))
		c.JSON(http.StatusOK, []Candle{})
		return
	}

	candles := make([]Candle, len(bars))
	for i, b := range bars {
		candles[i] = Candle{
			Time:   b.Time.Local().Format(candleLayout),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}

	c.JSON(http.StatusOK, candles)
}

func (h *Handlers) SymbolInfo(c *gin.Context) {
	requested := c.Param("symbol")
	symbol := h.store.ResolveIndex(requested, universe.IndexSymbol)

	q, ok := h.store.Snapshot().Get(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Data not found"})
		return
	}

	name := requested
	if requested == universe.IndexSymbol {
		name = indexName
	}

	c.JSON(http.StatusOK, SymbolInfo{
		Symbol:        requested,
		Name:          name,
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Volume:        q.Volume,
		High:          q.High,
		Low:           q.Low,
		Source:        analytics.SourceReal,
	})
}

func (h *Handlers) Correlation(c *gin.Context) {
	report, err := h.engine.InstrumentCorrelation(c.Request.Context(), c.Param("instrument"))
	if err != nil {
		h.logger.Warn("Correlation failed", zap.String("instrument", c.Param("instrument")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handlers) WinWdoCorrelation(c *gin.Context) {
	report, err := h.engine.WinWdoCorrelation(c.Request.Context())
	if err != nil {
		h.logger.Warn("WIN/WDO correlation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handlers) RefreshReport(c *gin.Context) {
	if h.refresh == nil {
		c.JSON(http.StatusOK, gin.H{"state": refresher.StateDisconnected.String(), "report": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state":  h.refresh.State().String(),
		"report": h.refresh.LastReport(),
	})
}
