package analytics

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/igefined/b3-pulse/internal/domain"
	"github.com/igefined/b3-pulse/internal/snapshot"
	"github.com/igefined/b3-pulse/internal/universe"
)

var Module = fx.Module("analytics",
	fx.Provide(NewEngine),
)

// Series is a named chart line of [unixSeconds, value] pairs.
type Series struct {
	Name string       `json:"name"`
	Data [][2]float64 `json:"data"`
}

type CorrelationReport struct {
	SeriesDI         Series  `json:"seriesDI"`
	SeriesInstrument Series  `json:"seriesInstrument"`
	Correlation      float64 `json:"correlation"`
	Suggestion       string  `json:"suggestion"`
	Source           string  `json:"source"`
}

type PairsReport struct {
	SeriesWin      Series  `json:"seriesWin"`
	SeriesWdo      Series  `json:"seriesWdo"`
	Correlation    float64 `json:"correlation"`
	Suggestion     string  `json:"suggestion"`
	Logic          string  `json:"logic"`
	SignalStrength string  `json:"signalStrength"`
	Source         string  `json:"source"`
}

// Engine derives the read-side views from the shared store and, for
// correlations, from bars fetched on demand.
type Engine struct {
	store    *snapshot.Store
	universe *universe.Universe
	provider domain.Provider
	logger   *zap.Logger
}

func NewEngine(store *snapshot.Store, u *universe.Universe, provider domain.Provider, logger *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		universe: u,
		provider: provider,
		logger:   logger.Named("analytics"),
	}
}

func (e *Engine) Pulse() Pulse {
	return ComputePulse(e.store.Snapshot(), e.store.Connection(), e.universe.Equities)
}

func (e *Engine) Curve() Curve {
	return ComputeCurve(e.store.Snapshot(), e.store.Connection(), e.universe.RateFutures, e.logger)
}

// InstrumentFuture maps the requested instrument to the futures symbol it is correlated with.
func InstrumentFuture(instrument string) string {
	if instrument == "WIN" {
		return universe.WIN
	}
	return universe.WDO
}

func (e *Engine) InstrumentCorrelation(ctx context.Context, instrument string) (*CorrelationReport, error) {
	future := InstrumentFuture(instrument)

	di, fut, err := e.fetchPair(ctx, universe.DIProxy, future)
	if err != nil {
		return nil, fmt.Errorf("could not fetch data for correlation: %w", err)
	}

	joined, r, err := Correlate(di, fut, MinOverlapGeneral)
	if err != nil {
		return nil, fmt.Errorf("not enough overlapping data: %w", err)
	}

	return &CorrelationReport{
		SeriesDI:         series(fmt.Sprintf("DI curve (%s)", universe.DIProxy), joined, joined.A),
		SeriesInstrument: series(future, joined, joined.B),
		Correlation:      r,
		Suggestion:       GeneralSuggestion(r),
		Source:           SourceReal,
	}, nil
}

func (e *Engine) WinWdoCorrelation(ctx context.Context) (*PairsReport, error) {
	win, wdo, err := e.fetchPair(ctx, universe.WIN, universe.WDO)
	if err != nil {
		return nil, fmt.Errorf("could not fetch data for %s or %s: %w", universe.WIN, universe.WDO, err)
	}

	joined, r, err := Correlate(win, wdo, MinOverlapPairs)
	if err != nil {
		return nil, fmt.Errorf("insufficient data to compute correlation: %w", err)
	}

	deltaWin, deltaWdo := LastDeltas(joined)
	signal := PairsSuggestion(r, deltaWin, deltaWdo)

	return &PairsReport{
		SeriesWin:      series(universe.WIN, joined, joined.A),
		SeriesWdo:      series(universe.WDO, joined, joined.B),
		Correlation:    r,
		Suggestion:     signal.Suggestion,
		Logic:          signal.Logic,
		SignalStrength: signal.Strength,
		Source:         SourceReal,
	}, nil
}

func (e *Engine) fetchPair(ctx context.Context, a, b string) ([]domain.Bar, []domain.Bar, error) {
	var barsA, barsB []domain.Bar

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		barsA, err = e.provider.HistoricalBars(gctx, a, domain.M1, CorrelationBars)
		return err
	})
	g.Go(func() (err error) {
		barsB, err = e.provider.HistoricalBars(gctx, b, domain.M1, CorrelationBars)
		return err
	})

	if err := g.Wait(); err != nil {
		e.logger.Warn("Correlation bars unavailable",
			zap.String("first", a), zap.String("second", b), zap.Error(err))
		return nil, nil, err
	}
	return barsA, barsB, nil
}

func series(name string, joined Aligned, values []float64) Series {
	data := make([][2]float64, len(values))
	for i, v := range values {
		data[i] = [2]float64{float64(joined.Times[i].Unix()), v}
	}
	return Series{Name: name, Data: data}
}
