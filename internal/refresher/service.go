package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/igefined/b3-pulse/internal/config"
	"github.com/igefined/b3-pulse/internal/domain"
	"github.com/igefined/b3-pulse/internal/metrics"
	"github.com/igefined/b3-pulse/internal/snapshot"
	"github.com/igefined/b3-pulse/internal/universe"
	"github.com/igefined/b3-pulse/pkg/logger"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StatePolling
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StatePolling:
		return "polling"
	default:
		return "disconnected"
	}
}

// Sink receives every snapshot right after it is published.
type Sink interface {
	Publish(ctx context.Context, snap *snapshot.Snapshot) error
}

// Timing holds the loop durations.
type Timing struct {
	Interval   time.Duration
	RetryDelay time.Duration
	Backoff    time.Duration
}

type Service struct {
	provider  domain.Provider
	store     *snapshot.Store
	symbols   []string
	aliases   []string
	timing    Timing
	logger    *zap.Logger
	symbolLog *logger.SymbolLog
	metrics   *metrics.Metrics
	sinks     []Sink

	state      atomic.Int32
	cycles     atomic.Uint64
	lastReport atomic.Pointer[CycleReport]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Params struct {
	fx.In

	Config    *config.Config
	Provider  domain.Provider
	Store     *snapshot.Store
	Universe  *universe.Universe
	Logger    *zap.Logger
	SymbolLog *logger.SymbolLog `optional:"true"`
	Metrics   *metrics.Metrics  `optional:"true"`
	Sinks     []Sink            `group:"snapshot_sinks"`
}

func NewService(params Params) *Service {
	return New(params.Provider, params.Store, params.Universe, Timing{
		Interval:   params.Config.Refresh.Interval,
		RetryDelay: params.Config.Refresh.RetryDelay,
		Backoff:    params.Config.Refresh.Backoff,
	}, params.Logger, params.SymbolLog, params.Metrics, params.Sinks...)
}

func New(
	provider domain.Provider,
	store *snapshot.Store,
	u *universe.Universe,
	timing Timing,
	log *zap.Logger,
	symbolLog *logger.SymbolLog,
	m *metrics.Metrics,
	sinks ...Sink,
) *Service {
	if symbolLog == nil {
		symbolLog = &logger.SymbolLog{Logger: zap.NewNop()}
	}

	var active []Sink
	for _, sink := range sinks {
		if sink != nil {
			active = append(active, sink)
		}
	}

	return &Service{
		provider:  provider,
		store:     store,
		symbols:   u.All(),
		aliases:   u.IndexAliases,
		timing:    timing,
		logger:    log.Named("refresher"),
		symbolLog: symbolLog,
		metrics:   m,
		sinks:     active,
	}
}

func (s *Service) Start() error {
	s.logger.Info("Starting refresher",
		zap.String("provider", s.provider.Name()),
		zap.Int("symbols", len(s.symbols)),
		zap.Duration("interval", s.timing.Interval))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	return nil
}

func (s *Service) Stop() error {
	s.logger.Info("Stopping refresher")

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.markDisconnected()

	return s.provider.Disconnect()
}

func (s *Service) State() State {
	return State(s.state.Load())
}

// LastReport returns the report of the last completed cycle, or nil.
func (s *Service) LastReport() *CycleReport {
	return s.lastReport.Load()
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		if err := s.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("Failed to connect to provider",
				zap.String("provider", s.provider.Name()),
				zap.Duration("retry_in", s.timing.RetryDelay),
				zap.Error(err))
			if !sleep(ctx, s.timing.RetryDelay) {
				return
			}
			continue
		}

		err := s.poll(ctx)
		if ctx.Err() != nil {
			return
		}

		s.logger.Error("Refresh cycle failed, reconnecting",
			zap.Duration("backoff", s.timing.Backoff),
			zap.Error(err))
		s.markDisconnected()
		if dErr := s.provider.Disconnect(); dErr != nil {
			s.logger.Warn("Failed to disconnect provider", zap.Error(dErr))
		}

		if !sleep(ctx, s.timing.Backoff) {
			return
		}
	}
}

func (s *Service) connect(ctx context.Context) error {
	s.state.Store(int32(StateConnecting))

	if err := s.provider.Connect(ctx); err != nil {
		s.state.Store(int32(StateDisconnected))
		return err
	}

	alias := ResolveIndexAlias(ctx, s.provider, s.aliases)
	if alias == "" {
		s.logger.Warn("No index alias resolved", zap.Strings("candidates", s.aliases))
		s.symbolLog.Warn(fmt.Sprintf("no symbol for the index (%v) was found on the platform", s.aliases))
	} else {
		s.logger.Info("Index alias in use", zap.String("symbol", alias))
	}

	s.store.SetConnection(snapshot.ConnectionState{Connected: true, IndexAlias: alias})
	if s.metrics != nil {
		s.metrics.SetConnected(true)
	}
	s.state.Store(int32(StatePolling))

	s.logger.Info("Connected to provider", zap.String("provider", s.provider.Name()))
	return nil
}

func (s *Service) markDisconnected() {
	s.state.Store(int32(StateDisconnected))
	s.store.SetDisconnected()
	if s.metrics != nil {
		s.metrics.SetConnected(false)
	}
}

func (s *Service) poll(ctx context.Context) error {
	for {
		report, err := s.RunCycle(ctx)
		if err != nil {
			if s.metrics != nil {
				s.metrics.ObserveCycle(metrics.OutcomeFailed, 0, 0)
			}
			return err
		}
		s.lastReport.Store(report)

		if !sleep(ctx, s.timing.Interval) {
			return ctx.Err()
		}
	}
}

// RunCycle rebuilds the snapshot from every symbol in the universe and
// publishes it. Symbols without data are omitted; an error is returned only
// when the cycle cannot complete, in which case the snapshot is left as is.
func (s *Service) RunCycle(ctx context.Context) (report *CycleReport, err error) {
	start := time.Now()
	report = &CycleReport{
		Cycle:     s.cycles.Add(1),
		StartedAt: start,
		Results:   make([]SymbolResult, 0, len(s.symbols)),
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during refresh cycle: %v", r)
		}
	}()

	staged := make(map[string]domain.Quote, len(s.symbols))
	for _, symbol := range s.symbols {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result, quote, err := s.refreshSymbol(ctx, symbol)
		if err != nil {
			return report, fmt.Errorf("refresh %s: %w", symbol, err)
		}
		report.Results = append(report.Results, result)

		if result.Status == StatusOK {
			staged[symbol] = quote
			continue
		}

		s.symbolLog.Warn(fmt.Sprintf("%s unavailable for %s: %s", result.Reason, symbol, result.Detail))
		if s.metrics != nil {
			s.metrics.IncSkip(result.Reason)
		}
	}

	snap := s.store.Replace(staged)
	report.Version = snap.Version
	report.DurationMs = float64(time.Since(start)) / float64(time.Millisecond)

	if s.metrics != nil {
		s.metrics.ObserveCycle(metrics.OutcomeOK, time.Since(start).Seconds(), snap.Len())
	}

	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			s.logger.Warn("Failed to publish snapshot", zap.Uint64("version", snap.Version), zap.Error(err))
		}
	}

	s.logger.Debug("Refresh cycle completed",
		zap.Uint64("cycle", report.Cycle),
		zap.Int("symbols", snap.Len()),
		zap.Int("skipped", len(report.Results)-snap.Len()))

	return report, nil
}

func (s *Service) refreshSymbol(ctx context.Context, symbol string) (SymbolResult, domain.Quote, error) {
	if _, err := s.provider.SelectSymbol(ctx, symbol); err != nil {
		if fatal(err) {
			return SymbolResult{}, domain.Quote{}, err
		}
		return skipped(symbol, ReasonSelect, err), domain.Quote{}, nil
	}

	var (
		tick     domain.Tick
		daily    domain.DailyBar
		tickErr  error
		dailyErr error
		g        errgroup.Group
	)
	g.Go(guarded(func() {
		tick, tickErr = s.provider.LatestTick(ctx, symbol)
	}))
	g.Go(guarded(func() {
		daily, dailyErr = s.provider.LatestDailyBar(ctx, symbol)
	}))
	if err := g.Wait(); err != nil {
		return SymbolResult{}, domain.Quote{}, err
	}

	for _, err := range []error{tickErr, dailyErr} {
		if err != nil && fatal(err) {
			return SymbolResult{}, domain.Quote{}, err
		}
	}

	switch {
	case tickErr != nil:
		return skipped(symbol, ReasonTick, tickErr), domain.Quote{}, nil
	case dailyErr != nil:
		return skipped(symbol, ReasonDaily, dailyErr), domain.Quote{}, nil
	}

	return SymbolResult{Symbol: symbol, Status: StatusOK}, domain.NewQuote(symbol, tick, daily), nil
}

// ResolveIndexAlias returns the first candidate the provider can select and
// reports as visible, or "" when none qualifies.
func ResolveIndexAlias(ctx context.Context, provider domain.Provider, candidates []string) string {
	for _, candidate := range candidates {
		info, err := provider.SelectSymbol(ctx, candidate)
		if err == nil && info.Visible {
			return candidate
		}
	}
	return ""
}

func skipped(symbol, reason string, err error) SymbolResult {
	if domain.IsUnavailable(err) {
		return SymbolResult{Symbol: symbol, Status: StatusAbsent, Reason: reason, Detail: err.Error()}
	}
	return SymbolResult{Symbol: symbol, Status: StatusError, Reason: ReasonError, Detail: fmt.Sprintf("%s: %v", reason, err)}
}

var errProviderPanic = errors.New("provider panicked")

// guarded turns a panic in fn into an errProviderPanic error.
func guarded(fn func()) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", errProviderPanic, r)
			}
		}()
		fn()
		return nil
	}
}

// fatal reports errors that end the polling cycle instead of one symbol.
func fatal(err error) bool {
	return errors.Is(err, errProviderPanic) ||
		errors.Is(err, domain.ErrConnectionLost) ||
		errors.Is(err, domain.ErrNotConnected) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
