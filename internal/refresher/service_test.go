package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/igefined/b3-pulse/internal/domain"
	"github.com/igefined/b3-pulse/internal/metrics"
	"github.com/igefined/b3-pulse/internal/snapshot"
	"github.com/igefined/b3-pulse/internal/testutils"
	"github.com/igefined/b3-pulse/internal/universe"
)

var fastTiming = Timing{
	Interval:   5 * time.Millisecond,
	RetryDelay: 5 * time.Millisecond,
	Backoff:    10 * time.Millisecond,
}

func testUniverse() *universe.Universe {
	return &universe.Universe{
		Equities:     []string{"PETR4", "VALE3", "ITUB4"},
		RateFutures:  []string{"DI1F28"},
		IndexFutures: []string{"WIN@"},
		IndexAliases: []string{"IBOV", "BVMF.IBOV"},
	}
}

type recordingSink struct {
	mu       sync.Mutex
	versions []uint64
}

func (s *recordingSink) Publish(_ context.Context, snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = append(s.versions, snap.Version)
	return errors.New("sink errors are logged only")
}

func newService(p *testutils.FakeProvider, store *snapshot.Store, sinks ...Sink) *Service {
	return New(p, store, testUniverse(), fastTiming, zap.NewNop(), nil, metrics.New(), sinks...)
}

func TestRunCyclePartialSnapshot(t *testing.T) {
	p := testutils.NewFakeProvider()
	p.SetQuote("PETR4", 30, 30.3)
	p.SetQuote("DI1F28", 11.5, 11.4)
	p.Rejected["VALE3"] = true
	p.Dailies["ITUB4"] = domain.DailyBar{Open: 10}
	p.Ticks["WIN@"] = domain.Tick{Price: 1}
	p.Dailies["WIN@"] = domain.DailyBar{Open: 0}

	store := snapshot.NewStore()
	sink := &recordingSink{}
	svc := newService(p, store, sink, nil)

	report, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Equal(t, report.Version, snap.Version)
	assert.Equal(t, 3, snap.Len())

	petr, ok := snap.Get("PETR4")
	require.True(t, ok)
	assert.InDelta(t, 1.0, petr.ChangePercent, 1e-9)

	win, ok := snap.Get("WIN@")
	require.True(t, ok)
	assert.Equal(t, 0.0, win.ChangePercent)

	_, ok = snap.Get("VALE3")
	assert.False(t, ok)

	vale, _ := report.Result("VALE3")
	assert.Equal(t, StatusAbsent, vale.Status)
	assert.Equal(t, ReasonSelect, vale.Reason)

	itub, _ := report.Result("ITUB4")
	assert.Equal(t, ReasonTick, itub.Reason)

	assert.Equal(t, 3, report.Count(StatusOK))
	assert.Len(t, report.Skipped(), 4) // VALE3, ITUB4, IBOV, BVMF.IBOV
	assert.Equal(t, []uint64{1}, sink.versions)
}

func TestRunCycleDropsSymbolsThatDisappear(t *testing.T) {
	p := testutils.NewFakeProvider()
	p.SetQuote("PETR4", 30, 31)
	p.SetQuote("VALE3", 60, 59)

	store := snapshot.NewStore()
	svc := newService(p, store)

	_, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.Snapshot().Len())

	p.Mu.Lock()
	delete(p.Ticks, "VALE3")
	p.Mu.Unlock()

	_, err = svc.RunCycle(context.Background())
	require.NoError(t, err)

	_, ok := store.Snapshot().Get("VALE3")
	assert.False(t, ok)
	_, ok = store.Snapshot().Get("PETR4")
	assert.True(t, ok)
}

func TestRunCycleNonFatalErrorIsRecorded(t *testing.T) {
	p := testutils.NewFakeProvider()
	p.SetQuote("PETR4", 30, 31)
	p.FailWith["VALE3"] = errors.New("malformed response")

	store := snapshot.NewStore()
	report, err := newService(p, store).RunCycle(context.Background())
	require.NoError(t, err)

	vale, _ := report.Result("VALE3")
	assert.Equal(t, StatusError, vale.Status)
	assert.Equal(t, ReasonError, vale.Reason)
	assert.Contains(t, vale.Detail, "malformed response")
	assert.Equal(t, 1, store.Snapshot().Len())
}

func TestRunCycleFailureKeepsPreviousSnapshot(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *testutils.FakeProvider)
	}{
		{
			name: "connection lost",
			setup: func(p *testutils.FakeProvider) {
				p.FailWith["ITUB4"] = fmt.Errorf("read: %w", domain.ErrConnectionLost)
			},
		},
		{
			name: "panic",
			setup: func(p *testutils.FakeProvider) {
				p.PanicOn = "ITUB4"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testutils.NewFakeProvider()
			p.SetQuote("PETR4", 30, 31)

			store := snapshot.NewStore()
			svc := newService(p, store)

			_, err := svc.RunCycle(context.Background())
			require.NoError(t, err)
			before := store.Snapshot()

			p.Mu.Lock()
			tt.setup(p)
			p.Mu.Unlock()

			_, err = svc.RunCycle(context.Background())
			require.Error(t, err)
			assert.Same(t, before, store.Snapshot())
		})
	}
}

func TestResolveIndexAlias(t *testing.T) {
	p := testutils.NewFakeProvider()
	p.Rejected["IBOV"] = true
	p.Hidden["BVMF.IBOV"] = true

	ctx := context.Background()
	assert.Equal(t, "IBOVESPA", ResolveIndexAlias(ctx, p, []string{"IBOV", "BVMF.IBOV", "IBOVESPA"}))
	assert.Equal(t, "", ResolveIndexAlias(ctx, p, []string{"IBOV", "BVMF.IBOV"}))
	assert.Equal(t, "", ResolveIndexAlias(ctx, p, nil))
}

func TestLoopRetriesConnectThenPolls(t *testing.T) {
	p := testutils.NewFakeProvider()
	p.ConnectErrs = []error{errors.New("terminal not running"), errors.New("terminal not running")}
	p.SetQuote("PETR4", 30, 31)
	p.Rejected["IBOV"] = true

	store := snapshot.NewStore()
	svc := newService(p, store)

	require.NoError(t, svc.Start())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		return store.Snapshot().Version >= 2
	}, 2*time.Second, 5*time.Millisecond)

	conn := store.Connection()
	assert.True(t, conn.Connected)
	assert.Equal(t, "BVMF.IBOV", conn.IndexAlias)
	assert.Equal(t, StatePolling, svc.State())
	assert.NotNil(t, svc.LastReport())

	p.Mu.Lock()
	assert.Equal(t, 3, p.ConnectCalls)
	p.Mu.Unlock()
}

func TestLoopReconnectsAfterCycleFailure(t *testing.T) {
	p := testutils.NewFakeProvider()
	p.SetQuote("PETR4", 30, 31)

	store := snapshot.NewStore()
	var transitions []snapshot.ConnectionState
	var mu sync.Mutex
	store.OnConnectionChange(func(st snapshot.ConnectionState) {
		mu.Lock()
		transitions = append(transitions, st)
		mu.Unlock()
	})

	svc := newService(p, store)
	require.NoError(t, svc.Start())
	defer svc.Stop()

	require.Eventually(t, func() bool { return store.Snapshot().Version >= 1 }, time.Second, time.Millisecond)

	p.Mu.Lock()
	p.FailWith["VALE3"] = domain.ErrConnectionLost
	p.Mu.Unlock()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, st := range transitions {
			if !st.Connected {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	p.Mu.Lock()
	delete(p.FailWith, "VALE3")
	p.Mu.Unlock()

	require.Eventually(t, func() bool {
		p.Mu.Lock()
		defer p.Mu.Unlock()
		return p.ConnectCalls >= 2 && store.Connection().Connected
	}, 2*time.Second, time.Millisecond)

	_, ok := store.Snapshot().Get("PETR4")
	assert.True(t, ok)
}

func TestStopMarksDisconnected(t *testing.T) {
	p := testutils.NewFakeProvider()
	store := snapshot.NewStore()
	svc := newService(p, store)

	require.NoError(t, svc.Start())
	require.Eventually(t, func() bool { return store.Connection().Connected }, time.Second, time.Millisecond)

	require.NoError(t, svc.Stop())
	assert.False(t, store.Connection().Connected)
	assert.Equal(t, StateDisconnected, svc.State())
}
