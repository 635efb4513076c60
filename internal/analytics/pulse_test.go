package analytics

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igefined/b3-pulse/internal/domain"
	"github.com/igefined/b3-pulse/internal/snapshot"
)

var connected = snapshot.ConnectionState{Connected: true, IndexAlias: "IBOV"}

func snapshotOf(changes map[string]float64) *snapshot.Snapshot {
	quotes := make(map[string]domain.Quote, len(changes))
	for symbol, pct := range changes {
		quotes[symbol] = domain.Quote{Symbol: symbol, Price: 10 + pct/10, Open: 10, ChangePercent: pct}
	}
	return &snapshot.Snapshot{Version: 1, Quotes: quotes}
}

func TestClassifyDeadBand(t *testing.T) {
	tests := []struct {
		pct      float64
		expected Breadth
	}{
		{pct: 0.05, expected: Neutral},
		{pct: -0.05, expected: Neutral},
		{pct: 0, expected: Neutral},
		{pct: 0.0500001, expected: Positive},
		{pct: -0.0500001, expected: Negative},
		{pct: 3, expected: Positive},
		{pct: -3, expected: Negative},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.pct), func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.pct))
		})
	}
}

func TestComputePulseThreeEquities(t *testing.T) {
	snap := snapshotOf(map[string]float64{"PETR4": 1, "VALE3": -1, "ITUB4": 0})

	p := ComputePulse(snap, connected, []string{"PETR4", "VALE3", "ITUB4", "BBAS3"})

	assert.Equal(t, 1, p.PositiveCount)
	assert.Equal(t, 1, p.NegativeCount)
	assert.Equal(t, 1, p.NeutralCount)
	assert.Equal(t, 3, p.TotalMonitored)
	assert.Equal(t, 4, p.TotalPossible)
	assert.Equal(t, SourceReal, p.Source)
	assert.InDelta(t, 100.0/3, p.Pressure, 1e-9)

	require.NotEmpty(t, p.TopGainers)
	assert.Equal(t, "PETR4", p.TopGainers[0].Symbol)
	require.NotEmpty(t, p.TopLosers)
	assert.Equal(t, "VALE3", p.TopLosers[0].Symbol)
}

func TestComputePulseFallsBackToSimulated(t *testing.T) {
	tests := []struct {
		name string
		snap *snapshot.Snapshot
		conn snapshot.ConnectionState
	}{
		{
			name: "disconnected with empty cache",
			snap: &snapshot.Snapshot{Quotes: map[string]domain.Quote{}},
		},
		{
			name: "disconnected with retained cache",
			snap: snapshotOf(map[string]float64{"PETR4": 1}),
		},
		{
			name: "connected with empty cache",
			snap: &snapshot.Snapshot{Quotes: map[string]domain.Quote{}},
			conn: connected,
		},
		{
			name: "connected without any equity",
			snap: snapshotOf(map[string]float64{"DI1F28": 1}),
			conn: connected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputePulse(tt.snap, tt.conn, []string{"PETR4", "VALE3"})
			assert.Equal(t, SimulatedPulse(), p)
			assert.Equal(t, SourceSimulated, p.Source)
		})
	}
}

func TestComputePulseTopMovers(t *testing.T) {
	changes := map[string]float64{}
	var equities []string
	for i := 0; i < 15; i++ {
		symbol := fmt.Sprintf("EQ%02d", i)
		equities = append(equities, symbol)
		changes[symbol] = float64(i - 7)
	}
	// ties keep universe order
	changes["EQ00"] = 7

	p := ComputePulse(snapshotOf(changes), connected, equities)

	require.Len(t, p.TopGainers, TopMovers)
	require.Len(t, p.TopLosers, TopMovers)
	assert.Equal(t, "EQ00", p.TopGainers[0].Symbol)
	assert.Equal(t, "EQ14", p.TopGainers[1].Symbol)
	assert.Equal(t, "EQ01", p.TopLosers[0].Symbol)

	for i := 1; i < len(p.TopGainers); i++ {
		assert.GreaterOrEqual(t, p.TopGainers[i-1].ChangePercent, p.TopGainers[i].ChangePercent)
		assert.LessOrEqual(t, p.TopLosers[i-1].ChangePercent, p.TopLosers[i].ChangePercent)
	}
}

func TestComputePulseCountsInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	equities := make([]string, 40)
	for i := range equities {
		equities[i] = fmt.Sprintf("EQ%02d", i)
	}

	for round := 0; round < 100; round++ {
		changes := map[string]float64{}
		for _, symbol := range equities {
			if rng.Intn(3) == 0 {
				continue
			}
			changes[symbol] = (rng.Float64() - 0.5) * 0.4
		}
		if len(changes) == 0 {
			continue
		}

		p := ComputePulse(snapshotOf(changes), connected, equities)

		total := p.PositiveCount + p.NegativeCount + p.NeutralCount
		assert.Equal(t, p.TotalMonitored, total)
		assert.LessOrEqual(t, total, len(equities))
		assert.InDelta(t, 100, p.PositivePercent+p.NegativePercent+p.NeutralPercent, 1e-9)
	}
}
