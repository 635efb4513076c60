package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igefined/b3-pulse/internal/domain"
	"github.com/igefined/b3-pulse/internal/testutils"
)

var t0 = time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)

func ramp(n int, from, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out
}

func TestNormalize(t *testing.T) {
	points, err := Normalize(testutils.Closes(t0, 10, 15, 20))
	require.NoError(t, err)

	require.Len(t, points, 3)
	assert.Equal(t, 0.0, points[0].Value)
	assert.Equal(t, 0.5, points[1].Value)
	assert.Equal(t, 1.0, points[2].Value)
	assert.Equal(t, t0.Add(time.Minute), points[1].Time)
}

func TestNormalizeErrors(t *testing.T) {
	_, err := Normalize(nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	_, err = Normalize(testutils.Closes(t0, 5, 5, 5))
	assert.ErrorIs(t, err, domain.ErrFlatSeries)
}

func TestJoinKeepsCommonTimestamps(t *testing.T) {
	a := []Point{{Time: t0, Value: 0.1}, {Time: t0.Add(time.Minute), Value: 0.2}, {Time: t0.Add(3 * time.Minute), Value: 0.4}}
	b := []Point{{Time: t0.Add(time.Minute), Value: 0.9}, {Time: t0.Add(2 * time.Minute), Value: 0.8}, {Time: t0.Add(3 * time.Minute), Value: 0.7}}

	joined := Join(a, b)

	assert.Equal(t, []time.Time{t0.Add(time.Minute), t0.Add(3 * time.Minute)}, joined.Times)
	assert.Equal(t, []float64{0.2, 0.4}, joined.A)
	assert.Equal(t, []float64{0.9, 0.7}, joined.B)
}

func TestCorrelate(t *testing.T) {
	tests := []struct {
		name       string
		a, b       []domain.Bar
		minOverlap int
		expected   float64
		suggestion string
		err        error
	}{
		{
			name:       "identical",
			a:          testutils.Closes(t0, ramp(30, 100, 1)...),
			b:          testutils.Closes(t0, ramp(30, 100, 1)...),
			minOverlap: MinOverlapGeneral,
			expected:   1,
			suggestion: SuggestionBullish,
		},
		{
			name:       "inverse",
			a:          testutils.Closes(t0, ramp(30, 100, 1)...),
			b:          testutils.Closes(t0, ramp(30, 5000, -2)...),
			minOverlap: MinOverlapGeneral,
			expected:   -1,
			suggestion: SuggestionBearish,
		},
		{
			name:       "scaled copy",
			a:          testutils.Closes(t0, 1, 3, 2, 5, 4),
			b:          testutils.Closes(t0, 10, 30, 20, 50, 40),
			minOverlap: MinOverlapGeneral,
			expected:   1,
			suggestion: SuggestionBullish,
		},
		{
			name:       "single overlapping point",
			a:          testutils.Closes(t0, 1, 2),
			b:          testutils.Closes(t0.Add(time.Minute), 3, 4),
			minOverlap: MinOverlapGeneral,
			err:        domain.ErrInsufficientData,
		},
		{
			name:       "below pairs minimum",
			a:          testutils.Closes(t0, ramp(19, 1, 1)...),
			b:          testutils.Closes(t0, ramp(19, 1, 1)...),
			minOverlap: MinOverlapPairs,
			err:        domain.ErrInsufficientData,
		},
		{
			name:       "flat series",
			a:          testutils.Closes(t0, 1, 2, 3),
			b:          testutils.Closes(t0, 7, 7, 7),
			minOverlap: MinOverlapGeneral,
			err:        domain.ErrFlatSeries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, r, err := Correlate(tt.a, tt.b, tt.minOverlap)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, r, 1e-9)
			assert.Equal(t, tt.suggestion, GeneralSuggestion(r))
		})
	}
}

func TestPearsonZeroVarianceAfterJoin(t *testing.T) {
	// each series has range on its own, but not on the shared timestamps
	a := testutils.Closes(t0, 1, 1, 1, 9)
	b := testutils.Closes(t0, 2, 3, 4)

	_, _, err := Correlate(a, b, MinOverlapGeneral)
	assert.ErrorIs(t, err, domain.ErrFlatSeries)
}

func TestPearson(t *testing.T) {
	tests := []struct {
		name     string
		x, y     []float64
		expected float64
		err      error
	}{
		{name: "partial", x: []float64{1, 2, 3, 4, 5}, y: []float64{2, 4, 5, 4, 5}, expected: 0.7745966692414834},
		{name: "perfect negative", x: []float64{0, 0.5, 1}, y: []float64{1, 0.5, 0}, expected: -1},
		{name: "too short", x: []float64{1}, y: []float64{2}, err: domain.ErrInsufficientData},
		{name: "length mismatch", x: []float64{1, 2, 3}, y: []float64{1, 2}, err: domain.ErrInsufficientData},
		{name: "flat x", x: []float64{0.1, 0.1, 0.1}, y: []float64{1, 2, 3}, err: domain.ErrFlatSeries},
		{name: "flat y", x: []float64{1, 2, 3}, y: []float64{0.3, 0.3, 0.3}, err: domain.ErrFlatSeries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Pearson(tt.x, tt.y)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, r, 1e-12)
			assert.GreaterOrEqual(t, r, -1.0)
			assert.LessOrEqual(t, r, 1.0)
		})
	}
}

func TestNormalizeStaysInUnitRange(t *testing.T) {
	points, err := Normalize(testutils.Closes(t0, 131072.35, 131210.9, 130995.15, 131440.05, 131001.7))
	require.NoError(t, err)

	for _, p := range points {
		assert.GreaterOrEqual(t, p.Value, 0.0)
		assert.LessOrEqual(t, p.Value, 1.0)
	}
	assert.Equal(t, 0.0, points[2].Value)
	assert.InDelta(t, 1.0, points[3].Value, 1e-12)
}

func TestGeneralSuggestion(t *testing.T) {
	assert.Equal(t, SuggestionBullish, GeneralSuggestion(0.31))
	assert.Equal(t, SuggestionNeutral, GeneralSuggestion(0.3))
	assert.Equal(t, SuggestionNeutral, GeneralSuggestion(-0.3))
	assert.Equal(t, SuggestionBearish, GeneralSuggestion(-0.31))
}

func TestPairsSuggestion(t *testing.T) {
	tests := []struct {
		name       string
		r          float64
		dWin, dWdo float64
		suggestion string
		strength   string
	}{
		{name: "negative, win up wdo down", r: -0.8, dWin: 0.1, dWdo: -0.1, suggestion: SuggestionHold, strength: StrengthHigh},
		{name: "negative, both up", r: -0.6, dWin: 0.1, dWdo: 0.1, suggestion: SuggestionBuyFalling, strength: StrengthMedium},
		{name: "negative, win down wdo up", r: -0.6, dWin: -0.1, dWdo: 0.1, suggestion: SuggestionBuyFalling, strength: StrengthMedium},
		{name: "positive, opposite signs", r: 0.9, dWin: -0.1, dWdo: 0.2, suggestion: SuggestionBuyRising, strength: StrengthHigh},
		{name: "positive, same sign", r: 0.6, dWin: 0.1, dWdo: 0.2, suggestion: SuggestionHold, strength: StrengthMedium},
		{name: "positive, flat step", r: 0.6, dWin: 0, dWdo: 0.2, suggestion: SuggestionHold, strength: StrengthMedium},
		{name: "weak", r: 0.5, dWin: 0.1, dWdo: -0.1, suggestion: SuggestionWait, strength: StrengthMedium},
		{name: "none", r: 0.1, suggestion: SuggestionWait, strength: StrengthLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal := PairsSuggestion(tt.r, tt.dWin, tt.dWdo)
			assert.Equal(t, tt.suggestion, signal.Suggestion)
			assert.Equal(t, tt.strength, signal.Strength)
			assert.NotEmpty(t, signal.Logic)
		})
	}
}

func TestSignalStrength(t *testing.T) {
	assert.Equal(t, StrengthHigh, SignalStrength(-0.71))
	assert.Equal(t, StrengthMedium, SignalStrength(0.7))
	assert.Equal(t, StrengthMedium, SignalStrength(-0.41))
	assert.Equal(t, StrengthLow, SignalStrength(0.4))
}
