package analytics

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/igefined/b3-pulse/internal/domain"
)

const (
	CorrelationBars = 100

	MinOverlapGeneral = 2
	MinOverlapPairs   = 20

	biasThreshold   = 0.3
	strongThreshold = 0.5
)

const (
	SuggestionBullish = "bullish bias"
	SuggestionBearish = "bearish bias"
	SuggestionNeutral = "neutral"

	SuggestionHold       = "hold positions"
	SuggestionBuyFalling = "buy the falling one / sell the rising one"
	SuggestionBuyRising  = "buy the rising one / sell the falling one"
	SuggestionWait       = "wait, no clear signal"

	StrengthHigh   = "high"
	StrengthMedium = "medium"
	StrengthLow    = "low"
)

const (
	logicStrongNegative = "Strong negative correlation: the instruments tend to move in opposite directions."
	logicStrongPositive = "Strong positive correlation: the instruments tend to move together."
	logicWeakOrNeutral  = "Weak or neutral correlation. No clear signal."
)

type Point struct {
	Time  time.Time
	Value float64
}

// Normalize min-max scales bar closes into [0,1].
func Normalize(bars []domain.Bar) ([]Point, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("normalize: %w", domain.ErrInsufficientData)
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	lo, hi := floats.Min(closes), floats.Max(closes)
	if hi == lo {
		return nil, fmt.Errorf("normalize: %w", domain.ErrFlatSeries)
	}

	points := make([]Point, len(bars))
	for i, b := range bars {
		points[i] = Point{Time: b.Time, Value: (closes[i] - lo) / (hi - lo)}
	}
	return points, nil
}

// Aligned holds two series joined on identical timestamps, in the order of the first.
type Aligned struct {
	Times []time.Time
	A     []float64
	B     []float64
}

func (a Aligned) Len() int {
	return len(a.Times)
}

// Join keeps only timestamps present in both series.
func Join(a, b []Point) Aligned {
	index := make(map[int64]float64, len(b))
	for _, p := range b {
		index[p.Time.UnixNano()] = p.Value
	}

	var out Aligned
	for _, p := range a {
		v, ok := index[p.Time.UnixNano()]
		if !ok {
			continue
		}
		out.Times = append(out.Times, p.Time)
		out.A = append(out.A, p.Value)
		out.B = append(out.B, v)
	}
	return out
}

// Pearson returns the correlation coefficient of x and y, clamped to [-1,1].
func Pearson(x, y []float64) (float64, error) {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0, fmt.Errorf("pearson over %d points: %w", n, domain.ErrInsufficientData)
	}
	if flat(x) || flat(y) {
		return 0, fmt.Errorf("pearson: %w", domain.ErrFlatSeries)
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, fmt.Errorf("pearson: %w", domain.ErrFlatSeries)
	}
	return math.Max(-1, math.Min(1, r)), nil
}

func flat(values []float64) bool {
	return floats.Min(values) == floats.Max(values)
}

// Correlate normalizes both bar series, joins them and correlates the overlap.
func Correlate(a, b []domain.Bar, minOverlap int) (Aligned, float64, error) {
	na, err := Normalize(a)
	if err != nil {
		return Aligned{}, 0, err
	}
	nb, err := Normalize(b)
	if err != nil {
		return Aligned{}, 0, err
	}

	joined := Join(na, nb)
	if joined.Len() < max(minOverlap, 2) {
		return joined, 0, fmt.Errorf("%d overlapping points, need %d: %w",
			joined.Len(), minOverlap, domain.ErrInsufficientData)
	}

	r, err := Pearson(joined.A, joined.B)
	if err != nil {
		return joined, 0, err
	}
	return joined, r, nil
}

func GeneralSuggestion(r float64) string {
	switch {
	case r > biasThreshold:
		return SuggestionBullish
	case r < -biasThreshold:
		return SuggestionBearish
	default:
		return SuggestionNeutral
	}
}

type PairsSignal struct {
	Suggestion string
	Logic      string
	Strength   string
}

// PairsSuggestion combines the correlation of two instruments with the sign
// of their latest normalized move.
func PairsSuggestion(r, deltaA, deltaB float64) PairsSignal {
	signal := PairsSignal{Strength: SignalStrength(r)}

	switch {
	case r < -strongThreshold:
		signal.Logic = logicStrongNegative
		if deltaA > 0 && deltaB < 0 {
			signal.Suggestion = SuggestionHold
		} else {
			signal.Suggestion = SuggestionBuyFalling
		}
	case r > strongThreshold:
		signal.Logic = logicStrongPositive
		if (deltaA > 0 && deltaB < 0) || (deltaA < 0 && deltaB > 0) {
			signal.Suggestion = SuggestionBuyRising
		} else {
			signal.Suggestion = SuggestionHold
		}
	default:
		signal.Logic = logicWeakOrNeutral
		signal.Suggestion = SuggestionWait
	}

	return signal
}

func SignalStrength(r float64) string {
	switch abs := math.Abs(r); {
	case abs > 0.7:
		return StrengthHigh
	case abs > 0.4:
		return StrengthMedium
	default:
		return StrengthLow
	}
}

// LastDeltas returns the final step of each aligned series.
func LastDeltas(a Aligned) (float64, float64) {
	n := a.Len()
	if n < 2 {
		return 0, 0
	}
	return a.A[n-1] - a.A[n-2], a.B[n-1] - a.B[n-2]
}
