package analytics

import (
	"sort"

	"github.com/igefined/b3-pulse/internal/snapshot"
)

const (
	SourceReal      = "real"
	SourceSimulated = "simulated"
)

const (
	// DeadBand is compared against the already computed percent change.
	DeadBand  = 0.05
	TopMovers = 10
)

type Breadth int

const (
	Neutral Breadth = iota
	Positive
	Negative
)

// Classify puts a percent change into the dead-band buckets; ±DeadBand itself is neutral.
func Classify(changePercent float64) Breadth {
	switch {
	case changePercent > DeadBand:
		return Positive
	case changePercent < -DeadBand:
		return Negative
	default:
		return Neutral
	}
}

type Mover struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"changePercent"`
}

type Pulse struct {
	PositiveCount   int     `json:"positiveCount"`
	NegativeCount   int     `json:"negativeCount"`
	NeutralCount    int     `json:"neutralCount"`
	PositivePercent float64 `json:"positivePercent"`
	NegativePercent float64 `json:"negativePercent"`
	NeutralPercent  float64 `json:"neutralPercent"`
	Pressure        float64 `json:"pressure"`
	TopGainers      []Mover `json:"topGainers"`
	TopLosers       []Mover `json:"topLosers"`
	TotalMonitored  int     `json:"totalMonitored"`
	TotalPossible   int     `json:"totalPossible"`
	Source          string  `json:"source"`
}

func SimulatedPulse() Pulse {
	return Pulse{
		PositiveCount:   50,
		NegativeCount:   30,
		NeutralCount:    3,
		PositivePercent: 60.2,
		NegativePercent: 36.1,
		NeutralPercent:  3.6,
		Pressure:        62.1,
		TopGainers:      []Mover{{Symbol: "MGLU3", Price: 2.50, ChangePercent: 5.2}},
		TopLosers:       []Mover{{Symbol: "CVCB3", Price: 3.10, ChangePercent: -4.1}},
		TotalMonitored:  80,
		TotalPossible:   83,
		Source:          SourceSimulated,
	}
}

// ComputePulse measures market breadth over the equities present in snap.
// It falls back to the simulated payload when disconnected or without data.
func ComputePulse(snap *snapshot.Snapshot, conn snapshot.ConnectionState, equities []string) Pulse {
	if !conn.Connected || snap == nil || snap.Len() == 0 {
		return SimulatedPulse()
	}

	var p Pulse
	movers := make([]Mover, 0, len(equities))

	for _, symbol := range equities {
		q, ok := snap.Get(symbol)
		if !ok {
			continue
		}

		switch Classify(q.ChangePercent) {
		case Positive:
			p.PositiveCount++
		case Negative:
			p.NegativeCount++
		default:
			p.NeutralCount++
		}
		movers = append(movers, Mover{Symbol: symbol, Price: q.Price, ChangePercent: q.ChangePercent})
	}

	total := p.PositiveCount + p.NegativeCount + p.NeutralCount
	if total == 0 {
		return SimulatedPulse()
	}

	p.PositivePercent = percent(p.PositiveCount, total)
	p.NegativePercent = percent(p.NegativeCount, total)
	p.NeutralPercent = percent(p.NeutralCount, total)
	p.Pressure = p.PositivePercent
	p.TotalMonitored = total
	p.TotalPossible = len(equities)
	p.Source = SourceReal

	gainers := append([]Mover(nil), movers...)
	sort.SliceStable(gainers, func(i, j int) bool {
		return gainers[i].ChangePercent > gainers[j].ChangePercent
	})
	losers := append([]Mover(nil), movers...)
	sort.SliceStable(losers, func(i, j int) bool {
		return losers[i].ChangePercent < losers[j].ChangePercent
	})

	p.TopGainers = gainers[:min(TopMovers, len(gainers))]
	p.TopLosers = losers[:min(TopMovers, len(losers))]

	return p
}

func percent(n, total int) float64 {
	return float64(n) / float64(total) * 100
}
