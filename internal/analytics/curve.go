package analytics

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/igefined/b3-pulse/internal/domain"
	"github.com/igefined/b3-pulse/internal/snapshot"
)

const maturityLayout = "2006-01-02"

type Contract struct {
	Symbol       string  `json:"symbol"`
	Rate         float64 `json:"rate"`
	MaturityDate string  `json:"maturityDate"`
}

type Curve struct {
	Contracts []Contract `json:"contracts"`
	Source    string     `json:"source"`
}

func SimulatedCurve() Curve {
	return Curve{
		Contracts: []Contract{{Symbol: "DI1F28", Rate: 11.5, MaturityDate: "2028-01-01"}},
		Source:    SourceSimulated,
	}
}

// Maturity reads the trailing two digits of a rate-future symbol as a year
// after 2000 and assumes a January 1 expiry.
func Maturity(symbol string) (time.Time, error) {
	if len(symbol) < 2 {
		return time.Time{}, fmt.Errorf("%s: %w", symbol, domain.ErrBadMaturity)
	}

	suffix := symbol[len(symbol)-2:]
	if suffix[0] < '0' || suffix[0] > '9' || suffix[1] < '0' || suffix[1] > '9' {
		return time.Time{}, fmt.Errorf("%s: %w", symbol, domain.ErrBadMaturity)
	}

	year := 2000 + int(suffix[0]-'0')*10 + int(suffix[1]-'0')
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), nil
}

// ComputeCurve lists the rate futures present in snap with their maturity.
// Symbols with an unreadable maturity are logged and left out.
func ComputeCurve(snap *snapshot.Snapshot, conn snapshot.ConnectionState, symbols []string, logger *zap.Logger) Curve {
	if !conn.Connected || snap == nil || snap.Len() == 0 {
		return SimulatedCurve()
	}

	curve := Curve{Contracts: make([]Contract, 0, len(symbols)), Source: SourceReal}
	for _, symbol := range symbols {
		q, ok := snap.Get(symbol)
		if !ok {
			continue
		}

		maturity, err := Maturity(symbol)
		if err != nil {
			logger.Error("Failed to derive DI maturity", zap.String("symbol", symbol), zap.Error(err))
			continue
		}

		curve.Contracts = append(curve.Contracts, Contract{
			Symbol:       symbol,
			Rate:         q.Price,
			MaturityDate: maturity.Format(maturityLayout),
		})
	}

	return curve
}
