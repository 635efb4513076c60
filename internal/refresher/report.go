package refresher

import (
	"time"
)

type Status string

const (
	StatusOK     Status = "ok"
	StatusAbsent Status = "absent"
	StatusError  Status = "error"
)

const (
	ReasonSelect = "select"
	ReasonTick   = "tick"
	ReasonDaily  = "daily"
	ReasonError  = "error"
)

// SymbolResult is the outcome for one symbol in one cycle.
type SymbolResult struct {
	Symbol string `json:"symbol"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type CycleReport struct {
	Cycle      uint64         `json:"cycle"`
	Version    uint64         `json:"version"`
	StartedAt  time.Time      `json:"startedAt"`
	DurationMs float64        `json:"durationMs"`
	Results    []SymbolResult `json:"results"`
}

func (r *CycleReport) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

func (r *CycleReport) Skipped() []SymbolResult {
	var skipped []SymbolResult
	for _, res := range r.Results {
		if res.Status != StatusOK {
			skipped = append(skipped, res)
		}
	}
	return skipped
}

// Result looks up the outcome recorded for symbol.
func (r *CycleReport) Result(symbol string) (SymbolResult, bool) {
	for _, res := range r.Results {
		if res.Symbol == symbol {
			return res, true
		}
	}
	return SymbolResult{}, false
}
