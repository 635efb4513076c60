package domain

import (
	"errors"
)

var (
	ErrUnavailable    = errors.New("data unavailable")
	ErrNotConnected   = errors.New("provider not connected")
	ErrConnectionLost = errors.New("provider connection lost")

	ErrFlatSeries       = errors.New("series has no price range")
	ErrInsufficientData = errors.New("insufficient overlapping data")
	ErrBadMaturity      = errors.New("maturity suffix is not a two-digit year")
)

// IsUnavailable reports whether err only means the symbol has no data right now.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
