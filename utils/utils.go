package utils

import (
	"math"
)

// --- Money ---

// RoundAmount rounds a currency amount to two decimals for display.
func RoundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}
