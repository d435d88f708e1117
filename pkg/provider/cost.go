package provider

import "math"

// ClampCost keeps a computed price finite and non-negative.
func ClampCost(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Rate returns the table price for model, or fallback when it is unknown.
func Rate(table map[string]float64, model string, fallback float64) float64 {
	if v, ok := table[model]; ok {
		return v
	}
	return fallback
}
