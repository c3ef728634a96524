// Package stats provides small numeric helpers shared by the aggregators.
package stats

import "math"

// Round rounds v half away from zero to the given number of decimals.
// Negative precision is treated as zero.
func Round(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}

// Percentage returns part/whole*100 rounded to precision, or 0 when whole
// is not positive.
func Percentage(part, whole, precision int) float64 {
	if whole <= 0 {
		return 0
	}
	return Round(100*float64(part)/float64(whole), precision)
}
