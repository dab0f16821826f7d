package tracking

import (
	"fmt"
	"math"
)

// ArrivedText is shown instead of a countdown once less than a second remains.
const ArrivedText = "arrived"

// FormatRemainingTime renders seconds as "M minutes S seconds", or "S seconds" under
// a minute.
func FormatRemainingTime(seconds float64) string {
	if seconds < 1 {
		return ArrivedText
	}
	minutes := int64(math.Floor(seconds / 60))
	secs := int64(math.Floor(math.Mod(seconds, 60)))
	if minutes > 0 {
		return fmt.Sprintf("%d minutes %d seconds", minutes, secs)
	}
	return fmt.Sprintf("%d seconds", secs)
}

// FormatRemainingDistance renders meters as kilometers with one decimal, halves
// rounded up.
func FormatRemainingDistance(meters float64) string {
	if meters < 1 {
		return "0 km"
	}
	return fmt.Sprintf("%.1f km", math.Floor(meters/100+0.5)/10)
}
