package metric

import (
	"fmt"
	"math"

	clierr "github.com/ggonzalez94/lpman/internal/errors"
)

// Occupancy returns where current sits inside [min, max] as a fraction.
// Values outside the range yield fractions outside [0, 1] and are not clamped.
func Occupancy(min, max, current float64) (float64, error) {
	for _, v := range []float64{min, max, current} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, clierr.New(clierr.CodeInvalidRange, "price is not a finite number")
		}
	}
	if !(max > min) {
		return 0, clierr.New(clierr.CodeInvalidRange, fmt.Sprintf("degenerate price range [%v, %v]", min, max))
	}
	return (current - min) / (max - min), nil
}

// Percent converts a fraction to a percentage rounded to two decimals.
// Only for display; the unrounded fraction stays on the snapshot.
func Percent(fraction float64) float64 {
	return math.Round(fraction*100*100) / 100
}
