// Package metrics holds the illuminance threshold statistics behind the
// daylight credit: daylight autonomy and annual sunlight exposure.
//
// Matrices are sensors x occupied hours.
package metrics

import (
	"gonum.org/v1/gonum/mat"
)

// DaylightAutonomy returns, per sensor, the percentage of totalOccupied
// hours at which illuminance meets or exceeds threshold. Occupied hours
// missing from m (sun down) count as below threshold.
func DaylightAutonomy(m mat.Matrix, totalOccupied int, threshold float64) []float64 {
	r, c := m.Dims()
	da := make([]float64, r)
	if totalOccupied <= 0 {
		return da
	}
	for i := 0; i < r; i++ {
		n := 0
		for j := 0; j < c; j++ {
			if m.At(i, j) >= threshold {
				n++
			}
		}
		da[i] = float64(n) / float64(totalOccupied) * 100
	}
	return da
}

// AnnualSunlightExposure counts, per sensor, the hours with direct
// illuminance above directThreshold, and returns the percentage of sensors
// whose count exceeds occHours together with the counts.
func AnnualSunlightExposure(m mat.Matrix, occHours int, directThreshold float64) (float64, []float64) {
	r, c := m.Dims()
	above := make([]float64, r)
	if r == 0 {
		return 0, above
	}
	exceeding := 0
	for i := 0; i < r; i++ {
		n := 0
		for j := 0; j < c; j++ {
			if m.At(i, j) > directThreshold {
				n++
			}
		}
		above[i] = float64(n)
		if n > occHours {
			exceeding++
		}
	}
	return float64(exceeding) / float64(r) * 100, above
}

// HourlyOverlitPercentage returns, per hour, the percentage of sensors (or
// of floor area when areas is non-nil) above directThreshold.
func HourlyOverlitPercentage(m mat.Matrix, directThreshold float64, areas []float64) []float64 {
	r, c := m.Dims()
	out := make([]float64, c)
	total := float64(r)
	if areas != nil {
		total = 0
		for _, a := range areas {
			total += a
		}
	}
	if total == 0 {
		return out
	}
	for j := 0; j < c; j++ {
		var above float64
		for i := 0; i < r; i++ {
			if m.At(i, j) <= directThreshold {
				continue
			}
			if areas != nil {
				above += areas[i]
			} else {
				above++
			}
		}
		out[j] = above / total * 100
	}
	return out
}
