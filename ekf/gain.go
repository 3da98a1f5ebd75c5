package ekf

import (
	"math"

	"github.com/skelterjohn/go.matrix"
)

// KalmanGain computes the innovation variance h·P·hᵀ + r and writes the
// Kalman gain P·hᵀ / variance into k, which must be at least as long as P
// has rows.
//
// If the variance is not a positive finite number, or any gain would come out
// non-finite, KalmanGain returns ok == false and k must not be used.
func KalmanGain(p *matrix.DenseMatrix, h SparseVector, r float64, k []float64) (variance float64, ok bool) {
	variance = h.Quadratic(p) + r
	if !(variance > 0) || math.IsInf(variance, 0) {
		return variance, false
	}

	n := p.Rows()
	inv := 1 / variance
	for i := 0; i < n; i++ {
		k[i] = h.MulRow(p, i) * inv
		if math.IsNaN(k[i]) || math.IsInf(k[i], 0) {
			return variance, false
		}
	}
	return variance, true
}
