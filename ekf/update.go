package ekf

import (
	"github.com/skelterjohn/go.matrix"
)

// MeasurementUpdater applies a scalar measurement to the filter state and
// covariance given its Kalman gain k, observation Jacobian h and innovation.
// It reports whether the measurement was applied.
//
// Innovations are predicted minus measured, so the state correction is
// -k·innovation.
type MeasurementUpdater interface {
	Update(k []float64, h SparseVector, innovation float64) bool
}

// CovarianceUpdater is the default MeasurementUpdater. It operates in place on
// a State and a NumStates x NumStates covariance.
type CovarianceUpdater struct {
	state *State
	p     *matrix.DenseMatrix
	hp    [NumStates]float64 // h·P, reused across calls
}

// NewCovarianceUpdater returns an updater writing to s and p.
func NewCovarianceUpdater(s *State, p *matrix.DenseMatrix) *CovarianceUpdater {
	return &CovarianceUpdater{state: s, p: p}
}

// Update subtracts k·h·P from the covariance and k·innovation from the state,
// then renormalizes the quaternion.
//
// The measurement is rejected, leaving state and covariance untouched, if any
// diagonal term of k·h·P exceeds the matching covariance term: the update
// would drive a variance negative, so k and P disagree.
func (u *CovarianceUpdater) Update(k []float64, h SparseVector, innovation float64) bool {
	for j := 0; j < NumStates; j++ {
		u.hp[j] = h.MulRow(u.p, j)
	}

	for i := 0; i < NumStates; i++ {
		if u.p.Get(i, i) < k[i]*u.hp[i] {
			return false
		}
	}

	for i := 0; i < NumStates; i++ {
		for j := 0; j < NumStates; j++ {
			u.p.Set(i, j, u.p.Get(i, j)-k[i]*u.hp[j])
		}
	}
	fixCovariance(u.p)

	for i := 0; i < NumStates; i++ {
		u.state[i] -= k[i] * innovation
	}
	u.state.normalize()
	return true
}

// fixCovariance forces p symmetric and its diagonal non-negative.
func fixCovariance(p *matrix.DenseMatrix) {
	n := p.Rows()
	for i := 0; i < n; i++ {
		if p.Get(i, i) < 0 {
			p.Set(i, i, 0)
		}
		for j := i + 1; j < n; j++ {
			v := 0.5 * (p.Get(i, j) + p.Get(j, i))
			p.Set(i, j, v)
			p.Set(j, i, v)
		}
	}
}
