package ekf

import (
	"github.com/skelterjohn/go.matrix"
)

// nSparse is the number of stored entries of a SparseVector.
const nSparse = 4

// quatIdx are the state indices of the quaternion block.
var quatIdx = [nSparse]int{IdxQuatW, IdxQuatX, IdxQuatY, IdxQuatZ}

// SparseVector is a NumStates-long row vector with non-zero entries only at
// the fixed indices Idx. Every other index is zero and is never stored.
type SparseVector struct {
	Idx [nSparse]int
	Val [nSparse]float64
}

// newQuatSparse returns a SparseVector over the quaternion block with the
// given values for w, x, y, z.
func newQuatSparse(w, x, y, z float64) SparseVector {
	return SparseVector{Idx: quatIdx, Val: [nSparse]float64{w, x, y, z}}
}

// at returns the entry at state index i.
func (h *SparseVector) at(i int) float64 {
	for m, j := range h.Idx {
		if j == i {
			return h.Val[m]
		}
	}
	return 0
}

// dot returns h·x.
func (h *SparseVector) dot(x *State) float64 {
	var d float64
	for m, j := range h.Idx {
		d += h.Val[m] * x[j]
	}
	return d
}

// MulRow returns (h·P)[col]. Since P is symmetric it is also (P·hᵀ)[col].
func (h *SparseVector) MulRow(p *matrix.DenseMatrix, col int) float64 {
	var d float64
	for m, j := range h.Idx {
		d += h.Val[m] * p.Get(j, col)
	}
	return d
}

// Quadratic returns h·P·hᵀ.
func (h *SparseVector) Quadratic(p *matrix.DenseMatrix) float64 {
	var d float64
	for m, j := range h.Idx {
		d += h.Val[m] * h.MulRow(p, j)
	}
	return d
}
