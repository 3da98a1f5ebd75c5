package ekf

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/skelterjohn/go.matrix"
	"github.com/westphae/quaternion"
	"gonum.org/v1/gonum/mat"
)

const Tolerance = 1e-6

// randomQuaternion returns a random unit quaternion.
func randomQuaternion(rng *rand.Rand) quaternion.Quaternion {
	return quaternion.Unit(quaternion.Quaternion{
		W: rng.Float64()*2 - 1,
		X: rng.Float64()*2 - 1,
		Y: rng.Float64()*2 - 1,
		Z: rng.Float64()*2 - 1,
	})
}

// randomCovariance returns a random symmetric positive definite
// NumStates x NumStates matrix with entries of order scale.
func randomCovariance(rng *rand.Rand, scale float64) *matrix.DenseMatrix {
	data := make([]float64, NumStates*NumStates)
	for i := range data {
		data[i] = rng.NormFloat64() * math.Sqrt(scale/NumStates)
	}
	a := mat.NewDense(NumStates, NumStates, data)
	var p mat.Dense
	p.Mul(a, a.T())

	out := matrix.Zeros(NumStates, NumStates)
	for i := 0; i < NumStates; i++ {
		for j := 0; j < NumStates; j++ {
			out.Set(i, j, p.At(i, j))
		}
		out.Set(i, i, out.Get(i, i)+scale*1e-3)
	}
	return out
}

// toDense converts a go.matrix matrix to gonum.
func toDense(p *matrix.DenseMatrix) *mat.Dense {
	r, c := p.GetSize()
	d := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d.Set(i, j, p.Get(i, j))
		}
	}
	return d
}

// denseRow expands a SparseVector into a 1 x NumStates gonum matrix.
func denseRow(h SparseVector) *mat.Dense {
	d := mat.NewDense(1, NumStates, nil)
	for m, j := range h.Idx {
		d.Set(0, j, d.At(0, j)+h.Val[m])
	}
	return d
}

// maxAsymmetry returns the largest |P(i,j) - P(j,i)|.
func maxAsymmetry(p *matrix.DenseMatrix) float64 {
	var d float64
	for i := 0; i < NumStates; i++ {
		for j := i + 1; j < NumStates; j++ {
			d = math.Max(d, math.Abs(p.Get(i, j)-p.Get(j, i)))
		}
	}
	return d
}

// restSample returns the IMU sample a stationary accelerometer with attitude
// q would produce over dt, with the given bias added.
func restSample(q quaternion.Quaternion, dt float64, bias r3.Vector) IMUSample {
	f := PredictGravity(q, G).Add(bias)
	return IMUSample{
		T:          dt,
		DeltaAngDt: dt,
		DeltaVel:   f.Mul(dt),
		DeltaVelDt: dt,
	}
}

// recordingUpdater records every Update call and optionally rejects some axes.
type recordingUpdater struct {
	reject map[int]bool // call number -> reject
	calls  []recordedUpdate
	mutate func()
}

type recordedUpdate struct {
	k          [NumStates]float64
	h          SparseVector
	innovation float64
}

func (u *recordingUpdater) Update(k []float64, h SparseVector, innovation float64) bool {
	var rec recordedUpdate
	copy(rec.k[:], k)
	rec.h = h
	rec.innovation = innovation
	n := len(u.calls)
	u.calls = append(u.calls, rec)
	if u.mutate != nil {
		u.mutate()
	}
	return !u.reject[n]
}
