package sim

import (
	"math"

	"github.com/pkg/errors"
	"github.com/skelterjohn/go.matrix"
	"github.com/westphae/quaternion"

	"github.com/westphae/goekf/ekf"
)

// Propagate advances the attitude of f by the bias-corrected delta angle of m
// and grows the quaternion covariance to match. It is a minimal prediction
// step: only the attitude moves, every other state is held constant.
func Propagate(f *ekf.Filter, m ekf.IMUSample) error {
	if !(m.DeltaAngDt > 0) {
		return errors.Errorf("delta angle interval must be positive, was %v", m.DeltaAngDt)
	}
	dAng := m.DeltaAng.Sub(f.State.DelAngBias())

	var dq quaternion.Quaternion
	if a := dAng.Norm(); a > ekf.Small {
		s := math.Sin(a/2) / a
		dq = quaternion.Quaternion{W: math.Cos(a / 2), X: dAng.X * s, Y: dAng.Y * s, Z: dAng.Z * s}
	} else {
		dq = quaternion.Quaternion{W: 1, X: dAng.X / 2, Y: dAng.Y / 2, Z: dAng.Z / 2}
	}
	f.State.SetQuaternion(quaternion.Prod(f.Quaternion(), dq))

	// q⊗dq is linear in q; its matrix is the quaternion block of the state Jacobian
	jac := matrix.Eye(ekf.NumStates)
	block := [4][4]float64{
		{dq.W, -dq.X, -dq.Y, -dq.Z},
		{dq.X, dq.W, dq.Z, -dq.Y},
		{dq.Y, -dq.Z, dq.W, dq.X},
		{dq.Z, dq.Y, -dq.X, dq.W},
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			jac.Set(ekf.IdxQuatW+i, ekf.IdxQuatW+j, block[i][j])
		}
	}

	noise := make([]float64, ekf.NumStates)
	for i := ekf.IdxQuatW; i <= ekf.IdxQuatZ; i++ {
		noise[i] = f.Config().QuatProcessNoise
	}
	p := matrix.Sum(matrix.Product(jac, matrix.Product(f.Covariance(), jac.Transpose())),
		matrix.Scaled(matrix.Diagonal(noise), m.DeltaAngDt))
	return f.SetCovariance(p)
}
