package ekf

import (
	"github.com/westphae/quaternion"
)

// GravityJacobian returns the sensitivity of the axis component of the
// gravity innovation to the state, linearized about q.
//
// The predicted gravity reaction is -g times the third row of the body to
// earth rotation matrix:
//
//	X: -2g(q1q3 - q0q2)
//	Y: -2g(q2q3 + q0q1)
//	Z: -g(q0² - q1² - q2² + q3²) = -g(1 - 2q1² - 2q2²) for unit q
//
// Z is written in the second form, so it has no w or z sensitivity: a yaw
// rotation does not change how much gravity projects onto the body Z axis.
func GravityJacobian(axis Axis, q quaternion.Quaternion, g float64) SparseVector {
	g2 := 2 * g
	switch axis {
	case AxisX:
		return newQuatSparse(g2*q.Y, -g2*q.Z, g2*q.W, -g2*q.X)
	case AxisY:
		return newQuatSparse(-g2*q.X, -g2*q.W, -g2*q.Z, -g2*q.Y)
	default:
		g4 := 4 * g
		return newQuatSparse(0, g4*q.X, g4*q.Y, 0)
	}
}
