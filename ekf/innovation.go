package ekf

import (
	"github.com/golang/geo/r3"
	"github.com/westphae/quaternion"
)

// PredictGravity returns the specific force an accelerometer at rest would
// read, body frame: the gravity reaction (0, 0, -g) of the NED earth frame
// rotated into the body frame by q, which rotates body frame to earth frame.
func PredictGravity(q quaternion.Quaternion, g float64) r3.Vector {
	v := quaternion.Prod(quaternion.Conj(q), quaternion.Quaternion{Z: -g}, q)
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// GravityInnovation returns the predicted minus the measured specific force,
// body frame, m/s². The measurement is the average of deltaVel over dt with
// the accelerometer bias removed.
//
// q must be a unit quaternion and dt positive; neither is checked.
func GravityInnovation(q quaternion.Quaternion, deltaVel r3.Vector, dt float64,
	accelBias r3.Vector, g float64) r3.Vector {
	measured := deltaVel.Mul(1 / dt).Sub(accelBias)
	return PredictGravity(q, g).Sub(measured)
}
