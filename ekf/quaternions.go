package ekf

import (
	"math"

	"github.com/westphae/quaternion"
)

// ToQuaternion returns the quaternion rotating body frame to earth frame for
// the Tait-Bryan angles roll phi, pitch theta and yaw psi, in radians.
func ToQuaternion(phi, theta, psi float64) quaternion.Quaternion {
	cphi := math.Cos(phi / 2)
	sphi := math.Sin(phi / 2)
	ctheta := math.Cos(theta / 2)
	stheta := math.Sin(theta / 2)
	cpsi := math.Cos(psi / 2)
	spsi := math.Sin(psi / 2)

	return quaternion.Quaternion{
		W: cphi*ctheta*cpsi + sphi*stheta*spsi,
		X: sphi*ctheta*cpsi - cphi*stheta*spsi,
		Y: cphi*stheta*cpsi + sphi*ctheta*spsi,
		Z: cphi*ctheta*spsi - sphi*stheta*cpsi,
	}
}

// FromQuaternion returns the Tait-Bryan angles roll phi, pitch theta and
// yaw psi, in radians, for the unit quaternion q.
func FromQuaternion(q quaternion.Quaternion) (phi, theta, psi float64) {
	phi = math.Atan2(2*(q.W*q.X+q.Y*q.Z), 1-2*(q.X*q.X+q.Y*q.Y))
	theta = math.Asin(clamp(2*(q.W*q.Y-q.X*q.Z), -1, 1))
	psi = math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
	return
}

// rollPitchGradients returns the gradients of roll and pitch with respect to
// the quaternion components w, x, y, z.
func rollPitchGradients(q quaternion.Quaternion) (dphi, dtheta [4]float64) {
	a := 2 * (q.W*q.X + q.Y*q.Z)
	b := 1 - 2*(q.X*q.X+q.Y*q.Y)
	denom := a*a + b*b
	if denom > Small {
		da := [4]float64{2 * q.X, 2 * q.W, 2 * q.Z, 2 * q.Y}
		db := [4]float64{0, -4 * q.X, -4 * q.Y, 0}
		for i := range dphi {
			dphi[i] = (b*da[i] - a*db[i]) / denom
		}
	}

	s := 2 * (q.W*q.Y - q.X*q.Z)
	if c := 1 - s*s; c > Small {
		r := 2 / math.Sqrt(c)
		dtheta = [4]float64{q.Y * r, -q.Z * r, q.W * r, -q.X * r}
	}
	return
}

// Regularize wraps an angle in radians into (-Pi, Pi].
func Regularize(x float64) float64 {
	for x > Pi {
		x -= 2 * Pi
	}
	for x <= -Pi {
		x += 2 * Pi
	}
	return x
}

// TiltAngle returns the angle in radians between the body down axes of the
// attitudes q1 and q2, ignoring any heading difference.
func TiltAngle(q1, q2 quaternion.Quaternion) float64 {
	d1 := PredictGravity(q1, 1)
	d2 := PredictGravity(q2, 1)
	return math.Acos(clamp(d1.Dot(d2)/(d1.Norm()*d2.Norm()), -1, 1))
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
