// Package ekf implements the gravity-vector measurement fusion of an
// error-state attitude/navigation Kalman filter.
//
// The accelerometer's specific force, averaged over one IMU interval, is
// compared against the gravity reaction predicted from the current attitude.
// The three components of that residual are fused one at a time as scalar
// measurements (X, then Y, then Z). All three Kalman gains are computed from
// the covariance as it was at the start of the cycle, which is exact only in
// the limit of small corrections; it saves re-linearizing between axes.
//
// Earth frame is NED: 1 is north; 2 is east; 3 is down.
// Body frame: 1 is to nose; 2 is to right wing; 3 is down.
package ekf

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/westphae/quaternion"
)

const (
	Pi    = math.Pi
	Deg   = Pi / 180
	Small = 1e-9
	G     = 9.80665 // G is the standard acceleration due to gravity, m/s²
)

// State vector layout. Order here also defines order in the covariance matrix.
const (
	IdxQuatW = iota // Quaternion rotating body frame to earth frame
	IdxQuatX
	IdxQuatY
	IdxQuatZ
	IdxVelN // Velocity, earth frame, m/s
	IdxVelE
	IdxVelD
	IdxPosN // Position, earth frame, m
	IdxPosE
	IdxPosD
	IdxDelAngBiasX // Bias of the delta angle, body frame, rad
	IdxDelAngBiasY
	IdxDelAngBiasZ
	IdxDelVelBiasX // Bias of the delta velocity, body frame, m/s
	IdxDelVelBiasY
	IdxDelVelBiasZ
	IdxMagN // Earth magnetic field, earth frame, gauss
	IdxMagE
	IdxMagD
	IdxMagBiasX // Body magnetic field, body frame, gauss
	IdxMagBiasY
	IdxMagBiasZ
	IdxWindN // Wind velocity, earth frame, m/s
	IdxWindE

	NumStates
)

// State holds the filter state vector, indexed by the Idx* constants.
type State [NumStates]float64

// Quaternion returns the attitude quaternion rotating body frame to earth frame.
func (s *State) Quaternion() quaternion.Quaternion {
	return quaternion.Quaternion{W: s[IdxQuatW], X: s[IdxQuatX], Y: s[IdxQuatY], Z: s[IdxQuatZ]}
}

// SetQuaternion stores q, normalized, as the attitude.
func (s *State) SetQuaternion(q quaternion.Quaternion) {
	s[IdxQuatW], s[IdxQuatX], s[IdxQuatY], s[IdxQuatZ] = q.W, q.X, q.Y, q.Z
	s.normalize()
}

// DelVelBias returns the delta velocity bias estimate, body frame, m/s per IMU interval.
func (s *State) DelVelBias() r3.Vector {
	return r3.Vector{X: s[IdxDelVelBiasX], Y: s[IdxDelVelBiasY], Z: s[IdxDelVelBiasZ]}
}

// DelAngBias returns the delta angle bias estimate, body frame, rad per IMU interval.
func (s *State) DelAngBias() r3.Vector {
	return r3.Vector{X: s[IdxDelAngBiasX], Y: s[IdxDelAngBiasY], Z: s[IdxDelAngBiasZ]}
}

// normalize normalizes the attitude quaternion to unit magnitude.
// A zero quaternion is left alone; it has no meaningful direction.
func (s *State) normalize() {
	qq := math.Sqrt(s[IdxQuatW]*s[IdxQuatW] + s[IdxQuatX]*s[IdxQuatX] +
		s[IdxQuatY]*s[IdxQuatY] + s[IdxQuatZ]*s[IdxQuatZ])
	if qq < Small {
		return
	}
	s[IdxQuatW] /= qq
	s[IdxQuatX] /= qq
	s[IdxQuatY] /= qq
	s[IdxQuatZ] /= qq
}

// Axis identifies one of the three gravity measurement axes, body frame.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

var axisNames = [...]string{"X", "Y", "Z"}

func (a Axis) String() string {
	if a < AxisX || a > AxisZ {
		return "?"
	}
	return axisNames[a]
}

// component returns the axis component of v.
func component(v r3.Vector, a Axis) float64 {
	switch a {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	default:
		return v.Z
	}
}

// IMUSample holds one delayed IMU sample at the filter time horizon.
type IMUSample struct {
	T          float64   // Time at the end of the integration interval, s
	DeltaAng   r3.Vector // Integrated angular rate, body frame, rad
	DeltaAngDt float64   // Integration interval of DeltaAng, s
	DeltaVel   r3.Vector // Integrated specific force, body frame, m/s
	DeltaVelDt float64   // Integration interval of DeltaVel, s
}

// SpecificForce returns the average specific force over the sample, body frame, m/s².
func (m *IMUSample) SpecificForce() r3.Vector {
	return m.DeltaVel.Mul(1 / m.DeltaVelDt)
}

// AccelConsistent reports whether the specific force magnitude in m is within
// a fraction tol of g. Callers use it to decide whether gravity is a usable
// proxy for "down" before fusing.
func AccelConsistent(m IMUSample, g, tol float64) bool {
	if !(m.DeltaVelDt > 0) {
		return false
	}
	a := m.SpecificForce().Norm()
	return math.Abs(a-g) <= tol*g
}
