package sim

import (
	"math"
	"math/rand"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/westphae/quaternion"

	"github.com/westphae/goekf/ekf"
)

const pi = math.Pi

// SensorErrors describes the errors a simulated IMU adds to the true values.
type SensorErrors struct {
	AccelNoise float64   // Gaussian stdev of the specific force, m/s²
	AccelBias  r3.Vector // Specific force bias, body frame, m/s²
	GyroNoise  float64   // Gaussian stdev of the angular rate, rad/s
	GyroBias   r3.Vector // Angular rate bias, body frame, rad/s
}

// SituationSim defines a scenario by piecewise-linear interpolation of the
// attitude between breakpoints.
//
// The vehicle is not otherwise accelerating: the accelerometer senses the
// gravity reaction plus any pull, an extra specific force along the body
// up axis, as in a coordinated turn.
type SituationSim struct {
	t               []float64 // times for situation, s
	phi, theta, psi []float64 // attitude, rad [roll R/L, pitch U/D, heading N->E->S->W]
	pull            []float64 // specific force beyond gravity along body -Z, m/s²

	errs SensorErrors
	rng  *rand.Rand
}

// WithErrors returns a copy of s whose samples carry errs, drawing noise
// from a generator seeded with seed.
func (s *SituationSim) WithErrors(errs SensorErrors, seed int64) *SituationSim {
	ss := *s
	ss.errs = errs
	ss.rng = rand.New(rand.NewSource(seed))
	return &ss
}

// BeginTime returns the time stamp when the simulation begins
func (s *SituationSim) BeginTime() float64 {
	return s.t[0]
}

// EndTime returns the time stamp when the simulation ends
func (s *SituationSim) EndTime() float64 {
	return s.t[len(s.t)-1]
}

// interpolate returns the breakpoint index and weight of the left breakpoint for t.
func (s *SituationSim) interpolate(t float64) (ix int, f float64, err error) {
	if t < s.t[0] || t > s.t[len(s.t)-1] {
		return 0, 0, ErrOutsideScenario
	}
	if t > s.t[0] {
		ix = sort.SearchFloat64s(s.t, t) - 1
	}
	if ix >= len(s.t)-1 {
		ix = len(s.t) - 2
	}
	f = (s.t[ix+1] - t) / (s.t[ix+1] - s.t[ix])
	return ix, f, nil
}

// Attitude returns the true attitude at time t.
func (s *SituationSim) Attitude(t float64) (quaternion.Quaternion, error) {
	ix, f, err := s.interpolate(t)
	if err != nil {
		return quaternion.Quaternion{}, err
	}
	return ekf.ToQuaternion(
		f*s.phi[ix]+(1-f)*s.phi[ix+1],
		f*s.theta[ix]+(1-f)*s.theta[ix+1],
		f*s.psi[ix]+(1-f)*s.psi[ix+1]), nil
}

func (s *SituationSim) pullAt(t float64) float64 {
	ix, f, err := s.interpolate(t)
	if err != nil {
		return 0
	}
	return f*s.pull[ix] + (1-f)*s.pull[ix+1]
}

// Sample synthesizes the IMU sample covering (t-dt, t].
func (s *SituationSim) Sample(t, dt float64, m *ekf.IMUSample) error {
	q0, err := s.Attitude(t - dt)
	if err != nil {
		return err
	}
	q1, err := s.Attitude(t)
	if err != nil {
		return err
	}
	qm, err := s.Attitude(t - dt/2)
	if err != nil {
		return err
	}

	// Body frame rotation taking q0 to q1
	dq := quaternion.Prod(quaternion.Conj(q0), q1)
	if dq.W < 0 {
		dq = quaternion.Quaternion{W: -dq.W, X: -dq.X, Y: -dq.Y, Z: -dq.Z}
	}
	v := r3.Vector{X: dq.X, Y: dq.Y, Z: dq.Z}
	var dAng r3.Vector
	if n := v.Norm(); n > ekf.Small {
		dAng = v.Mul(2 * math.Atan2(n, dq.W) / n)
	}

	a := ekf.PredictGravity(qm, ekf.G).Add(r3.Vector{Z: -s.pullAt(t - dt/2)})
	a = a.Add(s.errs.AccelBias)
	w := s.errs.GyroBias
	if s.rng != nil {
		a = a.Add(r3.Vector{X: s.rng.NormFloat64(), Y: s.rng.NormFloat64(), Z: s.rng.NormFloat64()}.Mul(s.errs.AccelNoise))
		w = w.Add(r3.Vector{X: s.rng.NormFloat64(), Y: s.rng.NormFloat64(), Z: s.rng.NormFloat64()}.Mul(s.errs.GyroNoise))
	}

	m.T = t
	m.DeltaAng = dAng.Add(w.Mul(dt))
	m.DeltaAngDt = dt
	m.DeltaVel = a.Mul(dt)
	m.DeltaVelDt = dt
	return nil
}

// SitLevel sits level and still, heading east
var SitLevel = &SituationSim{
	t:     []float64{0, 60},
	phi:   []float64{0, 0},
	theta: []float64{0, 0},
	psi:   []float64{pi / 2, pi / 2},
	pull:  []float64{0, 0},
}

// SitPitchUp pitches up 10° and back down, holding each attitude for a while
var SitPitchUp = &SituationSim{
	t:     []float64{0, 10, 12, 30, 32, 45},
	phi:   []float64{0, 0, 0, 0, 0, 0},
	theta: []float64{0, 0, 10 * ekf.Deg, 10 * ekf.Deg, 0, 0},
	psi:   []float64{0, 0, 0, 0, 0, 0},
	pull:  []float64{0, 0, 0, 0, 0, 0},
}

// Data to define a piecewise-linear turn, with entry and exit
var airspeed = 120 * 1852.0 / 3600                          // Nice airspeed for maneuvers, m/s
var bank = math.Atan((2 * pi * airspeed) / (ekf.G * 120)) // Bank angle for std rate turn at given airspeed
var load = ekf.G * (1/math.Cos(bank) - 1)                 // Extra pull in a level coordinated turn

// SitBankedTurnEntry rolls into a standard rate turn, holds it for a full
// circle and rolls out. During the turn the accelerometer senses more than g.
// start, initiate roll-in, end roll-in, initiate roll-out, end roll-out, end
var SitBankedTurnEntry = &SituationSim{
	t:     []float64{0, 10, 15, 135, 140, 150},
	phi:   []float64{0, 0, bank, bank, 0, 0},
	theta: []float64{0, 0, pi / 90, pi / 90, 0, 0},
	psi:   []float64{0, 0, 0, 2 * pi, 2 * pi, 2 * pi},
	pull:  []float64{0, 0, load, load, 0, 0},
}

// Scenarios lists the built-in situations by name.
var Scenarios = map[string]*SituationSim{
	"level":   SitLevel,
	"pitchup": SitPitchUp,
	"turn":    SitBankedTurnEntry,
}
