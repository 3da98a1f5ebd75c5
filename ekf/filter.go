package ekf

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/skelterjohn/go.matrix"
	"github.com/westphae/quaternion"
	"go.uber.org/zap"
)

// InnovationDecay is the exponential decay constant for the innovation statistics.
const InnovationDecay = 1 - 1.0/50

// Filter owns the state vector and covariance of one estimator instance.
//
// A Filter is not safe for concurrent use. The host runs one estimation
// thread per Filter and calls FuseGravity at most once at a time.
type Filter struct {
	State State // State vector, indexed by the Idx* constants

	// Covariance of State, NumStates x NumStates. The updater holds the same
	// matrix, so it is only ever modified in place.
	p *matrix.DenseMatrix

	cfg     Config
	logger  *zap.Logger
	updater MeasurementUpdater

	// Per-cycle workspace, allocated once
	gains [3][NumStates]float64
	h     [3]SparseVector
	innov r3.Vector

	innovStats [3]innovationStats
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *zap.Logger) FilterOption {
	return func(f *Filter) {
		f.logger = logger
	}
}

// WithUpdater replaces the default CovarianceUpdater.
func WithUpdater(u MeasurementUpdater) FilterOption {
	return func(f *Filter) {
		f.updater = u
	}
}

// NewFilter returns a Filter with a level, north-facing attitude and the
// initial covariance from cfg.
func NewFilter(cfg Config, opts ...FilterOption) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "cannot create filter")
	}
	f := &Filter{
		p:      matrix.Zeros(NumStates, NumStates),
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	f.updater = NewCovarianceUpdater(&f.State, f.p)
	for _, opt := range opts {
		opt(f)
	}
	for i := range f.innovStats {
		f.innovStats[i] = newInnovationStats(InnovationDecay)
	}
	f.Reset(quaternion.Quaternion{W: 1})
	return f, nil
}

// Config returns the configuration the filter was created with.
func (f *Filter) Config() Config {
	return f.cfg
}

// Reset zeroes the state, sets the attitude to q and restores the initial covariance.
func (f *Filter) Reset(q quaternion.Quaternion) {
	f.State = State{}
	f.State.SetQuaternion(q)

	c := &f.cfg
	sigmas := [NumStates]float64{
		c.InitQuatSigma, c.InitQuatSigma, c.InitQuatSigma, c.InitQuatSigma,
		c.InitVelSigma, c.InitVelSigma, c.InitVelSigma,
		c.InitPosSigma, c.InitPosSigma, c.InitPosSigma,
		c.InitDelAngBiasSigma, c.InitDelAngBiasSigma, c.InitDelAngBiasSigma,
		c.InitDelVelBiasSigma, c.InitDelVelBiasSigma, c.InitDelVelBiasSigma,
		c.InitMagSigma, c.InitMagSigma, c.InitMagSigma,
		c.InitMagSigma, c.InitMagSigma, c.InitMagSigma,
		c.InitWindSigma, c.InitWindSigma,
	}
	for i := 0; i < NumStates; i++ {
		for j := 0; j < NumStates; j++ {
			f.p.Set(i, j, 0)
		}
		f.p.Set(i, i, sigmas[i]*sigmas[i])
	}
	f.innov = r3.Vector{}
}

// SetCovariance copies p into the filter covariance.
func (f *Filter) SetCovariance(p *matrix.DenseMatrix) error {
	if r, c := p.GetSize(); r != NumStates || c != NumStates {
		return errors.Errorf("covariance must be %dx%d, was %dx%d", NumStates, NumStates, r, c)
	}
	for i := 0; i < NumStates; i++ {
		for j := 0; j < NumStates; j++ {
			f.p.Set(i, j, p.Get(i, j))
		}
	}
	return nil
}

// Covariance returns the live covariance matrix. Elements may be read or set
// in place; use SetCovariance to replace it wholesale.
func (f *Filter) Covariance() *matrix.DenseMatrix {
	return f.p
}

// Quaternion returns the attitude estimate.
func (f *Filter) Quaternion() quaternion.Quaternion {
	return f.State.Quaternion()
}

// AccelBias returns the accelerometer bias estimate, body frame, m/s².
func (f *Filter) AccelBias() r3.Vector {
	return f.State.DelVelBias().Mul(1 / f.cfg.ImuDt)
}

// GravityInnovation returns the innovation of the last FuseGravity call.
func (f *Filter) GravityInnovation() r3.Vector {
	return f.innov
}

// InnovationStats returns the exponentially weighted mean and variance of
// the gravity innovations fused on axis.
func (f *Filter) InnovationStats(axis Axis) (mean, variance float64) {
	return f.innovStats[axis].mean, f.innovStats[axis].variance
}

// CalcRollPitchHeading returns the current roll, pitch and heading
// estimates, in degrees.
func (f *Filter) CalcRollPitchHeading() (roll, pitch, heading float64) {
	roll, pitch, heading = FromQuaternion(f.Quaternion())
	return roll / Deg, pitch / Deg, heading / Deg
}

// CalcRollPitchUncertainty returns the standard deviations of the roll and
// pitch estimates, in degrees, propagated from the quaternion covariance.
func (f *Filter) CalcRollPitchUncertainty() (droll, dpitch float64) {
	dphi, dtheta := rollPitchGradients(f.Quaternion())
	var vphi, vtheta float64
	for i, a := range quatIdx {
		for j, b := range quatIdx {
			pij := f.p.Get(a, b)
			vphi += dphi[i] * pij * dphi[j]
			vtheta += dtheta[i] * pij * dtheta[j]
		}
	}
	return math.Sqrt(math.Max(vphi, 0)) / Deg, math.Sqrt(math.Max(vtheta, 0)) / Deg
}
