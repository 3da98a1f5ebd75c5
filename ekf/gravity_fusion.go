package ekf

import (
	"github.com/golang/geo/r3"
	"go.uber.org/zap"
)

// GravityFusionResult reports the outcome of one FuseGravity call.
type GravityFusionResult struct {
	Innovation r3.Vector  // Predicted minus measured specific force, body frame, m/s²
	Variance   [3]float64 // Innovation variance per axis
	TestRatio  [3]float64 // Innovation² / variance per axis, 0 where the gain failed
	GainOK     [3]bool    // Whether a finite gain could be computed
	Fused      [3]bool    // Whether the MeasurementUpdater accepted the axis
}

// AllFused reports whether all three axes were applied.
func (r *GravityFusionResult) AllFused() bool {
	return r.Fused[AxisX] && r.Fused[AxisY] && r.Fused[AxisZ]
}

// FuseGravity fuses the gravity direction observed by the accelerometer in
// m, one scalar measurement per body axis in the order X, Y, Z.
//
// The innovation and all three gains are computed before anything is
// applied, so every axis is linearized about the same state and uses the
// same covariance. An axis whose gain is degenerate is skipped and an axis the
// updater rejects is only recorded; neither stops the remaining axes, and
// axes already applied are kept.
//
// Deciding whether gravity is a valid proxy for "down" (e.g. with
// AccelConsistent) is up to the caller. FuseGravity does not allocate.
func (f *Filter) FuseGravity(m IMUSample) (res GravityFusionResult) {
	q := f.Quaternion()
	g := f.cfg.Gravity
	r := f.cfg.GravityNoise

	f.innov = GravityInnovation(q, m.DeltaVel, m.DeltaVelDt, f.AccelBias(), g)
	res.Innovation = f.innov

	for axis := AxisX; axis <= AxisZ; axis++ {
		f.h[axis] = GravityJacobian(axis, q, g)
		res.Variance[axis], res.GainOK[axis] = KalmanGain(f.p, f.h[axis], r, f.gains[axis][:])
	}

	for axis := AxisX; axis <= AxisZ; axis++ {
		innov := component(f.innov, axis)
		if !res.GainOK[axis] {
			if ce := f.logger.Check(zap.WarnLevel, "gravity gain degenerate, axis skipped"); ce != nil {
				ce.Write(zap.Stringer("axis", axis), zap.Float64("variance", res.Variance[axis]))
			}
			continue
		}
		res.TestRatio[axis] = innov * innov / res.Variance[axis]
		res.Fused[axis] = f.updater.Update(f.gains[axis][:], f.h[axis], innov)

		if res.Fused[axis] {
			f.innovStats[axis].add(innov)
		}
		if ce := f.logger.Check(zap.DebugLevel, "gravity axis"); ce != nil {
			ce.Write(zap.Stringer("axis", axis), zap.Bool("fused", res.Fused[axis]),
				zap.Float64("innovation", innov), zap.Float64("variance", res.Variance[axis]))
		}
	}
	return res
}
