package sim

import (
	"math"

	"github.com/pkg/errors"
	"github.com/westphae/quaternion"
	"go.uber.org/zap"

	"github.com/westphae/goekf/ekf"
)

// RunConfig controls a simulation run.
type RunConfig struct {
	Dt        float64 // Interval between samples, s
	Duration  float64 // Length of the run, s; 0 runs to the end of the situation
	TiltError float64 // Initial error added to the true roll and pitch, rad
	NoGating  bool    // Fuse gravity even when the specific force is not close to g
}

// Summary reports what happened during a run.
type Summary struct {
	Samples   int     // IMU samples processed
	Gated     int     // Samples not fused because the specific force was not close to g
	Fused     int     // Samples with all three axes applied
	Partial   int     // Samples with some but not all axes applied
	MaxRatio  float64 // Largest innovation test ratio seen
	TiltError float64 // Final tilt error, deg; NaN without a true attitude
}

// Run initializes f from the situation's starting attitude, offset by
// rc.TiltError, then propagates and fuses gravity for every sample. A
// Recording is replayed once per record after the first and rc.Dt is ignored;
// any other Situation is sampled every rc.Dt. l may be nil.
func Run(f *ekf.Filter, sit Situation, rc RunConfig, l *EKFLogger, logger *zap.Logger) (Summary, error) {
	sum := Summary{TiltError: math.NaN()}
	var times []float64
	if rec, ok := sit.(Recording); ok {
		times = rec.Times()
	} else if !(rc.Dt > 0) {
		return sum, errors.Errorf("sample interval must be positive, was %v", rc.Dt)
	}

	t0 := sit.BeginTime()
	tEnd := sit.EndTime()
	if rc.Duration > 0 && t0+rc.Duration < tEnd {
		tEnd = t0 + rc.Duration
	}

	q0, err := sit.Attitude(t0)
	hasTruth := true
	switch {
	case errors.Is(err, ErrNoTruth):
		hasTruth = false
		q0 = quaternion.Quaternion{W: 1}
	case err != nil:
		return sum, errors.Wrap(err, "cannot get initial attitude")
	}
	phi, theta, psi := ekf.FromQuaternion(q0)
	f.Reset(ekf.ToQuaternion(phi+rc.TiltError, theta+rc.TiltError, psi))
	logger.Info("starting run",
		zap.Float64("begin", t0), zap.Float64("end", tEnd), zap.Bool("truth", hasTruth),
		zap.Float64("tiltError", rc.TiltError/ekf.Deg))

	var (
		m     ekf.IMUSample
		truth quaternion.Quaternion
		tp    *quaternion.Quaternion
	)
	g, tol := f.Config().Gravity, f.Config().AccelTolerance
	for i := 1; ; i++ {
		t, dt := t0+float64(i)*rc.Dt, rc.Dt
		if times != nil {
			if i >= len(times) {
				break
			}
			t, dt = times[i], times[i]-times[i-1]
		}
		if t > tEnd+ekf.Small {
			break
		}
		if err := sit.Sample(t, dt, &m); err != nil {
			if errors.Is(err, ErrOutsideScenario) {
				break
			}
			return sum, errors.Wrapf(err, "cannot sample at %f", t)
		}
		sum.Samples++

		if err := Propagate(f, m); err != nil {
			logger.Warn("skipping sample", zap.Float64("t", t), zap.Error(err))
			continue
		}

		var res ekf.GravityFusionResult
		gated := !rc.NoGating && !ekf.AccelConsistent(m, g, tol)
		if gated {
			sum.Gated++
		} else {
			res = f.FuseGravity(m)
			switch {
			case res.AllFused():
				sum.Fused++
			case res.Fused[ekf.AxisX] || res.Fused[ekf.AxisY] || res.Fused[ekf.AxisZ]:
				sum.Partial++
			}
			for _, r := range res.TestRatio {
				sum.MaxRatio = math.Max(sum.MaxRatio, r)
			}
		}

		tp = nil
		if hasTruth {
			if truth, err = sit.Attitude(m.T); err == nil {
				tp = &truth
			}
		}
		if l != nil {
			l.Log(t, gated, &res, f, tp)
		}
	}

	if tp != nil {
		sum.TiltError = ekf.TiltAngle(f.Quaternion(), *tp) / ekf.Deg
	}
	logger.Info("run complete",
		zap.Int("samples", sum.Samples), zap.Int("fused", sum.Fused), zap.Int("partial", sum.Partial),
		zap.Int("gated", sum.Gated), zap.Float64("maxRatio", sum.MaxRatio), zap.Float64("tiltError", sum.TiltError))
	return sum, nil
}
