// Package sim drives an ekf.Filter with synthesized or recorded IMU data and
// compares its attitude with the truth where that is known.
package sim

import (
	"github.com/pkg/errors"
	"github.com/westphae/quaternion"

	"github.com/westphae/goekf/ekf"
)

var (
	// ErrOutsideScenario is returned when a time before the beginning or
	// after the end of a Situation is requested.
	ErrOutsideScenario = errors.New("requested time is outside of scenario")
	// ErrNoTruth is returned by Attitude when a Situation does not know the
	// true attitude, as for recordings without attitude columns.
	ErrNoTruth = errors.New("situation has no true attitude")
)

// Situation is a source of IMU samples over a time span.
type Situation interface {
	BeginTime() float64
	EndTime() float64
	// Attitude returns the true attitude at time t, rotating body frame to earth frame.
	Attitude(t float64) (quaternion.Quaternion, error)
	// Sample fills m with the IMU sample covering (t-dt, t].
	Sample(t, dt float64, m *ekf.IMUSample) error
}

// Recording is a Situation whose samples exist only at fixed time stamps.
// Run steps through those time stamps instead of a regular grid.
type Recording interface {
	Situation
	// Times returns the sample time stamps in increasing order.
	Times() []float64
}
