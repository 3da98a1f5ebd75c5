package sim

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/westphae/quaternion"

	"github.com/westphae/goekf/ekf"
)

// EKFLogger writes one CSV row of filter diagnostics per fusion cycle.
// Writing stops at the first error, which Close returns.
type EKFLogger struct {
	w      io.Writer
	c      io.Closer
	err    error
	Header []string
	fmt    string
	vals   []interface{}
}

var ekfLogHeader = []string{
	"T", "Gated",
	"InnovX", "InnovY", "InnovZ",
	"VarX", "VarY", "VarZ",
	"RatioX", "RatioY", "RatioZ",
	"FusedX", "FusedY", "FusedZ",
	"Roll", "Pitch", "Heading",
	"DRoll", "DPitch",
	"TiltError",
}

// NewEKFLogger creates the file fn and writes the header to it.
func NewEKFLogger(fn string) (*EKFLogger, error) {
	f, err := os.Create(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create log %s", fn)
	}
	l := newEKFLogger(f)
	l.c = f
	return l, nil
}

func newEKFLogger(w io.Writer) *EKFLogger {
	l := &EKFLogger{w: w, Header: ekfLogHeader}
	if _, err := fmt.Fprint(l.w, strings.Join(l.Header, ","), "\n"); err != nil {
		l.err = errors.Wrap(err, "cannot write log header")
	}
	s := strings.Repeat("%f,", len(l.Header))
	l.fmt = strings.Join([]string{s[:len(s)-1], "\n"}, "")
	l.vals = make([]interface{}, len(l.Header))
	return l
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Log writes the outcome res of the cycle at time t. truth may be nil when
// the true attitude is unknown, in which case TiltError is NaN.
func (l *EKFLogger) Log(t float64, gated bool, res *ekf.GravityFusionResult, f *ekf.Filter, truth *quaternion.Quaternion) {
	if l.err != nil {
		return
	}
	roll, pitch, heading := f.CalcRollPitchHeading()
	droll, dpitch := f.CalcRollPitchUncertainty()
	tilt := math.NaN()
	if truth != nil {
		tilt = ekf.TiltAngle(f.Quaternion(), *truth) / ekf.Deg
	}

	vals := [...]float64{
		t, b2f(gated),
		res.Innovation.X, res.Innovation.Y, res.Innovation.Z,
		res.Variance[0], res.Variance[1], res.Variance[2],
		res.TestRatio[0], res.TestRatio[1], res.TestRatio[2],
		b2f(res.Fused[0]), b2f(res.Fused[1]), b2f(res.Fused[2]),
		roll, pitch, heading,
		droll, dpitch,
		tilt,
	}
	for i, v := range vals {
		l.vals[i] = v
	}
	if _, err := fmt.Fprintf(l.w, l.fmt, l.vals...); err != nil {
		l.err = errors.Wrapf(err, "cannot write log row at %f", t)
	}
}

// Close closes the underlying file, if any, and returns the first write
// error.
func (l *EKFLogger) Close() error {
	var cerr error
	if l.c != nil {
		cerr = l.c.Close()
	}
	if l.err != nil {
		return l.err
	}
	return errors.Wrap(cerr, "cannot close log")
}
