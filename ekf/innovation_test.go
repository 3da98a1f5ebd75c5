package ekf

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/westphae/quaternion"
	"go.viam.com/test"
)

func TestGravityInnovationAtRest(t *testing.T) {
	const dt = 0.01
	q := quaternion.Quaternion{W: 1}
	dv := r3.Vector{X: 0, Y: 0, Z: -9.80665}.Mul(dt)

	innov := GravityInnovation(q, dv, dt, r3.Vector{}, G)
	test.That(t, innov.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, innov.Y, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, innov.Z, test.ShouldAlmostEqual, 0, 1e-12)
}

func TestGravityInnovationPitch(t *testing.T) {
	const dt = 0.01
	dv := r3.Vector{Z: -G * dt}

	t.Run("nose up", func(t *testing.T) {
		innov := GravityInnovation(ToQuaternion(0, 10*Deg, 0), dv, dt, r3.Vector{}, G)
		test.That(t, innov.X, test.ShouldBeGreaterThan, 0)
		test.That(t, innov.X, test.ShouldAlmostEqual, G*math.Sin(10*Deg), 1e-9)
		test.That(t, innov.Y, test.ShouldAlmostEqual, 0, 1e-12)
		test.That(t, innov.Z, test.ShouldAlmostEqual, G*(1-math.Cos(10*Deg)), 1e-9)
	})

	t.Run("nose down", func(t *testing.T) {
		innov := GravityInnovation(ToQuaternion(0, -10*Deg, 0), dv, dt, r3.Vector{}, G)
		test.That(t, innov.X, test.ShouldBeLessThan, 0)
	})

	t.Run("right wing down", func(t *testing.T) {
		innov := GravityInnovation(ToQuaternion(10*Deg, 0, 0), dv, dt, r3.Vector{}, G)
		test.That(t, innov.X, test.ShouldAlmostEqual, 0, 1e-12)
		test.That(t, innov.Y, test.ShouldAlmostEqual, -G*math.Sin(10*Deg), 1e-9)
	})
}

func TestGravityInnovationRemovesBias(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	bias := r3.Vector{X: 0.2, Y: -0.1, Z: 0.05}
	for n := 0; n < 20; n++ {
		q := randomQuaternion(rng)
		m := restSample(q, 0.004, bias)
		innov := GravityInnovation(q, m.DeltaVel, m.DeltaVelDt, bias, G)
		test.That(t, innov.Norm(), test.ShouldAlmostEqual, 0, 1e-9)
	}
}

func TestPredictGravityMatchesRotationMatrix(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 100; n++ {
		q := randomQuaternion(rng)
		q0, q1, q2, q3 := q.W, q.X, q.Y, q.Z
		want := r3.Vector{
			X: -G * 2 * (q1*q3 - q0*q2),
			Y: -G * 2 * (q2*q3 + q0*q1),
			Z: -G * (q0*q0 - q1*q1 - q2*q2 + q3*q3),
		}
		got := PredictGravity(q, G)
		test.That(t, got.X, test.ShouldAlmostEqual, want.X, 1e-9)
		test.That(t, got.Y, test.ShouldAlmostEqual, want.Y, 1e-9)
		test.That(t, got.Z, test.ShouldAlmostEqual, want.Z, 1e-9)
		test.That(t, got.Norm(), test.ShouldAlmostEqual, G, 1e-9)
	}
}

func TestAccelConsistent(t *testing.T) {
	level := restSample(quaternion.Quaternion{W: 1}, 0.01, r3.Vector{})
	test.That(t, AccelConsistent(level, G, 0.1), test.ShouldBeTrue)

	pulling := level
	pulling.DeltaVel = level.DeltaVel.Mul(1.5)
	test.That(t, AccelConsistent(pulling, G, 0.1), test.ShouldBeFalse)
	test.That(t, AccelConsistent(pulling, G, 0.6), test.ShouldBeTrue)

	noDt := level
	noDt.DeltaVelDt = 0
	test.That(t, AccelConsistent(noDt, G, 0.1), test.ShouldBeFalse)
}
