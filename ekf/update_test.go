package ekf

import (
	"math/rand"
	"testing"

	"github.com/skelterjohn/go.matrix"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func newTestFilter(t *testing.T, opts ...FilterOption) *Filter {
	t.Helper()
	f, err := NewFilter(DefaultConfig(), opts...)
	test.That(t, err, test.ShouldBeNil)
	return f
}

func TestCovarianceUpdaterSingleAxis(t *testing.T) {
	rng := rand.New(rand.NewSource(29))
	for n := 0; n < 20; n++ {
		for axis := AxisX; axis <= AxisZ; axis++ {
			var s State
			s.SetQuaternion(randomQuaternion(rng))
			p := randomCovariance(rng, 0.01)
			p0 := p.Copy()
			u := NewCovarianceUpdater(&s, p)

			h := GravityJacobian(axis, s.Quaternion(), G)
			var k [NumStates]float64
			_, ok := KalmanGain(p, h, 1, k[:])
			test.That(t, ok, test.ShouldBeTrue)
			test.That(t, u.Update(k[:], h, 0.3), test.ShouldBeTrue)

			test.That(t, maxAsymmetry(p), test.ShouldBeLessThan, 1e-12)
			for i := 0; i < NumStates; i++ {
				test.That(t, p.Get(i, i), test.ShouldBeLessThanOrEqualTo, p0.Get(i, i)+1e-15)
				test.That(t, p.Get(i, i), test.ShouldBeGreaterThanOrEqualTo, 0)
			}

			// A single update with R > 0 keeps the covariance positive definite
			sym := mat.NewSymDense(NumStates, nil)
			for i := 0; i < NumStates; i++ {
				for j := i; j < NumStates; j++ {
					sym.SetSym(i, j, p.Get(i, j))
				}
			}
			var eig mat.EigenSym
			test.That(t, eig.Factorize(sym, false), test.ShouldBeTrue)
			for _, v := range eig.Values(nil) {
				test.That(t, v, test.ShouldBeGreaterThan, -1e-12)
			}

			qq := s.Quaternion()
			test.That(t, qq.W*qq.W+qq.X*qq.X+qq.Y*qq.Y+qq.Z*qq.Z, test.ShouldAlmostEqual, 1, 1e-12)
		}
	}
}

func TestCovarianceUpdaterZeroInnovation(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	var s State
	s.SetQuaternion(randomQuaternion(rng))
	for i := IdxVelN; i < NumStates; i++ {
		s[i] = rng.NormFloat64()
	}
	s0 := s
	p := randomCovariance(rng, 0.01)
	u := NewCovarianceUpdater(&s, p)

	h := GravityJacobian(AxisY, s.Quaternion(), G)
	var k [NumStates]float64
	_, ok := KalmanGain(p, h, 1, k[:])
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, u.Update(k[:], h, 0), test.ShouldBeTrue)
	for i := 0; i < NumStates; i++ {
		test.That(t, s[i], test.ShouldAlmostEqual, s0[i], 1e-12)
	}
}

func TestCovarianceUpdaterRejectsInconsistentGain(t *testing.T) {
	rng := rand.New(rand.NewSource(37))
	var s State
	s.SetQuaternion(randomQuaternion(rng))
	s0 := s
	p := randomCovariance(rng, 0.01)
	p0 := p.Copy()
	u := NewCovarianceUpdater(&s, p)

	h := GravityJacobian(AxisX, s.Quaternion(), G)
	var k [NumStates]float64
	_, ok := KalmanGain(p, h, 1, k[:])
	test.That(t, ok, test.ShouldBeTrue)
	for i := range k {
		k[i] *= 1e6
	}

	test.That(t, u.Update(k[:], h, 1), test.ShouldBeFalse)
	test.That(t, s, test.ShouldResemble, s0)
	for i := 0; i < NumStates; i++ {
		for j := 0; j < NumStates; j++ {
			test.That(t, p.Get(i, j), test.ShouldEqual, p0.Get(i, j))
		}
	}
}

func TestFixCovariance(t *testing.T) {
	p := matrix.MakeDenseMatrix([]float64{
		-1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, 3, 3)
	fixCovariance(p)
	test.That(t, p.Get(0, 0), test.ShouldEqual, 0.0)
	test.That(t, p.Get(0, 1), test.ShouldEqual, 3.0)
	test.That(t, p.Get(1, 0), test.ShouldEqual, 3.0)
	test.That(t, p.Get(0, 2), test.ShouldEqual, 5.0)
	test.That(t, p.Get(2, 1), test.ShouldEqual, 7.0)
	test.That(t, p.Get(1, 1), test.ShouldEqual, 5.0)
}
