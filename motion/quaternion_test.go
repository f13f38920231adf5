package motion

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/westphae/quaternion"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

func randQuat(rng *rand.Rand) [4]float64 {
	q := [4]float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
	QuatNormalize(&q)
	return q
}

func quatNorm(q [4]float64) float64 {
	return math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
}

func TestQuatProdMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		a := randQuat(rng)
		b := randQuat(rng)
		got := QuatProd(a, b)
		want := quaternion.Prod(
			quaternion.Quaternion{W: a[0], X: a[1], Y: a[2], Z: a[3]},
			quaternion.Quaternion{W: b[0], X: b[1], Y: b[2], Z: b[3]},
		)
		require.InDelta(t, want.W, got[0], 1e-12)
		require.InDelta(t, want.X, got[1], 1e-12)
		require.InDelta(t, want.Y, got[2], 1e-12)
		require.InDelta(t, want.Z, got[3], 1e-12)
	}
}

func TestRotVecMatchesConjugation(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	for i := 0; i < 100; i++ {
		q := randQuat(rng)
		a := [3]float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		got := RotVec(q, a)

		e := quaternion.Quaternion{W: q[0], X: q[1], Y: q[2], Z: q[3]}
		v := quaternion.Quaternion{X: a[0], Y: a[1], Z: a[2]}
		want := quaternion.Prod(e, v, e.Conj())

		require.InDelta(t, want.X, got[0], 1e-12)
		require.InDelta(t, want.Y, got[1], 1e-12)
		require.InDelta(t, want.Z, got[2], 1e-12)
	}
}

func TestRotVecJacFD(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 20; i++ {
		q := randQuat(rng)
		a := [3]float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		analytic := RotVecJac(q, a)

		numeric := mat.NewDense(3, 4, nil)
		fd.Jacobian(numeric, func(y, x []float64) {
			out := RotVec([4]float64{x[0], x[1], x[2], x[3]}, a)
			copy(y, out[:])
		}, q[:], &fd.JacobianSettings{Formula: fd.Central})

		for r := 0; r < 3; r++ {
			for c := 0; c < 4; c++ {
				require.InDelta(t, numeric.At(r, c), analytic[r][c], 1e-6,
					"row %d col %d", r, c)
			}
		}
	}
}

func TestIntegrateQuatZeroRate(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	q := randQuat(rng)
	qnew, dQdq, dQdw := IntegrateQuat(q, [3]float64{}, 0.01)
	require.Equal(t, q, qnew)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			require.Equal(t, want, dQdq[i][j])
		}
	}
	// At w == 0 the rate sensitivity reduces to L(q) scaled by dt/2.
	for j := 0; j < 3; j++ {
		require.InDelta(t, -q[j+1]*0.005, dQdw[0][j], 1e-15)
	}
}

func TestIntegrateQuatNormPreserved(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		q := randQuat(rng)
		w := [3]float64{rng.NormFloat64() * 5, rng.NormFloat64() * 5, rng.NormFloat64() * 5}
		dt := rng.Float64() * 0.1
		qnew, _, _ := IntegrateQuat(q, w, dt)
		require.InDelta(t, 1.0, quatNorm(qnew), 1e-12)
	}
}

func TestDeltaQuatSmallAngleContinuity(t *testing.T) {
	// The Taylor branch just below the threshold must agree with the
	// closed form just above it.
	dqTaylor, dTaylor := deltaQuat([3]float64{smallRotation * (1 - 1e-9), 0, 0}, 1.0)
	dqClosed, dClosed := deltaQuat([3]float64{smallRotation, 0, 0}, 1.0)
	for i := 0; i < 4; i++ {
		require.InDelta(t, dqClosed[i], dqTaylor[i], 1e-12)
		for j := 0; j < 3; j++ {
			require.InDelta(t, dClosed[i][j], dTaylor[i][j], 1e-9)
		}
	}

	// Zero rotation degenerates to the identity increment.
	dq0, _ := deltaQuat([3]float64{}, 0.02)
	require.Equal(t, [4]float64{1, 0, 0, 0}, dq0)
}

func TestIntegrateQuatZeroRotationLimit(t *testing.T) {
	rng := rand.New(rand.NewSource(14))
	q := randQuat(rng)
	dt := 0.01

	// Shrinking the rate toward zero must drive q_new to q without NaN or
	// jumps, and the analytic rate Jacobian must keep matching finite
	// differences across the small-angle branch.
	for _, scale := range []float64{1e-2, 1e-4, 1e-6, 1e-8, 0} {
		w := [3]float64{scale, -scale, scale / 2}
		qnew, _, dQdw := IntegrateQuat(q, w, dt)

		for i := 0; i < 4; i++ {
			require.False(t, math.IsNaN(qnew[i]))
			require.InDelta(t, q[i], qnew[i], scale*dt*2+1e-15)
		}

		numW := mat.NewDense(4, 3, nil)
		fd.Jacobian(numW, func(y, x []float64) {
			qn, _, _ := IntegrateQuat(q, [3]float64{x[0], x[1], x[2]}, dt)
			copy(y, qn[:])
		}, w[:], &fd.JacobianSettings{Formula: fd.Central})

		for i := 0; i < 4; i++ {
			for j := 0; j < 3; j++ {
				require.InDelta(t, numW.At(i, j), dQdw[i][j], 1e-6,
					"scale %g entry (%d,%d)", scale, i, j)
			}
		}
	}
}

func TestIntegrateQuatJacobiansFD(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	for i := 0; i < 20; i++ {
		q := randQuat(rng)
		w := [3]float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		dt := 0.01 + rng.Float64()*0.05

		_, dQdq, dQdw := IntegrateQuat(q, w, dt)

		numQ := mat.NewDense(4, 4, nil)
		fd.Jacobian(numQ, func(y, x []float64) {
			qn, _, _ := IntegrateQuat([4]float64{x[0], x[1], x[2], x[3]}, w, dt)
			copy(y, qn[:])
		}, q[:], &fd.JacobianSettings{Formula: fd.Central})

		numW := mat.NewDense(4, 3, nil)
		fd.Jacobian(numW, func(y, x []float64) {
			qn, _, _ := IntegrateQuat(q, [3]float64{x[0], x[1], x[2]}, dt)
			copy(y, qn[:])
		}, w[:], &fd.JacobianSettings{Formula: fd.Central})

		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				require.InDelta(t, numQ.At(r, c), dQdq[r][c], 1e-6)
			}
			for c := 0; c < 3; c++ {
				require.InDelta(t, numW.At(r, c), dQdw[r][c], 1e-6)
			}
		}
	}
}
