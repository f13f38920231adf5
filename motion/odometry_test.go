package motion

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

func TestOdometryStraightLine(t *testing.T) {
	m := NewOdometry()
	x := mat.NewVecDense(OdoStateSize, []float64{1, 2, math.Pi / 2})
	u := mat.NewVecDense(OdoControlSize, []float64{0.5, 0})
	n := mat.NewVecDense(OdoPerturbationSize, nil)
	xnew := mat.NewVecDense(OdoStateSize, nil)
	Fx := mat.NewDense(OdoStateSize, OdoStateSize, nil)
	Fn := mat.NewDense(OdoStateSize, OdoPerturbationSize, nil)

	m.Propagate(x, u, n, 0.1, xnew, Fx, Fn)

	require.InDelta(t, 1.0, xnew.AtVec(0), 1e-12)
	require.InDelta(t, 2.5, xnew.AtVec(1), 1e-12)
	require.InDelta(t, math.Pi/2, xnew.AtVec(2), 1e-12)
}

func TestOdometryZeroDtIdentity(t *testing.T) {
	m := NewOdometry()
	x := mat.NewVecDense(OdoStateSize, []float64{3, -1, 0.7})
	u := mat.NewVecDense(OdoControlSize, []float64{0.5, 0.1})
	n := mat.NewVecDense(OdoPerturbationSize, []float64{0.01, 0.02})
	xnew := mat.NewVecDense(OdoStateSize, nil)
	Fx := mat.NewDense(OdoStateSize, OdoStateSize, nil)
	Fn := mat.NewDense(OdoStateSize, OdoPerturbationSize, nil)

	m.Propagate(x, u, n, 0, xnew, Fx, Fn)

	for i := 0; i < OdoStateSize; i++ {
		require.Equal(t, x.AtVec(i), xnew.AtVec(i))
		for j := 0; j < OdoStateSize; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			require.Equal(t, want, Fx.At(i, j))
		}
	}
}

func TestOdometryJacobiansFD(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	m := NewOdometry()
	for trial := 0; trial < 10; trial++ {
		x := mat.NewVecDense(OdoStateSize, []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()})
		u := mat.NewVecDense(OdoControlSize, []float64{rng.NormFloat64(), rng.NormFloat64() * 0.2})
		n := mat.NewVecDense(OdoPerturbationSize, []float64{rng.NormFloat64() * 0.01, rng.NormFloat64() * 0.01})
		xnew := mat.NewVecDense(OdoStateSize, nil)
		Fx := mat.NewDense(OdoStateSize, OdoStateSize, nil)
		Fn := mat.NewDense(OdoStateSize, OdoPerturbationSize, nil)
		m.Propagate(x, u, n, 0.1, xnew, Fx, Fn)

		numX := mat.NewDense(OdoStateSize, OdoStateSize, nil)
		fd.Jacobian(numX, func(y, xs []float64) {
			xv := mat.NewVecDense(OdoStateSize, xs)
			out := mat.NewVecDense(OdoStateSize, nil)
			fxs := mat.NewDense(OdoStateSize, OdoStateSize, nil)
			fns := mat.NewDense(OdoStateSize, OdoPerturbationSize, nil)
			m.Propagate(xv, u, n, 0.1, out, fxs, fns)
			copy(y, out.RawVector().Data)
		}, x.RawVector().Data, &fd.JacobianSettings{Formula: fd.Central})

		numN := mat.NewDense(OdoStateSize, OdoPerturbationSize, nil)
		fd.Jacobian(numN, func(y, ns []float64) {
			nv := mat.NewVecDense(OdoPerturbationSize, ns)
			out := mat.NewVecDense(OdoStateSize, nil)
			fxs := mat.NewDense(OdoStateSize, OdoStateSize, nil)
			fns := mat.NewDense(OdoStateSize, OdoPerturbationSize, nil)
			m.Propagate(x, u, nv, 0.1, out, fxs, fns)
			copy(y, out.RawVector().Data)
		}, n.RawVector().Data, &fd.JacobianSettings{Formula: fd.Central})

		for i := 0; i < OdoStateSize; i++ {
			for j := 0; j < OdoStateSize; j++ {
				require.InDelta(t, numX.At(i, j), Fx.At(i, j), 1e-6)
			}
			for j := 0; j < OdoPerturbationSize; j++ {
				require.InDelta(t, numN.At(i, j), Fn.At(i, j), 1e-6)
			}
		}
	}
}
