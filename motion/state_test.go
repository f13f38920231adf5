package motion

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestStateSplitRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := mat.NewVecDense(StateSize, nil)
	for i := 0; i < StateSize; i++ {
		x.SetVec(i, rng.NormFloat64())
	}

	var p, v, ab, wb, g [3]float64
	var q [4]float64
	SplitState(x, p[:], q[:], v[:], ab[:], wb[:], g[:])

	y := mat.NewVecDense(StateSize, nil)
	UnsplitState(y, p[:], q[:], v[:], ab[:], wb[:], g[:])

	// Bit for bit, not within tolerance.
	for i := 0; i < StateSize; i++ {
		require.Equal(t, x.AtVec(i), y.AtVec(i), "index %d", i)
	}
}

func TestStateLayout(t *testing.T) {
	require.Equal(t, 19, StateSize)
	require.Equal(t, 6, ControlSize)
	require.Equal(t, 12, PerturbationSize)

	// Blocks tile the state without gaps.
	require.Equal(t, OffP+3, OffQ)
	require.Equal(t, OffQ+4, OffV)
	require.Equal(t, OffV+3, OffAb)
	require.Equal(t, OffAb+3, OffWb)
	require.Equal(t, OffWb+3, OffG)
	require.Equal(t, OffG+3, StateSize)

	require.Equal(t, OffAm+3, OffWm)
	require.Equal(t, OffAn+3, OffWn)
	require.Equal(t, OffWn+3, OffAr)
	require.Equal(t, OffAr+3, OffWr)
	require.Equal(t, OffWr+3, PerturbationSize)
}

func TestSplitControlAndPert(t *testing.T) {
	u := mat.NewVecDense(ControlSize, []float64{1, 2, 3, 4, 5, 6})
	var am, wm [3]float64
	SplitControl(u, am[:], wm[:])
	require.Equal(t, [3]float64{1, 2, 3}, am)
	require.Equal(t, [3]float64{4, 5, 6}, wm)

	n := mat.NewVecDense(PerturbationSize, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	var an, wn, ar, wr [3]float64
	SplitPert(n, an[:], wn[:], ar[:], wr[:])
	require.Equal(t, [3]float64{1, 2, 3}, an)
	require.Equal(t, [3]float64{4, 5, 6}, wn)
	require.Equal(t, [3]float64{7, 8, 9}, ar)
	require.Equal(t, [3]float64{10, 11, 12}, wr)
}
