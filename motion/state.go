package motion

import "gonum.org/v1/gonum/mat"

// State vector layout: x = [p q v ab wb g], size 19.
// p position (world), q orientation quaternion (scalar first, body to world),
// v velocity (world), ab accelerometer bias, wb gyrometer bias, g gravity.
const (
	StateSize        = 19
	ControlSize      = 6
	PerturbationSize = 12

	OffP  = 0
	OffQ  = 3
	OffV  = 7
	OffAb = 10
	OffWb = 13
	OffG  = 16
)

// Control vector layout: u = [am wm], the raw accelerometer and gyrometer
// readings for the current step. Perturbation layout: n = [an wn ar wr],
// measurement noise on am/wm plus the bias random-walk driving noise.
const (
	OffAm = 0
	OffWm = 3

	OffAn = 0
	OffWn = 3
	OffAr = 6
	OffWr = 9
)

func copyBlock(dst []float64, x *mat.VecDense, off int) {
	for i := range dst {
		dst[i] = x.AtVec(off + i)
	}
}

func setBlock(x *mat.VecDense, off int, src []float64) {
	for i, v := range src {
		x.SetVec(off+i, v)
	}
}

// SplitState extracts the named sub-blocks of a 19-element state vector.
func SplitState(x *mat.VecDense, p, q, v, ab, wb, g []float64) {
	copyBlock(p[:3], x, OffP)
	copyBlock(q[:4], x, OffQ)
	copyBlock(v[:3], x, OffV)
	copyBlock(ab[:3], x, OffAb)
	copyBlock(wb[:3], x, OffWb)
	copyBlock(g[:3], x, OffG)
}

// UnsplitState composes the state vector back from its sub-blocks.
// UnsplitState(SplitState(x)) reproduces x bit for bit.
func UnsplitState(x *mat.VecDense, p, q, v, ab, wb, g []float64) {
	setBlock(x, OffP, p[:3])
	setBlock(x, OffQ, q[:4])
	setBlock(x, OffV, v[:3])
	setBlock(x, OffAb, ab[:3])
	setBlock(x, OffWb, wb[:3])
	setBlock(x, OffG, g[:3])
}

// SplitControl extracts the accelerometer and gyrometer readings from u.
func SplitControl(u *mat.VecDense, am, wm []float64) {
	copyBlock(am[:3], u, OffAm)
	copyBlock(wm[:3], u, OffWm)
}

// SplitPert extracts the four noise sub-blocks from the perturbation vector.
func SplitPert(n *mat.VecDense, an, wn, ar, wr []float64) {
	copyBlock(an[:3], n, OffAn)
	copyBlock(wn[:3], n, OffWn)
	copyBlock(ar[:3], n, OffAr)
	copyBlock(wr[:3], n, OffWr)
}
