package nav

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"inertial-go/motion"
)

// EKF owns the state estimate and its covariance and propagates both through
// a motion.Model. It is model-agnostic: all dimensions come from the model's
// size queries, and the state semantics stay inside the model except for an
// optional renormalize hook applied after measurement updates.
type EKF struct {
	model motion.Model
	n     int
	np    int

	x *mat.VecDense
	P *mat.Dense
	W *mat.Dense // perturbation covariance, np x np

	// renormalize restores state invariants the linear update breaks
	// (e.g. unit quaternion norm). May be nil.
	renormalize func(*mat.VecDense)

	// initial copies kept for watchdog resets
	x0     *mat.VecDense
	p0diag []float64

	// scratch reused every cycle
	nzero *mat.VecDense
	xnew  *mat.VecDense
	Fx    *mat.Dense
	Fn    *mat.Dense
	tmpNN *mat.Dense
	tmpNP *mat.Dense
	gain  *mat.Dense
}

// NewEKF builds a filter around model with initial state x0, initial
// covariance diagonal p0diag (length model.Size()) and perturbation
// covariance diagonal wdiag (length model.SizePerturbation()).
func NewEKF(model motion.Model, x0 *mat.VecDense, p0diag, wdiag []float64, renormalize func(*mat.VecDense)) *EKF {
	n := model.Size()
	np := model.SizePerturbation()
	if x0.Len() != n || len(p0diag) != n || len(wdiag) != np {
		panic("nav: EKF dimensions disagree with model")
	}

	k := &EKF{
		model:       model,
		n:           n,
		np:          np,
		x:           mat.NewVecDense(n, nil),
		P:           mat.NewDense(n, n, nil),
		W:           mat.NewDense(np, np, nil),
		renormalize: renormalize,
		x0:          mat.NewVecDense(n, nil),
		p0diag:      append([]float64(nil), p0diag...),
		nzero:       mat.NewVecDense(np, nil),
		xnew:        mat.NewVecDense(n, nil),
		Fx:          mat.NewDense(n, n, nil),
		Fn:          mat.NewDense(n, np, nil),
		tmpNN:       mat.NewDense(n, n, nil),
		tmpNP:       mat.NewDense(n, np, nil),
		gain:        mat.NewDense(n, 3, nil),
	}
	k.x0.CopyVec(x0)
	for i, w := range wdiag {
		k.W.Set(i, i, w*w)
	}
	k.Reset()
	return k
}

// Reset restores the initial state and covariance.
func (k *EKF) Reset() {
	k.x.CopyVec(k.x0)
	k.P.Zero()
	for i, s := range k.p0diag {
		k.P.Set(i, i, s*s)
	}
}

// Model returns the motion model the filter drives.
func (k *EKF) Model() motion.Model { return k.model }

// State returns the filter's state vector. The caller must not mutate it.
func (k *EKF) State() *mat.VecDense { return k.x }

// Cov returns the state covariance. The caller must not mutate it.
func (k *EKF) Cov() *mat.Dense { return k.P }

// SetState overwrites part of the state, e.g. to seed position from the
// first absolute fix.
func (k *EKF) SetState(off int, vals []float64) {
	for i, v := range vals {
		k.x.SetVec(off+i, v)
	}
}

// Predict advances the state one step of length dt under control u and
// propagates the covariance with the model's Jacobians:
// P = Fx P Fx' + Fn W Fn'.
func (k *EKF) Predict(u *mat.VecDense, dt float64) {
	k.model.Propagate(k.x, u, k.nzero, dt, k.x, k.Fx, k.Fn)

	k.tmpNN.Mul(k.Fx, k.P)
	k.P.Mul(k.tmpNN, k.Fx.T())
	k.tmpNP.Mul(k.Fn, k.W)
	k.tmpNN.Mul(k.tmpNP, k.Fn.T())
	k.P.Add(k.P, k.tmpNN)

	k.conditionCov()
}

// UpdatePos applies a position-fix observation of the first three state
// components with isotropic noise sigma. Returns false if the innovation
// covariance could not be inverted (the update is skipped).
func (k *EKF) UpdatePos(z [3]float64, sigma float64) bool {
	// S = H P H' + R with H selecting the leading position block.
	s := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s.Set(i, j, k.P.At(i, j))
		}
		s.Set(i, i, s.At(i, i)+sigma*sigma)
	}
	var sinv mat.Dense
	if err := sinv.Inverse(s); err != nil {
		log.Printf("nav: innovation covariance not invertible: %v", err)
		return false
	}

	// K = P H' S^-1, n x 3.
	k.gain.Mul(k.P.Slice(0, k.n, 0, 3), &sinv)

	// x += K (z - H x)
	var y [3]float64
	for i := 0; i < 3; i++ {
		y[i] = z[i] - k.x.AtVec(i)
	}
	for i := 0; i < k.n; i++ {
		k.x.SetVec(i, k.x.AtVec(i)+k.gain.At(i, 0)*y[0]+k.gain.At(i, 1)*y[1]+k.gain.At(i, 2)*y[2])
	}
	if k.renormalize != nil {
		k.renormalize(k.x)
	}

	// P = (I - K H) P
	k.tmpNN.Mul(k.gain, k.P.Slice(0, 3, 0, k.n))
	k.P.Sub(k.P, k.tmpNN)
	k.conditionCov()
	return true
}

// Healthy reports whether state and covariance are still finite and the
// position variance is under the watchdog threshold.
func (k *EKF) Healthy() bool {
	for i := 0; i < k.n; i++ {
		if math.IsNaN(k.x.AtVec(i)) || math.IsInf(k.x.AtVec(i), 0) {
			return false
		}
	}
	for i := 0; i < 3; i++ {
		v := k.P.At(i, i)
		if math.IsNaN(v) || v > MaxPosVar {
			return false
		}
	}
	return true
}

// conditionCov symmetrizes and regularizes P after an update.
func (k *EKF) conditionCov() {
	for i := 0; i < k.n; i++ {
		for j := i + 1; j < k.n; j++ {
			v := 0.5 * (k.P.At(i, j) + k.P.At(j, i))
			k.P.Set(i, j, v)
			k.P.Set(j, i, v)
		}
		k.P.Set(i, i, k.P.At(i, i)+SReg)
	}
}
