package motion

import "gonum.org/v1/gonum/mat"

// Model is the motion-model capability the filter driver dispatches through.
// The driver never assumes the concrete variant, so alternative models
// (inertial, odometry, ...) can be substituted without changing the driver.
type Model interface {
	// Propagate advances x one step of length dt under control u and
	// perturbation n. It writes the predicted state into xnew (which may
	// alias x) and fills Fx = d(xnew)/dx and Fn = d(xnew)/dn, both evaluated
	// at the given n. Wrong-sized arguments are a programming error and
	// panic; there are no recoverable failures on this path.
	Propagate(x, u, n *mat.VecDense, dt float64, xnew *mat.VecDense, Fx, Fn *mat.Dense)

	// Size, SizeControl and SizePerturbation report the fixed dimensions so
	// the driver can size its covariance matrices without hardcoding them.
	Size() int
	SizeControl() int
	SizePerturbation() int
}

func checkVec(v *mat.VecDense, n int, name string) {
	if v.Len() != n {
		panic("motion: " + name + " has wrong length")
	}
}

func checkMat(m *mat.Dense, r, c int, name string) {
	mr, mc := m.Dims()
	if mr != r || mc != c {
		panic("motion: " + name + " has wrong shape")
	}
}

// setIdentity writes the identity into m.
func setIdentity(m *mat.Dense) {
	m.Zero()
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		m.Set(i, i, 1)
	}
}
