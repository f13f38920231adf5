package motion

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Inertial is the IMU-driven motion model:
//
//	p+  = p + v*dt
//	v+  = v + R(q)*((am+an) - ab) + g
//	q+  = q * dq((wm+wn - wb)*dt)
//	ab+ = ab + ar
//	wb+ = wb + wr
//	g+  = g
//
// am, wm are the raw accelerometer/gyrometer readings in u; an, wn, ar, wr
// are the perturbation sub-blocks of n (zero at filter-evaluation time).
// Velocity and the bias walks take the control as an impulse: the noise terms
// are not scaled by dt inside the model, their magnitude is parameterized by
// the caller's perturbation covariance.
//
// One Inertial instance serves one robot for the session; the scratch fields
// are reused every call and must not be shared across goroutines.
type Inertial struct {
	p, v, ab, wb, g  [3]float64
	q                [4]float64
	am, wm           [3]float64
	an, wn, ar, wr   [3]float64
	acc, rate        [3]float64
	rot              [3][3]float64
	vnewQ            [3][4]float64
	qnewQ            [4][4]float64
	qnewW            [4][3]float64
}

// NewInertial returns a motion model with its scratch workspace ready.
func NewInertial() *Inertial {
	return &Inertial{}
}

// quatNormTol bounds the accepted drift of the state quaternion norm. The
// linearized update leaves small deviations; anything beyond this means the
// caller skipped its renormalization step.
const quatNormTol = 1e-3

func checkQuatNorm(x *mat.VecDense) {
	var n float64
	for i := 0; i < 4; i++ {
		v := x.AtVec(OffQ + i)
		n += v * v
	}
	if math.Abs(n-1) > quatNormTol {
		panic("motion: state quaternion is not unit norm")
	}
}

func (m *Inertial) Size() int             { return StateSize }
func (m *Inertial) SizeControl() int      { return ControlSize }
func (m *Inertial) SizePerturbation() int { return PerturbationSize }

// Propagate implements Model. xnew may alias x. With dt == 0 the propagation
// is the exact identity: xnew == x, Fx == I, Fn == 0.
func (m *Inertial) Propagate(x, u, n *mat.VecDense, dt float64, xnew *mat.VecDense, Fx, Fn *mat.Dense) {
	checkVec(x, StateSize, "state")
	checkVec(u, ControlSize, "control")
	checkVec(n, PerturbationSize, "perturbation")
	checkVec(xnew, StateSize, "state output")
	checkMat(Fx, StateSize, StateSize, "state Jacobian")
	checkMat(Fn, StateSize, PerturbationSize, "perturbation Jacobian")
	checkQuatNorm(x)

	if dt == 0 {
		xnew.CopyVec(x)
		setIdentity(Fx)
		Fn.Zero()
		return
	}

	SplitState(x, m.p[:], m.q[:], m.v[:], m.ab[:], m.wb[:], m.g[:])
	SplitControl(u, m.am[:], m.wm[:])
	SplitPert(n, m.an[:], m.wn[:], m.ar[:], m.wr[:])

	for i := 0; i < 3; i++ {
		m.acc[i] = m.am[i] + m.an[i] - m.ab[i]
		m.rate[i] = m.wm[i] + m.wn[i] - m.wb[i]
	}
	m.rot = QuatToRot(m.q)

	var qnew [4]float64
	qnew, m.qnewQ, m.qnewW = IntegrateQuat(m.q, m.rate, dt)
	m.vnewQ = RotVecJac(m.q, m.acc)

	// State transition.
	for i := 0; i < 3; i++ {
		m.p[i] += m.v[i] * dt
		m.v[i] += m.rot[i][0]*m.acc[0] + m.rot[i][1]*m.acc[1] + m.rot[i][2]*m.acc[2] + m.g[i]
		m.ab[i] += m.ar[i]
		m.wb[i] += m.wr[i]
	}
	UnsplitState(xnew, m.p[:], qnew[:], m.v[:], m.ab[:], m.wb[:], m.g[:])

	// Fx = d(xnew)/dx, block sparse.
	Fx.Zero()
	for i := 0; i < 3; i++ {
		Fx.Set(OffP+i, OffP+i, 1)
		Fx.Set(OffP+i, OffV+i, dt)
		Fx.Set(OffV+i, OffV+i, 1)
		Fx.Set(OffV+i, OffG+i, 1)
		Fx.Set(OffAb+i, OffAb+i, 1)
		Fx.Set(OffWb+i, OffWb+i, 1)
		Fx.Set(OffG+i, OffG+i, 1)
		for j := 0; j < 3; j++ {
			Fx.Set(OffV+i, OffAb+j, -m.rot[i][j])
		}
		for j := 0; j < 4; j++ {
			Fx.Set(OffV+i, OffQ+j, m.vnewQ[i][j])
		}
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			Fx.Set(OffQ+i, OffQ+j, m.qnewQ[i][j])
		}
		for j := 0; j < 3; j++ {
			Fx.Set(OffQ+i, OffWb+j, -m.qnewW[i][j])
		}
	}

	// Fn = d(xnew)/dn, nonzero only where noise enters directly.
	Fn.Zero()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			Fn.Set(OffV+i, OffAn+j, m.rot[i][j])
		}
		Fn.Set(OffAb+i, OffAr+i, 1)
		Fn.Set(OffWb+i, OffWr+i, 1)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			Fn.Set(OffQ+i, OffWn+j, m.qnewW[i][j])
		}
	}
}
