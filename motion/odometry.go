package motion

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Odometry state layout: x = [px py yaw], control u = [ds dyaw] (travelled
// distance and heading change over the step), perturbation n = [nds ndyaw].
const (
	OdoStateSize        = 3
	OdoControlSize      = 2
	OdoPerturbationSize = 2
)

// Odometry is a planar dead-reckoning motion model, the substitute variant
// used when no IMU is available:
//
//	px+  = px + (ds+nds)*cos(yaw)
//	py+  = py + (ds+nds)*sin(yaw)
//	yaw+ = yaw + dyaw + ndyaw
type Odometry struct{}

// NewOdometry returns the odometry motion model.
func NewOdometry() *Odometry {
	return &Odometry{}
}

func (m *Odometry) Size() int             { return OdoStateSize }
func (m *Odometry) SizeControl() int      { return OdoControlSize }
func (m *Odometry) SizePerturbation() int { return OdoPerturbationSize }

// Propagate implements Model. xnew may alias x.
func (m *Odometry) Propagate(x, u, n *mat.VecDense, dt float64, xnew *mat.VecDense, Fx, Fn *mat.Dense) {
	checkVec(x, OdoStateSize, "state")
	checkVec(u, OdoControlSize, "control")
	checkVec(n, OdoPerturbationSize, "perturbation")
	checkVec(xnew, OdoStateSize, "state output")
	checkMat(Fx, OdoStateSize, OdoStateSize, "state Jacobian")
	checkMat(Fn, OdoStateSize, OdoPerturbationSize, "perturbation Jacobian")

	if dt == 0 {
		xnew.CopyVec(x)
		setIdentity(Fx)
		Fn.Zero()
		return
	}

	px, py, yaw := x.AtVec(0), x.AtVec(1), x.AtVec(2)
	ds := u.AtVec(0) + n.AtVec(0)
	dyaw := u.AtVec(1) + n.AtVec(1)
	c, s := math.Cos(yaw), math.Sin(yaw)

	xnew.SetVec(0, px+ds*c)
	xnew.SetVec(1, py+ds*s)
	xnew.SetVec(2, yaw+dyaw)

	Fx.Zero()
	Fx.Set(0, 0, 1)
	Fx.Set(0, 2, -ds*s)
	Fx.Set(1, 1, 1)
	Fx.Set(1, 2, ds*c)
	Fx.Set(2, 2, 1)

	Fn.Zero()
	Fn.Set(0, 0, c)
	Fn.Set(1, 0, s)
	Fn.Set(2, 1, 1)
}
