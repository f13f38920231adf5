package nav

import (
	"gonum.org/v1/gonum/mat"

	"inertial-go/motion"
)

// Result is one pipeline output sample. Flag: 0 waiting for data,
// 1 predicted (IMU only), 2 corrected by a fix, -2 filter reset.
type Result struct {
	TimestampMs int64
	Pos         [3]float64
	Vel         [3]float64
	Quat        [4]float64
	Flag        int
}

// Pipeline drives one EKF from timestamped sensor input: IMU samples feed
// prediction steps, absolute position fixes feed corrections. One Pipeline
// serves one device; calls must be serialized by the owner.
type Pipeline struct {
	ekf   *EKF
	calib *Calibration

	u            *mat.VecDense
	lastTS       *int64
	initialized  bool
	divergeCount int
}

// NewPipeline builds a pipeline around the inertial motion model with the
// given calibration.
func NewPipeline(calib *Calibration) *Pipeline {
	model := motion.NewInertial()
	ekf := NewEKF(model, calib.StateVector(), calib.StateSigmas(), calib.PertSigmas(), normalizeQuat)
	return &Pipeline{
		ekf:   ekf,
		calib: calib,
		u:     mat.NewVecDense(model.SizeControl(), nil),
	}
}

// EKF exposes the underlying filter, mainly for offline tools.
func (p *Pipeline) EKF() *EKF { return p.ekf }

// ProcessIMU advances the filter with one accelerometer/gyrometer sample.
func (p *Pipeline) ProcessIMU(tsMs int64, am, wm [3]float64) Result {
	dt, ok := p.step(tsMs)
	if !ok {
		return p.result(tsMs, -2)
	}
	if dt == 0 {
		return p.result(tsMs, 0)
	}

	for i := 0; i < 3; i++ {
		p.u.SetVec(motion.OffAm+i, am[i])
		p.u.SetVec(motion.OffWm+i, wm[i])
	}
	p.ekf.Predict(p.u, dt)

	if !p.ekf.Healthy() {
		p.reset()
		return p.result(tsMs, -2)
	}
	return p.result(tsMs, 1)
}

// ProcessFix corrects the filter with an absolute position measurement. The
// first fix seeds the position estimate instead of updating it.
func (p *Pipeline) ProcessFix(tsMs int64, pos [3]float64) Result {
	if _, ok := p.step(tsMs); !ok {
		return p.result(tsMs, -2)
	}

	if !p.initialized {
		p.ekf.SetState(motion.OffP, pos[:])
		p.initialized = true
		p.divergeCount = 0
		return p.result(tsMs, 2)
	}

	if !p.ekf.UpdatePos(pos, p.calib.FixSigma) || !p.ekf.Healthy() {
		p.divergeCount++
		if p.divergeCount > DivergeLimit {
			p.reset()
			return p.result(tsMs, -2)
		}
		return p.result(tsMs, 1)
	}
	p.divergeCount = 0
	return p.result(tsMs, 2)
}

// step advances the clock and returns the dt for this sample. A long sensor
// gap resets the filter; ok is false in that case.
func (p *Pipeline) step(tsMs int64) (float64, bool) {
	if p.lastTS == nil {
		p.lastTS = new(int64)
		*p.lastTS = tsMs
		return 0, true
	}
	if tsMs <= *p.lastTS {
		tsMs = *p.lastTS + 1
	}
	dt := float64(tsMs-*p.lastTS) / 1000.0
	*p.lastTS = tsMs
	if dt > GapResetSec {
		p.reset()
		return 0, false
	}
	if dt > MaxDt {
		dt = MaxDt
	}
	return dt, true
}

func (p *Pipeline) reset() {
	p.ekf.Reset()
	p.initialized = false
	p.divergeCount = 0
}

func (p *Pipeline) result(tsMs int64, flag int) Result {
	x := p.ekf.State()
	r := Result{TimestampMs: tsMs, Flag: flag}
	for i := 0; i < 3; i++ {
		r.Pos[i] = x.AtVec(motion.OffP + i)
		r.Vel[i] = x.AtVec(motion.OffV + i)
	}
	for i := 0; i < 4; i++ {
		r.Quat[i] = x.AtVec(motion.OffQ + i)
	}
	return r
}

// normalizeQuat restores the unit norm of the quaternion block after a
// linear measurement update.
func normalizeQuat(x *mat.VecDense) {
	var q [4]float64
	for i := range q {
		q[i] = x.AtVec(motion.OffQ + i)
	}
	motion.QuatNormalize(&q)
	for i := range q {
		x.SetVec(motion.OffQ+i, q[i])
	}
}
