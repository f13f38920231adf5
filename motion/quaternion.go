package motion

import "math"

// Quaternions are scalar-first arrays [w x y z]. q maps body frame to world
// frame; composition is on the right with the body-rate increment:
// q_new = q * dq(w*dt).

// smallRotation is the angle (rad) below which the closed-form increment is
// replaced by its Taylor expansion to avoid dividing by a vanishing norm.
const smallRotation = 1e-6

// QuatProd returns the Hamilton product q*r.
func QuatProd(q, r [4]float64) [4]float64 {
	return [4]float64{
		q[0]*r[0] - q[1]*r[1] - q[2]*r[2] - q[3]*r[3],
		q[0]*r[1] + q[1]*r[0] + q[2]*r[3] - q[3]*r[2],
		q[0]*r[2] - q[1]*r[3] + q[2]*r[0] + q[3]*r[1],
		q[0]*r[3] + q[1]*r[2] - q[2]*r[1] + q[3]*r[0],
	}
}

// QuatNormalize scales q to unit norm.
func QuatNormalize(q *[4]float64) {
	n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	q[0] /= n
	q[1] /= n
	q[2] /= n
	q[3] /= n
}

// QuatToRot returns the rotation matrix equivalent to q, in the homogeneous
// degree-2 form (valid without renormalizing q; the Jacobians below
// differentiate this exact expression).
func QuatToRot(q [4]float64) [3][3]float64 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	return [3][3]float64{
		{w*w + x*x - y*y - z*z, 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), w*w - x*x + y*y - z*z, 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), w*w - x*x - y*y + z*z},
	}
}

// RotVec applies R(q) to a.
func RotVec(q [4]float64, a [3]float64) [3]float64 {
	r := QuatToRot(q)
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = r[i][0]*a[0] + r[i][1]*a[1] + r[i][2]*a[2]
	}
	return out
}

// RotVecJac returns d(R(q)*a)/dq, a 3x4 matrix.
func RotVecJac(q [4]float64, a [3]float64) [3][4]float64 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	ax, ay, az := a[0], a[1], a[2]
	sa := x*ax + y*ay + z*az
	return [3][4]float64{
		{2 * (w*ax - z*ay + y*az), 2 * sa, 2 * (-y*ax + x*ay + w*az), 2 * (-z*ax - w*ay + x*az)},
		{2 * (z*ax + w*ay - x*az), 2 * (y*ax - x*ay - w*az), 2 * sa, 2 * (w*ax - z*ay + y*az)},
		{2 * (-y*ax + x*ay + w*az), 2 * (z*ax + w*ay - x*az), 2 * (-w*ax + z*ay - y*az), 2 * sa},
	}
}

// quatLeftMat is the matrix L(q) with L(q)*r == q*r.
func quatLeftMat(q [4]float64) [4][4]float64 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	return [4][4]float64{
		{w, -x, -y, -z},
		{x, w, -z, y},
		{y, z, w, -x},
		{z, -y, x, w},
	}
}

// quatRightMat is the matrix R(r) with R(r)*q == q*r.
func quatRightMat(r [4]float64) [4][4]float64 {
	w, x, y, z := r[0], r[1], r[2], r[3]
	return [4][4]float64{
		{w, -x, -y, -z},
		{x, w, z, -y},
		{y, -z, w, x},
		{z, y, -x, w},
	}
}

// deltaQuat builds the incremental rotation quaternion dq(w*dt) together with
// its derivative with respect to the rate w (the dt chain factor included).
// dq = [cos(a/2), sin(a/2)/a * theta] with theta = w*dt, a = |theta|.
func deltaQuat(w [3]float64, dt float64) (dq [4]float64, dDQdw [4][3]float64) {
	th := [3]float64{w[0] * dt, w[1] * dt, w[2] * dt}
	a := math.Sqrt(th[0]*th[0] + th[1]*th[1] + th[2]*th[2])

	// s = sin(a/2)/a, c1 = sin(a/2)/(2a), c2 = (d s/d a)/a
	var cosHalf, s, c1, c2 float64
	if a < smallRotation {
		a2 := a * a
		cosHalf = 1 - a2/8
		s = 0.5 - a2/48
		c1 = 0.25 - a2/96
		c2 = -1.0 / 24
	} else {
		sinHalf := math.Sin(a / 2)
		cosHalf = math.Cos(a / 2)
		s = sinHalf / a
		c1 = sinHalf / (2 * a)
		c2 = (cosHalf/2 - sinHalf/a) / (a * a)
	}

	dq[0] = cosHalf
	dq[1] = s * th[0]
	dq[2] = s * th[1]
	dq[3] = s * th[2]
	QuatNormalize(&dq)

	for j := 0; j < 3; j++ {
		dDQdw[0][j] = -c1 * th[j] * dt
		for i := 0; i < 3; i++ {
			v := c2 * th[i] * th[j] * dt
			if i == j {
				v += s * dt
			}
			dDQdw[i+1][j] = v
		}
	}
	return dq, dDQdw
}

// IntegrateQuat advances q by the rotation implied by the angular rate w over
// dt and returns the Jacobians of the new quaternion with respect to the old
// quaternion and to the rate. The result is unit norm for any finite w, dt;
// the increment degenerates continuously to identity as |w*dt| -> 0.
func IntegrateQuat(q [4]float64, w [3]float64, dt float64) (qnew [4]float64, dQdq [4][4]float64, dQdw [4][3]float64) {
	dq, dDQdw := deltaQuat(w, dt)

	qnew = QuatProd(q, dq)

	// q_new is linear in q: d(q*dq)/dq is the right-multiplication matrix.
	dQdq = quatRightMat(dq)

	// Chain rule through the increment: d(q*dq)/dw = L(q) * d(dq)/dw.
	lq := quatLeftMat(q)
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += lq[i][k] * dDQdw[k][j]
			}
			dQdw[i][j] = sum
		}
	}
	return qnew, dQdq, dQdw
}
