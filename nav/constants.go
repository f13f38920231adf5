package nav

// Filter tuning constants. The per-step noise magnitudes follow the impulse
// convention of the inertial model: they already account for the nominal
// sample interval and are not rescaled by dt inside the filter.
const (
	SigmaAccNoise  = 0.02  // accelerometer measurement noise, m/s per step
	SigmaGyroNoise = 0.002 // gyrometer measurement noise, rad/s
	SigmaAccWalk   = 1e-4  // accel bias random walk per step
	SigmaGyroWalk  = 1e-5  // gyro bias random walk per step

	SigmaPos0  = 1.0  // initial position uncertainty, m
	SigmaQuat0 = 0.1  // initial quaternion uncertainty
	SigmaVel0  = 0.5  // initial velocity uncertainty, m/s
	SigmaAb0   = 0.1  // initial accel bias uncertainty
	SigmaWb0   = 0.01 // initial gyro bias uncertainty
	SigmaGrav0 = 0.1  // initial gravity uncertainty

	FixSigmaDefault = 0.1 // position-fix measurement noise, m

	GravityZ = -9.81

	MaxDt       = 0.5  // clamp for a single prediction step, s
	GapResetSec = 30.0 // sensor silence after which the filter restarts
	MaxPosVar   = 1e4  // covariance watchdog threshold, m^2
	SReg        = 1e-9 // diagonal regularization after covariance updates

	DivergeLimit = 5 // consecutive rejected updates before a reset
)
