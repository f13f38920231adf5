package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net"
	"os"
	"time"

	"inertial-go/motion"
	"inertial-go/nav"
	"inertial-go/server"
)

// truth holds the exact trajectory sample at one instant.
type truth struct {
	pos  [3]float64
	vel  [3]float64
	quat [4]float64
}

// circleAt evaluates a horizontal circle of the given radius, traversed at
// angular speed omega, with the body x axis along the velocity.
func circleAt(t, radius, omega float64) truth {
	th := omega * t
	yaw := th + math.Pi/2
	return truth{
		pos:  [3]float64{radius * math.Cos(th), radius * math.Sin(th), 0},
		vel:  [3]float64{-radius * omega * math.Sin(th), radius * omega * math.Cos(th), 0},
		quat: [4]float64{math.Cos(yaw / 2), 0, 0, math.Sin(yaw / 2)},
	}
}

func main() {
	rate := flag.Float64("rate", 100.0, "IMU sample rate Hz")
	duration := flag.Float64("duration", 60.0, "Simulated duration s")
	radius := flag.Float64("radius", 5.0, "Circle radius m")
	omega := flag.Float64("omega", 0.5, "Angular speed rad/s")
	fixEvery := flag.Float64("fix-every", 1.0, "Position fix interval s (0 to disable)")
	accBias := flag.Float64("acc-bias", 0.05, "Constant accelerometer bias on each axis")
	gyroBias := flag.Float64("gyro-bias", 0.005, "Constant gyrometer bias on each axis, rad/s")
	noise := flag.Bool("noise", true, "Add sensor noise")
	seed := flag.Int64("seed", 1, "RNG seed")
	dest := flag.String("dest", "", "Send frames to UDP addr:port instead of running offline")
	devID := flag.Uint("id", 0x1001, "Device address in the frame headers")
	csvPath := flag.String("csv", "", "Write truth/estimate CSV (offline mode)")
	flag.Parse()

	calib := nav.DefaultCalibration()
	rng := rand.New(rand.NewSource(*seed))
	dt := 1.0 / *rate
	steps := int(*duration * *rate)
	grav := calib.Gravity

	var conn *net.UDPConn
	var pipe *nav.Pipeline
	if *dest != "" {
		raddr, err := net.ResolveUDPAddr("udp", *dest)
		if err != nil {
			log.Fatalf("invalid dest address: %v", err)
		}
		conn, err = net.DialUDP("udp", nil, raddr)
		if err != nil {
			log.Fatalf("dial failed: %v", err)
		}
		defer conn.Close()
		log.Printf("streaming %d samples to %s...", steps, *dest)
	} else {
		pipe = nav.NewPipeline(calib)
	}

	var w *csv.Writer
	if *csvPath != "" && pipe != nil {
		f, err := os.Create(*csvPath)
		if err != nil {
			log.Fatalf("create csv: %v", err)
		}
		defer f.Close()
		w = csv.NewWriter(f)
		defer w.Flush()
		w.Write([]string{"t", "x", "y", "z", "ex", "ey", "ez", "flag"})
	}

	sigma := func(s float64) float64 {
		if !*noise {
			return 0
		}
		return rng.NormFloat64() * s
	}

	var seq uint8
	var sumSq float64
	var nErr int
	nextFix := 0.0

	prev := circleAt(0, *radius, *omega)
	for k := 1; k <= steps; k++ {
		t := float64(k) * dt
		cur := circleAt(t, *radius, *omega)
		tsMs := int64(t * 1000)

		// Invert the motion model: the accelerometer reading carries the
		// velocity impulse of this step, expressed in the body frame.
		var dv [3]float64
		for i := 0; i < 3; i++ {
			dv[i] = cur.vel[i] - prev.vel[i] - grav[i]
		}
		rot := motion.QuatToRot(prev.quat)
		var am, wm [3]float64
		for i := 0; i < 3; i++ {
			am[i] = rot[0][i]*dv[0] + rot[1][i]*dv[1] + rot[2][i]*dv[2] +
				*accBias + sigma(calib.AccNoise)
		}
		wm = [3]float64{
			*gyroBias + sigma(calib.GyroNoise),
			*gyroBias + sigma(calib.GyroNoise),
			*omega + *gyroBias + sigma(calib.GyroNoise),
		}
		prev = cur

		sendFix := *fixEvery > 0 && t >= nextFix
		if sendFix {
			nextFix += *fixEvery
		}
		var fix [3]float64
		if sendFix {
			for i := 0; i < 3; i++ {
				fix[i] = cur.pos[i] + sigma(calib.FixSigma)
			}
		}

		if conn != nil {
			smp := server.ImuSample{DtUs: uint16(dt * 1e6), Accel: am, Gyro: wm}
			conn.Write(server.PackImuFrame(uint32(*devID), seq, []server.ImuSample{smp}))
			seq++
			if sendFix {
				conn.Write(server.PackPosFix(uint32(*devID), fix))
			}
			time.Sleep(time.Duration(dt * float64(time.Second)))
			continue
		}

		res := pipe.ProcessIMU(tsMs, am, wm)
		if sendFix {
			res = pipe.ProcessFix(tsMs, fix)
		}

		if res.Flag >= 1 && t > *duration/2 {
			for i := 0; i < 3; i++ {
				d := res.Pos[i] - cur.pos[i]
				sumSq += d * d
			}
			nErr++
		}
		if w != nil {
			w.Write([]string{
				fmt.Sprintf("%.3f", t),
				fmt.Sprintf("%.4f", cur.pos[0]), fmt.Sprintf("%.4f", cur.pos[1]), fmt.Sprintf("%.4f", cur.pos[2]),
				fmt.Sprintf("%.4f", res.Pos[0]), fmt.Sprintf("%.4f", res.Pos[1]), fmt.Sprintf("%.4f", res.Pos[2]),
				fmt.Sprintf("%d", res.Flag),
			})
		}
	}

	if pipe != nil && nErr > 0 {
		log.Printf("position RMSE over second half: %.3f m (%d samples)",
			math.Sqrt(sumSq/float64(nErr)), nErr)
	}
}
