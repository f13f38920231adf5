package nav

import (
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"inertial-go/motion"
)

// Calibration bundles the noise parameters and initial conditions of one
// inertial unit.
type Calibration struct {
	AccNoise  float64
	GyroNoise float64
	AccWalk   float64
	GyroWalk  float64
	FixSigma  float64
	InitPos   [3]float64
	Gravity   [3]float64
}

// DefaultCalibration returns the built-in tuning.
func DefaultCalibration() *Calibration {
	return &Calibration{
		AccNoise:  SigmaAccNoise,
		GyroNoise: SigmaGyroNoise,
		AccWalk:   SigmaAccWalk,
		GyroWalk:  SigmaGyroWalk,
		FixSigma:  FixSigmaDefault,
		Gravity:   [3]float64{0, 0, GravityZ},
	}
}

// LoadCalibration parses a calibration XML file:
//
//	<calibration>
//	  <imu accnoise="0.02" gyronoise="0.002" accwalk="1e-4" gyrowalk="1e-5"/>
//	  <init pos="0,0,0" gravity="0,0,-9.81"/>
//	  <fix sigma="0.1"/>
//	</calibration>
//
// Missing file or attributes fall back to the defaults.
func LoadCalibration(path string) *Calibration {
	c := DefaultCalibration()
	dec, f, err := readXML(path)
	if err != nil {
		return c
	}
	defer f.Close()
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "imu":
			if v, ok := parseFloatAttr(start, "accnoise"); ok {
				c.AccNoise = v
			}
			if v, ok := parseFloatAttr(start, "gyronoise"); ok {
				c.GyroNoise = v
			}
			if v, ok := parseFloatAttr(start, "accwalk"); ok {
				c.AccWalk = v
			}
			if v, ok := parseFloatAttr(start, "gyrowalk"); ok {
				c.GyroWalk = v
			}
		case "init":
			if v, ok := parseVecAttr(start, "pos"); ok {
				c.InitPos = v
			}
			if v, ok := parseVecAttr(start, "gravity"); ok {
				c.Gravity = v
			}
		case "fix":
			if v, ok := parseFloatAttr(start, "sigma"); ok {
				c.FixSigma = v
			}
		}
	}
	return c
}

// StateVector builds the initial 19-element state: configured position,
// identity orientation, zero velocity and biases, configured gravity.
func (c *Calibration) StateVector() *mat.VecDense {
	x := mat.NewVecDense(motion.StateSize, nil)
	motion.UnsplitState(x,
		c.InitPos[:],
		[]float64{1, 0, 0, 0},
		[]float64{0, 0, 0},
		[]float64{0, 0, 0},
		[]float64{0, 0, 0},
		c.Gravity[:])
	return x
}

// StateSigmas returns the initial covariance diagonal (as sigmas).
func (c *Calibration) StateSigmas() []float64 {
	s := make([]float64, motion.StateSize)
	for i := 0; i < 3; i++ {
		s[motion.OffP+i] = SigmaPos0
		s[motion.OffV+i] = SigmaVel0
		s[motion.OffAb+i] = SigmaAb0
		s[motion.OffWb+i] = SigmaWb0
		s[motion.OffG+i] = SigmaGrav0
	}
	for i := 0; i < 4; i++ {
		s[motion.OffQ+i] = SigmaQuat0
	}
	return s
}

// PertSigmas returns the perturbation covariance diagonal (as sigmas) in the
// model's [an wn ar wr] order.
func (c *Calibration) PertSigmas() []float64 {
	s := make([]float64, motion.PerturbationSize)
	for i := 0; i < 3; i++ {
		s[motion.OffAn+i] = c.AccNoise
		s[motion.OffWn+i] = c.GyroNoise
		s[motion.OffAr+i] = c.AccWalk
		s[motion.OffWr+i] = c.GyroWalk
	}
	return s
}

func readXML(path string) (*xml.Decoder, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	dec := xml.NewDecoder(f)
	return dec, f, nil
}

func attrValue(start xml.StartElement, name string) (string, bool) {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func parseFloatAttr(start xml.StartElement, name string) (float64, bool) {
	v, ok := attrValue(start, name)
	if !ok {
		return 0, false
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return x, true
}

func parseVecAttr(start xml.StartElement, name string) ([3]float64, bool) {
	var out [3]float64
	v, ok := attrValue(start, name)
	if !ok {
		return out, false
	}
	parts := strings.Split(v, ",")
	if len(parts) != 3 {
		return out, false
	}
	for i, p := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return out, false
		}
		out[i] = x
	}
	return out, true
}
