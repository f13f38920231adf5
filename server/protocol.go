package server

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// FrameMagic is "Nx" in little endian.
	FrameMagic  = 0x784E
	FrameHdrLen = 9

	TypeImuFrame = 0x90
	TypePosFix   = 0x70

	imuSampleLen = 14
	posFixLen    = 12

	// Sensor scaling on the wire: acceleration in mm/s^2, angular rate in
	// mrad/s, fix coordinates in mm.
	imuScale = 1e-3
	posScale = 1e-3
)

type FrameHeader struct {
	Magic   uint16
	Addr    uint32
	Type    uint8
	BodyLen int
}

type ImuSample struct {
	DtUs  uint16
	Accel [3]float64 // m/s^2
	Gyro  [3]float64 // rad/s
}

type PosFix struct {
	Pos [3]float64 // m
}

// ParseHeader parses a frame header from the beginning of data.
func ParseHeader(data []byte) (*FrameHeader, error) {
	if len(data) < FrameHdrLen {
		return nil, fmt.Errorf("frame too short")
	}
	magic := binary.LittleEndian.Uint16(data[0:2])
	if magic != FrameMagic {
		return nil, fmt.Errorf("invalid magic: 0x%x", magic)
	}
	return &FrameHeader{
		Magic:   magic,
		Addr:    binary.LittleEndian.Uint32(data[2:6]),
		Type:    data[6],
		BodyLen: int(binary.LittleEndian.Uint16(data[7:9])),
	}, nil
}

// ParseImuFrame parses the body of an IMU frame: seq(1), num(1), then num
// samples of dt_us(2), accel x3 (int16 mm/s^2), gyro x3 (int16 mrad/s).
func ParseImuFrame(body []byte) ([]ImuSample, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("imu frame too short")
	}
	num := int(body[1])
	base := 2
	samples := make([]ImuSample, 0, num)
	for i := 0; i < num; i++ {
		if base+imuSampleLen > len(body) {
			return nil, fmt.Errorf("imu sample truncated")
		}
		s := ImuSample{DtUs: binary.LittleEndian.Uint16(body[base : base+2])}
		for j := 0; j < 3; j++ {
			raw := int16(binary.LittleEndian.Uint16(body[base+2+2*j : base+4+2*j]))
			s.Accel[j] = float64(raw) * imuScale
		}
		for j := 0; j < 3; j++ {
			raw := int16(binary.LittleEndian.Uint16(body[base+8+2*j : base+10+2*j]))
			s.Gyro[j] = float64(raw) * imuScale
		}
		samples = append(samples, s)
		base += imuSampleLen
	}
	return samples, nil
}

// ParsePosFix parses the body of a position-fix frame: x, y, z as int32 mm.
func ParsePosFix(body []byte) (*PosFix, error) {
	if len(body) < posFixLen {
		return nil, fmt.Errorf("pos fix too short")
	}
	var f PosFix
	for j := 0; j < 3; j++ {
		raw := int32(binary.LittleEndian.Uint32(body[4*j : 4*j+4]))
		f.Pos[j] = float64(raw) * posScale
	}
	return &f, nil
}

func packHeader(dst []byte, addr uint32, typ uint8, bodyLen int) {
	binary.LittleEndian.PutUint16(dst[0:2], FrameMagic)
	binary.LittleEndian.PutUint32(dst[2:6], addr)
	dst[6] = typ
	binary.LittleEndian.PutUint16(dst[7:9], uint16(bodyLen))
}

// PackImuFrame builds a complete IMU frame for addr. Used by the simulator
// and the replay tool.
func PackImuFrame(addr uint32, seq uint8, samples []ImuSample) []byte {
	bodyLen := 2 + len(samples)*imuSampleLen
	out := make([]byte, FrameHdrLen+bodyLen)
	packHeader(out, addr, TypeImuFrame, bodyLen)
	body := out[FrameHdrLen:]
	body[0] = seq
	body[1] = uint8(len(samples))
	base := 2
	for _, s := range samples {
		binary.LittleEndian.PutUint16(body[base:base+2], s.DtUs)
		for j := 0; j < 3; j++ {
			binary.LittleEndian.PutUint16(body[base+2+2*j:base+4+2*j], uint16(int16(math.Round(s.Accel[j]/imuScale))))
		}
		for j := 0; j < 3; j++ {
			binary.LittleEndian.PutUint16(body[base+8+2*j:base+10+2*j], uint16(int16(math.Round(s.Gyro[j]/imuScale))))
		}
		base += imuSampleLen
	}
	return out
}

// PackPosFix builds a complete position-fix frame for addr.
func PackPosFix(addr uint32, pos [3]float64) []byte {
	out := make([]byte, FrameHdrLen+posFixLen)
	packHeader(out, addr, TypePosFix, posFixLen)
	body := out[FrameHdrLen:]
	for j := 0; j < 3; j++ {
		binary.LittleEndian.PutUint32(body[4*j:4*j+4], uint32(int32(math.Round(pos[j]/posScale))))
	}
	return out
}
