package server

import (
	"encoding/json"
	"log"
	"math"
	"net"
	"sync"
	"time"

	"inertial-go/binlog"
	"inertial-go/feed"
	"inertial-go/nav"
	"inertial-go/web"
)

const (
	DefaultPort   = 44333
	MaxPacketSize = 65535

	// RX_PKT(1) | PROT_UDP(0x100)
	PcapFlag = 0x101
)

type wsPose struct {
	ID   int64      `json:"id"`
	TS   int64      `json:"ts"`
	X    float64    `json:"x"`
	Y    float64    `json:"y"`
	Z    float64    `json:"z"`
	Quat [4]float64 `json:"quat"`
	Flag int        `json:"flag"`
}

// UdpServer receives sensor frames over UDP and runs one estimation
// pipeline per device address.
type UdpServer struct {
	conn      *net.UDPConn
	calib     *nav.Calibration
	pipelines map[uint32]*nav.Pipeline
	pcap      *binlog.PcapWriter
	sender    *feed.Sender
	webHub    *web.Hub
	running   bool

	// device address -> last published pose
	devState map[uint32]*wsPose
	mu       sync.Mutex
}

func NewUdpServer(port int, calib *nav.Calibration) (*UdpServer, error) {
	if port == 0 {
		port = DefaultPort
	}
	addr := net.UDPAddr{
		Port: port,
		IP:   net.ParseIP("0.0.0.0"),
	}
	conn, err := net.ListenUDP("udp", &addr)
	if err != nil {
		return nil, err
	}
	conn.SetReadBuffer(256 * 1024)

	return &UdpServer{
		conn:      conn,
		calib:     calib,
		pipelines: make(map[uint32]*nav.Pipeline),
		devState:  make(map[uint32]*wsPose),
	}, nil
}

func (s *UdpServer) SetPcapWriter(pw *binlog.PcapWriter) {
	s.pcap = pw
}

func (s *UdpServer) SetFeedSender(snd *feed.Sender) {
	s.sender = snd
}

func (s *UdpServer) SetWebHub(h *web.Hub) {
	s.webHub = h
}

// GetDevices returns the last pose of every device seen so far.
func (s *UdpServer) GetDevices() []*wsPose {
	s.mu.Lock()
	defer s.mu.Unlock()
	devs := make([]*wsPose, 0, len(s.devState))
	for _, d := range s.devState {
		devs = append(devs, d)
	}
	return devs
}

func (s *UdpServer) Start() {
	s.running = true
	buf := make([]byte, MaxPacketSize)
	log.Printf("UDP server listening on %s", s.conn.LocalAddr().String())

	for s.running {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.running {
				log.Printf("read error: %v", err)
			}
			continue
		}

		// Copy before parsing, the next read reuses buf.
		data := make([]byte, n)
		copy(data, buf[:n])

		s.handlePacket(data, addr, time.Now().UnixMilli())
	}
}

func (s *UdpServer) Stop() {
	s.running = false
	s.conn.Close()
}

func (s *UdpServer) pipeline(dev uint32) *nav.Pipeline {
	p, ok := s.pipelines[dev]
	if !ok {
		p = nav.NewPipeline(s.calib)
		s.pipelines[dev] = p
	}
	return p
}

// handlePacket walks the frames packed into one datagram. A malformed
// header resynchronizes byte by byte.
func (s *UdpServer) handlePacket(data []byte, addr *net.UDPAddr, ts int64) {
	offset := 0
	for offset < len(data) {
		if len(data)-offset < FrameHdrLen {
			break
		}

		hdr, err := ParseHeader(data[offset:])
		if err != nil {
			offset++
			continue
		}

		totalLen := FrameHdrLen + hdr.BodyLen
		if offset+totalLen > len(data) {
			break
		}

		pktData := data[offset : offset+totalLen]

		if s.pcap != nil {
			_ = s.pcap.WritePacketAt(time.UnixMilli(ts), PcapFlag, addr, pktData)
		}

		body := data[offset+FrameHdrLen : offset+totalLen]
		s.processFrame(hdr, body, ts)

		offset += totalLen
	}
}

func (s *UdpServer) processFrame(hdr *FrameHeader, body []byte, ts int64) {
	switch hdr.Type {
	case TypeImuFrame:
		samples, err := ParseImuFrame(body)
		if err != nil {
			log.Printf("ParseImuFrame error: %v", err)
			return
		}
		if len(samples) == 0 {
			return
		}
		p := s.pipeline(hdr.Addr)
		// The batch arrived at ts; its samples span the preceding
		// dt_us intervals.
		span := int64(0)
		for _, smp := range samples[1:] {
			span += int64(smp.DtUs)
		}
		sampleTs := ts - span/1000
		var res nav.Result
		for i, smp := range samples {
			if i > 0 {
				sampleTs += int64(smp.DtUs) / 1000
			}
			res = p.ProcessIMU(sampleTs, smp.Accel, smp.Gyro)
		}
		s.sendResult(hdr.Addr, ts, res)

	case TypePosFix:
		fix, err := ParsePosFix(body)
		if err != nil {
			log.Printf("ParsePosFix error: %v", err)
			return
		}
		res := s.pipeline(hdr.Addr).ProcessFix(ts, fix.Pos)
		s.sendResult(hdr.Addr, ts, res)
	}
}

func (s *UdpServer) sendResult(dev uint32, ts int64, res nav.Result) {
	if math.Abs(res.Pos[0]) > 1000.0 || math.Abs(res.Pos[1]) > 1000.0 {
		log.Printf("WARNING: large coordinate! Dev=%x X=%.2f Y=%.2f", dev, res.Pos[0], res.Pos[1])
	}

	if res.Flag >= 1 && s.sender != nil {
		msg := feed.FormatPose(dev, ts, 0, res.Flag, res.Pos, res.Quat)
		s.sender.Send(msg, feed.FlagPose)
	}

	pose := &wsPose{
		ID:   int64(dev),
		TS:   ts,
		X:    res.Pos[0],
		Y:    res.Pos[1],
		Z:    res.Pos[2],
		Quat: res.Quat,
		Flag: res.Flag,
	}

	s.mu.Lock()
	s.devState[dev] = pose
	s.mu.Unlock()

	if s.webHub != nil {
		b, _ := json.Marshal(pose)
		s.webHub.Broadcast(b)
	}
}
