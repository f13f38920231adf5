package server

import (
	"io"
	"log"
	"time"

	"inertial-go/binlog"
)

// Replay streams a recorded binlog through the same packet path as the live
// socket, pacing by the recorded timestamps. speed <= 0 replays as fast as
// possible.
func (s *UdpServer) Replay(path string, speed float64) error {
	r, err := binlog.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	s.running = true
	log.Printf("replaying %s at %.1fx speed...", path, speed)

	var firstTs int64
	var startReal time.Time
	pktCount := 0

	for s.running {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		pktCount++
		if firstTs == 0 {
			firstTs = rec.TsMs
			startReal = time.Now()
		} else if speed > 0 {
			targetDelay := time.Duration(float64(rec.TsMs-firstTs)/speed) * time.Millisecond
			elapsed := time.Since(startReal)
			if targetDelay > elapsed {
				time.Sleep(targetDelay - elapsed)
			}
		}

		s.handlePacket(rec.Payload, rec.Addr, rec.TsMs)
	}
	log.Printf("replay ended, %d packets", pktCount)
	return nil
}
