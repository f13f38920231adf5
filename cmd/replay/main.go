package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"inertial-go/binlog"
)

func main() {
	pcapPath := flag.String("pcap", "", "Input binlog file")
	destAddr := flag.String("dest", "127.0.0.1:44333", "Destination UDP address")
	speed := flag.Float64("speed", 1.0, "Replay speed multiplier (0 for max speed)")
	flag.Parse()

	if *pcapPath == "" {
		log.Fatal("--pcap required")
	}

	raddr, err := net.ResolveUDPAddr("udp", *destAddr)
	if err != nil {
		log.Fatalf("invalid dest address: %v", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		log.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	r, err := binlog.OpenReader(*pcapPath)
	if err != nil {
		log.Fatalf("open binlog failed: %v", err)
	}
	defer r.Close()

	var firstTs int64
	var startReal time.Time
	count := 0

	log.Printf("replaying %s to %s...", *pcapPath, *destAddr)

	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("read record failed: %v", err)
		}

		if firstTs == 0 {
			firstTs = rec.TsMs
			startReal = time.Now()
		} else if *speed > 0 {
			targetDelay := time.Duration(float64(rec.TsMs-firstTs) / *speed) * time.Millisecond
			elapsed := time.Since(startReal)
			if targetDelay > elapsed {
				time.Sleep(targetDelay - elapsed)
			}
		}

		if _, err := conn.Write(rec.Payload); err != nil {
			log.Printf("write error: %v", err)
		}
		count++
		if count%1000 == 0 {
			fmt.Printf("\rSent %d packets...", count)
		}
	}
	fmt.Printf("\nDone. Sent %d packets.\n", count)
}
