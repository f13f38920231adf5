package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inertial-go/binlog"
	"inertial-go/feed"
	"inertial-go/nav"
	"inertial-go/server"
	"inertial-go/web"
)

func main() {
	port := flag.Int("port", server.DefaultPort, "UDP port to listen on")
	httpPort := flag.Int("http", 0, "HTTP/WebSocket port (e.g. 8080). 0 to disable.")
	calibXML := flag.String("calib", "", "Path to calibration.xml (optional)")
	distDir := flag.String("dist", "", "Directory of static viewer assets (optional)")
	pcapPath := flag.String("pcap", "", "Path to output binlog file (optional)")
	feedUDP := flag.String("feed-udp", "", "Downstream UDP pose feed addr:port (optional)")
	feedTCP := flag.String("feed-tcp", "", "Downstream TCP pose feed addr:port (optional)")
	flag.Parse()

	calib := nav.DefaultCalibration()
	if *calibXML != "" {
		calib = nav.LoadCalibration(*calibXML)
		log.Printf("loaded calibration from %s", *calibXML)
	}

	udpSvr, err := server.NewUdpServer(*port, calib)
	if err != nil {
		log.Fatalf("failed to create UDP server: %v", err)
	}

	if *httpPort > 0 {
		webSvr := web.NewServer()
		go webSvr.Start(*httpPort, *distDir, *calibXML)
		udpSvr.SetWebHub(webSvr.Hub)
	}

	if *feedUDP != "" || *feedTCP != "" {
		sender := feed.NewSender()
		if *feedUDP != "" {
			if err := sender.AddUDPTarget(*feedUDP, feed.FlagPose); err != nil {
				log.Fatalf("feed UDP target: %v", err)
			}
			log.Printf("added UDP pose feed: %s", *feedUDP)
		}
		if *feedTCP != "" {
			sender.AddTCPTarget(*feedTCP, feed.FlagPose)
			log.Printf("added TCP pose feed: %s", *feedTCP)
		}
		if err := sender.Start(); err != nil {
			log.Fatalf("feed sender: %v", err)
		}
		udpSvr.SetFeedSender(sender)
		defer sender.Stop()
	}

	if *pcapPath != "" {
		path := *pcapPath
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			path = fmt.Sprintf("%s/NAVBIN_%s.pcap", path, time.Now().Format("20060102150405"))
		}

		pw, err := binlog.NewPcapWriter(path)
		if err != nil {
			log.Fatalf("failed to create binlog writer: %v", err)
		}
		defer pw.Close()
		udpSvr.SetPcapWriter(pw)
		log.Printf("logging packets to %s", path)
	}

	go udpSvr.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down...")
	udpSvr.Stop()
}
