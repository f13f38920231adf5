package web

import (
	"fmt"
	"log"
	"net/http"
)

// Server exposes the live pose stream over websocket plus the static
// viewer assets and calibration file over HTTP.
type Server struct {
	Hub *Hub
}

func NewServer() *Server {
	return &Server{Hub: NewHub()}
}

// Start runs the hub and HTTP listener. It blocks, so run it in a goroutine.
func (s *Server) Start(port int, distDir, calibPath string) {
	go s.Hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(s.Hub, w, r)
	})
	if calibPath != "" {
		mux.HandleFunc("/calibration.xml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/xml")
			http.ServeFile(w, r, calibPath)
		})
	}
	if distDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(distDir)))
	}

	addr := fmt.Sprintf(":%d", port)
	log.Printf("web server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("web server: %v", err)
	}
}
