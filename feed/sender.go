package feed

import (
	"log"
	"net"
	"sync"
	"time"
)

// Sender fans formatted feed lines out to downstream consumers. Each target
// carries a flag mask selecting the message classes it receives; UDP targets
// share one unconnected socket, TCP targets each run a queue-fed goroutine
// that redials on failure.
type Sender struct {
	udpAddrs []maskedAddr
	tcp      []*TcpClient
	connUDP  *net.UDPConn
	running  bool
}

type maskedAddr struct {
	addr *net.UDPAddr
	mask uint32
}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) AddUDPTarget(addr string, mask uint32) error {
	uaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	s.udpAddrs = append(s.udpAddrs, maskedAddr{addr: uaddr, mask: mask})
	return nil
}

func (s *Sender) AddTCPTarget(addr string, mask uint32) {
	s.tcp = append(s.tcp, &TcpClient{
		addr:  addr,
		mask:  mask,
		queue: make(chan []byte, queueDepth),
	})
}

func (s *Sender) Start() error {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	s.connUDP = conn
	s.running = true

	for _, c := range s.tcp {
		c.start()
	}
	return nil
}

func (s *Sender) Stop() {
	s.running = false
	if s.connUDP != nil {
		s.connUDP.Close()
	}
	for _, c := range s.tcp {
		c.stop()
	}
}

// Send routes one message to every target whose mask covers flag. A TCP
// target that has fallen behind loses the message rather than stalling the
// caller.
func (s *Sender) Send(data []byte, flag uint32) {
	if !s.running {
		return
	}

	for _, t := range s.udpAddrs {
		if t.mask&flag == flag {
			s.connUDP.WriteToUDP(data, t.addr)
		}
	}

	for _, c := range s.tcp {
		if c.mask&flag != flag {
			continue
		}
		select {
		case c.queue <- data:
		default:
		}
	}
}

// TcpClient drains its queue into one long-lived connection. A write failure
// drops the connection; the next queued message triggers a redial.
type TcpClient struct {
	addr  string
	mask  uint32
	queue chan []byte
	done  bool
	wg    sync.WaitGroup
}

func (c *TcpClient) start() {
	c.wg.Add(1)
	go c.drain()
}

func (c *TcpClient) stop() {
	c.done = true
	close(c.queue)
	c.wg.Wait()
}

func (c *TcpClient) drain() {
	defer c.wg.Done()

	var conn net.Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	for data := range c.queue {
		if c.done {
			return
		}

		if conn == nil {
			var err error
			conn, err = net.DialTimeout("tcp", c.addr, dialTimeout)
			if err != nil {
				// Drop the message and back off; the next one redials.
				time.Sleep(reconnectDelay)
				continue
			}
			log.Printf("feed: connected to %s", c.addr)
		}

		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := conn.Write(data); err != nil {
			log.Printf("feed: TCP write to %s failed: %v", c.addr, err)
			conn.Close()
			conn = nil
		}
	}
}
