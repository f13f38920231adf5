package feed

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSenderUDPFanOutRespectsMask(t *testing.T) {
	lc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer lc.Close()

	s := NewSender()
	require.NoError(t, s.AddUDPTarget(lc.LocalAddr().String(), FlagPose))
	require.NoError(t, s.Start())
	defer s.Stop()

	s.Send([]byte("pose-line"), FlagPose)
	s.Send([]byte("warning-line"), FlagWarning)

	lc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, _, err := lc.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, "pose-line", string(buf[:n]))

	// The warning must have been filtered out by the mask.
	lc.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = lc.ReadFromUDP(buf)
	require.Error(t, err)
}

func TestSenderTCPDelivery(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	got := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		n, err := conn.Read(buf)
		if err == nil {
			got <- buf[:n]
		}
	}()

	s := NewSender()
	s.AddTCPTarget(ln.Addr().String(), FlagPose)
	require.NoError(t, s.Start())
	defer s.Stop()

	s.Send([]byte("pose-line\r\n"), FlagPose)

	select {
	case msg := <-got:
		require.Equal(t, "pose-line\r\n", string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("TCP target never received the message")
	}
}

func TestSenderDropsWhenStopped(t *testing.T) {
	s := NewSender()
	// Not started: Send must be a no-op, not a nil-socket panic.
	s.Send([]byte("x"), FlagPose)
}
