package binlog

import (
	"encoding/binary"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

const (
	PcapMagic = 0xA1B2C3D4

	globalHdrLen = 24
	recordHdrLen = 16
	phdr2Len     = 8
)

// PcapWriter logs raw sensor frames in a pcap-framed binlog: the standard
// global header and record headers, followed by a private 8-byte header
// carrying a flag word and the source UDP endpoint, then the frame payload.
type PcapWriter struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

func NewPcapWriter(path string) (*PcapWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	pw := &PcapWriter{
		w:   f,
		buf: make([]byte, 32), // reused buffer for headers
	}

	if err := pw.writeGlobalHeader(); err != nil {
		f.Close()
		return nil, err
	}

	return pw, nil
}

func (pw *PcapWriter) writeGlobalHeader() error {
	// Magic(4), Major(2), Minor(2), Zone(4), Sig(4), Snap(4), Link(4)
	b := make([]byte, globalHdrLen)
	binary.LittleEndian.PutUint32(b[0:], PcapMagic)
	binary.LittleEndian.PutUint16(b[4:], 2)
	binary.LittleEndian.PutUint16(b[6:], 4)
	binary.LittleEndian.PutUint32(b[16:], 65535) // SnapLen
	binary.LittleEndian.PutUint32(b[20:], 1)     // LinkType, unused

	_, err := pw.w.Write(b)
	return err
}

// WritePacket appends one frame with the current wall-clock timestamp.
func (pw *PcapWriter) WritePacket(flag uint16, addr *net.UDPAddr, data []byte) error {
	return pw.writeAt(time.Now(), flag, addr, data)
}

// WritePacketAt appends one frame with an explicit timestamp, for offline
// conversion tools.
func (pw *PcapWriter) WritePacketAt(ts time.Time, flag uint16, addr *net.UDPAddr, data []byte) error {
	return pw.writeAt(ts, flag, addr, data)
}

func (pw *PcapWriter) writeAt(ts time.Time, flag uint16, addr *net.UDPAddr, data []byte) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	totalLen := uint32(len(data) + phdr2Len)

	// Record header: ts_sec(4), ts_usec(4), incl_len(4), orig_len(4)
	binary.LittleEndian.PutUint32(pw.buf[0:], uint32(ts.Unix()))
	binary.LittleEndian.PutUint32(pw.buf[4:], uint32(ts.Nanosecond()/1000))
	binary.LittleEndian.PutUint32(pw.buf[8:], totalLen)
	binary.LittleEndian.PutUint32(pw.buf[12:], totalLen)
	if _, err := pw.w.Write(pw.buf[:recordHdrLen]); err != nil {
		return err
	}

	// Private header: flag(2), port(2), ip(4)
	binary.LittleEndian.PutUint16(pw.buf[0:], flag)
	port := uint16(0)
	var ip4 net.IP
	if addr != nil {
		port = uint16(addr.Port)
		ip4 = addr.IP.To4()
	}
	binary.LittleEndian.PutUint16(pw.buf[2:], port)
	if ip4 != nil && len(ip4) == 4 {
		// network byte order, same as the recording tools expect
		copy(pw.buf[4:8], ip4)
	} else {
		binary.LittleEndian.PutUint32(pw.buf[4:], 0)
	}
	if _, err := pw.w.Write(pw.buf[:phdr2Len]); err != nil {
		return err
	}

	_, err := pw.w.Write(data)
	return err
}

func (pw *PcapWriter) Close() error {
	if c, ok := pw.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
