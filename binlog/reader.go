package binlog

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
)

// Record is one frame recovered from a binlog.
type Record struct {
	TsMs    int64
	Flag    uint16
	Addr    *net.UDPAddr
	Payload []byte
}

// Reader streams records out of a binlog file.
type Reader struct {
	f       *os.File
	bufRec  []byte
	bufPhdr []byte
}

// OpenReader opens a binlog and validates its global header.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	hdr := make([]byte, globalHdrLen)
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("read global header: %w", err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != PcapMagic {
		f.Close()
		return nil, fmt.Errorf("not a binlog: bad magic")
	}
	return &Reader{
		f:       f,
		bufRec:  make([]byte, recordHdrLen),
		bufPhdr: make([]byte, phdr2Len),
	}, nil
}

// Next returns the next record, or io.EOF at the end of the log.
func (r *Reader) Next() (*Record, error) {
	for {
		if _, err := io.ReadFull(r.f, r.bufRec); err != nil {
			if err == io.ErrUnexpectedEOF {
				return nil, io.EOF
			}
			return nil, err
		}

		tsSec := binary.LittleEndian.Uint32(r.bufRec[0:4])
		tsUsec := binary.LittleEndian.Uint32(r.bufRec[4:8])
		inclLen := binary.LittleEndian.Uint32(r.bufRec[8:12])

		if inclLen < phdr2Len {
			// skip malformed record
			if _, err := r.f.Seek(int64(inclLen), io.SeekCurrent); err != nil {
				return nil, err
			}
			continue
		}

		if _, err := io.ReadFull(r.f, r.bufPhdr); err != nil {
			return nil, fmt.Errorf("read private header: %w", err)
		}
		flag := binary.LittleEndian.Uint16(r.bufPhdr[0:2])
		port := binary.LittleEndian.Uint16(r.bufPhdr[2:4])
		ip := net.IPv4(r.bufPhdr[4], r.bufPhdr[5], r.bufPhdr[6], r.bufPhdr[7])

		payload := make([]byte, int(inclLen)-phdr2Len)
		if _, err := io.ReadFull(r.f, payload); err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}

		return &Record{
			TsMs:    int64(tsSec)*1000 + int64(tsUsec)/1000,
			Flag:    flag,
			Addr:    &net.UDPAddr{IP: ip, Port: int(port)},
			Payload: payload,
		}, nil
	}
}

func (r *Reader) Close() error {
	return r.f.Close()
}
