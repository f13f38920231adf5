package feed

import (
	"fmt"
	"time"
)

// FormatPose builds one downstream pose line:
//
//	pose:      ,<id hex16>,<seq>,<timestamp>,<flag>,<x>,<y>,<z>,<qw>,<qx>,<qy>,<qz>\r\n
//
// Bytes 8..10 of the fixed 12-byte header carry the total line length in
// decimal so stream consumers can frame without scanning for CRLF.
func FormatPose(id uint32, ts int64, seq uint16, flag int, pos [3]float64, quat [4]float64) []byte {
	t := time.UnixMilli(ts)
	timeStr := t.Format("20060102150405.000")
	idStr := fmt.Sprintf("%016X", uint64(id))

	body := fmt.Sprintf("pose:      ,%s,%d,%s,%d,%.3f,%.3f,%.3f,%.4f,%.4f,%.4f,%.4f\r\n",
		idStr, seq, timeStr, flag, pos[0], pos[1], pos[2],
		quat[0], quat[1], quat[2], quat[3])

	b := []byte(body)
	n := len(b)
	if n >= 100 {
		b[8] = byte('0' + (n / 100))
	}
	b[9] = byte('0' + ((n / 10) % 10))
	b[10] = byte('0' + (n % 10))
	return b
}
