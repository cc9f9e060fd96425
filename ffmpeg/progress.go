package ffmpeg

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strconv"
	"time"
)

var timeMarker = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// Marker is one progress hint recognised on the engine's diagnostic stream.
type Marker struct {
	Elapsed time.Duration
}

// ParseMarker extracts the output timestamp from a diagnostic line such as
// "frame=  120 fps= 60 ... time=00:00:04.00 bitrate=...". Lines reporting
// time=N/A are not markers.
func ParseMarker(line string) (Marker, bool) {
	m := timeMarker.FindStringSubmatch(line)
	if m == nil {
		return Marker{}, false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.ParseFloat(m[3], 64)
	elapsed := time.Duration(h)*time.Hour +
		time.Duration(min)*time.Minute +
		time.Duration(sec*float64(time.Second))
	return Marker{Elapsed: elapsed}, true
}

// scanLinesOrCR splits on '\n' and on the bare '\r' ffmpeg uses to redraw its
// status line.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func newDiagnosticScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	s.Split(scanLinesOrCR)
	return s
}
