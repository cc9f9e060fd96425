package ffmpeg

import (
	"fmt"
	"strings"
)

type Format string

const (
	FormatLandscape Format = "landscape"
	FormatPortrait  Format = "portrait"
	FormatSquare    Format = "square"
)

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

const (
	DefaultFormat  = FormatLandscape
	DefaultQuality = QualityMedium
)

// Resolution is the exact output frame size every clip is letterboxed into.
type Resolution struct {
	Width  int
	Height int
}

// Encoding bundles the x264 parameters selected by a quality preset.
type Encoding struct {
	CRF     int
	Preset  string
	Bitrate string
}

var resolutions = map[Format]Resolution{
	FormatLandscape: {Width: 1920, Height: 1080},
	FormatPortrait:  {Width: 1080, Height: 1920},
	FormatSquare:    {Width: 1080, Height: 1080},
}

var encodings = map[Quality]Encoding{
	QualityLow:    {CRF: 28, Preset: "veryfast", Bitrate: "2500k"},
	QualityMedium: {CRF: 23, Preset: "medium", Bitrate: "5000k"},
	QualityHigh:   {CRF: 18, Preset: "slow", Bitrate: "8000k"},
}

// ParseFormat accepts a case-insensitive preset name. Empty selects DefaultFormat.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultFormat, nil
	}
	f := Format(s)
	if _, ok := resolutions[f]; !ok {
		return "", fmt.Errorf("unknown format %q (want landscape, portrait or square)", s)
	}
	return f, nil
}

// ParseQuality accepts a case-insensitive preset name. Empty selects DefaultQuality.
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultQuality, nil
	}
	q := Quality(s)
	if _, ok := encodings[q]; !ok {
		return "", fmt.Errorf("unknown quality %q (want low, medium or high)", s)
	}
	return q, nil
}

func (f Format) Resolution() (Resolution, bool) {
	r, ok := resolutions[f]
	return r, ok
}

func (q Quality) Encoding() (Encoding, bool) {
	e, ok := encodings[q]
	return e, ok
}
