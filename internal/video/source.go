// Package video pulls JPEG frames out of video files and RTSP streams
// through FFmpeg subprocesses.
package video

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"encoding/json"
)

// ErrSeekUnsupported is returned when a live source is asked to seek
var ErrSeekUnsupported = errors.New("seek is not supported on live sources")

// ErrStreamEnded is the terminal error of a live source whose upstream closed
var ErrStreamEnded = errors.New("stream ended")

// Source delivers one JPEG frame per call. Implementations are pull-based
// so the caller controls pacing.
type Source interface {
	// Open starts the underlying pipeline
	Open() error
	// ReadFrame blocks until the next complete JPEG frame is available
	ReadFrame() ([]byte, error)
	// Seek repositions the source; live sources return ErrSeekUnsupported
	Seek(positionMS float64) error
	// PositionMS reports the current playback position in milliseconds
	PositionMS() float64
	// DurationMS reports total duration; 0 for live sources
	DurationMS() float64
	// FPS reports the frame rate frames are delivered at
	FPS() float64
	// Live reports whether the source is a live stream
	Live() bool
	// Close stops the pipeline and releases the subprocess
	Close() error
}

// Metadata describes a probed video file
type Metadata struct {
	FPS         float64
	TotalFrames int
	DurationMS  float64
	Width       int
	Height      int
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		NBFrames   string `json:"nb_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe inspects a video file with ffprobe
func Probe(path string) (Metadata, error) {
	out, err := exec.Command("ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	).Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var probed probeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	meta := Metadata{FPS: 25.0}
	if d, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
		meta.DurationMS = d * 1000
	}

	for _, s := range probed.Streams {
		if s.CodecType != "video" {
			continue
		}
		meta.Width = s.Width
		meta.Height = s.Height
		if fps := parseFrameRate(s.RFrameRate); fps > 0 {
			meta.FPS = fps
		}
		if n, err := strconv.Atoi(s.NBFrames); err == nil {
			meta.TotalFrames = n
		}
		break
	}

	if meta.TotalFrames == 0 && meta.DurationMS > 0 {
		meta.TotalFrames = int(meta.DurationMS / 1000 * meta.FPS)
	}
	return meta, nil
}

// parseFrameRate parses ffprobe's "num/den" rational frame rate
func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// jpegQualityArg converts a 1-100 quality to FFmpeg's inverted 31-1 scale
func jpegQualityArg(quality int) string {
	q := 31 - (quality * 30 / 100)
	if q < 1 {
		q = 1
	}
	if q > 31 {
		q = 31
	}
	return strconv.Itoa(q)
}
