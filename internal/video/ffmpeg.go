package video

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
)

// maxFrameBytes caps the JPEG scan buffer so a corrupt stream cannot
// grow it without bound (10MB, larger than any sane frame).
const maxFrameBytes = 10 * 1024 * 1024

// pipeline wraps one running FFmpeg subprocess emitting MJPEG to stdout
type pipeline struct {
	cmd    *exec.Cmd
	stdout *bufio.Reader
	buf    bytes.Buffer
}

func startPipeline(args []string) (*pipeline, error) {
	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			if bytes.Contains([]byte(line), []byte("error")) ||
				bytes.Contains([]byte(line), []byte("Error")) {
				log.Printf("⚠️ FFmpeg: %s", line)
			}
		}
	}()

	return &pipeline{cmd: cmd, stdout: bufio.NewReader(stdout)}, nil
}

// readJPEG scans the MJPEG byte stream for the next SOI..EOI frame
func (p *pipeline) readJPEG() ([]byte, error) {
	p.buf.Reset()
	inFrame := false

	for {
		b, err := p.stdout.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read frame byte: %w", err)
		}

		p.buf.WriteByte(b)
		data := p.buf.Bytes()
		n := len(data)
		if n < 2 {
			continue
		}

		// SOI marker 0xFF 0xD8 starts a frame
		if !inFrame && data[n-2] == 0xFF && data[n-1] == 0xD8 {
			inFrame = true
			p.buf.Reset()
			p.buf.Write([]byte{0xFF, 0xD8})
			continue
		}

		// EOI marker 0xFF 0xD9 completes it
		if inFrame && data[n-2] == 0xFF && data[n-1] == 0xD9 {
			frame := make([]byte, p.buf.Len())
			copy(frame, p.buf.Bytes())
			return frame, nil
		}

		if p.buf.Len() > maxFrameBytes {
			p.buf.Reset()
			inFrame = false
		}
	}
}

func (p *pipeline) stop() {
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
		p.cmd.Wait()
	}
}

// FileSource reads a video file at a fixed output frame rate. The file
// loops back to the start when it ends, and supports seeking by
// restarting FFmpeg at the requested offset.
type FileSource struct {
	path    string
	outFPS  float64
	quality int

	mu         sync.Mutex
	meta       Metadata
	pipe       *pipeline
	baseMS     float64
	frameIndex int64
}

// NewFileSource creates a file-backed source delivering outFPS frames/sec
func NewFileSource(path string, outFPS float64, quality int) *FileSource {
	if outFPS <= 0 {
		outFPS = 15
	}
	if quality <= 0 {
		quality = 80
	}
	return &FileSource{path: path, outFPS: outFPS, quality: quality}
}

// Open probes the file and starts decoding from the beginning
func (s *FileSource) Open() error {
	meta, err := Probe(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = meta
	return s.restartLocked(0)
}

func (s *FileSource) restartLocked(offsetMS float64) error {
	if s.pipe != nil {
		s.pipe.stop()
		s.pipe = nil
	}

	args := []string{"-hide_banner", "-loglevel", "warning"}
	if offsetMS > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", offsetMS/1000))
	}
	args = append(args,
		"-i", s.path,
		"-vf", fmt.Sprintf("fps=%g", s.outFPS),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", jpegQualityArg(s.quality),
		"-",
	)

	pipe, err := startPipeline(args)
	if err != nil {
		return err
	}
	s.pipe = pipe
	s.baseMS = offsetMS
	s.frameIndex = 0
	return nil
}

// ReadFrame returns the next frame, wrapping to the start of the file
// when playback reaches the end.
func (s *FileSource) ReadFrame() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipe == nil {
		return nil, fmt.Errorf("source not open: %s", s.path)
	}

	frame, err := s.pipe.readJPEG()
	if err == io.EOF {
		// End of file, loop back to the start
		log.Printf("🔁 Video file ended, looping: %s", s.path)
		if err := s.restartLocked(0); err != nil {
			return nil, err
		}
		frame, err = s.pipe.readJPEG()
	}
	if err != nil {
		return nil, err
	}

	s.frameIndex++
	return frame, nil
}

// Seek restarts decoding at the requested position, clamped to the
// file's duration.
func (s *FileSource) Seek(positionMS float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if positionMS < 0 {
		positionMS = 0
	}
	if s.meta.DurationMS > 0 && positionMS > s.meta.DurationMS {
		positionMS = s.meta.DurationMS
	}
	return s.restartLocked(positionMS)
}

// PositionMS returns the current playback position
func (s *FileSource) PositionMS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseMS + float64(s.frameIndex)/s.outFPS*1000
}

// DurationMS returns the probed file duration
func (s *FileSource) DurationMS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta.DurationMS
}

// FPS returns the output frame rate
func (s *FileSource) FPS() float64 {
	return s.outFPS
}

// Live reports false; files support seeking
func (s *FileSource) Live() bool {
	return false
}

// Close stops the FFmpeg subprocess
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipe != nil {
		s.pipe.stop()
		s.pipe = nil
	}
	return nil
}

// RTSPSource reads a live RTSP stream. End of stream is terminal and
// seeking is not supported.
type RTSPSource struct {
	url     string
	outFPS  float64
	quality int

	mu         sync.Mutex
	pipe       *pipeline
	frameIndex int64
}

// NewRTSPSource creates a live source for the given RTSP URL
func NewRTSPSource(url string, outFPS float64, quality int) *RTSPSource {
	if outFPS <= 0 {
		outFPS = 15
	}
	if quality <= 0 {
		quality = 80
	}
	return &RTSPSource{url: url, outFPS: outFPS, quality: quality}
}

// Open connects to the RTSP stream over TCP
func (s *RTSPSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-rtsp_transport", "tcp",
		"-i", s.url,
		"-vf", fmt.Sprintf("fps=%g", s.outFPS),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", jpegQualityArg(s.quality),
		"-",
	}

	pipe, err := startPipeline(args)
	if err != nil {
		return err
	}
	s.pipe = pipe
	s.frameIndex = 0
	log.Printf("🎥 RTSP source connected: %s", s.url)
	return nil
}

// ReadFrame returns the next live frame; EOF means the stream closed
func (s *RTSPSource) ReadFrame() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipe == nil {
		return nil, fmt.Errorf("source not open: %s", s.url)
	}

	frame, err := s.pipe.readJPEG()
	if err == io.EOF {
		return nil, ErrStreamEnded
	}
	if err != nil {
		return nil, err
	}
	s.frameIndex++
	return frame, nil
}

// Seek is not supported on live streams
func (s *RTSPSource) Seek(positionMS float64) error {
	return ErrSeekUnsupported
}

// PositionMS returns the elapsed stream position derived from frame count
func (s *RTSPSource) PositionMS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.frameIndex) / s.outFPS * 1000
}

// DurationMS is zero for live streams
func (s *RTSPSource) DurationMS() float64 {
	return 0
}

// FPS returns the output frame rate
func (s *RTSPSource) FPS() float64 {
	return s.outFPS
}

// Live reports true
func (s *RTSPSource) Live() bool {
	return true
}

// Close stops the FFmpeg subprocess
func (s *RTSPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipe != nil {
		s.pipe.stop()
		s.pipe = nil
	}
	return nil
}

// NewSource picks the source implementation for a camera configuration
func NewSource(source, sourceType string, outFPS float64, quality int) Source {
	if sourceType == "rtsp" {
		return NewRTSPSource(source, outFPS, quality)
	}
	return NewFileSource(source, outFPS, quality)
}
