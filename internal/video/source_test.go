package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFrameRate(t *testing.T) {
	assert.Equal(t, 25.0, parseFrameRate("25/1"))
	assert.InDelta(t, 29.97, parseFrameRate("30000/1001"), 0.01)
	assert.Equal(t, 15.0, parseFrameRate("15"))
	assert.Equal(t, 0.0, parseFrameRate("30/0"))
	assert.Equal(t, 0.0, parseFrameRate("abc/def"))
}

func TestJpegQualityArg(t *testing.T) {
	// FFmpeg q:v is inverted: higher quality means lower q
	assert.Equal(t, "1", jpegQualityArg(100))
	assert.Equal(t, "7", jpegQualityArg(80))
	assert.Equal(t, "31", jpegQualityArg(1))
	assert.Equal(t, "31", jpegQualityArg(0))
}

func TestSeekOnLiveSourceIsRejected(t *testing.T) {
	src := NewRTSPSource("rtsp://example/stream", 15, 80)
	assert.ErrorIs(t, src.Seek(1000), ErrSeekUnsupported)
	assert.True(t, src.Live())
	assert.Equal(t, 0.0, src.DurationMS())
}

func TestNewSourcePicksImplementation(t *testing.T) {
	_, isFile := NewSource("/videos/site.mp4", "file", 15, 80).(*FileSource)
	assert.True(t, isFile)

	_, isLive := NewSource("rtsp://cam/stream", "rtsp", 15, 80).(*RTSPSource)
	assert.True(t, isLive)
}
