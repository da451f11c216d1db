package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8001", cfg.Port)
	assert.Equal(t, 4233, cfg.NATSPort)
	assert.Equal(t, "http://localhost:9001", cfg.DetectorURL)
	assert.Equal(t, 15, cfg.VideoFPS)
	assert.Equal(t, 2*time.Second, cfg.PersistenceSeconds)
	assert.Equal(t, 30*time.Second, cfg.CooldownSeconds)
	assert.Equal(t, 30, cfg.FrameWindow)
	assert.Equal(t, 20, cfg.FrameThreshold)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DETECTION_COOLDOWN_SECONDS", "45")
	t.Setenv("DETECTION_PERSISTENCE_SECONDS", "1.5")
	t.Setenv("DETECTOR_CONFIDENCE", "0.7")
	t.Setenv("VIDEO_FPS", "30")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.CooldownSeconds)
	assert.Equal(t, 1500*time.Millisecond, cfg.PersistenceSeconds)
	assert.Equal(t, 0.7, cfg.ConfidenceThreshold)
	assert.Equal(t, 30, cfg.VideoFPS)
}

func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("NATS_PORT", "not-a-number")
	t.Setenv("DETECTION_FRAME_WINDOW", "")

	cfg := Load()
	assert.Equal(t, 4233, cfg.NATSPort)
	assert.Equal(t, 30, cfg.FrameWindow)
}
