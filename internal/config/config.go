// Package config loads service settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all tunable settings for the monitoring service.
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Embedded NATS event bus
	NATSPort int

	// Detector model server
	DetectorURL         string
	ConfidenceThreshold float64

	// Paths
	SnapshotsDir string

	// Video processing
	VideoFPS     int
	VideoQuality int

	// Rule engine - false positive prevention
	PersistenceSeconds time.Duration
	CooldownSeconds    time.Duration
	FrameWindow        int
	FrameThreshold     int

	// Auth
	JWTSecret string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:                getEnv("PORT", "8001"),
		Env:                 getEnv("ENV", "development"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		NATSPort:            getEnvInt("NATS_PORT", 4233),
		DetectorURL:         getEnv("DETECTOR_URL", "http://localhost:9001"),
		ConfidenceThreshold: getEnvFloat("DETECTOR_CONFIDENCE", 0.5),
		SnapshotsDir:        getEnv("SNAPSHOTS_DIR", "snapshots"),
		VideoFPS:            getEnvInt("VIDEO_FPS", 15),
		VideoQuality:        getEnvInt("VIDEO_QUALITY", 80),
		PersistenceSeconds:  getEnvDuration("DETECTION_PERSISTENCE_SECONDS", 2*time.Second),
		CooldownSeconds:     getEnvDuration("DETECTION_COOLDOWN_SECONDS", 30*time.Second),
		FrameWindow:         getEnvInt("DETECTION_FRAME_WINDOW", 30),
		FrameThreshold:      getEnvInt("DETECTION_FRAME_THRESHOLD", 20),
		JWTSecret:           getEnv("JWT_SECRET", "default-dev-secret-change-me"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration parses a plain number of seconds, matching the original
// deployment's env files (e.g. DETECTION_COOLDOWN_SECONDS=30).
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return fallback
}
