package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Clips
	SwaraDir string
	SwaraExt string

	// Drone lead-in
	DroneSource    string
	DroneOutput    string
	DroneCrop      time.Duration
	DroneThreshold time.Duration
	DroneLead      time.Duration // shortening before the blend clip is mixed in
	DroneTail      time.Duration // tail stretched to pad a short source
	DroneBlend     string        // swara blended into a short drone

	// Generation
	Length     int // swaras per phrase
	Cycles     int // 0 runs until interrupted
	MaxRetries int

	// Rendering
	OutputPath    string
	ToneDuration  time.Duration
	Crossfade     time.Duration
	VibratoFreq   float64 // Hz
	VibratoDepth  float64
	PlaybackLocal bool

	// Listener server, disabled when Port is 0
	Port            int
	StreamCrossfade time.Duration
	BufferAhead     int // rendered phrases queued ahead of the stream
	MP3Bitrate      int // kbit/s
	OpusBitrate     int // bit/s
	STUNServers     []string
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	dir := envPath("MANODHARMA_SWARA_DIR", ".")
	return Config{
		SwaraDir: dir,
		SwaraExt: envStr("MANODHARMA_SWARA_EXT", ".wav"),

		DroneSource:    inDir(dir, envPath("MANODHARMA_DRONE_SOURCE", "vathapi.wav")),
		DroneOutput:    inDir(dir, envPath("MANODHARMA_DRONE_OUTPUT", "vathapi_trimmed.wav")),
		DroneCrop:      envDuration("MANODHARMA_DRONE_CROP", 3700*time.Millisecond),
		DroneThreshold: envDuration("MANODHARMA_DRONE_THRESHOLD", 3*time.Second),
		DroneLead:      envDuration("MANODHARMA_DRONE_LEAD", 500*time.Millisecond),
		DroneTail:      envDuration("MANODHARMA_DRONE_TAIL", 300*time.Millisecond),
		DroneBlend:     envStr("MANODHARMA_DRONE_BLEND", "g"),

		Length:     envInt("MANODHARMA_LENGTH", 20),
		Cycles:     envInt("MANODHARMA_CYCLES", 10),
		MaxRetries: envInt("MANODHARMA_MAX_RETRIES", 10000),

		OutputPath:    envPath("MANODHARMA_OUTPUT", "final_output.wav"),
		ToneDuration:  envDuration("MANODHARMA_TONE_DURATION", 300*time.Millisecond),
		Crossfade:     envDuration("MANODHARMA_CROSSFADE", 100*time.Millisecond),
		VibratoFreq:   envFloat("MANODHARMA_VIBRATO_FREQ", 5),
		VibratoDepth:  envFloat("MANODHARMA_VIBRATO_DEPTH", 0.002),
		PlaybackLocal: envBool("MANODHARMA_PLAYBACK", true),

		Port:            envInt("MANODHARMA_PORT", 0),
		StreamCrossfade: envDuration("MANODHARMA_STREAM_CROSSFADE", 2*time.Second),
		BufferAhead:     envInt("MANODHARMA_BUFFER_AHEAD", 2),
		MP3Bitrate:      envInt("MANODHARMA_MP3_BITRATE", 192),
		OpusBitrate:     envInt("MANODHARMA_OPUS_BITRATE", 128000),
		STUNServers:     envList("MANODHARMA_STUN", nil),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("config: %s=%q is not an integer, using %d", key, v, fallback)
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("config: %s=%q is not a number, using %g", key, v, fallback)
	}
	return fallback
}

// envDuration accepts Go durations ("300ms") or bare seconds ("3.7").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if s, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(s * float64(time.Second))
	}
	log.Printf("config: %s=%q is not a duration, using %v", key, v, fallback)
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("config: %s=%q is not a boolean, using %t", key, v, fallback)
	}
	return fallback
}

// envPath expands a leading ~ to the user's home directory.
func envPath(key, fallback string) string {
	v := envStr(key, fallback)
	p, err := homedir.Expand(v)
	if err != nil {
		log.Printf("config: %s: %v", key, err)
		return v
	}
	return p
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// inDir resolves relative drone paths against the clip directory.
func inDir(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
