package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultSampleRate         = 22050
	defaultMaxDurationSeconds = 120
	defaultAlternatives       = 3
	defaultCacheBackend       = "file"
	defaultLogFormat          = "text"
	defaultLogLevel           = "info"
	defaultFFmpeg             = "ffmpeg"
	defaultDecoderTimeout     = 300
	envPrefix                 = "clave"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Analysis: Analysis{
			SampleRate:         defaultSampleRate,
			MaxDurationSeconds: defaultMaxDurationSeconds,
			HarmonicSeparation: true,
			Alternatives:       defaultAlternatives,
		},
		Cache: Cache{
			Enabled: true,
			Backend: defaultCacheBackend,
			Dir:     defaultCacheDir(),
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Decoder: Decoder{
			FFmpeg:         defaultFFmpeg,
			TimeoutSeconds: defaultDecoderTimeout,
		},
	}
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "clave")
	}
	return "~/.cache/clave"
}
