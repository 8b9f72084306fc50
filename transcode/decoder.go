package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-clave/logging"
)

// ErrUnsupportedFormat is returned when neither the native WAV reader nor
// ffmpeg can decode the input
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64     `json:"-"` // interleaved when Channels > 1
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Codec      string        `json:"codec,omitempty"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// TargetSampleRate is the rate ffmpeg resamples to. Native WAV decoding
	// keeps the file's own rate.
	TargetSampleRate int           `json:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration"` // 0 decodes everything
	FFmpegPath       string        `json:"ffmpeg_path"`
	Timeout          time.Duration `json:"timeout"` // per ffmpeg invocation, 0 disables
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 22050,
		MaxDuration:      0,
		FFmpegPath:       "ffmpeg",
		Timeout:          5 * time.Minute,
	}
}

// Decoder turns audio files into PCM. Plain PCM and float WAV files are read
// in-process; everything else goes through ffmpeg.
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// DecodeFile decodes an audio file and returns PCM data
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	return d.decode(ctx, data, filename)
}

// DecodeBytes decodes an in-memory audio file
func (d *Decoder) DecodeBytes(ctx context.Context, data []byte) (*AudioData, error) {
	return d.decode(ctx, data, "")
}

func (d *Decoder) decode(ctx context.Context, data []byte, filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"filename":  filename,
		"bytes":     len(data),
	})

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnsupportedFormat)
	}

	var nativeErr error
	if isWAV(data) {
		audio, err := decodeWAV(bytes.NewReader(data), d.config.MaxDuration)
		if err == nil {
			logger.Debug("Decoded WAV natively", logging.Fields{
				"sample_rate": audio.SampleRate,
				"channels":    audio.Channels,
				"duration":    audio.Duration.Seconds(),
			})
			return audio, nil
		}
		nativeErr = err
		logger.Debug("Native WAV decode failed, falling back to ffmpeg", logging.Fields{
			"error": err.Error(),
		})
	}

	audio, err := d.decodeWithFFmpeg(ctx, data, logger)
	if err != nil {
		if nativeErr != nil {
			return nil, fmt.Errorf("%w (native wav: %v)", err, nativeErr)
		}
		return nil, err
	}
	return audio, nil
}

// ValidateConfig validates the decoder configuration
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", d.config.TargetSampleRate)
	}
	if d.config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", d.config.Timeout)
	}
	if strings.TrimSpace(d.config.FFmpegPath) == "" {
		return errors.New("ffmpeg path is empty")
	}
	return nil
}

// GetSupportedFormats returns the file extensions clave will try to decode
func (d *Decoder) GetSupportedFormats() []string {
	return []string{
		"wav", "mp3", "flac", "ogg", "opus", "m4a", "aac", "aiff", "wma", "webm", "mp4",
	}
}

// IsSupportedFile reports whether path has an extension from GetSupportedFormats
func (d *Decoder) IsSupportedFile(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, f := range d.GetSupportedFormats() {
		if f == ext {
			return true
		}
	}
	return false
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}
