package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// buildWAV writes a canonical 44-byte header WAV around samples
func buildWAV(t *testing.T, format uint16, bits uint16, channels uint16, rate uint32, samples any) []byte {
	t.Helper()

	var data bytes.Buffer
	if err := binary.Write(&data, binary.LittleEndian, samples); err != nil {
		t.Fatalf("encode samples: %v", err)
	}

	var buf bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("encode header: %v", err)
		}
	}
	blockAlign := channels * bits / 8

	buf.WriteString("RIFF")
	w(uint32(36 + data.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	w(uint32(16))
	w(format)
	w(channels)
	w(rate)
	w(rate * uint32(blockAlign))
	w(blockAlign)
	w(bits)
	buf.WriteString("data")
	w(uint32(data.Len()))
	buf.Write(data.Bytes())

	return buf.Bytes()
}

func TestDecodeBytesPCM16(t *testing.T) {
	wavData := buildWAV(t, 1, 16, 1, 8000, []int16{0, 16384, -16384, 32767})

	audio, err := NewDecoder(nil).DecodeBytes(context.Background(), wavData)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if audio.SampleRate != 8000 || audio.Channels != 1 || audio.Codec != "pcm" {
		t.Fatalf("unexpected audio %+v", audio)
	}

	want := []float64{0, 0.5, -0.5, 1}
	if len(audio.PCM) != len(want) {
		t.Fatalf("got %d samples, want %d", len(audio.PCM), len(want))
	}
	for i := range want {
		if math.Abs(audio.PCM[i]-want[i]) > 1e-3 {
			t.Fatalf("sample %d = %f, want %f", i, audio.PCM[i], want[i])
		}
	}
}

func TestDecodeFileFloatWAV(t *testing.T) {
	samples := make([]float32, 8000)
	for i := range samples {
		samples[i] = float32(0.25 * math.Sin(2*math.Pi*440*float64(i)/8000))
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := os.WriteFile(path, buildWAV(t, 3, 32, 1, 8000, samples), 0o644); err != nil {
		t.Fatal(err)
	}

	audio, err := NewDecoder(nil).DecodeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if len(audio.PCM) != len(samples) || audio.Duration != time.Second {
		t.Fatalf("got %d samples over %v", len(audio.PCM), audio.Duration)
	}
	for i := range samples {
		if math.Abs(audio.PCM[i]-float64(samples[i])) > 1e-7 {
			t.Fatalf("sample %d = %f, want %f", i, audio.PCM[i], samples[i])
		}
	}
}

func TestDecodeKeepsTrailingSamples(t *testing.T) {
	tests := []struct {
		name     string
		format   uint16
		bits     uint16
		channels uint16
		samples  any
		want     int
	}{
		{"pcm16 stereo", 1, 16, 2, make([]int16, 2006), 2006},
		{"pcm16 three samples", 1, 16, 1, []int16{100, 200, 300}, 3},
		{"float mono", 3, 32, 1, make([]float32, 8005), 8005},
		{"pcm8 mono", 1, 8, 1, []uint8{128, 200, 50}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wavData := buildWAV(t, tt.format, tt.bits, tt.channels, 8000, tt.samples)
			audio, err := decodeWAV(bytes.NewReader(wavData), 0)
			if err != nil {
				t.Fatalf("decodeWAV: %v", err)
			}
			if len(audio.PCM) != tt.want {
				t.Fatalf("got %d samples, want %d", len(audio.PCM), tt.want)
			}
		})
	}
}

func TestDecodeRespectsMaxDuration(t *testing.T) {
	wavData := buildWAV(t, 1, 16, 1, 8000, make([]int16, 8000))

	cfg := DefaultDecoderConfig()
	cfg.MaxDuration = 500 * time.Millisecond
	audio, err := NewDecoder(cfg).DecodeBytes(context.Background(), wavData)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if len(audio.PCM) != 4000 {
		t.Fatalf("got %d samples, want 4000", len(audio.PCM))
	}
}

func TestDecodeWithoutFFmpeg(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.FFmpegPath = filepath.Join(t.TempDir(), "no-ffmpeg-here")

	_, err := NewDecoder(cfg).DecodeBytes(context.Background(), []byte("ID3\x03\x00not really an mp3"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeEmptyInput(t *testing.T) {
	_, err := NewDecoder(nil).DecodeBytes(context.Background(), nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestBytesToFloat64(t *testing.T) {
	var buf bytes.Buffer
	for _, v := range []float64{0.5, -1, 0.125} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.WriteByte(0xff) // trailing partial sample

	got := bytesToFloat64(buf.Bytes())
	if len(got) != 3 || got[0] != 0.5 || got[1] != -1 || got[2] != 0.125 {
		t.Fatalf("bytesToFloat64 = %v", got)
	}
	if bytesToFloat64([]byte{1, 2, 3}) != nil {
		t.Fatal("expected nil for fewer than 8 bytes")
	}
}

func TestBuildFFmpegArgs(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.MaxDuration = 90 * time.Second
	args := NewDecoder(cfg).buildFFmpegArgs()

	joined := " " + strings.Join(args, " ") + " "
	for _, want := range []string{" -f f64le ", " -ac 1 ", " -ar 22050 ", " -t 90.000 "} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
}

func TestSupportedFiles(t *testing.T) {
	d := NewDecoder(nil)
	for path, want := range map[string]bool{
		"song.MP3":   true,
		"a/b/c.flac": true,
		"notes.txt":  false,
		"noext":      false,
	} {
		if got := d.IsSupportedFile(path); got != want {
			t.Errorf("IsSupportedFile(%q) = %v, want %v", path, got, want)
		}
	}
	if err := d.ValidateConfig(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
