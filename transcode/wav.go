package transcode

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mjibson/go-dsp/wav"
)

const wavReadChunk = 1 << 14

// decodeWAV reads an uncompressed WAV stream with go-dsp. Samples stay
// interleaved at the file's sample rate.
func decodeWAV(r io.Reader, maxDuration time.Duration) (*AudioData, error) {
	w, err := wav.New(r)
	if err != nil {
		return nil, fmt.Errorf("parse wav header: %w", err)
	}
	if w.NumChannels == 0 || w.SampleRate == 0 {
		return nil, fmt.Errorf("invalid wav header: %d channels at %d Hz", w.NumChannels, w.SampleRate)
	}

	channels := int(w.NumChannels)
	sampleRate := int(w.SampleRate)

	// go-dsp rounds Samples down to a multiple of 8, so it is only a lower
	// bound. Read it in chunks, then take single samples until the data chunk
	// ends. A short chunk read would discard the samples it did get.
	limit := -1
	if maxDuration > 0 {
		limit = int(maxDuration.Seconds()*float64(sampleRate)) * channels
	}
	known := w.Samples
	if limit >= 0 {
		known = min(known, limit)
	}

	pcm := make([]float64, 0, max(known, 0)+8)
	for limit < 0 || len(pcm) < limit {
		n := 1
		if len(pcm) < known {
			n = min(wavReadChunk, known-len(pcm))
		}

		raw, err := w.ReadSamples(n)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("read wav samples: %w", err)
		}

		before := len(pcm)
		pcm = appendSamples(pcm, raw)
		if len(pcm) == before {
			break
		}
	}

	// drop a trailing partial frame
	pcm = pcm[:len(pcm)-len(pcm)%channels]
	if len(pcm) == 0 {
		return nil, errors.New("wav file contains no samples")
	}

	frames := len(pcm) / channels
	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   time.Duration(frames) * time.Second / time.Duration(sampleRate),
		Codec:      "pcm",
	}, nil
}

// appendSamples converts go-dsp's typed sample slices to [-1, 1] floats
func appendSamples(dst []float64, raw any) []float64 {
	switch s := raw.(type) {
	case []uint8:
		for _, v := range s {
			dst = append(dst, (float64(v)-128)/128)
		}
	case []int16:
		for _, v := range s {
			dst = append(dst, float64(v)/32768)
		}
	case []float32:
		for _, v := range s {
			dst = append(dst, float64(v))
		}
	}
	return dst
}
