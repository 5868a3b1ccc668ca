// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Format identifies a container detected from its leading bytes.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
)

// DetectFormat sniffs the first bytes of a file.
func DetectFormat(header []byte) Format {
	switch {
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return FormatWAV
	case len(header) >= 3 && bytes.Equal(header[0:3], []byte("ID3")):
		return FormatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		// MPEG frame sync without an ID3 tag.
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// Decode reads a WAV or MP3 stream into a mono Signal.
func Decode(r io.ReadSeeker) (Signal, error) {
	header := make([]byte, 12)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Signal{}, fmt.Errorf("failed to read audio header: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Signal{}, fmt.Errorf("failed to rewind audio: %w", err)
	}

	switch DetectFormat(header[:n]) {
	case FormatWAV:
		return DecodeWAV(r)
	case FormatMP3:
		return DecodeMP3(r)
	default:
		return Signal{}, ErrUnsupportedFormat
	}
}

// DecodeWAV decodes PCM WAV of any bit depth go-audio supports and keeps
// channel 0, scaled to [-1, 1).
func DecodeWAV(r io.ReadSeeker) (Signal, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return Signal{}, fmt.Errorf("%w: invalid wav file", ErrUnsupportedFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Signal{}, fmt.Errorf("failed to decode wav: %w", err)
	}

	channels := int(d.NumChans)
	if channels < 1 {
		channels = 1
	}
	bitDepth := int(d.BitDepth)
	if bitDepth <= 0 {
		return Signal{}, fmt.Errorf("%w: wav bit depth %d", ErrUnsupportedFormat, bitDepth)
	}

	// 8-bit PCM is unsigned; every other depth is signed.
	scale := float64(int64(1) << (bitDepth - 1))
	offset := 0.0
	if bitDepth == 8 {
		offset = 128
	}

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := range samples {
		samples[i] = (float64(buf.Data[i*channels]) - offset) / scale
	}

	return NewSignal(samples, float64(d.SampleRate))
}

// DecodeMP3 decodes an MP3 stream. The decoder always yields 16-bit
// little-endian stereo; the left channel is kept.
func DecodeMP3(r io.Reader) (Signal, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return Signal{}, fmt.Errorf("failed to open mp3: %w", err)
	}

	pcm, err := io.ReadAll(d)
	if err != nil {
		return Signal{}, fmt.Errorf("failed to decode mp3: %w", err)
	}

	const bytesPerFrame = 4
	samples := make([]float64, len(pcm)/bytesPerFrame)
	for i := range samples {
		left := int16(binary.LittleEndian.Uint16(pcm[i*bytesPerFrame:]))
		samples[i] = float64(left) / 32768
	}

	return NewSignal(samples, float64(d.SampleRate()))
}
