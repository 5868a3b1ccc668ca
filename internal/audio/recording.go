// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// WriteWAV encodes s as 16-bit mono PCM. Samples are clipped to [-1, 1].
func WriteWAV(w io.WriteSeeker, s Signal) error {
	if err := s.Validate(); err != nil {
		return err
	}

	rate := int(math.Round(s.SampleRate))
	enc := wav.NewEncoder(w, rate, wavBitDepth, 1, 1)

	const maxInt16 = math.MaxInt16
	data := make([]int, len(s.Samples))
	for i, x := range s.Samples {
		x = math.Max(-1, math.Min(1, x))
		data[i] = int(math.Round(x * maxInt16))
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalise wav: %w", err)
	}
	return nil
}

// SaveWAV writes s to a new file at path.
func SaveWAV(path string, s Signal) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
