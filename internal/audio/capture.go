// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	applog "meowsense/internal/log"
)

// CaptureConfig controls a single clip recording.
type CaptureConfig struct {
	DeviceID        int
	Channels        int
	SampleRate      float64
	FramesPerBuffer int
	LowLatency      bool
	Duration        time.Duration
}

// Recorder captures one fixed-length clip from an input device. The
// PortAudio callback only copies into a preallocated buffer; downmixing
// to mono happens after the stream stops.
type Recorder struct {
	cfg    CaptureConfig
	device *portaudio.DeviceInfo

	mu      sync.Mutex
	buf     []float32 // interleaved
	written int
	full    chan struct{}
	once    sync.Once
}

// NewRecorder resolves the input device and sizes the capture buffer.
func NewRecorder(cfg CaptureConfig) (*Recorder, error) {
	if cfg.Channels < 1 {
		return nil, fmt.Errorf("capture needs at least one channel, got %d", cfg.Channels)
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("capture duration must be positive, got %s", cfg.Duration)
	}

	device, err := InputDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = device.DefaultSampleRate
	}
	if cfg.Channels > device.MaxInputChannels {
		cfg.Channels = device.MaxInputChannels
	}

	frames := int(math.Ceil(cfg.Duration.Seconds() * cfg.SampleRate))
	return &Recorder{
		cfg:    cfg,
		device: device,
		buf:    make([]float32, frames*cfg.Channels),
		full:   make(chan struct{}),
	}, nil
}

// Record opens the stream, blocks until the clip is full or ctx is done,
// and returns channel 0 of whatever was captured.
func (r *Recorder) Record(ctx context.Context) (Signal, error) {
	latency := r.device.DefaultHighInputLatency
	if r.cfg.LowLatency {
		latency = r.device.DefaultLowInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   r.device,
			Channels: r.cfg.Channels,
			Latency:  latency,
		},
		FramesPerBuffer: r.cfg.FramesPerBuffer,
		SampleRate:      r.cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, r.processInput)
	if err != nil {
		return Signal{}, fmt.Errorf("failed to open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return Signal{}, fmt.Errorf("failed to start input stream: %w", err)
	}
	applog.Infof("Recording %s from %q at %.0f Hz", r.cfg.Duration, r.device.Name, r.cfg.SampleRate)

	var waitErr error
	select {
	case <-r.full:
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	if err := stream.Stop(); err != nil {
		return Signal{}, fmt.Errorf("failed to stop input stream: %w", err)
	}

	r.mu.Lock()
	captured := r.buf[:r.written]
	r.mu.Unlock()

	if waitErr != nil && len(captured) == 0 {
		return Signal{}, waitErr
	}
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return Signal{}, waitErr
	}

	return NewSignal(Downmix(captured, r.cfg.Channels), r.cfg.SampleRate)
}

// processInput is the PortAudio callback.
func (r *Recorder) processInput(in []float32) {
	r.mu.Lock()
	n := copy(r.buf[r.written:], in)
	r.written += n
	done := r.written == len(r.buf)
	r.mu.Unlock()

	if done {
		r.once.Do(func() { close(r.full) })
	}
}

// Downmix keeps channel 0 of interleaved samples.
func Downmix(interleaved []float32, channels int) []float64 {
	if channels < 1 {
		channels = 1
	}
	out := make([]float64, len(interleaved)/channels)
	for i := range out {
		out[i] = float64(interleaved[i*channels])
	}
	return out
}
