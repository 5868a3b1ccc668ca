// SPDX-License-Identifier: MIT

// Package config loads runtime configuration: built-in defaults, then an
// optional YAML file, then MEOW_* environment overrides.
package config

import "time"

// Pipeline defaults. These are the parameters the bundled model was
// trained with; changing them without retraining degrades accuracy
// silently.
const (
	DefaultTargetSampleRate = 22050 // Hz
	DefaultFFTSize          = 2048  // also the frame size
	DefaultHopSize          = 512
	DefaultMelBands         = 128
	DefaultMelFMin          = 0    // Hz
	DefaultMelFMax          = 8000 // Hz
	DefaultTargetFrames     = 174
	DefaultGateThreshold    = 0.001
	DefaultEnhance          = true
	DefaultWindow           = "hann"
	DefaultResampler        = "linear"
)

// Capture defaults.
const (
	DefaultDeviceID        = MinDeviceID // System default input
	DefaultChannels        = 1
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 512
	DefaultLowLatency      = false
	DefaultClipDuration    = 3 * time.Second

	MinDeviceID     = -1 // -1 represents the system default device
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
)

// Server and transport defaults.
const (
	DefaultServerAddress    = ":8080"
	DefaultMaxUploadBytes   = 16 << 20
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultLogLevel         = "info"
)
