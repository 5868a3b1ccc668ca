// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"meowsense/internal/analysis"
	"meowsense/internal/audio"
	"meowsense/internal/classify"
	"meowsense/internal/fft"
	applog "meowsense/internal/log"
)

// Config is the application configuration as read from YAML.
type Config struct {
	LogLevel  string           `yaml:"log_level"`
	Pipeline  PipelineConfig   `yaml:"pipeline"`
	Model     ModelConfig      `yaml:"model"`
	Capture   CaptureConfig    `yaml:"capture"`
	Server    ServerConfig     `yaml:"server"`
	Transport TransportConfig  `yaml:"transport"`
	Labels    []classify.Class `yaml:"labels"` // Training order; index 0 is background.
}

// PipelineConfig holds the feature extraction and postprocessing
// parameters.
type PipelineConfig struct {
	TargetSampleRate float64 `yaml:"target_sample_rate"`
	FFTSize          int     `yaml:"fft_size"`
	HopSize          int     `yaml:"hop_size"`
	MelBands         int     `yaml:"mel_bands"`
	MelFMin          float64 `yaml:"mel_fmin"`
	MelFMax          float64 `yaml:"mel_fmax"`
	TargetFrames     int     `yaml:"target_frames"`
	GateThreshold    float64 `yaml:"signal_strength_threshold"`
	Enhance          bool    `yaml:"enhance"`
	Window           string  `yaml:"window"`    // hann unless experimenting
	Resampler        string  `yaml:"resampler"` // linear or polyphase
}

// ModelConfig locates the ONNX model and runtime.
type ModelConfig struct {
	Path          string `yaml:"path"`
	SharedLibrary string `yaml:"shared_library"` // falls back to ONNXRUNTIME_SHARED_LIBRARY_PATH
	InputName     string `yaml:"input_name"`
	OutputName    string `yaml:"output_name"`
	Threads       int    `yaml:"threads"`
}

// CaptureConfig holds microphone settings for the record command.
type CaptureConfig struct {
	InputDevice     int           `yaml:"input_device"` // -1 for default
	Channels        int           `yaml:"channels"`
	SampleRate      float64       `yaml:"sample_rate"`
	FramesPerBuffer int           `yaml:"frames_per_buffer"`
	LowLatency      bool          `yaml:"low_latency"`
	Duration        time.Duration `yaml:"duration"`
}

// ServerConfig holds HTTP settings for the serve command.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TransportConfig selects where results are published.
type TransportConfig struct {
	Log              bool   `yaml:"log"`
	WebSocketEnabled bool   `yaml:"websocket_enabled"`
	UDPEnabled       bool   `yaml:"udp_enabled"`
	UDPTargetAddress string `yaml:"udp_target_address"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Pipeline: PipelineConfig{
			TargetSampleRate: DefaultTargetSampleRate,
			FFTSize:          DefaultFFTSize,
			HopSize:          DefaultHopSize,
			MelBands:         DefaultMelBands,
			MelFMin:          DefaultMelFMin,
			MelFMax:          DefaultMelFMax,
			TargetFrames:     DefaultTargetFrames,
			GateThreshold:    DefaultGateThreshold,
			Enhance:          DefaultEnhance,
			Window:           DefaultWindow,
			Resampler:        DefaultResampler,
		},
		Model: ModelConfig{
			Path: "model.onnx",
		},
		Capture: CaptureConfig{
			InputDevice:     DefaultDeviceID,
			Channels:        DefaultChannels,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			Duration:        DefaultClipDuration,
		},
		Server: ServerConfig{
			Address:         DefaultServerAddress,
			MaxUploadBytes:  DefaultMaxUploadBytes,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Transport: TransportConfig{
			Log:              true,
			WebSocketEnabled: true,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTargetAddress,
		},
		Labels: classify.DefaultLabels().Classes(),
	}
}

// LoadConfig loads configuration from the YAML file at path. If path is
// empty, config.yaml in the working directory is used when present and
// built-in defaults otherwise. Environment overrides are applied after
// the file, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	p := c.Pipeline

	if !(p.TargetSampleRate > 0) {
		errs = append(errs, fmt.Errorf("pipeline.target_sample_rate must be positive, got %v", p.TargetSampleRate))
	}
	if err := fft.ValidateSize(p.FFTSize); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.fft_size: %w", err))
	}
	if p.HopSize <= 0 || p.HopSize > p.FFTSize {
		errs = append(errs, fmt.Errorf("pipeline.hop_size must be in [1, %d], got %d", p.FFTSize, p.HopSize))
	}
	if p.MelBands <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.mel_bands must be positive, got %d", p.MelBands))
	}
	if p.MelFMin < 0 || p.MelFMin >= p.MelFMax || p.MelFMax > p.TargetSampleRate/2 {
		errs = append(errs, fmt.Errorf("pipeline mel range [%v, %v] must satisfy 0 <= fmin < fmax <= %v",
			p.MelFMin, p.MelFMax, p.TargetSampleRate/2))
	}
	if p.TargetFrames <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.target_frames must be positive, got %d", p.TargetFrames))
	}
	if p.GateThreshold < 0 {
		errs = append(errs, fmt.Errorf("pipeline.signal_strength_threshold must not be negative, got %v", p.GateThreshold))
	}
	if _, err := analysis.ParseWindowFunc(p.Window); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.window: %w", err))
	}
	if _, err := audio.NewResampler(p.Resampler); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.resampler: %w", err))
	}

	if _, err := classify.NewLabelTable(c.Labels); err != nil {
		errs = append(errs, fmt.Errorf("labels: %w", err))
	}

	cp := c.Capture
	if cp.InputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("capture.input_device must be >= %d, got %d", MinDeviceID, cp.InputDevice))
	}
	if cp.Channels < 1 {
		errs = append(errs, fmt.Errorf("capture.channels must be positive, got %d", cp.Channels))
	}
	if cp.SampleRate < MinSampleRate || cp.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("capture.sample_rate must be in [%d, %d], got %v", MinSampleRate, MaxSampleRate, cp.SampleRate))
	}
	if cp.FramesPerBuffer <= 0 || cp.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("capture.frames_per_buffer must be in [1, %d], got %d", MaxBufferFrames, cp.FramesPerBuffer))
	}
	if cp.Duration <= 0 {
		errs = append(errs, fmt.Errorf("capture.duration must be positive, got %s", cp.Duration))
	}

	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes))
	}
	if c.Transport.UDPEnabled && !strings.Contains(c.Transport.UDPTargetAddress, ":") {
		errs = append(errs, fmt.Errorf("transport.udp_target_address %q appears invalid (missing port?)", c.Transport.UDPTargetAddress))
	}
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies MEOW_* variables on top of file values.
// Malformed values are logged and ignored.
func (c *Config) applyEnvOverrides() {
	str := func(name string, dst *string) {
		if val, ok := os.LookupEnv(name); ok {
			*dst = val
			applog.Infof("configuration: overriding %s from env: %s", name, val)
		}
	}
	boolean := func(name string, dst *bool) {
		if val, ok := os.LookupEnv(name); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				applog.Warnf("configuration: ignoring %s=%q: %v", name, val, err)
				return
			}
			*dst = b
			applog.Infof("configuration: overriding %s from env: %v", name, b)
		}
	}
	float := func(name string, dst *float64) {
		if val, ok := os.LookupEnv(name); ok {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				applog.Warnf("configuration: ignoring %s=%q: %v", name, val, err)
				return
			}
			*dst = f
			applog.Infof("configuration: overriding %s from env: %v", name, f)
		}
	}
	integer := func(name string, dst *int) {
		if val, ok := os.LookupEnv(name); ok {
			n, err := strconv.Atoi(val)
			if err != nil {
				applog.Warnf("configuration: ignoring %s=%q: %v", name, val, err)
				return
			}
			*dst = n
			applog.Infof("configuration: overriding %s from env: %d", name, n)
		}
	}

	str("MEOW_LOG_LEVEL", &c.LogLevel)
	str("MEOW_MODEL_PATH", &c.Model.Path)
	str("MEOW_RESAMPLER", &c.Pipeline.Resampler)
	str("MEOW_WINDOW", &c.Pipeline.Window)
	float("MEOW_SIGNAL_THRESHOLD", &c.Pipeline.GateThreshold)
	boolean("MEOW_ENHANCE", &c.Pipeline.Enhance)
	integer("MEOW_INPUT_DEVICE", &c.Capture.InputDevice)
	str("MEOW_SERVER_ADDRESS", &c.Server.Address)
	boolean("MEOW_UDP_ENABLED", &c.Transport.UDPEnabled)
	str("MEOW_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
}
