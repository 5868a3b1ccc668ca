// SPDX-License-Identifier: MIT
package config

import (
	"meowsense/internal/analysis"
	"meowsense/internal/audio"
	"meowsense/internal/classify"
	"meowsense/internal/inference"
)

// PipelineOptions converts the pipeline section for classify.New. The
// config must have passed Validate.
func (c *Config) PipelineOptions() classify.Options {
	p := c.Pipeline
	window, _ := analysis.ParseWindowFunc(p.Window)
	return classify.Options{
		TargetSampleRate: p.TargetSampleRate,
		FFTSize:          p.FFTSize,
		HopSize:          p.HopSize,
		MelBands:         p.MelBands,
		FMin:             p.MelFMin,
		FMax:             p.MelFMax,
		TargetFrames:     p.TargetFrames,
		GateThreshold:    p.GateThreshold,
		Enhance:          p.Enhance,
		Window:           window,
		Resampler:        p.Resampler,
	}
}

// LabelTable builds the class table.
func (c *Config) LabelTable() (*classify.LabelTable, error) {
	return classify.NewLabelTable(c.Labels)
}

// ONNXOptions converts the model section.
func (c *Config) ONNXOptions() inference.ONNXConfig {
	return inference.ONNXConfig{
		ModelPath:         c.Model.Path,
		SharedLibraryPath: c.Model.SharedLibrary,
		InputName:         c.Model.InputName,
		OutputName:        c.Model.OutputName,
		Threads:           c.Model.Threads,
	}
}

// CaptureOptions converts the capture section.
func (c *Config) CaptureOptions() audio.CaptureConfig {
	return audio.CaptureConfig{
		DeviceID:        c.Capture.InputDevice,
		Channels:        c.Capture.Channels,
		SampleRate:      c.Capture.SampleRate,
		FramesPerBuffer: c.Capture.FramesPerBuffer,
		LowLatency:      c.Capture.LowLatency,
		Duration:        c.Capture.Duration,
	}
}
