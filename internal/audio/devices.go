// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// DefaultDevice selects the host's default input device.
const DefaultDevice = -1

// PortAudio entry points, swapped out in tests.
var (
	paLibInitialize             = portaudio.Initialize
	paLibTerminate              = portaudio.Terminate
	paLibDevicesFunc            = portaudio.Devices
	paLibDefaultInputDeviceFunc = portaudio.DefaultInputDevice
)

// Device describes a host audio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// Initialize sets up the PortAudio subsystem.
// This must be called before any device access and paired with Terminate.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate shuts down the PortAudio subsystem.
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// HostDevices lists every device PortAudio reports, indexed by ID.
func HostDevices() ([]Device, error) {
	infos, err := paDevices()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		}
	}
	return devices, nil
}

// InputDevice resolves a device ID to a capture-capable device.
// Passing DefaultDevice selects the system default input.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	devices, err := paDevices()
	if err != nil {
		return nil, err
	}

	if deviceID == DefaultDevice {
		return paLibDefaultInputDeviceFunc()
	}

	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if devices[deviceID].MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %d (%s) does not support input", deviceID, devices[deviceID].Name)
	}
	return devices[deviceID], nil
}

// ListDevices writes a human-readable device table to w.
func ListDevices(w io.Writer) error {
	devices, err := paDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")
	for i, device := range devices {
		in, out := device.MaxInputChannels, device.MaxOutputChannels

		deviceType := ""
		switch {
		case in > 0 && out > 0:
			deviceType = "Input/Output"
		case in > 0:
			deviceType = "Input"
		case out > 0:
			deviceType = "Output"
		}

		fmt.Fprintf(w, "[%d] %s (%s)\n", i, device.Name, deviceType)
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", in, out)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n\n",
			device.DefaultLowInputLatency.Seconds()*1000,
			device.DefaultHighInputLatency.Seconds()*1000)
	}
	return nil
}

func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []*portaudio.DeviceInfo{}
	}
	return devices, nil
}
