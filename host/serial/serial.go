// Package serial opens the host side of the bridge link.
package serial

import (
	"io"
	"time"
)

// Port is a serial link to the bridge firmware.
type Port interface {
	io.ReadWriteCloser

	// Flush drops bytes buffered in either direction
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; USB CDC ignores it
	Baud int

	// ReadTimeout bounds a single Read; 0 blocks
	ReadTimeout time.Duration
}

// DefaultConfig returns the bridge defaults for device.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100 * time.Millisecond,
	}
}
