//go:build !tinygo

package serial

import (
	"errors"
	"fmt"
	"io"

	"github.com/tarm/serial"
)

// NativePort wraps a tarm/serial port.
type NativePort struct {
	port *serial.Port
	rw   io.ReadWriteCloser
	cfg  Config
}

// Open opens a native serial port.
func Open(cfg Config) (*NativePort, error) {
	if cfg.Device == "" {
		return nil, errors.New("serial: no device")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}
	return &NativePort{port: port, rw: port, cfg: cfg}, nil
}

// Read implements io.Reader. An expired read timeout surfaces as an empty
// read rather than io.EOF, so readers keep polling.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.rw.Read(b)
	if n == 0 && errors.Is(err, io.EOF) && p.cfg.ReadTimeout > 0 {
		return 0, nil
	}
	return n, err
}

// Write implements io.Writer.
func (p *NativePort) Write(b []byte) (int, error) {
	return p.rw.Write(b)
}

// Close closes the port.
func (p *NativePort) Close() error {
	return p.rw.Close()
}

// Flush discards unread input and unsent output.
func (p *NativePort) Flush() error {
	if p.port == nil {
		return nil
	}
	return p.port.Flush()
}

// Config returns the configuration the port was opened with.
func (p *NativePort) Config() Config {
	return p.cfg
}
