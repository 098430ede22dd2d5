package bus

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/io/spi/driver"

	"gossi/board"
	"gossi/core"
)

// Opener opens one chip select of a board SSI instance through the x/exp
// spi driver API, so that spi.Open can drive it.
type Opener struct {
	Board  *board.Board
	Bus    int
	Chip   int
	Config Config
}

var _ driver.Opener = (*Opener)(nil)

// Open implements driver.Opener.
func (o *Opener) Open() (driver.Conn, error) {
	drv, err := o.Board.Bus(o.Bus)
	if err != nil {
		return nil, err
	}
	if o.Chip < 0 || o.Chip > 3 {
		return nil, fmt.Errorf("bus: chip %d out of range", o.Chip)
	}
	cfg := o.Config
	cfg.CS = uint8(o.Chip)
	b, err := Open(drv, cfg)
	if err != nil {
		return nil, err
	}
	return &Conn{bus: b}, nil
}

// Conn is an open SPI device.
type Conn struct {
	bus      *Bus
	delay    time.Duration
	csChange bool
	selected bool
}

var _ driver.Conn = (*Conn)(nil)

// Bus returns the blocking bus behind the connection.
func (c *Conn) Bus() *Bus {
	return c.bus
}

// Configure implements driver.Conn. Negative values keep the current
// setting. Delay is in microseconds; CSChange leaves the chip selected
// after each Tx until a Tx with CSChange cleared.
func (c *Conn) Configure(k, v int) error {
	if v < 0 {
		return nil
	}
	cfg := c.bus.Config()
	switch k {
	case driver.Mode:
		cfg.Mode = uint8(v)
	case driver.Bits:
		cfg.Bits = uint32(v)
	case driver.MaxSpeed:
		cfg.Frequency = uint32(v)
	case driver.Order:
		cfg.LSBFirst = v != 0
	case driver.Delay:
		c.delay = time.Duration(v) * time.Microsecond
		return nil
	case driver.CSChange:
		c.csChange = v != 0
		return nil
	default:
		return fmt.Errorf("bus: unknown configuration key %d", k)
	}
	return c.bus.Configure(cfg)
}

// Tx implements driver.Conn. With a delay configured the frames are
// clocked one at a time with the delay after each, under a single chip
// select assertion.
func (c *Conn) Tx(w, r []byte) error {
	b := c.bus
	if w != nil && r != nil && len(w) != len(r) {
		return fmt.Errorf("bus: %d bytes out, %d in: %w", len(w), len(r), core.ErrParameter)
	}
	if !c.selected {
		if err := b.selectChip(true); err != nil {
			return err
		}
		c.selected = true
	}

	var err error
	if c.delay <= 0 {
		err = b.exchange(w, r)
	} else {
		n := len(w)
		if w == nil {
			n = len(r)
		}
		bpf := int(core.FrameBytes(b.cfg.Bits))
		for at := 0; at < n && err == nil; at += bpf {
			end := at + bpf
			if end > n {
				end = n
			}
			err = b.exchange(frame(w, at, end), frame(r, at, end))
			time.Sleep(c.delay)
		}
	}

	if c.csChange && err == nil {
		return nil
	}
	c.selected = false
	if serr := b.selectChip(false); err == nil {
		err = serr
	}
	return err
}

func frame(b []byte, at, end int) []byte {
	if b == nil {
		return nil
	}
	return b[at:end]
}

// Close implements driver.Conn.
func (c *Conn) Close() error {
	var serr error
	if c.selected {
		serr = c.bus.selectChip(false)
		c.selected = false
	}
	return errors.Join(serr, c.bus.Close())
}
