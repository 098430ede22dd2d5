// Package bus turns the asynchronous SSI engine into blocking SPI buses.
//
// Bus implements the tinygo drivers.SPI interface so that any tinygo.org/x/drivers
// device can sit on an SSI instance. Opener and Conn implement the
// golang.org/x/exp/io/spi/driver contract for host programs.
package bus

import (
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/exp/slog"
	"tinygo.org/x/drivers"

	"gossi/core"
)

// DefaultTimeout bounds the wait for a transfer completion event.
const DefaultTimeout = 100 * time.Millisecond

// DefaultFrequency is the bus clock used when Config.Frequency is zero.
const DefaultFrequency = 4_000_000

var (
	ErrDataLost = errors.New("bus: data lost")
	ErrInUse    = errors.New("bus: driver already initialized")
)

// SlaveSelect is the chip select policy of a bus.
type SlaveSelect uint8

const (
	// SelectSoftware drives the chip select as a GPIO around each transfer
	SelectSoftware SlaveSelect = iota
	// SelectHardware lets the controller drive the chip select
	SelectHardware
	// SelectNone leaves chip select to the caller
	SelectNone
)

// Config describes a master bus.
type Config struct {
	Mode      uint8  // SPI mode 0-3
	Bits      uint32 // frame width, 4-32; 0 means 8
	Frequency uint32 // SCK in Hz; 0 means DefaultFrequency
	LSBFirst  bool
	CS        uint8 // chip select index
	Select    SlaveSelect
	Timeout   time.Duration // 0 means DefaultTimeout
	Logger    *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Bits == 0 {
		c.Bits = 8
	}
	if c.Frequency == 0 {
		c.Frequency = DefaultFrequency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// controlWord encodes the configuration as an engine control word
func (c Config) controlWord() uint32 {
	w := uint32(core.ModeMaster) | core.FrameFormatForMode(c.Mode) | core.DataBits(c.Bits)
	if c.LSBFirst {
		w |= core.LSBMSB
	}
	switch c.Select {
	case SelectSoftware:
		w |= core.SSMasterSW
	case SelectHardware:
		w |= core.SSMasterHWOutput
	default:
		w |= core.SSMasterUnused
	}
	return w
}

// Bus is a blocking SPI master over one SSI instance.
type Bus struct {
	drv  *core.Driver
	cfg  Config
	done chan core.Event
	log  *slog.Logger

	one [4]byte
	two [4]byte
}

var _ drivers.SPI = (*Bus)(nil)

// Open takes ownership of an uninitialized driver, powers it up and
// configures it as a master.
func Open(drv *core.Driver, cfg Config) (*Bus, error) {
	cfg = cfg.withDefaults()
	if drv.State() != 0 {
		return nil, ErrInUse
	}
	b := &Bus{
		drv:  drv,
		done: make(chan core.Event, 1),
		log:  cfg.Logger.With("bus", drv.Resources().Name),
	}
	if err := drv.Initialize(b.signal); err != nil {
		return nil, fmt.Errorf("bus %s: initialize: %w", drv.Resources().Name, err)
	}
	if err := drv.PowerControl(core.PowerFull); err != nil {
		drv.Uninitialize()
		return nil, fmt.Errorf("bus %s: power: %w", drv.Resources().Name, err)
	}
	if err := b.apply(cfg); err != nil {
		b.Close()
		return nil, err
	}
	b.log.Debug("opened", "mode", cfg.Mode, "bits", cfg.Bits, "hz", cfg.Frequency, "cs", cfg.CS)
	return b, nil
}

// apply programs the engine with cfg and records it
func (b *Bus) apply(cfg Config) error {
	name := b.drv.Resources().Name
	if err := b.drv.SetSlaveNumber(cfg.CS); err != nil {
		return fmt.Errorf("bus %s: chip select %d: %w", name, cfg.CS, err)
	}
	if _, err := b.drv.Control(cfg.controlWord(), cfg.Frequency); err != nil {
		return fmt.Errorf("bus %s: configure: %w", name, err)
	}
	b.cfg = cfg
	return nil
}

// Configure changes the bus parameters. On failure the previous
// configuration is restored.
func (b *Bus) Configure(cfg Config) error {
	cfg.Logger = b.cfg.Logger
	cfg = cfg.withDefaults()
	old := b.cfg
	if err := b.apply(cfg); err != nil {
		if rerr := b.apply(old); rerr != nil {
			b.log.Error("restore failed", "err", rerr)
		}
		return err
	}
	return nil
}

// Config returns the active configuration.
func (b *Bus) Config() Config {
	return b.cfg
}

// Driver returns the underlying engine instance.
func (b *Bus) Driver() *core.Driver {
	return b.drv
}

// Close powers the instance down and releases it.
func (b *Bus) Close() error {
	b.drv.PowerControl(core.PowerOff)
	return b.drv.Uninitialize()
}

// signal runs in interrupt context
func (b *Bus) signal(ev core.Event) {
	select {
	case b.done <- ev:
	default:
	}
}

// drain discards events left over from an aborted transfer
func (b *Bus) drain() {
	for {
		select {
		case <-b.done:
		default:
			return
		}
	}
}

// Tx implements drivers.SPI. Either buffer may be nil; when both are given
// they must have the same length. Lengths are in buffer bytes and must be a
// whole number of frames.
func (b *Bus) Tx(w, r []byte) error {
	if err := b.selectChip(true); err != nil {
		return err
	}
	err := b.exchange(w, r)
	if serr := b.selectChip(false); err == nil {
		err = serr
	}
	return err
}

// Transfer implements drivers.SPI: one frame out, one frame in.
func (b *Bus) Transfer(w byte) (byte, error) {
	n := core.FrameBytes(b.cfg.Bits)
	b.one = [4]byte{w}
	if err := b.Tx(b.one[:n], b.two[:n]); err != nil {
		return 0, err
	}
	return b.two[0], nil
}

// exchange runs one engine transfer and waits for it
func (b *Bus) exchange(w, r []byte) error {
	n := len(w)
	if w == nil {
		n = len(r)
	}
	if n == 0 {
		return nil
	}
	name := b.drv.Resources().Name
	bpf := int(core.FrameBytes(b.cfg.Bits))
	if (w != nil && r != nil && len(w) != len(r)) || n%bpf != 0 {
		return fmt.Errorf("bus %s: %d bytes for %d-bit frames: %w", name, n, b.cfg.Bits, core.ErrParameter)
	}
	count := uint32(n / bpf)

	b.drain()
	var err error
	switch {
	case w == nil:
		err = b.drv.Receive(r, count)
	case r == nil:
		err = b.drv.Send(w, count)
	default:
		err = b.drv.Transfer(w, r, count)
	}
	if err != nil {
		return fmt.Errorf("bus %s: %w", name, err)
	}
	return b.wait()
}

func (b *Bus) wait() error {
	name := b.drv.Resources().Name
	timer := time.NewTimer(b.cfg.Timeout)
	defer timer.Stop()

	select {
	case ev := <-b.done:
		if ev&core.EventDataLost != 0 {
			b.abort()
			b.log.Warn("data lost", "count", b.drv.GetDataCount())
			return fmt.Errorf("bus %s: %w", name, ErrDataLost)
		}
		return nil
	case <-timer.C:
		b.abort()
		b.log.Warn("transfer timed out", "timeout", b.cfg.Timeout)
		return fmt.Errorf("bus %s: %w", name, core.ErrTimeout)
	}
}

func (b *Bus) abort() {
	if _, err := b.drv.Control(core.AbortTransfer, 0); err != nil {
		b.log.Error("abort failed", "err", err)
	}
}

// selectChip asserts or releases the chip select under the bus policy
func (b *Bus) selectChip(active bool) error {
	if b.cfg.Select == SelectNone {
		return nil
	}
	arg := uint32(core.SSInactive)
	if active {
		arg = core.SSActive
	}
	if _, err := b.drv.Control(core.ControlSS, arg); err != nil {
		return fmt.Errorf("bus %s: chip select: %w", b.drv.Resources().Name, err)
	}
	return nil
}
