package sim

import (
	"errors"

	"gossi/mmio"
	"gossi/udma"
)

// ErrInjected is returned by ChannelConfigure for channels set up to fail.
var ErrInjected = errors.New("sim: injected channel failure")

// Port is a peripheral that can be a DMA endpoint.
type Port interface {
	mmio.Bank
	TxRequest() bool
	RxRequest() bool
}

type mapping struct {
	base uintptr
	size uintptr
	port Port
}

type dmaChannel struct {
	xfer    udma.Transfer
	cb      udma.Callback
	moved   uint32
	armed   bool
	enabled bool
}

// UDMA models a micro-DMA controller moving beats between RAM buffers and
// attached peripherals under the peripherals' request handshakes.
type UDMA struct {
	// AutoRun runs pending channels as soon as DMAEnable is called
	AutoRun bool

	// FailConfigure makes ChannelConfigure fail for the listed channels
	FailConfigure map[uint8]bool

	channels []dmaChannel
	ports    []mapping
	ready    bool
	enabled  bool

	Initialized   int
	Uninitialized int

	// Configured logs every accepted ChannelConfigure call
	Configured []ConfiguredChannel
}

// ConfiguredChannel records one channel programming.
type ConfiguredChannel struct {
	Channel uint8
	Xfer    udma.Transfer
}

// NewUDMA returns a controller with n channels and AutoRun set.
func NewUDMA(n int) *UDMA {
	return &UDMA{
		AutoRun:       true,
		FailConfigure: make(map[uint8]bool),
		channels:      make([]dmaChannel, n),
	}
}

// Attach maps a peripheral register window for DMA access.
func (u *UDMA) Attach(base uintptr, size uint32, p Port) {
	u.ports = append(u.ports, mapping{base: base, size: uintptr(size), port: p})
}

func (u *UDMA) lookup(addr uintptr) (Port, uint32, bool) {
	for _, m := range u.ports {
		if addr >= m.base && addr < m.base+m.size {
			return m.port, uint32(addr - m.base), true
		}
	}
	return nil, 0, false
}

// Initialize implements udma.Controller.
func (u *UDMA) Initialize() error {
	u.ready = true
	u.Initialized++
	return nil
}

// Uninitialize implements udma.Controller.
func (u *UDMA) Uninitialize() {
	for i := range u.channels {
		u.channels[i] = dmaChannel{}
	}
	u.ready = false
	u.enabled = false
	u.Uninitialized++
}

// ChannelConfigure implements udma.Controller.
func (u *UDMA) ChannelConfigure(ch uint8, xfer udma.Transfer, cb udma.Callback) error {
	if !u.ready {
		return udma.ErrNotReady
	}
	if err := udma.Validate(ch, len(u.channels), xfer); err != nil {
		return err
	}
	if u.FailConfigure[ch] {
		return ErrInjected
	}
	for _, e := range []udma.Endpoint{xfer.Src, xfer.Dst} {
		if e.IsPeripheral() {
			if _, _, ok := u.lookup(e.Addr); !ok {
				return udma.ErrTransfer
			}
		}
	}
	u.channels[ch] = dmaChannel{xfer: xfer, cb: cb, armed: true}
	u.Configured = append(u.Configured, ConfiguredChannel{Channel: ch, Xfer: xfer})
	return nil
}

// ChannelEnable implements udma.Controller.
func (u *UDMA) ChannelEnable(ch uint8) error {
	if int(ch) >= len(u.channels) {
		return udma.ErrChannel
	}
	if !u.channels[ch].armed {
		return udma.ErrTransfer
	}
	u.channels[ch].enabled = true
	return nil
}

// ChannelDisable implements udma.Controller.
func (u *UDMA) ChannelDisable(ch uint8) error {
	if int(ch) >= len(u.channels) {
		return udma.ErrChannel
	}
	u.channels[ch] = dmaChannel{}
	return nil
}

// DMAEnable implements udma.Controller.
func (u *UDMA) DMAEnable() {
	u.enabled = true
	if u.AutoRun {
		u.Run()
	}
}

// Active reports whether a channel still has beats to move.
func (u *UDMA) Active(ch uint8) bool {
	return int(ch) < len(u.channels) && u.channels[ch].armed
}

// Moved returns the beats moved on a channel's current transfer.
func (u *UDMA) Moved(ch uint8) uint32 {
	if int(ch) >= len(u.channels) {
		return 0
	}
	return u.channels[ch].moved
}

// Run moves beats round-robin, one per requesting channel per round, until
// no channel can make progress. It returns the number of beats moved.
func (u *UDMA) Run() int {
	if !u.enabled {
		return 0
	}
	total := 0
	for {
		progress := false
		for i := range u.channels {
			c := &u.channels[i]
			if !c.armed || !c.enabled || !u.requested(c) {
				continue
			}
			u.beat(c)
			progress = true
			total++
			if c.moved == c.xfer.Count {
				c.armed = false
				c.enabled = false
				if c.cb != nil {
					c.cb(udma.EventXferDone, uint8(i))
				}
			}
		}
		if !progress {
			return total
		}
	}
}

// requested reports whether the peripheral side of a channel is ready
func (u *UDMA) requested(c *dmaChannel) bool {
	if !c.xfer.Dst.IsPeripheral() && !c.xfer.Src.IsPeripheral() {
		return true
	}
	if c.xfer.Dst.IsPeripheral() {
		p, _, _ := u.lookup(c.xfer.Dst.Addr)
		if !p.TxRequest() {
			return false
		}
	}
	if c.xfer.Src.IsPeripheral() {
		p, _, _ := u.lookup(c.xfer.Src.Addr)
		if !p.RxRequest() {
			return false
		}
	}
	return true
}

// beat moves one element
func (u *UDMA) beat(c *dmaChannel) {
	cfg := c.xfer.Config
	v := u.load(c.xfer.Src, cfg.SrcSize, cfg.SrcInc, c.moved)
	u.store(c.xfer.Dst, cfg.DstSize, cfg.DstInc, c.moved, v)
	c.moved++
}

func (u *UDMA) load(e udma.Endpoint, size udma.Size, inc udma.Increment, n uint32) uint32 {
	if e.IsPeripheral() {
		p, off, _ := u.lookup(e.Addr)
		return p.Read(off)
	}
	at := n * inc.Bytes()
	var v uint32
	for i := uint32(0); i < size.Bytes(); i++ {
		v |= uint32(e.Mem[at+i]) << (8 * i)
	}
	return v
}

func (u *UDMA) store(e udma.Endpoint, size udma.Size, inc udma.Increment, n uint32, v uint32) {
	if e.IsPeripheral() {
		p, off, _ := u.lookup(e.Addr)
		p.Write(off, v)
		return
	}
	at := n * inc.Bytes()
	for i := uint32(0); i < size.Bytes(); i++ {
		e.Mem[at+i] = byte(v >> (8 * i))
	}
}

// InjectError reports a bus error on an armed channel and stops it.
func (u *UDMA) InjectError(ch uint8) {
	if !u.Active(ch) {
		return
	}
	c := &u.channels[ch]
	cb := c.cb
	*c = dmaChannel{}
	if cb != nil {
		cb(udma.EventError, ch)
	}
}
