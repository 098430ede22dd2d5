// Package bridge exposes the SSI buses of a board over the framed serial
// protocol, so a host can configure them and run transfers.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/exp/slog"

	"gossi/board"
	"gossi/bus"
	"gossi/core"
	"gossi/protocol"
)

// Command IDs
const (
	CmdIdentify      = 0
	CmdSPIConfig     = 1
	CmdSPITransfer   = 2
	CmdSPISend       = 3
	CmdSPIReceive    = 4
	CmdSPIGetStatus  = 5
	CmdSPIAbort      = 6
	CmdGetDictionary = 7
)

// Response IDs
const (
	RespIdentify        = 0x20
	RespSPIStatus       = 0x21
	RespSPITransfer     = 0x22
	RespDictionaryChunk = 0x23
	RespError           = 0x40
)

// MaxTransfer is the largest data block one command moves. It leaves room
// for the response header inside a frame.
const MaxTransfer = 240

// MaxChunk bounds a dictionary chunk.
const MaxChunk = 200

// ErrNotOpen is returned for transfers on a bus that was never configured.
var ErrNotOpen = errors.New("bridge: bus not configured")

// Config tunes the bus adapters created by spi_config.
type Config struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Bridge serves one link.
type Bridge struct {
	board *board.Board
	buses []*bus.Bus
	reg   *Registry
	tr    *protocol.Transport
	cfg   Config
	log   *slog.Logger

	rx [MaxTransfer]byte
}

// New returns a bridge writing frames to w.
func New(b *board.Board, w io.Writer, cfg Config) *Bridge {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	br := &Bridge{
		board: b,
		buses: make([]*bus.Bus, b.NumBuses()),
		reg:   NewRegistry(),
		cfg:   cfg,
		log:   cfg.Logger.With("component", "bridge"),
	}
	br.tr = protocol.NewTransport(w, br.reg.Dispatch)
	br.tr.SetErrorCallback(br.reportError)
	br.tr.SetResetCallback(br.reset)
	br.register()
	return br
}

func (br *Bridge) register() {
	r := br.reg
	r.Register(CmdIdentify, "identify", "", br.identify)
	r.Register(CmdSPIConfig, "spi_config", "bus=%u mode=%u bits=%u rate=%u cs=%u", br.spiConfig)
	r.Register(CmdSPITransfer, "spi_transfer", "bus=%u data=%*s", br.spiTransfer)
	r.Register(CmdSPISend, "spi_send", "bus=%u data=%*s", br.spiSend)
	r.Register(CmdSPIReceive, "spi_receive", "bus=%u count=%u", br.spiReceive)
	r.Register(CmdSPIGetStatus, "spi_get_status", "bus=%u", br.spiGetStatus)
	r.Register(CmdSPIAbort, "spi_abort", "bus=%u", br.spiAbort)
	r.Register(CmdGetDictionary, "get_dictionary", "offset=%u count=%u", br.getDictionary)

	r.Register(RespIdentify, "identify_response", "version=%s buses=%u", nil)
	r.Register(RespSPIStatus, "spi_status", "bus=%u busy=%c data_lost=%c mode_fault=%c count=%u", nil)
	r.Register(RespSPITransfer, "spi_transfer_response", "bus=%u data=%*s", nil)
	r.Register(RespDictionaryChunk, "dictionary_chunk", "offset=%u data=%*s", nil)
	r.Register(RespError, "error_response", "command=%u code=%i", nil)

	r.SetConstant("BUSES", strconv.Itoa(br.board.NumBuses()))
	r.SetConstant("MAX_TRANSFER", strconv.Itoa(MaxTransfer))
}

// Registry returns the command table.
func (br *Bridge) Registry() *Registry {
	return br.reg
}

// Receive feeds link bytes to the bridge.
func (br *Bridge) Receive(p []byte) error {
	return br.tr.Receive(p)
}

// Serve runs the bridge until r ends. All buses are closed on return.
func (br *Bridge) Serve(r io.Reader) error {
	defer br.Close()
	return br.tr.Serve(r)
}

// Close releases every open bus.
func (br *Bridge) Close() error {
	var errs []error
	for i, b := range br.buses {
		if b == nil {
			continue
		}
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
		br.buses[i] = nil
	}
	return errors.Join(errs...)
}

// reset runs when the host restarts its sequence numbering
func (br *Bridge) reset() {
	br.log.Info("host reset")
	if err := br.Close(); err != nil {
		br.log.Warn("closing buses on reset", "err", err)
	}
}

func (br *Bridge) reportError(cmdID uint16, err error) {
	code := core.Code(err)
	br.log.Debug("command failed", "command", cmdID, "code", code, "err", err)
	serr := br.tr.SendCommand(RespError, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(cmdID))
		protocol.EncodeVLQInt(out, code)
	})
	if serr != nil {
		br.log.Error("sending error response", "err", serr)
	}
}

// decode reads unsigned arguments in order
func decode(data *[]byte, vals ...*uint32) error {
	for _, v := range vals {
		x, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return fmt.Errorf("bridge: arguments: %w: %w", core.ErrParameter, err)
		}
		*v = x
	}
	return nil
}

func decodeBytes(data *[]byte) ([]byte, error) {
	b, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return nil, fmt.Errorf("bridge: arguments: %w: %w", core.ErrParameter, err)
	}
	if len(b) > MaxTransfer {
		return nil, fmt.Errorf("bridge: %d bytes exceeds %d: %w", len(b), MaxTransfer, core.ErrParameter)
	}
	return b, nil
}

// open returns the adapter of bus n
func (br *Bridge) open(n uint32) (*bus.Bus, error) {
	if n >= uint32(len(br.buses)) {
		return nil, fmt.Errorf("bridge: bus %d: %w", n, core.ErrParameter)
	}
	if br.buses[n] == nil {
		return nil, fmt.Errorf("bridge: bus %d: %w", n, ErrNotOpen)
	}
	return br.buses[n], nil
}

func (br *Bridge) identify(data *[]byte) error {
	return br.tr.SendCommand(RespIdentify, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQString(out, protocol.Version)
		protocol.EncodeVLQUint(out, uint32(br.board.NumBuses()))
	})
}

func (br *Bridge) spiConfig(data *[]byte) error {
	var n, mode, bits, rate, cs uint32
	if err := decode(data, &n, &mode, &bits, &rate, &cs); err != nil {
		return err
	}
	if n >= uint32(len(br.buses)) || mode > 3 || cs > 0xFF {
		return fmt.Errorf("bridge: spi_config bus=%d mode=%d cs=%d: %w", n, mode, cs, core.ErrParameter)
	}
	cfg := bus.Config{
		Mode:      uint8(mode),
		Bits:      bits,
		Frequency: rate,
		CS:        uint8(cs),
		Timeout:   br.cfg.Timeout,
		Logger:    br.cfg.Logger,
	}
	if b := br.buses[n]; b != nil {
		if err := b.Configure(cfg); err != nil {
			return err
		}
	} else {
		drv, err := br.board.Bus(int(n))
		if err != nil {
			return fmt.Errorf("bridge: %w: %w", core.ErrParameter, err)
		}
		opened, err := bus.Open(drv, cfg)
		if err != nil {
			return err
		}
		br.buses[n] = opened
	}
	br.log.Debug("bus configured", "bus", n, "mode", mode, "bits", bits, "rate", rate)
	return br.sendStatus(n)
}

func (br *Bridge) spiTransfer(data *[]byte) error {
	var n uint32
	if err := decode(data, &n); err != nil {
		return err
	}
	out, err := decodeBytes(data)
	if err != nil {
		return err
	}
	b, err := br.open(n)
	if err != nil {
		return err
	}
	in := br.rx[:len(out)]
	if err := b.Tx(out, in); err != nil {
		return err
	}
	return br.sendData(n, in)
}

func (br *Bridge) spiSend(data *[]byte) error {
	var n uint32
	if err := decode(data, &n); err != nil {
		return err
	}
	out, err := decodeBytes(data)
	if err != nil {
		return err
	}
	b, err := br.open(n)
	if err != nil {
		return err
	}
	if err := b.Tx(out, nil); err != nil {
		return err
	}
	return br.sendStatus(n)
}

func (br *Bridge) spiReceive(data *[]byte) error {
	var n, count uint32
	if err := decode(data, &n, &count); err != nil {
		return err
	}
	if count > MaxTransfer {
		return fmt.Errorf("bridge: receive of %d bytes: %w", count, core.ErrParameter)
	}
	b, err := br.open(n)
	if err != nil {
		return err
	}
	in := br.rx[:count]
	if err := b.Tx(nil, in); err != nil {
		return err
	}
	return br.sendData(n, in)
}

func (br *Bridge) spiGetStatus(data *[]byte) error {
	var n uint32
	if err := decode(data, &n); err != nil {
		return err
	}
	if n >= uint32(len(br.buses)) {
		return fmt.Errorf("bridge: bus %d: %w", n, core.ErrParameter)
	}
	return br.sendStatus(n)
}

func (br *Bridge) spiAbort(data *[]byte) error {
	var n uint32
	if err := decode(data, &n); err != nil {
		return err
	}
	b, err := br.open(n)
	if err != nil {
		return err
	}
	if _, err := b.Driver().Control(core.AbortTransfer, 0); err != nil {
		return err
	}
	return br.sendStatus(n)
}

func (br *Bridge) getDictionary(data *[]byte) error {
	var offset, count uint32
	if err := decode(data, &offset, &count); err != nil {
		return err
	}
	if count > MaxChunk {
		count = MaxChunk
	}
	chunk := br.reg.DictionaryChunk(protocol.Version, offset, count)
	return br.tr.SendCommand(RespDictionaryChunk, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, offset)
		protocol.EncodeVLQBytes(out, chunk)
	})
}

func (br *Bridge) sendData(n uint32, in []byte) error {
	return br.tr.SendCommand(RespSPITransfer, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, n)
		protocol.EncodeVLQBytes(out, in)
	})
}

// sendStatus reports the engine status of bus n, configured or not
func (br *Bridge) sendStatus(n uint32) error {
	drv, err := br.board.Bus(int(n))
	if err != nil {
		return fmt.Errorf("bridge: %w: %w", core.ErrParameter, err)
	}
	st := drv.GetStatus()
	count := drv.GetDataCount()
	return br.tr.SendCommand(RespSPIStatus, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, n)
		protocol.EncodeVLQUint(out, flag(st.Busy))
		protocol.EncodeVLQUint(out, flag(st.DataLost))
		protocol.EncodeVLQUint(out, flag(st.ModeFault))
		protocol.EncodeVLQUint(out, count)
	})
}

func flag(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
