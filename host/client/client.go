// Package client drives the SSI bridge firmware from a host.
package client

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/exp/slog"

	"gossi/bridge"
	"gossi/core"
	"gossi/host/logging"
	"gossi/protocol"
)

// DefaultTimeout bounds each command round trip.
const DefaultTimeout = time.Second

// ErrUnexpected is returned when the device answers with the wrong message.
var ErrUnexpected = errors.New("client: unexpected response")

// DeviceError is an error_response from the bridge. It unwraps to the
// engine error its code stands for.
type DeviceError struct {
	Command uint32
	Code    int32
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("client: command %d failed on device: %v (%d)", e.Command, core.FromCode(e.Code), e.Code)
}

func (e *DeviceError) Unwrap() error {
	return core.FromCode(e.Code)
}

// Status is a decoded spi_status.
type Status struct {
	Bus       uint32
	Busy      bool
	DataLost  bool
	ModeFault bool
	Count     uint32
}

// Dictionary is the command table published by the firmware.
type Dictionary struct {
	Version   string            `json:"version"`
	Config    map[string]string `json:"config"`
	Commands  map[string]int    `json:"commands"`
	Responses map[string]int    `json:"responses"`
}

// Options configures a client.
type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is a connection to the bridge.
type Client struct {
	tr      *protocol.HostTransport
	timeout time.Duration
	log     *slog.Logger
	dict    *Dictionary
}

// New starts a client on an open link. The client owns port.
func New(port io.ReadWriteCloser, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{
		tr:      protocol.NewHostTransport(port),
		timeout: opts.Timeout,
		log:     logging.For(opts.Logger, logging.ComponentClient),
	}
}

// Close ends the session and closes the port.
func (c *Client) Close() error {
	return c.tr.Close()
}

// Reset restarts sequence numbering. The firmware closes all buses when
// it sees the restart.
func (c *Client) Reset() {
	c.tr.Reset()
}

// call runs one command and returns the payload of its response after
// checking the response id
func (c *Client) call(cmd uint16, want uint32, args func(out protocol.OutputBuffer)) ([]byte, error) {
	msg, err := c.tr.Call(cmd, args, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("client: command %d: %w", cmd, err)
	}
	data := msg.Payload
	id, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return nil, fmt.Errorf("client: command %d: %w", cmd, err)
	}
	switch id {
	case want:
		return data, nil
	case bridge.RespError:
		failed, _ := protocol.DecodeVLQUint(&data)
		code, err := protocol.DecodeVLQInt(&data)
		if err != nil {
			return nil, fmt.Errorf("client: error_response: %w", err)
		}
		derr := &DeviceError{Command: failed, Code: code}
		c.log.Debug("device error", "command", failed, "code", code)
		return nil, derr
	}
	return nil, fmt.Errorf("%w: 0x%X to command %d", ErrUnexpected, id, cmd)
}

// Identify returns the firmware version and bus count.
func (c *Client) Identify() (string, int, error) {
	data, err := c.call(bridge.CmdIdentify, bridge.RespIdentify, nil)
	if err != nil {
		return "", 0, err
	}
	version, err := protocol.DecodeVLQString(&data)
	if err != nil {
		return "", 0, err
	}
	buses, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return "", 0, err
	}
	return version, int(buses), nil
}

// BusConfig describes a bus to configure.
type BusConfig struct {
	Mode uint8
	Bits uint32 // 0 means 8
	Rate uint32 // Hz, 0 means the firmware default
	CS   uint8
}

// Configure opens or reconfigures a bus as master.
func (c *Client) Configure(bus uint32, cfg BusConfig) (Status, error) {
	data, err := c.call(bridge.CmdSPIConfig, bridge.RespSPIStatus, func(out protocol.OutputBuffer) {
		for _, v := range []uint32{bus, uint32(cfg.Mode), cfg.Bits, cfg.Rate, uint32(cfg.CS)} {
			protocol.EncodeVLQUint(out, v)
		}
	})
	if err != nil {
		return Status{}, err
	}
	return decodeStatus(data)
}

// Transfer exchanges data full duplex and returns what was received.
func (c *Client) Transfer(bus uint32, out []byte) ([]byte, error) {
	data, err := c.call(bridge.CmdSPITransfer, bridge.RespSPITransfer, busData(bus, out))
	if err != nil {
		return nil, err
	}
	return decodeData(data)
}

// Send transmits data, discarding what comes back.
func (c *Client) Send(bus uint32, out []byte) (Status, error) {
	data, err := c.call(bridge.CmdSPISend, bridge.RespSPIStatus, busData(bus, out))
	if err != nil {
		return Status{}, err
	}
	return decodeStatus(data)
}

// Receive clocks in n bytes.
func (c *Client) Receive(bus uint32, n int) ([]byte, error) {
	data, err := c.call(bridge.CmdSPIReceive, bridge.RespSPITransfer, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, bus)
		protocol.EncodeVLQUint(out, uint32(n))
	})
	if err != nil {
		return nil, err
	}
	return decodeData(data)
}

// Status reads the engine status of a bus.
func (c *Client) Status(bus uint32) (Status, error) {
	return c.busStatus(bridge.CmdSPIGetStatus, bus)
}

// Abort stops the transfer in flight on a bus.
func (c *Client) Abort(bus uint32) (Status, error) {
	return c.busStatus(bridge.CmdSPIAbort, bus)
}

func (c *Client) busStatus(cmd uint16, bus uint32) (Status, error) {
	data, err := c.call(cmd, bridge.RespSPIStatus, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, bus)
	})
	if err != nil {
		return Status{}, err
	}
	return decodeStatus(data)
}

// chunkSize is requested per get_dictionary round trip
const chunkSize = bridge.MaxChunk

// RetrieveDictionary downloads, inflates and parses the firmware dictionary.
func (c *Client) RetrieveDictionary() (*Dictionary, error) {
	var blob bytes.Buffer
	for offset := uint32(0); ; {
		data, err := c.call(bridge.CmdGetDictionary, bridge.RespDictionaryChunk, func(out protocol.OutputBuffer) {
			protocol.EncodeVLQUint(out, offset)
			protocol.EncodeVLQUint(out, chunkSize)
		})
		if err != nil {
			return nil, err
		}
		at, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			return nil, err
		}
		if at != offset {
			return nil, fmt.Errorf("%w: chunk at %d, asked for %d", ErrUnexpected, at, offset)
		}
		chunk, err := protocol.DecodeVLQBytes(&data)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
		blob.Write(chunk)
		offset += uint32(len(chunk))
	}
	c.log.Debug("dictionary retrieved", "bytes", blob.Len())

	zr, err := zlib.NewReader(&blob)
	if err != nil {
		return nil, fmt.Errorf("client: dictionary: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("client: dictionary: %w", err)
	}
	dict := &Dictionary{}
	if err := json.Unmarshal(raw, dict); err != nil {
		return nil, fmt.Errorf("client: dictionary: %w", err)
	}
	c.dict = dict
	return dict, nil
}

// Dictionary returns the dictionary from the last RetrieveDictionary.
func (c *Client) Dictionary() *Dictionary {
	return c.dict
}

func busData(bus uint32, b []byte) func(out protocol.OutputBuffer) {
	return func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, bus)
		protocol.EncodeVLQBytes(out, b)
	}
}

func decodeData(data []byte) ([]byte, error) {
	if _, err := protocol.DecodeVLQUint(&data); err != nil {
		return nil, err
	}
	return protocol.DecodeVLQBytes(&data)
}

func decodeStatus(data []byte) (Status, error) {
	var v [5]uint32
	for i := range v {
		x, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			return Status{}, fmt.Errorf("client: spi_status: %w", err)
		}
		v[i] = x
	}
	return Status{
		Bus:       v[0],
		Busy:      v[1] != 0,
		DataLost:  v[2] != 0,
		ModeFault: v[3] != 0,
		Count:     v[4],
	}, nil
}
