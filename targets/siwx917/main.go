//go:build tinygo

// Command siwx917 is the bridge firmware: it exposes the SSI instances of
// the MCU to a host over the serial link.
package main

import (
	"machine"
	"time"

	"gossi/board"
	"gossi/bridge"
	"gossi/core"
)

// readChunk bounds the bytes handed to the transport per loop pass
const readChunk = 64

var (
	br      *bridge.Bridge
	inbuf   [readChunk]byte
	faults  uint32
	pending int
)

func main() {
	if err := machine.Serial.Configure(machine.UARTConfig{}); err != nil {
		return
	}

	// DMA channel errors end the transfer instead of wedging the bus
	hw := board.Hardware(true, core.Options{RecoverDMAErrors: true})
	br = bridge.New(hw, machine.Serial, bridge.Config{Timeout: 50 * time.Millisecond})

	for {
		poll()
		time.Sleep(50 * time.Microsecond)
	}
}

// poll moves whatever the link has buffered into the bridge
func poll() {
	defer func() {
		if r := recover(); r != nil {
			// Drop the partial input and release the buses
			faults++
			pending = 0
			br.Close()
		}
	}()

	for pending < readChunk && machine.Serial.Buffered() > 0 {
		c, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		inbuf[pending] = c
		pending++
	}
	if pending == 0 {
		return
	}
	n := pending
	pending = 0
	if err := br.Receive(inbuf[:n]); err != nil {
		faults++
	}
}
