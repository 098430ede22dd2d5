// Command ssi-bridge is an interactive host for the SSI bridge firmware.
// With -sim it runs the firmware against the simulated board in-process.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/exp/slog"

	"gossi/board"
	"gossi/bridge"
	"gossi/host/client"
	"gossi/host/logging"
	"gossi/host/serial"
)

var (
	device    = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud      = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	timeout   = flag.Duration("timeout", client.DefaultTimeout, "Command round trip timeout")
	simulate  = flag.Bool("sim", false, "Run against the simulated board instead of a device")
	dma       = flag.Bool("dma", false, "Bind UDMA channels in the simulated board")
	logLevel  = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	logFormat = flag.String("log-format", "text", "Log format: text or json")
)

func main() {
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	format, err := logging.ParseFormat(*logFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := logging.New(os.Stderr, format, level)
	log := logging.For(logger, logging.ComponentCLI)

	port, err := openPort(logger)
	if err != nil {
		log.Error("connect failed", "err", err)
		os.Exit(1)
	}
	c := client.New(port, client.Options{Timeout: *timeout, Logger: logger})
	defer c.Close()

	version, buses, err := c.Identify()
	if err != nil {
		log.Error("identify failed", "err", err)
		os.Exit(1)
	}
	fmt.Printf("Connected: %s, %d buses\n", version, buses)

	if err := repl(&session{c: c, out: os.Stdout}, os.Stdin, log); err != nil {
		log.Error("input", "err", err)
		os.Exit(1)
	}
}

// openPort connects to the device, or to an in-process bridge with -sim
func openPort(logger *slog.Logger) (io.ReadWriteCloser, error) {
	if !*simulate {
		cfg := serial.DefaultConfig(*device)
		cfg.Baud = *baud
		return serial.Open(cfg)
	}
	hr, dw := io.Pipe()
	dr, hw := io.Pipe()
	s := board.NewSim(board.SimOptions{DMA: *dma})
	br := bridge.New(&s.Board, dw, bridge.Config{
		Timeout: *timeout / 2,
		Logger:  logging.For(logger, logging.ComponentBridge),
	})
	go func() {
		if err := br.Serve(dr); err != nil {
			logging.For(logger, logging.ComponentBridge).Error("serve", "err", err)
		}
		dw.Close()
	}()
	return pipePort{hr, hw}, nil
}

type pipePort struct {
	*io.PipeReader
	*io.PipeWriter
}

func (p pipePort) Close() error {
	p.PipeReader.Close()
	return p.PipeWriter.Close()
}

func repl(s *session, in io.Reader, log *slog.Logger) error {
	fmt.Fprintln(s.out, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			break
		}
		start := time.Now()
		err := s.exec(scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			continue
		}
		log.Debug("command done", "elapsed", time.Since(start))
	}
	return scanner.Err()
}
