package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"golang.org/x/exp/slices"

	"gossi/host/client"
)

var errQuit = errors.New("quit")

// session runs interactive commands against one client
type session struct {
	c   *client.Client
	out io.Writer
}

// exec runs one input line
func (s *session) exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		printHelp(s.out)
		return nil
	case "identify":
		version, buses, err := s.c.Identify()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s, %d buses\n", version, buses)
		return nil
	case "dict":
		return s.dict()
	case "reset":
		s.c.Reset()
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("%s: missing bus number", cmd)
	}
	bus, err := parseUint(args[0])
	if err != nil {
		return fmt.Errorf("%s: bus: %w", cmd, err)
	}
	args = args[1:]

	switch cmd {
	case "config":
		cfg, err := parseBusConfig(args)
		if err != nil {
			return err
		}
		st, err := s.c.Configure(bus, cfg)
		if err != nil {
			return err
		}
		s.status(st)
	case "xfer":
		data, err := parseHex(args)
		if err != nil {
			return err
		}
		in, err := s.c.Transfer(bus, data)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, hex.EncodeToString(in))
	case "send":
		data, err := parseHex(args)
		if err != nil {
			return err
		}
		st, err := s.c.Send(bus, data)
		if err != nil {
			return err
		}
		s.status(st)
	case "recv":
		if len(args) != 1 {
			return errors.New("recv: usage: recv <bus> <count>")
		}
		n, err := parseUint(args[0])
		if err != nil {
			return fmt.Errorf("recv: count: %w", err)
		}
		in, err := s.c.Receive(bus, int(n))
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, hex.EncodeToString(in))
	case "status":
		st, err := s.c.Status(bus)
		if err != nil {
			return err
		}
		s.status(st)
	case "abort":
		st, err := s.c.Abort(bus)
		if err != nil {
			return err
		}
		s.status(st)
	default:
		return fmt.Errorf("unknown command %q (type 'help')", cmd)
	}
	return nil
}

func (s *session) status(st client.Status) {
	fmt.Fprintf(s.out, "bus %d: busy=%v data_lost=%v mode_fault=%v count=%d\n",
		st.Bus, st.Busy, st.DataLost, st.ModeFault, st.Count)
}

func (s *session) dict() error {
	d := s.c.Dictionary()
	if d == nil {
		var err error
		if d, err = s.c.RetrieveDictionary(); err != nil {
			return err
		}
	}
	fmt.Fprintf(s.out, "version %s\n", d.Version)
	for _, section := range []struct {
		title string
		m     map[string]int
	}{{"commands", d.Commands}, {"responses", d.Responses}} {
		fmt.Fprintf(s.out, "%s:\n", section.title)
		names := make([]string, 0, len(section.m))
		for name := range section.m {
			names = append(names, name)
		}
		slices.SortFunc(names, func(a, b string) int { return section.m[a] - section.m[b] })
		for _, name := range names {
			fmt.Fprintf(s.out, "  %3d  %s\n", section.m[name], name)
		}
	}
	return nil
}

func parseUint(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	return uint32(v), err
}

// parseBusConfig reads key=value settings
func parseBusConfig(args []string) (client.BusConfig, error) {
	var cfg client.BusConfig
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return cfg, fmt.Errorf("config: expected key=value, got %q", arg)
		}
		v, err := parseUint(value)
		if err != nil {
			return cfg, fmt.Errorf("config: %s: %w", key, err)
		}
		switch key {
		case "mode":
			cfg.Mode = uint8(v)
		case "bits":
			cfg.Bits = v
		case "rate":
			cfg.Rate = v
		case "cs":
			cfg.CS = uint8(v)
		default:
			return cfg, fmt.Errorf("config: unknown setting %q", key)
		}
	}
	return cfg, nil
}

// parseHex joins its arguments and decodes them as hex bytes
func parseHex(args []string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	return b, nil
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `commands:
  identify                    firmware version and bus count
  dict                        print the command dictionary
  config <bus> [mode=N] [bits=N] [rate=HZ] [cs=N]
  xfer <bus> <hex>            full duplex transfer
  send <bus> <hex>            transmit only
  recv <bus> <count>          receive count bytes
  status <bus>                engine status
  abort <bus>                 abort the transfer in flight
  reset                       restart the link
  quit                        exit
`)
}
