package bridge

import (
	"fmt"
	"strconv"

	"golang.org/x/exp/slices"

	"gossi/core"
	"gossi/tinycompress"
)

// Handler decodes the arguments of one command and acts on it.
type Handler func(data *[]byte) error

// Command is a registry entry. Responses have no handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "bus=%u data=%*s"
	Handler Handler
}

// Signature returns the dictionary key: name followed by its format.
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// Registry maps wire IDs to commands and responses. IDs are fixed by the
// caller so host and device agree without a handshake.
type Registry struct {
	commands map[uint16]*Command
	names    map[string]uint16
	consts   map[string]string
	dict     []byte
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[uint16]*Command),
		names:    make(map[string]uint16),
		consts:   make(map[string]string),
	}
}

// Register adds a command, or a response when handler is nil.
func (r *Registry) Register(id uint16, name, format string, handler Handler) error {
	if _, ok := r.commands[id]; ok {
		return fmt.Errorf("bridge: id %d already registered", id)
	}
	if _, ok := r.names[name]; ok {
		return fmt.Errorf("bridge: %s already registered", name)
	}
	r.commands[id] = &Command{ID: id, Name: name, Format: format, Handler: handler}
	r.names[name] = id
	r.dict = nil
	return nil
}

// SetConstant publishes a value in the dictionary config section.
func (r *Registry) SetConstant(name, value string) {
	r.consts[name] = value
	r.dict = nil
}

// Lookup returns the ID registered for name.
func (r *Registry) Lookup(name string) (uint16, bool) {
	id, ok := r.names[name]
	return id, ok
}

// Get returns the entry for id.
func (r *Registry) Get(id uint16) (*Command, bool) {
	c, ok := r.commands[id]
	return c, ok
}

// Dispatch runs the handler of command id.
func (r *Registry) Dispatch(id uint16, data *[]byte) error {
	c, ok := r.commands[id]
	if !ok || c.Handler == nil {
		return fmt.Errorf("bridge: unknown command %d: %w", id, core.ErrUnsupported)
	}
	return c.Handler(data)
}

// DictionaryJSON renders the registry as
//
//	{"version":...,"config":{...},"commands":{sig:id},"responses":{sig:id}}
//
// with entries in ID order. Built by hand to keep reflection off the
// device.
func (r *Registry) DictionaryJSON(version string) []byte {
	ids := make([]uint16, 0, len(r.commands))
	for id := range r.commands {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	names := make([]string, 0, len(r.consts))
	for name := range r.consts {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]byte, 0, 1024)
	out = append(out, `{"version":`...)
	out = strconv.AppendQuote(out, version)
	out = append(out, `,"config":{`...)
	for i, name := range names {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendQuote(out, name)
		out = append(out, ':')
		out = strconv.AppendQuote(out, r.consts[name])
	}
	out = append(out, '}')
	for _, section := range []struct {
		key      string
		handlers bool
	}{{"commands", true}, {"responses", false}} {
		out = append(out, `,"`...)
		out = append(out, section.key...)
		out = append(out, `":{`...)
		first := true
		for _, id := range ids {
			c := r.commands[id]
			if (c.Handler != nil) != section.handlers {
				continue
			}
			if !first {
				out = append(out, ',')
			}
			first = false
			out = strconv.AppendQuote(out, c.Signature())
			out = append(out, ':')
			out = strconv.AppendUint(out, uint64(id), 10)
		}
		out = append(out, '}')
	}
	return append(out, '}')
}

// Dictionary returns the zlib-wrapped dictionary, built once per
// registry change.
func (r *Registry) Dictionary(version string) []byte {
	if r.dict == nil {
		r.dict = tinycompress.Compress(r.DictionaryJSON(version))
	}
	return r.dict
}

// DictionaryChunk returns up to count bytes of the dictionary from offset.
// Past the end it returns an empty chunk, which ends the host's download.
func (r *Registry) DictionaryChunk(version string, offset, count uint32) []byte {
	d := r.Dictionary(version)
	if offset >= uint32(len(d)) {
		return nil
	}
	end := offset + count
	if end > uint32(len(d)) || end < offset {
		end = uint32(len(d))
	}
	return d[offset:end]
}
