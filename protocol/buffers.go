package protocol

import "errors"

// ErrFrameTooLong is reported when a payload does not fit a single frame.
var ErrFrameTooLong = errors.New("protocol: payload exceeds frame size")

// OutputBuffer receives encoded payload bytes.
type OutputBuffer interface {
	Output(data []byte)
}

// ScratchOutput collects one frame payload in a fixed buffer. Writes past
// the end are dropped and remembered as an overflow.
type ScratchOutput struct {
	buf      [PayloadMax]byte
	n        int
	overflow bool
}

// NewScratchOutput returns an empty buffer.
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.n:], data)
	s.n += n
	if n < len(data) {
		s.overflow = true
	}
}

// Result returns the bytes written so far.
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.n]
}

// Err returns ErrFrameTooLong if any write was truncated.
func (s *ScratchOutput) Err() error {
	if s.overflow {
		return ErrFrameTooLong
	}
	return nil
}

// Reset empties the buffer.
func (s *ScratchOutput) Reset() {
	s.n = 0
	s.overflow = false
}
