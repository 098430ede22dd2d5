// Package tinycompress writes zlib streams made of stored DEFLATE blocks.
// Nothing is compressed, so it needs no window or Huffman tables and fits
// firmware memory, while any zlib reader can inflate the result.
package tinycompress

import (
	"errors"
	"hash"
	"hash/adler32"
	"io"
)

// MaxBlock is the largest stored block DEFLATE allows.
const MaxBlock = 0xFFFF

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("tinycompress: write after close")

// Writer emits a zlib stream to an underlying writer.
type Writer struct {
	w      io.Writer
	adler  hash.Hash32
	block  []byte
	header bool
	closed bool
	err    error
}

// NewWriter returns a writer buffering blocks of up to blockSize bytes. A
// non-positive or oversized blockSize means MaxBlock.
func NewWriter(w io.Writer, blockSize int) *Writer {
	if blockSize <= 0 || blockSize > MaxBlock {
		blockSize = MaxBlock
	}
	return &Writer{
		w:     w,
		adler: adler32.New(),
		block: make([]byte, 0, blockSize),
	}
}

// Write buffers p, emitting full blocks as they fill.
func (z *Writer) Write(p []byte) (int, error) {
	if z.closed {
		return 0, ErrClosed
	}
	if z.err != nil {
		return 0, z.err
	}
	z.adler.Write(p)
	n := 0
	for len(p) > 0 {
		k := copy(z.block[len(z.block):cap(z.block)], p)
		z.block = z.block[:len(z.block)+k]
		p = p[k:]
		n += k
		if len(z.block) == cap(z.block) {
			if err := z.flush(false); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// flush writes the pending bytes as one stored block
func (z *Writer) flush(final bool) error {
	var hdr [7]byte
	h := hdr[:0]
	if !z.header {
		// CM=8, 32K window, no preset dictionary, check bits for 0x789C
		h = append(h, 0x78, 0x9C)
		z.header = true
	}
	var bfinal byte
	if final {
		bfinal = 1
	}
	n := uint16(len(z.block))
	h = append(h, bfinal, byte(n), byte(n>>8), byte(^n), byte(^n>>8))
	if _, z.err = z.w.Write(h); z.err != nil {
		return z.err
	}
	if _, z.err = z.w.Write(z.block); z.err != nil {
		return z.err
	}
	z.block = z.block[:0]
	return nil
}

// Close writes the final block and the Adler-32 trailer. It does not close
// the underlying writer.
func (z *Writer) Close() error {
	if z.closed {
		return z.err
	}
	z.closed = true
	if z.err != nil {
		return z.err
	}
	if err := z.flush(true); err != nil {
		return err
	}
	sum := z.adler.Sum32()
	_, z.err = z.w.Write([]byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)})
	return z.err
}

// Compress returns data wrapped as a complete zlib stream.
func Compress(data []byte) []byte {
	out := make([]byte, 0, len(data)+11+5*(len(data)/MaxBlock))
	buf := sliceWriter{&out}
	z := NewWriter(buf, MaxBlock)
	z.Write(data)
	z.Close()
	return out
}

type sliceWriter struct{ b *[]byte }

func (s sliceWriter) Write(p []byte) (int, error) {
	*s.b = append(*s.b, p...)
	return len(p), nil
}
