package protocol

import "bytes"

// AppendFrame appends a complete frame carrying payload to dst.
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > PayloadMax {
		return dst, ErrFrameTooLong
	}
	start := len(dst)
	dst = append(dst, byte(len(payload)+FrameMin), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, byte(crc>>8), byte(crc), SyncByte), nil
}

// Decoder splits a byte stream into frames. Garbage, bad lengths, foreign
// sequence bytes and CRC failures drop the decoder out of sync; it then
// skips to the next sync byte.
type Decoder struct {
	buf    []byte
	synced bool

	// Resyncs counts how often the stream had to be resynchronized
	Resyncs int
}

// NewDecoder returns a decoder positioned at a frame boundary.
func NewDecoder() *Decoder {
	return &Decoder{synced: true}
}

// Write buffers stream bytes. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Buffered returns the number of bytes not yet consumed.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset drops buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.synced = true
}

func (d *Decoder) consume(n int) {
	d.buf = append(d.buf[:0], d.buf[n:]...)
}

// Next returns the next complete frame, or false when more bytes are
// needed. The payload is a copy.
func (d *Decoder) Next() (Message, bool) {
	for len(d.buf) > 0 {
		if !d.synced {
			i := bytes.IndexByte(d.buf, SyncByte)
			if i < 0 {
				d.buf = d.buf[:0]
				break
			}
			d.consume(i + 1)
			d.synced = true
			d.Resyncs++
			continue
		}
		if d.buf[0] == SyncByte {
			d.consume(1)
			continue
		}
		if len(d.buf) < FrameMin {
			break
		}
		n := int(d.buf[posLen])
		seq := d.buf[posSeq]
		if n < FrameMin || seq&^SeqMask != SeqDest {
			d.synced = false
			continue
		}
		if len(d.buf) < n {
			break
		}
		crc := uint16(d.buf[n-TrailerSize])<<8 | uint16(d.buf[n-TrailerSize+1])
		if d.buf[n-1] != SyncByte || crc != CRC16(d.buf[:n-TrailerSize]) {
			d.synced = false
			continue
		}
		msg := Message{
			Sequence: seq,
			Payload:  append([]byte(nil), d.buf[HeaderSize:n-TrailerSize]...),
		}
		d.consume(n)
		return msg, true
	}
	return Message{}, false
}
