package protocol

import "errors"

// ErrBufferTooSmall is returned when a value runs past the end of the data.
var ErrBufferTooSmall = errors.New("protocol: truncated value")

// EncodeVLQInt writes v as a variable-length quantity: big-endian groups of
// seven bits, continuation in bit 7, with the first group sign-extended
// from bit 5 so small negative numbers stay short.
func EncodeVLQInt(out OutputBuffer, v int32) {
	var buf [5]byte
	n := 0
	for shift := 28; shift >= 7; shift -= 7 {
		lo := int32(-1) << (shift - 2)
		hi := int32(3) << (shift - 2)
		if v < lo || v >= hi {
			buf[n] = byte(v>>shift)&0x7F | 0x80
			n++
		}
	}
	buf[n] = byte(v) & 0x7F
	out.Output(buf[:n+1])
}

// EncodeVLQUint writes an unsigned value. Values above 2^31 use the same
// five-byte form as their negative int32 image.
func EncodeVLQUint(out OutputBuffer, v uint32) {
	EncodeVLQInt(out, int32(v))
}

// DecodeVLQInt reads one value and advances data past it. On error data is
// left untouched.
func DecodeVLQInt(data *[]byte) (int32, error) {
	b := *data
	if len(b) == 0 {
		return 0, ErrBufferTooSmall
	}
	c := b[0]
	v := uint32(c & 0x7F)
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	i := 1
	for c&0x80 != 0 {
		if i >= len(b) {
			return 0, ErrBufferTooSmall
		}
		c = b[i]
		i++
		v = v<<7 | uint32(c&0x7F)
	}
	*data = b[i:]
	return int32(v), nil
}

// DecodeVLQUint reads one unsigned value.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// EncodeVLQBytes writes a length-prefixed byte string.
func EncodeVLQBytes(out OutputBuffer, b []byte) {
	EncodeVLQUint(out, uint32(len(b)))
	out.Output(b)
}

// DecodeVLQBytes reads a length-prefixed byte string. The result aliases
// data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	rest := *data
	n, err := DecodeVLQUint(&rest)
	if err != nil {
		return nil, err
	}
	if uint32(len(rest)) < n {
		return nil, ErrBufferTooSmall
	}
	*data = rest[n:]
	return rest[:n], nil
}

// EncodeVLQString writes a length-prefixed string.
func EncodeVLQString(out OutputBuffer, s string) {
	EncodeVLQBytes(out, []byte(s))
}

// DecodeVLQString reads a length-prefixed string.
func DecodeVLQString(data *[]byte) (string, error) {
	b, err := DecodeVLQBytes(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
