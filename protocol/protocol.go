// Package protocol implements the wire format spoken between the SSI bridge
// firmware and its host: VLQ-encoded commands carried in CRC-protected,
// sequence-numbered frames.
//
// A frame is
//
//	len | seq | payload | crc16 hi | crc16 lo | 0x7E
//
// where len counts the whole frame and seq carries 0x10 in its high nibble.
// An empty payload is an ACK (or NAK) naming the next expected sequence.
package protocol

// Version is the bridge protocol version reported by identify.
const Version = "gossi-0.1.0"

// Frame layout
const (
	HeaderSize  = 2
	TrailerSize = 3
	FrameMin    = HeaderSize + TrailerSize
	FrameMax    = 255

	// PayloadMax is the largest payload that fits a frame
	PayloadMax = FrameMax - FrameMin

	posLen = 0
	posSeq = 1

	SyncByte = 0x7E
	SeqDest  = 0x10
	SeqMask  = 0x0F
)

// NextSeq returns the sequence number following seq.
func NextSeq(seq uint8) uint8 {
	return (seq+1)&SeqMask | SeqDest
}

// Message is a decoded frame.
type Message struct {
	Sequence uint8
	Payload  []byte
}

// IsAck reports whether the message carries no commands.
func (m *Message) IsAck() bool {
	return len(m.Payload) == 0
}
