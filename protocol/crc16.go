package protocol

// CRC16 is the CCITT variant used by the frame trailer, computed over the
// header and payload.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		x := b ^ byte(crc)
		x ^= x << 4
		w := uint16(x)
		crc = (w<<8 | crc>>8) ^ w>>4 ^ w<<3
	}
	return crc
}
