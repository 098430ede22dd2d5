package protocol

import "testing"

func TestCRC16(t *testing.T) {
	testCases := []struct {
		data     []byte
		expected uint16
	}{
		{data: []byte{}, expected: 0xFFFF},
		{data: []byte{0x00}, expected: 0x0F87},
		{data: []byte{0xFF}, expected: 0x00FF},
		{data: []byte{5, SeqDest}, expected: 0x9E81},
		{data: []byte{5, SeqDest | 1}, expected: 0x8F08},
		{data: []byte("123456789"), expected: 0x6F91},
	}

	for _, tc := range testCases {
		if got := CRC16(tc.data); got != tc.expected {
			t.Errorf("CRC16(%v): expected 0x%04X, got 0x%04X", tc.data, tc.expected, got)
		}
	}
}

func TestCRC16Different(t *testing.T) {
	crc1 := CRC16([]byte{0x01, 0x02, 0x03})
	crc2 := CRC16([]byte{0x01, 0x02, 0x04})
	if crc1 == crc2 {
		t.Errorf("CRC16 collision: both inputs produced %04X", crc1)
	}
}
