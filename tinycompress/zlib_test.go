package tinycompress

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func inflate(t *testing.T, b []byte) []byte {
	t.Helper()
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("zlib header rejected: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("inflate failed: %v", err)
	}
	return out
}

func TestCompressRoundTrip(t *testing.T) {
	testCases := [][]byte{
		nil,
		[]byte("x"),
		[]byte(`{"commands":{"identify":0}}`),
		bytes.Repeat([]byte{0xA5}, MaxBlock+10),
	}
	for _, tc := range testCases {
		got := inflate(t, Compress(tc))
		if !bytes.Equal(got, tc) {
			t.Errorf("Round trip of %d bytes returned %d bytes", len(tc), len(got))
		}
	}
}

func TestWriterBlocks(t *testing.T) {
	var out bytes.Buffer
	z := NewWriter(&out, 4)
	for _, chunk := range []string{"ab", "cdef", "ghi"} {
		if _, err := z.Write([]byte(chunk)); err != nil {
			t.Fatal(err)
		}
	}
	if err := z.Close(); err != nil {
		t.Fatal(err)
	}
	// header + 2 full blocks + final block of 1 + adler
	if want := 2 + (5+4)*2 + (5 + 1) + 4; out.Len() != want {
		t.Errorf("Expected %d bytes, got %d", want, out.Len())
	}
	if diff := cmp.Diff([]byte("abcdefghi"), inflate(t, out.Bytes())); diff != "" {
		t.Errorf("Inflated mismatch (-want +got):\n%s", diff)
	}

	if _, err := z.Write([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

type failWriter struct{ after int }

func (f *failWriter) Write(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, io.ErrShortWrite
	}
	f.after--
	return len(p), nil
}

func TestWriterError(t *testing.T) {
	z := NewWriter(&failWriter{after: 1}, 2)
	if _, err := z.Write([]byte{1, 2, 3}); !errors.Is(err, io.ErrShortWrite) {
		t.Errorf("Expected the block write error, got %v", err)
	}
	if err := z.Close(); !errors.Is(err, io.ErrShortWrite) {
		t.Errorf("Expected the sticky error from Close, got %v", err)
	}
}
