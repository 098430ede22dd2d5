package bridge

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gossi/core"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	called := 0
	if err := r.Register(1, "ping", "value=%u", func(data *[]byte) error { called++; return nil }); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(1, "other", "", nil); err == nil {
		t.Error("Expected error for a duplicate id")
	}
	if err := r.Register(2, "ping", "", nil); err == nil {
		t.Error("Expected error for a duplicate name")
	}
	if id, ok := r.Lookup("ping"); !ok || id != 1 {
		t.Errorf("Expected ping at 1, got %d %v", id, ok)
	}

	var data []byte
	if err := r.Dispatch(1, &data); err != nil || called != 1 {
		t.Errorf("Expected one dispatch, got %d calls err=%v", called, err)
	}
	if err := r.Dispatch(5, &data); !errors.Is(err, core.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
}

func TestDictionary(t *testing.T) {
	r := NewRegistry()
	r.Register(3, "b", "x=%u", func(*[]byte) error { return nil })
	r.Register(1, "a", "", func(*[]byte) error { return nil })
	r.Register(0x20, "a_response", "v=%s", nil)
	r.SetConstant("BUSES", "3")

	want := `{"version":"v1","config":{"BUSES":"3"},"commands":{"a":1,"b x=%u":3},"responses":{"a_response v=%s":32}}`
	if got := string(r.DictionaryJSON("v1")); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	// Reassemble the compressed form chunk by chunk the way a host does
	var blob []byte
	for off := uint32(0); ; {
		chunk := r.DictionaryChunk("v1", off, 16)
		if len(chunk) == 0 {
			break
		}
		blob = append(blob, chunk...)
		off += uint32(len(chunk))
	}
	zr, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	var dict struct {
		Version   string
		Config    map[string]string
		Commands  map[string]int
		Responses map[string]int
	}
	if err := json.Unmarshal(raw, &dict); err != nil {
		t.Fatalf("Dictionary is not valid JSON: %v", err)
	}
	if diff := cmp.Diff(map[string]int{"a": 1, "b x=%u": 3}, dict.Commands); diff != "" {
		t.Errorf("Commands mismatch (-want +got):\n%s", diff)
	}

	// Registering invalidates the cached blob
	r.Register(4, "c", "", func(*[]byte) error { return nil })
	if bytes.Equal(blob, r.Dictionary("v1")) {
		t.Error("Expected the dictionary rebuilt after Register")
	}
}
