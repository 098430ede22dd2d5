package protocol

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// CommandHandler decodes the arguments of one command from data and
// advances it past them.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the device end of the link. It accepts command frames in
// sequence, acknowledges every valid frame and sends responses.
type Transport struct {
	w       io.Writer
	handler CommandHandler
	dec     *Decoder

	// Expected sequence of the next host frame; responses carry it too
	nextSeq uint32

	mu    sync.Mutex
	out   ScratchOutput
	frame []byte

	resetCallback func()
	errorCallback func(cmdID uint16, err error)
}

// NewTransport returns a transport writing frames to w.
func NewTransport(w io.Writer, handler CommandHandler) *Transport {
	return &Transport{
		w:       w,
		handler: handler,
		dec:     NewDecoder(),
		nextSeq: SeqDest,
		frame:   make([]byte, 0, FrameMax),
	}
}

// SetResetCallback registers a function run when the host restarts its
// sequence numbering.
func (t *Transport) SetResetCallback(fn func()) {
	t.resetCallback = fn
}

// SetErrorCallback registers a function run when a command handler fails.
// The rest of that frame is skipped.
func (t *Transport) SetErrorCallback(fn func(cmdID uint16, err error)) {
	t.errorCallback = fn
}

// Sequence returns the sequence number expected from the host.
func (t *Transport) Sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.nextSeq))
}

// Receive consumes stream bytes, dispatching every complete frame. Only
// write failures are returned.
func (t *Transport) Receive(p []byte) error {
	t.dec.Write(p)
	for {
		msg, ok := t.dec.Next()
		if !ok {
			return nil
		}
		expected := t.Sequence()
		if msg.Sequence == SeqDest && expected != SeqDest {
			atomic.StoreUint32(&t.nextSeq, SeqDest)
			expected = SeqDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}
		if msg.Sequence == expected {
			atomic.StoreUint32(&t.nextSeq, uint32(NextSeq(expected)))
			t.dispatch(msg.Payload)
		}
		// Out of order frames are answered with the expected sequence,
		// which the host reads as a NAK
		if err := t.ack(); err != nil {
			return err
		}
	}
}

func (t *Transport) dispatch(payload []byte) {
	for len(payload) > 0 {
		id, err := DecodeVLQUint(&payload)
		if err != nil {
			t.fail(0xFFFF, err)
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(uint16(id), &payload); err != nil {
			t.fail(uint16(id), err)
			return
		}
	}
}

func (t *Transport) fail(id uint16, err error) {
	if t.errorCallback != nil {
		t.errorCallback(id, err)
	}
}

func (t *Transport) ack() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frame, _ = AppendFrame(t.frame[:0], t.Sequence(), nil)
	_, err := t.w.Write(t.frame)
	return err
}

// SendCommand encodes one response frame. args may be nil.
func (t *Transport) SendCommand(cmdID uint16, args func(out OutputBuffer)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.out.Reset()
	EncodeVLQUint(&t.out, uint32(cmdID))
	if args != nil {
		args(&t.out)
	}
	if err := t.out.Err(); err != nil {
		return err
	}
	var err error
	t.frame, err = AppendFrame(t.frame[:0], t.Sequence(), t.out.Result())
	if err != nil {
		return err
	}
	_, err = t.w.Write(t.frame)
	return err
}

// Serve reads from r until it fails. A clean end of stream returns nil.
func (t *Transport) Serve(r io.Reader) error {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := t.Receive(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
	}
}

// Reset returns to the power-on sequence state.
func (t *Transport) Reset() {
	atomic.StoreUint32(&t.nextSeq, SeqDest)
	t.dec.Reset()
	if t.resetCallback != nil {
		t.resetCallback()
	}
}
