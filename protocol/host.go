package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultAckTimeout bounds SendCommand.
const DefaultAckTimeout = 2 * time.Second

var (
	ErrClosed  = errors.New("protocol: transport closed")
	ErrNak     = errors.New("protocol: frame rejected")
	ErrTimeout = errors.New("protocol: timeout")
)

// ResponseHandler sees every response frame as it arrives.
type ResponseHandler func(cmdID uint16, data *[]byte) error

// HostTransport is the host end of the link. A background reader splits
// the port stream into ACKs and responses.
type HostTransport struct {
	port io.ReadWriteCloser
	seq  uint32

	ackChan      chan Message
	responseChan chan Message
	handler      ResponseHandler

	writeMu sync.Mutex
	frame   []byte
	out     ScratchOutput

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewHostTransport starts reading from port.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		seq:          SeqDest,
		ackChan:      make(chan Message, 1),
		responseChan: make(chan Message, 16),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SetResponseHandler installs an asynchronous response observer. It must
// be set before the first command is sent.
func (t *HostTransport) SetResponseHandler(h ResponseHandler) {
	t.handler = h
}

// Sequence returns the sequence number of the next command frame.
func (t *HostTransport) Sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.seq))
}

// SendCommand sends one command and waits for its ACK.
func (t *HostTransport) SendCommand(cmdID uint16, args func(out OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultAckTimeout)
}

// SendCommandWithTimeout is SendCommand with an explicit ACK timeout. A NAK
// adopts the sequence the device expects, so the command can be retried.
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(out OutputBuffer), timeout time.Duration) error {
	seq := t.Sequence()
	if err := t.write(seq, cmdID, args); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ack := <-t.ackChan:
		atomic.StoreUint32(&t.seq, uint32(ack.Sequence))
		if want := NextSeq(seq); ack.Sequence != want {
			return fmt.Errorf("%w: expected ack 0x%02x, got 0x%02x", ErrNak, want, ack.Sequence)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("ack for command %d: %w after %v", cmdID, ErrTimeout, timeout)
	case <-t.done:
		return ErrClosed
	}
}

func (t *HostTransport) write(seq uint8, cmdID uint16, args func(out OutputBuffer)) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.out.Reset()
	EncodeVLQUint(&t.out, uint32(cmdID))
	if args != nil {
		args(&t.out)
	}
	if err := t.out.Err(); err != nil {
		return fmt.Errorf("command %d: %w", cmdID, err)
	}
	var err error
	t.frame, err = AppendFrame(t.frame[:0], seq, t.out.Result())
	if err != nil {
		return fmt.Errorf("command %d: %w", cmdID, err)
	}
	n, err := t.port.Write(t.frame)
	if err != nil {
		return fmt.Errorf("write command %d: %w", cmdID, err)
	}
	if n != len(t.frame) {
		return fmt.Errorf("write command %d: short write %d/%d", cmdID, n, len(t.frame))
	}
	return nil
}

// ReceiveResponse returns the oldest unread response frame.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-t.responseChan:
		return msg, nil
	case <-timer.C:
		return Message{}, fmt.Errorf("response: %w after %v", ErrTimeout, timeout)
	case <-t.done:
		return Message{}, ErrClosed
	}
}

// Call sends a command and returns the first response that follows it.
func (t *HostTransport) Call(cmdID uint16, args func(out OutputBuffer), timeout time.Duration) (Message, error) {
	if err := t.SendCommandWithTimeout(cmdID, args, timeout); err != nil {
		return Message{}, err
	}
	return t.ReceiveResponse(timeout)
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	dec := NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
			for msg, ok := dec.Next(); ok; msg, ok = dec.Next() {
				t.dispatch(msg)
			}
		}
		if err != nil {
			select {
			case <-t.stop:
				return
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) dispatch(msg Message) {
	if msg.IsAck() {
		select {
		case t.ackChan <- msg:
		default:
		}
		return
	}
	if t.handler != nil {
		data := append([]byte(nil), msg.Payload...)
		if id, err := DecodeVLQUint(&data); err == nil {
			t.handler(uint16(id), &data)
		}
	}
	// Drop the oldest response rather than stall the reader
	for {
		select {
		case t.responseChan <- msg:
			return
		default:
		}
		select {
		case <-t.responseChan:
		default:
		}
	}
}

// Reset restarts sequence numbering and drops pending ACKs and responses.
// The device sees the next command as a host restart.
func (t *HostTransport) Reset() {
	atomic.StoreUint32(&t.seq, SeqDest)
	for {
		select {
		case <-t.ackChan:
		case <-t.responseChan:
		default:
			return
		}
	}
}

// Close closes the port and waits for the reader to exit.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}
