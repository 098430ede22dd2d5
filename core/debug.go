package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceEvent is one record of the driver trace ring
type TraceEvent struct {
	Kind   uint8  // Trace kind code
	Bank   BankID // Instance that produced the record
	Value1 uint32 // Context-dependent value
	Value2 uint32 // Context-dependent value
}

// Trace kind codes
const (
	TraceInit        = 1 // Initialize completed (v1=instance mode)
	TraceStart       = 2 // Transfer started (v1=TMOD, v2=bytes)
	TraceComplete    = 3 // Transfer completed (v1=tx count, v2=rx count)
	TraceDataLost    = 4 // Overrun/underflow (v1=ISR, v2=rx count)
	TraceAbort       = 5 // ABORT_TRANSFER
	TraceDMAError    = 6 // DMA channel error or configure failure (v1=channel)
	TraceSpinTimeout = 7 // SR.BUSY did not clear (v1=SR)
)

const (
	TraceRingSize = 32 // Keep last 32 records for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled bool = false

	// Trace ring buffer, written from interrupt context
	traceRing     [TraceRingSize]TraceEvent
	traceRingHead uint8
	traceEnabled  bool = true
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// SetTraceEnabled enables or disables trace capture
func SetTraceEnabled(enabled bool) {
	traceEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// trace records an event in the ring buffer. It never allocates, so it is
// safe from the interrupt handler.
func trace(kind uint8, bank BankID, value1, value2 uint32) {
	if !traceEnabled {
		return
	}
	idx := traceRingHead
	traceRing[idx] = TraceEvent{
		Kind:   kind,
		Bank:   bank,
		Value1: value1,
		Value2: value2,
	}
	traceRingHead = (idx + 1) % TraceRingSize
}

// TraceSnapshot returns the recorded events, oldest first.
func TraceSnapshot() []TraceEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	out := make([]TraceEvent, 0, TraceRingSize)
	start := traceRingHead
	for i := uint8(0); i < TraceRingSize; i++ {
		evt := traceRing[(start+i)%TraceRingSize]
		if evt.Kind == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

func traceName(kind uint8) string {
	switch kind {
	case TraceInit:
		return "INIT"
	case TraceStart:
		return "START"
	case TraceComplete:
		return "COMPLETE"
	case TraceDataLost:
		return "DATA_LOST!"
	case TraceAbort:
		return "ABORT"
	case TraceDMAError:
		return "DMA_ERROR!"
	case TraceSpinTimeout:
		return "SPIN_TIMEOUT!"
	default:
		return "UNKNOWN"
	}
}

// DumpTrace outputs the trace ring (call on shutdown/error, never from
// interrupt context)
func DumpTrace() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[SSI] === Trace Dump ===")
	for _, evt := range TraceSnapshot() {
		debugPrintln("[SSI] " + traceName(evt.Kind) +
			" bank=" + utoa(uint32(evt.Bank)) +
			" v1=" + hex32(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[SSI] === End Dump ===")
}

// ClearTrace clears the trace buffer
func ClearTrace() {
	for i := range traceRing {
		traceRing[i] = TraceEvent{}
	}
	traceRingHead = 0
}
