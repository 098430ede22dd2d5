//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks CPU interrupts so the status word and transfer
// descriptor can be updated without the SSI handler running in between
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
